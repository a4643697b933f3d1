package stamp

import (
	"bytes"
	"context"
	"errors"
	"image"
	"math"
	"testing"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/gardar/pagestamp/pkg/assign"
	"github.com/gardar/pagestamp/pkg/document"
	"github.com/gardar/pagestamp/pkg/document/documenttest"
	"github.com/gardar/pagestamp/pkg/symbol"
)

func testLoader() *document.Loader {
	return document.NewLoader(document.Config{LogWarnings: false})
}

func testCompositor(mod func(*Config)) *Compositor {
	cfg := DefaultConfig()
	cfg.Compression = false
	cfg.LogWarnings = false
	cfg.Workers = 2
	if mod != nil {
		mod(&cfg)
	}
	return NewCompositor(cfg, nil)
}

func TestCompositePDF(t *testing.T) {
	doc, err := testLoader().Load(documenttest.PDF(3), false)
	if err != nil {
		t.Fatal(err)
	}
	plan := &assign.Plan{Head: "J1001", Pages: []assign.PlannedPage{
		{Page: 1, Identifier: "J1001-1", Suffix: "1", Material: "SKS3"},
		{Page: 2, Identifier: "J1001-2", Suffix: "2"},
	}}

	outputs, err := testCompositor(nil).Composite(context.Background(), doc, plan)
	if err != nil {
		t.Fatalf("Composite: %v", err)
	}
	if len(outputs) != 2 {
		t.Fatalf("got %d outputs, want 2", len(outputs))
	}
	for i, want := range []string{"J1001-1.pdf", "J1001-2.pdf"} {
		if outputs[i].Name != want {
			t.Errorf("output %d name = %q, want %q", i, outputs[i].Name, want)
		}
		if outputs[i].Name != outputs[i].Identifier+OutputExt {
			t.Errorf("output %d name %q does not match identifier %q", i, outputs[i].Name, outputs[i].Identifier)
		}
	}

	if !bytes.Contains(outputs[0].Data, []byte("(J1001-1)")) {
		t.Error("identifier text missing from first output")
	}
	if !bytes.Contains(outputs[0].Data, []byte("(SKS3)")) {
		t.Error("material label missing from first output")
	}
	if bytes.Contains(outputs[1].Data, []byte("(SKS3)")) {
		t.Error("second output should carry no material label")
	}

	for _, o := range outputs {
		stamped, err := testLoader().Load(o.Data, false)
		if err != nil {
			t.Fatalf("%s does not load back: %v", o.Name, err)
		}
		if stamped.PageCount() != 1 {
			t.Errorf("%s has %d pages, want 1", o.Name, stamped.PageCount())
		}
		if !stamped.HasStampLayer() {
			t.Errorf("%s has no %q layer; layers: %v", o.Name, document.DefaultStampLayerName, stamped.Layers())
		}
		p, _ := stamped.Page(1)
		if math.Abs(p.Width-595.28) > 0.5 || math.Abs(p.Height-841.89) > 0.5 {
			t.Errorf("%s page is %.2fx%.2f, want the source A4 size", o.Name, p.Width, p.Height)
		}
		assertSymbol(t, o)
	}
}

func TestCompositeImage(t *testing.T) {
	doc, err := testLoader().Load(documenttest.JPEG(400, 300), true)
	if err != nil {
		t.Fatal(err)
	}
	plan := &assign.Plan{Head: "S200", Pages: []assign.PlannedPage{
		{Page: 1, Identifier: "S200", Material: "AL"},
	}}

	outputs, err := testCompositor(nil).Composite(context.Background(), doc, plan)
	if err != nil {
		t.Fatalf("Composite: %v", err)
	}
	if len(outputs) != 1 || outputs[0].Name != "S200.pdf" {
		t.Fatalf("outputs = %v", names(outputs))
	}
	data := outputs[0].Data
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Error("output is not a PDF")
	}
	if !bytes.Contains(data, []byte("/DCTDecode")) {
		t.Error("JPEG source was not embedded as is")
	}
	if !bytes.Contains(data, []byte("(AL)")) {
		t.Error("material label missing")
	}

	stamped, err := testLoader().Load(data, false)
	if err != nil {
		t.Fatal(err)
	}
	if p, _ := stamped.Page(1); math.Abs(p.Width-400) > 0.5 || math.Abs(p.Height-300) > 0.5 {
		t.Errorf("page is %.2fx%.2f, want 400x300", p.Width, p.Height)
	}
	assertSymbol(t, outputs[0])
}

func TestCompositePNG(t *testing.T) {
	doc, err := testLoader().Load(documenttest.PNG(64, 48), true)
	if err != nil {
		t.Fatal(err)
	}
	plan := &assign.Plan{Pages: []assign.PlannedPage{{Page: 1, Identifier: "P1"}}}
	outputs, err := testCompositor(nil).Composite(context.Background(), doc, plan)
	if err != nil {
		t.Fatalf("Composite: %v", err)
	}
	if len(outputs) != 1 || outputs[0].Name != "P1.pdf" {
		t.Fatalf("outputs = %v", names(outputs))
	}
	assertSymbol(t, outputs[0])
}

func TestCompositeConvertedImages(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		w, h float64
	}{
		{"webp", documenttest.WebP(), documenttest.WebPWidth, documenttest.WebPHeight},
		{"png 16-bit", documenttest.PNG16(64, 48), 64, 48},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := testLoader().Load(tt.data, true)
			if err != nil {
				t.Fatal(err)
			}
			plan := &assign.Plan{Pages: []assign.PlannedPage{{Page: 1, Identifier: "W7", Material: "S45C"}}}
			outputs, err := testCompositor(nil).Composite(context.Background(), doc, plan)
			if err != nil {
				t.Fatalf("Composite: %v", err)
			}
			if len(outputs) != 1 || outputs[0].Name != "W7.pdf" {
				t.Fatalf("outputs = %v", names(outputs))
			}

			stamped, err := testLoader().Load(outputs[0].Data, false)
			if err != nil {
				t.Fatal(err)
			}
			if p, _ := stamped.Page(1); math.Abs(p.Width-tt.w) > 0.5 || math.Abs(p.Height-tt.h) > 0.5 {
				t.Errorf("page is %.2fx%.2f, want %gx%g", p.Width, p.Height, tt.w, tt.h)
			}
			// The page image and the symbol.
			if n := len(extractImages(t, outputs[0].Data)); n < 2 {
				t.Errorf("output carries %d images, want the page image and the symbol", n)
			}
			assertSymbol(t, outputs[0])
		})
	}
}

func TestCompositeXRefStreamPDF(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		w, h float64
	}{
		{"object streams", documenttest.Compress(documenttest.PDF(2)), 595.28, 841.89},
		{"rotated", documenttest.Rotate(documenttest.PDF(2), 90), 841.89, 595.28},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := testLoader().Load(tt.data, false)
			if err != nil {
				t.Fatal(err)
			}
			plan := &assign.Plan{Head: "J2", Pages: []assign.PlannedPage{
				{Page: 1, Identifier: "J2-1", Suffix: "1"},
				{Page: 2, Identifier: "J2-2", Suffix: "2", Material: "SKD11"},
			}}
			outputs, err := testCompositor(nil).Composite(context.Background(), doc, plan)
			if err != nil {
				t.Fatalf("Composite: %v", err)
			}
			for _, o := range outputs {
				stamped, err := testLoader().Load(o.Data, false)
				if err != nil {
					t.Fatalf("%s does not load back: %v", o.Name, err)
				}
				p, _ := stamped.Page(1)
				if math.Abs(p.Width-tt.w) > 0.5 || math.Abs(p.Height-tt.h) > 0.5 {
					t.Errorf("%s page is %.2fx%.2f, want %.2fx%.2f", o.Name, p.Width, p.Height, tt.w, tt.h)
				}
				if !stamped.HasStampLayer() {
					t.Errorf("%s has no stamp layer", o.Name)
				}
				assertSymbol(t, o)
			}
		})
	}
}

func TestCompositeEncodingFailureAbortsBatch(t *testing.T) {
	doc, err := testLoader().Load(documenttest.PDF(3), false)
	if err != nil {
		t.Fatal(err)
	}
	plan := &assign.Plan{Head: "J1001", Pages: []assign.PlannedPage{
		{Page: 1, Identifier: "J1001-1"},
		{Page: 2, Identifier: "J1001-é"},
		{Page: 3, Identifier: "J1001-3"},
	}}
	c := testCompositor(func(cfg *Config) { cfg.Symbol = symbol.Code128 })

	outputs, err := c.Composite(context.Background(), doc, plan)
	if outputs != nil {
		t.Errorf("got %d outputs from a failed batch", len(outputs))
	}
	var ce *CompositingError
	if !errors.As(err, &ce) {
		t.Fatalf("got %v, want CompositingError", err)
	}
	if ce.Page != 2 || ce.Identifier != "J1001-é" {
		t.Errorf("failing page = %d (%s), want 2", ce.Page, ce.Identifier)
	}
	var ee *symbol.EncodingError
	if !errors.As(err, &ee) {
		t.Errorf("cause %v is not an EncodingError", err)
	}
}

func TestCompositeRejectsMissingPage(t *testing.T) {
	doc, err := testLoader().Load(documenttest.PDF(1), false)
	if err != nil {
		t.Fatal(err)
	}
	plan := &assign.Plan{Pages: []assign.PlannedPage{{Page: 2, Identifier: "X-2"}}}
	_, err = testCompositor(nil).Composite(context.Background(), doc, plan)
	var ce *CompositingError
	if !errors.As(err, &ce) || ce.Page != 2 {
		t.Errorf("got %v, want CompositingError for page 2", err)
	}
}

func TestCompositeCancelled(t *testing.T) {
	doc, err := testLoader().Load(documenttest.PDF(2), false)
	if err != nil {
		t.Fatal(err)
	}
	plan := &assign.Plan{Pages: []assign.PlannedPage{
		{Page: 1, Identifier: "A"},
		{Page: 2, Identifier: "B"},
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outputs, err := testCompositor(nil).Composite(ctx, doc, plan)
	if !errors.Is(err, context.Canceled) || outputs != nil {
		t.Errorf("got %d outputs, err %v; want none and context.Canceled", len(outputs), err)
	}
}

func TestCompositeEmptyPlan(t *testing.T) {
	doc, err := testLoader().Load(documenttest.PDF(1), false)
	if err != nil {
		t.Fatal(err)
	}
	outputs, err := testCompositor(nil).Composite(context.Background(), doc, &assign.Plan{})
	if err != nil || len(outputs) != 0 {
		t.Errorf("got %d outputs, err %v", len(outputs), err)
	}
}

func TestLayoutAnchors(t *testing.T) {
	const pageW, pageH = 600.0, 800.0
	tests := []struct {
		anchor Anchor
		right  bool
		bottom bool
	}{
		{TopLeft, false, false},
		{TopRight, true, false},
		{BottomLeft, false, true},
		{BottomRight, true, true},
	}
	for _, tt := range tests {
		c := testCompositor(func(cfg *Config) { cfg.Anchor = tt.anchor })
		l := c.Layout(pageW, pageH, "J1001-1", "SKS3", nil, nil)
		wantX, wantY := 12.0, 12.0
		if tt.right {
			wantX = pageW - 12 - l.Box.W
		}
		if tt.bottom {
			wantY = pageH - 12 - l.Box.H
		}
		if math.Abs(l.Box.X-wantX) > 1e-9 || math.Abs(l.Box.Y-wantY) > 1e-9 {
			t.Errorf("%s: box at (%g,%g), want (%g,%g)", tt.anchor, l.Box.X, l.Box.Y, wantX, wantY)
		}
	}
}

func TestLayoutStacksContent(t *testing.T) {
	c := testCompositor(nil)
	l := c.Layout(600, 800, "J1001-1", "SKS3 + AL", nil, nil)

	if len(l.Lines) != 2 || l.Lines[0].Text != "J1001-1" || l.Lines[1].Text != "SKS3 + AL" {
		t.Fatalf("lines = %+v", l.Lines)
	}
	if !inside(l.Symbol, l.Box) {
		t.Errorf("symbol %+v outside box %+v", l.Symbol, l.Box)
	}
	symBottom := l.Symbol.Y + l.Symbol.H
	if l.Lines[0].Y <= symBottom {
		t.Errorf("identifier baseline %g not below symbol bottom %g", l.Lines[0].Y, symBottom)
	}
	if l.Lines[1].Y <= l.Lines[0].Y {
		t.Error("material line not below identifier line")
	}
	if l.Lines[1].Y > l.Box.Y+l.Box.H {
		t.Error("material line outside the box")
	}
	if l.Symbol.W != 72 || l.Symbol.H != 72 {
		t.Errorf("QR symbol is %gx%g, want 72x72", l.Symbol.W, l.Symbol.H)
	}

	noMaterial := c.Layout(600, 800, "J1001-1", "", nil, nil)
	if len(noMaterial.Lines) != 1 || noMaterial.Box.H >= l.Box.H {
		t.Errorf("layout without material: %+v", noMaterial)
	}
}

func TestLayoutPlacement(t *testing.T) {
	c := testCompositor(nil)

	l := c.Layout(600, 800, "J1", "", &assign.Placement{X: 300, Y: 400}, nil)
	if l.Box.X != 300 || l.Box.Y != 400 {
		t.Errorf("box at (%g,%g), want (300,400)", l.Box.X, l.Box.Y)
	}

	// Placements past the page edge are pulled back onto the page.
	l = c.Layout(600, 800, "J1", "", &assign.Placement{X: 590, Y: 790}, nil)
	if l.Box.X+l.Box.W > 600 || l.Box.Y+l.Box.H > 800 {
		t.Errorf("box %+v leaves the page", l.Box)
	}
}

func TestLayoutUsesSymbolAspect(t *testing.T) {
	c := testCompositor(func(cfg *Config) { cfg.Symbol = symbol.Code128 })
	sym, err := c.Symbol("J1001-1")
	if err != nil {
		t.Fatal(err)
	}
	l := c.Layout(600, 800, "J1001-1", "", nil, sym)
	want := l.Symbol.W * float64(sym.Height()) / float64(sym.Width())
	if math.Abs(l.Symbol.H-want) > 1e-9 {
		t.Errorf("symbol height = %g, want %g", l.Symbol.H, want)
	}
}

func TestEncodeLabel(t *testing.T) {
	c := testCompositor(nil)
	if s, lossy := c.encodeLabel("Ø12 ±0.1"); lossy || s != "\xd812 \xb10.1" {
		t.Errorf("encodeLabel = %q, %v", s, lossy)
	}
	if _, lossy := c.encodeLabel("工件"); !lossy {
		t.Error("CJK text should be reported as lossy")
	}
}

func TestParseAnchor(t *testing.T) {
	for in, want := range map[string]Anchor{
		"": TopLeft, "top-left": TopLeft, "TR": TopRight, "bottom-left": BottomLeft, "br": BottomRight,
	} {
		got, err := ParseAnchor(in)
		if err != nil || got != want {
			t.Errorf("ParseAnchor(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseAnchor("middle"); err == nil {
		t.Error("ParseAnchor(middle) should fail")
	}
}

// extractImages decodes every image XObject placed on the output's page.
func extractImages(t *testing.T, data []byte) []image.Image {
	t.Helper()
	api.DisableConfigDir()
	pages, err := api.ExtractImagesRaw(bytes.NewReader(data), nil, model.NewDefaultConfiguration())
	if err != nil {
		t.Fatalf("ExtractImagesRaw: %v", err)
	}
	var images []image.Image
	for _, page := range pages {
		for _, raw := range page {
			img, _, err := image.Decode(raw)
			if err != nil {
				t.Fatalf("image %s (%s) does not decode: %v", raw.Name, raw.FileType, err)
			}
			images = append(images, img)
		}
	}
	return images
}

// assertSymbol checks that a QR code embedded in the output decodes to the
// output's identifier.
func assertSymbol(t *testing.T, o Output) {
	t.Helper()
	var decoded []string
	for _, img := range extractImages(t, o.Data) {
		bmp, err := gozxing.NewBinaryBitmapFromImage(img)
		if err != nil {
			continue
		}
		res, err := qrcode.NewQRCodeReader().Decode(bmp, nil)
		if err != nil {
			continue
		}
		if res.GetText() == o.Identifier {
			return
		}
		decoded = append(decoded, res.GetText())
	}
	t.Errorf("%s: no embedded symbol decodes to %q (decoded %q)", o.Name, o.Identifier, decoded)
}

func inside(r, outer Rect) bool {
	return r.X >= outer.X && r.Y >= outer.Y && r.X+r.W <= outer.X+outer.W && r.Y+r.H <= outer.Y+outer.H
}

func names(outputs []Output) []string {
	var out []string
	for _, o := range outputs {
		out = append(out, o.Name)
	}
	return out
}
