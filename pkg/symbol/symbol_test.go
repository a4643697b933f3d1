package symbol

import (
	"bytes"
	"errors"
	"image/png"
	"sync"
	"testing"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
)

func TestEncodeDeterministic(t *testing.T) {
	for _, kind := range []Kind{QR, Code128} {
		a, err := Encode("J1001-1", kind, 100)
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
		b, err := Encode("J1001-1", kind, 100)
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
		if !bytes.Equal(a.PNG, b.PNG) {
			t.Errorf("%s: PNG output differs between identical calls", kind)
		}
	}
}

func TestEncodeQRRoundTrip(t *testing.T) {
	for _, text := range []string{"J1001-1", "S200", "J1001-12-A"} {
		sym, err := Encode(text, QR, 100)
		if err != nil {
			t.Fatalf("Encode(%q): %v", text, err)
		}
		if sym.Width() < 100 || sym.Width() != sym.Height() {
			t.Errorf("Encode(%q): got %dx%d raster", text, sym.Width(), sym.Height())
		}

		img, err := png.Decode(bytes.NewReader(sym.PNG))
		if err != nil {
			t.Fatalf("png.Decode: %v", err)
		}
		bmp, err := gozxing.NewBinaryBitmapFromImage(img)
		if err != nil {
			t.Fatalf("NewBinaryBitmapFromImage: %v", err)
		}
		res, err := qrcode.NewQRCodeReader().Decode(bmp, nil)
		if err != nil {
			t.Fatalf("decode %q: %v", text, err)
		}
		if res.GetText() != text {
			t.Errorf("decoded %q, want %q", res.GetText(), text)
		}
	}
}

func TestEncodeCode128RoundTrip(t *testing.T) {
	// Control characters go through code set A.
	for _, text := range []string{"J1001-1", "J1001\t1", "a\x01B"} {
		sym, err := Encode(text, Code128, 300)
		if err != nil {
			t.Fatalf("Encode(%q): %v", text, err)
		}
		bmp, err := gozxing.NewBinaryBitmapFromImage(sym.Image)
		if err != nil {
			t.Fatalf("NewBinaryBitmapFromImage: %v", err)
		}
		res, err := oned.NewCode128Reader().Decode(bmp, nil)
		if err != nil {
			t.Fatalf("decode %q: %v", text, err)
		}
		if res.GetText() != text {
			t.Errorf("decoded %q, want %q", res.GetText(), text)
		}
	}
}

func TestEncodeErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		kind Kind
	}{
		{"empty qr", "", QR},
		{"empty code128", "", Code128},
		{"code128 non-ascii", "J1001-é", Code128},
		{"code128 fnc rune", "J1001-ñ", Code128},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(tt.text, tt.kind, 100)
			var encErr *EncodingError
			if !errors.As(err, &encErr) {
				t.Fatalf("got %v, want *EncodingError", err)
			}
			if encErr.Kind != tt.kind || encErr.Text != tt.text {
				t.Errorf("error carries %s/%q", encErr.Kind, encErr.Text)
			}
		})
	}
}

func TestEncodeQRAcceptsUnicode(t *testing.T) {
	if _, err := Encode("J1001-é", QR, 100); err != nil {
		t.Fatalf("QR should encode non-ASCII text: %v", err)
	}
}

func TestParseKind(t *testing.T) {
	tests := map[string]Kind{"": QR, "qr": QR, "QR": QR, "code128": Code128, " Code-128 ": Code128}
	for in, want := range tests {
		got, err := ParseKind(in)
		if err != nil || got != want {
			t.Errorf("ParseKind(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseKind("ean13"); err == nil {
		t.Error("ParseKind(ean13) should fail")
	}
}

func TestCache(t *testing.T) {
	c := NewCache()

	var wg sync.WaitGroup
	results := make([]*Symbol, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sym, err := c.Get("J1001-1", QR, 0)
			if err != nil {
				t.Errorf("Get: %v", err)
				return
			}
			results[i] = sym
		}(i)
	}
	wg.Wait()

	if c.Len() != 1 {
		t.Fatalf("cache holds %d entries, want 1", c.Len())
	}
	first, _ := c.Get("J1001-1", QR, DefaultSize)
	for i, sym := range results {
		if sym == nil || !bytes.Equal(sym.PNG, first.PNG) {
			t.Errorf("result %d differs from cached symbol", i)
		}
	}

	if _, err := c.Get("J1001-é", Code128, 0); err == nil {
		t.Error("expected encoding error")
	}
	if c.Len() != 1 {
		t.Errorf("failed encodings must not be cached, have %d entries", c.Len())
	}

	c.Reset()
	if c.Len() != 0 {
		t.Fatalf("Reset left %d entries", c.Len())
	}
	again, err := c.Get("J1001-1", QR, DefaultSize)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(again.PNG, first.PNG) {
		t.Error("re-encoded symbol differs after Reset")
	}
}
