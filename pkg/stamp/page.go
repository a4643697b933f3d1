package stamp

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"time"

	"codeberg.org/go-pdf/fpdf"
	"codeberg.org/go-pdf/fpdf/contrib/gofpdi"
	_ "golang.org/x/image/webp"

	"github.com/gardar/pagestamp/pkg/assign"
	"github.com/gardar/pagestamp/pkg/document"
)

// compositePage builds the stamped single-page document for one plan entry.
// The PDF importer panics on malformed input, so panics are turned into
// errors here.
func (c *Compositor) compositePage(doc *document.Document, pp assign.PlannedPage) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			data, err = nil, fmt.Errorf("page import failed: %v", r)
		}
	}()

	sym, err := c.Symbol(pp.Identifier)
	if err != nil {
		return nil, err
	}
	page, err := doc.Page(pp.Page)
	if err != nil {
		return nil, err
	}

	pdf := fpdf.New("P", "pt", "", "")
	pdf.SetCompression(c.config.Compression)
	pdf.SetCreator("pagestamp", true)
	pdf.SetTitle(pp.Identifier, true)
	pdf.SetCreationDate(time.Now())
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPageFormat("P", fpdf.SizeType{Wd: page.Width, Ht: page.Height})

	if doc.IsRasterImage() {
		err = embedImagePage(pdf, doc, page)
	} else {
		importPDFPage(pdf, doc, page)
	}
	if err != nil {
		return nil, err
	}
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("failed to place source page: %w", err)
	}

	font := c.config.Font
	pdf.SetFont(font.Name, font.Style, font.Size)
	layout := c.layout(pdf, page.Width, page.Height, pp.Identifier, pp.Material, pp.Placement, sym)
	c.drawStampLayer(pdf, layout, sym.PNG, pp.Page)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// importPDFPage copies the source page into pdf as a template, keeping its
// object graph intact.
func importPDFPage(pdf *fpdf.Fpdf, doc *document.Document, page document.Page) {
	importer := gofpdi.NewImporter()
	rs := io.ReadSeeker(doc.Open())
	tpl := importer.ImportPageFromStream(pdf, &rs, page.Number, "/MediaBox")
	importer.UseImportedTemplate(pdf, tpl, 0, 0, page.Width, 0)
}

// embedImagePage places the original image bytes over the whole page. WebP,
// and PNG variants the PDF writer cannot parse, are re-encoded as 8-bit PNG.
func embedImagePage(pdf *fpdf.Fpdf, doc *document.Document, page document.Page) error {
	src, err := io.ReadAll(doc.Open())
	if err != nil {
		return err
	}

	imageType := fpdfImageType(doc.Format())
	if imageType != "" {
		opts := fpdf.ImageOptions{ReadDpi: false, ImageType: imageType}
		pdf.RegisterImageOptionsReader("page", opts, bytes.NewReader(src))
		if pdf.Ok() {
			pdf.ImageOptions("page", 0, 0, page.Width, page.Height, false, opts, 0, "")
			return nil
		}
		if imageType != "PNG" {
			return fmt.Errorf("failed to embed %s image: %w", doc.Format(), pdf.Error())
		}
		pdf.ClearError()
	}

	converted, err := reencodePNG(src)
	if err != nil {
		return fmt.Errorf("failed to convert %s image: %w", doc.Format(), err)
	}
	opts := fpdf.ImageOptions{ReadDpi: false, ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("page-png", opts, bytes.NewReader(converted))
	pdf.ImageOptions("page-png", 0, 0, page.Width, page.Height, false, opts, 0, "")
	return nil
}

// fpdfImageType maps a document format to a type the PDF writer embeds
// directly, or "" when the image has to be converted first.
func fpdfImageType(format string) string {
	switch format {
	case document.FormatJPEG:
		return "JPG"
	case document.FormatPNG:
		return "PNG"
	default:
		return ""
	}
}

// reencodePNG decodes any registered image format and encodes it as a
// non-interlaced 8-bit PNG.
func reencodePNG(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	nrgba := image.NewNRGBA(image.Rect(0, 0, img.Bounds().Dx(), img.Bounds().Dy()))
	draw.Draw(nrgba, nrgba.Bounds(), img, img.Bounds().Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, nrgba); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
