package stamp

import (
	"bytes"
	"fmt"

	"codeberg.org/go-pdf/fpdf"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// drawStampLayer draws the stamp into its own layer on the current page:
// backing box, symbol, then the text lines top to bottom.
func (c *Compositor) drawStampLayer(pdf *fpdf.Fpdf, l Layout, symbolPNG []byte, pageNum int) {
	font := c.config.Font

	layer := pdf.AddLayer(c.config.LayerName, true)
	pdf.BeginLayer(layer)

	pdf.SetFillColor(255, 255, 255)
	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(0.5)
	pdf.Rect(l.Box.X, l.Box.Y, l.Box.W, l.Box.H, "FD")

	opts := fpdf.ImageOptions{ReadDpi: false, ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("symbol", opts, bytes.NewReader(symbolPNG))
	pdf.ImageOptions("symbol", l.Symbol.X, l.Symbol.Y, l.Symbol.W, l.Symbol.H, false, opts, 0, "")

	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont(font.Name, font.Style, font.Size)
	for _, line := range l.Lines {
		text, lossy := c.encodeLabel(line.Text)
		if lossy {
			c.warnf("page %d: %q has characters the stamp font cannot show", pageNum, line.Text)
		}
		pdf.Text(line.X, line.Y, text)
	}

	if c.config.Debug {
		pdf.SetDrawColor(255, 0, 0)
		pdf.Rect(l.Symbol.X, l.Symbol.Y, l.Symbol.W, l.Symbol.H, "D")
		for _, line := range l.Lines {
			pdf.Line(l.Box.X, line.Y, l.Box.X+l.Box.W, line.Y)
		}
	}

	pdf.EndLayer()
}

// encodeLabel converts text to Windows-1252, the encoding of the core PDF
// fonts. Characters outside it are replaced and lossy is set.
func (c *Compositor) encodeLabel(text string) (encoded string, lossy bool) {
	s, err := charmap.Windows1252.NewEncoder().String(text)
	if err == nil {
		return s, false
	}
	s, _ = encoding.ReplaceUnsupported(charmap.Windows1252.NewEncoder()).String(text)
	return s, true
}

func (c *Compositor) warnf(format string, args ...interface{}) {
	if !c.config.LogWarnings {
		return
	}
	c.logMu.Lock()
	defer c.logMu.Unlock()
	fmt.Fprintf(getLogger(c.config.Logger), "Warning: "+format+"\n", args...)
}
