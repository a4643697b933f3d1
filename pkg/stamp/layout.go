package stamp

import (
	"math"

	"codeberg.org/go-pdf/fpdf"

	"github.com/gardar/pagestamp/pkg/assign"
	"github.com/gardar/pagestamp/pkg/symbol"
)

// Rect is a rectangle in page units with a top-left origin.
type Rect struct {
	X, Y, W, H float64
}

// TextLine is a line of stamp text and its baseline origin.
type TextLine struct {
	Text string
	X, Y float64
}

// Layout is the geometry of one stamp: a white box holding the symbol with
// the identifier and material lines stacked under it.
type Layout struct {
	Box    Rect
	Symbol Rect
	Lines  []TextLine
}

// Layout computes where the stamp for a page goes. sym may be nil, in which
// case the symbol is sized from the configured symbology alone. The geometry
// is the one Composite draws, so it can be used for previews.
func (c *Compositor) Layout(pageW, pageH float64, identifier, material string, placement *assign.Placement, sym *symbol.Symbol) Layout {
	m := newMeasurer(c.config.Font)
	return c.layout(m, pageW, pageH, identifier, material, placement, sym)
}

func (c *Compositor) layout(m *fpdf.Fpdf, pageW, pageH float64, identifier, material string, placement *assign.Placement, sym *symbol.Symbol) Layout {
	cfg := c.config
	font := cfg.Font
	pad := cfg.Padding
	lineH := font.Size * font.LineSpacing

	symW := cfg.SymbolWidth
	symH := symW
	switch {
	case sym != nil && sym.Width() > 0:
		symH = symW * float64(sym.Height()) / float64(sym.Width())
	case cfg.Symbol == symbol.Code128:
		symH = symW / 3
	}

	texts := []string{identifier}
	if material != "" {
		texts = append(texts, material)
	}
	widths := make([]float64, len(texts))
	contentW := symW
	for i, t := range texts {
		label, _ := c.encodeLabel(t)
		widths[i] = m.GetStringWidth(label)
		contentW = math.Max(contentW, widths[i])
	}

	boxW := contentW + 2*pad
	boxH := pad + symH + pad/2 + float64(len(texts))*lineH + pad/2

	var x, y float64
	if placement != nil {
		x, y = placement.X, placement.Y
	} else {
		x, y = cfg.Margin, cfg.Margin
		if cfg.Anchor == TopRight || cfg.Anchor == BottomRight {
			x = pageW - cfg.Margin - boxW
		}
		if cfg.Anchor == BottomLeft || cfg.Anchor == BottomRight {
			y = pageH - cfg.Margin - boxH
		}
	}
	// Keep the whole stamp on the page.
	x = clamp(x, 0, pageW-boxW)
	y = clamp(y, 0, pageH-boxH)

	l := Layout{
		Box:    Rect{X: x, Y: y, W: boxW, H: boxH},
		Symbol: Rect{X: x + (boxW-symW)/2, Y: y + pad, W: symW, H: symH},
	}
	top := y + pad + symH + pad/2
	for i, t := range texts {
		baseline := top + float64(i)*lineH + (lineH-font.Size)/2 + font.Size*font.AscentRatio
		l.Lines = append(l.Lines, TextLine{Text: t, X: x + (boxW-widths[i])/2, Y: baseline})
	}
	return l
}

// newMeasurer returns a page-less document used only for string widths.
func newMeasurer(font FontConfig) *fpdf.Fpdf {
	m := fpdf.New("P", "pt", "A4", "")
	m.SetFont(font.Name, font.Style, font.Size)
	return m
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		return lo
	}
	return math.Min(math.Max(v, lo), hi)
}
