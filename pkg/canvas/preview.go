package canvas

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Rect is an axis-aligned rectangle in page units, top-left origin.
type Rect struct {
	X, Y, W, H float64
}

// StampPreview describes a stamp laid out in page units, as the compositor
// will draw it.
type StampPreview struct {
	Box        Rect        // White backing box
	SymbolRect Rect        // Where the symbol goes
	Symbol     image.Image // Optional; a grey placeholder is drawn when nil
	Lines      []string    // Text lines under the symbol
}

var placeholderGrey = color.Gray{Y: 0xc0}

// DrawStampPreview overlays a stamp preview on the surface. Text is always
// drawn upright so it stays readable on rotated pages; lines that do not fit
// the rotated text area are clipped.
func (s *Surface) DrawStampPreview(p StampPreview) {
	box := s.surfaceRect(p.Box)
	draw.Draw(s.Image, box, image.White, image.Point{}, draw.Src)
	outline(s.Image, box, color.Black)

	sym := s.surfaceRect(p.SymbolRect)
	if p.Symbol != nil {
		rotated := rotate(p.Symbol, s.Rotation)
		draw.NearestNeighbor.Scale(s.Image, sym, rotated, rotated.Bounds(), draw.Src, nil)
	} else {
		draw.Draw(s.Image, sym, image.NewUniform(placeholderGrey), image.Point{}, draw.Src)
	}

	// Text fills the part of the box below the symbol on the page, wherever
	// the rotation puts it, and is clipped to that area.
	textPage := Rect{X: p.Box.X, Y: p.SymbolRect.Y + p.SymbolRect.H, W: p.Box.W}
	textPage.H = p.Box.Y + p.Box.H - textPage.Y
	if len(p.Lines) == 0 || textPage.H <= 0 {
		return
	}
	area := s.surfaceRect(textPage).Intersect(box)

	face := basicfont.Face7x13
	d := &font.Drawer{Dst: s.Image.SubImage(area).(*image.RGBA), Src: image.Black, Face: face}
	lineHeight := face.Metrics().Height
	mid := fixed.I(area.Min.X+area.Max.X) / 2
	y := fixed.I(area.Min.Y) + face.Metrics().Ascent
	for _, line := range p.Lines {
		w := d.MeasureString(line)
		d.Dot = fixed.Point26_6{X: mid - w/2, Y: y}
		d.DrawString(line)
		y += lineHeight
	}
}

// surfaceRect maps a page rectangle to the pixel rectangle covering it.
func (s *Surface) surfaceRect(r Rect) image.Rectangle {
	x0, y0 := s.PageToSurfacePoint(r.X, r.Y)
	x1, y1 := s.PageToSurfacePoint(r.X+r.W, r.Y+r.H)
	return image.Rect(
		int(math.Floor(math.Min(x0, x1))), int(math.Floor(math.Min(y0, y1))),
		int(math.Ceil(math.Max(x0, x1))), int(math.Ceil(math.Max(y0, y1))),
	)
}

func outline(dst draw.Image, r image.Rectangle, c color.Color) {
	for x := r.Min.X; x < r.Max.X; x++ {
		dst.Set(x, r.Min.Y, c)
		dst.Set(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		dst.Set(r.Min.X, y, c)
		dst.Set(r.Max.X-1, y, c)
	}
}
