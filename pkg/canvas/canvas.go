// Package canvas renders document pages onto raster surfaces for interactive
// placement of stamps.
//
// A page is rendered at a scale and a rotation in {0, 90, 180, 270}. Rotation
// happens about the surface centre, so a rotated page stays fully visible;
// when the requested surface is larger than the scaled page, the page is
// centred in it. Every Surface remembers the affine transform it was drawn
// with, which is how screen points are mapped back to page points.
//
// Renders can be slow (PDF rasterization runs an external process), so View
// serializes them with superseding semantics: a new request cancels the one
// in flight and only the newest result becomes visible.
package canvas

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/gardar/pagestamp/pkg/document"
)

// Params controls how a page is rendered.
type Params struct {
	Scale      float64     // Pixels per page unit (0 = 1)
	Rotation   int         // Clockwise degrees, a multiple of 90
	Width      int         // Surface width in pixels (0 = fit the rotated page)
	Height     int         // Surface height in pixels (0 = fit the rotated page)
	Background color.Color // Fill around the page (nil = white)
}

// Surface is a rendered page.
type Surface struct {
	Image    *image.RGBA
	Page     int     // 1-based page number
	Scale    float64 // Scale the page was rendered at
	Rotation int     // Normalized rotation in degrees

	// Placement of the rotated page inside Image
	OffsetX, OffsetY int
	PageW, PageH     float64 // Page size in page units

	toSurface f64.Aff3
	toPage    f64.Aff3
}

// NormalizeRotation folds degrees into [0, 360) and rejects angles that are
// not a multiple of 90.
func NormalizeRotation(degrees int) (int, error) {
	if degrees%90 != 0 {
		return 0, fmt.Errorf("rotation must be a multiple of 90 degrees, got %d", degrees)
	}
	r := degrees % 360
	if r < 0 {
		r += 360
	}
	return r, nil
}

// RenderPage renders page n of doc. It honours ctx cancellation between the
// expensive steps and returns ctx.Err() when cancelled.
func RenderPage(ctx context.Context, doc *document.Document, n int, params Params) (*Surface, error) {
	rotation, err := NormalizeRotation(params.Rotation)
	if err != nil {
		return nil, err
	}
	scale := params.Scale
	if scale == 0 {
		scale = 1
	}
	if scale < 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return nil, fmt.Errorf("invalid scale %g", params.Scale)
	}
	page, err := doc.Page(n)
	if err != nil {
		return nil, err
	}

	// Natural viewport of the page at this scale
	sw := pixels(page.Width * scale)
	sh := pixels(page.Height * scale)

	raster, err := doc.Rasterize(ctx, n, scale)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b := raster.Bounds(); b.Dx() != sw || b.Dy() != sh {
		raster = document.Resample(raster, sw, sh, draw.ApproxBiLinear)
	}

	rotated := rotate(raster, rotation)
	rw, rh := rotated.Bounds().Dx(), rotated.Bounds().Dy()

	width, height := params.Width, params.Height
	if width <= 0 {
		width = rw
	}
	if height <= 0 {
		height = rh
	}
	offX := (width - rw) / 2
	offY := (height - rh) / 2

	bg := params.Background
	if bg == nil {
		bg = color.White
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(offX, offY, offX+rw, offY+rh), rotated, rotated.Bounds().Min, draw.Src)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sx := float64(sw) / page.Width
	sy := float64(sh) / page.Height
	fwd := pageTransform(rotation, sx, sy, float64(sw), float64(sh), float64(offX), float64(offY))

	return &Surface{
		Image:     dst,
		Page:      n,
		Scale:     scale,
		Rotation:  rotation,
		OffsetX:   offX,
		OffsetY:   offY,
		PageW:     page.Width,
		PageH:     page.Height,
		toSurface: fwd,
		toPage:    invert(fwd),
	}, nil
}

// SurfaceToPagePoint maps a surface pixel position to page units with a
// top-left page origin.
func (s *Surface) SurfaceToPagePoint(x, y float64) (float64, float64) {
	return apply(s.toPage, x, y)
}

// PageToSurfacePoint maps a page point (top-left origin) to surface pixels.
func (s *Surface) PageToSurfacePoint(x, y float64) (float64, float64) {
	return apply(s.toSurface, x, y)
}

// ContainsPagePoint reports whether the page point lies on the page.
func (s *Surface) ContainsPagePoint(x, y float64) bool {
	return x >= 0 && y >= 0 && x <= s.PageW && y <= s.PageH
}

func pixels(v float64) int {
	p := int(math.Round(v))
	if p < 1 {
		p = 1
	}
	return p
}
