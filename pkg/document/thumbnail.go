package document

import (
	"context"
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// DefaultThumbnailWidth matches the navigation strip of the stamping screen.
const DefaultThumbnailWidth = 120

// RenderThumbnail renders page n at low fidelity, targetWidth pixels wide.
// The result is a navigation aid only and is never used for compositing.
func RenderThumbnail(ctx context.Context, doc *Document, n int, targetWidth int) (image.Image, error) {
	if targetWidth <= 0 {
		targetWidth = DefaultThumbnailWidth
	}
	page, err := doc.Page(n)
	if err != nil {
		return nil, err
	}

	scale := float64(targetWidth) / page.Width
	raster, err := doc.Rasterize(ctx, n, scale)
	if err != nil {
		return nil, fmt.Errorf("failed to render thumbnail of page %d: %w", n, err)
	}

	// Rasterizers round differently; pin the width and keep the aspect ratio
	b := raster.Bounds()
	if b.Dx() == targetWidth {
		return raster, nil
	}
	height := scaledDim(b.Dy(), float64(targetWidth)/float64(b.Dx()))
	return Resample(raster, targetWidth, height, draw.ApproxBiLinear), nil
}
