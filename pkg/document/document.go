// Package document loads stamping sources into page-addressable documents.
//
// A source is either a PDF or a single raster image (JPEG, PNG or WebP). PDFs
// are parsed for their page count and page boxes without being rendered;
// images become a one-page document whose page is the whole image. Loading
// never modifies the caller's bytes. PDFs that use cross-reference streams or
// object streams are rewritten once, at load time, with a classic
// cross-reference table; page content is left as it is.
//
// The Loader is configured once, explicitly, with the rasterizers used for
// previews. Rendering is a read path only: stamped output is always built from
// the original source bytes, never from a rasterized preview.
//
// Main Functions:
//
// - NewLoader: Creates a Loader from a Config
// - Loader.Load / Loader.LoadNamed: Parse a source into a Document
// - RenderThumbnail: Low fidelity page preview for navigation
// - CheckStampLayer: Detects whether a PDF already carries stamps
package document

import (
	"bytes"
	"context"
	"fmt"
	"image"
)

// Format names of supported sources.
const (
	FormatPDF  = "pdf"
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
	FormatWebP = "webp"
)

// Page describes one page of a document. Width and Height are in page units:
// points for PDFs, pixels for raster images.
type Page struct {
	Number int
	Width  float64
	Height float64
}

// Document is an immutable, loaded source.
type Document struct {
	name       string
	source     []byte
	format     string
	pages      []Page
	layers     []string
	stamped    bool
	rasterizer Rasterizer
}

// Name returns the name the document was loaded under, if any.
func (d *Document) Name() string { return d.name }

// Format returns the source format (FormatPDF, FormatJPEG, ...).
func (d *Document) Format() string { return d.format }

// PageCount returns the number of pages (at least 1).
func (d *Document) PageCount() int { return len(d.pages) }

// IsRasterImage reports whether the source is a single raster image.
func (d *Document) IsRasterImage() bool { return d.format != FormatPDF }

// Layers returns the optional content groups found in a PDF source.
func (d *Document) Layers() []string {
	return append([]string(nil), d.layers...)
}

// HasStampLayer reports whether the PDF source already contains a stamp
// layer, i.e. it is itself the output of a previous stamping run.
func (d *Document) HasStampLayer() bool { return d.stamped }

// Size returns the length of the source in bytes.
func (d *Document) Size() int { return len(d.source) }

// Open returns a read-only reader positioned at the start of the source.
// Each call returns an independent reader, so concurrent users do not share
// a read offset.
func (d *Document) Open() *bytes.Reader { return bytes.NewReader(d.source) }

// Page returns the metadata of page n (1-based).
func (d *Document) Page(n int) (Page, error) {
	if err := d.checkPage(n); err != nil {
		return Page{}, err
	}
	return d.pages[n-1], nil
}

// Pages returns the metadata of every page in order.
func (d *Document) Pages() []Page {
	return append([]Page(nil), d.pages...)
}

// Rasterize renders page n at the given scale with the rasterizer the
// document was loaded with. A scale of 1 yields one pixel per page unit.
func (d *Document) Rasterize(ctx context.Context, n int, scale float64) (image.Image, error) {
	if err := d.checkPage(n); err != nil {
		return nil, err
	}
	if scale <= 0 {
		return nil, fmt.Errorf("scale must be positive, got %g", scale)
	}
	if d.rasterizer == nil {
		return nil, ErrNoRasterizer
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d.rasterizer.RasterizePage(ctx, d, n, scale)
}

func (d *Document) checkPage(n int) error {
	if n < 1 || n > len(d.pages) {
		return &PageRangeError{Page: n, PageCount: len(d.pages)}
	}
	return nil
}
