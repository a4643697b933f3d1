package document

import (
	"errors"
	"fmt"
)

// ErrNoRasterizer is returned when a page is rendered but the loader was
// configured without a rasterizer for the document's format.
var ErrNoRasterizer = errors.New("no rasterizer configured for this document format")

// UnsupportedFormatError reports a source that is neither a PDF nor a
// supported raster image.
type UnsupportedFormatError struct {
	Name   string // Source name, if known
	Detail string // What was found instead
	Err    error  // Underlying parse error, if any
}

func (e *UnsupportedFormatError) Error() string {
	msg := "unsupported document format"
	if e.Name != "" {
		msg += " for " + e.Name
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UnsupportedFormatError) Unwrap() error { return e.Err }

// PageRangeError reports a page number outside the document.
type PageRangeError struct {
	Page      int
	PageCount int
}

func (e *PageRangeError) Error() string {
	return fmt.Sprintf("page %d out of range (document has %d pages)", e.Page, e.PageCount)
}
