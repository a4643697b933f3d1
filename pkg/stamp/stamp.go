// Package stamp composites task identifiers onto document pages.
//
// Every qualifying page of a validated plan becomes its own single-page PDF.
// Pages of a PDF source are imported as form XObjects, so the original vector
// content stays selectable and is never re-rendered; raster sources are
// embedded image bytes. The stamp itself is drawn on top, in an optional
// content group (layer) that PDF viewers can toggle:
//
//   - an opaque white box, so the drawing underneath cannot hurt scan contrast
//   - the QR code or Code 128 barcode encoding the full identifier
//   - the identifier text
//   - the material label, when the page has one
//
// Compositing a batch is all or nothing: if any page fails, no output is
// returned and the error names the page.
//
// Main Functions:
//
// - NewCompositor: Builds a compositor from a Config and a symbol cache
// - Composite: Stamps every page of an assign.Plan
// - Layout: Computes stamp geometry for previews
package stamp

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/gardar/pagestamp/pkg/assign"
	"github.com/gardar/pagestamp/pkg/document"
	"github.com/gardar/pagestamp/pkg/symbol"
)

// OutputExt is the extension of every stamped output.
const OutputExt = ".pdf"

// Output is one stamped single-page document.
type Output struct {
	Name       string // "{Identifier}.pdf"
	Data       []byte
	Page       int // Source page number
	Identifier string
	Material   string
}

// Compositor stamps pages. It is safe for concurrent use.
type Compositor struct {
	config Config
	cache  *symbol.Cache
	logMu  sync.Mutex
}

// NewCompositor returns a compositor. A nil cache gets a private one.
func NewCompositor(config Config, cache *symbol.Cache) *Compositor {
	if cache == nil {
		cache = symbol.NewCache()
	}
	return &Compositor{config: config.withDefaults(), cache: cache}
}

// Config returns the effective configuration.
func (c *Compositor) Config() Config { return c.config }

// Symbol returns the cached symbol for an identifier.
func (c *Compositor) Symbol(identifier string) (*symbol.Symbol, error) {
	return c.cache.Get(identifier, c.config.Symbol, c.config.SymbolSize)
}

// Composite stamps every page of plan. Outputs are returned in plan order.
// On failure the returned error is a *CompositingError (or ctx.Err()) and no
// outputs are returned.
func (c *Compositor) Composite(ctx context.Context, doc *document.Document, plan *assign.Plan) ([]Output, error) {
	if doc == nil {
		return nil, fmt.Errorf("document is nil")
	}
	if plan == nil {
		return nil, fmt.Errorf("plan is nil")
	}
	for _, pp := range plan.Pages {
		if _, err := doc.Page(pp.Page); err != nil {
			return nil, &CompositingError{Page: pp.Page, Identifier: pp.Identifier, Err: err}
		}
	}

	workers := c.config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	outputs := make([]Output, len(plan.Pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, pp := range plan.Pages {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := c.compositePage(doc, pp)
			if err != nil {
				return &CompositingError{Page: pp.Page, Identifier: pp.Identifier, Err: err}
			}
			outputs[i] = Output{
				Name:       pp.Identifier + OutputExt,
				Data:       data,
				Page:       pp.Page,
				Identifier: pp.Identifier,
				Material:   pp.Material,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	// A cancellation that raced the last page still voids the batch.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return outputs, nil
}
