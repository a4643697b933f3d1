package canvas

import (
	"context"
	"errors"
	"sync"

	"github.com/gardar/pagestamp/pkg/document"
)

// ErrSuperseded is returned by View.Render when a newer render request
// replaced this one before it finished.
var ErrSuperseded = errors.New("render superseded by a newer request")

// View owns the currently displayed surface. At most one render is in flight;
// starting a new one cancels the previous, and a superseded render never
// becomes Current.
type View struct {
	mu      sync.Mutex
	seq     uint64
	cancel  context.CancelFunc
	current *Surface
}

// Render renders page n and, if no newer request arrived meanwhile, makes the
// result the current surface.
func (v *View) Render(ctx context.Context, doc *document.Document, n int, params Params) (*Surface, error) {
	v.mu.Lock()
	if v.cancel != nil {
		v.cancel()
	}
	v.seq++
	seq := v.seq
	rctx, cancel := context.WithCancel(ctx)
	v.cancel = cancel
	v.mu.Unlock()

	surface, err := RenderPage(rctx, doc, n, params)

	v.mu.Lock()
	defer v.mu.Unlock()
	if seq != v.seq {
		cancel()
		return nil, ErrSuperseded
	}
	v.cancel = nil
	cancel()
	if err != nil {
		return nil, err
	}
	v.current = surface
	return surface, nil
}

// Current returns the last completed surface, or nil.
func (v *View) Current() *Surface {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// Stop cancels any in-flight render and forgets the current surface.
func (v *View) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	v.seq++
	v.current = nil
}
