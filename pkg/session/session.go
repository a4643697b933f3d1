// Package session drives one operator through stamping a document: load,
// assign identifiers with live preview, validate, composite, then deliver
// the batch locally and/or submit it to the task service.
//
// A Session is bound to a context that is cancelled on Close or when the
// task service rejects the credential. Teardown cancels any render in
// flight; afterwards only local delivery of an existing batch still works.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/rs/xid"

	"github.com/gardar/pagestamp/pkg/assign"
	"github.com/gardar/pagestamp/pkg/canvas"
	"github.com/gardar/pagestamp/pkg/delivery"
	"github.com/gardar/pagestamp/pkg/document"
	"github.com/gardar/pagestamp/pkg/stamp"
	"github.com/gardar/pagestamp/pkg/taskapi"
)

// Controller opens sessions. It holds the shared, explicitly initialized
// collaborators: loader, compositor (and its symbol cache), submitter.
type Controller struct {
	config Config
}

// NewController returns a controller; zero fields of config get defaults.
func NewController(config Config) *Controller {
	config.defaults()
	return &Controller{config: config}
}

// Session is one document being stamped.
type Session struct {
	id   string
	name string
	doc  *document.Document
	ctrl *Controller
	log  *slog.Logger
	view canvas.View

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	store     *assign.Store
	batch     []stamp.Output
	printed   map[string]bool
	submitted bool
	closed    bool
}

// Open loads source and starts a session with the given head identifier.
func (c *Controller) Open(ctx context.Context, name string, source []byte, head string) (*Session, error) {
	doc, err := c.config.Loader.LoadNamed(name, source)
	if err != nil {
		return nil, err
	}
	if doc.HasStampLayer() {
		if !c.config.Force {
			return nil, fmt.Errorf("%s: %w (layer %q found)", doc.Name(), ErrAlreadyStamped, c.config.Compositor.Config().LayerName)
		}
		c.config.Logger.Warn("stamping a document that is already stamped", "document", doc.Name())
	}

	store, err := assign.NewStore(head, doc.PageCount(), c.config.Materials)
	if err != nil {
		return nil, err
	}

	id := xid.New().String()
	sctx, cancel := context.WithCancel(ctx)
	s := &Session{
		id:      id,
		name:    doc.Name(),
		doc:     doc,
		ctrl:    c,
		log:     c.config.Logger.With("session", id),
		ctx:     sctx,
		cancel:  cancel,
		store:   store,
		printed: make(map[string]bool),
	}
	s.log.Info("document loaded",
		"document", doc.Name(),
		"format", doc.Format(),
		"pages", doc.PageCount(),
		"head", store.Head())
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Document returns the loaded document.
func (s *Session) Document() *document.Document { return s.doc }

// Phase returns the state of the assignment store.
func (s *Session) Phase() assign.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Phase()
}

// Head returns the head identifier.
func (s *Session) Head() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Head()
}

// Assignment returns the current state of a page.
func (s *Session) Assignment(page int) (assign.PageAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Assignment(page)
}

// Thumbnails renders every page at targetWidth pixels for navigation.
func (s *Session) Thumbnails(ctx context.Context, targetWidth int) ([]image.Image, error) {
	ctx, done, err := s.bind(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	thumbs := make([]image.Image, s.doc.PageCount())
	for i := range thumbs {
		img, err := document.RenderThumbnail(ctx, s.doc, i+1, targetWidth)
		if err != nil {
			return nil, fmt.Errorf("thumbnail of page %d: %w", i+1, err)
		}
		thumbs[i] = img
	}
	return thumbs, nil
}

// Preview renders a page with its stamp overlaid. The boolean is false when
// the render was superseded by a newer Preview or cut short by teardown;
// that is not an error.
func (s *Session) Preview(ctx context.Context, page int, params canvas.Params) (*canvas.Surface, bool, error) {
	ctx, done, err := s.bind(ctx)
	if err != nil {
		return nil, false, err
	}
	defer done()

	s.mu.Lock()
	a, err := s.store.Assignment(page)
	if err != nil {
		s.mu.Unlock()
		return nil, false, err
	}
	id := assign.FullIdentifier(s.store.Head(), a.Suffix)
	qualifies, _ := s.store.Qualifies(page)
	s.mu.Unlock()

	surface, err := s.view.Render(ctx, s.doc, page, params)
	switch {
	case errors.Is(err, canvas.ErrSuperseded):
		s.log.Debug("preview superseded", "page", page)
		return nil, false, nil
	case err != nil && s.ctx.Err() != nil:
		s.log.Debug("preview cancelled by teardown", "page", page)
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}

	if qualifies {
		surface.DrawStampPreview(s.stampPreview(surface, id, a))
	}
	return surface, true, nil
}

// stampPreview lays the stamp out exactly as the compositor will.
func (s *Session) stampPreview(surface *canvas.Surface, id string, a assign.PageAssignment) canvas.StampPreview {
	comp := s.ctrl.config.Compositor
	sym, err := comp.Symbol(id)
	if err != nil {
		s.log.Warn("identifier cannot be encoded", "page", a.Page, "identifier", id, "error", err)
		sym = nil
	}
	l := comp.Layout(surface.PageW, surface.PageH, id, a.Material(), a.Placement, sym)

	p := canvas.StampPreview{
		Box:        canvas.Rect(l.Box),
		SymbolRect: canvas.Rect(l.Symbol),
	}
	if sym != nil {
		p.Symbol = sym.Image
	}
	for _, line := range l.Lines {
		p.Lines = append(p.Lines, line.Text)
	}
	return p
}

// Current returns the last completed preview surface.
func (s *Session) Current() *canvas.Surface { return s.view.Current() }

// Assign sets the suffix and material of a page.
func (s *Session) Assign(page int, suffix, material string) error {
	return s.edit(func(st *assign.Store) error { return st.SetAssignment(page, suffix, material) })
}

// SetSuffix changes only the suffix of a page.
func (s *Session) SetSuffix(page int, suffix string) error {
	return s.edit(func(st *assign.Store) error { return st.SetSuffix(page, suffix) })
}

// SetMaterialSlot sets one of the two material slots of a page.
func (s *Session) SetMaterialSlot(page, slot int, code string) error {
	return s.edit(func(st *assign.Store) error { return st.SetMaterialSlot(page, slot, code) })
}

// SetPlacement pins the stamp of a page to a page point.
func (s *Session) SetPlacement(page int, x, y float64) error {
	return s.edit(func(st *assign.Store) error { return st.SetPlacement(page, x, y) })
}

// PlaceAt pins the stamp of the page shown on surface to the page point under
// the surface pixel (x, y).
func (s *Session) PlaceAt(surface *canvas.Surface, x, y float64) error {
	px, py := surface.SurfaceToPagePoint(x, y)
	if !surface.ContainsPagePoint(px, py) {
		return fmt.Errorf("point (%g, %g) is outside page %d", x, y, surface.Page)
	}
	return s.SetPlacement(surface.Page, px, py)
}

// ClearPlacement returns a page to the default stamp corner.
func (s *Session) ClearPlacement(page int) error {
	return s.edit(func(st *assign.Store) error { return st.ClearPlacement(page) })
}

// SetHead changes the head identifier.
func (s *Session) SetHead(head string) error {
	return s.edit(func(st *assign.Store) error { return st.SetHead(head) })
}

// Reopen unlocks a validated or stamped session for editing. A previous
// batch is discarded.
func (s *Session) Reopen() error {
	return s.edit(func(st *assign.Store) error {
		if err := st.Reopen(); err != nil {
			return err
		}
		s.batch = nil
		s.printed = make(map[string]bool)
		s.submitted = false
		return nil
	})
}

func (s *Session) edit(fn func(*assign.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	return fn(s.store)
}

// Validate checks all pages for duplicate identifiers and identifiers that
// cannot name an output file. On success the
// assignments stay locked until Composite finishes or Reopen is called.
func (s *Session) Validate() (*assign.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	plan, err := s.store.ValidateAll()
	if err != nil {
		var dup *assign.DuplicateIdentifierError
		if errors.As(err, &dup) {
			s.log.Warn("duplicate identifiers", "identifiers", dup.Identifiers)
		}
		var inv *assign.InvalidIdentifierError
		if errors.As(err, &inv) {
			s.log.Warn("identifiers cannot name a file", "pages", inv.Pages)
		}
		return nil, err
	}
	s.log.Info("assignments validated", "pages", len(plan.Pages))
	return plan, nil
}

// Composite stamps the pages of a plan returned by Validate. The batch is
// kept by the session. On failure nothing is kept and the assignments are
// editable again.
func (s *Session) Composite(ctx context.Context, plan *assign.Plan) ([]stamp.Output, error) {
	ctx, done, err := s.bind(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	s.mu.Lock()
	err = s.store.BeginCompositing(plan)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	outputs, err := s.ctrl.config.Compositor.Composite(ctx, s.doc, plan)

	s.mu.Lock()
	defer s.mu.Unlock()
	if endErr := s.store.EndCompositing(err); endErr != nil {
		return nil, endErr
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			s.log.Debug("compositing cancelled")
		} else {
			s.log.Error("compositing failed", "error", err)
		}
		return nil, err
	}
	s.batch = outputs
	s.printed = make(map[string]bool)
	s.submitted = false
	s.log.Info("batch composited", "outputs", len(outputs))
	return cloneOutputs(outputs), nil
}

// Stamp validates and composites in one step.
func (s *Session) Stamp(ctx context.Context) ([]stamp.Output, error) {
	plan, err := s.Validate()
	if err != nil {
		return nil, err
	}
	return s.Composite(ctx, plan)
}

// Batch returns the last composited batch.
func (s *Session) Batch() []stamp.Output {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneOutputs(s.batch)
}

// Download writes the batch into dir and marks each file delivered. It works
// after teardown so a batch is never lost to a rejected credential.
func (s *Session) Download(dir string, overwrite bool) ([]string, error) {
	batch := s.Batch()
	if len(batch) == 0 {
		return nil, ErrNoBatch
	}
	paths, err := delivery.WriteDir(dir, batch, overwrite)
	for i := range paths {
		s.MarkPrinted(batch[i].Name)
	}
	if err != nil {
		return paths, err
	}
	s.log.Info("batch written", "dir", dir, "files", len(paths))
	return paths, nil
}

// DownloadZip writes the batch as one zip archive.
func (s *Session) DownloadZip(w io.Writer) error {
	batch := s.Batch()
	if len(batch) == 0 {
		return ErrNoBatch
	}
	if err := delivery.WriteZip(w, batch); err != nil {
		return err
	}
	for _, o := range batch {
		s.MarkPrinted(o.Name)
	}
	return nil
}

// Handler serves the batch over HTTP; each download marks its file.
func (s *Session) Handler() (http.Handler, error) {
	batch := s.Batch()
	if len(batch) == 0 {
		return nil, ErrNoBatch
	}
	title := s.Head()
	if title == "" {
		title = s.name
	}
	return delivery.NewHandler(title, batch, func(name string) { s.MarkPrinted(name) }), nil
}

// Submit sends the batch to the task service. A failed submission keeps the
// batch for local download and can be retried without recompositing. When
// the service rejects the credential the session is torn down and the error
// wraps both ErrSessionClosed and taskapi.ErrUnauthorized.
func (s *Session) Submit(ctx context.Context, head taskapi.Head) (*taskapi.Receipt, error) {
	sub := s.ctrl.config.Submitter
	if sub == nil {
		return nil, ErrSubmissionDisabled
	}
	ctx, done, err := s.bind(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	batch := s.Batch()
	if len(batch) == 0 {
		return nil, ErrNoBatch
	}
	files := make([]taskapi.File, len(batch))
	for i, o := range batch {
		files[i] = taskapi.File{
			Name:       o.Name,
			Data:       o.Data,
			Page:       o.Page,
			Identifier: o.Identifier,
			Material:   o.Material,
		}
	}

	receipt, err := sub.Submit(ctx, head, files)
	if errors.Is(err, taskapi.ErrUnauthorized) {
		s.log.Warn("credential rejected, closing session")
		s.Close()
		return nil, fmt.Errorf("%w: %w", ErrSessionClosed, err)
	}
	if err != nil {
		s.log.Warn("submission failed, batch kept for download", "error", err)
		return nil, err
	}

	s.mu.Lock()
	s.submitted = true
	s.mu.Unlock()
	s.log.Info("batch submitted", "files", len(files), "status", receipt.StatusCode)
	return receipt, nil
}

// Submitted reports whether the current batch reached the task service.
func (s *Session) Submitted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitted
}

// MarkPrinted records that an output was delivered to the operator.
func (s *Session) MarkPrinted(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.batch {
		if o.Name == name {
			s.printed[name] = true
			return nil
		}
	}
	return fmt.Errorf("%q is not part of the batch", name)
}

// AllPrinted reports whether every output of a non-empty batch was delivered.
func (s *Session) AllPrinted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.batch) == 0 {
		return false
	}
	for _, o := range s.batch {
		if !s.printed[o.Name] {
			return false
		}
	}
	return true
}

// Close tears the session down. In-flight renders and compositing are
// cancelled. Closing twice is harmless.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.view.Stop()
	s.log.Info("session closed")
	return nil
}

// Closed reports whether the session was torn down.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// bind derives a context that is also cancelled by session teardown.
func (s *Session) bind(ctx context.Context) (context.Context, func(), error) {
	if s.Closed() {
		return nil, nil, ErrSessionClosed
	}
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}, nil
}

func cloneOutputs(outputs []stamp.Output) []stamp.Output {
	if outputs == nil {
		return nil
	}
	out := make([]stamp.Output, len(outputs))
	for i, o := range outputs {
		o.Data = bytes.Clone(o.Data)
		out[i] = o
	}
	return out
}
