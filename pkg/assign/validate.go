package assign

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Plan is the frozen result of a successful validation: the qualifying pages
// in page order with their identifiers.
type Plan struct {
	Head  string
	Pages []PlannedPage
}

// PlannedPage is one page to stamp.
type PlannedPage struct {
	Page       int
	Identifier string
	Suffix     string
	Material   string
	Placement  *Placement
}

// Identifiers returns the identifiers of the plan in page order.
func (p *Plan) Identifiers() []string {
	ids := make([]string, len(p.Pages))
	for i, pp := range p.Pages {
		ids[i] = pp.Identifier
	}
	return ids
}

// ValidateAll checks every qualifying page for duplicate full identifiers and
// for identifiers that cannot name an output file. All pages are examined
// before reporting; when both problems occur the error joins a
// *DuplicateIdentifierError and an *InvalidIdentifierError. On success the
// store moves to Validating and returns the plan; on failure it stays
// editable.
func (s *Store) ValidateAll() (*Plan, error) {
	switch s.phase {
	case Loaded, Assigning, Validating:
	default:
		return nil, fmt.Errorf("%w: store is %s", ErrLocked, s.phase)
	}

	plan := &Plan{Head: s.head}
	seen := make(map[string][]int)
	var invErr *InvalidIdentifierError
	for i := range s.pages {
		a := &s.pages[i]
		if !s.qualifies(a) {
			continue
		}
		id := FullIdentifier(s.head, a.Suffix)
		seen[id] = append(seen[id], a.Page)
		if !validFileIdentifier(id) {
			if invErr == nil {
				invErr = &InvalidIdentifierError{Identifiers: make(map[int]string)}
			}
			invErr.Pages = append(invErr.Pages, a.Page)
			invErr.Identifiers[a.Page] = id
		}

		pp := PlannedPage{
			Page:       a.Page,
			Identifier: id,
			Suffix:     a.Suffix,
			Material:   a.Material(),
		}
		if a.Placement != nil {
			p := *a.Placement
			pp.Placement = &p
		}
		plan.Pages = append(plan.Pages, pp)
	}

	var dupErr *DuplicateIdentifierError
	for id, pages := range seen {
		if len(pages) < 2 {
			continue
		}
		if dupErr == nil {
			dupErr = &DuplicateIdentifierError{Pages: make(map[string][]int)}
		}
		dupErr.Identifiers = append(dupErr.Identifiers, id)
		dupErr.Pages[id] = pages
	}
	if dupErr != nil || invErr != nil {
		s.phase = Assigning
		s.plan = nil
	}
	switch {
	case dupErr != nil && invErr != nil:
		sort.Strings(dupErr.Identifiers)
		return nil, errors.Join(dupErr, invErr)
	case dupErr != nil:
		sort.Strings(dupErr.Identifiers)
		return nil, dupErr
	case invErr != nil:
		return nil, invErr
	}

	s.phase = Validating
	s.plan = plan
	return plan, nil
}

// validFileIdentifier reports whether id can be used as the base name of an
// output file.
func validFileIdentifier(id string) bool {
	return !strings.ContainsFunc(id, func(r rune) bool {
		return r == '/' || r == '\\' || r < 0x20 || r == 0x7f
	})
}
