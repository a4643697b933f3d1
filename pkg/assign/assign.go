// Package assign holds the per-page identifier and material assignments of a
// stamping session and decides which pages are ready to be stamped.
//
// Every page carries a task suffix, up to two material codes and an optional
// stamp placement. The full identifier of a page is the session head joined
// with the page suffix. ValidateAll checks the whole page set for duplicate
// identifiers and, when there are none, freezes the qualifying pages into a
// Plan that the compositor consumes.
package assign

import (
	"fmt"
	"strings"
)

// MaterialSeparator joins the two material slots of a page.
const MaterialSeparator = " + "

// MaterialSlots is the number of material codes a page can carry.
const MaterialSlots = 2

// Placement is an operator-chosen stamp anchor in page units, top-left origin.
type Placement struct {
	X, Y float64
}

// PageAssignment is the editable state of one page.
type PageAssignment struct {
	Page      int
	Suffix    string
	Materials [MaterialSlots]string
	Placement *Placement
}

// Material returns the non-empty material slots joined by MaterialSeparator.
func (a PageAssignment) Material() string {
	var parts []string
	for _, m := range a.Materials {
		if m != "" {
			parts = append(parts, m)
		}
	}
	return strings.Join(parts, MaterialSeparator)
}

// Assigned reports whether the operator gave the page a suffix or a material.
func (a PageAssignment) Assigned() bool {
	return a.Suffix != "" || a.Material() != ""
}

// FullIdentifier composes a head and a suffix. The separator is only used
// when both parts are present.
func FullIdentifier(head, suffix string) string {
	switch {
	case head == "":
		return suffix
	case suffix == "":
		return head
	default:
		return head + "-" + suffix
	}
}

// Store owns the assignments of one document. It is not safe for concurrent
// use; a session has a single operator.
type Store struct {
	head  string
	pages []PageAssignment
	vocab Vocabulary
	phase Phase
	plan  *Plan
}

// NewStore returns a store for a document with pageCount pages. A nil
// vocabulary accepts any material code.
func NewStore(head string, pageCount int, vocab Vocabulary) (*Store, error) {
	if pageCount < 1 {
		return nil, fmt.Errorf("document has no pages")
	}
	pages := make([]PageAssignment, pageCount)
	for i := range pages {
		pages[i].Page = i + 1
	}
	return &Store{
		head:  strings.TrimSpace(head),
		pages: pages,
		vocab: vocab,
		phase: Loaded,
	}, nil
}

// Head returns the session head identifier.
func (s *Store) Head() string { return s.head }

// PageCount returns the number of pages in the store.
func (s *Store) PageCount() int { return len(s.pages) }

// Phase returns the current state of the store.
func (s *Store) Phase() Phase { return s.phase }

// Vocabulary returns the accepted material codes.
func (s *Store) Vocabulary() Vocabulary { return s.vocab }

// SetHead changes the head identifier shared by all pages.
func (s *Store) SetHead(head string) error {
	if err := s.beginEdit(); err != nil {
		return err
	}
	s.head = strings.TrimSpace(head)
	return nil
}

// SetAssignment replaces the suffix and material of a page. The material is
// either empty, one code, or two codes joined by MaterialSeparator.
func (s *Store) SetAssignment(page int, suffix, material string) error {
	a, err := s.page(page)
	if err != nil {
		return err
	}
	slots, err := s.parseMaterial(material)
	if err != nil {
		return fmt.Errorf("page %d: %w", page, err)
	}
	if err := s.beginEdit(); err != nil {
		return err
	}
	a.Suffix = strings.TrimSpace(suffix)
	a.Materials = slots
	return nil
}

// SetSuffix changes only the suffix of a page.
func (s *Store) SetSuffix(page int, suffix string) error {
	a, err := s.page(page)
	if err != nil {
		return err
	}
	if err := s.beginEdit(); err != nil {
		return err
	}
	a.Suffix = strings.TrimSpace(suffix)
	return nil
}

// SetMaterialSlot sets one material slot (0 or 1) of a page, leaving the
// other slot untouched. An empty code clears the slot.
func (s *Store) SetMaterialSlot(page, slot int, code string) error {
	a, err := s.page(page)
	if err != nil {
		return err
	}
	if slot < 0 || slot >= MaterialSlots {
		return fmt.Errorf("material slot %d out of range (0-%d)", slot, MaterialSlots-1)
	}
	code = strings.TrimSpace(code)
	if code != "" && !s.vocab.accepts(code) {
		return &UnknownMaterialError{Code: code, Vocabulary: s.vocab}
	}
	if err := s.beginEdit(); err != nil {
		return err
	}
	a.Materials[slot] = code
	return nil
}

// SetPlacement pins the stamp of a page to a point in page units.
func (s *Store) SetPlacement(page int, x, y float64) error {
	a, err := s.page(page)
	if err != nil {
		return err
	}
	if x < 0 || y < 0 {
		return fmt.Errorf("placement (%g, %g) lies outside the page", x, y)
	}
	if err := s.beginEdit(); err != nil {
		return err
	}
	a.Placement = &Placement{X: x, Y: y}
	return nil
}

// ClearPlacement returns a page to the default stamp anchor.
func (s *Store) ClearPlacement(page int) error {
	a, err := s.page(page)
	if err != nil {
		return err
	}
	if err := s.beginEdit(); err != nil {
		return err
	}
	a.Placement = nil
	return nil
}

// Assignment returns a copy of the state of a page.
func (s *Store) Assignment(page int) (PageAssignment, error) {
	a, err := s.page(page)
	if err != nil {
		return PageAssignment{}, err
	}
	out := *a
	if a.Placement != nil {
		p := *a.Placement
		out.Placement = &p
	}
	return out, nil
}

// FullIdentifier returns the composed identifier of a page, which may be empty.
func (s *Store) FullIdentifier(page int) (string, error) {
	a, err := s.page(page)
	if err != nil {
		return "", err
	}
	return FullIdentifier(s.head, a.Suffix), nil
}

// Qualifies reports whether a page would produce a stamped output.
func (s *Store) Qualifies(page int) (bool, error) {
	a, err := s.page(page)
	if err != nil {
		return false, err
	}
	return s.qualifies(a), nil
}

func (s *Store) qualifies(a *PageAssignment) bool {
	return a.Assigned() && FullIdentifier(s.head, a.Suffix) != ""
}

func (s *Store) page(page int) (*PageAssignment, error) {
	if page < 1 || page > len(s.pages) {
		return nil, fmt.Errorf("page %d out of range (1-%d)", page, len(s.pages))
	}
	return &s.pages[page-1], nil
}

func (s *Store) parseMaterial(material string) ([MaterialSlots]string, error) {
	var slots [MaterialSlots]string
	material = strings.TrimSpace(material)
	if material == "" {
		return slots, nil
	}
	parts := strings.Split(material, strings.TrimSpace(MaterialSeparator))
	if len(parts) > MaterialSlots {
		return slots, fmt.Errorf("material %q has %d codes, at most %d allowed", material, len(parts), MaterialSlots)
	}
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return slots, fmt.Errorf("material %q has an empty code", material)
		}
		if !s.vocab.accepts(p) {
			return slots, &UnknownMaterialError{Code: p, Vocabulary: s.vocab}
		}
		slots[i] = p
	}
	return slots, nil
}
