package assign

import (
	"errors"
	"fmt"
	"strings"
)

// ErrLocked is returned when assignments are edited while the store is being
// validated, composited, or after it is done.
var ErrLocked = errors.New("assignments are locked")

// DuplicateIdentifierError lists every full identifier used by more than one
// page, sorted, so all conflicts can be fixed in one pass.
type DuplicateIdentifierError struct {
	Identifiers []string
	Pages       map[string][]int // Pages sharing each identifier
}

func (e *DuplicateIdentifierError) Error() string {
	return fmt.Sprintf("duplicate task identifiers: %s", strings.Join(e.Identifiers, ", "))
}

// InvalidIdentifierError lists every page whose full identifier cannot be
// used as an output file name, in page order.
type InvalidIdentifierError struct {
	Pages       []int
	Identifiers map[int]string // Full identifier of each listed page
}

func (e *InvalidIdentifierError) Error() string {
	parts := make([]string, len(e.Pages))
	for i, page := range e.Pages {
		parts[i] = fmt.Sprintf("page %d %q", page, e.Identifiers[page])
	}
	return fmt.Sprintf("task identifiers cannot name a file (no path separators or control characters): %s",
		strings.Join(parts, ", "))
}

// UnknownMaterialError is returned for a material code outside the vocabulary.
type UnknownMaterialError struct {
	Code       string
	Vocabulary Vocabulary
}

func (e *UnknownMaterialError) Error() string {
	return fmt.Sprintf("unknown material %q (known: %s)", e.Code, strings.Join(e.Vocabulary, ", "))
}

// TransitionError is returned for a state change the store does not allow.
type TransitionError struct {
	From Phase
	Op   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s while %s", e.Op, e.From)
}
