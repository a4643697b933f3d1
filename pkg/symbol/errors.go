package symbol

import (
	"errors"
	"fmt"
)

// ErrEmptyText is returned when an empty identifier is encoded.
var ErrEmptyText = errors.New("identifier text is empty")

// EncodingError reports an identifier that cannot be encoded in the
// requested symbology.
type EncodingError struct {
	Text string
	Kind Kind
	Err  error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("cannot encode %q as %s: %v", e.Text, e.Kind, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }
