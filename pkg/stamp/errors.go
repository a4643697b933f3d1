package stamp

import "fmt"

// CompositingError reports the page that made a batch fail. It wraps the
// cause, which is a *symbol.EncodingError when the identifier could not be
// encoded.
type CompositingError struct {
	Page       int
	Identifier string
	Err        error
}

func (e *CompositingError) Error() string {
	return fmt.Sprintf("page %d (%s): %v", e.Page, e.Identifier, e.Err)
}

func (e *CompositingError) Unwrap() error { return e.Err }
