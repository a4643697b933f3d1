package stamp

import (
	"io"
	"os"
)

// getLogger returns the appropriate io.Writer to use for logging
// based on the configuration settings, defaulting to os.Stdout if nil.
func getLogger(w io.Writer) io.Writer {
	if w == nil {
		return os.Stdout
	}
	return w
}
