// Package delivery hands stamped documents to the operator: written to a
// directory, packed into one zip archive, or served over HTTP with an index
// page whose links download each file.
package delivery

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gardar/pagestamp/pkg/stamp"
)

// ErrExists is returned when a target file exists and overwriting is off.
var ErrExists = errors.New("file already exists")

// CheckName rejects output names that are not a plain file name.
func CheckName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("invalid file name %q", name)
	case strings.ContainsAny(name, `/\`+"\x00"):
		return fmt.Errorf("file name %q contains a path separator", name)
	}
	return nil
}

// WriteDir writes every output into dir and returns the written paths. All
// names are checked before anything is written, so a refused batch leaves
// the directory untouched.
func WriteDir(dir string, outputs []stamp.Output, overwrite bool) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	paths := make([]string, len(outputs))
	seen := make(map[string]bool, len(outputs))
	for i, o := range outputs {
		if err := CheckName(o.Name); err != nil {
			return nil, err
		}
		if seen[o.Name] {
			return nil, fmt.Errorf("batch contains %q twice", o.Name)
		}
		seen[o.Name] = true

		paths[i] = filepath.Join(dir, o.Name)
		if !overwrite {
			if _, err := os.Stat(paths[i]); err == nil {
				return nil, fmt.Errorf("%s: %w (use -overwrite to replace)", paths[i], ErrExists)
			}
		}
	}

	for i, o := range outputs {
		if err := os.WriteFile(paths[i], o.Data, 0o644); err != nil {
			return paths[:i], fmt.Errorf("failed to write %s: %w", paths[i], err)
		}
	}
	return paths, nil
}

// WriteZip writes all outputs into a single zip archive, one entry per
// output in batch order.
func WriteZip(w io.Writer, outputs []stamp.Output) error {
	zw := zip.NewWriter(w)
	now := time.Now()
	for _, o := range outputs {
		if err := CheckName(o.Name); err != nil {
			return err
		}
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     o.Name,
			Method:   zip.Deflate,
			Modified: now,
		})
		if err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", o.Name, err)
		}
		if _, err := fw.Write(o.Data); err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", o.Name, err)
		}
	}
	return zw.Close()
}
