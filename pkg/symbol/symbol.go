// Package symbol renders task identifiers as scannable symbols.
//
// Two symbologies are supported: QR matrices and Code 128 linear barcodes.
// Encoding is a pure function of its arguments: the same text, kind and size
// always produce the same raster and byte-identical PNG output, which is what
// makes the Cache in this package safe to drop and rebuild at any time.
//
// Main Functions:
//
// - Encode: Encodes text into a Symbol (raster plus PNG bytes)
// - ParseKind: Parses a symbology name from configuration
// - NewCache: Creates a memoizing wrapper around Encode
package symbol

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/boombuler/barcode/code128"
	"github.com/boombuler/barcode/qr"
)

// Kind selects the symbology used to encode an identifier.
type Kind int

const (
	QR Kind = iota
	Code128
)

// DefaultSize is the target pixel width used when a caller passes zero.
const DefaultSize = 100

// String returns the configuration name of the symbology.
func (k Kind) String() string {
	switch k {
	case QR:
		return "qr"
	case Code128:
		return "code128"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind converts a configuration value ("qr", "code128") into a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "qr", "qrcode":
		return QR, nil
	case "code128", "code-128", "barcode":
		return Code128, nil
	default:
		return QR, fmt.Errorf("unknown symbol kind %q", s)
	}
}

// Symbol is a rendered identifier.
type Symbol struct {
	Text  string      // Encoded text
	Kind  Kind        // Symbology
	Image *image.Gray // Raster including the quiet zone
	PNG   []byte      // PNG encoding of Image
}

// Width returns the raster width in pixels.
func (s *Symbol) Width() int { return s.Image.Bounds().Dx() }

// Height returns the raster height in pixels.
func (s *Symbol) Height() int { return s.Image.Bounds().Dy() }

// Encode renders text as a symbol of the given kind, size pixels wide.
// A size of zero selects DefaultSize. The raster is never narrower than one
// pixel per module, so size is a hint for long identifiers.
func Encode(text string, kind Kind, size int) (*Symbol, error) {
	if text == "" {
		return nil, &EncodingError{Text: text, Kind: kind, Err: ErrEmptyText}
	}
	if size <= 0 {
		size = DefaultSize
	}

	var (
		img *image.Gray
		err error
	)
	switch kind {
	case QR:
		img, err = encodeQR(text, size)
	case Code128:
		img, err = encodeCode128(text, size)
	default:
		err = fmt.Errorf("unsupported symbol kind %v", kind)
	}
	if err != nil {
		return nil, &EncodingError{Text: text, Kind: kind, Err: err}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, &EncodingError{Text: text, Kind: kind, Err: fmt.Errorf("failed to encode PNG: %w", err)}
	}

	return &Symbol{Text: text, Kind: kind, Image: img, PNG: buf.Bytes()}, nil
}

func encodeQR(text string, size int) (*image.Gray, error) {
	code, err := qr.Encode(text, qr.M, qr.Auto)
	if err != nil {
		return nil, err
	}
	return rasterizeMatrix(code, size, qrQuietModules), nil
}

func encodeCode128(text string, size int) (*image.Gray, error) {
	// Sets A and B together cover all of ASCII, control characters included.
	// Runes above 0x7f are rejected here because the encoder maps some of
	// them to FNC codes.
	for i, r := range text {
		if r > 0x7f {
			return nil, fmt.Errorf("character %q at offset %d is not representable in Code 128", r, i)
		}
	}
	code, err := code128.Encode(text)
	if err != nil {
		return nil, err
	}
	return rasterizeLinear(code, size, code128QuietModules), nil
}
