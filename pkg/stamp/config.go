package stamp

import (
	"fmt"
	"io"
	"strings"

	"github.com/gardar/pagestamp/pkg/document"
	"github.com/gardar/pagestamp/pkg/symbol"
)

// Config holds user options for stamping pages
type Config struct {
	Symbol      symbol.Kind // Symbology encoding the identifier
	SymbolSize  int         // Symbol raster width in pixels
	SymbolWidth float64     // Symbol width on the page in page units
	Anchor      Anchor      // Page corner the stamp is anchored to
	Margin      float64     // Distance from the anchor corner in page units
	Padding     float64     // White space around the stamp content
	LayerName   string      // Name of the optional content group holding the stamp
	Compression bool        // Compress page content streams
	Workers     int         // Pages composited in parallel (0 = one per CPU)
	Debug       bool        // Outline the layout boxes in red
	LogWarnings bool        // Whether to print warnings
	Logger      io.Writer   // Custom logger for warnings (nil = stdout)
	Font        FontConfig
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() Config {
	return Config{
		Symbol:      symbol.QR,
		SymbolSize:  symbol.DefaultSize,
		SymbolWidth: 72,
		Anchor:      TopLeft,
		Margin:      12,
		Padding:     4,
		LayerName:   document.DefaultStampLayerName,
		Compression: true,
		Workers:     0,
		Debug:       false,
		LogWarnings: true,
		Logger:      nil, // stdout
		Font:        DefaultFont,
	}
}

// FontConfig contains font settings for the stamp text
type FontConfig struct {
	Name        string  // Font name (e.g., "Helvetica")
	Style       string  // Font style ("", "B", "I", "BI")
	Size        float64 // Font size in points
	AscentRatio float64 // Vertical positioning ratio
	LineSpacing float64 // Line height as a multiple of Size
}

// DefaultFont is bold Helvetica, a core font every PDF reader has
var DefaultFont = FontConfig{
	Name:        "Helvetica",
	Style:       "B",
	Size:        9,
	AscentRatio: 0.718,
	LineSpacing: 1.25,
}

// Anchor selects the page corner a stamp is placed against.
type Anchor int

const (
	TopLeft Anchor = iota
	TopRight
	BottomLeft
	BottomRight
)

func (a Anchor) String() string {
	switch a {
	case TopLeft:
		return "top-left"
	case TopRight:
		return "top-right"
	case BottomLeft:
		return "bottom-left"
	case BottomRight:
		return "bottom-right"
	default:
		return fmt.Sprintf("Anchor(%d)", int(a))
	}
}

// ParseAnchor parses names like "top-left" or "br".
func ParseAnchor(s string) (Anchor, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "top-left", "topleft", "tl":
		return TopLeft, nil
	case "top-right", "topright", "tr":
		return TopRight, nil
	case "bottom-left", "bottomleft", "bl":
		return BottomLeft, nil
	case "bottom-right", "bottomright", "br":
		return BottomRight, nil
	default:
		return TopLeft, fmt.Errorf("unknown anchor %q", s)
	}
}

// withDefaults fills zero values so a partially filled Config still works.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SymbolSize <= 0 {
		c.SymbolSize = d.SymbolSize
	}
	if c.SymbolWidth <= 0 {
		c.SymbolWidth = d.SymbolWidth
	}
	if c.LayerName == "" {
		c.LayerName = d.LayerName
	}
	if c.Font.Name == "" {
		c.Font = d.Font
	}
	if c.Font.Size <= 0 {
		c.Font.Size = d.Font.Size
	}
	if c.Font.AscentRatio <= 0 {
		c.Font.AscentRatio = d.Font.AscentRatio
	}
	if c.Font.LineSpacing <= 0 {
		c.Font.LineSpacing = d.Font.LineSpacing
	}
	return c
}
