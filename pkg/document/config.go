package document

import (
	"io"
)

// Config holds the one-time setup of a Loader.
type Config struct {
	PDFRasterizer   Rasterizer // Renders PDF pages for previews (nil = previews unavailable)
	ImageRasterizer Rasterizer // Renders raster sources (nil = ImageRasterizer{})
	StampLayerName  string     // Base name of the stamp layer to detect in PDFs
	LogWarnings     bool       // Whether to print warnings
	Logger          io.Writer  // Custom logger for warnings (nil = stdout)
}

// DefaultStampLayerName is the optional content group name stamps are drawn in.
const DefaultStampLayerName = "Task Stamp"

// DefaultConfig returns a config with sensible defaults. PDF previews go
// through pdftoppm from poppler-utils.
func DefaultConfig() Config {
	return Config{
		PDFRasterizer:   &PopplerRasterizer{Command: DefaultPopplerCommand},
		ImageRasterizer: ImageRasterizer{},
		StampLayerName:  DefaultStampLayerName,
		LogWarnings:     true,
		Logger:          nil, // stdout
	}
}
