package document

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	_ "golang.org/x/image/webp" // register WebP decoder
)

// pdfSignatureWindow is how far into the source the %PDF- header may start.
const pdfSignatureWindow = 1024

var pdfSignature = []byte("%PDF-")

// compressedXRef matches the stream types of PDFs written with
// cross-reference streams or object streams.
var compressedXRef = regexp.MustCompile(`/Type\s*/(XRef|ObjStm)\b`)

// imageExtensions maps file extensions that mark a source as a raster image.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// Loader parses sources into Documents.
type Loader struct {
	config Config
	pdfCfg *model.Configuration
}

// NewLoader creates a Loader. It is the single initialization point for the
// PDF parser and the preview rasterizers.
func NewLoader(config Config) *Loader {
	if config.ImageRasterizer == nil {
		config.ImageRasterizer = ImageRasterizer{}
	}
	if config.StampLayerName == "" {
		config.StampLayerName = DefaultStampLayerName
	}

	// Keep pdfcpu from creating a configuration directory on disk.
	api.DisableConfigDir()
	pdfCfg := model.NewDefaultConfiguration()
	pdfCfg.ValidationMode = model.ValidationRelaxed

	return &Loader{config: config, pdfCfg: pdfCfg}
}

// LoadNamed loads a source, using the file extension of name as the hint for
// whether it is a raster image.
func (l *Loader) LoadNamed(name string, source []byte) (*Document, error) {
	hint := imageExtensions[strings.ToLower(filepath.Ext(name))]
	return l.load(name, source, hint)
}

// Load parses source into a Document. hintIsImage decides which format is
// tried first; the byte signature always has the final word.
func (l *Loader) Load(source []byte, hintIsImage bool) (*Document, error) {
	return l.load("", source, hintIsImage)
}

func (l *Loader) load(name string, source []byte, hintIsImage bool) (*Document, error) {
	if len(source) == 0 {
		return nil, &UnsupportedFormatError{Name: name, Detail: "empty source"}
	}

	// Keep a private copy so later changes to the caller's slice cannot leak in
	data := append([]byte(nil), source...)

	tryPDF := func() (*Document, bool, error) {
		if !hasPDFSignature(data) {
			return nil, false, nil
		}
		doc, err := l.loadPDF(name, data)
		return doc, true, err
	}
	tryImage := func() (*Document, bool, error) {
		doc, err := l.loadImage(name, data)
		if err != nil {
			return nil, false, err
		}
		return doc, true, nil
	}

	order := []func() (*Document, bool, error){tryPDF, tryImage}
	if hintIsImage {
		order = []func() (*Document, bool, error){tryImage, tryPDF}
	}

	var lastErr error
	for _, try := range order {
		doc, matched, err := try()
		if matched {
			return doc, err
		}
		if err != nil {
			lastErr = err
		}
	}

	return nil, &UnsupportedFormatError{
		Name:   name,
		Detail: "neither a PDF nor a JPEG, PNG or WebP image",
		Err:    lastErr,
	}
}

// loadPDF reads page boxes with pdfcpu and scans for existing stamp layers.
func (l *Loader) loadPDF(name string, data []byte) (*Document, error) {
	dims, err := api.PageDims(bytes.NewReader(data), l.pdfCfg)
	if err != nil {
		return nil, &UnsupportedFormatError{Name: name, Detail: "malformed PDF", Err: err}
	}
	if len(dims) == 0 {
		return nil, &UnsupportedFormatError{Name: name, Detail: "PDF has no pages"}
	}

	pages := make([]Page, len(dims))
	for i, d := range dims {
		pages[i] = Page{Number: i + 1, Width: d.Width, Height: d.Height}
	}

	if compressedXRef.Match(data) {
		flat, err := l.rewriteClassicXRef(data)
		if err != nil {
			return nil, &UnsupportedFormatError{Name: name, Detail: "cannot rewrite PDF cross-reference streams", Err: err}
		}
		data = flat
	}

	doc := &Document{
		name:       name,
		source:     data,
		format:     FormatPDF,
		pages:      pages,
		rasterizer: l.config.PDFRasterizer,
	}

	layerResult, err := CheckStampLayer(data, l.config.StampLayerName)
	if err != nil {
		l.warnf("layer detection failed for %s: %v", displayName(name), err)
	} else {
		doc.layers = layerResult.Layers
		doc.stamped = layerResult.HasStampLayer
		for _, warning := range layerResult.Warnings {
			l.warnf("%s", warning)
		}
	}

	return doc, nil
}

// rewriteClassicXRef writes data back out with a plain cross-reference
// table and every object at top level. The page importer only reads that
// layout, and the layer scan can then see OCG dictionaries that were packed
// into compressed object streams.
func (l *Loader) rewriteClassicXRef(data []byte) ([]byte, error) {
	conf := *l.pdfCfg
	conf.Cmd = model.OPTIMIZE
	conf.WriteObjectStream = false
	conf.WriteXRefStream = false

	var buf bytes.Buffer
	if err := api.Optimize(bytes.NewReader(data), &buf, &conf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// loadImage synthesizes a single-page document from a raster image.
func (l *Loader) loadImage(name string, data []byte) (*Document, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image config: %w", err)
	}
	switch format {
	case FormatJPEG, FormatPNG, FormatWebP:
	default:
		return nil, fmt.Errorf("image format %q is not supported", format)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("image has empty dimensions %dx%d", cfg.Width, cfg.Height)
	}

	return &Document{
		name:   name,
		source: data,
		format: format,
		pages: []Page{{
			Number: 1,
			Width:  float64(cfg.Width),
			Height: float64(cfg.Height),
		}},
		rasterizer: l.config.ImageRasterizer,
	}, nil
}

func (l *Loader) warnf(format string, args ...interface{}) {
	if !l.config.LogWarnings {
		return
	}
	fmt.Fprintf(getLogger(l.config.Logger), "Warning: "+format+"\n", args...)
}

func hasPDFSignature(data []byte) bool {
	window := data
	if len(window) > pdfSignatureWindow {
		window = window[:pdfSignatureWindow]
	}
	return bytes.Contains(window, pdfSignature)
}

func displayName(name string) string {
	if name == "" {
		return "document"
	}
	return name
}

// getLogger returns the writer for warnings, defaulting to os.Stdout if nil.
func getLogger(w io.Writer) io.Writer {
	if w == nil {
		return os.Stdout
	}
	return w
}
