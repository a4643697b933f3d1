package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"golang.org/x/image/draw"
)

// DefaultPopplerCommand is the poppler-utils binary used for PDF previews.
const DefaultPopplerCommand = "pdftoppm"

// Rasterizer renders one page of a document into an image. A scale of 1 maps
// one page unit to one pixel. Implementations must honour ctx cancellation,
// returning ctx.Err() when a render is abandoned.
type Rasterizer interface {
	RasterizePage(ctx context.Context, doc *Document, page int, scale float64) (image.Image, error)
}

// ImageRasterizer renders raster image documents by decoding and resampling
// the source image.
type ImageRasterizer struct {
	Kernel draw.Interpolator // Resampling kernel (nil = draw.ApproxBiLinear)
}

// RasterizePage implements Rasterizer.
func (r ImageRasterizer) RasterizePage(ctx context.Context, doc *Document, page int, scale float64) (image.Image, error) {
	if !doc.IsRasterImage() {
		return nil, fmt.Errorf("image rasterizer cannot render %s sources", doc.Format())
	}
	src, _, err := image.Decode(doc.Open())
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if scale == 1 {
		return src, nil
	}

	kernel := r.Kernel
	if kernel == nil {
		kernel = draw.ApproxBiLinear
	}
	return Resample(src, scaledDim(src.Bounds().Dx(), scale), scaledDim(src.Bounds().Dy(), scale), kernel), nil
}

// PopplerRasterizer renders PDF pages by running pdftoppm. The process is
// started with exec.CommandContext, so cancelling ctx kills it.
type PopplerRasterizer struct {
	Command string // Binary name or path (empty = DefaultPopplerCommand)
	TempDir string // Directory for the temporary source copy (empty = os.TempDir())
}

// RasterizePage implements Rasterizer.
func (p *PopplerRasterizer) RasterizePage(ctx context.Context, doc *Document, page int, scale float64) (image.Image, error) {
	if doc.IsRasterImage() {
		return nil, fmt.Errorf("poppler rasterizer cannot render %s sources", doc.Format())
	}

	command := p.Command
	if command == "" {
		command = DefaultPopplerCommand
	}

	// pdftoppm wants a seekable file rather than stdin
	f, err := os.CreateTemp(p.TempDir, "pagestamp-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(doc.source); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close temporary file: %w", err)
	}

	pageArg := strconv.Itoa(page)
	dpi := strconv.FormatFloat(72*scale, 'f', 2, 64)
	cmd := exec.CommandContext(ctx, command,
		"-f", pageArg, "-l", pageArg,
		"-r", dpi,
		"-png", "-singlefile",
		f.Name(),
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%s failed on page %d: %s", command, page, strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("failed to run %s: %w", command, err)
	}

	img, _, err := image.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s output: %w", command, err)
	}
	return img, nil
}

// Resample scales src to exactly w x h pixels.
func Resample(src image.Image, w, h int, kernel draw.Interpolator) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	kernel.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

func scaledDim(n int, scale float64) int {
	v := int(math.Round(float64(n) * scale))
	if v < 1 {
		v = 1
	}
	return v
}
