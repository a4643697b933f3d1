// Package documenttest builds small in-memory sources for tests.
package documenttest

import (
	"bytes"
	_ "embed"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"time"

	"codeberg.org/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var fixedTime = time.Date(2024, time.January, 2, 3, 4, 5, 0, time.UTC)

// gopher.webp is a 75x100 lossless WebP from the golang.org/x/image test data.
//
//go:embed testdata/gopher.webp
var gopherWebP []byte

// WebPWidth and WebPHeight are the dimensions of WebP().
const (
	WebPWidth  = 75
	WebPHeight = 100
)

// WebP returns a small lossless WebP image.
func WebP() []byte {
	return bytes.Clone(gopherWebP)
}

// PDF returns an A4 portrait PDF with the given number of pages. Each page
// carries the text "Drawing N" so pages can be told apart.
func PDF(pages int) []byte {
	return PDFWithLayer(pages, "")
}

// PDFWithLayer is like PDF but also draws into an optional content group
// named layer when layer is non-empty.
func PDFWithLayer(pages int, layer string) []byte {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetCompression(false)
	pdf.SetCreationDate(fixedTime)

	layerID := -1
	for i := 1; i <= pages; i++ {
		pdf.AddPage()
		if layer != "" && layerID < 0 {
			layerID = pdf.AddLayer(layer, true)
		}
		pdf.SetFont("Helvetica", "", 14)
		pdf.Text(72, 400, fmt.Sprintf("Drawing %d", i))
		pdf.Rect(60, 60, 200, 100, "D")
		if layerID >= 0 {
			pdf.BeginLayer(layerID)
			pdf.Text(72, 90, "stamped")
			pdf.EndLayer()
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		panic(fmt.Sprintf("documenttest: %v", err))
	}
	return buf.Bytes()
}

// Compress rewrites pdf with pdfcpu's default settings, which pack objects
// into object streams behind a cross-reference stream.
func Compress(pdf []byte) []byte {
	var buf bytes.Buffer
	if err := api.Optimize(bytes.NewReader(pdf), &buf, pdfcpuConfig()); err != nil {
		panic(fmt.Sprintf("documenttest: %v", err))
	}
	return buf.Bytes()
}

// Rotate sets /Rotate on every page of pdf. The result is written like
// Compress writes it.
func Rotate(pdf []byte, rotation int) []byte {
	var buf bytes.Buffer
	if err := api.Rotate(bytes.NewReader(pdf), &buf, rotation, nil, pdfcpuConfig()); err != nil {
		panic(fmt.Sprintf("documenttest: %v", err))
	}
	return buf.Bytes()
}

func pdfcpuConfig() *model.Configuration {
	api.DisableConfigDir()
	return model.NewDefaultConfiguration()
}

// Gradient returns a w x h image whose pixels differ across both axes, which
// makes rotations and offsets observable.
func Gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(x * 255 / max(w-1, 1)),
				G: uint8(y * 255 / max(h-1, 1)),
				B: 0x40,
				A: 0xff,
			})
		}
	}
	return img
}

// PNG returns a PNG encoded Gradient.
func PNG(w, h int) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, Gradient(w, h)); err != nil {
		panic(fmt.Sprintf("documenttest: %v", err))
	}
	return buf.Bytes()
}

// PNG16 returns Gradient encoded as a 16-bit-per-channel PNG.
func PNG16(w, h int) []byte {
	src := Gradient(w, h)
	img := image.NewNRGBA64(src.Bounds())
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, src.At(x, y))
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(fmt.Sprintf("documenttest: %v", err))
	}
	return buf.Bytes()
}

// JPEG returns a JPEG encoded Gradient.
func JPEG(w, h int) []byte {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Gradient(w, h), &jpeg.Options{Quality: 90}); err != nil {
		panic(fmt.Sprintf("documenttest: %v", err))
	}
	return buf.Bytes()
}
