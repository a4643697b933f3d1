package symbol

import (
	"image"
	"image/color"

	"github.com/boombuler/barcode"
)

const (
	qrQuietModules      = 4
	code128QuietModules = 10
	minBarHeight        = 12
)

// rasterizeMatrix draws a two dimensional code with whole-pixel modules,
// centred on a white square of at least size pixels.
func rasterizeMatrix(code barcode.Barcode, size, quiet int) *image.Gray {
	b := code.Bounds()
	dim := b.Dx()

	module := size / (dim + 2*quiet)
	if module < 1 {
		module = 1
	}
	side := (dim + 2*quiet) * module
	if side < size {
		side = size
	}
	offset := (side - dim*module) / 2

	img := newWhite(side, side)
	for y := 0; y < dim; y++ {
		for x := 0; x < dim; x++ {
			if isDark(code.At(b.Min.X+x, b.Min.Y+y)) {
				fillModule(img, offset+x*module, offset+y*module, module, module)
			}
		}
	}
	return img
}

// rasterizeLinear draws a one dimensional code. Bars span the full height,
// which is a third of the width but never less than minBarHeight.
func rasterizeLinear(code barcode.Barcode, size, quiet int) *image.Gray {
	b := code.Bounds()
	modules := b.Dx()

	module := size / (modules + 2*quiet)
	if module < 1 {
		module = 1
	}
	width := (modules + 2*quiet) * module
	if width < size {
		width = size
	}
	height := width / 3
	if height < minBarHeight {
		height = minBarHeight
	}
	offset := (width - modules*module) / 2

	img := newWhite(width, height)
	for x := 0; x < modules; x++ {
		if isDark(code.At(b.Min.X+x, b.Min.Y)) {
			fillModule(img, offset+x*module, 0, module, height)
		}
	}
	return img
}

func newWhite(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	return img
}

func fillModule(img *image.Gray, x0, y0, w, h int) {
	for y := y0; y < y0+h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := x0; x < x0+w; x++ {
			row[x] = 0
		}
	}
}

func isDark(c color.Color) bool {
	return color.GrayModel.Convert(c).(color.Gray).Y < 0x80
}
