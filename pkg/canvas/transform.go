package canvas

import (
	"image"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// pageTransform builds the page-to-surface transform: scale into pixels,
// rotate clockwise about the centre of the scaled page (sw x sh), then shift
// by the centring offset. Written out per quadrant so right angles stay exact.
func pageTransform(rotation int, sx, sy, sw, sh, offX, offY float64) f64.Aff3 {
	switch rotation {
	case 90:
		return f64.Aff3{0, -sy, sh + offX, sx, 0, offY}
	case 180:
		return f64.Aff3{-sx, 0, sw + offX, 0, -sy, sh + offY}
	case 270:
		return f64.Aff3{0, sy, offX, -sx, 0, sw + offY}
	default:
		return f64.Aff3{sx, 0, offX, 0, sy, offY}
	}
}

func apply(m f64.Aff3, x, y float64) (float64, float64) {
	return m[0]*x + m[1]*y + m[2], m[3]*x + m[4]*y + m[5]
}

// invert returns the inverse of a non-singular affine transform.
func invert(m f64.Aff3) f64.Aff3 {
	det := m[0]*m[4] - m[1]*m[3]
	return f64.Aff3{
		m[4] / det, -m[1] / det, (m[1]*m[5] - m[4]*m[2]) / det,
		-m[3] / det, m[0] / det, (m[3]*m[2] - m[0]*m[5]) / det,
	}
}

// rotate turns src clockwise by a normalized right angle. Pixels are moved,
// never resampled, so rotating is lossless.
func rotate(src image.Image, rotation int) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	in, ok := src.(*image.RGBA)
	if !ok || b.Min != (image.Point{}) {
		in = image.NewRGBA(image.Rect(0, 0, w, h))
		draw.Draw(in, in.Bounds(), src, b.Min, draw.Src)
	}
	if rotation == 0 {
		if in == src {
			out := image.NewRGBA(in.Bounds())
			copy(out.Pix, in.Pix)
			return out
		}
		return in
	}

	var out *image.RGBA
	if rotation == 90 || rotation == 270 {
		out = image.NewRGBA(image.Rect(0, 0, h, w))
	} else {
		out = image.NewRGBA(image.Rect(0, 0, w, h))
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var dx, dy int
			switch rotation {
			case 90:
				dx, dy = h-1-y, x
			case 180:
				dx, dy = w-1-x, h-1-y
			case 270:
				dx, dy = y, w-1-x
			}
			si := in.PixOffset(x, y)
			di := out.PixOffset(dx, dy)
			copy(out.Pix[di:di+4], in.Pix[si:si+4])
		}
	}
	return out
}
