package imaging

import (
	"image"
	"image/color"
)

// Bitmap is a 1-bit raster, one row after another, 8 dots per byte with
// the most significant bit leftmost. A set bit prints black.
type Bitmap struct {
	Width  int
	Height int
	Data   []byte
}

// RowBytes is the number of bytes per row.
func (b Bitmap) RowBytes() int {
	return (b.Width + 7) / 8
}

// Rows returns rows [from, to) as a sub-bitmap sharing b's data.
func (b Bitmap) Rows(from, to int) Bitmap {
	from = max(from, 0)
	to = min(to, b.Height)
	if from >= to {
		return Bitmap{Width: b.Width}
	}
	rb := b.RowBytes()
	return Bitmap{Width: b.Width, Height: to - from, Data: b.Data[from*rb : to*rb]}
}

// ToMonochrome scales img to width dots, keeping the aspect ratio, and
// thresholds it. Pixels darker than threshold print.
func ToMonochrome(img image.Image, width int, threshold uint8, invert bool) Bitmap {
	width = (width + 7) / 8 * 8
	scaled := scaleToWidth(img, width)
	height := scaled.Bounds().Dy()

	bm := Bitmap{Width: width, Height: height}
	rb := bm.RowBytes()
	bm.Data = make([]byte, rb*height)

	sb := scaled.Bounds()
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			gray := uint8(255)
			if x < sb.Dx() {
				gray = rgbToGray(scaled.At(sb.Min.X+x, sb.Min.Y+y))
			}
			dark := gray < threshold
			if invert {
				dark = !dark
			}
			if dark {
				bm.Data[y*rb+x/8] |= 0x80 >> (x % 8)
			}
		}
	}
	return bm
}

// rgbToGray converts a color to 8-bit luminance.
func rgbToGray(c color.Color) uint8 {
	r, g, b, a := c.RGBA()
	if a == 0 {
		return 255
	}
	// RGBA values are 16-bit
	return uint8((0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 256)
}

// scaleToWidth resizes img to the given width with nearest-neighbour
// sampling.
func scaleToWidth(img image.Image, width int) image.Image {
	b := img.Bounds()
	srcW, srcH := b.Dx(), b.Dy()
	if srcW == 0 || srcH == 0 {
		return image.NewGray(image.Rect(0, 0, width, 0))
	}
	if srcW == width {
		return img
	}

	scale := float64(width) / float64(srcW)
	height := max(int(float64(srcH)*scale), 1)
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		sy := min(int(float64(y)/scale), srcH-1)
		for x := 0; x < width; x++ {
			sx := min(int(float64(x)/scale), srcW-1)
			dst.Set(x, y, img.At(b.Min.X+sx, b.Min.Y+sy))
		}
	}
	return dst
}

// Preview renders the bitmap as a grayscale image for on-screen display.
func (b Bitmap) Preview() image.Image {
	img := image.NewGray(image.Rect(0, 0, b.Width, b.Height))
	rb := b.RowBytes()
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			if b.Data[y*rb+x/8]&(0x80>>(x%8)) != 0 {
				img.SetGray(x, y, color.Gray{0})
			} else {
				img.SetGray(x, y, color.Gray{255})
			}
		}
	}
	return img
}
