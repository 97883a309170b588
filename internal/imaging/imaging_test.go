package imaging

import (
	"image"
	"image/color"
	"testing"

	"github.com/golang/freetype/truetype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/goregular"
)

func TestToMonochromeThreshold(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 16, 2))
	for x := 0; x < 16; x++ {
		img.SetGray(x, 0, color.Gray{255})
		img.SetGray(x, 1, color.Gray{255})
	}
	img.SetGray(0, 0, color.Gray{0})
	img.SetGray(9, 1, color.Gray{10})

	bm := ToMonochrome(img, 16, 128, false)

	assert.Equal(t, 16, bm.Width)
	assert.Equal(t, 2, bm.Height)
	assert.Equal(t, []byte{0x80, 0x00, 0x00, 0x40}, bm.Data)

	inv := ToMonochrome(img, 16, 128, true)
	assert.Equal(t, []byte{0x7f, 0xff, 0xff, 0xbf}, inv.Data)
}

func TestToMonochromeScalesToWidth(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 12, 5))

	bm := ToMonochrome(img, 20, 128, false)

	assert.Equal(t, 24, bm.Width, "rounded up to a whole byte")
	assert.Equal(t, 10, bm.Height)
	assert.Len(t, bm.Data, 3*10)
	assert.Equal(t, byte(0xff), bm.Data[0])
}

func TestBitmapRows(t *testing.T) {
	bm := Bitmap{Width: 8, Height: 4, Data: []byte{1, 2, 3, 4}}

	assert.Equal(t, []byte{2, 3}, bm.Rows(1, 3).Data)
	assert.Equal(t, 2, bm.Rows(2, 10).Height)
	assert.Zero(t, bm.Rows(3, 1).Height)
}

func TestPreviewRoundTrip(t *testing.T) {
	bm := Bitmap{Width: 8, Height: 1, Data: []byte{0xa0}}
	p := bm.Preview().(*image.Gray)

	assert.Equal(t, uint8(0), p.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(255), p.GrayAt(1, 0).Y)
	assert.Equal(t, uint8(0), p.GrayAt(2, 0).Y)
}

func TestRenderTextWrapsToWidth(t *testing.T) {
	one, err := RenderText("POS", 384, TextOptions{FontSize: 10})
	require.NoError(t, err)
	many, err := RenderText("Mercado Print connection test receipt with a long line", 384, TextOptions{FontSize: 10, Align: AlignCenter})
	require.NoError(t, err)

	assert.Equal(t, 384, one.Bounds().Dx())
	assert.Equal(t, 384, many.Bounds().Dx())
	assert.Greater(t, many.Bounds().Dy(), one.Bounds().Dy())

	bm := ToMonochrome(one, 384, 128, false)
	inked := false
	for _, b := range bm.Data {
		if b != 0 {
			inked = true
			break
		}
	}
	assert.True(t, inked, "some text printed")
}

func TestWrapWords(t *testing.T) {
	f, err := truetype.Parse(goregular.TTF)
	require.NoError(t, err)
	face := truetype.NewFace(f, &truetype.Options{Size: 10, DPI: PrinterDPI})
	width := measureString(face, "hello world")

	assert.Equal(t, []string{"hello world", "again"}, wrapWords("hello world again", face, width))
	assert.Equal(t, []string{"a", "", "b"}, wrapWords("a\n\nb", face, width))

	long := wrapWords("xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx", face, width)
	assert.Greater(t, len(long), 1)
	for _, l := range long {
		assert.LessOrEqual(t, measureString(face, l), width)
	}
}
