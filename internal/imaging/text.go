package imaging

import (
	"image"
	"image/color"
	"image/draw"
	"strings"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

// PrinterDPI is the resolution of common 58mm and 80mm receipt printers.
const PrinterDPI = 203

type Alignment int

const (
	AlignLeft Alignment = iota
	AlignCenter
)

// TextOptions configures text rendering
type TextOptions struct {
	FontSize float64
	Bold     bool
	Invert   bool // white text on black
	Align    Alignment
	Margin   int // dots left and right
}

// RenderText draws text at the given paper width. The height grows with
// the number of wrapped lines. Lines only break at spaces unless a single
// word is wider than the paper.
func RenderText(text string, width int, opts TextOptions) (image.Image, error) {
	ttf := goregular.TTF
	if opts.Bold {
		ttf = gobold.TTF
	}
	f, err := truetype.Parse(ttf)
	if err != nil {
		return nil, err
	}
	if opts.FontSize <= 0 {
		opts.FontSize = 10
	}

	face := truetype.NewFace(f, &truetype.Options{Size: opts.FontSize, DPI: PrinterDPI})
	defer face.Close()
	metrics := face.Metrics()
	lineHeight := metrics.Height.Ceil()

	lines := wrapWords(text, face, width-2*opts.Margin)
	height := max(len(lines)*lineHeight+metrics.Descent.Ceil(), 1)

	bg, fg := color.Color(color.White), color.Color(color.Black)
	if opts.Invert {
		bg, fg = fg, bg
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{bg}, image.Point{}, draw.Src)

	c := freetype.NewContext()
	c.SetDPI(PrinterDPI)
	c.SetFont(f)
	c.SetFontSize(opts.FontSize)
	c.SetClip(img.Bounds())
	c.SetDst(img)
	c.SetSrc(&image.Uniform{fg})
	c.SetHinting(font.HintingFull)

	y := metrics.Ascent.Ceil()
	for _, line := range lines {
		x := opts.Margin
		if opts.Align == AlignCenter {
			x = (width - measureString(face, line)) / 2
		}
		if _, err := c.DrawString(line, freetype.Pt(x, y)); err != nil {
			return nil, err
		}
		y += lineHeight
	}
	return img, nil
}

// wrapWords splits text into lines no wider than maxWidth, breaking at
// spaces and inside words only when a word alone does not fit.
func wrapWords(text string, face font.Face, maxWidth int) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}

		current := ""
		for _, word := range words {
			candidate := word
			if current != "" {
				candidate = current + " " + word
			}
			if measureString(face, candidate) <= maxWidth {
				current = candidate
				continue
			}
			if current != "" {
				lines = append(lines, current)
			}
			current = breakLongWord(word, face, maxWidth, &lines)
		}
		lines = append(lines, current)
	}
	return lines
}

// breakLongWord appends the full-width pieces of word to lines and returns
// the remainder.
func breakLongWord(word string, face font.Face, maxWidth int, lines *[]string) string {
	var part string
	for _, r := range word {
		next := part + string(r)
		if measureString(face, next) > maxWidth && part != "" {
			*lines = append(*lines, part)
			part = string(r)
		} else {
			part = next
		}
	}
	return part
}

// measureString returns the width of a string in dots
func measureString(face font.Face, s string) int {
	var width fixed.Int26_6
	for _, r := range s {
		if adv, ok := face.GlyphAdvance(r); ok {
			width += adv
		}
	}
	return width.Ceil()
}
