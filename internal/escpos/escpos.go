// Package escpos builds ESC/POS byte streams for receipt printers.
package escpos

import (
	"bytes"
	"fmt"
	"time"

	"mercado-print/internal/imaging"
)

const (
	esc = 0x1b
	gs  = 0x1d
	lf  = 0x0a
)

// maxBand is the number of raster rows sent per GS v 0 command. Cheap
// printers drop data when a single image exceeds their buffer.
const maxBand = 256

type Alignment byte

const (
	Left Alignment = iota
	Center
	Right
)

// codePage850 maps the accented characters used on receipts to PC850.
var codePage850 = map[rune]byte{
	'á': 0xa0, 'é': 0x82, 'í': 0xa1, 'ó': 0xa2, 'ú': 0xa3,
	'Á': 0xb5, 'É': 0x90, 'Í': 0xd6, 'Ó': 0xe0, 'Ú': 0xe9,
	'ñ': 0xa4, 'Ñ': 0xa5, 'ü': 0x81, 'Ü': 0x9a,
	'¿': 0xa8, '¡': 0xad, '°': 0xf8,
}

// Builder accumulates printer commands
type Builder struct {
	buf bytes.Buffer
}

// New returns an empty builder.
func New() *Builder {
	return &Builder{}
}

// Init resets the printer and selects the PC850 code page.
func (b *Builder) Init() *Builder {
	b.buf.Write([]byte{esc, '@'})
	b.buf.Write([]byte{esc, 't', 2})
	return b
}

// Align sets the justification of the following lines.
func (b *Builder) Align(a Alignment) *Builder {
	b.buf.Write([]byte{esc, 'a', byte(a)})
	return b
}

// Bold switches emphasised printing on or off.
func (b *Builder) Bold(on bool) *Builder {
	var n byte
	if on {
		n = 1
	}
	b.buf.Write([]byte{esc, 'E', n})
	return b
}

// Size sets the character magnification, 1 to 8 in each direction.
func (b *Builder) Size(width, height int) *Builder {
	width = min(max(width, 1), 8)
	height = min(max(height, 1), 8)
	b.buf.Write([]byte{gs, '!', byte((width-1)<<4 | (height - 1))})
	return b
}

// Text writes s in the current style. Characters outside ASCII and the
// PC850 table print as '?'.
func (b *Builder) Text(s string) *Builder {
	for _, r := range s {
		switch {
		case r == '\n' || (r >= 0x20 && r < 0x7f):
			b.buf.WriteByte(byte(r))
		case codePage850[r] != 0:
			b.buf.WriteByte(codePage850[r])
		default:
			b.buf.WriteByte('?')
		}
	}
	return b
}

// Line writes s followed by a line feed.
func (b *Builder) Line(s string) *Builder {
	return b.Text(s).Feed(1)
}

// Feed prints and advances n lines.
func (b *Builder) Feed(n int) *Builder {
	if n <= 1 {
		b.buf.WriteByte(lf)
		return b
	}
	b.buf.Write([]byte{esc, 'd', byte(min(n, 255))})
	return b
}

// Raster prints a bitmap with GS v 0, split into bands.
func (b *Builder) Raster(bm imaging.Bitmap) *Builder {
	rb := bm.RowBytes()
	for y := 0; y < bm.Height; y += maxBand {
		band := bm.Rows(y, y+maxBand)
		b.buf.Write([]byte{gs, 'v', '0', 0,
			byte(rb), byte(rb >> 8),
			byte(band.Height), byte(band.Height >> 8),
		})
		b.buf.Write(band.Data)
	}
	return b
}

// Cut feeds past the tear bar and performs a partial cut.
func (b *Builder) Cut() *Builder {
	b.buf.Write([]byte{gs, 'V', 66, 0})
	return b
}

// Bytes returns the raw command bytes to send to printer
func (b *Builder) Bytes() []byte {
	return bytes.Clone(b.buf.Bytes())
}

// Len returns the number of bytes built so far.
func (b *Builder) Len() int {
	return b.buf.Len()
}

// ReceiptInfo describes the printer a test receipt is printed on.
type ReceiptInfo struct {
	Name      string
	Address   string
	PaperDots int
	At        time.Time
}

// TestReceipt builds the receipt printed to confirm a new printer works:
// a rendered banner, the printer identity and a cut.
func TestReceipt(info ReceiptInfo) ([]byte, error) {
	if info.PaperDots <= 0 {
		info.PaperDots = 384
	}
	if info.At.IsZero() {
		info.At = time.Now()
	}

	banner, err := imaging.RenderText("Mercado Print", info.PaperDots, imaging.TextOptions{
		FontSize: 14,
		Bold:     true,
		Align:    imaging.AlignCenter,
	})
	if err != nil {
		return nil, fmt.Errorf("render banner: %w", err)
	}

	name := info.Name
	if name == "" {
		name = info.Address
	}

	b := New().Init().
		Align(Center).
		Raster(imaging.ToMonochrome(banner, info.PaperDots, 128, false)).
		Feed(1).
		Bold(true).Line("Prueba de impresión").Bold(false).
		Line(info.At.Format("2006-01-02 15:04")).
		Feed(1).
		Align(Left).
		Line("Impresora: " + name).
		Line("Dirección: " + info.Address).
		Feed(1).
		Align(Center).
		Line("¡Listo para imprimir!").
		Feed(4).
		Cut()
	return b.Bytes(), nil
}
