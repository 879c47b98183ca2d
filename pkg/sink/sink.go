// Package sink defines the host image destination a session renders into,
// and a plain Go implementation of it.
package sink

import (
	"errors"
	"fmt"
)

// PixelType is the element type of a matrix.
type PixelType int

const (
	Char PixelType = iota // 8-bit unsigned
	Long                  // 32-bit signed
	Float32
	Float64
)

// String returns the host name for the type.
func (t PixelType) String() string {
	switch t {
	case Char:
		return "char"
	case Long:
		return "long"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	}
	return fmt.Sprintf("pixeltype(%d)", int(t))
}

// Size returns the element size in bytes.
func (t PixelType) Size() int {
	switch t {
	case Char:
		return 1
	case Long, Float32:
		return 4
	case Float64:
		return 8
	}
	return 0
}

// Info describes a matrix layout. Stride is the byte distance between the
// starts of consecutive rows and may exceed Width*PlaneCount*Type.Size().
type Info struct {
	Type       PixelType `json:"type"`
	PlaneCount int       `json:"planes"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Stride     int       `json:"stride"`
}

// RowBytes returns the number of meaningful bytes per row.
func (i Info) RowBytes() int {
	return i.Width * i.PlaneCount * i.Type.Size()
}

// Matrix is a host-owned image destination.
type Matrix interface {
	// Info returns the current layout.
	Info() Info

	// SetInfo asks the host to adopt a new layout. The host may pick its own
	// stride, so callers re-read Info afterwards.
	SetInfo(info Info) error

	// Data returns the backing bytes, at least (Height-1)*Stride+RowBytes long.
	Data() []byte
}

// ErrInvalidInfo indicates a layout with non-positive dimensions or an
// unknown pixel type.
var ErrInvalidInfo = errors.New("sink: invalid matrix info")

// DefaultAlign is the row alignment Buffer uses.
const DefaultAlign = 16

// Buffer is a Matrix backed by a Go slice with aligned rows.
type Buffer struct {
	info  Info
	align int
	data  []byte
}

// NewBuffer returns an empty buffer of pixel type t. Rows are padded to a
// multiple of align bytes (DefaultAlign when align <= 0).
func NewBuffer(t PixelType, align int) *Buffer {
	if align <= 0 {
		align = DefaultAlign
	}
	return &Buffer{
		info:  Info{Type: t, PlaneCount: 1},
		align: align,
	}
}

// Info implements Matrix.
func (b *Buffer) Info() Info { return b.info }

// SetInfo implements Matrix. The stride requested by the caller is ignored.
func (b *Buffer) SetInfo(info Info) error {
	if info.Width <= 0 || info.Height <= 0 || info.PlaneCount <= 0 || info.Type.Size() == 0 {
		return fmt.Errorf("%w: %+v", ErrInvalidInfo, info)
	}

	row := info.RowBytes()
	info.Stride = (row + b.align - 1) / b.align * b.align

	need := info.Stride * info.Height
	if cap(b.data) < need {
		b.data = make([]byte, need)
	}
	b.data = b.data[:need]
	b.info = info
	return nil
}

// Data implements Matrix.
func (b *Buffer) Data() []byte { return b.data }

// Row returns the meaningful bytes of row y.
func (b *Buffer) Row(y int) []byte {
	off := y * b.info.Stride
	return b.data[off : off+b.info.RowBytes()]
}

// Clone returns a copy of the buffer with the same layout.
func (b *Buffer) Clone() *Buffer {
	return &Buffer{
		info:  b.info,
		align: b.align,
		data:  append([]byte(nil), b.data...),
	}
}
