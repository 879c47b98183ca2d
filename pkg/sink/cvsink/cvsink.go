// Package cvsink renders sessions into OpenCV matrices.
package cvsink

import (
	"fmt"

	"github.com/teslashibe/go-kinect/pkg/sink"
	"gocv.io/x/gocv"
)

// Mat is a sink.Matrix backed by a gocv.Mat. It is not safe for concurrent
// use; call Close when done.
type Mat struct {
	mat gocv.Mat
	typ sink.PixelType
}

// New returns an empty 8-bit matrix sink.
func New() *Mat {
	return NewWithType(sink.Char)
}

// NewWithType returns an empty matrix sink of element type t.
func NewWithType(t sink.PixelType) *Mat {
	return &Mat{mat: gocv.NewMat(), typ: t}
}

// Info implements sink.Matrix.
func (m *Mat) Info() sink.Info {
	if m.mat.Empty() {
		return sink.Info{Type: m.typ, PlaneCount: 1}
	}
	return sink.Info{
		Type:       m.typ,
		PlaneCount: m.mat.Channels(),
		Width:      m.mat.Cols(),
		Height:     m.mat.Rows(),
		Stride:     m.mat.Step(),
	}
}

// SetInfo implements sink.Matrix. The matrix is reallocated only when the
// layout changes.
func (m *Mat) SetInfo(info sink.Info) error {
	if info.Width <= 0 || info.Height <= 0 {
		return fmt.Errorf("%w: %+v", sink.ErrInvalidInfo, info)
	}
	mt, err := matType(info.Type, info.PlaneCount)
	if err != nil {
		return err
	}

	if !m.mat.Empty() && m.mat.Type() == mt && m.mat.Cols() == info.Width && m.mat.Rows() == info.Height {
		return nil
	}

	m.mat.Close()
	m.mat = gocv.NewMatWithSize(info.Height, info.Width, mt)
	m.typ = info.Type
	return nil
}

// Data implements sink.Matrix.
func (m *Mat) Data() []byte {
	if m.mat.Empty() {
		return nil
	}
	b, err := m.mat.DataPtrUint8()
	if err != nil {
		return nil
	}
	return b
}

// Mat returns the underlying matrix. It stays owned by m.
func (m *Mat) Mat() *gocv.Mat { return &m.mat }

// Close releases the matrix.
func (m *Mat) Close() error {
	return m.mat.Close()
}

func matType(t sink.PixelType, planes int) (gocv.MatType, error) {
	switch {
	case t == sink.Char && planes == 1:
		return gocv.MatTypeCV8UC1, nil
	case t == sink.Char && planes == 3:
		return gocv.MatTypeCV8UC3, nil
	case t == sink.Char && planes == 4:
		return gocv.MatTypeCV8UC4, nil
	case t == sink.Long && planes == 1:
		return gocv.MatTypeCV32SC1, nil
	case t == sink.Float32 && planes == 1:
		return gocv.MatTypeCV32FC1, nil
	case t == sink.Float64 && planes == 1:
		return gocv.MatTypeCV64FC1, nil
	}
	return 0, fmt.Errorf("%w: %s with %d planes", sink.ErrInvalidInfo, t, planes)
}
