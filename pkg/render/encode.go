package render

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"

	"github.com/teslashibe/go-kinect/pkg/sink"
)

// ErrUnsupportedLayout indicates a matrix that cannot be viewed as an image.
var ErrUnsupportedLayout = errors.New("render: unsupported matrix layout")

// ToImage views a char matrix as an image without copying single-plane data.
// Three-plane matrices are converted to RGBA.
func ToImage(m sink.Matrix) (image.Image, error) {
	info := m.Info()
	if info.Type != sink.Char || info.Width <= 0 || info.Height <= 0 {
		return nil, ErrUnsupportedLayout
	}
	data := m.Data()
	if len(data) < (info.Height-1)*info.Stride+info.RowBytes() {
		return nil, ErrUnsupportedLayout
	}
	rect := image.Rect(0, 0, info.Width, info.Height)

	switch info.PlaneCount {
	case 1:
		return &image.Gray{Pix: data, Stride: info.Stride, Rect: rect}, nil
	case 3:
		img := image.NewRGBA(rect)
		for y := 0; y < info.Height; y++ {
			src := data[y*info.Stride:]
			dst := img.Pix[y*img.Stride:]
			for x := 0; x < info.Width; x++ {
				dst[x*4+0] = src[x*3+0]
				dst[x*4+1] = src[x*3+1]
				dst[x*4+2] = src[x*3+2]
				dst[x*4+3] = 0xff
			}
		}
		return img, nil
	}
	return nil, ErrUnsupportedLayout
}

// EncodeJPEG encodes a char matrix as JPEG.
func EncodeJPEG(m sink.Matrix, quality int) ([]byte, error) {
	img, err := ToImage(m)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
