package frame

import "fmt"

// CopyRows copies a tightly packed width x height single-channel frame into
// dst, starting each source row at a multiple of dstStride.
// Bytes between the end of a row and the next stride boundary are left untouched.
func CopyRows(dst []byte, dstStride int, src []byte, width, height int) error {
	if width <= 0 || height <= 0 {
		return ErrInvalidSize
	}
	if len(src) < width*height {
		return fmt.Errorf("%w: source has %d bytes, need %d", ErrShortSource, len(src), width*height)
	}
	if dstStride < width {
		return fmt.Errorf("%w: stride %d < width %d", ErrShortDestination, dstStride, width)
	}
	if need := (height-1)*dstStride + width; len(dst) < need {
		return fmt.Errorf("%w: destination has %d bytes, need %d", ErrShortDestination, len(dst), need)
	}

	if dstStride == width {
		copy(dst, src[:width*height])
		return nil
	}
	for y := 0; y < height; y++ {
		copy(dst[y*dstStride:y*dstStride+width], src[y*width:(y+1)*width])
	}
	return nil
}
