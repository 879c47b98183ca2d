package frame

import (
	"errors"
	"testing"
)

func TestCopyRows_LargerStridePreservesPadding(t *testing.T) {
	const (
		width  = 5
		height = 3
		stride = 8
		pad    = 0xEE
	)

	src := make([]byte, width*height)
	for i := range src {
		src[i] = byte(i + 1)
	}
	dst := make([]byte, stride*height)
	for i := range dst {
		dst[i] = pad
	}

	if err := CopyRows(dst, stride, src, width, height); err != nil {
		t.Fatalf("CopyRows failed: %v", err)
	}

	for y := 0; y < height; y++ {
		for x := 0; x < stride; x++ {
			got := dst[y*stride+x]
			if x < width {
				if want := src[y*width+x]; got != want {
					t.Errorf("dst[%d,%d] = %d, want %d", x, y, got, want)
				}
			} else if got != pad {
				t.Errorf("padding byte [%d,%d] overwritten: %d", x, y, got)
			}
		}
	}
}

func TestCopyRows_TightStride(t *testing.T) {
	src := []byte{1, 2, 3, 4, 5, 6}
	dst := make([]byte, 6)
	if err := CopyRows(dst, 3, src, 3, 2); err != nil {
		t.Fatalf("CopyRows failed: %v", err)
	}
	for i := range src {
		if dst[i] != src[i] {
			t.Fatalf("dst[%d] = %d, want %d", i, dst[i], src[i])
		}
	}
}

func TestCopyRows_LastRowNeedsNoPadding(t *testing.T) {
	// Two rows of 4 with stride 6 need 6+4 bytes, not 12.
	src := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	dst := make([]byte, 10)
	if err := CopyRows(dst, 6, src, 4, 2); err != nil {
		t.Fatalf("CopyRows failed: %v", err)
	}
	if dst[9] != 8 {
		t.Errorf("last byte = %d, want 8", dst[9])
	}
}

func TestCopyRows_Errors(t *testing.T) {
	tests := []struct {
		name   string
		dst    int
		stride int
		src    int
		want   error
	}{
		{"stride below width", 100, 3, 16, ErrShortDestination},
		{"destination too small", 10, 4, 16, ErrShortDestination},
		{"source too small", 100, 4, 8, ErrShortSource},
	}

	for _, tc := range tests {
		err := CopyRows(make([]byte, tc.dst), tc.stride, make([]byte, tc.src), 4, 4)
		if !errors.Is(err, tc.want) {
			t.Errorf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}

	if err := CopyRows(nil, 0, nil, 0, 0); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("zero size: got %v, want ErrInvalidSize", err)
	}
}
