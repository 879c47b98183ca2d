package sink

import (
	"errors"
	"testing"
)

func TestBuffer_SetInfoAlignsStride(t *testing.T) {
	b := NewBuffer(Char, 16)
	if err := b.SetInfo(Info{Type: Char, PlaneCount: 1, Width: 10, Height: 3, Stride: 10}); err != nil {
		t.Fatalf("SetInfo failed: %v", err)
	}

	info := b.Info()
	if info.Stride != 16 {
		t.Errorf("Expected stride 16, got %d", info.Stride)
	}
	if len(b.Data()) != 48 {
		t.Errorf("Expected 48 bytes, got %d", len(b.Data()))
	}
	if len(b.Row(2)) != 10 {
		t.Errorf("Row length = %d", len(b.Row(2)))
	}
}

func TestBuffer_Reuse(t *testing.T) {
	b := NewBuffer(Char, 0)
	b.SetInfo(Info{Type: Char, PlaneCount: 1, Width: 64, Height: 64})
	first := &b.Data()[0]

	b.SetInfo(Info{Type: Char, PlaneCount: 1, Width: 32, Height: 32})
	if &b.Data()[0] != first {
		t.Error("shrinking reallocated the buffer")
	}
}

func TestBuffer_InvalidInfo(t *testing.T) {
	b := NewBuffer(Char, 0)
	for _, info := range []Info{
		{Type: Char, PlaneCount: 1, Width: 0, Height: 1},
		{Type: Char, PlaneCount: 0, Width: 1, Height: 1},
		{Type: PixelType(9), PlaneCount: 1, Width: 1, Height: 1},
	} {
		if err := b.SetInfo(info); !errors.Is(err, ErrInvalidInfo) {
			t.Errorf("SetInfo(%+v) = %v", info, err)
		}
	}
}

func TestPixelType_Size(t *testing.T) {
	tests := []struct {
		t    PixelType
		size int
		name string
	}{
		{Char, 1, "char"},
		{Long, 4, "long"},
		{Float32, 4, "float32"},
		{Float64, 8, "float64"},
	}
	for _, tt := range tests {
		if tt.t.Size() != tt.size || tt.t.String() != tt.name {
			t.Errorf("%v: size %d name %s", tt.t, tt.t.Size(), tt.t.String())
		}
	}
}
