package frame

import "errors"

var (
	// ErrOutOfMemory indicates a frame buffer could not be allocated.
	ErrOutOfMemory = errors.New("frame: out of memory")

	// ErrInvalidSize indicates a non-positive buffer or frame size.
	ErrInvalidSize = errors.New("frame: invalid size")

	// ErrShortDestination indicates the destination cannot hold the frame.
	ErrShortDestination = errors.New("frame: destination too small")

	// ErrShortSource indicates the source holds fewer bytes than the frame needs.
	ErrShortSource = errors.New("frame: source too small")
)
