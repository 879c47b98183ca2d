package kinect

import (
	"errors"
	"fmt"
)

// Open failures. Each leaves the session closed.
var (
	// ErrAlreadyOpen indicates the session already holds a device.
	ErrAlreadyOpen = errors.New("kinect: session already open")

	// ErrInitTimeout indicates the driver context did not become available.
	ErrInitTimeout = errors.New("kinect: driver context not ready")

	// ErrNoDevices indicates no device is connected.
	ErrNoDevices = errors.New("kinect: no devices connected")

	// ErrAllDevicesBusy indicates every connected device is claimed.
	ErrAllDevicesBusy = errors.New("kinect: all devices in use")

	// ErrIndexConflict indicates the requested index is claimed by another session.
	ErrIndexConflict = errors.New("kinect: device index already in use")

	// ErrIndexOutOfRange indicates the requested index exceeds the device count.
	ErrIndexOutOfRange = errors.New("kinect: device index out of range")

	// ErrOpenFailed indicates the driver could not open or start the device.
	ErrOpenFailed = errors.New("kinect: could not open device")
)

var (
	// ErrTypeMismatch indicates the render destination is not 8-bit.
	ErrTypeMismatch = errors.New("kinect: destination must be char")

	// ErrOutOfMemory indicates frame buffers could not be allocated.
	ErrOutOfMemory = errors.New("kinect: out of memory")

	// ErrSessionDestroyed indicates the session was destroyed.
	ErrSessionDestroyed = errors.New("kinect: session destroyed")

	// ErrSessionNotFound indicates no session has the given ID.
	ErrSessionNotFound = errors.New("kinect: session not found")

	// ErrNotOpen indicates the operation needs an open device.
	ErrNotOpen = errors.New("kinect: session not open")
)

// OpenError describes a failed Open.
type OpenError struct {
	Session   string
	Requested int
	Resolved  int // 0 if resolution did not happen
	Err       error
}

func (e *OpenError) Error() string {
	if e.Resolved > 0 && e.Resolved != e.Requested {
		return fmt.Sprintf("open session %s (index %d -> %d): %v", e.Session, e.Requested, e.Resolved, e.Err)
	}
	return fmt.Sprintf("open session %s (index %d): %v", e.Session, e.Requested, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }
