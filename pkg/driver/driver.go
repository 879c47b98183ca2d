// Package driver defines the contract between the grabber and a Kinect-class
// USB driver. Implementations live in sub-packages (fake, freenect) and
// register themselves by name, the way database/sql drivers do.
package driver

import (
	"time"
)

// FrameFunc is invoked by the driver, on the goroutine running
// Context.ProcessEvents, each time buf has been completely written.
// timestamp is the device's frame timestamp.
type FrameFunc func(dev Device, buf []byte, timestamp uint32)

// Driver creates driver contexts and owns frame buffer memory.
type Driver interface {
	// Name identifies the driver ("fake", "freenect").
	Name() string

	// Init creates a new driver context. A process normally holds at most one.
	Init() (Context, error)

	// Alloc returns a zeroed buffer of n bytes the driver may write frames into.
	Alloc(n int) ([]byte, error)

	// Free releases a buffer obtained from Alloc.
	Free(buf []byte)
}

// Context is the driver's enumeration and event-processing handle.
type Context interface {
	// SetLogLevel sets the driver's own diagnostic verbosity.
	SetLogLevel(level LogLevel)

	// NumDevices returns how many devices are connected.
	NumDevices() int

	// NumOpen returns how many device handles are currently open on this context.
	NumOpen() int

	// Open opens the device at a 0-based physical index.
	Open(index int) (Device, error)

	// ProcessEvents waits up to timeout for USB events and dispatches frame
	// callbacks on the calling goroutine. A non-nil error is fatal.
	ProcessEvents(timeout time.Duration) error

	// Shutdown closes every open device and releases the context.
	Shutdown() error
}

// Waker is implemented by contexts whose ProcessEvents can be interrupted early.
type Waker interface {
	Wakeup()
}

// Device is one opened camera.
type Device interface {
	// Index returns the 0-based physical index the device was opened at.
	Index() int

	SetFrameCallback(fn FrameFunc)
	SetVideoMode(mode VideoMode) error
	// SetBuffer registers the buffer the next frame is written into.
	SetBuffer(buf []byte) error
	SetLED(led LED) error
	StartVideo() error
	StopVideo() error

	// TiltState refreshes and returns motor and accelerometer readings.
	TiltState() (TiltState, error)
	SetTilt(degrees float64) error

	// Close releases the device. Closing an already closed device is a no-op.
	Close() error
}

// TiltState holds motor and accelerometer readings.
type TiltState struct {
	Degrees float64    `json:"degrees"`
	Accel   [3]float64 `json:"accel"` // m/s^2, x y z
}
