package driver

import "errors"

// Sentinel errors shared by driver implementations.
var (
	// ErrUnknownDriver indicates no driver is registered under the requested name.
	ErrUnknownDriver = errors.New("driver: unknown driver")

	// ErrUnsupportedMode indicates the resolution/format pair is not available.
	ErrUnsupportedMode = errors.New("driver: unsupported video mode")

	// ErrNoSuchDevice indicates the physical index does not exist.
	ErrNoSuchDevice = errors.New("driver: no such device")

	// ErrDeviceBusy indicates the device is already opened on this context.
	ErrDeviceBusy = errors.New("driver: device busy")

	// ErrDeviceClosed indicates the handle was closed (possibly by context shutdown).
	ErrDeviceClosed = errors.New("driver: device closed")

	// ErrContextClosed indicates the context was shut down.
	ErrContextClosed = errors.New("driver: context closed")

	// ErrBufferSize indicates a buffer smaller than the current video mode.
	ErrBufferSize = errors.New("driver: buffer smaller than frame")
)
