package capture

import "errors"

var (
	// ErrInitTimeout indicates the driver context did not become ready in time.
	ErrInitTimeout = errors.New("capture: driver context not ready")

	// ErrInitFailed indicates the driver context could not be created.
	ErrInitFailed = errors.New("capture: driver init failed")

	// ErrNotRunning indicates the worker is not running.
	ErrNotRunning = errors.New("capture: worker not running")

	// ErrEventProcessingFailed indicates the event loop ended on a driver error.
	ErrEventProcessingFailed = errors.New("capture: event processing failed")
)
