package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-kinect/pkg/kinect"
)

var (
	// ErrUnknownCommand indicates an unrecognised control command.
	ErrUnknownCommand = errors.New("web: unknown command")

	// ErrBadArgument indicates a malformed control command argument.
	ErrBadArgument = errors.New("web: bad argument")

	// ErrNoFrame indicates nothing has been rendered for the session yet.
	ErrNoFrame = errors.New("web: no frame rendered yet")
)

// statusFor maps an error to an HTTP status code.
func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, kinect.ErrSessionNotFound), errors.Is(err, ErrNoFrame):
		return fiber.StatusNotFound
	case errors.Is(err, kinect.ErrSessionDestroyed):
		return fiber.StatusGone
	case errors.Is(err, kinect.ErrAlreadyOpen),
		errors.Is(err, kinect.ErrIndexConflict),
		errors.Is(err, kinect.ErrNotOpen):
		return fiber.StatusConflict
	case errors.Is(err, kinect.ErrIndexOutOfRange),
		errors.Is(err, kinect.ErrTypeMismatch),
		errors.Is(err, ErrBadArgument),
		errors.Is(err, ErrUnknownCommand):
		return fiber.StatusBadRequest
	case errors.Is(err, kinect.ErrNoDevices), errors.Is(err, kinect.ErrAllDevicesBusy):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, kinect.ErrInitTimeout):
		return fiber.StatusGatewayTimeout
	case errors.Is(err, kinect.ErrOpenFailed):
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

// errorHandler renders every error as {"error": "..."}.
func errorHandler(c *fiber.Ctx, err error) error {
	return c.Status(statusFor(err)).JSON(fiber.Map{
		"error": err.Error(),
	})
}
