//go:build freenect

package freenect

/*
#cgo pkg-config: libfreenect
#include <stdlib.h>
#include <libfreenect.h>

void kinect_set_video_callback(freenect_device *dev);
int kinect_process_events_ms(freenect_context *ctx, int ms);
*/
import "C"

import (
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/teslashibe/go-kinect/pkg/driver"
)

func init() {
	driver.Register("freenect", func() driver.Driver { return &Driver{} })
}

// Driver is the libfreenect driver.
type Driver struct{}

// Name implements driver.Driver.
func (*Driver) Name() string { return "freenect" }

// Init implements driver.Driver.
func (*Driver) Init() (driver.Context, error) {
	var ctx *C.freenect_context
	if rc := C.freenect_init(&ctx, nil); rc < 0 {
		return nil, fmt.Errorf("freenect: init failed (%d)", int(rc))
	}
	C.freenect_select_subdevices(ctx, C.freenect_device_flags(C.FREENECT_DEVICE_MOTOR|C.FREENECT_DEVICE_CAMERA))
	return &Context{
		ctx:     ctx,
		devices: make(map[*C.freenect_device]*Device),
	}, nil
}

// Alloc implements driver.Driver. The buffer is C memory and must be
// released with Free.
func (*Driver) Alloc(n int) ([]byte, error) {
	if n <= 0 {
		return nil, driver.ErrBufferSize
	}
	p := C.calloc(C.size_t(n), 1)
	if p == nil {
		return nil, fmt.Errorf("freenect: calloc(%d) failed", n)
	}
	return unsafe.Slice((*byte)(p), n), nil
}

// Free implements driver.Driver.
func (*Driver) Free(buf []byte) {
	if cap(buf) == 0 {
		return
	}
	C.free(unsafe.Pointer(unsafe.SliceData(buf)))
}

// Context wraps a freenect_context.
type Context struct {
	mu      sync.Mutex
	ctx     *C.freenect_context
	devices map[*C.freenect_device]*Device
}

// SetLogLevel implements driver.Context.
func (c *Context) SetLogLevel(level driver.LogLevel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx != nil {
		C.freenect_set_log_level(c.ctx, C.freenect_loglevel(level))
	}
}

// NumDevices implements driver.Context.
func (c *Context) NumDevices() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx == nil {
		return 0
	}
	n := int(C.freenect_num_devices(c.ctx))
	if n < 0 {
		return 0
	}
	return n
}

// NumOpen implements driver.Context.
func (c *Context) NumOpen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.devices)
}

// Open implements driver.Context.
func (c *Context) Open(index int) (driver.Device, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx == nil {
		return nil, driver.ErrContextClosed
	}

	var dev *C.freenect_device
	if rc := C.freenect_open_device(c.ctx, &dev, C.int(index)); rc < 0 {
		return nil, fmt.Errorf("%w: open index %d (%d)", driver.ErrNoSuchDevice, index, int(rc))
	}

	d := &Device{ctx: c, dev: dev, index: index}
	c.devices[dev] = d
	registerHandle(dev, d)
	C.kinect_set_video_callback(dev)
	return d, nil
}

// ProcessEvents implements driver.Context.
func (c *Context) ProcessEvents(timeout time.Duration) error {
	c.mu.Lock()
	ctx := c.ctx
	c.mu.Unlock()
	if ctx == nil {
		return driver.ErrContextClosed
	}

	// Callbacks fire inside this call and must not need c.mu.
	if rc := C.kinect_process_events_ms(ctx, C.int(timeout.Milliseconds())); rc < 0 {
		return fmt.Errorf("freenect: process events failed (%d)", int(rc))
	}
	return nil
}

// Shutdown implements driver.Context. libfreenect closes every open device.
func (c *Context) Shutdown() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx == nil {
		return nil
	}

	for dev, d := range c.devices {
		d.markClosed()
		unregisterHandle(dev)
	}
	c.devices = make(map[*C.freenect_device]*Device)

	rc := C.freenect_shutdown(c.ctx)
	c.ctx = nil
	if rc < 0 {
		return fmt.Errorf("freenect: shutdown failed (%d)", int(rc))
	}
	return nil
}

// closeDevice is called by Device.Close with d already marked closed.
func (c *Context) closeDevice(d *Device) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.devices[d.dev]; !ok {
		// Already released by Shutdown.
		return nil
	}
	delete(c.devices, d.dev)
	unregisterHandle(d.dev)
	if rc := C.freenect_close_device(d.dev); rc < 0 {
		return fmt.Errorf("freenect: close device %d failed (%d)", d.index, int(rc))
	}
	return nil
}

// Device wraps a freenect_device.
type Device struct {
	ctx   *Context
	dev   *C.freenect_device
	index int

	mu     sync.Mutex
	cb     driver.FrameFunc
	mode   driver.VideoMode
	buf    []byte
	closed bool
}

// Index implements driver.Device.
func (d *Device) Index() int { return d.index }

// SetFrameCallback implements driver.Device.
func (d *Device) SetFrameCallback(fn driver.FrameFunc) {
	d.mu.Lock()
	d.cb = fn
	d.mu.Unlock()
}

// SetVideoMode implements driver.Device.
func (d *Device) SetVideoMode(mode driver.VideoMode) error {
	res, err := cResolution(mode.Resolution)
	if err != nil {
		return err
	}
	format, err := cFormat(mode.Format)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return driver.ErrDeviceClosed
	}

	fm := C.freenect_find_video_mode(res, format)
	if fm.is_valid == 0 {
		return fmt.Errorf("%w: %s", driver.ErrUnsupportedMode, mode)
	}
	if rc := C.freenect_set_video_mode(d.dev, fm); rc < 0 {
		return fmt.Errorf("freenect: set video mode %s failed (%d)", mode, int(rc))
	}
	d.mode = mode
	return nil
}

// SetBuffer implements driver.Device. buf must come from Driver.Alloc.
func (d *Device) SetBuffer(buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return driver.ErrDeviceClosed
	}
	if len(buf) == 0 || len(buf) < d.mode.Bytes() {
		return driver.ErrBufferSize
	}
	if rc := C.freenect_set_video_buffer(d.dev, unsafe.Pointer(unsafe.SliceData(buf))); rc < 0 {
		return fmt.Errorf("freenect: set video buffer failed (%d)", int(rc))
	}
	d.buf = buf
	return nil
}

// SetLED implements driver.Device.
func (d *Device) SetLED(led driver.LED) error {
	opt, err := cLED(led)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return driver.ErrDeviceClosed
	}
	if rc := C.freenect_set_led(d.dev, opt); rc < 0 {
		return fmt.Errorf("freenect: set led %s failed (%d)", led, int(rc))
	}
	return nil
}

// StartVideo implements driver.Device.
func (d *Device) StartVideo() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return driver.ErrDeviceClosed
	}
	if rc := C.freenect_start_video(d.dev); rc < 0 {
		return fmt.Errorf("freenect: start video failed (%d)", int(rc))
	}
	return nil
}

// StopVideo implements driver.Device.
func (d *Device) StopVideo() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	if rc := C.freenect_stop_video(d.dev); rc < 0 {
		return fmt.Errorf("freenect: stop video failed (%d)", int(rc))
	}
	return nil
}

// TiltState implements driver.Device.
func (d *Device) TiltState() (driver.TiltState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return driver.TiltState{}, driver.ErrDeviceClosed
	}
	if rc := C.freenect_update_tilt_state(d.dev); rc < 0 {
		return driver.TiltState{}, fmt.Errorf("freenect: update tilt state failed (%d)", int(rc))
	}
	state := C.freenect_get_tilt_state(d.dev)

	var x, y, z C.double
	C.freenect_get_mks_accel(state, &x, &y, &z)
	return driver.TiltState{
		Degrees: float64(C.freenect_get_tilt_degs(state)),
		Accel:   [3]float64{float64(x), float64(y), float64(z)},
	}, nil
}

// SetTilt implements driver.Device.
func (d *Device) SetTilt(degrees float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return driver.ErrDeviceClosed
	}
	if rc := C.freenect_set_tilt_degs(d.dev, C.double(degrees)); rc < 0 {
		return fmt.Errorf("freenect: set tilt failed (%d)", int(rc))
	}
	return nil
}

// Close implements driver.Device.
func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()
	return d.ctx.closeDevice(d)
}

func (d *Device) markClosed() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
}

// deliver runs on the goroutine inside ProcessEvents.
func (d *Device) deliver(video unsafe.Pointer, timestamp uint32) {
	d.mu.Lock()
	cb, buf, n := d.cb, d.buf, d.mode.Bytes()
	d.mu.Unlock()
	if cb == nil || n == 0 {
		return
	}

	var frame []byte
	if len(buf) >= n && unsafe.Pointer(unsafe.SliceData(buf)) == video {
		frame = buf[:n]
	} else {
		// libfreenect used its own buffer.
		frame = unsafe.Slice((*byte)(video), n)
	}
	cb(d, frame, timestamp)
}

func cResolution(r driver.Resolution) (C.freenect_resolution, error) {
	switch r {
	case driver.ResolutionLow:
		return C.FREENECT_RESOLUTION_LOW, nil
	case driver.ResolutionMedium:
		return C.FREENECT_RESOLUTION_MEDIUM, nil
	case driver.ResolutionHigh:
		return C.FREENECT_RESOLUTION_HIGH, nil
	}
	return 0, fmt.Errorf("%w: resolution %s", driver.ErrUnsupportedMode, r)
}

func cFormat(f driver.Format) (C.freenect_video_format, error) {
	switch f {
	case driver.FormatRGB:
		return C.FREENECT_VIDEO_RGB, nil
	case driver.FormatIR8Bit:
		return C.FREENECT_VIDEO_IR_8BIT, nil
	}
	return 0, fmt.Errorf("%w: format %s", driver.ErrUnsupportedMode, f)
}

func cLED(l driver.LED) (C.freenect_led_options, error) {
	switch l {
	case driver.LEDOff:
		return C.LED_OFF, nil
	case driver.LEDGreen:
		return C.LED_GREEN, nil
	case driver.LEDRed:
		return C.LED_RED, nil
	case driver.LEDYellow:
		return C.LED_YELLOW, nil
	case driver.LEDBlinkGreen:
		return C.LED_BLINK_GREEN, nil
	case driver.LEDBlinkRedYellow:
		return C.LED_BLINK_RED_YELLOW, nil
	}
	return 0, fmt.Errorf("freenect: unknown LED state %d", int(l))
}
