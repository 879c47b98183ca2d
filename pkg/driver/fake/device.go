package fake

import (
	"sync"

	"github.com/teslashibe/go-kinect/pkg/driver"
)

// Device is a fake opened camera.
type Device struct {
	ctx   *Context
	index int

	mu        sync.Mutex
	cb        driver.FrameFunc
	mode      driver.VideoMode
	buf       []byte
	leds      []driver.LED
	streaming bool
	closed    bool
	tilt      float64
	seq       uint32
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
	d.ctx.drv.mu.Lock()
	err := d.ctx.drv.modeErr
	d.ctx.drv.mu.Unlock()
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return driver.ErrDeviceClosed
	}
	d.mode = mode
	return nil
}

// SetBuffer implements driver.Device.
func (d *Device) SetBuffer(buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return driver.ErrDeviceClosed
	}
	if d.mode.Bytes() > 0 && len(buf) < d.mode.Bytes() {
		return driver.ErrBufferSize
	}
	d.buf = buf
	return nil
}

// SetLED implements driver.Device.
func (d *Device) SetLED(led driver.LED) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return driver.ErrDeviceClosed
	}
	d.leds = append(d.leds, led)
	return nil
}

// LEDs returns every LED state set on the device, oldest first.
func (d *Device) LEDs() []driver.LED {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]driver.LED(nil), d.leds...)
}

// StartVideo implements driver.Device.
func (d *Device) StartVideo() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return driver.ErrDeviceClosed
	}
	d.streaming = true
	return nil
}

// StopVideo implements driver.Device.
func (d *Device) StopVideo() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.streaming = false
	return nil
}

// TiltState implements driver.Device.
func (d *Device) TiltState() (driver.TiltState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return driver.TiltState{}, driver.ErrDeviceClosed
	}
	return driver.TiltState{
		Degrees: d.tilt,
		Accel:   [3]float64{0, StandardGravity, 0},
	}, nil
}

// SetTilt implements driver.Device.
func (d *Device) SetTilt(degrees float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return driver.ErrDeviceClosed
	}
	d.tilt = degrees
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
	d.streaming = false
	d.mu.Unlock()

	d.ctx.remove(d)
	return nil
}

// Closed reports whether the device has been closed.
func (d *Device) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Frames returns how many frames the device has delivered.
func (d *Device) Frames() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seq
}

func (d *Device) markClosed() {
	d.mu.Lock()
	d.closed = true
	d.streaming = false
	d.mu.Unlock()
}

// emit writes the next frame into the registered buffer and runs the callback.
func (d *Device) emit() {
	d.mu.Lock()
	if !d.streaming || d.closed || d.cb == nil || len(d.buf) == 0 {
		d.mu.Unlock()
		return
	}
	d.seq++
	seq, buf, cb := d.seq, d.buf, d.cb
	n := d.mode.Bytes()
	if n == 0 || n > len(buf) {
		n = len(buf)
	}
	d.mu.Unlock()

	// The driver owns buf until the callback hands it back.
	marker := byte(seq)
	for i := 0; i < n; i++ {
		buf[i] = marker
	}
	cb(d, buf[:n], seq)
}
