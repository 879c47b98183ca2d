package fake

import (
	"sync"
	"time"

	"github.com/teslashibe/go-kinect/pkg/driver"
)

// Context is a fake driver context.
type Context struct {
	drv *Driver

	mu       sync.Mutex
	open     []*Device
	logLevel driver.LogLevel
	closed   bool
	polls    int

	wake chan struct{}
}

// SetLogLevel implements driver.Context.
func (c *Context) SetLogLevel(level driver.LogLevel) {
	c.mu.Lock()
	c.logLevel = level
	c.mu.Unlock()
}

// LogLevel returns the level set through SetLogLevel.
func (c *Context) LogLevel() driver.LogLevel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.logLevel
}

// NumDevices implements driver.Context.
func (c *Context) NumDevices() int {
	return c.drv.numDevices()
}

// NumOpen implements driver.Context.
func (c *Context) NumOpen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.open)
}

// Open implements driver.Context.
func (c *Context) Open(index int) (driver.Device, error) {
	if index < 0 || index >= c.drv.numDevices() {
		return nil, driver.ErrNoSuchDevice
	}

	c.drv.mu.Lock()
	err := c.drv.openErr[index]
	c.drv.mu.Unlock()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, driver.ErrContextClosed
	}
	for _, d := range c.open {
		if d.index == index {
			return nil, driver.ErrDeviceBusy
		}
	}

	d := &Device{ctx: c, index: index}
	c.open = append(c.open, d)
	return d, nil
}

// Devices returns the currently open devices.
func (c *Context) Devices() []*Device {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Device(nil), c.open...)
}

// ProcessEvents waits for the frame interval (bounded by timeout) and then
// delivers one frame to every streaming device, on the calling goroutine.
func (c *Context) ProcessEvents(timeout time.Duration) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return driver.ErrContextClosed
	}
	c.polls++
	c.mu.Unlock()

	if err := c.drv.takeProcessErr(); err != nil {
		return err
	}

	wait := c.drv.frameWait()
	if timeout < wait {
		wait = timeout
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-c.wake:
		// Woken early: report failures injected meanwhile, deliver nothing.
		return c.drv.takeProcessErr()
	}

	for _, d := range c.Devices() {
		d.emit()
	}
	return nil
}

// Polls returns how many times ProcessEvents was called.
func (c *Context) Polls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.polls
}

// Wakeup implements driver.Waker.
func (c *Context) Wakeup() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Shutdown implements driver.Context. Open devices are closed.
func (c *Context) Shutdown() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	open := c.open
	c.open = nil
	c.mu.Unlock()

	for _, d := range open {
		d.markClosed()
	}
	return nil
}

// Closed reports whether Shutdown was called.
func (c *Context) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Context) remove(d *Device) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, o := range c.open {
		if o == d {
			c.open = append(c.open[:i], c.open[i+1:]...)
			return
		}
	}
}
