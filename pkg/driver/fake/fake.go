// Package fake implements an in-memory Kinect driver.
//
// Frames are produced from ProcessEvents at a fixed interval, on the calling
// goroutine, exactly like a USB driver dispatching transfer callbacks. Every
// byte of a frame holds the low byte of its sequence number, so consumers can
// detect torn or stale frames. Failure knobs let tests drive every error path.
package fake

import (
	"sync"
	"time"

	"github.com/teslashibe/go-kinect/internal/config"
	"github.com/teslashibe/go-kinect/pkg/driver"
)

// DefaultFrameInterval approximates the sensor's 30 Hz cadence.
const DefaultFrameInterval = 33 * time.Millisecond

// StandardGravity is reported on the accelerometer's y axis.
const StandardGravity = 9.80665

func init() {
	driver.Register("fake", func() driver.Driver {
		return New(config.FakeDevices())
	})
}

// Option configures a Driver.
type Option func(*Driver)

// WithFrameInterval sets how long ProcessEvents waits before emitting frames.
func WithFrameInterval(d time.Duration) Option {
	return func(drv *Driver) { drv.frameInterval = d }
}

// WithInitDelay delays Init, simulating slow USB enumeration.
func WithInitDelay(d time.Duration) Option {
	return func(drv *Driver) { drv.initDelay = d }
}

// Driver is the fake driver. It is safe for concurrent use.
type Driver struct {
	mu sync.Mutex

	devices       int
	frameInterval time.Duration
	initDelay     time.Duration

	initErr    error
	allocErr   error
	modeErr    error
	processErr error
	openErr    map[int]error

	contexts  []*Context
	inits     int
	allocated int
	freed     int
}

// New creates a fake driver reporting n connected devices.
func New(n int, opts ...Option) *Driver {
	d := &Driver{
		devices:       n,
		frameInterval: DefaultFrameInterval,
		openErr:       make(map[int]error),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name implements driver.Driver.
func (d *Driver) Name() string { return "fake" }

// Init implements driver.Driver.
func (d *Driver) Init() (driver.Context, error) {
	d.mu.Lock()
	delay, err := d.initDelay, d.initErr
	d.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}

	c := &Context{
		drv:  d,
		wake: make(chan struct{}, 1),
	}
	d.mu.Lock()
	d.contexts = append(d.contexts, c)
	d.inits++
	d.mu.Unlock()
	return c, nil
}

// Alloc implements driver.Driver.
func (d *Driver) Alloc(n int) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.allocErr != nil {
		return nil, d.allocErr
	}
	d.allocated++
	return make([]byte, n), nil
}

// Free implements driver.Driver.
func (d *Driver) Free(buf []byte) {
	d.mu.Lock()
	d.freed++
	d.mu.Unlock()
}

// SetDevices changes the number of connected devices.
func (d *Driver) SetDevices(n int) {
	d.mu.Lock()
	d.devices = n
	d.mu.Unlock()
}

// FailInit makes subsequent Init calls return err (nil clears it).
func (d *Driver) FailInit(err error) {
	d.mu.Lock()
	d.initErr = err
	d.mu.Unlock()
}

// FailAlloc makes subsequent Alloc calls return err (nil clears it).
func (d *Driver) FailAlloc(err error) {
	d.mu.Lock()
	d.allocErr = err
	d.mu.Unlock()
}

// FailOpen makes opening the physical index return err (nil clears it).
func (d *Driver) FailOpen(index int, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.openErr, index)
		return
	}
	d.openErr[index] = err
}

// FailVideoMode makes SetVideoMode return err (nil clears it).
func (d *Driver) FailVideoMode(err error) {
	d.mu.Lock()
	d.modeErr = err
	d.mu.Unlock()
}

// FailProcessEvents makes the next ProcessEvents call return err once.
// Any waiting ProcessEvents call is woken so the failure surfaces promptly.
func (d *Driver) FailProcessEvents(err error) {
	d.mu.Lock()
	d.processErr = err
	contexts := append([]*Context(nil), d.contexts...)
	d.mu.Unlock()
	for _, c := range contexts {
		c.Wakeup()
	}
}

// Context returns the most recently created context, or nil.
func (d *Driver) Context() *Context {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.contexts) == 0 {
		return nil
	}
	return d.contexts[len(d.contexts)-1]
}

// Inits returns how many contexts have been created.
func (d *Driver) Inits() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inits
}

// Buffers returns how many buffers were allocated and freed.
func (d *Driver) Buffers() (allocated, freed int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.allocated, d.freed
}

func (d *Driver) numDevices() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.devices
}

func (d *Driver) takeProcessErr() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	err := d.processErr
	d.processErr = nil
	return err
}

func (d *Driver) frameWait() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frameInterval
}
