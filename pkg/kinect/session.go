package kinect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-kinect/pkg/driver"
	"github.com/teslashibe/go-kinect/pkg/frame"
)

// Session is one logical camera as seen by a host.
//
// Open, Close and Destroy are serialized through the registry. RenderTick and
// the attribute accessors may be called from any goroutine.
type Session struct {
	id       string
	reg      *Registry
	log      *slog.Logger
	mode     driver.VideoMode
	exchange *frame.Exchange
	created  time.Time

	mu        sync.Mutex
	dev       driver.Device
	index     int // logical, 1-based; 0 while closed
	tilt      float64
	openedAt  time.Time
	destroyed bool

	// render keeps Release out while a tick copies from the front buffer.
	render   sync.RWMutex
	released bool

	open      atomic.Bool
	unique    atomic.Bool
	hasFrames atomic.Bool
	timestamp atomic.Uint32
	frames    atomic.Uint64
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Mode returns the capture mode the session was created for.
func (s *Session) Mode() driver.VideoMode { return s.mode }

// Open claims a device and starts frame delivery.
//
// requested is a 1-based device index, or 0 for the first free one. On any
// failure the session stays closed and the error is an *OpenError wrapping
// one of the Err* sentinels.
func (s *Session) Open(ctx context.Context, requested int) error {
	r := s.reg
	r.mu.Lock()
	defer r.mu.Unlock()

	s.mu.Lock()
	destroyed, held := s.destroyed, s.dev != nil
	s.mu.Unlock()
	if destroyed {
		return ErrSessionDestroyed
	}

	fail := func(resolved int, sentinel, cause error) error {
		err := sentinel
		if cause != nil {
			err = fmt.Errorf("%w: %v", sentinel, cause)
		}
		oe := &OpenError{Session: s.id, Requested: requested, Resolved: resolved, Err: err}
		s.log.Error("open failed", "requested", requested, "error", err)
		return oe
	}

	if held {
		return fail(0, ErrAlreadyOpen, nil)
	}

	cfg := r.cfg.GetConfig()
	r.worker.Configure(cfg.EventTimeout(), cfg.LogLevel())
	r.worker.EnsureStarted()

	readyCtx, cancel := context.WithTimeout(ctx, cfg.InitTimeout())
	dctx, err := r.worker.WaitReady(readyCtx)
	cancel()
	if err != nil {
		r.stopIfIdleLocked()
		return fail(0, ErrInitTimeout, err)
	}

	total := dctx.NumDevices()
	if total == 0 {
		r.stopIfIdleLocked()
		return fail(0, ErrNoDevices, nil)
	}

	claimed := r.claimedLocked()
	if total-len(claimed) <= 0 {
		r.stopIfIdleLocked()
		return fail(0, ErrAllDevicesBusy, nil)
	}

	index, err := resolveIndex(requested, claimed, total)
	if err != nil {
		r.stopIfIdleLocked()
		if errors.Is(err, ErrIndexOutOfRange) {
			return fail(0, err, fmt.Errorf("only %d connected", total))
		}
		return fail(0, err, nil)
	}

	dev, err := dctx.Open(index - 1)
	if err != nil {
		r.stopIfIdleLocked()
		return fail(index, ErrOpenFailed, err)
	}

	abort := func(cause error) error {
		r.dissociate(dev)
		if cerr := dev.Close(); cerr != nil {
			s.log.Warn("close after failed open", "index", index, "error", cerr)
		}
		r.stopIfIdleLocked()
		return fail(index, ErrOpenFailed, cause)
	}

	dev.SetFrameCallback(r.dispatch)
	if err := dev.SetVideoMode(s.mode); err != nil {
		return abort(err)
	}
	if err := dev.SetBuffer(s.exchange.Back()); err != nil {
		return abort(err)
	}

	// Claim the index before streaming so the callback finds the session.
	s.mu.Lock()
	s.index = index
	s.mu.Unlock()
	r.associate(dev, s)

	openLED, _ := cfg.LEDs()
	if err := dev.SetLED(openLED); err != nil {
		s.log.Warn("could not set LED", "led", openLED.String(), "error", err)
	}

	if err := dev.StartVideo(); err != nil {
		s.mu.Lock()
		s.index = 0
		s.mu.Unlock()
		return abort(err)
	}

	s.mu.Lock()
	s.dev = dev
	s.openedAt = time.Now()
	s.mu.Unlock()
	s.hasFrames.Store(false)
	s.open.Store(true)
	r.openCount++
	r.worker.Wake()

	s.log.Info("device open",
		"requested", requested,
		"index", index,
		"devices", total,
		"mode", s.mode.String(),
		"open_sessions", r.openCount,
	)
	return nil
}

// Close releases the device. Closing a session that holds no device is a
// no-op. When this is the last open session the capture worker is stopped,
// and has exited, before the device is torn down.
func (s *Session) Close() error {
	r := s.reg
	r.mu.Lock()
	defer r.mu.Unlock()
	return s.closeLocked()
}

func (s *Session) closeLocked() error {
	r := s.reg

	s.mu.Lock()
	dev, index := s.dev, s.index
	s.mu.Unlock()
	if dev == nil {
		return nil
	}

	cfg := r.cfg.GetConfig()
	_, closeLED := cfg.LEDs()
	if err := dev.SetLED(closeLED); err != nil && !errors.Is(err, driver.ErrDeviceClosed) {
		s.log.Warn("could not set LED", "led", closeLED.String(), "error", err)
	}

	// Stop delivery to this session before anything is torn down.
	s.open.Store(false)
	r.dissociate(dev)

	last := r.openCount == 1
	if last {
		// Callbacks run on the worker; it must be gone before the device is.
		r.worker.RequestStop()
	} else if err := dev.StopVideo(); err != nil && !errors.Is(err, driver.ErrDeviceClosed) {
		s.log.Warn("could not stop video", "index", index, "error", err)
	}

	var closeErr error
	if err := dev.Close(); err != nil && !errors.Is(err, driver.ErrDeviceClosed) {
		s.log.Error("close failed", "index", index, "error", err)
		closeErr = fmt.Errorf("close device %d: %w", index, err)
	}

	s.mu.Lock()
	s.dev = nil
	s.index = 0
	s.mu.Unlock()
	if r.openCount > 0 {
		r.openCount--
	}

	s.log.Info("device closed", "index", index, "worker_stopped", last, "open_sessions", r.openCount)
	return closeErr
}

// Destroy closes the session, releases its frame buffers and removes it from
// the registry. Destroying twice is a no-op.
func (s *Session) Destroy() error {
	r := s.reg
	r.mu.Lock()
	defer r.mu.Unlock()

	s.mu.Lock()
	destroyed := s.destroyed
	s.mu.Unlock()
	if destroyed {
		return nil
	}

	err := s.closeLocked()

	s.render.Lock()
	s.exchange.Release(r.drv.Free)
	s.released = true
	s.render.Unlock()

	s.mu.Lock()
	s.destroyed = true
	s.mu.Unlock()
	r.forget(s)

	s.log.Debug("session destroyed")
	return err
}

// publish runs on the capture worker for every completed frame.
func (s *Session) publish(dev driver.Device, buf []byte, timestamp uint32) {
	if !s.open.Load() {
		return
	}
	next := s.exchange.Publish(buf)
	if next == nil {
		return
	}
	if err := dev.SetBuffer(next); err != nil && !errors.Is(err, driver.ErrDeviceClosed) {
		s.log.Warn("could not register next buffer", "error", err)
	}
	s.timestamp.Store(timestamp)
	s.frames.Add(1)
}
