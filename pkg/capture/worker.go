// Package capture runs the single event-processing goroutine shared by every
// open device.
//
// The driver context is created on the worker and torn down on the worker, and
// every frame callback executes on it. Callers start the worker lazily, wait
// for the readiness signal, and stop it (with join semantics) when the last
// device closes.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-kinect/internal/log"
	"github.com/teslashibe/go-kinect/pkg/driver"
)

// State is the worker lifecycle state.
type State int32

const (
	StateStopped State = iota
	StateRunning
	StateCancelRequested
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	case StateCancelRequested:
		return "cancel_requested"
	}
	return "unknown"
}

// Defaults for Config.
const (
	DefaultEventTimeout = 60 * time.Second
	DefaultIdleInterval = 10 * time.Millisecond
)

// Config configures a Worker.
type Config struct {
	// EventTimeout bounds each ProcessEvents call so cancellation is re-checked
	// even when the hardware is silent.
	EventTimeout time.Duration

	// IdleInterval bounds the wait between polls while no device is open.
	IdleInterval time.Duration

	// LogLevel is applied to every new driver context.
	LogLevel driver.LogLevel

	Logger *slog.Logger
}

// Stats is a snapshot of worker counters.
type Stats struct {
	State     string `json:"state"`
	Starts    uint64 `json:"starts"`
	Polls     uint64 `json:"polls"`
	LastError string `json:"last_error,omitempty"`
}

// Worker owns the driver context and the event loop.
type Worker struct {
	drv driver.Driver
	log *slog.Logger
	cfg Config

	mu      sync.Mutex // guards cfg and everything below except the atomics
	dctx    driver.Context
	ready   chan struct{}
	done    chan struct{}
	initErr error
	exitErr error

	state  atomic.Int32
	cancel atomic.Bool
	wake   chan struct{}

	starts atomic.Uint64
	polls  atomic.Uint64
}

// New creates a stopped worker for drv.
func New(drv driver.Driver, cfg Config) *Worker {
	if cfg.EventTimeout <= 0 {
		cfg.EventTimeout = DefaultEventTimeout
	}
	if cfg.IdleInterval <= 0 {
		cfg.IdleInterval = DefaultIdleInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Component("capture")
	}
	return &Worker{
		drv:  drv,
		cfg:  cfg,
		log:  cfg.Logger,
		wake: make(chan struct{}, 1),
	}
}

// Configure changes the event timeout and driver log level. It takes effect
// on the next start.
func (w *Worker) Configure(eventTimeout time.Duration, level driver.LogLevel) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if eventTimeout > 0 {
		w.cfg.EventTimeout = eventTimeout
	}
	w.cfg.LogLevel = level
}

// EnsureStarted spawns the worker unless it is already running.
// It returns immediately; use WaitReady for the driver context.
func (w *Worker) EnsureStarted() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if State(w.state.Load()) != StateStopped {
		return
	}

	w.cancel.Store(false)
	w.ready = make(chan struct{})
	w.done = make(chan struct{})
	w.initErr = nil
	w.exitErr = nil
	w.state.Store(int32(StateRunning))
	w.starts.Add(1)

	go w.run(w.ready, w.done)
}

// WaitReady blocks until the worker has created its driver context, the
// context failed to initialize, or ctx expires.
func (w *Worker) WaitReady(ctx context.Context) (driver.Context, error) {
	w.mu.Lock()
	ready := w.ready
	w.mu.Unlock()

	if ready == nil {
		return nil, ErrNotRunning
	}

	select {
	case <-ready:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrInitTimeout, ctx.Err())
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.initErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrInitFailed, w.initErr)
	}
	if w.dctx == nil {
		// Started and already exited again.
		return nil, ErrNotRunning
	}
	return w.dctx, nil
}

// RequestStop asks the worker to exit and waits until it has.
// The driver context is shut down before RequestStop returns.
func (w *Worker) RequestStop() {
	w.mu.Lock()
	done := w.done
	dctx := w.dctx
	if State(w.state.Load()) == StateRunning {
		w.state.Store(int32(StateCancelRequested))
	}
	w.mu.Unlock()

	if done == nil {
		return
	}

	w.cancel.Store(true)
	w.Wake()
	if waker, ok := dctx.(driver.Waker); ok {
		waker.Wakeup()
	}
	<-done
}

// Wake interrupts an idle wait so a newly opened device is polled promptly.
func (w *Worker) Wake() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Context returns the shared driver context, or nil when none exists.
func (w *Worker) Context() driver.Context {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dctx
}

// State returns the current lifecycle state.
func (w *Worker) State() State {
	return State(w.state.Load())
}

// Done returns a channel closed when the most recent run exits, or nil if the
// worker was never started.
func (w *Worker) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.done
}

// Err returns the error that ended the last run, if any.
func (w *Worker) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.exitErr
}

// Stats returns a snapshot of worker counters.
func (w *Worker) Stats() Stats {
	s := Stats{
		State:  w.State().String(),
		Starts: w.starts.Load(),
		Polls:  w.polls.Load(),
	}
	if err := w.Err(); err != nil {
		s.LastError = err.Error()
	}
	return s
}

// run is the worker body. ready and done belong to this run only.
func (w *Worker) run(ready, done chan struct{}) {
	// Driver callbacks run here; keep them on one OS thread for C drivers.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var exitErr error
	defer func() {
		w.mu.Lock()
		if w.dctx != nil {
			if err := w.dctx.Shutdown(); err != nil {
				w.log.Warn("driver shutdown failed", "error", err)
			}
			w.dctx = nil
		}
		w.exitErr = exitErr
		w.state.Store(int32(StateStopped))
		w.mu.Unlock()
		close(done)
		w.log.Debug("capture worker exited", "error", exitErr)
	}()

	w.mu.Lock()
	cfg := w.cfg
	w.mu.Unlock()

	dctx, err := w.drv.Init()
	if err != nil {
		w.log.Error("driver init failed", "driver", w.drv.Name(), "error", err)
		w.mu.Lock()
		w.initErr = err
		w.mu.Unlock()
		exitErr = fmt.Errorf("%w: %v", ErrInitFailed, err)
		close(ready)
		return
	}
	dctx.SetLogLevel(cfg.LogLevel)

	w.mu.Lock()
	w.dctx = dctx
	w.mu.Unlock()
	close(ready)

	w.log.Info("capture worker started",
		"driver", w.drv.Name(),
		"devices", dctx.NumDevices(),
		"event_timeout", cfg.EventTimeout,
	)

	idle := time.NewTimer(cfg.IdleInterval)
	defer idle.Stop()

	for {
		if w.cancel.Load() {
			w.log.Debug("capture worker cancelled")
			return
		}

		if dctx.NumOpen() == 0 {
			idle.Reset(cfg.IdleInterval)
			select {
			case <-w.wake:
			case <-idle.C:
			}
			continue
		}

		w.polls.Add(1)
		if err := dctx.ProcessEvents(cfg.EventTimeout); err != nil {
			w.log.Error("could not process events", "error", err)
			exitErr = fmt.Errorf("%w: %v", ErrEventProcessingFailed, err)
			return
		}
	}
}
