// Package kinect manages Kinect device sessions: opening and closing devices
// on a shared driver context, handing frames from the driver callback to the
// consumer, and exposing the device attributes a host reads and writes.
//
// A Registry owns the driver, the capture worker and every Session. Sessions
// are created from a Registry and must be destroyed through it.
package kinect

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/go-kinect/internal/log"
	"github.com/teslashibe/go-kinect/pkg/camera"
	"github.com/teslashibe/go-kinect/pkg/capture"
	"github.com/teslashibe/go-kinect/pkg/driver"
	"github.com/teslashibe/go-kinect/pkg/frame"
)

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// WithConfig sets the configuration manager. Sessions read it on creation
// and on every open and close.
func WithConfig(m *camera.Manager) Option {
	return func(r *Registry) { r.cfg = m }
}

// Registry tracks every session and the shared capture worker.
type Registry struct {
	drv    driver.Driver
	cfg    *camera.Manager
	worker *capture.Worker
	log    *slog.Logger

	// mu serializes open, close and destroy so that worker start and stop
	// never race.
	mu        sync.Mutex
	sessions  map[string]*Session
	openCount int

	// assoc maps open device handles to their session. The capture worker
	// reads it on every frame.
	assocMu sync.RWMutex
	assoc   map[driver.Device]*Session
}

// NewRegistry creates a registry for drv.
func NewRegistry(drv driver.Driver, opts ...Option) *Registry {
	r := &Registry{
		drv:      drv,
		sessions: make(map[string]*Session),
		assoc:    make(map[driver.Device]*Session),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = log.Component("kinect")
	}
	if r.cfg == nil {
		r.cfg = camera.NewManager()
	}

	cfg := r.cfg.GetConfig()
	r.worker = capture.New(drv, capture.Config{
		EventTimeout: cfg.EventTimeout(),
		LogLevel:     cfg.LogLevel(),
	})
	return r
}

// Driver returns the registry's driver.
func (r *Registry) Driver() driver.Driver { return r.drv }

// Config returns the configuration manager.
func (r *Registry) Config() *camera.Manager { return r.cfg }

// Worker returns the shared capture worker.
func (r *Registry) Worker() *capture.Worker { return r.worker }

// NewSession allocates a closed session sized for the configured video mode.
func (r *Registry) NewSession() (*Session, error) {
	cfg := r.cfg.GetConfig()
	mode, err := cfg.VideoMode()
	if err != nil {
		return nil, err
	}

	ex, err := frame.NewExchange(mode.Bytes(), r.drv.Alloc, r.drv.Free)
	if err != nil {
		r.log.Error("could not allocate frame buffers", "bytes", mode.Bytes(), "error", err)
		return nil, ErrOutOfMemory
	}

	s := &Session{
		id:       uuid.NewString(),
		reg:      r,
		mode:     mode,
		exchange: ex,
		created:  time.Now(),
	}
	s.log = r.log.With("session", s.id)
	s.unique.Store(cfg.Unique)

	r.mu.Lock()
	r.sessions[s.id] = s
	r.mu.Unlock()

	s.log.Debug("session created", "mode", mode.String())
	return s, nil
}

// Session returns the session with the given ID.
func (r *Registry) Session(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Sessions returns every live session ordered by creation time.
func (r *Registry) Sessions() []*Session {
	r.mu.Lock()
	list := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		list = append(list, s)
	}
	r.mu.Unlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].created.Before(list[j].created)
	})
	return list
}

// OpenCount returns how many sessions currently hold a device.
func (r *Registry) OpenCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.openCount
}

// NumDevices returns the number of connected devices, or 0 when no driver
// context exists.
func (r *Registry) NumDevices() int {
	dctx := r.worker.Context()
	if dctx == nil {
		return 0
	}
	return dctx.NumDevices()
}

// Close destroys every session. The worker is stopped once the last open
// session closes.
func (r *Registry) Close() error {
	var firstErr error
	for _, s := range r.Sessions() {
		if err := s.Destroy(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.openCount == 0 {
		r.worker.RequestStop()
	}
	return firstErr
}

// claimedLocked returns the logical indices held by open devices.
// r.mu must be held.
func (r *Registry) claimedLocked() map[int]bool {
	r.assocMu.RLock()
	defer r.assocMu.RUnlock()
	claimed := make(map[int]bool, len(r.assoc))
	for _, s := range r.assoc {
		if idx := s.Index(); idx > 0 {
			claimed[idx] = true
		}
	}
	return claimed
}

func (r *Registry) associate(dev driver.Device, s *Session) {
	r.assocMu.Lock()
	r.assoc[dev] = s
	r.assocMu.Unlock()
}

func (r *Registry) dissociate(dev driver.Device) {
	r.assocMu.Lock()
	delete(r.assoc, dev)
	r.assocMu.Unlock()
}

// dispatch is the frame callback registered on every device. It runs on the
// capture worker.
func (r *Registry) dispatch(dev driver.Device, buf []byte, timestamp uint32) {
	r.assocMu.RLock()
	s := r.assoc[dev]
	r.assocMu.RUnlock()
	if s == nil {
		return
	}
	s.publish(dev, buf, timestamp)
}

// stopIfIdleLocked stops the worker when no session is open. r.mu must be held.
func (r *Registry) stopIfIdleLocked() {
	if r.openCount == 0 {
		r.worker.RequestStop()
	}
}

func (r *Registry) forget(s *Session) {
	delete(r.sessions, s.id)
}

// resolveIndex maps a requested logical index to a free one.
// requested 0 picks the lowest unclaimed index in [1, total].
func resolveIndex(requested int, claimed map[int]bool, total int) (int, error) {
	switch {
	case requested < 0:
		return 0, ErrIndexOutOfRange
	case requested == 0:
		for i := 1; i <= total; i++ {
			if !claimed[i] {
				return i, nil
			}
		}
		return 0, ErrAllDevicesBusy
	case claimed[requested]:
		return 0, ErrIndexConflict
	case requested > total:
		return 0, ErrIndexOutOfRange
	}
	return requested, nil
}
