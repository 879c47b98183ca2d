// Package render drives the host side of every session: it ticks at the
// configured rate, copies new frames into per-session sinks, and emits JPEG
// previews to subscribers.
package render

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-kinect/internal/log"
	"github.com/teslashibe/go-kinect/pkg/camera"
	"github.com/teslashibe/go-kinect/pkg/kinect"
	"github.com/teslashibe/go-kinect/pkg/sink"
)

// Frame is one emitted preview.
type Frame struct {
	SessionID string    `json:"session_id"`
	Index     int       `json:"index"`
	Timestamp uint32    `json:"timestamp"`
	Seq       uint64    `json:"seq"`
	Fresh     bool      `json:"fresh"` // false when re-emitting the previous frame
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	JPEG      []byte    `json:"-"`
	At        time.Time `json:"at"`
}

// Stats are loop counters.
type Stats struct {
	Ticks      uint64 `json:"ticks"`
	Rendered   uint64 `json:"rendered"`
	Reemitted  uint64 `json:"reemitted"`
	Errors     uint64 `json:"errors"`
	Sessions   int    `json:"sessions"`
	IntervalMs int64  `json:"interval_ms"`
}

type target struct {
	buf  *sink.Buffer
	last Frame
}

// Loop renders every session of a registry.
type Loop struct {
	reg *kinect.Registry
	cfg *camera.Manager
	log *slog.Logger

	mu      sync.Mutex
	targets map[string]*target
	onFrame []func(Frame)

	ticks     atomic.Uint64
	rendered  atomic.Uint64
	reemitted atomic.Uint64
	errors    atomic.Uint64
}

// New creates a loop over reg's sessions.
func New(reg *kinect.Registry) *Loop {
	return &Loop{
		reg:     reg,
		cfg:     reg.Config(),
		log:     log.Component("render"),
		targets: make(map[string]*target),
	}
}

// OnFrame registers fn to receive every emitted frame. fn runs on the loop
// goroutine and must not block.
func (l *Loop) OnFrame(fn func(Frame)) {
	l.mu.Lock()
	l.onFrame = append(l.onFrame, fn)
	l.mu.Unlock()
}

// Run ticks until ctx is done. Interval changes in the configuration take
// effect on the next tick.
func (l *Loop) Run(ctx context.Context) error {
	cfg := l.cfg.GetConfig()
	interval := cfg.RenderInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	l.log.Info("render loop started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			l.log.Info("render loop stopped")
			return ctx.Err()
		case <-ticker.C:
			l.Tick()
			cfg = l.cfg.GetConfig()
			if next := cfg.RenderInterval(); next != interval {
				interval = next
				ticker.Reset(interval)
				l.log.Debug("render interval changed", "interval", interval)
			}
		}
	}
}

// Tick renders every session once and returns how many frames were emitted.
// Only one goroutine may call Tick at a time.
func (l *Loop) Tick() int {
	l.ticks.Add(1)
	quality := l.cfg.GetConfig().JPEGQuality
	sessions := l.reg.Sessions()

	live := make(map[string]bool, len(sessions))
	var out []Frame

	for _, s := range sessions {
		live[s.ID()] = true
		t := l.target(s.ID())

		updated, err := s.RenderTick(t.buf)
		if err != nil {
			l.errors.Add(1)
			l.log.Warn("render failed", "session", s.ID(), "error", err)
			continue
		}

		if updated {
			data, err := EncodeJPEG(t.buf, quality)
			if err != nil {
				l.errors.Add(1)
				l.log.Warn("encode failed", "session", s.ID(), "error", err)
				continue
			}
			info := t.buf.Info()
			f := Frame{
				SessionID: s.ID(),
				Index:     s.Index(),
				Timestamp: s.Timestamp(),
				Seq:       t.last.Seq + 1,
				Fresh:     true,
				Width:     info.Width,
				Height:    info.Height,
				JPEG:      data,
				At:        time.Now(),
			}
			l.mu.Lock()
			t.last = f
			l.mu.Unlock()
			l.rendered.Add(1)
			out = append(out, f)
			continue
		}

		// Without the unique flag the previous output is emitted every tick.
		if !s.Unique() && s.IsOpen() && t.last.JPEG != nil {
			f := t.last
			f.Fresh = false
			f.At = time.Now()
			l.reemitted.Add(1)
			out = append(out, f)
		}
	}

	l.mu.Lock()
	for id := range l.targets {
		if !live[id] {
			delete(l.targets, id)
		}
	}
	subs := append([]func(Frame){}, l.onFrame...)
	l.mu.Unlock()

	for _, f := range out {
		for _, fn := range subs {
			fn(f)
		}
	}
	return len(out)
}

// Latest returns the most recent rendered frame of a session.
func (l *Loop) Latest(id string) (Frame, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.targets[id]
	if !ok || t.last.JPEG == nil {
		return Frame{}, false
	}
	return t.last, true
}

// Stats returns loop counters.
func (l *Loop) Stats() Stats {
	l.mu.Lock()
	n := len(l.targets)
	l.mu.Unlock()
	cfg := l.cfg.GetConfig()
	return Stats{
		Ticks:      l.ticks.Load(),
		Rendered:   l.rendered.Load(),
		Reemitted:  l.reemitted.Load(),
		Errors:     l.errors.Load(),
		Sessions:   n,
		IntervalMs: cfg.RenderInterval().Milliseconds(),
	}
}

func (l *Loop) target(id string) *target {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.targets[id]
	if !ok {
		t = &target{buf: sink.NewBuffer(sink.Char, sink.DefaultAlign)}
		l.targets[id] = t
	}
	return t
}
