package kinect

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-kinect/pkg/camera"
	"github.com/teslashibe/go-kinect/pkg/driver/fake"
	"github.com/teslashibe/go-kinect/pkg/sink"
)

// poisonDriver overwrites buffers handed back to Free.
type poisonDriver struct {
	*fake.Driver
}

func (d poisonDriver) Free(buf []byte) {
	for i := range buf {
		buf[i] = 0xee
	}
	d.Driver.Free(buf)
}

// pausingSink blocks the first Data call until resume is closed.
type pausingSink struct {
	*sink.Buffer
	once    sync.Once
	entered chan struct{}
	resume  chan struct{}
}

func (p *pausingSink) Data() []byte {
	p.once.Do(func() {
		close(p.entered)
		<-p.resume
	})
	return p.Buffer.Data()
}

func TestRenderTick_ClosedLeavesDestination(t *testing.T) {
	r := newTestRegistry(t, fake.New(1))
	s := newSession(t, r)

	dst := sink.NewBuffer(sink.Char, 0)
	dst.SetInfo(sink.Info{Type: sink.Char, PlaneCount: 1, Width: 4, Height: 4})
	for i := range dst.Data() {
		dst.Data()[i] = 7
	}

	updated, err := s.RenderTick(dst)
	if err != nil || updated {
		t.Fatalf("RenderTick on closed session = %v, %v", updated, err)
	}
	if info := dst.Info(); info.Width != 4 {
		t.Errorf("Destination reshaped: %+v", info)
	}
	for i, b := range dst.Data() {
		if b != 7 {
			t.Fatalf("Destination byte %d changed to %d", i, b)
		}
	}
}

func TestRenderTick_CopiesWithStride(t *testing.T) {
	drv := fake.New(1, fake.WithFrameInterval(time.Millisecond))
	r := newTestRegistry(t, drv)
	s := newSession(t, r)
	mustOpen(t, s, 0)

	waitFor(t, "a published frame", func() bool { return s.exchange.Pending() > 0 })

	// 640 wide rows padded to 672.
	dst := sink.NewBuffer(sink.Char, 48)
	updated, err := s.RenderTick(dst)
	if err != nil {
		t.Fatalf("RenderTick failed: %v", err)
	}
	if !updated || !s.HasFrames() {
		t.Fatal("Expected a new frame")
	}

	info := dst.Info()
	if info.Width != 640 || info.Height != 488 || info.PlaneCount != 1 || info.Stride != 672 {
		t.Fatalf("Unexpected destination layout %+v", info)
	}

	data := dst.Data()
	marker := data[0]
	for y := 0; y < info.Height; y++ {
		row := data[y*info.Stride : y*info.Stride+info.Width]
		for x, b := range row {
			if b != marker {
				t.Fatalf("pixel (%d,%d) = %d, want %d (torn frame)", x, y, b, marker)
			}
		}
		for x, b := range data[y*info.Stride+info.Width : (y+1)*info.Stride] {
			if b != 0 {
				t.Fatalf("padding byte %d of row %d written", x, y)
			}
		}
	}
}

func TestRenderTick_NoNewFrame(t *testing.T) {
	drv := fake.New(1, fake.WithFrameInterval(time.Hour))
	r := newTestRegistry(t, drv)
	s := newSession(t, r)
	mustOpen(t, s, 0)

	dst := sink.NewBuffer(sink.Char, 0)
	updated, err := s.RenderTick(dst)
	if err != nil || updated {
		t.Errorf("RenderTick without frames = %v, %v", updated, err)
	}
	if s.HasFrames() {
		t.Error("HasFrames set without a frame")
	}
}

func TestRenderTick_TypeMismatch(t *testing.T) {
	drv := fake.New(1, fake.WithFrameInterval(time.Millisecond))
	r := newTestRegistry(t, drv)
	s := newSession(t, r)
	mustOpen(t, s, 0)

	waitFor(t, "a published frame", func() bool { return s.exchange.Pending() > 0 })
	acquired := s.exchange.Stats().Acquired

	dst := sink.NewBuffer(sink.Long, 0)
	if _, err := s.RenderTick(dst); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("Expected ErrTypeMismatch, got %v", err)
	}
	if s.exchange.Stats().Acquired != acquired {
		t.Error("Frame claimed despite type mismatch")
	}
	if len(dst.Data()) != 0 {
		t.Error("Destination touched despite type mismatch")
	}
}

func TestSession_TiltClipped(t *testing.T) {
	drv := fake.New(1)
	r := newTestRegistry(t, drv)
	s := newSession(t, r)

	tests := []struct {
		in, want float64
	}{
		{45, 30},
		{-99, -30},
		{12.5, 12.5},
		{30, 30},
	}
	for _, tt := range tests {
		got, err := s.SetTilt(tt.in)
		if err != nil || got != tt.want || s.Tilt() != tt.want {
			t.Errorf("SetTilt(%v) = %v, %v; Tilt() = %v; want %v", tt.in, got, err, s.Tilt(), tt.want)
		}
	}

	mustOpen(t, s, 0)
	if _, err := s.SetTilt(45); err != nil {
		t.Fatalf("SetTilt while open: %v", err)
	}
	st, _ := fakeDevice(t, drv, s).TiltState()
	if st.Degrees != 30 || s.Tilt() != 30 {
		t.Errorf("Device tilt = %v, session tilt = %v", st.Degrees, s.Tilt())
	}
}

func TestSession_AccelAndStatus(t *testing.T) {
	drv := fake.New(1)
	r := newTestRegistry(t, drv)
	s := newSession(t, r)

	if a := s.Accel(); a != [3]float64{} {
		t.Errorf("Accel while closed = %v", a)
	}

	mustOpen(t, s, 0)
	if a := s.Accel(); a[1] != fake.StandardGravity {
		t.Errorf("Accel = %v", a)
	}

	s.SetUnique(false)
	st := s.Status()
	if !st.Open || st.Index != 1 || st.Unique || st.OpenedAt == nil || st.Mode.Width != 640 {
		t.Errorf("Unexpected status %+v", st)
	}
	if st.Exchange.BufferLength != 640*488 {
		t.Errorf("Buffer length = %d", st.Exchange.BufferLength)
	}
}

func TestRenderTick_DestroyWaitsForCopy(t *testing.T) {
	fd := fake.New(1, fake.WithFrameInterval(10*time.Millisecond))
	m, err := camera.NewManagerWithConfig(testConfig())
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	r := NewRegistry(poisonDriver{fd},
		WithConfig(m),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	t.Cleanup(func() { r.Close() })

	s := newSession(t, r)
	mustOpen(t, s, 0)
	waitFor(t, "a published frame", func() bool { return s.exchange.Pending() > 0 })

	dst := &pausingSink{
		Buffer:  sink.NewBuffer(sink.Char, 0),
		entered: make(chan struct{}),
		resume:  make(chan struct{}),
	}
	var updated bool
	var tickErr error
	ticked := make(chan struct{})
	go func() {
		updated, tickErr = s.RenderTick(dst)
		close(ticked)
	}()
	<-dst.entered

	destroyed := make(chan error, 1)
	go func() { destroyed <- s.Destroy() }()
	select {
	case err := <-destroyed:
		t.Fatalf("Destroy returned during a copy: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(dst.resume)
	<-ticked
	if err := <-destroyed; err != nil {
		t.Fatalf("Destroy failed: %v", err)
	}
	if tickErr != nil || !updated {
		t.Fatalf("RenderTick = %v, %v", updated, tickErr)
	}

	data := dst.Buffer.Data()
	for i, b := range data {
		if b == 0xee || b != data[0] {
			t.Fatalf("byte %d = %#x, first = %#x: copied from a freed buffer", i, b, data[0])
		}
	}
	if allocated, freed := fd.Buffers(); allocated != freed {
		t.Errorf("allocated %d buffers, freed %d", allocated, freed)
	}

	if updated, err := s.RenderTick(dst.Buffer); updated || err != nil {
		t.Errorf("RenderTick after Destroy = %v, %v", updated, err)
	}
}

func TestRenderTick_TypeMismatchClearsHasFrames(t *testing.T) {
	drv := fake.New(1, fake.WithFrameInterval(time.Millisecond))
	r := newTestRegistry(t, drv)
	s := newSession(t, r)
	mustOpen(t, s, 0)

	waitFor(t, "a published frame", func() bool { return s.exchange.Pending() > 0 })
	if updated, err := s.RenderTick(sink.NewBuffer(sink.Char, 0)); !updated || err != nil {
		t.Fatalf("RenderTick = %v, %v", updated, err)
	}
	if !s.HasFrames() {
		t.Fatal("HasFrames not set")
	}

	if _, err := s.RenderTick(sink.NewBuffer(sink.Float32, 0)); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("Expected ErrTypeMismatch, got %v", err)
	}
	if s.HasFrames() {
		t.Error("HasFrames kept after a failed tick")
	}
}

func TestRenderTick_PlanesFollowFormat(t *testing.T) {
	tests := []struct {
		name   string
		cfg    camera.Config
		planes int
	}{
		{"ir", camera.PreviewConfig(), 1},
		{"rgb", camera.ColorConfig(), 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.EventTimeoutMs = 50
			m, err := camera.NewManagerWithConfig(tt.cfg)
			if err != nil {
				t.Fatalf("config: %v", err)
			}
			r := NewRegistry(fake.New(1, fake.WithFrameInterval(time.Millisecond)),
				WithConfig(m),
				WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
			)
			t.Cleanup(func() { r.Close() })

			s := newSession(t, r)
			mustOpen(t, s, 0)
			waitFor(t, "a published frame", func() bool { return s.exchange.Pending() > 0 })

			dst := sink.NewBuffer(sink.Char, 0)
			if updated, err := s.RenderTick(dst); !updated || err != nil {
				t.Fatalf("RenderTick = %v, %v", updated, err)
			}
			info := dst.Info()
			if info.PlaneCount != tt.planes || info.RowBytes() != s.Mode().Width*tt.planes {
				t.Errorf("Unexpected layout %+v", info)
			}
		})
	}
}
