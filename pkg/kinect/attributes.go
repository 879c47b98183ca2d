package kinect

import (
	"time"

	"github.com/teslashibe/go-kinect/pkg/camera"
	"github.com/teslashibe/go-kinect/pkg/driver"
	"github.com/teslashibe/go-kinect/pkg/frame"
)

// ClipTilt limits a tilt angle to the motor range.
func ClipTilt(degrees float64) float64 {
	switch {
	case degrees > camera.MaxTiltDegrees:
		return camera.MaxTiltDegrees
	case degrees < -camera.MaxTiltDegrees:
		return -camera.MaxTiltDegrees
	}
	return degrees
}

// IsOpen reports whether the session holds a device.
func (s *Session) IsOpen() bool { return s.open.Load() }

// Index returns the logical device index, or 0 while closed.
func (s *Session) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// Tilt returns the motor angle reported by the device when open, and the last
// requested angle otherwise.
func (s *Session) Tilt() float64 {
	s.mu.Lock()
	dev, tilt := s.dev, s.tilt
	s.mu.Unlock()
	if dev == nil {
		return tilt
	}
	st, err := dev.TiltState()
	if err != nil {
		return tilt
	}
	return st.Degrees
}

// SetTilt clips degrees to [-30, 30], stores it and moves the motor when the
// session is open. It returns the clipped value.
func (s *Session) SetTilt(degrees float64) (float64, error) {
	clipped := ClipTilt(degrees)

	s.mu.Lock()
	s.tilt = clipped
	dev := s.dev
	s.mu.Unlock()

	if dev == nil {
		return clipped, nil
	}
	if err := dev.SetTilt(clipped); err != nil {
		s.log.Warn("could not set tilt", "degrees", clipped, "error", err)
		return clipped, err
	}
	return clipped, nil
}

// Accel returns the accelerometer reading in m/s^2, or zeros while closed.
func (s *Session) Accel() [3]float64 {
	s.mu.Lock()
	dev := s.dev
	s.mu.Unlock()
	if dev == nil {
		return [3]float64{}
	}
	st, err := dev.TiltState()
	if err != nil {
		return [3]float64{}
	}
	return st.Accel
}

// Unique reports whether renders should only emit new frames.
func (s *Session) Unique() bool { return s.unique.Load() }

// SetUnique sets the unique flag.
func (s *Session) SetUnique(v bool) { s.unique.Store(v) }

// HasFrames reports whether the last render tick copied a new frame.
func (s *Session) HasFrames() bool { return s.hasFrames.Load() }

// Timestamp returns the driver timestamp of the newest published frame.
func (s *Session) Timestamp() uint32 { return s.timestamp.Load() }

// Status is a snapshot of a session's attributes.
type Status struct {
	ID        string           `json:"id"`
	Open      bool             `json:"open"`
	Index     int              `json:"index"`
	Mode      driver.VideoMode `json:"mode"`
	Tilt      float64          `json:"tilt"`
	Accel     [3]float64       `json:"accel"`
	Unique    bool             `json:"unique"`
	HasFrames bool             `json:"has_frames"`
	Timestamp uint32           `json:"timestamp"`
	Frames    uint64           `json:"frames"`
	OpenedAt  *time.Time       `json:"opened_at,omitempty"`
	Exchange  frame.Stats      `json:"exchange"`
}

// Status returns a snapshot of the session attributes.
func (s *Session) Status() Status {
	st := Status{
		ID:        s.id,
		Open:      s.IsOpen(),
		Index:     s.Index(),
		Mode:      s.mode,
		Tilt:      s.Tilt(),
		Accel:     s.Accel(),
		Unique:    s.Unique(),
		HasFrames: s.HasFrames(),
		Timestamp: s.Timestamp(),
		Frames:    s.frames.Load(),
		Exchange:  s.exchange.Stats(),
	}
	s.mu.Lock()
	if !s.openedAt.IsZero() && s.dev != nil {
		t := s.openedAt
		st.OpenedAt = &t
	}
	s.mu.Unlock()
	return st
}
