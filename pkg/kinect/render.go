package kinect

import (
	"fmt"

	"github.com/teslashibe/go-kinect/pkg/frame"
	"github.com/teslashibe/go-kinect/pkg/sink"
)

// RenderTick copies the newest frame into dst.
//
// It returns false, leaving dst untouched, when the session is closed or no
// frame arrived since the previous tick. dst must hold char elements; it is
// reshaped to the capture size with one plane per channel before a frame is
// claimed. RenderTick never blocks on the capture worker; Destroy waits for
// a tick in progress before freeing the frame buffers.
func (s *Session) RenderTick(dst sink.Matrix) (bool, error) {
	if !s.open.Load() {
		return false, nil
	}

	s.render.RLock()
	defer s.render.RUnlock()
	if s.released {
		return false, nil
	}

	info := dst.Info()
	if info.Type != sink.Char {
		s.hasFrames.Store(false)
		return false, fmt.Errorf("%w: got %s", ErrTypeMismatch, info.Type)
	}

	want := sink.Info{
		Type:       sink.Char,
		PlaneCount: s.mode.Channels,
		Width:      s.mode.Width,
		Height:     s.mode.Height,
		Stride:     info.Stride,
	}
	if info.PlaneCount != want.PlaneCount || info.Width != want.Width || info.Height != want.Height {
		if err := dst.SetInfo(want); err != nil {
			s.hasFrames.Store(false)
			return false, fmt.Errorf("%w: %v", ErrTypeMismatch, err)
		}
		info = dst.Info()
		if info.Type != sink.Char || info.PlaneCount != want.PlaneCount {
			s.hasFrames.Store(false)
			return false, fmt.Errorf("%w: destination refused %d planes", ErrTypeMismatch, want.PlaneCount)
		}
	}

	buf, ok := s.exchange.AcquireIfNew()
	if !ok {
		s.hasFrames.Store(false)
		return false, nil
	}

	rowBytes := s.mode.Width * s.mode.Channels
	if err := frame.CopyRows(dst.Data(), info.Stride, buf, rowBytes, s.mode.Height); err != nil {
		s.hasFrames.Store(false)
		return false, err
	}
	s.hasFrames.Store(true)
	return true, nil
}
