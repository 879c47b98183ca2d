package web

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-kinect/pkg/capture"
	"github.com/teslashibe/go-kinect/pkg/driver"
	"github.com/teslashibe/go-kinect/pkg/hub"
	"github.com/teslashibe/go-kinect/pkg/kinect"
	"github.com/teslashibe/go-kinect/pkg/render"
)

// StatusResponse is the body of GET /api/status
type StatusResponse struct {
	Driver   string        `json:"driver"`
	Drivers  []string      `json:"drivers"`
	Devices  int           `json:"devices"`
	Open     int           `json:"open"`
	Sessions int           `json:"sessions"`
	Capture  capture.Stats `json:"capture"`
	Render   render.Stats  `json:"render"`
	Frames   hub.Stats     `json:"frames"`
}

// OpenRequest is the body of POST /api/sessions/:id/open.
// Index 0 picks the first free device.
type OpenRequest struct {
	Index int `json:"index"`
}

// TiltRequest is the body of PUT /api/sessions/:id/tilt
type TiltRequest struct {
	Degrees float64 `json:"degrees"`
}

// UniqueRequest is the body of PUT /api/sessions/:id/unique
type UniqueRequest struct {
	Unique bool `json:"unique"`
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(StatusResponse{
		Driver:   s.reg.Driver().Name(),
		Drivers:  driver.Drivers(),
		Devices:  s.reg.NumDevices(),
		Open:     s.reg.OpenCount(),
		Sessions: len(s.reg.Sessions()),
		Capture:  s.reg.Worker().Stats(),
		Render:   s.loop.Stats(),
		Frames:   s.frames.Stats(),
	})
}

func (s *Server) handleGetConfig(c *fiber.Ctx) error {
	return c.JSON(s.reg.Config().GetConfig())
}

func (s *Server) handleUpdateConfig(c *fiber.Ctx) error {
	var params map[string]interface{}
	if err := c.BodyParser(&params); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}
	if err := s.reg.Config().UpdateConfig(params); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(s.reg.Config().GetConfig())
}

func (s *Server) handleCreateSession(c *fiber.Ctx) error {
	sess, err := s.reg.NewSession()
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(sess.Status())
}

func (s *Server) handleListSessions(c *fiber.Ctx) error {
	sessions := s.reg.Sessions()
	out := make([]kinect.Status, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sess.Status())
	}
	return c.JSON(out)
}

func (s *Server) handleGetSession(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	return c.JSON(sess.Status())
}

func (s *Server) handleDestroySession(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	if err := sess.Destroy(); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleOpen(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	var req OpenRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
		}
	}
	if err := sess.Open(c.UserContext(), req.Index); err != nil {
		return err
	}
	return c.JSON(sess.Status())
}

func (s *Server) handleClose(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	if err := sess.Close(); err != nil {
		return err
	}
	return c.JSON(sess.Status())
}

func (s *Server) handleTilt(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	var req TiltRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}
	tilt, err := sess.SetTilt(req.Degrees)
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}
	return c.JSON(fiber.Map{"tilt": tilt})
}

func (s *Server) handleUnique(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	var req UniqueRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}
	sess.SetUnique(req.Unique)
	return c.JSON(fiber.Map{"unique": sess.Unique()})
}

func (s *Server) handleFrame(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	f, ok := s.loop.Latest(sess.ID())
	if !ok {
		return ErrNoFrame
	}
	c.Set(fiber.HeaderContentType, "image/jpeg")
	c.Set(fiber.HeaderCacheControl, "no-store")
	c.Set("X-Frame-Seq", strconv.FormatUint(f.Seq, 10))
	c.Set("X-Frame-Timestamp", strconv.FormatUint(uint64(f.Timestamp), 10))
	return c.Send(f.JPEG)
}

func (s *Server) session(c *fiber.Ctx) (*kinect.Session, error) {
	return s.reg.Session(c.Params("id"))
}

// requireSession rejects websocket upgrades for unknown sessions.
func (s *Server) requireSession(c *fiber.Ctx) error {
	if _, err := s.session(c); err != nil {
		return err
	}
	return c.Next()
}
