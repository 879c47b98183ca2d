// Package web exposes the grabber's host surface over HTTP and websockets:
// session lifecycle, attributes, configuration and live frame previews.
package web

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	ctrlws "github.com/gofiber/contrib/websocket"

	"github.com/teslashibe/go-kinect/internal/log"
	"github.com/teslashibe/go-kinect/pkg/hub"
	"github.com/teslashibe/go-kinect/pkg/kinect"
	"github.com/teslashibe/go-kinect/pkg/render"
)

// ShutdownTimeout bounds graceful shutdown in Run.
const ShutdownTimeout = 5 * time.Second

// Config configures a Server.
type Config struct {
	Addr      string
	AccessLog bool // log every request
}

// Server is the kinectd HTTP server
type Server struct {
	app  *fiber.App
	addr string
	log  *slog.Logger

	reg    *kinect.Registry
	loop   *render.Loop
	frames *hub.Hub
}

// NewServer creates a server for reg. Frames emitted by loop are pushed to
// the websocket subscribers of their session.
func NewServer(cfg Config, reg *kinect.Registry, loop *render.Loop) *Server {
	s := &Server{
		addr:   cfg.Addr,
		log:    log.Component("web"),
		reg:    reg,
		loop:   loop,
		frames: hub.New("frames"),
	}
	loop.OnFrame(s.publishFrame)

	app := fiber.New(fiber.Config{
		AppName:               "kinectd",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))
	if cfg.AccessLog {
		app.Use(logger.New())
	}

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/config", s.handleGetConfig)
	api.Put("/config", s.handleUpdateConfig)

	sessions := api.Group("/sessions")
	sessions.Post("/", s.handleCreateSession)
	sessions.Get("/", s.handleListSessions)
	sessions.Get("/:id", s.handleGetSession)
	sessions.Delete("/:id", s.handleDestroySession)
	sessions.Post("/:id/open", s.handleOpen)
	sessions.Post("/:id/close", s.handleClose)
	sessions.Put("/:id/tilt", s.handleTilt)
	sessions.Put("/:id/unique", s.handleUnique)
	sessions.Get("/:id/frame.jpg", s.handleFrame)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/frames/:id", s.requireSession, websocket.New(s.handleFramesWS))
	app.Get("/ws/control/:id", s.requireSession, ctrlws.New(s.handleControlWS))

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App { return s.app }

// Frames returns the frame hub.
func (s *Server) Frames() *hub.Hub { return s.frames }

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go s.frames.Run(ctx)

	errc := make(chan error, 1)
	go func() {
		errc <- s.app.Listener(ln)
	}()
	s.log.Info("listening", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	if err := s.app.ShutdownWithTimeout(ShutdownTimeout); err != nil {
		return err
	}
	return <-errc
}

func (s *Server) publishFrame(f render.Frame) {
	s.frames.BroadcastBinary(f.SessionID, f.JPEG)
}
