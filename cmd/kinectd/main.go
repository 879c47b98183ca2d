// kinectd: Kinect IR grabber host
// Owns the capture worker and sessions, renders frames and serves them over HTTP
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/teslashibe/go-kinect/internal/config"
	"github.com/teslashibe/go-kinect/internal/log"
	"github.com/teslashibe/go-kinect/pkg/camera"
	"github.com/teslashibe/go-kinect/pkg/driver"
	"github.com/teslashibe/go-kinect/pkg/kinect"
	"github.com/teslashibe/go-kinect/pkg/render"
	"github.com/teslashibe/go-kinect/pkg/web"

	_ "github.com/teslashibe/go-kinect/pkg/driver/fake"
	_ "github.com/teslashibe/go-kinect/pkg/driver/freenect"
)

var (
	version    = "0.1.0"
	addr       = flag.String("addr", config.HTTPAddr(), "HTTP listen address")
	driverName = flag.String("driver", config.Driver(), "Device driver (fake, freenect)")
	preset     = flag.String("preset", "default", "Camera preset")
	logLevel   = flag.String("log-level", config.LogLevel(), "Log level (debug, info, warn, error)")
	accessLog  = flag.Bool("access-log", false, "Log every HTTP request")
	autoOpen   = flag.Int("open", 0, "Create and open this many sessions at startup")
)

func main() {
	flag.Parse()
	log.Init(*logLevel)

	fmt.Println()
	fmt.Println("📷 kinectd v" + version)
	fmt.Println("   Kinect IR grabber")
	fmt.Println()

	if err := run(); err != nil {
		log.Error("kinectd failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := camera.GetPreset(*preset)
	if cfg == nil {
		return fmt.Errorf("unknown preset %q (available: %v)", *preset, camera.PresetNames())
	}
	manager, err := camera.NewManagerWithConfig(*cfg)
	if err != nil {
		return err
	}
	manager.OnConfigChange = func(c camera.Config) error {
		log.Info("config changed", "mode", c.Resolution+"/"+c.Format, "fps", c.RenderFPS)
		return nil
	}

	drv, err := driver.New(*driverName)
	if err != nil {
		return err
	}
	log.Info("using driver", "driver", drv.Name(), "preset", *preset)

	reg := kinect.NewRegistry(drv, kinect.WithConfig(manager))
	defer func() {
		if err := reg.Close(); err != nil {
			log.Warn("registry close failed", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for i := 0; i < *autoOpen; i++ {
		s, err := reg.NewSession()
		if err != nil {
			return err
		}
		if err := s.Open(ctx, 0); err != nil {
			log.Warn("auto-open failed", "session", s.ID(), "error", err)
			continue
		}
		log.Info("session opened", "session", s.ID(), "index", s.Index())
	}

	loop := render.New(reg)
	srv := web.NewServer(web.Config{Addr: *addr, AccessLog: *accessLog}, reg, loop)

	err = serve(ctx, srv, loop)
	log.Info("👋 Shutting down")
	return err
}

// serve runs the render loop and the server until ctx is done or the server
// fails. It returns only after the loop has stopped ticking, so the caller
// may close the registry.
func serve(ctx context.Context, srv *web.Server, loop *render.Loop) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		loop.Run(ctx)
	}()

	err := srv.Run(ctx)
	cancel()
	wg.Wait()
	return err
}
