// kinect-snap: grabs frames in-process into an OpenCV Mat and writes them as PNGs
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-kinect/internal/config"
	"github.com/teslashibe/go-kinect/internal/log"
	"github.com/teslashibe/go-kinect/pkg/camera"
	"github.com/teslashibe/go-kinect/pkg/driver"
	"github.com/teslashibe/go-kinect/pkg/kinect"
	"github.com/teslashibe/go-kinect/pkg/sink/cvsink"

	_ "github.com/teslashibe/go-kinect/pkg/driver/fake"
	_ "github.com/teslashibe/go-kinect/pkg/driver/freenect"
)

var (
	driverName = flag.String("driver", config.Driver(), "Device driver (fake, freenect)")
	preset     = flag.String("preset", "default", "Camera preset")
	index      = flag.Int("index", 0, "Device index (0 picks the first free one)")
	tilt       = flag.Float64("tilt", 0, "Tilt angle in degrees before capturing")
	frames     = flag.Int("n", 1, "Number of frames to save")
	outDir     = flag.String("out", ".", "Output directory")
	wait       = flag.Duration("timeout", 5*time.Second, "Give up when no frame arrives for this long")
)

func main() {
	flag.Parse()
	log.Init(config.LogLevel())

	if err := run(); err != nil {
		log.Error("snap failed", "error", err)
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
	drv, err := driver.New(*driverName)
	if err != nil {
		return err
	}

	reg := kinect.NewRegistry(drv, kinect.WithConfig(manager))
	defer reg.Close()

	s, err := reg.NewSession()
	if err != nil {
		return err
	}
	if err := s.Open(context.Background(), *index); err != nil {
		return err
	}
	if *tilt != 0 {
		if applied, err := s.SetTilt(*tilt); err != nil {
			log.Warn("tilt failed", "error", err)
		} else {
			log.Info("tilted", "degrees", applied)
		}
	}

	dst := cvsink.New()
	defer dst.Close()

	interval := cfg.RenderInterval()
	for saved := 0; saved < *frames; {
		deadline := time.Now().Add(*wait)
		for {
			updated, err := s.RenderTick(dst)
			if err != nil {
				return err
			}
			if updated {
				break
			}
			if time.Now().After(deadline) {
				return fmt.Errorf("no frame from device %d within %s", s.Index(), *wait)
			}
			time.Sleep(interval)
		}

		saved++
		path := filepath.Join(*outDir, fmt.Sprintf("kinect%d-%03d.png", s.Index(), saved))
		if err := write(path, dst); err != nil {
			return err
		}
		fmt.Printf("📸 %s (%s, ts %d)\n", path, s.Mode(), s.Timestamp())
	}
	return nil
}

// write saves m as an image; RGB frames are swapped to OpenCV's BGR order.
func write(path string, m *cvsink.Mat) error {
	img := *m.Mat()
	if m.Info().PlaneCount == 3 {
		bgr := gocv.NewMat()
		defer bgr.Close()
		gocv.CvtColor(img, &bgr, gocv.ColorRGBToBGR)
		img = bgr
	}
	if !gocv.IMWrite(path, img) {
		return fmt.Errorf("write %s failed", path)
	}
	return nil
}
