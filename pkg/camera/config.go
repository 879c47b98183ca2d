// Package camera provides the runtime-configurable grabber settings: video
// mode, indicator LEDs, driver timeouts and render cadence.
package camera

import (
	"fmt"
	"time"

	"github.com/teslashibe/go-kinect/pkg/driver"
)

// Config holds all grabber configuration parameters.
// Values can be modified via the config API at runtime; video mode changes
// apply to sessions opened afterwards.
type Config struct {
	// === Video mode ===
	Resolution string `json:"resolution"` // "low", "medium", "high"
	Format     string `json:"format"`     // "ir8", "rgb"

	// === Indicator LED ===
	OpenLED  string `json:"open_led"`  // set once streaming starts
	CloseLED string `json:"close_led"` // set when the session closes

	// === Driver ===
	// EventTimeoutMs bounds each event-processing call, so shutdown is noticed
	// at least this often even when no frames arrive.
	EventTimeoutMs int `json:"event_timeout_ms"`

	// InitTimeoutMs bounds the wait for the capture worker to create the
	// driver context.
	InitTimeoutMs int `json:"init_timeout_ms"`

	// DriverLogLevel is the driver's own diagnostic verbosity.
	DriverLogLevel string `json:"driver_log_level"`

	// === Render ===
	RenderFPS   int  `json:"render_fps"`   // host render ticks per second
	Unique      bool `json:"unique"`       // default unique flag for new sessions
	JPEGQuality int  `json:"jpeg_quality"` // preview encoding 1-100
}

// Limits.
const (
	MaxTiltDegrees    = 30.0
	MinEventTimeoutMs = 10
	MaxEventTimeoutMs = 120000
	MaxInitTimeoutMs  = 30000
	MaxRenderFPS      = 120
)

// DefaultConfig returns the grabber defaults: high resolution infrared,
// red LED while open, blinking green on close.
func DefaultConfig() Config {
	return Config{
		Resolution: "high",
		Format:     "ir8",

		OpenLED:  "red",
		CloseLED: "blink_green",

		EventTimeoutMs: 60000,
		InitTimeoutMs:  2000,
		DriverLogLevel: "warning",

		RenderFPS:   30,
		Unique:      true,
		JPEGQuality: 80,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	res, err := driver.ParseResolution(c.Resolution)
	if err != nil {
		errors = append(errors, "resolution must be low, medium, or high")
	}
	format, err := driver.ParseFormat(c.Format)
	if err != nil {
		errors = append(errors, "format must be ir8 or rgb")
	}
	if len(errors) == 0 {
		if _, err := driver.FindVideoMode(res, format); err != nil {
			errors = append(errors, fmt.Sprintf("video mode %s/%s is not supported", c.Resolution, c.Format))
		}
	}

	if _, err := driver.ParseLED(c.OpenLED); err != nil {
		errors = append(errors, "open_led must be a valid LED state")
	}
	if _, err := driver.ParseLED(c.CloseLED); err != nil {
		errors = append(errors, "close_led must be a valid LED state")
	}

	if c.EventTimeoutMs < MinEventTimeoutMs || c.EventTimeoutMs > MaxEventTimeoutMs {
		errors = append(errors, "event_timeout_ms must be between 10 and 120000")
	}
	if c.InitTimeoutMs < 1 || c.InitTimeoutMs > MaxInitTimeoutMs {
		errors = append(errors, "init_timeout_ms must be between 1 and 30000")
	}
	if _, err := driver.ParseLogLevel(c.DriverLogLevel); err != nil {
		errors = append(errors, "driver_log_level must be fatal, error, warning, notice, info, debug, spew, or flood")
	}

	if c.RenderFPS < 1 || c.RenderFPS > MaxRenderFPS {
		errors = append(errors, "render_fps must be between 1 and 120")
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		errors = append(errors, "jpeg_quality must be between 1 and 100")
	}

	return errors
}

// VideoMode resolves the configured resolution and format.
func (c *Config) VideoMode() (driver.VideoMode, error) {
	res, err := driver.ParseResolution(c.Resolution)
	if err != nil {
		return driver.VideoMode{}, err
	}
	format, err := driver.ParseFormat(c.Format)
	if err != nil {
		return driver.VideoMode{}, err
	}
	return driver.FindVideoMode(res, format)
}

// LEDs returns the parsed open and close indicator states, falling back to
// red and blinking green.
func (c *Config) LEDs() (open, closing driver.LED) {
	open, err := driver.ParseLED(c.OpenLED)
	if err != nil {
		open = driver.LEDRed
	}
	closing, err = driver.ParseLED(c.CloseLED)
	if err != nil {
		closing = driver.LEDBlinkGreen
	}
	return open, closing
}

// LogLevel returns the parsed driver log level, falling back to warning.
func (c *Config) LogLevel() driver.LogLevel {
	lvl, err := driver.ParseLogLevel(c.DriverLogLevel)
	if err != nil {
		return driver.LogWarning
	}
	return lvl
}

// EventTimeout returns EventTimeoutMs as a duration.
func (c *Config) EventTimeout() time.Duration {
	return time.Duration(c.EventTimeoutMs) * time.Millisecond
}

// InitTimeout returns InitTimeoutMs as a duration.
func (c *Config) InitTimeout() time.Duration {
	return time.Duration(c.InitTimeoutMs) * time.Millisecond
}

// RenderInterval returns the time between render ticks.
func (c *Config) RenderInterval() time.Duration {
	if c.RenderFPS <= 0 {
		return time.Second / 30
	}
	return time.Second / time.Duration(c.RenderFPS)
}

// Capabilities returns the sensor capabilities.
func Capabilities() map[string]interface{} {
	var modes []string
	for _, f := range []driver.Format{driver.FormatIR8Bit, driver.FormatRGB} {
		for _, r := range []driver.Resolution{driver.ResolutionLow, driver.ResolutionMedium, driver.ResolutionHigh} {
			if m, err := driver.FindVideoMode(r, f); err == nil {
				modes = append(modes, m.String())
			}
		}
	}
	return map[string]interface{}{
		"video_modes":  modes,
		"max_tilt_deg": MaxTiltDegrees,
		"min_tilt_deg": -MaxTiltDegrees,
		"led_states":   []string{"off", "green", "red", "yellow", "blink_green", "blink_red_yellow"},
		"drivers":      driver.Drivers(),
	}
}
