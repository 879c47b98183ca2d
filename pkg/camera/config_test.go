package camera

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/teslashibe/go-kinect/pkg/driver"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Fatalf("DefaultConfig invalid: %v", errs)
	}

	mode, err := cfg.VideoMode()
	if err != nil {
		t.Fatalf("VideoMode failed: %v", err)
	}
	if mode.Width != 1280 || mode.Height != 1024 || mode.Channels != 1 {
		t.Errorf("Expected 1280x1024 IR, got %s (%d channels)", mode, mode.Channels)
	}

	open, closing := cfg.LEDs()
	if open != driver.LEDRed || closing != driver.LEDBlinkGreen {
		t.Errorf("Expected red/blink_green, got %s/%s", open, closing)
	}
	if cfg.EventTimeout() != 60*time.Second {
		t.Errorf("Expected 60s event timeout, got %v", cfg.EventTimeout())
	}
}

func TestPresets_AllValid(t *testing.T) {
	for _, name := range PresetNames() {
		cfg := GetPreset(name)
		if cfg == nil {
			t.Errorf("%s: preset missing", name)
			continue
		}
		if errs := cfg.Validate(); len(errs) != 0 {
			t.Errorf("%s: %v", name, errs)
		}
	}
	if GetPreset("nope") != nil {
		t.Error("GetPreset should return nil for unknown names")
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad resolution", func(c *Config) { c.Resolution = "ultra" }, "resolution"},
		{"unsupported mode", func(c *Config) { c.Resolution = "low" }, "not supported"},
		{"bad led", func(c *Config) { c.OpenLED = "purple" }, "open_led"},
		{"timeout too small", func(c *Config) { c.EventTimeoutMs = 1 }, "event_timeout_ms"},
		{"init timeout zero", func(c *Config) { c.InitTimeoutMs = 0 }, "init_timeout_ms"},
		{"log level", func(c *Config) { c.DriverLogLevel = "loud" }, "driver_log_level"},
		{"fps", func(c *Config) { c.RenderFPS = 0 }, "render_fps"},
		{"quality", func(c *Config) { c.JPEGQuality = 101 }, "jpeg_quality"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			errs := cfg.Validate()
			if len(errs) == 0 {
				t.Fatal("Expected validation errors")
			}
			if !strings.Contains(strings.Join(errs, ";"), tt.want) {
				t.Errorf("Expected an error mentioning %q, got %v", tt.want, errs)
			}
		})
	}
}

func TestManager_UpdateConfig(t *testing.T) {
	m := NewManager()

	var applied Config
	m.OnConfigChange = func(cfg Config) error {
		applied = cfg
		return nil
	}

	err := m.UpdateConfig(map[string]interface{}{
		"preset":     PresetPreview,
		"render_fps": float64(20),
		"unique":     false,
	})
	if err != nil {
		t.Fatalf("UpdateConfig failed: %v", err)
	}

	cfg := m.GetConfig()
	if cfg.Resolution != "medium" || cfg.RenderFPS != 20 || cfg.Unique {
		t.Errorf("Unexpected config after update: %+v", cfg)
	}
	if applied != cfg {
		t.Error("OnConfigChange did not receive the new config")
	}
}

func TestManager_RejectsInvalid(t *testing.T) {
	m := NewManager()
	before := m.GetConfig()

	if err := m.UpdateConfig(map[string]interface{}{"format": "depth"}); err == nil {
		t.Fatal("Expected validation error")
	}
	if err := m.UpdateConfig(map[string]interface{}{"preset": "nope"}); err == nil {
		t.Fatal("Expected unknown preset error")
	}
	if m.GetConfig() != before {
		t.Error("Config changed despite failed update")
	}
}

func TestManager_CallbackError(t *testing.T) {
	m := NewManager()
	boom := errors.New("device busy")
	m.OnConfigChange = func(Config) error { return boom }

	if err := m.SetConfig(QuietConfig()); !errors.Is(err, boom) {
		t.Errorf("Expected wrapped callback error, got %v", err)
	}
}

func TestManager_GetConfigJSON(t *testing.T) {
	m := NewManager()
	got := m.GetConfigJSON()
	if got["resolution"] != "high" || got["close_led"] != "blink_green" {
		t.Errorf("Unexpected JSON view: %v", got)
	}
}
