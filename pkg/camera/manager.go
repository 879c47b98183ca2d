package camera

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Manager holds the current grabber configuration and handles updates.
type Manager struct {
	config Config
	mu     sync.RWMutex

	// Callback when config changes; new sessions pick up the new mode
	OnConfigChange func(cfg Config) error
}

// NewManager creates a new manager with default config.
func NewManager() *Manager {
	return &Manager{
		config: DefaultConfig(),
	}
}

// NewManagerWithConfig creates a manager starting from cfg.
func NewManagerWithConfig(cfg Config) (*Manager, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("validation failed: %v", errs)
	}
	return &Manager{config: cfg}, nil
}

// GetConfig returns the current configuration.
func (m *Manager) GetConfig() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// SetConfig replaces the configuration.
func (m *Manager) SetConfig(cfg Config) error {
	if errors := cfg.Validate(); len(errors) > 0 {
		return fmt.Errorf("validation failed: %v", errors)
	}

	m.mu.Lock()
	m.config = cfg
	callback := m.OnConfigChange
	m.mu.Unlock()

	if callback != nil {
		if err := callback(cfg); err != nil {
			return fmt.Errorf("failed to apply config: %w", err)
		}
	}

	return nil
}

// UpdateConfig updates specific fields of the configuration.
// Accepts a map of field names to values; "preset" is applied first.
func (m *Manager) UpdateConfig(params map[string]interface{}) error {
	m.mu.RLock()
	cfg := m.config
	m.mu.RUnlock()

	if presetName, ok := params["preset"].(string); ok {
		preset := GetPreset(presetName)
		if preset == nil {
			return fmt.Errorf("unknown preset: %s", presetName)
		}
		cfg = *preset
	}

	for key, value := range params {
		switch key {
		case "resolution":
			if v, ok := value.(string); ok {
				cfg.Resolution = v
			}
		case "format":
			if v, ok := value.(string); ok {
				cfg.Format = v
			}
		case "open_led":
			if v, ok := value.(string); ok {
				cfg.OpenLED = v
			}
		case "close_led":
			if v, ok := value.(string); ok {
				cfg.CloseLED = v
			}
		case "event_timeout_ms":
			if v, ok := toInt(value); ok {
				cfg.EventTimeoutMs = v
			}
		case "init_timeout_ms":
			if v, ok := toInt(value); ok {
				cfg.InitTimeoutMs = v
			}
		case "driver_log_level":
			if v, ok := value.(string); ok {
				cfg.DriverLogLevel = v
			}
		case "render_fps":
			if v, ok := toInt(value); ok {
				cfg.RenderFPS = v
			}
		case "unique":
			if v, ok := value.(bool); ok {
				cfg.Unique = v
			}
		case "jpeg_quality":
			if v, ok := toInt(value); ok {
				cfg.JPEGQuality = v
			}
		}
	}

	return m.SetConfig(cfg)
}

// GetConfigJSON returns the current config as a map for JSON serialization.
func (m *Manager) GetConfigJSON() map[string]interface{} {
	cfg := m.GetConfig()

	data, _ := json.Marshal(cfg)
	var result map[string]interface{}
	json.Unmarshal(data, &result)

	return result
}

func toInt(v interface{}) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		return int(val), true
	case json.Number:
		i, err := val.Int64()
		if err == nil {
			return int(i), true
		}
	}
	return 0, false
}
