package camera

// Preset names for common configurations
const (
	PresetDefault = "default"
	PresetPreview = "preview"
	PresetColor   = "color"
	PresetColorHD = "color_hd"
	PresetQuiet   = "quiet"
	PresetDebug   = "debug"
)

// Presets returns all available preset configurations.
func Presets() map[string]Config {
	return map[string]Config{
		PresetDefault: DefaultConfig(),
		PresetPreview: PreviewConfig(),
		PresetColor:   ColorConfig(),
		PresetColorHD: ColorHDConfig(),
		PresetQuiet:   QuietConfig(),
		PresetDebug:   DebugConfig(),
	}
}

// PresetNames returns the list of available preset names.
func PresetNames() []string {
	return []string{
		PresetDefault,
		PresetPreview,
		PresetColor,
		PresetColorHD,
		PresetQuiet,
		PresetDebug,
	}
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	presets := Presets()
	if cfg, ok := presets[name]; ok {
		return &cfg
	}
	return nil
}

// PreviewConfig returns medium resolution infrared for lightweight previews.
func PreviewConfig() Config {
	cfg := DefaultConfig()
	cfg.Resolution = "medium"
	cfg.RenderFPS = 15
	cfg.JPEGQuality = 60
	return cfg
}

// ColorConfig returns 640x480 RGB.
func ColorConfig() Config {
	cfg := DefaultConfig()
	cfg.Resolution = "medium"
	cfg.Format = "rgb"
	return cfg
}

// ColorHDConfig returns 1280x1024 RGB. The sensor runs this mode at a lower
// rate, so rendering slows down with it.
func ColorHDConfig() Config {
	cfg := DefaultConfig()
	cfg.Format = "rgb"
	cfg.RenderFPS = 10
	return cfg
}

// QuietConfig keeps the indicator LED off.
func QuietConfig() Config {
	cfg := DefaultConfig()
	cfg.OpenLED = "off"
	cfg.CloseLED = "off"
	return cfg
}

// DebugConfig turns up driver verbosity and shortens the event timeout.
func DebugConfig() Config {
	cfg := DefaultConfig()
	cfg.DriverLogLevel = "debug"
	cfg.EventTimeoutMs = 1000
	return cfg
}
