package driver

import (
	"fmt"
	"strings"
)

// Resolution selects the sensor resolution.
type Resolution int

const (
	ResolutionLow Resolution = iota
	ResolutionMedium
	ResolutionHigh
)

// String returns the resolution name.
func (r Resolution) String() string {
	switch r {
	case ResolutionLow:
		return "low"
	case ResolutionMedium:
		return "medium"
	case ResolutionHigh:
		return "high"
	}
	return fmt.Sprintf("resolution(%d)", int(r))
}

// ParseResolution parses "low", "medium" or "high".
func ParseResolution(s string) (Resolution, error) {
	switch strings.ToLower(s) {
	case "low":
		return ResolutionLow, nil
	case "medium":
		return ResolutionMedium, nil
	case "high":
		return ResolutionHigh, nil
	}
	return 0, fmt.Errorf("%w: resolution %q", ErrUnsupportedMode, s)
}

// Format selects the video stream pixel format.
type Format int

const (
	FormatRGB Format = iota
	FormatIR8Bit
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatRGB:
		return "rgb"
	case FormatIR8Bit:
		return "ir8"
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// ParseFormat parses "rgb" or "ir8".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "rgb":
		return FormatRGB, nil
	case "ir8", "ir":
		return FormatIR8Bit, nil
	}
	return 0, fmt.Errorf("%w: format %q", ErrUnsupportedMode, s)
}

// VideoMode is a concrete capture mode.
type VideoMode struct {
	Resolution Resolution `json:"resolution"`
	Format     Format     `json:"format"`
	Width      int        `json:"width"`
	Height     int        `json:"height"`
	Channels   int        `json:"channels"`
}

// Bytes returns the size of one frame.
func (m VideoMode) Bytes() int {
	return m.Width * m.Height * m.Channels
}

// String returns e.g. "ir8 1280x1024".
func (m VideoMode) String() string {
	return fmt.Sprintf("%s %dx%d", m.Format, m.Width, m.Height)
}

var videoModes = []VideoMode{
	{Resolution: ResolutionMedium, Format: FormatRGB, Width: 640, Height: 480, Channels: 3},
	{Resolution: ResolutionHigh, Format: FormatRGB, Width: 1280, Height: 1024, Channels: 3},
	{Resolution: ResolutionMedium, Format: FormatIR8Bit, Width: 640, Height: 488, Channels: 1},
	{Resolution: ResolutionHigh, Format: FormatIR8Bit, Width: 1280, Height: 1024, Channels: 1},
}

// FindVideoMode returns the mode for a resolution/format pair.
func FindVideoMode(res Resolution, format Format) (VideoMode, error) {
	for _, m := range videoModes {
		if m.Resolution == res && m.Format == format {
			return m, nil
		}
	}
	return VideoMode{}, fmt.Errorf("%w: %s %s", ErrUnsupportedMode, format, res)
}

// LED is an indicator light state.
type LED int

const (
	LEDOff LED = iota
	LEDGreen
	LEDRed
	LEDYellow
	LEDBlinkGreen
	LEDBlinkRedYellow
)

var ledNames = map[LED]string{
	LEDOff:            "off",
	LEDGreen:          "green",
	LEDRed:            "red",
	LEDYellow:         "yellow",
	LEDBlinkGreen:     "blink_green",
	LEDBlinkRedYellow: "blink_red_yellow",
}

// String returns the LED state name.
func (l LED) String() string {
	if name, ok := ledNames[l]; ok {
		return name
	}
	return fmt.Sprintf("led(%d)", int(l))
}

// ParseLED parses an LED state name such as "red" or "blink_green".
func ParseLED(s string) (LED, error) {
	for led, name := range ledNames {
		if name == strings.ToLower(s) {
			return led, nil
		}
	}
	return 0, fmt.Errorf("driver: unknown LED state %q", s)
}

// LogLevel is the driver's diagnostic verbosity.
type LogLevel int

const (
	LogFatal LogLevel = iota
	LogError
	LogWarning
	LogNotice
	LogInfo
	LogDebug
	LogSpew
	LogFlood
)

var logLevelNames = []string{"fatal", "error", "warning", "notice", "info", "debug", "spew", "flood"}

// String returns the level name.
func (l LogLevel) String() string {
	if l >= 0 && int(l) < len(logLevelNames) {
		return logLevelNames[l]
	}
	return fmt.Sprintf("loglevel(%d)", int(l))
}

// ParseLogLevel parses a driver log level name.
func ParseLogLevel(s string) (LogLevel, error) {
	for i, name := range logLevelNames {
		if name == strings.ToLower(s) {
			return LogLevel(i), nil
		}
	}
	return 0, fmt.Errorf("driver: unknown log level %q", s)
}
