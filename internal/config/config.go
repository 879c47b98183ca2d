// Package config provides environment-driven settings for go-kinect commands.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Defaults used when the corresponding environment variable is unset.
const (
	DefaultHTTPAddr    = ":8090"
	DefaultServerURL   = "http://localhost:8090"
	DefaultDriver      = "fake"
	DefaultFakeDevices = 1
	DefaultLogLevel    = "info"
)

// HTTPAddr returns the listen address from KINECT_HTTP_ADDR.
func HTTPAddr() string {
	return stringEnv("KINECT_HTTP_ADDR", DefaultHTTPAddr)
}

// ServerURL returns the kinectd base URL from KINECT_SERVER_URL.
// A trailing slash is removed.
func ServerURL() string {
	return strings.TrimRight(stringEnv("KINECT_SERVER_URL", DefaultServerURL), "/")
}

// WebsocketURL converts the server URL into a ws:// or wss:// URL.
func WebsocketURL() string {
	u := ServerURL()
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u
}

// Driver returns the driver name from KINECT_DRIVER ("fake" or "freenect").
func Driver() string {
	return stringEnv("KINECT_DRIVER", DefaultDriver)
}

// FakeDevices returns how many devices the fake driver reports (KINECT_FAKE_DEVICES).
func FakeDevices() int {
	if v := os.Getenv("KINECT_FAKE_DEVICES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return DefaultFakeDevices
}

// LogLevel returns the log level from KINECT_LOG_LEVEL.
func LogLevel() string {
	return stringEnv("KINECT_LOG_LEVEL", DefaultLogLevel)
}

func stringEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
