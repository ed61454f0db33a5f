// Package config loads console settings from a YAML file.
//
// Settings are resolved in order: defaults, the file, the environment,
// then command-line flags, each overriding the values set before it.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Transports for run event channels.
const (
	TransportSSE       = "sse"
	TransportWebSocket = "websocket"
	TransportReplay    = "replay"
)

// Themes.
const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// EnvServer overrides the server URL.
const EnvServer = "TRIAGE_SERVER"

// Config holds all console settings.
type Config struct {
	// Server is the base URL of the analysis service.
	Server string `yaml:"server"`

	// Transport selects how run events are received.
	Transport string `yaml:"transport"`

	// Replay configures the offline replay transport.
	Replay ReplayConfig `yaml:"replay"`

	// Timeout bounds each request/response call. Event channels are
	// not subject to it.
	Timeout time.Duration `yaml:"timeout"`

	Theme string    `yaml:"theme"`
	Log   LogConfig `yaml:"log"`
}

// ReplayConfig configures replay of recorded runs.
type ReplayConfig struct {
	Dir   string        `yaml:"dir"`
	Delay time.Duration `yaml:"delay"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
	// File receives logs while the terminal UI runs. Empty means the
	// default state directory.
	File string `yaml:"file"`
}

// Defaults returns the default configuration.
func Defaults() Config {
	return Config{
		Server:    "http://localhost:3000",
		Transport: TransportSSE,
		Replay:    ReplayConfig{Dir: "."},
		Timeout:   30 * time.Second,
		Theme:     ThemeDark,
		Log:       LogConfig{Level: "info"},
	}
}

// Load reads the YAML file at path over the defaults. A missing file
// yields the defaults unless required is set.
func Load(path string, required bool) (Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return cfg, nil
		}
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, &ParseError{Path: path, Err: err}
	}
	return cfg, nil
}

// ApplyEnv overrides settings from environment variables read by getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvServer); v != "" {
		c.Server = v
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	u, err := url.Parse(c.Server)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid server url %q", c.Server)
	}
	switch c.Transport {
	case TransportSSE, TransportWebSocket:
	case TransportReplay:
		if c.Replay.Dir == "" {
			return errors.New("replay transport requires replay.dir")
		}
	default:
		return fmt.Errorf("unknown transport %q (want sse, websocket or replay)", c.Transport)
	}
	switch c.Theme {
	case ThemeDark, ThemeLight:
	default:
		return fmt.Errorf("unknown theme %q (want dark or light)", c.Theme)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	if c.Replay.Delay < 0 {
		return fmt.Errorf("replay delay must not be negative, got %s", c.Replay.Delay)
	}
	return nil
}

// ParseError is returned when a config file exists but cannot be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to parse config file " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
