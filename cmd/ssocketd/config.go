package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
	"github.com/stealthrocket/ssocket-go"
)

type config struct {
	Capacity       int           `toml:"capacity"`
	RecvWait       int           `toml:"recv_wait"`
	RecvBufferSize int           `toml:"recv_buffer_size"`
	Tick           time.Duration `toml:"tick"`
	LogLevel       string        `toml:"log_level"`
	LogFormat      string        `toml:"log_format"`
	Trace          bool          `toml:"trace"`
	Scripts        []string      `toml:"scripts"`
}

func defaultConfig() config {
	return config{
		Capacity:       ssocket.DefaultCapacity,
		RecvBufferSize: ssocket.DefaultRecvBufferSize,
		Tick:           5 * time.Millisecond,
		LogLevel:       "info",
		LogFormat:      "console",
	}
}

// loadConfig reads a TOML configuration file over the defaults. Unknown keys
// are rejected so typos do not go unnoticed.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, key := range undecoded {
			keys[i] = key.String()
		}
		return cfg, fmt.Errorf("reading config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

func (c *config) validate() error {
	if c.Tick <= 0 {
		return fmt.Errorf("invalid tick interval %s", c.Tick)
	}
	if len(c.Scripts) == 0 {
		return fmt.Errorf("no scripts to run")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("invalid log format %q", c.LogFormat)
	}
	return nil
}

func (c *config) logger(w io.Writer) zerolog.Logger {
	level, _ := zerolog.ParseLevel(c.LogLevel)
	if c.LogFormat == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
