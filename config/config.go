// Package config loads the scalereader settings from YAML.
//
// Example file:
//
//	device: /dev/ttyUSB0
//	baudRate: 115200
//	backend: linux
//	bufferSize: 8192
//	readTimeout: 1s
//	pollInterval: 500ms
//	reportEvery: 10s
//	logLevel: info
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	scale "github.com/luhtfiimanal/go-scale-reader"
	"github.com/luhtfiimanal/go-scale-reader/serial"
)

// Config holds everything the command needs to run a pipeline.
type Config struct {
	Device       string        `yaml:"device"`
	BaudRate     int           `yaml:"baudRate"`
	Backend      string        `yaml:"backend"`
	BufferSize   int           `yaml:"bufferSize"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	Backoff      time.Duration `yaml:"backoff"`
	PollInterval time.Duration `yaml:"pollInterval"`
	ReportEvery  time.Duration `yaml:"reportEvery"`
	LogLevel     string        `yaml:"logLevel"`
}

// ErrInvalid is wrapped by every error returned from Validate.
var ErrInvalid = errors.New("invalid config")

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		Device:       "/dev/ttyUSB0",
		BaudRate:     115200,
		Backend:      serial.BackendLinux,
		BufferSize:   scale.DefaultCapacity,
		ReadTimeout:  scale.DefaultReadTimeout,
		Backoff:      scale.DefaultBackoff,
		PollInterval: scale.DefaultPollInterval,
		ReportEvery:  scale.DefaultReportEvery,
		LogLevel:     zerolog.LevelInfoValue,
	}
}

// Load reads path on top of Default and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first setting that cannot be used.
func (c Config) Validate() error {
	switch {
	case c.Device == "":
		return fmt.Errorf("%w: device is empty", ErrInvalid)
	case !slices.Contains(serial.SupportedBaudRates, c.BaudRate):
		return fmt.Errorf("%w: baudRate %d not in %v", ErrInvalid, c.BaudRate, serial.SupportedBaudRates)
	case c.Backend != serial.BackendLinux && c.Backend != serial.BackendPortable:
		return fmt.Errorf("%w: backend %q", ErrInvalid, c.Backend)
	case c.BufferSize < 2:
		return fmt.Errorf("%w: bufferSize %d below 2", ErrInvalid, c.BufferSize)
	case c.ReadTimeout <= 0:
		return fmt.Errorf("%w: readTimeout must be positive", ErrInvalid)
	case c.Backoff < 0 || c.PollInterval <= 0:
		return fmt.Errorf("%w: backoff and pollInterval must not be negative or zero", ErrInvalid)
	case c.ReportEvery < time.Second:
		return fmt.Errorf("%w: reportEvery %s below 1s", ErrInvalid, c.ReportEvery)
	case c.ReportEvery%time.Second != 0:
		return fmt.Errorf("%w: reportEvery %s is not a whole number of seconds", ErrInvalid, c.ReportEvery)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: logLevel: %v", ErrInvalid, err)
	}
	return nil
}

// Level returns the parsed log level, falling back to info.
func (c Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Serial returns the transport settings.
func (c Config) Serial() serial.Config {
	return serial.Config{
		Device:      c.Device,
		BaudRate:    c.BaudRate,
		ReadTimeout: c.ReadTimeout,
	}
}

// Apply copies the timing settings onto p.
func (c Config) Apply(p *scale.Pipeline) {
	p.ReadTimeout = c.ReadTimeout
	p.Backoff = c.Backoff
	p.PollInterval = c.PollInterval
	p.ReportEvery = c.ReportEvery
}
