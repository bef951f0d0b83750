//go:build !linux

package serial

import (
	"errors"
	"fmt"
	"time"
)

// Port is only available on Linux; use OpenPortable elsewhere.
type Port struct{}

// Open always fails on this platform.
func Open(cfg Config) (*Port, error) {
	return nil, fmt.Errorf("open %s: %w", cfg.Device, errors.ErrUnsupported)
}

func (s *Port) Read(p []byte, timeout time.Duration) (int, error) { return 0, ErrClosed }
func (s *Port) Flush() error                                      { return ErrClosed }
func (s *Port) Close() error                                      { return nil }
