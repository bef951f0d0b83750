// Package serial provides the transports that feed raw scale bytes into a
// scale.Pipeline.
//
// Two backends are available:
//   - Open: Linux-only raw termios access through syscalls, with a
//     self-pipe so that Close unblocks a pending Read immediately
//   - OpenPortable: any platform supported by go.bug.st/serial
//
// Both configure the port as 8N1 without flow control and implement
//
//	Read(p []byte, timeout time.Duration) (int, error)
//
// which waits at most timeout for data and returns 0 bytes when none arrived.
package serial

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"
)

// Config holds configuration parameters for opening a serial port.
type Config struct {
	Device      string
	BaudRate    int
	ReadTimeout time.Duration // default for callers that do not pass their own
}

// Backend names accepted by OpenBackend.
const (
	BackendLinux    = "linux"
	BackendPortable = "portable"
)

var (
	// ErrClosed is returned by Read once the port has been closed. It
	// matches os.ErrClosed.
	ErrClosed = fmt.Errorf("serial port closed: %w", os.ErrClosed)
	// ErrUnsupportedBaud is returned by the Open functions for a baud rate
	// outside SupportedBaudRates.
	ErrUnsupportedBaud = errors.New("unsupported baud rate")
	// ErrUnknownBackend is returned by OpenBackend.
	ErrUnknownBackend = errors.New("unknown serial backend")
)

// SupportedBaudRates lists the rates both backends accept.
var SupportedBaudRates = []int{110, 300, 600, 1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200, 230400}

// Reader is the surface shared by both backends.
type Reader interface {
	Read(p []byte, timeout time.Duration) (int, error)
	Flush() error
	Close() error
}

// OpenBackend opens cfg.Device with the named backend.
func OpenBackend(backend string, cfg Config) (Reader, error) {
	switch backend {
	case BackendLinux, "":
		port, err := Open(cfg)
		if err != nil {
			return nil, err
		}
		return port, nil
	case BackendPortable:
		port, err := OpenPortable(cfg)
		if err != nil {
			return nil, err
		}
		return port, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

func checkBaud(baud int) error {
	if !slices.Contains(SupportedBaudRates, baud) {
		return fmt.Errorf("%w: %d", ErrUnsupportedBaud, baud)
	}
	return nil
}
