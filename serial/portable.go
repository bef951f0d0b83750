package serial

import (
	"errors"
	"fmt"
	"time"

	goserial "go.bug.st/serial"
)

// PortablePort reads from a serial port through go.bug.st/serial. It has the
// same Read contract as Port, but a pending Read is only interrupted by
// Close once its timeout expires.
type PortablePort struct {
	port       goserial.Port
	config     Config
	timeout    time.Duration
	timeoutSet bool
}

// OpenPortable opens cfg.Device as 8N1 at cfg.BaudRate.
func OpenPortable(cfg Config) (*PortablePort, error) {
	if err := checkBaud(cfg.BaudRate); err != nil {
		return nil, err
	}
	mode := &goserial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   goserial.NoParity,
		StopBits: goserial.OneStopBit,
	}
	port, err := goserial.Open(cfg.Device, mode)
	if err != nil {
		return nil, fmt.Errorf("open failed: %w", err)
	}
	return &PortablePort{port: port, config: cfg}, nil
}

// Read waits up to timeout for data and reads what is available into p.
// A negative timeout waits indefinitely.
func (s *PortablePort) Read(p []byte, timeout time.Duration) (int, error) {
	if !s.timeoutSet || timeout != s.timeout {
		t := timeout
		if t < 0 {
			t = goserial.NoTimeout
		}
		if err := s.port.SetReadTimeout(t); err != nil {
			return 0, mapPortError(err)
		}
		s.timeout, s.timeoutSet = timeout, true
	}
	n, err := s.port.Read(p)
	if err != nil {
		if err = mapPortError(err); !errors.Is(err, ErrClosed) {
			err = fmt.Errorf("read %s: %w", s.config.Device, err)
		}
		return n, err
	}
	return n, nil
}

// Flush discards data received but not yet read.
func (s *PortablePort) Flush() error {
	if err := s.port.ResetInputBuffer(); err != nil {
		return mapPortError(err)
	}
	return nil
}

// Close closes the port.
func (s *PortablePort) Close() error {
	return s.port.Close()
}

func mapPortError(err error) error {
	var portErr *goserial.PortError
	if errors.As(err, &portErr) && portErr.Code() == goserial.PortClosed {
		return ErrClosed
	}
	return err
}

// ListPorts returns the serial ports found on the system.
func ListPorts() ([]string, error) {
	ports, err := goserial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list ports: %w", err)
	}
	return ports, nil
}
