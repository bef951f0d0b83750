package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	scale "github.com/luhtfiimanal/go-scale-reader"
	"github.com/luhtfiimanal/go-scale-reader/serial"
)

func TestParseArgs_Defaults(t *testing.T) {
	opts, err := parseArgs(nil, &bytes.Buffer{})
	require.NoError(t, err)
	require.Equal(t, "/dev/ttyUSB0", opts.cfg.Device)
	require.Equal(t, 115200, opts.cfg.BaudRate)
	require.Equal(t, serial.BackendLinux, opts.cfg.Backend)
	require.False(t, opts.list)
}

func TestParseArgs_FlagsOverrideConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("device: /dev/ttyS1\nbaudRate: 9600\nreportEvery: 20s\n"), 0o600))

	opts, err := parseArgs([]string{"-config", path, "-b", "57600", "-list"}, &bytes.Buffer{})
	require.NoError(t, err)
	require.Equal(t, "/dev/ttyS1", opts.cfg.Device)
	require.Equal(t, 57600, opts.cfg.BaudRate)
	require.Equal(t, 20*time.Second, opts.cfg.ReportEvery)
	require.True(t, opts.list)
}

func TestParseArgs_Invalid(t *testing.T) {
	_, err := parseArgs([]string{"-b", "12345"}, &bytes.Buffer{})
	require.Error(t, err)

	_, err = parseArgs([]string{"-backend", "usb"}, &bytes.Buffer{})
	require.Error(t, err)
}

func TestRun_Help(t *testing.T) {
	var stderr bytes.Buffer
	require.NoError(t, run([]string{"-h"}, &bytes.Buffer{}, &stderr))
	require.Contains(t, stderr.String(), "Parse scale data and show every 10 secs as JSON")
}

func TestRun_OpenFailure(t *testing.T) {
	err := run([]string{"-p", "/dev/does-not-exist-scale"}, &bytes.Buffer{}, &bytes.Buffer{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to open device /dev/does-not-exist-scale@B115200")
}

func TestReporter(t *testing.T) {
	var r scale.Reading
	r.AddChannel("A", scale.Kilograms(500))
	r.AddChannel("B", scale.Kilograms(300))
	r.AddChannel(scale.TotalChannel, scale.Kilograms(800))

	var out bytes.Buffer
	now := time.Date(2024, 3, 1, 12, 0, 10, 0, time.UTC)
	reporter(&out)(now, scale.Snapshot{Reading: r, Count: 1})

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "Latest weight data for: Fri Mar  1 12:00:10 2024")
	require.Equal(t, `{"A":500,"B":300,"TOTAL":800,"VALID":true}`, lines[1])
}
