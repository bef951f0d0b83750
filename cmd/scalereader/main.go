// Command scalereader reads block-protocol weight data from a serial scale
// and prints the latest reading as JSON every ten seconds.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	scale "github.com/luhtfiimanal/go-scale-reader"
	"github.com/luhtfiimanal/go-scale-reader/config"
	"github.com/luhtfiimanal/go-scale-reader/serial"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	cfg  config.Config
	list bool
}

func parseArgs(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("scalereader", flag.ContinueOnError)
	fs.SetOutput(stderr)
	def := config.Default()

	var (
		device   = fs.String("p", def.Device, "serial port device")
		baud     = fs.Int("b", def.BaudRate, "baud rate")
		backend  = fs.String("backend", def.Backend, "serial backend: linux or portable")
		level    = fs.String("log-level", def.LogLevel, "log level: trace, debug, info, warn, error")
		cfgPath  = fs.String("config", "", "YAML config file; explicit flags override it")
		listOnly = fs.Bool("list", false, "list serial ports and exit")
	)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "%s\nParse scale data and show every 10 secs as JSON\nArguments\n", fs.Name())
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	cfg := def
	if *cfgPath != "" {
		loaded, err := config.Load(*cfgPath)
		if err != nil {
			return options{}, err
		}
		cfg = loaded
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "p":
			cfg.Device = *device
		case "b":
			cfg.BaudRate = *baud
		case "backend":
			cfg.Backend = *backend
		case "log-level":
			cfg.LogLevel = *level
		}
	})
	if err := cfg.Validate(); err != nil {
		return options{}, err
	}
	return options{cfg: cfg, list: *listOnly}, nil
}

func run(args []string, stdout, stderr io.Writer) error {
	opts, err := parseArgs(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	cfg := opts.cfg

	log := zerolog.New(zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.TimeOnly}).
		Level(cfg.Level()).
		With().Timestamp().Logger()

	if opts.list {
		ports, err := serial.ListPorts()
		if err != nil {
			return err
		}
		for _, port := range ports {
			fmt.Fprintln(stdout, port)
		}
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	port, err := serial.OpenBackend(cfg.Backend, cfg.Serial())
	if err != nil {
		return fmt.Errorf("failed to open device %s@B%d: %w", cfg.Device, cfg.BaudRate, err)
	}
	defer port.Close()
	log.Info().Str("device", cfg.Device).Int("baud", cfg.BaudRate).Str("backend", cfg.Backend).Msg("opened the device")

	if err := port.Flush(); err != nil {
		log.Warn().Err(err).Str("device", cfg.Device).Msg("failed to flush input")
	}

	// Closing the port wakes a producer blocked in Read
	go func() {
		<-ctx.Done()
		port.Close()
	}()

	p := scale.NewPipeline(cfg.BufferSize, log)
	cfg.Apply(p)
	err = p.Run(ctx, port, reporter(stdout))
	log.Info().Msg("shutting down")
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
