package scale

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Source is the transport the producer reads from. Read waits at most
// timeout for data and returns 0 bytes when none arrived. An error aborts
// only the current attempt, except for errors matching os.ErrClosed or
// io.EOF, which end the producer.
type Source interface {
	Read(p []byte, timeout time.Duration) (int, error)
}

// Defaults used by NewPipeline.
const (
	DefaultCapacity     = 8192
	DefaultReadTimeout  = time.Second
	DefaultBackoff      = time.Second
	DefaultPollInterval = 500 * time.Millisecond
	DefaultReportEvery  = 10 * time.Second
)

// Pipeline wires one producer, one consumer and one reporter around a
// RingBuffer, a Parser and a Store.
type Pipeline struct {
	Buffer *RingBuffer
	Parser *Parser
	Store  *Store
	Log    zerolog.Logger

	ReadTimeout  time.Duration // passed to Source.Read
	Backoff      time.Duration // producer pause when a read or a lease yields no bytes
	PollInterval time.Duration // consumer pause when no line is available
	ReportEvery  time.Duration // reporter fires when wall-clock seconds are a multiple of this
}

// NewPipeline builds a pipeline around a ring of the given capacity.
func NewPipeline(capacity int, log zerolog.Logger) *Pipeline {
	store := NewStore()
	return &Pipeline{
		Buffer:       NewRingBuffer(capacity),
		Parser:       NewParser(store),
		Store:        store,
		Log:          log,
		ReadTimeout:  DefaultReadTimeout,
		Backoff:      DefaultBackoff,
		PollInterval: DefaultPollInterval,
		ReportEvery:  DefaultReportEvery,
	}
}

// Run starts the producer, the consumer and, when report is not nil, the
// reporter. It returns once ctx is done or the source is closed; the
// returned error is the producer's.
func (p *Pipeline) Run(ctx context.Context, src Source, report func(time.Time, Snapshot)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg      sync.WaitGroup
		prodErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer cancel()
		prodErr = p.Produce(ctx, src)
	}()
	go func() {
		defer wg.Done()
		p.Consume(ctx)
	}()
	if report != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Report(ctx, report)
		}()
	}
	wg.Wait()
	return prodErr
}

// Produce fills the ring from src until ctx is done or src is closed.
func (p *Pipeline) Produce(ctx context.Context, src Source) error {
	for ctx.Err() == nil {
		lease, err := p.Buffer.Lease()
		if err != nil {
			return err
		}
		if lease.Len() == 0 {
			lease.Release()
			p.Log.Debug().Int("buffered", p.Buffer.Buffered()).Msg("ring buffer full, backing off")
			if !sleepContext(ctx, p.Backoff) {
				return nil
			}
			continue
		}

		n, err := src.Read(lease.Bytes(), p.ReadTimeout)
		if n > 0 {
			_ = lease.Commit(n)
		} else {
			lease.Release()
		}
		if err == nil {
			if n <= 0 && !sleepContext(ctx, p.Backoff) {
				return nil
			}
			continue
		}
		if errors.Is(err, os.ErrClosed) || errors.Is(err, io.EOF) {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		p.Log.Warn().Err(err).Msg("read failed")
		if !sleepContext(ctx, p.Backoff) {
			return nil
		}
	}
	return nil
}

// Consume drains lines from the ring into the parser until ctx is done.
func (p *Pipeline) Consume(ctx context.Context) {
	var dropped uint64
	for ctx.Err() == nil {
		line, ok := p.Buffer.ExtractLine()
		if !ok {
			if d := p.Buffer.Dropped(); d != dropped {
				p.Log.Warn().Uint64("bytes", d-dropped).Msg("ring buffer overflow, discarded unterminated data")
				dropped = d
			}
			if !sleepContext(ctx, p.PollInterval) {
				return
			}
			continue
		}
		if err := p.Parser.ParseLine(line); err != nil {
			p.Log.Warn().Err(err).Str("line", line).Msg("protocol violation")
			continue
		}
		if strings.TrimSpace(line) == blockEnd {
			p.Log.Debug().Msg("block completed")
		}
	}
}

// Report calls fn with the store snapshot every time the wall-clock seconds
// reach a multiple of ReportEvery, truncated to whole seconds. It checks once
// per second so that cancellation is noticed quickly.
func (p *Pipeline) Report(ctx context.Context, fn func(time.Time, Snapshot)) {
	every := int64(p.ReportEvery / time.Second)
	if every < 1 {
		every = 1
	}
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	last := int64(-1)
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			sec := now.Unix()
			if sec%every != 0 || sec == last {
				continue
			}
			last = sec
			fn(now, p.Store.Snapshot())
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
