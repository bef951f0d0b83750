package scale

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNestedBlockStart is returned when a block start arrives inside an
	// unfinished block. The unfinished block is discarded.
	ErrNestedBlockStart = errors.New("block start inside open block")
	// ErrEndWithoutTotal is returned when a block end arrives before a TOTAL
	// channel was parsed. Nothing is published.
	ErrEndWithoutTotal = errors.New("block end without total")
	// ErrReservedChannel is returned for a channel named ValidField. The
	// line is skipped and the block continues.
	ErrReservedChannel = errors.New("reserved channel name")
)

const (
	blockStart = "/"
	blockEnd   = `\`
)

// State is the position of a Parser within the block protocol.
type State int

const (
	Idle State = iota
	InBlock
	TotalSeen
	BlockDone
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case InBlock:
		return "in-block"
	case TotalSeen:
		return "total-seen"
	case BlockDone:
		return "block-done"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Parser assembles readings from the line protocol
//
//	/
//	A: 500kg
//	B: 300kg
//	TOTAL: 800kg
//	\
//
// and publishes each completed block to a Store. It is driven by a single
// consumer goroutine and is not safe for concurrent use.
type Parser struct {
	store      *Store
	state      State
	current    Reading
	violations uint64
}

// NewParser returns a parser publishing to store.
func NewParser(store *Store) *Parser {
	return &Parser{store: store}
}

// State returns the current protocol state.
func (p *Parser) State() State {
	return p.state
}

// Violations returns the number of protocol violations seen so far.
func (p *Parser) Violations() uint64 {
	return p.violations
}

// ParseLine feeds one line to the state machine. Protocol violations are
// reported as errors wrapping ErrNestedBlockStart, ErrEndWithoutTotal or
// ErrReservedChannel;
// the parser has already recovered when they are returned.
func (p *Parser) ParseLine(line string) error {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return nil

	case line == blockStart:
		prev := p.state
		p.state = InBlock
		p.current = Reading{}
		if prev == InBlock || prev == TotalSeen {
			p.violations++
			return fmt.Errorf("parse %q in state %s: %w", line, prev, ErrNestedBlockStart)
		}
		return nil

	case line == blockEnd:
		prev := p.state
		p.state = BlockDone
		current := p.current
		p.current = Reading{}
		if prev != TotalSeen {
			p.violations++
			return fmt.Errorf("parse %q in state %s: %w", line, prev, ErrEndWithoutTotal)
		}
		p.store.Publish(current)
		return nil
	}

	if p.state != InBlock && p.state != TotalSeen {
		return nil
	}
	name, value, ok := strings.Cut(line, ":")
	if !ok {
		return nil
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	if name == ValidField {
		p.violations++
		return fmt.Errorf("parse %q in state %s: %w", line, p.state, ErrReservedChannel)
	}
	p.current.AddChannel(name, ParseMass(strings.TrimSpace(value)))
	if name == TotalChannel {
		p.state = TotalSeen
	}
	return nil
}
