package scale

import (
	"errors"
	"sync"
)

var (
	// ErrLeaseOutstanding is returned by Lease while an earlier lease has not
	// been committed or released.
	ErrLeaseOutstanding = errors.New("ring buffer: lease outstanding")
	// ErrLeaseReleased is returned when committing a lease twice.
	ErrLeaseReleased = errors.New("ring buffer: lease already released")
)

// RingBuffer is a fixed-capacity byte ring fed by one producer and drained
// line by line by one consumer. One slot is always left unused, so
// write == read means empty and write+1 == read (mod capacity) means full.
type RingBuffer struct {
	mu      sync.Mutex
	data    []byte
	read    int
	write   int
	leased  bool
	dropped uint64
}

// WriteLease grants the producer exclusive access to a contiguous free
// region of the buffer until Commit or Release is called.
type WriteLease struct {
	buf  *RingBuffer
	data []byte
	done bool
}

// NewRingBuffer allocates a ring holding at most capacity-1 unread bytes.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity < 2 {
		panic("scale: ring buffer capacity must be at least 2")
	}
	return &RingBuffer{data: make([]byte, capacity)}
}

// Cap returns the physical size of the storage.
func (b *RingBuffer) Cap() int {
	return len(b.data)
}

// Lease returns the contiguous free run starting at the write cursor. The
// run stops at the physical end of storage or one slot before the read
// cursor, whichever comes first, so a single lease never wraps. A
// zero-length lease means the producer has to release it and back off.
func (b *RingBuffer) Lease() (*WriteLease, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.leased {
		return nil, ErrLeaseOutstanding
	}
	b.leased = true
	end := b.write + b.freeRun()
	return &WriteLease{buf: b, data: b.data[b.write:end:end]}, nil
}

// freeRun must be called with mu held.
func (b *RingBuffer) freeRun() int {
	size := len(b.data)
	if b.write >= b.read {
		n := size - b.write
		if b.read == 0 {
			n-- // the last slot would make write catch up with read
		}
		return n
	}
	return b.read - b.write - 1
}

// Bytes returns the leased region. It must not be used after Commit.
func (l *WriteLease) Bytes() []byte {
	return l.data
}

// Len returns the size of the leased region.
func (l *WriteLease) Len() int {
	return len(l.data)
}

// Commit publishes the first n bytes of the lease to the consumer and
// releases it. n is clamped to [0, Len()].
func (l *WriteLease) Commit(n int) error {
	b := l.buf
	b.mu.Lock()
	defer b.mu.Unlock()

	if l.done {
		return ErrLeaseReleased
	}
	l.done = true
	b.leased = false

	n = max(0, min(n, len(l.data)))
	b.write = (b.write + n) % len(b.data)
	l.data = nil
	return nil
}

// Release gives the lease back without publishing anything. Releasing an
// already committed lease is a no-op.
func (l *WriteLease) Release() {
	_ = l.Commit(0)
}

// ExtractLine returns the next complete line, without its terminator. Both
// '\r' and '\n' terminate a line and runs of terminators never produce empty
// lines. A line that straddles the physical end of storage is returned as a
// single string. When no terminator follows the pending bytes, ok is false
// and the partial line stays in place for a later call.
func (b *RingBuffer) ExtractLine() (line string, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	size := len(b.data)
	for b.read != b.write && isTerminator(b.data[b.read]) {
		b.data[b.read] = 0
		b.read = (b.read + 1) % size
	}

	start := b.read
	for i := start; i != b.write; i = (i + 1) % size {
		if !isTerminator(b.data[i]) {
			continue
		}
		line = b.copyOut(start, i)
		b.zero(start, (i+1)%size)
		b.read = (i + 1) % size
		return line, true
	}

	// A full ring without a terminator can never yield a line and the
	// producer can never get space again: give up on those bytes.
	if b.full() {
		b.dropped += uint64(b.buffered())
		b.zero(b.read, b.write)
		b.read = b.write
	}
	return "", false
}

// copyOut must be called with mu held.
func (b *RingBuffer) copyOut(from, to int) string {
	if from <= to {
		return string(b.data[from:to])
	}
	out := make([]byte, 0, len(b.data)-from+to)
	out = append(out, b.data[from:]...)
	out = append(out, b.data[:to]...)
	return string(out)
}

// zero clears [from, to) modulo capacity. Must be called with mu held.
func (b *RingBuffer) zero(from, to int) {
	if from <= to {
		clear(b.data[from:to])
		return
	}
	clear(b.data[from:])
	clear(b.data[:to])
}

func isTerminator(c byte) bool {
	return c == '\r' || c == '\n'
}

// IsEmpty reports whether there are no unread bytes.
func (b *RingBuffer) IsEmpty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.read == b.write
}

// IsFull reports whether every usable slot holds an unread byte.
func (b *RingBuffer) IsFull() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.full()
}

func (b *RingBuffer) full() bool {
	return (b.write+1)%len(b.data) == b.read
}

// Buffered returns the number of unread bytes.
func (b *RingBuffer) Buffered() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffered()
}

func (b *RingBuffer) buffered() int {
	return (b.write - b.read + len(b.data)) % len(b.data)
}

// Dropped returns how many unread bytes were discarded because the ring
// filled up without containing a complete line.
func (b *RingBuffer) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
