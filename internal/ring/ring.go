// SPDX-License-Identifier: MIT
/*
Package ring implements a single-producer/single-consumer ring buffer for
audio samples. It is the only channel between the audio callback (producer)
and the analysis goroutine (consumer).

Real-Time Safety:
- Push never blocks and never allocates
- No locks on either path; cursors are atomic
- When full, incoming samples are dropped and counted
*/
package ring

import (
	"fmt"
	"sync/atomic"

	"termsonic/pkg/bitint"
)

// DefaultCapacity is the default buffer size in samples.
// 8192 samples is roughly 185ms of audio at 44.1kHz.
const DefaultCapacity = 8192

// Buffer is a fixed-capacity SPSC sample queue. Exactly one goroutine may
// call Push/PushSlice and exactly one may call Drain. Overrun policy is
// drop-newest: a full buffer rejects incoming samples rather than touching
// the region the consumer may be reading, so the two sides never contend
// on a cell. The consumer drains the whole buffer many times per second,
// so a sustained overrun only ever costs the newest fraction of a buffer.
type Buffer struct {
	buf  []float64
	size uint64
	mask uint64

	// head is the producer write cursor, tail the consumer read cursor.
	// Both increase monotonically; the occupied region is [tail, head).
	// Only the producer stores head, only the consumer stores tail, so
	// the producer writes cells in [head, tail+size) while the consumer
	// reads [tail, head): disjoint modulo size.
	head atomic.Uint64
	tail atomic.Uint64

	overruns atomic.Uint64
}

// NewBuffer creates a buffer holding capacity samples. The capacity must be
// a power of 2 so cursor wrapping stays a mask operation.
func NewBuffer(capacity int) (*Buffer, error) {
	if !bitint.IsPowerOfTwo(capacity) {
		return nil, fmt.Errorf("ring capacity must be a power of 2, got %d", capacity)
	}

	return &Buffer{
		buf:  make([]float64, capacity),
		size: uint64(capacity),
		mask: uint64(capacity - 1),
	}, nil
}

// Push appends one sample, dropping it if the buffer is full. Producer-only.
// Never blocks, never allocates.
func (b *Buffer) Push(s float64) {
	head := b.head.Load()
	if head-b.tail.Load() >= b.size {
		b.overruns.Add(1)
		return
	}

	b.buf[head&b.mask] = s
	b.head.Store(head + 1)
}

// PushSlice appends every sample in src. Producer-only.
func (b *Buffer) PushSlice(src []float64) {
	for _, s := range src {
		b.Push(s)
	}
}

// Drain copies out buffered samples, oldest first, up to len(dst).
// Consumer-only. Returns the number of samples copied; 0 when empty.
// Never blocks.
func (b *Buffer) Drain(dst []float64) int {
	tail := b.tail.Load()
	head := b.head.Load()

	n := int(head - tail)
	if n <= 0 {
		return 0
	}
	if n > len(dst) {
		n = len(dst)
	}

	for i := 0; i < n; i++ {
		dst[i] = b.buf[(tail+uint64(i))&b.mask]
	}

	b.tail.Store(tail + uint64(n))
	return n
}

// Len returns the number of unread samples currently buffered.
func (b *Buffer) Len() int {
	n := b.head.Load() - b.tail.Load()
	if n > b.size {
		n = b.size
	}
	return int(n)
}

// Cap returns the fixed capacity in samples.
func (b *Buffer) Cap() int {
	return int(b.size)
}

// Overruns returns the total number of samples dropped because the producer
// outpaced the consumer. Pollable from any goroutine.
func (b *Buffer) Overruns() uint64 {
	return b.overruns.Load()
}
