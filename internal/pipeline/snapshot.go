// SPDX-License-Identifier: MIT
package pipeline

import (
	"sync"
	"time"
)

// Snapshot is one complete, immutable result of the analysis pipeline:
// smoothed banded magnitudes in dB, decaying peak-hold values and the
// capture timestamp. A publish replaces the previous snapshot wholesale;
// readers never observe a partial update.
type Snapshot struct {
	Bands     []float64
	Peaks     []float64
	Timestamp time.Time
}

// mailbox is a single-slot latest-value handoff between the analysis
// goroutine (writer) and the display (reader). Contention is negligible at
// <=60 writes per second, so a plain mutex around whole-value copies is
// enough here; the lock-free structure lives on the sample path instead.
type mailbox struct {
	mu   sync.Mutex
	snap Snapshot
}

// publish copies bands and peaks into the slot. The internal slices are
// reused between publishes and only reallocated when the band count
// changes, keeping the steady-state loop allocation-free.
func (m *mailbox) publish(bands, peaks []float64, ts time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.snap.Bands) != len(bands) {
		m.snap.Bands = make([]float64, len(bands))
		m.snap.Peaks = make([]float64, len(peaks))
	}
	copy(m.snap.Bands, bands)
	copy(m.snap.Peaks, peaks)
	m.snap.Timestamp = ts
}

// read copies the current snapshot out into freshly allocated slices.
func (m *mailbox) read() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := Snapshot{
		Bands:     make([]float64, len(m.snap.Bands)),
		Peaks:     make([]float64, len(m.snap.Peaks)),
		Timestamp: m.snap.Timestamp,
	}
	copy(out.Bands, m.snap.Bands)
	copy(out.Peaks, m.snap.Peaks)
	return out
}

// readInto copies the current snapshot into caller-provided slices, both of
// which must match the current band count. Allocation-free alternative to
// read for performance-critical consumers.
func (m *mailbox) readInto(bands, peaks []float64) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(bands) != len(m.snap.Bands) || len(peaks) != len(m.snap.Peaks) {
		return time.Time{}, false
	}
	copy(bands, m.snap.Bands)
	copy(peaks, m.snap.Peaks)
	return m.snap.Timestamp, true
}
