// SPDX-License-Identifier: MIT
package ring

import (
	"testing"
)

func TestPushDrainOrder(t *testing.T) {
	b, err := NewBuffer(16)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 10; i++ {
		b.Push(float64(i))
	}

	if b.Len() != 10 {
		t.Fatalf("Len() = %d, expected 10", b.Len())
	}

	dst := make([]float64, 16)
	n := b.Drain(dst)
	if n != 10 {
		t.Fatalf("Drain returned %d, expected 10", n)
	}

	for i := 0; i < n; i++ {
		if dst[i] != float64(i) {
			t.Errorf("dst[%d] = %f, expected %d", i, dst[i], i)
		}
	}

	if n := b.Drain(dst); n != 0 {
		t.Errorf("Drain on empty buffer returned %d, expected 0", n)
	}
}

func TestCapacityMustBePowerOfTwo(t *testing.T) {
	if _, err := NewBuffer(1000); err == nil {
		t.Error("expected error for non-power-of-2 capacity")
	}
	if _, err := NewBuffer(1024); err != nil {
		t.Errorf("unexpected error for power-of-2 capacity: %v", err)
	}
}

// Pushing a burst larger than capacity must never block or panic. The
// overflow is dropped and counted; the buffered prefix stays intact.
func TestOverrunDropsNewest(t *testing.T) {
	const capacity = 16
	b, err := NewBuffer(capacity)
	if err != nil {
		t.Fatal(err)
	}

	const burst = capacity * 3
	for i := 0; i < burst; i++ {
		b.Push(float64(i))
	}

	if got := b.Overruns(); got != burst-capacity {
		t.Errorf("Overruns() = %d, expected %d", got, burst-capacity)
	}
	if b.Len() != capacity {
		t.Fatalf("Len() = %d, expected %d", b.Len(), capacity)
	}

	dst := make([]float64, capacity)
	n := b.Drain(dst)
	if n != capacity {
		t.Fatalf("Drain returned %d, expected %d", n, capacity)
	}

	// The samples that made it in are the oldest, in order, untorn.
	for i := 0; i < n; i++ {
		if dst[i] != float64(i) {
			t.Errorf("dst[%d] = %f, expected %d", i, dst[i], i)
		}
	}

	// Space freed by the drain accepts new samples again.
	b.Push(99)
	if b.Len() != 1 {
		t.Errorf("Len() = %d after post-drain push, expected 1", b.Len())
	}
}

func TestDrainBounded(t *testing.T) {
	b, _ := NewBuffer(64)
	for i := 0; i < 40; i++ {
		b.Push(float64(i))
	}

	dst := make([]float64, 8)
	if n := b.Drain(dst); n != 8 {
		t.Fatalf("Drain returned %d, expected 8", n)
	}
	if dst[0] != 0 || dst[7] != 7 {
		t.Errorf("bounded drain returned wrong window: %v", dst)
	}
	if b.Len() != 32 {
		t.Errorf("Len() = %d after bounded drain, expected 32", b.Len())
	}
}

func TestPushHotPath(t *testing.T) {
	b, _ := NewBuffer(DefaultCapacity)
	dst := make([]float64, DefaultCapacity)

	// Warm-up.
	b.Push(0.5)
	b.Drain(dst)

	allocs := testing.AllocsPerRun(100, func() {
		for i := 0; i < 512; i++ {
			b.Push(float64(i) / 512)
		}
		b.Drain(dst)
	})

	if allocs > 0 {
		t.Errorf("Expected zero allocations in push/drain hot path, got %.1f", allocs)
	}
}

func TestConcurrentProducerConsumer(t *testing.T) {
	b, _ := NewBuffer(1024)

	const total = 100000
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < total; i++ {
			b.Push(float64(i))
		}
	}()

	dst := make([]float64, 1024)
	drained := 0
	last := -1.0
	check := func(n int) {
		for i := 0; i < n; i++ {
			if dst[i] <= last || dst[i] >= total {
				t.Fatalf("drained sample %f out of order after %f", dst[i], last)
			}
			last = dst[i]
		}
		drained += n
	}

	for {
		select {
		case <-done:
			check(b.Drain(dst))
			if b.Len() != 0 {
				continue
			}
			// Every push is either drained or counted as dropped,
			// exactly once.
			if dropped := int(b.Overruns()); drained+dropped != total {
				t.Errorf("drained %d + dropped %d != pushed %d", drained, dropped, total)
			}
			return
		default:
			check(b.Drain(dst))
		}
	}
}

// A tiny buffer under a sustained firehose keeps producer and consumer off
// each other's cells: every drained sample must be a value that was pushed,
// in increasing order, with the drop counter absorbing the rest.
func TestConcurrentSustainedOverrun(t *testing.T) {
	b, _ := NewBuffer(8)

	const total = 50000
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < total; i++ {
			b.Push(float64(i))
		}
	}()

	dst := make([]float64, 8)
	drained := 0
	last := -1.0
	for {
		n := b.Drain(dst)
		for i := 0; i < n; i++ {
			if dst[i] != float64(int(dst[i])) || dst[i] <= last || dst[i] >= total {
				t.Fatalf("torn or reordered sample %v after %v", dst[i], last)
			}
			last = dst[i]
		}
		drained += n

		select {
		case <-done:
			if b.Len() == 0 {
				if dropped := int(b.Overruns()); drained+dropped != total {
					t.Errorf("drained %d + dropped %d != pushed %d", drained, dropped, total)
				}
				return
			}
		default:
		}
	}
}

func BenchmarkPush(b *testing.B) {
	buf, _ := NewBuffer(DefaultCapacity)
	dst := make([]float64, DefaultCapacity)

	b.ReportAllocs()
	for n := 0; n < b.N; n++ {
		for i := 0; i < 512; i++ {
			buf.Push(0.25)
		}
		buf.Drain(dst)
	}
}
