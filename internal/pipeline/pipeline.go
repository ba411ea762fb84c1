// SPDX-License-Identifier: MIT
/*
Package pipeline owns the analysis goroutine that turns raw samples into
published spectrum snapshots. Each iteration drains the sample ring,
slides the new samples into a fixed history buffer for 50% block overlap,
then runs transform -> bin -> smooth and publishes the result through a
single-slot mailbox.

Real-Time Constraints:
- Steady-state iterations allocate nothing
- The loop never blocks on the display or the audio callback
- Over-budget iterations are logged, never propagated as backpressure
*/
package pipeline

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"termsonic/internal/dsp"
	applog "termsonic/internal/log"
	"termsonic/internal/ring"
)

// retryInterval is how long the loop sleeps when too few samples are
// buffered for the next overlapped block. It bounds shutdown latency.
const retryInterval = 5 * time.Millisecond

// Config holds the pipeline construction parameters. Values are validated
// by New; invalid configuration never reaches the loop.
type Config struct {
	TransformSize int     // FFT size, power of 2 (default 2048)
	SampleRate    float64 // Hz (default 44100)
	BandCount     int     // clamped to [dsp.MinBands, dsp.MaxBands]
	Smoothing     float64 // EMA factor in (0, 1]
	PeakDecay     float64 // peak-hold decay in [0, 1)
	Window        dsp.WindowFunc
	TargetRate    int // publishes per second, clamped to [30, 60]
}

// Counters exposes the pipeline's degradation telemetry.
type Counters struct {
	Overruns   uint64 // samples dropped at the ring
	Skipped    uint64 // iterations with too few samples
	Discarded  uint64 // blocks dropped for non-finite samples
	OverBudget uint64 // iterations exceeding the frame budget
	Published  uint64 // snapshots published
}

// StageTimings holds the duration of each stage of the most recent
// completed iteration.
type StageTimings struct {
	Drain     time.Duration
	Transform time.Duration
	Bin       time.Duration
	Smooth    time.Duration
	Total     time.Duration
}

// Pipeline drives the analysis loop. Construct with New, feed it from a
// ring.Buffer, start with Start and read results with Snapshot.
type Pipeline struct {
	source   *ring.Buffer
	analyzer *dsp.Analyzer

	// stages guards the binner/smoother pair and its scratch buffer so a
	// band count change swaps all three together; a reader can never see
	// mismatched lengths.
	stages struct {
		sync.Mutex
		binner   *dsp.Binner
		smoother *dsp.Smoother
		banded   []float64
	}

	// history holds the most recent TransformSize samples; hop is how many
	// new samples one overlapped block advances (TransformSize/2).
	history []float64
	hop     int
	filled  int
	pending int

	drainBuf []float64
	interval time.Duration
	budget   time.Duration

	out mailbox

	skipped    atomic.Uint64
	discarded  atomic.Uint64
	overBudget atomic.Uint64
	published  atomic.Uint64

	timingsMu sync.Mutex
	timings   StageTimings

	runMu   sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// New constructs the full analysis chain over source. All buffers are
// allocated here; construction is the only fatal-error surface.
func New(cfg Config, source *ring.Buffer) (*Pipeline, error) {
	if source == nil {
		return nil, fmt.Errorf("pipeline requires a sample source")
	}

	analyzer, err := dsp.NewAnalyzer(cfg.TransformSize, cfg.SampleRate, cfg.Window)
	if err != nil {
		return nil, err
	}

	bandCount := dsp.ClampBandCount(cfg.BandCount)
	binner, err := dsp.NewBinner(bandCount, cfg.TransformSize, cfg.SampleRate)
	if err != nil {
		return nil, err
	}

	smoother, err := dsp.NewSmoother(bandCount, cfg.Smoothing, cfg.PeakDecay)
	if err != nil {
		return nil, err
	}

	rate := cfg.TargetRate
	if rate < 30 {
		rate = 30
	}
	if rate > 60 {
		rate = 60
	}
	interval := time.Second / time.Duration(rate)

	p := &Pipeline{
		source:   source,
		analyzer: analyzer,
		history:  make([]float64, cfg.TransformSize),
		hop:      cfg.TransformSize / 2,
		drainBuf: make([]float64, source.Cap()),
		interval: interval,
		budget:   interval,
	}
	p.stages.binner = binner
	p.stages.smoother = smoother
	p.stages.banded = make([]float64, bandCount)

	return p, nil
}

// Start launches the analysis goroutine. It returns an error if the
// pipeline is already running. Cancel the context or call Stop to shut the
// loop down; either is observed within one retry interval.
func (p *Pipeline) Start(ctx context.Context) error {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	if p.running {
		return fmt.Errorf("pipeline already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true

	go p.run(ctx)

	applog.Infof("Pipeline: analysis loop started (hop=%d samples, publish interval=%s)", p.hop, p.interval)
	return nil
}

// Stop signals the analysis goroutine and waits for it to exit. After Stop
// returns, no further snapshots are published. Safe to call more than once.
func (p *Pipeline) Stop() {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	if !p.running {
		return
	}
	p.cancel()
	<-p.done
	p.running = false

	applog.Infof("Pipeline: analysis loop stopped")
}

func (p *Pipeline) run(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if !p.iterate() {
			// Not enough samples yet; retry sooner than the publish
			// interval so a burst of audio is picked up promptly. The
			// sleep also bounds how fast we observe cancellation.
			select {
			case <-ctx.Done():
				return
			case <-time.After(retryInterval):
			}
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// iterate runs one drain -> transform -> bin -> smooth -> publish pass.
// Returns false when there were not enough new samples for an overlapped
// block, in which case nothing was published.
func (p *Pipeline) iterate() bool {
	start := time.Now()

	n := p.source.Drain(p.drainBuf)
	p.slide(p.drainBuf[:n])
	drained := time.Since(start)

	if p.filled < len(p.history) || p.pending < p.hop {
		p.skipped.Add(1)
		return false
	}
	// A block always ends at the newest sample, so everything buffered so
	// far is consumed by this pass. The next block requires a fresh hop of
	// samples; surplus beyond one hop was slid past, not queued, so no
	// backlog accumulates.
	p.pending = 0

	for _, s := range p.history {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			// Poisoned block: drop it and the history that contains it.
			// The previous snapshot stays published; stale-but-valid
			// beats propagating NaN into the display.
			p.discarded.Add(1)
			p.filled = 0
			p.pending = 0
			return true
		}
	}

	tTransform := time.Now()
	spectrum := p.analyzer.Process(p.history)
	transformed := time.Since(tTransform)

	p.stages.Lock()
	tBin := time.Now()
	_ = p.stages.binner.Bin(spectrum, p.stages.banded)
	binned := time.Since(tBin)

	tSmooth := time.Now()
	smoothed, peaks := p.stages.smoother.Update(p.stages.banded)
	smoothedDur := time.Since(tSmooth)

	p.out.publish(smoothed, peaks, time.Now())
	p.stages.Unlock()

	p.published.Add(1)

	total := time.Since(start)
	p.recordTimings(StageTimings{
		Drain:     drained,
		Transform: transformed,
		Bin:       binned,
		Smooth:    smoothedDur,
		Total:     total,
	})

	if total > p.budget {
		p.overBudget.Add(1)
		applog.Warnf("Pipeline: iteration took %s, budget %s (transform=%s bin=%s smooth=%s)",
			total, p.budget, transformed, binned, smoothedDur)
	}

	return true
}

// slide appends drained samples to the rolling history, discarding the
// oldest so the buffer always holds the most recent TransformSize samples.
func (p *Pipeline) slide(samples []float64) {
	n := len(samples)
	if n == 0 {
		return
	}
	size := len(p.history)

	if n >= size {
		copy(p.history, samples[n-size:])
		p.filled = size
	} else {
		copy(p.history, p.history[n:])
		copy(p.history[size-n:], samples)
		if p.filled += n; p.filled > size {
			p.filled = size
		}
	}

	if p.pending += n; p.pending > size {
		p.pending = size
	}
}

// SetBandCount rebuilds the binner/smoother pair for a new band count
// (clamped to the supported range) and swaps both in one exclusive
// operation, so no iteration ever runs with mismatched stage lengths.
// Smoothing state restarts from the next frame.
func (p *Pipeline) SetBandCount(n int) error {
	n = dsp.ClampBandCount(n)
	if n == p.BandCount() {
		return nil
	}

	binner, err := dsp.NewBinner(n, p.analyzer.FFTSize(), p.analyzer.SampleRate())
	if err != nil {
		return err
	}
	smoother, err := dsp.NewSmoother(n, p.stages.smoother.Smoothing(), p.stages.smoother.PeakDecay())
	if err != nil {
		return err
	}

	p.stages.Lock()
	p.stages.binner = binner
	p.stages.smoother = smoother
	p.stages.banded = make([]float64, n)
	p.stages.Unlock()

	applog.Debugf("Pipeline: band count changed to %d", n)
	return nil
}

// BandCount returns the current number of bands.
func (p *Pipeline) BandCount() int {
	p.stages.Lock()
	defer p.stages.Unlock()
	return p.stages.binner.BandCount()
}

// Snapshot returns a copy of the most recently published spectrum. Always
// complete and self-consistent; before the first publish it is empty.
func (p *Pipeline) Snapshot() Snapshot {
	return p.out.read()
}

// SnapshotInto copies the latest snapshot into caller-provided slices
// without allocating. Returns false if the slice lengths do not match the
// current band count.
func (p *Pipeline) SnapshotInto(bands, peaks []float64) (time.Time, bool) {
	return p.out.readInto(bands, peaks)
}

// Interval returns the time between publish attempts.
func (p *Pipeline) Interval() time.Duration {
	return p.interval
}

// Counters returns the current degradation telemetry.
func (p *Pipeline) Counters() Counters {
	return Counters{
		Overruns:   p.source.Overruns(),
		Skipped:    p.skipped.Load(),
		Discarded:  p.discarded.Load(),
		OverBudget: p.overBudget.Load(),
		Published:  p.published.Load(),
	}
}

// Timings returns the per-stage durations of the last completed iteration.
func (p *Pipeline) Timings() StageTimings {
	p.timingsMu.Lock()
	defer p.timingsMu.Unlock()
	return p.timings
}

func (p *Pipeline) recordTimings(t StageTimings) {
	p.timingsMu.Lock()
	p.timings = t
	p.timingsMu.Unlock()
}
