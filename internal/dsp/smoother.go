// SPDX-License-Identifier: MIT
package dsp

import "fmt"

// Default smoothing parameters. A smoothing factor of 0.7 keeps the display
// responsive while damping frame-to-frame jitter; peaks lose 5% per frame.
const (
	DefaultSmoothing = 0.7
	DefaultPeakDecay = 0.95
)

// Smoother applies an exponential moving average and decaying peak hold to
// banded magnitudes across frames. State persists between calls and is
// owned exclusively by the analysis goroutine.
type Smoother struct {
	smoothing float64
	peakDecay float64

	smoothed []float64
	peaks    []float64
	primed   bool
}

// NewSmoother creates a smoother for bandCount bands. smoothing must be in
// (0, 1] and peakDecay in [0, 1).
func NewSmoother(bandCount int, smoothing, peakDecay float64) (*Smoother, error) {
	if bandCount < 1 {
		return nil, fmt.Errorf("band count must be positive, got %d", bandCount)
	}
	if smoothing <= 0 || smoothing > 1 {
		return nil, fmt.Errorf("smoothing factor must be in (0, 1], got %f", smoothing)
	}
	if peakDecay < 0 || peakDecay >= 1 {
		return nil, fmt.Errorf("peak decay must be in [0, 1), got %f", peakDecay)
	}

	return &Smoother{
		smoothing: smoothing,
		peakDecay: peakDecay,
		smoothed:  make([]float64, bandCount),
		peaks:     make([]float64, bandCount),
	}, nil
}

// Update folds values into the smoothing state and returns the smoothed
// magnitudes and decaying peaks. The first call seeds both directly from
// the input so the display does not ramp up from a zero history. Calling
// with a different band count than before resets all state to the new size.
//
// The returned slices are internal state, valid until the next Update; the
// caller must copy them to retain a frame.
func (s *Smoother) Update(values []float64) (smoothed, peaks []float64) {
	if len(values) != len(s.smoothed) {
		s.smoothed = make([]float64, len(values))
		s.peaks = make([]float64, len(values))
		s.primed = false
	}

	if !s.primed {
		copy(s.smoothed, values)
		copy(s.peaks, values)
		s.primed = true
		return s.smoothed, s.peaks
	}

	for i, v := range values {
		s.smoothed[i] = s.smoothing*v + (1-s.smoothing)*s.smoothed[i]

		decayed := s.peaks[i] * s.peakDecay
		if v > decayed {
			s.peaks[i] = v
		} else {
			s.peaks[i] = decayed
		}
	}

	return s.smoothed, s.peaks
}

// BandCount returns the current state size.
func (s *Smoother) BandCount() int {
	return len(s.smoothed)
}

// Smoothing returns the configured EMA factor.
func (s *Smoother) Smoothing() float64 {
	return s.smoothing
}

// PeakDecay returns the configured per-frame peak decay factor.
func (s *Smoother) PeakDecay() float64 {
	return s.peakDecay
}

// Reset clears all smoothing and peak state back to zero.
func (s *Smoother) Reset() {
	for i := range s.smoothed {
		s.smoothed[i] = 0
		s.peaks[i] = 0
	}
	s.primed = false
}
