// SPDX-License-Identifier: MIT
package dsp

import (
	"fmt"
	"math"
)

// Default band edge frequencies, covering the human hearing range.
const (
	DefaultFreqMin = 20.0
	DefaultFreqMax = 20000.0
)

// Supported band count range. The display derives the requested count from
// terminal width and clamps it to this range before constructing a Binner.
const (
	MinBands = 32
	MaxBands = 64
)

// Band maps a contiguous range of FFT bins to one visual band. LoBin and
// HiBin are inclusive.
type Band struct {
	Index      int
	LoBin      int
	HiBin      int
	CenterFreq float64
}

// Binner aggregates an FFT magnitude spectrum into logarithmically spaced
// frequency bands. Band layout is computed once at construction and is
// immutable; a band count change requires a new Binner.
type Binner struct {
	bands      []Band
	fftSize    int
	sampleRate float64
	freqMin    float64
	freqMax    float64
}

// NewBinner creates a binner with bandCount bands over
// [DefaultFreqMin, DefaultFreqMax].
func NewBinner(bandCount, fftSize int, sampleRate float64) (*Binner, error) {
	return NewBinnerRange(bandCount, fftSize, sampleRate, DefaultFreqMin, DefaultFreqMax)
}

// NewBinnerRange creates a binner with bandCount logarithmically spaced
// bands over [freqMin, freqMax]. Band boundaries follow
// f(i) = freqMin * (freqMax/freqMin)^(i/bandCount), each mapped to the
// nearest FFT bin. Boundaries are forced strictly increasing so every bin
// in range belongs to exactly one band; when there are barely more bins
// than bands this degrades to one bin per band with the remainder merged
// into the last band.
func NewBinnerRange(bandCount, fftSize int, sampleRate, freqMin, freqMax float64) (*Binner, error) {
	binCount := fftSize/2 + 1

	if bandCount < 1 || bandCount > binCount {
		return nil, fmt.Errorf("band count must be in [1, %d], got %d", binCount, bandCount)
	}
	if fftSize < 2 || sampleRate <= 0 {
		return nil, fmt.Errorf("invalid binner configuration: size=%d rate=%f", fftSize, sampleRate)
	}
	if freqMin <= 0 || freqMax <= freqMin {
		return nil, fmt.Errorf("invalid frequency range [%f, %f]", freqMin, freqMax)
	}

	maxBin := binCount - 1
	binWidth := sampleRate / float64(fftSize)
	ratio := freqMax / freqMin

	// Band edges as bin cursor positions. Band i owns [cuts[i], cuts[i+1]).
	cuts := make([]int, bandCount+1)
	for i := 0; i <= bandCount; i++ {
		f := freqMin * math.Pow(ratio, float64(i)/float64(bandCount))
		cuts[i] = int(math.Round(f / binWidth))
	}
	// The upper edge is exclusive.
	cuts[bandCount]++

	// Low bands of a log scale often collapse onto the same bin; force the
	// edges strictly increasing so no band ends up empty.
	for i := 1; i <= bandCount; i++ {
		if cuts[i] <= cuts[i-1] {
			cuts[i] = cuts[i-1] + 1
		}
	}

	// Pull edges that ran past Nyquist back in, preserving strict order.
	// Feasible because bandCount <= binCount.
	if cuts[bandCount] > maxBin+1 {
		cuts[bandCount] = maxBin + 1
	}
	for i := bandCount - 1; i >= 0; i-- {
		if cuts[i] >= cuts[i+1] {
			cuts[i] = cuts[i+1] - 1
		}
	}

	bands := make([]Band, bandCount)
	for i := range bands {
		lo := cuts[i]
		hi := cuts[i+1] - 1
		bands[i] = Band{
			Index:      i,
			LoBin:      lo,
			HiBin:      hi,
			CenterFreq: (float64(lo) + float64(hi)) / 2 * binWidth,
		}
	}

	return &Binner{
		bands:      bands,
		fftSize:    fftSize,
		sampleRate: sampleRate,
		freqMin:    freqMin,
		freqMax:    freqMax,
	}, nil
}

// Bin averages the spectrum magnitudes within each band's bin range into
// dst, which must hold BandCount values. A band with no valid bins yields
// DBFloor rather than dividing by zero. Allocation-free.
func (bn *Binner) Bin(spectrum []float64, dst []float64) error {
	if len(dst) != len(bn.bands) {
		return fmt.Errorf("destination length %d does not match band count %d", len(dst), len(bn.bands))
	}

	for i, band := range bn.bands {
		sum := 0.0
		count := 0

		for bin := band.LoBin; bin <= band.HiBin && bin < len(spectrum); bin++ {
			sum += spectrum[bin]
			count++
		}

		if count > 0 {
			dst[i] = sum / float64(count)
		} else {
			dst[i] = DBFloor
		}
	}

	return nil
}

// Bands returns the band descriptors. The slice is immutable after
// construction and must not be modified.
func (bn *Binner) Bands() []Band {
	return bn.bands
}

// BandCount returns the number of bands.
func (bn *Binner) BandCount() int {
	return len(bn.bands)
}

// BandForFrequency returns the index of the band whose bin range contains
// freq, or the nearest band when freq falls outside the configured range.
func (bn *Binner) BandForFrequency(freq float64) int {
	bin := int(math.Round(freq * float64(bn.fftSize) / bn.sampleRate))
	for i, band := range bn.bands {
		if bin <= band.HiBin {
			return i
		}
	}
	return len(bn.bands) - 1
}

// ClampBandCount clamps a requested band count (typically the terminal
// width) to the supported range.
func ClampBandCount(n int) int {
	if n < MinBands {
		return MinBands
	}
	if n > MaxBands {
		return MaxBands
	}
	return n
}
