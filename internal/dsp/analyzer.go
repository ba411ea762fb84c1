// SPDX-License-Identifier: MIT
/*
Package dsp implements the spectral analysis stages of the pipeline:
windowed FFT (Analyzer), logarithmic frequency banding (Binner) and
temporal smoothing with peak hold (Smoother).

Real-Time Safety:
- All buffers are pre-allocated at construction
- Process, Bin and Update allocate nothing
*/
package dsp

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"termsonic/pkg/bitint"
)

// DBFloor is the magnitude substituted for near-silent bins. It doubles as
// the epsilon guard in the dB conversion: 20*log10(1e-5) = -100.
const (
	DBFloor          = -100.0
	magnitudeEpsilon = 1e-5
)

// Pre-allocated buffers for FFT calculations.
type analyzerWorkspace struct {
	input     []float64    // Windowed input samples.
	fftOutput []complex128 // Complex FFT results.
	magnitude []float64    // Magnitudes in dB.
	window    []float64    // Window coefficients, immutable after construction.
}

// Analyzer transforms fixed-size sample blocks into decibel magnitude
// spectra. Deterministic: the same block always yields the same spectrum
// for a given configuration.
type Analyzer struct {
	fftCalculator *fourier.FFT
	fftSize       int
	sampleRate    float64
	workspace     analyzerWorkspace
}

// NewAnalyzer creates an analyzer for blocks of fftSize samples. The size
// must be a power of 2. Window coefficients and all FFT buffers are
// precomputed here so Process never allocates.
func NewAnalyzer(fftSize int, sampleRate float64, windowType WindowFunc) (*Analyzer, error) {
	if !bitint.IsPowerOfTwo(fftSize) {
		return nil, fmt.Errorf("transform size must be a power of 2, got %d", fftSize)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}

	windowCoeffs := make([]float64, fftSize)
	applyWindow(windowCoeffs, windowType)

	// FFT output size for real input is N/2 + 1 bins.
	binCount := fftSize/2 + 1

	return &Analyzer{
		fftCalculator: fourier.NewFFT(fftSize),
		fftSize:       fftSize,
		sampleRate:    sampleRate,
		workspace: analyzerWorkspace{
			input:     make([]float64, fftSize),
			fftOutput: make([]complex128, binCount),
			magnitude: make([]float64, binCount),
			window:    windowCoeffs,
		},
	}, nil
}

// Process windows the block, performs the FFT and converts the first
// fftSize/2+1 bins to decibels, flooring near-silent bins at DBFloor.
// Blocks shorter than the transform size are zero-padded.
//
// The returned slice is the analyzer's internal buffer; it is valid until
// the next Process call and must be copied to be retained.
func (a *Analyzer) Process(block []float64) []float64 {
	blockLen := len(block)
	for i := 0; i < a.fftSize; i++ {
		if i < blockLen {
			a.workspace.input[i] = block[i] * a.workspace.window[i]
		} else {
			a.workspace.input[i] = 0 // Zero-padding.
		}
	}

	a.fftCalculator.Coefficients(a.workspace.fftOutput, a.workspace.input)

	for i, c := range a.workspace.fftOutput {
		mag := cmplx.Abs(c)
		if mag < magnitudeEpsilon {
			a.workspace.magnitude[i] = DBFloor
		} else {
			a.workspace.magnitude[i] = 20 * math.Log10(mag)
		}
	}

	return a.workspace.magnitude
}

// BinFrequency returns the center frequency in Hz of FFT bin i, or 0 for an
// out-of-range index.
func (a *Analyzer) BinFrequency(i int) float64 {
	if i < 0 || i >= len(a.workspace.fftOutput) {
		return 0
	}
	return float64(i) * (a.sampleRate / float64(a.fftSize))
}

// BinCount returns the number of non-negative frequency bins (N/2 + 1).
func (a *Analyzer) BinCount() int {
	return len(a.workspace.fftOutput)
}

// FFTSize returns the configured transform size.
func (a *Analyzer) FFTSize() int {
	return a.fftSize
}

// SampleRate returns the configured sample rate in Hz.
func (a *Analyzer) SampleRate() float64 {
	return a.sampleRate
}
