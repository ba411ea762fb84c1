// SPDX-License-Identifier: MIT
/*
Package audio implements real-time audio capture with:
- Lock-free sample delivery into the analysis ring via PortAudio
- Mono downmix of multi-channel input at the transport boundary
- Optional WAV recording of the downmixed stream with a silence gate

Thread Safety:
- The PortAudio callback uses only pre-allocated buffers
- Recording state is flipped with atomic operations
- The callback never blocks; overload is absorbed by the ring dropping samples
*/
package audio

import (
	"fmt"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"

	"termsonic/internal/config"
	applog "termsonic/internal/log"
	"termsonic/internal/ring"
)

// recordBitDepth is the bit depth of recorded WAV files.
const recordBitDepth = 16

// Engine owns the PortAudio input stream and feeds downmixed mono samples
// into the analysis ring from the audio callback.
type Engine struct {
	cfg *config.Config

	inputDevice  *portaudio.DeviceInfo
	inputLatency time.Duration
	inputStream  *portaudio.Stream

	sink    *ring.Buffer
	monoBuf []float64 // Pre-allocated mono frame buffer for the callback.

	// Silence gate for the recorder: buffers whose peak amplitude stays
	// below the threshold are not written to disk.
	gateEnabled   bool
	gateThreshold float64

	// Recording state and buffers.
	isRecording atomic.Bool
	outputFile  *os.File
	wavEncoder  *wav.Encoder
	sampleBuf   *goaudio.IntBuffer // Reusable buffer for format conversion.
}

// NewEngine resolves the configured input device and pre-allocates every
// buffer the callback touches. sink receives one mono sample per captured
// frame.
func NewEngine(cfg *config.Config, sink *ring.Buffer) (*Engine, error) {
	if sink == nil {
		return nil, fmt.Errorf("engine requires a sample sink")
	}

	inputDevice, err := InputDevice(cfg.Audio.InputDevice)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:         cfg,
		inputDevice: inputDevice,
		sink:        sink,
		monoBuf:     make([]float64, cfg.Audio.FramesPerBuffer),
	}

	if cfg.Audio.LowLatency {
		e.inputLatency = inputDevice.DefaultLowInputLatency
	} else {
		e.inputLatency = inputDevice.DefaultHighInputLatency
	}

	return e, nil
}

// StartInputStream opens and starts the PortAudio input stream. The first
// callback marks the start of the hot path.
func (e *Engine) StartInputStream() error {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: e.cfg.Audio.Channels,
			Device:   e.inputDevice,
			Latency:  e.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // Capture only.
			Device:   nil,
		},
		FramesPerBuffer: e.cfg.Audio.FramesPerBuffer,
		SampleRate:      e.cfg.Audio.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, e.processInputStream)
	if err != nil {
		return fmt.Errorf("failed to open input stream: %w", err)
	}
	e.inputStream = stream

	if err := e.inputStream.Start(); err != nil {
		e.inputStream.Close()
		e.inputStream = nil
		return fmt.Errorf("failed to start input stream: %w", err)
	}

	applog.Infof("Audio: capture started on %q (%.0f Hz, %d ch, %d frames/buffer)",
		e.inputDevice.Name, e.cfg.Audio.SampleRate, e.cfg.Audio.Channels, e.cfg.Audio.FramesPerBuffer)
	return nil
}

// StopInputStream stops and closes the input stream. No callbacks run
// after it returns, so it is safe to tear down the pipeline next.
func (e *Engine) StopInputStream() error {
	if e.inputStream == nil {
		return nil
	}

	if err := e.inputStream.Stop(); err != nil {
		return err
	}
	if err := e.inputStream.Close(); err != nil {
		return err
	}
	e.inputStream = nil

	applog.Infof("Audio: capture stopped")
	return nil
}

// processInputStream is the PortAudio callback.
// Performance Critical:
// - Runs on the driver's audio thread (locked to its OS thread)
// - Uses pre-allocated buffers only
// - Pushes into the wait-free ring; never blocks, never allocates
func (e *Engine) processInputStream(in []float32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	frames := downmix(e.monoBuf, in, e.cfg.Audio.Channels)
	mono := e.monoBuf[:frames]

	e.sink.PushSlice(mono)

	if e.isRecording.Load() && e.wavEncoder != nil {
		if e.gateEnabled && peakAmplitude(mono) < e.gateThreshold {
			return
		}
		e.writeRecording(mono)
	}
}

// downmix converts interleaved multi-channel float32 frames to mono
// float64 samples by averaging the channels of each frame. Returns the
// number of frames written; dst bounds the output.
func downmix(dst []float64, in []float32, channels int) int {
	if channels < 1 {
		return 0
	}

	frames := len(in) / channels
	if frames > len(dst) {
		frames = len(dst)
	}

	if channels == 1 {
		for i := 0; i < frames; i++ {
			dst[i] = float64(in[i])
		}
		return frames
	}

	inv := 1.0 / float64(channels)
	for i := 0; i < frames; i++ {
		sum := 0.0
		base := i * channels
		for ch := 0; ch < channels; ch++ {
			sum += float64(in[base+ch])
		}
		dst[i] = sum * inv
	}
	return frames
}

// peakAmplitude returns the largest absolute sample value in mono.
func peakAmplitude(mono []float64) float64 {
	peak := 0.0
	for _, s := range mono {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	return peak
}

// EnableGate turns on the recorder's silence gate.
func (e *Engine) EnableGate() {
	e.gateEnabled = true
}

// DisableGate turns off the recorder's silence gate.
func (e *Engine) DisableGate() {
	e.gateEnabled = false
}

// SetGateThreshold adjusts the silence gate threshold. The value is
// clamped to [0, 1] where 0 records everything and 1 records nothing.
func (e *Engine) SetGateThreshold(threshold float64) {
	if threshold < 0 {
		threshold = 0
	}
	if threshold > 1 {
		threshold = 1
	}
	e.gateThreshold = threshold
}

// GateThreshold returns the current silence gate threshold.
func (e *Engine) GateThreshold() float64 {
	return e.gateThreshold
}

// Close stops the input stream, then any active recording. The stream
// goes down first so no callback can race the encoder teardown.
func (e *Engine) Close() error {
	if err := e.StopInputStream(); err != nil {
		return err
	}
	return e.StopRecording()
}
