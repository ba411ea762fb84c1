// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	applog "termsonic/internal/log"
)

// StartRecording begins writing the downmixed mono stream to filename as a
// 16-bit PCM WAV file. The actual writes happen inside the audio callback.
func (e *Engine) StartRecording(filename string) error {
	if e.isRecording.Load() {
		return fmt.Errorf("already recording")
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	e.outputFile = file

	e.wavEncoder = wav.NewEncoder(file, int(e.cfg.Audio.SampleRate), recordBitDepth, 1, 1)

	e.sampleBuf = &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: 1,
			SampleRate:  int(e.cfg.Audio.SampleRate),
		},
		SourceBitDepth: recordBitDepth,
		Data:           make([]int, e.cfg.Audio.FramesPerBuffer),
	}

	e.isRecording.Store(true)

	applog.Infof("Audio: recording to %s", filename)
	return nil
}

// StopRecording flushes and closes the WAV file. Safe to call when no
// recording is active.
func (e *Engine) StopRecording() error {
	if !e.isRecording.Load() {
		return nil
	}

	e.isRecording.Store(false)

	if e.wavEncoder != nil {
		if err := e.wavEncoder.Close(); err != nil {
			return err
		}
		e.wavEncoder = nil
	}

	if e.outputFile != nil {
		if err := e.outputFile.Close(); err != nil {
			return err
		}
		e.outputFile = nil
	}

	return nil
}

// writeRecording converts one mono buffer to 16-bit PCM and appends it to
// the WAV file. Called from the audio callback; uses the pre-allocated
// conversion buffer.
func (e *Engine) writeRecording(mono []float64) {
	e.sampleBuf.Data = e.sampleBuf.Data[:cap(e.sampleBuf.Data)]

	n := len(mono)
	if n > len(e.sampleBuf.Data) {
		n = len(e.sampleBuf.Data)
	}

	for i := 0; i < n; i++ {
		e.sampleBuf.Data[i] = int(clampUnit(mono[i]) * 32767)
	}
	e.sampleBuf.Data = e.sampleBuf.Data[:n]

	if err := e.wavEncoder.Write(e.sampleBuf); err != nil {
		applog.Errorf("Audio: error writing to WAV file: %v", err)
	}
}

// clampUnit clamps s to [-1, 1] before PCM conversion.
func clampUnit(s float64) float64 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}
