// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	"termsonic/cmd"
	"termsonic/internal/audio"
	"termsonic/internal/config"
	"termsonic/internal/dsp"
	applog "termsonic/internal/log"
	"termsonic/internal/pipeline"
	"termsonic/internal/render"
	"termsonic/internal/ring"
	"termsonic/internal/transport"
	"termsonic/pkg/bitint"
)

// main runs in three phases:
//
// 1. Startup (cold path): runtime settings, PortAudio, argument parsing
// and one-off commands.
//
// 2. Concurrent (hot path): the audio callback feeds the ring buffer, the
// pipeline goroutine publishes snapshots, optional transports fan them
// out, and the display loop blocks here until the user quits.
//
// 3. Shutdown (cold path): stop the producer first so the pipeline drains
// cleanly, then the pipeline, then everything downstream.
func main() {
	// ==================== STARTUP PHASE ====================

	// One thread for the audio callback, one for analysis and display.
	runtime.GOMAXPROCS(2)

	if err := audio.Initialize(); err != nil {
		applog.Fatalf("%v", err)
	}
	defer audio.Terminate()

	cfg, err := cmd.ParseArgs()
	if err != nil {
		applog.Fatalf("%v", err)
	}

	if cfg.Verbose {
		applog.SetLevel(applog.LevelDebug)
	} else if level, ok := applog.ParseLevel(cfg.LogLevel); ok {
		applog.SetLevel(level)
	}

	// One-off commands that don't need the engine running.
	switch cfg.Command {
	case "list":
		if err := audio.ListDevices(); err != nil {
			applog.Fatalf("%v", err)
		}
		return
	case "list-modes":
		fmt.Println(render.DescribeModes())
		return
	}

	if err := run(cfg); err != nil {
		applog.Fatalf("%v", err)
	}
}

func run(cfg *config.Config) error {
	// ==================== CONCURRENT PHASE ====================

	// The ring must absorb a few full analysis blocks between drains;
	// large transforms get a proportionally larger buffer.
	capacity := config.DefaultRingCapacity
	if need := 4 * cfg.DSP.TransformSize; capacity < need {
		capacity = bitint.NextPowerOfTwo(need)
	}
	source, err := ring.NewBuffer(capacity)
	if err != nil {
		return err
	}

	engine, err := audio.NewEngine(cfg, source)
	if err != nil {
		return err
	}
	defer engine.Close()

	window, err := dsp.ParseWindowFunc(cfg.DSP.Window)
	if err != nil {
		return err
	}

	pipe, err := pipeline.New(pipeline.Config{
		TransformSize: cfg.DSP.TransformSize,
		SampleRate:    cfg.Audio.SampleRate,
		BandCount:     cfg.DSP.Bands,
		Smoothing:     cfg.DSP.Smoothing,
		PeakDecay:     cfg.DSP.PeakDecay,
		Window:        window,
		TargetRate:    cfg.DSP.TargetRate,
	}, source)
	if err != nil {
		return err
	}

	// The callback starts firing here; everything after this line runs
	// alongside live capture.
	if err := engine.StartInputStream(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := pipe.Start(ctx); err != nil {
		engine.StopInputStream()
		return err
	}

	if cfg.Recording.Enabled {
		if err := engine.StartRecording(cfg.Recording.OutputFile); err != nil {
			engine.StopInputStream()
			pipe.Stop()
			return err
		}
	}

	var publishers []transport.Publisher
	if cfg.Transport.WebSocketEnabled {
		ws := transport.NewWebSocketBroadcaster(cfg.Transport.WebSocketAddr, pipe, pipe.Interval())
		ws.Start()
		publishers = append(publishers, ws)
	}
	var udpSender *transport.UDPSender
	if cfg.Transport.UDPEnabled {
		udpSender, err = transport.NewUDPSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			applog.Errorf("UDP transport disabled: %v", err)
		} else {
			pub, err := transport.NewUDPPublisher(pipe.Interval(), udpSender, pipe)
			if err != nil {
				return err
			}
			pub.Start()
			publishers = append(publishers, pub)
		}
	}

	// The alternate screen owns the terminal while the display runs;
	// divert logs to a file in verbose mode, otherwise drop them.
	var logSink io.Writer = io.Discard
	if cfg.Verbose {
		if f, err := os.Create("termsonic.log"); err == nil {
			defer f.Close()
			logSink = f
		}
	}
	applog.SetOutput(logSink)

	// Blocks until the user quits.
	displayErr := render.Run(pipe, cfg)
	applog.SetOutput(os.Stderr)

	// ==================== SHUTDOWN PHASE ====================

	// Producer first, so no new samples arrive while draining.
	if err := engine.StopInputStream(); err != nil {
		applog.Errorf("Error stopping input stream: %v", err)
	}

	pipe.Stop()

	for _, pub := range publishers {
		if err := pub.Close(); err != nil {
			applog.Errorf("Error closing publisher: %v", err)
		}
	}
	if udpSender != nil {
		udpSender.Close()
	}

	if cfg.Recording.Enabled {
		if err := engine.StopRecording(); err != nil {
			applog.Errorf("Error stopping recording: %v", err)
		} else {
			fmt.Fprintf(os.Stderr, "Recording saved to: %s\n", cfg.Recording.OutputFile)
		}
	}

	counters := pipe.Counters()
	applog.Debugf("Session counters: published=%d skipped=%d discarded=%d overruns=%d",
		counters.Published, counters.Skipped, counters.Discarded, counters.Overruns)

	return displayErr
}
