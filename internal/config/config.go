package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"termsonic/pkg/bitint"
)

// Core configuration constants that define the boundaries and defaults
// for the visualizer pipeline.
const (
	// Default values
	DefaultDeviceID      = MinDeviceID // System default input device
	DefaultChannels      = 2           // Stereo capture, downmixed to mono
	DefaultSampleRate    = 44100       // CD-quality audio
	DefaultFramesPerBuf  = 512         // Callback size, ~11.6ms at 44.1kHz
	DefaultTransformSize = 2048        // FFT size, ~21.5 Hz per bin at 44.1kHz
	DefaultRingCapacity  = 8192        // ~185ms of audio at 44.1kHz
	DefaultSmoothing     = 0.7         // EMA factor
	DefaultPeakDecay     = 0.95        // Peak-hold decay per frame
	DefaultTargetRate    = 60          // Snapshot publishes per second
	DefaultWindow        = "hann"
	DefaultMode          = "bars"
	DefaultSensitivity   = 1.0
	DefaultColors        = "red,yellow,green,cyan,blue"

	// Hardware and processing limits
	MinDeviceID   = -1     // -1 represents the system default device
	MinSampleRate = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate = 192000 // Maximum supported sample rate (Hz)
)

// Config holds all runtime configuration. It is built from defaults,
// optionally a YAML file, then command line flags.
type Config struct {
	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=debug info warn warning error fatal"`

	Audio     AudioConfig     `yaml:"audio"`
	DSP       DSPConfig       `yaml:"dsp"`
	Display   DisplayConfig   `yaml:"display"`
	Recording RecordingConfig `yaml:"recording"`
	Transport TransportConfig `yaml:"transport"`

	// One-off command to execute instead of running the visualizer
	// (e.g. "list"). Set by the CLI, not the file.
	Command string `yaml:"-"`
	Verbose bool   `yaml:"-"`
}

// AudioConfig holds audio capture settings.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device" validate:"gte=-1"`
	SampleRate      float64 `yaml:"sample_rate" validate:"gte=8000,lte=192000"`
	Channels        int     `yaml:"channels" validate:"gte=1,lte=8"`
	FramesPerBuffer int     `yaml:"frames_per_buffer" validate:"gte=64,lte=8192"`
	LowLatency      bool    `yaml:"low_latency"`
}

// DSPConfig holds the analysis pipeline settings.
type DSPConfig struct {
	TransformSize int     `yaml:"transform_size" validate:"gte=32"`
	Bands         int     `yaml:"bands" validate:"gte=0"` // 0 derives the count from terminal width
	Smoothing     float64 `yaml:"smoothing" validate:"gt=0,lte=1"`
	PeakDecay     float64 `yaml:"peak_decay" validate:"gte=0,lt=1"`
	Window        string  `yaml:"window"`
	TargetRate    int     `yaml:"target_rate" validate:"gte=30,lte=60"`
}

// DisplayConfig holds settings consumed only by the display layer.
type DisplayConfig struct {
	Mode        string  `yaml:"mode" validate:"oneof=bars waveform circular"`
	Sensitivity float64 `yaml:"sensitivity" validate:"gte=0.1,lte=5"`
	Colors      string  `yaml:"colors"`
	ShowPeaks   bool    `yaml:"show_peaks"`
}

// RecordingConfig holds settings for recording the captured mono stream.
type RecordingConfig struct {
	Enabled    bool   `yaml:"enabled"`
	OutputFile string `yaml:"output_file"`
}

// TransportConfig holds settings for publishing snapshots off-process.
type TransportConfig struct {
	WebSocketEnabled bool   `yaml:"websocket_enabled"`
	WebSocketAddr    string `yaml:"websocket_addr" validate:"omitempty,hostname_port"`
	UDPEnabled       bool   `yaml:"udp_enabled"`
	UDPTargetAddress string `yaml:"udp_target_address" validate:"omitempty,hostname_port"`
}

// NewConfig returns a Config populated with default values.
func NewConfig() *Config {
	return &Config{
		LogLevel: "info",
		Audio: AudioConfig{
			InputDevice:     DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			Channels:        DefaultChannels,
			FramesPerBuffer: DefaultFramesPerBuf,
		},
		DSP: DSPConfig{
			TransformSize: DefaultTransformSize,
			Smoothing:     DefaultSmoothing,
			PeakDecay:     DefaultPeakDecay,
			Window:        DefaultWindow,
			TargetRate:    DefaultTargetRate,
		},
		Display: DisplayConfig{
			Mode:        DefaultMode,
			Sensitivity: DefaultSensitivity,
			Colors:      DefaultColors,
			ShowPeaks:   true,
		},
		Transport: TransportConfig{
			WebSocketAddr:    "127.0.0.1:8080",
			UDPTargetAddress: "127.0.0.1:9090",
		},
	}
}

// Validate checks the configuration against the struct tag rules plus the
// constraints the tags cannot express. Called once before the pipeline is
// built; nothing invalid reaches the analysis loop.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if !bitint.IsPowerOfTwo(c.DSP.TransformSize) {
		return fmt.Errorf("transform size must be a power of 2, got %d", c.DSP.TransformSize)
	}

	return nil
}
