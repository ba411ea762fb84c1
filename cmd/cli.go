package cmd

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"termsonic/internal/config"
)

const version = "0.1.0"

// flagValues receives command line values before they are merged onto the
// file configuration. Only flags the user actually set are applied.
type flagValues struct {
	device          int
	sampleRate      float64
	channels        int
	framesPerBuffer int
	lowLatency      bool

	transformSize int
	bands         int
	smoothing     float64
	peakDecay     float64
	window        string
	targetRate    int

	mode        string
	sensitivity float64
	colors      string
	noPeaks     bool

	record     bool
	outputFile string

	websocket     bool
	websocketAddr string
	udp           bool
	udpTarget     string
}

// ParseArgs parses the command line, loads the optional YAML configuration
// file, and merges explicitly set flags over it. Precedence is defaults,
// then file, then flags.
func ParseArgs() (*config.Config, error) {
	fv := &flagValues{}
	var cfgPath string
	var verbose bool
	var listModes bool
	var options *config.Config

	rootCmd := &cobra.Command{
		Use:           "termsonic",
		Short:         "Real-time audio spectrum visualizer for the terminal",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			applyFlags(cmd, loaded, fv)
			loaded.Verbose = verbose

			if loaded.Recording.Enabled && loaded.Recording.OutputFile == "" {
				loaded.Recording.OutputFile = "recording-" +
					time.Now().UTC().Format("02-01-2006-150405") + ".wav"
			}

			if err := loaded.Validate(); err != nil {
				return err
			}
			options = loaded
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if listModes {
				options.Command = "list-modes"
			}
			return nil
		},
	}

	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = "list"
		},
	}
	rootCmd.AddCommand(listCmd)

	pf := rootCmd.PersistentFlags()

	pf.StringVarP(&cfgPath, "config", "f", "",
		"Path to YAML configuration file")
	pf.BoolVarP(&verbose, "verbose", "v", false,
		"Show verbose output")

	// Audio capture
	pf.IntVarP(&fv.device, "device", "d", config.DefaultDeviceID,
		"Input device ID. Use the 'list' command to see available devices")
	pf.IntVarP(&fv.channels, "channels", "c", config.DefaultChannels,
		"Number of channels to capture (1=mono, 2=stereo)")
	pf.Float64VarP(&fv.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	pf.IntVarP(&fv.framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuf,
		"The number of frames per buffer (affects latency)")
	pf.BoolVarP(&fv.lowLatency, "low-latency", "l", false,
		"Use low latency mode for real-time processing")

	// Analysis
	pf.IntVar(&fv.transformSize, "transform-size", config.DefaultTransformSize,
		"FFT size, must be a power of 2")
	pf.IntVar(&fv.bands, "bands", 0,
		"Number of frequency bands (0 derives the count from terminal width)")
	pf.Float64Var(&fv.smoothing, "smoothing", config.DefaultSmoothing,
		"Temporal smoothing factor in (0, 1]; lower is smoother")
	pf.Float64Var(&fv.peakDecay, "peak-decay", config.DefaultPeakDecay,
		"Peak-hold decay multiplier per frame in [0, 1)")
	pf.StringVarP(&fv.window, "window", "w", config.DefaultWindow,
		"Window function: hann, hamming, blackman, blackmannuttall, bartletthann, lanczos, nuttall")
	pf.IntVar(&fv.targetRate, "rate", config.DefaultTargetRate,
		"Snapshot publish rate in Hz (30-60)")

	// Display
	pf.StringVarP(&fv.mode, "mode", "m", config.DefaultMode,
		"Display mode: bars, waveform, circular")
	pf.Float64Var(&fv.sensitivity, "sensitivity", config.DefaultSensitivity,
		"Display sensitivity multiplier (0.1-5.0)")
	pf.StringVar(&fv.colors, "colors", config.DefaultColors,
		"Comma separated gradient colors, low to high")
	pf.BoolVar(&fv.noPeaks, "no-peaks", false,
		"Hide peak-hold markers")
	pf.BoolVar(&listModes, "list-modes", false,
		"List available display modes and exit")

	// Recording
	pf.BoolVarP(&fv.record, "record", "r", false,
		"Record the captured mono stream to a WAV file")
	pf.StringVarP(&fv.outputFile, "output", "o", "",
		"Recording file name. Default is recording-DD-MM-YYYY-HHMMSS.wav")

	// Snapshot publishing
	pf.BoolVar(&fv.websocket, "websocket", false,
		"Serve snapshots to WebSocket clients as JSON")
	pf.StringVar(&fv.websocketAddr, "websocket-addr", "",
		"WebSocket listen address")
	pf.BoolVar(&fv.udp, "udp", false,
		"Send binary snapshot packets over UDP")
	pf.StringVar(&fv.udpTarget, "udp-target", "",
		"UDP target address")

	rootCmd.SetArgs(os.Args[1:])
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}

	return options, nil
}

// applyFlags copies each flag the user explicitly set onto the loaded
// configuration.
func applyFlags(cmd *cobra.Command, c *config.Config, fv *flagValues) {
	set := cmd.Flags().Changed

	if set("device") {
		c.Audio.InputDevice = fv.device
	}
	if set("channels") {
		c.Audio.Channels = fv.channels
	}
	if set("sample-rate") {
		c.Audio.SampleRate = fv.sampleRate
	}
	if set("frames-per-buffer") {
		c.Audio.FramesPerBuffer = fv.framesPerBuffer
	}
	if set("low-latency") {
		c.Audio.LowLatency = fv.lowLatency
	}

	if set("transform-size") {
		c.DSP.TransformSize = fv.transformSize
	}
	if set("bands") {
		c.DSP.Bands = fv.bands
	}
	if set("smoothing") {
		c.DSP.Smoothing = fv.smoothing
	}
	if set("peak-decay") {
		c.DSP.PeakDecay = fv.peakDecay
	}
	if set("window") {
		c.DSP.Window = fv.window
	}
	if set("rate") {
		c.DSP.TargetRate = fv.targetRate
	}

	if set("mode") {
		c.Display.Mode = fv.mode
	}
	if set("sensitivity") {
		c.Display.Sensitivity = fv.sensitivity
	}
	if set("colors") {
		c.Display.Colors = fv.colors
	}
	if set("no-peaks") {
		c.Display.ShowPeaks = !fv.noPeaks
	}

	if set("record") {
		c.Recording.Enabled = fv.record
	}
	if set("output") {
		c.Recording.OutputFile = fv.outputFile
	}

	if set("websocket") {
		c.Transport.WebSocketEnabled = fv.websocket
	}
	if set("websocket-addr") {
		c.Transport.WebSocketAddr = fv.websocketAddr
	}
	if set("udp") {
		c.Transport.UDPEnabled = fv.udp
	}
	if set("udp-target") {
		c.Transport.UDPTargetAddress = fv.udpTarget
	}
}
