// SPDX-License-Identifier: MIT

// Package render draws spectrum snapshots in the terminal. It owns the
// Bubble Tea event loop and polls the pipeline's latest snapshot on a
// fixed tick; it never blocks the analysis path.
package render

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"termsonic/internal/config"
	"termsonic/internal/dsp"
	applog "termsonic/internal/log"
	"termsonic/internal/pipeline"
)

const (
	minSensitivity  = 0.1
	maxSensitivity  = 5.0
	sensitivityStep = 0.1

	// Rows reserved for the header and help lines.
	chromeRows = 3
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#555555", Dark: "#BBBBBB"})

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#999999", Dark: "#666666"})
)

// SpectrumSource is the slice of the pipeline the display needs.
type SpectrumSource interface {
	Snapshot() pipeline.Snapshot
	SnapshotInto(bands, peaks []float64) (time.Time, bool)
	BandCount() int
	SetBandCount(n int) error
	Counters() pipeline.Counters
}

type tickMsg time.Time

// Model is the Bubble Tea model for the visualizer display.
type Model struct {
	source SpectrumSource

	mode        Mode
	sensitivity float64
	showPeaks   bool
	colors      bool
	grad        *Gradient

	// When true the band count follows the terminal width instead of a
	// fixed configured value.
	deriveBands bool

	tickInterval time.Duration
	width        int
	height       int
	snap         pipeline.Snapshot
	quitting     bool
}

// New builds a display model from the configuration. The pipeline must
// already be running.
func New(source SpectrumSource, cfg *config.Config) (Model, error) {
	mode, err := ParseMode(cfg.Display.Mode)
	if err != nil {
		return Model{}, err
	}
	grad, err := ParseGradient(cfg.Display.Colors)
	if err != nil {
		return Model{}, err
	}

	rate := cfg.DSP.TargetRate
	if rate < 1 {
		rate = config.DefaultTargetRate
	}

	return Model{
		source:       source,
		mode:         mode,
		sensitivity:  cfg.Display.Sensitivity,
		showPeaks:    cfg.Display.ShowPeaks,
		colors:       true,
		grad:         grad,
		deriveBands:  cfg.DSP.Bands == 0,
		tickInterval: time.Second / time.Duration(rate),
	}, nil
}

func (m Model) Init() tea.Cmd {
	return m.tickCmd()
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.deriveBands {
			// One bar plus one gap per band.
			n := dsp.ClampBandCount(msg.Width / 2)
			if n != m.source.BandCount() {
				if err := m.source.SetBandCount(n); err != nil {
					applog.Warnf("Render: band count change to %d failed: %v", n, err)
				}
			}
		}
		return m, nil

	case tickMsg:
		if m.quitting {
			return m, nil
		}
		// Reuse the frame buffers while the band count is stable; fall
		// back to a fresh copy when it changed under us.
		if ts, ok := m.source.SnapshotInto(m.snap.Bands, m.snap.Peaks); ok {
			m.snap.Timestamp = ts
		} else {
			m.snap = m.source.Snapshot()
		}
		return m, m.tickCmd()
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, keys.Mode):
		m.mode = m.mode.Next()
	case key.Matches(msg, keys.SensUp):
		m.sensitivity += sensitivityStep
		if m.sensitivity > maxSensitivity {
			m.sensitivity = maxSensitivity
		}
	case key.Matches(msg, keys.SensDown):
		m.sensitivity -= sensitivityStep
		if m.sensitivity < minSensitivity {
			m.sensitivity = minSensitivity
		}
	case key.Matches(msg, keys.Peaks):
		m.showPeaks = !m.showPeaks
	case key.Matches(msg, keys.Colors):
		m.colors = !m.colors
	}
	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width < 1 || m.height <= chromeRows {
		return "terminal too small"
	}

	counters := m.source.Counters()
	header := headerStyle.Render(fmt.Sprintf(
		"termsonic  mode:%s  bands:%d  sens:%.1f  frames:%d  drops:%d",
		m.mode, len(m.snap.Bands), m.sensitivity, counters.Published, counters.Overruns))

	grad := m.grad
	if !m.colors {
		grad = nil
	}
	body := render(m.mode, frame{
		bands:       m.snap.Bands,
		peaks:       m.snap.Peaks,
		width:       m.width,
		height:      m.height - chromeRows,
		sensitivity: m.sensitivity,
		showPeaks:   m.showPeaks,
		grad:        grad,
	})

	help := helpStyle.Render("m mode  +/- sensitivity  p peaks  c colors  q quit")

	return header + "\n" + body + "\n" + help
}

// Run starts the Bubble Tea program and blocks until the user quits.
func Run(source SpectrumSource, cfg *config.Config) error {
	model, err := New(source, cfg)
	if err != nil {
		return err
	}

	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err = p.Run()
	return err
}
