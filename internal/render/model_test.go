package render

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"termsonic/internal/config"
	"termsonic/internal/dsp"
	applog "termsonic/internal/log"
	"termsonic/internal/pipeline"
)

type fakeSource struct {
	snap         pipeline.Snapshot
	bandCount    int
	setBandCalls []int
	setBandErr   error
	counters     pipeline.Counters
}

func (s *fakeSource) Snapshot() pipeline.Snapshot { return s.snap }
func (s *fakeSource) BandCount() int              { return s.bandCount }
func (s *fakeSource) Counters() pipeline.Counters { return s.counters }

func (s *fakeSource) SnapshotInto(bands, peaks []float64) (time.Time, bool) {
	if len(bands) != len(s.snap.Bands) || len(peaks) != len(s.snap.Peaks) {
		return time.Time{}, false
	}
	copy(bands, s.snap.Bands)
	copy(peaks, s.snap.Peaks)
	return s.snap.Timestamp, true
}

func (s *fakeSource) SetBandCount(n int) error {
	if s.setBandErr != nil {
		return s.setBandErr
	}
	s.setBandCalls = append(s.setBandCalls, n)
	s.bandCount = n
	return nil
}

func newTestModel(t *testing.T, cfg *config.Config) (Model, *fakeSource) {
	t.Helper()
	src := &fakeSource{
		bandCount: 32,
		snap: pipeline.Snapshot{
			Bands:     []float64{-10, -20, -30, -40},
			Peaks:     []float64{-5, -15, -25, -35},
			Timestamp: time.Now(),
		},
	}
	m, err := New(src, cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return m, src
}

func keyMsg(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestNewRejectsBadDisplayConfig(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Display.Mode = "spiral"
	src := &fakeSource{}
	if _, err := New(src, cfg); err == nil {
		t.Error("Expected error for unknown mode")
	}

	cfg = config.NewConfig()
	cfg.Display.Colors = "octarine"
	if _, err := New(src, cfg); err == nil {
		t.Error("Expected error for unknown gradient color")
	}
}

func TestQuitKeys(t *testing.T) {
	for _, key := range []tea.KeyMsg{
		{Type: tea.KeyCtrlC},
		{Type: tea.KeyEsc},
		keyMsg("q"),
	} {
		m, _ := newTestModel(t, config.NewConfig())
		updated, cmd := m.Update(key)
		if !updated.(Model).quitting {
			t.Errorf("key %v: expected quitting state", key)
		}
		if cmd == nil {
			t.Errorf("key %v: expected tea.Quit command", key)
		}
	}
}

func TestModeCycleKey(t *testing.T) {
	m, _ := newTestModel(t, config.NewConfig())
	if m.mode != ModeBars {
		t.Fatalf("initial mode = %v, expected bars", m.mode)
	}

	updated, _ := m.Update(keyMsg("m"))
	if got := updated.(Model).mode; got != ModeWaveform {
		t.Errorf("mode after cycle = %v, expected waveform", got)
	}
}

func TestSensitivityKeysClamp(t *testing.T) {
	m, _ := newTestModel(t, config.NewConfig())

	for i := 0; i < 100; i++ {
		updated, _ := m.Update(keyMsg("+"))
		m = updated.(Model)
	}
	if m.sensitivity != maxSensitivity {
		t.Errorf("sensitivity = %f, expected clamp at %f", m.sensitivity, maxSensitivity)
	}

	for i := 0; i < 100; i++ {
		updated, _ := m.Update(keyMsg("-"))
		m = updated.(Model)
	}
	if m.sensitivity != minSensitivity {
		t.Errorf("sensitivity = %f, expected clamp at %f", m.sensitivity, minSensitivity)
	}
}

func TestWindowResizeDerivesBandCount(t *testing.T) {
	cfg := config.NewConfig()
	cfg.DSP.Bands = 0
	m, src := newTestModel(t, cfg)

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 96, Height: 30})
	m = updated.(Model)

	want := dsp.ClampBandCount(48)
	if len(src.setBandCalls) != 1 || src.setBandCalls[0] != want {
		t.Errorf("SetBandCount calls = %v, expected one call with %d", src.setBandCalls, want)
	}

	// Same width again should not trigger another resize.
	updated, _ = m.Update(tea.WindowSizeMsg{Width: 96, Height: 24})
	m = updated.(Model)
	if len(src.setBandCalls) != 1 {
		t.Errorf("Expected no resize for unchanged derived count, got %v", src.setBandCalls)
	}
}

func TestFixedBandCountIgnoresResize(t *testing.T) {
	cfg := config.NewConfig()
	cfg.DSP.Bands = 48
	m, src := newTestModel(t, cfg)

	m.Update(tea.WindowSizeMsg{Width: 200, Height: 50})
	if len(src.setBandCalls) != 0 {
		t.Errorf("Expected no SetBandCount calls with fixed band count, got %v", src.setBandCalls)
	}
}

func TestTickPullsSnapshot(t *testing.T) {
	m, src := newTestModel(t, config.NewConfig())
	src.snap.Bands = []float64{-1, -2, -3}
	src.snap.Peaks = []float64{-1, -2, -3}

	updated, cmd := m.Update(tickMsg(time.Now()))
	m = updated.(Model)
	if len(m.snap.Bands) != 3 {
		t.Errorf("snapshot bands = %d, expected 3", len(m.snap.Bands))
	}
	if cmd == nil {
		t.Error("Expected a follow-up tick command")
	}

	// Once the frame buffers match the band count, ticks refresh them in
	// place instead of taking new copies.
	src.snap.Bands = []float64{-4, -5, -6}
	src.snap.Peaks = []float64{-4, -5, -6}
	before := &m.snap.Bands[0]
	updated, _ = m.Update(tickMsg(time.Now()))
	m = updated.(Model)
	if &m.snap.Bands[0] != before {
		t.Error("Expected the frame buffer to be reused across ticks")
	}
	if m.snap.Bands[0] != -4 {
		t.Errorf("snap.Bands[0] = %f, expected refreshed value -4", m.snap.Bands[0])
	}
}

func TestResizeErrorIsLogged(t *testing.T) {
	var buf bytes.Buffer
	applog.SetOutput(&buf)
	defer applog.SetOutput(os.Stderr)

	cfg := config.NewConfig()
	cfg.DSP.Bands = 0
	m, src := newTestModel(t, cfg)
	src.setBandErr = errors.New("stage swap failed")

	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})

	if !strings.Contains(buf.String(), "band count change") {
		t.Errorf("Expected a warning about the failed band count change, log: %q", buf.String())
	}
}

func TestViewContainsHeaderAndHelp(t *testing.T) {
	m, _ := newTestModel(t, config.NewConfig())
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 60, Height: 20})
	m = updated.(Model)
	updated, _ = m.Update(tickMsg(time.Now()))
	m = updated.(Model)

	view := m.View()
	if !strings.Contains(view, "mode:bars") {
		t.Errorf("Expected mode in header, got %q", view)
	}
	if !strings.Contains(view, "q quit") {
		t.Errorf("Expected help line, got %q", view)
	}
}

func TestViewTooSmall(t *testing.T) {
	m, _ := newTestModel(t, config.NewConfig())
	if view := m.View(); !strings.Contains(view, "too small") {
		t.Errorf("Expected size warning before first resize, got %q", view)
	}
}
