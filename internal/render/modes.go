package render

import (
	"fmt"
	"math"
	"strings"
)

// Mode selects how the spectrum is drawn.
type Mode uint8

const (
	ModeBars Mode = iota
	ModeWaveform
	ModeCircular
)

func (m Mode) String() string {
	switch m {
	case ModeBars:
		return "bars"
	case ModeWaveform:
		return "waveform"
	case ModeCircular:
		return "circular"
	default:
		return "unknown"
	}
}

// Next cycles to the following mode, wrapping around.
func (m Mode) Next() Mode {
	return (m + 1) % 3
}

// ParseMode converts a mode name from configuration into a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bars":
		return ModeBars, nil
	case "waveform":
		return ModeWaveform, nil
	case "circular":
		return ModeCircular, nil
	default:
		return ModeBars, fmt.Errorf("unknown display mode %q", s)
	}
}

// DescribeModes returns one line per display mode for CLI output.
func DescribeModes() string {
	return "bars      vertical spectrum bars with optional peak-hold markers\n" +
		"waveform  band envelope mirrored around the vertical center\n" +
		"circular  rays radiating from the center, length tracking level"
}

// Displayed dynamic range. Band values below visibleFloorDB render as
// silence even though the analysis floor sits lower.
const visibleFloorDB = -60.0

var barChars = []rune("▁▂▃▄▅▆▇█")

const peakChar = '▔'

// normalize maps a band value in dBFS to a display level in [0, 1],
// scaled by the sensitivity factor.
func normalize(db, sensitivity float64) float64 {
	return clamp01((db - visibleFloorDB) / -visibleFloorDB * sensitivity)
}

// frame carries everything one render pass needs.
type frame struct {
	bands       []float64
	peaks       []float64
	width       int
	height      int
	sensitivity float64
	showPeaks   bool
	grad        *Gradient // nil disables color
}

func (f frame) colorize(s string, level float64) string {
	if f.grad == nil {
		return s
	}
	return f.grad.StyleAt(level).Render(s)
}

// renderBars draws one vertical bar per band, bottom aligned, with an
// optional peak-hold marker above each bar.
func renderBars(f frame) string {
	n := len(f.bands)
	if n == 0 || f.width < 1 || f.height < 1 {
		return ""
	}

	colWidth := f.width / n
	if colWidth < 1 {
		colWidth = 1
	}
	gap := 0
	if colWidth > 1 {
		gap = 1
	}

	levels := make([]float64, n)
	peakRows := make([]int, n)
	for i, v := range f.bands {
		levels[i] = normalize(v, f.sensitivity)
		peakRows[i] = -1
		if f.showPeaks && i < len(f.peaks) {
			p := normalize(f.peaks[i], f.sensitivity)
			peakRows[i] = int(p * float64(f.height))
			if peakRows[i] >= f.height {
				peakRows[i] = f.height - 1
			}
		}
	}

	rows := make([]string, f.height)
	var line strings.Builder
	for row := 0; row < f.height; row++ {
		line.Reset()
		rowFromBottom := float64(f.height - 1 - row)
		for i, level := range levels {
			cells := colWidth - gap
			fill := level * float64(f.height)

			var cell string
			switch {
			case fill > rowFromBottom+1:
				cell = strings.Repeat(string(barChars[len(barChars)-1]), cells)
			case fill > rowFromBottom:
				frac := fill - rowFromBottom
				idx := int(frac * float64(len(barChars)))
				if idx >= len(barChars) {
					idx = len(barChars) - 1
				}
				cell = strings.Repeat(string(barChars[idx]), cells)
			case peakRows[i] == int(rowFromBottom):
				cell = strings.Repeat(string(peakChar), cells)
			default:
				cell = strings.Repeat(" ", cells)
			}

			line.WriteString(f.colorize(cell, level))
			if gap > 0 {
				line.WriteByte(' ')
			}
		}
		rows[row] = line.String()
	}

	return strings.Join(rows, "\n")
}

// renderWaveform draws bands as a filled envelope mirrored around the
// vertical center, oscilloscope style.
func renderWaveform(f frame) string {
	n := len(f.bands)
	if n == 0 || f.width < 1 || f.height < 1 {
		return ""
	}

	center := f.height / 2
	half := float64(f.height) / 2

	// One column per terminal cell; stretch or squeeze the bands to fit.
	levels := make([]float64, f.width)
	for x := 0; x < f.width; x++ {
		i := x * n / f.width
		levels[x] = normalize(f.bands[i], f.sensitivity)
	}

	rows := make([]string, f.height)
	var line strings.Builder
	for row := 0; row < f.height; row++ {
		line.Reset()
		dist := math.Abs(float64(row - center))
		for _, level := range levels {
			extent := level * half
			if extent >= dist && (extent > 0 || row == center) {
				line.WriteString(f.colorize("█", level))
			} else {
				line.WriteByte(' ')
			}
		}
		rows[row] = line.String()
	}

	return strings.Join(rows, "\n")
}

// renderCircular draws bands as rays radiating from the center of the
// terminal, length proportional to level. The x radius is doubled to
// compensate for terminal cell aspect ratio.
func renderCircular(f frame) string {
	n := len(f.bands)
	if n == 0 || f.width < 3 || f.height < 3 {
		return ""
	}

	grid := make([][]rune, f.height)
	levelAt := make([][]float64, f.height)
	for y := range grid {
		grid[y] = make([]rune, f.width)
		levelAt[y] = make([]float64, f.width)
		for x := range grid[y] {
			grid[y][x] = ' '
		}
	}

	cx := float64(f.width) / 2
	cy := float64(f.height) / 2
	maxRY := cy - 1
	maxRX := cx - 1

	for i, v := range f.bands {
		level := normalize(v, f.sensitivity)
		angle := 2 * math.Pi * float64(i) / float64(n)
		steps := int(level*maxRY) + 1

		for s := 0; s <= steps; s++ {
			r := float64(s) / float64(steps+1)
			x := int(cx + math.Cos(angle)*r*level*maxRX)
			y := int(cy + math.Sin(angle)*r*level*maxRY)
			if x < 0 || x >= f.width || y < 0 || y >= f.height {
				continue
			}
			if s == steps {
				grid[y][x] = '●'
			} else if grid[y][x] == ' ' {
				grid[y][x] = '·'
			}
			levelAt[y][x] = level
		}
	}

	rows := make([]string, f.height)
	var line strings.Builder
	for y := 0; y < f.height; y++ {
		line.Reset()
		for x := 0; x < f.width; x++ {
			if grid[y][x] == ' ' {
				line.WriteByte(' ')
			} else {
				line.WriteString(f.colorize(string(grid[y][x]), levelAt[y][x]))
			}
		}
		rows[y] = line.String()
	}

	return strings.Join(rows, "\n")
}

// render dispatches to the active mode's renderer.
func render(m Mode, f frame) string {
	switch m {
	case ModeWaveform:
		return renderWaveform(f)
	case ModeCircular:
		return renderCircular(f)
	default:
		return renderBars(f)
	}
}
