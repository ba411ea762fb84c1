package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type colorRGB struct {
	R, G, B uint8
}

// namedColors are the colors accepted in the comma separated gradient
// string, e.g. "red,yellow,green,cyan,blue".
var namedColors = map[string]colorRGB{
	"red":     {205, 49, 49},
	"orange":  {255, 140, 0},
	"yellow":  {229, 229, 16},
	"green":   {13, 188, 121},
	"cyan":    {17, 168, 205},
	"blue":    {36, 114, 200},
	"magenta": {188, 63, 188},
	"purple":  {128, 0, 200},
	"pink":    {255, 105, 180},
	"white":   {229, 229, 229},
	"gray":    {128, 128, 128},
	"grey":    {128, 128, 128},
}

// Gradient interpolates between an ordered list of color stops. Level 0
// maps to the first stop, level 1 to the last.
type Gradient struct {
	stops []colorRGB
	cache map[colorRGB]lipgloss.Style
}

// ParseGradient builds a gradient from a comma separated list of color
// names. A single color yields a flat gradient.
func ParseGradient(list string) (*Gradient, error) {
	parts := strings.Split(list, ",")
	stops := make([]colorRGB, 0, len(parts))
	for _, part := range parts {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		c, ok := namedColors[name]
		if !ok {
			return nil, fmt.Errorf("unknown color %q", name)
		}
		stops = append(stops, c)
	}
	if len(stops) == 0 {
		return nil, fmt.Errorf("gradient needs at least one color")
	}

	return &Gradient{
		stops: stops,
		cache: make(map[colorRGB]lipgloss.Style),
	}, nil
}

// At returns the interpolated color for t in [0, 1].
func (g *Gradient) At(t float64) colorRGB {
	t = clamp01(t)
	if len(g.stops) == 1 {
		return g.stops[0]
	}

	scaled := t * float64(len(g.stops)-1)
	i := int(scaled)
	if i >= len(g.stops)-1 {
		return g.stops[len(g.stops)-1]
	}
	return lerpColor(g.stops[i], g.stops[i+1], scaled-float64(i))
}

// StyleAt returns a lipgloss foreground style for the interpolated color.
// Styles are cached; interpolation yields few distinct colors per frame.
func (g *Gradient) StyleAt(t float64) lipgloss.Style {
	c := g.At(t)
	if style, ok := g.cache[c]; ok {
		return style
	}
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)))
	g.cache[c] = style
	return style
}

func lerpColor(a, b colorRGB, t float64) colorRGB {
	t = clamp01(t)
	return colorRGB{
		R: uint8(float64(a.R) + (float64(b.R)-float64(a.R))*t),
		G: uint8(float64(a.G) + (float64(b.G)-float64(a.G))*t),
		B: uint8(float64(a.B) + (float64(b.B)-float64(a.B))*t),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
