package render

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit     key.Binding
	Mode     key.Binding
	SensUp   key.Binding
	SensDown key.Binding
	Peaks    key.Binding
	Colors   key.Binding
}

var keys = keyMap{
	Quit:     key.NewBinding(key.WithKeys("q", "esc", "ctrl+c")),
	Mode:     key.NewBinding(key.WithKeys("m")),
	SensUp:   key.NewBinding(key.WithKeys("+", "=")),
	SensDown: key.NewBinding(key.WithKeys("-")),
	Peaks:    key.NewBinding(key.WithKeys("p")),
	Colors:   key.NewBinding(key.WithKeys("c")),
}
