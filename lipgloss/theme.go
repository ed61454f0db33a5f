// Package lipgloss provides the console's color themes.
package lipgloss

import (
	"fmt"

	"github.com/fwojciec/triage"
)

// Compile-time interface verification.
var _ triage.Theme = (*Theme)(nil)

// Theme names.
const (
	Dark  = "dark"
	Light = "light"
)

// Theme implements triage.Theme. Styles are derived from the palette
// plus a few surface tints that only make sense for one background.
type Theme struct {
	name    string
	styles  triage.Styles
	palette triage.Palette
}

// Name returns the theme name.
func (t *Theme) Name() string {
	return t.name
}

// Styles returns the color styles for this theme.
func (t *Theme) Styles() triage.Styles {
	return t.styles
}

// Palette returns the semantic color palette for this theme.
func (t *Theme) Palette() triage.Palette {
	return t.palette
}

// tints are background colors for changed rows.
type tints struct {
	added     triage.Color
	removed   triage.Color
	highlight triage.Color // text on bright word highlights
}

func newTheme(name string, p triage.Palette, t tints) *Theme {
	pair := func(fg, bg triage.Color) triage.ColorPair {
		return triage.ColorPair{Foreground: string(fg), Background: string(bg)}
	}
	return &Theme{
		name:    name,
		palette: p,
		styles: triage.Styles{
			Added:            pair(p.Added, t.added),
			Removed:          pair(p.Removed, t.removed),
			Context:          pair(p.Foreground, ""),
			AddedHighlight:   pair(t.highlight, p.Added),
			RemovedHighlight: pair(t.highlight, p.Removed),
			FileHeader:       pair(p.Modified, p.UIBackground),
			Divider:          pair(p.Context, ""),

			EventMessage: pair(p.Foreground, ""),
			EventError:   pair(p.Removed, ""),
			EventSystem:  pair(p.UIAccent, ""),
			EventRaw:     pair(p.Context, ""),

			Title:       pair(p.UIAccent, ""),
			StatusBar:   pair(p.UIForeground, p.UIBackground),
			Muted:       pair(p.Context, ""),
			ErrorText:   pair(p.Removed, ""),
			SuccessText: pair(p.Added, ""),
		},
	}
}

// DarkTheme returns a theme for dark terminal backgrounds (Catppuccin
// Mocha). Row tints stay very dark so syntax colors remain readable.
func DarkTheme() *Theme {
	return newTheme(Dark, triage.Palette{
		Background: "#1e1e2e",
		Foreground: "#cdd6f4",

		Added:    "#a6e3a1",
		Removed:  "#f38ba8",
		Modified: "#f9e2af",
		Context:  "#6c7086",

		Keyword:     "#cba6f7",
		String:      "#a6e3a1",
		Number:      "#fab387",
		Comment:     "#6c7086",
		Operator:    "#89dceb",
		Function:    "#89b4fa",
		Type:        "#f9e2af",
		Constant:    "#fab387",
		Punctuation: "#9399b2",

		UIBackground: "#313244",
		UIForeground: "#a6adc8",
		UIAccent:     "#89b4fa",
	}, tints{added: "#004000", removed: "#3f0001", highlight: "#1e1e2e"})
}

// LightTheme returns a theme for light terminal backgrounds (Catppuccin
// Latte).
func LightTheme() *Theme {
	return newTheme(Light, triage.Palette{
		Background: "#eff1f5",
		Foreground: "#4c4f69",

		Added:    "#40a02b",
		Removed:  "#d20f39",
		Modified: "#df8e1d",
		Context:  "#9ca0b0",

		Keyword:     "#8839ef",
		String:      "#40a02b",
		Number:      "#fe640b",
		Comment:     "#9ca0b0",
		Operator:    "#04a5e5",
		Function:    "#1e66f5",
		Type:        "#df8e1d",
		Constant:    "#fe640b",
		Punctuation: "#6c6f85",

		UIBackground: "#e6e9ef",
		UIForeground: "#6c6f85",
		UIAccent:     "#1e66f5",
	}, tints{added: "#d4f4d4", removed: "#f4d4d4", highlight: "#ffffff"})
}

// ThemeByName returns the named theme.
func ThemeByName(name string) (*Theme, error) {
	switch name {
	case Dark, "":
		return DarkTheme(), nil
	case Light:
		return LightTheme(), nil
	default:
		return nil, fmt.Errorf("unknown theme %q", name)
	}
}

// Toggle returns the other theme: light for dark and dark for light.
func Toggle(t triage.Theme) *Theme {
	if t != nil && t.Name() == Dark {
		return LightTheme()
	}
	return DarkTheme()
}
