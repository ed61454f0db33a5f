package triage

// ColorPair represents a foreground and background color combination.
// Colors are hex strings in "#RRGGBB" format; empty means terminal default.
type ColorPair struct {
	Foreground string
	Background string
}

// Styles contains color pairs for every visual element of the console.
type Styles struct {
	// Diff view
	Added            ColorPair // Lines only on the modified side
	Removed          ColorPair // Lines only on the original side
	Context          ColorPair // Lines shared by both sides
	AddedHighlight   ColorPair // Changed words within added lines
	RemovedHighlight ColorPair // Changed words within removed lines
	FileHeader       ColorPair // "── path ──── +N -M ──"
	Divider          ColorPair // Column separator between sides

	// Event log
	EventMessage ColorPair
	EventError   ColorPair
	EventSystem  ColorPair
	EventRaw     ColorPair

	// Chrome
	Title       ColorPair
	StatusBar   ColorPair
	Muted       ColorPair
	ErrorText   ColorPair
	SuccessText ColorPair
}

// Color is a hex color string such as "#cdd6f4".
type Color string

// Palette holds the semantic colors a theme is built from.
type Palette struct {
	Background Color
	Foreground Color

	Added    Color
	Removed  Color
	Modified Color
	Context  Color

	Keyword     Color
	String      Color
	Number      Color
	Comment     Color
	Operator    Color
	Function    Color
	Type        Color
	Constant    Color
	Punctuation Color

	UIBackground Color
	UIForeground Color
	UIAccent     Color
}

// Theme provides styles for rendering the console.
type Theme interface {
	Name() string
	Styles() Styles
	Palette() Palette
}
