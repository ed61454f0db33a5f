package bubbletea

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fwojciec/triage"
)

// columnDivider separates the original and modified columns.
const columnDivider = " │ "

// minColumnWidth keeps columns readable on narrow terminals.
const minColumnWidth = 12

// minUnchangedShare is the share of unchanged text a paired row needs
// before word-level highlighting is worth showing.
const minUnchangedShare = 0.3

// changesConfig holds all rendering parameters for renderChanges.
type changesConfig struct {
	bundle     triage.DiffBundle
	styles     triage.Styles
	renderer   *lipgloss.Renderer
	width      int
	detector   triage.LanguageDetector
	tokenizer  triage.LineTokenizer
	wordDiffer triage.WordDiffer
}

// row pairs an original line with a modified line by index.
// -1 marks a blank filler cell.
type row struct {
	left, right int
}

// renderChanges renders every file of the bundle, sorted by path, as a
// header followed by side-by-side original and modified columns.
func renderChanges(cfg changesConfig) string {
	var sb strings.Builder
	for _, path := range cfg.bundle.Paths() {
		blob := cfg.bundle[path].Changes
		added, removed := triage.CountChanges(blob)
		sb.WriteString(renderFileHeader(path, added, removed, cfg.width, styleFromColorPair(cfg.styles.FileHeader, cfg.renderer)))
		sb.WriteString("\n")
		for _, line := range renderFile(path, blob, cfg) {
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// renderFileHeader renders "── path ──────── +N -M ──" across width.
func renderFileHeader(path string, added, removed, width int, style lipgloss.Style) string {
	start := "── " + path + " "
	end := fmt.Sprintf(" +%d -%d ──", added, removed)
	fill := max(width-lipgloss.Width(start)-lipgloss.Width(end), 3)
	return style.Render(start + strings.Repeat("─", fill) + end)
}

// renderFile renders the side-by-side rows of one change blob.
func renderFile(path, blob string, cfg changesConfig) []string {
	original, modified := triage.SegmentLines(blob)
	left := newSide(original, triage.RemoveMarker, cfg.styles.Removed, cfg.styles.RemovedHighlight)
	right := newSide(modified, triage.AddMarker, cfg.styles.Added, cfg.styles.AddedHighlight)

	if cfg.tokenizer != nil && cfg.detector != nil {
		if lang := cfg.detector.Detect(path, blob); lang != "" {
			left.tokens = cfg.tokenizer.TokenizeLines(lang, left.texts)
			right.tokens = cfg.tokenizer.TokenizeLines(lang, right.texts)
		}
	}

	colWidth := max((cfg.width-lipgloss.Width(columnDivider))/2, minColumnWidth)
	divider := styleFromColorPair(cfg.styles.Divider, cfg.renderer).Render(columnDivider)
	clip := newStyle(cfg.renderer).MaxWidth(colWidth)

	rows := alignRows(original, modified)
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		var leftSegs, rightSegs []triage.WordSegment
		if r.left >= 0 && r.right >= 0 && original[r.left].Changed && modified[r.right].Changed && cfg.wordDiffer != nil {
			oldSegs, newSegs := cfg.wordDiffer.Diff(left.texts[r.left], right.texts[r.right])
			if hasSignificantUnchangedContent(oldSegs) && hasSignificantUnchangedContent(newSegs) {
				leftSegs, rightSegs = oldSegs, newSegs
			}
		}
		lines = append(lines,
			clip.Render(left.render(r.left, leftSegs, cfg, colWidth))+
				divider+
				clip.Render(right.render(r.right, rightSegs, cfg, colWidth)))
	}
	return lines
}

// alignRows lines up the two sides of a segmented blob. Lines shared by
// both sides occupy one row; a run of removed lines is paired in order
// with the run of added lines at the same position.
func alignRows(original, modified []triage.SideLine) []row {
	var rows []row
	i, j := 0, 0
	for i < len(original) || j < len(modified) {
		endI, endJ := i, j
		for endI < len(original) && original[endI].Changed {
			endI++
		}
		for endJ < len(modified) && modified[endJ].Changed {
			endJ++
		}
		for k := 0; k < max(endI-i, endJ-j); k++ {
			r := row{left: -1, right: -1}
			if i+k < endI {
				r.left = i + k
			}
			if j+k < endJ {
				r.right = j + k
			}
			rows = append(rows, r)
		}
		i, j = endI, endJ

		switch {
		case i < len(original) && j < len(modified):
			rows = append(rows, row{left: i, right: j})
			i++
			j++
		case i < len(original):
			rows = append(rows, row{left: i, right: -1})
			i++
		case j < len(modified):
			rows = append(rows, row{left: -1, right: j})
			j++
		}
	}
	return rows
}

// side is one column of a side-by-side view.
type side struct {
	lines     []triage.SideLine
	texts     []string // tab-expanded line text
	tokens    [][]triage.Token
	marker    string
	colors    triage.ColorPair
	highlight triage.ColorPair
}

func newSide(lines []triage.SideLine, marker string, colors, highlight triage.ColorPair) side {
	texts := make([]string, len(lines))
	for i, l := range lines {
		texts[i] = ExpandTabs(l.Text, 0)
	}
	return side{lines: lines, texts: texts, marker: marker, colors: colors, highlight: highlight}
}

// render renders line i of the side padded to width. Changed lines get
// the side's diff colors; shared lines use the context colors.
func (s side) render(i int, segs []triage.WordSegment, cfg changesConfig, width int) string {
	contextStyle := styleFromColorPair(cfg.styles.Context, cfg.renderer)
	if i < 0 {
		return contextStyle.Render(strings.Repeat(" ", width))
	}

	prefix, colors := " ", cfg.styles.Context
	if s.lines[i].Changed {
		prefix, colors = s.marker, s.colors
	}
	lineStyle := styleFromColorPair(colors, cfg.renderer)

	switch {
	case segs != nil:
		return renderLineWithSegments(prefix, segs, lineStyle, styleFromColorPair(s.highlight, cfg.renderer), width)
	case s.tokens != nil:
		return renderLineWithTokens(prefix, s.tokens[i], colors, cfg.renderer, width)
	default:
		return lineStyle.Render(padLine(prefix+s.texts[i], width))
	}
}

// hasSignificantUnchangedContent reports whether enough of segments is
// unchanged for word-level highlighting to help rather than distract.
func hasSignificantUnchangedContent(segments []triage.WordSegment) bool {
	var unchanged, total int
	for _, seg := range segments {
		total += len(seg.Text)
		if !seg.Changed {
			unchanged += len(seg.Text)
		}
	}
	if total == 0 {
		return false
	}
	return float64(unchanged)/float64(total) >= minUnchangedShare
}

// renderLineWithSegments renders a line with word-level diff highlighting.
func renderLineWithSegments(prefix string, segments []triage.WordSegment, baseStyle, highlightStyle lipgloss.Style, width int) string {
	var sb strings.Builder
	sb.WriteString(baseStyle.Render(prefix))
	n := lipgloss.Width(prefix)
	for _, seg := range segments {
		if seg.Changed {
			sb.WriteString(highlightStyle.Render(seg.Text))
		} else {
			sb.WriteString(baseStyle.Render(seg.Text))
		}
		n += lipgloss.Width(seg.Text)
	}
	if n < width {
		sb.WriteString(baseStyle.Render(strings.Repeat(" ", width-n)))
	}
	return sb.String()
}

// renderLineWithTokens renders a line with syntax highlighting. Each token
// keeps its syntax foreground over the line's diff background.
func renderLineWithTokens(prefix string, tokens []triage.Token, colors triage.ColorPair, renderer *lipgloss.Renderer, width int) string {
	baseStyle := styleFromColorPair(colors, renderer)

	var sb strings.Builder
	sb.WriteString(baseStyle.Render(prefix))
	n := lipgloss.Width(prefix)
	for _, tok := range tokens {
		style := baseStyle
		if tok.Style.Foreground != "" {
			style = style.Foreground(lipgloss.Color(tok.Style.Foreground))
		}
		if tok.Style.Bold {
			style = style.Bold(true)
		}
		sb.WriteString(style.Render(tok.Text))
		n += lipgloss.Width(tok.Text)
	}
	if n < width {
		sb.WriteString(baseStyle.Render(strings.Repeat(" ", width-n)))
	}
	return sb.String()
}

// renderEvents renders one block per event: a kind label followed by the
// event text, wrapped to width.
func renderEvents(events []triage.StreamEvent, styles triage.Styles, renderer *lipgloss.Renderer, width int) string {
	const labelWidth = 8
	textWidth := max(width-labelWidth, minColumnWidth)

	var sb strings.Builder
	for _, ev := range events {
		style := styleFromColorPair(eventColors(ev.Kind, styles), renderer)
		label := style.Bold(true).Width(labelWidth).Render(string(ev.Kind))
		text := style.Width(textWidth).Render(ev.Text)
		sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, label, text))
		sb.WriteString("\n")
	}
	return sb.String()
}

func eventColors(kind triage.EventKind, styles triage.Styles) triage.ColorPair {
	switch kind {
	case triage.KindError:
		return styles.EventError
	case triage.KindSystem:
		return styles.EventSystem
	case triage.KindRaw:
		return styles.EventRaw
	default:
		return styles.EventMessage
	}
}

// styleFromColorPair creates a lipgloss style from a ColorPair.
// If renderer is nil, the default lipgloss renderer is used.
func styleFromColorPair(cp triage.ColorPair, renderer *lipgloss.Renderer) lipgloss.Style {
	style := newStyle(renderer)
	if cp.Foreground != "" {
		style = style.Foreground(lipgloss.Color(cp.Foreground))
	}
	if cp.Background != "" {
		style = style.Background(lipgloss.Color(cp.Background))
	}
	return style
}

func newStyle(renderer *lipgloss.Renderer) lipgloss.Style {
	if renderer != nil {
		return renderer.NewStyle()
	}
	return lipgloss.NewStyle()
}

// padLine pads line with spaces to the given display width.
func padLine(line string, width int) string {
	if w := lipgloss.Width(line); w < width {
		return line + strings.Repeat(" ", width-w)
	}
	return line
}

// RenderChanges renders bundle side by side at width, outside the
// interactive console. Options supply the theme, renderer and
// highlighting the same way they do for NewModel.
func RenderChanges(bundle triage.DiffBundle, width int, opts ...Option) string {
	m := NewModel(nil, nil, opts...)
	return renderChanges(changesConfig{
		bundle:     bundle,
		styles:     m.styles(),
		renderer:   m.renderer,
		width:      width,
		detector:   m.detector,
		tokenizer:  m.tokenizer,
		wordDiffer: m.wordDiffer,
	})
}

// RenderEvents renders events the way the event pane shows them.
func RenderEvents(events []triage.StreamEvent, width int, opts ...Option) string {
	m := NewModel(nil, nil, opts...)
	return renderEvents(events, m.styles(), m.renderer, width)
}
