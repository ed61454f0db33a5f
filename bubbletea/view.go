package bubbletea

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
	"github.com/fwojciec/triage"
)

// chromeHeight counts the title, tab and status lines around the viewport.
const chromeHeight = 3

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.titleView(),
		m.formsView(),
		m.tabsView(),
		m.viewport.View(),
		m.statusBarView(),
	)
}

// layout sizes the viewport and inputs for the current window.
func (m *Model) layout() {
	height := max(m.height-formsHeight-chromeHeight, 1)
	if !m.ready {
		m.viewport = viewport.New(m.width, height)
		m.ready = true
	} else {
		m.viewport.Width = m.width
		m.viewport.Height = height
	}

	inner := m.boxWidth() - 2
	m.ticket.Width = max(inner-lipgloss.Width(m.ticket.Prompt)-1, 1)
	m.username.Width = max(inner-lipgloss.Width(m.username.Prompt)-1, 1)
	m.apiKey.Width = max(inner-lipgloss.Width(m.apiKey.Prompt)-1, 1)
	m.refresh()
}

// showView puts content pane p in the viewport.
func (m *Model) showView(p Pane) {
	if m.view != p {
		m.view = p
		m.refresh()
		m.viewport.GotoTop()
		if p == PaneEvents {
			m.viewport.GotoBottom()
		}
		return
	}
	m.refresh()
}

// refresh re-renders the content pane shown in the viewport.
func (m *Model) refresh() {
	m.viewport.SetContent(m.content())
}

func (m Model) content() string {
	muted := styleFromColorPair(m.styles().Muted, m.renderer)
	errStyle := styleFromColorPair(m.styles().ErrorText, m.renderer)
	if m.runID == "" {
		return muted.Render(NoRunText)
	}

	switch m.view {
	case PaneRCA:
		switch {
		case m.rcaLoading:
			return muted.Render(LoadingRCAText)
		case m.rcaErr != "":
			return errStyle.Render("Error: " + m.rcaErr)
		case m.rca == "":
			return muted.Render(triage.NoRCAText)
		}
		return newStyle(m.renderer).Width(max(m.width, 1)).Render(m.rca)
	case PaneChanges:
		switch {
		case m.changesLoading:
			return muted.Render("Working...")
		case m.changesErr != "":
			return errStyle.Render("Error: " + m.changesErr)
		case len(m.changes) == 0:
			return muted.Render(NoChangesText + " Press " + m.keymap.RequestChanges.Help().Key + " to suggest code changes.")
		}
		return renderChanges(changesConfig{
			bundle:     m.changes,
			styles:     m.styles(),
			renderer:   m.renderer,
			width:      m.width,
			detector:   m.detector,
			tokenizer:  m.tokenizer,
			wordDiffer: m.wordDiffer,
		})
	default:
		if len(m.snapshot.Events) == 0 {
			return muted.Render(WaitingText)
		}
		return renderEvents(m.snapshot.Events, m.styles(), m.renderer, m.width)
	}
}

func (m Model) styles() triage.Styles {
	return m.theme.Styles()
}

func (m Model) boxWidth() int {
	return max(m.width/2, 20)
}

func (m Model) titleView() string {
	s := m.styles()
	title := styleFromColorPair(s.Title, m.renderer).Bold(true).Render("Jira RCA")
	right := styleFromColorPair(s.Muted, m.renderer).Render(m.theme.Name() + " theme · " + m.keymap.ToggleTheme.Help().Key)
	gap := max(m.width-lipgloss.Width(title)-lipgloss.Width(right), 1)
	return title + strings.Repeat(" ", gap) + right
}

func (m Model) formsView() string {
	return lipgloss.JoinHorizontal(lipgloss.Top, m.analyzeView(), m.configureView())
}

func (m Model) box(focused bool) lipgloss.Style {
	palette := m.theme.Palette()
	border := palette.Context
	if focused {
		border = palette.UIAccent
	}
	return newStyle(m.renderer).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(border)).
		Width(m.boxWidth() - 2).
		Height(formsHeight - 2)
}

func (m Model) analyzeView() string {
	s := m.styles()
	lines := []string{
		styleFromColorPair(s.Title, m.renderer).Bold(true).Render("Jira Analysis"),
		m.ticket.View(),
	}
	switch {
	case m.analyzing:
		lines = append(lines, m.spinner.View()+" Analyzing...")
	case m.analyzeErr != "":
		lines = append(lines, styleFromColorPair(s.ErrorText, m.renderer).Render(m.analyzeErr))
	}
	return m.box(m.focus == PaneAnalyze).Render(strings.Join(lines, "\n"))
}

func (m Model) configureView() string {
	s := m.styles()
	lines := []string{
		styleFromColorPair(s.Title, m.renderer).Bold(true).Render("Configure"),
		m.username.View(),
		m.apiKey.View(),
	}
	switch m.saveStatus {
	case saveSaving:
		lines = append(lines, m.spinner.View()+" Saving...")
	case saveSaved:
		lines = append(lines, styleFromColorPair(s.SuccessText, m.renderer).Render("✓ "+SavedText))
	case saveFailed:
		lines = append(lines, styleFromColorPair(s.ErrorText, m.renderer).Render(m.saveErr))
	}
	return m.box(m.focus == PaneConfigure).Render(strings.Join(lines, "\n"))
}

func (m Model) tabsView() string {
	s := m.styles()
	active := styleFromColorPair(s.Title, m.renderer).Bold(true).Underline(true)
	inactive := styleFromColorPair(s.Muted, m.renderer)

	tabs := make([]string, 0, 3)
	for _, p := range []Pane{PaneEvents, PaneRCA, PaneChanges} {
		label := " " + p.String() + " "
		if p == PaneEvents && len(m.snapshot.Events) > 0 {
			label = fmt.Sprintf(" %s (%d) ", p, len(m.snapshot.Events))
		}
		if p == m.view {
			tabs = append(tabs, active.Render(label))
		} else {
			tabs = append(tabs, inactive.Render(label))
		}
	}
	return strings.Join(tabs, inactive.Render("│"))
}

// statusBarView renders the run, connection state and key hints.
func (m Model) statusBarView() string {
	palette := m.theme.Palette()
	barStyle := newStyle(m.renderer).
		Background(lipgloss.Color(palette.UIBackground)).
		Foreground(lipgloss.Color(palette.Foreground))
	dimStyle := newStyle(m.renderer).
		Background(lipgloss.Color(palette.UIBackground)).
		Foreground(lipgloss.Color(palette.Context))
	sep := dimStyle.Render(" │ ")

	run := "no run"
	if m.runID != "" {
		run = "run " + string(m.runID)
	}
	content := barStyle.Render(" "+run) + sep + barStyle.Render(m.snapshot.State.String())
	if m.busy() {
		content += sep + barStyle.Render(m.spinner.View())
	}
	if m.notice != "" {
		content += sep + barStyle.Render(m.notice)
	}
	content += sep + dimStyle.Render(m.hints()+" ")

	if w := lipgloss.Width(content); w < m.width {
		content += barStyle.Render(strings.Repeat(" ", m.width-w))
	}
	return content
}

func (m Model) hints() string {
	switch m.focus {
	case PaneAnalyze:
		return "enter:analyze  ctrl+r:reset  tab:next"
	case PaneConfigure:
		return "↑/↓:field  enter:save  ctrl+e:show key  ctrl+r:reset"
	case PaneChanges:
		return "c:suggest  j/k:scroll  tab:next  q:quit"
	case PaneRCA:
		return "r:reload  y:copy  j/k:scroll  q:quit"
	default:
		return "j/k:scroll  G:follow  tab:next  q:quit"
	}
}
