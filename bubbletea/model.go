// Package bubbletea provides the interactive run console using the Bubble Tea
// framework.
package bubbletea

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/fwojciec/triage"
	"github.com/fwojciec/triage/logging"
)

// Pane identifies a focusable area of the console.
type Pane int

// Panes in focus order.
const (
	PaneAnalyze Pane = iota
	PaneConfigure
	PaneEvents
	PaneRCA
	PaneChanges
	paneCount
)

func (p Pane) String() string {
	switch p {
	case PaneAnalyze:
		return "Analyze"
	case PaneConfigure:
		return "Configure"
	case PaneEvents:
		return "Events"
	case PaneRCA:
		return "RCA"
	case PaneChanges:
		return "Changes"
	default:
		return "?"
	}
}

// Placeholder texts.
const (
	LoadingRCAText = "Loading RCA..."
	NoChangesText  = "No suggested changes yet."
	NoRunText      = "Start an analysis to follow its run."
	WaitingText    = "Waiting for events..."
	SavedText      = "Saved"
)

// DefaultSavedFor is how long the "Saved" confirmation stays visible.
const DefaultSavedFor = 2 * time.Second

// formsHeight is the rendered height of the form row, borders included.
const formsHeight = 6

// StreamUpdateMsg carries a snapshot of the event stream into the program.
type StreamUpdateMsg struct {
	Snapshot triage.Snapshot
}

type analyzeResultMsg struct {
	runID triage.RunID
	err   error
}

type saveResultMsg struct {
	err error
}

type clearSavedMsg struct {
	seq int
}

type rcaResultMsg struct {
	runID triage.RunID
	text  string
	err   error
}

type changesResultMsg struct {
	runID  triage.RunID
	bundle triage.DiffBundle
	err    error
}

type copyResultMsg struct {
	err error
}

type saveStatus int

const (
	saveIdle saveStatus = iota
	saveSaving
	saveSaved
	saveFailed
)

// HighlighterFunc builds a syntax tokenizer for a theme palette. It is
// called again whenever the theme changes.
type HighlighterFunc func(triage.Palette) triage.LineTokenizer

// Model is the Bubble Tea model of the run console.
type Model struct {
	ctx         context.Context
	backend     triage.Backend
	stream      triage.EventStream
	subs        *subscriptions
	clipboard   triage.Clipboard
	detector    triage.LanguageDetector
	wordDiffer  triage.WordDiffer
	highlighter HighlighterFunc
	tokenizer   triage.LineTokenizer
	logger      *log.Logger
	savedFor    time.Duration

	// UI state
	keymap    KeyMap
	theme     triage.Theme
	alternate triage.Theme
	renderer  *lipgloss.Renderer
	focus     Pane
	view      Pane // content pane shown in the viewport
	viewport  viewport.Model
	spinner   spinner.Model
	width     int
	height    int
	ready     bool
	notice    string

	// Analyze form
	ticket     textinput.Model
	analyzing  bool
	analyzeErr string

	// Configure form
	username   textinput.Model
	apiKey     textinput.Model
	keyFocused bool
	showKey    bool
	saveStatus saveStatus
	saveErr    string
	saveSeq    int

	// Current run
	runID          triage.RunID
	snapshot       triage.Snapshot
	rca            string
	rcaLoading     bool
	rcaErr         string
	changes        triage.DiffBundle
	changesLoading bool
	changesErr     string
}

// Option configures a Model.
type Option func(*Model)

// WithContext sets the context passed to backend calls.
func WithContext(ctx context.Context) Option {
	return func(m *Model) {
		m.ctx = ctx
	}
}

// WithClipboard enables copying the RCA.
func WithClipboard(c triage.Clipboard) Option {
	return func(m *Model) {
		m.clipboard = c
	}
}

// WithLanguageDetector sets the language detector for syntax highlighting.
func WithLanguageDetector(d triage.LanguageDetector) Option {
	return func(m *Model) {
		m.detector = d
	}
}

// WithHighlighter enables syntax highlighting of suggested changes.
func WithHighlighter(fn HighlighterFunc) Option {
	return func(m *Model) {
		m.highlighter = fn
	}
}

// WithWordDiffer sets the word differ for word-level highlighting.
func WithWordDiffer(d triage.WordDiffer) Option {
	return func(m *Model) {
		m.wordDiffer = d
	}
}

// WithThemes sets the active theme and the one the toggle switches to.
func WithThemes(active, alternate triage.Theme) Option {
	return func(m *Model) {
		m.theme = active
		m.alternate = alternate
	}
}

// WithRenderer sets a custom lipgloss renderer for the model.
func WithRenderer(r *lipgloss.Renderer) Option {
	return func(m *Model) {
		m.renderer = r
	}
}

// WithLogger sets the logger for backend results.
func WithLogger(l *log.Logger) Option {
	return func(m *Model) {
		m.logger = l
	}
}

// WithSavedFor sets how long the "Saved" confirmation stays visible.
func WithSavedFor(d time.Duration) Option {
	return func(m *Model) {
		m.savedFor = d
	}
}

// NewModel creates a console backed by backend and stream.
func NewModel(backend triage.Backend, stream triage.EventStream, opts ...Option) Model {
	m := Model{
		ctx:      context.Background(),
		backend:  backend,
		stream:   stream,
		subs:     &subscriptions{},
		keymap:   DefaultKeyMap(),
		savedFor: DefaultSavedFor,
		view:     PaneEvents,
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.logger = logging.OrDiscard(m.logger)
	if m.theme == nil {
		m.theme = fallbackTheme{}
	}
	if m.highlighter != nil {
		m.tokenizer = m.highlighter(m.theme.Palette())
	}

	m.ticket = textinput.New()
	m.ticket.Prompt = "Jira ID: "
	m.ticket.Placeholder = "PROJECT-123"
	m.ticket.CharLimit = 64
	m.ticket.Focus()

	m.username = textinput.New()
	m.username.Prompt = "Username: "
	m.username.Placeholder = "your@company.com"
	m.username.CharLimit = 256

	m.apiKey = textinput.New()
	m.apiKey.Prompt = "API Key:  "
	m.apiKey.Placeholder = "••••••••••••"
	m.apiKey.EchoMode = textinput.EchoPassword
	m.apiKey.EchoCharacter = '•'

	m.spinner = spinner.New(spinner.WithSpinner(spinner.MiniDot))
	return m
}

// Focus returns the focused pane.
func (m Model) Focus() Pane {
	return m.focus
}

// RunID returns the run the console is showing.
func (m Model) RunID() triage.RunID {
	return m.runID
}

// ThemeName returns the name of the active theme.
func (m Model) ThemeName() string {
	return m.theme.Name()
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	case StreamUpdateMsg:
		return m.handleStream(msg.Snapshot), nil
	case analyzeResultMsg:
		return m.handleAnalyzed(msg)
	case saveResultMsg:
		return m.handleSaved(msg)
	case clearSavedMsg:
		if msg.seq == m.saveSeq && m.saveStatus == saveSaved {
			m.saveStatus = saveIdle
		}
		return m, nil
	case rcaResultMsg:
		return m.handleRCA(msg), nil
	case changesResultMsg:
		return m.handleChanges(msg), nil
	case copyResultMsg:
		if msg.err != nil {
			m.notice = "Copy failed: " + msg.err.Error()
		} else {
			m.notice = "Copied RCA to clipboard"
		}
		return m, nil
	case spinner.TickMsg:
		if !m.busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m.updateInputs(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.notice = ""
	switch {
	case key.Matches(msg, m.keymap.ForceQuit):
		return m, tea.Quit
	case key.Matches(msg, m.keymap.NextPane):
		return m.setFocus((m.focus + 1) % paneCount)
	case key.Matches(msg, m.keymap.PrevPane):
		return m.setFocus((m.focus + paneCount - 1) % paneCount)
	case key.Matches(msg, m.keymap.ToggleTheme):
		m.toggleTheme()
		return m, nil
	}

	switch m.focus {
	case PaneAnalyze:
		return m.updateAnalyze(msg)
	case PaneConfigure:
		return m.updateConfigure(msg)
	default:
		return m.updateContent(msg)
	}
}

func (m Model) updateAnalyze(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.Submit):
		if m.analyzing {
			return m, nil
		}
		ticket := strings.TrimSpace(m.ticket.Value())
		if ticket == "" {
			m.analyzeErr = triage.ErrMissingTicket.Error()
			return m, nil
		}
		m.analyzing = true
		m.analyzeErr = ""
		return m, tea.Batch(m.analyzeCmd(ticket), m.spinner.Tick)
	case key.Matches(msg, m.keymap.Reset):
		m.ticket.Reset()
		m.analyzeErr = ""
		return m, nil
	}
	var cmd tea.Cmd
	m.ticket, cmd = m.ticket.Update(msg)
	return m, cmd
}

func (m Model) updateConfigure(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.NextField), key.Matches(msg, m.keymap.PrevField):
		cmd := m.focusField(!m.keyFocused)
		return m, cmd
	case key.Matches(msg, m.keymap.Submit):
		if !m.keyFocused {
			cmd := m.focusField(true)
			return m, cmd
		}
		return m.save()
	case key.Matches(msg, m.keymap.Reset):
		m.username.Reset()
		m.apiKey.Reset()
		m.saveStatus = saveIdle
		m.saveErr = ""
		return m, nil
	case key.Matches(msg, m.keymap.RevealKey):
		m.showKey = !m.showKey
		m.apiKey.EchoMode = textinput.EchoPassword
		if m.showKey {
			m.apiKey.EchoMode = textinput.EchoNormal
		}
		return m, nil
	}
	var cmd tea.Cmd
	if m.keyFocused {
		m.apiKey, cmd = m.apiKey.Update(msg)
	} else {
		m.username, cmd = m.username.Update(msg)
	}
	return m, cmd
}

func (m Model) updateContent(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keymap.Up):
		m.viewport.ScrollUp(1)
	case key.Matches(msg, m.keymap.Down):
		m.viewport.ScrollDown(1)
	case key.Matches(msg, m.keymap.HalfPageUp):
		m.viewport.HalfPageUp()
	case key.Matches(msg, m.keymap.HalfPageDown):
		m.viewport.HalfPageDown()
	case key.Matches(msg, m.keymap.GotoTop):
		m.viewport.GotoTop()
	case key.Matches(msg, m.keymap.GotoBottom):
		m.viewport.GotoBottom()
	case key.Matches(msg, m.keymap.RequestChanges):
		if m.runID == "" || m.changesLoading {
			return m, nil
		}
		m.changesLoading = true
		m.changesErr = ""
		m.showView(PaneChanges)
		m.focus = PaneChanges
		return m, tea.Batch(m.changesCmd(m.runID), m.spinner.Tick)
	case key.Matches(msg, m.keymap.ReloadRCA):
		if m.runID == "" || m.rcaLoading {
			return m, nil
		}
		cmd := m.loadRCA()
		return m, cmd
	case key.Matches(msg, m.keymap.CopyRCA):
		if m.rca == "" || m.clipboard == nil {
			return m, nil
		}
		return m, m.copyCmd(m.rca)
	}
	return m, nil
}

// updateInputs forwards other messages, such as cursor blinks, to the
// focused text input.
func (m Model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch {
	case m.focus == PaneAnalyze:
		m.ticket, cmd = m.ticket.Update(msg)
	case m.focus == PaneConfigure && m.keyFocused:
		m.apiKey, cmd = m.apiKey.Update(msg)
	case m.focus == PaneConfigure:
		m.username, cmd = m.username.Update(msg)
	}
	return m, cmd
}

func (m Model) setFocus(p Pane) (tea.Model, tea.Cmd) {
	m.focus = p
	m.ticket.Blur()
	m.username.Blur()
	m.apiKey.Blur()

	var cmd tea.Cmd
	switch p {
	case PaneAnalyze:
		cmd = m.ticket.Focus()
	case PaneConfigure:
		cmd = m.focusField(m.keyFocused)
	default:
		m.showView(p)
	}
	return m, cmd
}

func (m *Model) focusField(apiKey bool) tea.Cmd {
	m.keyFocused = apiKey
	if apiKey {
		m.username.Blur()
		return m.apiKey.Focus()
	}
	m.apiKey.Blur()
	return m.username.Focus()
}

func (m Model) save() (tea.Model, tea.Cmd) {
	if m.saveStatus == saveSaving {
		return m, nil
	}
	creds := triage.Credentials{Username: m.username.Value(), APIKey: m.apiKey.Value()}
	if err := creds.Validate(); err != nil {
		m.saveStatus = saveFailed
		m.saveErr = err.Error()
		return m, nil
	}
	m.saveStatus = saveSaving
	m.saveErr = ""
	return m, tea.Batch(m.saveCmd(creds.Trimmed()), m.spinner.Tick)
}

func (m Model) handleAnalyzed(msg analyzeResultMsg) (tea.Model, tea.Cmd) {
	m.analyzing = false
	if msg.err != nil {
		m.logger.Warn("analysis failed", "err", msg.err)
		m.analyzeErr = msg.err.Error()
		return m, nil
	}
	m.logger.Info("run started", "run", msg.runID)
	return m.startRun(msg.runID)
}

// startRun switches the console to runID: the event stream is
// resubscribed, the RCA reloaded and suggested changes cleared.
func (m Model) startRun(runID triage.RunID) (tea.Model, tea.Cmd) {
	m.runID = runID
	m.snapshot = triage.Snapshot{RunID: runID, State: triage.StateOpen}
	m.changes = nil
	m.changesLoading = false
	m.changesErr = ""
	m.showView(PaneEvents)
	rca := m.loadRCA()
	return m, tea.Batch(m.subscribeCmd(runID), rca)
}

func (m *Model) loadRCA() tea.Cmd {
	m.rca = ""
	m.rcaErr = ""
	m.rcaLoading = true
	m.refresh()
	return tea.Batch(m.rcaCmd(m.runID), m.spinner.Tick)
}

func (m Model) handleSaved(msg saveResultMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.logger.Warn("save credentials failed", "err", msg.err)
		m.saveStatus = saveFailed
		m.saveErr = msg.err.Error()
		return m, nil
	}
	m.saveStatus = saveSaved
	m.saveSeq++
	seq := m.saveSeq
	return m, tea.Tick(m.savedFor, func(time.Time) tea.Msg {
		return clearSavedMsg{seq: seq}
	})
}

// handleStream applies a stream snapshot. Snapshots of other runs are
// stale and dropped.
func (m Model) handleStream(s triage.Snapshot) Model {
	if s.RunID != m.runID {
		return m
	}
	follow := m.viewport.AtBottom()
	m.snapshot = s
	if m.view == PaneEvents {
		m.refresh()
		if follow {
			m.viewport.GotoBottom()
		}
	}
	return m
}

func (m Model) handleRCA(msg rcaResultMsg) Model {
	if msg.runID != m.runID {
		m.logger.Debug("dropping stale RCA", "run", msg.runID)
		return m
	}
	m.rcaLoading = false
	if msg.err != nil {
		m.logger.Warn("fetch RCA failed", "run", msg.runID, "err", msg.err)
		m.rcaErr = msg.err.Error()
	} else {
		m.rca = msg.text
	}
	m.refresh()
	return m
}

func (m Model) handleChanges(msg changesResultMsg) Model {
	if msg.runID != m.runID {
		m.logger.Debug("dropping stale changes", "run", msg.runID)
		return m
	}
	m.changesLoading = false
	if msg.err != nil {
		m.logger.Warn("suggest changes failed", "run", msg.runID, "err", msg.err)
		m.changesErr = msg.err.Error()
	} else {
		m.changes = msg.bundle
		m.changesErr = ""
	}
	m.refresh()
	return m
}

func (m *Model) toggleTheme() {
	if m.alternate == nil {
		return
	}
	m.theme, m.alternate = m.alternate, m.theme
	if m.highlighter != nil {
		m.tokenizer = m.highlighter(m.theme.Palette())
	}
	m.refresh()
}

func (m Model) busy() bool {
	return m.analyzing || m.saveStatus == saveSaving || m.rcaLoading || m.changesLoading
}

func (m Model) analyzeCmd(ticket string) tea.Cmd {
	ctx, backend := m.ctx, m.backend
	return func() tea.Msg {
		runID, err := backend.StartAnalysis(ctx, ticket)
		return analyzeResultMsg{runID: runID, err: err}
	}
}

func (m Model) saveCmd(creds triage.Credentials) tea.Cmd {
	ctx, backend := m.ctx, m.backend
	return func() tea.Msg {
		return saveResultMsg{err: backend.SaveCredentials(ctx, creds)}
	}
}

func (m Model) rcaCmd(runID triage.RunID) tea.Cmd {
	ctx, backend := m.ctx, m.backend
	return func() tea.Msg {
		text, err := backend.FetchRCA(ctx, runID)
		return rcaResultMsg{runID: runID, text: text, err: err}
	}
}

func (m Model) changesCmd(runID triage.RunID) tea.Cmd {
	ctx, backend := m.ctx, m.backend
	return func() tea.Msg {
		bundle, err := backend.SuggestChanges(ctx, runID)
		return changesResultMsg{runID: runID, bundle: bundle, err: err}
	}
}

// subscriptions orders Subscribe calls made from command goroutines. A
// subscription is skipped once a later one has been applied.
type subscriptions struct {
	issued atomic.Uint64

	mu      sync.Mutex
	applied uint64
}

// subscribeCmd subscribes off the event loop: the stream reports back
// through the program, which must not be blocked while it does.
func (m Model) subscribeCmd(runID triage.RunID) tea.Cmd {
	stream, subs := m.stream, m.subs
	seq := subs.issued.Add(1)
	return func() tea.Msg {
		subs.mu.Lock()
		defer subs.mu.Unlock()
		if seq < subs.applied {
			return nil
		}
		subs.applied = seq
		stream.Subscribe(runID)
		return nil
	}
}

func (m Model) copyCmd(text string) tea.Cmd {
	clip := m.clipboard
	return func() tea.Msg {
		return copyResultMsg{err: clip.Copy(text)}
	}
}

// fallbackTheme renders with terminal default colors.
type fallbackTheme struct{}

func (fallbackTheme) Name() string           { return "default" }
func (fallbackTheme) Styles() triage.Styles  { return triage.Styles{} }
func (fallbackTheme) Palette() triage.Palette { return triage.Palette{} }
