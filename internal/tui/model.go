// Package tui is the interactive interview screen. Every service call runs as
// a tea.Cmd so the bubbletea loop is the only place session state is read.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/audiolibrelab/mockinterview/internal/audio"
	"github.com/audiolibrelab/mockinterview/internal/errdefs"
	"github.com/audiolibrelab/mockinterview/internal/history"
	"github.com/audiolibrelab/mockinterview/internal/service"
	"github.com/audiolibrelab/mockinterview/internal/ui"
)

const transientErrorTimeout = 5 * time.Second

// HistoryReader is the read side of the history store.
type HistoryReader interface {
	ReadAll() ([]history.Entry, error)
	Subscribe() (<-chan struct{}, func())
}

// Options configure a Model.
type Options struct {
	Service service.Service
	History HistoryReader
	Timer   *audio.RecordingTimer
	Topic   string
}

// Model is the root bubbletea model for the interview screen.
type Model struct {
	svc   service.Service
	topic string

	// Session snapshot, refreshed after every operation
	session service.Session
	busy    bool

	// History
	history     HistoryReader
	changes     <-chan struct{}
	unsubscribe func()
	entries     []history.Entry

	// Timer
	ticks   chan int
	seconds int

	// UI state
	width      int
	height     int
	statusText string

	// Errors
	errorMessage   string
	errorTransient bool
	errorSeq       int
}

// New creates the model and subscribes to history changes and timer ticks.
func New(opts Options) Model {
	m := Model{
		svc:        opts.Service,
		topic:      opts.Topic,
		history:    opts.History,
		session:    opts.Service.Session(),
		ticks:      make(chan int, 1),
		statusText: "Connecting to interviewer...",
		// Init starts the interview
		busy: true,
	}

	if m.history != nil {
		m.changes, m.unsubscribe = m.history.Subscribe()
	}

	if opts.Timer != nil {
		ticks := m.ticks
		opts.Timer.OnTick(func(seconds int) {
			sendLatest(ticks, seconds)
		})
	}

	return m
}

// Init starts the interview and begins listening for changes.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		serviceCmd(OpStart, func(ctx context.Context) error { return m.svc.StartInterview(ctx, m.topic) }),
		loadHistoryCmd(m.history),
		waitForChangeCmd(m.changes),
		waitForTickCmd(m.ticks),
	)
}

// serviceCmd runs one session operation off the event loop.
func serviceCmd(op string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return OperationDoneMsg{Op: op, Err: fn(context.Background())}
	}
}

func loadHistoryCmd(h HistoryReader) tea.Cmd {
	if h == nil {
		return nil
	}
	return func() tea.Msg {
		entries, err := h.ReadAll()
		return HistoryLoadedMsg{Entries: entries, Err: err}
	}
}

func waitForChangeCmd(changes <-chan struct{}) tea.Cmd {
	if changes == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-changes; !ok {
			return HistoryClosedMsg{}
		}
		return HistoryChangedMsg{}
	}
}

func waitForTickCmd(ticks <-chan int) tea.Cmd {
	return func() tea.Msg {
		return TimerTickMsg{Seconds: <-ticks}
	}
}

// clearTransientErrorCmd fires after a delay to clear transient errors.
func clearTransientErrorCmd(seq int) tea.Cmd {
	return tea.Tick(transientErrorTimeout, func(time.Time) tea.Msg {
		return ClearTransientErrorMsg{Seq: seq}
	})
}

// sendLatest replaces any unread value so the screen only sees the newest count.
func sendLatest(ch chan int, v int) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case OperationDoneMsg:
		m.busy = false
		m.session = m.svc.Session()
		m.statusText = statusText(m.session.Status)
		if msg.Err != nil {
			return m, m.showError(msg.Err)
		}
		if msg.Op == OpStart {
			// A new session must not inherit the previous banner.
			m.errorMessage = ""
			m.errorTransient = false
		}
		return m, nil

	case HistoryChangedMsg:
		return m, tea.Batch(loadHistoryCmd(m.history), waitForChangeCmd(m.changes))

	case HistoryClosedMsg:
		m.changes = nil
		return m, nil

	case HistoryLoadedMsg:
		if msg.Err != nil {
			return m, m.showError(fmt.Errorf("reading history: %w", msg.Err))
		}
		m.entries = msg.Entries
		return m, nil

	case TimerTickMsg:
		m.seconds = msg.Seconds
		return m, waitForTickCmd(m.ticks)

	case ClearTransientErrorMsg:
		if m.errorTransient && msg.Seq == m.errorSeq {
			m.errorMessage = ""
			m.errorTransient = false
		}
		return m, nil
	}

	return m, nil
}

// showError puts err in the banner and schedules its removal.
func (m *Model) showError(err error) tea.Cmd {
	m.errorSeq++
	m.errorMessage = errdefs.Message(err)
	m.errorTransient = true
	return clearTransientErrorCmd(m.errorSeq)
}

// handleKey processes key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyQuit, KeyQuitUpper, KeyCtrlC:
		if m.unsubscribe != nil {
			m.unsubscribe()
			m.unsubscribe = nil
		}
		m.svc.Close()
		return m, tea.Quit

	case KeySpace:
		if m.busy {
			return m, nil
		}
		switch m.session.Status {
		case service.StatusAwaitingAnswer:
			m.busy = true
			m.statusText = "Opening microphone..."
			return m, serviceCmd(OpBegin, m.svc.BeginAnswer)
		case service.StatusRecording:
			m.busy = true
			m.session.Status = service.StatusProcessing
			m.statusText = statusText(service.StatusProcessing)
			return m, serviceCmd(OpFinish, m.svc.FinishAnswer)
		}
		return m, nil

	case KeyEnd:
		if m.busy || m.session.Status != service.StatusAwaitingAnswer {
			return m, nil
		}
		m.busy = true
		m.statusText = "Requesting final feedback..."
		return m, serviceCmd(OpEnd, m.svc.EndInterview)

	case KeyNew:
		if m.busy || (m.session.Status != service.StatusEnded && m.session.Status != service.StatusNotStarted) {
			return m, nil
		}
		m.busy = true
		m.statusText = "Connecting to interviewer..."
		topic := m.topic
		return m, serviceCmd(OpStart, func(ctx context.Context) error { return m.svc.StartInterview(ctx, topic) })
	}

	return m, nil
}

func statusText(status service.Status) string {
	switch status {
	case service.StatusAwaitingAnswer:
		return "Ready for your answer"
	case service.StatusRecording:
		return "Recording"
	case service.StatusProcessing:
		return "Grading your answer..."
	case service.StatusEnded:
		return "Interview complete"
	default:
		return "Not started"
	}
}

// sessionEntries returns the log entries of the current session.
func (m Model) sessionEntries() []history.Entry {
	if m.session.SessionID == "" {
		return nil
	}
	var result []history.Entry
	for _, e := range m.entries {
		if e.SessionID == m.session.SessionID {
			result = append(result, e)
		}
	}
	return result
}

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var sections []string

	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderStatusBar())
	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))
	sections = append(sections, m.renderTranscript(m.transcriptHeight()))
	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))

	if m.errorMessage != "" {
		sections = append(sections, m.renderErrorBar())
	}

	sections = append(sections, m.renderFooter())

	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	title := ui.TitleStyle.Render("MOCK INTERVIEW")

	topic := m.session.Topic
	if topic == "" {
		topic = m.topic
	}
	if topic == "" {
		return title
	}
	return title + ui.DimStyle.Render(" · "+topic)
}

func (m Model) renderStatusBar() string {
	var dot string
	switch m.session.Status {
	case service.StatusRecording:
		dot = ui.RecordingDotStyle.Render("● REC") + "  " + ui.TimerStyle.Render(audio.FormatSeconds(m.seconds))
	case service.StatusProcessing:
		dot = ui.ProcessingStyle.Render("⟳ GRADING")
	default:
		dot = ui.IdleDotStyle.Render("○ IDLE")
	}

	status := "  " + ui.StatusStyle.Render(m.statusText)

	var question string
	if m.session.QuestionNumber > 0 && m.session.Status != service.StatusEnded {
		question = "  " + ui.DimStyle.Render(fmt.Sprintf("Question %d", m.session.QuestionNumber))
	}

	return dot + status + question
}

func (m Model) transcriptHeight() int {
	// header, status, two dividers, footer, optional error bar
	chrome := 5
	if m.errorMessage != "" {
		chrome++
	}
	return max(1, m.height-chrome)
}

// renderTranscript shows the tail of the session that fits in height lines.
func (m Model) renderTranscript(height int) string {
	entries := m.sessionEntries()
	if len(entries) == 0 {
		return ui.DimStyle.Render("Waiting for the first question...")
	}

	var lines []string
	for i, e := range entries {
		if i > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, renderEntry(e, m.width)...)
	}

	if len(lines) > height {
		lines = lines[len(lines)-height:]
	}
	return strings.Join(lines, "\n")
}

func renderEntry(e history.Entry, width int) []string {
	var label string
	switch e.Type {
	case history.TypeInterviewer:
		label = ui.InterviewerLabelStyle.Render(fmt.Sprintf("Interviewer (Q%d)", e.QuestionNumber))
	case history.TypeCandidate:
		label = ui.CandidateLabelStyle.Render("You")
	case history.TypeFeedback:
		label = ui.FeedbackLabelStyle.Render("Feedback")
	case history.TypeFinalFeedback:
		text := "Final feedback"
		if e.QuestionsAsked != nil {
			text = fmt.Sprintf("Final feedback (%d questions)", *e.QuestionsAsked)
		}
		label = ui.FinalFeedbackLabelStyle.Render(text)
	default:
		label = ui.DimStyle.Render(string(e.Type))
	}

	header := ui.TimestampStyle.Render(e.Timestamp.Local().Format("15:04:05")) + " " + label
	lines := []string{header}
	for _, line := range wrapText(e.Content, width-2) {
		lines = append(lines, "  "+line)
	}
	return lines
}

func (m Model) renderErrorBar() string {
	return ui.ErrorStyle.Render("Error: ") + ui.ErrorTextStyle.Render(m.errorMessage)
}

func (m Model) renderFooter() string {
	var parts []string

	switch m.session.Status {
	case service.StatusAwaitingAnswer:
		parts = append(parts, ui.FooterKeyStyle.Render("Space")+ui.FooterDescStyle.Render(" Answer"))
		parts = append(parts, ui.FooterKeyStyle.Render("e")+ui.FooterDescStyle.Render(" End interview"))
	case service.StatusRecording:
		parts = append(parts, ui.FooterKeyStyle.Render("Space")+ui.FooterDescStyle.Render(" Submit answer"))
	case service.StatusEnded, service.StatusNotStarted:
		parts = append(parts, ui.FooterKeyStyle.Render("n")+ui.FooterDescStyle.Render(" New interview"))
	}

	parts = append(parts, ui.FooterKeyStyle.Render("q")+ui.FooterDescStyle.Render(" Quit"))

	return strings.Join(parts, "  ")
}

// Helpers

func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}

	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		var current string
		for _, word := range strings.Fields(paragraph) {
			switch {
			case current == "":
				current = word
			case lipgloss.Width(current)+1+lipgloss.Width(word) > width:
				lines = append(lines, current)
				current = word
			default:
				current += " " + word
			}
		}
		lines = append(lines, current)
	}
	return lines
}
