package tui

import (
	"context"
	"fmt"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiolibrelab/mockinterview/internal/errdefs"
	"github.com/audiolibrelab/mockinterview/internal/history"
	"github.com/audiolibrelab/mockinterview/internal/service"
)

type fakeService struct {
	session service.Session
	calls   []string
	err     error
	closed  bool
}

func (s *fakeService) StartInterview(ctx context.Context, topic string) error {
	s.calls = append(s.calls, "start:"+topic)
	if s.err != nil {
		return s.err
	}
	s.session = service.Session{SessionID: "s1", Topic: topic, QuestionID: "q1", QuestionNumber: 1, Status: service.StatusAwaitingAnswer}
	return nil
}

func (s *fakeService) BeginAnswer(ctx context.Context) error {
	s.calls = append(s.calls, "begin")
	if s.err != nil {
		return s.err
	}
	s.session.Status = service.StatusRecording
	return nil
}

func (s *fakeService) FinishAnswer(ctx context.Context) error {
	s.calls = append(s.calls, "finish")
	s.session.Status = service.StatusAwaitingAnswer
	if s.err != nil {
		return s.err
	}
	s.session.QuestionNumber++
	return nil
}

func (s *fakeService) EndInterview(ctx context.Context) error {
	s.calls = append(s.calls, "end")
	if s.err != nil {
		return s.err
	}
	s.session.Status = service.StatusEnded
	return nil
}

func (s *fakeService) Session() service.Session { return s.session }
func (s *fakeService) Stats() service.Stats     { return service.Stats{} }
func (s *fakeService) GetLastError() string     { return "" }

func (s *fakeService) Close() error {
	s.closed = true
	return nil
}

type fakeHistory struct {
	entries      []history.Entry
	changes      chan struct{}
	unsubscribed bool
}

func (h *fakeHistory) ReadAll() ([]history.Entry, error) { return h.entries, nil }

func (h *fakeHistory) Subscribe() (<-chan struct{}, func()) {
	h.changes = make(chan struct{}, 1)
	return h.changes, func() { h.unsubscribed = true }
}

func newTestModel() (Model, *fakeService, *fakeHistory) {
	svc := &fakeService{session: service.Session{Status: service.StatusNotStarted}}
	h := &fakeHistory{}
	m := New(Options{Service: svc, History: h, Topic: "python"})
	m.width = 80
	m.height = 24
	return m, svc, h
}

// run executes cmd and feeds its message back into the model.
func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	require.NotNil(t, cmd)
	updated, _ := m.Update(cmd())
	return updated.(Model)
}

func press(m Model, key string) (Model, tea.Cmd) {
	var msg tea.KeyMsg
	if key == " " {
		msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	} else {
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	updated, cmd := m.Update(msg)
	return updated.(Model), cmd
}

func started(t *testing.T) (Model, *fakeService, *fakeHistory) {
	m, svc, h := newTestModel()
	m = run(t, m, serviceCmd(OpStart, func(ctx context.Context) error { return svc.StartInterview(ctx, "python") }))
	return m, svc, h
}

func TestNewModel(t *testing.T) {
	m, _, h := newTestModel()

	assert.True(t, m.busy)
	assert.NotNil(t, h.changes)
	assert.Equal(t, service.StatusNotStarted, m.session.Status)
	assert.NotNil(t, m.Init())
}

func TestStartCompletes(t *testing.T) {
	m, svc, _ := started(t)

	assert.False(t, m.busy)
	assert.Equal(t, service.StatusAwaitingAnswer, m.session.Status)
	assert.Equal(t, []string{"start:python"}, svc.calls)
	assert.Equal(t, "Ready for your answer", m.statusText)
}

func TestSpaceTogglesRecording(t *testing.T) {
	m, svc, _ := started(t)

	m, cmd := press(m, KeySpace)
	assert.True(t, m.busy)
	m = run(t, m, cmd)
	assert.Equal(t, service.StatusRecording, m.session.Status)
	assert.Contains(t, m.View(), "● REC")

	m, cmd = press(m, KeySpace)
	assert.Equal(t, service.StatusProcessing, m.session.Status)
	m = run(t, m, cmd)

	assert.Equal(t, service.StatusAwaitingAnswer, m.session.Status)
	assert.Equal(t, 2, m.session.QuestionNumber)
	assert.Equal(t, []string{"start:python", "begin", "finish"}, svc.calls)
}

func TestKeysIgnoredWhileBusy(t *testing.T) {
	m, svc, _ := started(t)

	m, _ = press(m, KeySpace)
	require.True(t, m.busy)

	_, cmd := press(m, KeySpace)
	assert.Nil(t, cmd)
	_, cmd = press(m, KeyEnd)
	assert.Nil(t, cmd)
	assert.Equal(t, []string{"start:python"}, svc.calls)
}

func TestEndOnlyWhileAwaitingAnswer(t *testing.T) {
	m, _, _ := started(t)

	m, cmd := press(m, KeySpace)
	m = run(t, m, cmd)
	require.Equal(t, service.StatusRecording, m.session.Status)

	_, cmd = press(m, KeyEnd)
	assert.Nil(t, cmd, "end must not be offered while recording")

	m, cmd = press(m, KeySpace)
	m = run(t, m, cmd)

	m, cmd = press(m, KeyEnd)
	m = run(t, m, cmd)
	assert.Equal(t, service.StatusEnded, m.session.Status)
	assert.Contains(t, m.View(), "New interview")
}

func TestNewInterviewAfterEnd(t *testing.T) {
	m, svc, _ := started(t)
	m, cmd := press(m, KeyEnd)
	m = run(t, m, cmd)

	m, cmd = press(m, KeyNew)
	m = run(t, m, cmd)

	assert.Equal(t, service.StatusAwaitingAnswer, m.session.Status)
	assert.Equal(t, []string{"start:python", "end", "start:python"}, svc.calls)
}

func TestOperationErrorShowsTransientBanner(t *testing.T) {
	m, svc, _ := started(t)
	svc.err = fmt.Errorf("%w: denied", errdefs.ErrPermission)

	m, cmd := press(m, KeySpace)
	updated, clearCmd := m.Update(cmd())
	m = updated.(Model)

	assert.Equal(t, "Please allow microphone access", m.errorMessage)
	assert.Equal(t, service.StatusAwaitingAnswer, m.session.Status)
	assert.NotNil(t, clearCmd)
	assert.Contains(t, m.View(), "Please allow microphone access")

	updated, _ = m.Update(ClearTransientErrorMsg{Seq: m.errorSeq})
	m = updated.(Model)
	assert.Empty(t, m.errorMessage)
}

func TestStaleClearKeepsNewerError(t *testing.T) {
	m, _, _ := started(t)

	updated, _ := m.Update(OperationDoneMsg{Op: OpBegin, Err: errdefs.ErrDeviceNotFound})
	m = updated.(Model)
	first := m.errorSeq
	updated, _ = m.Update(OperationDoneMsg{Op: OpFinish, Err: fmt.Errorf("%w: no audio data recorded", errdefs.ErrValidation)})
	m = updated.(Model)

	updated, _ = m.Update(ClearTransientErrorMsg{Seq: first})
	m = updated.(Model)
	assert.Equal(t, "no audio data recorded", m.errorMessage)
}

func TestHistoryShowsCurrentSessionOnly(t *testing.T) {
	m, _, h := started(t)
	now := time.Now()
	h.entries = []history.Entry{
		{SessionID: "old", Topic: "go", Timestamp: now.Add(-time.Hour), Type: history.TypeInterviewer, Content: "Old question", QuestionNumber: 1},
		{SessionID: "s1", Topic: "python", Timestamp: now, Type: history.TypeInterviewer, Content: "Explain GIL", QuestionNumber: 1},
	}

	updated, cmd := m.Update(HistoryChangedMsg{})
	m = updated.(Model)
	require.NotNil(t, cmd)
	m = run(t, m, loadHistoryCmd(h))

	view := m.View()
	assert.Contains(t, view, "Explain GIL")
	assert.Contains(t, view, "Interviewer (Q1)")
	assert.NotContains(t, view, "Old question")
}

func TestTimerTickShownWhileRecording(t *testing.T) {
	m, _, _ := started(t)
	m, cmd := press(m, KeySpace)
	m = run(t, m, cmd)

	updated, next := m.Update(TimerTickMsg{Seconds: 65})
	m = updated.(Model)
	assert.NotNil(t, next)
	assert.Contains(t, m.View(), "01:05")
}

func TestSendLatestKeepsNewestValue(t *testing.T) {
	ch := make(chan int, 1)
	sendLatest(ch, 1)
	sendLatest(ch, 2)
	assert.Equal(t, 2, <-ch)
}

func TestQuitReleasesResources(t *testing.T) {
	m, svc, h := started(t)

	_, cmd := press(m, KeyQuit)
	require.NotNil(t, cmd)
	assert.True(t, svc.closed)
	assert.True(t, h.unsubscribed)
}

func TestWrapText(t *testing.T) {
	lines := wrapText("the quick brown fox jumps", 10)
	assert.Equal(t, []string{"the quick", "brown fox", "jumps"}, lines)
}
