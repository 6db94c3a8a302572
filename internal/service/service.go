package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/audiolibrelab/mockinterview/internal/audio"
	"github.com/audiolibrelab/mockinterview/internal/backend"
	"github.com/audiolibrelab/mockinterview/internal/errdefs"
	"github.com/audiolibrelab/mockinterview/internal/history"
)

// DefaultTopic is used when an interview is started without a topic.
const DefaultTopic = "general"

// Service represents the interview session interface used by the CLI and TUI
type Service interface {
	// Session operations
	StartInterview(ctx context.Context, topic string) error
	BeginAnswer(ctx context.Context) error
	FinishAnswer(ctx context.Context) error
	EndInterview(ctx context.Context) error

	// Information operations
	Session() Session
	Stats() Stats
	GetLastError() string

	// Close releases the microphone if a capture is still running
	Close() error
}

// Status represents the interview state
type Status string

const (
	StatusNotStarted     Status = "NOT_STARTED"
	StatusAwaitingAnswer Status = "AWAITING_ANSWER"
	StatusRecording      Status = "RECORDING"
	StatusProcessing     Status = "PROCESSING"
	StatusEnded          Status = "ENDED"
)

// Session is a snapshot of the current interview
type Session struct {
	SessionID      string `json:"session_id"`
	Topic          string `json:"topic"`
	QuestionID     string `json:"question_id"`
	QuestionNumber int    `json:"question_number"`
	Question       string `json:"question"`
	Status         Status `json:"status"`
}

// Stats counts what happened in the current session
type Stats struct {
	Answered      int    `json:"answered"`
	Feedback      int    `json:"feedback"`
	FinalFeedback string `json:"final_feedback,omitempty"`
}

// Backend is the grading service as seen by the controller.
type Backend interface {
	StartSession(ctx context.Context, topic string) (*backend.Question, error)
	SubmitAnswer(ctx context.Context, a backend.Answer) (*backend.AnswerResult, error)
	EndSession(ctx context.Context, sessionID string) (*backend.Summary, error)
}

// History is the log the controller appends to.
type History interface {
	Append(entries ...history.Entry)
}

// InterviewService is the session controller: the only writer of Session.
type InterviewService struct {
	backend  Backend
	history  History
	recorder audio.Recorder
	now      func() time.Time

	mu      sync.Mutex
	session Session
	stats   Stats
	// set while a start, end or microphone acquisition is in flight
	busy bool
	// question being answered, captured when recording began
	answering     string
	lastTimestamp time.Time

	lastError      string
	lastErrorMutex sync.RWMutex
}

// New creates an interview service with no session.
func New(b Backend, h History, recorder audio.Recorder) *InterviewService {
	return &InterviewService{
		backend:  b,
		history:  h,
		recorder: recorder,
		now:      time.Now,
		session:  Session{Status: StatusNotStarted},
	}
}

// StartInterview begins a fresh session (NOT_STARTED/ENDED -> AWAITING_ANSWER)
func (s *InterviewService) StartInterview(ctx context.Context, topic string) error {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = DefaultTopic
	}
	slog.Debug("Service.StartInterview called", "topic", topic)
	s.clearLastError()

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return s.fail("start interview", fmt.Errorf("%w: another request is in progress", errdefs.ErrAlreadyActive))
	}
	if s.session.Status != StatusNotStarted && s.session.Status != StatusEnded {
		status := s.session.Status
		s.mu.Unlock()
		return s.fail("start interview", fmt.Errorf("%w: interview in progress (status %s)", errdefs.ErrAlreadyActive, status))
	}
	s.busy = true
	s.mu.Unlock()

	q, err := s.backend.StartSession(ctx, topic)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	if err != nil {
		return s.fail("start interview", err)
	}

	s.session = Session{
		SessionID:      q.SessionID,
		Topic:          topic,
		QuestionID:     q.QuestionID,
		QuestionNumber: q.QuestionNumber,
		Question:       q.Question,
		Status:         StatusAwaitingAnswer,
	}
	s.stats = Stats{}
	s.answering = ""

	s.history.Append(s.entry(history.TypeInterviewer, q.Prompt(), q.QuestionNumber))

	slog.Info("Interview started", "session_id", q.SessionID, "topic", topic, "question_id", q.QuestionID)
	return nil
}

// BeginAnswer acquires the microphone (AWAITING_ANSWER -> RECORDING)
func (s *InterviewService) BeginAnswer(ctx context.Context) error {
	slog.Debug("Service.BeginAnswer called")
	s.clearLastError()

	s.mu.Lock()
	if err := s.requireAwaitingAnswer("record an answer"); err != nil {
		s.mu.Unlock()
		return s.fail("begin answer", err)
	}
	s.busy = true
	questionID := s.session.QuestionID
	s.mu.Unlock()

	err := s.recorder.Start(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	if err != nil {
		return s.fail("begin answer", err)
	}

	s.answering = questionID
	s.session.Status = StatusRecording
	slog.Debug("Answer recording started", "session_id", s.session.SessionID, "question_id", questionID)
	return nil
}

// FinishAnswer stops the capture and submits it (RECORDING -> PROCESSING ->
// AWAITING_ANSWER). Any failure returns to AWAITING_ANSWER with nothing logged.
func (s *InterviewService) FinishAnswer(ctx context.Context) error {
	slog.Debug("Service.FinishAnswer called")
	s.clearLastError()

	s.mu.Lock()
	if s.session.Status != StatusRecording {
		status := s.session.Status
		s.mu.Unlock()
		return s.fail("finish answer", fmt.Errorf("%w: not recording (status %s)", errdefs.ErrNotActive, status))
	}
	s.session.Status = StatusProcessing
	answer := backend.Answer{
		SessionID:  s.session.SessionID,
		QuestionID: s.answering,
	}
	questionNumber := s.session.QuestionNumber
	s.mu.Unlock()

	recording, err := s.recorder.Stop(ctx)
	if err != nil {
		return s.revert("finish answer", err)
	}
	if recording.Size() == 0 {
		return s.revert("finish answer", fmt.Errorf("%w: no audio data recorded", errdefs.ErrValidation))
	}

	answer.Audio = recording.Data
	answer.Filename = recording.Filename()
	answer.MimeType = recording.Encoding.MimeType

	slog.Info("Submitting answer",
		"session_id", answer.SessionID,
		"question_id", answer.QuestionID,
		"encoding", recording.Encoding.Name,
		"bytes", recording.Size(),
		"duration", recording.Duration.Round(time.Millisecond))

	result, err := s.backend.SubmitAnswer(ctx, answer)
	if err != nil {
		return s.revert("finish answer", err)
	}

	if result.QuestionNumber != questionNumber+1 {
		slog.Warn("Backend skipped question numbers", "previous", questionNumber, "next", result.QuestionNumber)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.history.Append(
		s.entry(history.TypeCandidate, result.Transcript, questionNumber),
		s.entry(history.TypeFeedback, result.Feedback, questionNumber),
		s.entry(history.TypeInterviewer, result.NextQuestion, result.QuestionNumber),
	)

	s.session.QuestionID = result.QuestionID
	s.session.QuestionNumber = result.QuestionNumber
	s.session.Question = result.NextQuestion
	s.session.Status = StatusAwaitingAnswer
	s.answering = ""
	s.stats.Answered++
	s.stats.Feedback++

	slog.Info("Answer graded", "session_id", answer.SessionID, "next_question_id", result.QuestionID, "question_number", result.QuestionNumber)
	return nil
}

// EndInterview requests the final feedback (AWAITING_ANSWER -> ENDED)
func (s *InterviewService) EndInterview(ctx context.Context) error {
	slog.Debug("Service.EndInterview called")
	s.clearLastError()

	s.mu.Lock()
	if err := s.requireAwaitingAnswer("end the interview"); err != nil {
		s.mu.Unlock()
		return s.fail("end interview", err)
	}
	s.busy = true
	sessionID := s.session.SessionID
	s.mu.Unlock()

	summary, err := s.backend.EndSession(ctx, sessionID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	if err != nil {
		return s.fail("end interview", err)
	}

	questionsAsked := summary.QuestionsAsked
	final := s.entry(history.TypeFinalFeedback, summary.FinalFeedback, 0)
	final.QuestionsAsked = &questionsAsked
	s.history.Append(final)

	s.session.Status = StatusEnded
	s.stats.FinalFeedback = summary.FinalFeedback

	slog.Info("Interview ended", "session_id", sessionID, "questions_asked", questionsAsked)
	return nil
}

// Session returns a snapshot of the current session
func (s *InterviewService) Session() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// Stats returns the counters of the current session
func (s *InterviewService) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Close force-releases the recorder. The session itself needs no cleanup.
func (s *InterviewService) Close() error {
	return s.recorder.Close()
}

// requireAwaitingAnswer must be called with mu held.
func (s *InterviewService) requireAwaitingAnswer(action string) error {
	switch {
	case s.busy:
		return fmt.Errorf("%w: cannot %s while another request is in progress", errdefs.ErrAlreadyActive, action)
	case s.session.Status == StatusRecording || s.session.Status == StatusProcessing:
		return fmt.Errorf("%w: cannot %s while an answer is in progress", errdefs.ErrAlreadyActive, action)
	case s.session.Status != StatusAwaitingAnswer:
		return fmt.Errorf("%w: no interview in progress", errdefs.ErrNotActive)
	}
	return nil
}

// revert returns a failed answer to AWAITING_ANSWER.
func (s *InterviewService) revert(op string, err error) error {
	s.mu.Lock()
	s.session.Status = StatusAwaitingAnswer
	s.answering = ""
	s.mu.Unlock()
	return s.fail(op, err)
}

// entry stamps a new log entry for the current session; mu must be held.
func (s *InterviewService) entry(typ history.EntryType, content string, questionNumber int) history.Entry {
	ts := s.now()
	if !ts.After(s.lastTimestamp) {
		ts = s.lastTimestamp.Add(time.Millisecond)
	}
	s.lastTimestamp = ts

	return history.Entry{
		SessionID:      s.session.SessionID,
		Topic:          s.session.Topic,
		Timestamp:      ts,
		Type:           typ,
		Content:        content,
		QuestionNumber: questionNumber,
	}
}

func (s *InterviewService) fail(op string, err error) error {
	slog.Error("Service operation failed", "operation", op, "error", err)
	s.setLastError(errdefs.Message(err))
	return err
}

// Error tracking

func (s *InterviewService) setLastError(msg string) {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = msg
}

func (s *InterviewService) clearLastError() {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = ""
}

// GetLastError returns the message of the most recent failure, if any
func (s *InterviewService) GetLastError() string {
	s.lastErrorMutex.RLock()
	defer s.lastErrorMutex.RUnlock()
	return s.lastError
}
