package backend

import "strings"

// DefaultGreeting is used when the backend sends no greeting.
const DefaultGreeting = "Hi, I am your interviewer."

// Question is the response to starting a session.
type Question struct {
	SessionID      string `json:"session_id" validate:"required"`
	QuestionID     string `json:"question_id" validate:"required"`
	Greeting       string `json:"greeting,omitempty"`
	Question       string `json:"question" validate:"required"`
	QuestionNumber int    `json:"question_number" validate:"gte=1"`
}

// Prompt is the greeting followed by the question, as spoken by the interviewer.
func (q *Question) Prompt() string {
	return strings.TrimSpace(q.Greeting + " " + q.Question)
}

// Answer is one recorded answer to submit.
type Answer struct {
	SessionID  string
	QuestionID string
	Audio      []byte
	Filename   string
	MimeType   string
}

// AnswerResult is the graded answer plus the next question.
type AnswerResult struct {
	Transcript     string `json:"transcript" validate:"required"`
	Feedback       string `json:"feedback"`
	NextQuestion   string `json:"next_question" validate:"required"`
	QuestionID     string `json:"question_id" validate:"required"`
	QuestionNumber int    `json:"question_number" validate:"gte=1"`
}

// Summary is the response to ending a session.
type Summary struct {
	FinalFeedback  string `json:"final_feedback" validate:"required"`
	QuestionsAsked int    `json:"questions_asked" validate:"gte=0"`
	Topic          string `json:"topic,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
}
