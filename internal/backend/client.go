// Package backend talks to the grading service over HTTP.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/audiolibrelab/mockinterview/internal/config"
	"github.com/audiolibrelab/mockinterview/internal/errdefs"
)

// Client issues exactly one attempt per call; failed requests are never retried.
type Client struct {
	http     *resty.Client
	validate *validator.Validate
}

// New creates a client for the backend described by cfg.
func New(cfg config.BackendConfig) *Client {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.URL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(0).
		OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			req.SetHeader("X-Request-ID", uuid.NewString())
			return nil
		})

	return &Client{
		http:     httpClient,
		validate: validator.New(),
	}
}

// StartSession asks for the first question of a new session on topic.
func (c *Client) StartSession(ctx context.Context, topic string) (*Question, error) {
	slog.Debug("Requesting first question", "topic", topic)

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("topic", topic).
		Get("/question/")

	var q Question
	if err := c.decode("fetch question", resp, err, &q); err != nil {
		return nil, err
	}
	if q.Greeting == "" {
		q.Greeting = DefaultGreeting
	}

	slog.Debug("First question received", "session_id", q.SessionID, "question_id", q.QuestionID)
	return &q, nil
}

// SubmitAnswer uploads the recorded answer as multipart form data.
func (c *Client) SubmitAnswer(ctx context.Context, a Answer) (*AnswerResult, error) {
	if len(a.Audio) == 0 {
		return nil, fmt.Errorf("%w: no audio data recorded", errdefs.ErrValidation)
	}
	mimeType := a.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	slog.Debug("Submitting answer",
		"session_id", a.SessionID,
		"question_id", a.QuestionID,
		"filename", a.Filename,
		"bytes", len(a.Audio))

	resp, err := c.http.R().
		SetContext(ctx).
		SetMultipartField("audio", a.Filename, mimeType, bytes.NewReader(a.Audio)).
		SetMultipartFormData(map[string]string{
			"question_id": a.QuestionID,
			"session_id":  a.SessionID,
		}).
		Post("/answer/")

	var result AnswerResult
	if err := c.decode("submit answer", resp, err, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// EndSession closes the session and returns the final feedback.
func (c *Client) EndSession(ctx context.Context, sessionID string) (*Summary, error) {
	slog.Debug("Ending session", "session_id", sessionID)

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"session_id": sessionID}).
		Post("/end/")

	var summary Summary
	if err := c.decode("end session", resp, err, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// decode maps a response onto out, classifying failures as network, server
// or validation errors.
func (c *Client) decode(op string, resp *resty.Response, reqErr error, out any) error {
	if reqErr != nil {
		slog.Error("Backend request failed", "operation", op, "error", reqErr)
		return fmt.Errorf("%s: %w: %v", op, errdefs.ErrNetwork, reqErr)
	}

	var body errorBody
	// The error field is optional and the body may not be JSON at all.
	_ = json.Unmarshal(resp.Body(), &body)

	if !resp.IsSuccess() {
		detail := body.Error
		if detail == "" {
			detail = strings.TrimSpace(resp.Status())
		}
		slog.Error("Backend returned failure status", "operation", op, "status_code", resp.StatusCode(), "error", detail)
		return fmt.Errorf("%s: %w: status %d: %s", op, errdefs.ErrNetwork, resp.StatusCode(), detail)
	}

	if body.Error != "" {
		slog.Error("Backend reported error", "operation", op, "error", body.Error)
		return fmt.Errorf("%s: %w: %s", op, errdefs.ErrServer, body.Error)
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("%s: %w: malformed response: %v", op, errdefs.ErrValidation, err)
	}
	if err := c.validate.Struct(out); err != nil {
		return fmt.Errorf("%s: %w: incomplete response: %v", op, errdefs.ErrValidation, err)
	}

	return nil
}
