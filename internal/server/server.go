// Package server is a local stand-in for the grading backend. It speaks the
// same /question/, /answer/ and /end/ protocol with deterministic content so
// the client can be exercised without a transcription service.
package server

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const defaultGreeting = "Hi, I am your interviewer, let's start."

// maxAudioSize caps uploads at 32MB.
const maxAudioSize = 32 << 20

// Server is the mock grading backend.
type Server struct {
	port   string
	engine *gin.Engine

	mu       sync.Mutex
	sessions map[string]*interviewSession
}

type interviewSession struct {
	topic         string
	questionCount int
	answers       int
	startedAt     time.Time
}

// QuestionResponse is returned by GET /question/.
type QuestionResponse struct {
	SessionID      string `json:"session_id"`
	QuestionID     string `json:"question_id"`
	Greeting       string `json:"greeting"`
	Question       string `json:"question"`
	QuestionNumber int    `json:"question_number"`
}

// AnswerResponse is returned by POST /answer/.
type AnswerResponse struct {
	Transcript     string `json:"transcript"`
	Feedback       string `json:"feedback"`
	NextQuestion   string `json:"next_question"`
	QuestionID     string `json:"question_id"`
	QuestionNumber int    `json:"question_number"`
}

// EndRequest is the JSON body of POST /end/.
type EndRequest struct {
	SessionID string `json:"session_id"`
}

// EndResponse is returned by POST /end/.
type EndResponse struct {
	FinalFeedback  string `json:"final_feedback"`
	QuestionsAsked int    `json:"questions_asked"`
	Topic          string `json:"topic"`
}

// New creates a mock backend that will listen on port.
func New(port string) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		port:     port,
		sessions: make(map[string]*interviewSession),
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())
	engine.MaxMultipartMemory = maxAudioSize

	engine.GET("/healthz/", s.handleHealthz)

	api := engine.Group("/api")
	{
		api.GET("/question/", s.handleQuestion)
		api.POST("/answer/", s.handleAnswer)
		api.POST("/end/", s.handleEnd)
	}

	s.engine = engine
	return s
}

// Handler exposes the router, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until the listener fails.
func (s *Server) Start() error {
	localIP := getLocalIP()

	slog.Info("Starting mock interview backend",
		"port", s.port,
		"local_url", fmt.Sprintf("http://%s:%s/api", localIP, s.port),
		"localhost_url", fmt.Sprintf("http://localhost:%s/api", s.port))

	return http.ListenAndServe(":"+s.port, s.engine)
}

func (s *Server) handleHealthz(c *gin.Context) {
	s.mu.Lock()
	active := len(s.sessions)
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"status": "ok", "active_sessions": active})
}

// handleQuestion starts a session and returns its first question.
func (s *Server) handleQuestion(c *gin.Context) {
	topic := strings.TrimSpace(c.DefaultQuery("topic", "general"))
	if topic == "" {
		topic = "general"
	}

	sessionID := uuid.NewString()

	s.mu.Lock()
	s.sessions[sessionID] = &interviewSession{
		topic:         topic,
		questionCount: 1,
		startedAt:     time.Now(),
	}
	s.mu.Unlock()

	slog.Info("Mock interview session started", "session_id", sessionID, "topic", topic)

	c.JSON(http.StatusOK, QuestionResponse{
		SessionID:      sessionID,
		QuestionID:     questionID(sessionID, 1),
		Greeting:       defaultGreeting,
		Question:       questionFor(topic, 1),
		QuestionNumber: 1,
	})
}

// handleAnswer accepts the multipart answer and returns feedback plus the
// next question.
func (s *Server) handleAnswer(c *gin.Context) {
	fileHeader, err := c.FormFile("audio")
	if err != nil {
		s.sendErrorResponse(c, http.StatusBadRequest, "No audio file provided", "error", err)
		return
	}

	questionIDValue := c.PostForm("question_id")
	sessionID := c.PostForm("session_id")
	if questionIDValue == "" || sessionID == "" {
		s.sendErrorResponse(c, http.StatusBadRequest, "Missing session or question ID")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		s.sendErrorResponse(c, http.StatusBadRequest, "Could not read audio file", "error", err)
		return
	}
	size, err := io.Copy(io.Discard, file)
	file.Close()
	if err != nil {
		s.sendErrorResponse(c, http.StatusBadRequest, "Could not read audio file", "error", err)
		return
	}

	if size == 0 {
		s.sendErrorResponse(c, http.StatusBadRequest, "No clear speech detected. Please try speaking more clearly.", "session_id", sessionID)
		return
	}

	s.mu.Lock()
	session, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		s.sendErrorResponse(c, http.StatusBadRequest, "Interview session not found", "session_id", sessionID)
		return
	}
	session.answers++
	session.questionCount++
	next := session.questionCount
	topic := session.topic
	s.mu.Unlock()

	format := strings.TrimPrefix(filepath.Ext(fileHeader.Filename), ".")
	if format == "" {
		format = "unknown"
	}

	slog.Info("Mock answer received",
		"session_id", sessionID,
		"question_id", questionIDValue,
		"filename", fileHeader.Filename,
		"size", formatBytes(size))

	c.JSON(http.StatusOK, AnswerResponse{
		Transcript:     fmt.Sprintf("[%s answer, %s of audio]", format, formatBytes(size)),
		Feedback:       feedbackFor(size),
		NextQuestion:   questionFor(topic, next),
		QuestionID:     questionID(sessionID, next),
		QuestionNumber: next,
	})
}

// handleEnd summarizes and forgets a session.
func (s *Server) handleEnd(c *gin.Context) {
	var req EndRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SessionID == "" {
		s.sendErrorResponse(c, http.StatusBadRequest, "Missing session ID", "error", err)
		return
	}

	s.mu.Lock()
	session, ok := s.sessions[req.SessionID]
	if ok {
		delete(s.sessions, req.SessionID)
	}
	s.mu.Unlock()

	if !ok {
		s.sendErrorResponse(c, http.StatusBadRequest, "Interview session not found", "session_id", req.SessionID)
		return
	}

	slog.Info("Mock interview session ended",
		"session_id", req.SessionID,
		"questions", session.questionCount,
		"duration", time.Since(session.startedAt).Round(time.Second))

	c.JSON(http.StatusOK, EndResponse{
		FinalFeedback: fmt.Sprintf("You answered %d of %d %s questions. Keep answers structured: state the idea, give an example, then mention trade-offs.",
			session.answers, session.questionCount, session.topic),
		QuestionsAsked: session.questionCount,
		Topic:          session.topic,
	})
}

// sendErrorResponse logs the error and replies with {"error": msg}.
func (s *Server) sendErrorResponse(c *gin.Context, statusCode int, errorMsg string, logContext ...any) {
	logFields := []any{"error_message", errorMsg, "status_code", statusCode}
	logFields = append(logFields, logContext...)
	slog.Error("Sending error response to client", logFields...)

	c.AbortWithStatusJSON(statusCode, gin.H{"error": errorMsg})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("Mock backend request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"request_id", c.GetHeader("X-Request-ID"),
			"duration", time.Since(start))
	}
}

func questionID(sessionID string, n int) string {
	return fmt.Sprintf("%s_q%d", sessionID, n)
}

func feedbackFor(size int64) string {
	switch {
	case size < 16*1024:
		return "Thank you for your answer. It was quite short; try to expand with a concrete example."
	case size < 256*1024:
		return "Thank you for your answer. Good length; make sure you close with the key takeaway."
	default:
		return "Thank you for your answer. Very thorough; practise getting to the main point sooner."
	}
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func getLocalIP() string {
	// Dialing UDP sends nothing; it only selects the outbound interface
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "localhost"
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String()
}
