package history

import (
	"sort"
	"time"
)

// EntryType is the kind of interview event.
type EntryType string

const (
	TypeInterviewer   EntryType = "interviewer"
	TypeCandidate     EntryType = "candidate"
	TypeFeedback      EntryType = "feedback"
	TypeFinalFeedback EntryType = "final_feedback"
)

// Entry is one immutable event in the history log.
type Entry struct {
	SessionID      string    `json:"sessionId"`
	Topic          string    `json:"topic"`
	Timestamp      time.Time `json:"timestamp"`
	Type           EntryType `json:"type"`
	Content        string    `json:"content"`
	QuestionNumber int       `json:"questionNumber,omitempty"`
	// Only set on final_feedback entries.
	QuestionsAsked *int `json:"questionsAsked,omitempty"`
}

const (
	UnknownSession = "unknown"
	UnknownTopic   = "Unknown"
)

// SessionGroup is every entry of one session plus derived counters.
type SessionGroup struct {
	SessionID      string    `json:"session_id"`
	Topic          string    `json:"topic"`
	StartedAt      time.Time `json:"started_at"`
	Entries        []Entry   `json:"entries"`
	QuestionsCount int       `json:"questions_count"`
	Answered       int       `json:"answered"`
	Feedback       int       `json:"feedback"`
	Completed      bool      `json:"completed"`
}

// GroupBySession partitions entries by session id, keeping log order inside
// each group.
func GroupBySession(entries []Entry) map[string]*SessionGroup {
	groups := make(map[string]*SessionGroup)
	questions := make(map[string]map[int]bool)

	for _, entry := range entries {
		id := entry.SessionID
		if id == "" {
			id = UnknownSession
		}

		group, ok := groups[id]
		if !ok {
			topic := entry.Topic
			if topic == "" {
				topic = UnknownTopic
			}
			group = &SessionGroup{SessionID: id, Topic: topic, StartedAt: entry.Timestamp}
			groups[id] = group
			questions[id] = make(map[int]bool)
		}

		if entry.Timestamp.Before(group.StartedAt) {
			group.StartedAt = entry.Timestamp
		}
		group.Entries = append(group.Entries, entry)

		switch entry.Type {
		case TypeInterviewer:
			questions[id][entry.QuestionNumber] = true
		case TypeCandidate:
			group.Answered++
		case TypeFeedback:
			group.Feedback++
		case TypeFinalFeedback:
			group.Completed = true
		}
	}

	for id, group := range groups {
		group.QuestionsCount = len(questions[id])
	}

	return groups
}

// SortedSessions orders groups newest first.
func SortedSessions(groups map[string]*SessionGroup) []*SessionGroup {
	sessions := make([]*SessionGroup, 0, len(groups))
	for _, group := range groups {
		sessions = append(sessions, group)
	}
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].StartedAt.Equal(sessions[j].StartedAt) {
			return sessions[i].SessionID < sessions[j].SessionID
		}
		return sessions[i].StartedAt.After(sessions[j].StartedAt)
	})
	return sessions
}
