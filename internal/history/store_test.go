package history

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

var base = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func entry(session, topic string, typ EntryType, content string, n int, offset time.Duration) Entry {
	return Entry{
		SessionID:      session,
		Topic:          topic,
		Timestamp:      base.Add(offset),
		Type:           typ,
		Content:        content,
		QuestionNumber: n,
	}
}

func intPtr(n int) *int { return &n }

func TestStore_EmptyLog(t *testing.T) {
	s := openTestStore(t)

	entries, err := s.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, entries)

	groups, err := s.GroupBySession()
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestStore_AppendPreservesOrder(t *testing.T) {
	s := openTestStore(t)

	s.Append(entry("s1", "python", TypeInterviewer, "Hi. Explain GIL", 1, 0))
	s.Append(
		entry("s1", "python", TypeCandidate, "It is a lock", 1, time.Second),
		entry("s1", "python", TypeFeedback, "Good", 1, 2*time.Second),
	)

	entries, err := s.ReadAll()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, TypeInterviewer, entries[0].Type)
	assert.Equal(t, TypeCandidate, entries[1].Type)
	assert.Equal(t, TypeFeedback, entries[2].Type)
	assert.Equal(t, "It is a lock", entries[1].Content)
	assert.True(t, entries[0].Timestamp.Equal(base))
}

func TestStore_DuplicatesAreKept(t *testing.T) {
	s := openTestStore(t)

	e := entry("s1", "go", TypeCandidate, "same answer", 1, 0)
	s.Append(e)
	s.Append(e)

	entries, err := s.ReadAll()
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestStore_FinalFeedbackRoundTrip(t *testing.T) {
	s := openTestStore(t)

	s.Append(Entry{SessionID: "s1", Topic: "go", Timestamp: base, Type: TypeFinalFeedback, Content: "Good job", QuestionsAsked: intPtr(2)})

	entries, err := s.ReadAll()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].QuestionsAsked)
	assert.Equal(t, 2, *entries[0].QuestionsAsked)
	assert.Equal(t, 0, entries[0].QuestionNumber)
}

func TestStore_GroupBySession(t *testing.T) {
	s := openTestStore(t)

	s.Append(
		entry("s1", "python", TypeInterviewer, "Q1", 1, 0),
		entry("s2", "go", TypeInterviewer, "Q1", 1, time.Minute),
		entry("s1", "python", TypeCandidate, "A1", 1, 2*time.Minute),
		entry("s1", "python", TypeFeedback, "F1", 1, 3*time.Minute),
		entry("s1", "python", TypeInterviewer, "Q2", 2, 4*time.Minute),
		// duplicated question number counts once
		entry("s1", "python", TypeInterviewer, "Q2 again", 2, 5*time.Minute),
		Entry{SessionID: "s1", Topic: "python", Timestamp: base.Add(6 * time.Minute), Type: TypeFinalFeedback, Content: "Done", QuestionsAsked: intPtr(2)},
	)

	groups, err := s.GroupBySession()
	require.NoError(t, err)
	require.Len(t, groups, 2)

	s1 := groups["s1"]
	assert.Equal(t, "python", s1.Topic)
	assert.True(t, s1.StartedAt.Equal(base))
	assert.Len(t, s1.Entries, 6)
	assert.Equal(t, 2, s1.QuestionsCount)
	assert.Equal(t, 1, s1.Answered)
	assert.Equal(t, 1, s1.Feedback)
	assert.True(t, s1.Completed)

	s2 := groups["s2"]
	assert.Equal(t, 1, s2.QuestionsCount)
	assert.False(t, s2.Completed)
}

func TestGroupBySession_MissingIdentity(t *testing.T) {
	groups := GroupBySession([]Entry{{Type: TypeInterviewer, Content: "orphan", QuestionNumber: 1, Timestamp: base}})

	require.Contains(t, groups, UnknownSession)
	assert.Equal(t, UnknownTopic, groups[UnknownSession].Topic)
}

func TestSortedSessions_NewestFirst(t *testing.T) {
	groups := GroupBySession([]Entry{
		entry("old", "go", TypeInterviewer, "Q", 1, 0),
		entry("new", "go", TypeInterviewer, "Q", 1, time.Hour),
	})

	sessions := SortedSessions(groups)
	require.Len(t, sessions, 2)
	assert.Equal(t, "new", sessions[0].SessionID)
	assert.Equal(t, "old", sessions[1].SessionID)
}

func TestStore_ClearAll(t *testing.T) {
	s := openTestStore(t)
	s.Append(entry("s1", "go", TypeInterviewer, "Q1", 1, 0))

	require.NoError(t, s.ClearAll())

	groups, err := s.GroupBySession()
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestStore_DeleteSession(t *testing.T) {
	s := openTestStore(t)
	s.Append(
		entry("s1", "go", TypeInterviewer, "Q1", 1, 0),
		entry("s2", "sql", TypeInterviewer, "Q1", 1, time.Second),
		entry("s1", "go", TypeCandidate, "A1", 1, 2*time.Second),
	)

	require.NoError(t, s.DeleteSession("s1"))

	entries, err := s.ReadAll()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "s2", entries[0].SessionID)
}

func TestStore_SubscribersNotifiedOnEveryMutation(t *testing.T) {
	s := openTestStore(t)

	first, unsubscribeFirst := s.Subscribe()
	second, unsubscribeSecond := s.Subscribe()
	defer unsubscribeSecond()

	s.Append(entry("s1", "go", TypeInterviewer, "Q1", 1, 0))
	assertSignalled(t, first)
	assertSignalled(t, second)

	require.NoError(t, s.DeleteSession("s1"))
	assertSignalled(t, first)
	assertSignalled(t, second)

	unsubscribeFirst()
	unsubscribeFirst()

	require.NoError(t, s.ClearAll())
	assertSignalled(t, second)

	_, open := <-first
	assert.False(t, open, "unsubscribed channel must be closed")
}

func TestStore_NotificationsCoalesce(t *testing.T) {
	s := openTestStore(t)
	ch, unsubscribe := s.Subscribe()
	defer unsubscribe()

	for i := 0; i < 5; i++ {
		s.Append(entry("s1", "go", TypeCandidate, "A", 1, 0))
	}

	assertSignalled(t, ch)
	select {
	case <-ch:
		t.Fatal("expected a single coalesced signal")
	default:
	}
}

func TestStore_WatchSeesOtherConnections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	reader, err := Open(path)
	require.NoError(t, err)
	defer reader.Close()

	writer, err := Open(path)
	require.NoError(t, err)
	defer writer.Close()

	ch, unsubscribe := reader.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- reader.Watch(ctx, 10*time.Millisecond) }()

	// Give Watch a moment to record the starting version
	time.Sleep(30 * time.Millisecond)
	writer.Append(entry("s9", "go", TypeInterviewer, "Q1", 1, 0))

	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not report the external write")
	}

	entries, err := reader.ReadAll()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "s9", entries[0].SessionID)

	cancel()
	assert.NoError(t, <-done)
}

func assertSignalled(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case _, ok := <-ch:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("expected change notification")
	}
}

func TestStore_PathWithURIMetacharacters(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "odd?dir#1")
	path := filepath.Join(dir, "history.db")

	s, err := Open(path)
	require.NoError(t, err)
	s.Append(entry("s1", "go", TypeInterviewer, "Q1", 1, 0))
	require.NoError(t, s.Close())

	_, err = os.Stat(path)
	require.NoError(t, err, "database must be created at the literal path")

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	entries, err := reopened.ReadAll()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Q1", entries[0].Content)
}

func TestFileDSN_EscapesPath(t *testing.T) {
	dsn, err := fileDSN("/tmp/a?b#c/history.db")
	require.NoError(t, err)
	assert.Equal(t, "file:///tmp/a%3Fb%23c/history.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dsn)
}
