package tui

import "github.com/audiolibrelab/mockinterview/internal/history"

// Operation names carried by OperationDoneMsg.
const (
	OpStart  = "start"
	OpBegin  = "begin"
	OpFinish = "finish"
	OpEnd    = "end"
)

// OperationDoneMsg is sent when a service call returns.
type OperationDoneMsg struct {
	Op  string
	Err error
}

// HistoryChangedMsg is sent when the store reports a mutation.
type HistoryChangedMsg struct{}

// HistoryClosedMsg is sent when the change subscription ends.
type HistoryClosedMsg struct{}

// HistoryLoadedMsg carries a fresh read of the log.
type HistoryLoadedMsg struct {
	Entries []history.Entry
	Err     error
}

// TimerTickMsg carries the recording timer's elapsed seconds.
type TimerTickMsg struct {
	Seconds int
}

// ClearTransientErrorMsg clears the error banner if it is still the one
// identified by Seq.
type ClearTransientErrorMsg struct {
	Seq int
}
