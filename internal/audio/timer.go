package audio

import (
	"fmt"
	"sync"
	"time"
)

// RecordingTimer counts whole seconds while a recorder is in PhaseRecording.
// Register Observe with Recorder.OnPhaseChange.
type RecordingTimer struct {
	interval time.Duration

	mu      sync.Mutex
	seconds int
	stop    chan struct{}
	onTick  func(int)
}

// NewRecordingTimer creates a timer that ticks once per second.
func NewRecordingTimer() *RecordingTimer {
	return &RecordingTimer{interval: time.Second}
}

// OnTick sets a callback receiving the count after every change, including resets.
func (t *RecordingTimer) OnTick(fn func(seconds int)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onTick = fn
}

// Observe starts counting from zero on PhaseRecording and resets on any other phase.
func (t *RecordingTimer) Observe(p Phase) {
	t.mu.Lock()

	if p == PhaseRecording {
		if t.stop != nil {
			t.mu.Unlock()
			return
		}
		t.seconds = 0
		t.stop = make(chan struct{})
		go t.run(t.stop)
		cb := t.onTick
		t.mu.Unlock()
		if cb != nil {
			cb(0)
		}
		return
	}

	wasRunning := t.stop != nil
	if wasRunning {
		close(t.stop)
		t.stop = nil
	}
	t.seconds = 0
	cb := t.onTick
	t.mu.Unlock()

	if wasRunning && cb != nil {
		cb(0)
	}
}

func (t *RecordingTimer) run(stop <-chan struct{}) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			t.mu.Lock()
			// A stale tick can race with a reset
			select {
			case <-stop:
				t.mu.Unlock()
				return
			default:
			}
			t.seconds++
			seconds := t.seconds
			cb := t.onTick
			t.mu.Unlock()

			if cb != nil {
				cb(seconds)
			}
		}
	}
}

// Seconds returns the elapsed whole seconds of the current recording.
func (t *RecordingTimer) Seconds() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seconds
}

// FormatSeconds renders a count as MM:SS.
func FormatSeconds(seconds int) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
