package audio

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordingTimer_CountsWhileRecording(t *testing.T) {
	timer := NewRecordingTimer()
	timer.interval = 5 * time.Millisecond

	var last atomic.Int64
	timer.OnTick(func(seconds int) { last.Store(int64(seconds)) })

	timer.Observe(PhaseRecording)
	assert.Eventually(t, func() bool { return timer.Seconds() >= 3 }, time.Second, time.Millisecond)
	assert.GreaterOrEqual(t, last.Load(), int64(3))

	timer.Observe(PhaseStopping)
	assert.Equal(t, 0, timer.Seconds())

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, timer.Seconds(), "timer must not tick outside recording")
}

func TestRecordingTimer_RepeatedRecordingPhaseDoesNotReset(t *testing.T) {
	timer := NewRecordingTimer()
	timer.interval = 5 * time.Millisecond

	timer.Observe(PhaseRecording)
	assert.Eventually(t, func() bool { return timer.Seconds() >= 2 }, time.Second, time.Millisecond)

	timer.Observe(PhaseRecording)
	assert.GreaterOrEqual(t, timer.Seconds(), 2)

	timer.Observe(PhaseIdle)
}

func TestFormatSeconds(t *testing.T) {
	assert.Equal(t, "00:00", FormatSeconds(0))
	assert.Equal(t, "01:05", FormatSeconds(65))
}
