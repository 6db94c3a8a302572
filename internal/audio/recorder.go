package audio

import (
	"context"
	"fmt"
	"time"
)

// Phase is the lifecycle state of a capture.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAcquiring
	PhaseRecording
	PhaseStopping
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseAcquiring:
		return "ACQUIRING"
	case PhaseRecording:
		return "RECORDING"
	case PhaseStopping:
		return "STOPPING"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Constraints describe how the microphone is opened.
type Constraints struct {
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
	SampleRate       int
	Channels         int
	Bitrate          int
}

// DefaultConstraints are applied to every capture.
var DefaultConstraints = Constraints{
	EchoCancellation: true,
	NoiseSuppression: true,
	AutoGainControl:  true,
	SampleRate:       44100,
	Channels:         1,
	Bitrate:          128000,
}

// Recording is one finished answer: all chunks joined, tagged with the encoding.
type Recording struct {
	Data     []byte        `json:"-"`
	Encoding Encoding      `json:"encoding"`
	Duration time.Duration `json:"duration"`
	Chunks   int           `json:"chunks"`
}

// Size returns the number of encoded bytes.
func (r *Recording) Size() int {
	if r == nil {
		return 0
	}
	return len(r.Data)
}

// Filename is the upload name, e.g. "answer.webm".
func (r *Recording) Filename() string {
	return "answer." + r.Encoding.Extension
}

// Recorder owns the microphone for one recording at a time.
type Recorder interface {
	// Start acquires the device and begins buffering chunks.
	Start(ctx context.Context) error
	// Stop flushes, releases the device and returns the joined audio.
	Stop(ctx context.Context) (*Recording, error)

	Phase() Phase
	Encoding() Encoding

	// OnPhaseChange registers a listener called after every transition.
	OnPhaseChange(fn func(Phase))

	// Close force-releases the device if a capture is still running.
	Close() error
}
