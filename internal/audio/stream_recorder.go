package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/audiolibrelab/mockinterview/internal/errdefs"
)

// Options tune a StreamRecorder.
type Options struct {
	Constraints   Constraints
	Encodings     []Encoding
	ChunkInterval time.Duration
	// StopTimeout bounds the wait for the producer's final flush.
	StopTimeout time.Duration
}

// StreamRecorder implements Recorder on top of any Device.
type StreamRecorder struct {
	device Device
	opts   Options

	mutex      sync.RWMutex
	phase      Phase
	encoding   Encoding
	current    *capture
	generation uint64
	listeners  []func(Phase)

	// fault is a device failure seen while recording, reported by the next Stop.
	fault error
}

// NewStreamRecorder creates an idle recorder for device.
func NewStreamRecorder(device Device, opts Options) *StreamRecorder {
	if opts.ChunkInterval <= 0 {
		opts.ChunkInterval = time.Second
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = 5 * time.Second
	}
	if len(opts.Encodings) == 0 {
		opts.Encodings = Preference
	}
	if opts.Constraints == (Constraints{}) {
		opts.Constraints = DefaultConstraints
	}

	return &StreamRecorder{
		device: device,
		opts:   opts,
		phase:  PhaseIdle,
	}
}

// Start transitions IDLE -> ACQUIRING -> RECORDING.
func (r *StreamRecorder) Start(ctx context.Context) error {
	r.mutex.Lock()
	if r.phase != PhaseIdle {
		phase := r.phase
		r.mutex.Unlock()
		return fmt.Errorf("%w: can only start capture from idle phase, current: %s", errdefs.ErrAlreadyActive, phase)
	}
	r.phase = PhaseAcquiring
	r.generation++
	r.fault = nil
	gen := r.generation
	r.mutex.Unlock()
	r.notify(PhaseAcquiring)

	enc := Negotiate(r.device, r.opts.Encodings)
	stream, err := r.device.Open(ctx, r.opts.Constraints, enc)

	r.mutex.Lock()
	if err != nil {
		if r.generation == gen {
			r.phase = PhaseIdle
		}
		r.mutex.Unlock()
		r.notify(PhaseIdle)
		slog.Error("Capture acquisition failed", "encoding", enc.Name, "error", err)
		return asCaptureError(err)
	}

	if r.phase != PhaseAcquiring || r.generation != gen {
		r.mutex.Unlock()
		stream.Close()
		return fmt.Errorf("%w: recorder closed during acquisition", errdefs.ErrCapture)
	}

	c := newCapture(stream, enc)
	r.current = c
	r.encoding = enc
	r.phase = PhaseRecording
	r.mutex.Unlock()

	go func() {
		c.readLoop()
		if err := c.readErr(); err != nil {
			r.handleFault(c, err)
		}
	}()
	go c.chunkLoop(r.opts.ChunkInterval)

	r.notify(PhaseRecording)
	slog.Info("Capture started", "encoding", enc.Name, "chunk_interval", r.opts.ChunkInterval)
	return nil
}

// Stop transitions RECORDING -> STOPPING -> IDLE and returns the joined audio.
func (r *StreamRecorder) Stop(ctx context.Context) (*Recording, error) {
	r.mutex.Lock()
	if r.phase != PhaseRecording {
		phase := r.phase
		fault := r.fault
		r.fault = nil
		r.mutex.Unlock()
		if fault != nil {
			return nil, fault
		}
		return nil, fmt.Errorf("%w: can only stop capture from recording phase, current: %s", errdefs.ErrNotActive, phase)
	}
	c := r.current
	r.phase = PhaseStopping
	r.mutex.Unlock()
	r.notify(PhaseStopping)

	slog.Debug("Stopping capture...")

	if err := c.stream.Stop(); err != nil {
		slog.Debug("Capture stream stop request failed", "error", err)
	}

	select {
	case <-c.readerDone:
	case <-time.After(r.opts.StopTimeout):
		slog.Warn("Capture did not flush within timeout, force releasing", "timeout", r.opts.StopTimeout)
	case <-ctx.Done():
		slog.Warn("Capture stop cancelled, force releasing", "error", ctx.Err())
	}

	c.release()
	recording := c.join()

	r.mutex.Lock()
	closed := r.current != c
	if !closed {
		r.current = nil
		r.phase = PhaseIdle
	}
	r.mutex.Unlock()

	if closed {
		return nil, fmt.Errorf("%w: recorder closed while stopping", errdefs.ErrCapture)
	}

	r.notify(PhaseIdle)

	if err := c.readErr(); err != nil {
		slog.Error("Capture device failed before stop completed", "error", err)
		return nil, fmt.Errorf("%w: %v", errdefs.ErrCapture, err)
	}

	slog.Info("Capture completed", "bytes", recording.Size(), "chunks", recording.Chunks, "duration", recording.Duration.Round(time.Millisecond))
	return recording, nil
}

// Phase returns the current capture phase.
func (r *StreamRecorder) Phase() Phase {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.phase
}

// Encoding returns the encoding negotiated by the last Start.
func (r *StreamRecorder) Encoding() Encoding {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.encoding
}

// NegotiatedEncoding probes the device without opening it.
func (r *StreamRecorder) NegotiatedEncoding() Encoding {
	return Negotiate(r.device, r.opts.Encodings)
}

// OnPhaseChange registers fn to be called after every phase transition.
func (r *StreamRecorder) OnPhaseChange(fn func(Phase)) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Close releases the device regardless of phase and drops buffered audio.
func (r *StreamRecorder) Close() error {
	r.mutex.Lock()
	phase := r.phase
	c := r.current
	r.current = nil
	r.phase = PhaseIdle
	r.generation++
	r.fault = nil
	r.mutex.Unlock()

	if phase == PhaseIdle {
		return nil
	}

	if c != nil {
		c.release()
		c.discard()
	}

	r.notify(PhaseIdle)
	slog.Debug("Recorder cleaned up", "phase", phase)
	return nil
}

// handleFault releases a capture whose device failed mid-recording. The
// recorder returns to idle right away and the error is kept for Stop.
func (r *StreamRecorder) handleFault(c *capture, err error) {
	r.mutex.Lock()
	if r.current != c || r.phase != PhaseRecording {
		// Stop or Close already owns this capture
		r.mutex.Unlock()
		return
	}
	r.current = nil
	r.phase = PhaseIdle
	r.fault = fmt.Errorf("%w: %v", errdefs.ErrCapture, err)
	r.mutex.Unlock()

	slog.Error("Capture device failed during recording", "error", err)
	c.release()
	c.discard()
	r.notify(PhaseIdle)
}

func (r *StreamRecorder) notify(p Phase) {
	r.mutex.RLock()
	listeners := make([]func(Phase), len(r.listeners))
	copy(listeners, r.listeners)
	r.mutex.RUnlock()

	for _, fn := range listeners {
		fn(p)
	}
}

// asCaptureError keeps typed device errors and wraps anything else as a
// capture fault.
func asCaptureError(err error) error {
	if errors.Is(err, errdefs.ErrPermission) ||
		errors.Is(err, errdefs.ErrDeviceNotFound) ||
		errors.Is(err, errdefs.ErrCapture) {
		return err
	}
	return fmt.Errorf("%w: %v", errdefs.ErrCapture, err)
}

// capture is the state of one recording: the owned stream and its chunks.
type capture struct {
	stream    Stream
	encoding  Encoding
	startedAt time.Time

	mu      sync.Mutex
	pending bytes.Buffer
	chunks  [][]byte
	err     error

	stop        chan struct{}
	readerDone  chan struct{}
	tickerDone  chan struct{}
	releaseOnce sync.Once
}

func newCapture(stream Stream, enc Encoding) *capture {
	return &capture{
		stream:     stream,
		encoding:   enc,
		startedAt:  time.Now(),
		stop:       make(chan struct{}),
		readerDone: make(chan struct{}),
		tickerDone: make(chan struct{}),
	}
}

func (c *capture) readLoop() {
	defer close(c.readerDone)

	buf := make([]byte, 32*1024)
	for {
		n, err := c.stream.Read(buf)
		if n > 0 {
			c.mu.Lock()
			c.pending.Write(buf[:n])
			c.mu.Unlock()
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) && !errors.Is(err, io.ErrClosedPipe) {
				c.mu.Lock()
				c.err = err
				c.mu.Unlock()
			}
			return
		}
	}
}

// chunkLoop emits one chunk per interval from whatever was read since the last tick.
func (c *capture) chunkLoop(interval time.Duration) {
	defer close(c.tickerDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.flush()
		}
	}
}

func (c *capture) flush() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending.Len() == 0 {
		return
	}
	c.chunks = append(c.chunks, bytes.Clone(c.pending.Bytes()))
	c.pending.Reset()
}

// readErr is the read failure that ended the stream, nil after a clean end.
func (c *capture) readErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *capture) chunkCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.chunks)
}

// release stops the device and both goroutines. Safe to call more than once.
func (c *capture) release() {
	c.releaseOnce.Do(func() {
		if err := c.stream.Close(); err != nil {
			slog.Debug("Capture release reported error", "error", err)
		}
		<-c.readerDone
		close(c.stop)
		<-c.tickerDone
	})
}

// join performs the final flush and concatenates all chunks, clearing them.
func (c *capture) join() *Recording {
	c.flush()

	c.mu.Lock()
	defer c.mu.Unlock()

	recording := &Recording{
		Data:     bytes.Join(c.chunks, nil),
		Encoding: c.encoding,
		Duration: time.Since(c.startedAt),
		Chunks:   len(c.chunks),
	}
	c.chunks = nil
	return recording
}

func (c *capture) discard() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chunks = nil
	c.pending.Reset()
}
