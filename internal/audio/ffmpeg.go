package audio

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/audiolibrelab/mockinterview/internal/errdefs"
)

// acquireTimeout bounds how long Open waits for the first encoded bytes
// before assuming the device is open but quiet.
const acquireTimeout = 3 * time.Second

// FFmpegDevice captures from a system input through an ffmpeg subprocess
// writing the encoded container to stdout.
type FFmpegDevice struct {
	path        string
	inputFormat string
	device      string
	verbose     bool

	probeOnce sync.Once
	muxers    map[string]bool
	encoders  map[string]bool
	probeErr  error
}

// NewFFmpegDevice creates a device for e.g. ("ffmpeg", "pulse", "default").
func NewFFmpegDevice(path, inputFormat, device string, verbose bool) *FFmpegDevice {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpegDevice{
		path:        path,
		inputFormat: inputFormat,
		device:      device,
		verbose:     verbose,
	}
}

// Supports reports whether the local ffmpeg build can mux and encode enc.
func (d *FFmpegDevice) Supports(enc Encoding) bool {
	d.probeOnce.Do(d.probe)
	if d.probeErr != nil {
		slog.Debug("FFmpeg capability probe failed", "error", d.probeErr)
		return false
	}
	if !d.muxers[enc.Format] {
		return false
	}
	return enc.Codec == "" || d.encoders[enc.Codec]
}

func (d *FFmpegDevice) probe() {
	muxers, err := exec.Command(d.path, "-hide_banner", "-muxers").Output()
	if err != nil {
		d.probeErr = fmt.Errorf("failed to list ffmpeg muxers: %w", err)
		return
	}
	encoders, err := exec.Command(d.path, "-hide_banner", "-encoders").Output()
	if err != nil {
		d.probeErr = fmt.Errorf("failed to list ffmpeg encoders: %w", err)
		return
	}

	d.muxers = parseCapabilityList(string(muxers))
	d.encoders = parseCapabilityList(string(encoders))
	slog.Debug("FFmpeg capabilities probed", "muxers", len(d.muxers), "encoders", len(d.encoders))
}

// parseCapabilityList reads the table printed by `ffmpeg -muxers` or
// `ffmpeg -encoders`: a legend, a dashed separator, then "FLAGS name description".
func parseCapabilityList(output string) map[string]bool {
	names := make(map[string]bool)
	inTable := false

	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if !inTable {
			if trimmed != "" && strings.Trim(trimmed, "-") == "" {
				inTable = true
			}
			continue
		}

		fields := strings.Fields(trimmed)
		if len(fields) < 2 {
			continue
		}
		for _, name := range strings.Split(fields[1], ",") {
			names[name] = true
		}
	}

	return names
}

// Sources lists inputs ffmpeg can see for the configured input format.
func (d *FFmpegDevice) Sources() ([]Source, error) {
	output, err := exec.Command(d.path, "-hide_banner", "-sources", d.inputFormat).CombinedOutput()
	sources := parseSources(string(output))
	if err != nil && len(sources) == 0 {
		return nil, fmt.Errorf("failed to list %s sources: %w", d.inputFormat, err)
	}
	return sources, nil
}

// parseSources reads `ffmpeg -sources` output, where the default source is
// marked with a leading '*' and descriptions are bracketed.
func parseSources(output string) []Source {
	var sources []Source

	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "Auto-detected sources") {
			continue
		}

		src := Source{}
		if strings.HasPrefix(trimmed, "*") {
			src.Default = true
			trimmed = strings.TrimSpace(trimmed[1:])
		}

		if i := strings.Index(trimmed, " ["); i >= 0 && strings.HasSuffix(trimmed, "]") {
			src.Description = trimmed[i+2 : len(trimmed)-1]
			trimmed = trimmed[:i]
		}
		src.Name = strings.TrimSpace(trimmed)
		if src.Name != "" {
			sources = append(sources, src)
		}
	}

	return sources
}

// Open starts ffmpeg and waits until it produces data, exits, or the
// acquisition timeout passes.
func (d *FFmpegDevice) Open(ctx context.Context, c Constraints, enc Encoding) (Stream, error) {
	device := d.resolveDevice(c)
	args := buildCaptureArgs(d.inputFormat, device, c, enc)

	slog.Info("Starting FFmpeg capture", "command", d.path+" "+strings.Join(args, " "))

	cmd := exec.Command(d.path, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create stdout pipe: %v", errdefs.ErrCapture, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create stderr pipe: %v", errdefs.ErrCapture, err)
	}

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: ffmpeg not found at %q", errdefs.ErrCapture, d.path)
		}
		return nil, fmt.Errorf("%w: failed to start FFmpeg: %v", errdefs.ErrCapture, err)
	}

	stderrDone := make(chan struct{})
	s := &ffmpegStream{
		cmd:        cmd,
		reader:     bufio.NewReaderSize(stdout, 64*1024),
		peeked:     make(chan error, 1),
		stderrDone: stderrDone,
	}

	go s.readStderr(stderr, d.verbose, stderrDone)

	go func() {
		_, err := s.reader.Peek(1)
		s.peeked <- err
		close(s.peeked)
	}()

	select {
	case err := <-s.peeked:
		if err != nil {
			// Nothing was produced: ffmpeg exited during acquisition.
			<-stderrDone
			waitErr := cmd.Wait()
			return nil, classifyStartError(s.stderrText(), waitErr)
		}
	case <-time.After(acquireTimeout):
		slog.Debug("FFmpeg produced no data yet, assuming device is open", "timeout", acquireTimeout)
	case <-ctx.Done():
		cmd.Process.Kill()
		cmd.Wait()
		return nil, fmt.Errorf("%w: acquisition cancelled: %v", errdefs.ErrCapture, ctx.Err())
	}

	return s, nil
}

// resolveDevice prefers an echo-cancelling PulseAudio/PipeWire source when
// echo cancellation is requested and the user left the device at default.
func (d *FFmpegDevice) resolveDevice(c Constraints) string {
	if !c.EchoCancellation || d.device != "default" || d.inputFormat != "pulse" {
		return d.device
	}

	sources, err := d.Sources()
	if err != nil {
		slog.Debug("Could not list sources for echo cancellation", "error", err)
		return d.device
	}
	for _, src := range sources {
		if strings.Contains(src.Name, "echo-cancel") || strings.Contains(src.Name, "echo_cancel") {
			slog.Debug("Using echo-cancelling source", "source", src.Name)
			return src.Name
		}
	}
	slog.Debug("No echo-cancelling source available, using default device")
	return d.device
}

// buildCaptureArgs constructs the ffmpeg argument list for one capture.
func buildCaptureArgs(inputFormat, device string, c Constraints, enc Encoding) []string {
	args := []string{
		"-hide_banner",
		"-nostdin",
		"-loglevel", "error",
		"-f", inputFormat,
		"-i", device,
		"-ac", strconv.Itoa(c.Channels),
		"-ar", strconv.Itoa(c.SampleRate),
	}

	var filters []string
	if c.NoiseSuppression {
		filters = append(filters, "afftdn")
	}
	if c.AutoGainControl {
		filters = append(filters, "dynaudnorm")
	}
	if len(filters) > 0 {
		args = append(args, "-af", strings.Join(filters, ","))
	}

	if enc.Codec != "" {
		args = append(args, "-c:a", enc.Codec)
	}
	if enc.Codec != "" && !strings.HasPrefix(enc.Codec, "pcm_") && c.Bitrate > 0 {
		args = append(args, "-b:a", strconv.Itoa(c.Bitrate))
	}

	// Cluster flushing keeps webm output streaming instead of buffered
	if enc.Format == "webm" || enc.Format == "matroska" {
		args = append(args, "-cluster_time_limit", "1000")
	}

	args = append(args, "-f", enc.Format, "pipe:1")
	return args
}

// classifyStartError maps ffmpeg's stderr to the capture error taxonomy.
func classifyStartError(stderr string, waitErr error) error {
	lower := strings.ToLower(stderr)
	detail := lastLine(stderr)
	if detail == "" && waitErr != nil {
		detail = waitErr.Error()
	}

	switch {
	case strings.Contains(lower, "permission denied"),
		strings.Contains(lower, "access denied"),
		strings.Contains(lower, "not authorized"),
		strings.Contains(lower, "operation not permitted"):
		return fmt.Errorf("%w: %s", errdefs.ErrPermission, detail)
	case strings.Contains(lower, "no such file or directory"),
		strings.Contains(lower, "no such device"),
		strings.Contains(lower, "no such entity"),
		strings.Contains(lower, "no such process"),
		strings.Contains(lower, "no devices found"),
		strings.Contains(lower, "cannot open audio device"):
		return fmt.Errorf("%w: %s", errdefs.ErrDeviceNotFound, detail)
	default:
		return fmt.Errorf("%w: %s", errdefs.ErrCapture, detail)
	}
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// ffmpegStream is a running ffmpeg capture.
type ffmpegStream struct {
	cmd    *exec.Cmd
	reader *bufio.Reader

	// peeked delivers the result of the acquisition probe; reads wait on it
	// so the probe and the first Read never overlap.
	peeked    chan error
	peekOnce  sync.Once
	closeOnce sync.Once

	stopping   atomic.Bool
	stderrDone <-chan struct{}

	stderrMu  sync.Mutex
	stderrBuf strings.Builder
}

func (s *ffmpegStream) Read(p []byte) (int, error) {
	s.peekOnce.Do(func() {
		for range s.peeked {
		}
	})
	n, err := s.reader.Read(p)
	if errors.Is(err, io.EOF) && !s.stopping.Load() {
		return n, s.exitedEarly()
	}
	return n, err
}

// exitedEarly reaps an ffmpeg that closed stdout without being asked to stop,
// e.g. after the input device disappeared.
func (s *ffmpegStream) exitedEarly() error {
	<-s.stderrDone
	s.Close()
	if line := lastLine(s.stderrText()); line != "" {
		return fmt.Errorf("ffmpeg stopped unexpectedly: %s", line)
	}
	return errors.New("ffmpeg stopped unexpectedly")
}

// Stop sends SIGINT so ffmpeg writes its trailer and closes stdout.
func (s *ffmpegStream) Stop() error {
	s.stopping.Store(true)
	if s.cmd.Process == nil {
		return nil
	}
	slog.Debug("Sending SIGINT to FFmpeg process")
	if err := s.cmd.Process.Signal(os.Interrupt); err != nil {
		slog.Debug("Failed to send interrupt to FFmpeg, killing", "error", err)
		return s.cmd.Process.Kill()
	}
	return nil
}

// Close kills ffmpeg if it is still running and reaps it.
func (s *ffmpegStream) Close() error {
	s.stopping.Store(true)
	var result error
	s.closeOnce.Do(func() {
		if s.cmd.ProcessState == nil && s.cmd.Process != nil {
			s.cmd.Process.Kill()
		}
		err := s.cmd.Wait()
		if err != nil && !isSignalExit(err) {
			slog.Debug("FFmpeg stderr", "output", s.stderrText())
			result = fmt.Errorf("FFmpeg process failed: %w", err)
		}
		slog.Debug("FFmpeg capture released")
	})
	return result
}

// isSignalExit treats interrupt/kill terminations as normal.
func isSignalExit(err error) bool {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return false
	}
	// Exit code 255 is what ffmpeg returns after a graceful SIGINT
	if exitErr.ExitCode() == 255 || exitErr.ExitCode() == -1 {
		return true
	}
	if exitErr.ProcessState != nil {
		state := exitErr.ProcessState.String()
		return state == "signal: interrupt" || state == "signal: killed"
	}
	return false
}

func (s *ffmpegStream) readStderr(pipe io.Reader, verbose bool, done chan<- struct{}) {
	defer close(done)
	scanner := bufio.NewScanner(pipe)
	for scanner.Scan() {
		line := scanner.Text()
		s.stderrMu.Lock()
		s.stderrBuf.WriteString(line + "\n")
		s.stderrMu.Unlock()
		if verbose {
			slog.Debug("FFmpeg output", "stream", "stderr", "line", line)
		}
	}
}

func (s *ffmpegStream) stderrText() string {
	s.stderrMu.Lock()
	defer s.stderrMu.Unlock()
	return s.stderrBuf.String()
}
