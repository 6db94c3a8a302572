package audio

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/audiolibrelab/mockinterview/internal/config"
)

// BackendType selects how the microphone is reached.
type BackendType string

const (
	BackendTypeFFmpeg BackendType = "ffmpeg"
	BackendTypeFile   BackendType = "file"
	BackendTypeAuto   BackendType = "auto"
)

// NewDevice creates the capture device described by the audio config.
func NewDevice(cfg config.AudioConfig, verbose bool) (Device, error) {
	switch determineBackend(cfg) {
	case BackendTypeFile:
		if cfg.File == "" {
			return nil, fmt.Errorf("audio.file is required for the file backend")
		}
		return NewFileDevice(cfg.File), nil
	default:
		return NewFFmpegDevice(cfg.FFmpegPath, cfg.InputFormat, cfg.Device, verbose), nil
	}
}

// NewRecorder creates a recorder using the configured device and encoding order.
func NewRecorder(cfg config.AudioConfig, verbose bool) (Recorder, error) {
	device, err := NewDevice(cfg, verbose)
	if err != nil {
		return nil, err
	}

	constraints := DefaultConstraints
	if cfg.Bitrate > 0 {
		constraints.Bitrate = cfg.Bitrate
	}

	return NewStreamRecorder(device, Options{
		Constraints:   constraints,
		Encodings:     PreferenceFromNames(cfg.Encodings),
		ChunkInterval: cfg.ChunkInterval,
	}), nil
}

// determineBackend resolves "auto" to ffmpeg when it is installed, otherwise
// to the file backend if one is configured.
func determineBackend(cfg config.AudioConfig) BackendType {
	switch strings.ToLower(cfg.Backend) {
	case "file":
		return BackendTypeFile
	case "ffmpeg":
		return BackendTypeFFmpeg
	}

	if _, err := exec.LookPath(cfg.FFmpegPath); err != nil && cfg.File != "" {
		return BackendTypeFile
	}
	return BackendTypeFFmpeg
}
