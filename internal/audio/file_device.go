package audio

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/audiolibrelab/mockinterview/internal/errdefs"
)

// FileDevice replays a prerecorded answer in place of a microphone.
type FileDevice struct {
	path string
}

// NewFileDevice creates a device that replays the file at path.
func NewFileDevice(path string) *FileDevice {
	return &FileDevice{path: path}
}

// Supports matches on file extension; the bytes are passed through untouched.
func (d *FileDevice) Supports(enc Encoding) bool {
	return strings.EqualFold(strings.TrimPrefix(filepath.Ext(d.path), "."), enc.Extension)
}

// Sources lists the file as the only, default source once it exists.
func (d *FileDevice) Sources() ([]Source, error) {
	if _, err := os.Stat(d.path); err != nil {
		return nil, nil
	}
	return []Source{{Name: d.path, Description: "prerecorded answer", Default: true}}, nil
}

// Open starts reading the file; the stream ends with io.EOF at its end.
func (d *FileDevice) Open(ctx context.Context, c Constraints, enc Encoding) (Stream, error) {
	f, err := os.Open(d.path)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("%w: %s", errdefs.ErrDeviceNotFound, d.path)
		case errors.Is(err, fs.ErrPermission):
			return nil, fmt.Errorf("%w: %s", errdefs.ErrPermission, d.path)
		}
		return nil, fmt.Errorf("%w: %v", errdefs.ErrCapture, err)
	}
	return &fileStream{File: f}, nil
}

type fileStream struct {
	*os.File
}

func (s *fileStream) Stop() error { return nil }
