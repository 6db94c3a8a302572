package audio

import (
	"context"
	"io"
)

// Source is one input a device can capture from.
type Source struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Default     bool   `json:"default"`
}

// Stream is an acquired microphone producing encoded bytes.
type Stream interface {
	io.Reader
	// Stop asks the producer to flush and finish; Read then returns io.EOF.
	Stop() error
	// Close releases the device immediately, discarding anything unflushed.
	// Safe to call after Stop.
	Close() error
}

// Device opens microphone streams.
type Device interface {
	Prober
	Open(ctx context.Context, c Constraints, enc Encoding) (Stream, error)
	Sources() ([]Source, error)
}
