package capture

import (
	"context"
	"errors"
	"fmt"

	"github.com/soundcheck-ai/soundcheck/internal/config"
)

var (
	// ErrPermissionDenied means the host refused access to the capture device.
	ErrPermissionDenied = errors.New("capture: permission denied")
	// ErrDeviceUnavailable means no usable capture device exists.
	ErrDeviceUnavailable = errors.New("capture: device unavailable")
)

// Stream delivers captured PCM chunks in order. The channel is closed when
// capture ends; Close releases the underlying device and is safe to call
// more than once.
type Stream interface {
	Chunks() <-chan []byte
	Close() error
	Err() error
}

// Device abstracts microphone acquisition so tests can substitute a double
// that emits synthetic chunks.
type Device interface {
	Acquire(ctx context.Context) (Stream, error)
}

// NewDevice builds the configured capture backend.
func NewDevice(cfg config.CaptureConfig) (Device, error) {
	switch cfg.Mode {
	case "mock":
		return NewMockDevice(), nil
	case "exec":
		return NewExecDevice(cfg)
	default:
		return nil, fmt.Errorf("unknown capture mode %q", cfg.Mode)
	}
}
