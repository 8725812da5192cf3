package stt

import (
	"context"
	"fmt"

	"github.com/soundcheck-ai/soundcheck/internal/config"
)

// TranscriptResult captures recognizer output.
type TranscriptResult struct {
	Text       string
	Confidence float64
}

// Recognizer abstracts STT backends. Input is a path to a WAV file on disk.
type Recognizer interface {
	Transcribe(ctx context.Context, wavPath string) (TranscriptResult, error)
}

// NewRecognizer builds the configured backend.
func NewRecognizer(cfg config.STTConfig) (Recognizer, error) {
	switch cfg.Mode {
	case "mock":
		return NewMockRecognizer(), nil
	case "exec":
		return NewExecRecognizer(cfg)
	default:
		return nil, fmt.Errorf("unknown stt mode %q", cfg.Mode)
	}
}
