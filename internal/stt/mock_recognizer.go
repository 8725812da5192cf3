package stt

import (
	"context"
	"fmt"
	"os"
)

type mockRecognizer struct{}

func NewMockRecognizer() Recognizer {
	return &mockRecognizer{}
}

func (m *mockRecognizer) Transcribe(_ context.Context, wavPath string) (TranscriptResult, error) {
	info, err := os.Stat(wavPath)
	if err != nil {
		return TranscriptResult{}, fmt.Errorf("stat wav: %w", err)
	}
	return TranscriptResult{
		Text:       fmt.Sprintf("[mock transcript for %d byte clip]", info.Size()),
		Confidence: 0,
	}, nil
}
