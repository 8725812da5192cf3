package coach

import (
	"context"
	"time"
)

type mockGenerator struct{}

func NewMockGenerator() Generator { return &mockGenerator{} }

func (m *mockGenerator) Tip(ctx context.Context, summary Summary) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(20 * time.Millisecond):
	}
	if summary.FillerRatio > 0.2 {
		return "Pause silently instead of reaching for a filler word.", nil
	}
	return "Lead with your strongest example and give it a measurable outcome.", nil
}
