package coach

import (
	"context"
	"fmt"

	"github.com/soundcheck-ai/soundcheck/internal/config"
)

// Summary is the condensed session outcome a generator turns into one
// closing coaching tip.
type Summary struct {
	Transcript  string
	TotalWords  int
	FillerRatio float64
	Score       *float64
}

// Generator produces a short coaching tip for a completed answer.
type Generator interface {
	Tip(ctx context.Context, summary Summary) (string, error)
}

// NewGenerator builds the configured backend.
func NewGenerator(cfg config.CoachConfig) (Generator, error) {
	switch cfg.Mode {
	case "mock":
		return NewMockGenerator(), nil
	case "ollama":
		return NewOllamaGenerator(cfg), nil
	case "exec":
		return NewExecGenerator(cfg.Command)
	default:
		return nil, fmt.Errorf("unknown coach mode %q", cfg.Mode)
	}
}

func prompt(summary Summary) string {
	p := fmt.Sprintf(
		"The candidate answered an interview question in %d words with a filler-word ratio of %.2f.",
		summary.TotalWords, summary.FillerRatio)
	if summary.Score != nil {
		p += fmt.Sprintf(" The answer matched %.1f%% of the job description keywords.", *summary.Score)
	}
	p += " Their answer: " + summary.Transcript
	return p
}

const systemPrompt = "You are an interview coach. Reply with one short, specific, encouraging tip. No preamble."
