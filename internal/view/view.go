package view

import (
	"fmt"
	"strings"

	"github.com/soundcheck-ai/soundcheck/internal/protocol"
)

// Phase tracks the session state machine: idle, recording, uploading,
// displaying.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRecording
	PhaseUploading
	PhaseDisplaying
)

// State is everything the renderer needs. Result survives across phases
// until a new submission replaces it.
type State struct {
	Phase  Phase
	Result *protocol.ProcessedResult
}

// Model is the projected view, free of UI framework concerns so it can be
// rendered anywhere and asserted in tests.
type Model struct {
	ShowControls  bool
	ShowRecording bool
	ShowLoading   bool

	Transcript   string
	Metrics      *MetricsModel
	Score        *ScoreModel
	Feedback     []string
	ErrorMessage string
}

type MetricsModel struct {
	TotalWords  int
	FillerWords int
	FillerRatio string
}

type ScoreModel struct {
	Percent  string
	Keywords string // comma-joined; empty means the line is omitted
}

// Project turns session state into a view model.
func Project(s State) Model {
	switch s.Phase {
	case PhaseRecording:
		return Model{ShowRecording: true}
	case PhaseUploading:
		return Model{ShowLoading: true}
	}

	if s.Result == nil {
		return Model{ShowControls: true}
	}

	m := Model{
		Transcript: s.Result.Transcription,
		Metrics: &MetricsModel{
			TotalWords:  s.Result.Analysis.TotalWords,
			FillerWords: s.Result.Analysis.FillerWords,
			FillerRatio: formatPercent(s.Result.Analysis.FillerRatio * 100),
		},
		Feedback: s.Result.Feedback,
	}
	if !s.Result.Success {
		m.ErrorMessage = s.Result.Error
	}
	if s.Result.Score != nil {
		m.Score = &ScoreModel{
			Percent:  formatPercent(s.Result.Score.Score),
			Keywords: strings.Join(s.Result.Score.MatchedKeywords, ", "),
		}
	}
	return m
}

func formatPercent(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}

// Render produces the terminal output for a model.
func (m Model) Render() string {
	var b strings.Builder

	switch {
	case m.ShowRecording:
		b.WriteString("● Recording... press Enter to stop\n")
		return b.String()
	case m.ShowLoading:
		b.WriteString("⟳ Processing your answer...\n")
		return b.String()
	case m.ShowControls:
		b.WriteString("Press Enter to start recording (30s max), Ctrl+C to quit.\n")
		return b.String()
	}

	if m.ErrorMessage != "" {
		fmt.Fprintf(&b, "Processing failed: %s\n", m.ErrorMessage)
		return b.String()
	}

	b.WriteString("Transcription\n")
	b.WriteString(m.Transcript)
	b.WriteString("\n\n")

	if m.Metrics != nil {
		b.WriteString("Speech Analysis\n")
		fmt.Fprintf(&b, "  Total Words: %d\n", m.Metrics.TotalWords)
		fmt.Fprintf(&b, "  Filler Words: %d\n", m.Metrics.FillerWords)
		fmt.Fprintf(&b, "  Filler Ratio: %s\n", m.Metrics.FillerRatio)
	}

	if m.Score != nil {
		b.WriteString("\nJob Relevance\n")
		fmt.Fprintf(&b, "  Score: %s\n", m.Score.Percent)
		if m.Score.Keywords != "" {
			fmt.Fprintf(&b, "  Matched Keywords: %s\n", m.Score.Keywords)
		}
	}

	if len(m.Feedback) > 0 {
		b.WriteString("\nFeedback\n")
		for _, entry := range m.Feedback {
			fmt.Fprintf(&b, "  ▸ %s\n", entry)
		}
	}

	return b.String()
}
