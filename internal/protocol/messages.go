package protocol

import "time"

// ProcessedResult is the response body of POST /api/process_audio.
type ProcessedResult struct {
	Success       bool            `json:"success"`
	Error         string          `json:"error,omitempty"`
	Transcription string          `json:"transcription"`
	Analysis      SpeechAnalysis  `json:"analysis"`
	Score         *RelevanceScore `json:"score"`
	Feedback      []string        `json:"feedback"`
}

// SpeechAnalysis summarizes delivery quality of a spoken answer.
type SpeechAnalysis struct {
	TotalWords  int     `json:"total_words"`
	FillerWords int     `json:"filler_words"`
	FillerRatio float64 `json:"filler_ratio"`
}

// RelevanceScore measures keyword overlap between the answer and the
// supplied job description. Absent when no job description was given.
type RelevanceScore struct {
	Score           float64  `json:"score"`
	MatchedKeywords []string `json:"matched_keywords"`
}

// SessionStarted announces an uploaded answer entering the pipeline.
type SessionStarted struct {
	SessionID         string    `json:"session_id"`
	ClipBytes         int       `json:"clip_bytes"`
	HasJobDescription bool      `json:"has_job_description"`
	Timestamp         time.Time `json:"timestamp"`
}

// TranscriptFinal carries the recognizer output for a session.
type TranscriptFinal struct {
	SessionID  string    `json:"session_id"`
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// ResultReady summarizes a completed analysis for the timeline.
type ResultReady struct {
	SessionID   string    `json:"session_id"`
	TotalWords  int       `json:"total_words"`
	FillerRatio float64   `json:"filler_ratio"`
	Score       *float64  `json:"score,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

const (
	SubjectSessionStarted  = "session.started"
	SubjectTranscriptFinal = "transcript.final"
	SubjectResultReady     = "result.ready"
)
