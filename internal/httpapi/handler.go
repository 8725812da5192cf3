package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/soundcheck-ai/soundcheck/internal/analysis"
	"github.com/soundcheck-ai/soundcheck/internal/coach"
	"github.com/soundcheck-ai/soundcheck/internal/protocol"
	"github.com/soundcheck-ai/soundcheck/internal/sessionstore"
	"github.com/soundcheck-ai/soundcheck/internal/stt"
)

// Publisher is the slice of the bus client the handler needs. Nil disables
// event publishing.
type Publisher interface {
	PublishJSON(subject string, msg any) error
}

// Deps carries handler collaborators. Coach and Publisher may be nil.
type Deps struct {
	Logger     *slog.Logger
	Recognizer stt.Recognizer
	Analyzer   *analysis.Analyzer
	Coach      coach.Generator
	Publisher  Publisher
	Store      *sessionstore.Store
	Metrics    *Metrics
}

// Handler serves the audio processing API.
type Handler struct {
	deps Deps
	log  *slog.Logger
}

func NewHandler(deps Deps) *Handler {
	return &Handler{
		deps: deps,
		log:  deps.Logger.With(slog.String("component", "httpapi")),
	}
}

// Routes registers API endpoints on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/process_audio", h.handleProcessAudio)
	mux.HandleFunc("GET /api/sessions/{id}/events", h.handleSessionEvents)
}

// handleProcessAudio runs the full pipeline for one uploaded answer:
// transcribe, analyze delivery, score against the job description, and
// assemble feedback. Pipeline failures respond 200 with success=false, the
// same contract the processing API has always had.
func (h *Handler) handleProcessAudio(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	h.deps.Metrics.RequestsTotal.Inc()

	file, _, err := r.FormFile("audio")
	if err != nil {
		h.fail(w, "no audio provided")
		return
	}
	defer file.Close()
	jobDescription := r.FormValue("job_description")

	clipPath, clipBytes, err := h.saveClip(file)
	if err != nil {
		h.log.Error("failed to stage clip", slog.String("error", err.Error()))
		h.fail(w, "could not store audio")
		return
	}
	defer os.Remove(clipPath)
	h.deps.Metrics.ClipBytes.Observe(float64(clipBytes))

	sessionID := uuid.NewString()
	h.publish(protocol.SubjectSessionStarted, protocol.SessionStarted{
		SessionID:         sessionID,
		ClipBytes:         clipBytes,
		HasJobDescription: jobDescription != "",
		Timestamp:         time.Now().UTC(),
	})

	transcribeStart := time.Now()
	transcript, err := h.deps.Recognizer.Transcribe(r.Context(), clipPath)
	h.deps.Metrics.TranscribeDuration.Observe(time.Since(transcribeStart).Seconds())
	if err != nil {
		h.log.Error("transcription failed",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
		h.fail(w, fmt.Sprintf("transcription failed: %v", err))
		return
	}
	h.publish(protocol.SubjectTranscriptFinal, protocol.TranscriptFinal{
		SessionID:  sessionID,
		Text:       transcript.Text,
		Confidence: transcript.Confidence,
		Timestamp:  time.Now().UTC(),
	})

	speech := h.deps.Analyzer.AnalyzeSpeech(transcript.Text)
	score := h.deps.Analyzer.ScoreAnswer(transcript.Text, jobDescription)
	feedback := h.deps.Analyzer.Feedback(speech, score)
	feedback = h.appendCoachTip(r, feedback, transcript.Text, speech, score, sessionID)

	var scoreValue *float64
	if score != nil {
		v := score.Score
		scoreValue = &v
	}
	h.publish(protocol.SubjectResultReady, protocol.ResultReady{
		SessionID:   sessionID,
		TotalWords:  speech.TotalWords,
		FillerRatio: speech.FillerRatio,
		Score:       scoreValue,
		Timestamp:   time.Now().UTC(),
	})

	h.deps.Metrics.ProcessDuration.Observe(time.Since(start).Seconds())
	h.log.Info("answer processed",
		slog.String("session_id", sessionID),
		slog.Int("total_words", speech.TotalWords),
		slog.Duration("latency", time.Since(start)))

	writeJSON(w, http.StatusOK, protocol.ProcessedResult{
		Success:       true,
		Transcription: transcript.Text,
		Analysis:      speech,
		Score:         score,
		Feedback:      feedback,
	})
}

func (h *Handler) appendCoachTip(r *http.Request, feedback []string, transcript string, speech protocol.SpeechAnalysis, score *protocol.RelevanceScore, sessionID string) []string {
	if h.deps.Coach == nil {
		return feedback
	}
	summary := coach.Summary{
		Transcript:  transcript,
		TotalWords:  speech.TotalWords,
		FillerRatio: speech.FillerRatio,
	}
	if score != nil {
		v := score.Score
		summary.Score = &v
	}
	tip, err := h.deps.Coach.Tip(r.Context(), summary)
	if err != nil {
		// Coaching is best effort; the rule-based feedback stands alone.
		h.log.Warn("coach tip failed",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
		return feedback
	}
	if tip != "" {
		feedback = append(feedback, tip)
	}
	return feedback
}

func (h *Handler) saveClip(file io.Reader) (string, int, error) {
	tmp, err := os.CreateTemp("", "interview_*.wav")
	if err != nil {
		return "", 0, fmt.Errorf("temp file: %w", err)
	}
	n, err := io.Copy(tmp, file)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", 0, fmt.Errorf("stage clip: %w", err)
	}
	return tmp.Name(), int(n), nil
}

func (h *Handler) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	events, err := h.deps.Store.ListSessionEvents(r.Context(), sessionID, 100)
	if err != nil {
		h.log.Error("failed to list session events", slog.String("error", err.Error()))
		http.Error(w, "failed to list session events", http.StatusInternalServerError)
		return
	}

	type sessionEvent struct {
		Type      string          `json:"type"`
		Payload   json.RawMessage `json:"payload,omitempty"`
		CreatedAt time.Time       `json:"created_at"`
	}
	out := make([]sessionEvent, 0, len(events))
	for _, e := range events {
		out = append(out, sessionEvent{
			Type:      e.Type,
			Payload:   json.RawMessage(e.Payload),
			CreatedAt: e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) publish(subject string, msg any) {
	if h.deps.Publisher == nil {
		return
	}
	if err := h.deps.Publisher.PublishJSON(subject, msg); err != nil {
		h.log.Warn("failed to publish event",
			slog.String("subject", subject),
			slog.String("error", err.Error()))
	}
}

func (h *Handler) fail(w http.ResponseWriter, message string) {
	h.deps.Metrics.RequestErrors.Inc()
	writeJSON(w, http.StatusOK, protocol.ProcessedResult{
		Success: false,
		Error:   message,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
