package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/soundcheck-ai/soundcheck/internal/analysis"
	"github.com/soundcheck-ai/soundcheck/internal/coach"
	"github.com/soundcheck-ai/soundcheck/internal/config"
	"github.com/soundcheck-ai/soundcheck/internal/protocol"
	"github.com/soundcheck-ai/soundcheck/internal/sessionstore"
	"github.com/soundcheck-ai/soundcheck/internal/stt"
)

type stubRecognizer struct {
	text string
	err  error
}

func (s stubRecognizer) Transcribe(ctx context.Context, wavPath string) (stt.TranscriptResult, error) {
	if s.err != nil {
		return stt.TranscriptResult{}, s.err
	}
	return stt.TranscriptResult{Text: s.text, Confidence: 0.9}, nil
}

type stubCoach struct {
	tip string
	err error
}

func (s stubCoach) Tip(ctx context.Context, summary coach.Summary) (string, error) {
	return s.tip, s.err
}

type recordingPublisher struct {
	subjects []string
}

func (p *recordingPublisher) PublishJSON(subject string, msg any) error {
	p.subjects = append(p.subjects, subject)
	return nil
}

func newTestHandler(t *testing.T, deps Deps) *Handler {
	t.Helper()
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if deps.Analyzer == nil {
		deps.Analyzer = analysis.New(config.Default().Analysis)
	}
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics(prometheus.NewRegistry())
	}
	return NewHandler(deps)
}

func multipartBody(t *testing.T, audio []byte, jobDescription string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if audio != nil {
		part, err := writer.CreateFormFile("audio", "answer.wav")
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(audio); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if jobDescription != "" {
		if err := writer.WriteField("job_description", jobDescription); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func doProcess(t *testing.T, h *Handler, audio []byte, jobDescription string) (*httptest.ResponseRecorder, protocol.ProcessedResult) {
	t.Helper()
	mux := http.NewServeMux()
	h.Routes(mux)
	body, contentType := multipartBody(t, audio, jobDescription)
	req := httptest.NewRequest(http.MethodPost, "/api/process_audio", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var result protocol.ProcessedResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return rec, result
}

func TestProcessAudioSuccess(t *testing.T) {
	publisher := &recordingPublisher{}
	handler := newTestHandler(t, Deps{
		Recognizer: stubRecognizer{text: "I built a Python API for data pipelines"},
		Publisher:  publisher,
	})

	rec, result := doProcess(t, handler, []byte("RIFFfake"), "Looking for Python API experience")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if result.Transcription != "I built a Python API for data pipelines" {
		t.Fatalf("unexpected transcription %q", result.Transcription)
	}
	if result.Analysis.TotalWords != 8 {
		t.Fatalf("expected 8 words, got %d", result.Analysis.TotalWords)
	}
	if result.Score == nil {
		t.Fatal("expected a relevance score")
	}
	if len(result.Score.MatchedKeywords) == 0 {
		t.Fatal("expected matched keywords")
	}
	if len(result.Feedback) == 0 {
		t.Fatal("expected feedback lines")
	}

	want := []string{protocol.SubjectSessionStarted, protocol.SubjectTranscriptFinal, protocol.SubjectResultReady}
	if len(publisher.subjects) != len(want) {
		t.Fatalf("expected %d published events, got %v", len(want), publisher.subjects)
	}
	for i, subject := range want {
		if publisher.subjects[i] != subject {
			t.Fatalf("event %d: expected %s, got %s", i, subject, publisher.subjects[i])
		}
	}
}

func TestProcessAudioNoJobDescription(t *testing.T) {
	handler := newTestHandler(t, Deps{
		Recognizer: stubRecognizer{text: "hello world"},
	})

	_, result := doProcess(t, handler, []byte("RIFFfake"), "")
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if result.Score != nil {
		t.Fatalf("expected nil score without a job description, got %+v", result.Score)
	}
}

func TestProcessAudioMissingFile(t *testing.T) {
	handler := newTestHandler(t, Deps{Recognizer: stubRecognizer{text: "unused"}})

	rec, result := doProcess(t, handler, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("errors keep status 200, got %d", rec.Code)
	}
	if result.Success {
		t.Fatal("expected success=false")
	}
	if result.Error != "no audio provided" {
		t.Fatalf("unexpected error message %q", result.Error)
	}
}

func TestProcessAudioRecognizerFailure(t *testing.T) {
	handler := newTestHandler(t, Deps{
		Recognizer: stubRecognizer{err: errors.New("model not loaded")},
	})

	rec, result := doProcess(t, handler, []byte("RIFFfake"), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("errors keep status 200, got %d", rec.Code)
	}
	if result.Success {
		t.Fatal("expected success=false")
	}
	if !strings.Contains(result.Error, "transcription failed") {
		t.Fatalf("unexpected error message %q", result.Error)
	}
}

func TestProcessAudioCoachTipAppended(t *testing.T) {
	handler := newTestHandler(t, Deps{
		Recognizer: stubRecognizer{text: "hello world"},
		Coach:      stubCoach{tip: "Open with a one-sentence summary of your role."},
	})

	_, result := doProcess(t, handler, []byte("RIFFfake"), "")
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	last := result.Feedback[len(result.Feedback)-1]
	if last != "Open with a one-sentence summary of your role." {
		t.Fatalf("expected coach tip appended, got %q", last)
	}
}

func TestProcessAudioCoachFailureIsNonFatal(t *testing.T) {
	withCoach := newTestHandler(t, Deps{
		Recognizer: stubRecognizer{text: "hello world"},
		Coach:      stubCoach{err: errors.New("model offline")},
	})
	withoutCoach := newTestHandler(t, Deps{
		Recognizer: stubRecognizer{text: "hello world"},
	})

	_, got := doProcess(t, withCoach, []byte("RIFFfake"), "")
	_, want := doProcess(t, withoutCoach, []byte("RIFFfake"), "")
	if !got.Success {
		t.Fatalf("expected success despite coach failure, got %q", got.Error)
	}
	if len(got.Feedback) != len(want.Feedback) {
		t.Fatalf("coach failure changed feedback: %v vs %v", got.Feedback, want.Feedback)
	}
}

func TestSessionEventsEphemeralStore(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := sessionstore.Open(context.Background(), config.SessionStoreConfig{RetentionMode: "ephemeral"}, log)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	handler := newTestHandler(t, Deps{
		Recognizer: stubRecognizer{text: "unused"},
		Store:      store,
	})

	mux := http.NewServeMux()
	handler.Routes(mux)
	req := httptest.NewRequest(http.MethodGet, "/api/sessions/abc/events", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Fatalf("expected empty event list, got %s", got)
	}
}
