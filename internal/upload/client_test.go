package upload

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/soundcheck-ai/soundcheck/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newClient(endpoint string) *Client {
	return NewClient(config.UploadConfig{Endpoint: endpoint, TimeoutMS: 5000}, newLogger())
}

func TestSubmitSendsMultipartFields(t *testing.T) {
	var gotAudio []byte
	var gotJob string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		file, _, err := r.FormFile("audio")
		if err != nil {
			t.Errorf("audio part missing: %v", err)
		} else {
			gotAudio, _ = io.ReadAll(file)
			file.Close()
		}
		gotJob = r.FormValue("job_description")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": true, "transcription": "hello world", "analysis": {"total_words": 2, "filler_words": 0, "filler_ratio": 0.0}, "score": null, "feedback": ["Good job"]}`))
	}))
	defer server.Close()

	result, err := newClient(server.URL).Submit(context.Background(), []byte("RIFFdata"), "backend role")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if string(gotAudio) != "RIFFdata" {
		t.Fatalf("expected audio payload forwarded, got %q", gotAudio)
	}
	if gotJob != "backend role" {
		t.Fatalf("expected job description forwarded, got %q", gotJob)
	}
	if !result.Success || result.Transcription != "hello world" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Score != nil {
		t.Fatalf("expected nil score, got %+v", result.Score)
	}
	if len(result.Feedback) != 1 || result.Feedback[0] != "Good job" {
		t.Fatalf("unexpected feedback: %v", result.Feedback)
	}
}

func TestSubmitTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	_, err := newClient(server.URL).Submit(context.Background(), []byte("x"), "")
	if !errors.Is(err, ErrUploadFailed) {
		t.Fatalf("expected ErrUploadFailed, got %v", err)
	}
}

func TestSubmitNon2xxIsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newClient(server.URL).Submit(context.Background(), []byte("x"), "")
	if !errors.Is(err, ErrUploadFailed) {
		t.Fatalf("expected ErrUploadFailed for 500, got %v", err)
	}
}

func TestSubmitMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	_, err := newClient(server.URL).Submit(context.Background(), []byte("x"), "")
	if !errors.Is(err, ErrUploadFailed) {
		t.Fatalf("expected ErrUploadFailed for malformed body, got %v", err)
	}
}

func TestSubmitSingleFlight(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Write([]byte(`{"success": true, "transcription": "", "analysis": {"total_words": 0, "filler_words": 0, "filler_ratio": 0}, "score": null, "feedback": []}`))
	}))
	defer server.Close()

	client := newClient(server.URL)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := client.Submit(context.Background(), []byte("x"), ""); err != nil {
			t.Errorf("first submit: %v", err)
		}
	}()

	// Wait until the first submission reaches the server.
	for !client.inflight.Load() {
		time.Sleep(time.Millisecond)
	}

	if _, err := client.Submit(context.Background(), []byte("y"), ""); !errors.Is(err, ErrUploadInFlight) {
		t.Fatalf("expected ErrUploadInFlight, got %v", err)
	}

	close(release)
	wg.Wait()
}
