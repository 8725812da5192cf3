package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/soundcheck-ai/soundcheck/internal/capture"
	"github.com/soundcheck-ai/soundcheck/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testCaptureConfig() config.CaptureConfig {
	cfg := config.Default().Capture
	cfg.Mode = "mock"
	return cfg
}

// scriptedDevice emits a fixed sequence of chunks and then ends the stream.
type scriptedDevice struct {
	chunks [][]byte
}

func (d *scriptedDevice) Acquire(ctx context.Context) (capture.Stream, error) {
	s := &scriptedStream{chunks: make(chan []byte, len(d.chunks))}
	for _, c := range d.chunks {
		s.chunks <- c
	}
	close(s.chunks)
	return s, nil
}

type scriptedStream struct {
	chunks chan []byte
}

func (s *scriptedStream) Chunks() <-chan []byte { return s.chunks }
func (s *scriptedStream) Close() error          { return nil }
func (s *scriptedStream) Err() error            { return nil }

func TestStartSetsRecordingState(t *testing.T) {
	r := NewRecorder(testCaptureConfig(), capture.NewMockDevice(), newLogger())

	rec, err := r.Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !r.Recording() {
		t.Fatal("expected recording state true after start")
	}

	rec.Stop()
	if _, err := rec.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if r.Recording() {
		t.Fatal("expected recording state false after stop")
	}
}

func TestStartPermissionDenied(t *testing.T) {
	device := capture.NewMockDevice()
	device.AcquireErr = fmt.Errorf("%w: microphone blocked", capture.ErrPermissionDenied)
	r := NewRecorder(testCaptureConfig(), device, newLogger())

	_, err := r.Start(context.Background())
	if !errors.Is(err, capture.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if r.Recording() {
		t.Fatal("expected recording state unchanged after denied acquire")
	}
}

func TestSecondStartRejected(t *testing.T) {
	r := NewRecorder(testCaptureConfig(), capture.NewMockDevice(), newLogger())

	rec, err := r.Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() {
		rec.Stop()
		rec.Wait()
	}()

	if _, err := r.Start(context.Background()); !errors.Is(err, ErrAlreadyRecording) {
		t.Fatalf("expected ErrAlreadyRecording, got %v", err)
	}
}

func TestClipPreservesChunkOrder(t *testing.T) {
	chunks := [][]byte{
		{0x01, 0x00, 0x02, 0x00},
		{0x03, 0x00},
		{0x04, 0x00, 0x05, 0x00, 0x06, 0x00},
	}
	r := NewRecorder(testCaptureConfig(), &scriptedDevice{chunks: chunks}, newLogger())

	rec, err := r.Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	clip, err := rec.Wait()
	if err != nil {
		t.Fatalf("wait: %v", err)
	}

	want := bytes.Join(chunks, nil)
	if !bytes.Equal(clip.PCM, want) {
		t.Fatalf("expected pcm %v, got %v", want, clip.PCM)
	}
	if !bytes.HasPrefix(clip.WAV, []byte("RIFF")) {
		t.Fatalf("expected RIFF container, got %v", clip.WAV[:8])
	}
}

func TestDeadlineStopsRecording(t *testing.T) {
	cfg := testCaptureConfig()
	cfg.MaxDurationMS = 50

	device := capture.NewMockDevice()
	device.Interval = 5 * time.Millisecond
	r := NewRecorder(cfg, device, newLogger())

	rec, err := r.Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	done := make(chan struct{})
	go func() {
		rec.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("recording did not auto-stop at deadline")
	}
	if r.Recording() {
		t.Fatal("expected recording state false after deadline stop")
	}
}

func TestManualStopBeforeDeadline(t *testing.T) {
	cfg := testCaptureConfig()
	cfg.MaxDurationMS = 60000

	device := capture.NewMockDevice()
	device.Interval = 5 * time.Millisecond
	r := NewRecorder(cfg, device, newLogger())

	rec, err := r.Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	rec.Stop()

	clip, err := rec.Wait()
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if len(clip.PCM) == 0 {
		t.Fatal("expected captured audio before manual stop")
	}
	// Stop is idempotent, including after the deadline timer was cancelled.
	rec.Stop()
}

func TestEncodePCMRejectsOddPayload(t *testing.T) {
	if _, err := EncodePCM([]byte{0x01}, 16000, 1); err == nil {
		t.Fatal("expected error for unaligned pcm")
	}
}
