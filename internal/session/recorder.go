package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/soundcheck-ai/soundcheck/internal/capture"
	"github.com/soundcheck-ai/soundcheck/internal/config"
)

// ErrAlreadyRecording is returned by Start while a recording is active.
var ErrAlreadyRecording = errors.New("session: recording already in progress")

// Clip is a finalized recording ready for upload.
type Clip struct {
	WAV        []byte
	PCM        []byte
	SampleRate int
	Channels   int
	Duration   time.Duration
}

// Recorder owns at most one active recording at a time.
type Recorder struct {
	cfg    config.CaptureConfig
	device capture.Device
	logger *slog.Logger

	mu     sync.Mutex
	active *Recording
}

func NewRecorder(cfg config.CaptureConfig, device capture.Device, logger *slog.Logger) *Recorder {
	return &Recorder{
		cfg:    cfg,
		device: device,
		logger: logger.With(slog.String("component", "recorder")),
	}
}

// Recording reports whether a session is currently capturing.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}

// Start acquires the capture device and begins buffering chunks. The
// recording stops on Stop or when the configured deadline elapses,
// whichever comes first. On acquisition failure no state changes.
func (r *Recorder) Start(ctx context.Context) (*Recording, error) {
	r.mu.Lock()
	if r.active != nil {
		r.mu.Unlock()
		return nil, ErrAlreadyRecording
	}
	r.mu.Unlock()

	stream, err := r.device.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire capture device: %w", err)
	}

	rec := &Recording{
		recorder: r,
		stream:   stream,
		cfg:      r.cfg,
		done:     make(chan struct{}),
	}

	r.mu.Lock()
	if r.active != nil {
		r.mu.Unlock()
		stream.Close()
		return nil, ErrAlreadyRecording
	}
	r.active = rec
	r.mu.Unlock()

	deadline := time.Duration(r.cfg.MaxDurationMS) * time.Millisecond
	rec.deadline = time.AfterFunc(deadline, func() {
		r.logger.Info("recording deadline reached", slog.Duration("deadline", deadline))
		rec.Stop()
	})

	go rec.consume()
	r.logger.Info("recording started", slog.Duration("deadline", deadline))
	return rec, nil
}

// Recording is one active-or-finalized capture session.
type Recording struct {
	recorder *Recorder
	stream   capture.Stream
	cfg      config.CaptureConfig
	deadline *time.Timer

	stopOnce sync.Once
	done     chan struct{}
	clip     Clip
	err      error
}

// Stop halts capture and releases the device. Safe to call multiple times
// and after the deadline fired.
func (rec *Recording) Stop() {
	rec.stopOnce.Do(func() {
		if rec.deadline != nil {
			rec.deadline.Stop()
		}
		rec.stream.Close()
	})
}

// Wait blocks until the recording is finalized and returns the clip. The
// chunk buffer is concatenated in delivery order and wrapped in a WAV
// container.
func (rec *Recording) Wait() (Clip, error) {
	<-rec.done
	return rec.clip, rec.err
}

func (rec *Recording) consume() {
	var chunks [][]byte
	for chunk := range rec.stream.Chunks() {
		chunks = append(chunks, chunk)
	}
	// The stream may have ended on its own (capture process exit); make
	// sure the device is released on that path too.
	rec.Stop()

	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	pcm := make([]byte, 0, total)
	for _, c := range chunks {
		pcm = append(pcm, c...)
	}

	if err := rec.stream.Err(); err != nil {
		rec.err = fmt.Errorf("capture stream: %w", err)
	} else if wavData, err := EncodePCM(pcm, rec.cfg.SampleRate, rec.cfg.Channels); err != nil {
		rec.err = fmt.Errorf("encode clip: %w", err)
	} else {
		bytesPerSecond := rec.cfg.SampleRate * rec.cfg.Channels * 2
		rec.clip = Clip{
			WAV:        wavData,
			PCM:        pcm,
			SampleRate: rec.cfg.SampleRate,
			Channels:   rec.cfg.Channels,
			Duration:   time.Duration(len(pcm)) * time.Second / time.Duration(bytesPerSecond),
		}
	}

	rec.recorder.mu.Lock()
	if rec.recorder.active == rec {
		rec.recorder.active = nil
	}
	rec.recorder.mu.Unlock()
	close(rec.done)
}
