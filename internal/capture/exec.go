package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/mattn/go-shellwords"
	"github.com/soundcheck-ai/soundcheck/internal/config"
)

// execDevice spawns a capture command (arecord, sox, rec) and chunks the raw
// PCM it writes to stdout.
type execDevice struct {
	cmd        []string
	chunkBytes int
}

func NewExecDevice(cfg config.CaptureConfig) (Device, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse capture command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("capture command is empty")
	}
	chunkBytes := cfg.SampleRate * cfg.Channels * 2 * cfg.ChunkDurationMS / 1000
	if chunkBytes <= 0 {
		return nil, fmt.Errorf("capture chunk size must be positive")
	}
	return &execDevice{cmd: args, chunkBytes: chunkBytes}, nil
}

func (d *execDevice) Acquire(ctx context.Context) (Stream, error) {
	cmdCtx, cancel := context.WithCancel(ctx)
	command := exec.CommandContext(cmdCtx, d.cmd[0], d.cmd[1:]...)
	stdout, err := command.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("capture stdout pipe: %w", err)
	}

	if err := command.Start(); err != nil {
		cancel()
		if errors.Is(err, os.ErrPermission) {
			return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, d.cmd[0])
		}
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s not found", ErrDeviceUnavailable, d.cmd[0])
		}
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	s := &execStream{
		cancel: cancel,
		chunks: make(chan []byte, 16),
	}
	go s.pump(stdout, d.chunkBytes, command)
	return s, nil
}

type execStream struct {
	cancel context.CancelFunc
	chunks chan []byte
	mu     sync.Mutex
	err    error
	closed bool
}

func (s *execStream) pump(stdout io.Reader, chunkBytes int, command *exec.Cmd) {
	defer close(s.chunks)

	buf := make([]byte, chunkBytes)
	for {
		n, err := io.ReadFull(stdout, buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			s.chunks <- chunk
		}
		if err != nil {
			if err != io.EOF && err != io.ErrUnexpectedEOF {
				s.setErr(fmt.Errorf("read capture output: %w", err))
			}
			break
		}
	}
	// The command exits with an error when killed on Close; only a failure
	// before any data arrived signals a broken device.
	_ = command.Wait()
}

func (s *execStream) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil && !s.closed {
		s.err = err
	}
}

func (s *execStream) Chunks() <-chan []byte {
	return s.chunks
}

func (s *execStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	return nil
}

func (s *execStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
