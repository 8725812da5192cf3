package capture

import (
	"context"
	"sync"
	"time"
)

// MockDevice emits synthetic PCM chunks on a fixed cadence. Used by tests
// and by capture.mode=mock for machines without a microphone.
type MockDevice struct {
	// ChunkData is the payload repeated for every chunk. A two-byte zero
	// sample when empty.
	ChunkData []byte
	// Interval between chunks. Defaults to 10ms.
	Interval time.Duration
	// AcquireErr, when set, is returned from Acquire to simulate a denied
	// or missing device.
	AcquireErr error
	// MaxChunks stops emission after this many chunks when > 0.
	MaxChunks int
}

func NewMockDevice() *MockDevice {
	return &MockDevice{}
}

func (d *MockDevice) Acquire(ctx context.Context) (Stream, error) {
	if d.AcquireErr != nil {
		return nil, d.AcquireErr
	}

	data := d.ChunkData
	if len(data) == 0 {
		data = []byte{0, 0}
	}
	interval := d.Interval
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}

	s := &mockStream{
		chunks: make(chan []byte),
		done:   make(chan struct{}),
	}
	go func() {
		defer close(s.chunks)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		sent := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case <-ticker.C:
				chunk := make([]byte, len(data))
				copy(chunk, data)
				select {
				case s.chunks <- chunk:
					sent++
				case <-s.done:
					return
				case <-ctx.Done():
					return
				}
				if d.MaxChunks > 0 && sent >= d.MaxChunks {
					return
				}
			}
		}
	}()
	return s, nil
}

type mockStream struct {
	chunks chan []byte
	done   chan struct{}
	once   sync.Once
}

func (s *mockStream) Chunks() <-chan []byte { return s.chunks }

func (s *mockStream) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

func (s *mockStream) Err() error { return nil }
