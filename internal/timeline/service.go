package timeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/soundcheck-ai/soundcheck/internal/bus"
	"github.com/soundcheck-ai/soundcheck/internal/protocol"
	"github.com/soundcheck-ai/soundcheck/internal/sessionstore"
)

// Service records pipeline events from the bus into the session store so
// practice history survives the daemon process.
type Service struct {
	bus    *bus.Client
	store  *sessionstore.Store
	logger *slog.Logger
	subs   []*nats.Subscription
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewService(parent context.Context, busClient *bus.Client, store *sessionstore.Store, logger *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		bus:    busClient,
		store:  store,
		logger: logger.With(slog.String("component", "timeline")),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *Service) Start() error {
	subjects := []string{
		protocol.SubjectSessionStarted,
		protocol.SubjectTranscriptFinal,
		protocol.SubjectResultReady,
	}
	for _, subject := range subjects {
		sub, err := s.bus.Conn().Subscribe(subject, s.handleEvent)
		if err != nil {
			for _, prev := range s.subs {
				_ = prev.Drain()
			}
			return err
		}
		s.subs = append(s.subs, sub)
	}
	return nil
}

func (s *Service) Close() {
	s.cancel()
	for _, sub := range s.subs {
		_ = sub.Drain()
	}
	s.wg.Wait()
}

func (s *Service) Healthy() bool {
	return len(s.subs) == 3
}

func (s *Service) handleEvent(msg *nats.Msg) {
	sessionID := sessionIDFromPayload(msg.Data)
	if sessionID == "" {
		s.logger.Warn("event without session id", slog.String("subject", msg.Subject))
		return
	}

	payload := make([]byte, len(msg.Data))
	copy(payload, msg.Data)
	subject := msg.Subject

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// Subjects arrive on separate subscriptions, so cross-subject order
		// is not guaranteed; make the session row exist for every event.
		if err := s.store.AppendSession(s.ctx, sessionID); err != nil {
			s.logger.Warn("failed to record session", slogError(err))
			return
		}
		if err := s.store.AppendEvent(s.ctx, sessionstore.Event{
			SessionID: sessionID,
			Type:      subject,
			Payload:   payload,
		}); err != nil {
			s.logger.Warn("failed to record event", slogError(err))
		}
	}()
}

func sessionIDFromPayload(data []byte) string {
	var envelope struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return ""
	}
	return envelope.SessionID
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
