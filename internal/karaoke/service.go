package karaoke

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/loqalabs/loqa-karaoke/internal/bus"
	"github.com/loqalabs/loqa-karaoke/internal/protocol"
)

// Service feeds bus transcripts into the engine.
type Service struct {
	engine *Engine
	bus    *bus.Client
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	subs   []*nats.Subscription
}

// NewService bridges transcript subjects on the bus to engine.
func NewService(parent context.Context, engine *Engine, busClient *bus.Client, logger *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		engine: engine,
		bus:    busClient,
		logger: logger.With(slog.String("component", "karaoke.service")),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to partial and final transcripts and to session ends.
func (s *Service) Start() error {
	handlers := []struct {
		subject string
		handle  nats.MsgHandler
	}{
		{protocol.SubjectTranscriptPartial, s.handleTranscript},
		{protocol.SubjectTranscriptFinal, s.handleTranscript},
		{protocol.SubjectSessionEnd, s.handleSessionEnd},
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range handlers {
		sub, err := s.bus.Conn().Subscribe(h.subject, h.handle)
		if err != nil {
			s.drainLocked()
			return err
		}
		s.subs = append(s.subs, sub)
	}
	s.logger.Info("karaoke service subscribed",
		slog.String("partial", protocol.SubjectTranscriptPartial),
		slog.String("final", protocol.SubjectTranscriptFinal))
	return nil
}

// Close drains the subscriptions. The engine is left running.
func (s *Service) Close() {
	s.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drainLocked()
}

func (s *Service) drainLocked() {
	for _, sub := range s.subs {
		_ = sub.Drain()
	}
	s.subs = nil
}

// Healthy reports whether every subscription is live on a connected bus.
func (s *Service) Healthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs) == 3 && s.bus.Healthy()
}

func (s *Service) handleTranscript(msg *nats.Msg) {
	if s.ctx.Err() != nil {
		return
	}
	var transcript protocol.Transcript
	if err := json.Unmarshal(msg.Data, &transcript); err != nil {
		s.logger.Warn("karaoke failed to decode transcript", slogError(err))
		return
	}
	if transcript.SessionID == "" || transcript.Text == "" {
		return
	}
	s.engine.Handle(Utterance{
		SessionID: transcript.SessionID,
		Text:      transcript.Text,
		Final:     msg.Subject == protocol.SubjectTranscriptFinal && !transcript.Partial,
		At:        transcript.Timestamp,
	})
}

func (s *Service) handleSessionEnd(msg *nats.Msg) {
	var end protocol.SessionEnd
	if err := json.Unmarshal(msg.Data, &end); err != nil {
		s.logger.Warn("karaoke failed to decode session end", slogError(err))
		return
	}
	if end.SessionID != "" {
		s.engine.End(end.SessionID)
	}
}
