// Package karaoke runs the per-user karaoke sessions: menu navigation by
// voice, song detection and word-by-word lyric tracking.
package karaoke

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/loqalabs/loqa-karaoke/internal/config"
	"github.com/loqalabs/loqa-karaoke/internal/display"
	"github.com/loqalabs/loqa-karaoke/internal/eventstore"
	"github.com/loqalabs/loqa-karaoke/internal/match"
)

const tracerName = "github.com/loqalabs/loqa-karaoke/karaoke"

// Utterance is one transcription event.
type Utterance struct {
	SessionID string
	Text      string
	Final     bool
	At        time.Time
}

// Outcome classifies what an utterance did to its session.
type Outcome string

const (
	OutcomeIgnored       Outcome = "ignored"
	OutcomeDuplicate     Outcome = "duplicate"
	OutcomeBusy          Outcome = "busy"
	OutcomeMenu          Outcome = "menu"
	OutcomeSongStarted   Outcome = "song_started"
	OutcomeCommand       Outcome = "command"
	OutcomeSearchPending Outcome = "search_pending"
	OutcomeNoMatch       Outcome = "no_match"
	OutcomeCaption       Outcome = "caption"
	OutcomeLyric         Outcome = "lyric"
	OutcomeError         Outcome = "error"
)

// Timings are the session clock constants.
type Timings struct {
	DuplicateWindow time.Duration
	Coalesce        time.Duration // zero renders lyric lines immediately
	SearchDelay     time.Duration
	ScrollInterval  time.Duration
	Temporary       time.Duration
	PageSize        int
}

// DefaultTimings returns the timings of the default configuration.
func DefaultTimings() Timings {
	return TimingsFromConfig(config.Default().Karaoke)
}

// TimingsFromConfig converts the millisecond settings of cfg.
func TimingsFromConfig(cfg config.KaraokeConfig) Timings {
	ms := func(v int) time.Duration { return time.Duration(v) * time.Millisecond }
	return Timings{
		DuplicateWindow: ms(cfg.DuplicateWindowMS),
		Coalesce:        ms(cfg.CoalesceMS),
		SearchDelay:     ms(cfg.SearchDelayMS),
		ScrollInterval:  ms(cfg.ScrollIntervalMS),
		Temporary:       ms(cfg.TemporaryMS),
		PageSize:        cfg.PageSize,
	}
}

// Recorder persists session timeline events. *eventstore.Store satisfies it.
type Recorder interface {
	AppendSession(ctx context.Context, sessionID, actorID, privacy string) error
	AppendEvent(ctx context.Context, evt eventstore.Event) error
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimings overrides the session clock. A non-positive page size keeps the default.
func WithTimings(t Timings) Option {
	return func(e *Engine) {
		if t.PageSize <= 0 {
			t.PageSize = DefaultTimings().PageSize
		}
		e.timings = t
	}
}

// WithRecorder records session and song events to r.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithMeter records engine metrics on m instead of the global meter.
func WithMeter(m metric.Meter) Option {
	return func(e *Engine) { e.meter = m }
}

// WithTracerProvider takes spans from tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) { e.tracer = tp.Tracer(tracerName) }
}

// Engine owns every live session. Sessions share the detector and index
// read-only and are otherwise independent.
type Engine struct {
	ctx      context.Context
	det      *match.Detector
	lyrics   *match.LyricMatcher
	surface  display.Surface
	timings  Timings
	recorder Recorder
	meter    metric.Meter
	metrics  *metrics
	tracer   trace.Tracer
	logger   *slog.Logger
	now      func() time.Time
	after    func(time.Duration, func()) stopFunc

	mu       sync.Mutex
	sessions map[string]*session
	stopped  bool

	qmu     sync.RWMutex
	qclosed bool
	events  chan eventstore.Event
	wg      sync.WaitGroup
}

// New creates an engine that renders to surface. ctx bounds timeline writes
// and is the parent of every span the engine starts.
func New(ctx context.Context, det *match.Detector, surface display.Surface, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		ctx:      ctx,
		det:      det,
		lyrics:   match.NewLyricMatcher(det.Index()),
		surface:  surface,
		timings:  DefaultTimings(),
		tracer:   otel.Tracer(tracerName),
		logger:   logger.With(slog.String("component", "karaoke")),
		now:      time.Now,
		after:    func(d time.Duration, f func()) stopFunc { return time.AfterFunc(d, f).Stop },
		sessions: make(map[string]*session),
		events:   make(chan eventstore.Event, 256),
	}
	for _, opt := range opts {
		opt(e)
	}
	m, err := newMetrics(e.meter)
	if err != nil {
		e.logger.Warn("karaoke metrics disabled", slogError(err))
		m = noopMetrics()
	}
	e.metrics = m
	e.wg.Add(1)
	go e.writeEvents()
	return e
}

// Open makes sure sessionID exists; a new session starts on the scrolling menu.
func (e *Engine) Open(sessionID string) {
	e.session(sessionID)
}

// Sessions reports how many sessions are live.
func (e *Engine) Sessions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

// Snapshot returns the state of sessionID, waiting for any in-flight event.
func (e *Engine) Snapshot(sessionID string) (Snapshot, bool) {
	e.mu.Lock()
	s, ok := e.sessions[sessionID]
	e.mu.Unlock()
	if !ok {
		return Snapshot{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(), true
}

func (e *Engine) session(id string) *session {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return nil
	}
	if s, ok := e.sessions[id]; ok {
		e.mu.Unlock()
		return s
	}
	s := newSession(id)
	s.mu.Lock()
	e.sessions[id] = s
	e.mu.Unlock()

	defer s.mu.Unlock()
	defer e.recoverTimer(s)
	e.metrics.sessions.Add(e.ctx, 1)
	e.record(e.ctx, id, eventstore.TypeSessionStarted, nil)
	e.logger.Info("karaoke session opened", slog.String("session_id", id))
	e.startScroll(s)
	return s
}

// End cancels the session's timers and forgets it.
func (e *Engine) End(sessionID string) {
	e.mu.Lock()
	s, ok := e.sessions[sessionID]
	delete(e.sessions, sessionID)
	e.mu.Unlock()
	if !ok {
		return
	}
	s.mu.Lock()
	s.closed = true
	s.cancelTimers()
	s.mu.Unlock()

	e.metrics.sessions.Add(e.ctx, -1)
	e.record(e.ctx, sessionID, eventstore.TypeSessionEnded, nil)
	e.logger.Info("karaoke session closed", slog.String("session_id", sessionID))
}

// Close ends every session and flushes pending timeline events.
func (e *Engine) Close() {
	e.mu.Lock()
	e.stopped = true
	ids := make([]string, 0, len(e.sessions))
	for id := range e.sessions {
		ids = append(ids, id)
	}
	e.mu.Unlock()
	for _, id := range ids {
		e.End(id)
	}

	e.qmu.Lock()
	if !e.qclosed {
		e.qclosed = true
		close(e.events)
	}
	e.qmu.Unlock()
	e.wg.Wait()
}

// Handle processes one utterance. Utterances arriving while the session is
// busy are dropped, except "menu", which waits its turn and resets.
func (e *Engine) Handle(u Utterance) (out Outcome) {
	text := strings.TrimSpace(u.Text)
	if text == "" {
		return OutcomeIgnored
	}
	if u.At.IsZero() {
		u.At = e.now()
	}
	s := e.session(u.SessionID)
	if s == nil {
		return OutcomeIgnored
	}
	ctx, span := e.tracer.Start(e.ctx, "karaoke.handle", trace.WithAttributes(
		attribute.String("session_id", s.id),
		attribute.Bool("final", u.Final),
	))
	defer func() {
		e.metrics.outcome(e.ctx, out)
		span.SetAttributes(attribute.String("outcome", string(out)))
		if out == OutcomeError {
			span.SetStatus(codes.Error, "utterance failed")
		}
		span.End()
	}()

	menu := containsFold(text, "menu")
	if menu {
		s.mu.Lock()
	} else if !s.mu.TryLock() {
		e.logger.Debug("utterance dropped while session busy", slog.String("session_id", s.id))
		return OutcomeBusy
	}
	defer s.mu.Unlock()
	defer e.recoverUtterance(s, &out)

	if s.closed {
		return OutcomeIgnored
	}
	span.SetAttributes(attribute.String("state", s.state.String()))
	if menu {
		s.lastText, s.lastAt = text, u.At
		e.resetToMenu(s)
		return OutcomeMenu
	}
	if text == s.lastText && u.At.Sub(s.lastAt) < e.timings.DuplicateWindow {
		return OutcomeDuplicate
	}
	s.lastText, s.lastAt = text, u.At

	out, err := e.dispatch(ctx, s, text, u.Final)
	if err != nil {
		span.RecordError(err)
		e.fail(s, err)
		return OutcomeError
	}
	return out
}

// record queues a timeline event tagged with the trace of the span in ctx,
// or a fresh id when ctx carries none.
func (e *Engine) record(ctx context.Context, sessionID, eventType string, payload any) {
	if e.recorder == nil {
		return
	}
	evt := eventstore.Event{
		SessionID: sessionID,
		TraceID:   traceID(ctx),
		ActorID:   "karaoke",
		Type:      eventType,
		Privacy:   "session",
		CreatedAt: e.now().UTC(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			e.logger.Warn("failed to encode timeline event", slogError(err))
			return
		}
		evt.Payload = data
	}

	e.qmu.RLock()
	defer e.qmu.RUnlock()
	if e.qclosed {
		return
	}
	select {
	case e.events <- evt:
	default:
		e.logger.Warn("timeline queue full, event dropped", slog.String("type", eventType))
	}
}

func (e *Engine) writeEvents() {
	defer e.wg.Done()
	ctx := context.WithoutCancel(e.ctx)
	for evt := range e.events {
		if err := e.recorder.AppendSession(ctx, evt.SessionID, evt.ActorID, evt.Privacy); err != nil {
			e.logger.Warn("failed to append session", slogError(err))
			continue
		}
		if err := e.recorder.AppendEvent(ctx, evt); err != nil {
			e.logger.Warn("failed to append timeline event", slogError(err))
		}
	}
}

func traceID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return uuid.NewString()
}

func containsFold(text, word string) bool {
	return strings.Contains(strings.ToLower(text), word)
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
