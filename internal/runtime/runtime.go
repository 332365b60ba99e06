package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/loqalabs/loqa-karaoke/internal/bus"
	"github.com/loqalabs/loqa-karaoke/internal/config"
	"github.com/loqalabs/loqa-karaoke/internal/corpus"
	"github.com/loqalabs/loqa-karaoke/internal/display"
	"github.com/loqalabs/loqa-karaoke/internal/eventstore"
	"github.com/loqalabs/loqa-karaoke/internal/gateway"
	"github.com/loqalabs/loqa-karaoke/internal/index"
	"github.com/loqalabs/loqa-karaoke/internal/karaoke"
	"github.com/loqalabs/loqa-karaoke/internal/match"
	"github.com/loqalabs/loqa-karaoke/internal/natsserver"
)

type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	tracerClose func(context.Context) error
	ready       atomic.Bool

	nats    *natsserver.EmbeddedServer
	bus     *bus.Client
	store   *eventstore.Store
	hub     *gateway.Hub
	engine  *karaoke.Engine
	service *karaoke.Service
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

// Start brings the service up and blocks until ctx is cancelled or the HTTP
// server fails.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tel, err := setupTelemetry(ctx, r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = tel.Shutdown
	defer r.closeTelemetry()

	if err := r.setup(ctx); err != nil {
		r.teardown()
		return err
	}
	defer r.teardown()

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r.routes(tel.metrics),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		r.ready.Store(false)
		r.logger.Info("runtime stopping")
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()
		if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("http shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	r.ready.Store(true)
	r.logger.Info("runtime started", slog.String("addr", addr))

	return g.Wait()
}

// setup brings up the bus, event store and karaoke engine in dependency order.
func (r *Runtime) setup(ctx context.Context) error {
	ns, err := natsserver.Start(r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("start embedded nats: %w", err)
	}
	r.nats = ns

	busCfg := r.cfg.Bus
	if url := ns.ClientURL(); url != "" {
		busCfg.Servers = []string{url}
	}
	r.bus, err = bus.Connect(ctx, busCfg, r.logger)
	if err != nil {
		return fmt.Errorf("connect bus: %w", err)
	}

	r.store, err = eventstore.Open(ctx, r.cfg.EventStore, r.logger)
	if err != nil {
		return fmt.Errorf("open event store: %w", err)
	}
	if err := r.store.Ensure(); err != nil {
		return fmt.Errorf("event store: %w", err)
	}

	det := loadDetector(r.cfg.Karaoke, r.logger)

	var surface display.Chain
	if r.cfg.Gateway.Enabled {
		r.hub = gateway.NewHub(r.cfg.Gateway, r.logger)
		surface = append(surface, r.hub)
	}
	surface = append(surface, display.NewBusPublisher(r.bus))

	r.engine = karaoke.New(ctx, det, surface, r.logger,
		karaoke.WithTimings(karaoke.TimingsFromConfig(r.cfg.Karaoke)),
		karaoke.WithRecorder(r.store),
	)
	r.service = karaoke.NewService(ctx, r.engine, r.bus, r.logger)
	if err := r.service.Start(); err != nil {
		return fmt.Errorf("start karaoke service: %w", err)
	}
	return nil
}

// loadDetector builds the matcher over the configured corpus. A corpus that
// fails to load leaves the service running with no songs.
func loadDetector(cfg config.KaraokeConfig, logger *slog.Logger) *match.Detector {
	c, err := corpus.Load(cfg.CorpusPath)
	if err == nil {
		err = corpus.Validate(c)
	}
	if err != nil {
		logger.Error("failed to load song corpus, serving empty corpus",
			slog.String("path", cfg.CorpusPath),
			slog.String("error", err.Error()))
		c = &corpus.Corpus{}
	}
	idx := index.Build(c)
	st := idx.Stats()
	logger.Info("song corpus loaded",
		slog.Int("songs", st.Songs),
		slog.Int("categories", st.Categories),
		slog.Int("title_words", st.TitleWords))
	return match.NewDetector(idx,
		match.WithPriority(cfg.PriorityTitles),
		match.WithTitleWordRatio(cfg.TitleWordRatio),
		match.WithPrefixRatio(cfg.PrefixRatio),
		match.WithProgressSample(cfg.ProgressSample),
	)
}

func (r *Runtime) teardown() {
	if r.service != nil {
		r.service.Close()
		r.service = nil
	}
	if r.engine != nil {
		r.engine.Close()
		r.engine = nil
	}
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			r.logger.Error("event store close error", slog.String("error", err.Error()))
		}
		r.store = nil
	}
	if r.bus != nil {
		r.bus.Close()
		r.bus = nil
	}
	if r.nats != nil {
		r.nats.Shutdown()
		r.nats = nil
	}
}

func (r *Runtime) closeTelemetry() {
	if r.tracerClose == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.tracerClose(ctx); err != nil {
		r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
	}
}

func (r *Runtime) routes(metricsHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	mux.HandleFunc("/stats/songs", r.handleTopSongs)
	mux.HandleFunc("GET /sessions/{id}/events", r.handleSessionEvents)
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}
	if r.hub != nil && r.engine != nil {
		mux.Handle(r.cfg.Gateway.Path, r.hub.Handler(r.engine))
	}
	return mux
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() && (r.service == nil || r.service.Healthy()) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}

// handleSessionEvents serves the recorded timeline of one session.
func (r *Runtime) handleSessionEvents(w http.ResponseWriter, req *http.Request) {
	type event struct {
		Type      string          `json:"type"`
		TraceID   string          `json:"trace_id"`
		Payload   json.RawMessage `json:"payload,omitempty"`
		CreatedAt time.Time       `json:"created_at"`
	}
	out := []event{}
	if r.store != nil {
		events, err := r.store.ListSessionEvents(req.Context(), req.PathValue("id"), 200)
		if err != nil {
			r.logger.Error("session events query failed", slog.String("error", err.Error()))
			http.Error(w, "events unavailable", http.StatusInternalServerError)
			return
		}
		for _, evt := range events {
			e := event{Type: evt.Type, TraceID: evt.TraceID, CreatedAt: evt.CreatedAt}
			if json.Valid(evt.Payload) {
				e.Payload = evt.Payload
			}
			out = append(out, e)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"events": out})
}

// handleTopSongs serves GET /stats/songs?limit=N from the event store.
func (r *Runtime) handleTopSongs(w http.ResponseWriter, req *http.Request) {
	limit := 10
	if v := req.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, 100)
	}
	songs := []eventstore.SongCount{}
	if r.store != nil {
		top, err := r.store.TopSongs(req.Context(), limit)
		if err != nil {
			r.logger.Error("top songs query failed", slog.String("error", err.Error()))
			http.Error(w, "stats unavailable", http.StatusInternalServerError)
			return
		}
		songs = append(songs, top...)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"songs": songs})
}
