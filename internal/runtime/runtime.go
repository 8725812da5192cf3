package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/soundcheck-ai/soundcheck/internal/analysis"
	"github.com/soundcheck-ai/soundcheck/internal/bus"
	"github.com/soundcheck-ai/soundcheck/internal/coach"
	"github.com/soundcheck-ai/soundcheck/internal/config"
	"github.com/soundcheck-ai/soundcheck/internal/httpapi"
	"github.com/soundcheck-ai/soundcheck/internal/natsserver"
	"github.com/soundcheck-ai/soundcheck/internal/sessionstore"
	"github.com/soundcheck-ai/soundcheck/internal/stt"
	"github.com/soundcheck-ai/soundcheck/internal/timeline"
)

// Runtime assembles the processing service: telemetry, message bus,
// session store, timeline subscriber, and the HTTP API.
type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	natsServer  *natsserver.EmbeddedServer
	busClient   *bus.Client
	store       *sessionstore.Store
	timeline    *timeline.Service
	tracerClose func(context.Context) error
	ready       atomic.Bool
	wg          sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

// Start brings every component up, serves until ctx is cancelled, then
// shuts down in reverse order.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	if r.cfg.Bus.Embedded {
		server, err := natsserver.Start(r.cfg.Bus, r.logger)
		if err != nil {
			return fmt.Errorf("failed to start embedded bus: %w", err)
		}
		r.natsServer = server
	}

	busClient, err := bus.Connect(r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to bus: %w", err)
	}
	r.busClient = busClient

	store, err := sessionstore.Open(ctx, r.cfg.SessionStore, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	r.store = store
	if err := store.Prune(ctx); err != nil {
		r.logger.Warn("session store prune failed", slog.String("error", err.Error()))
	}

	r.timeline = timeline.NewService(ctx, busClient, store, r.logger)
	if err := r.timeline.Start(); err != nil {
		return fmt.Errorf("failed to start timeline: %w", err)
	}

	recognizer, err := stt.NewRecognizer(r.cfg.STT)
	if err != nil {
		return fmt.Errorf("failed to build recognizer: %w", err)
	}

	var tipGenerator coach.Generator
	if r.cfg.Coach.Enabled {
		tipGenerator, err = coach.NewGenerator(r.cfg.Coach)
		if err != nil {
			return fmt.Errorf("failed to build coach: %w", err)
		}
	}

	handler := httpapi.NewHandler(httpapi.Deps{
		Logger:     r.logger,
		Recognizer: recognizer,
		Analyzer:   analysis.New(r.cfg.Analysis),
		Coach:      tipGenerator,
		Publisher:  busClient,
		Store:      store,
		Metrics:    httpapi.NewMetrics(prometheus.DefaultRegisterer),
	})

	mux := http.NewServeMux()
	handler.Routes(mux)
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	if metricHandler != nil {
		mux.Handle("/metrics", metricHandler)
	}

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	r.ready.Store(true)
	r.logger.Info("runtime started",
		slog.String("addr", addr),
		slog.Bool("embedded_bus", r.cfg.Bus.Embedded),
		slog.Bool("coach_enabled", r.cfg.Coach.Enabled))

	<-ctx.Done()
	r.ready.Store(false)
	r.logger.Info("runtime stopping")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	r.timeline.Close()
	r.busClient.Close()
	if r.natsServer != nil {
		r.natsServer.Shutdown()
	}
	if err := r.store.Close(); err != nil {
		r.logger.Error("session store close error", slog.String("error", err.Error()))
	}
	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() && r.busClient.Healthy() && r.timeline.Healthy() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
