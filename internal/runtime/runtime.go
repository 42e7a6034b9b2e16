package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/keepsakelabs/keepsake-core/internal/config"
	"github.com/keepsakelabs/keepsake-core/internal/eventstore"
	"github.com/keepsakelabs/keepsake-core/internal/session"
)

// Deps are the runtime's observable collaborators: the session state machine
// for the snapshot endpoint, the timeline store for session history, the
// websocket feed handler, and any health checks that gate readiness.
type Deps struct {
	Session *session.Session
	Store   *eventstore.Store
	Feed    http.Handler
	Healthy []func() bool
}

type Runtime struct {
	cfg         config.Config
	deps        Deps
	logger      *slog.Logger
	httpServer  *http.Server
	tracerClose func(context.Context) error
	ready       atomic.Bool
	wg          sync.WaitGroup
}

func New(cfg config.Config, deps Deps, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
	}
}

// Start brings up telemetry and the HTTP surface, then blocks until ctx is
// cancelled and everything has shut down.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}
	if r.deps.Session != nil {
		mux.HandleFunc("/session", r.handleSession)
		mux.HandleFunc("/session/events", r.handleSessionEvents)
	}
	if r.deps.Feed != nil {
		mux.Handle("/session/feed", r.deps.Feed)
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
	r.logger.Info("runtime started", slog.String("addr", addr))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

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
	ready := r.ready.Load()
	for _, check := range r.deps.Healthy {
		ready = ready && check()
	}
	if ready {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}

func (r *Runtime) handleSession(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(r.deps.Session.Snapshot()); err != nil {
		r.logger.Warn("failed to encode session snapshot", slog.String("error", err.Error()))
	}
}

func (r *Runtime) handleSessionEvents(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := 100
	if raw := req.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	events, err := r.deps.Store.ListSessionEvents(req.Context(), r.deps.Session.ID(), limit)
	if err != nil {
		r.logger.Warn("failed to list session events", slog.String("error", err.Error()))
		http.Error(w, "event store error", http.StatusInternalServerError)
		return
	}
	type eventView struct {
		Type       string          `json:"type"`
		PhotoIndex int             `json:"photo_index"`
		Turn       int             `json:"turn"`
		DeviceID   string          `json:"device_id,omitempty"`
		Payload    json.RawMessage `json:"payload,omitempty"`
		CreatedAt  time.Time       `json:"created_at"`
	}
	views := make([]eventView, 0, len(events))
	for _, e := range events {
		views = append(views, eventView{
			Type:       e.Type,
			PhotoIndex: e.PhotoIndex,
			Turn:       e.Turn,
			DeviceID:   e.DeviceID,
			Payload:    e.Payload,
			CreatedAt:  e.CreatedAt,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(views); err != nil {
		r.logger.Warn("failed to encode session events", slog.String("error", err.Error()))
	}
}
