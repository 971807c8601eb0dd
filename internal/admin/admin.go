// Package admin is the local observability surface: a small HTTP
// listener exposing health, status, and Prometheus metrics. It is
// read-only and intended for localhost; nothing here mutates state.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const (
	readTimeout     = 10 * time.Second
	writeTimeout    = 30 * time.Second
	shutdownTimeout = 5 * time.Second
	checkTimeout    = 2 * time.Second
)

// SummaryCounter is the summary-store probe.
type SummaryCounter interface {
	Count(ctx context.Context) (int, error)
}

// CachePinger is the KV-cache probe.
type CachePinger interface {
	Ping(ctx context.Context) error
}

// Options configures the admin server. Nil probes are reported as
// "disabled" rather than failing the health check.
type Options struct {
	Addr      string
	Version   string
	Jobs      []string // registered job ids, for /status
	Summaries SummaryCounter
	Cache     CachePinger
	Metrics   http.Handler
	Logger    *slog.Logger
}

// Server is the admin HTTP listener.
type Server struct {
	opts      Options
	startedAt time.Time
	server    *http.Server
}

// New creates a Server; call Start to begin listening.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Server{opts: opts}
}

// Start binds the listen address and serves in the background. A bind
// failure is returned synchronously so startup can fail fast.
func (s *Server) Start(ctx context.Context) error {
	s.startedAt = time.Now()

	s.server = &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.router(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.opts.Addr)
	if err != nil {
		return errors.New("admin: listen failed: " + err.Error())
	}

	go func() {
		s.opts.Logger.Info("admin listening", "addr", s.opts.Addr)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.opts.Logger.Error("admin serve error", "error", err)
		}
	}()

	return nil
}

// Stop shuts the listener down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	s.opts.Logger.Info("admin shutting down")
	return s.server.Shutdown(shutdownCtx)
}

// router constructs the chi mux with all routes wired.
func (s *Server) router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth())
	r.Get("/status", s.handleStatus())
	if s.opts.Metrics != nil {
		r.Handle("/metrics", s.opts.Metrics)
	}

	return r
}

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status string `json:"status"` // "ok" or "degraded"
	Store  string `json:"store"`
	Cache  string `json:"cache"`
}

// handleHealth probes the summary store and the KV cache. Returns 200
// when every configured dependency answers, 503 otherwise.
func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), checkTimeout)
		defer cancel()

		resp := HealthResponse{Status: "ok", Store: "disabled", Cache: "disabled"}

		if s.opts.Summaries != nil {
			if _, err := s.opts.Summaries.Count(ctx); err != nil {
				resp.Store = err.Error()
				resp.Status = "degraded"
			} else {
				resp.Store = "ok"
			}
		}

		if s.opts.Cache != nil {
			if err := s.opts.Cache.Ping(ctx); err != nil {
				resp.Cache = err.Error()
				resp.Status = "degraded"
			} else {
				resp.Cache = "ok"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Status == "degraded" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Version   string    `json:"version"`
	StartedAt time.Time `json:"started_at"`
	UptimeSec int64     `json:"uptime_seconds"`
	Jobs      []string  `json:"jobs"`
}

func (s *Server) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			Version:   s.opts.Version,
			StartedAt: s.startedAt,
			UptimeSec: int64(time.Since(s.startedAt).Seconds()),
			Jobs:      s.opts.Jobs,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
