// Package api serves the monitoring control surface over HTTP and WebSocket.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mikeyg42/plantwatch/internal/events"
	"github.com/mikeyg42/plantwatch/internal/metrics"
	"github.com/mikeyg42/plantwatch/internal/monitor"
	"github.com/mikeyg42/plantwatch/internal/report"
)

// Controller is the monitoring service as seen by the API.
type Controller interface {
	Start(ctx context.Context, exprs []string) bool
	Stop()
	Status() monitor.Status
	LatestResults() []report.Result
}

// Subscriber supplies the event stream for /ws.
type Subscriber interface {
	Subscribe(name string, buffer int) (<-chan events.Event, func())
}

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

type Config struct {
	Addr           string
	AllowedOrigins []string
	RateLimit      float64
	RateBurst      int
}

// Server is an HTTP API server
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	ctl        Controller
	hub        Subscriber
	limiter    *RateLimiter
	origins    map[string]bool
	checks     map[string]HealthCheck
	logger     *zap.Logger

	// baseCtx is cancelled by Shutdown so open WebSocket streams end.
	baseCtx    context.Context
	baseCancel context.CancelFunc
}

// NewServer registers every route. hub and m may be nil.
func NewServer(cfg Config, ctl Controller, hub Subscriber, m *metrics.Metrics) *Server {
	mux := http.NewServeMux()
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		mux:        mux,
		ctl:        ctl,
		hub:        hub,
		limiter:    NewRateLimiter(cfg.RateLimit, cfg.RateBurst),
		origins:    make(map[string]bool, len(cfg.AllowedOrigins)),
		checks:     make(map[string]HealthCheck),
		logger:     zap.L().Named("api"),
		baseCtx:    ctx,
		baseCancel: cancel,
	}
	for _, o := range cfg.AllowedOrigins {
		s.origins[o] = true
	}

	mux.HandleFunc("/api/monitoring/start", s.limiter.Middleware(s.handleStart))
	mux.HandleFunc("/api/monitoring/stop", s.limiter.Middleware(s.handleStop))
	mux.HandleFunc("/api/monitoring", s.handleStatus)
	mux.HandleFunc("/api/results/latest", s.handleLatest)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/ws", s.handleEvents)
	mux.Handle("/metrics", m.Handler())

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.corsMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	return s
}

func (s *Server) WithLogger(l *zap.Logger) *Server {
	if l != nil {
		s.logger = l
	}
	return s
}

// WithHealthCheck adds a dependency to /api/health.
func (s *Server) WithHealthCheck(name string, check HealthCheck) *Server {
	if check != nil {
		s.checks[name] = check
	}
	return s
}

// Handler returns the root handler, CORS included.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// corsMiddleware adds CORS headers for whitelisted origins ("*" allows all).
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if origin != "" && (s.origins[origin] || s.origins["*"]) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Start starts the API server
func (s *Server) Start() error {
	s.logger.Info("Starting API server", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// StartInBackground starts the server in a goroutine
func (s *Server) StartInBackground() {
	go func() {
		if err := s.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", zap.Error(err))
		}
	}()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")
	s.baseCancel()
	s.limiter.Stop()
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
