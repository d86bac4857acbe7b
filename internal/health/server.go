// Package health provides the HTTP endpoints of the pinger service: health
// checks, Prometheus metrics, pprof and websocket ping sessions.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/postalsys/pinger/internal/icmp"
	"github.com/postalsys/pinger/internal/logging"
	"github.com/postalsys/pinger/internal/metrics"
	"github.com/postalsys/pinger/internal/session"
	"github.com/postalsys/pinger/internal/sysinfo"
)

// StatsProvider provides service statistics.
type StatsProvider interface {
	// IsRunning returns true if the service is running.
	IsRunning() bool

	// Stats returns service statistics.
	Stats() Stats
}

// Stats contains service health statistics.
type Stats struct {
	OpenSockets    int `json:"open_sockets"`
	ActiveSessions int `json:"active_sessions"`
}

// ServerConfig contains health server configuration.
type ServerConfig struct {
	// Address to listen on (e.g., ":8080")
	Address string

	// ReadTimeout for HTTP reads
	ReadTimeout time.Duration

	// WriteTimeout for HTTP writes. Websocket sessions are exempt.
	WriteTimeout time.Duration

	// MaxSessions caps concurrent websocket ping sessions. Zero means no cap.
	MaxSessions int

	// MetricsEnabled mounts /metrics.
	MetricsEnabled bool

	// Defaults fill fields a websocket client leaves out.
	Defaults session.Options
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Address:        ":8080",
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxSessions:    64,
		MetricsEnabled: true,
		Defaults:       session.DefaultOptions(""),
	}
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logging.Component(logger, "health")
	}
}

// WithMetrics records websocket and session metrics into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithGatherer serves /metrics from g instead of the default registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// Server is an HTTP server for health check endpoints.
type Server struct {
	cfg      ServerConfig
	provider StatsProvider
	mgr      *icmp.Manager
	logger   *slog.Logger
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer

	server   *http.Server
	listener net.Listener
	running  atomic.Bool

	// ctx is cancelled on Stop to end websocket sessions, which
	// http.Server.Shutdown does not track.
	ctx      context.Context
	cancel   context.CancelFunc
	wsActive atomic.Int64
}

// NewServer creates a new health check server. Websocket ping sessions
// probe through mgr; a nil mgr disables /ping.
func NewServer(cfg ServerConfig, provider StatsProvider, mgr *icmp.Manager, opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:      cfg,
		provider: provider,
		mgr:      mgr,
		logger:   logging.Component(nil, "health"),
		gatherer: prometheus.DefaultGatherer,
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/ready", s.handleReady)
	mux.HandleFunc("/ping", s.handlePingWebSocket)

	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	// pprof debug endpoints
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	s.server = &http.Server{
		Addr:         cfg.Address,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

// Start starts the health check server.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return err
	}
	s.listener = ln
	s.running.Store(true)

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("health server stopped", logging.KeyError, err)
		}
	}()

	s.logger.Info("health server listening", logging.KeyAddress, ln.Addr().String())
	return nil
}

// Stop ends websocket sessions and shuts the server down.
func (s *Server) Stop() error {
	if !s.running.Swap(false) {
		return nil
	}
	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// Address returns the server's listen address.
func (s *Server) Address() net.Addr {
	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	return s.running.Load()
}

// Handler returns the HTTP handler for embedding in other servers.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// handleHealth handles the basic health check endpoint.
// Returns 200 if the server is responding.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK\n"))
}

// handleHealthz returns 200 with JSON stats if healthy, 503 if not running.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if s.provider == nil || !s.provider.IsRunning() {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "unavailable",
			"running": false,
		})
		return
	}

	stats := s.provider.Stats()
	response := map[string]interface{}{
		"status":             "healthy",
		"running":            true,
		"open_sockets":       stats.OpenSockets,
		"active_sessions":    stats.ActiveSessions,
		"websocket_sessions": s.wsActive.Load(),
		"version":            sysinfo.Version,
		"uptime_seconds":     sysinfo.UptimeSeconds(),
		"icmp":               sysinfo.CheckICMP(),
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// handleReady handles the readiness probe endpoint.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/plain")

	if s.provider == nil || !s.provider.IsRunning() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("NOT READY\n"))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("READY\n"))
}
