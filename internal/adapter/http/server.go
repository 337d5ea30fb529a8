package http

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bnema/ytaudio/internal/adapter/http/middleware"
	"github.com/bnema/ytaudio/internal/adapter/http/ratelimit"
	"github.com/bnema/ytaudio/internal/adapter/http/templates"
	"github.com/bnema/ytaudio/internal/infrastructure/metrics"
)

type ServerConfig struct {
	Version           string
	Domain            string
	MaxBodyBytes      int64
	MaxAttempts       int
	MaxConcurrentJobs int
	RequestsPerSecond float64
	RequestBurst      int
	AuthMaxFailures   int
	AuthFailureWindow time.Duration
	AuthBlockDuration time.Duration
	BehindProxy       bool
	AllowedOrigins    []string
	HistoryEnabled    bool
	MetricsEnabled    bool
}

type Server struct {
	mux      *http.ServeMux
	handler  http.Handler
	handlers *Handlers
	authSvc  AuthService
	limiter  *ratelimit.FailureLimiter
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	cfg      ServerConfig
}

// NewServer wires the routes. gatherer may be nil, in which case /metrics
// is not mounted.
func NewServer(authSvc AuthService, jobs JobService, m *metrics.Metrics, gatherer prometheus.Gatherer, cfg ServerConfig) *Server {
	mux := http.NewServeMux()

	limiter := ratelimit.NewFailureLimiter(
		cfg.AuthMaxFailures,
		cfg.AuthFailureWindow,
		cfg.AuthBlockDuration,
	)

	handlers := NewHandlers(
		jobs,
		ratelimit.NewThrottle(cfg.RequestsPerSecond, cfg.RequestBurst),
		ratelimit.NewGate(cfg.MaxConcurrentJobs),
		m,
		cfg.MaxBodyBytes,
		templates.StatusData{
			Version:     cfg.Version,
			Domain:      cfg.Domain,
			MaxAttempts: cfg.MaxAttempts,
			History:     cfg.HistoryEnabled,
		},
	)

	s := &Server{
		mux:      mux,
		handlers: handlers,
		authSvc:  authSvc,
		limiter:  limiter,
		metrics:  m,
		gatherer: gatherer,
		cfg:      cfg,
	}

	s.registerRoutes()
	s.handler = middleware.SecurityHeaders(middleware.CORS(cfg.AllowedOrigins)(s.mux))

	return s
}

func (s *Server) protect(next http.HandlerFunc) http.HandlerFunc {
	return APIKeyMiddleware(s.authSvc, s.limiter, s.cfg.BehindProxy, s.metrics, next)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /{$}", s.handlers.StatusPage())
	s.mux.HandleFunc("GET /healthz", s.handlers.Health())

	s.mux.HandleFunc("POST /extract-audio", s.protect(s.handlers.ExtractAudio()))

	if s.cfg.HistoryEnabled {
		s.mux.HandleFunc("GET /jobs", s.protect(s.handlers.Jobs()))
	}

	if s.cfg.MetricsEnabled && s.gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
}

// Close stops background work owned by the server.
func (s *Server) Close() {
	s.limiter.Stop()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
