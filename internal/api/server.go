package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/star/dopplertrack/internal/auth"
	"github.com/star/dopplertrack/internal/health"
	"github.com/star/dopplertrack/internal/metrics"
	"github.com/star/dopplertrack/internal/stream"
)

// Options configures the HTTP server.
type Options struct {
	Addr       string
	Auth       auth.Config
	TrustProxy bool // take the client IP from X-Forwarded-For / X-Real-IP
	Stream     stream.Config
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server for svc.
func NewServer(opts Options, logger *slog.Logger, svc *Service) *Server {
	mux := http.NewServeMux()

	// Register routes.
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(svc.Ready))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /api/v1/observation", observationHandler(logger, svc))
	mux.HandleFunc("GET /api/v1/passes/next", nextPassHandler(logger, svc))
	mux.HandleFunc("GET /api/v1/doppler", dopplerHandler(logger, svc))
	mux.HandleFunc("GET /api/v1/satellites", satellitesHandler(svc))
	mux.HandleFunc("GET /api/v1/satellites/{id}", satelliteHandler(logger, svc))

	ipOf := func(r *http.Request) string { return clientIP(r, opts.TrustProxy) }
	live := stream.NewHandler(svc.Estimator, svc.CarrierHz, svc.DefaultDT, opts.Stream, ipOf, logger)
	mux.HandleFunc("GET /api/v1/stream/doppler", live.HandleDoppler)

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(opts.Auth)(handler)
	handler = loggingMiddleware(logger, opts.TrustProxy)(handler)
	handler = metrics.Middleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              opts.Addr,
			Handler:           handler,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Handler returns the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// healthPath reports whether path is a health or readiness check that should not log at INFO.
func healthPath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if healthPath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", clientIP(r, trustProxy),
			)
		})
	}
}
