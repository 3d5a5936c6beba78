package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marmos91/dittostore/internal/logger"
	"github.com/marmos91/dittostore/pkg/api/handlers"
)

// NewRouter creates the chi router of the read-only repository browser.
//
// Routes:
//   - GET /health - Liveness probe
//   - GET /health/repos - Repository health
//   - GET /metrics - Prometheus metrics, when gatherer is not nil
//   - GET /api/v1/repos/{idx}/list - List a repository path
//   - GET /api/v1/repos/{idx}/info - Info on a repository path
//   - GET /api/v1/repos/{idx}/file - Download a repository file
func NewRouter(repos handlers.RepoSource, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	healthHandler := handlers.NewHealthHandler(repos)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/repos", healthHandler.Repos)
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	repoHandler := handlers.NewRepoHandler(repos)
	r.Route("/api/v1/repos/{idx}", func(r chi.Router) {
		// Downloads may stream for a long time, listings may not.
		r.With(middleware.Timeout(30*time.Second)).Get("/list", repoHandler.List)
		r.With(middleware.Timeout(30*time.Second)).Get("/info", repoHandler.Info)
		r.Get("/file", repoHandler.File)
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	return r
}

// requestLogger logs requests using the internal logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("API request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Info("API request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			logger.KeyDurationMs, logger.Duration(start),
		)
	})
}
