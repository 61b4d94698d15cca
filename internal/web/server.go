// Package web provides the HTTP server and handlers for the expense
// dataset API.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/keihiworks/keihi/internal/config"
	"github.com/keihiworks/keihi/internal/core"
	mw "github.com/keihiworks/keihi/internal/web/middleware"
)

// VersionProber reports the storage engine version, for the /test-db
// probe endpoint.
type VersionProber interface {
	Version(ctx context.Context) (string, error)
}

// Server is the HTTP server for the expense dataset API.
type Server struct {
	service *core.Service
	prober  VersionProber
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server
}

// NewServer wires routes and middleware around the service.
func NewServer(service *core.Service, prober VersionProber, cfg *config.Config) *Server {
	s := &Server{
		service: service,
		prober:  prober,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures the middleware stack for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(chimw.RealIP)
	s.router.Use(mw.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Compress(5))

	// The original paths are reachable with and without a trailing
	// slash; StripSlashes folds them together.
	s.router.Use(chimw.StripSlashes)
	s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))

	s.router.Use(securityHeaders)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

// setupRoutes configures all HTTP routes. Static paths are registered
// before the {datasetID} wildcard so download_all_csv and friends are
// never captured as dataset ids.
func (s *Server) setupRoutes() {
	s.router.Get("/", s.handleRoot)
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/test-db", s.handleTestDB)

	s.router.Route("/api/expenses", func(r chi.Router) {
		r.Use(mw.BasicAuth(&s.cfg.Auth))

		r.Post("/", s.handleUpload)
		r.Get("/", s.handleListDatasets)

		r.Get("/download_all_json", s.handleDownloadAllJSON)
		r.Get("/download_all_csv", s.handleDownloadAllCSV)
		r.Get("/dataset_csv/{datasetID}", s.handleDatasetCSV)

		r.Get("/{datasetID}", s.handleDatasetDetail)
	})
}

// Start begins listening for HTTP requests on the configured address.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("server listening", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// handleRoot is a service info endpoint, useful as a reachability check
// behind the load balancer.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Expense Management API is running",
	})
}

// handleHealthz is the liveness probe.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleTestDB reports the database server version.
func (s *Server) handleTestDB(w http.ResponseWriter, r *http.Request) {
	version, err := s.prober.Version(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"postgres_version": version})
}

// securityHeaders adds standard hardening headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON with the given status code.
// Encoding errors are logged since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", "error", err)
	}
}
