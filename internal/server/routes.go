package server

import (
	"log/slog"
	"net/http"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
	// MaxBodyBytes caps request bodies; zero means DefaultMaxBodyBytes.
	MaxBodyBytes int64
}

// DefaultMaxBodyBytes is large enough for a base64-encoded 4K PNG.
const DefaultMaxBodyBytes = 64 << 20

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
		MaxBodyBytes:   DefaultMaxBodyBytes,
	}
}

// NewRouter creates a new HTTP router with all routes configured.
// It uses Go 1.22+ ServeMux with method-based routing.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)

	mux.HandleFunc("POST /v1/cover", h.Cover)
	mux.HandleFunc("POST /v1/render", h.Render)
	mux.HandleFunc("GET /v1/quality", h.Quality)
	mux.HandleFunc("GET /v1/encoding-params", h.EncodingParams)

	mux.HandleFunc("POST /v1/jobs", h.CreateJob)
	mux.HandleFunc("GET /v1/jobs", h.ListJobs)
	mux.HandleFunc("GET /v1/jobs/{id}", h.GetJob)
	mux.HandleFunc("POST /v1/jobs/{id}/cancel", h.CancelJob)
	mux.HandleFunc("DELETE /v1/jobs/{id}", h.DeleteJob)

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	chain := ChainMiddleware(
		RequestIDMiddleware(),
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
		BodyLimitMiddleware(maxBody),
	)

	return chain(mux)
}
