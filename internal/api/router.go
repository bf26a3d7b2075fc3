package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/api/middleware"
	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/handlers"
)

// Options configures the router.
type Options struct {
	// RateLimiter is optional; requests are not rate limited without Redis.
	RateLimiter *middleware.RateLimiter
	// MaxBodyBytes bounds request bodies. Defaults to 16KB.
	MaxBodyBytes int64
}

// NewRouter creates and configures the HTTP router.
func NewRouter(logger zerolog.Logger, h *handlers.Handler, opts Options) *chi.Mux {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 16 * 1024 // a 2000 byte message plus JSON escaping
	}

	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(opts.MaxBodyBytes))
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	if opts.RateLimiter != nil {
		r.Use(opts.RateLimiter.Middleware)
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", middleware.WalletHeader},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/api", h.Root)
	r.Get("/health", h.Health)

	r.Post("/access", h.VerifyAccess)
	r.Route("/groups/{id}", func(r chi.Router) {
		r.Get("/messages", h.FetchMessages)
		r.Post("/messages", h.SendMessage)
	})
	r.Get("/collections/{address}/preview", h.CollectionPreview)

	return r
}
