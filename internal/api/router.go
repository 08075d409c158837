package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nikhilbhutani/visionspeech/internal/api/handlers"
	"github.com/nikhilbhutani/visionspeech/internal/api/middleware"
	"github.com/nikhilbhutani/visionspeech/internal/app"
	"github.com/nikhilbhutani/visionspeech/internal/auth"
	"github.com/nikhilbhutani/visionspeech/internal/config"
	"github.com/nikhilbhutani/visionspeech/internal/storage"
)

type Router struct {
	mux      *chi.Mux
	cfg      *config.Config
	redis    handlers.Pinger
	services *app.Services
	queue    handlers.Enqueuer
	results  handlers.Results
	limiter  *middleware.RateLimiter
	jwt      *auth.JWTMiddleware
}

// NewRouter wires the HTTP API. rdb may be nil; then readiness does not
// check Redis.
func NewRouter(cfg *config.Config, rdb handlers.Pinger, services *app.Services, q handlers.Enqueuer, results handlers.Results) *Router {
	rt := &Router{
		mux:      chi.NewRouter(),
		cfg:      cfg,
		redis:    rdb,
		services: services,
		queue:    q,
		results:  results,
		limiter:  middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst),
	}
	if cfg.Auth.JWTSecret != "" {
		rt.jwt = auth.NewJWTMiddleware(cfg.Auth.JWTSecret)
	}
	return rt
}

// Limiter exposes the rate limiter so the caller can run its cleanup loop.
func (rt *Router) Limiter() *middleware.RateLimiter {
	return rt.limiter
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(rt.cfg.Server.AllowedOrigins))

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	convH := handlers.NewConversionHandler(
		rt.services.Converter,
		rt.queue,
		rt.results,
		storage.NewDir(rt.cfg.Storage.InputDir),
		storage.NewDir(rt.cfg.Storage.OutputDir),
	)

	var models handlers.ModelLister
	if rt.services.Analyzer != nil {
		models = rt.services.Analyzer
	}
	catalogH := handlers.NewCatalogHandler(rt.services.Converter.Voice(), rt.services.Voices, models)

	r.Route("/api/v1", func(r chi.Router) {
		if rt.jwt != nil {
			r.Use(rt.jwt.Authenticate)
		}

		r.Get("/voices", catalogH.Voices)
		r.Get("/models", catalogH.Models)

		r.Route("/conversions", func(r chi.Router) {
			r.Get("/{id}", convH.Get)

			r.Group(func(r chi.Router) {
				r.Use(rt.limiter.Limit)
				r.Post("/", convH.Enqueue)
				r.Post("/sync", convH.Convert)
			})
		})
	})

	return r
}
