package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"scamshield/internal/api/handlers"
	apimiddleware "scamshield/internal/api/middleware"
	"scamshield/internal/config"
	"scamshield/internal/domain/models"
	"scamshield/pkg/logger"
)

// Router holds dependencies for the API router
type Router struct {
	config      config.Config
	handlers    *handlers.Handlers
	auth        apimiddleware.Authenticator
	requestLogs apimiddleware.RequestLogAppender
	limiter     apimiddleware.RateChecker
	logger      *logger.Logger
}

// NewRouter creates a new Router instance. limiter may be nil when Redis is
// not configured; rate limiting is then skipped.
func NewRouter(
	cfg config.Config,
	h *handlers.Handlers,
	auth apimiddleware.Authenticator,
	requestLogs apimiddleware.RequestLogAppender,
	limiter apimiddleware.RateChecker,
	log *logger.Logger,
) *Router {
	return &Router{
		config:      cfg,
		handlers:    h,
		auth:        auth,
		requestLogs: requestLogs,
		limiter:     limiter,
		logger:      log.WithComponent("router"),
	}
}

// Setup sets up the Chi router with all routes and middleware
func (r *Router) Setup() http.Handler {
	router := chi.NewRouter()

	timeout := r.config.Server.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	// Core middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(apimiddleware.Logger(r.logger))
	router.Use(middleware.Recoverer)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   r.config.CORS.AllowedOrigins,
		AllowedMethods:   r.config.CORS.AllowedMethods,
		AllowedHeaders:   r.config.CORS.AllowedHeaders,
		AllowCredentials: r.config.CORS.AllowCredentials,
		MaxAge:           r.config.CORS.MaxAge,
	}))

	// Public routes
	router.Group(func(pub chi.Router) {
		pub.Use(middleware.Timeout(timeout))
		pub.Get("/health", r.handlers.Health.Check)
		pub.Get("/ready", r.handlers.Health.Ready)
	})

	router.Route("/api/v1", func(v1 chi.Router) {
		v1.With(middleware.Timeout(timeout)).Get("/lexicon", r.handlers.Scans.Lexicon)

		// Authenticated routes
		v1.Group(func(api chi.Router) {
			r.authenticated(api, timeout)
		})
	})

	return router
}

func (r *Router) authenticated(api chi.Router, timeout time.Duration) {
	api.Use(apimiddleware.APIKeyAuth(r.auth, r.config.Auth.AdminToken))
	if r.requestLogs != nil {
		api.Use(apimiddleware.RequestLog(r.requestLogs, r.logger))
	}
	if r.config.RateLimit.Enabled && r.limiter != nil {
		api.Use(apimiddleware.RateLimiter(r.limiter, r.config.RateLimit, r.logger))
	}

	// WebSocket connections outlive the request timeout
	api.With(perm(models.PermScanRead)).Get("/ws", r.handlers.Streaming.HandleWebSocket)

	api.Group(func(api chi.Router) {
		api.Use(middleware.Timeout(timeout))

		api.Group(func(scan chi.Router) {
			scan.Use(perm(models.PermScanWrite))
			scan.Post("/scan", r.handlers.Scans.Scan)
			scan.Post("/scan/batch", r.handlers.Scans.ScanBatch)
			scan.Post("/analyze", r.handlers.Scans.Analyze)
			scan.Delete("/scans", r.handlers.Scans.Clear)
			scan.Post("/scans/{id}/feedback", r.handlers.Scans.Feedback)
		})

		api.Group(func(read chi.Router) {
			read.Use(perm(models.PermScanRead))
			read.Get("/scans", r.handlers.Scans.List)
			read.Get("/scans/{id}", r.handlers.Scans.Get)
			read.Get("/stats", r.handlers.Scans.Stats)
			read.Get("/streaming/stats", r.handlers.Streaming.GetStats)
		})

		api.With(perm(models.PermThreatsRead)).Get("/threats", r.handlers.Scans.Threats)

		api.Route("/keys", func(keys chi.Router) {
			keys.Use(perm(models.PermKeysManage))
			keys.Get("/", r.handlers.Keys.List)
			keys.Post("/", r.handlers.Keys.Create)
			keys.Get("/{id}", r.handlers.Keys.Get)
			keys.Patch("/{id}", r.handlers.Keys.Update)
			keys.Delete("/{id}", r.handlers.Keys.Delete)
			keys.Post("/{id}/regenerate", r.handlers.Keys.Regenerate)
			keys.Post("/{id}/revoke", r.handlers.Keys.Revoke)
		})

		api.Route("/webhooks", func(hooks chi.Router) {
			hooks.Use(perm(models.PermWebhooksManage))
			hooks.Get("/", r.handlers.Webhooks.List)
			hooks.Post("/", r.handlers.Webhooks.Create)
			hooks.Get("/stats", r.handlers.Webhooks.Stats)
			hooks.Get("/{id}", r.handlers.Webhooks.Get)
			hooks.Patch("/{id}", r.handlers.Webhooks.Update)
			hooks.Delete("/{id}", r.handlers.Webhooks.Delete)
			hooks.Post("/{id}/test", r.handlers.Webhooks.Test)
			hooks.Post("/{id}/enable", r.handlers.Webhooks.Enable)
			hooks.Post("/{id}/disable", r.handlers.Webhooks.Disable)
			hooks.Post("/{id}/rotate-secret", r.handlers.Webhooks.RotateSecret)
		})

		api.Route("/logs", func(logs chi.Router) {
			logs.Use(perm(models.PermKeysManage))
			logs.Get("/", r.handlers.Logs.List)
			logs.Get("/export", r.handlers.Logs.Export)
		})
	})
}

func perm(p models.Permission) func(http.Handler) http.Handler {
	return apimiddleware.RequirePermission(p)
}
