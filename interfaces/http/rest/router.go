package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"millionx-backend/application/services"
	"millionx-backend/infrastructure/config"
	"millionx-backend/interfaces/http/rest/handlers"
	"millionx-backend/interfaces/http/rest/middleware"
	"millionx-backend/pkg/auth"
	"millionx-backend/pkg/observability"
)

// Router creates and configures the HTTP router
type Router struct {
	cfg            *config.Config
	authService    *services.AuthService
	authHandler    *handlers.AuthHandler
	sessionHandler *handlers.SessionHandler
	aiHandler      *handlers.AIHandler
	userHandler    *handlers.UserHandler
	metrics        *observability.Metrics
	ready          func() error
	logger         *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	cfg *config.Config,
	authService *services.AuthService,
	authHandler *handlers.AuthHandler,
	sessionHandler *handlers.SessionHandler,
	aiHandler *handlers.AIHandler,
	userHandler *handlers.UserHandler,
	metrics *observability.Metrics,
	ready func() error,
	logger *zap.Logger,
) *Router {
	return &Router{
		cfg:            cfg,
		authService:    authService,
		authHandler:    authHandler,
		sessionHandler: sessionHandler,
		aiHandler:      aiHandler,
		userHandler:    userHandler,
		metrics:        metrics,
		ready:          ready,
		logger:         logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Budget for routes that reach the AI providers, keyed per user.
	// The limiter lives for the life of the process.
	perMinute := rt.cfg.AIRequestsPerMinute
	if perMinute <= 0 {
		perMinute = 30
	}
	aiLimit := middleware.RateLimit(
		auth.NewTokenBucketLimiter(float64(perMinute)/60, float64(perMinute)),
		perMinute, rt.logger,
	)

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))
	if rt.cfg.EnableMetrics {
		router.Use(middleware.Metrics(rt.metrics))
	}

	if rt.cfg.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Health check
	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)

	if rt.cfg.EnableMetrics {
		router.Handle("/metrics", rt.metrics.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		// Login routes stay reachable without a session
		r.Route("/auth", func(r chi.Router) {
			r.Post("/magic-link", rt.authHandler.RequestMagicLink)
			r.Get("/verify", rt.authHandler.VerifyMagicLink)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(rt.authService, rt.logger))
				r.Post("/logout", rt.authHandler.Logout)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(rt.authService, rt.logger))

			r.Route("/users", func(r chi.Router) {
				r.Get("/me", rt.userHandler.GetMe)
				r.Put("/me/api-key", rt.userHandler.SetAPIKey)
			})

			r.With(aiLimit).Post("/ai/validate-key", rt.aiHandler.ValidateKey)

			r.Route("/sessions", func(r chi.Router) {
				// Starting a session generates its title upstream
				r.With(aiLimit).Post("/", rt.sessionHandler.StartTopic)
				r.Get("/", rt.sessionHandler.ListSessions)

				r.Route("/{sessionID}", func(r chi.Router) {
					r.Get("/", rt.sessionHandler.GetSession)
					r.Delete("/", rt.sessionHandler.DeleteSession)
					r.Get("/graph", rt.sessionHandler.GetGraphView)
					r.Get("/cursors", rt.sessionHandler.GetCursors)
					r.Post("/cursors/sync", rt.sessionHandler.SyncCursors)

					r.Route("/nodes/{nodeID}", func(r chi.Router) {
						r.With(aiLimit).Post("/content", rt.sessionHandler.EnsureContent)
						r.With(aiLimit).Post("/expand", rt.sessionHandler.ExpandNode)
						r.With(aiLimit).Post("/chat", rt.sessionHandler.Chat)
						r.Delete("/chat", rt.sessionHandler.ClearChat)
						r.Put("/position", rt.sessionHandler.MoveNode)
					})
				})
			})
		})
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck handles readiness check requests
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if rt.ready != nil {
		if err := rt.ready(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"not ready"}`))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}
