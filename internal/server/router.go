package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/izpodvypodvert/todoapi/internal/api"
	"github.com/izpodvypodvert/todoapi/internal/api/handlers"
	"github.com/izpodvypodvert/todoapi/internal/api/middleware"
	"github.com/izpodvypodvert/todoapi/internal/logger"
)

const maxBodyBytes int64 = 5 * 1024 * 1024

// Pinger reports whether the store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type RouterConfig struct {
	Logger       logger.Logger
	Users        middleware.UserResolver
	AuthHandler  *handlers.AuthHandler
	UserHandler  *handlers.UserHandler
	TodoHandler  *handlers.TodoHandler
	OAuthHandler *handlers.OAuthHandler // nil when Google sign-in is not configured

	Metrics        middleware.HTTPRecorder
	MetricsHandler http.Handler
	AuthLimiter    *middleware.RateLimiter // nil disables limiting
	CORSOrigins    []string
	DB             Pinger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	base := cfg.Logger
	if base == nil {
		base = logger.GetDefault()
	}

	r.Use(middleware.RequestID(base))
	r.Use(middleware.Recover)
	r.Use(middleware.SentryMiddleware)
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}
	r.Use(middleware.AccessLog)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", healthHandler(cfg.DB))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			if cfg.AuthLimiter != nil {
				r.Use(cfg.AuthLimiter.Middleware)
			}

			r.Post("/register", cfg.AuthHandler.Register)
			r.Post("/jwt/login", cfg.AuthHandler.Login)
			r.Post("/forgot-password", cfg.AuthHandler.ForgotPassword)
			r.Post("/reset-password", cfg.AuthHandler.ResetPassword)
			r.Post("/request-verify-token", cfg.AuthHandler.RequestVerifyToken)
			r.Post("/verify-email", cfg.AuthHandler.VerifyEmail)

			r.With(middleware.BearerAuth(cfg.Users)).Post("/jwt/logout", cfg.AuthHandler.Logout)

			if cfg.OAuthHandler != nil {
				r.Get("/google/login", cfg.OAuthHandler.Login)
				r.Get("/google/callback", cfg.OAuthHandler.Callback)
			}
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.BearerAuth(cfg.Users))

			r.Route("/users", func(r chi.Router) {
				r.Get("/me", cfg.UserHandler.Me)
				r.Patch("/me", cfg.UserHandler.UpdateMe)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireSuperuser)
					r.Get("/{id}", cfg.UserHandler.Get)
					r.Patch("/{id}", cfg.UserHandler.Update)
					r.Delete("/{id}", cfg.UserHandler.Delete)
				})
			})

			r.Route("/todos", func(r chi.Router) {
				r.Get("/", cfg.TodoHandler.List)
				r.Post("/", cfg.TodoHandler.Create)
				r.Get("/{id}", cfg.TodoHandler.Get)
				r.Patch("/{id}", cfg.TodoHandler.Update)
				r.Put("/{id}", cfg.TodoHandler.Update)
				r.Delete("/{id}", cfg.TodoHandler.Delete)
			})
		})
	})

	return r
}

func healthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				logger.FromContext(r.Context()).Error("health check failed", "error", err)
				api.Error(w, http.StatusServiceUnavailable, "database unavailable")
				return
			}
		}
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
