package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/izpodvypodvert/todoapi/internal/api"
	"github.com/izpodvypodvert/todoapi/internal/domain"
	"github.com/izpodvypodvert/todoapi/internal/logger"
	"github.com/izpodvypodvert/todoapi/internal/telemetry"
)

type contextKey string

const (
	UserKey       contextKey = "user"
	userHolderKey contextKey = "user_holder"
)

// userHolder lets middleware that wraps BearerAuth learn who the caller was
// once the inner handlers have returned.
type userHolder struct {
	id string
}

func withUserHolder(ctx context.Context, h *userHolder) context.Context {
	if _, ok := ctx.Value(userHolderKey).(*userHolder); ok {
		return ctx
	}
	return context.WithValue(ctx, userHolderKey, h)
}

func holderUserID(ctx context.Context) string {
	if h, ok := ctx.Value(userHolderKey).(*userHolder); ok {
		return h.id
	}
	return ""
}

// UserResolver turns a bearer token into an active user.
type UserResolver interface {
	UserFromToken(ctx context.Context, token string) (*domain.User, error)
}

// BearerAuth rejects requests without a valid access token and stores the
// caller in the request context.
func BearerAuth(resolver UserResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				w.Header().Set("WWW-Authenticate", "Bearer")
				api.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			scheme, token, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				w.Header().Set("WWW-Authenticate", "Bearer")
				api.Error(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}

			user, err := resolver.UserFromToken(r.Context(), strings.TrimSpace(token))
			if err != nil {
				if api.DomainErrorToHTTP(err) >= http.StatusInternalServerError {
					api.HandleError(w, r, err)
					return
				}
				w.Header().Set("WWW-Authenticate", "Bearer")
				api.Error(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			if h, ok := r.Context().Value(userHolderKey).(*userHolder); ok {
				h.id = user.ID.String()
			}
			ctx := context.WithValue(r.Context(), UserKey, user)
			ctx = logger.ContextWithLogger(ctx, logger.FromContext(ctx).With("user_id", user.ID.String()))
			telemetry.SetUser(ctx, user.ID.String(), user.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSuperuser must run after BearerAuth.
func RequireSuperuser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetUser(r.Context())
		if user == nil {
			api.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !user.IsSuperuser {
			api.HandleError(w, r, domain.ErrNotSuperuser)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetUser returns the authenticated user, or nil.
func GetUser(ctx context.Context) *domain.User {
	user, _ := ctx.Value(UserKey).(*domain.User)
	return user
}

// WithUser stores user in ctx the way BearerAuth does.
func WithUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, UserKey, user)
}
