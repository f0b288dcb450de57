package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/izpodvypodvert/todoapi/internal/domain"
	"github.com/izpodvypodvert/todoapi/internal/logger"
)

const oauthStateCookie = "todoapi_oauth_state"

// OAuthProvider is an external identity provider.
type OAuthProvider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*domain.OAuthIdentity, error)
}

// OAuthLoginService signs in (or signs up) the person behind an identity.
type OAuthLoginService interface {
	OAuthLoginToken(ctx context.Context, identity *domain.OAuthIdentity) (string, error)
}

// StateStore holds the one-time state values of running sign-ins.
type StateStore interface {
	Put(ctx context.Context, state string, ttl time.Duration) error
	Consume(ctx context.Context, state string) (bool, error)
}

type OAuthConfig struct {
	// FrontendRedirectURL ends with the query key; "=" and the token are
	// appended.
	FrontendRedirectURL string
	LoginRedirectURL    string
	StateTTL            time.Duration
}

type OAuthHandler struct {
	provider OAuthProvider
	accounts OAuthLoginService
	states   StateStore
	cfg      OAuthConfig
}

func NewOAuthHandler(provider OAuthProvider, accounts OAuthLoginService, states StateStore, cfg OAuthConfig) *OAuthHandler {
	if cfg.StateTTL <= 0 {
		cfg.StateTTL = 10 * time.Minute
	}
	return &OAuthHandler{provider: provider, accounts: accounts, states: states, cfg: cfg}
}

func (h *OAuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	if err := h.states.Put(r.Context(), state, h.cfg.StateTTL); err != nil {
		h.fail(w, r, fmt.Errorf("store oauth state: %w", err))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int(h.cfg.StateTTL.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.provider.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if providerErr := query.Get("error"); providerErr != "" {
		h.fail(w, r, fmt.Errorf("provider returned error: %s", providerErr))
		return
	}

	state := query.Get("state")
	cookie, err := r.Cookie(oauthStateCookie)
	if state == "" || err != nil || cookie.Value != state {
		h.fail(w, r, domain.ErrOAuthStateInvalid)
		return
	}
	h.clearStateCookie(w, r)

	ok, err := h.states.Consume(r.Context(), state)
	if err != nil {
		h.fail(w, r, fmt.Errorf("consume oauth state: %w", err))
		return
	}
	if !ok {
		h.fail(w, r, domain.ErrOAuthStateInvalid)
		return
	}

	code := query.Get("code")
	if code == "" {
		h.fail(w, r, errors.New("missing authorization code"))
		return
	}

	identity, err := h.provider.Exchange(r.Context(), code)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	token, err := h.accounts.OAuthLoginToken(r.Context(), identity)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	http.Redirect(w, r, h.cfg.FrontendRedirectURL+"="+url.QueryEscape(token), http.StatusTemporaryRedirect)
}

func (h *OAuthHandler) clearStateCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// fail sends the browser back to the login page. The reason only goes to the
// log.
func (h *OAuthHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	logger.FromContext(r.Context()).Error("oauth sign-in failed", "provider", h.provider.Name(), "error", err)
	http.Redirect(w, r, h.cfg.LoginRedirectURL, http.StatusTemporaryRedirect)
}
