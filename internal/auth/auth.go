// Package auth resolves the user every macros and history request acts for.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	baseliboidc "github.com/aggregat4/go-baselib-services/v4/oidc"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gorilla/sessions"

	"querytool-macros/server/internal/config"
)

type contextKey string

const (
	userIDContextKey contextKey = "auth.user_id"
	sessionUserKey              = "user_id"
)

// Manager runs the OIDC login flow and keeps the user id in a cookie session.
type Manager struct {
	oidcConfig    *baseliboidc.OidcConfiguration
	sessionStore  *sessions.CookieStore
	cookieOptions *sessions.Options
	fallbackURL   string
}

func NewManager(cfg config.AuthConfig) (*Manager, error) {
	if !cfg.OIDCEnabled() {
		return nil, errors.New("oidc issuer, client id, and redirect url are required")
	}
	masterKey, err := parseSessionKey(cfg.SessionKey)
	if err != nil {
		return nil, err
	}
	hashKey, blockKey := deriveCookieKeys(masterKey)
	store := sessions.NewCookieStore(hashKey, blockKey)
	options := &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
		Domain:   cfg.CookieDomain,
	}
	store.Options = options
	store.MaxAge(options.MaxAge)

	return &Manager{
		oidcConfig:    baseliboidc.CreateOidcConfiguration(cfg.IssuerURL, cfg.ClientID, cfg.ClientSecret, cfg.RedirectURL),
		sessionStore:  store,
		cookieOptions: options,
		fallbackURL:   "/",
	}, nil
}

// RegisterRoutes mounts the callback and logout endpoints.
func (m *Manager) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("/auth/callback", m.oidcConfig.CreateOidcCallbackHandler(
		baseliboidc.CreateSTDSessionBasedOidcDelegate(m.handleIDToken, m.fallbackURL)))
	mux.HandleFunc("/auth/logout", m.handleLogout)
}

// Middleware sends unauthenticated requests through the OIDC login, except
// for paths public reports true for, and puts the session user on the
// request context.
func (m *Manager) Middleware(public func(r *http.Request) bool) func(http.Handler) http.Handler {
	login := m.oidcConfig.CreateOidcAuthenticationMiddleware(m.isAuthenticated, public)
	return func(next http.Handler) http.Handler {
		return login(m.withUser(next))
	}
}

func (m *Manager) withUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID, ok := m.userIDFromSession(r); ok {
			r = r.WithContext(ContextWithUserID(r.Context(), userID))
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Manager) isAuthenticated(r *http.Request) bool {
	_, ok := m.userIDFromSession(r)
	return ok
}

func (m *Manager) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	session, err := m.sessionStore.Get(r, baseliboidc.STDSessionCookieName)
	if err == nil {
		session.Options = cloneOptions(m.cookieOptions)
		session.Options.MaxAge = -1
		_ = session.Save(r, w)
	}
	http.Redirect(w, r, m.fallbackURL, http.StatusFound)
}

func (m *Manager) handleIDToken(w http.ResponseWriter, r *http.Request, idToken *oidc.IDToken) error {
	var claims struct {
		Subject string `json:"sub"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return err
	}
	if claims.Subject == "" {
		return errors.New("id token missing sub claim")
	}
	session, err := m.sessionStore.Get(r, baseliboidc.STDSessionCookieName)
	if err != nil {
		return err
	}
	session.Options = cloneOptions(m.cookieOptions)
	session.Values[sessionUserKey] = claims.Subject
	return session.Save(r, w)
}

func (m *Manager) userIDFromSession(r *http.Request) (string, bool) {
	session, err := m.sessionStore.Get(r, baseliboidc.STDSessionCookieName)
	if err != nil {
		return "", false
	}
	userID, ok := session.Values[sessionUserKey].(string)
	if !ok || userID == "" {
		return "", false
	}
	return userID, true
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", false
	}
	return userID, true
}

func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// DevUser authenticates every request as userID. It is used when OIDC is
// not configured.
func DevUser(userID string) func(http.Handler) http.Handler {
	if userID == "" {
		userID = "dev-user"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), userID)))
		})
	}
}

// RequireUser rejects requests without a user on the context with 401.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserIDFromContext(r.Context()); !ok {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "authentication required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// parseSessionKey accepts a base64 key or a raw key of at least 32 bytes.
// An empty key yields a random one, which invalidates sessions on restart.
func parseSessionKey(raw string) ([]byte, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
		return key, nil
	}
	if decoded, err := base64.StdEncoding.DecodeString(trimmed); err == nil {
		if len(decoded) < 32 {
			return nil, errors.New("session key must decode to at least 32 bytes")
		}
		return decoded, nil
	}
	if len(trimmed) < 32 {
		return nil, errors.New("session key must be at least 32 characters or base64")
	}
	return []byte(trimmed), nil
}

func deriveCookieKeys(masterKey []byte) ([]byte, []byte) {
	return hmacSHA256(masterKey, []byte("auth")), hmacSHA256(masterKey, []byte("enc"))
}

func hmacSHA256(key []byte, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

func cloneOptions(opts *sessions.Options) *sessions.Options {
	if opts == nil {
		return &sessions.Options{}
	}
	clone := *opts
	return &clone
}
