package security

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// DefaultSessionCookie is the cookie that identifies a browser session.
const DefaultSessionCookie = "edureg_session"

// SessionConfig configures session cookies.
type SessionConfig struct {
	CookieName string
	CookiePath string
	Secure     bool
	TTL        time.Duration
}

// Sessions issues anonymous session ids in a cookie. Wizard state is keyed
// by this id; there are no accounts behind it.
type Sessions struct {
	cookieName string
	cookiePath string
	secure     bool
	ttl        time.Duration
}

// NewSessions creates a cookie session issuer.
func NewSessions(config SessionConfig) *Sessions {
	if config.CookieName == "" {
		config.CookieName = DefaultSessionCookie
	}
	if config.CookiePath == "" {
		config.CookiePath = "/"
	}
	if config.TTL == 0 {
		config.TTL = 24 * time.Hour
	}
	return &Sessions{
		cookieName: config.CookieName,
		cookiePath: config.CookiePath,
		secure:     config.Secure,
		ttl:        config.TTL,
	}
}

// CookieName returns the session cookie name.
func (s *Sessions) CookieName() string {
	return s.cookieName
}

// ID returns the session id carried by r, if any.
func (s *Sessions) ID(r *http.Request) string {
	cookie, err := r.Cookie(s.cookieName)
	if err != nil {
		return ""
	}
	if _, err := uuid.Parse(cookie.Value); err != nil {
		return ""
	}
	return cookie.Value
}

// Middleware makes sure every request carries a session id, setting the
// cookie when it is missing or malformed, and stores the id in the request
// context.
func (s *Sessions) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := s.ID(r)
			if id == "" {
				id = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     s.cookieName,
					Value:    id,
					Path:     s.cookiePath,
					MaxAge:   int(s.ttl.Seconds()),
					Secure:   s.secure,
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}
			next.ServeHTTP(w, r.WithContext(WithSessionID(r.Context(), id)))
		})
	}
}

type sessionKey struct{}

// WithSessionID stores a session id in ctx.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}

// SessionIDFromContext returns the session id stored by Middleware.
func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}
