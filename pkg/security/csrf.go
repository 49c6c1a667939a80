// Package security provides CSRF protection, session cookies and input
// sanitization.
package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Common CSRF errors.
var (
	ErrInvalidToken     = errors.New("security: invalid CSRF token")
	ErrMissingToken     = errors.New("security: missing CSRF token")
	ErrTokenExpired     = errors.New("security: CSRF token expired")
	ErrInvalidSignature = errors.New("security: invalid token signature")
)

// CSRFConfig configures CSRF protection.
type CSRFConfig struct {
	// Secret signs tokens. A random secret is generated when empty, which
	// invalidates tokens on restart.
	Secret []byte

	// MaxAge is how long tokens are valid (default 12h).
	MaxAge time.Duration

	// HeaderName carries the token for script requests (default "X-CSRF-Token").
	HeaderName string

	// FormField carries the token in form posts (default "_csrf").
	FormField string

	// SessionID returns the session a request belongs to. Tokens are bound
	// to it.
	SessionID func(*http.Request) string

	// OnFailure is called for every rejected request.
	OnFailure func(r *http.Request, err error)
}

// CSRF issues and checks HMAC-signed tokens bound to a session.
type CSRF struct {
	secret     []byte
	maxAge     time.Duration
	headerName string
	formField  string
	sessionID  func(*http.Request) string
	onFailure  func(*http.Request, error)
	now        func() time.Time
}

// NewCSRF creates CSRF protection from config.
func NewCSRF(config CSRFConfig) *CSRF {
	if len(config.Secret) == 0 {
		config.Secret = make([]byte, 32)
		_, _ = rand.Read(config.Secret)
	}
	if config.MaxAge == 0 {
		config.MaxAge = 12 * time.Hour
	}
	if config.HeaderName == "" {
		config.HeaderName = "X-CSRF-Token"
	}
	if config.FormField == "" {
		config.FormField = "_csrf"
	}
	if config.SessionID == nil {
		config.SessionID = func(r *http.Request) string {
			return SessionIDFromContext(r.Context())
		}
	}

	return &CSRF{
		secret:     config.Secret,
		maxAge:     config.MaxAge,
		headerName: config.HeaderName,
		formField:  config.FormField,
		sessionID:  config.SessionID,
		onFailure:  config.OnFailure,
		now:        time.Now,
	}
}

// FormField returns the name of the hidden form input.
func (c *CSRF) FormField() string {
	return c.formField
}

// Token creates a token for sessionID. Format: nonce|unix|sig, base64url.
func (c *CSRF) Token(sessionID string) (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	payload := base64.RawURLEncoding.EncodeToString(nonce) + "|" + strconv.FormatInt(c.now().Unix(), 10)
	sig := c.sign(payload, sessionID)
	return payload + "|" + base64.RawURLEncoding.EncodeToString(sig), nil
}

// TokenFor creates a token for the session of r.
func (c *CSRF) TokenFor(r *http.Request) string {
	token, err := c.Token(c.sessionID(r))
	if err != nil {
		return ""
	}
	return token
}

// Validate checks a token against sessionID.
func (c *CSRF) Validate(token, sessionID string) error {
	if token == "" {
		return ErrMissingToken
	}

	parts := strings.Split(token, "|")
	if len(parts) != 3 {
		return ErrInvalidToken
	}

	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return ErrInvalidToken
	}
	payload := parts[0] + "|" + parts[1]
	if subtle.ConstantTimeCompare(sig, c.sign(payload, sessionID)) != 1 {
		return ErrInvalidSignature
	}

	issued, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return ErrInvalidToken
	}
	if c.now().Sub(time.Unix(issued, 0)) > c.maxAge {
		return ErrTokenExpired
	}
	return nil
}

func (c *CSRF) sign(payload, sessionID string) []byte {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(payload))
	mac.Write([]byte{0})
	mac.Write([]byte(sessionID))
	return mac.Sum(nil)
}

// Middleware rejects unsafe requests without a valid token with 403.
func (c *CSRF) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			token := r.Header.Get(c.headerName)
			if token == "" {
				token = r.FormValue(c.formField)
			}
			if err := c.Validate(token, c.sessionID(r)); err != nil {
				if c.onFailure != nil {
					c.onFailure(r, err)
				}
				http.Error(w, "Forbidden - invalid CSRF token", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}
