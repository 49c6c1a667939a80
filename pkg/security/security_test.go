package security

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSRFToken(t *testing.T) {
	c := NewCSRF(CSRFConfig{Secret: []byte("test-secret")})

	token, err := c.Token("s1")
	require.NoError(t, err)
	assert.NoError(t, c.Validate(token, "s1"))
	assert.ErrorIs(t, c.Validate(token, "s2"), ErrInvalidSignature)
	assert.ErrorIs(t, c.Validate("", "s1"), ErrMissingToken)
	assert.ErrorIs(t, c.Validate("a|b", "s1"), ErrInvalidToken)
	assert.ErrorIs(t, c.Validate("a|b|!!", "s1"), ErrInvalidToken)

	tampered := strings.Replace(token, "|", "x|", 1)
	assert.ErrorIs(t, c.Validate(tampered, "s1"), ErrInvalidSignature)
}

func TestCSRFExpiry(t *testing.T) {
	c := NewCSRF(CSRFConfig{Secret: []byte("k"), MaxAge: time.Hour})
	issued := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return issued }

	token, err := c.Token("s1")
	require.NoError(t, err)

	c.now = func() time.Time { return issued.Add(30 * time.Minute) }
	assert.NoError(t, c.Validate(token, "s1"))

	c.now = func() time.Time { return issued.Add(2 * time.Hour) }
	assert.ErrorIs(t, c.Validate(token, "s1"), ErrTokenExpired)
}

func TestCSRFMiddleware(t *testing.T) {
	sessions := NewSessions(SessionConfig{})
	var failures []error
	c := NewCSRF(CSRFConfig{
		Secret:    []byte("k"),
		OnFailure: func(_ *http.Request, err error) { failures = append(failures, err) },
	})
	h := sessions.Middleware()(c.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	id := uuid.NewString()
	cookie := &http.Cookie{Name: DefaultSessionCookie, Value: id}

	tests := []struct {
		name   string
		method string
		token  string
		header bool
		want   int
	}{
		{"get passes", http.MethodGet, "", false, http.StatusNoContent},
		{"post without token", http.MethodPost, "", false, http.StatusForbidden},
		{"post with form token", http.MethodPost, "valid", false, http.StatusNoContent},
		{"post with header token", http.MethodPost, "valid", true, http.StatusNoContent},
		{"post with garbage", http.MethodPost, "garbage", false, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := tt.token
			if token == "valid" {
				var err error
				token, err = c.Token(id)
				require.NoError(t, err)
			}

			form := url.Values{}
			if !tt.header && token != "" {
				form.Set(c.FormField(), token)
			}
			req := httptest.NewRequest(tt.method, "/forms/demo", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			if tt.header {
				req.Header.Set("X-CSRF-Token", token)
			}
			req.AddCookie(cookie)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}

	require.Len(t, failures, 2)
	assert.ErrorIs(t, failures[0], ErrMissingToken)
	assert.ErrorIs(t, failures[1], ErrInvalidToken)
}

func TestSessionsMiddleware(t *testing.T) {
	s := NewSessions(SessionConfig{Secure: true, TTL: time.Hour})

	var seen string
	h := s.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SessionIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, DefaultSessionCookie, cookies[0].Name)
	assert.Equal(t, seen, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, 3600, cookies[0].MaxAge)

	// An existing cookie is reused.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Result().Cookies())
	assert.Equal(t, cookies[0].Value, seen)

	// A malformed cookie is replaced.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: DefaultSessionCookie, Value: "../../etc"})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Len(t, rec.Result().Cookies(), 1)
	assert.NotEqual(t, "../../etc", seen)
}

func TestSanitizer(t *testing.T) {
	s := NewSanitizer(WithMaxLength(10))

	tests := []struct {
		in   string
		want string
	}{
		{"  GJU  ", "GJU"},
		{"<b>Bold</b>", "Bold"},
		{"<script>alert(1)</script>x", "x"},
		{"A & B", "A & B"},
		{"abcdefghijklmnop", "abcdefghij"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, s.Text(tt.in), tt.in)
	}

	assert.Equal(t, `<a href="https://ugc.ac.in" rel="nofollow">UGC</a>`,
		s.HTML(`<a href="https://ugc.ac.in" onclick="x()">UGC</a>`))
}
