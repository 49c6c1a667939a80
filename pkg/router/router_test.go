package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hsche/edureg/pkg/core"
	"github.com/hsche/edureg/pkg/logging"
	"github.com/hsche/edureg/pkg/security"
	"github.com/hsche/edureg/pkg/transport"
)

// counter is a live component used across the router tests.
type counter struct {
	core.BaseComponent

	slug  string
	count int

	mu         sync.Mutex
	terminated []core.TerminateReason
}

func (c *counter) Name() string { return "counter" }

func (c *counter) Mount(ctx context.Context, params core.Params, session core.Session) error {
	if params.Get("slug") == "broken" {
		return errors.New("no such form")
	}
	c.slug = params.Get("slug")
	c.count, _ = params.Int("start")
	return nil
}

func (c *counter) HandleEvent(ctx context.Context, event string, payload map[string]any) error {
	switch event {
	case "inc":
		c.count++
	case "later":
		return c.Socket().SendInfo("tick")
	default:
		return fmt.Errorf("unknown event %q", event)
	}
	return nil
}

func (c *counter) HandleInfo(ctx context.Context, msg any) error {
	if msg == "tick" {
		c.count += 10
	}
	return nil
}

func (c *counter) Render(ctx context.Context) core.Renderer {
	return core.RendererFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, "<p>%s:%d</p>", c.slug, c.count)
		return err
	})
}

func (c *counter) Terminate(ctx context.Context, reason core.TerminateReason) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.terminated = append(c.terminated, reason)
	return nil
}

func TestLiveHTTPRender(t *testing.T) {
	r := New(WithLogger(logging.NopLogger{}))
	r.Live("/forms/{slug}", func() core.Component { return &counter{} })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/forms/university?start=4", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "<p>university:4</p>", rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/forms/broken", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/forms/university", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMiddlewareOrder(t *testing.T) {
	r := New()
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, req)
			})
		}
	}
	r.Use(mark("a"), mark("b"))
	r.Live("/dash", func() core.Component { return &counter{} }, WithRouteMiddleware(mark("route")))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/dash", nil))
	assert.Equal(t, []string{"a", "b", "route"}, order)
}

func dial(t *testing.T, ctx context.Context, srv *httptest.Server, path string) *transport.WebSocketTransport {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	client, err := transport.Dial(ctx, url, nil, nil)
	require.NoError(t, err)
	return client
}

func next(t *testing.T, ctx context.Context, client *transport.WebSocketTransport) transport.Message {
	t.Helper()
	select {
	case msg := <-client.Receive():
		return msg
	case <-ctx.Done():
		t.Fatal("timed out waiting for a message")
		return transport.Message{}
	}
}

func TestLiveSocket(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	comp := &counter{}
	r := New(WithLogger(logging.NopLogger{}))
	r.Live("/forms/{slug}", func() core.Component { return comp })
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := dial(t, ctx, srv, "/live/forms/faculty")

	first := next(t, ctx, client)
	assert.Equal(t, "render", first.Event)
	assert.Equal(t, "<p>faculty:0</p>", first.Payload["html"])
	assert.Equal(t, 1.0, first.Payload["version"])

	require.NoError(t, client.Send(transport.Message{Ref: "1", Event: "inc"}))
	msg := next(t, ctx, client)
	assert.Equal(t, "1", msg.Ref)
	assert.Equal(t, "<p>faculty:1</p>", msg.Payload["html"])

	require.NoError(t, client.Send(transport.Message{Ref: "2", Event: "bogus"}))
	msg = next(t, ctx, client)
	assert.Equal(t, "error", msg.Event)
	assert.Equal(t, "2", msg.Ref)
	assert.Contains(t, msg.Payload["reason"], "bogus")

	require.NoError(t, client.Send(transport.Message{Ref: "3", Event: "later"}))
	var htmls []any
	for len(htmls) < 2 {
		htmls = append(htmls, next(t, ctx, client).Payload["html"])
	}
	assert.Contains(t, htmls, "<p>faculty:11</p>", "info messages re-render")

	assert.Equal(t, 1, r.Sessions().Count())
	require.NoError(t, client.Close())

	require.Eventually(t, func() bool { return r.Sessions().Count() == 0 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		comp.mu.Lock()
		defer comp.mu.Unlock()
		return len(comp.terminated) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, r.Sockets().Count())
}

func TestLiveSocketMountError(t *testing.T) {
	r := New(WithLogger(logging.NopLogger{}))
	r.Live("/forms/{slug}", func() core.Component { return &counter{} })
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := dial(t, ctx, srv, "/live/forms/broken")
	defer client.Close()

	msg := next(t, ctx, client)
	assert.Equal(t, "error", msg.Event)
	assert.Equal(t, "no such form", msg.Payload["reason"])
}

func TestSessionFunc(t *testing.T) {
	var got core.Session
	r := New(WithSessionFunc(func(req *http.Request) core.Session {
		got = DefaultSession(req)
		return got
	}))
	r.Live("/", func() core.Component { return &counter{} })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(security.WithSessionID(req.Context(), "sess-1"))
	r.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "sess-1", got.ID())
}

func TestSessionManager(t *testing.T) {
	m := NewSessionManager(SessionManagerConfig{MaxSessions: 2, IdleTimeout: time.Minute})

	sock := func(id string) *core.Socket { return core.NewSocket(id, nil) }
	a, evicted := m.Create(sock("a"), &counter{}, nil, nil)
	assert.Nil(t, evicted)
	a.mu.Lock()
	a.lastActivity = time.Now().Add(-time.Hour)
	a.mu.Unlock()

	b, _ := m.Create(sock("b"), &counter{}, nil, nil)
	_, evicted = m.Create(sock("c"), &counter{}, nil, nil)
	require.NotNil(t, evicted)
	assert.Equal(t, a.ID, evicted.ID)
	assert.Equal(t, 2, m.Count())

	got, ok := m.Get(b.ID)
	require.True(t, ok)
	assert.Equal(t, "b", got.SocketID)

	b.mu.Lock()
	b.lastActivity = time.Now().Add(-time.Hour)
	b.mu.Unlock()
	expired := m.Expired()
	require.Len(t, expired, 1)
	assert.Equal(t, b.ID, expired[0].ID)

	assert.Equal(t, uint64(1), b.NextVersion())
	assert.Equal(t, uint64(2), b.NextVersion())
}

func TestPatternParams(t *testing.T) {
	assert.Equal(t, []string{"slug"}, patternParams("/forms/{slug}"))
	assert.Equal(t, []string{"page"}, patternParams("/form/{page}"))
	assert.Equal(t, []string{"path"}, patternParams("/static/{path...}"))
	assert.Nil(t, patternParams("/{$}"))
}

func TestPageNumber(t *testing.T) {
	tests := map[string]int{
		"page3":  3,
		"Page5":  5,
		"2":      2,
		"page-1": -1,
		"":       0,
		"pagex":  0,
		"page":   0,

		"page99999999999999999999":  math.MaxInt,
		"page-99999999999999999999": math.MinInt,
	}
	for in, want := range tests {
		assert.Equal(t, want, PageNumber(in), in)
	}
}

func TestSecureHeaders(t *testing.T) {
	var nonce string
	h := SecureHeaders(SecureHeadersConfig{FrameOptions: "DENY", HSTSMaxAge: 60, ScriptSources: []string{"https://cdn.plot.ly"}})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			nonce = CSPNonce(r.Context())
		}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.NotEmpty(t, nonce)
	csp := rec.Header().Get("Content-Security-Policy")
	assert.Contains(t, csp, "script-src 'self' https://cdn.plot.ly 'nonce-"+nonce+"'")
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "max-age=60; includeSubDomains", rec.Header().Get("Strict-Transport-Security"))
}

func TestRecoveryAndTimeout(t *testing.T) {
	h := Recovery()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	ctx := logging.ContextWithLogger(context.Background(), logging.NopLogger{})
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var deadline bool
	h = Timeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, deadline = r.Context().Deadline()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, deadline)

	req := httptest.NewRequest(http.MethodGet, "/live/x", nil)
	req.Header.Set("Upgrade", "websocket")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.False(t, deadline, "websocket requests keep their context")
}
