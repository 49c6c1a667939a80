// Package router serves live components over HTTP and websockets.
//
// A live route renders its component once as a plain page. The embedded
// client then opens a websocket at the same path under /live, the
// component is mounted again for that connection, and every browser event
// is answered with a fresh render.
package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hsche/edureg/pkg/core"
	"github.com/hsche/edureg/pkg/logging"
	"github.com/hsche/edureg/pkg/pool"
	"github.com/hsche/edureg/pkg/security"
	"github.com/hsche/edureg/pkg/transport"
)

// Common router errors.
var (
	ErrNilRenderer = errors.New("component returned nil renderer")
)

// LivePrefix is prepended to a live route's path for its websocket.
const LivePrefix = "/live"

// Middleware wraps an HTTP handler.
type Middleware func(http.Handler) http.Handler

// ErrorHandler handles errors during request processing.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// SessionFunc builds the session data handed to Mount.
type SessionFunc func(r *http.Request) core.Session

// LiveRoute defines a route that renders a live component.
type LiveRoute struct {
	Path       string
	Component  func() core.Component
	Middleware []Middleware
	params     []string
}

// RouteOption configures a LiveRoute.
type RouteOption func(*LiveRoute)

// WithRouteMiddleware adds middleware to the route.
func WithRouteMiddleware(mw ...Middleware) RouteOption {
	return func(r *LiveRoute) {
		r.Middleware = append(r.Middleware, mw...)
	}
}

// Router handles HTTP routing.
type Router struct {
	mux          *http.ServeMux
	middleware   []Middleware
	errorHandler ErrorHandler
	sessionFunc  SessionFunc
	logger       logging.Logger

	sessions        *SessionManager
	sockets         *core.SocketManager
	transportConfig *transport.Config
	wsConfig        *transport.WebSocketConfig

	mu sync.RWMutex
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the logger used outside request scope.
func WithLogger(l logging.Logger) Option {
	return func(r *Router) {
		r.logger = l
	}
}

// WithWebSocketConfig sets the websocket origin policy.
func WithWebSocketConfig(c *transport.WebSocketConfig) Option {
	return func(r *Router) {
		r.wsConfig = c
	}
}

// WithTransportConfig sets buffer sizes and timeouts of live sockets.
func WithTransportConfig(c *transport.Config) Option {
	return func(r *Router) {
		r.transportConfig = c
	}
}

// WithSessionManager replaces the live session manager.
func WithSessionManager(m *SessionManager) Option {
	return func(r *Router) {
		r.sessions = m
	}
}

// WithSessionFunc sets how session data is derived from a request.
func WithSessionFunc(fn SessionFunc) Option {
	return func(r *Router) {
		r.sessionFunc = fn
	}
}

// WithErrorHandler sets the error handler.
func WithErrorHandler(h ErrorHandler) Option {
	return func(r *Router) {
		r.errorHandler = h
	}
}

// New creates a new router.
func New(opts ...Option) *Router {
	r := &Router{
		mux:             http.NewServeMux(),
		logger:          logging.Default(),
		sessions:        NewSessionManager(DefaultSessionManagerConfig()),
		sockets:         core.NewSocketManager(),
		transportConfig: transport.DefaultConfig(),
		wsConfig:        transport.DefaultWebSocketConfig(),
		sessionFunc:     DefaultSession,
		errorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logging.L(r.Context()).Error("request failed", logging.Err(err))
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DefaultSession carries the browser session id.
func DefaultSession(r *http.Request) core.Session {
	return core.Session{core.SessionIDKey: security.SessionIDFromContext(r.Context())}
}

// Use adds middleware applied to every route registered afterwards.
func (r *Router) Use(mw ...Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middleware = append(r.middleware, mw...)
}

// Sessions returns the live session manager.
func (r *Router) Sessions() *SessionManager {
	return r.sessions
}

// Sockets returns the socket manager.
func (r *Router) Sockets() *core.SocketManager {
	return r.sockets
}

func (r *Router) wrap(h http.Handler, route ...Middleware) http.Handler {
	for i := len(route) - 1; i >= 0; i-- {
		h = route[i](h)
	}

	r.mu.RLock()
	middleware := append([]Middleware(nil), r.middleware...)
	r.mu.RUnlock()

	for i := len(middleware) - 1; i >= 0; i-- {
		h = middleware[i](h)
	}
	return h
}

// Live registers a live route. path is a ServeMux path such as
// "/forms/{slug}"; GET path renders the page and GET /live+path accepts
// the websocket.
func (r *Router) Live(path string, component func() core.Component, opts ...RouteOption) {
	route := &LiveRoute{
		Path:      path,
		Component: component,
		params:    patternParams(path),
	}
	for _, opt := range opts {
		opt(route)
	}

	r.mux.Handle("GET "+path, r.wrap(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if isWebSocketRequest(req) {
			r.serveSocket(w, req, route)
			return
		}
		r.renderPage(w, req, route)
	}), route.Middleware...))

	r.mux.Handle("GET "+LivePrefix+path, r.wrap(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.serveSocket(w, req, route)
	}), route.Middleware...))
}

// Handle registers a standard HTTP handler behind the router middleware.
func (r *Router) Handle(pattern string, handler http.Handler) {
	r.mux.Handle(pattern, r.wrap(handler))
}

// HandleFunc registers a standard HTTP handler function.
func (r *Router) HandleFunc(pattern string, handler http.HandlerFunc) {
	r.Handle(pattern, handler)
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) renderPage(w http.ResponseWriter, req *http.Request, route *LiveRoute) {
	component := route.Component()
	params := route.extractParams(req)
	session := r.sessionFunc(req)
	ctx := core.BuildContext(req.Context(), nil, session, params)

	if err := component.Mount(ctx, params, session); err != nil {
		r.errorHandler(w, req, err)
		return
	}
	defer component.Terminate(ctx, core.TerminateNormal)

	renderer := component.Render(ctx)
	if renderer == nil {
		r.errorHandler(w, req, ErrNilRenderer)
		return
	}

	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)
	if err := renderer.Render(ctx, buf); err != nil {
		r.errorHandler(w, req, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// serveSocket runs one live connection. It returns when the connection
// ends; events are handled one at a time in arrival order.
func (r *Router) serveSocket(w http.ResponseWriter, req *http.Request, route *LiveRoute) {
	logger := logging.L(req.Context())

	ws := transport.NewWebSocketTransport(r.transportConfig, r.wsConfig, logger)
	if err := ws.Upgrade(w, req); err != nil {
		if !errors.Is(err, transport.ErrOriginNotAllowed) {
			logger.Warn("websocket upgrade failed", logging.Err(err))
		}
		return
	}

	socket := core.NewSocket("lv:"+uuid.NewString(), NewTransportAdapter(ws))
	defer socket.Close()
	if err := r.sockets.Add(socket); err != nil {
		return
	}
	defer r.sockets.Remove(socket.ID())

	component := route.Component()
	if setter, ok := component.(core.SocketSetter); ok {
		setter.SetSocket(socket)
	}

	params := route.extractParams(req)
	session := r.sessionFunc(req)
	live, evicted := r.sessions.Create(socket, component, params, session)
	defer r.sessions.Remove(live.ID)
	if evicted != nil {
		_ = evicted.Socket.Close()
	}

	// The request context ends when the handler returns, which is exactly
	// the lifetime of the socket here.
	ctx := logging.ContextWithLogger(req.Context(), logger.With(logging.String("socket", socket.ID())))
	ctx = core.BuildContext(ctx, socket, session, params)

	if err := component.Mount(ctx, params, session); err != nil {
		r.sendError(socket, "", err)
		return
	}

	reason := core.TerminateNormal
	defer func() {
		if err := component.Terminate(context.WithoutCancel(ctx), reason); err != nil {
			logger.Warn("terminate failed", logging.Err(err))
		}
	}()

	r.render(ctx, live, "")

	for {
		select {
		case msg := <-ws.Receive():
			live.Touch()
			if err := component.HandleEvent(ctx, msg.Event, payloadOf(msg)); err != nil {
				r.sendError(socket, msg.Ref, err)
				continue
			}
			r.render(ctx, live, msg.Ref)

		case info := <-socket.Info():
			if err := component.HandleInfo(ctx, info); err != nil {
				logger.Warn("handle info failed", logging.Err(err))
				continue
			}
			r.render(ctx, live, "")

		case <-ws.Done():
			return

		case <-ctx.Done():
			reason = core.TerminateShutdown
			return
		}
	}
}

func payloadOf(msg transport.Message) map[string]any {
	if msg.Payload == nil {
		return map[string]any{}
	}
	return msg.Payload
}

func (r *Router) render(ctx context.Context, live *LiveSession, ref string) {
	renderer := live.Component.Render(ctx)
	if renderer == nil {
		r.sendError(live.Socket, ref, ErrNilRenderer)
		return
	}
	html, err := core.RenderString(ctx, renderer)
	if err != nil {
		r.sendError(live.Socket, ref, err)
		return
	}
	if err := live.Socket.Reply(ref, "render", map[string]any{
		"html":    html,
		"version": live.NextVersion(),
	}); err != nil && !errors.Is(err, core.ErrSocketClosed) {
		logging.L(ctx).Warn("render not sent", logging.Err(err))
	}
}

func (r *Router) sendError(socket *core.Socket, ref string, err error) {
	_ = socket.Reply(ref, "error", map[string]any{"reason": err.Error()})
}

// StartJanitor closes idle live sessions every interval until ctx ends.
func (r *Router) StartJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				for _, s := range r.sessions.Expired() {
					_ = s.Socket.Close()
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Shutdown closes every live socket.
func (r *Router) Shutdown(ctx context.Context) error {
	if err := r.sockets.Shutdown(ctx); err != nil {
		return fmt.Errorf("closing sockets: %w", err)
	}
	return nil
}

// extractParams collects path values then query values; path values win.
func (route *LiveRoute) extractParams(req *http.Request) core.Params {
	params := make(core.Params)
	for key, values := range req.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	for _, name := range route.params {
		if v := req.PathValue(name); v != "" {
			params[name] = v
		}
	}
	return params
}

// patternParams lists the wildcard names of a ServeMux pattern.
func patternParams(pattern string) []string {
	var names []string
	for _, seg := range strings.Split(pattern, "/") {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			name := strings.TrimSuffix(strings.TrimSuffix(seg[1:len(seg)-1], "..."), "$")
			if name != "" {
				names = append(names, name)
			}
		}
	}
	return names
}

func isWebSocketRequest(req *http.Request) bool {
	return strings.EqualFold(req.Header.Get("Upgrade"), "websocket")
}
