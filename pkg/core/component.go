// Package core provides the component model shared by every live page:
// a component is mounted with route params and session data, handles
// browser events and internal messages, and renders HTML.
package core

import (
	"context"
	"io"
	"strconv"
	"strings"
)

// Component is the interface that all live components implement.
type Component interface {
	// Name returns the identifier for this component type.
	Name() string

	// Mount is called once with the route params and session data, before
	// the first render.
	Mount(ctx context.Context, params Params, session Session) error

	// Render returns the current HTML representation of the component.
	// It is called after Mount and after each handled event or message.
	Render(ctx context.Context) Renderer

	// HandleEvent processes a browser event. The payload carries event
	// data such as the field name and value.
	HandleEvent(ctx context.Context, event string, payload map[string]any) error

	// HandleInfo processes a message the server sends to the component
	// itself, such as a timer firing.
	HandleInfo(ctx context.Context, msg any) error

	// Terminate is called when the component is being destroyed.
	Terminate(ctx context.Context, reason TerminateReason) error
}

// Renderer writes HTML.
type Renderer interface {
	Render(ctx context.Context, w io.Writer) error
}

// RendererFunc is an adapter to allow ordinary functions to be used as Renderers.
type RendererFunc func(ctx context.Context, w io.Writer) error

func (f RendererFunc) Render(ctx context.Context, w io.Writer) error {
	return f(ctx, w)
}

// RenderString renders r into a string.
func RenderString(ctx context.Context, r Renderer) (string, error) {
	var sb strings.Builder
	if err := r.Render(ctx, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Params contains path parameters and query values of the connection.
type Params map[string]string

// Get returns a parameter value or empty string if not found.
func (p Params) Get(key string) string {
	return p[key]
}

// GetDefault returns a parameter value or the default if not found.
func (p Params) GetDefault(key, defaultValue string) string {
	if v, ok := p[key]; ok && v != "" {
		return v
	}
	return defaultValue
}

// Int returns a parameter parsed as an integer.
func (p Params) Int(key string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(p[key]))
	if err != nil {
		return 0, false
	}
	return n, true
}

// Session keys set by the router.
const (
	SessionIDKey = "session_id"
	CSRFTokenKey = "csrf_token"
)

// Session contains data passed from the HTTP handler.
type Session map[string]any

// Get returns a session value.
func (s Session) Get(key string) any {
	return s[key]
}

// GetString returns a session value as string.
func (s Session) GetString(key string) string {
	if v, ok := s[key].(string); ok {
		return v
	}
	return ""
}

// ID returns the browser session id.
func (s Session) ID() string {
	return s.GetString(SessionIDKey)
}

// TerminateReason indicates why a component is being terminated.
type TerminateReason int

const (
	// TerminateNormal indicates clean disconnection.
	TerminateNormal TerminateReason = iota
	// TerminateShutdown indicates server shutdown.
	TerminateShutdown
	// TerminateError indicates termination due to an error.
	TerminateError
	// TerminateTimeout indicates termination due to inactivity.
	TerminateTimeout
)

func (r TerminateReason) String() string {
	switch r {
	case TerminateNormal:
		return "normal"
	case TerminateShutdown:
		return "shutdown"
	case TerminateError:
		return "error"
	case TerminateTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// BaseComponent provides default implementations for Component methods.
// Embed it to avoid implementing unused methods.
type BaseComponent struct {
	socket *Socket
}

// SetSocket sets the socket for the component (called by the router).
func (bc *BaseComponent) SetSocket(s *Socket) {
	bc.socket = s
}

// Socket returns the component's socket, nil outside a live connection.
func (bc *BaseComponent) Socket() *Socket {
	return bc.socket
}

// Name returns an empty string (override in your component).
func (bc *BaseComponent) Name() string {
	return ""
}

// Mount does nothing by default.
func (bc *BaseComponent) Mount(ctx context.Context, params Params, session Session) error {
	return nil
}

// HandleEvent does nothing by default.
func (bc *BaseComponent) HandleEvent(ctx context.Context, event string, payload map[string]any) error {
	return nil
}

// HandleInfo does nothing by default.
func (bc *BaseComponent) HandleInfo(ctx context.Context, msg any) error {
	return nil
}

// Terminate does nothing by default.
func (bc *BaseComponent) Terminate(ctx context.Context, reason TerminateReason) error {
	return nil
}

// SocketSetter is implemented by components embedding BaseComponent.
type SocketSetter interface {
	SetSocket(*Socket)
}
