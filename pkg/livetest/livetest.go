// Package livetest drives live components without a browser or websocket.
//
// A View mounts a component on a socket backed by an in-memory transport,
// dispatches events the way the router does and keeps the latest render.
package livetest

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/hsche/edureg/pkg/core"
)

// Transport records everything pushed to the socket.
type Transport struct {
	mu     sync.Mutex
	sent   []core.Message
	closed bool
}

// Send implements core.Transport.
func (tr *Transport) Send(msg core.Message) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.closed {
		return core.ErrSocketClosed
	}
	tr.sent = append(tr.sent, msg)
	return nil
}

// Close implements core.Transport.
func (tr *Transport) Close() error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.closed = true
	return nil
}

// IsConnected implements core.Transport.
func (tr *Transport) IsConnected() bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return !tr.closed
}

// Sent returns a copy of the pushed messages.
func (tr *Transport) Sent() []core.Message {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]core.Message(nil), tr.sent...)
}

// View is a mounted component under test.
type View struct {
	t         testing.TB
	comp      core.Component
	socket    *core.Socket
	transport *Transport
	ctx       context.Context
	html      string
	renders   int
	closed    bool
}

type options struct {
	params  core.Params
	session core.Session
	ctx     context.Context
}

// Option configures Mount.
type Option func(*options)

// WithParams sets the mount params, e.g. path values.
func WithParams(params core.Params) Option {
	return func(o *options) {
		o.params = params
	}
}

// WithSession sets the session. A session id is generated when missing.
func WithSession(session core.Session) Option {
	return func(o *options) {
		o.session = session
	}
}

// WithContext sets the base context.
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		o.ctx = ctx
	}
}

// Mount mounts comp and renders it once. The component is terminated when
// the test ends.
func Mount(t testing.TB, comp core.Component, opts ...Option) *View {
	t.Helper()

	o := options{ctx: context.Background()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.params == nil {
		o.params = core.Params{}
	}
	if o.session == nil {
		o.session = core.Session{}
	}
	if o.session.ID() == "" {
		o.session[core.SessionIDKey] = uuid.NewString()
	}

	tr := &Transport{}
	socket := core.NewSocket("test:"+uuid.NewString(), tr)
	if setter, ok := comp.(core.SocketSetter); ok {
		setter.SetSocket(socket)
	}

	v := &View{
		t:         t,
		comp:      comp,
		socket:    socket,
		transport: tr,
		ctx:       core.BuildContext(o.ctx, socket, o.session, o.params),
	}

	require.NoError(t, comp.Mount(v.ctx, o.params, o.session), "mount")
	v.render()
	t.Cleanup(v.Close)
	return v
}

// Socket returns the socket the component was mounted on.
func (v *View) Socket() *core.Socket {
	return v.socket
}

// Context returns the context events are handled with.
func (v *View) Context() context.Context {
	return v.ctx
}

// Event handles one event and re-renders, like a websocket frame.
func (v *View) Event(event string, payload map[string]any) error {
	v.t.Helper()
	if payload == nil {
		payload = map[string]any{}
	}
	if err := v.comp.HandleEvent(v.ctx, event, payload); err != nil {
		return err
	}
	v.render()
	return nil
}

// MustEvent is Event failing the test on error.
func (v *View) MustEvent(event string, payload map[string]any) *View {
	v.t.Helper()
	require.NoError(v.t, v.Event(event, payload), "event %s", event)
	return v
}

// Change sends an update_field event.
func (v *View) Change(field string, value any) *View {
	v.t.Helper()
	return v.MustEvent("update_field", map[string]any{"field": field, "value": value})
}

// FlushInfo handles every queued info message without waiting and returns
// how many there were.
func (v *View) FlushInfo() int {
	v.t.Helper()
	n := 0
	for {
		select {
		case msg := <-v.socket.Info():
			v.handleInfo(msg)
			n++
		default:
			return n
		}
	}
}

// AwaitInfo waits up to timeout for one info message and handles it.
func (v *View) AwaitInfo(timeout time.Duration) bool {
	v.t.Helper()
	select {
	case msg := <-v.socket.Info():
		v.handleInfo(msg)
		return true
	case <-time.After(timeout):
		return false
	}
}

func (v *View) handleInfo(msg any) {
	v.t.Helper()
	require.NoError(v.t, v.comp.HandleInfo(v.ctx, msg), "info %v", msg)
	v.render()
}

func (v *View) render() {
	v.t.Helper()
	renderer := v.comp.Render(v.ctx)
	require.NotNil(v.t, renderer, "render")
	html, err := core.RenderString(v.ctx, renderer)
	require.NoError(v.t, err, "render")
	v.html = html
	v.renders++
}

// HTML returns the latest render.
func (v *View) HTML() string {
	return v.html
}

// Renders counts renders so far, including the one after mount.
func (v *View) Renders() int {
	return v.renders
}

// Has reports whether the latest render contains s.
func (v *View) Has(s string) bool {
	return strings.Contains(v.html, s)
}

// AssertHas fails the test unless every string appears in the render.
func (v *View) AssertHas(texts ...string) {
	v.t.Helper()
	for _, s := range texts {
		if !v.Has(s) {
			v.t.Errorf("render does not contain %q\n%s", s, v.html)
		}
	}
}

// AssertHasNot fails the test if any string appears in the render.
func (v *View) AssertHasNot(texts ...string) {
	v.t.Helper()
	for _, s := range texts {
		if v.Has(s) {
			v.t.Errorf("render unexpectedly contains %q\n%s", s, v.html)
		}
	}
}

// Pushed returns the messages the component pushed to the socket.
func (v *View) Pushed() []core.Message {
	return v.transport.Sent()
}

// Close terminates the component and closes the socket. Safe to call more
// than once.
func (v *View) Close() {
	if v.closed {
		return
	}
	v.closed = true
	if err := v.comp.Terminate(context.WithoutCancel(v.ctx), core.TerminateNormal); err != nil {
		v.t.Errorf("terminate: %v", err)
	}
	_ = v.socket.Close()
}
