package router

import (
	"github.com/hsche/edureg/pkg/core"
	"github.com/hsche/edureg/pkg/transport"
)

// TransportAdapter lets a core.Socket write to a transport.Transport.
type TransportAdapter struct {
	t transport.Transport
}

// NewTransportAdapter wraps t.
func NewTransportAdapter(t transport.Transport) *TransportAdapter {
	return &TransportAdapter{t: t}
}

// Send implements core.Transport.
func (a *TransportAdapter) Send(msg core.Message) error {
	return a.t.Send(transport.Message{
		Ref:     msg.Ref,
		Event:   msg.Event,
		Payload: msg.Payload,
	})
}

// Close implements core.Transport.
func (a *TransportAdapter) Close() error {
	return a.t.Close()
}

// IsConnected implements core.Transport.
func (a *TransportAdapter) IsConnected() bool {
	return a.t.IsConnected()
}

// Transport returns the wrapped transport.
func (a *TransportAdapter) Transport() transport.Transport {
	return a.t
}
