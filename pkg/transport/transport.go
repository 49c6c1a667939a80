// Package transport carries live component messages between the browser
// and the server.
package transport

import (
	"encoding/json"
	"errors"
	"sync"
	"time"
)

// Common transport errors.
var (
	ErrNotConnected     = errors.New("transport not connected")
	ErrConnectionClosed = errors.New("connection closed")
	ErrSendTimeout      = errors.New("send timeout")
	ErrInvalidMessage   = errors.New("invalid message format")
)

// Transport is a bidirectional message channel to one client.
type Transport interface {
	// Send queues a message for the client.
	Send(msg Message) error

	// Receive returns a channel for incoming messages.
	Receive() <-chan Message

	// Done is closed when the connection ends.
	Done() <-chan struct{}

	Close() error
	IsConnected() bool
}

// Message is one JSON frame.
type Message struct {
	// Ref correlates a reply with the client message that caused it.
	Ref     string         `json:"ref,omitempty"`
	Event   string         `json:"event"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Marshal serializes the message to JSON.
func (m Message) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// Unmarshal deserializes a message from JSON. A message without an event
// is invalid.
func Unmarshal(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, errors.Join(ErrInvalidMessage, err)
	}
	if m.Event == "" {
		return Message{}, ErrInvalidMessage
	}
	return m, nil
}

// Config holds transport configuration.
type Config struct {
	// WriteTimeout bounds a single frame write.
	WriteTimeout time.Duration

	// PingInterval is how often to send heartbeats.
	PingInterval time.Duration

	// MaxMessageSize is the maximum inbound message size in bytes.
	MaxMessageSize int64

	SendBufferSize    int
	ReceiveBufferSize int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		WriteTimeout:      10 * time.Second,
		PingInterval:      30 * time.Second,
		MaxMessageSize:    64 * 1024,
		SendBufferSize:    64,
		ReceiveBufferSize: 64,
	}
}

// BaseTransport provides the channels and state shared by transports.
type BaseTransport struct {
	config    *Config
	connected bool
	sendCh    chan Message
	recvCh    chan Message
	closeCh   chan struct{}
	closeOnce sync.Once
	mu        sync.RWMutex
}

// NewBaseTransport creates a new base transport.
func NewBaseTransport(config *Config) *BaseTransport {
	if config == nil {
		config = DefaultConfig()
	}
	return &BaseTransport{
		config:  config,
		sendCh:  make(chan Message, config.SendBufferSize),
		recvCh:  make(chan Message, config.ReceiveBufferSize),
		closeCh: make(chan struct{}),
	}
}

// Config returns the transport configuration.
func (t *BaseTransport) Config() *Config {
	return t.config
}

// IsConnected returns the connection status.
func (t *BaseTransport) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected
}

// SetConnected updates the connection status.
func (t *BaseTransport) SetConnected(connected bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected = connected
}

// Receive returns the receive channel.
func (t *BaseTransport) Receive() <-chan Message {
	return t.recvCh
}

// Done returns a channel closed on Close.
func (t *BaseTransport) Done() <-chan struct{} {
	return t.closeCh
}

// Close marks the transport closed.
func (t *BaseTransport) Close() error {
	t.closeOnce.Do(func() {
		t.SetConnected(false)
		close(t.closeCh)
	})
	return nil
}

// Send queues msg, waiting up to the write timeout for buffer space.
func (t *BaseTransport) Send(msg Message) error {
	if !t.IsConnected() {
		return ErrNotConnected
	}

	timer := time.NewTimer(t.config.WriteTimeout)
	defer timer.Stop()

	select {
	case t.sendCh <- msg:
		return nil
	case <-t.closeCh:
		return ErrConnectionClosed
	case <-timer.C:
		return ErrSendTimeout
	}
}
