package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/hsche/edureg/pkg/logging"
)

// ErrOriginNotAllowed is returned when an upgrade comes from a foreign origin.
var ErrOriginNotAllowed = errors.New("origin not allowed")

// WebSocketConfig configures origin checks.
type WebSocketConfig struct {
	// AllowedOrigins lists origins accepted in addition to same-origin.
	// "*" accepts any origin.
	AllowedOrigins []string

	// InsecureDevMode disables origin validation. Development only.
	InsecureDevMode bool
}

// DefaultWebSocketConfig allows same-origin connections only.
func DefaultWebSocketConfig() *WebSocketConfig {
	return &WebSocketConfig{}
}

// OriginAllowed reports whether origin may open a socket to host.
func (c *WebSocketConfig) OriginAllowed(origin, host string) bool {
	if c != nil && c.InsecureDevMode {
		return true
	}
	// Browsers always send Origin; its absence means a non-browser client.
	if origin == "" {
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil || originURL.Host == "" {
		return false
	}
	if originURL.Host == host {
		return true
	}

	if c == nil {
		return false
	}
	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
		if allowedURL, err := url.Parse(allowed); err == nil && allowedURL.Host == originURL.Host {
			return true
		}
	}
	return false
}

// WebSocketTransport implements Transport over a coder/websocket conn.
type WebSocketTransport struct {
	*BaseTransport
	conn     *websocket.Conn
	wsConfig *WebSocketConfig
	logger   logging.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	flushed chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
}

// NewWebSocketTransport creates an unconnected transport. Call Upgrade or
// Dial to connect it.
func NewWebSocketTransport(config *Config, wsConfig *WebSocketConfig, logger logging.Logger) *WebSocketTransport {
	if wsConfig == nil {
		wsConfig = DefaultWebSocketConfig()
	}
	if logger == nil {
		logger = logging.NopLogger{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WebSocketTransport{
		BaseTransport: NewBaseTransport(config),
		wsConfig:      wsConfig,
		logger:        logger,
		ctx:           ctx,
		cancel:        cancel,
		flushed:       make(chan struct{}),
	}
}

// Upgrade upgrades an HTTP request to a WebSocket after checking its
// origin.
func (t *WebSocketTransport) Upgrade(w http.ResponseWriter, r *http.Request) error {
	origin := r.Header.Get("Origin")
	if !t.wsConfig.OriginAllowed(origin, r.Host) {
		t.logger.Warn("websocket origin rejected", logging.String("origin", origin), logging.String("host", r.Host))
		http.Error(w, "Forbidden: Origin not allowed", http.StatusForbidden)
		return ErrOriginNotAllowed
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Origin was validated above.
		InsecureSkipVerify: true,
	})
	if err != nil {
		return fmt.Errorf("accept websocket: %w", err)
	}
	t.start(conn)
	return nil
}

// Dial connects to a live endpoint as a client. Used by tools and tests.
func Dial(ctx context.Context, rawURL string, header http.Header, config *Config) (*WebSocketTransport, error) {
	conn, _, err := websocket.Dial(ctx, rawURL, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return nil, fmt.Errorf("dial websocket: %w", err)
	}
	t := NewWebSocketTransport(config, nil, nil)
	t.start(conn)
	return t, nil
}

func (t *WebSocketTransport) start(conn *websocket.Conn) {
	conn.SetReadLimit(t.config.MaxMessageSize)

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()
	t.SetConnected(true)

	t.wg.Add(3)
	go t.readLoop()
	go t.writeLoop()
	go t.pingLoop()
}

// Close writes any queued messages, closes the connection and waits for its
// goroutines.
func (t *WebSocketTransport) Close() error {
	t.BaseTransport.Close()

	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	if conn != nil {
		<-t.flushed

		t.mu.Lock()
		t.conn = nil
		t.mu.Unlock()

		// Fails when the peer is already gone; nothing left to do then.
		if err := conn.Close(websocket.StatusNormalClosure, "closing"); err != nil {
			t.logger.Debug("websocket close", logging.Err(err))
		}
	}
	t.cancel()
	t.wg.Wait()
	return nil
}

func (t *WebSocketTransport) currentConn() *websocket.Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn
}

func (t *WebSocketTransport) readLoop() {
	defer t.wg.Done()
	defer t.BaseTransport.Close()

	for {
		conn := t.currentConn()
		if conn == nil {
			return
		}

		_, data, err := conn.Read(t.ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && t.ctx.Err() == nil {
				t.logger.Debug("websocket read ended", logging.Err(err))
			}
			return
		}

		msg, err := Unmarshal(data)
		if err != nil {
			t.logger.Debug("websocket message dropped", logging.Err(err))
			continue
		}

		if msg.Event == "ping" {
			t.reply(Message{Ref: msg.Ref, Event: "pong"})
			continue
		}

		select {
		case t.recvCh <- msg:
		case <-t.closeCh:
			return
		}
	}
}

func (t *WebSocketTransport) reply(msg Message) {
	select {
	case t.sendCh <- msg:
	default:
	}
}

func (t *WebSocketTransport) writeLoop() {
	defer t.wg.Done()
	defer close(t.flushed)

	for {
		select {
		case msg := <-t.sendCh:
			if err := t.write(msg); err != nil {
				t.BaseTransport.Close()
				return
			}

		case <-t.closeCh:
			// Drain what was queued before the close so final replies
			// such as mount errors reach the client.
			for {
				select {
				case msg := <-t.sendCh:
					if err := t.write(msg); err != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (t *WebSocketTransport) write(msg Message) error {
	conn := t.currentConn()
	if conn == nil {
		return ErrConnectionClosed
	}

	data, err := msg.Marshal()
	if err != nil {
		t.logger.Warn("websocket message not encodable", logging.String("event", msg.Event), logging.Err(err))
		return nil
	}

	ctx, cancel := context.WithTimeout(t.ctx, t.config.WriteTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}

func (t *WebSocketTransport) pingLoop() {
	defer t.wg.Done()

	ticker := time.NewTicker(t.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			conn := t.currentConn()
			if conn == nil {
				return
			}
			ctx, cancel := context.WithTimeout(t.ctx, t.config.WriteTimeout)
			err := conn.Ping(ctx)
			cancel()
			if err != nil {
				t.BaseTransport.Close()
				return
			}
		case <-t.closeCh:
			return
		}
	}
}
