package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// closeWriteTimeout bounds the close handshake frame write.
	closeWriteTimeout = 5 * time.Second

	// maxMessageSize is the largest feed message accepted.
	maxMessageSize = 1 << 20
)

// WebSocketTransport connects to a feed over a WebSocket and posts every text
// frame as a message. Binary frames are ignored.
type WebSocketTransport struct {
	url    string
	dialer *websocket.Dialer
	header http.Header

	mu      sync.Mutex
	conn    *websocket.Conn
	cancel  context.CancelFunc
	closing bool
}

// TransportOption configures a WebSocketTransport.
type TransportOption func(*WebSocketTransport)

// WithDialer replaces websocket.DefaultDialer.
func WithDialer(d *websocket.Dialer) TransportOption {
	return func(t *WebSocketTransport) { t.dialer = d }
}

// WithHeader sets extra handshake headers.
func WithHeader(h http.Header) TransportOption {
	return func(t *WebSocketTransport) { t.header = h }
}

// NewWebSocketTransport returns a transport for the ws:// or wss:// url.
func NewWebSocketTransport(url string, opts ...TransportOption) *WebSocketTransport {
	t := &WebSocketTransport{url: url, dialer: websocket.DefaultDialer}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Connect dials in the background and starts the read loop.
func (t *WebSocketTransport) Connect(ctx context.Context, inbox Inbox) {
	ctx, cancel := context.WithCancel(ctx)
	t.mu.Lock()
	t.cancel = cancel
	t.mu.Unlock()
	go t.run(ctx, inbox)
}

// Close sends a close frame and closes the connection. The read loop then
// posts SignalClosed.
func (t *WebSocketTransport) Close() error {
	t.mu.Lock()
	if t.closing {
		t.mu.Unlock()
		return nil
	}
	t.closing = true
	conn, cancel := t.conn, t.cancel
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn == nil {
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteTimeout))
	if err := conn.Close(); err != nil {
		return fmt.Errorf("feed: close websocket: %w", err)
	}
	return nil
}

func (t *WebSocketTransport) run(ctx context.Context, inbox Inbox) {
	conn, resp, err := t.dialer.DialContext(ctx, t.url, t.header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if t.isClosing() || ctx.Err() != nil {
			inbox.Post(Closed())
			return
		}
		inbox.Post(Failed(fmt.Errorf("dial %s: %w", t.url, err)))
		return
	}

	t.mu.Lock()
	if t.closing {
		t.mu.Unlock()
		conn.Close()
		inbox.Post(Closed())
		return
	}
	t.conn = conn
	t.mu.Unlock()

	slog.Info("feed: websocket connected", "url", t.url)

	// Cancelling ctx shuts the connection down like Close.
	stop := context.AfterFunc(ctx, func() { _ = t.Close() })
	defer stop()

	conn.SetReadLimit(maxMessageSize)
	for {
		typ, data, err := conn.ReadMessage()
		if err != nil {
			if t.isClosing() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				inbox.Post(Closed())
			} else {
				inbox.Post(Failed(fmt.Errorf("read: %w", err)))
			}
			conn.Close()
			return
		}
		if typ != websocket.TextMessage {
			slog.Debug("feed: ignoring non-text frame", "type", typ, "bytes", len(data))
			continue
		}
		inbox.Post(Message(data))
	}
}

func (t *WebSocketTransport) isClosing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closing
}
