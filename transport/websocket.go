package transport

import (
	"context"
	"crypto/tls"
	stderrors "errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/c360/enginelink/errors"
	"github.com/c360/enginelink/pkg/retry"
)

// WebSocketChannel is the production Channel implementation over a single
// websocket connection. One writer at a time is enforced internally; reads
// happen on a dedicated goroutine that feeds subscribers.
type WebSocketChannel struct {
	dialTimeout time.Duration
	tlsConfig   *tls.Config
	retryCfg    retry.Config
	logger      *slog.Logger

	// Guards conn and serializes writes.
	mu   sync.Mutex
	conn *websocket.Conn

	subsMu sync.RWMutex
	subs   map[int]EventHandler
	nextID int

	opened atomic.Bool
	closed atomic.Bool
}

// Option configures a WebSocketChannel.
type Option func(*WebSocketChannel)

// WithDialTimeout sets the websocket handshake timeout.
func WithDialTimeout(d time.Duration) Option {
	return func(c *WebSocketChannel) { c.dialTimeout = d }
}

// WithTLSConfig sets the TLS configuration used when dialing wss addresses.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(c *WebSocketChannel) { c.tlsConfig = cfg }
}

// WithRetry sets the backoff policy for the dial attempt.
func WithRetry(cfg retry.Config) Option {
	return func(c *WebSocketChannel) { c.retryCfg = cfg }
}

// WithLogger sets the logger for frame-level tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *WebSocketChannel) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewWebSocketChannel creates an unopened channel.
func NewWebSocketChannel(opts ...Option) *WebSocketChannel {
	c := &WebSocketChannel{
		dialTimeout: 45 * time.Second,
		retryCfg:    retry.Quick(),
		logger:      slog.Default(),
		subs:        make(map[int]EventHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open dials the engine endpoint, retrying transient dial failures with
// backoff, then starts the read pump and fires the opened event.
func (c *WebSocketChannel) Open(ctx context.Context, address string) error {
	if c.closed.Load() {
		return errors.WrapTransport(errors.ErrChannelNotOpen, "Channel", "Open", "reuse closed channel")
	}
	if !c.opened.CompareAndSwap(false, true) {
		return errors.WrapTransport(
			stderrors.New("channel already open"), "Channel", "Open", "open")
	}

	dialer := &websocket.Dialer{
		HandshakeTimeout: c.dialTimeout,
		TLSClientConfig:  c.tlsConfig,
	}

	conn, err := retry.DoWithResult(ctx, c.retryCfg, func() (*websocket.Conn, error) {
		conn, _, dialErr := dialer.DialContext(ctx, address, nil)
		return conn, dialErr
	})
	if err != nil {
		c.opened.Store(false)
		return errors.WrapTransport(err, "Channel", "Open", "dial "+address)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.logger.Debug("channel opened", "address", address)
	go c.readLoop(conn)
	c.dispatch(func(h EventHandler) { h.HandleOpened() })
	return nil
}

// Subscribe registers h and returns its handle.
func (c *WebSocketChannel) Subscribe(h EventHandler) Subscription {
	c.subsMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = h
	c.subsMu.Unlock()
	return &wsSubscription{channel: c, id: id}
}

// SendText writes one text frame.
func (c *WebSocketChannel) SendText(text string) error {
	return c.write(websocket.TextMessage, []byte(text))
}

// SendBinary writes one binary frame.
func (c *WebSocketChannel) SendBinary(data []byte) error {
	return c.write(websocket.BinaryMessage, data)
}

func (c *WebSocketChannel) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || c.closed.Load() {
		return errors.WrapTransport(errors.ErrChannelNotOpen, "Channel", "Send", "write frame")
	}
	if err := c.conn.WriteMessage(messageType, data); err != nil {
		return errors.WrapTransport(err, "Channel", "Send", "write frame")
	}
	return nil
}

// Close shuts the connection down. Safe to call multiple times; the read
// pump reports a closed event rather than an error afterwards.
func (c *WebSocketChannel) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	// Best effort close frame; the peer may already be gone.
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return conn.Close()
}

// readLoop pumps frames to subscribers until the connection dies.
func (c *WebSocketChannel) readLoop(conn *websocket.Conn) {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				c.dispatch(func(h EventHandler) { h.HandleClosed(websocket.CloseNormalClosure) })
				return
			}
			var closeErr *websocket.CloseError
			if stderrors.As(err, &closeErr) {
				c.logger.Debug("channel closed by peer", "code", closeErr.Code)
				c.dispatch(func(h EventHandler) { h.HandleClosed(closeErr.Code) })
				return
			}
			wrapped := errors.WrapTransport(err, "Channel", "readLoop", "read frame")
			c.dispatch(func(h EventHandler) { h.HandleErrored(wrapped) })
			return
		}

		switch messageType {
		case websocket.TextMessage:
			c.dispatch(func(h EventHandler) {
				h.HandleMessage(Frame{Kind: FrameText, Text: string(data)})
			})
		case websocket.BinaryMessage:
			c.dispatch(func(h EventHandler) {
				h.HandleMessage(Frame{Kind: FrameBinary, Data: data})
			})
		default:
			// Control frames are handled by the websocket library.
		}
	}
}

// dispatch invokes fn for every current subscriber.
func (c *WebSocketChannel) dispatch(fn func(EventHandler)) {
	c.subsMu.RLock()
	handlers := make([]EventHandler, 0, len(c.subs))
	for _, h := range c.subs {
		handlers = append(handlers, h)
	}
	c.subsMu.RUnlock()

	for _, h := range handlers {
		fn(h)
	}
}

type wsSubscription struct {
	channel *WebSocketChannel
	id      int
	once    sync.Once
}

// Cancel detaches the handler from the channel.
func (s *wsSubscription) Cancel() {
	s.once.Do(func() {
		s.channel.subsMu.Lock()
		delete(s.channel.subs, s.id)
		s.channel.subsMu.Unlock()
	})
}
