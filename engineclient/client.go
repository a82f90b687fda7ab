package engineclient

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/c360/enginelink/errors"
	"github.com/c360/enginelink/metric"
	"github.com/c360/enginelink/protocol"
	"github.com/c360/enginelink/transport"
)

// State is the connection lifecycle phase.
type State int32

const (
	// StateDisconnected means no channel is held. Execute self-heals from
	// here by dialing lazily.
	StateDisconnected State = iota
	// StateConnecting means a channel is being dialed.
	StateConnecting
	// StateAuthenticating means the channel is open and the credential
	// handshake is in flight.
	StateAuthenticating
	// StateReady means commands can be sent.
	StateReady
	// StateClosed is terminal; construct a new client to reconnect.
	StateClosed
)

// String returns the lifecycle label.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const (
	defaultCommandTimeout   = 30 * time.Second
	defaultHandshakeTimeout = 10 * time.Second
)

// Client is the single logical session to a remote engine. It owns at most
// one channel at a time; Execute is self-healing and reconnects lazily when
// the session was lost. All methods are safe for concurrent use.
type Client struct {
	endpoint  string
	authToken string

	commandTimeout   time.Duration
	handshakeTimeout time.Duration
	logger           *slog.Logger
	registrar        metric.Registrar
	metricsName      string
	metrics          *Metrics
	newChannel       func() transport.Channel
	onSend           func(text string)
	onReceive        func(resp *protocol.Response)

	pending *correlator
	state   atomic.Int32
	closed  atomic.Bool

	// connectMu serializes connect and teardown cycles; mu guards the
	// per-connection references below it.
	connectMu     sync.Mutex
	mu            sync.Mutex
	channel       transport.Channel
	sub           transport.Subscription
	hs            *handshake
	everConnected bool
}

// NewClient creates a client for the engine at endpoint. The credential is
// sent once per connection inside the headers request; an empty credential
// is allowed and left for the engine to judge.
func NewClient(endpoint, authToken string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}

	c := &Client{
		endpoint:         endpoint,
		authToken:        authToken,
		commandTimeout:   defaultCommandTimeout,
		handshakeTimeout: defaultHandshakeTimeout,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("invalid client option: %w", err)
		}
	}

	if c.newChannel == nil {
		c.newChannel = func() transport.Channel {
			return transport.NewWebSocketChannel(transport.WithLogger(c.logger))
		}
	}

	metrics, err := newMetrics(c.registrar, c.metricsName)
	if err != nil {
		return nil, errors.Wrap(err, "Client", "NewClient", "register metrics")
	}
	c.metrics = metrics
	c.pending = newCorrelator(c.logger)
	c.state.Store(int32(StateDisconnected))
	return c, nil
}

// State returns the current lifecycle phase.
func (c *Client) State() State {
	return State(c.state.Load())
}

// Pending reports the number of commands awaiting a response.
func (c *Client) Pending() int {
	return c.pending.size()
}

func (c *Client) setState(s State) {
	c.state.Store(int32(s))
}

// Initialize prepares the client without touching the network. It exists for
// callers whose lifecycle demands an explicit init hook before any command
// is issued; the connection itself is established lazily.
func (c *Client) Initialize() error {
	if c.closed.Load() {
		return errors.WrapTransport(errors.ErrClientClosed, "Client", "Initialize", "check state")
	}
	return nil
}

// StartSession establishes the connection and completes the authentication
// handshake. Execute calls this implicitly; it is exposed for callers that
// want to front-load the handshake cost.
func (c *Client) StartSession(ctx context.Context) error {
	return c.ensureReady(ctx)
}

// Execute sends one command and blocks until its response arrives, its
// deadline fires, or ctx is cancelled. A missing id is derived; a duplicate
// id fails fast before any network I/O.
func (c *Client) Execute(ctx context.Context, req protocol.CommandRequest) (*protocol.Response, error) {
	if err := c.ensureReady(ctx); err != nil {
		return nil, err
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	entry, err := c.pending.register(req.ID, c.commandTimeout)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	if err := c.sendRequest(req); err != nil {
		c.pending.take(req.ID)
		return nil, err
	}
	c.metrics.recordSent()

	return c.await(ctx, req.ID, entry, started)
}

// ExecuteSerialized sends an already-serialized command body and returns the
// raw binary response document. This is the calling convention of the
// embedded kernel, which speaks the wire format natively.
func (c *Client) ExecuteSerialized(ctx context.Context, command []byte) ([]byte, error) {
	resp, err := c.Execute(ctx, protocol.CommandRequest{Command: command})
	if err != nil {
		return nil, err
	}
	return []byte(resp.Raw), nil
}

// BatchResult is the settled outcome of one sub-command in a batch.
type BatchResult struct {
	ID       string
	Response *protocol.Response
	Err      error
}

// ExecuteBatch sends the sub-commands as one batch request and blocks until
// every sub-command settles. Each sub-command resolves independently: some
// may succeed while others time out. The returned slice is parallel to
// req.Commands.
func (c *Client) ExecuteBatch(ctx context.Context, req protocol.BatchRequest) ([]BatchResult, error) {
	if len(req.Commands) == 0 {
		return nil, fmt.Errorf("batch request needs at least one command")
	}
	if err := c.ensureReady(ctx); err != nil {
		return nil, err
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	entries := make([]*pendingCommand, 0, len(req.Commands))
	for i := range req.Commands {
		if req.Commands[i].ID == "" {
			req.Commands[i].ID = uuid.NewString()
		}
		entry, err := c.pending.register(req.Commands[i].ID, c.commandTimeout)
		if err != nil {
			for _, registered := range entries {
				c.pending.take(registered.id)
			}
			return nil, err
		}
		entries = append(entries, entry)
	}

	started := time.Now()
	if err := c.sendRequest(req); err != nil {
		for _, registered := range entries {
			c.pending.take(registered.id)
		}
		return nil, err
	}
	for range entries {
		c.metrics.recordSent()
	}

	results := make([]BatchResult, len(entries))
	for i, entry := range entries {
		resp, err := c.await(ctx, entry.id, entry, started)
		results[i] = BatchResult{ID: entry.id, Response: resp, Err: err}
	}
	return results, nil
}

// Cleanup is the single choke point for releasing resources: it detaches the
// event subscription, closes the channel, rejects every pending command with
// a connection-closed error, and moves the client to Closed. Idempotent.
func (c *Client) Cleanup() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}

	// Unblock a connect cycle waiting on its handshake before taking the
	// connect lock.
	c.mu.Lock()
	if c.hs != nil {
		c.hs.fail(errors.WrapAuth(errors.ErrClientClosed, "Client", "Cleanup", "abort handshake"))
	}
	c.mu.Unlock()

	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	c.teardownChannel()
	swept := c.pending.sweep(errors.WrapTransport(
		errors.ErrConnectionClosed, "Client", "Cleanup", "abort pending command"))
	c.metrics.setPending(0)
	c.setState(StateClosed)
	if swept > 0 {
		c.logger.Info("client closed with commands in flight", "swept", swept)
	} else {
		c.logger.Debug("client closed")
	}
}

// ensureReady returns once the connection is Ready, performing a full
// teardown+connect+handshake cycle when it is not.
func (c *Client) ensureReady(ctx context.Context) error {
	if c.closed.Load() {
		return errors.WrapTransport(errors.ErrClientClosed, "Client", "Execute", "check state")
	}
	if c.State() == StateReady {
		return nil
	}

	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	if c.closed.Load() {
		return errors.WrapTransport(errors.ErrClientClosed, "Client", "Execute", "check state")
	}
	if c.State() == StateReady {
		return nil
	}
	return c.connect(ctx)
}

// connect dials a fresh channel and runs the handshake. Caller holds
// connectMu.
func (c *Client) connect(ctx context.Context) error {
	c.teardownChannel()
	c.setState(StateConnecting)

	channel := c.newChannel()
	hs := newHandshake(c.handshakeTimeout)
	events := &channelEvents{client: c, channel: channel, hs: hs}

	// Subscribe before Open so no event can be missed.
	sub := channel.Subscribe(events)
	c.mu.Lock()
	c.channel = channel
	c.sub = sub
	c.hs = hs
	c.mu.Unlock()

	c.logger.Debug("connecting to engine", "endpoint", c.endpoint)
	if err := channel.Open(ctx, c.endpoint); err != nil {
		c.teardownChannel()
		c.setState(StateDisconnected)
		return errors.WrapTransport(err, "Client", "connect", "open channel")
	}

	if err := hs.wait(ctx); err != nil {
		c.metrics.recordHandshakeFailure()
		c.teardownChannel()
		c.setState(StateDisconnected)
		return err
	}

	if c.everConnected {
		c.metrics.recordReconnect()
	}
	c.everConnected = true
	c.setState(StateReady)
	c.logger.Info("engine connection ready", "endpoint", c.endpoint)
	return nil
}

// teardownChannel releases the current channel resources, if any.
func (c *Client) teardownChannel() {
	c.mu.Lock()
	sub, channel := c.sub, c.channel
	c.sub, c.channel, c.hs = nil, nil, nil
	c.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}
	if channel != nil {
		if err := channel.Close(); err != nil {
			c.logger.Debug("channel close reported error", "error", err)
		}
	}
}

// handleDisconnect reacts to a channel close or error: every pending command
// is swept and the client drops back to Disconnected for lazy reconnect.
func (c *Client) handleDisconnect(err error) {
	if c.closed.Load() {
		return
	}
	c.setState(StateDisconnected)
	swept := c.pending.sweep(err)
	c.metrics.setPending(0)
	c.logger.Warn("engine connection lost",
		"error", err,
		"swept", swept)
}

// sendRequest encodes and writes one request on the active channel.
func (c *Client) sendRequest(req protocol.Request) error {
	text, err := protocol.EncodeRequest(req)
	if err != nil {
		return err
	}

	c.mu.Lock()
	channel := c.channel
	c.mu.Unlock()
	if channel == nil {
		return errors.WrapTransport(errors.ErrNotConnected, "Client", "Execute", "send request")
	}

	if c.onSend != nil {
		c.onSend(text)
	}
	if err := channel.SendText(text); err != nil {
		return errors.WrapTransport(err, "Client", "Execute", "send request")
	}
	return nil
}

// await blocks until the entry settles or ctx is cancelled.
func (c *Client) await(ctx context.Context, id string, entry *pendingCommand, started time.Time) (*protocol.Response, error) {
	select {
	case out := <-entry.done:
		if out.err != nil {
			c.metrics.recordOutcome(outcomeLabel(out.err), started)
			return nil, out.err
		}
		c.metrics.recordOutcome("success", started)
		return out.resp, nil
	case <-ctx.Done():
		c.pending.take(id)
		c.metrics.recordOutcome("cancelled", started)
		return nil, errors.WrapTransport(ctx.Err(), "Client", "Execute", "await response")
	}
}

func outcomeLabel(err error) string {
	switch {
	case errors.IsTimeout(err):
		return "timeout"
	case errors.IsAuth(err):
		return "auth"
	case errors.IsEngine(err):
		return "engine"
	default:
		return "io"
	}
}
