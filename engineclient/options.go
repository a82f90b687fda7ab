package engineclient

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/c360/enginelink/metric"
	"github.com/c360/enginelink/protocol"
	"github.com/c360/enginelink/transport"
)

// Option configures a Client during construction.
type Option func(*Client) error

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		c.logger = logger
		return nil
	}
}

// WithMetrics attaches the client's collectors to registrar under name.
// Without this option the client records nothing.
func WithMetrics(registrar metric.Registrar, name string) Option {
	return func(c *Client) error {
		if registrar == nil {
			return fmt.Errorf("metrics registrar cannot be nil")
		}
		c.registrar = registrar
		c.metricsName = name
		return nil
	}
}

// WithCommandTimeout sets the per-command deadline. Defaults to 30s.
func WithCommandTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("command timeout must be positive, got %s", d)
		}
		c.commandTimeout = d
		return nil
	}
}

// WithHandshakeTimeout sets the authentication handshake deadline.
// Defaults to 10s.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("handshake timeout must be positive, got %s", d)
		}
		c.handshakeTimeout = d
		return nil
	}
}

// WithChannelFactory overrides how channels to the engine are constructed.
// The default dials a websocket per connection attempt.
func WithChannelFactory(factory func() transport.Channel) Option {
	return func(c *Client) error {
		if factory == nil {
			return fmt.Errorf("channel factory cannot be nil")
		}
		c.newChannel = factory
		return nil
	}
}

// WithOnSend installs a tracing hook invoked with every encoded request
// before it is written to the channel.
func WithOnSend(hook func(text string)) Option {
	return func(c *Client) error {
		c.onSend = hook
		return nil
	}
}

// WithOnReceive installs a tracing hook invoked with every decoded response
// before it is dispatched.
func WithOnReceive(hook func(resp *protocol.Response)) Option {
	return func(c *Client) error {
		c.onReceive = hook
		return nil
	}
}
