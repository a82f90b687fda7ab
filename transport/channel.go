package transport

import (
	"context"
)

// FrameKind discriminates the two wire framings a channel can deliver.
type FrameKind int

const (
	// FrameText is the JSON text framing used for requests and debugging.
	FrameText FrameKind = iota
	// FrameBinary is the compact binary document framing used by responses.
	FrameBinary
)

// Frame is one received message. Text is set for FrameText, Data for
// FrameBinary.
type Frame struct {
	Kind FrameKind
	Text string
	Data []byte
}

// EventHandler receives channel lifecycle events. All callbacks for one
// channel are invoked sequentially from the channel's reader, never
// concurrently with each other.
type EventHandler interface {
	// HandleOpened fires once the channel is connected.
	HandleOpened()
	// HandleClosed fires when the peer closes the channel. The code is the
	// protocol close code, or zero when none was delivered.
	HandleClosed(code int)
	// HandleErrored fires on a channel-level failure. The channel is
	// unusable afterwards.
	HandleErrored(err error)
	// HandleMessage fires for every received frame.
	HandleMessage(frame Frame)
}

// Subscription is the owned handle for a registered EventHandler. Cancel
// detaches the handler; it is idempotent and safe to call from any
// goroutine. Holding the subscription (rather than pairing add/remove
// listener calls) keeps teardown deterministic across reconnects.
type Subscription interface {
	Cancel()
}

// Channel is an abstract duplex message channel to the engine. A channel is
// single-use: once closed or errored it is discarded and a new one dialed.
type Channel interface {
	// Open connects to the given address. Events begin flowing to
	// subscribers once Open returns nil.
	Open(ctx context.Context, address string) error

	// Subscribe registers an event handler and returns its owned handle.
	// Subscribing before Open guarantees no events are missed.
	Subscribe(h EventHandler) Subscription

	// SendText writes one text frame.
	SendText(text string) error

	// SendBinary writes one binary frame.
	SendBinary(data []byte) error

	// Close shuts the channel down. Safe to call multiple times.
	Close() error
}
