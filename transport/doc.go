// Package transport provides the duplex message channel to the remote
// modeling engine.
//
// Channel is the abstract contract: open, send (text or binary frames),
// close, and four lifecycle events (opened, closed, errored, message)
// delivered through an owned Subscription handle. Subscriptions are
// cancelled deterministically during client cleanup rather than via paired
// add/remove listener calls, which avoids double-registered handlers across
// reconnects.
//
// WebSocketChannel is the production implementation on gorilla/websocket,
// with backoff-retried dialing and optional TLS. FakeChannel is an
// in-memory double for unit tests.
package transport
