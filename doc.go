// Package enginelink is the client runtime for a remote stateful modeling
// engine reached over one persistent duplex connection.
//
// # Architecture
//
// The runtime is a thin stack of small packages:
//
//	┌───────────────────────────────┐
//	│        cmd/enginelink         │  CLI: exec, batch, session,
//	│                               │  auth, kernel
//	└───────────────────────────────┘
//	               ↓
//	┌───────────────────────────────┐
//	│         engineclient          │  connection lifecycle, command
//	│                               │  correlation, handshake, batch
//	│                               │  demultiplexing
//	└───────────────────────────────┘
//	        ↓               ↓
//	┌──────────────┐ ┌──────────────┐
//	│   protocol   │ │  transport   │  JSON request framing + binary
//	│              │ │              │  document responses; websocket
//	└──────────────┘ └──────────────┘  channel abstraction
//
// Supporting packages: config (YAML configuration), errors (classified
// error taxonomy), metric (Prometheus registry and HTTP endpoint), kernel
// (wasm-sandboxed embedded compute module), pkg/retry (backoff policies),
// pkg/tlsutil (client TLS settings).
//
// # Connection model
//
// A client owns at most one channel at a time and moves through an explicit
// lifecycle: Disconnected, Connecting, Authenticating, Ready, Closed. The
// credential is delivered once per connection in a headers frame; the
// handshake resolves when the engine's session data arrives. Commands are
// correlated by id, each with its own deadline, and may resolve out of
// order. Execute is self-healing: called while disconnected it reconnects
// first, so callers never manage connection state themselves.
package enginelink
