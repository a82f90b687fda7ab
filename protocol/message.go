package protocol

import (
	"encoding/json"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/c360/enginelink/errors"
)

// Request is the sealed set of messages the client sends to the engine.
type Request interface {
	isRequest()
}

// HeadersRequest delivers the bearer credential once per connection. The
// engine does not acknowledge headers individually, so it carries no
// correlation id.
type HeadersRequest struct {
	AuthToken string
}

// CommandRequest is a single modeling command with its correlation id.
// Command is the caller-provided body, already validated upstream.
type CommandRequest struct {
	ID      string
	Command json.RawMessage
}

// BatchRequest bundles multiple sub-commands under one batch id. Each
// sub-command keeps its own id so the batch response can be demultiplexed.
type BatchRequest struct {
	ID       string
	Commands []CommandRequest
}

func (HeadersRequest) isRequest() {}
func (CommandRequest) isRequest() {}
func (BatchRequest) isRequest()   {}

// PayloadKind discriminates the success payload variants.
type PayloadKind int

const (
	// KindModeling is an ordinary modeling command result.
	KindModeling PayloadKind = iota
	// KindExport is an export (tessellation/translation) result.
	KindExport
	// KindModelingBatch aggregates per-sub-command results.
	KindModelingBatch
	// KindSessionData is engine session state, seen only during the
	// authentication handshake.
	KindSessionData
)

// String returns the wire tag for the payload kind.
func (k PayloadKind) String() string {
	switch k {
	case KindModeling:
		return "modeling"
	case KindExport:
		return "export"
	case KindModelingBatch:
		return "modeling-batch"
	case KindSessionData:
		return "session-data"
	default:
		return "unknown"
	}
}

// Payload is the sealed union of success payloads. Switches over the
// concrete types are exhaustive; there is no catch-all variant.
type Payload interface {
	Kind() PayloadKind
}

// ModelingPayload carries the result document of one modeling command.
type ModelingPayload struct {
	Data bson.Raw
}

// ExportPayload carries the result document of an export command.
type ExportPayload struct {
	Data bson.Raw
}

// BatchEntry is one sub-command slot inside a batch payload. Response is nil
// when the engine supplied no wrapped response for the sub-command; such
// entries are skipped by the demultiplexer and left to their own timeouts.
type BatchEntry struct {
	ID       string
	Response *Response
}

// BatchPayload carries per-sub-command results in payload order. Payload
// order is not guaranteed to match send order.
type BatchPayload struct {
	Entries []BatchEntry
}

// SessionDataPayload carries engine session state delivered while the
// handshake is pending.
type SessionDataPayload struct {
	SessionID string
	Data      bson.Raw
}

func (ModelingPayload) Kind() PayloadKind    { return KindModeling }
func (ExportPayload) Kind() PayloadKind      { return KindExport }
func (BatchPayload) Kind() PayloadKind       { return KindModelingBatch }
func (SessionDataPayload) Kind() PayloadKind { return KindSessionData }

// Response is one decoded message from the engine. On success Payload is
// set; on failure Faults holds the engine's (code, message) pairs. Raw is
// the original binary document for callers that consume the serialized
// form, such as the embedded kernel.
type Response struct {
	ID      string
	Success bool
	Payload Payload
	Faults  []errors.Fault
	Raw     bson.Raw
}
