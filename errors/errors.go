package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind classifies an error for handling purposes.
type Kind int

const (
	// KindAuth covers handshake rejection, handshake timeout, and
	// invalid-credential signals.
	KindAuth Kind = iota
	// KindTransport covers channel-level failures: connect failure,
	// mid-session close, send on a non-open channel, unexpected payload type.
	KindTransport
	// KindEngine covers well-formed failure responses reported by the
	// remote engine, carrying one or more (code, message) pairs.
	KindEngine
	// KindTimeout covers commands whose deadline fired before a response
	// arrived. Treated as a flavor of engine error for matching purposes.
	KindTimeout
)

// String returns the wire label for the kind.
func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindTransport:
		return "io"
	case KindEngine:
		return "engine"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Standard error variables for common conditions
var (
	ErrConnectionClosed   = errors.New("connection closed")
	ErrNotConnected       = errors.New("not connected")
	ErrChannelNotOpen     = errors.New("channel not open")
	ErrDuplicateCommandID = errors.New("duplicate command id")
	ErrHandshakeTimeout   = errors.New("authentication handshake timed out")
	ErrInvalidCredential  = errors.New("invalid credential")
	ErrUnexpectedPayload  = errors.New("unexpected payload type")
	ErrClientClosed       = errors.New("client closed")
)

// Fault is one (code, message) pair reported by the remote engine.
type Fault struct {
	Code    string
	Message string
}

// Error is a classified enginelink error. CommandID names the command the
// error belongs to when one exists; Faults preserves the engine's reported
// error list for programmatic matching.
type Error struct {
	Kind      Kind
	Err       error
	Message   string
	Component string
	Operation string
	CommandID string
	Faults    []Fault
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String() + " error"
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// newClassified creates a new classified error.
// Use WrapAuth(), WrapTransport(), or WrapEngine() instead.
func newClassified(kind Kind, err error, component, operation, message string) *Error {
	return &Error{
		Kind:      kind,
		Err:       err,
		Message:   message,
		Component: component,
		Operation: operation,
	}
}

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapAuth wraps an error as an authentication error with context.
func WrapAuth(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, component, method, action)
	return newClassified(KindAuth, wrapped, component, method, wrapped.Error())
}

// WrapTransport wraps an error as a transport ("io") error with context.
func WrapTransport(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, component, method, action)
	return newClassified(KindTransport, wrapped, component, method, wrapped.Error())
}

// WrapEngine wraps an error as an engine error with context.
func WrapEngine(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, component, method, action)
	return newClassified(KindEngine, wrapped, component, method, wrapped.Error())
}

// FromFaults builds an engine error from the (code, message) pairs of a
// failure response. All pairs are concatenated into one message and kept on
// the error for programmatic matching.
func FromFaults(commandID string, faults []Fault) *Error {
	parts := make([]string, 0, len(faults))
	for _, f := range faults {
		if f.Code != "" {
			parts = append(parts, fmt.Sprintf("%s: %s", f.Code, f.Message))
		} else {
			parts = append(parts, f.Message)
		}
	}
	msg := strings.Join(parts, "; ")
	if msg == "" {
		msg = "engine reported failure"
	}
	return &Error{
		Kind:      KindEngine,
		Message:   msg,
		CommandID: commandID,
		Faults:    faults,
	}
}

// Timeout builds the error used when a command's deadline fires before any
// response arrives. It names the command id that never resolved.
func Timeout(commandID string, after time.Duration) *Error {
	return &Error{
		Kind:      KindTimeout,
		Message:   fmt.Sprintf("command %s timed out after %s", commandID, after),
		CommandID: commandID,
	}
}

// WithCommandID attaches a command id to a classified error so the caller
// can route the failure to the pending entry it belongs to. Unclassified
// errors are returned unchanged.
func WithCommandID(err error, commandID string) error {
	var e *Error
	if errors.As(err, &e) {
		e.CommandID = commandID
	}
	return err
}

// KindOf returns the classification of err. Errors reaching a caller
// without a classification came off the channel, so they default to io.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransport
}

// IsAuth reports whether err is an authentication error.
func IsAuth(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindAuth
}

// IsTransport reports whether err is a transport-level error.
func IsTransport(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindTransport
}

// IsEngine reports whether err was reported by the engine. Timeouts count:
// a deadline firing is indistinguishable from the engine never answering.
func IsEngine(err error) bool {
	var e *Error
	return errors.As(err, &e) && (e.Kind == KindEngine || e.Kind == KindTimeout)
}

// IsTimeout reports whether err is a command timeout.
func IsTimeout(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindTimeout
}

// CommandID extracts the command id an error belongs to, if any.
func CommandID(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.CommandID
	}
	return ""
}
