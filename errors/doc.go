// Package errors provides standardized error handling for enginelink.
//
// # Taxonomy
//
// Every failure surfaced to a caller is classified into one of four kinds:
//
//   - auth: the handshake was rejected, timed out, or the credential was
//     refused after the handshake was otherwise pending.
//   - io: channel-level failures — connect failure, mid-session close before
//     a command resolved, send on a non-open channel, unexpected payload type.
//   - engine: a well-formed failure response from the remote engine carrying
//     one or more (code, message) pairs. The pairs are concatenated into one
//     message and preserved on the error for programmatic matching.
//   - timeout: a command's deadline fired before any response arrived. For
//     matching purposes a timeout is a flavor of engine error: IsEngine
//     returns true for both.
//
// # Wrapping
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// via the Wrap family of functions. WrapAuth, WrapTransport and WrapEngine
// additionally attach a classification that survives wrapping chains and is
// inspected with IsAuth, IsTransport, IsEngine, IsTimeout or KindOf.
//
// Engine failure responses are converted with FromFaults; command deadline
// expiries with Timeout, which names the command id that never resolved.
//
// All types support errors.Is, errors.As and Unwrap.
package errors
