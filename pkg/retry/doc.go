// Package retry provides exponential backoff retry logic for transient
// failures, used by the transport dial path.
//
//   - Do: execute a function with retry and exponential backoff
//   - DoWithResult: same, returning both result and error
//
// Presets: DefaultConfig() for normal operations, Quick() for connection
// establishment, Persistent() for critical resources. Wrap an error with
// NonRetryable to fail immediately instead of retrying.
//
// All operations respect context cancellation, both during the attempt and
// during the backoff sleep. The jitter source is safe for concurrent use.
package retry
