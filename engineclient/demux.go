package engineclient

import (
	"fmt"

	"github.com/c360/enginelink/errors"
	"github.com/c360/enginelink/protocol"
	"github.com/c360/enginelink/transport"
)

// channelEvents adapts one connection's channel events onto the client. Each
// connection attempt gets its own adapter and handshake; events from a
// superseded channel are ignored so a dying connection cannot disturb its
// replacement.
type channelEvents struct {
	client  *Client
	channel transport.Channel
	hs      *handshake
}

func (e *channelEvents) current() bool {
	e.client.mu.Lock()
	defer e.client.mu.Unlock()
	return e.client.channel == e.channel
}

// HandleOpened sends the credential headers as the first frame on the wire.
// The engine never acknowledges headers; the handshake resolves when session
// data arrives.
func (e *channelEvents) HandleOpened() {
	c := e.client
	if !e.current() {
		return
	}
	c.setState(StateAuthenticating)

	text, err := protocol.EncodeRequest(protocol.HeadersRequest{AuthToken: c.authToken})
	if err != nil {
		e.hs.fail(errors.WrapAuth(err, "Client", "handshake", "encode headers"))
		return
	}
	if c.onSend != nil {
		c.onSend(text)
	}
	if err := e.channel.SendText(text); err != nil {
		e.hs.fail(errors.WrapAuth(err, "Client", "handshake", "send headers"))
	}
}

// HandleMessage decodes binary frames and routes them. Text frames carry no
// responses; they are logged and discarded.
func (e *channelEvents) HandleMessage(frame transport.Frame) {
	c := e.client
	if frame.Kind == transport.FrameText {
		c.logger.Debug("discarding text frame", "text", frame.Text)
		return
	}

	resp, err := protocol.DecodeResponse(frame.Data)
	if err != nil {
		// A frame that named a pending command still settles it; waiting out
		// the deadline would misreport a decode problem as a timeout.
		if id := errors.CommandID(err); id != "" {
			c.logger.Warn("rejecting command with undecodable response", "id", id, "error", err)
			c.pending.reject(id, err)
			return
		}
		c.logger.Warn("dropping undecodable frame", "error", err)
		return
	}
	if c.onReceive != nil {
		c.onReceive(resp)
	}
	e.dispatch(resp)
}

// HandleClosed fires when the peer closed the channel. A close during the
// handshake means the engine refused the session, so the handshake fails as
// an authentication error; commands already in flight see a transport error.
func (e *channelEvents) HandleClosed(code int) {
	cause := fmt.Errorf("%w (code %d)", errors.ErrConnectionClosed, code)
	e.hs.fail(errors.WrapAuth(cause, "Client", "handshake", "keep channel"))
	e.disconnect(errors.WrapTransport(cause, "Client", "readLoop", "keep channel"))
}

// HandleErrored fires on a channel-level failure.
func (e *channelEvents) HandleErrored(err error) {
	wrapped := errors.WrapTransport(err, "Client", "readLoop", "keep channel")
	e.hs.fail(wrapped)
	e.disconnect(wrapped)
}

func (e *channelEvents) disconnect(err error) {
	if !e.current() {
		return
	}
	e.client.handleDisconnect(err)
}

// dispatch routes one decoded response to the handshake gate or the pending
// table.
func (e *channelEvents) dispatch(resp *protocol.Response) {
	if !resp.Success {
		e.dispatchFailure(resp)
		return
	}

	switch payload := resp.Payload.(type) {
	case protocol.SessionDataPayload:
		if e.hs.pendingNow() {
			e.client.logger.Info("engine session established", "session_id", payload.SessionID)
			e.hs.succeed()
			return
		}
		e.client.logger.Debug("unsolicited session data", "session_id", payload.SessionID)
	case protocol.BatchPayload:
		e.demuxBatch(resp, payload)
	default:
		e.client.pending.resolve(resp.ID, resp)
	}
}

// dispatchFailure routes a failure response. While the handshake is pending
// a bare auth-token-missing signal is benign noise from the engine's header
// probing and is swallowed; any other uncorrelated failure rejects the
// handshake itself.
func (e *channelEvents) dispatchFailure(resp *protocol.Response) {
	c := e.client
	if e.hs.pendingNow() {
		if isAuthTokenMissing(resp.Faults) {
			c.logger.Debug("ignoring auth token probe during handshake")
			return
		}
		if resp.ID == "" {
			e.hs.fail(errors.WrapAuth(
				errors.FromFaults("", resp.Faults),
				"Client", "handshake", "authenticate"))
			return
		}
	}
	c.pending.reject(resp.ID, errors.FromFaults(resp.ID, resp.Faults))
}

// demuxBatch fans the per-sub-command results out to their own pending
// entries. Sub-commands the engine returned nothing for stay pending and run
// into their individual deadlines. The batch id itself resolves last so a
// batch-level waiter observes all sub-results settled.
func (e *channelEvents) demuxBatch(resp *protocol.Response, payload protocol.BatchPayload) {
	c := e.client
	for _, entry := range payload.Entries {
		if entry.Response == nil {
			c.logger.Debug("batch entry carried no response", "id", entry.ID)
			continue
		}
		c.pending.resolve(entry.ID, entry.Response)
	}
	if resp.ID != "" {
		c.pending.resolve(resp.ID, resp)
	}
}

// isAuthTokenMissing reports whether every fault is the engine's benign
// missing-token signal.
func isAuthTokenMissing(faults []errors.Fault) bool {
	if len(faults) == 0 {
		return false
	}
	for _, f := range faults {
		if f.Code != "auth_token_missing" {
			return false
		}
	}
	return true
}
