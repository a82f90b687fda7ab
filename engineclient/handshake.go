package engineclient

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/enginelink/errors"
)

// handshake is the one-shot gate for the authentication exchange on a fresh
// connection. It is resolved exactly once: the first of success, failure, or
// deadline wins and later resolutions are ignored.
type handshake struct {
	once     sync.Once
	resolved atomic.Bool
	done     chan error
	timer    *time.Timer
}

func newHandshake(timeout time.Duration) *handshake {
	hs := &handshake{
		done: make(chan error, 1),
	}
	hs.timer = time.AfterFunc(timeout, func() {
		hs.fail(errors.WrapAuth(errors.ErrHandshakeTimeout, "Client", "connect", "await handshake"))
	})
	return hs
}

// succeed resolves the handshake positively if it is still pending.
func (h *handshake) succeed() {
	h.resolve(nil)
}

// fail resolves the handshake negatively if it is still pending.
func (h *handshake) fail(err error) {
	h.resolve(err)
}

func (h *handshake) resolve(err error) {
	h.once.Do(func() {
		h.timer.Stop()
		h.resolved.Store(true)
		h.done <- err
	})
}

// wait blocks until the handshake resolves or ctx is cancelled.
func (h *handshake) wait(ctx context.Context) error {
	select {
	case err := <-h.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// pendingNow reports whether the handshake is still unresolved. Used to
// decide whether an engine failure belongs to authentication or to a
// command; it is advisory only, resolution stays single-shot either way.
func (h *handshake) pendingNow() bool {
	return !h.resolved.Load()
}
