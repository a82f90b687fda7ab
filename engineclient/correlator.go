package engineclient

import (
	"log/slog"
	"sync"
	"time"

	"github.com/c360/enginelink/errors"
	"github.com/c360/enginelink/protocol"
)

// outcome is the single terminal result of a pending command.
type outcome struct {
	resp *protocol.Response
	err  error
}

// pendingCommand is one outstanding request awaiting a response. Exactly one
// of fulfilled, rejected, still-pending holds at any time; once resolved the
// timer is cancelled and the entry removed from the table.
type pendingCommand struct {
	id    string
	done  chan outcome // buffered; receives exactly one value
	timer *time.Timer
}

// correlator owns the map from in-flight command id to its pending entry.
// All mutation happens under one mutex since sends are issued concurrently
// from multiple callers while receives arrive from the channel reader.
type correlator struct {
	mu      sync.Mutex
	pending map[string]*pendingCommand
	logger  *slog.Logger
}

func newCorrelator(logger *slog.Logger) *correlator {
	return &correlator{
		pending: make(map[string]*pendingCommand),
		logger:  logger,
	}
}

// register inserts a new pending entry keyed by id and starts its deadline
// timer. It fails fast on a duplicate id: ids must be unique among
// concurrently outstanding commands, and the caller must not have touched
// the network yet.
func (c *correlator) register(id string, timeout time.Duration) (*pendingCommand, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.pending[id]; exists {
		return nil, errors.Wrap(errors.ErrDuplicateCommandID, "Correlator", "register", "insert "+id)
	}

	entry := &pendingCommand{
		id:   id,
		done: make(chan outcome, 1),
	}
	entry.timer = time.AfterFunc(timeout, func() {
		c.expire(id, timeout)
	})
	c.pending[id] = entry
	return entry, nil
}

// expire fires when a deadline elapses: equivalent to the remote side never
// responding. The entry is removed and rejected with a timeout error naming
// the id. A timer racing a resolution loses: take() returns nil.
func (c *correlator) expire(id string, after time.Duration) {
	entry := c.take(id)
	if entry == nil {
		return
	}
	c.logger.Debug("command deadline elapsed", "id", id, "timeout", after)
	entry.done <- outcome{err: errors.Timeout(id, after)}
}

// resolve fulfills the entry for id. Unknown ids are a no-op: the response
// arrived after timeout or belongs to nobody, so it is logged and discarded.
func (c *correlator) resolve(id string, resp *protocol.Response) bool {
	entry := c.take(id)
	if entry == nil {
		c.logger.Debug("discarding response for unknown command", "id", id)
		return false
	}
	entry.done <- outcome{resp: resp}
	return true
}

// reject fails the entry for id. Unknown ids are a no-op.
func (c *correlator) reject(id string, err error) bool {
	entry := c.take(id)
	if entry == nil {
		c.logger.Debug("discarding error for unknown command", "id", id, "error", err)
		return false
	}
	entry.done <- outcome{err: err}
	return true
}

// sweep rejects and removes every currently pending entry with err,
// regardless of id. Used by cleanup. Returns the number of swept entries.
func (c *correlator) sweep(err error) int {
	c.mu.Lock()
	entries := make([]*pendingCommand, 0, len(c.pending))
	for _, entry := range c.pending {
		entry.timer.Stop()
		entries = append(entries, entry)
	}
	c.pending = make(map[string]*pendingCommand)
	c.mu.Unlock()

	for _, entry := range entries {
		entry.done <- outcome{err: err}
	}
	return len(entries)
}

// size reports the number of outstanding commands.
func (c *correlator) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// take removes and returns the entry for id, stopping its timer. Returns
// nil when the id is not pending. Removing under the lock before sending
// the outcome guarantees an entry is never resolved twice.
func (c *correlator) take(id string) *pendingCommand {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.pending[id]
	if !exists {
		return nil
	}
	entry.timer.Stop()
	delete(c.pending, id)
	return entry
}
