package engineclient

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/enginelink/errors"
	"github.com/c360/enginelink/protocol"
)

func testCorrelator() *correlator {
	return newCorrelator(slog.Default())
}

func TestCorrelator_ResolveFulfillsOnlyMatchingEntry(t *testing.T) {
	c := testCorrelator()

	first, err := c.register("cmd-1", time.Minute)
	require.NoError(t, err)
	second, err := c.register("cmd-2", time.Minute)
	require.NoError(t, err)

	resp := &protocol.Response{ID: "cmd-1", Success: true}
	assert.True(t, c.resolve("cmd-1", resp))

	out := <-first.done
	require.NoError(t, out.err)
	assert.Equal(t, "cmd-1", out.resp.ID)

	select {
	case <-second.done:
		t.Fatal("unrelated entry must not settle")
	default:
	}
	assert.Equal(t, 1, c.size())
}

func TestCorrelator_UnknownIDIsNoOp(t *testing.T) {
	c := testCorrelator()

	assert.False(t, c.resolve("ghost", &protocol.Response{ID: "ghost"}))
	assert.False(t, c.reject("ghost", errors.ErrConnectionClosed))
	assert.Equal(t, 0, c.size())
}

func TestCorrelator_DuplicateIDFailsFast(t *testing.T) {
	c := testCorrelator()

	_, err := c.register("cmd", time.Minute)
	require.NoError(t, err)

	_, err = c.register("cmd", time.Minute)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrDuplicateCommandID)
	assert.Equal(t, 1, c.size())
}

func TestCorrelator_TimeoutRejectsAndRemoves(t *testing.T) {
	c := testCorrelator()

	entry, err := c.register("slow", 20*time.Millisecond)
	require.NoError(t, err)

	select {
	case out := <-entry.done:
		require.Error(t, out.err)
		assert.True(t, errors.IsTimeout(out.err))
		assert.True(t, errors.IsEngine(out.err))
		assert.Equal(t, "slow", errors.CommandID(out.err))
	case <-time.After(time.Second):
		t.Fatal("deadline never fired")
	}
	assert.Equal(t, 0, c.size())

	// A late resolution for the expired id is discarded.
	assert.False(t, c.resolve("slow", &protocol.Response{ID: "slow"}))
}

func TestCorrelator_ResolveCancelsTimer(t *testing.T) {
	c := testCorrelator()

	entry, err := c.register("fast", 30*time.Millisecond)
	require.NoError(t, err)
	require.True(t, c.resolve("fast", &protocol.Response{ID: "fast", Success: true}))

	out := <-entry.done
	require.NoError(t, out.err)

	// The timer must not deliver a second outcome after resolution.
	select {
	case <-entry.done:
		t.Fatal("entry settled twice")
	case <-time.After(80 * time.Millisecond):
	}
}

func TestCorrelator_SweepRejectsEverything(t *testing.T) {
	c := testCorrelator()

	a, err := c.register("1", time.Minute)
	require.NoError(t, err)
	b, err := c.register("2", time.Minute)
	require.NoError(t, err)

	cause := errors.WrapTransport(errors.ErrConnectionClosed, "Client", "Cleanup", "abort pending command")
	assert.Equal(t, 2, c.sweep(cause))
	assert.Equal(t, 0, c.size())

	for _, entry := range []*pendingCommand{a, b} {
		out := <-entry.done
		require.Error(t, out.err)
		assert.True(t, errors.IsTransport(out.err))
		assert.ErrorIs(t, out.err, errors.ErrConnectionClosed)
	}

	// Sweeping an empty table is safe.
	assert.Equal(t, 0, c.sweep(cause))
}
