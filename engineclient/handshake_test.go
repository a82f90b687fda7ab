package engineclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/enginelink/errors"
)

func TestHandshake_SucceedResolvesOnce(t *testing.T) {
	hs := newHandshake(time.Minute)
	assert.True(t, hs.pendingNow())

	hs.succeed()
	assert.False(t, hs.pendingNow())
	require.NoError(t, hs.wait(context.Background()))

	// Later signals are ignored.
	hs.fail(errors.ErrConnectionClosed)
	assert.False(t, hs.pendingNow())
}

func TestHandshake_FailWinsOverLaterSuccess(t *testing.T) {
	hs := newHandshake(time.Minute)

	cause := errors.WrapAuth(errors.ErrInvalidCredential, "Client", "handshake", "authenticate")
	hs.fail(cause)
	hs.succeed()

	err := hs.wait(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsAuth(err))
}

func TestHandshake_DeadlineFailsWithAuthTimeout(t *testing.T) {
	hs := newHandshake(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := hs.wait(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsAuth(err))
	assert.ErrorIs(t, err, errors.ErrHandshakeTimeout)
}

func TestHandshake_WaitHonorsContext(t *testing.T) {
	hs := newHandshake(time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := hs.wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
