package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastConfig keeps tests snappy and deterministic.
func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts:  attempts,
		InitialDelay: 5 * time.Millisecond,
		MaxDelay:     40 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(4), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("dial refused")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_ExhaustsAttemptsAndKeepsLastError(t *testing.T) {
	sentinel := errors.New("engine unreachable")
	attempts := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		attempts++
		return fmt.Errorf("attempt %d: %w", attempts, sentinel)
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.ErrorIs(t, err, sentinel)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	refused := errors.New("credential rejected")
	attempts := 0
	err := Do(context.Background(), fastConfig(5), func() error {
		attempts++
		return NonRetryable(refused)
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.True(t, IsNonRetryable(err))
	assert.ErrorIs(t, err, refused)
}

func TestDo_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{
		MaxAttempts:  5,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
	}

	attempts := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	err := Do(ctx, cfg, func() error {
		attempts++
		return errors.New("still down")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "retry cancelled")
	assert.Equal(t, 1, attempts, "cancellation must not burn further attempts")
}

func TestDo_DelayCappedAtMaxDelay(t *testing.T) {
	cfg := Config{
		MaxAttempts:  4,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     20 * time.Millisecond,
		Multiplier:   10.0,
	}

	start := time.Now()
	_ = Do(context.Background(), cfg, func() error {
		return errors.New("down")
	})
	elapsed := time.Since(start)

	// 10ms + 20ms + 20ms with the cap; far more without it.
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, 200*time.Millisecond)
}

func TestConfig_NormalizeRejectsNonsense(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"negative initial delay", Config{InitialDelay: -time.Second}},
		{"negative max delay", Config{MaxDelay: -time.Second}},
		{"negative multiplier", Config{Multiplier: -1}},
		{"max delay below initial", Config{InitialDelay: time.Second, MaxDelay: time.Millisecond}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Do(context.Background(), tt.cfg, func() error {
				t.Fatal("fn must not run with an invalid config")
				return nil
			})
			require.Error(t, err)
		})
	}
}

func TestConfig_ZeroValueRunsOnce(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Config{}, func() error {
		attempts++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestPresets_BoundConnectionEstablishment(t *testing.T) {
	// Quick is the dial default: it must give up within roughly ten seconds
	// even at the capped delay, so a first Execute cannot hang on a dead
	// endpoint for long.
	quick := Quick()
	assert.Equal(t, 10, quick.MaxAttempts)
	assert.Equal(t, 50*time.Millisecond, quick.InitialDelay)
	assert.Equal(t, time.Second, quick.MaxDelay)
	assert.True(t, quick.AddJitter)

	persistent := Persistent()
	assert.Equal(t, 30, persistent.MaxAttempts)
	assert.Greater(t, persistent.MaxDelay, quick.MaxDelay)

	def := DefaultConfig()
	assert.Equal(t, 3, def.MaxAttempts)
	assert.Equal(t, 2.0, def.Multiplier)
}

func TestDo_JitteredPresetTerminates(t *testing.T) {
	cfg := Quick()
	cfg.MaxAttempts = 3
	cfg.InitialDelay = 2 * time.Millisecond
	cfg.MaxDelay = 10 * time.Millisecond

	attempts := 0
	err := Do(context.Background(), cfg, func() error {
		attempts++
		return errors.New("down")
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDoWithResult_ReturnsValueFromWinningAttempt(t *testing.T) {
	attempts := 0
	conn, err := DoWithResult(context.Background(), fastConfig(3), func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", errors.New("handshake pending")
		}
		return "session-7", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "session-7", conn)
	assert.Equal(t, 2, attempts)
}

func TestDoWithResult_ZeroValueOnFailure(t *testing.T) {
	conn, err := DoWithResult(context.Background(), fastConfig(2), func() (*struct{}, error) {
		return nil, errors.New("down")
	})

	require.Error(t, err)
	assert.Nil(t, conn)
}
