package retry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/resbridge/pkg/errors"
)

func fast(attempts int) Policy {
	return Policy{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
}

func TestDoRetriesConnectionErrors(t *testing.T) {
	calls := 0
	err := fast(3).Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New(errors.ErrorTypeConnection, "refused")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := fast(5).Do(context.Background(), func(context.Context) error {
		calls++
		return fmt.Errorf("bad credentials")
	})
	assert.EqualError(t, err, "bad credentials")
	assert.Equal(t, 1, calls)
}

func TestDoReturnsLastError(t *testing.T) {
	calls := 0
	err := fast(2).Do(context.Background(), func(context.Context) error {
		calls++
		return errors.Newf(errors.ErrorTypeTimeout, "attempt %d", calls)
	})
	assert.True(t, errors.IsType(err, errors.ErrorTypeTimeout))
	assert.Contains(t, err.Error(), "attempt 2")
	assert.Equal(t, 2, calls)
}

func TestDoHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 10, InitialDelay: time.Hour}
	err := p.Do(ctx, func(context.Context) error {
		cancel()
		return errors.New(errors.ErrorTypeConnection, "down")
	})
	assert.True(t, errors.IsType(err, errors.ErrorTypeTimeout))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDelay(t *testing.T) {
	p := Policy{InitialDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond, Multiplier: 2}
	assert.Equal(t, 100*time.Millisecond, p.Delay(0))
	assert.Equal(t, 200*time.Millisecond, p.Delay(1))
	assert.Equal(t, 300*time.Millisecond, p.Delay(5))

	p.Jitter = 0.5
	for i := 0; i < 20; i++ {
		d := p.Delay(0)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 150*time.Millisecond)
	}

	assert.Equal(t, 1, None().MaxAttempts)
	assert.Equal(t, 7, Default().WithMaxAttempts(7).MaxAttempts)
}
