package backoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicy_ExponentialWithCap(t *testing.T) {
	p := Policy{Base: time.Second, Multiplier: 2, Cap: 8 * time.Second}
	b := p.NewBackoff()

	assert.Equal(t, time.Second, b.Duration())
	assert.Equal(t, 2*time.Second, b.Duration())
	assert.Equal(t, 4*time.Second, b.Duration())
	assert.Equal(t, 8*time.Second, b.Duration())
	assert.Equal(t, 8*time.Second, b.Duration())

	b.Reset()
	assert.Equal(t, time.Second, b.Duration())
}

func TestPolicy_JitterStaysWithinBounds(t *testing.T) {
	b := DefaultPolicy().NewBackoff()
	for i := 0; i < 50; i++ {
		d := b.Duration()
		assert.GreaterOrEqual(t, d, DefaultBase)
		assert.LessOrEqual(t, d, DefaultCap)
	}
}

func TestNewPolicy_Defaults(t *testing.T) {
	p := NewPolicy(0, 0)
	assert.Equal(t, DefaultBase, p.Base)
	assert.Equal(t, DefaultCap, p.Cap)

	p = NewPolicy(10*time.Second, time.Second)
	assert.Equal(t, 10*time.Second, p.Cap)
}

func TestWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Wait(ctx, time.Hour, nil), context.Canceled)

	wake := make(chan struct{}, 1)
	wake <- struct{}{}
	assert.NoError(t, Wait(context.Background(), time.Hour, wake))

	assert.NoError(t, Wait(context.Background(), time.Millisecond, nil))
}

func TestRetry(t *testing.T) {
	p := Policy{Base: time.Millisecond, Multiplier: 2, Cap: 2 * time.Millisecond}
	boom := errors.New("boom")

	calls := 0
	err := p.Retry(context.Background(), 3, nil, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return boom
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = p.Retry(context.Background(), 4, nil, func(ctx context.Context) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 4, calls)

	calls = 0
	err = p.Retry(context.Background(), 4, func(error) bool { return false }, func(ctx context.Context) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}
