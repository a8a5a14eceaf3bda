package backoff

import (
	"context"
	"time"

	"github.com/jpillora/backoff"
)

const (
	DefaultBase       = time.Second
	DefaultMultiplier = 2.0
	DefaultCap        = 60 * time.Second
)

// Policy is the one retry schedule used for connection retries, index write
// retries and bus reconnects. Each caller takes its own Backoff from it.
type Policy struct {
	Base       time.Duration
	Multiplier float64
	Cap        time.Duration
	Jitter     bool
}

func DefaultPolicy() Policy {
	return Policy{Base: DefaultBase, Multiplier: DefaultMultiplier, Cap: DefaultCap, Jitter: true}
}

func NewPolicy(base, cap time.Duration) Policy {
	p := DefaultPolicy()
	if base > 0 {
		p.Base = base
	}
	if cap > 0 {
		p.Cap = cap
	}
	if p.Cap < p.Base {
		p.Cap = p.Base
	}
	return p
}

func (p Policy) NewBackoff() *backoff.Backoff {
	factor := p.Multiplier
	if factor <= 1 {
		factor = DefaultMultiplier
	}
	return &backoff.Backoff{
		Min:    p.Base,
		Max:    p.Cap,
		Factor: factor,
		Jitter: p.Jitter,
	}
}

// Wait sleeps for d or until ctx is done or wake fires, whichever is first.
// It returns ctx.Err() only when ctx ended the wait.
func Wait(ctx context.Context, d time.Duration, wake <-chan struct{}) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	case <-wake:
		return nil
	}
}

// Retry calls fn up to maxAttempts times, waiting by the policy between
// attempts while shouldRetry approves the error.
func (p Policy) Retry(ctx context.Context, maxAttempts int, shouldRetry func(error) bool, fn func(ctx context.Context) error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	b := p.NewBackoff()

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == maxAttempts || (shouldRetry != nil && !shouldRetry(err)) {
			return err
		}
		if waitErr := Wait(ctx, b.Duration(), nil); waitErr != nil {
			return err
		}
	}
	return err
}
