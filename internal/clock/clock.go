// Package clock abstracts time so jitter and decay can be fast-forwarded
// in tests. Production code injects Real(); tests inject Fake().
package clock

import (
	"context"
	"time"
)

// Clock is the time source used by the interest store, the arbiter and
// the continuity scorer.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Sleep blocks for d or until ctx is done. It returns ctx.Err() when
	// interrupted. d <= 0 returns immediately.
	Sleep(ctx context.Context, d time.Duration) error
}

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
