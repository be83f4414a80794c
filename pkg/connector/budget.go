package connector

import "time"

// Clock returns the current time. Tests substitute a fake.
type Clock func() time.Time

// budget is a countdown shared by the items of one batch call. Each item is
// offered what remains of the total; the time it actually took is then
// deducted before the next item runs.
type budget struct {
	remaining time.Duration
	now       Clock
}

func newBudget(total time.Duration, now Clock) *budget {
	if now == nil {
		now = time.Now
	}
	return &budget{remaining: total, now: now}
}

// Remaining returns the time left. It can go negative once an item overruns;
// hooks treat a non-positive timeout as already expired.
func (b *budget) Remaining() time.Duration {
	return b.remaining
}

// spend runs fn with the remaining budget and deducts the elapsed time.
func (b *budget) spend(fn func(timeout time.Duration)) {
	start := b.now()
	fn(b.remaining)
	b.remaining -= b.now().Sub(start)
}
