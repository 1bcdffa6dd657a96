package client

import (
	"math/rand"
	"time"
)

// backoffDelay is the unjittered reconnect delay for one attempt: base
// doubled per attempt, capped at max. Attempt counting starts at zero.
func backoffDelay(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	if max < base {
		max = base
	}

	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	return d
}

// jitterDelay spreads a delay across [d/2, 3d/2) so a fleet of clients
// does not reconnect in lockstep.
func jitterDelay(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(d)))
}
