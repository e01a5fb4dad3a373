package dgram

import (
	"math/rand"
	"time"
)

// Backoff config for the REQUEST/PARTOPEN/CLOSING retry cadence from
// spec.md §4.6: "INIT_TIMEOUT + U(0, 2^attempt-1, capped MAX_BACK_OFF)
// seconds".
type Backoff struct {
	InitTimeout   time.Duration
	MaxBackoff    time.Duration
	MaxAttempts   int
}

// DefaultBackoff matches the reference cadence closely enough to
// exercise the capping behaviour in tests.
func DefaultBackoff() Backoff {
	return Backoff{
		InitTimeout: 200 * time.Millisecond,
		MaxBackoff:  5 * time.Second,
		MaxAttempts: 8,
	}
}

// Wait returns the retransmit delay for the given attempt number (the
// first retransmit is attempt 1), per spec.md §4.6's formula. The random
// spread uses the package-level math/rand source; callers needing
// determinism inject their own jitter by pre-seeding it.
func (b Backoff) Wait(attempt int) time.Duration {
	ceiling := b.MaxBackoff
	if attempt >= 0 && attempt < 32 { // 2^31 seconds already dwarfs any sane MaxBackoff
		if span := (time.Duration(1)<<uint(attempt) - 1) * time.Second; span < ceiling {
			ceiling = span
		}
	}
	jitter := time.Duration(0)
	if ceiling > 0 {
		jitter = time.Duration(rand.Int63n(int64(ceiling) + 1))
	}
	return b.InitTimeout + jitter
}
