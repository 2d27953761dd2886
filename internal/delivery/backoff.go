package delivery

import (
	"math/rand"
	"time"
)

// Backoff computes the delay before the next delivery attempt: exponential
// from Base, capped at Cap, with +/-Jitter applied as a fraction of the
// computed delay so simultaneous retries spread out.
type Backoff struct {
	Base   time.Duration
	Cap    time.Duration
	Jitter float64
}

func DefaultBackoff() Backoff {
	return Backoff{
		Base:   2 * time.Second,
		Cap:    60 * time.Second,
		Jitter: 0.2,
	}
}

// Delay returns the wait after the given attempt number (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := b.Base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= b.Cap {
			delay = b.Cap
			break
		}
	}
	if delay > b.Cap {
		delay = b.Cap
	}

	if b.Jitter > 0 {
		spread := float64(delay) * b.Jitter
		delay += time.Duration((rand.Float64()*2 - 1) * spread)
		if delay < 0 {
			delay = 0
		}
	}

	return delay
}
