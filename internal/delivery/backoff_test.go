package delivery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDoublesWithoutJitter(t *testing.T) {
	b := Backoff{Base: 2 * time.Second, Cap: 60 * time.Second}

	assert.Equal(t, 2*time.Second, b.Delay(1))
	assert.Equal(t, 4*time.Second, b.Delay(2))
	assert.Equal(t, 8*time.Second, b.Delay(3))
	assert.Equal(t, 16*time.Second, b.Delay(4))
	assert.Equal(t, 32*time.Second, b.Delay(5))
}

func TestBackoffCaps(t *testing.T) {
	b := Backoff{Base: 2 * time.Second, Cap: 60 * time.Second}

	assert.Equal(t, 60*time.Second, b.Delay(6))
	assert.Equal(t, 60*time.Second, b.Delay(10))
	assert.Equal(t, 60*time.Second, b.Delay(40))
}

func TestBackoffJitterStaysInBounds(t *testing.T) {
	b := DefaultBackoff()

	for attempt := 1; attempt <= 10; attempt++ {
		base := Backoff{Base: b.Base, Cap: b.Cap}.Delay(attempt)
		lo := time.Duration(float64(base) * (1 - b.Jitter))
		hi := time.Duration(float64(base) * (1 + b.Jitter))

		for i := 0; i < 50; i++ {
			d := b.Delay(attempt)
			assert.GreaterOrEqual(t, d, lo, "attempt %d", attempt)
			assert.LessOrEqual(t, d, hi, "attempt %d", attempt)
		}
	}
}

func TestBackoffClampsBadAttempt(t *testing.T) {
	b := Backoff{Base: time.Second, Cap: time.Minute}
	assert.Equal(t, b.Delay(1), b.Delay(0))
	assert.Equal(t, b.Delay(1), b.Delay(-3))
}
