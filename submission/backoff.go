package submission

import (
	"time"

	"github.com/yukimura/storypost/platform"
)

// Backoff computes exponential retry delays: base * factor^(attempt-1),
// capped. Rate-limited failures back off four times longer (with a
// correspondingly higher cap) to stay clear of the platform's defenses.
type Backoff struct {
	Base   time.Duration
	Factor float64
	Cap    time.Duration
}

func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(b.Base)
	for i := 1; i < attempt; i++ {
		d *= b.Factor
		if time.Duration(d) >= b.Cap {
			return b.Cap
		}
	}
	if time.Duration(d) > b.Cap {
		return b.Cap
	}
	return time.Duration(d)
}

// DelayFor applies the kind-specific policy.
func (b Backoff) DelayFor(kind platform.Kind, attempt int) time.Duration {
	d := b.Delay(attempt)
	if kind == platform.KindRateLimit {
		d *= 4
		if limit := 4 * b.Cap; d > limit {
			d = limit
		}
	}
	return d
}
