package submission

import (
	"testing"
	"time"

	"github.com/yukimura/storypost/platform"
)

func TestBackoffDelay(t *testing.T) {
	b := Backoff{Base: time.Second, Factor: 2, Cap: 30 * time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second},
		{20, 30 * time.Second},
	}
	for _, tt := range tests {
		if got := b.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestBackoffDelayForRateLimit(t *testing.T) {
	b := Backoff{Base: time.Second, Factor: 2, Cap: 30 * time.Second}

	if got := b.DelayFor(platform.KindRateLimit, 1); got != 4*time.Second {
		t.Errorf("rate-limited attempt 1 = %v, want 4s", got)
	}
	if got := b.DelayFor(platform.KindRateLimit, 20); got != 120*time.Second {
		t.Errorf("rate-limited delay should cap at 4x, got %v", got)
	}
	if got := b.DelayFor(platform.KindNetwork, 2); got != 2*time.Second {
		t.Errorf("network delay should be unmodified, got %v", got)
	}
}
