package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Backoff is a delay schedule for resubmissions. The zero value means no
// delay.
type Backoff struct {
	// Initial is the delay before the first resubmission.
	Initial time.Duration `yaml:"initial" mapstructure:"initial"`
	// Max caps the delay. 0 means no cap.
	Max time.Duration `yaml:"max" mapstructure:"max"`
	// Multiplier grows the delay per attempt. Values below 1 mean constant.
	Multiplier float64 `yaml:"multiplier" mapstructure:"multiplier"`
	// Jitter randomizes each delay by up to this fraction (0.0 to 1.0).
	Jitter float64 `yaml:"jitter" mapstructure:"jitter" validate:"gte=0,lte=1"`
}

// Delay returns the wait before resubmission number attempt, counting from 1.
func (b Backoff) Delay(attempt int) time.Duration {
	if b.Initial <= 0 || attempt < 1 {
		return 0
	}
	d := float64(b.Initial)
	if b.Multiplier > 1 {
		d *= math.Pow(b.Multiplier, float64(attempt-1))
	}
	if b.Max > 0 && d > float64(b.Max) {
		d = float64(b.Max)
	}
	if b.Jitter > 0 {
		d += d * b.Jitter * (rand.Float64()*2 - 1)
	}
	if d < 0 {
		return 0
	}
	return time.Duration(d)
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
