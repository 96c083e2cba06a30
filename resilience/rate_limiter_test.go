package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRateLimiter_AllowsWithinBurst(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Name: "test", Rate: 10, Burst: 5})
	for i := 0; i < 5; i++ {
		if !rl.Allow() {
			t.Errorf("request %d should be allowed", i)
		}
	}
	if rl.Allow() {
		t.Error("request over burst should be rejected")
	}
}

func TestRateLimiter_RefillsOverTime(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Name: "test", Rate: 100, Burst: 1})
	rl.Allow()
	time.Sleep(20 * time.Millisecond)
	if !rl.Allow() {
		t.Error("expected token after refill")
	}
}

func TestRateLimiter_WaitBlocksUntilToken(t *testing.T) {
	var limited bool
	rl := NewRateLimiter(RateLimiterConfig{
		Name: "test", Rate: 50, Burst: 1,
		OnLimit: func(string, time.Duration) { limited = true },
	})
	ctx := context.Background()

	if err := rl.Wait(ctx); err != nil {
		t.Fatalf("first wait: %v", err)
	}
	start := time.Now()
	if err := rl.Wait(ctx); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Errorf("expected to wait for a token, waited %v", elapsed)
	}
	if !limited {
		t.Error("expected OnLimit callback")
	}
}

func TestRateLimiter_WaitCancelled(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Name: "test", Rate: 0.5, Burst: 1})
	rl.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := rl.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if tokens := rl.Tokens(); tokens < -0.1 {
		t.Errorf("cancelled reservation should be returned, tokens=%f", tokens)
	}
}

func TestRateLimiter_Defaults(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{})
	if rl.config.Rate != 20 || rl.config.Burst != 20 {
		t.Errorf("unexpected defaults rate=%f burst=%d", rl.config.Rate, rl.config.Burst)
	}
}
