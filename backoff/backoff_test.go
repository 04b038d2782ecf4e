package backoff_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/researchsync/backoff"
)

func TestConstant_ReturnsFixedDelay(t *testing.T) {
	c := backoff.NewConstant(5 * time.Second)
	for attempt := 1; attempt <= 10; attempt++ {
		if got := c.Delay(attempt); got != 5*time.Second {
			t.Errorf("Delay(%d) = %v, want %v", attempt, got, 5*time.Second)
		}
	}
}

func TestExponential_DoublesEachAttempt(t *testing.T) {
	e := backoff.NewExponential(time.Second, time.Hour)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1 * time.Second}, // clamped to attempt 1
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
	}
	for _, tt := range tests {
		if got := e.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestExponential_CapsAtMax(t *testing.T) {
	e := backoff.NewExponential(time.Second, 10*time.Second)
	if got := e.Delay(20); got != 10*time.Second {
		t.Errorf("Delay(20) = %v, want %v", got, 10*time.Second)
	}
	if got := e.Delay(500); got != 10*time.Second {
		t.Errorf("Delay(500) = %v, want %v", got, 10*time.Second)
	}
}

func TestExponentialWithJitter_WithinBounds(t *testing.T) {
	e := backoff.NewExponentialWithJitter(time.Second, 8*time.Second)
	for attempt := 1; attempt <= 10; attempt++ {
		upper := min(time.Second<<(attempt-1), 8*time.Second)
		for range 50 {
			got := e.Delay(attempt)
			if got < 0 || got > upper {
				t.Fatalf("Delay(%d) = %v, want in [0, %v]", attempt, got, upper)
			}
		}
	}
}

func TestWait_ReturnsAfterDelay(t *testing.T) {
	start := time.Now()
	if err := backoff.Wait(context.Background(), backoff.NewConstant(10*time.Millisecond), 1); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Errorf("Wait returned after %v, want >= 10ms", elapsed)
	}
}

func TestWait_HonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := backoff.Wait(ctx, backoff.NewConstant(time.Hour), 1)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Wait error = %v, want context.Canceled", err)
	}
}

func TestDefaultStrategy(t *testing.T) {
	s := backoff.DefaultStrategy()
	if _, ok := s.(*backoff.ExponentialWithJitter); !ok {
		t.Fatalf("DefaultStrategy() = %T, want *ExponentialWithJitter", s)
	}
	if got := s.Delay(100); got > 30*time.Second {
		t.Errorf("Delay(100) = %v, want <= 30s", got)
	}
}
