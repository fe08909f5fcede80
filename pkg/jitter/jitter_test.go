package jitter

import (
	"math/rand"
	"testing"
	"time"
)

func TestExponentialBackoff_Bounds(t *testing.T) {
	tests := []struct {
		name    string
		attempt int
		min     time.Duration
		max     time.Duration
	}{
		{"first attempt", 0, time.Second, 1500 * time.Millisecond},
		{"second attempt", 1, 2 * time.Second, 3 * time.Second},
		{"capped", 10, 5 * time.Second, 7500 * time.Millisecond},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := ExponentialBackoff(time.Second, 5*time.Second, tc.attempt, DefaultJitter)
			if d < tc.min || d > tc.max {
				t.Fatalf("expected %v in [%v, %v]", d, tc.min, tc.max)
			}
		})
	}
}

func TestDurationWithSeed_Deterministic(t *testing.T) {
	a := DurationWithSeed(time.Second, 0.5, rand.New(rand.NewSource(42)))
	b := DurationWithSeed(time.Second, 0.5, rand.New(rand.NewSource(42)))
	if a != b {
		t.Fatalf("same seed must give same duration: %v != %v", a, b)
	}
}

func TestBackoff_ZeroFactorIsExact(t *testing.T) {
	b := Backoff{Base: 10 * time.Millisecond, Max: 40 * time.Millisecond, Attempts: 3}
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond, 40 * time.Millisecond}
	for attempt, w := range want {
		if got := b.Delay(attempt); got != w {
			t.Fatalf("attempt %d: expected %v, got %v", attempt, w, got)
		}
	}
}
