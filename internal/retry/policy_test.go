package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"git.home.luguber.info/inful/pillarsite/internal/config"
)

// TestDefaultPolicy verifies the single-attempt default.
func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	if p.Mode != config.RetryBackoffLinear {
		t.Fatalf("expected linear default mode got %s", p.Mode)
	}
	if p.MaxRetries != 0 {
		t.Fatalf("expected no retries by default got %d", p.MaxRetries)
	}
}

// TestNewPolicyOverrides checks override precedence and clamping when initial > max.
func TestNewPolicyOverrides(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, 5*time.Second, 2*time.Second, 5)
	if p.Initial != 2*time.Second {
		t.Fatalf("expected clamped initial 2s got %v", p.Initial)
	}
	if p.Mode != config.RetryBackoffFixed {
		t.Fatalf("expected fixed mode got %s", p.Mode)
	}
	if p.MaxRetries != 5 {
		t.Fatalf("expected maxRetries 5 got %d", p.MaxRetries)
	}
	if q := NewPolicy("bogus", 0, 0, -1); q.Mode != config.RetryBackoffLinear || q.MaxRetries != 0 {
		t.Fatalf("unexpected fallback policy %+v", q)
	}
}

func TestDelayModes(t *testing.T) {
	ms := time.Millisecond
	cases := []struct {
		name    string
		p       Policy
		attempt int
		want    time.Duration
	}{
		{"fixed", NewPolicy(config.RetryBackoffFixed, 100*ms, 500*ms, 3), 3, 100 * ms},
		{"linear", NewPolicy(config.RetryBackoffLinear, 100*ms, 250*ms, 5), 2, 200 * ms},
		{"linear capped", NewPolicy(config.RetryBackoffLinear, 100*ms, 250*ms, 5), 3, 250 * ms},
		{"exponential", NewPolicy(config.RetryBackoffExponential, 50*ms, 160*ms, 5), 2, 100 * ms},
		{"exponential capped", NewPolicy(config.RetryBackoffExponential, 50*ms, 160*ms, 5), 3, 160 * ms},
		{"exponential large", NewPolicy(config.RetryBackoffExponential, 50*ms, 160*ms, 99), 64, 160 * ms},
		{"zero attempt", NewPolicy(config.RetryBackoffLinear, 10*ms, 20*ms, 1), 0, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.p.Delay(c.attempt); got != c.want {
				t.Fatalf("attempt %d expected %v got %v", c.attempt, c.want, got)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	if err := (Policy{Initial: 0, Max: time.Second}).Validate(); err == nil {
		t.Fatalf("expected error for zero initial")
	}
	if err := (Policy{Initial: time.Second, Max: time.Second, MaxRetries: -1}).Validate(); err == nil {
		t.Fatalf("expected error for negative retries")
	}
	if err := DefaultPolicy().Validate(); err != nil {
		t.Fatalf("default policy invalid: %v", err)
	}
}

func TestDo(t *testing.T) {
	fast := NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, 2)
	transient := errors.New("503")

	t.Run("succeeds after retries", func(t *testing.T) {
		calls, retries := 0, 0
		err := Do(t.Context(), fast, func(context.Context) error {
			calls++
			if calls < 3 {
				return transient
			}
			return nil
		}, nil, func(int, error) { retries++ })
		if err != nil || calls != 3 || retries != 2 {
			t.Fatalf("err=%v calls=%d retries=%d", err, calls, retries)
		}
	})

	t.Run("gives up", func(t *testing.T) {
		calls := 0
		err := Do(t.Context(), fast, func(context.Context) error { calls++; return transient }, nil, nil)
		if !errors.Is(err, transient) || calls != 3 {
			t.Fatalf("err=%v calls=%d", err, calls)
		}
	})

	t.Run("non retryable", func(t *testing.T) {
		calls := 0
		err := Do(t.Context(), fast, func(context.Context) error { calls++; return transient },
			func(error) bool { return false }, nil)
		if err == nil || calls != 1 {
			t.Fatalf("err=%v calls=%d", err, calls)
		}
	})

	t.Run("default policy single attempt", func(t *testing.T) {
		calls := 0
		_ = Do(t.Context(), DefaultPolicy(), func(context.Context) error { calls++; return transient }, nil, nil)
		if calls != 1 {
			t.Fatalf("expected one call got %d", calls)
		}
	})

	t.Run("canceled context stops waiting", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		slow := NewPolicy(config.RetryBackoffFixed, time.Hour, time.Hour, 5)
		calls := 0
		err := Do(ctx, slow, func(context.Context) error { calls++; return transient }, nil, nil)
		if err == nil || calls != 1 {
			t.Fatalf("err=%v calls=%d", err, calls)
		}
	})
}
