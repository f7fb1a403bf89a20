package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "dial tcp: i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return false }

func floodErr(after int) error {
	return tele.FloodError{RetryAfter: after}
}

func TestBackoffLadder(t *testing.T) {
	p := Policy{
		MaxAttempts: 6,
		Delays:      []time.Duration{time.Second, 2 * time.Second, 5 * time.Second},
	}
	err := timeoutError{}

	expected := []time.Duration{time.Second, 2 * time.Second, 5 * time.Second, 5 * time.Second, 5 * time.Second}
	for attempt, want := range expected {
		got, ok := p.Backoff(attempt, err)
		if !ok {
			t.Fatalf("attempt %d: budget exhausted too early", attempt)
		}
		if got != want {
			t.Fatalf("attempt %d: delay = %v, want %v", attempt, got, want)
		}
	}

	if _, ok := p.Backoff(5, err); ok {
		t.Fatal("attempt 5: expected exhausted budget")
	}
}

func TestBackoffRetryAfterOverridesLadder(t *testing.T) {
	p := DefaultPolicy()

	got, ok := p.Backoff(0, floodErr(7))
	if !ok {
		t.Fatal("expected retry to be allowed")
	}
	if got != 7*time.Second {
		t.Fatalf("delay = %v, want exactly 7s from the server hint", got)
	}

	// The hint wins even with jitter configured.
	p.Jitter = time.Second
	got, _ = p.Backoff(0, floodErr(3))
	if got != 3*time.Second {
		t.Fatalf("delay = %v, want unjittered 3s", got)
	}
}

func TestBackoffJitterBounds(t *testing.T) {
	p := Policy{
		MaxAttempts: 3,
		Delays:      []time.Duration{time.Second},
		Jitter:      500 * time.Millisecond,
	}
	for i := 0; i < 100; i++ {
		got, ok := p.Backoff(0, timeoutError{})
		if !ok {
			t.Fatal("expected retry to be allowed")
		}
		if got < time.Second || got >= 1500*time.Millisecond {
			t.Fatalf("jittered delay %v outside [1s, 1.5s)", got)
		}
	}
}

func TestBackoffExhaustion(t *testing.T) {
	p := DefaultPolicy()
	last := p.MaxAttempts - 1
	if _, ok := p.Backoff(last, timeoutError{}); ok {
		t.Fatalf("attempt %d should exhaust a %d-attempt budget", last, p.MaxAttempts)
	}
	if _, ok := p.Backoff(last-1, timeoutError{}); !ok {
		t.Fatalf("attempt %d should still be retryable", last-1)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"flood", floodErr(5), KindRateLimited},
		{"timeout", timeoutError{}, KindTransport},
		{"deadline", context.DeadlineExceeded, KindTransport},
		{"api_400", &tele.Error{Code: 400, Description: "Bad Request: chat not found"}, KindFatal},
		{"api_403", &tele.Error{Code: 403, Description: "Forbidden: bot was blocked by the user"}, KindFatal},
		{"generic", errors.New("boom"), KindFatal},
	}
	for _, tc := range cases {
		if got := Classify(tc.err); got != tc.want {
			t.Errorf("%s: Classify = %q, want %q", tc.name, got, tc.want)
		}
	}

	if Retryable(floodErr(1)) != true || Retryable(errors.New("boom")) != false {
		t.Fatal("Retryable disagrees with Classify")
	}
}

func TestRetryAfterHint(t *testing.T) {
	if _, ok := RetryAfterHint(timeoutError{}); ok {
		t.Fatal("timeout must carry no hint")
	}
	d, ok := RetryAfterHint(floodErr(12))
	if !ok || d != 12*time.Second {
		t.Fatalf("hint = %v/%v, want 12s/true", d, ok)
	}
}

func TestSleepCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Minute); !errors.Is(err, context.Canceled) {
		t.Fatalf("Sleep = %v, want context.Canceled", err)
	}
	if err := Sleep(context.Background(), 0); err != nil {
		t.Fatalf("zero-duration sleep: %v", err)
	}
}
