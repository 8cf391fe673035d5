package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ridgelock-io/authcore/internal/kv"
)

func newTestLimiter(t *testing.T, cfg Config) *Limiter {
	t.Helper()
	return New(kv.NewMemoryStore(0), cfg, nil)
}

func TestCheckAndConsumeWithinBudget(t *testing.T) {
	l := newTestLimiter(t, Config{
		Actions: map[string]Policy{
			"login": {MaxAttempts: 5, Window: 5 * time.Minute},
		},
	})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := l.CheckAndConsume(ctx, "login", "alice", "10.0.0.1"); err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}
}

func TestCheckAndConsumeExceedsBudget(t *testing.T) {
	l := newTestLimiter(t, Config{
		Actions: map[string]Policy{
			"login": {MaxAttempts: 5, Window: 5 * time.Minute},
		},
	})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := l.CheckAndConsume(ctx, "login", "alice", ""); err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}

	if err := l.CheckAndConsume(ctx, "login", "alice", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("6th attempt: expected ErrRateLimited, got %v", err)
	}
}

func TestUnknownActionUnlimited(t *testing.T) {
	l := newTestLimiter(t, Config{})
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		if err := l.CheckAndConsume(ctx, "mystery", "alice", ""); err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}
}

func TestResetClearsBudget(t *testing.T) {
	l := newTestLimiter(t, Config{
		Actions: map[string]Policy{
			"otp_verify": {MaxAttempts: 2, Window: 10 * time.Minute},
		},
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.CheckAndConsume(ctx, "otp_verify", "alice", ""); err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}
	if err := l.Reset(ctx, "otp_verify", "alice", ""); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := l.CheckAndConsume(ctx, "otp_verify", "alice", ""); err != nil {
		t.Fatalf("attempt after reset: %v", err)
	}
}

func TestIPThrottleSharedAcrossIdentities(t *testing.T) {
	l := newTestLimiter(t, Config{
		EnableIPThrottle: true,
		Actions: map[string]Policy{
			"login": {MaxAttempts: 3, Window: 5 * time.Minute},
		},
	})
	ctx := context.Background()

	identities := []string{"a", "b", "c"}
	for _, id := range identities {
		if err := l.CheckAndConsume(ctx, "login", id, "10.0.0.9"); err != nil {
			t.Fatalf("identity %s: %v", id, err)
		}
	}

	if err := l.CheckAndConsume(ctx, "login", "d", "10.0.0.9"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ip-based ErrRateLimited, got %v", err)
	}
}

func TestFailOpenOnStoreOutage(t *testing.T) {
	l := New(unavailableStore{}, Config{
		Actions: map[string]Policy{
			"login": {MaxAttempts: 1, Window: time.Minute},
		},
		LockoutThreshold: 1,
		LockoutWindow:    time.Minute,
	}, nil)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if err := l.CheckAndConsume(ctx, "login", "alice", "10.0.0.1"); err != nil {
			t.Fatalf("attempt %d should fail open, got %v", i+1, err)
		}
	}
	if err := l.CheckLockout(ctx, "acct-1"); err != nil {
		t.Fatalf("lockout check should fail open, got %v", err)
	}
}

func TestLockoutThreshold(t *testing.T) {
	l := newTestLimiter(t, Config{
		LockoutThreshold: 5,
		LockoutWindow:    15 * time.Minute,
	})
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if err := l.RecordFailure(ctx, "acct-1"); err != nil {
			t.Fatalf("record failure %d: %v", i+1, err)
		}
		if err := l.CheckLockout(ctx, "acct-1"); err != nil {
			t.Fatalf("lockout before threshold: %v", err)
		}
	}

	if err := l.RecordFailure(ctx, "acct-1"); err != nil {
		t.Fatalf("record 5th failure: %v", err)
	}
	if err := l.CheckLockout(ctx, "acct-1"); !errors.Is(err, ErrLockedOut) {
		t.Fatalf("expected ErrLockedOut, got %v", err)
	}

	if err := l.ClearLockout(ctx, "acct-1"); err != nil {
		t.Fatalf("clear lockout: %v", err)
	}
	if err := l.CheckLockout(ctx, "acct-1"); err != nil {
		t.Fatalf("lockout after clear: %v", err)
	}
}

type unavailableStore struct{}

func (unavailableStore) Set(context.Context, string, []byte, time.Duration) error {
	return kv.ErrUnavailable
}

func (unavailableStore) Get(context.Context, string) ([]byte, error) {
	return nil, kv.ErrUnavailable
}

func (unavailableStore) GetDel(context.Context, string) ([]byte, error) {
	return nil, kv.ErrUnavailable
}

func (unavailableStore) Incr(context.Context, string) (int64, error) {
	return 0, kv.ErrUnavailable
}

func (unavailableStore) Expire(context.Context, string, time.Duration) error {
	return kv.ErrUnavailable
}

func (unavailableStore) Delete(context.Context, ...string) error {
	return kv.ErrUnavailable
}
