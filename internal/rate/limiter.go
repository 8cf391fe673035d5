package rate

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ridgelock-io/authcore/internal/kv"
)

// Policy is one action's attempt budget: at most MaxAttempts inside a fixed
// Window; the attempt that exceeds the budget is refused.
type Policy struct {
	MaxAttempts int
	Window      time.Duration
}

// Config holds rate limiter tuning parameters. Actions maps an action name
// (login, otp_request, otp_verify, ...) to its budget; actions without a
// policy are unlimited.
type Config struct {
	EnableIPThrottle bool
	Actions          map[string]Policy

	LockoutThreshold int
	LockoutWindow    time.Duration
}

// Limiter enforces per-identity and per-IP budgets for authentication
// actions using transient-store counters.
type Limiter struct {
	store kv.Store
	cfg   Config
	log   *zap.Logger
}

// New creates a rate [Limiter] backed by the given transient store.
func New(store kv.Store, cfg Config, log *zap.Logger) *Limiter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Limiter{
		store: store,
		cfg:   cfg,
		log:   log,
	}
}

// CheckAndConsume counts one attempt against the action's budget for the
// identity+IP pair. It returns [ErrRateLimited] once the budget is exceeded.
// When the store is unreachable the attempt is allowed through.
func (l *Limiter) CheckAndConsume(ctx context.Context, action, identity, ip string) error {
	pol, ok := l.cfg.Actions[action]
	if !ok || pol.MaxAttempts <= 0 {
		return nil
	}

	count, err := l.incrementWithTTL(ctx, identityKey(action, identity), pol.Window)
	if err != nil {
		l.failOpen(action, err)
		return nil
	}
	if count > int64(pol.MaxAttempts) {
		return ErrRateLimited
	}

	if l.cfg.EnableIPThrottle && ip != "" {
		count, err = l.incrementWithTTL(ctx, ipKey(action, ip), pol.Window)
		if err != nil {
			l.failOpen(action, err)
			return nil
		}
		if count > int64(pol.MaxAttempts) {
			return ErrRateLimited
		}
	}

	return nil
}

// Reset clears the action counters for the identity+IP pair. Called after a
// successful attempt so legitimate users never inherit stale budgets.
func (l *Limiter) Reset(ctx context.Context, action, identity, ip string) error {
	keys := []string{identityKey(action, identity)}
	if l.cfg.EnableIPThrottle && ip != "" {
		keys = append(keys, ipKey(action, ip))
	}

	if err := l.store.Delete(ctx, keys...); err != nil {
		l.failOpen(action, err)
	}
	return nil
}

// Attempts returns the current counter for an identity. Missing keys return
// zero and do not reveal account existence.
func (l *Limiter) Attempts(ctx context.Context, action, identity string) (int64, error) {
	raw, err := l.store.Get(ctx, identityKey(action, identity))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}

	count, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil || count < 0 {
		return 0, nil
	}
	return count, nil
}

// RecordFailure counts one second-factor failure toward the account
// lockout threshold.
func (l *Limiter) RecordFailure(ctx context.Context, accountID string) error {
	if l.cfg.LockoutThreshold <= 0 {
		return nil
	}

	if _, err := l.incrementWithTTL(ctx, lockoutKey(accountID), l.cfg.LockoutWindow); err != nil {
		l.failOpen("lockout", err)
	}
	return nil
}

// CheckLockout returns [ErrLockedOut] when the account has crossed the
// failure threshold inside the lockout window.
func (l *Limiter) CheckLockout(ctx context.Context, accountID string) error {
	if l.cfg.LockoutThreshold <= 0 {
		return nil
	}

	raw, err := l.store.Get(ctx, lockoutKey(accountID))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil
		}
		l.failOpen("lockout", err)
		return nil
	}

	count, parseErr := strconv.ParseInt(string(raw), 10, 64)
	if parseErr != nil {
		return nil
	}
	if count >= int64(l.cfg.LockoutThreshold) {
		return ErrLockedOut
	}
	return nil
}

// ClearLockout removes the failure counter after a successful verification.
func (l *Limiter) ClearLockout(ctx context.Context, accountID string) error {
	if err := l.store.Delete(ctx, lockoutKey(accountID)); err != nil {
		l.failOpen("lockout", err)
	}
	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.store.Incr(ctx, key)
	if err != nil {
		return 0, err
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.store.Expire(ctx, key, ttl); err != nil {
			return 0, err
		}
	}

	return count, nil
}

func (l *Limiter) failOpen(action string, err error) {
	l.log.Warn("rate limiter degraded, allowing attempt",
		zap.String("action", action),
		zap.Error(err),
	)
}

func identityKey(action, identity string) string {
	return "rl:" + action + ":id:" + identity
}

func ipKey(action, ip string) string {
	return "rl:" + action + ":ip:" + ip
}

func lockoutKey(accountID string) string {
	return "lk:" + accountID
}
