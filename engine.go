package authcore

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ridgelock-io/authcore/internal/audit"
	"github.com/ridgelock-io/authcore/internal/kv"
	"github.com/ridgelock-io/authcore/internal/qr"
	"github.com/ridgelock-io/authcore/internal/rate"
	"github.com/ridgelock-io/authcore/password"
	"github.com/ridgelock-io/authcore/token"
)

// Rate limiter action names.
const (
	actionLogin      = "login"
	actionOTPRequest = "otp_request"
	actionOTPVerify  = "otp_verify"
)

// fallbackOTP is an in-process one-time code held only while the transient
// store is unreachable. It keeps OTP login working through a store outage at
// the cost of single-instance scope.
type fallbackOTP struct {
	code      string
	channel   OTPChannel
	expiresAt time.Time
}

// Engine defines a public type used by authcore APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config     Config
	store      kv.Store
	provider   AccountProvider
	deliverer  Deliverer
	limiter    *rate.Limiter
	qrSessions *qr.SessionStore
	tokens     *token.Manager
	hasher     *password.Argon2
	audit      *audit.Dispatcher
	metrics    *Metrics
	log        *zap.Logger

	fallbackMu sync.Mutex
	fallback   map[string]fallbackOTP

	// ownedStore is set when the builder created the store itself and the
	// engine must release it on Close.
	ownedStore *kv.MemoryStore

	sweepStop chan struct{}
	closeOnce sync.Once
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.closeOnce.Do(func() {
		if e.sweepStop != nil {
			close(e.sweepStop)
		}
		if e.audit != nil {
			e.audit.Close()
		}
		if e.ownedStore != nil {
			e.ownedStore.Close()
		}
	})
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped may return an error when input validation, dependency calls, or security checks fail.
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) storeKey(parts ...string) string {
	key := e.config.Store.Prefix
	for _, p := range parts {
		key += ":" + p
	}
	return key
}

// Login describes the login operation and its observable behavior.
//
// Login may return an error when input validation, dependency calls, or security checks fail.
// Login does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Login(ctx context.Context, identifier, plainPassword string) (*LoginResult, error) {
	if e == nil || e.hasher == nil {
		return nil, ErrEngineNotReady
	}
	ip := clientIPFromContext(ctx)

	if err := e.limiter.CheckAndConsume(ctx, actionLogin, identifier, ip); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metricInc(MetricLoginRateLimited)
			e.emitRateLimit(ctx, actionLogin, "", func() map[string]string {
				return map[string]string{"identifier": identifier}
			})
			return nil, ErrRateLimited
		}
		return nil, ErrStoreUnavailable
	}

	if plainPassword == "" {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrInvalidCredential, func() map[string]string {
			return map[string]string{"identifier": identifier, "reason": "empty_password"}
		})
		return nil, ErrInvalidCredential
	}

	account, err := e.provider.GetAccountByIdentifier(ctx, identifier)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrInvalidCredential, func() map[string]string {
			return map[string]string{"identifier": identifier, "reason": "account_not_found"}
		})
		return nil, ErrInvalidCredential
	}

	if err := e.verifyCredential(ctx, &account, plainPassword); err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, account.AccountID, "", err, func() map[string]string {
			return map[string]string{"identifier": identifier, "reason": "credential_mismatch"}
		})
		return nil, err
	}
	plainPassword = ""

	// Password accepted; stop counting this identity against the login budget.
	if err := e.limiter.Reset(ctx, actionLogin, identifier, ip); err != nil {
		e.log.Warn("login limiter reset failed", zap.Error(err))
	}

	// A still-trusted device skips the second factor entirely.
	if fp := fingerprintFromContext(ctx); fp != "" {
		trusted, terr := e.isTrustedFingerprint(ctx, account.AccountID, fp)
		if terr != nil {
			e.log.Warn("trusted device lookup failed", zap.Error(terr))
		}
		if trusted {
			pair, derr := e.issueTokenPair(ctx, account)
			if derr != nil {
				return nil, derr
			}
			e.metricInc(MetricLoginTrustedDevice)
			e.metricInc(MetricLoginSuccess)
			e.emitAudit(ctx, auditEventLoginTrustedDevice, true, account.AccountID, "", nil, nil)
			return &LoginResult{
				AccountID:    account.AccountID,
				AccessToken:  pair.AccessToken,
				RefreshToken: pair.RefreshToken,
			}, nil
		}
	}

	if account.MFAEnabled {
		e.metricInc(MetricLoginStepUpRequired)
		e.emitAudit(ctx, auditEventStepUpRequired, true, account.AccountID, "", nil, func() map[string]string {
			return map[string]string{"method": StepUpMethodTOTP}
		})
		return &LoginResult{
			AccountID:      account.AccountID,
			StepUpRequired: true,
			StepUpMethod:   StepUpMethodTOTP,
		}, nil
	}

	issue, err := e.issueOTP(ctx, account)
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricLoginStepUpRequired)
	e.emitAudit(ctx, auditEventStepUpRequired, true, account.AccountID, "", nil, func() map[string]string {
		return map[string]string{"method": StepUpMethodOTP, "channel": string(issue.Channel)}
	})
	return &LoginResult{
		AccountID:      account.AccountID,
		StepUpRequired: true,
		StepUpMethod:   StepUpMethodOTP,
		OTPChannel:     issue.Channel,
		Degraded:       issue.Degraded,
	}, nil
}

// verifyCredential checks the presented password against the stored
// credential. Plaintext stored credentials are accepted only in legacy
// migration mode and are rehashed in place on first use.
func (e *Engine) verifyCredential(ctx context.Context, account *AccountRecord, plainPassword string) error {
	if password.IsHashed(account.PasswordHash) {
		ok, err := e.hasher.Verify(plainPassword, account.PasswordHash)
		if err != nil || !ok {
			return ErrInvalidCredential
		}
		if e.config.Password.UpgradeOnLogin {
			if needsUpgrade, err := e.hasher.NeedsUpgrade(account.PasswordHash); err == nil && needsUpgrade {
				e.rehashCredential(ctx, account, plainPassword)
			}
		}
		return nil
	}

	if !e.config.Password.LegacyMigrationMode {
		return ErrInvalidCredential
	}
	if !password.VerifyLegacy(plainPassword, account.PasswordHash) {
		return ErrInvalidCredential
	}
	e.rehashCredential(ctx, account, plainPassword)
	e.metricInc(MetricLegacyHashMigrated)
	e.emitAudit(ctx, auditEventLegacyHashMigrated, true, account.AccountID, "", nil, nil)
	return nil
}

// rehashCredential is best-effort; a persistence failure must not block an
// otherwise successful login.
func (e *Engine) rehashCredential(ctx context.Context, account *AccountRecord, plainPassword string) {
	newHash, err := e.hasher.Hash(plainPassword)
	if err != nil {
		e.log.Warn("credential rehash failed", zap.Error(err))
		return
	}
	if err := e.provider.UpdatePasswordHash(ctx, account.AccountID, newHash); err != nil {
		e.log.Warn("credential rehash update failed", zap.Error(err))
		return
	}
	account.PasswordHash = newHash
}

// ValidateAccess describes the validateaccess operation and its observable behavior.
//
// ValidateAccess may return an error when input validation, dependency calls, or security checks fail.
// ValidateAccess does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ValidateAccess(ctx context.Context, tokenStr string) (*AuthResult, error) {
	if e == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}
	if e.metrics != nil && e.metrics.LatencyEnabled() {
		start := time.Now()
		defer e.metrics.Observe(MetricVerifyLatency, time.Since(start))
	}

	claims, err := e.tokens.ParseAccess(tokenStr)
	if err != nil {
		return nil, ErrUnauthorized
	}
	return &AuthResult{
		AccountID: claims.AccountID,
		Role:      claims.Role,
	}, nil
}

// startAttemptSweeper runs the attempt log retention sweeper until Close.
func (e *Engine) startAttemptSweeper(interval time.Duration) {
	e.sweepStop = make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := e.PurgeAttempts(context.Background()); err != nil {
					e.log.Warn("attempt log sweep failed", zap.Error(err))
				}
			case <-e.sweepStop:
				return
			}
		}
	}()
}
