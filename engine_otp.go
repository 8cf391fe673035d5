package authcore

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ridgelock-io/authcore/internal"
	"github.com/ridgelock-io/authcore/internal/kv"
	"github.com/ridgelock-io/authcore/internal/rate"
)

// Second-factor attempt log method names.
const (
	attemptMethodOTP    = "otp"
	attemptMethodTOTP   = "totp"
	attemptMethodBackup = "backup_code"
)

func (e *Engine) otpKey(accountID string) string {
	return e.storeKey("otp", accountID)
}

func (e *Engine) otpChannel(account AccountRecord) (OTPChannel, time.Duration) {
	if account.Phone != "" {
		return ChannelSMS, e.config.OTP.SMSTTL
	}
	return ChannelEmail, e.config.OTP.TTL
}

// SendOTP describes the sendotp operation and its observable behavior.
//
// SendOTP may return an error when input validation, dependency calls, or security checks fail.
// SendOTP does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) SendOTP(ctx context.Context, identifier string) (*OTPIssue, error) {
	if e == nil || e.deliverer == nil {
		return nil, ErrEngineNotReady
	}

	account, err := e.provider.GetAccountByIdentifier(ctx, identifier)
	if err != nil {
		return nil, ErrNotFound
	}

	return e.issueOTP(ctx, account)
}

// issueOTP generates a one-time code, stores it under the account's OTP key,
// and hands it to the deliverer. A transient-store outage routes the code
// into the in-process fallback map instead of failing the flow, and a
// delivery failure degrades the issuance rather than aborting it: the code
// stays stored and verifiable, so the caller can retry delivery without
// invalidating the attempt.
func (e *Engine) issueOTP(ctx context.Context, account AccountRecord) (*OTPIssue, error) {
	ip := clientIPFromContext(ctx)

	if err := e.limiter.CheckAndConsume(ctx, actionOTPRequest, account.AccountID, ip); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.emitRateLimit(ctx, actionOTPRequest, account.AccountID, nil)
			return nil, ErrRateLimited
		}
		return nil, ErrStoreUnavailable
	}

	code, err := internal.NewOTP(e.config.OTP.Digits)
	if err != nil {
		return nil, err
	}
	channel, ttl := e.otpChannel(account)
	issue := &OTPIssue{Handle: uuid.NewString(), Channel: channel}

	if err := e.store.Set(ctx, e.otpKey(account.AccountID), []byte(code), ttl); err != nil {
		if !errors.Is(err, kv.ErrUnavailable) {
			return nil, err
		}
		e.storeFallbackOTP(account.AccountID, code, channel, ttl)
		issue.Degraded = true
		e.metricInc(MetricStoreDegraded)
		e.metricInc(MetricOTPFallbackIssued)
		e.emitAudit(ctx, auditEventOTPFallbackIssued, true, account.AccountID, "", nil, nil)
		e.log.Warn("otp stored in process-local fallback, store unavailable",
			zap.String("account_id", account.AccountID), zap.Error(err))
	}

	if err := e.deliverer.SendOTP(ctx, account, channel, code); err != nil {
		issue.Degraded = true
		e.metricInc(MetricOTPDeliveryFailure)
		e.emitAudit(ctx, auditEventOTPDeliveryFailure, false, account.AccountID, "", ErrDeliveryFailed, func() map[string]string {
			return map[string]string{"channel": string(channel), "handle": issue.Handle}
		})
		e.log.Warn("otp delivery failed, code remains issued",
			zap.String("account_id", account.AccountID),
			zap.String("handle", issue.Handle), zap.Error(err))
		return issue, nil
	}

	e.metricInc(MetricOTPIssued)
	e.emitAudit(ctx, auditEventOTPIssued, true, account.AccountID, "", nil, func() map[string]string {
		return map[string]string{"channel": string(channel), "handle": issue.Handle}
	})
	return issue, nil
}

func (e *Engine) storeFallbackOTP(accountID, code string, channel OTPChannel, ttl time.Duration) {
	e.fallbackMu.Lock()
	defer e.fallbackMu.Unlock()
	e.fallback[accountID] = fallbackOTP{
		code:      code,
		channel:   channel,
		expiresAt: time.Now().Add(ttl),
	}
}

// consumeFallbackOTP returns true when the presented code matches an
// unexpired fallback entry. A match removes the entry.
func (e *Engine) consumeFallbackOTP(accountID, code string) bool {
	e.fallbackMu.Lock()
	defer e.fallbackMu.Unlock()
	entry, ok := e.fallback[accountID]
	if !ok {
		return false
	}
	if time.Now().After(entry.expiresAt) {
		delete(e.fallback, accountID)
		return false
	}
	if subtle.ConstantTimeCompare([]byte(entry.code), []byte(code)) != 1 {
		return false
	}
	delete(e.fallback, accountID)
	return true
}

func (e *Engine) fallbackActive() bool {
	e.fallbackMu.Lock()
	defer e.fallbackMu.Unlock()
	return len(e.fallback) > 0
}

// VerifyOTPLogin describes the verifyotplogin operation and its observable behavior.
//
// VerifyOTPLogin may return an error when input validation, dependency calls, or security checks fail.
// VerifyOTPLogin does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) VerifyOTPLogin(ctx context.Context, identifier, code string) (*LoginResult, error) {
	if e == nil || e.hasher == nil {
		return nil, ErrEngineNotReady
	}
	ip := clientIPFromContext(ctx)

	account, err := e.provider.GetAccountByIdentifier(ctx, identifier)
	if err != nil {
		return nil, ErrInvalidCredential
	}

	if err := e.limiter.CheckAndConsume(ctx, actionOTPVerify, account.AccountID, ip); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metricInc(MetricOTPVerifyFailure)
			e.emitRateLimit(ctx, actionOTPVerify, account.AccountID, nil)
			return nil, ErrRateLimited
		}
		return nil, ErrStoreUnavailable
	}

	ok, degraded, verr := e.matchStoredOTP(ctx, account.AccountID, code)
	if verr != nil {
		e.metricInc(MetricOTPVerifyFailure)
		e.recordAttempt(ctx, account.AccountID, attemptMethodOTP, false, "expired")
		e.emitAudit(ctx, auditEventOTPVerifyFailure, false, account.AccountID, "", verr, nil)
		return nil, verr
	}
	if !ok {
		e.metricInc(MetricOTPVerifyFailure)
		e.recordAttempt(ctx, account.AccountID, attemptMethodOTP, false, "code_mismatch")
		e.emitAudit(ctx, auditEventOTPVerifyFailure, false, account.AccountID, "", ErrInvalidCredential, nil)
		return nil, ErrInvalidCredential
	}

	if err := e.limiter.Reset(ctx, actionOTPVerify, account.AccountID, ip); err != nil {
		e.log.Warn("otp verify limiter reset failed", zap.Error(err))
	}

	e.trustCurrentDevice(ctx, account.AccountID)
	pair, err := e.issueTokenPair(ctx, account)
	if err != nil {
		return nil, err
	}

	e.recordAttempt(ctx, account.AccountID, attemptMethodOTP, true, "")
	e.metricInc(MetricOTPVerifySuccess)
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventOTPVerifySuccess, true, account.AccountID, "", nil, nil)

	return &LoginResult{
		AccountID:    account.AccountID,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		Degraded:     degraded,
	}, nil
}

// matchStoredOTP compares the presented code against the stored one. A wrong
// code never consumes the stored value; a correct code is consumed with an
// atomic read-delete so only one caller can win. The second return reports
// whether the code was resolved through the in-process fallback.
func (e *Engine) matchStoredOTP(ctx context.Context, accountID, code string) (bool, bool, error) {
	stored, err := e.store.Get(ctx, e.otpKey(accountID))
	switch {
	case err == nil:
		if subtle.ConstantTimeCompare(stored, []byte(code)) != 1 {
			return false, false, nil
		}
		consumed, derr := e.store.GetDel(ctx, e.otpKey(accountID))
		if derr != nil {
			return false, false, ErrOTPExpired
		}
		if subtle.ConstantTimeCompare(consumed, []byte(code)) != 1 {
			return false, false, ErrOTPExpired
		}
		return true, false, nil
	case errors.Is(err, kv.ErrNotFound):
		// Not issued through the store; the fallback map may still hold it.
		if e.consumeFallbackOTP(accountID, code) {
			return true, true, nil
		}
		return false, false, ErrOTPExpired
	case errors.Is(err, kv.ErrUnavailable):
		e.metricInc(MetricStoreDegraded)
		if e.consumeFallbackOTP(accountID, code) {
			return true, true, nil
		}
		return false, true, ErrOTPExpired
	default:
		return false, false, err
	}
}
