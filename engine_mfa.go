package authcore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ridgelock-io/authcore/internal"
	"github.com/ridgelock-io/authcore/internal/rate"
)

// codeShape classifies a submitted second-factor code by its shape alone:
// an all-digit string of the configured TOTP length routes to TOTP, a
// hyphenated string over the backup alphabet routes to backup codes, and
// anything else is refused outright.
type codeShape int

const (
	shapeUnknown codeShape = iota
	shapeTOTP
	shapeBackup
)

func (e *Engine) classifyCode(code string) codeShape {
	code = strings.TrimSpace(code)
	if code == "" {
		return shapeUnknown
	}

	digitsOnly := true
	for _, r := range code {
		if r < '0' || r > '9' {
			digitsOnly = false
			break
		}
	}
	if digitsOnly {
		if len(code) == e.config.MFA.Digits {
			return shapeTOTP
		}
		return shapeUnknown
	}

	canonical := internal.CanonicalizeBackupCode(code)
	if len(canonical) != e.config.MFA.BackupCodeLength {
		return shapeUnknown
	}
	for _, r := range canonical {
		if !strings.ContainsRune(internal.BackupCodeAlphabet, r) {
			return shapeUnknown
		}
	}
	return shapeBackup
}

func (e *Engine) totpAlgorithm() otp.Algorithm {
	switch strings.ToUpper(e.config.MFA.Algorithm) {
	case "SHA256":
		return otp.AlgorithmSHA256
	case "SHA512":
		return otp.AlgorithmSHA512
	default:
		return otp.AlgorithmSHA1
	}
}

// EnrollMFA describes the enrollmfa operation and its observable behavior.
//
// EnrollMFA may return an error when input validation, dependency calls, or security checks fail.
// EnrollMFA does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) EnrollMFA(ctx context.Context, accountID string) (*MFAEnrollment, error) {
	if e == nil || e.provider == nil {
		return nil, ErrEngineNotReady
	}

	account, err := e.provider.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, ErrNotFound
	}
	if account.MFAEnabled {
		return nil, ErrConflict
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      e.config.MFA.Issuer,
		AccountName: account.Identifier,
		Period:      uint(e.config.MFA.Period),
		Digits:      otp.Digits(e.config.MFA.Digits),
		Algorithm:   e.totpAlgorithm(),
	})
	if err != nil {
		return nil, err
	}

	png, err := qrcode.Encode(key.URL(), qrcode.Medium, e.config.QRLogin.ImageSize)
	if err != nil {
		return nil, err
	}

	plaintext, records, err := e.generateBackupCodes(accountID)
	if err != nil {
		return nil, err
	}
	if err := e.provider.ReplaceBackupCodes(ctx, accountID, records); err != nil {
		return nil, err
	}

	if err := e.provider.SetMFASecret(ctx, accountID, key.Secret(), true); err != nil {
		return nil, err
	}

	e.metricInc(MetricMFAEnrolled)
	e.emitAudit(ctx, auditEventMFAEnrolled, true, accountID, "", nil, nil)

	return &MFAEnrollment{
		SecretBase32:    key.Secret(),
		ProvisioningURI: key.URL(),
		QRImagePNG:      png,
		BackupCodes:     plaintext,
	}, nil
}

func (e *Engine) generateBackupCodes(accountID string) ([]string, []BackupCodeRecord, error) {
	now := time.Now()
	plaintext := make([]string, 0, e.config.MFA.BackupCodeCount)
	records := make([]BackupCodeRecord, 0, e.config.MFA.BackupCodeCount)

	for i := 0; i < e.config.MFA.BackupCodeCount; i++ {
		code, err := internal.NewBackupCode(e.config.MFA.BackupCodeLength)
		if err != nil {
			return nil, nil, err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
		if err != nil {
			return nil, nil, err
		}
		plaintext = append(plaintext, internal.FormatBackupCode(code))
		records = append(records, BackupCodeRecord{
			CodeID:    uuid.NewString(),
			AccountID: accountID,
			CodeHash:  string(hash),
			CreatedAt: now,
		})
	}
	return plaintext, records, nil
}

// RegenerateBackupCodes describes the regeneratebackupcodes operation and its observable behavior.
//
// RegenerateBackupCodes may return an error when input validation, dependency calls, or security checks fail.
// RegenerateBackupCodes does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RegenerateBackupCodes(ctx context.Context, accountID string) ([]string, error) {
	if e == nil || e.provider == nil {
		return nil, ErrEngineNotReady
	}

	account, err := e.provider.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, ErrNotFound
	}
	if !account.MFAEnabled {
		return nil, ErrMFANotEnrolled
	}

	plaintext, records, err := e.generateBackupCodes(accountID)
	if err != nil {
		return nil, err
	}
	if err := e.provider.ReplaceBackupCodes(ctx, accountID, records); err != nil {
		return nil, err
	}

	e.metricInc(MetricBackupCodeRegenerated)
	e.emitAudit(ctx, auditEventBackupCodesReissued, true, accountID, "", nil, nil)
	return plaintext, nil
}

// VerifyMFALogin describes the verifymfalogin operation and its observable behavior.
//
// VerifyMFALogin may return an error when input validation, dependency calls, or security checks fail.
// VerifyMFALogin does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) VerifyMFALogin(ctx context.Context, identifier, code string) (*LoginResult, error) {
	if e == nil || e.provider == nil {
		return nil, ErrEngineNotReady
	}

	account, err := e.provider.GetAccountByIdentifier(ctx, identifier)
	if err != nil {
		return nil, ErrInvalidCredential
	}
	if !account.MFAEnabled || account.MFASecret == "" {
		return nil, ErrMFANotEnrolled
	}

	if err := e.limiter.CheckLockout(ctx, account.AccountID); err != nil {
		if errors.Is(err, rate.ErrLockedOut) {
			e.metricInc(MetricMFALockout)
			e.emitAudit(ctx, auditEventMFALockout, false, account.AccountID, "", ErrAccountLocked, nil)
			return nil, ErrAccountLocked
		}
		e.log.Warn("mfa lockout check failed", zap.Error(err))
	}

	var (
		method string
		valid  bool
	)
	switch e.classifyCode(code) {
	case shapeTOTP:
		method = attemptMethodTOTP
		ok, verr := totp.ValidateCustom(strings.TrimSpace(code), account.MFASecret, time.Now(), totp.ValidateOpts{
			Period:    uint(e.config.MFA.Period),
			Skew:      uint(e.config.MFA.Skew),
			Digits:    otp.Digits(e.config.MFA.Digits),
			Algorithm: e.totpAlgorithm(),
		})
		valid = ok && verr == nil
	case shapeBackup:
		method = attemptMethodBackup
		valid, err = e.verifyBackupCode(ctx, account.AccountID, code)
		if err != nil {
			return nil, err
		}
	default:
		// Unrecognized shapes fail closed without touching either verifier.
		e.recordAttempt(ctx, account.AccountID, "unknown", false, "unrecognized_shape")
		e.metricInc(MetricMFAVerifyFailure)
		e.emitAudit(ctx, auditEventMFAVerifyFailure, false, account.AccountID, "", ErrInvalidCredential, func() map[string]string {
			return map[string]string{"reason": "unrecognized_shape"}
		})
		return nil, ErrInvalidCredential
	}

	if !valid {
		return nil, e.failMFAAttempt(ctx, account.AccountID, method)
	}

	if err := e.limiter.ClearLockout(ctx, account.AccountID); err != nil {
		e.log.Warn("mfa lockout clear failed", zap.Error(err))
	}

	e.trustCurrentDevice(ctx, account.AccountID)
	pair, err := e.issueTokenPair(ctx, account)
	if err != nil {
		return nil, err
	}

	e.recordAttempt(ctx, account.AccountID, method, true, "")
	e.metricInc(MetricMFAVerifySuccess)
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventMFAVerifySuccess, true, account.AccountID, "", nil, func() map[string]string {
		return map[string]string{"method": method}
	})

	return &LoginResult{
		AccountID:    account.AccountID,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil
}

func (e *Engine) failMFAAttempt(ctx context.Context, accountID, method string) error {
	if err := e.limiter.RecordFailure(ctx, accountID); err != nil {
		e.log.Warn("mfa failure counter update failed", zap.Error(err))
	}
	e.recordAttempt(ctx, accountID, method, false, "code_mismatch")
	e.metricInc(MetricMFAVerifyFailure)
	if method == attemptMethodBackup {
		e.metricInc(MetricBackupCodeFailed)
		e.emitAudit(ctx, auditEventBackupCodeFailed, false, accountID, "", ErrInvalidCredential, nil)
	} else {
		e.emitAudit(ctx, auditEventMFAVerifyFailure, false, accountID, "", ErrInvalidCredential, func() map[string]string {
			return map[string]string{"method": method}
		})
	}

	if err := e.limiter.CheckLockout(ctx, accountID); errors.Is(err, rate.ErrLockedOut) {
		e.metricInc(MetricMFALockout)
		e.emitAudit(ctx, auditEventMFALockout, false, accountID, "", ErrAccountLocked, nil)
		return ErrAccountLocked
	}
	return ErrInvalidCredential
}

// verifyBackupCode walks the account's unused codes and compares the
// canonical form against each salted hash. A match consumes the code.
func (e *Engine) verifyBackupCode(ctx context.Context, accountID, code string) (bool, error) {
	canonical := internal.CanonicalizeBackupCode(code)

	codes, err := e.provider.GetBackupCodes(ctx, accountID)
	if err != nil {
		return false, err
	}

	for _, record := range codes {
		if bcrypt.CompareHashAndPassword([]byte(record.CodeHash), []byte(canonical)) != nil {
			continue
		}
		if err := e.provider.MarkBackupCodeUsed(ctx, record.CodeID, time.Now()); err != nil {
			return false, err
		}
		e.metricInc(MetricBackupCodeUsed)
		e.emitAudit(ctx, auditEventBackupCodeUsed, true, accountID, "", nil, nil)
		return true, nil
	}
	return false, nil
}
