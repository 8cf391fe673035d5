package authcore

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventLoginSuccess        = "login_success"
	auditEventLoginFailure        = "login_failure"
	auditEventLoginTrustedDevice  = "login_trusted_device"
	auditEventStepUpRequired      = "step_up_required"
	auditEventOTPIssued           = "otp_issued"
	auditEventOTPFallbackIssued   = "otp_fallback_issued"
	auditEventOTPDeliveryFailure  = "otp_delivery_failure"
	auditEventOTPVerifySuccess    = "otp_verify_success"
	auditEventOTPVerifyFailure    = "otp_verify_failure"
	auditEventMFAEnrolled         = "mfa_enrolled"
	auditEventMFAVerifySuccess    = "mfa_verify_success"
	auditEventMFAVerifyFailure    = "mfa_verify_failure"
	auditEventMFALockout          = "mfa_lockout"
	auditEventBackupCodeUsed      = "backup_code_used"
	auditEventBackupCodeFailed    = "backup_code_failed"
	auditEventBackupCodesReissued = "backup_codes_reissued"
	auditEventDeviceTrusted       = "device_trusted"
	auditEventDeviceRemoved       = "device_removed"
	auditEventDevicesCleared      = "devices_cleared"
	auditEventQRSessionCreated    = "qr_session_created"
	auditEventQRSessionApproved   = "qr_session_approved"
	auditEventQRSessionRejected   = "qr_session_rejected"
	auditEventQRSessionConsumed   = "qr_session_consumed"
	auditEventRefreshSuccess      = "refresh_success"
	auditEventRefreshInvalid      = "refresh_invalid"
	auditEventLogout              = "logout"
	auditEventLegacyHashMigrated  = "legacy_hash_migrated"
	auditEventAttemptLogPurged    = "attempt_log_purged"
	auditEventRateLimitTriggered  = "rate_limit_triggered"
)

// AuditErrorCode defines a public type used by authcore APIs.
//
// AuditErrorCode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditErrorCode string

const (
	auditErrNotFound          AuditErrorCode = "not_found"
	auditErrInvalidCredential AuditErrorCode = "invalid_credential"
	auditErrRateLimited       AuditErrorCode = "rate_limited"
	auditErrAccountLocked     AuditErrorCode = "account_locked"
	auditErrConflict          AuditErrorCode = "conflict"
	auditErrUnauthorized      AuditErrorCode = "unauthorized"
	auditErrForbidden         AuditErrorCode = "forbidden"
	auditErrStoreUnavailable  AuditErrorCode = "store_unavailable"
	auditErrMFANotEnrolled    AuditErrorCode = "mfa_not_enrolled"
	auditErrOTPExpired        AuditErrorCode = "otp_expired"
	auditErrQRSessionExpired  AuditErrorCode = "qr_session_expired"
	auditErrDeliveryFailed    AuditErrorCode = "delivery_failed"
	auditErrInternal          AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	accountID string,
	deviceID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		AccountID: accountID,
		DeviceID:  deviceID,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(
	ctx context.Context,
	action string,
	accountID string,
	metadataBuilder func() map[string]string,
) {
	e.metricInc(MetricRateLimitHit)
	e.emitAudit(ctx, auditEventRateLimitTriggered, false, accountID, "", nil, func() map[string]string {
		base := map[string]string{
			"action": action,
		}
		if metadataBuilder == nil {
			return base
		}
		for k, v := range metadataBuilder() {
			base[k] = v
		}
		return base
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrOTPExpired):
		return auditErrOTPExpired
	case errors.Is(err, ErrQRSessionExpired):
		return auditErrQRSessionExpired
	case errors.Is(err, ErrMFANotEnrolled):
		return auditErrMFANotEnrolled
	case errors.Is(err, ErrInvalidCredential):
		return auditErrInvalidCredential
	case errors.Is(err, ErrForbidden):
		return auditErrForbidden
	case errors.Is(err, ErrUnauthorized):
		return auditErrUnauthorized
	case errors.Is(err, ErrConflict):
		return auditErrConflict
	case errors.Is(err, ErrNotFound):
		return auditErrNotFound
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrStoreUnavailable
	case errors.Is(err, ErrDeliveryFailed):
		return auditErrDeliveryFailed
	default:
		return auditErrInternal
	}
}
