package internaldefs

import (
	authcore "github.com/ridgelock-io/authcore"
)

// CounterDef defines a public type used by authcore APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by authcore APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the authentication engine.
var CounterDefs = []CounterDef{
	{ID: authcore.MetricLoginSuccess, Name: "authcore_login_success_total", Help: "Successful login attempts."},
	{ID: authcore.MetricLoginFailure, Name: "authcore_login_failure_total", Help: "Failed login attempts."},
	{ID: authcore.MetricLoginRateLimited, Name: "authcore_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: authcore.MetricLoginStepUpRequired, Name: "authcore_login_step_up_required_total", Help: "Logins that required a second factor."},
	{ID: authcore.MetricLoginTrustedDevice, Name: "authcore_login_trusted_device_total", Help: "Logins completed on a trusted device without a second factor."},
	{ID: authcore.MetricOTPIssued, Name: "authcore_otp_issued_total", Help: "One-time codes issued."},
	{ID: authcore.MetricOTPFallbackIssued, Name: "authcore_otp_fallback_issued_total", Help: "One-time codes held in the in-process fallback."},
	{ID: authcore.MetricOTPDeliveryFailure, Name: "authcore_otp_delivery_failure_total", Help: "One-time code delivery failures."},
	{ID: authcore.MetricOTPVerifySuccess, Name: "authcore_otp_verify_success_total", Help: "Successful one-time code verifications."},
	{ID: authcore.MetricOTPVerifyFailure, Name: "authcore_otp_verify_failure_total", Help: "Failed one-time code verifications."},
	{ID: authcore.MetricMFAVerifySuccess, Name: "authcore_mfa_verify_success_total", Help: "Successful MFA verifications."},
	{ID: authcore.MetricMFAVerifyFailure, Name: "authcore_mfa_verify_failure_total", Help: "Failed MFA verifications."},
	{ID: authcore.MetricMFALockout, Name: "authcore_mfa_lockout_total", Help: "Accounts locked out by repeated MFA failures."},
	{ID: authcore.MetricMFAEnrolled, Name: "authcore_mfa_enrolled_total", Help: "MFA enrollments."},
	{ID: authcore.MetricBackupCodeUsed, Name: "authcore_backup_code_used_total", Help: "Successful backup-code authentications."},
	{ID: authcore.MetricBackupCodeFailed, Name: "authcore_backup_code_failed_total", Help: "Failed backup-code authentications."},
	{ID: authcore.MetricBackupCodeRegenerated, Name: "authcore_backup_code_regenerated_total", Help: "Backup-code regeneration operations."},
	{ID: authcore.MetricDeviceTrusted, Name: "authcore_device_trusted_total", Help: "Devices registered as trusted."},
	{ID: authcore.MetricDeviceRemoved, Name: "authcore_device_removed_total", Help: "Trusted device removals."},
	{ID: authcore.MetricQRSessionCreated, Name: "authcore_qr_session_created_total", Help: "QR login sessions created."},
	{ID: authcore.MetricQRSessionApproved, Name: "authcore_qr_session_approved_total", Help: "QR login sessions approved."},
	{ID: authcore.MetricQRSessionRejected, Name: "authcore_qr_session_rejected_total", Help: "QR login sessions rejected."},
	{ID: authcore.MetricQRSessionConsumed, Name: "authcore_qr_session_consumed_total", Help: "QR login sessions consumed by the initiating device."},
	{ID: authcore.MetricRefreshSuccess, Name: "authcore_refresh_success_total", Help: "Successful refresh operations."},
	{ID: authcore.MetricRefreshFailure, Name: "authcore_refresh_failure_total", Help: "Failed refresh operations."},
	{ID: authcore.MetricLogout, Name: "authcore_logout_total", Help: "Logout operations."},
	{ID: authcore.MetricLegacyHashMigrated, Name: "authcore_legacy_hash_migrated_total", Help: "Plaintext credentials migrated to Argon2id."},
	{ID: authcore.MetricStoreDegraded, Name: "authcore_store_degraded_total", Help: "Operations that fell back due to transient store unavailability."},
	{ID: authcore.MetricRateLimitHit, Name: "authcore_rate_limit_hit_total", Help: "Rate-limit checks that denied requests."},
	{ID: authcore.MetricAttemptLogPurged, Name: "authcore_attempt_log_purged_total", Help: "Attempt log retention sweeps that removed rows."},
}

// HistogramDefs is an exported constant or variable used by the authentication engine.
var HistogramDefs = []HistogramDef{
	{ID: authcore.MetricVerifyLatency, Name: "authcore_verify_latency_seconds", Help: "Access token verification latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the authentication engine.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the authentication engine.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets may return an error when input validation, dependency calls, or security checks fail.
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets may return an error when input validation, dependency calls, or security checks fail.
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
