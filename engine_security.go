package authcore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// recordAttempt appends one row to the second-factor attempt log. The log is
// advisory; persistence failures are logged and swallowed so they never
// change an authentication outcome.
func (e *Engine) recordAttempt(ctx context.Context, accountID, method string, success bool, reason string) {
	attempt := MFAAttemptRecord{
		AttemptID: uuid.NewString(),
		AccountID: accountID,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		DeviceID:  fingerprintFromContext(ctx),
		Method:    method,
		Success:   success,
		Reason:    reason,
		CreatedAt: time.Now(),
	}
	if err := e.provider.RecordMFAAttempt(ctx, attempt); err != nil {
		e.log.Warn("mfa attempt record failed",
			zap.String("account_id", accountID), zap.Error(err))
	}
}

// SuspiciousIPs describes the suspiciousips operation and its observable behavior.
//
// SuspiciousIPs may return an error when input validation, dependency calls, or security checks fail.
// SuspiciousIPs does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) SuspiciousIPs(ctx context.Context) ([]SuspiciousIPReport, error) {
	if e == nil || e.provider == nil {
		return nil, ErrEngineNotReady
	}

	since := time.Now().Add(-e.config.AttemptLog.SuspiciousIPWindow)
	counts, err := e.provider.ListFailureIPsSince(ctx, since)
	if err != nil {
		return nil, err
	}

	var reports []SuspiciousIPReport
	for ip, failures := range counts {
		if ip == "" || failures < e.config.AttemptLog.SuspiciousIPThreshold {
			continue
		}
		reports = append(reports, SuspiciousIPReport{
			IP:       ip,
			Failures: failures,
			Since:    since,
		})
	}
	sort.Slice(reports, func(i, j int) bool {
		if reports[i].Failures != reports[j].Failures {
			return reports[i].Failures > reports[j].Failures
		}
		return reports[i].IP < reports[j].IP
	})
	return reports, nil
}

// PurgeAttempts describes the purgeattempts operation and its observable behavior.
//
// PurgeAttempts may return an error when input validation, dependency calls, or security checks fail.
// PurgeAttempts does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) PurgeAttempts(ctx context.Context) (int64, error) {
	if e == nil || e.provider == nil {
		return 0, ErrEngineNotReady
	}

	cutoff := time.Now().Add(-e.config.AttemptLog.Retention)
	purged, err := e.provider.DeleteMFAAttemptsBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if purged > 0 {
		e.metricInc(MetricAttemptLogPurged)
		e.emitAudit(ctx, auditEventAttemptLogPurged, true, "", "", nil, nil)
	}
	return purged, nil
}
