package authcore

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ridgelock-io/authcore/internal"
)

func hashedFingerprint(fingerprint string) string {
	digest := internal.HashFingerprint(fingerprint)
	return hex.EncodeToString(digest[:])
}

// isTrustedFingerprint reports whether the fingerprint maps to an unexpired
// trusted device. A hit refreshes the sliding trust window and the device's
// connection metadata.
func (e *Engine) isTrustedFingerprint(ctx context.Context, accountID, fingerprint string) (bool, error) {
	device, err := e.provider.GetTrustedDevice(ctx, accountID, hashedFingerprint(fingerprint))
	if err != nil {
		return false, nil
	}
	if !device.Trusted {
		return false, nil
	}
	// A zero expiry means trust without a deadline; only a set, passed expiry
	// disqualifies the device.
	if !device.ExpiresAt.IsZero() && time.Now().After(device.ExpiresAt) {
		// Expired trust is pruned on sight so it does not linger in listings.
		if derr := e.provider.DeleteTrustedDevice(ctx, accountID, device.DeviceID); derr != nil {
			return false, derr
		}
		return false, nil
	}

	e.refreshDevice(ctx, device)
	return true, nil
}

func (e *Engine) refreshDevice(ctx context.Context, device TrustedDeviceRecord) {
	now := time.Now()
	device.IP = clientIPFromContext(ctx)
	device.UserAgent = userAgentFromContext(ctx)
	device.Hostname = hostnameFromContext(ctx)
	device.LastLoginAt = now
	device.ExpiresAt = now.Add(e.config.TrustedDevice.TTL)
	if err := e.provider.UpsertTrustedDevice(ctx, device); err != nil {
		e.log.Warn("trusted device refresh failed",
			zap.String("device_id", device.DeviceID), zap.Error(err))
	}
}

// trustCurrentDevice registers the calling device as trusted after a
// completed second factor. Without a fingerprint in context there is nothing
// to remember.
func (e *Engine) trustCurrentDevice(ctx context.Context, accountID string) {
	fingerprint := fingerprintFromContext(ctx)
	if fingerprint == "" {
		return
	}

	fpHash := hashedFingerprint(fingerprint)
	now := time.Now()

	device, err := e.provider.GetTrustedDevice(ctx, accountID, fpHash)
	if err != nil {
		device = TrustedDeviceRecord{
			DeviceID:    uuid.NewString(),
			AccountID:   accountID,
			Fingerprint: fpHash,
		}
	}
	device.Trusted = true
	device.IP = clientIPFromContext(ctx)
	device.UserAgent = userAgentFromContext(ctx)
	device.Hostname = hostnameFromContext(ctx)
	device.LastLoginAt = now
	device.ExpiresAt = now.Add(e.config.TrustedDevice.TTL)

	if err := e.provider.UpsertTrustedDevice(ctx, device); err != nil {
		e.log.Warn("trusted device upsert failed",
			zap.String("account_id", accountID), zap.Error(err))
		return
	}

	e.metricInc(MetricDeviceTrusted)
	e.emitAudit(ctx, auditEventDeviceTrusted, true, accountID, device.DeviceID, nil, nil)
}

// ListDevices describes the listdevices operation and its observable behavior.
//
// ListDevices may return an error when input validation, dependency calls, or security checks fail.
// ListDevices does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ListDevices(ctx context.Context, accountID string) ([]TrustedDeviceRecord, error) {
	if e == nil || e.provider == nil {
		return nil, ErrEngineNotReady
	}

	devices, err := e.provider.ListTrustedDevices(ctx, accountID)
	if err != nil {
		return nil, err
	}

	// Expired devices stay out of the listing even before the next prune.
	now := time.Now()
	active := devices[:0]
	for _, d := range devices {
		if d.Trusted && (d.ExpiresAt.IsZero() || now.Before(d.ExpiresAt)) {
			active = append(active, d)
		}
	}
	return active, nil
}

// RemoveDevice describes the removedevice operation and its observable behavior.
//
// RemoveDevice may return an error when input validation, dependency calls, or security checks fail.
// RemoveDevice does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RemoveDevice(ctx context.Context, accountID, deviceID string) error {
	if e == nil || e.provider == nil {
		return ErrEngineNotReady
	}

	device, err := e.provider.GetTrustedDeviceByID(ctx, deviceID)
	if err != nil {
		return ErrNotFound
	}
	if device.AccountID != accountID {
		e.emitAudit(ctx, auditEventDeviceRemoved, false, accountID, deviceID, ErrForbidden, nil)
		return ErrForbidden
	}

	if err := e.provider.DeleteTrustedDevice(ctx, accountID, deviceID); err != nil {
		return err
	}

	e.metricInc(MetricDeviceRemoved)
	e.emitAudit(ctx, auditEventDeviceRemoved, true, accountID, deviceID, nil, nil)
	return nil
}

// RemoveAllDevices describes the removealldevices operation and its observable behavior.
//
// RemoveAllDevices may return an error when input validation, dependency calls, or security checks fail.
// RemoveAllDevices does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RemoveAllDevices(ctx context.Context, accountID string) error {
	if e == nil || e.provider == nil {
		return ErrEngineNotReady
	}

	if err := e.provider.DeleteTrustedDevices(ctx, accountID); err != nil {
		return err
	}

	e.metricInc(MetricDeviceRemoved)
	e.emitAudit(ctx, auditEventDevicesCleared, true, accountID, "", nil, nil)
	return nil
}
