package authcore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/skip2/go-qrcode"

	"github.com/ridgelock-io/authcore/internal"
	"github.com/ridgelock-io/authcore/internal/qr"
)

func (e *Engine) qrPayload(sessionID string) string {
	base := strings.TrimRight(e.config.QRLogin.BaseURL, "/")
	if base == "" {
		return sessionID
	}
	return base + "/qr/confirm?session=" + sessionID
}

func (e *Engine) roleRestricted(role string) bool {
	for _, restricted := range e.config.QRLogin.RestrictedRoles {
		if strings.EqualFold(role, restricted) {
			return true
		}
	}
	return false
}

// GenerateQRLogin describes the generateqrlogin operation and its observable behavior.
//
// GenerateQRLogin may return an error when input validation, dependency calls, or security checks fail.
// GenerateQRLogin does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) GenerateQRLogin(ctx context.Context) (*QRLoginSession, error) {
	if e == nil || e.qrSessions == nil {
		return nil, ErrEngineNotReady
	}

	sid, err := internal.NewSessionID()
	if err != nil {
		return nil, err
	}
	sessionID := sid.String()

	if err := e.qrSessions.Create(ctx, sessionID, e.config.QRLogin.TTL); err != nil {
		if errors.Is(err, qr.ErrBackend) {
			e.metricInc(MetricStoreDegraded)
			return nil, ErrStoreUnavailable
		}
		return nil, err
	}

	payload := e.qrPayload(sessionID)
	png, err := qrcode.Encode(payload, qrcode.Medium, e.config.QRLogin.ImageSize)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricQRSessionCreated)
	e.emitAudit(ctx, auditEventQRSessionCreated, true, "", "", nil, nil)

	return &QRLoginSession{
		SessionID:  sessionID,
		Payload:    payload,
		QRImagePNG: png,
		ExpiresAt:  time.Now().Add(e.config.QRLogin.TTL),
	}, nil
}

// ConfirmQRLogin describes the confirmqrlogin operation and its observable behavior.
//
// ConfirmQRLogin may return an error when input validation, dependency calls, or security checks fail.
// ConfirmQRLogin does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ConfirmQRLogin(ctx context.Context, sessionID, identifier, plainPassword string, approve bool) error {
	if e == nil || e.qrSessions == nil {
		return ErrEngineNotReady
	}

	account, err := e.provider.GetAccountByIdentifier(ctx, identifier)
	if err != nil {
		return ErrInvalidCredential
	}
	if err := e.verifyCredential(ctx, &account, plainPassword); err != nil {
		return err
	}

	return e.confirmQRSession(ctx, sessionID, account, approve)
}

// ConfirmQRLoginWithToken confirms a session on behalf of an already
// authenticated device, using its access token instead of a password.
func (e *Engine) ConfirmQRLoginWithToken(ctx context.Context, sessionID, accessToken string, approve bool) error {
	if e == nil || e.qrSessions == nil {
		return ErrEngineNotReady
	}

	auth, err := e.ValidateAccess(ctx, accessToken)
	if err != nil {
		return err
	}
	account, err := e.provider.GetAccountByID(ctx, auth.AccountID)
	if err != nil {
		return ErrUnauthorized
	}

	return e.confirmQRSession(ctx, sessionID, account, approve)
}

func (e *Engine) confirmQRSession(ctx context.Context, sessionID string, account AccountRecord, approve bool) error {
	// Privileged roles never complete a cross-device login; their session is
	// closed out so the initiating device stops polling.
	if e.roleRestricted(account.Role) {
		if err := e.qrSessions.Reject(ctx, sessionID); err != nil && !errors.Is(err, qr.ErrSessionNotFound) && !errors.Is(err, qr.ErrStateConflict) {
			e.log.Warn("qr session reject failed for restricted role")
		}
		e.metricInc(MetricQRSessionRejected)
		e.emitAudit(ctx, auditEventQRSessionRejected, false, account.AccountID, "", ErrForbidden, func() map[string]string {
			return map[string]string{"reason": "restricted_role"}
		})
		return ErrForbidden
	}

	if !approve {
		if err := e.qrSessions.Reject(ctx, sessionID); err != nil {
			return e.mapQRError(err)
		}
		e.metricInc(MetricQRSessionRejected)
		e.emitAudit(ctx, auditEventQRSessionRejected, true, account.AccountID, "", nil, nil)
		return nil
	}

	pair, err := e.issueTokenPair(ctx, account)
	if err != nil {
		return err
	}
	if err := e.qrSessions.Approve(ctx, sessionID, account.AccountID, pair.AccessToken, pair.RefreshToken); err != nil {
		return e.mapQRError(err)
	}

	e.metricInc(MetricQRSessionApproved)
	e.emitAudit(ctx, auditEventQRSessionApproved, true, account.AccountID, "", nil, nil)
	return nil
}

func (e *Engine) mapQRError(err error) error {
	switch {
	case errors.Is(err, qr.ErrSessionNotFound):
		return ErrQRSessionExpired
	case errors.Is(err, qr.ErrStateConflict):
		return ErrConflict
	case errors.Is(err, qr.ErrBackend):
		e.metricInc(MetricStoreDegraded)
		return ErrStoreUnavailable
	default:
		return err
	}
}

// QRLoginStatus describes the qrloginstatus operation and its observable behavior.
//
// QRLoginStatus may return an error when input validation, dependency calls, or security checks fail.
// QRLoginStatus does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) QRLoginStatus(ctx context.Context, sessionID string) (*QRLoginStatus, error) {
	if e == nil || e.qrSessions == nil {
		return nil, ErrEngineNotReady
	}

	session, err := e.qrSessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, qr.ErrSessionNotFound) {
			// Expiry and consumption both surface as an absent session.
			return &QRLoginStatus{State: QRStateExpired}, nil
		}
		return nil, e.mapQRError(err)
	}

	switch session.State {
	case qr.StatePending:
		return &QRLoginStatus{State: QRStatePending}, nil
	case qr.StateRejected:
		return &QRLoginStatus{State: QRStateRejected}, nil
	case qr.StateApproved:
		// Tokens leave the store exactly once; a concurrent poller that
		// loses the consume race observes EXPIRED.
		consumed, cerr := e.qrSessions.Consume(ctx, sessionID)
		if cerr != nil {
			if errors.Is(cerr, qr.ErrSessionNotFound) {
				return &QRLoginStatus{State: QRStateExpired}, nil
			}
			return nil, e.mapQRError(cerr)
		}
		e.metricInc(MetricQRSessionConsumed)
		e.emitAudit(ctx, auditEventQRSessionConsumed, true, consumed.AccountID, "", nil, nil)
		return &QRLoginStatus{
			State:        QRStateApproved,
			AccountID:    consumed.AccountID,
			AccessToken:  consumed.AccessToken,
			RefreshToken: consumed.RefreshToken,
		}, nil
	default:
		return &QRLoginStatus{State: QRStateExpired}, nil
	}
}
