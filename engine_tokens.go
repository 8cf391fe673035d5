package authcore

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"errors"

	"go.uber.org/zap"

	"github.com/ridgelock-io/authcore/internal"
	"github.com/ridgelock-io/authcore/internal/kv"
)

// The refresh mirror is keyed per identity: rt:<account id> holds the digest
// of that account's one live refresh token. Issuing a new pair overwrites the
// mirror, so a fresh login supersedes any earlier refresh token, and deleting
// the key revokes the account's refresh capability in one operation.
func (e *Engine) refreshKey(accountID string) string {
	return e.storeKey("rt", accountID)
}

func refreshDigest(refreshToken string) []byte {
	digest := internal.HashToken(refreshToken)
	return []byte(hex.EncodeToString(digest[:]))
}

// issueTokenPair creates an access/refresh pair and mirrors the refresh
// token's digest under the account's mirror key so it can be revoked before
// its JWT expiry. A store outage degrades to JWT-only tokens rather than
// failing the login.
func (e *Engine) issueTokenPair(ctx context.Context, account AccountRecord) (TokenPair, error) {
	access, err := e.tokens.IssueAccess(account.AccountID, account.Role)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := e.tokens.IssueRefresh(account.AccountID, account.Role)
	if err != nil {
		return TokenPair{}, err
	}

	err = e.store.Set(ctx, e.refreshKey(account.AccountID), refreshDigest(refresh), e.config.Token.RefreshTTL)
	if err != nil {
		e.metricInc(MetricStoreDegraded)
		e.log.Warn("refresh token mirror write failed, token is jwt-only", zap.Error(err))
	}

	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Refresh describes the refresh operation and its observable behavior.
//
// Refresh may return an error when input validation, dependency calls, or security checks fail.
// Refresh does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if e == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.tokens.ParseRefresh(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", ErrUnauthorized, func() map[string]string {
			return map[string]string{"reason": "parse_failed"}
		})
		return nil, ErrUnauthorized
	}

	// The presented token must match the account's live mirror entry: a
	// mismatch means it was rotated away, replayed, or superseded by a newer
	// login. When the store is down the signature alone carries the decision.
	stored, err := e.store.Get(ctx, e.refreshKey(claims.AccountID))
	switch {
	case err == nil:
		if subtle.ConstantTimeCompare(stored, refreshDigest(refreshToken)) != 1 {
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, claims.AccountID, "", ErrUnauthorized, func() map[string]string {
				return map[string]string{"reason": "mirror_mismatch"}
			})
			return nil, ErrUnauthorized
		}
	case errors.Is(err, kv.ErrNotFound):
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, claims.AccountID, "", ErrUnauthorized, func() map[string]string {
			return map[string]string{"reason": "mirror_missing"}
		})
		return nil, ErrUnauthorized
	case errors.Is(err, kv.ErrUnavailable):
		e.metricInc(MetricStoreDegraded)
		e.log.Warn("refresh mirror unavailable, accepting token on signature alone", zap.Error(err))
	default:
		e.metricInc(MetricRefreshFailure)
		return nil, err
	}

	account, err := e.provider.GetAccountByID(ctx, claims.AccountID)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, claims.AccountID, "", ErrUnauthorized, func() map[string]string {
			return map[string]string{"reason": "account_not_found"}
		})
		return nil, ErrUnauthorized
	}

	// Rotation: issuing the new pair overwrites the mirror, so the presented
	// token cannot be replayed.
	pair, err := e.issueTokenPair(ctx, account)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, account.AccountID, "", nil, nil)

	return &pair, nil
}

// Logout describes the logout operation and its observable behavior.
//
// Logout may return an error when input validation, dependency calls, or security checks fail.
// Logout does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if e == nil || e.tokens == nil {
		return ErrEngineNotReady
	}

	claims, err := e.tokens.ParseRefresh(refreshToken)
	if err != nil {
		e.emitAudit(ctx, auditEventLogout, false, "", "", ErrUnauthorized, func() map[string]string {
			return map[string]string{"reason": "parse_failed"}
		})
		return ErrUnauthorized
	}

	// Logout is idempotent: a mirror that is already gone is still a revoked
	// token.
	if err := e.store.Delete(ctx, e.refreshKey(claims.AccountID)); err != nil {
		e.metricInc(MetricStoreDegraded)
		e.log.Warn("refresh mirror delete failed during logout", zap.Error(err))
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, claims.AccountID, "", nil, nil)
	return nil
}

// RevokeRefreshTokens drops the account's refresh mirror so no outstanding
// refresh token can be exchanged. Intended for provider-side events such as
// password resets or administrative lockouts.
func (e *Engine) RevokeRefreshTokens(ctx context.Context, accountID string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}

	if err := e.store.Delete(ctx, e.refreshKey(accountID)); err != nil {
		e.metricInc(MetricStoreDegraded)
		return ErrStoreUnavailable
	}

	e.emitAudit(ctx, auditEventLogout, true, accountID, "", nil, func() map[string]string {
		return map[string]string{"reason": "revoke_all"}
	})
	return nil
}
