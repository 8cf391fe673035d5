package authcore

import (
	"context"
	"testing"
)

func TestRefreshRotation(t *testing.T) {
	f := buildTestEngine(t, testEngineConfig())
	account := f.seedAccount(t)

	pair, err := f.engine.issueTokenPair(context.Background(), account)
	if err != nil {
		t.Fatalf("issueTokenPair failed: %v", err)
	}

	rotated, err := f.engine.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if rotated.RefreshToken == pair.RefreshToken {
		t.Fatal("rotation must issue a new refresh token")
	}

	auth, err := f.engine.ValidateAccess(context.Background(), rotated.AccessToken)
	if err != nil || auth.AccountID != account.AccountID {
		t.Fatalf("rotated access token did not validate: %v", err)
	}
}

func TestRefreshReplayRejected(t *testing.T) {
	f := buildTestEngine(t, testEngineConfig())
	account := f.seedAccount(t)

	pair, err := f.engine.issueTokenPair(context.Background(), account)
	if err != nil {
		t.Fatalf("issueTokenPair failed: %v", err)
	}

	if _, err := f.engine.Refresh(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("first rotation failed: %v", err)
	}
	// The mirror now holds the rotated token's digest; the old token is dead
	// despite a valid signature.
	if _, err := f.engine.Refresh(context.Background(), pair.RefreshToken); err != ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized on replay, got %v", err)
	}
}

func TestNewLoginSupersedesOldRefreshToken(t *testing.T) {
	f := buildTestEngine(t, testEngineConfig())
	account := f.seedAccount(t)

	first, err := f.engine.issueTokenPair(context.Background(), account)
	if err != nil {
		t.Fatalf("first issueTokenPair failed: %v", err)
	}
	second, err := f.engine.issueTokenPair(context.Background(), account)
	if err != nil {
		t.Fatalf("second issueTokenPair failed: %v", err)
	}

	// One live refresh token per account: the newer login displaced the older
	// token's mirror entry.
	if _, err := f.engine.Refresh(context.Background(), first.RefreshToken); err != ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized for superseded token, got %v", err)
	}
	if _, err := f.engine.Refresh(context.Background(), second.RefreshToken); err != nil {
		t.Fatalf("current token must still rotate: %v", err)
	}
}

func TestRevokeRefreshTokens(t *testing.T) {
	f := buildTestEngine(t, testEngineConfig())
	account := f.seedAccount(t)

	pair, err := f.engine.issueTokenPair(context.Background(), account)
	if err != nil {
		t.Fatalf("issueTokenPair failed: %v", err)
	}

	if err := f.engine.RevokeRefreshTokens(context.Background(), account.AccountID); err != nil {
		t.Fatalf("RevokeRefreshTokens failed: %v", err)
	}
	if _, err := f.engine.Refresh(context.Background(), pair.RefreshToken); err != ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized after revocation, got %v", err)
	}
}

func TestRefreshGarbageToken(t *testing.T) {
	f := buildTestEngine(t, testEngineConfig())
	f.seedAccount(t)

	if _, err := f.engine.Refresh(context.Background(), "not-a-jwt"); err != ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	f := buildTestEngine(t, testEngineConfig())
	account := f.seedAccount(t)

	pair, err := f.engine.issueTokenPair(context.Background(), account)
	if err != nil {
		t.Fatalf("issueTokenPair failed: %v", err)
	}

	if _, err := f.engine.Refresh(context.Background(), pair.AccessToken); err != ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized for access token, got %v", err)
	}
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	f := buildTestEngine(t, testEngineConfig())
	account := f.seedAccount(t)

	pair, err := f.engine.issueTokenPair(context.Background(), account)
	if err != nil {
		t.Fatalf("issueTokenPair failed: %v", err)
	}

	if err := f.engine.Logout(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if _, err := f.engine.Refresh(context.Background(), pair.RefreshToken); err != ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized after logout, got %v", err)
	}

	// Logout is idempotent.
	if err := f.engine.Logout(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("repeated Logout failed: %v", err)
	}
}

func TestRefreshAcceptedOnSignatureDuringOutage(t *testing.T) {
	f := buildTestEngine(t, testEngineConfig(), func(b *Builder) {
		b.WithStore(outageStore{}).WithMetricsEnabled(true)
	})
	account := f.seedAccount(t)

	pair, err := f.engine.issueTokenPair(context.Background(), account)
	if err != nil {
		t.Fatalf("issueTokenPair failed during outage: %v", err)
	}

	// No mirror exists, but the signature alone carries the decision while
	// the store is down.
	rotated, err := f.engine.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("expected jwt-only refresh during outage, got %v", err)
	}
	if rotated.AccessToken == "" {
		t.Fatal("expected tokens from degraded refresh")
	}

	snap := f.engine.MetricsSnapshot()
	if snap.Counters[MetricStoreDegraded] == 0 {
		t.Fatal("expected degraded operations to be counted")
	}
}
