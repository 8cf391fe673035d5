package qr

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ridgelock-io/authcore/internal/kv"
)

func newTestStore(t *testing.T) *SessionStore {
	t.Helper()
	return NewSessionStore(kv.NewMemoryStore(0), "")
}

func TestSessionEncodeDecodeRoundTrip(t *testing.T) {
	record := &Session{
		State:        StateApproved,
		ExpiresAt:    time.Now().Add(5 * time.Minute).Unix(),
		AccountID:    "acct-42",
		AccessToken:  "header.payload.signature",
		RefreshToken: "another.jwt.value",
	}

	encoded, err := encodeSession(record)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := decodeSession(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if *decoded != *record {
		t.Fatalf("round trip mismatch: got %+v, want %+v", decoded, record)
	}
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	record := &Session{State: StatePending, ExpiresAt: time.Now().Unix()}
	encoded, err := encodeSession(record)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	encoded[0] = 99
	if _, err := decodeSession(encoded); err == nil {
		t.Fatal("expected version error")
	}
}

func TestCreateAndGetPending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Create(ctx, "sid", 5*time.Minute); err != nil {
		t.Fatalf("create: %v", err)
	}

	record, err := s.Get(ctx, "sid")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record.State != StatePending {
		t.Fatalf("state = %d, want pending", record.State)
	}
}

func TestApproveAttachesTokens(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Create(ctx, "sid", 5*time.Minute); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Approve(ctx, "sid", "acct-1", "access", "refresh"); err != nil {
		t.Fatalf("approve: %v", err)
	}

	record, err := s.Get(ctx, "sid")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record.State != StateApproved || record.AccountID != "acct-1" {
		t.Fatalf("unexpected record %+v", record)
	}
	if record.AccessToken != "access" || record.RefreshToken != "refresh" {
		t.Fatalf("tokens not attached: %+v", record)
	}
}

func TestFirstTransitionWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Create(ctx, "sid", 5*time.Minute); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Reject(ctx, "sid"); err != nil {
		t.Fatalf("reject: %v", err)
	}

	if err := s.Approve(ctx, "sid", "acct-1", "a", "r"); !errors.Is(err, ErrStateConflict) {
		t.Fatalf("expected ErrStateConflict, got %v", err)
	}

	record, err := s.Get(ctx, "sid")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record.State != StateRejected || record.AccessToken != "" {
		t.Fatalf("conflicting approve must not attach tokens: %+v", record)
	}
}

func TestConflictingTransitionBurnsSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Create(ctx, "sid", 5*time.Minute); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Approve(ctx, "sid", "acct-1", "a", "r"); err != nil {
		t.Fatalf("approve: %v", err)
	}

	// A second transition conflicts and must not leave the approval behind.
	if err := s.Approve(ctx, "sid", "acct-2", "a2", "r2"); !errors.Is(err, ErrStateConflict) {
		t.Fatalf("expected ErrStateConflict, got %v", err)
	}

	record, err := s.Get(ctx, "sid")
	if err != nil {
		t.Fatalf("get after conflict: %v", err)
	}
	if record.State != StateRejected {
		t.Fatalf("expected burned session to read REJECTED, got state %d", record.State)
	}
	if record.AccountID != "" || record.AccessToken != "" || record.RefreshToken != "" {
		t.Fatalf("burned session must carry no tokens: %+v", record)
	}
}

func TestConsumeIsReadOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Create(ctx, "sid", 5*time.Minute); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Approve(ctx, "sid", "acct-1", "a", "r"); err != nil {
		t.Fatalf("approve: %v", err)
	}

	record, err := s.Consume(ctx, "sid")
	if err != nil {
		t.Fatalf("first consume: %v", err)
	}
	if record.AccessToken != "a" {
		t.Fatalf("unexpected record %+v", record)
	}

	if _, err := s.Consume(ctx, "sid"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("second consume should be ErrSessionNotFound, got %v", err)
	}
}

func TestUnknownSessionIsNotFound(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}
