package qr

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ridgelock-io/authcore/internal/kv"
)

const sessionRecordVersion1 = 1

// Session states as persisted. EXPIRED is never stored; it is inferred from
// absence.
const (
	StatePending uint8 = iota
	StateApproved
	StateRejected
)

var (
	ErrSessionNotFound = errors.New("qr session not found")
	ErrStateConflict   = errors.New("qr session state conflict")
	ErrBackend         = errors.New("qr session backend unavailable")
)

// Session is the transient record behind one cross-device login attempt.
type Session struct {
	State        uint8
	ExpiresAt    int64
	AccountID    string
	AccessToken  string
	RefreshToken string
}

func (s *Session) remainingTTL() time.Duration {
	return time.Until(time.Unix(s.ExpiresAt, 0))
}

// SessionStore persists QR login sessions.
type SessionStore struct {
	store  kv.Store
	prefix string
}

func NewSessionStore(store kv.Store, prefix string) *SessionStore {
	if prefix == "" {
		prefix = "qrl"
	}
	return &SessionStore{
		store:  store,
		prefix: prefix,
	}
}

func (s *SessionStore) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

// Create stores a fresh PENDING session with the given lifetime.
func (s *SessionStore) Create(ctx context.Context, sessionID string, ttl time.Duration) error {
	record := &Session{
		State:     StatePending,
		ExpiresAt: time.Now().Add(ttl).Unix(),
	}

	encoded, err := encodeSession(record)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, s.key(sessionID), encoded, ttl); err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return nil
}

// Get returns the session, or ErrSessionNotFound when it never existed,
// expired, or was already consumed.
func (s *SessionStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	data, err := s.store.Get(ctx, s.key(sessionID))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}

	record, err := decodeSession(data)
	if err != nil {
		return nil, err
	}
	if time.Now().Unix() > record.ExpiresAt {
		_ = s.store.Delete(ctx, s.key(sessionID))
		return nil, ErrSessionNotFound
	}
	return record, nil
}

// Approve moves a PENDING session to APPROVED and attaches the issued
// tokens. Any other starting state is a conflict: the session is burned to
// REJECTED so a replayed confirm cannot leave an earlier approval collectable.
func (s *SessionStore) Approve(ctx context.Context, sessionID, accountID, accessToken, refreshToken string) error {
	record, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if record.State != StatePending {
		return s.burn(ctx, sessionID, record)
	}

	record.State = StateApproved
	record.AccountID = accountID
	record.AccessToken = accessToken
	record.RefreshToken = refreshToken

	return s.put(ctx, sessionID, record)
}

// Reject moves a PENDING session to REJECTED. Rejections carry no tokens
// and stay readable until the session's original expiry. A non-PENDING
// session is burned the same way Approve burns one.
func (s *SessionStore) Reject(ctx context.Context, sessionID string) error {
	record, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if record.State != StatePending {
		return s.burn(ctx, sessionID, record)
	}

	record.State = StateRejected
	return s.put(ctx, sessionID, record)
}

// burn overwrites a session hit by a conflicting transition with a bare
// REJECTED record, dropping any tokens it carried, and reports the conflict.
func (s *SessionStore) burn(ctx context.Context, sessionID string, record *Session) error {
	record.State = StateRejected
	record.AccountID = ""
	record.AccessToken = ""
	record.RefreshToken = ""

	if err := s.put(ctx, sessionID, record); err != nil {
		return err
	}
	return ErrStateConflict
}

// Consume atomically removes the session and returns it. At most one caller
// receives the record; concurrent racers get ErrSessionNotFound.
func (s *SessionStore) Consume(ctx context.Context, sessionID string) (*Session, error) {
	data, err := s.store.GetDel(ctx, s.key(sessionID))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}

	record, err := decodeSession(data)
	if err != nil {
		return nil, err
	}
	if time.Now().Unix() > record.ExpiresAt {
		return nil, ErrSessionNotFound
	}
	return record, nil
}

func (s *SessionStore) put(ctx context.Context, sessionID string, record *Session) error {
	ttl := record.remainingTTL()
	if ttl <= 0 {
		_ = s.store.Delete(ctx, s.key(sessionID))
		return ErrSessionNotFound
	}

	encoded, err := encodeSession(record)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, s.key(sessionID), encoded, ttl); err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return nil
}

func encodeSession(record *Session) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(sessionRecordVersion1)
	buf.WriteByte(record.State)

	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	for _, field := range []string{record.AccountID, record.AccessToken, record.RefreshToken} {
		if len(field) > 65535 {
			return nil, errors.New("qr session field length exceeded")
		}
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(field))); err != nil {
			return nil, err
		}
		buf.WriteString(field)
	}

	return buf.Bytes(), nil
}

func decodeSession(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != sessionRecordVersion1 {
		return nil, errors.New("invalid qr session version")
	}

	record := &Session{}
	if record.State, err = reader.ReadByte(); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	fields := []*string{&record.AccountID, &record.AccessToken, &record.RefreshToken}
	for _, field := range fields {
		var length uint16
		if err := binary.Read(reader, binary.BigEndian, &length); err != nil {
			return nil, err
		}
		raw := make([]byte, length)
		if _, err := io.ReadFull(reader, raw); err != nil {
			return nil, err
		}
		*field = string(raw)
	}

	return record, nil
}
