package authcore

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/ridgelock-io/authcore/internal/audit"
)

// AccountRecord is the full account record returned by [AccountProvider].
// It carries the credential hash, contact channels, role, and MFA enrollment
// state. The engine never persists AccountRecord itself; all durable writes
// go back through the provider.
type AccountRecord struct {
	AccountID    string
	Identifier   string
	Phone        string
	PasswordHash string
	Role         string
	MFAEnabled   bool
	MFASecret    string
}

// TrustedDeviceRecord is one remembered device for an account. A device is
// identified by its fingerprint; DeviceID is the stable handle used for
// removal. ExpiresAt implements the sliding trust window: every successful
// authentication on the device pushes it forward.
type TrustedDeviceRecord struct {
	DeviceID    string
	AccountID   string
	Fingerprint string
	Trusted     bool
	IP          string
	UserAgent   string
	Hostname    string
	LastLoginAt time.Time
	ExpiresAt   time.Time
}

// BackupCodeRecord stores the salted hash of a single backup code.
// The plaintext is never persisted.
type BackupCodeRecord struct {
	CodeID    string
	AccountID string
	CodeHash  string
	Used      bool
	CreatedAt time.Time
	UsedAt    time.Time
}

// MFAAttemptRecord is one row of the append-only second-factor attempt log.
// Rows are never updated after insertion; retention is enforced by the
// engine's purge sweeper.
type MFAAttemptRecord struct {
	AttemptID string
	AccountID string
	IP        string
	UserAgent string
	DeviceID  string
	Method    string
	Success   bool
	Reason    string
	CreatedAt time.Time
}

// AccountProvider is the primary interface that callers must implement to
// integrate authcore with their account database. It covers credential
// lookup, MFA secret management, backup code storage, the trusted-device
// registry, and the second-factor attempt log.
type AccountProvider interface {
	GetAccountByIdentifier(ctx context.Context, identifier string) (AccountRecord, error)
	GetAccountByID(ctx context.Context, accountID string) (AccountRecord, error)
	UpdatePasswordHash(ctx context.Context, accountID, newHash string) error
	SetMFASecret(ctx context.Context, accountID, secretBase32 string, enabled bool) error

	// GetBackupCodes returns only codes that have not been consumed yet.
	GetBackupCodes(ctx context.Context, accountID string) ([]BackupCodeRecord, error)
	ReplaceBackupCodes(ctx context.Context, accountID string, codes []BackupCodeRecord) error
	MarkBackupCodeUsed(ctx context.Context, codeID string, usedAt time.Time) error

	GetTrustedDevice(ctx context.Context, accountID, fingerprint string) (TrustedDeviceRecord, error)
	GetTrustedDeviceByID(ctx context.Context, deviceID string) (TrustedDeviceRecord, error)
	UpsertTrustedDevice(ctx context.Context, device TrustedDeviceRecord) error
	ListTrustedDevices(ctx context.Context, accountID string) ([]TrustedDeviceRecord, error)
	DeleteTrustedDevice(ctx context.Context, accountID, deviceID string) error
	DeleteTrustedDevices(ctx context.Context, accountID string) error

	RecordMFAAttempt(ctx context.Context, attempt MFAAttemptRecord) error
	CountMFAAttempts(ctx context.Context, accountID string, success bool, since time.Time) (int64, error)
	// ListFailureIPsSince returns distinct source IPs with their failed
	// attempt counts across all accounts since the given time.
	ListFailureIPsSince(ctx context.Context, since time.Time) (map[string]int64, error)
	DeleteMFAAttemptsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Deliverer sends one-time codes and security notifications out of band.
// Implementations wrap an email or SMS gateway. Delivery failures are
// reported to the caller but never abort an authentication flow.
type Deliverer interface {
	SendOTP(ctx context.Context, account AccountRecord, channel OTPChannel, code string) error
	SendAlert(ctx context.Context, account AccountRecord, subject, body string) error
}

// OTPChannel selects the delivery transport for a one-time code.
type OTPChannel string

const (
	// ChannelEmail is an exported constant or variable used by the authentication engine.
	ChannelEmail OTPChannel = "email"
	// ChannelSMS is an exported constant or variable used by the authentication engine.
	ChannelSMS OTPChannel = "sms"
)

// OTPIssue reports the outcome of issuing a one-time code: an opaque handle
// for correlating the request in logs and support tooling, the channel the
// code was sent on, and whether the issuance took a degraded path (fallback
// storage or failed delivery). The code itself is never returned.
type OTPIssue struct {
	Handle   string
	Channel  OTPChannel
	Degraded bool
}

// TokenPair holds an access token and the refresh token issued alongside it.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// LoginResult is returned by [Engine.Login], [Engine.VerifyOTPLogin], and
// [Engine.VerifyMFALogin]. It includes tokens when authentication completed,
// or step-up metadata when a second factor is still required. Degraded is
// set when the flow completed without transient-store backing.
type LoginResult struct {
	AccountID    string
	AccessToken  string
	RefreshToken string

	StepUpRequired bool
	StepUpMethod   string
	OTPChannel     OTPChannel

	Degraded bool
}

// StepUpMethodOTP and StepUpMethodTOTP identify which second factor the
// caller must complete after a password-only login.
const (
	// StepUpMethodOTP is an exported constant or variable used by the authentication engine.
	StepUpMethodOTP = "otp"
	// StepUpMethodTOTP is an exported constant or variable used by the authentication engine.
	StepUpMethodTOTP = "totp"
)

// AuthResult is returned by [Engine.ValidateAccess]. It contains the
// authenticated account's ID and role decoded from the access token.
type AuthResult struct {
	AccountID string
	Role      string
}

// MFAEnrollment is returned by [Engine.EnrollMFA]. It carries the raw
// base32 secret, the otpauth:// provisioning URI, a PNG rendering of that
// URI, and the one-time plaintext backup codes. None of these values are
// retrievable again.
type MFAEnrollment struct {
	SecretBase32    string
	ProvisioningURI string
	QRImagePNG      []byte
	BackupCodes     []string
}

// QRLoginSession is returned by [Engine.GenerateQRLogin]. Payload is the
// string encoded into the QR image; SessionID is the handle the approving
// device confirms and the initiating device polls.
type QRLoginSession struct {
	SessionID  string
	Payload    string
	QRImagePNG []byte
	ExpiresAt  time.Time
}

// QRLoginState is the externally visible state of a QR login session.
type QRLoginState string

const (
	// QRStatePending is an exported constant or variable used by the authentication engine.
	QRStatePending QRLoginState = "PENDING"
	// QRStateApproved is an exported constant or variable used by the authentication engine.
	QRStateApproved QRLoginState = "APPROVED"
	// QRStateRejected is an exported constant or variable used by the authentication engine.
	QRStateRejected QRLoginState = "REJECTED"
	// QRStateExpired is an exported constant or variable used by the authentication engine.
	QRStateExpired QRLoginState = "EXPIRED"
)

// QRLoginStatus is returned by [Engine.QRLoginStatus]. Tokens are populated
// exactly once, on the first poll that observes the APPROVED state; the
// session is consumed by that read.
type QRLoginStatus struct {
	State        QRLoginState
	AccountID    string
	AccessToken  string
	RefreshToken string
}

// SuspiciousIPReport is one entry of the advisory failed-attempt scan
// returned by [Engine.SuspiciousIPs].
type SuspiciousIPReport struct {
	IP       string
	Failures int64
	Since    time.Time
}

// SecurityReport is a read-only snapshot of the engine's security posture,
// returned by [Engine.SecurityReport].
type SecurityReport struct {
	SigningAlgorithm     string
	AccessTTL            time.Duration
	RefreshTTL           time.Duration
	Argon2               PasswordConfigReport
	LegacyMigrationMode  bool
	OTPTTL               time.Duration
	OTPFallbackActive    bool
	MFALockoutThreshold  int
	BackupCodeCount      int
	DeviceTrustTTL       time.Duration
	QRLoginTTL           time.Duration
	RateLimitingActive   bool
	AttemptLogRetention  time.Duration
	SuspiciousIPMinFails int64
}

// PasswordConfigReport contains the Argon2 parameters active in the engine.
type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
