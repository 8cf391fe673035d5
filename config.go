package authcore

import (
	"errors"
	"strings"
	"time"
)

// Config defines a public type used by authcore APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Token         TokenConfig
	Password      PasswordConfig
	OTP           OTPConfig
	MFA           MFAConfig
	TrustedDevice TrustedDeviceConfig
	QRLogin       QRLoginConfig
	RateLimit     RateLimitConfig
	AttemptLog    AttemptLogConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
	Store         StoreConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig defines a public type used by authcore APIs.
//
// TokenConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TokenConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig defines a public type used by authcore APIs.
//
// PasswordConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordConfig struct {
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	UpgradeOnLogin bool

	// LegacyMigrationMode accepts stored plaintext credentials once and
	// replaces them with Argon2id hashes on first successful login. Off by
	// default; enable only for the migration window.
	LegacyMigrationMode bool
}

/*
====================================
OTP CONFIG
====================================
*/

// OTPConfig defines a public type used by authcore APIs.
//
// OTPConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type OTPConfig struct {
	Digits int
	TTL    time.Duration
	SMSTTL time.Duration
}

/*
====================================
MFA CONFIG
====================================
*/

// MFAConfig defines a public type used by authcore APIs.
//
// MFAConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MFAConfig struct {
	Issuer           string
	Digits           int
	Period           int
	Algorithm        string
	Skew             int
	BackupCodeCount  int
	BackupCodeLength int
	LockoutThreshold int
	LockoutWindow    time.Duration
}

/*
====================================
TRUSTED DEVICE CONFIG
====================================
*/

// TrustedDeviceConfig defines a public type used by authcore APIs.
//
// TrustedDeviceConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TrustedDeviceConfig struct {
	// TTL is the sliding trust window; every successful authentication on
	// the device pushes expiry forward by this amount.
	TTL time.Duration
}

/*
====================================
QR LOGIN CONFIG
====================================
*/

// QRLoginConfig defines a public type used by authcore APIs.
//
// QRLoginConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type QRLoginConfig struct {
	TTL             time.Duration
	BaseURL         string
	ImageSize       int
	RestrictedRoles []string
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// ActionLimit is one action's attempt budget inside a fixed window.
type ActionLimit struct {
	MaxAttempts int
	Window      time.Duration
}

// RateLimitConfig defines a public type used by authcore APIs.
//
// RateLimitConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RateLimitConfig struct {
	EnableIPThrottle bool
	Login            ActionLimit
	OTPRequest       ActionLimit
	OTPVerify        ActionLimit
}

/*
====================================
ATTEMPT LOG CONFIG
====================================
*/

// AttemptLogConfig defines a public type used by authcore APIs.
//
// AttemptLogConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AttemptLogConfig struct {
	Retention     time.Duration
	SweepInterval time.Duration

	SuspiciousIPThreshold int64
	SuspiciousIPWindow    time.Duration
}

/*
====================================
AUDIT / METRICS / STORE CONFIG
====================================
*/

// AuditConfig defines a public type used by authcore APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by authcore APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// StoreConfig defines a public type used by authcore APIs.
//
// StoreConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type StoreConfig struct {
	Prefix              string
	OpTimeout           time.Duration
	MemorySweepInterval time.Duration
}

/*
====================================
DEFAULT CONFIG
====================================
*/

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: "ed25519",
			Leeway:        30 * time.Second,
		},
		Password: PasswordConfig{
			Memory:              65536,
			Time:                3,
			Parallelism:         2,
			SaltLength:          16,
			KeyLength:           32,
			UpgradeOnLogin:      true,
			LegacyMigrationMode: false,
		},
		OTP: OTPConfig{
			Digits: 6,
			TTL:    5 * time.Minute,
			SMSTTL: 2 * time.Minute,
		},
		MFA: MFAConfig{
			Issuer:           "",
			Digits:           6,
			Period:           30,
			Algorithm:        "SHA1",
			Skew:             1,
			BackupCodeCount:  10,
			BackupCodeLength: 8,
			LockoutThreshold: 5,
			LockoutWindow:    15 * time.Minute,
		},
		TrustedDevice: TrustedDeviceConfig{
			TTL: 30 * 24 * time.Hour,
		},
		QRLogin: QRLoginConfig{
			TTL:             5 * time.Minute,
			BaseURL:         "",
			ImageSize:       256,
			RestrictedRoles: []string{"admin"},
		},
		RateLimit: RateLimitConfig{
			EnableIPThrottle: true,
			Login:            ActionLimit{MaxAttempts: 5, Window: 5 * time.Minute},
			OTPRequest:       ActionLimit{MaxAttempts: 3, Window: 5 * time.Minute},
			OTPVerify:        ActionLimit{MaxAttempts: 5, Window: 10 * time.Minute},
		},
		AttemptLog: AttemptLogConfig{
			Retention:             90 * 24 * time.Hour,
			SweepInterval:         12 * time.Hour,
			SuspiciousIPThreshold: 10,
			SuspiciousIPWindow:    24 * time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Store: StoreConfig{
			Prefix:              "ac",
			OpTimeout:           2 * time.Second,
			MemorySweepInterval: time.Minute,
		},
	}
}

// DefaultConfig returns the baseline configuration used by [New]. Callers
// mutate the copy and pass it back through [Builder.WithConfig].
func DefaultConfig() Config {
	return cloneConfig(defaultConfig())
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.PrivateKey = cloneBytes(cfg.Token.PrivateKey)
	out.Token.PublicKey = cloneBytes(cfg.Token.PublicKey)
	out.QRLogin.RestrictedRoles = append([]string(nil), cfg.QRLogin.RestrictedRoles...)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// Token
	if c.Token.AccessTTL <= 0 {
		return errors.New("Token AccessTTL must be > 0")
	}
	if c.Token.RefreshTTL <= 0 {
		return errors.New("Token RefreshTTL must be > 0")
	}
	if c.Token.RefreshTTL <= c.Token.AccessTTL {
		return errors.New("Token RefreshTTL must exceed AccessTTL")
	}
	if c.Token.SigningMethod != "ed25519" && c.Token.SigningMethod != "hs256" {
		return errors.New("unsupported Token signing method")
	}
	if c.Token.SigningMethod == "ed25519" && len(c.Token.PrivateKey) == 0 {
		return errors.New("ed25519 requires PrivateKey")
	}
	if c.Token.SigningMethod == "ed25519" && len(c.Token.PublicKey) == 0 {
		return errors.New("ed25519 requires PublicKey")
	}
	if c.Token.SigningMethod == "hs256" && len(c.Token.PrivateKey) == 0 {
		return errors.New("hs256 requires PrivateKey")
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > 2*time.Minute {
		return errors.New("Token Leeway must be between 0 and 2m")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}

	// OTP
	if c.OTP.Digits < 6 || c.OTP.Digits > 10 {
		return errors.New("OTP Digits must be between 6 and 10")
	}
	if c.OTP.TTL <= 0 || c.OTP.TTL > 15*time.Minute {
		return errors.New("OTP TTL must be between 0 and 15m")
	}
	if c.OTP.SMSTTL <= 0 || c.OTP.SMSTTL > c.OTP.TTL {
		return errors.New("OTP SMSTTL must be > 0 and <= TTL")
	}

	// MFA
	if c.MFA.Digits != 6 && c.MFA.Digits != 8 {
		return errors.New("MFA Digits must be 6 or 8")
	}
	if c.MFA.Period < 15 {
		return errors.New("MFA Period must be >= 15 seconds")
	}
	if c.MFA.Skew < 0 || c.MFA.Skew > 2 {
		return errors.New("MFA Skew must be between 0 and 2")
	}
	switch strings.ToUpper(c.MFA.Algorithm) {
	case "", "SHA1", "SHA256", "SHA512":
		// valid (empty treated as SHA1)
	default:
		return errors.New("MFA Algorithm must be SHA1, SHA256, or SHA512")
	}
	if c.MFA.BackupCodeCount <= 0 {
		return errors.New("MFA BackupCodeCount must be > 0")
	}
	if c.MFA.BackupCodeLength < 8 {
		return errors.New("MFA BackupCodeLength must be >= 8")
	}
	if c.MFA.LockoutThreshold <= 0 {
		return errors.New("MFA LockoutThreshold must be > 0")
	}
	if c.MFA.LockoutWindow <= 0 {
		return errors.New("MFA LockoutWindow must be > 0")
	}

	// Trusted devices
	if c.TrustedDevice.TTL <= 0 {
		return errors.New("TrustedDevice TTL must be > 0")
	}

	// QR login
	if c.QRLogin.TTL <= 0 || c.QRLogin.TTL > 15*time.Minute {
		return errors.New("QRLogin TTL must be between 0 and 15m")
	}
	if c.QRLogin.ImageSize < 64 || c.QRLogin.ImageSize > 1024 {
		return errors.New("QRLogin ImageSize must be between 64 and 1024")
	}

	// Rate limiting
	for _, limit := range []struct {
		name  string
		limit ActionLimit
	}{
		{"Login", c.RateLimit.Login},
		{"OTPRequest", c.RateLimit.OTPRequest},
		{"OTPVerify", c.RateLimit.OTPVerify},
	} {
		if limit.limit.MaxAttempts <= 0 {
			return errors.New("RateLimit " + limit.name + " MaxAttempts must be > 0")
		}
		if limit.limit.Window <= 0 {
			return errors.New("RateLimit " + limit.name + " Window must be > 0")
		}
	}

	// Attempt log
	if c.AttemptLog.Retention <= 0 {
		return errors.New("AttemptLog Retention must be > 0")
	}
	if c.AttemptLog.SweepInterval < 0 {
		return errors.New("AttemptLog SweepInterval must be >= 0")
	}
	if c.AttemptLog.SuspiciousIPThreshold <= 0 {
		return errors.New("AttemptLog SuspiciousIPThreshold must be > 0")
	}
	if c.AttemptLog.SuspiciousIPWindow <= 0 {
		return errors.New("AttemptLog SuspiciousIPWindow must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	// Store
	if c.Store.Prefix == "" {
		return errors.New("Store Prefix must not be empty")
	}
	if c.Store.OpTimeout < 0 {
		return errors.New("Store OpTimeout must be >= 0")
	}

	return nil
}
