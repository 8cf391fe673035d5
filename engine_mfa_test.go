package authcore

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

func enrollTestAccount(t *testing.T, f *engineFixture) *MFAEnrollment {
	t.Helper()
	enrollment, err := f.engine.EnrollMFA(context.Background(), testAccountID)
	if err != nil {
		t.Fatalf("EnrollMFA failed: %v", err)
	}
	return enrollment
}

func totpCode(t *testing.T, f *engineFixture, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    uint(f.engine.config.MFA.Period),
		Digits:    otp.Digits(f.engine.config.MFA.Digits),
		Algorithm: f.engine.totpAlgorithm(),
	})
	if err != nil {
		t.Fatalf("GenerateCodeCustom failed: %v", err)
	}
	return code
}

func TestEnrollMFA(t *testing.T) {
	f := buildTestEngine(t, testEngineConfig())
	f.seedAccount(t)

	enrollment := enrollTestAccount(t, f)

	if enrollment.SecretBase32 == "" {
		t.Fatal("expected a provisioning secret")
	}
	if !strings.HasPrefix(enrollment.ProvisioningURI, "otpauth://totp/") {
		t.Fatalf("unexpected provisioning uri %q", enrollment.ProvisioningURI)
	}
	if len(enrollment.QRImagePNG) == 0 {
		t.Fatal("expected a qr image")
	}
	if len(enrollment.BackupCodes) != f.engine.config.MFA.BackupCodeCount {
		t.Fatalf("expected %d backup codes, got %d", f.engine.config.MFA.BackupCodeCount, len(enrollment.BackupCodes))
	}
	for _, code := range enrollment.BackupCodes {
		if !strings.Contains(code, "-") {
			t.Fatalf("backup code %q missing display hyphen", code)
		}
		for _, banned := range "0O1I" {
			if strings.ContainsRune(code, banned) {
				t.Fatalf("ambiguous char %q in backup code %q", banned, code)
			}
		}
	}

	account := f.provider.account(testAccountID)
	if !account.MFAEnabled || account.MFASecret != enrollment.SecretBase32 {
		t.Fatal("enrollment did not persist the secret")
	}

	// Plaintext codes never reach storage.
	codes, _ := f.provider.GetBackupCodes(context.Background(), testAccountID)
	for _, record := range codes {
		for _, plain := range enrollment.BackupCodes {
			if record.CodeHash == plain || record.CodeHash == strings.ReplaceAll(plain, "-", "") {
				t.Fatal("backup code stored in plaintext")
			}
		}
	}
}

func TestEnrollMFAAlreadyEnabled(t *testing.T) {
	f := buildTestEngine(t, testEngineConfig())
	f.seedAccount(t)
	enrollTestAccount(t, f)

	if _, err := f.engine.EnrollMFA(context.Background(), testAccountID); err != ErrConflict {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestVerifyMFALoginTOTP(t *testing.T) {
	f := buildTestEngine(t, testEngineConfig())
	f.seedAccount(t)
	enrollment := enrollTestAccount(t, f)

	code := totpCode(t, f, enrollment.SecretBase32, time.Now())
	result, err := f.engine.VerifyMFALogin(context.Background(), testIdentifier, code)
	if err != nil {
		t.Fatalf("VerifyMFALogin failed: %v", err)
	}
	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Fatal("expected token pair after totp verification")
	}
}

func TestVerifyMFALoginAcceptsAdjacentWindow(t *testing.T) {
	f := buildTestEngine(t, testEngineConfig())
	f.seedAccount(t)
	enrollment := enrollTestAccount(t, f)

	period := time.Duration(f.engine.config.MFA.Period) * time.Second
	previous := totpCode(t, f, enrollment.SecretBase32, time.Now().Add(-period))

	if _, err := f.engine.VerifyMFALogin(context.Background(), testIdentifier, previous); err != nil {
		t.Fatalf("expected previous-window code accepted with skew 1, got %v", err)
	}
}

func TestVerifyMFALoginRejectsOutsideSkew(t *testing.T) {
	f := buildTestEngine(t, testEngineConfig())
	f.seedAccount(t)
	enrollment := enrollTestAccount(t, f)

	period := time.Duration(f.engine.config.MFA.Period) * time.Second
	stale := totpCode(t, f, enrollment.SecretBase32, time.Now().Add(-3*period))

	current := totpCode(t, f, enrollment.SecretBase32, time.Now())
	if stale == current {
		t.Skip("stale code collided with current window")
	}

	if _, err := f.engine.VerifyMFALogin(context.Background(), testIdentifier, stale); err != ErrInvalidCredential {
		t.Fatalf("expected ErrInvalidCredential for stale code, got %v", err)
	}
}

func TestVerifyMFALoginBackupCodeSingleUse(t *testing.T) {
	f := buildTestEngine(t, testEngineConfig())
	f.seedAccount(t)
	enrollment := enrollTestAccount(t, f)

	code := enrollment.BackupCodes[0]
	result, err := f.engine.VerifyMFALogin(context.Background(), testIdentifier, code)
	if err != nil {
		t.Fatalf("backup code verification failed: %v", err)
	}
	if result.AccessToken == "" {
		t.Fatal("expected tokens from backup code login")
	}

	if _, err := f.engine.VerifyMFALogin(context.Background(), testIdentifier, code); err != ErrInvalidCredential {
		t.Fatalf("expected ErrInvalidCredential on reused backup code, got %v", err)
	}

	// Case and separator variations of another code still match.
	variant := strings.ToLower(strings.ReplaceAll(enrollment.BackupCodes[1], "-", " "))
	if _, err := f.engine.VerifyMFALogin(context.Background(), testIdentifier, variant); err != nil {
		t.Fatalf("canonicalized backup code rejected: %v", err)
	}
}

func TestVerifyMFALoginUnrecognizedShapeFailsClosed(t *testing.T) {
	f := buildTestEngine(t, testEngineConfig())
	f.seedAccount(t)
	enrollTestAccount(t, f)

	for _, code := range []string{"", "12345", "1234567", "ABC", "ABCD-23", "!!!!-!!!!"} {
		if _, err := f.engine.VerifyMFALogin(context.Background(), testIdentifier, code); err != ErrInvalidCredential {
			t.Fatalf("expected ErrInvalidCredential for %q, got %v", code, err)
		}
	}

	// Shape rejections are logged but never touch the backup code batch.
	codes, _ := f.provider.GetBackupCodes(context.Background(), testAccountID)
	if len(codes) != f.engine.config.MFA.BackupCodeCount {
		t.Fatalf("expected untouched backup codes, got %d", len(codes))
	}
}

func TestVerifyMFALoginLockout(t *testing.T) {
	cfg := testEngineConfig()
	cfg.MFA.LockoutThreshold = 3
	cfg.MFA.LockoutWindow = 15 * time.Minute
	f := buildTestEngine(t, cfg)
	f.seedAccount(t)
	enrollment := enrollTestAccount(t, f)

	wrong := totpCode(t, f, enrollment.SecretBase32, time.Now())
	// Flip a digit so the code is guaranteed invalid.
	replacement := byte('1')
	if wrong[0] == replacement {
		replacement = '2'
	}
	wrong = string(replacement) + wrong[1:]

	var lastErr error
	for i := 0; i < 3; i++ {
		_, lastErr = f.engine.VerifyMFALogin(context.Background(), testIdentifier, wrong)
	}
	if lastErr != ErrAccountLocked {
		t.Fatalf("expected ErrAccountLocked at threshold, got %v", lastErr)
	}

	// Even the correct code is refused while locked.
	valid := totpCode(t, f, enrollment.SecretBase32, time.Now())
	if _, err := f.engine.VerifyMFALogin(context.Background(), testIdentifier, valid); err != ErrAccountLocked {
		t.Fatalf("expected ErrAccountLocked during lockout, got %v", err)
	}
}

func TestVerifyMFALoginNotEnrolled(t *testing.T) {
	f := buildTestEngine(t, testEngineConfig())
	f.seedAccount(t)

	if _, err := f.engine.VerifyMFALogin(context.Background(), testIdentifier, "123456"); err != ErrMFANotEnrolled {
		t.Fatalf("expected ErrMFANotEnrolled, got %v", err)
	}
}

func TestRegenerateBackupCodes(t *testing.T) {
	f := buildTestEngine(t, testEngineConfig())
	f.seedAccount(t)

	if _, err := f.engine.RegenerateBackupCodes(context.Background(), testAccountID); err != ErrMFANotEnrolled {
		t.Fatalf("expected ErrMFANotEnrolled before enrollment, got %v", err)
	}

	enrollment := enrollTestAccount(t, f)
	fresh, err := f.engine.RegenerateBackupCodes(context.Background(), testAccountID)
	if err != nil {
		t.Fatalf("RegenerateBackupCodes failed: %v", err)
	}
	if len(fresh) != f.engine.config.MFA.BackupCodeCount {
		t.Fatalf("expected %d codes, got %d", f.engine.config.MFA.BackupCodeCount, len(fresh))
	}

	// The old batch is dead after regeneration.
	if _, err := f.engine.VerifyMFALogin(context.Background(), testIdentifier, enrollment.BackupCodes[0]); err != ErrInvalidCredential {
		t.Fatalf("expected old backup code rejected, got %v", err)
	}
	if _, err := f.engine.VerifyMFALogin(context.Background(), testIdentifier, fresh[0]); err != nil {
		t.Fatalf("fresh backup code rejected: %v", err)
	}
}
