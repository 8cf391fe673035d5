package authcore

import (
	"context"
	"testing"
	"time"
)

func issueLoginOTP(t *testing.T, f *engineFixture) string {
	t.Helper()
	result, err := f.engine.Login(context.Background(), testIdentifier, testPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if result.StepUpMethod != StepUpMethodOTP {
		t.Fatalf("expected otp step-up, got %q", result.StepUpMethod)
	}
	return f.deliverer.lastCode(t)
}

func TestVerifyOTPLoginIssuesTokens(t *testing.T) {
	f := buildTestEngine(t, testEngineConfig())
	f.seedAccount(t)
	code := issueLoginOTP(t, f)

	result, err := f.engine.VerifyOTPLogin(context.Background(), testIdentifier, code)
	if err != nil {
		t.Fatalf("VerifyOTPLogin failed: %v", err)
	}
	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Fatal("expected token pair after otp verification")
	}
	if result.Degraded {
		t.Fatal("healthy store must not report degraded")
	}

	auth, err := f.engine.ValidateAccess(context.Background(), result.AccessToken)
	if err != nil || auth.AccountID != testAccountID {
		t.Fatalf("issued access token did not validate: %v", err)
	}
}

func TestVerifyOTPLoginSingleUse(t *testing.T) {
	f := buildTestEngine(t, testEngineConfig())
	f.seedAccount(t)
	code := issueLoginOTP(t, f)

	if _, err := f.engine.VerifyOTPLogin(context.Background(), testIdentifier, code); err != nil {
		t.Fatalf("first verification failed: %v", err)
	}
	if _, err := f.engine.VerifyOTPLogin(context.Background(), testIdentifier, code); err != ErrOTPExpired {
		t.Fatalf("expected ErrOTPExpired on replay, got %v", err)
	}
}

func TestVerifyOTPLoginWrongCodeDoesNotConsume(t *testing.T) {
	f := buildTestEngine(t, testEngineConfig())
	f.seedAccount(t)
	code := issueLoginOTP(t, f)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	if _, err := f.engine.VerifyOTPLogin(context.Background(), testIdentifier, wrong); err != ErrInvalidCredential {
		t.Fatalf("expected ErrInvalidCredential for wrong code, got %v", err)
	}

	// The stored code survived the failed attempt.
	if _, err := f.engine.VerifyOTPLogin(context.Background(), testIdentifier, code); err != nil {
		t.Fatalf("correct code rejected after failed attempt: %v", err)
	}
}

func TestVerifyOTPLoginBudgetExhausted(t *testing.T) {
	cfg := testEngineConfig()
	cfg.RateLimit.OTPVerify = ActionLimit{MaxAttempts: 5, Window: 10 * time.Minute}
	f := buildTestEngine(t, cfg)
	f.seedAccount(t)
	code := issueLoginOTP(t, f)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	for i := 0; i < 5; i++ {
		if _, err := f.engine.VerifyOTPLogin(context.Background(), testIdentifier, wrong); err != ErrInvalidCredential {
			t.Fatalf("attempt %d: expected ErrInvalidCredential, got %v", i+1, err)
		}
	}

	// The sixth attempt is refused even with the correct code.
	if _, err := f.engine.VerifyOTPLogin(context.Background(), testIdentifier, code); err != ErrRateLimited {
		t.Fatalf("expected ErrRateLimited on sixth attempt, got %v", err)
	}
}

func TestSendOTPUnknownAccount(t *testing.T) {
	f := buildTestEngine(t, testEngineConfig())

	if _, err := f.engine.SendOTP(context.Background(), "nobody@example.com"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSendOTPRequestBudget(t *testing.T) {
	cfg := testEngineConfig()
	cfg.RateLimit.OTPRequest = ActionLimit{MaxAttempts: 3, Window: 5 * time.Minute}
	f := buildTestEngine(t, cfg)
	f.seedAccount(t)

	for i := 0; i < 3; i++ {
		if _, err := f.engine.SendOTP(context.Background(), testIdentifier); err != nil {
			t.Fatalf("request %d failed: %v", i+1, err)
		}
	}
	if _, err := f.engine.SendOTP(context.Background(), testIdentifier); err != ErrRateLimited {
		t.Fatalf("expected ErrRateLimited on fourth request, got %v", err)
	}
}

func TestSendOTPDeliveryFailureDegradesIssuance(t *testing.T) {
	f := buildTestEngine(t, testEngineConfig())
	f.seedAccount(t)
	f.deliverer.fail = true

	issue, err := f.engine.SendOTP(context.Background(), testIdentifier)
	if err != nil {
		t.Fatalf("delivery failure must not abort issuance: %v", err)
	}
	if !issue.Degraded {
		t.Fatal("expected degraded notice when delivery fails")
	}
	if issue.Handle == "" {
		t.Fatal("expected an issuance handle")
	}

	// The undelivered code is still stored and verifiable.
	code, serr := f.engine.store.Get(context.Background(), f.engine.otpKey(testAccountID))
	if serr != nil {
		t.Fatalf("expected code to remain stored: %v", serr)
	}
	result, err := f.engine.VerifyOTPLogin(context.Background(), testIdentifier, string(code))
	if err != nil {
		t.Fatalf("stored code rejected after delivery failure: %v", err)
	}
	if result.AccessToken == "" {
		t.Fatal("expected tokens from verification")
	}
}

func TestLoginSucceedsWhenOTPDeliveryFails(t *testing.T) {
	f := buildTestEngine(t, testEngineConfig())
	f.seedAccount(t)
	f.deliverer.fail = true

	result, err := f.engine.Login(context.Background(), testIdentifier, testPassword)
	if err != nil {
		t.Fatalf("Login must survive a delivery failure: %v", err)
	}
	if !result.StepUpRequired || result.StepUpMethod != StepUpMethodOTP {
		t.Fatalf("expected otp step-up, got %+v", result)
	}
	if !result.Degraded {
		t.Fatal("expected degraded notice when delivery fails")
	}
}

func TestOTPFallbackDuringStoreOutage(t *testing.T) {
	f := buildTestEngine(t, testEngineConfig(), func(b *Builder) {
		b.WithStore(outageStore{})
	})
	f.seedAccount(t)

	result, err := f.engine.Login(context.Background(), testIdentifier, testPassword)
	if err != nil {
		t.Fatalf("Login failed during outage: %v", err)
	}
	if !result.Degraded {
		t.Fatal("expected degraded flag while store is down")
	}

	code := f.deliverer.lastCode(t)
	verified, err := f.engine.VerifyOTPLogin(context.Background(), testIdentifier, code)
	if err != nil {
		t.Fatalf("fallback verification failed: %v", err)
	}
	if !verified.Degraded {
		t.Fatal("expected degraded flag on fallback verification")
	}
	if verified.AccessToken == "" {
		t.Fatal("expected tokens from fallback verification")
	}

	// Fallback codes are single-use too.
	if _, err := f.engine.VerifyOTPLogin(context.Background(), testIdentifier, code); err != ErrOTPExpired {
		t.Fatalf("expected ErrOTPExpired on fallback replay, got %v", err)
	}
}
