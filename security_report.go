package authcore

// SecurityReport describes the securityreport operation and its observable behavior.
//
// SecurityReport may return an error when input validation, dependency calls, or security checks fail.
// SecurityReport does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	rateLimiting := e.config.RateLimit.Login.MaxAttempts > 0 &&
		e.config.RateLimit.Login.Window > 0

	return SecurityReport{
		SigningAlgorithm: e.config.Token.SigningMethod,
		AccessTTL:        e.config.Token.AccessTTL,
		RefreshTTL:       e.config.Token.RefreshTTL,
		Argon2: PasswordConfigReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
		},
		LegacyMigrationMode:  e.config.Password.LegacyMigrationMode,
		OTPTTL:               e.config.OTP.TTL,
		OTPFallbackActive:    e.fallbackActive(),
		MFALockoutThreshold:  e.config.MFA.LockoutThreshold,
		BackupCodeCount:      e.config.MFA.BackupCodeCount,
		DeviceTrustTTL:       e.config.TrustedDevice.TTL,
		QRLoginTTL:           e.config.QRLogin.TTL,
		RateLimitingActive:   rateLimiting,
		AttemptLogRetention:  e.config.AttemptLog.Retention,
		SuspiciousIPMinFails: e.config.AttemptLog.SuspiciousIPThreshold,
	}
}
