package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/ridgelock-io/authcore"
)

// ErrNotFound is an exported constant or variable used by the authentication engine.
var ErrNotFound = errors.New("gormstore: record not found")

// Account is the persisted account row backing [authcore.AccountRecord].
type Account struct {
	ID           string `gorm:"primaryKey;size:64"`
	Identifier   string `gorm:"uniqueIndex;size:255;not null"`
	Phone        string `gorm:"size:32"`
	PasswordHash string `gorm:"size:512;not null"`
	Role         string `gorm:"size:64;not null;default:user"`
	MFAEnabled   bool   `gorm:"not null;default:false"`
	MFASecret    string `gorm:"size:256"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// BackupCode is one salted backup code hash.
type BackupCode struct {
	ID        string `gorm:"primaryKey;size:64"`
	AccountID string `gorm:"index;size:64;not null"`
	CodeHash  string `gorm:"size:256;not null"`
	Used      bool   `gorm:"not null;default:false"`
	CreatedAt time.Time
	UsedAt    *time.Time
}

// TrustedDevice is one remembered device row.
type TrustedDevice struct {
	ID          string `gorm:"primaryKey;size:64"`
	AccountID   string `gorm:"uniqueIndex:idx_device_account;size:64;not null"`
	Fingerprint string `gorm:"uniqueIndex:idx_device_account;size:128;not null"`
	Trusted     bool   `gorm:"not null;default:false"`
	IP          string `gorm:"size:64"`
	UserAgent   string `gorm:"size:512"`
	Hostname    string `gorm:"size:255"`
	LastLoginAt time.Time
	ExpiresAt   time.Time `gorm:"index"`
}

// MFAAttempt is one append-only row of the second-factor attempt log.
type MFAAttempt struct {
	ID        string `gorm:"primaryKey;size:64"`
	AccountID string `gorm:"index;size:64;not null"`
	IP        string `gorm:"index;size:64"`
	UserAgent string `gorm:"size:512"`
	DeviceID  string `gorm:"size:128"`
	Method    string `gorm:"size:32;not null"`
	Success   bool   `gorm:"index;not null"`
	Reason    string `gorm:"size:128"`
	CreatedAt time.Time `gorm:"index"`
}

// Store implements [authcore.AccountProvider] on a gorm-managed relational
// database.
type Store struct {
	db *gorm.DB
}

// New creates a [Store] and migrates its schema.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("gormstore: nil db")
	}
	if err := db.AutoMigrate(&Account{}, &BackupCode{}, &TrustedDevice{}, &MFAAttempt{}); err != nil {
		return nil, fmt.Errorf("gormstore: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func accountRecord(a Account) authcore.AccountRecord {
	return authcore.AccountRecord{
		AccountID:    a.ID,
		Identifier:   a.Identifier,
		Phone:        a.Phone,
		PasswordHash: a.PasswordHash,
		Role:         a.Role,
		MFAEnabled:   a.MFAEnabled,
		MFASecret:    a.MFASecret,
	}
}

func deviceRecord(d TrustedDevice) authcore.TrustedDeviceRecord {
	return authcore.TrustedDeviceRecord{
		DeviceID:    d.ID,
		AccountID:   d.AccountID,
		Fingerprint: d.Fingerprint,
		Trusted:     d.Trusted,
		IP:          d.IP,
		UserAgent:   d.UserAgent,
		Hostname:    d.Hostname,
		LastLoginAt: d.LastLoginAt,
		ExpiresAt:   d.ExpiresAt,
	}
}

func wrapErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// CreateAccount inserts a new account row. Identifier collisions surface as
// the driver's unique constraint error.
func (s *Store) CreateAccount(ctx context.Context, account authcore.AccountRecord) error {
	row := Account{
		ID:           account.AccountID,
		Identifier:   account.Identifier,
		Phone:        account.Phone,
		PasswordHash: account.PasswordHash,
		Role:         account.Role,
		MFAEnabled:   account.MFAEnabled,
		MFASecret:    account.MFASecret,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

// GetAccountByIdentifier describes the getaccountbyidentifier operation and its observable behavior.
func (s *Store) GetAccountByIdentifier(ctx context.Context, identifier string) (authcore.AccountRecord, error) {
	var row Account
	err := s.db.WithContext(ctx).Where("identifier = ?", identifier).First(&row).Error
	if err != nil {
		return authcore.AccountRecord{}, wrapErr(err)
	}
	return accountRecord(row), nil
}

// GetAccountByID describes the getaccountbyid operation and its observable behavior.
func (s *Store) GetAccountByID(ctx context.Context, accountID string) (authcore.AccountRecord, error) {
	var row Account
	err := s.db.WithContext(ctx).Where("id = ?", accountID).First(&row).Error
	if err != nil {
		return authcore.AccountRecord{}, wrapErr(err)
	}
	return accountRecord(row), nil
}

// UpdatePasswordHash describes the updatepasswordhash operation and its observable behavior.
func (s *Store) UpdatePasswordHash(ctx context.Context, accountID, newHash string) error {
	res := s.db.WithContext(ctx).Model(&Account{}).Where("id = ?", accountID).
		Update("password_hash", newHash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetMFASecret describes the setmfasecret operation and its observable behavior.
func (s *Store) SetMFASecret(ctx context.Context, accountID, secretBase32 string, enabled bool) error {
	res := s.db.WithContext(ctx).Model(&Account{}).Where("id = ?", accountID).
		Updates(map[string]interface{}{
			"mfa_secret":  secretBase32,
			"mfa_enabled": enabled,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetBackupCodes returns only codes not yet consumed.
func (s *Store) GetBackupCodes(ctx context.Context, accountID string) ([]authcore.BackupCodeRecord, error) {
	var rows []BackupCode
	err := s.db.WithContext(ctx).
		Where("account_id = ? AND used = ?", accountID, false).
		Order("created_at").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	records := make([]authcore.BackupCodeRecord, 0, len(rows))
	for _, row := range rows {
		record := authcore.BackupCodeRecord{
			CodeID:    row.ID,
			AccountID: row.AccountID,
			CodeHash:  row.CodeHash,
			Used:      row.Used,
			CreatedAt: row.CreatedAt,
		}
		if row.UsedAt != nil {
			record.UsedAt = *row.UsedAt
		}
		records = append(records, record)
	}
	return records, nil
}

// ReplaceBackupCodes swaps the account's whole batch in one transaction.
func (s *Store) ReplaceBackupCodes(ctx context.Context, accountID string, codes []authcore.BackupCodeRecord) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ?", accountID).Delete(&BackupCode{}).Error; err != nil {
			return err
		}
		for _, code := range codes {
			row := BackupCode{
				ID:        code.CodeID,
				AccountID: accountID,
				CodeHash:  code.CodeHash,
				Used:      code.Used,
				CreatedAt: code.CreatedAt,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// MarkBackupCodeUsed describes the markbackupcodeused operation and its observable behavior.
func (s *Store) MarkBackupCodeUsed(ctx context.Context, codeID string, usedAt time.Time) error {
	res := s.db.WithContext(ctx).Model(&BackupCode{}).
		Where("id = ? AND used = ?", codeID, false).
		Updates(map[string]interface{}{
			"used":    true,
			"used_at": usedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetTrustedDevice describes the gettrusteddevice operation and its observable behavior.
func (s *Store) GetTrustedDevice(ctx context.Context, accountID, fingerprint string) (authcore.TrustedDeviceRecord, error) {
	var row TrustedDevice
	err := s.db.WithContext(ctx).
		Where("account_id = ? AND fingerprint = ?", accountID, fingerprint).
		First(&row).Error
	if err != nil {
		return authcore.TrustedDeviceRecord{}, wrapErr(err)
	}
	return deviceRecord(row), nil
}

// GetTrustedDeviceByID describes the gettrusteddevicebyid operation and its observable behavior.
func (s *Store) GetTrustedDeviceByID(ctx context.Context, deviceID string) (authcore.TrustedDeviceRecord, error) {
	var row TrustedDevice
	err := s.db.WithContext(ctx).Where("id = ?", deviceID).First(&row).Error
	if err != nil {
		return authcore.TrustedDeviceRecord{}, wrapErr(err)
	}
	return deviceRecord(row), nil
}

// UpsertTrustedDevice describes the upserttrusteddevice operation and its observable behavior.
func (s *Store) UpsertTrustedDevice(ctx context.Context, device authcore.TrustedDeviceRecord) error {
	row := TrustedDevice{
		ID:          device.DeviceID,
		AccountID:   device.AccountID,
		Fingerprint: device.Fingerprint,
		Trusted:     device.Trusted,
		IP:          device.IP,
		UserAgent:   device.UserAgent,
		Hostname:    device.Hostname,
		LastLoginAt: device.LastLoginAt,
		ExpiresAt:   device.ExpiresAt,
	}
	return s.db.WithContext(ctx).Save(&row).Error
}

// ListTrustedDevices describes the listtrusteddevices operation and its observable behavior.
func (s *Store) ListTrustedDevices(ctx context.Context, accountID string) ([]authcore.TrustedDeviceRecord, error) {
	var rows []TrustedDevice
	err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("last_login_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	records := make([]authcore.TrustedDeviceRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, deviceRecord(row))
	}
	return records, nil
}

// DeleteTrustedDevice describes the deletetrusteddevice operation and its observable behavior.
func (s *Store) DeleteTrustedDevice(ctx context.Context, accountID, deviceID string) error {
	res := s.db.WithContext(ctx).
		Where("account_id = ? AND id = ?", accountID, deviceID).
		Delete(&TrustedDevice{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTrustedDevices describes the deletetrusteddevices operation and its observable behavior.
func (s *Store) DeleteTrustedDevices(ctx context.Context, accountID string) error {
	return s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Delete(&TrustedDevice{}).Error
}

// RecordMFAAttempt describes the recordmfaattempt operation and its observable behavior.
func (s *Store) RecordMFAAttempt(ctx context.Context, attempt authcore.MFAAttemptRecord) error {
	row := MFAAttempt{
		ID:        attempt.AttemptID,
		AccountID: attempt.AccountID,
		IP:        attempt.IP,
		UserAgent: attempt.UserAgent,
		DeviceID:  attempt.DeviceID,
		Method:    attempt.Method,
		Success:   attempt.Success,
		Reason:    attempt.Reason,
		CreatedAt: attempt.CreatedAt,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

// CountMFAAttempts describes the countmfaattempts operation and its observable behavior.
func (s *Store) CountMFAAttempts(ctx context.Context, accountID string, success bool, since time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&MFAAttempt{}).
		Where("account_id = ? AND success = ? AND created_at >= ?", accountID, success, since).
		Count(&count).Error
	return count, err
}

// ListFailureIPsSince describes the listfailureipssince operation and its observable behavior.
func (s *Store) ListFailureIPsSince(ctx context.Context, since time.Time) (map[string]int64, error) {
	type ipCount struct {
		IP    string
		Count int64
	}
	var rows []ipCount
	err := s.db.WithContext(ctx).Model(&MFAAttempt{}).
		Select("ip, COUNT(*) AS count").
		Where("success = ? AND created_at >= ? AND ip <> ''", false, since).
		Group("ip").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.IP] = row.Count
	}
	return counts, nil
}

// DeleteMFAAttemptsBefore describes the deletemfaattemptsbefore operation and its observable behavior.
func (s *Store) DeleteMFAAttemptsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&MFAAttempt{})
	return res.RowsAffected, res.Error
}
