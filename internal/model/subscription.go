package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Subscription links one device identity to one account-service identity and
// carries the device's current notification channel.
type Subscription struct {
	ID          string    `gorm:"primaryKey;size:64" firestore:"-"`
	DeviceID    string    `gorm:"column:cookie_notify_id;index;size:128;not null" firestore:"cookie_notify_id"`
	NotifyURL   string    `gorm:"not null" firestore:"notify_url"`
	AccountID   string    `gorm:"column:ds_account_id;size:64;not null" firestore:"ds_account_id"`
	AccountName string    `gorm:"column:ds_account_name" firestore:"ds_account_name"`
	UserEmail   string    `gorm:"column:ds_email;size:320;not null" firestore:"ds_email"`
	UserName    string    `gorm:"column:ds_user_name" firestore:"ds_user_name"`
	UserID      string    `gorm:"column:ds_user_id;size:64" firestore:"ds_user_id"`
	CreatedAt   time.Time `gorm:"not null" firestore:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" firestore:"updated_at"`
}

// TableName keeps the legacy "notifications" kind name.
func (Subscription) TableName() string {
	return "notifications"
}

// AssignKey derives ID from the (device, account, email) identity so that
// repeated writes for the same pair collapse into one row.
func (s *Subscription) AssignKey() {
	s.ID = SubscriptionKey(s.DeviceID, s.AccountID, s.UserEmail)
}

// SubscriptionKey returns the storage key for a device/account/email triple.
// Emails compare case-insensitively.
func SubscriptionKey(deviceID, accountID, email string) string {
	sum := sha256.Sum256([]byte(deviceID + "|" + accountID + "|" + strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])
}
