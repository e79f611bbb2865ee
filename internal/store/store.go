package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/larrykluger/push-notifications-docusign/internal/model"
)

// Store defines the persistence operations the subscription directory needs.
type Store interface {
	// ListByDevice returns every subscription owned by the device identity.
	// It returns an empty slice when there are none.
	ListByDevice(ctx context.Context, deviceID string) ([]model.Subscription, error)
	// Upsert creates the subscription or updates the row with the same key.
	Upsert(ctx context.Context, sub *model.Subscription) error
	// Delete removes the subscription. Deleting a missing row is not an error.
	Delete(ctx context.Context, sub *model.Subscription) error
	// Atomic runs fn against a Store whose writes commit together.
	Atomic(ctx context.Context, fn func(Store) error) error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB, log *zap.Logger) Store {
	return &gormStore{db: db, log: log}
}

func (s *gormStore) ListByDevice(ctx context.Context, deviceID string) ([]model.Subscription, error) {
	subs := make([]model.Subscription, 0)
	if err := s.db.WithContext(ctx).
		Where("cookie_notify_id = ?", deviceID).
		Order("created_at").
		Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("store: list subscriptions for device: %w", err)
	}
	return subs, nil
}

func (s *gormStore) Upsert(ctx context.Context, sub *model.Subscription) error {
	if sub.ID == "" {
		sub.AssignKey()
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"notify_url", "ds_account_name", "ds_user_name", "ds_user_id", "updated_at"}),
	}).Create(sub).Error
	if err != nil {
		return fmt.Errorf("store: upsert subscription %s: %w", sub.ID, err)
	}
	return nil
}

func (s *gormStore) Delete(ctx context.Context, sub *model.Subscription) error {
	if sub.ID == "" {
		sub.AssignKey()
	}
	if err := s.db.WithContext(ctx).Delete(&model.Subscription{ID: sub.ID}).Error; err != nil {
		return fmt.Errorf("store: delete subscription %s: %w", sub.ID, err)
	}
	return nil
}

func (s *gormStore) Atomic(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx, log: s.log})
	})
}
