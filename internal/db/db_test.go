package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/larrykluger/push-notifications-docusign/config"
	"github.com/larrykluger/push-notifications-docusign/internal/model"
)

func TestInit_SQLiteMigrates(t *testing.T) {
	gormDB, err := Init(&config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"}, zap.NewNop())
	require.NoError(t, err)

	assert.True(t, gormDB.Migrator().HasTable(&model.Subscription{}))
	assert.True(t, gormDB.Migrator().HasIndex(&model.Subscription{}, "DeviceID"))

	sub := model.Subscription{DeviceID: "abc123", AccountID: "1", UserEmail: "joe@example.com"}
	sub.AssignKey()
	require.NoError(t, gormDB.WithContext(context.Background()).Create(&sub).Error)
}

func TestInit_UnknownDriver(t *testing.T) {
	_, err := Init(&config.DatabaseConfig{Driver: "firestore"}, zap.NewNop())
	assert.ErrorContains(t, err, "unsupported sql driver")
}
