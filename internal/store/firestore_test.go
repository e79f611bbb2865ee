//go:build integration

package store

import (
	"context"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/larrykluger/push-notifications-docusign/internal/model"
)

// setupFirestore talks to the emulator named by FIRESTORE_EMULATOR_HOST.
func setupFirestore(t *testing.T) (context.Context, *FirestoreStore) {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST is not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	client, err := firestore.NewClient(ctx, "test-push-notify")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return ctx, NewFirestoreStore(client, "notifications-"+uuid.NewString(), zap.NewNop())
}

func TestFirestoreStore_Lifecycle(t *testing.T) {
	ctx, s := setupFirestore(t)

	sub := &model.Subscription{DeviceID: "abc123", NotifyURL: "old", AccountID: "1", UserEmail: "a@b.c"}
	require.NoError(t, s.Upsert(ctx, sub))

	dup := &model.Subscription{DeviceID: "abc123", NotifyURL: "new", AccountID: "1", UserEmail: "A@b.c"}
	require.NoError(t, s.Upsert(ctx, dup))

	subs, err := s.ListByDevice(ctx, "abc123")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "new", subs[0].NotifyURL)
	assert.Equal(t, sub.ID, subs[0].ID)

	err = s.Atomic(ctx, func(tx Store) error {
		rows, err := tx.ListByDevice(ctx, "abc123")
		if err != nil {
			return err
		}
		for i := range rows {
			if err := tx.Delete(ctx, &rows[i]); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	subs, err = s.ListByDevice(ctx, "abc123")
	require.NoError(t, err)
	assert.Empty(t, subs)
}
