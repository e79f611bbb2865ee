package store

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/larrykluger/push-notifications-docusign/internal/model"
)

// DefaultCollection is the Firestore collection holding subscriptions.
const DefaultCollection = "notifications"

// FirestoreStore implements Store using Google Cloud Firestore. Document IDs
// are the subscription keys, so a Set on an existing key is an update.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
	log        *zap.Logger
}

func NewFirestoreStore(client *firestore.Client, collection string, log *zap.Logger) *FirestoreStore {
	if collection == "" {
		collection = DefaultCollection
	}
	return &FirestoreStore{client: client, collection: collection, log: log}
}

func (s *FirestoreStore) ListByDevice(ctx context.Context, deviceID string) ([]model.Subscription, error) {
	iter := s.byDevice(deviceID).Documents(ctx)
	defer iter.Stop()
	return s.collect(iter)
}

func (s *FirestoreStore) Upsert(ctx context.Context, sub *model.Subscription) error {
	stampForWrite(sub)
	if _, err := s.client.Collection(s.collection).Doc(sub.ID).Set(ctx, sub); err != nil {
		return fmt.Errorf("firestore: upsert subscription %s: %w", sub.ID, err)
	}
	return nil
}

func (s *FirestoreStore) Delete(ctx context.Context, sub *model.Subscription) error {
	if sub.ID == "" {
		sub.AssignKey()
	}
	if _, err := s.client.Collection(s.collection).Doc(sub.ID).Delete(ctx); err != nil {
		return fmt.Errorf("firestore: delete subscription %s: %w", sub.ID, err)
	}
	return nil
}

// Atomic runs fn in a single Firestore transaction. Firestore requires every
// read in a transaction to happen before the first write. The transaction is
// attempted once; contention surfaces as an error.
func (s *FirestoreStore) Atomic(ctx context.Context, fn func(Store) error) error {
	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return fn(&firestoreTx{parent: s, tx: tx})
	}, firestore.MaxAttempts(1))
}

func (s *FirestoreStore) byDevice(deviceID string) firestore.Query {
	return s.client.Collection(s.collection).Where("cookie_notify_id", "==", deviceID)
}

func (s *FirestoreStore) collect(iter *firestore.DocumentIterator) ([]model.Subscription, error) {
	subs := make([]model.Subscription, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore: list subscriptions for device: %w", err)
		}

		var sub model.Subscription
		if err := doc.DataTo(&sub); err != nil {
			s.log.Warn("skipping undecodable subscription document", zap.String("doc", doc.Ref.ID), zap.Error(err))
			continue
		}
		sub.ID = doc.Ref.ID
		subs = append(subs, sub)
	}
	return subs, nil
}

// firestoreTx is the Store view handed to Atomic callbacks.
type firestoreTx struct {
	parent *FirestoreStore
	tx     *firestore.Transaction
}

func (t *firestoreTx) ListByDevice(ctx context.Context, deviceID string) ([]model.Subscription, error) {
	iter := t.tx.Documents(t.parent.byDevice(deviceID))
	defer iter.Stop()
	return t.parent.collect(iter)
}

func (t *firestoreTx) Upsert(_ context.Context, sub *model.Subscription) error {
	stampForWrite(sub)
	if err := t.tx.Set(t.parent.client.Collection(t.parent.collection).Doc(sub.ID), sub); err != nil {
		return fmt.Errorf("firestore: upsert subscription %s: %w", sub.ID, err)
	}
	return nil
}

func (t *firestoreTx) Delete(_ context.Context, sub *model.Subscription) error {
	if sub.ID == "" {
		sub.AssignKey()
	}
	if err := t.tx.Delete(t.parent.client.Collection(t.parent.collection).Doc(sub.ID)); err != nil {
		return fmt.Errorf("firestore: delete subscription %s: %w", sub.ID, err)
	}
	return nil
}

func (t *firestoreTx) Atomic(_ context.Context, fn func(Store) error) error {
	return fn(t)
}

func stampForWrite(sub *model.Subscription) {
	if sub.ID == "" {
		sub.AssignKey()
	}
	now := time.Now().UTC()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now
}
