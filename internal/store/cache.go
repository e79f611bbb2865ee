package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/larrykluger/push-notifications-docusign/internal/model"
)

// CacheClient defines the subset of cache commands the decorator needs.
type CacheClient interface {
	// Get decodes the cached value into dest. A miss is reported as ErrCacheMiss.
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// CachedStore adds read-aside caching of per-device subscription lists to
// any Store. Each device's list is cached under its current generation; a
// write moves the device to a new generation once it has been stored, so a
// fill computed from a read that raced the write lands under a generation
// nobody reads anymore.
type CachedStore struct {
	realStore Store
	cache     CacheClient
	ttl       time.Duration
	log       *zap.Logger
}

// NewCachedStore wraps realStore.
func NewCachedStore(realStore Store, cache CacheClient, ttl time.Duration, log *zap.Logger) *CachedStore {
	return &CachedStore{realStore: realStore, cache: cache, ttl: ttl, log: log}
}

func (s *CachedStore) ListByDevice(ctx context.Context, deviceID string) ([]model.Subscription, error) {
	// The generation must be pinned before the real read.
	gen, err := s.generation(ctx, deviceID)
	if err != nil {
		s.log.Debug("subscription cache unavailable", zap.String("device_id", deviceID), zap.Error(err))
		return s.realStore.ListByDevice(ctx, deviceID)
	}
	key := cacheKey(deviceID, gen)

	var cached []model.Subscription
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		if cached == nil {
			cached = make([]model.Subscription, 0)
		}
		return cached, nil
	}

	fresh, err := s.realStore.ListByDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	// A failed fill only costs the next read a round trip.
	if err := s.cache.Set(ctx, key, fresh, s.ttl); err != nil {
		s.log.Debug("subscription cache fill failed", zap.String("key", key), zap.Error(err))
	}
	return fresh, nil
}

// generation returns the device's current cache generation, starting one
// when none is recorded.
func (s *CachedStore) generation(ctx context.Context, deviceID string) (string, error) {
	var gen string
	err := s.cache.Get(ctx, generationKey(deviceID), &gen)
	switch {
	case err == nil && gen != "":
		return gen, nil
	case err != nil && !errors.Is(err, ErrCacheMiss):
		return "", err
	}
	return s.bump(ctx, deviceID)
}

func (s *CachedStore) bump(ctx context.Context, deviceID string) (string, error) {
	gen := uuid.NewString()
	// Outlives the entries filled under it.
	if err := s.cache.Set(ctx, generationKey(deviceID), gen, 2*s.ttl); err != nil {
		return "", err
	}
	return gen, nil
}

func (s *CachedStore) Upsert(ctx context.Context, sub *model.Subscription) error {
	if err := s.realStore.Upsert(ctx, sub); err != nil {
		return err
	}
	return s.invalidate(ctx, sub.DeviceID)
}

func (s *CachedStore) Delete(ctx context.Context, sub *model.Subscription) error {
	if err := s.realStore.Delete(ctx, sub); err != nil {
		return err
	}
	return s.invalidate(ctx, sub.DeviceID)
}

// Atomic runs fn inside the real store's transaction and invalidates every
// device touched by it once the transaction has finished.
func (s *CachedStore) Atomic(ctx context.Context, fn func(Store) error) error {
	touched := make(map[string]struct{})
	err := s.realStore.Atomic(ctx, func(tx Store) error {
		return fn(&touchRecorder{Store: tx, touched: touched})
	})
	for deviceID := range touched {
		if invErr := s.invalidate(ctx, deviceID); invErr != nil && err == nil {
			err = invErr
		}
	}
	return err
}

func (s *CachedStore) invalidate(ctx context.Context, deviceID string) error {
	var old string
	_ = s.cache.Get(ctx, generationKey(deviceID), &old)
	if _, err := s.bump(ctx, deviceID); err != nil {
		return fmt.Errorf("cache: invalidate device: %w", err)
	}
	if old == "" {
		return nil
	}
	// The retired entry would expire on its own; dropping it early frees the slot.
	if err := s.cache.Del(ctx, cacheKey(deviceID, old)); err != nil {
		s.log.Debug("retired subscription cache entry not dropped", zap.String("device_id", deviceID), zap.Error(err))
	}
	return nil
}

func generationKey(deviceID string) string {
	return fmt.Sprintf("notify:subscriptions:%s:gen", deviceID)
}

func cacheKey(deviceID, gen string) string {
	return fmt.Sprintf("notify:subscriptions:%s:%s", deviceID, gen)
}

// touchRecorder notes which devices a transaction writes to.
type touchRecorder struct {
	Store
	touched map[string]struct{}
}

func (r *touchRecorder) Upsert(ctx context.Context, sub *model.Subscription) error {
	r.touched[sub.DeviceID] = struct{}{}
	return r.Store.Upsert(ctx, sub)
}

func (r *touchRecorder) Delete(ctx context.Context, sub *model.Subscription) error {
	r.touched[sub.DeviceID] = struct{}{}
	return r.Store.Delete(ctx, sub)
}

func (r *touchRecorder) Atomic(ctx context.Context, fn func(Store) error) error {
	return fn(r)
}
