package directory

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/larrykluger/push-notifications-docusign/internal/identity"
	"github.com/larrykluger/push-notifications-docusign/internal/model"
	"github.com/larrykluger/push-notifications-docusign/internal/store"
)

type fakeJar struct {
	in  map[string]string
	out map[string]string
}

func newFakeJar(in map[string]string) *fakeJar {
	if in == nil {
		in = map[string]string{}
	}
	return &fakeJar{in: in, out: map[string]string{}}
}

func (j *fakeJar) Cookie(name string) (string, error) {
	v, ok := j.in[name]
	if !ok {
		return "", http.ErrNoCookie
	}
	return v, nil
}

func (j *fakeJar) SetCookie(name, value string, maxAge int, path, domain string, secure, httpOnly bool) {
	j.out[name] = value
}

type fixture struct {
	db  *gorm.DB
	st  store.Store
	ids *identity.Manager
	dir *Directory
}

func newFixture(t *testing.T) *fixture {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&model.Subscription{}))

	st := store.NewGormStore(db, zap.NewNop())
	ids := identity.NewManager(identity.Options{Salt: "test"})
	return &fixture{db: db, st: st, ids: ids, dir: New(st, ids, zap.NewNop())}
}

func (f *fixture) seed(t *testing.T, deviceID, notifyURL string, accountIDs ...string) {
	for _, id := range accountIDs {
		sub := &model.Subscription{DeviceID: deviceID, NotifyURL: notifyURL, AccountID: id, UserEmail: "joe@example.com", UserName: "Joe"}
		require.NoError(t, f.st.Upsert(context.Background(), sub))
	}
}

func (f *fixture) count(t *testing.T, deviceID string) int64 {
	var n int64
	require.NoError(t, f.db.Model(&model.Subscription{}).Where("cookie_notify_id = ?", deviceID).Count(&n).Error)
	return n
}

func TestReconcile_OptedInUpdatesEveryRow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "abc123", "old", "1", "2")
	f.seed(t, "other-device", "untouched", "1")

	jar := newFakeJar(map[string]string{identity.DefaultIDCookie: "abc123", identity.DefaultFlagCookie: "yes"})
	dev := f.ids.Establish(jar)
	require.True(t, dev.OptIn)

	res, err := f.dir.Reconcile(ctx, jar, dev, "new")
	require.NoError(t, err)
	assert.Equal(t, Result{OptIn: true, Updated: 2}, res)

	entries, err := f.dir.List(ctx, dev)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, "new", e.NotifyURL)
	}
	assert.Equal(t, int64(2), f.count(t, "abc123"), "no rows should be created")
	assert.Equal(t, "yes", jar.out[identity.DefaultFlagCookie])

	others, err := f.dir.List(ctx, identity.Device{ID: "other-device"})
	require.NoError(t, err)
	assert.Equal(t, "untouched", others[0].NotifyURL)
}

func TestReconcile_OptedInWithoutRowsCreatesNothing(t *testing.T) {
	f := newFixture(t)
	jar := newFakeJar(nil)

	res, err := f.dir.Reconcile(context.Background(), jar, identity.Device{ID: "abc123", OptIn: true}, "new")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, int64(0), f.count(t, "abc123"))
	assert.Equal(t, "yes", jar.out[identity.DefaultFlagCookie])
}

func TestReconcile_OptedOutDeletesEveryRow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "abc123", "old", "1", "2", "3")

	jar := newFakeJar(map[string]string{identity.DefaultIDCookie: "abc123", identity.DefaultFlagCookie: "no"})
	dev := f.ids.Establish(jar)

	res, err := f.dir.Reconcile(ctx, jar, dev, "new")
	require.NoError(t, err)
	assert.Equal(t, Result{Deleted: 3}, res)
	assert.Equal(t, int64(0), f.count(t, "abc123"))
	assert.Equal(t, "no", jar.out[identity.DefaultFlagCookie])
}

func TestReconcile_FreshIdentityIsOptedOut(t *testing.T) {
	f := newFixture(t)
	jar := newFakeJar(map[string]string{identity.DefaultFlagCookie: "yes"})
	dev := f.ids.Establish(jar)
	require.True(t, dev.Fresh)

	_, err := f.dir.Reconcile(context.Background(), jar, dev, "new")
	require.NoError(t, err)
	assert.Equal(t, "no", jar.out[identity.DefaultFlagCookie])
}

func TestList_EmptyIsNotAnError(t *testing.T) {
	f := newFixture(t)

	entries, err := f.dir.List(context.Background(), identity.Device{ID: "nobody"})
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestLinkAccounts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	jar := newFakeJar(nil)
	dev := identity.Device{ID: "abc123"}
	accounts := []Account{
		{AccountID: "1", AccountName: "Acme", UserEmail: "joe@example.com", UserName: "Joe", UserID: "u1"},
		{AccountID: "2", AccountName: "Widgets", UserEmail: "joe@example.com", UserName: "Joe", UserID: "u1"},
	}

	entries, err := f.dir.LinkAccounts(ctx, jar, dev, "chan", accounts)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, "yes", jar.out[identity.DefaultFlagCookie])

	// Linking the same pairs again collapses onto the existing rows.
	_, err = f.dir.LinkAccounts(ctx, jar, dev, "chan2", accounts)
	require.NoError(t, err)
	assert.Equal(t, int64(2), f.count(t, "abc123"))

	listed, err := f.dir.List(ctx, dev)
	require.NoError(t, err)
	for _, e := range listed {
		assert.Equal(t, "chan2", e.NotifyURL)
	}
}

func TestLinkAccounts_RequiresNotifyURL(t *testing.T) {
	f := newFixture(t)
	jar := newFakeJar(nil)

	_, err := f.dir.LinkAccounts(context.Background(), jar, identity.Device{ID: "abc123"}, "", []Account{{AccountID: "1"}})
	assert.ErrorIs(t, err, ErrNoNotifyURL)
	assert.Empty(t, jar.out)
}

func TestWithdraw(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "abc123", "old", "1", "2")
	jar := newFakeJar(nil)

	n, err := f.dir.Withdraw(context.Background(), jar, identity.Device{ID: "abc123", OptIn: true})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, int64(0), f.count(t, "abc123"))
	assert.Equal(t, "no", jar.out[identity.DefaultFlagCookie])
}

// failingStore fails every call with err.
type failingStore struct{ err error }

func (s failingStore) ListByDevice(context.Context, string) ([]model.Subscription, error) {
	return nil, s.err
}
func (s failingStore) Upsert(context.Context, *model.Subscription) error { return s.err }
func (s failingStore) Delete(context.Context, *model.Subscription) error { return s.err }
func (s failingStore) Atomic(ctx context.Context, fn func(store.Store) error) error {
	return fn(s)
}

func TestReconcile_StoreFailurePropagates(t *testing.T) {
	boom := errors.New("store: list subscriptions for device: connection refused")
	dir := New(failingStore{err: boom}, identity.NewManager(identity.Options{}), zap.NewNop())
	jar := newFakeJar(nil)

	_, err := dir.Reconcile(context.Background(), jar, identity.Device{ID: "abc123", OptIn: true}, "new")
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, jar.out, "the flag cookie must not change when the store fails")
}
