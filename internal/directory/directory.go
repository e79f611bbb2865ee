// Package directory keeps a device's stored subscriptions consistent with
// the device's opt-in flag.
package directory

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/larrykluger/push-notifications-docusign/internal/identity"
	"github.com/larrykluger/push-notifications-docusign/internal/model"
	"github.com/larrykluger/push-notifications-docusign/internal/store"
)

// ErrNoNotifyURL is returned when an account is linked without a channel.
var ErrNoNotifyURL = errors.New("directory: notify url is required")

// Entry is the public projection of a subscription.
type Entry struct {
	NotifyURL   string `json:"notify_url"`
	AccountID   string `json:"account_id"`
	AccountName string `json:"account_name"`
	UserEmail   string `json:"user_email"`
	UserName    string `json:"user_name"`
	UserID      string `json:"user_id"`
}

// Account is the account-service identity a subscription is linked to.
type Account struct {
	AccountID   string
	AccountName string
	UserEmail   string
	UserName    string
	UserID      string
}

// Result reports what Reconcile did.
type Result struct {
	OptIn   bool `json:"opt_in"`
	Updated int  `json:"updated"`
	Deleted int  `json:"deleted"`
}

// Directory stores, retrieves and deletes subscriptions keyed by device identity.
type Directory struct {
	store store.Store
	ids   *identity.Manager
	log   *zap.Logger
}

func New(s store.Store, ids *identity.Manager, log *zap.Logger) *Directory {
	return &Directory{store: s, ids: ids, log: log}
}

// Reconcile brings the device's rows in line with its current consent. When
// opted in every existing row gets notifyURL and no row is created; when not,
// every row is deleted. The flag cookie is rewritten to match either way.
func (d *Directory) Reconcile(ctx context.Context, jar identity.CookieJar, dev identity.Device, notifyURL string) (Result, error) {
	res := Result{OptIn: dev.OptIn}
	err := d.store.Atomic(ctx, func(tx store.Store) error {
		subs, err := tx.ListByDevice(ctx, dev.ID)
		if err != nil {
			return err
		}
		for i := range subs {
			sub := &subs[i]
			if dev.OptIn {
				sub.NotifyURL = notifyURL
				if err := tx.Upsert(ctx, sub); err != nil {
					return err
				}
				res.Updated++
				continue
			}
			if err := tx.Delete(ctx, sub); err != nil {
				return err
			}
			res.Deleted++
		}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("directory: reconcile: %w", err)
	}

	d.ids.SetOptIn(jar, dev.OptIn)
	d.log.Debug("reconciled subscriptions",
		zap.String("device", dev.ID), zap.Bool("opt_in", dev.OptIn),
		zap.Int("updated", res.Updated), zap.Int("deleted", res.Deleted))
	return res, nil
}

// List returns the device's subscriptions. It never returns nil entries.
func (d *Directory) List(ctx context.Context, dev identity.Device) ([]Entry, error) {
	subs, err := d.store.ListByDevice(ctx, dev.ID)
	if err != nil {
		return nil, fmt.Errorf("directory: list: %w", err)
	}
	return project(subs), nil
}

// LinkAccounts upserts one subscription per account for the device and turns
// the opt-in flag on. Linking an already linked pair only refreshes it.
func (d *Directory) LinkAccounts(ctx context.Context, jar identity.CookieJar, dev identity.Device, notifyURL string, accounts []Account) ([]Entry, error) {
	if notifyURL == "" {
		return nil, ErrNoNotifyURL
	}

	linked := make([]model.Subscription, 0, len(accounts))
	err := d.store.Atomic(ctx, func(tx store.Store) error {
		for _, acct := range accounts {
			sub := model.Subscription{
				DeviceID:    dev.ID,
				NotifyURL:   notifyURL,
				AccountID:   acct.AccountID,
				AccountName: acct.AccountName,
				UserEmail:   acct.UserEmail,
				UserName:    acct.UserName,
				UserID:      acct.UserID,
			}
			if err := tx.Upsert(ctx, &sub); err != nil {
				return err
			}
			linked = append(linked, sub)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("directory: link accounts: %w", err)
	}

	d.ids.SetOptIn(jar, true)
	d.log.Info("linked accounts", zap.String("device", dev.ID), zap.Int("accounts", len(linked)))
	return project(linked), nil
}

// Withdraw deletes every subscription of the device and turns the flag off.
func (d *Directory) Withdraw(ctx context.Context, jar identity.CookieJar, dev identity.Device) (int, error) {
	dev.OptIn = false
	res, err := d.Reconcile(ctx, jar, dev, "")
	if err != nil {
		return 0, err
	}
	return res.Deleted, nil
}

func project(subs []model.Subscription) []Entry {
	entries := make([]Entry, 0, len(subs))
	for _, s := range subs {
		entries = append(entries, Entry{
			NotifyURL:   s.NotifyURL,
			AccountID:   s.AccountID,
			AccountName: s.AccountName,
			UserEmail:   s.UserEmail,
			UserName:    s.UserName,
			UserID:      s.UserID,
		})
	}
	return entries
}
