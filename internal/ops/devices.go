package ops

import (
	"context"

	"github.com/larrykluger/push-notifications-docusign/internal/directory"
	"github.com/larrykluger/push-notifications-docusign/internal/dispatch"
	"github.com/larrykluger/push-notifications-docusign/internal/envelope"
	"github.com/larrykluger/push-notifications-docusign/internal/identity"
)

// Refresh brings the device's subscriptions in line with its opt-in flag.
type Refresh struct {
	ids *identity.Manager
	dir *directory.Directory
}

func (h *Refresh) Op() string { return OpRefresh }

func (h *Refresh) Serve(ctx context.Context, call *dispatch.Call) (envelope.Envelope, error) {
	dev := h.ids.Establish(call.Jar)
	if dev.OptIn && call.Payload.NotifyURL == "" {
		return envelope.Invalid("Please provide the notification channel", "notify_url"), nil
	}

	res, err := h.dir.Reconcile(ctx, call.Jar, dev, call.Payload.NotifyURL)
	if err != nil {
		return envelope.Envelope{}, err
	}
	if res.OptIn {
		return envelope.OK("Notifications are on", res), nil
	}
	return envelope.OK("Notifications are off", res), nil
}

// Notifications lists the device's subscriptions.
type Notifications struct {
	ids *identity.Manager
	dir *directory.Directory
}

func (h *Notifications) Op() string { return OpNotifications }

func (h *Notifications) Serve(ctx context.Context, call *dispatch.Call) (envelope.Envelope, error) {
	dev := h.ids.Establish(call.Jar)
	entries, err := h.dir.List(ctx, dev)
	if err != nil {
		return envelope.Envelope{}, err
	}
	return envelope.OK("", entries), nil
}

// Unsubscribe removes every subscription of the device.
type Unsubscribe struct {
	ids *identity.Manager
	dir *directory.Directory
}

func (h *Unsubscribe) Op() string { return OpUnsubscribe }

func (h *Unsubscribe) Serve(ctx context.Context, call *dispatch.Call) (envelope.Envelope, error) {
	dev := h.ids.Establish(call.Jar)
	n, err := h.dir.Withdraw(ctx, call.Jar, dev)
	if err != nil {
		return envelope.Envelope{}, err
	}
	return envelope.OK("Notifications are off", directory.Result{Deleted: n}), nil
}
