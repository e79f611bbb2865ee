package ops

import (
	"context"

	"go.uber.org/zap"

	"github.com/larrykluger/push-notifications-docusign/internal/directory"
	"github.com/larrykluger/push-notifications-docusign/internal/dispatch"
	"github.com/larrykluger/push-notifications-docusign/internal/envelope"
	"github.com/larrykluger/push-notifications-docusign/internal/identity"
)

// Subscribe authenticates the caller and links every account of the login
// to the device's notification channel.
type Subscribe struct {
	ids      *identity.Manager
	dir      *directory.Directory
	accounts Authenticator
	log      *zap.Logger
}

func (h *Subscribe) Op() string { return OpSubscribe }

func (h *Subscribe) Serve(ctx context.Context, call *dispatch.Call) (envelope.Envelope, error) {
	p := call.Payload
	if env, ok := checkCredentials(p); !ok {
		return env, nil
	}
	if p.NotifyURL == "" {
		return envelope.Invalid("Please provide the notification channel", "notify_url"), nil
	}

	accounts, refusal, err := login(ctx, h.accounts, p)
	if err != nil {
		return envelope.Envelope{}, err
	}
	if refusal != nil {
		return *refusal, nil
	}

	dev := h.ids.Establish(call.Jar)
	linked := make([]directory.Account, 0, len(accounts))
	for _, a := range accounts {
		linked = append(linked, directory.Account{
			AccountID:   a.AccountID,
			AccountName: a.Name,
			UserEmail:   a.Email,
			UserName:    a.UserName,
			UserID:      a.UserID,
		})
	}

	entries, err := h.dir.LinkAccounts(ctx, call.Jar, dev, p.NotifyURL, linked)
	if err != nil {
		return envelope.Envelope{}, err
	}
	h.log.Info("device subscribed", zap.String("device", dev.ID), zap.Int("accounts", len(entries)))
	return envelope.OK("Notifications are on", entries), nil
}
