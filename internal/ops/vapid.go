package ops

import (
	"context"

	"github.com/larrykluger/push-notifications-docusign/internal/dispatch"
	"github.com/larrykluger/push-notifications-docusign/internal/envelope"
)

// VAPIDKey returns the public key browsers need to create a push channel.
type VAPIDKey struct {
	publicKey string
}

func (h *VAPIDKey) Op() string { return OpVAPIDKey }

func (h *VAPIDKey) Serve(context.Context, *dispatch.Call) (envelope.Envelope, error) {
	if h.publicKey == "" {
		return envelope.Unavailable("vapid keys are not configured"), nil
	}
	return envelope.OK("", map[string]string{"public_key": h.publicKey}), nil
}
