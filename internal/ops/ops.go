// Package ops holds the handlers for every API operation.
package ops

import (
	"context"

	"go.uber.org/zap"

	"github.com/larrykluger/push-notifications-docusign/internal/accountservice"
	"github.com/larrykluger/push-notifications-docusign/internal/directory"
	"github.com/larrykluger/push-notifications-docusign/internal/dispatch"
	"github.com/larrykluger/push-notifications-docusign/internal/identity"
)

// Operation names.
const (
	OpAuthenticate  = "authenticate"
	OpRefresh       = "refresh"
	OpNotifications = "notifications"
	OpSubscribe     = "subscribe"
	OpUnsubscribe   = "unsubscribe"
	OpVAPIDKey      = "vapid_key"
)

// Authenticator checks credentials with the account service.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) ([]accountservice.Account, error)
}

// Deps are the collaborators shared by the handlers.
type Deps struct {
	Identities     *identity.Manager
	Directory      *directory.Directory
	Accounts       Authenticator
	VAPIDPublicKey string
	Log            *zap.Logger
}

// Handlers returns one handler per operation, in the order they are registered.
func Handlers(d Deps) []dispatch.Handler {
	return []dispatch.Handler{
		&Authenticate{accounts: d.Accounts, log: d.Log},
		&Refresh{ids: d.Identities, dir: d.Directory},
		&Notifications{ids: d.Identities, dir: d.Directory},
		&Subscribe{ids: d.Identities, dir: d.Directory, accounts: d.Accounts, log: d.Log},
		&Unsubscribe{ids: d.Identities, dir: d.Directory},
		&VAPIDKey{publicKey: d.VAPIDPublicKey},
	}
}
