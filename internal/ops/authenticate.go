package ops

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/larrykluger/push-notifications-docusign/internal/accountservice"
	"github.com/larrykluger/push-notifications-docusign/internal/dispatch"
	"github.com/larrykluger/push-notifications-docusign/internal/envelope"
)

const upstreamPrefix = "DocuSign problem: "

// LoginAccount is an account returned to the browser after authenticating.
type LoginAccount struct {
	AccountID   string `json:"account_id"`
	AccountName string `json:"account_name"`
	UserEmail   string `json:"user_email"`
	UserName    string `json:"user_name"`
	UserID      string `json:"user_id"`
	IsDefault   bool   `json:"is_default"`
}

// Authenticate checks an email and password with the account service and
// lists the accounts the login can reach.
type Authenticate struct {
	accounts Authenticator
	log      *zap.Logger
}

func (h *Authenticate) Op() string { return OpAuthenticate }

func (h *Authenticate) Serve(ctx context.Context, call *dispatch.Call) (envelope.Envelope, error) {
	if env, ok := checkCredentials(call.Payload); !ok {
		return env, nil
	}

	accounts, refusal, err := login(ctx, h.accounts, call.Payload)
	if err != nil {
		return envelope.Envelope{}, err
	}
	if refusal != nil {
		return *refusal, nil
	}

	h.log.Info("authenticated", zap.Int("accounts", len(accounts)))
	listing := toLoginAccounts(accounts)
	return envelope.OK("Login information: "+describe(listing), listing), nil
}

// checkCredentials reports the missing credential fields, if any.
func checkCredentials(p dispatch.Payload) (envelope.Envelope, bool) {
	var missing []string
	if p.Email == "" {
		missing = append(missing, "email")
	}
	if p.Password == "" {
		missing = append(missing, "pw")
	}
	switch len(missing) {
	case 0:
		return envelope.Envelope{}, true
	case 2:
		return envelope.Invalid("Please enter your email address and password", missing...), false
	}
	if missing[0] == "email" {
		return envelope.Invalid("Please enter your email address", missing...), false
	}
	return envelope.Invalid("Please enter your password", missing...), false
}

// login authenticates the payload's credentials. When the account service
// refuses them it returns the envelope to send instead. Only a cancelled
// request is returned as an error.
func login(ctx context.Context, auth Authenticator, p dispatch.Payload) ([]accountservice.Account, *envelope.Envelope, error) {
	accounts, err := auth.Authenticate(ctx, p.Email, p.Password)
	if err == nil {
		return accounts, nil, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, nil, fmt.Errorf("authenticate: %w", ctxErr)
	}
	refusal := envelope.Invalid(upstreamPrefix+err.Error(), "pw")
	return nil, &refusal, nil
}

func toLoginAccounts(accounts []accountservice.Account) []LoginAccount {
	out := make([]LoginAccount, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, LoginAccount{
			AccountID:   a.AccountID,
			AccountName: a.Name,
			UserEmail:   a.Email,
			UserName:    a.UserName,
			UserID:      a.UserID,
			IsDefault:   a.IsDefault,
		})
	}
	return out
}

func describe(accounts []LoginAccount) string {
	parts := make([]string, 0, len(accounts))
	for _, a := range accounts {
		p := fmt.Sprintf("%s (%s) as %s <%s>", a.AccountName, a.AccountID, a.UserName, a.UserEmail)
		if a.IsDefault {
			p += " [default]"
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, "; ")
}
