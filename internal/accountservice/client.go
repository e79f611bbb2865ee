// Package accountservice authenticates users against the DocuSign REST API
// and lists the accounts their login can reach.
package accountservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/carlmjohnson/requests"
	"go.uber.org/zap"
)

const (
	DefaultVersion     = "v2"
	DefaultEnvironment = "demo"
	DefaultTimeout     = 30 * time.Second

	authHeader = "X-DocuSign-Authentication"
)

// ErrNoAccounts is returned when a login succeeds but reaches no account.
var ErrNoAccounts = errors.New("no accounts are available for this login")

// Error is a failure reported by the account service itself.
type Error struct {
	Code    string `json:"errorCode"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Message
}

// Account is one account reachable by an authenticated login.
type Account struct {
	AccountID string `json:"accountId"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	UserName  string `json:"userName"`
	UserID    string `json:"userId"`
	BaseURL   string `json:"baseUrl"`
	IsDefault bool   `json:"isDefault,string"`
}

type loginInformation struct {
	LoginAccounts []Account `json:"loginAccounts"`
}

// Options configures a Client.
type Options struct {
	IntegratorKey string
	Version       string
	// Environment picks the host, e.g. "demo" or "www".
	Environment string
	// BaseURL overrides the host derived from Environment.
	BaseURL   string
	HTTPProxy string
	Timeout   time.Duration
}

// Client talks to the account service's login endpoint.
type Client struct {
	opts   Options
	base   string
	client *http.Client
	log    *zap.Logger
}

func NewClient(opts Options, log *zap.Logger) *Client {
	if opts.Version == "" {
		opts.Version = DefaultVersion
	}
	if opts.Environment == "" {
		opts.Environment = DefaultEnvironment
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	base := opts.BaseURL
	if base == "" {
		base = fmt.Sprintf("https://%s.docusign.net", opts.Environment)
	}

	var transport http.RoundTripper = http.DefaultTransport
	if opts.HTTPProxy != "" {
		proxyURL, err := url.Parse(opts.HTTPProxy)
		if err != nil {
			log.Warn("invalid proxy url, account service calls will not use a proxy",
				zap.String("proxy", opts.HTTPProxy), zap.Error(err))
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	return &Client{
		opts: opts,
		base: strings.TrimRight(base, "/"),
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
		log: log,
	}
}

// Authenticate verifies the credentials and returns the login's accounts.
// A rejection by the service is returned as *Error.
func (c *Client) Authenticate(ctx context.Context, email, password string) ([]Account, error) {
	creds, err := json.Marshal(struct {
		Username      string
		Password      string
		IntegratorKey string
	}{email, password, c.opts.IntegratorKey})
	if err != nil {
		return nil, fmt.Errorf("accountservice: encode credentials: %w", err)
	}

	var (
		info   loginInformation
		apiErr Error
	)
	err = requests.
		URL(fmt.Sprintf("%s/restapi/%s/login_information", c.base, c.opts.Version)).
		Client(c.client).
		Accept("application/json").
		Header(authHeader, string(creds)).
		AddValidator(requests.ValidatorHandler(requests.DefaultValidator, requests.ToJSON(&apiErr))).
		ToJSON(&info).
		Fetch(ctx)
	if err != nil {
		if apiErr.Code != "" || apiErr.Message != "" {
			c.log.Info("account service rejected login", zap.String("code", apiErr.Code))
			return nil, &apiErr
		}
		return nil, fmt.Errorf("accountservice: login information: %w", err)
	}

	if len(info.LoginAccounts) == 0 {
		return nil, ErrNoAccounts
	}
	c.log.Debug("login information fetched", zap.Int("accounts", len(info.LoginAccounts)))
	return info.LoginAccounts, nil
}
