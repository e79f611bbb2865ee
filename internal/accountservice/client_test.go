package accountservice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Options{IntegratorKey: "key-123", BaseURL: server.URL}, zap.NewNop())
}

func TestAuthenticate_Success(t *testing.T) {
	var gotCreds map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/restapi/v2/login_information", r.URL.Path)
		require.NoError(t, json.Unmarshal([]byte(r.Header.Get(authHeader)), &gotCreds))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"loginAccounts":[
			{"accountId":"1","name":"Acme","email":"joe@example.com","userName":"Joe","userId":"u1","baseUrl":"https://demo.docusign.net/restapi/v2/accounts/1","isDefault":"true"},
			{"accountId":"2","name":"Widgets","email":"joe@example.com","userName":"Joe","userId":"u1","isDefault":"false"}]}`))
	})

	accounts, err := c.Authenticate(context.Background(), "joe@example.com", "secret")
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "Acme", accounts[0].Name)
	assert.True(t, accounts[0].IsDefault)
	assert.False(t, accounts[1].IsDefault)
	assert.Equal(t, map[string]string{"Username": "joe@example.com", "Password": "secret", "IntegratorKey": "key-123"}, gotCreds)
}

func TestAuthenticate_Rejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errorCode":"USER_AUTHENTICATION_FAILED","message":"invalid credentials"}`))
	})

	_, err := c.Authenticate(context.Background(), "joe@example.com", "wrong")
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "USER_AUTHENTICATION_FAILED", apiErr.Code)
	assert.Equal(t, "invalid credentials", err.Error())
}

func TestAuthenticate_ServerErrorWithoutBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.Authenticate(context.Background(), "joe@example.com", "secret")
	require.Error(t, err)
	var apiErr *Error
	assert.False(t, errors.As(err, &apiErr))
}

func TestAuthenticate_NoAccounts(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"loginAccounts":[]}`))
	})

	_, err := c.Authenticate(context.Background(), "joe@example.com", "secret")
	assert.ErrorIs(t, err, ErrNoAccounts)
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(Options{Environment: "www", HTTPProxy: "://bad"}, zap.NewNop())
	assert.Equal(t, "https://www.docusign.net", c.base)
	assert.Equal(t, DefaultVersion, c.opts.Version)
	assert.Equal(t, DefaultTimeout, c.client.Timeout)
	assert.Equal(t, http.DefaultTransport, c.client.Transport)
}
