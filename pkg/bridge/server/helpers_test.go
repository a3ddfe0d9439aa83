// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stacklok/discord-oidc-bridge/pkg/bridge/flow"
	"github.com/stacklok/discord-oidc-bridge/pkg/bridge/keys"
	"github.com/stacklok/discord-oidc-bridge/pkg/bridge/storage"
	"github.com/stacklok/discord-oidc-bridge/pkg/bridge/upstream"
)

const (
	testIssuer       = "https://bridge.example.com"
	testClientID     = "rp-client"
	testClientSecret = "rp-secret"
	testRedirectURI  = "https://rp.example.com/cb"
)

// fakeUpstream is a hand-written upstream IdP for endpoint tests.
type fakeUpstream struct {
	user   *upstream.User
	tokens *upstream.Tokens
	member *upstream.GuildMember

	exchangeErr error
	userErr     error

	lastState       string
	lastGuildScopes bool
}

func (f *fakeUpstream) AuthorizationURL(state string, withGuildScopes bool) (string, error) {
	f.lastState = state
	f.lastGuildScopes = withGuildScopes
	return "https://idp.example.com/oauth2/authorize?state=" + url.QueryEscape(state), nil
}

func (f *fakeUpstream) ExchangeCode(_ context.Context, _ string) (*upstream.Tokens, error) {
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return f.tokens, nil
}

func (f *fakeUpstream) UserInfo(_ context.Context, _ string) (*upstream.User, error) {
	if f.userErr != nil {
		return nil, f.userErr
	}
	return f.user, nil
}

func (f *fakeUpstream) GuildMember(_ context.Context, _, _ string) (*upstream.GuildMember, error) {
	return f.member, nil
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		user: &upstream.User{
			ID:         "100",
			Username:   "alice",
			GlobalName: "Alice",
			Avatar:     "abcdef",
			Email:      "alice@example.com",
			Verified:   true,
			Locale:     "en-US",
		},
		tokens: &upstream.Tokens{AccessToken: "discord-token", TokenType: "Bearer"},
		member: &upstream.GuildMember{Roles: []string{"role-a"}},
	}
}

type testServer struct {
	handler  *Handler
	upstream *fakeUpstream
	keys     *keys.Provider
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := storage.NewMemoryStorage(storage.Config{
		SessionTTL: time.Minute,
		CodeTTL:    time.Minute,
		TokenTTL:   time.Minute,
	})
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	provider, err := keys.NewProvider(key)
	require.NoError(t, err)
	signer, err := keys.NewSigner(provider, testIssuer, testClientID)
	require.NoError(t, err)

	fake := newFakeUpstream()
	orchestrator, err := flow.NewOrchestrator(
		store,
		fake,
		flow.NewResolver(fake, "guild-1"),
		signer,
		time.Hour,
	)
	require.NoError(t, err)

	return &testServer{
		handler:  NewHandler(orchestrator, provider, testIssuer, testClientID, testClientSecret),
		upstream: fake,
		keys:     provider,
	}
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.handler.Routes().ServeHTTP(rec, req)
	return rec
}

// authorize runs a valid /authorize request and returns the upstream state
// the fake captured.
func (ts *testServer) authorize(t *testing.T, scope string) string {
	t.Helper()

	rec := ts.do(httptest.NewRequest(http.MethodGet, authorizeURL(scope), nil))
	require.Equal(t, http.StatusFound, rec.Code)
	require.NotEmpty(t, ts.upstream.lastState)
	return ts.upstream.lastState
}

// callback completes the upstream callback and returns the OIDC code
// delivered to the relying party.
func (ts *testServer) callback(t *testing.T, state string) string {
	t.Helper()

	rec := ts.do(httptest.NewRequest(http.MethodGet,
		"/callback?code=upstream-code&state="+url.QueryEscape(state), nil))
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	code := loc.Query().Get("code")
	require.NotEmpty(t, code)
	return code
}

func authorizeURL(scope string) string {
	q := url.Values{
		"response_type": {"code"},
		"client_id":     {testClientID},
		"redirect_uri":  {testRedirectURI},
		"scope":         {scope},
		"state":         {"rp-state"},
	}
	return "/authorize?" + q.Encode()
}
