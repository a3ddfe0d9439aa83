// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package flow

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stacklok/discord-oidc-bridge/pkg/bridge/keys"
	"github.com/stacklok/discord-oidc-bridge/pkg/bridge/storage"
	"github.com/stacklok/discord-oidc-bridge/pkg/bridge/upstream"
)

// fakeUpstream is a hand-written UpstreamClient for behavior tests.
type fakeUpstream struct {
	user   *upstream.User
	tokens *upstream.Tokens
	member *upstream.GuildMember

	exchangeErr error
	userErr     error
	memberErr   error

	lastState       string
	lastGuildScopes bool
	memberCalls     int
}

func (f *fakeUpstream) AuthorizationURL(state string, withGuildScopes bool) (string, error) {
	f.lastState = state
	f.lastGuildScopes = withGuildScopes
	return "https://idp.example.com/oauth2/authorize?state=" + state, nil
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
	f.memberCalls++
	if f.memberErr != nil {
		return nil, f.memberErr
	}
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
		tokens: &upstream.Tokens{
			AccessToken: "discord-token",
			TokenType:   "Bearer",
		},
		member: &upstream.GuildMember{
			Roles: []string{"role-a"},
		},
	}
}

func newTestStorage(t *testing.T) *storage.MemoryStorage {
	t.Helper()
	s := storage.NewMemoryStorage(storage.Config{
		SessionTTL: time.Minute,
		CodeTTL:    time.Minute,
		TokenTTL:   time.Minute,
	})
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})
	return s
}

func newTestSigner(t *testing.T) (*keys.Signer, *keys.Provider) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	provider, err := keys.NewProvider(key)
	require.NoError(t, err)
	signer, err := keys.NewSigner(provider, "https://bridge.example.com", "rp-client")
	require.NoError(t, err)
	return signer, provider
}

func newTestOrchestrator(t *testing.T, fake *fakeUpstream, guildID string) *Orchestrator {
	t.Helper()
	signer, _ := newTestSigner(t)
	o, err := NewOrchestrator(
		newTestStorage(t),
		fake,
		NewResolver(fake, guildID),
		signer,
		time.Hour,
	)
	require.NoError(t, err)
	return o
}
