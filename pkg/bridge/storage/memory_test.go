// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		SessionTTL: time.Minute,
		CodeTTL:    time.Minute,
		TokenTTL:   time.Minute,
	}
}

func newTestMemoryStorage(t *testing.T, cfg Config) *MemoryStorage {
	t.Helper()
	s := NewMemoryStorage(cfg)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})
	return s
}

func TestMemoryStorage_SessionLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestMemoryStorage(t, testConfig())

	session := &Session{
		ClientState:       "client-state",
		ClientRedirectURI: "https://rp.example.com/cb",
		Scopes:            []string{"openid", "guild"},
		CreatedAt:         time.Now(),
	}
	require.NoError(t, s.StoreSession(ctx, "sess-1", session))

	got, err := s.ConsumeSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "client-state", got.ClientState)
	assert.Equal(t, "https://rp.example.com/cb", got.ClientRedirectURI)
	assert.Equal(t, []string{"openid", "guild"}, got.Scopes)

	// Consumption is single-use.
	_, err = s.ConsumeSession(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStorage_ConsumeUnknownSession(t *testing.T) {
	t.Parallel()
	s := newTestMemoryStorage(t, testConfig())

	_, err := s.ConsumeSession(context.Background(), "never-stored")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStorage_SessionExpiry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cfg := testConfig()
	cfg.SessionTTL = 10 * time.Millisecond
	s := newTestMemoryStorage(t, cfg)

	require.NoError(t, s.StoreSession(ctx, "sess-1", &Session{CreatedAt: time.Now()}))
	time.Sleep(25 * time.Millisecond)

	_, err := s.ConsumeSession(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrExpired)

	// The expired entry was removed by the failed consume.
	_, err = s.ConsumeSession(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStorage_AuthorizationCodeLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestMemoryStorage(t, testConfig())

	record := &AuthorizationCode{
		User:                UserProfile{ID: "100", Username: "alice"},
		UpstreamAccessToken: "discord-token",
		Scopes:              []string{"openid"},
		CreatedAt:           time.Now(),
	}
	require.NoError(t, s.StoreAuthorizationCode(ctx, "code-1", record))

	got, err := s.ConsumeAuthorizationCode(ctx, "code-1")
	require.NoError(t, err)
	assert.Equal(t, "100", got.User.ID)
	assert.Equal(t, "discord-token", got.UpstreamAccessToken)

	_, err = s.ConsumeAuthorizationCode(ctx, "code-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStorage_AccessTokenReads(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestMemoryStorage(t, testConfig())

	record := &AccessTokenRecord{
		UpstreamAccessToken: "discord-token",
		Scopes:              []string{"openid", "email"},
		CreatedAt:           time.Now(),
	}
	require.NoError(t, s.StoreAccessToken(ctx, "tok-1", record))

	// Unlike sessions and codes, access tokens survive repeated reads.
	for range 3 {
		got, err := s.GetAccessToken(ctx, "tok-1")
		require.NoError(t, err)
		assert.Equal(t, "discord-token", got.UpstreamAccessToken)
	}

	_, err := s.GetAccessToken(ctx, "tok-2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStorage_AccessTokenExpiry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cfg := testConfig()
	cfg.TokenTTL = 10 * time.Millisecond
	s := newTestMemoryStorage(t, cfg)

	require.NoError(t, s.StoreAccessToken(ctx, "tok-1", &AccessTokenRecord{CreatedAt: time.Now()}))
	time.Sleep(25 * time.Millisecond)

	_, err := s.GetAccessToken(ctx, "tok-1")
	assert.ErrorIs(t, err, ErrExpired)
}

func TestMemoryStorage_CleanupRemovesExpiredEntries(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cfg := testConfig()
	cfg.SessionTTL = 5 * time.Millisecond
	s := NewMemoryStorage(cfg, WithCleanupInterval(10*time.Millisecond))
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})

	require.NoError(t, s.StoreSession(ctx, "sess-1", &Session{CreatedAt: time.Now()}))

	assert.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.sessions) == 0
	}, time.Second, 10*time.Millisecond)
}
