// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStorage(t *testing.T, cfg Config) (*RedisStorage, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStorageWithClient(client, "bridge:", cfg)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})

	return s, mr
}

func TestRedisStorage_SessionLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, mr := newTestRedisStorage(t, testConfig())

	session := &Session{
		ClientState:       "client-state",
		ClientRedirectURI: "https://rp.example.com/cb",
		Scopes:            []string{"openid"},
		CreatedAt:         time.Now(),
	}
	require.NoError(t, s.StoreSession(ctx, "sess-1", session))

	// Keys are namespaced by prefix and record type.
	assert.True(t, mr.Exists("bridge:session:sess-1"))

	got, err := s.ConsumeSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "client-state", got.ClientState)
	assert.Equal(t, []string{"openid"}, got.Scopes)

	// GETDEL removed the key; a second consume fails.
	assert.False(t, mr.Exists("bridge:session:sess-1"))
	_, err = s.ConsumeSession(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStorage_SessionTTL(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, mr := newTestRedisStorage(t, testConfig())

	require.NoError(t, s.StoreSession(ctx, "sess-1", &Session{CreatedAt: time.Now()}))

	mr.FastForward(2 * time.Minute)

	_, err := s.ConsumeSession(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStorage_StaleRecordRejected(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := newTestRedisStorage(t, testConfig())

	// A record whose CreatedAt predates the TTL window is rejected even if
	// Redis has not evicted it yet (writer clock drift).
	stale := &Session{CreatedAt: time.Now().Add(-2 * time.Minute)}
	require.NoError(t, s.StoreSession(ctx, "sess-1", stale))

	_, err := s.ConsumeSession(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrExpired)
}

func TestRedisStorage_AuthorizationCodeLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := newTestRedisStorage(t, testConfig())

	record := &AuthorizationCode{
		User:                UserProfile{ID: "100", Username: "alice", Email: "alice@example.com"},
		UpstreamAccessToken: "discord-token",
		Scopes:              []string{"openid", "guild"},
		CreatedAt:           time.Now(),
	}
	require.NoError(t, s.StoreAuthorizationCode(ctx, "code-1", record))

	got, err := s.ConsumeAuthorizationCode(ctx, "code-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.User.Username)
	assert.Equal(t, []string{"openid", "guild"}, got.Scopes)

	_, err = s.ConsumeAuthorizationCode(ctx, "code-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStorage_AccessTokenReads(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, mr := newTestRedisStorage(t, testConfig())

	record := &AccessTokenRecord{
		UpstreamAccessToken: "discord-token",
		Scopes:              []string{"openid"},
		CreatedAt:           time.Now(),
	}
	require.NoError(t, s.StoreAccessToken(ctx, "tok-1", record))
	assert.True(t, mr.Exists("bridge:access_token:tok-1"))

	for range 3 {
		got, err := s.GetAccessToken(ctx, "tok-1")
		require.NoError(t, err)
		assert.Equal(t, "discord-token", got.UpstreamAccessToken)
	}

	mr.FastForward(2 * time.Minute)
	_, err := s.GetAccessToken(ctx, "tok-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStorage_EmptyKeysRejected(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := newTestRedisStorage(t, testConfig())

	assert.Error(t, s.StoreSession(ctx, "", &Session{}))
	assert.Error(t, s.StoreAuthorizationCode(ctx, "", &AuthorizationCode{}))
	assert.Error(t, s.StoreAccessToken(ctx, "", &AccessTokenRecord{}))
}
