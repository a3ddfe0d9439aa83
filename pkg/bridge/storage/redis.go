// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Default timeouts for Redis operations.
const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultReadTimeout  = 3 * time.Second
	DefaultWriteTimeout = 3 * time.Second
)

// Key-type segments for Redis keys: "<prefix><type><id>".
const (
	keyTypeSession = "session:"
	keyTypeCode    = "code:"
)

// RedisConfig holds the Redis connection configuration.
type RedisConfig struct {
	// URL is the redis:// connection URL.
	URL string

	// KeyPrefix namespaces all keys, e.g. "discord-oidc:".
	KeyPrefix string

	// Timeouts (zero values get the package defaults).
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RedisStorage implements Storage against Redis, enabling multiple bridge
// replicas to share flow state. TTLs are enforced natively by Redis; a
// defensive staleness check on read covers clock drift between writers.
//
// Single-use consumption relies on GETDEL, so concurrent redemptions of the
// same session or code cannot both succeed.
type RedisStorage struct {
	client    redis.UniversalClient
	cfg       Config
	keyPrefix string
}

// NewRedisStorage creates a RedisStorage from the given configuration and
// verifies connectivity with a ping.
func NewRedisStorage(ctx context.Context, redisCfg RedisConfig, cfg Config) (*RedisStorage, error) {
	opts, err := redis.ParseURL(redisCfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	opts.DialTimeout = redisCfg.DialTimeout
	if opts.DialTimeout == 0 {
		opts.DialTimeout = DefaultDialTimeout
	}
	opts.ReadTimeout = redisCfg.ReadTimeout
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}
	opts.WriteTimeout = redisCfg.WriteTimeout
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisStorage{
		client:    client,
		cfg:       cfg,
		keyPrefix: redisCfg.KeyPrefix,
	}, nil
}

// NewRedisStorageWithClient wraps an existing client. Used by tests.
func NewRedisStorageWithClient(client redis.UniversalClient, keyPrefix string, cfg Config) *RedisStorage {
	return &RedisStorage{
		client:    client,
		cfg:       cfg,
		keyPrefix: keyPrefix,
	}
}

// Close closes the Redis connection.
func (s *RedisStorage) Close() error {
	return s.client.Close()
}

// Ping checks Redis connectivity.
func (s *RedisStorage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStorage) key(keyType, id string) string {
	return s.keyPrefix + keyType + id
}

func (s *RedisStorage) put(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

// consume atomically reads and deletes key via GETDEL.
func (s *RedisStorage) consume(ctx context.Context, key string, out any) error {
	data, err := s.client.GetDel(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to consume record: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return nil
}

// StoreSession persists a pending session with the configured session TTL.
func (s *RedisStorage) StoreSession(ctx context.Context, sessionID string, session *Session) error {
	if sessionID == "" {
		return fmt.Errorf("session id cannot be empty")
	}
	return s.put(ctx, s.key(keyTypeSession, sessionID), session, s.cfg.SessionTTL)
}

// ConsumeSession atomically retrieves and deletes a pending session.
func (s *RedisStorage) ConsumeSession(ctx context.Context, sessionID string) (*Session, error) {
	var session Session
	if err := s.consume(ctx, s.key(keyTypeSession, sessionID), &session); err != nil {
		return nil, err
	}

	// TTL should handle this, but double-check against writer clock drift.
	if time.Since(session.CreatedAt) > s.cfg.SessionTTL {
		return nil, ErrExpired
	}
	return &session, nil
}

// StoreAuthorizationCode persists code state with the configured code TTL.
func (s *RedisStorage) StoreAuthorizationCode(ctx context.Context, code string, record *AuthorizationCode) error {
	if code == "" {
		return fmt.Errorf("code cannot be empty")
	}
	return s.put(ctx, s.key(keyTypeCode, code), record, s.cfg.CodeTTL)
}

// ConsumeAuthorizationCode atomically retrieves and deletes code state.
func (s *RedisStorage) ConsumeAuthorizationCode(ctx context.Context, code string) (*AuthorizationCode, error) {
	var record AuthorizationCode
	if err := s.consume(ctx, s.key(keyTypeCode, code), &record); err != nil {
		return nil, err
	}

	if time.Since(record.CreatedAt) > s.cfg.CodeTTL {
		return nil, ErrExpired
	}
	return &record, nil
}

// StoreAccessToken persists an access-token record with the token TTL.
func (s *RedisStorage) StoreAccessToken(ctx context.Context, token string, record *AccessTokenRecord) error {
	if token == "" {
		return fmt.Errorf("token cannot be empty")
	}
	return s.put(ctx, s.key(AccessTokenKeyPrefix, token), record, s.cfg.TokenTTL)
}

// GetAccessToken retrieves an access-token record without deleting it.
func (s *RedisStorage) GetAccessToken(ctx context.Context, token string) (*AccessTokenRecord, error) {
	data, err := s.client.Get(ctx, s.key(AccessTokenKeyPrefix, token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get access token record: %w", err)
	}

	var record AccessTokenRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal access token record: %w", err)
	}

	if time.Since(record.CreatedAt) > s.cfg.TokenTTL {
		return nil, ErrExpired
	}
	return &record, nil
}

// Compile-time interface check.
var _ Storage = (*RedisStorage)(nil)
