// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"sync"
	"time"
)

// DefaultCleanupInterval is how often the background cleanup runs.
const DefaultCleanupInterval = 5 * time.Minute

// timedEntry wraps a value with its expiry for TTL tracking.
type timedEntry[T any] struct {
	value     T
	expiresAt time.Time
}

func (e *timedEntry[T]) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// MemoryStorage implements Storage with in-memory maps. It is thread-safe
// and suitable for single-instance deployments and tests; use RedisStorage
// when running more than one replica.
type MemoryStorage struct {
	mu sync.Mutex

	cfg Config

	sessions     map[string]*timedEntry[*Session]
	codes        map[string]*timedEntry[*AuthorizationCode]
	accessTokens map[string]*timedEntry[*AccessTokenRecord]

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	cleanupDone     chan struct{}
}

// MemoryStorageOption configures a MemoryStorage instance.
type MemoryStorageOption func(*MemoryStorage)

// WithCleanupInterval sets a custom cleanup interval.
func WithCleanupInterval(interval time.Duration) MemoryStorageOption {
	return func(s *MemoryStorage) {
		s.cleanupInterval = interval
	}
}

// NewMemoryStorage creates a MemoryStorage and starts its background cleanup
// goroutine. Call Close to stop it.
func NewMemoryStorage(cfg Config, opts ...MemoryStorageOption) *MemoryStorage {
	s := &MemoryStorage{
		cfg:             cfg,
		sessions:        make(map[string]*timedEntry[*Session]),
		codes:           make(map[string]*timedEntry[*AuthorizationCode]),
		accessTokens:    make(map[string]*timedEntry[*AccessTokenRecord]),
		cleanupInterval: DefaultCleanupInterval,
		stopCleanup:     make(chan struct{}),
		cleanupDone:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	go s.cleanupLoop()

	return s
}

// Close stops the background cleanup goroutine.
func (s *MemoryStorage) Close() error {
	close(s.stopCleanup)
	<-s.cleanupDone
	return nil
}

// Ping always succeeds for the in-memory backend.
func (*MemoryStorage) Ping(_ context.Context) error {
	return nil
}

func (s *MemoryStorage) cleanupLoop() {
	defer close(s.cleanupDone)

	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCleanup:
			return
		case <-ticker.C:
			s.cleanupExpired()
		}
	}
}

func (s *MemoryStorage) cleanupExpired() {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, e := range s.sessions {
		if e.expired(now) {
			delete(s.sessions, k)
		}
	}
	for k, e := range s.codes {
		if e.expired(now) {
			delete(s.codes, k)
		}
	}
	for k, e := range s.accessTokens {
		if e.expired(now) {
			delete(s.accessTokens, k)
		}
	}
}

// StoreSession persists a pending session with the configured session TTL.
func (s *MemoryStorage) StoreSession(_ context.Context, sessionID string, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sessionID] = &timedEntry[*Session]{
		value:     session,
		expiresAt: time.Now().Add(s.cfg.SessionTTL),
	}
	return nil
}

// ConsumeSession retrieves and deletes a pending session under one lock, so
// at most one caller observes it.
func (s *MemoryStorage) ConsumeSession(_ context.Context, sessionID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.sessions, sessionID)

	if entry.expired(time.Now()) {
		return nil, ErrExpired
	}
	return entry.value, nil
}

// StoreAuthorizationCode persists code state with the configured code TTL.
func (s *MemoryStorage) StoreAuthorizationCode(_ context.Context, code string, record *AuthorizationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.codes[code] = &timedEntry[*AuthorizationCode]{
		value:     record,
		expiresAt: time.Now().Add(s.cfg.CodeTTL),
	}
	return nil
}

// ConsumeAuthorizationCode retrieves and deletes code state under one lock.
func (s *MemoryStorage) ConsumeAuthorizationCode(_ context.Context, code string) (*AuthorizationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.codes[code]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.codes, code)

	if entry.expired(time.Now()) {
		return nil, ErrExpired
	}
	return entry.value, nil
}

// StoreAccessToken persists an access-token record with the token TTL.
func (s *MemoryStorage) StoreAccessToken(_ context.Context, token string, record *AccessTokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accessTokens[AccessTokenKeyPrefix+token] = &timedEntry[*AccessTokenRecord]{
		value:     record,
		expiresAt: time.Now().Add(s.cfg.TokenTTL),
	}
	return nil
}

// GetAccessToken retrieves an access-token record without deleting it.
func (s *MemoryStorage) GetAccessToken(_ context.Context, token string) (*AccessTokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.accessTokens[AccessTokenKeyPrefix+token]
	if !ok {
		return nil, ErrNotFound
	}
	if entry.expired(time.Now()) {
		delete(s.accessTokens, AccessTokenKeyPrefix+token)
		return nil, ErrExpired
	}
	return entry.value, nil
}

// Compile-time interface check.
var _ Storage = (*MemoryStorage)(nil)
