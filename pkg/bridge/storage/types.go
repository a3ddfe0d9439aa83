// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package storage provides the ephemeral state store backing the
// authorization flow: pending sessions, minted authorization codes, and
// issued access-token records. All records are TTL-bounded; sessions and
// codes are additionally single-use.
package storage

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors returned by all backends.
var (
	// ErrNotFound indicates the key does not exist (never written, consumed,
	// or evicted). Callers must not distinguish this from ErrExpired when
	// reporting to clients.
	ErrNotFound = errors.New("record not found")

	// ErrExpired indicates the record existed but outlived its TTL.
	ErrExpired = errors.New("record expired")
)

// AccessTokenKeyPrefix namespaces access-token records within the store.
const AccessTokenKeyPrefix = "access_token:"

// Session tracks an authorization attempt between /authorize and the
// upstream callback. Exactly one Session exists per in-flight attempt.
type Session struct {
	// ClientState is the relying party's original state parameter, echoed
	// back on the final redirect.
	ClientState string `json:"client_state"`

	// ClientRedirectURI is where the relying party receives the OIDC code.
	ClientRedirectURI string `json:"client_redirect_uri"`

	// Scopes is the normalized OIDC scope set requested at /authorize. It is
	// propagated unchanged through the rest of the flow.
	Scopes []string `json:"scopes"`

	// CreatedAt is when the session was created.
	CreatedAt time.Time `json:"created_at"`
}

// UserProfile is the normalized upstream identity captured at callback time
// and embedded in the authorization-code record.
type UserProfile struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name,omitempty"`
	Avatar     string `json:"avatar,omitempty"`
	Email      string `json:"email,omitempty"`
	Verified   bool   `json:"verified,omitempty"`
	Locale     string `json:"locale,omitempty"`
}

// AuthorizationCode is the state behind a minted OIDC authorization code.
// Created on a successful upstream callback, consumed exactly once on token
// exchange.
type AuthorizationCode struct {
	// User is the upstream identity authenticated for this code.
	User UserProfile `json:"user"`

	// UpstreamAccessToken is the upstream IdP bearer token obtained during
	// the callback, carried forward for claims resolution.
	UpstreamAccessToken string `json:"upstream_access_token"`

	// Scopes is the granted scope set, propagated from the session.
	Scopes []string `json:"scopes"`

	// CreatedAt is when the code was minted.
	CreatedAt time.Time `json:"created_at"`
}

// AccessTokenRecord is the state behind an issued opaque access token. Read
// non-destructively on every /userinfo call; expires passively via TTL.
type AccessTokenRecord struct {
	// UpstreamAccessToken is the upstream IdP bearer token used to resolve
	// claims on /userinfo.
	UpstreamAccessToken string `json:"upstream_access_token"`

	// Scopes is the granted scope set, propagated from the code.
	Scopes []string `json:"scopes"`

	// CreatedAt is when the token was issued.
	CreatedAt time.Time `json:"created_at"`
}

// Config carries the TTLs every backend enforces.
type Config struct {
	// SessionTTL bounds pending sessions.
	SessionTTL time.Duration

	// CodeTTL bounds authorization codes.
	CodeTTL time.Duration

	// TokenTTL bounds access-token records.
	TokenTTL time.Duration
}

// Storage is the store contract used by the authorization flow.
//
// Consume* operations are single-consumer: the read and the delete happen
// atomically with respect to other consumers of the same key (GETDEL on
// Redis, mutex-guarded delete in memory), so a code or session can be
// redeemed at most once even under concurrent requests.
type Storage interface {
	// StoreSession persists a pending session under the given id.
	StoreSession(ctx context.Context, sessionID string, session *Session) error

	// ConsumeSession atomically retrieves and deletes a pending session.
	// Returns ErrNotFound (or ErrExpired) if absent, consumed, or stale.
	ConsumeSession(ctx context.Context, sessionID string) (*Session, error)

	// StoreAuthorizationCode persists authorization-code state.
	StoreAuthorizationCode(ctx context.Context, code string, record *AuthorizationCode) error

	// ConsumeAuthorizationCode atomically retrieves and deletes code state.
	ConsumeAuthorizationCode(ctx context.Context, code string) (*AuthorizationCode, error)

	// StoreAccessToken persists an access-token record.
	StoreAccessToken(ctx context.Context, token string, record *AccessTokenRecord) error

	// GetAccessToken retrieves an access-token record without deleting it.
	GetAccessToken(ctx context.Context, token string) (*AccessTokenRecord, error)

	// Ping checks backend health.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
