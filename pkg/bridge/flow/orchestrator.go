// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package flow implements the identity-bridging authorization flow: it drives
// a relying party's authorization-code exchange against the upstream IdP and
// mints the bridge's own codes and tokens along the way.
package flow

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/stacklok/discord-oidc-bridge/pkg/bridge/storage"
	"github.com/stacklok/discord-oidc-bridge/pkg/bridge/upstream"
)

// UpstreamClient is the upstream IdP surface the flow depends on.
type UpstreamClient interface {
	// AuthorizationURL builds the upstream authorization redirect carrying
	// our session id as the state parameter.
	AuthorizationURL(state string, withGuildScopes bool) (string, error)

	// ExchangeCode redeems an upstream authorization code for tokens.
	ExchangeCode(ctx context.Context, code string) (*upstream.Tokens, error)

	// UserInfo fetches the authenticated user's profile.
	UserInfo(ctx context.Context, accessToken string) (*upstream.User, error)

	// GuildMember fetches guild membership. A nil member with nil error means
	// no usable membership info.
	GuildMember(ctx context.Context, accessToken, guildID string) (*upstream.GuildMember, error)
}

// IDTokenSigner mints signed id tokens.
type IDTokenSigner interface {
	Sign(subject string, extra map[string]any, ttl time.Duration) (string, error)
}

// TokenResponse is the token endpoint's success payload.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	IDToken     string `json:"id_token"`
}

// ClientRedirect is where to send the user agent after a callback, successful
// or not.
type ClientRedirect struct {
	// RedirectURI is the relying party's registered redirect target.
	RedirectURI string

	// Params are the query parameters to append (code+state on success,
	// error+state on relayed upstream failure).
	Params url.Values
}

// URL renders the full redirect location, merging Params into any query
// string already present on the redirect URI.
func (r *ClientRedirect) URL() string {
	if len(r.Params) == 0 {
		return r.RedirectURI
	}
	u, err := url.Parse(r.RedirectURI)
	if err != nil {
		return r.RedirectURI + "?" + r.Params.Encode()
	}
	q := u.Query()
	for key, values := range r.Params {
		for _, value := range values {
			q.Add(key, value)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Orchestrator drives the bridged authorization flow end to end.
type Orchestrator struct {
	store    storage.Storage
	upstream UpstreamClient
	resolver *Resolver
	signer   IDTokenSigner
	tokenTTL time.Duration
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(
	store storage.Storage,
	upstreamClient UpstreamClient,
	resolver *Resolver,
	signer IDTokenSigner,
	tokenTTL time.Duration,
) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("storage is required")
	}
	if upstreamClient == nil {
		return nil, errors.New("upstream client is required")
	}
	if resolver == nil {
		return nil, errors.New("claims resolver is required")
	}
	if signer == nil {
		return nil, errors.New("id token signer is required")
	}
	if tokenTTL <= 0 {
		return nil, errors.New("token lifetime must be positive")
	}

	return &Orchestrator{
		store:    store,
		upstream: upstreamClient,
		resolver: resolver,
		signer:   signer,
		tokenTTL: tokenTTL,
	}, nil
}

// BeginAuthorization creates a pending session for the relying party's
// request and returns the upstream authorization URL to redirect to. The
// session write is awaited before the redirect is handed out, so the
// callback can never race an unwritten session.
func (o *Orchestrator) BeginAuthorization(ctx context.Context, clientState, clientRedirectURI, scope string) (string, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}

	scopes := ParseScopes(scope)
	session := &storage.Session{
		ClientState:       clientState,
		ClientRedirectURI: clientRedirectURI,
		Scopes:            scopes,
		CreatedAt:         time.Now(),
	}

	if err := o.store.StoreSession(ctx, sessionID, session); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}

	authURL, err := o.upstream.AuthorizationURL(sessionID, HasGuildScope(scopes))
	if err != nil {
		return "", fmt.Errorf("failed to build upstream authorization URL: %w", err)
	}

	slog.Debug("authorization started",
		"session_id", sessionID,
		"scopes", scopes,
	)

	return authURL, nil
}

// CompleteCallback handles a successful upstream callback: it consumes the
// pending session named by state, redeems the upstream code, captures the
// user's profile, mints a single-use authorization code, and returns the
// redirect that delivers it to the relying party.
func (o *Orchestrator) CompleteCallback(ctx context.Context, state, upstreamCode string) (*ClientRedirect, error) {
	session, err := o.consumeSession(ctx, state)
	if err != nil {
		return nil, err
	}

	tokens, err := o.upstream.ExchangeCode(ctx, upstreamCode)
	if err != nil {
		return nil, fmt.Errorf("upstream code exchange failed: %w", err)
	}

	user, err := o.upstream.UserInfo(ctx, tokens.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("upstream profile fetch failed: %w", err)
	}

	code := uuid.NewString()
	record := &storage.AuthorizationCode{
		User: storage.UserProfile{
			ID:         user.ID,
			Username:   user.Username,
			GlobalName: user.GlobalName,
			Avatar:     user.Avatar,
			Email:      user.Email,
			Verified:   user.Verified,
			Locale:     user.Locale,
		},
		UpstreamAccessToken: tokens.AccessToken,
		Scopes:              session.Scopes,
		CreatedAt:           time.Now(),
	}

	if err := o.store.StoreAuthorizationCode(ctx, code, record); err != nil {
		return nil, fmt.Errorf("failed to store authorization code: %w", err)
	}

	slog.Info("authorization code issued",
		"user_id", user.ID,
		"scopes", session.Scopes,
	)

	return &ClientRedirect{
		RedirectURI: session.ClientRedirectURI,
		Params: url.Values{
			"code":  {code},
			"state": {session.ClientState},
		},
	}, nil
}

// CancelAuthorization consumes the pending session named by state and returns
// the redirect that relays an upstream authorization error (for example
// access_denied) back to the relying party.
func (o *Orchestrator) CancelAuthorization(ctx context.Context, state, upstreamError, errorDescription string) (*ClientRedirect, error) {
	session, err := o.consumeSession(ctx, state)
	if err != nil {
		return nil, err
	}

	params := url.Values{
		"error": {upstreamError},
		"state": {session.ClientState},
	}
	if errorDescription != "" {
		params.Set("error_description", errorDescription)
	}

	slog.Info("authorization cancelled by upstream",
		"error", upstreamError,
	)

	return &ClientRedirect{
		RedirectURI: session.ClientRedirectURI,
		Params:      params,
	}, nil
}

// ExchangeToken redeems an authorization code for the bridge's tokens: it
// consumes the code record, resolves claims for the captured profile, signs
// an id token, and issues an opaque access token backed by a store record.
func (o *Orchestrator) ExchangeToken(ctx context.Context, code string) (*TokenResponse, error) {
	record, err := o.store.ConsumeAuthorizationCode(ctx, code)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrExpired) {
			return nil, ErrInvalidCode
		}
		return nil, fmt.Errorf("failed to consume authorization code: %w", err)
	}

	claims, err := o.resolver.Enrich(ctx, record.User, record.UpstreamAccessToken, record.Scopes)
	if err != nil {
		return nil, err
	}

	idToken, err := o.signer.Sign(claims.Subject, claims.IDTokenClaims(), o.tokenTTL)
	if err != nil {
		return nil, err
	}

	accessToken := uuid.NewString()
	tokenRecord := &storage.AccessTokenRecord{
		UpstreamAccessToken: record.UpstreamAccessToken,
		Scopes:              record.Scopes,
		CreatedAt:           time.Now(),
	}
	if err := o.store.StoreAccessToken(ctx, accessToken, tokenRecord); err != nil {
		return nil, fmt.Errorf("failed to store access token: %w", err)
	}

	slog.Info("tokens issued",
		"user_id", claims.Subject,
		"scopes", record.Scopes,
	)

	return &TokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(o.tokenTTL.Seconds()),
		IDToken:     idToken,
	}, nil
}

// UserInfo resolves the claims for a bearer access token. The token record is
// read non-destructively; claims are resolved fresh from upstream.
func (o *Orchestrator) UserInfo(ctx context.Context, accessToken string) (*Claims, error) {
	record, err := o.store.GetAccessToken(ctx, accessToken)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrExpired) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to look up access token: %w", err)
	}

	return o.resolver.Resolve(ctx, record.UpstreamAccessToken, record.Scopes)
}

func (o *Orchestrator) consumeSession(ctx context.Context, state string) (*storage.Session, error) {
	session, err := o.store.ConsumeSession(ctx, state)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrExpired) {
			return nil, ErrInvalidState
		}
		return nil, fmt.Errorf("failed to consume session: %w", err)
	}
	return session, nil
}

// generateSessionID returns 32 bytes of randomness, base64url-encoded. The
// id doubles as the upstream state parameter.
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
