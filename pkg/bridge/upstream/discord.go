// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the production Discord API base URL.
const DefaultBaseURL = "https://discord.com/api/v10"

// userAgent identifies the bridge on every upstream call.
const userAgent = "discord-oidc-bridge"

// Upstream scope sets. The base set covers profile and email claims; the
// extended set is requested when the client asked for the guild scope, since
// reading guild member roles needs guilds.members.read.
const (
	baseScopes  = "identify email guilds"
	guildScopes = "identify email guilds guilds.members.read"
)

// Config holds the upstream OAuth2 application settings.
type Config struct {
	// ClientID is the Discord OAuth2 application client id.
	ClientID string

	// ClientSecret is the Discord OAuth2 application client secret.
	ClientSecret string

	// RedirectURI is our /callback URL registered with the application.
	RedirectURI string

	// BaseURL overrides the API base URL. Empty means DefaultBaseURL.
	BaseURL string

	// Timeout bounds every upstream HTTP call. Zero disables the bound; the
	// constructor rejects that to keep callback handling from hanging.
	Timeout time.Duration
}

// Client talks to the Discord OAuth2 and REST APIs.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient HTTPClient
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Discord upstream client.
func NewClient(cfg Config, opts ...ClientOption) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("upstream client id and secret are required")
	}
	if cfg.RedirectURI == "" {
		return nil, errors.New("upstream redirect URI is required")
	}
	if cfg.Timeout <= 0 {
		return nil, errors.New("upstream timeout must be positive")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		cfg:        cfg,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// AuthorizationURL builds the URL to redirect the user to Discord. The state
// parameter carries our session id so the callback can recover the pending
// session. prompt=none skips the consent screen for already-authorized users.
func (c *Client) AuthorizationURL(state string, withGuildScopes bool) (string, error) {
	if state == "" {
		return "", errors.New("state parameter is required")
	}

	scope := baseScopes
	if withGuildScopes {
		scope = guildScopes
	}

	params := url.Values{
		"client_id":     {c.cfg.ClientID},
		"redirect_uri":  {c.cfg.RedirectURI},
		"response_type": {"code"},
		"scope":         {scope},
		"state":         {state},
		"prompt":        {"none"},
	}

	return c.baseURL + "/oauth2/authorize?" + params.Encode(), nil
}

// ExchangeCode exchanges an authorization code for tokens with Discord.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*Tokens, error) {
	if code == "" {
		return nil, errors.New("authorization code is required")
	}

	params := url.Values{
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {c.cfg.RedirectURI},
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+"/oauth2/token",
		strings.NewReader(params.Encode()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: token request failed: %w", ErrUpstreamUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read token response: %w", ErrUpstreamUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		slog.Error("upstream token endpoint error",
			"status", resp.StatusCode,
			"body", string(body),
		)
		return nil, fmt.Errorf("%w: token endpoint returned %d", ErrUpstreamUnavailable, resp.StatusCode)
	}

	var tokens Tokens
	if err := json.Unmarshal(body, &tokens); err != nil {
		return nil, fmt.Errorf("%w: failed to parse token response: %w", ErrUpstreamUnavailable, err)
	}
	if tokens.AccessToken == "" {
		return nil, fmt.Errorf("%w: token response missing access_token", ErrUpstreamUnavailable)
	}

	return &tokens, nil
}

// UserInfo fetches the authenticated user's profile.
func (c *Client) UserInfo(ctx context.Context, accessToken string) (*User, error) {
	body, status, err := c.get(ctx, "/users/@me", accessToken)
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case status != http.StatusOK:
		slog.Error("upstream profile endpoint error",
			"status", status,
			"body", string(body),
		)
		return nil, fmt.Errorf("%w: profile endpoint returned %d", ErrUpstreamUnavailable, status)
	}

	var user User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("%w: failed to parse profile response: %w", ErrUpstreamUnavailable, err)
	}
	if user.ID == "" {
		return nil, fmt.Errorf("%w: profile response missing id", ErrUpstreamUnavailable)
	}

	return &user, nil
}

// GuildMember fetches the user's membership in the given guild. A nil member
// with nil error means no usable membership info: the user is not a member,
// the guild doesn't exist, or the token lacks permission to check. 401, 403
// and 404 all collapse into that outcome, matching the upstream API's own
// ambiguity; the status is logged so operators can tell them apart.
func (c *Client) GuildMember(ctx context.Context, accessToken, guildID string) (*GuildMember, error) {
	if guildID == "" {
		return nil, errors.New("guild id is required")
	}

	body, status, err := c.get(ctx, "/users/@me/guilds/"+url.PathEscape(guildID)+"/member", accessToken)
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden || status == http.StatusNotFound:
		slog.Debug("no usable guild membership info",
			"guild_id", guildID,
			"status", status,
		)
		return nil, nil
	case status != http.StatusOK:
		slog.Error("upstream membership endpoint error",
			"status", status,
			"body", string(body),
		)
		return nil, fmt.Errorf("%w: membership endpoint returned %d", ErrUpstreamUnavailable, status)
	}

	var member GuildMember
	if err := json.Unmarshal(body, &member); err != nil {
		return nil, fmt.Errorf("%w: failed to parse membership response: %w", ErrUpstreamUnavailable, err)
	}
	if member.Roles == nil {
		member.Roles = []string{}
	}

	return &member, nil
}

// get performs a bearer-authenticated GET against the API.
func (c *Client) get(ctx context.Context, path, accessToken string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: request failed: %w", ErrUpstreamUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: failed to read response: %w", ErrUpstreamUnavailable, err)
	}

	return body, resp.StatusCode, nil
}
