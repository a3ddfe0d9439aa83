// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package upstream implements the OAuth2 client for the upstream identity
// provider (Discord). It builds authorization URLs, exchanges authorization
// codes, and fetches user profile and guild membership data.
package upstream

import (
	"errors"
	"net/http"
)

// Sentinel errors classifying upstream failures.
var (
	// ErrUnauthorized indicates the upstream rejected our bearer token.
	ErrUnauthorized = errors.New("upstream rejected access token")

	// ErrUpstreamUnavailable indicates any other upstream failure (network
	// error, 5xx, malformed response). Response bodies are logged, never
	// propagated.
	ErrUpstreamUnavailable = errors.New("upstream identity provider unavailable")
)

// maxResponseSize caps how much of an upstream response body we read.
const maxResponseSize = 1 << 20 // 1 MiB

// Tokens is the upstream token-endpoint response.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// User is the upstream user object returned by the profile endpoint.
// See https://discord.com/developers/docs/resources/user#user-object.
type User struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name,omitempty"`
	Avatar     string `json:"avatar,omitempty"`
	Email      string `json:"email,omitempty"`
	Verified   bool   `json:"verified,omitempty"`
	Locale     string `json:"locale,omitempty"`
}

// DisplayName prefers the global display name and falls back to the handle.
func (u *User) DisplayName() string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

// AvatarURL derives the CDN URL for the user's avatar.
func (u *User) AvatarURL() string {
	return "https://cdn.discordapp.com/avatars/" + u.ID + "/" + u.Avatar + ".png"
}

// GuildMember is the membership record for the target guild.
// See https://discord.com/developers/docs/resources/guild#guild-member-object.
type GuildMember struct {
	Nick  string   `json:"nick,omitempty"`
	Roles []string `json:"roles"`
}

// HTTPClient is the outbound HTTP seam, satisfied by *http.Client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}
