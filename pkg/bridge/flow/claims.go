// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package flow

import (
	"context"
	"fmt"

	"github.com/stacklok/discord-oidc-bridge/pkg/bridge/storage"
	"github.com/stacklok/discord-oidc-bridge/pkg/bridge/upstream"
)

// Membership captures the user's standing in the target guild.
type Membership struct {
	IsMember bool
	Roles    []string
}

// Claims is the set of identity claims the bridge asserts about a user.
// Membership is nil unless the client requested the guild scope.
type Claims struct {
	Subject           string
	Name              string
	PreferredUsername string
	Picture           string
	Email             string
	EmailVerified     bool
	Locale            string
	Membership        *Membership
}

// Map renders the claims as a JSON-ready map, including the subject.
// Used as the userinfo response body.
func (c *Claims) Map() map[string]any {
	m := map[string]any{
		"sub":                c.Subject,
		"name":               c.Name,
		"preferred_username": c.PreferredUsername,
	}
	if c.Picture != "" {
		m["picture"] = c.Picture
	}
	if c.Email != "" {
		m["email"] = c.Email
		m["email_verified"] = c.EmailVerified
	}
	if c.Locale != "" {
		m["locale"] = c.Locale
	}
	if c.Membership != nil {
		m["is_member_of_target_guild"] = c.Membership.IsMember
		m["roles"] = c.Membership.Roles
	}
	return m
}

// IDTokenClaims renders the claims for embedding in an id token. The subject
// is excluded; the signer sets it alongside the other registered claims.
func (c *Claims) IDTokenClaims() map[string]any {
	m := c.Map()
	delete(m, "sub")
	return m
}

// Resolver turns upstream identity data into claims. When the guild scope is
// present and a target guild is configured, it also checks membership.
type Resolver struct {
	upstream UpstreamClient
	guildID  string
}

// NewResolver creates a Resolver. guildID may be empty, in which case
// membership claims are never produced.
func NewResolver(upstreamClient UpstreamClient, guildID string) *Resolver {
	return &Resolver{
		upstream: upstreamClient,
		guildID:  guildID,
	}
}

// Resolve fetches the user's profile from upstream and builds the full claim
// set for it. Used by the userinfo endpoint, where no profile snapshot exists.
func (r *Resolver) Resolve(ctx context.Context, upstreamToken string, scopes []string) (*Claims, error) {
	user, err := r.upstream.UserInfo(ctx, upstreamToken)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user profile: %w", err)
	}

	claims := claimsFromUser(user)
	if err := r.addMembership(ctx, claims, upstreamToken, scopes); err != nil {
		return nil, err
	}

	return claims, nil
}

// Enrich builds the claim set from a profile snapshot captured at callback
// time, fetching only the membership data when the scope calls for it. Used
// by the token endpoint.
func (r *Resolver) Enrich(ctx context.Context, profile storage.UserProfile, upstreamToken string, scopes []string) (*Claims, error) {
	claims := claimsFromProfile(profile)
	if err := r.addMembership(ctx, claims, upstreamToken, scopes); err != nil {
		return nil, err
	}

	return claims, nil
}

func (r *Resolver) addMembership(ctx context.Context, claims *Claims, upstreamToken string, scopes []string) error {
	if !HasGuildScope(scopes) || r.guildID == "" {
		return nil
	}

	member, err := r.upstream.GuildMember(ctx, upstreamToken, r.guildID)
	if err != nil {
		return fmt.Errorf("failed to check guild membership: %w", err)
	}

	if member == nil {
		claims.Membership = &Membership{IsMember: false, Roles: []string{}}
		return nil
	}

	roles := member.Roles
	if roles == nil {
		roles = []string{}
	}
	claims.Membership = &Membership{IsMember: true, Roles: roles}
	return nil
}

func claimsFromUser(u *upstream.User) *Claims {
	picture := ""
	if u.Avatar != "" {
		picture = u.AvatarURL()
	}
	return &Claims{
		Subject:           u.ID,
		Name:              u.DisplayName(),
		PreferredUsername: u.Username,
		Picture:           picture,
		Email:             u.Email,
		EmailVerified:     u.Verified,
		Locale:            u.Locale,
	}
}

func claimsFromProfile(p storage.UserProfile) *Claims {
	u := &upstream.User{
		ID:         p.ID,
		Username:   p.Username,
		GlobalName: p.GlobalName,
		Avatar:     p.Avatar,
		Email:      p.Email,
		Verified:   p.Verified,
		Locale:     p.Locale,
	}
	return claimsFromUser(u)
}
