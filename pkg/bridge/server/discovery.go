// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// Cache-Control max-age values for discovery endpoints.
const (
	// DefaultJWKSCacheMaxAge is the Cache-Control max-age for the JWKS
	// endpoint (1 hour). This balances caching efficiency with timely key
	// rotation propagation.
	DefaultJWKSCacheMaxAge = 3600

	// DefaultDiscoveryCacheMaxAge is the Cache-Control max-age for the
	// discovery endpoint (1 hour).
	DefaultDiscoveryCacheMaxAge = 3600
)

// providerMetadata is the OIDC Discovery 1.0 provider configuration document.
type providerMetadata struct {
	Issuer                           string   `json:"issuer"`
	AuthorizationEndpoint            string   `json:"authorization_endpoint"`
	TokenEndpoint                    string   `json:"token_endpoint"`
	UserInfoEndpoint                 string   `json:"userinfo_endpoint"`
	JWKSURI                          string   `json:"jwks_uri"`
	ResponseTypesSupported           []string `json:"response_types_supported"`
	SubjectTypesSupported            []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported []string `json:"id_token_signing_alg_values_supported"`
	ScopesSupported                  []string `json:"scopes_supported"`
	TokenEndpointAuthMethods         []string `json:"token_endpoint_auth_methods_supported"`
	ClaimsSupported                  []string `json:"claims_supported"`
}

// OIDCDiscoveryHandler handles GET /.well-known/openid-configuration
// requests per OIDC Discovery 1.0.
func (h *Handler) OIDCDiscoveryHandler(w http.ResponseWriter, _ *http.Request) {
	metadata := providerMetadata{
		Issuer:                           h.issuer,
		AuthorizationEndpoint:            h.issuer + "/authorize",
		TokenEndpoint:                    h.issuer + "/token",
		UserInfoEndpoint:                 h.issuer + "/userinfo",
		JWKSURI:                          h.issuer + "/.well-known/jwks.json",
		ResponseTypesSupported:           []string{"code"},
		SubjectTypesSupported:            []string{"public"},
		IDTokenSigningAlgValuesSupported: []string{"RS256"},
		ScopesSupported:                  []string{"openid", "profile", "email", "guild"},
		TokenEndpointAuthMethods:         []string{"client_secret_post", "client_secret_basic"},
		ClaimsSupported: []string{
			"sub", "iss", "aud", "exp", "iat",
			"name", "preferred_username", "picture",
			"email", "email_verified", "locale",
			"is_member_of_target_guild", "roles",
		},
	}

	data, err := json.Marshal(metadata)
	if err != nil {
		slog.Error("failed to encode discovery metadata",
			"error", err.Error(),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", DefaultDiscoveryCacheMaxAge))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	_, _ = w.Write(data)
}

// JWKSHandler handles GET /.well-known/jwks.json requests. It returns the
// public key used for verifying id tokens.
func (h *Handler) JWKSHandler(w http.ResponseWriter, _ *http.Request) {
	data, err := json.Marshal(h.keys.PublicJWKS())
	if err != nil {
		slog.Error("failed to encode JWKS",
			"error", err.Error(),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", DefaultJWKSCacheMaxAge))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	_, _ = w.Write(data)
}
