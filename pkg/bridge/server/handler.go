// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package server provides the HTTP surface of the bridge: the OIDC endpoints
// (authorize, callback, token, userinfo) and the well-known discovery
// documents.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/discord-oidc-bridge/pkg/bridge/flow"
	"github.com/stacklok/discord-oidc-bridge/pkg/bridge/keys"
)

// Handler provides HTTP handlers for the bridge endpoints.
type Handler struct {
	flow         *flow.Orchestrator
	keys         *keys.Provider
	issuer       string
	clientID     string
	clientSecret string
}

// NewHandler creates a new Handler with the given dependencies.
func NewHandler(
	orchestrator *flow.Orchestrator,
	keyProvider *keys.Provider,
	issuer, clientID, clientSecret string,
) *Handler {
	return &Handler{
		flow:         orchestrator,
		keys:         keyProvider,
		issuer:       issuer,
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

// Routes returns a router with all bridge endpoints registered.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	h.OAuthRoutes(r)
	h.WellKnownRoutes(r)
	return r
}

// OAuthRoutes registers the flow endpoints on the provided router.
func (h *Handler) OAuthRoutes(r chi.Router) {
	r.Get("/authorize", h.AuthorizeHandler)
	r.Post("/authorize", h.AuthorizeHandler)
	r.Get("/callback", h.CallbackHandler)
	r.Post("/callback", h.CallbackHandler)
	r.Post("/token", h.TokenHandler)
	r.Get("/userinfo", h.UserInfoHandler)
	r.Post("/userinfo", h.UserInfoHandler)
}

// WellKnownRoutes registers the discovery endpoints on the provided router.
func (h *Handler) WellKnownRoutes(r chi.Router) {
	r.Get("/.well-known/openid-configuration", h.OIDCDiscoveryHandler)
	r.Get("/.well-known/jwks.json", h.JWKSHandler)
}
