// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/stacklok/discord-oidc-bridge/pkg/bridge/flow"
	"github.com/stacklok/discord-oidc-bridge/pkg/bridge/upstream"
)

// oauthError is the RFC 6749 error envelope returned by the token endpoint.
type oauthError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// TokenHandler handles POST /token requests. The client authenticates with
// its id and secret, either in the request body (client_secret_post) or via
// HTTP Basic (client_secret_basic), and redeems a single-use authorization
// code for an id token and an opaque access token.
func (h *Handler) TokenHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}

	if !h.authenticateClient(r) {
		w.Header().Set("WWW-Authenticate", `Basic realm="token endpoint"`)
		writeOAuthError(w, http.StatusUnauthorized, "invalid_client", "invalid client credentials")
		return
	}

	if r.PostFormValue("grant_type") != "authorization_code" {
		writeOAuthError(w, http.StatusBadRequest, "unsupported_grant_type", "only authorization_code is supported")
		return
	}

	code := r.PostFormValue("code")
	if code == "" {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "missing code parameter")
		return
	}

	resp, err := h.flow.ExchangeToken(r.Context(), code)
	if err != nil {
		h.tokenError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode token response",
			"error", err.Error(),
		)
	}
}

// authenticateClient verifies the relying party's credentials. Basic auth
// takes precedence over body parameters when both are present.
func (h *Handler) authenticateClient(r *http.Request) bool {
	clientID := r.PostFormValue("client_id")
	clientSecret := r.PostFormValue("client_secret")

	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		id, secret, err := DecodeBasicAuth(authHeader)
		if err != nil {
			return false
		}
		clientID, clientSecret = id, secret
	}

	idOK := SecureCompare(clientID, h.clientID)
	secretOK := SecureCompare(clientSecret, h.clientSecret)
	return idOK && secretOK
}

func (*Handler) tokenError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, flow.ErrInvalidCode):
		writeOAuthError(w, http.StatusBadRequest, "invalid_grant", flow.ErrInvalidCode.Error())
	case errors.Is(err, upstream.ErrUnauthorized), errors.Is(err, upstream.ErrUpstreamUnavailable):
		slog.Error("upstream error during token exchange",
			"error", err.Error(),
		)
		writeOAuthError(w, http.StatusBadGateway, "server_error", "upstream identity provider error")
	default:
		slog.Error("token exchange failed",
			"error", err.Error(),
		)
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "internal server error")
	}
}

func writeOAuthError(w http.ResponseWriter, status int, code, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(oauthError{
		Error:            code,
		ErrorDescription: description,
	})
}
