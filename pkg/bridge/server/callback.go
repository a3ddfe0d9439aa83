// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/stacklok/discord-oidc-bridge/pkg/bridge/flow"
	"github.com/stacklok/discord-oidc-bridge/pkg/bridge/upstream"
)

// CallbackHandler handles GET and POST /callback requests from the upstream
// IdP. On success it redirects the user agent back to the relying party with
// a fresh authorization code; upstream authorization errors are relayed to
// the relying party the same way.
func (h *Handler) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	state := r.FormValue("state")

	if upstreamErr := r.FormValue("error"); upstreamErr != "" {
		if state == "" {
			http.Error(w, "missing state parameter", http.StatusBadRequest)
			return
		}

		redirect, err := h.flow.CancelAuthorization(r.Context(), state, upstreamErr, r.FormValue("error_description"))
		if err != nil {
			h.callbackError(w, err)
			return
		}

		http.Redirect(w, r, redirect.URL(), http.StatusFound)
		return
	}

	code := r.FormValue("code")
	if code == "" || state == "" {
		http.Error(w, "missing code or state parameter", http.StatusBadRequest)
		return
	}

	redirect, err := h.flow.CompleteCallback(r.Context(), state, code)
	if err != nil {
		h.callbackError(w, err)
		return
	}

	http.Redirect(w, r, redirect.URL(), http.StatusFound)
}

// callbackError writes the HTTP error for a failed callback. The session has
// already been consumed at this point, so the attempt cannot be retried
// without starting over at /authorize.
func (*Handler) callbackError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, flow.ErrInvalidState):
		http.Error(w, flow.ErrInvalidState.Error(), http.StatusBadRequest)
	case errors.Is(err, upstream.ErrUnauthorized), errors.Is(err, upstream.ErrUpstreamUnavailable):
		slog.Error("upstream error during callback",
			"error", err.Error(),
		)
		http.Error(w, "upstream identity provider error", http.StatusBadGateway)
	default:
		slog.Error("callback failed",
			"error", err.Error(),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
