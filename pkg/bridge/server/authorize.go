// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"fmt"
	"log/slog"
	"net/http"
)

// requiredAuthorizeParams are checked in order; the first missing one is
// reported.
var requiredAuthorizeParams = []string{
	"response_type",
	"client_id",
	"redirect_uri",
	"scope",
	"state",
}

// AuthorizeHandler handles GET and POST /authorize requests from relying
// parties. It validates the request, records a pending session, and
// redirects the user agent to the upstream IdP. Parameters may arrive in the
// query string or, for POST, the form body.
func (h *Handler) AuthorizeHandler(w http.ResponseWriter, r *http.Request) {
	for _, param := range requiredAuthorizeParams {
		if r.FormValue(param) == "" {
			http.Error(w, fmt.Sprintf("missing required parameter: %s", param), http.StatusBadRequest)
			return
		}
	}

	// Only the client id is checked here; the secret is proven at /token.
	if r.FormValue("client_id") != h.clientID {
		http.Error(w, "invalid client credentials", http.StatusUnauthorized)
		return
	}

	if r.FormValue("response_type") != "code" {
		http.Error(w, "unsupported response_type", http.StatusBadRequest)
		return
	}

	authURL, err := h.flow.BeginAuthorization(
		r.Context(),
		r.FormValue("state"),
		r.FormValue("redirect_uri"),
		r.FormValue("scope"),
	)
	if err != nil {
		slog.Error("failed to start authorization",
			"error", err.Error(),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}
