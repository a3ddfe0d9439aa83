// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/stacklok/discord-oidc-bridge/pkg/bridge/flow"
	"github.com/stacklok/discord-oidc-bridge/pkg/bridge/upstream"
)

// UserInfoHandler handles GET and POST /userinfo requests. The caller
// presents the opaque access token as a bearer credential; claims are
// resolved fresh from the upstream IdP on every call.
func (h *Handler) UserInfoHandler(w http.ResponseWriter, r *http.Request) {
	const prefix = "Bearer "

	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, prefix) {
		h.userInfoUnauthorized(w, "missing bearer token")
		return
	}

	claims, err := h.flow.UserInfo(r.Context(), authHeader[len(prefix):])
	if err != nil {
		switch {
		case errors.Is(err, flow.ErrInvalidToken), errors.Is(err, upstream.ErrUnauthorized):
			h.userInfoUnauthorized(w, flow.ErrInvalidToken.Error())
		case errors.Is(err, upstream.ErrUpstreamUnavailable):
			slog.Error("upstream error during userinfo",
				"error", err.Error(),
			)
			http.Error(w, "upstream identity provider error", http.StatusBadGateway)
		default:
			slog.Error("userinfo failed",
				"error", err.Error(),
			)
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if err := json.NewEncoder(w).Encode(claims.Map()); err != nil {
		slog.Error("failed to encode userinfo response",
			"error", err.Error(),
		)
	}
}

func (*Handler) userInfoUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+description+`"`)
	http.Error(w, description, http.StatusUnauthorized)
}
