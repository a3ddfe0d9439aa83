// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package flow

import "errors"

// Flow errors deliberately do not distinguish "never issued" from "expired"
// or "already used". All three collapse into the same message so responses
// leak nothing about which artifacts exist.
var (
	// ErrInvalidState is returned when a callback state does not match a
	// pending session.
	ErrInvalidState = errors.New("invalid or expired state")

	// ErrInvalidCode is returned when an authorization code cannot be redeemed.
	ErrInvalidCode = errors.New("invalid or expired authorization code")

	// ErrInvalidToken is returned when an access token does not resolve to a
	// live record.
	ErrInvalidToken = errors.New("invalid or expired access token")
)
