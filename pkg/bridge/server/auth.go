// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strings"
)

// ErrInvalidBasicAuth is returned when an Authorization header is not a
// well-formed Basic credential.
var ErrInvalidBasicAuth = errors.New("invalid basic auth format")

// DecodeBasicAuth extracts the client id and secret from a Basic
// Authorization header value. The decoded credential must contain exactly
// one colon.
func DecodeBasicAuth(authHeader string) (clientID, clientSecret string, err error) {
	const prefix = "Basic "
	if !strings.HasPrefix(authHeader, prefix) {
		return "", "", ErrInvalidBasicAuth
	}

	decoded, err := base64.StdEncoding.DecodeString(authHeader[len(prefix):])
	if err != nil {
		return "", "", ErrInvalidBasicAuth
	}

	parts := strings.Split(string(decoded), ":")
	if len(parts) != 2 {
		return "", "", ErrInvalidBasicAuth
	}

	return parts[0], parts[1], nil
}

// SecureCompare reports whether two strings are equal without leaking where
// they differ through timing.
func SecureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
