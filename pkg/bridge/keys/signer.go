// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package keys

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Signer mints RS256 id tokens for a fixed issuer and audience.
type Signer struct {
	provider *Provider
	issuer   string
	audience string
}

// NewSigner creates a Signer.
func NewSigner(provider *Provider, issuer, audience string) (*Signer, error) {
	if provider == nil {
		return nil, fmt.Errorf("key provider is required")
	}
	if issuer == "" {
		return nil, fmt.Errorf("issuer is required")
	}
	if audience == "" {
		return nil, fmt.Errorf("audience is required")
	}

	return &Signer{
		provider: provider,
		issuer:   issuer,
		audience: audience,
	}, nil
}

// Sign mints a signed id token for the given subject. The extra map carries
// profile claims; registered claims (iss, aud, sub, iat, exp) are set here
// and overwrite any extra entry with the same name.
func (s *Signer) Sign(subject string, extra map[string]any, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("subject is required")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("token lifetime must be positive")
	}

	now := time.Now()
	claims := jwt.MapClaims{}
	for name, value := range extra {
		claims[name] = value
	}
	claims["iss"] = s.issuer
	claims["aud"] = s.audience
	claims["sub"] = subject
	claims["iat"] = now.Unix()
	claims["exp"] = now.Add(ttl).Unix()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.provider.KeyID()

	signed, err := token.SignedString(s.provider.Key())
	if err != nil {
		return "", fmt.Errorf("failed to sign id token: %w", err)
	}

	return signed, nil
}
