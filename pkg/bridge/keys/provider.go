// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"log/slog"

	"github.com/go-jose/go-jose/v4"
)

// SigningAlgorithm is the only algorithm used for id tokens.
const SigningAlgorithm = "RS256"

// ephemeralKeyBits is the size of a generated signing key.
const ephemeralKeyBits = 2048

// Provider holds the signing key and its derived key id.
type Provider struct {
	key   *rsa.PrivateKey
	keyID string
}

// NewProvider creates a Provider for the given private key.
func NewProvider(key *rsa.PrivateKey) (*Provider, error) {
	if key == nil {
		return nil, fmt.Errorf("signing key is required")
	}
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("invalid signing key: %w", err)
	}

	keyID, err := DeriveKeyID(key)
	if err != nil {
		return nil, err
	}

	return &Provider{key: key, keyID: keyID}, nil
}

// NewProviderFromFile loads the signing key from a PEM file. If keyPath is
// empty, an ephemeral key is generated instead; tokens signed with it become
// unverifiable after a restart, so this is only suitable for development.
func NewProviderFromFile(keyPath string) (*Provider, error) {
	if keyPath == "" {
		slog.Warn("no signing key configured, generating ephemeral key; " +
			"issued tokens will not survive a restart")
		key, err := rsa.GenerateKey(rand.Reader, ephemeralKeyBits)
		if err != nil {
			return nil, fmt.Errorf("failed to generate signing key: %w", err)
		}
		return NewProvider(key)
	}

	key, err := LoadSigningKey(keyPath)
	if err != nil {
		return nil, err
	}
	return NewProvider(key)
}

// Key returns the private signing key.
func (p *Provider) Key() *rsa.PrivateKey {
	return p.key
}

// KeyID returns the RFC 7638 thumbprint key id.
func (p *Provider) KeyID() string {
	return p.keyID
}

// PublicJWKS returns the JWK set published at the jwks endpoint.
// It contains only the public half of the signing key.
func (p *Provider) PublicJWKS() *jose.JSONWebKeySet {
	return &jose.JSONWebKeySet{
		Keys: []jose.JSONWebKey{
			{
				Key:       p.key.Public(),
				KeyID:     p.keyID,
				Use:       "sig",
				Algorithm: SigningAlgorithm,
			},
		},
	}
}
