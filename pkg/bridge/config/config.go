// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config loads and validates the bridge configuration.
//
// Configuration is sourced from an optional YAML file plus environment
// variables with the DISCORD_OIDC_ prefix (environment wins). All secrets
// (client secrets, signing key) are referenced by value or file path here and
// never logged.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Defaults for tunables that rarely need changing.
const (
	// DefaultAddress is the default HTTP listen address.
	DefaultAddress = ":8080"

	// DefaultSessionTTL bounds how long an authorization attempt may sit
	// between /authorize and the upstream callback.
	DefaultSessionTTL = 10 * time.Minute

	// DefaultCodeTTL bounds the lifetime of a minted OIDC authorization code.
	DefaultCodeTTL = 10 * time.Minute

	// DefaultTokenTTL is the lifetime of issued access and ID tokens.
	DefaultTokenTTL = 1 * time.Hour

	// DefaultUpstreamTimeout bounds every HTTP call to the upstream IdP.
	DefaultUpstreamTimeout = 10 * time.Second
)

// Config is the full, immutable process configuration. It is loaded once at
// startup and passed to components at construction time; nothing mutates it
// afterwards, so unsynchronized concurrent reads are safe.
type Config struct {
	// Address is the HTTP listen address.
	Address string `mapstructure:"address"`

	// Issuer is the externally visible base URL of this provider. It appears
	// as the "iss" claim in ID tokens and anchors all discovery endpoints.
	Issuer string `mapstructure:"issuer"`

	// ClientID identifies the single trusted relying-party client. It is also
	// the audience of issued ID tokens.
	ClientID string `mapstructure:"client_id"`

	// ClientSecret authenticates the relying party on the token endpoint.
	ClientSecret string `mapstructure:"client_secret"`

	// Discord holds the upstream OAuth2 application credentials.
	Discord DiscordConfig `mapstructure:"discord"`

	// Keys holds the signing key configuration.
	Keys KeysConfig `mapstructure:"keys"`

	// Storage selects and configures the key-value backend.
	Storage StorageConfig `mapstructure:"storage"`

	// SessionTTL is the pending-session lifetime.
	SessionTTL time.Duration `mapstructure:"session_ttl"`

	// CodeTTL is the OIDC authorization-code lifetime.
	CodeTTL time.Duration `mapstructure:"code_ttl"`

	// TokenTTL is the access/ID token lifetime.
	TokenTTL time.Duration `mapstructure:"token_ttl"`

	// UpstreamTimeout bounds every upstream HTTP call.
	UpstreamTimeout time.Duration `mapstructure:"upstream_timeout"`
}

// DiscordConfig holds the upstream Discord OAuth2 application settings.
type DiscordConfig struct {
	// ClientID is the Discord OAuth2 application client id.
	ClientID string `mapstructure:"client_id"`

	// ClientSecret is the Discord OAuth2 application client secret.
	ClientSecret string `mapstructure:"client_secret"`

	// GuildID is the guild whose membership gates the "guild" scope claims.
	GuildID string `mapstructure:"guild_id"`

	// BaseURL overrides the Discord API base URL. Empty means production.
	BaseURL string `mapstructure:"base_url"`
}

// KeysConfig holds signing key material locations.
type KeysConfig struct {
	// PrivateKeyFile is the path to the PEM-encoded RSA private key used to
	// sign ID tokens. The public JWK is derived from it.
	PrivateKeyFile string `mapstructure:"private_key_file"`
}

// StorageConfig selects the key-value backend.
type StorageConfig struct {
	// Type is "memory" (default) or "redis".
	Type string `mapstructure:"type"`

	// RedisURL is the redis:// connection URL, required when Type is "redis".
	RedisURL string `mapstructure:"redis_url"`

	// KeyPrefix namespaces all keys, e.g. "discord-oidc:".
	KeyPrefix string `mapstructure:"key_prefix"`
}

// Load reads configuration from the optional file at path and the
// environment, applies defaults, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("address", DefaultAddress)
	v.SetDefault("storage.type", "memory")
	v.SetDefault("session_ttl", DefaultSessionTTL)
	v.SetDefault("code_ttl", DefaultCodeTTL)
	v.SetDefault("token_ttl", DefaultTokenTTL)
	v.SetDefault("upstream_timeout", DefaultUpstreamTimeout)

	v.SetEnvPrefix("DISCORD_OIDC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows about, so keys
	// without a default must be bound explicitly or env-only deployments
	// (no config file) would never see them.
	for _, key := range []string{
		"issuer",
		"client_id",
		"client_secret",
		"discord.client_id",
		"discord.client_secret",
		"discord.guild_id",
		"discord.base_url",
		"keys.private_key_file",
		"storage.redis_url",
		"storage.key_prefix",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind environment for %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that all required fields are present and coherent.
func (c *Config) Validate() error {
	if c.Issuer == "" {
		return fmt.Errorf("issuer is required")
	}
	u, err := url.Parse(c.Issuer)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("issuer must be an absolute URL, got %q", c.Issuer)
	}
	if strings.HasSuffix(c.Issuer, "/") {
		return fmt.Errorf("issuer must not have a trailing slash")
	}

	if c.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}
	if c.ClientSecret == "" {
		return fmt.Errorf("client_secret is required")
	}
	if c.Discord.ClientID == "" {
		return fmt.Errorf("discord.client_id is required")
	}
	if c.Discord.ClientSecret == "" {
		return fmt.Errorf("discord.client_secret is required")
	}

	switch c.Storage.Type {
	case "memory":
	case "redis":
		if c.Storage.RedisURL == "" {
			return fmt.Errorf("storage.redis_url is required for redis storage")
		}
	default:
		return fmt.Errorf("unsupported storage type %q", c.Storage.Type)
	}

	if c.SessionTTL <= 0 || c.CodeTTL <= 0 || c.TokenTTL <= 0 {
		return fmt.Errorf("session_ttl, code_ttl and token_ttl must be positive")
	}

	return nil
}

// CallbackURL returns the upstream redirect URI for this deployment.
func (c *Config) CallbackURL() string {
	return c.Issuer + "/callback"
}
