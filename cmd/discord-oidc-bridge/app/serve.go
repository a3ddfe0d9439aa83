// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/discord-oidc-bridge/pkg/bridge/config"
	"github.com/stacklok/discord-oidc-bridge/pkg/bridge/flow"
	"github.com/stacklok/discord-oidc-bridge/pkg/bridge/keys"
	"github.com/stacklok/discord-oidc-bridge/pkg/bridge/server"
	"github.com/stacklok/discord-oidc-bridge/pkg/bridge/storage"
	"github.com/stacklok/discord-oidc-bridge/pkg/bridge/upstream"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the OIDC bridge server",
		Long: `Start the HTTP server exposing the OIDC endpoints.

Configuration is read from the file given via --config (if any) and from
environment variables with the DISCORD_OIDC_ prefix.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := storage.New(ctx, cfg.Storage.Type, storage.RedisConfig{
		URL:       cfg.Storage.RedisURL,
		KeyPrefix: cfg.Storage.KeyPrefix,
	}, storage.Config{
		SessionTTL: cfg.SessionTTL,
		CodeTTL:    cfg.CodeTTL,
		TokenTTL:   cfg.TokenTTL,
	})
	if err != nil {
		return fmt.Errorf("failed to create storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("failed to close storage", "error", err.Error())
		}
	}()

	upstreamClient, err := upstream.NewClient(upstream.Config{
		ClientID:     cfg.Discord.ClientID,
		ClientSecret: cfg.Discord.ClientSecret,
		RedirectURI:  cfg.CallbackURL(),
		BaseURL:      cfg.Discord.BaseURL,
		Timeout:      cfg.UpstreamTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create upstream client: %w", err)
	}

	keyProvider, err := keys.NewProviderFromFile(cfg.Keys.PrivateKeyFile)
	if err != nil {
		return fmt.Errorf("failed to load signing key: %w", err)
	}

	signer, err := keys.NewSigner(keyProvider, cfg.Issuer, cfg.ClientID)
	if err != nil {
		return fmt.Errorf("failed to create signer: %w", err)
	}

	resolver := flow.NewResolver(upstreamClient, cfg.Discord.GuildID)

	orchestrator, err := flow.NewOrchestrator(store, upstreamClient, resolver, signer, cfg.TokenTTL)
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}

	handler := server.NewHandler(orchestrator, keyProvider, cfg.Issuer, cfg.ClientID, cfg.ClientSecret)

	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting OIDC bridge server",
			"address", cfg.Address,
			"issuer", cfg.Issuer,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down cleanly: %w", err)
	}

	return nil
}
