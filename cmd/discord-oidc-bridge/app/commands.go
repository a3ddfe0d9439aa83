// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app provides the entry point for the discord-oidc-bridge
// command-line application.
package app

import (
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/discord-oidc-bridge/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:               "discord-oidc-bridge",
	DisableAutoGenTag: true,
	Short:             "OIDC provider bridging authentication to Discord",
	Long: `discord-oidc-bridge exposes a standard OpenID Connect interface
(authorize, token, userinfo, discovery, JWKS) while delegating the actual
user authentication to Discord's OAuth2 API.

Relying parties integrate against it like any OIDC provider; users sign in
with their Discord account. With the "guild" scope, issued tokens also carry
membership and role claims for a configured target guild.`,
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			slog.Error("Error displaying help", "error", err.Error())
		}
	},
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.Initialize(viper.GetBool("debug"))
	},
}

// NewRootCmd creates a new root command for the discord-oidc-bridge CLI.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		slog.Error("Error binding debug flag", "error", err.Error())
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to configuration file")
	if err := viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")); err != nil {
		slog.Error("Error binding config flag", "error", err.Error())
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())

	// Silence printing the usage on error
	rootCmd.SilenceUsage = true

	return rootCmd
}

// newVersionCmd creates the version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("discord-oidc-bridge version: %s\n", getVersion())
		},
	}
}
