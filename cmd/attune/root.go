// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Attune Contributors

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/attune-dev/attune/internal/config"
)

// NewRootCmd builds the attune command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "attune",
		Short: "A chat assistant that adapts to you",
		Long: `Attune is a conversational assistant that learns as you talk to it.
Corrections are validated and remembered as facts, stated preferences
shape every later reply, and both live in a local semantic store so
retrieval stays grounded in what you actually told it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setupLogging(cmd)
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file (default ~/.config/attune/attune.yaml)")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newChatCmd(),
		newInitCmd(),
		newStatusCmd(),
		newDoctorCmd(),
		newVersionCmd(),
	)

	return root
}

// setupLogging routes slog to stderr so log lines never interleave with
// conversation output on stdout.
func setupLogging(cmd *cobra.Command) error {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return err
	}
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
	return nil
}

// loadConfig loads configuration for a command: the --config flag if
// given, otherwise the default path (created on first run), otherwise
// built-in defaults. Returns the config and the path it came from; the
// path is empty when running on pure defaults.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, "", err
	}
	if path == "" {
		path = config.DiscoverPath()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	config.WarnInsecurePermissions(path, cfg)
	return cfg, path, nil
}
