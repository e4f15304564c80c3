// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemonic Contributors

package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Chasewhip8/mnemonic-sub000/internal/config"
)

// NewRootCmd creates the root mnemonic command with all subcommands
// registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mnemonic",
		Short:         "Mnemonic — durable scoped memory for autonomous agents",
		Long:          "Mnemonic persists agent learnings with semantic embeddings, retrieves the most relevant ones for a new context, and tracks revisioned working state for in-flight runs.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			verbose, _ := cmd.Flags().GetBool("verbose")
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
			return nil
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")

	root.AddCommand(
		newServeCmd(),
		newRetentionCmd(),
		newStatsCmd(),
		newVersionCmd(),
	)

	return root
}

// loadConfig resolves the --config flag, falling back to the default
// location (bootstrapping it on first run) and finally to built-in
// defaults when no file exists anywhere.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	if cfgPath == "" {
		if path, err := config.DefaultConfigPath(); err == nil {
			if _, statErr := os.Stat(path); statErr == nil {
				cfgPath = path
			} else if written := config.BootstrapConfig(); written != "" {
				cfgPath = written
			}
		}
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	config.WarnInsecurePermissions(cfgPath)
	return cfg, nil
}
