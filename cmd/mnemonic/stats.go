// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemonic Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show memory store statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			app, err := WireApp(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			stats, err := app.Memory.Stats(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "learnings: %d\n", stats.TotalLearnings)
			fmt.Fprintf(out, "secrets:   %d\n", stats.TotalSecrets)
			for _, sc := range stats.Scopes {
				fmt.Fprintf(out, "  %-24s %d\n", sc.Scope, sc.Count)
			}
			return nil
		},
	}
}
