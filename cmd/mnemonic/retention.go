// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemonic Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRetentionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retention",
		Short: "Run a retention sweep now",
		Long:  "Apply the retention tiers once against the local store and report what was soft-deleted.",
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

			res, err := app.Retention.Run(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "deleted %d learnings\n", res.Deleted)
			for _, reason := range res.Reasons {
				fmt.Fprintf(out, "  %s\n", reason)
			}
			return nil
		},
	}
}
