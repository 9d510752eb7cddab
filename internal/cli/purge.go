// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"sitegraph/internal/app"
)

func newPurgeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Remove managed state (registry rows, downloads, outputs)",
		Long:  "Removes one or more categories of managed state. At least one of --all/--db/--downloads/--outputs is required; --db, --downloads and --outputs may be combined, and --all covers all three.",
		RunE:  runPurge,
	}

	cmd.Flags().Bool("all", false, "remove every managed table, downloaded file, and output (spec.md §8 scenario 6)")
	cmd.Flags().Bool("db", false, "drop every registry/branch row")
	cmd.Flags().Bool("downloads", false, "remove every file under the downloads directory")
	cmd.Flags().Bool("outputs", false, "remove every file under output/ and tileserver/")

	return cmd
}

func runPurge(cmd *cobra.Command, _ []string) error {
	all, _ := cmd.Flags().GetBool("all")
	db, _ := cmd.Flags().GetBool("db")
	downloads, _ := cmd.Flags().GetBool("downloads")
	outputs, _ := cmd.Flags().GetBool("outputs")

	selected := countTrue(all, db, downloads, outputs)
	if selected == 0 {
		return fmt.Errorf("one of --all, --db, --downloads, --outputs is required")
	}
	if selected > 1 && !all {
		return fmt.Errorf("--db, --downloads, and --outputs are mutually exclusive; use --all to do all of them")
	}

	log := loggerFromFlags(cmd)
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	ctx := cmd.Context()
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	switch {
	case all:
		if err := a.PurgeAll(ctx); err != nil {
			return fmt.Errorf("purging all: %w", err)
		}
	case db:
		if err := a.PurgeDB(ctx); err != nil {
			return fmt.Errorf("purging db: %w", err)
		}
	case downloads:
		if err := a.PurgeDownloads(); err != nil {
			return fmt.Errorf("purging downloads: %w", err)
		}
	case outputs:
		if err := a.PurgeOutputs(); err != nil {
			return fmt.Errorf("purging outputs: %w", err)
		}
	}

	log.Info("purge complete")
	return nil
}

func countTrue(vals ...bool) int {
	n := 0
	for _, v := range vals {
		if v {
			n++
		}
	}
	return n
}
