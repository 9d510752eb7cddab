// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli wires the sitegraph root Cobra command and its
// build/graph/purge/server subcommands (spec.md §6 "Command-line
// surface").
package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"sitegraph/internal/config"
	"sitegraph/internal/logging"
)

// NewRootCommand constructs the sitegraph root command.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "sitegraph",
		Short:         "sitegraph builds geospatial constraint layers over PostGIS",
		Long:          "sitegraph resolves declarative site descriptions into an executable build graph and drives it to completion against a shared PostGIS database.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug-level logging")
	cmd.PersistentFlags().StringSlice("sites", nil, "site description YAML paths")

	cmd.AddCommand(newBuildCommand())
	cmd.AddCommand(newGraphCommand())
	cmd.AddCommand(newPurgeCommand())
	cmd.AddCommand(newServerCommand())

	return cmd
}

// parsePositionalDims parses the positional "height-to-tip
// [blade-radius]" numeric arguments (spec.md §6).
func parsePositionalDims(args []string) (heightToTip, bladeRadius string, err error) {
	if len(args) == 0 {
		return "", "", fmt.Errorf("height-to-tip is required")
	}
	if _, err := strconv.ParseFloat(args[0], 64); err != nil {
		// Allow a math expression too (resolved later by mathexpr); only
		// reject an obviously empty value here.
		if strings.TrimSpace(args[0]) == "" {
			return "", "", fmt.Errorf("height-to-tip must not be empty")
		}
	}
	heightToTip = args[0]
	if len(args) > 1 {
		bladeRadius = args[1]
	}
	if len(args) > 2 {
		return "", "", fmt.Errorf("unexpected extra arguments: %v", args[2:])
	}
	return heightToTip, bladeRadius, nil
}

func loggerFromFlags(cmd *cobra.Command) logging.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	return logging.NewDefault(verbose)
}

func loadConfig() (*config.Config, error) {
	return config.Load()
}
