// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"sitegraph/internal/app"
	"sitegraph/internal/logging"
)

func newGraphCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph <height-to-tip> [blade-radius]",
		Short: "Build the graph and print a summary without executing it",
		Long:  "Resolves the configured site descriptions into a build graph, same as build --graphonly.",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runGraph,
	}

	cmd.Flags().String("clip", "", "administrative region to clip the build to")
	cmd.Flags().String("custom", "", "override OSM source URL, bypassing the catalogue")
	cmd.Flags().Bool("snapgrid", false, "recorded in the build options; no grid snapping is applied")

	return cmd
}

func runGraph(cmd *cobra.Command, args []string) error {
	heightToTip, bladeRadius, err := parsePositionalDims(args)
	if err != nil {
		return err
	}

	opts, err := collectBuildOptions(cmd, heightToTip, bladeRadius)
	if err != nil {
		return err
	}
	opts.GraphOnly = true

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

	g, err := a.RunBuild(ctx, opts)
	if err != nil {
		return err
	}

	byAction := map[string]int{}
	for _, n := range g.Nodes() {
		byAction[string(n.Action)]++
	}
	fields := make([]logging.Field, 0, len(byAction)+1)
	fields = append(fields, logging.F("total_nodes", len(g.Nodes())))
	for action, count := range byAction {
		fields = append(fields, logging.F(action, count))
	}
	log.Info("graph summary", fields...)
	return nil
}
