// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"sitegraph/internal/app"
	"sitegraph/internal/logging"
)

func newBuildCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build <height-to-tip> [blade-radius]",
		Short: "Run a full build against the configured PostGIS database",
		Long:  "Resolves the configured site descriptions into a build graph and drives every node to completion via the scheduler.",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runBuild,
	}

	cmd.Flags().String("clip", "", "administrative region to clip the build to")
	cmd.Flags().String("custom", "", "override OSM source URL, bypassing the catalogue")
	cmd.Flags().Bool("preview", false, "write an incremental graph-status snapshot to output/graph_preview.json after every completed node")
	cmd.Flags().Bool("overwrite", false, "bypass the registry's completed-node early exit")
	cmd.Flags().Bool("snapgrid", false, "recorded in the build options; no grid snapping is applied")
	cmd.Flags().StringSlice("outputformats", []string{"gpkg"}, "recorded in the build options; the build graph has no output step that reads it")
	cmd.Flags().Bool("graphonly", false, "build the graph and exit without executing it")

	return cmd
}

func runBuild(cmd *cobra.Command, args []string) error {
	heightToTip, bladeRadius, err := parsePositionalDims(args)
	if err != nil {
		return err
	}

	opts, err := collectBuildOptions(cmd, heightToTip, bladeRadius)
	if err != nil {
		return err
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

	g, err := a.RunBuild(ctx, opts)
	if err != nil {
		return err
	}

	if opts.GraphOnly {
		log.Info("graph-only build complete", logging.F("nodes", len(g.Nodes())))
	} else {
		log.Info("build complete", logging.F("nodes", len(g.Nodes())))
	}
	return nil
}

func collectBuildOptions(cmd *cobra.Command, heightToTip, bladeRadius string) (app.Options, error) {
	clip, _ := cmd.Flags().GetString("clip")
	custom, _ := cmd.Flags().GetString("custom")
	preview, _ := cmd.Flags().GetBool("preview")
	overwrite, _ := cmd.Flags().GetBool("overwrite")
	snapgrid, _ := cmd.Flags().GetBool("snapgrid")
	outputFormats, _ := cmd.Flags().GetStringSlice("outputformats")
	graphOnly, _ := cmd.Flags().GetBool("graphonly")
	sites, _ := cmd.Flags().GetStringSlice("sites")
	verbose, _ := cmd.Flags().GetBool("verbose")

	if len(sites) == 0 {
		return app.Options{}, fmt.Errorf("--sites is required")
	}

	return app.Options{
		HeightToTip:   heightToTip,
		BladeRadius:   bladeRadius,
		ClipArea:      clip,
		CustomURL:     custom,
		GraphOnly:     graphOnly,
		Preview:       preview,
		Overwrite:     overwrite,
		Snapgrid:      snapgrid,
		OutputFormats: outputFormats,
		SitePaths:     sites,
		Verbose:       verbose,
	}, nil
}
