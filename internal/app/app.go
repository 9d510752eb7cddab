// SPDX-License-Identifier: AGPL-3.0-or-later

// Package app wires the Application lifecycle described in spec.md
// §4.6: environment/option validation, directory bootstrap, clipping
// mask/grid bootstrap, clip-name resolution, and construction of
// CatalogueClient, Builder, Graph, and Scheduler for each supported
// mode (build, graph-only, the four purge variants, server).
package app

import (
	"context"
	"fmt"
	"path/filepath"

	"sitegraph/internal/builder"
	"sitegraph/internal/catalogue"
	"sitegraph/internal/config"
	"sitegraph/internal/execrunner"
	"sitegraph/internal/executors"
	"sitegraph/internal/graph"
	"sitegraph/internal/logging"
	"sitegraph/internal/postgis"
	"sitegraph/internal/registry"
	"sitegraph/internal/scheduler"
	"sitegraph/internal/sitespec"
)

// Options carries the resolved CLI surface (spec.md §6 "Command-line
// surface") into the application layer.
type Options struct {
	HeightToTip   string
	BladeRadius   string
	ClipArea      string
	CustomURL     string
	GraphOnly     bool
	Preview       bool
	Overwrite     bool
	Snapgrid      bool
	OutputFormats []string
	SitePaths     []string
	Verbose       bool
}

// CanonicalNameMap resolves an operator-supplied clip area name to the
// canonical administrative-region name stored in the OSM boundaries
// table, for names that don't match directly (spec.md §4.6 "verifies
// its name resolves to a known administrative region (directly or via
// a canonical-name map)").
type CanonicalNameMap map[string]string

// DefaultCanonicalNames is the UK constituent-country alias table
// (recovered from original_source/opensite/constants.py's
// OSM_NAME_CONVERT): operator-facing short/lowercase names map to the
// exact name OSM boundary polygons carry.
var DefaultCanonicalNames = CanonicalNameMap{
	"england":          "England",
	"wales":            "Cymru / Wales",
	"Wales":            "Cymru / Wales",
	"scotland":         "Alba / Scotland",
	"Scotland":         "Alba / Scotland",
	"northern-ireland": "Northern Ireland / Tuaisceart Éireann",
	"Northern Ireland": "Northern Ireland / Tuaisceart Éireann",
}

// Resolve returns the canonical name for raw, falling back to raw
// itself when no mapping entry exists.
func (m CanonicalNameMap) Resolve(raw string) string {
	if canon, ok := m[raw]; ok {
		return canon
	}
	return raw
}

// Application bundles every component the spec's lifecycle
// constructs and wires together (spec.md §4.6).
type Application struct {
	Config   *config.Config
	Log      logging.Logger
	Pool     *postgis.Pool
	Registry *registry.Registry
	Names    CanonicalNameMap
}

// New validates the environment, opens the PostGIS pool, and runs the
// registry's idempotent startup sync — every step spec.md §4.6 requires
// before any mode may proceed.
func New(ctx context.Context, cfg *config.Config, log logging.Logger) (*Application, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensuring directories: %w", err)
	}

	pool, err := postgis.Open(ctx, cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("opening postgis pool: %w", err)
	}

	if err := pool.EnsureClippingMaster(ctx); err != nil {
		return nil, fmt.Errorf("ensuring clipping master: %w", err)
	}
	if err := pool.EnsureGrid(ctx, postgis.TableProcessingGrid, postgis.DefaultGridSpacing.ProcessingMetres); err != nil {
		return nil, fmt.Errorf("ensuring processing grid: %w", err)
	}
	if err := pool.EnsureGrid(ctx, postgis.TableOutputGrid, postgis.DefaultGridSpacing.OutputMetres); err != nil {
		return nil, fmt.Errorf("ensuring output grid: %w", err)
	}
	if err := pool.EnsureEdgeBandGrid(ctx, postgis.DefaultEdgeBandMetres); err != nil {
		return nil, fmt.Errorf("ensuring edge band grid: %w", err)
	}

	reg := registry.New(pool)
	if err := reg.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensuring registry schema: %w", err)
	}
	if _, err := reg.Sync(ctx, pool, log); err != nil {
		return nil, fmt.Errorf("running startup sync: %w", err)
	}

	return &Application{Config: cfg, Log: log, Pool: pool, Registry: reg, Names: DefaultCanonicalNames}, nil
}

// Close releases the PostGIS pool.
func (a *Application) Close() {
	a.Pool.Close()
}

// ResolveClipArea validates that opts.ClipArea (if set) names a known
// administrative region, directly or via the canonical-name map
// (spec.md §4.6), returning the canonical name to stamp onto clip
// nodes.
func (a *Application) ResolveClipArea(ctx context.Context, raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	canon := a.Names.Resolve(raw)

	var exists bool
	q := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %q WHERE name = $1)`, postgis.TableOSMBoundaries)
	if err := a.Pool.QueryRow(ctx, q, canon).Scan(&exists); err != nil {
		return "", fmt.Errorf("resolving clip area %q: %w", raw, err)
	}
	if !exists {
		return "", fmt.Errorf("clip area %q does not resolve to a known administrative region", raw)
	}
	return canon, nil
}

// RunBuild loads sites, builds the graph, and (unless GraphOnly) drives
// it to completion via the scheduler (spec.md §4.6 "full build,
// graph-only").
func (a *Application) RunBuild(ctx context.Context, opts Options) (*graph.Graph, error) {
	sites, err := sitespec.LoadAll(opts.SitePaths)
	if err != nil {
		return nil, fmt.Errorf("loading sites: %w", err)
	}

	clipArea, err := a.ResolveClipArea(ctx, opts.ClipArea)
	if err != nil {
		return nil, err
	}

	defaults := sitespec.GlobalDefaults{
		HeightToTip: opts.HeightToTip,
		BladeRadius: opts.BladeRadius,
		Clip:        clipArea,
		OSM:         opts.CustomURL,
	}

	var catalogueClient catalogue.Client
	var catalogueData map[string]catalogue.Group
	if !opts.GraphOnly && opts.CustomURL == "" {
		catalogueClient = catalogue.NewHTTPClient(a.Config.TileserverURL)
		catalogueData, err = catalogueClient.Query(ctx)
		if err != nil {
			return nil, fmt.Errorf("querying catalogue: %w", err)
		}
	}

	b := builder.New(catalogueClient, builder.Options{Defaults: defaults, Snapgrid: opts.Snapgrid})
	g, err := b.Build(sites, catalogueData)
	if err != nil {
		return nil, fmt.Errorf("building graph: %w", err)
	}

	if opts.GraphOnly {
		return g, nil
	}

	deps := executors.Deps{
		Config:    a.Config,
		Pool:      a.Pool,
		Registry:  a.Registry,
		Shared:    graph.NewSharedOutputs(),
		Runner:    execrunner.New(a.Log),
		Log:       a.Log,
		Overwrite: opts.Overwrite,
	}
	schedOpts := scheduler.Options{}
	if opts.Preview {
		path := previewPath(a.Config.BuildRoot)
		schedOpts.OnProgress = func(gr *graph.Graph) {
			writePreviewSnapshot(path, gr, a.Log)
		}
	}

	dispatcher := executors.NewDispatcher(deps)
	sched := scheduler.New(g, dispatcher, a.Log, schedOpts)

	if err := sched.Run(ctx); err != nil {
		return g, fmt.Errorf("running scheduler: %w", err)
	}
	return g, nil
}

// PurgeDB drops every registry/branch row, per purge --db.
func (a *Application) PurgeDB(ctx context.Context) error {
	return a.Registry.PurgeAll(ctx)
}

// PurgeDownloads removes every file under the downloads directory, per
// purge --downloads.
func (a *Application) PurgeDownloads() error {
	return removeContents(a.Config.DownloadsDir())
}

// PurgeOutputs removes every file under output/ and tileserver/, per
// purge --outputs.
func (a *Application) PurgeOutputs() error {
	if err := removeContents(filepath.Join(a.Config.BuildRoot, "output")); err != nil {
		return err
	}
	return removeContents(filepath.Join(a.Config.BuildRoot, "tileserver"))
}

// PurgeAll removes downloads, outputs, tileserver, and install, and
// drops every managed table, per purge --all (spec.md §8 scenario 6).
func (a *Application) PurgeAll(ctx context.Context) error {
	if err := a.PurgeDB(ctx); err != nil {
		return err
	}
	if err := a.PurgeDownloads(); err != nil {
		return err
	}
	if err := a.PurgeOutputs(); err != nil {
		return err
	}
	if err := removeContents(filepath.Join(a.Config.BuildRoot, "install")); err != nil {
		return err
	}

	managed, err := a.Pool.ManagedTables(ctx)
	if err != nil {
		return fmt.Errorf("listing managed tables for purge-all: %w", err)
	}
	for _, t := range managed {
		if err := a.Pool.DropTable(ctx, t); err != nil {
			return fmt.Errorf("dropping %s during purge-all: %w", t, err)
		}
	}
	return nil
}
