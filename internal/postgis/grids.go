// SPDX-License-Identifier: AGPL-3.0-or-later

package postgis

import (
	"context"
	"fmt"
)

// Reserved internal table names (spec.md §6: "Reserved table names
// include the registry, branch, clipping master/temp, processing grid,
// output grid, buffered-edges grid, and OSM boundaries").
const (
	TableRegistry       = InternalTablePrefix + "registry"
	TableBranch         = InternalTablePrefix + "branch"
	TableClipMaster     = InternalTablePrefix + "clip_master"
	TableClipTemp       = InternalTablePrefix + "clip_temp"
	TableProcessingGrid = InternalTablePrefix + "processing_grid"
	TableOutputGrid     = InternalTablePrefix + "output_grid"
	TableEdgeBandGrid   = InternalTablePrefix + "edge_band_grid"
	TableOSMBoundaries  = InternalTablePrefix + "osm_boundaries"
)

// GridSpacing holds the coarse processing-grid and finer output-grid
// square sizes, in metres of the working CRS (spec.md §4.6, GLOSSARY).
type GridSpacing struct {
	ProcessingMetres float64
	OutputMetres     float64
}

// DefaultGridSpacing is a reasonable default for a country-scale study
// area: processing squares large enough to bound union working sets,
// output squares fine enough for rendering-friendly slicing.
var DefaultGridSpacing = GridSpacing{ProcessingMetres: 10000, OutputMetres: 1000}

// DefaultEdgeBandMetres is a reasonable default width for the
// buffered-edges band EnsureEdgeBandGrid derives from the processing
// grid: wide enough to catch features straddling a square boundary,
// narrow relative to DefaultGridSpacing.ProcessingMetres so seam rows
// stay a small fraction of the total.
const DefaultEdgeBandMetres = 100

// EnsureClippingMaster creates the clipping-master table if absent. Its
// single polygon row must be populated by an external import before any
// preprocess executor can run; EnsureClippingMaster only guarantees the
// table and index exist (spec.md §4.6: "ensures the clipping-master
// polygon ... exist in the database").
func (p *Pool) EnsureClippingMaster(ctx context.Context) error {
	sql := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id serial PRIMARY KEY,
		geom geometry(MultiPolygon, %d) NOT NULL
	)`, quoteIdent(TableClipMaster), WorkingSRID)
	if _, err := p.Exec(ctx, sql); err != nil {
		return fmt.Errorf("ensuring clipping master table: %w", err)
	}
	return p.EnsureGiSTIndex(ctx, TableClipMaster)
}

// EnsureGrid creates a square-grid tessellation table over the clipping
// master's bounding box at the given spacing, if it doesn't already have
// rows. table is one of TableProcessingGrid or TableOutputGrid.
func (p *Pool) EnsureGrid(ctx context.Context, table string, spacingMetres float64) error {
	createSQL := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		grid_id serial PRIMARY KEY,
		geom geometry(Polygon, %d) NOT NULL
	)`, quoteIdent(table), WorkingSRID)
	if _, err := p.Exec(ctx, createSQL); err != nil {
		return fmt.Errorf("ensuring grid table %s: %w", table, err)
	}
	if err := p.EnsureGiSTIndex(ctx, table); err != nil {
		return err
	}

	var count int
	countSQL := fmt.Sprintf("SELECT count(*) FROM %s", quoteIdent(table))
	if err := p.QueryRow(ctx, countSQL).Scan(&count); err != nil {
		return fmt.Errorf("counting grid rows in %s: %w", table, err)
	}
	if count > 0 {
		return nil
	}

	populateSQL := fmt.Sprintf(`
		INSERT INTO %s (geom)
		SELECT ST_SetSRID(ST_MakeEnvelope(
			x, y, x + $1, y + $1
		), %d)
		FROM (
			SELECT
				minx + (i * $1) AS x,
				miny + (j * $1) AS y
			FROM (
				SELECT ST_XMin(env) AS minx, ST_YMin(env) AS miny,
					ceil((ST_XMax(env) - ST_XMin(env)) / $1)::int AS nx,
					ceil((ST_YMax(env) - ST_YMin(env)) / $1)::int AS ny
				FROM (SELECT ST_Envelope(ST_Collect(geom)) AS env FROM %s) e
			) bounds,
			generate_series(0, bounds.nx) AS i,
			generate_series(0, bounds.ny) AS j
		) squares`,
		quoteIdent(table), WorkingSRID, quoteIdent(TableClipMaster))

	if _, err := p.Exec(ctx, populateSQL, spacingMetres); err != nil {
		return fmt.Errorf("populating grid table %s: %w", table, err)
	}
	return nil
}

// EnsureEdgeBandGrid derives the buffered-edges grid used by
// postprocess's seam/island split (spec.md §4.4, GLOSSARY "Seam
// geometry"): a band of the given width around every processing-grid
// square edge.
func (p *Pool) EnsureEdgeBandGrid(ctx context.Context, bandMetres float64) error {
	createSQL := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		grid_id int NOT NULL,
		geom geometry(Polygon, %d) NOT NULL
	)`, quoteIdent(TableEdgeBandGrid), WorkingSRID)
	if _, err := p.Exec(ctx, createSQL); err != nil {
		return fmt.Errorf("ensuring edge band grid table: %w", err)
	}
	if err := p.EnsureGiSTIndex(ctx, TableEdgeBandGrid); err != nil {
		return err
	}

	var count int
	if err := p.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s", quoteIdent(TableEdgeBandGrid))).Scan(&count); err != nil {
		return fmt.Errorf("counting edge band rows: %w", err)
	}
	if count > 0 {
		return nil
	}

	populateSQL := fmt.Sprintf(`
		INSERT INTO %s (grid_id, geom)
		SELECT grid_id, ST_Difference(ST_Buffer(ST_Boundary(geom), $1), ST_Buffer(geom, -$1))
		FROM %s`, quoteIdent(TableEdgeBandGrid), quoteIdent(TableProcessingGrid))
	if _, err := p.Exec(ctx, populateSQL, bandMetres); err != nil {
		return fmt.Errorf("populating edge band grid: %w", err)
	}
	return nil
}
