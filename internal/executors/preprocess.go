// SPDX-License-Identifier: AGPL-3.0-or-later

package executors

import (
	"context"
	"fmt"

	"sitegraph/internal/graph"
	"sitegraph/internal/postgis"
	"sitegraph/internal/registry"
)

// PreprocessExecutor runs the dump/validate/clip/grid-partition pipeline
// described in spec.md §4.4 "Preprocess": dump multipart geometries to
// singletons and filter to polygon, clip against the master clipping
// polygon (splitting crosses-boundary intersections from
// wholly-contained passthroughs to keep intersection work minimal),
// then aggregate per processing-grid-square into (grid_id, geom) rows.
type PreprocessExecutor struct {
	Deps
}

func (e *PreprocessExecutor) Execute(ctx context.Context, n *graph.Node) (graph.Status, error) {
	if len(n.Children) != 1 {
		return graph.StatusFailed, fmt.Errorf("preprocess node %s expects exactly one child, got %d", n.Name, len(n.Children))
	}
	srcTable := n.Children[0].Output
	destTable := outputTableName("preprocess", n.Custom.Hash)

	already, err := e.Registry.IsComplete(ctx, destTable)
	if err != nil {
		return graph.StatusFailed, err
	}
	if already && !e.Overwrite {
		n.Output = destTable
		return graph.StatusProcessed, nil
	}

	dumped := destTable + "_dump"
	crossing := destTable + "_crossing"
	contained := destTable + "_contained"
	for _, t := range []string{dumped, crossing, contained} {
		if err := e.Pool.DropTable(ctx, t); err != nil {
			return graph.StatusFailed, err
		}
	}

	// (a) dump multipart to singletons, validate, filter to polygon.
	dumpSQL := fmt.Sprintf(`CREATE UNLOGGED TABLE "%s" AS
		SELECT ST_MakeValid((ST_Dump(geom)).geom) AS geom FROM "%s"`, dumped, srcTable)
	if _, err := e.Pool.Exec(ctx, dumpSQL); err != nil {
		return graph.StatusFailed, fmt.Errorf("dumping %s: %w", srcTable, err)
	}
	filterSQL := fmt.Sprintf(`DELETE FROM "%s" WHERE GeometryType(geom) NOT LIKE 'POLYGON%%'`, dumped)
	if _, err := e.Pool.Exec(ctx, filterSQL); err != nil {
		return graph.StatusFailed, fmt.Errorf("filtering %s to polygons: %w", dumped, err)
	}

	// (b) clip against the master polygon, split crossing vs contained.
	crossSQL := fmt.Sprintf(`CREATE UNLOGGED TABLE "%s" AS
		SELECT ST_Intersection(d.geom, m.geom) AS geom
		FROM "%s" d, "%s" m
		WHERE ST_Intersects(d.geom, m.geom) AND NOT ST_Within(d.geom, m.geom)`,
		crossing, dumped, postgis.TableClipMaster)
	if _, err := e.Pool.Exec(ctx, crossSQL); err != nil {
		return graph.StatusFailed, fmt.Errorf("computing crossing set for %s: %w", destTable, err)
	}
	containSQL := fmt.Sprintf(`CREATE UNLOGGED TABLE "%s" AS
		SELECT d.geom FROM "%s" d, "%s" m WHERE ST_Within(d.geom, m.geom)`,
		contained, dumped, postgis.TableClipMaster)
	if _, err := e.Pool.Exec(ctx, containSQL); err != nil {
		return graph.StatusFailed, fmt.Errorf("computing contained set for %s: %w", destTable, err)
	}

	if err := e.Registry.UpsertBranch(ctx, registry.BranchRow{ConfigurationHash: n.Custom.Hash, BranchName: n.Name, ConfigurationJSON: "{}"}); err != nil {
		return graph.StatusFailed, err
	}
	if err := e.Registry.Register(ctx, registry.Entry{OutputHandle: destTable, LogicalName: n.Name, BranchName: n.Name, ConfigurationHash: n.Custom.Hash}); err != nil {
		return graph.StatusFailed, err
	}
	if err := e.Pool.DropTable(ctx, destTable); err != nil {
		return graph.StatusFailed, err
	}

	// (c) per processing-grid-square, intersection-then-union into
	// (grid_id, geom) rows.
	gridSQL := fmt.Sprintf(`CREATE TABLE "%s" AS
		SELECT g.grid_id, ST_Union(ST_Intersection(u.geom, g.geom)) AS geom
		FROM "%s" g
		JOIN (SELECT geom FROM "%s" UNION ALL SELECT geom FROM "%s") u
			ON ST_Intersects(u.geom, g.geom)
		GROUP BY g.grid_id`,
		destTable, postgis.TableProcessingGrid, crossing, contained)
	if _, err := e.Pool.Exec(ctx, gridSQL); err != nil {
		return graph.StatusFailed, fmt.Errorf("grid-partitioning %s: %w", destTable, err)
	}

	for _, t := range []string{dumped, crossing, contained} {
		_ = e.Pool.DropTable(ctx, t)
	}

	if err := e.Pool.EnsureGiSTIndex(ctx, destTable); err != nil {
		return graph.StatusFailed, err
	}
	if err := e.Registry.MarkComplete(ctx, destTable); err != nil {
		return graph.StatusFailed, err
	}

	n.Output = destTable
	return graph.StatusProcessed, nil
}
