// SPDX-License-Identifier: AGPL-3.0-or-later

package executors

import (
	"context"
	"fmt"

	"sitegraph/internal/graph"
	"sitegraph/internal/logging"
	"sitegraph/internal/postgis"
	"sitegraph/internal/registry"
)

// seamWeldBatchSize is the default iterative-weld batch size M
// (spec.md §4.4 "Postprocess (seam welding)" step 3).
const seamWeldBatchSize = 50

// PostprocessExecutor seam-welds a grid-partitioned table (spec.md
// §4.4 "Postprocess (seam welding)"): rows touching a buffered
// grid-edge band are seams, everything else is an island. It attempts
// a single conventional union over all seams first; on failure it
// falls back to an iterative weld in batches of seamWeldBatchSize; if
// both fail it degrades gracefully by preserving grid-partitioned
// seams. Output = welded seams ∪ islands.
type PostprocessExecutor struct {
	Deps
}

func (e *PostprocessExecutor) Execute(ctx context.Context, n *graph.Node) (graph.Status, error) {
	if len(n.Children) != 1 {
		return graph.StatusFailed, fmt.Errorf("postprocess node %s expects exactly one child, got %d", n.Name, len(n.Children))
	}
	srcTable := n.Children[0].Output
	destTable := outputTableName("postprocess", n.Custom.Hash)

	already, err := e.Registry.IsComplete(ctx, destTable)
	if err != nil {
		return graph.StatusFailed, err
	}
	if already && !e.Overwrite {
		n.Output = destTable
		return graph.StatusProcessed, nil
	}

	seams := destTable + "_seams"
	islands := destTable + "_islands"
	for _, t := range []string{seams, islands} {
		if err := e.Pool.DropTable(ctx, t); err != nil {
			return graph.StatusFailed, err
		}
	}

	seamSQL := fmt.Sprintf(`CREATE UNLOGGED TABLE "%s" AS
		SELECT DISTINCT s.grid_id, s.geom FROM "%s" s, "%s" b
		WHERE ST_Intersects(s.geom, b.geom)`, seams, srcTable, postgis.TableEdgeBandGrid)
	if _, err := e.Pool.Exec(ctx, seamSQL); err != nil {
		return graph.StatusFailed, fmt.Errorf("identifying seams for %s: %w", destTable, err)
	}
	islandSQL := fmt.Sprintf(`CREATE UNLOGGED TABLE "%s" AS
		SELECT s.grid_id, s.geom FROM "%s" s
		WHERE NOT EXISTS (SELECT 1 FROM "%s" sm WHERE sm.grid_id = s.grid_id)`,
		islands, srcTable, seams)
	if _, err := e.Pool.Exec(ctx, islandSQL); err != nil {
		return graph.StatusFailed, fmt.Errorf("identifying islands for %s: %w", destTable, err)
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

	welded, weldErr := e.conventionalWeld(ctx, seams)
	if weldErr != nil {
		e.Log.Warn("conventional weld failed, falling back to iterative weld",
			logging.F("table", destTable), logging.F("error", weldErr.Error()))
		welded, weldErr = e.iterativeWeld(ctx, seams)
	}

	weldOK := weldErr == nil
	if !weldOK {
		e.Log.Warn("iterative weld also failed, preserving grid-partitioned seams",
			logging.F("table", destTable), logging.F("error", weldErr.Error()))
	} else {
		defer e.Pool.DropTable(ctx, welded) //nolint:errcheck
	}
	finalSQL := buildPostprocessFinalSQL(destTable, seams, islands, welded, weldOK)
	if _, err := e.Pool.Exec(ctx, finalSQL); err != nil {
		return graph.StatusFailed, fmt.Errorf("assembling postprocess output %s: %w", destTable, err)
	}

	for _, t := range []string{seams, islands} {
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

// buildPostprocessFinalSQL assembles the final output as welded seams
// (or, on total weld failure, the raw grid-partitioned seams) union
// islands. ST_Union over zero rows returns one row with geom IS NULL
// (aggregate-over-empty-set semantics), so the welded branch filters
// that row out: with zero seams, output must equal islands exactly
// (spec.md §8 "Zero-feature seam set ⇒ postprocess produces a table
// equal to the islands set"), not islands plus a phantom null geometry.
func buildPostprocessFinalSQL(destTable, seams, islands, welded string, weldOK bool) string {
	if !weldOK {
		return fmt.Sprintf(`CREATE TABLE "%s" AS
			SELECT grid_id, geom FROM "%s"
			UNION ALL
			SELECT grid_id, geom FROM "%s"`, destTable, seams, islands)
	}
	return fmt.Sprintf(`CREATE TABLE "%s" AS
		SELECT NULL::int AS grid_id, geom FROM "%s" WHERE geom IS NOT NULL
		UNION ALL
		SELECT grid_id, geom FROM "%s"`, destTable, welded, islands)
}

// conventionalWeld attempts a single union over all seam geometries.
func (e *PostprocessExecutor) conventionalWeld(ctx context.Context, seams string) (string, error) {
	out := seams + "_welded"
	if err := e.Pool.DropTable(ctx, out); err != nil {
		return "", err
	}
	sql := fmt.Sprintf(`CREATE UNLOGGED TABLE "%s" AS SELECT ST_Union(geom) AS geom FROM "%s"`, out, seams)
	if _, err := e.Pool.Exec(ctx, sql); err != nil {
		return "", err
	}
	return out, nil
}

// iterativeWeld seeds an accumulator with the first seam, then folds in
// batches of seamWeldBatchSize more seams at a time, running VACUUM
// between batches to reclaim space (spec.md §4.4 step 3).
func (e *PostprocessExecutor) iterativeWeld(ctx context.Context, seams string) (string, error) {
	out := seams + "_welded_iter"
	if err := e.Pool.DropTable(ctx, out); err != nil {
		return "", err
	}

	var total int
	if err := e.Pool.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM "%s"`, seams)).Scan(&total); err != nil {
		return "", fmt.Errorf("counting seams: %w", err)
	}
	if total == 0 {
		sql := fmt.Sprintf(`CREATE UNLOGGED TABLE "%s" AS SELECT NULL::geometry AS geom WHERE false`, out)
		if _, err := e.Pool.Exec(ctx, sql); err != nil {
			return "", err
		}
		return out, nil
	}

	seedSQL := fmt.Sprintf(`CREATE UNLOGGED TABLE "%s" AS
		SELECT geom FROM "%s" ORDER BY grid_id LIMIT 1`, out, seams)
	if _, err := e.Pool.Exec(ctx, seedSQL); err != nil {
		return "", fmt.Errorf("seeding iterative weld: %w", err)
	}

	for offset := 1; offset < total; offset += seamWeldBatchSize {
		batchSQL := fmt.Sprintf(`
			WITH batch AS (
				SELECT geom FROM "%s" ORDER BY grid_id OFFSET $1 LIMIT $2
			)
			UPDATE "%s" acc SET geom = ST_Union(acc.geom, (SELECT ST_Union(geom) FROM batch))`,
			seams, out)
		if _, err := e.Pool.Exec(ctx, batchSQL, offset, seamWeldBatchSize); err != nil {
			return "", fmt.Errorf("welding batch at offset %d: %w", offset, err)
		}
		if _, err := e.Pool.Exec(ctx, fmt.Sprintf(`VACUUM "%s"`, out)); err != nil {
			return "", fmt.Errorf("vacuuming %s after batch at offset %d: %w", out, offset, err)
		}
	}

	return out, nil
}
