// SPDX-License-Identifier: AGPL-3.0-or-later

package executors

import (
	"context"
	"fmt"

	"sitegraph/internal/graph"
	"sitegraph/internal/registry"
)

// BufferExecutor buffers the single child's output table by
// n.Custom.BufferValue metres (spec.md §4.4 "Buffer"). Polygonal inputs
// are buffered by area; names in HedgerowExceptions are buffered as
// lines — boundary-then-buffer, unioned with a direct line buffer so
// Polygon and LineString rows in the same source both contribute
// correctly (spec.md §8 scenario 2).
type BufferExecutor struct {
	Deps
}

func (e *BufferExecutor) Execute(ctx context.Context, n *graph.Node) (graph.Status, error) {
	if len(n.Children) != 1 {
		return graph.StatusFailed, fmt.Errorf("buffer node %s expects exactly one child, got %d", n.Name, len(n.Children))
	}
	srcTable := n.Children[0].Output
	destTable := outputTableName("buffer", n.Custom.Hash)

	already, err := e.Registry.IsComplete(ctx, destTable)
	if err != nil {
		return graph.StatusFailed, err
	}
	if already && !e.Overwrite {
		n.Output = destTable
		return graph.StatusProcessed, nil
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

	var sql string
	if HedgerowExceptions[n.Name] {
		sql = fmt.Sprintf(`CREATE TABLE "%s" AS
			SELECT ST_Buffer(ST_Boundary(geom), $1) AS geom FROM "%s" WHERE GeometryType(geom) LIKE '%%POLYGON'
			UNION ALL
			SELECT ST_Buffer(geom, $1) AS geom FROM "%s" WHERE GeometryType(geom) LIKE '%%LINESTRING'`,
			destTable, srcTable, srcTable)
	} else {
		sql = fmt.Sprintf(`CREATE TABLE "%s" AS SELECT ST_Buffer(geom, $1) AS geom FROM "%s"`, destTable, srcTable)
	}

	if _, err := e.Pool.Exec(ctx, sql, n.Custom.BufferValue); err != nil {
		return graph.StatusFailed, fmt.Errorf("buffering %s into %s: %w", srcTable, destTable, err)
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
