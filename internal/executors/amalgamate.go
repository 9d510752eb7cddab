// SPDX-License-Identifier: AGPL-3.0-or-later

package executors

import (
	"context"
	"fmt"

	"sitegraph/internal/graph"
	"sitegraph/internal/registry"
)

// AmalgamateExecutor unions N grid-partitioned child tables sharing the
// same grid (spec.md §4.4 "Amalgamate"). For N=1 it is a direct copy.
// For N>1, children are concatenated into an unlogged staging table and
// then unioned per grid square, one square's working set at a time, to
// bound the PostGIS union memory footprint.
type AmalgamateExecutor struct {
	Deps
}

func (e *AmalgamateExecutor) Execute(ctx context.Context, n *graph.Node) (graph.Status, error) {
	if len(n.Children) == 0 {
		return graph.StatusFailed, fmt.Errorf("amalgamate node %s has no children", n.Name)
	}
	destTable := outputTableName("amalgamate", n.Custom.Hash)

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

	if len(n.Children) == 1 {
		copySQL := fmt.Sprintf(`CREATE TABLE "%s" AS SELECT * FROM "%s"`, destTable, n.Children[0].Output)
		if _, err := e.Pool.Exec(ctx, copySQL); err != nil {
			return graph.StatusFailed, fmt.Errorf("copying %s into %s: %w", n.Children[0].Output, destTable, err)
		}
	} else {
		staging := destTable + "_staging"
		if err := e.Pool.DropTable(ctx, staging); err != nil {
			return graph.StatusFailed, err
		}
		unionParts := make([]string, len(n.Children))
		for i, c := range n.Children {
			unionParts[i] = fmt.Sprintf(`SELECT grid_id, geom FROM "%s"`, c.Output)
		}
		stageSQL := fmt.Sprintf(`CREATE UNLOGGED TABLE "%s" AS %s`, staging, joinUnionAll(unionParts))
		if _, err := e.Pool.Exec(ctx, stageSQL); err != nil {
			return graph.StatusFailed, fmt.Errorf("staging amalgamate inputs for %s: %w", destTable, err)
		}

		gridSQL := fmt.Sprintf(`CREATE TABLE "%s" AS
			SELECT grid_id, ST_Union(geom) AS geom
			FROM "%s"
			GROUP BY grid_id`, destTable, staging)
		if _, err := e.Pool.Exec(ctx, gridSQL); err != nil {
			return graph.StatusFailed, fmt.Errorf("amalgamating into %s: %w", destTable, err)
		}
		_ = e.Pool.DropTable(ctx, staging)
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

func joinUnionAll(parts []string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += " UNION ALL " + p
	}
	return out
}
