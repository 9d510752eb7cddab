// SPDX-License-Identifier: AGPL-3.0-or-later

package executors

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"sitegraph/internal/graph"
	"sitegraph/internal/postgis"
	"sitegraph/internal/registry"
)

// ClipExecutor intersects a seam-welded table with the named clip
// area's boundary, projecting into the output CRS (spec.md §4.4
// "Clip"). The output handle is dynamically chosen as
// <TablePrefix>clip_<md5(input table + clip area name)> for stability
// across reruns (spec.md §3 invariant 7).
type ClipExecutor struct {
	Deps
}

func (e *ClipExecutor) Execute(ctx context.Context, n *graph.Node) (graph.Status, error) {
	if len(n.Children) != 1 {
		return graph.StatusFailed, fmt.Errorf("clip node %s expects exactly one child, got %d", n.Name, len(n.Children))
	}
	srcTable := n.Children[0].Output
	clipArea := n.Custom.Clip
	if clipArea == "" {
		return graph.StatusFailed, fmt.Errorf("clip node %s has no clip area set", n.Name)
	}

	sum := md5.Sum([]byte(srcTable + "|" + clipArea))
	destTable := outputTableName("clip", hex.EncodeToString(sum[:]))

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

	sql := fmt.Sprintf(`CREATE TABLE "%s" AS
		SELECT ST_Transform(ST_Intersection(s.geom, a.geom), %d) AS geom
		FROM "%s" s, "%s" a
		WHERE a.name = $1 AND ST_Intersects(s.geom, a.geom)`,
		destTable, postgis.OutputSRID, srcTable, postgis.TableOSMBoundaries)
	if _, err := e.Pool.Exec(ctx, sql, clipArea); err != nil {
		return graph.StatusFailed, fmt.Errorf("clipping %s to %s: %w", srcTable, clipArea, err)
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
