// SPDX-License-Identifier: AGPL-3.0-or-later

package executors

import (
	"context"
	"fmt"
	"strings"

	"sitegraph/internal/graph"
	"sitegraph/internal/postgis"
	"sitegraph/internal/registry"
)

// ImportExecutor copies the rows for a local spatial file (or a runner's
// published output, via VAR:global_output_<gurn>) into a named PostGIS
// table, transformed to the working CRS, promoted to multi-geometry, and
// made valid (spec.md §4.4 "Import"). It reads them from the relation
// "stage_<sanitized path>", which must already exist in the database;
// it does not open the file and nothing in this package creates that
// relation. Per-dataset overrides may inject a predicate filter or
// explicit source CRS via Custom.Extra.
type ImportExecutor struct {
	Deps
}

func (e *ImportExecutor) Execute(ctx context.Context, n *graph.Node) (graph.Status, error) {
	sourcePath, err := e.resolveInput(n)
	if err != nil {
		return graph.StatusFailed, err
	}

	table := outputTableName("source", n.Custom.Hash)

	already, err := e.Registry.IsComplete(ctx, table)
	if err != nil {
		return graph.StatusFailed, fmt.Errorf("checking import completion for %s: %w", table, err)
	}
	if already && !e.Overwrite {
		n.Output = table
		return graph.StatusProcessed, nil
	}

	if err := e.Registry.UpsertBranch(ctx, registry.BranchRow{
		ConfigurationHash: n.Custom.Hash,
		BranchName:        n.Name,
		ConfigurationJSON: "{}",
	}); err != nil {
		return graph.StatusFailed, err
	}
	if err := e.Registry.Register(ctx, registry.Entry{
		OutputHandle:      table,
		LogicalName:       n.Name,
		BranchName:        n.Name,
		ConfigurationHash: n.Custom.Hash,
	}); err != nil {
		return graph.StatusFailed, err
	}

	srcCRS := n.Custom.Extra["source_crs"]
	predicate := n.Custom.Extra["predicate_filter"]

	if err := e.Pool.DropTable(ctx, table); err != nil {
		return graph.StatusFailed, err
	}

	importSQL := buildOGRImportSQL(table, sourcePath, srcCRS, predicate)
	if _, err := e.Pool.Exec(ctx, importSQL); err != nil {
		return graph.StatusFailed, fmt.Errorf("importing %s into %s: %w", sourcePath, table, err)
	}

	if err := e.Pool.EnsureGiSTIndex(ctx, table); err != nil {
		return graph.StatusFailed, err
	}
	if err := e.Registry.MarkComplete(ctx, table); err != nil {
		return graph.StatusFailed, err
	}

	n.Output = table
	return graph.StatusProcessed, nil
}

func (e *ImportExecutor) resolveInput(n *graph.Node) (string, error) {
	if strings.HasPrefix(n.Input, "VAR:") {
		gurn := n.Input
		for _, c := range n.Children {
			if graph.VarName(c.GlobalURN) == gurn {
				if resolved, ok := e.Shared.Resolve(c.GlobalURN); ok {
					return resolved, nil
				}
			}
		}
		return "", fmt.Errorf("import node %s could not resolve %s", n.Name, n.Input)
	}
	return n.Input, nil
}

// buildOGRImportSQL builds the import as a single CREATE TABLE ... AS
// SELECT statement: promote to the working SRID, force multi, validate.
// It selects from the relation "stage_<sanitized sourcePath>" and runs
// no ogr2ogr or other loader; that relation has to be present already.
func buildOGRImportSQL(table, sourcePath, srcCRS, predicate string) string {
	crsClause := fmt.Sprintf("ST_Transform(geom, %d)", postgis.WorkingSRID)
	if srcCRS != "" {
		crsClause = fmt.Sprintf("ST_Transform(ST_SetSRID(geom, %s), %d)", srcCRS, postgis.WorkingSRID)
	}
	where := ""
	if predicate != "" {
		where = " WHERE NOT (" + predicate + ")"
	}
	return fmt.Sprintf(
		`CREATE TABLE "%s" AS SELECT ST_Multi(ST_MakeValid(%s)) AS geom, * FROM %s%s`,
		table, crsClause, quoteSourceRelation(sourcePath), where,
	)
}

func quoteSourceRelation(sourcePath string) string {
	return `"stage_` + sanitizeRelation(sourcePath) + `"`
}

func sanitizeRelation(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
