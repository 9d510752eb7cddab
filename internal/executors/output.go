// SPDX-License-Identifier: AGPL-3.0-or-later

package executors

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"sitegraph/internal/execrunner"
	"sitegraph/internal/graph"
)

// outputDriver maps an output format label to the ogr2ogr driver name
// used to encode a PostGIS table to a file (spec.md §1: "emitting
// consolidated outputs in multiple formats").
var outputDriver = map[string]string{
	"GPKG":    "GPKG",
	"GeoJSON": "GeoJSON",
	"KML":     "KML",
}

// OutputExecutor exports its child's clipped table to a file in
// n.Format, under the managed output/layers directory.
type OutputExecutor struct {
	Deps
}

func (e *OutputExecutor) Execute(ctx context.Context, n *graph.Node) (graph.Status, error) {
	if len(n.Children) != 1 {
		return graph.StatusFailed, fmt.Errorf("output node %s expects exactly one child, got %d", n.Name, len(n.Children))
	}
	srcTable := n.Children[0].Output

	driver, ok := outputDriver[n.Format]
	if !ok {
		return graph.StatusFailed, fmt.Errorf("output node %s has unsupported format %q", n.Name, n.Format)
	}
	ext := strings.ToLower(n.Format)
	dest := filepath.Join(e.Config.OutputDir(), fmt.Sprintf("%s.%s", n.Name, ext))

	cmd := execrunner.Command{
		Name: "ogr2ogr",
		Args: []string{
			"-f", driver, dest,
			fmt.Sprintf("PG:dbname=%s host=%s port=%s user=%s password=%s",
				e.Config.PGDatabase, e.Config.PGHost, e.Config.PGPort, e.Config.PGUser, e.Config.PGPassword),
			srcTable,
		},
	}
	if _, err := e.Runner.Run(ctx, cmd); err != nil {
		return graph.StatusFailed, fmt.Errorf("encoding %s to %s: %w", srcTable, dest, err)
	}

	n.Output = dest
	return graph.StatusProcessed, nil
}
