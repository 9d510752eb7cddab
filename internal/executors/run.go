// SPDX-License-Identifier: AGPL-3.0-or-later

package executors

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"sitegraph/internal/execrunner"
	"sitegraph/internal/graph"
	"sitegraph/internal/logging"
)

// RunExecutor invokes the external OSM extraction tool with the merged
// config and the OSM extract, atomically publishing its output (spec.md
// §4.4 "Run (external tool)"). n.Children holds [concatenator,
// downloader] per builder.addOSMExportToolNodes.
type RunExecutor struct {
	Deps
}

func (e *RunExecutor) Execute(ctx context.Context, n *graph.Node) (graph.Status, error) {
	var configPath, extractPath string
	for _, c := range n.Children {
		switch c.NodeType {
		case graph.NodeTypeConcatenate:
			configPath = c.Output
		case graph.NodeTypeDownload:
			extractPath = c.Output
		}
	}
	if configPath == "" || extractPath == "" {
		return graph.StatusFailed, fmt.Errorf("run node %s missing config or extract input", n.Name)
	}

	outName := fmt.Sprintf("osm_run_%d.gpkg", n.GlobalURN)
	finalPath := filepath.Join(e.Config.OSMDir(), outName)
	tmpPath := finalPath + ".tmp"

	if !e.Overwrite {
		if info, err := os.Stat(finalPath); err == nil && info.Size() > 0 {
			e.Log.Debug("osm runner output already present, skipping", logging.F("path", finalPath))
			e.publish(n, finalPath)
			n.Output = finalPath
			return graph.StatusProcessed, nil
		}
	}

	tool := "osm-extraction-tool"
	cmd := execrunner.Command{
		Name: tool,
		Args: []string{"--config", configPath, "--input", extractPath, "--output", tmpPath},
	}
	if _, err := e.Runner.Run(ctx, cmd); err != nil {
		_ = os.Remove(tmpPath)
		return graph.StatusFailed, fmt.Errorf("running osm extraction tool: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return graph.StatusFailed, fmt.Errorf("publishing osm runner output %s: %w", finalPath, err)
	}

	e.publish(n, finalPath)
	n.Output = finalPath
	return graph.StatusProcessed, nil
}

func (e *RunExecutor) publish(n *graph.Node, path string) {
	if e.Shared != nil {
		e.Shared.Publish(n.GlobalURN, path)
	}
}
