// SPDX-License-Identifier: AGPL-3.0-or-later

package executors

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"sitegraph/internal/graph"
	"sitegraph/internal/logging"
)

// ConcatenateExecutor merges the YAML config files of n.Children
// (siblings under a shared OSM runner) into one canonical config,
// named by hashing the merged content together with the upstream OSM
// URL (spec.md §4.4 "Concatenate"). Publishes the path via the
// node's global_urn shared-metadata key.
type ConcatenateExecutor struct {
	Deps
}

func (e *ConcatenateExecutor) Execute(ctx context.Context, n *graph.Node) (graph.Status, error) {
	names := make([]string, len(n.Children))
	for i, c := range n.Children {
		names[i] = c.Output
	}
	sort.Strings(names)

	merged, err := mergeYAMLConfigs(names)
	if err != nil {
		return graph.StatusFailed, err
	}

	hash := md5.Sum(append(merged, []byte(n.Custom.OSM)...))
	outName := fmt.Sprintf("osm_config_%s.yml", hex.EncodeToString(hash[:]))
	outPath := filepath.Join(e.Config.OSMDir(), outName)

	if !e.Overwrite {
		if _, err := os.Stat(outPath); err == nil {
			e.Log.Debug("merged OSM config already present, skipping", logging.F("path", outPath))
			e.publish(n, outPath)
			n.Output = outPath
			return graph.StatusProcessed, nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return graph.StatusFailed, fmt.Errorf("creating osm config dir: %w", err)
	}
	if err := os.WriteFile(outPath, merged, 0o644); err != nil {
		return graph.StatusFailed, fmt.Errorf("writing merged osm config %s: %w", outPath, err)
	}

	e.publish(n, outPath)
	n.Output = outPath
	return graph.StatusProcessed, nil
}

func (e *ConcatenateExecutor) publish(n *graph.Node, path string) {
	if e.Shared != nil {
		e.Shared.Publish(n.GlobalURN, path)
	}
}

// mergeYAMLConfigs concatenates the given YAML documents with "---"
// document separators, preserving each file's own top-level mapping as
// a separate document (the OSM extraction tool accepts a multi-document
// stream of per-layer mappings).
func mergeYAMLConfigs(paths []string) ([]byte, error) {
	var out []byte
	for i, p := range paths {
		content, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading osm config %s: %w", p, err)
		}
		if i > 0 {
			out = append(out, []byte("\n---\n")...)
		}
		out = append(out, content...)
	}
	return out, nil
}
