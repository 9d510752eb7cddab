// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"encoding/json"
	"os"
	"path/filepath"

	"sitegraph/internal/graph"
	"sitegraph/internal/logging"
)

// previewNode is the JSON shape written to the incremental progress
// snapshot, mirroring server.nodeView's fields.
type previewNode struct {
	URN       int    `json:"urn"`
	GlobalURN int    `json:"global_urn"`
	Name      string `json:"name"`
	Action    string `json:"action"`
	Status    string `json:"status"`
}

// previewPath is the fixed snapshot file a --preview build overwrites
// after every completed node (spec.md §6 "--preview"; recovered from
// original_source's per-completion graph.generate_graph_preview()).
func previewPath(buildRoot string) string {
	return filepath.Join(buildRoot, "output", "graph_preview.json")
}

// writePreviewSnapshot overwrites the preview file with g's current
// node statuses. Failures are logged, not returned: a missed snapshot
// must never fail the build it's only reporting progress for.
func writePreviewSnapshot(path string, g *graph.Graph, log logging.Logger) {
	nodes := g.Nodes()
	views := make([]previewNode, len(nodes))
	for i, n := range nodes {
		views[i] = previewNode{URN: n.URN, GlobalURN: n.GlobalURN, Name: n.Name, Action: string(n.Action), Status: string(n.Status)}
	}

	data, err := json.MarshalIndent(views, "", "  ")
	if err != nil {
		log.Warn("marshaling graph preview", logging.F("error", err.Error()))
		return
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		log.Warn("writing graph preview", logging.F("error", err.Error()))
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		log.Warn("publishing graph preview", logging.F("error", err.Error()))
	}
}
