// SPDX-License-Identifier: AGPL-3.0-or-later

package builder

import (
	"sitegraph/internal/graph"
	"sitegraph/internal/sitespec"
)

// applyBuffers folds the "buffers" subtree onto the matching source node
// as action=buffer with a resolved buffer_value (spec.md §4.2 step 4).
// buffer_value may itself be a math expression (e.g. "blade_radius * 2"),
// resolved against the branch's math context same as height-to-tip and
// blade-radius. A node not named in buffers is left untouched (no buffer
// action).
func applyBuffers(nodes []*graph.Node, buffers []sitespec.BufferSpec, ctx mathContextT) {
	byName := make(map[string]string, len(buffers))
	for _, b := range buffers {
		byName[b.Name] = b.BufferValue
	}
	for _, n := range nodes {
		if raw, ok := byName[n.Name]; ok {
			v, _ := resolveExpr(raw, ctx)
			n.Action = graph.ActionBuffer
			n.Custom.BufferValue = v
		}
	}
}
