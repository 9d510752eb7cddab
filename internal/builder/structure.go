// SPDX-License-Identifier: AGPL-3.0-or-later

package builder

import (
	"sitegraph/internal/graph"
	"sitegraph/internal/sitespec"
)

// promoteStructure implements spec.md §4.2 step 5: the "structure"
// subtree is promoted to become the branch's children; each surviving
// node becomes node_type=source.
func promoteStructure(g *graph.Graph, site *sitespec.Site, branchHash string) ([]*graph.Node, error) {
	nodes := make([]*graph.Node, 0, len(site.Structure))
	for _, ref := range site.Structure {
		n := graph.NewNode(g.NextURN(), ref.Name, graph.NodeTypeSource)
		n.Custom.Hash = branchHash
		n.Custom.Parent = ref.Parent
		if err := g.AddNode(n); err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}
