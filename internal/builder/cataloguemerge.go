// SPDX-License-Identifier: AGPL-3.0-or-later

package builder

import (
	"sitegraph/internal/catalogue"
	"sitegraph/internal/graph"
)

// mergeCatalogue implements spec.md §4.2 step 6: for every node whose
// name matches a catalogue entry, title/input/format are overwritten
// with the authoritative values, selecting among resource candidates by
// the fixed format-priority list.
func mergeCatalogue(nodes []*graph.Node, data map[string]catalogue.Group) {
	byPackage := make(map[string]catalogue.Dataset)
	for _, group := range data {
		for _, ds := range group.Datasets {
			byPackage[ds.PackageName] = ds
		}
	}

	for _, n := range nodes {
		ds, ok := byPackage[n.Name]
		if !ok {
			continue
		}
		res, ok := catalogue.SelectResource(ds.Resources)
		if !ok {
			continue
		}
		n.Title = ds.Title
		n.Input = res.URL
		n.Format = res.Format
	}
}
