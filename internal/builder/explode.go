// SPDX-License-Identifier: AGPL-3.0-or-later

package builder

import (
	"fmt"
	"sort"
	"strings"

	"sitegraph/internal/graph"
)

// extensionForFormat is the fixed format->extension table used by
// add_downloads (spec.md §4.2 step 8) to choose a local filename.
var extensionForFormat = map[string]string{
	"GPKG":            "gpkg",
	"WFS":             "xml",
	"ArcGIS REST":     "json",
	"GeoJSON":         "geojson",
	"KML":             "kml",
	"osm-config-yaml": "yml",
}

func extensionFor(format string) string {
	if ext, ok := extensionForFormat[format]; ok {
		return ext
	}
	return "dat"
}

// osmCluster is the shared three-layer stack (concatenator + downloader
// under a runner) for one upstream OSM URL (spec.md §4.2
// add_osmexporttool_nodes). One cluster serves every branch/dataset that
// shares the URL, identified by the runner's global_urn.
type osmCluster struct {
	runner       *graph.Node
	concatenator *graph.Node
	downloader   *graph.Node
}

// explode runs the four splice passes in order (spec.md §4.2 step 8).
func (b *Builder) explode(g *graph.Graph, root *graph.Node, osmURL string) error {
	addParents(g, root)
	if err := addDownloads(g, root); err != nil {
		return err
	}
	addUnzips(g, root)
	if err := b.addOSMExportToolNodes(g, root, osmURL); err != nil {
		return err
	}
	return nil
}

// addParents wraps children sharing an identical "parent" custom
// property in a new group node with action=amalgamate (spec.md §4.2
// add_parents).
func addParents(g *graph.Graph, root *graph.Node) {
	groups := make(map[string][]*graph.Node)
	var order []string
	var ungrouped []*graph.Node

	for _, child := range root.Children {
		p := child.Custom.Parent
		if p == "" {
			ungrouped = append(ungrouped, child)
			continue
		}
		if _, seen := groups[p]; !seen {
			order = append(order, p)
		}
		groups[p] = append(groups[p], child)
	}

	newChildren := make([]*graph.Node, 0, len(ungrouped)+len(order))
	for _, p := range order {
		members := groups[p]
		amalgam := graph.NewNode(g.NextURN(), p, graph.NodeTypeGroup)
		amalgam.Action = graph.ActionAmalgamate
		amalgam.Title = commonTitlePrefix(members)
		amalgam.Children = members
		_ = g.AddNode(amalgam)
		newChildren = append(newChildren, amalgam)
	}
	newChildren = append(newChildren, ungrouped...)
	root.Children = newChildren
}

// commonTitlePrefix derives a group title from the common prefix of
// member titles (a member without a title contributes its name),
// falling back to the first member's title when they don't share a
// prefix.
func commonTitlePrefix(members []*graph.Node) string {
	if len(members) == 0 {
		return ""
	}
	titles := make([]string, len(members))
	for i, m := range members {
		t := m.Title
		if t == "" {
			t = m.Name
		}
		titles[i] = t
	}
	prefix := titles[0]
	for _, t := range titles[1:] {
		prefix = commonPrefix(prefix, t)
	}
	prefix = strings.TrimRight(prefix, " -_")
	if prefix == "" {
		return titles[0]
	}
	return prefix
}

func commonPrefix(a, b string) string {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return a[:i]
}

// addDownloads gives every terminal node whose input is an HTTP(S) URL a
// new download child, rewriting the parent's input to the local filename
// (spec.md §4.2 add_downloads). Terminal here means "leaf of the tree as
// built so far" — any node with no children of its own yet, including
// source nodes that addParents grouped under an amalgamate parent.
func addDownloads(g *graph.Graph, root *graph.Node) error {
	var walk func(n *graph.Node) error
	walk = func(n *graph.Node) error {
		if len(n.Children) == 0 {
			if isHTTPURL(n.Input) {
				ext := extensionFor(n.Format)
				filename := fmt.Sprintf("%s.%s", n.Name, ext)

				dl := graph.NewNode(g.NextURN(), n.Name, graph.NodeTypeDownload)
				dl.Action = graph.ActionDownload
				dl.Format = n.Format
				dl.Input = n.Input
				dl.Output = filename
				if err := g.AddNode(dl); err != nil {
					return err
				}

				n.Input = filename
				n.Children = []*graph.Node{dl}
			}
			return nil
		}
		for _, c := range n.Children {
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(root)
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// addUnzips splits a download whose URL ends in ".zip" (ignoring query)
// into a fetcher child and an unzip parent (spec.md §4.2 add_unzips).
func addUnzips(g *graph.Graph, root *graph.Node) {
	var walk func(n *graph.Node)
	walk = func(n *graph.Node) {
		for _, c := range n.Children {
			walk(c)
		}
		if n.Action != graph.ActionDownload {
			return
		}
		if !urlEndsInZip(n.Input) {
			return
		}

		// n currently is: action=download, Input=URL, Output=<name>.<ext>
		// Rewrite n in place into the unzip node and attach a new
		// download grandchild that fetches the archive itself.
		originalURL := n.Input
		target := n.Output
		archiveName := target + ".zip"

		dl := graph.NewNode(g.NextURN(), n.Name, graph.NodeTypeDownload)
		dl.Action = graph.ActionDownload
		dl.Format = n.Format
		dl.Input = originalURL
		dl.Output = archiveName
		_ = g.AddNode(dl)

		n.Action = graph.ActionUnzip
		n.NodeType = graph.NodeTypeExtract
		n.Input = archiveName
		n.Output = target
		n.Children = []*graph.Node{dl}
	}
	walk(root)
}

func urlEndsInZip(rawurl string) bool {
	u := rawurl
	if idx := strings.IndexByte(u, '?'); idx >= 0 {
		u = u[:idx]
	}
	return strings.HasSuffix(strings.ToLower(u), ".zip")
}

// addOSMExportToolNodes rewrites every download whose format is the
// OSM-config YAML into the three-layer stack described in spec.md §4.2
// add_osmexporttool_nodes, sharing one runner cluster per upstream OSM
// URL across the whole build (not just one branch).
func (b *Builder) addOSMExportToolNodes(g *graph.Graph, root *graph.Node, osmURL string) error {
	if osmURL == "" {
		return nil
	}

	var datasetNodes []*graph.Node
	var walk func(n *graph.Node)
	walk = func(n *graph.Node) {
		for _, c := range n.Children {
			walk(c)
		}
		if n.NodeType == graph.NodeTypeSource && n.Format == "osm-config-yaml" {
			datasetNodes = append(datasetNodes, n)
		}
	}
	walk(root)
	if len(datasetNodes) == 0 {
		return nil
	}

	cluster, ok := b.runnersByOSMURL[osmURL]
	if !ok {
		gurn := g.NextURN()

		downloader := graph.NewNode(g.NextURN(), "osm-extract", graph.NodeTypeDownload)
		downloader.Action = graph.ActionDownload
		downloader.Custom.OSM = osmURL
		downloader.Input = osmURL
		downloader.Output = fmt.Sprintf("osm_%s.osm.pbf", contentHash([]byte(osmURL)))
		if err := g.AddNode(downloader); err != nil {
			return err
		}

		concatenator := graph.NewNode(g.NextURN(), "osm-config-merge", graph.NodeTypeConcatenate)
		concatenator.Action = graph.ActionConcatenate
		concatenator.Custom.OSM = osmURL
		if err := g.AddNode(concatenator); err != nil {
			return err
		}

		runner := graph.NewNode(g.NextURN(), "osm-run", graph.NodeTypeRun)
		runner.SetGlobalURN(gurn)
		runner.Action = graph.ActionRun
		runner.Custom.OSM = osmURL
		runner.Children = []*graph.Node{concatenator, downloader}
		if err := g.AddNode(runner); err != nil {
			return err
		}

		cluster = &osmCluster{runner: runner, concatenator: concatenator, downloader: downloader}
		b.runnersByOSMURL[osmURL] = cluster
	}

	for _, dataset := range datasetNodes {
		// The dataset's own download child (created by addDownloads)
		// becomes one of the concatenator's YAML config inputs.
		for _, c := range dataset.Children {
			if c.Action == graph.ActionDownload {
				cluster.concatenator.Children = append(cluster.concatenator.Children, c)
			}
		}

		dataset.Action = graph.ActionImport
		dataset.NodeType = graph.NodeTypeImport
		dataset.Input = graph.VarName(cluster.runner.GlobalURN)
		dataset.Children = []*graph.Node{cluster.runner}
	}

	// Keep the concatenator's children deterministically ordered so the
	// merged-config content hash (invariant 7: stable prefix_<md5>
	// derivation) doesn't depend on map/branch iteration order.
	sort.Slice(cluster.concatenator.Children, func(i, j int) bool {
		return cluster.concatenator.Children[i].Name < cluster.concatenator.Children[j].Name
	})

	return nil
}
