// SPDX-License-Identifier: AGPL-3.0-or-later

package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitegraph/internal/catalogue"
	"sitegraph/internal/graph"
	"sitegraph/internal/sitespec"
)

func siteWithOSMDatasets(title, osmURL string, names ...string) *sitespec.Site {
	s := &sitespec.Site{
		Title:       title,
		HeightToTip: "120",
		BladeRadius: "55",
		OSM:         osmURL,
		SourcePath:  title + ".yml",
	}
	for _, n := range names {
		s.Structure = append(s.Structure, sitespec.StructureRef{Name: n})
	}
	return s
}

func catalogueWithOSMFormat(names ...string) map[string]catalogue.Group {
	var datasets []catalogue.Dataset
	for _, n := range names {
		datasets = append(datasets, catalogue.Dataset{
			PackageName: n,
			Title:       n,
			Resources: []catalogue.Resource{
				{Format: "osm-config-yaml", URL: "http://ckan.example/" + n + ".yml"},
			},
		})
	}
	return map[string]catalogue.Group{
		"osm": {GroupTitle: "OSM", Datasets: datasets},
	}
}

// Scenario 1 (spec.md §8): two branches sharing one OSM extract produce
// exactly one runner node and one download node for the shared extract.
func TestTwoBranchesSharingOneOSMExtract(t *testing.T) {
	const osmURL = "http://osm.example/extract.osm.pbf"
	siteA := siteWithOSMDatasets("site-a", osmURL, "ds1", "ds2", "ds3")
	siteB := siteWithOSMDatasets("site-b", osmURL, "ds4", "ds5", "ds6")

	data := catalogueWithOSMFormat("ds1", "ds2", "ds3", "ds4", "ds5", "ds6")

	b := New(nil, Options{})
	g, err := b.Build([]*sitespec.Site{siteA, siteB}, data)
	require.NoError(t, err)

	var runners, osmDownloads []*graph.Node
	for _, n := range g.Nodes() {
		if n.Action == graph.ActionRun {
			runners = append(runners, n)
		}
		if n.Action == graph.ActionDownload && n.Name == "osm-extract" {
			osmDownloads = append(osmDownloads, n)
		}
	}
	require.Len(t, runners, 1, "expected exactly one shared runner")
	require.Len(t, osmDownloads, 1, "expected exactly one download for the shared extract")

	var imports []*graph.Node
	for _, n := range g.Nodes() {
		if n.Action == graph.ActionImport {
			imports = append(imports, n)
		}
	}
	require.Len(t, imports, 6)
	for _, imp := range imports {
		require.Len(t, imp.Children, 1)
		assert.Equal(t, runners[0].URN, imp.Children[0].URN)
	}
}

// Boundary behavior (spec.md §8): a download URL ending in .zip produces
// a two-node chain (fetcher child + unzipper parent).
func TestZipDownloadProducesTwoNodeChain(t *testing.T) {
	site := &sitespec.Site{
		Title:       "zip-site",
		HeightToTip: "100",
		BladeRadius: "40",
		SourcePath:  "zip-site.yml",
		Structure:   []sitespec.StructureRef{{Name: "parks"}},
	}
	data := map[string]catalogue.Group{
		"g": {Datasets: []catalogue.Dataset{
			{PackageName: "parks", Title: "Parks", Resources: []catalogue.Resource{
				{Format: "GeoJSON", URL: "http://data.example/parks.zip?token=abc"},
			}},
		}},
	}

	b := New(nil, Options{})
	g, err := b.Build([]*sitespec.Site{site}, data)
	require.NoError(t, err)

	var unzip *graph.Node
	for _, n := range g.Nodes() {
		if n.Action == graph.ActionUnzip {
			unzip = n
		}
	}
	require.NotNil(t, unzip)
	require.Len(t, unzip.Children, 1)
	assert.Equal(t, graph.ActionDownload, unzip.Children[0].Action)
	assert.Equal(t, "http://data.example/parks.zip?token=abc", unzip.Children[0].Input)
}

func TestBufferFoldingAppliesToMatchingNode(t *testing.T) {
	site := &sitespec.Site{
		Title:       "hedge-site",
		HeightToTip: "90",
		BladeRadius: "30",
		SourcePath:  "hedge-site.yml",
		Structure:   []sitespec.StructureRef{{Name: "hedgerows--xx"}},
		Buffers:     []sitespec.BufferSpec{{Name: "hedgerows--xx", BufferValue: "30"}},
	}

	b := New(nil, Options{})
	g, err := b.Build([]*sitespec.Site{site}, map[string]catalogue.Group{})
	require.NoError(t, err)

	found := g.FindByName("hedgerows--xx")
	require.Len(t, found, 1)
	assert.Equal(t, graph.ActionBuffer, found[0].Action)
	assert.Equal(t, 30.0, found[0].Custom.BufferValue)
}

func TestBufferFoldingResolvesMathExpression(t *testing.T) {
	site := &sitespec.Site{
		Title:       "hedge-site",
		HeightToTip: "90",
		BladeRadius: "30",
		SourcePath:  "hedge-site.yml",
		Structure:   []sitespec.StructureRef{{Name: "hedgerows--xx"}},
		Buffers:     []sitespec.BufferSpec{{Name: "hedgerows--xx", BufferValue: "blade_radius * 2"}},
	}

	b := New(nil, Options{})
	g, err := b.Build([]*sitespec.Site{site}, map[string]catalogue.Group{})
	require.NoError(t, err)

	found := g.FindByName("hedgerows--xx")
	require.Len(t, found, 1)
	assert.Equal(t, graph.ActionBuffer, found[0].Action)
	assert.Equal(t, 60.0, found[0].Custom.BufferValue)
}

func TestAddParentsGroupsByParentProperty(t *testing.T) {
	site := &sitespec.Site{
		Title:       "admin-site",
		HeightToTip: "90",
		BladeRadius: "30",
		SourcePath:  "admin-site.yml",
		Structure: []sitespec.StructureRef{
			{Name: "region-a", Parent: "regions"},
			{Name: "region-b", Parent: "regions"},
		},
	}

	b := New(nil, Options{})
	g, err := b.Build([]*sitespec.Site{site}, map[string]catalogue.Group{})
	require.NoError(t, err)

	var amalgamate *graph.Node
	for _, n := range g.Nodes() {
		if n.Action == graph.ActionAmalgamate {
			amalgamate = n
		}
	}
	require.NotNil(t, amalgamate)
	assert.Len(t, amalgamate.Children, 2)
}

func TestConfigHashStableAndAtLeast16Chars(t *testing.T) {
	site := &sitespec.Site{Title: "x", HeightToTip: "1", BladeRadius: "2"}
	h1 := configHash(site)
	h2 := configHash(site)
	assert.Equal(t, h1, h2)
	assert.GreaterOrEqual(t, len(h1), 16)
}
