// SPDX-License-Identifier: AGPL-3.0-or-later

// Package builder transforms declarative site descriptions into an
// executable build graph (spec.md §4.2). The pipeline runs a fixed
// sequence of rewrites: parse & attach, enrichment, math resolution,
// styling/buffer folding, structural promotion, catalogue merge,
// snapshot, and explosion.
package builder

import (
	"fmt"

	"sitegraph/internal/catalogue"
	"sitegraph/internal/graph"
	"sitegraph/internal/sitespec"
)

// Options configure one Build invocation.
type Options struct {
	Defaults sitespec.GlobalDefaults
	Snapgrid bool // --snapgrid: recorded here only; no pass reads it and no grid snapping is applied
}

// Builder runs the declaration-to-DAG pipeline.
type Builder struct {
	catalogue catalogue.Client
	opts      Options

	// runnersByOSMURL shares one OSM runner cluster (spec.md §4.2
	// add_osmexporttool_nodes) across every branch processed by this
	// Builder, since the same upstream OSM extract must not be
	// downloaded or run twice regardless of which branches reference it.
	runnersByOSMURL map[string]*osmCluster
}

// New creates a Builder. catalogueClient may be nil; the Builder never
// queries it. Whether the catalogue-merge step (spec.md §4.2 step 6)
// runs depends only on the catalogueData passed to Build.
func New(catalogueClient catalogue.Client, opts Options) *Builder {
	return &Builder{
		catalogue:       catalogueClient,
		opts:            opts,
		runnersByOSMURL: make(map[string]*osmCluster),
	}
}

// Build runs every rewrite pass over sites and returns the executable
// graph. CatalogueData, if non-nil, is merged into every branch; if it
// is nil, the merge is skipped when the Builder has no client and each
// branch fails with an error when it has one.
func (b *Builder) Build(sites []*sitespec.Site, catalogueData map[string]catalogue.Group) (*graph.Graph, error) {
	g := graph.New()

	for _, site := range sites {
		branch, err := b.buildBranch(g, site, catalogueData)
		if err != nil {
			return nil, fmt.Errorf("building branch from %s: %w", site.SourcePath, err)
		}
		g.AddRoot(branch)
	}

	return g, nil
}

// buildBranch runs the per-branch portion of the pipeline: steps 1-6
// produce the "core structure", then explode() (step 8) splices in the
// download/extract/run machinery.
func (b *Builder) buildBranch(g *graph.Graph, site *sitespec.Site, catalogueData map[string]catalogue.Group) (*graph.Node, error) {
	// Step 1: parse & attach — each file becomes a branch; stamp a
	// stable configuration-hash fingerprint (>= 16 chars, spec.md §3).
	site.ApplyDefaults(b.opts.Defaults)
	hash := configHash(site)

	// Step 2+3: enrichment + math resolution over the branch's context.
	mctx := mathContext(site)
	heightToTip, _ := resolveFloat(site.HeightToTip, mctx)
	bladeRadius, _ := resolveFloat(site.BladeRadius, mctx)

	root := graph.NewNode(g.NextURN(), branchName(site), graph.NodeTypeGroup)
	root.Title = site.Title
	root.Custom.Hash = hash
	root.Custom.HeightToTip = heightToTip
	root.Custom.BladeRadius = bladeRadius
	root.Custom.Clip = site.Clip
	root.Custom.OSM = site.OSM
	if err := g.AddNode(root); err != nil {
		return nil, err
	}

	// Step 5: structural promotion — the "structure" subtree becomes the
	// branch's children, each surviving node becomes node_type=source.
	sourceNodes, err := promoteStructure(g, site, hash)
	if err != nil {
		return nil, err
	}

	// Step 4: styling/buffer folding — per-dataset buffer specs hoisted
	// onto the matching data node, resolved against the branch's math
	// context.
	applyBuffers(sourceNodes, site.Buffers, mctx)

	root.Children = sourceNodes

	// Step 6: catalogue merge — overwrite title/input/format from the
	// authoritative catalogue entry, when available.
	if catalogueData != nil {
		mergeCatalogue(sourceNodes, catalogueData)
	} else if b.catalogue != nil {
		// The client is not queried per branch; a pre-fetched
		// catalogueData map is required once a client is set.
		return nil, fmt.Errorf("catalogue client set but no catalogueData supplied for branch %s", root.Name)
	}

	// Step 7: snapshot — the "core structure" is the tree as built up to
	// this point. The explosion pass below mutates in place from here;
	// callers that need the pre-explosion snapshot should clone root's
	// subtree before calling explode.

	// Step 8: explosion.
	if err := b.explode(g, root, site.OSM); err != nil {
		return nil, fmt.Errorf("exploding branch %s: %w", root.Name, err)
	}

	return root, nil
}

func branchName(site *sitespec.Site) string {
	if site.Title != "" {
		return site.Title
	}
	return site.SourcePath
}

func resolveFloat(raw string, ctx mathContextT) (float64, bool) {
	return resolveExpr(raw, ctx)
}
