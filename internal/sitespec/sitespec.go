// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sitespec defines the raw YAML schema for site descriptions,
// the declarative input the Builder turns into an executable graph
// (spec.md §4.2 step 1).
package sitespec

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Site is one decoded site-description YAML file (one branch).
type Site struct {
	Title       string         `yaml:"title"`
	Type        string         `yaml:"type"`
	Clip        string         `yaml:"clip"`
	OSM         string         `yaml:"osm"`
	CKAN        string         `yaml:"ckan"`
	HeightToTip string         `yaml:"height-to-tip"` // string: may be a math expression
	BladeRadius string         `yaml:"blade-radius"`
	Structure   []StructureRef `yaml:"structure"`
	Buffers     []BufferSpec   `yaml:"buffers"`
	Style       map[string]any `yaml:"style"`

	// SourcePath is not part of the YAML; set by Load for diagnostics
	// and for the branch configuration hash.
	SourcePath string `yaml:"-"`
	Raw        []byte `yaml:"-"`
}

// StructureRef names a dataset the "structure" promotion pass (spec.md
// §4.2 step 5) turns into a source node.
type StructureRef struct {
	Name   string `yaml:"name"`
	Parent string `yaml:"parent,omitempty"`
}

// BufferSpec is one entry of the "buffers" subtree folded onto the
// matching data node as action=buffer (spec.md §4.2 step 4).
type BufferSpec struct {
	Name string `yaml:"name"`
	// BufferValue is a string, not a number: like HeightToTip/BladeRadius
	// it may be a math expression (e.g. "blade_radius * 2") and is
	// resolved against the branch's math context before use.
	BufferValue string `yaml:"buffer_value"`
}

// GlobalDefaults are the fallback values merged in during enrichment
// (spec.md §4.2 step 2) when a branch omits a recognized top-level key.
type GlobalDefaults struct {
	Title       string
	Type        string
	Clip        string
	OSM         string
	CKAN        string
	HeightToTip string
	BladeRadius string
}

// Load decodes a single site-description YAML file.
func Load(path string) (*Site, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is operator-supplied via --sites
	if err != nil {
		return nil, fmt.Errorf("reading site file %s: %w", path, err)
	}
	var s Site
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing site file %s: %w", path, err)
	}
	s.SourcePath = path
	s.Raw = data
	return &s, nil
}

// LoadAll decodes every path in paths, in the given order.
func LoadAll(paths []string) ([]*Site, error) {
	sites := make([]*Site, 0, len(paths))
	for _, p := range paths {
		s, err := Load(p)
		if err != nil {
			return nil, err
		}
		sites = append(sites, s)
	}
	return sites, nil
}

// ApplyDefaults merges GlobalDefaults into s for every recognized key s
// leaves empty (spec.md §4.2 step 2: "merged from (a) the local branch,
// (b) global defaults").
func (s *Site) ApplyDefaults(d GlobalDefaults) {
	if s.Title == "" {
		s.Title = d.Title
	}
	if s.Type == "" {
		s.Type = d.Type
	}
	if s.Clip == "" {
		s.Clip = d.Clip
	}
	if s.OSM == "" {
		s.OSM = d.OSM
	}
	if s.CKAN == "" {
		s.CKAN = d.CKAN
	}
	if s.HeightToTip == "" {
		s.HeightToTip = d.HeightToTip
	}
	if s.BladeRadius == "" {
		s.BladeRadius = d.BladeRadius
	}
}
