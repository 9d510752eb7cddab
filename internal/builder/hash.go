// SPDX-License-Identifier: AGPL-3.0-or-later

package builder

import (
	"crypto/md5" //nolint:gosec // fingerprinting only, not a security boundary
	"encoding/hex"
	"encoding/json"

	"sitegraph/internal/sitespec"
)

// configHash stamps a >=16 character fingerprint of the branch's
// resolved configuration (spec.md §3, §4.2 step 1). md5 is the correct
// tool here, not a security shortcut: the original Python source already
// fingerprints configuration with md5 (original_source/opensite/constants.py),
// and a 32-hex-char md5 digest comfortably satisfies the length floor.
func configHash(site *sitespec.Site) string {
	// Canonicalize via JSON marshaling of the resolved fields so the hash
	// only depends on the parsed value, not incidental YAML formatting.
	type canonical struct {
		Title       string
		Type        string
		Clip        string
		OSM         string
		CKAN        string
		HeightToTip string
		BladeRadius string
		Structure   []sitespec.StructureRef
		Buffers     []sitespec.BufferSpec
	}
	c := canonical{
		Title:       site.Title,
		Type:        site.Type,
		Clip:        site.Clip,
		OSM:         site.OSM,
		CKAN:        site.CKAN,
		HeightToTip: site.HeightToTip,
		BladeRadius: site.BladeRadius,
		Structure:   site.Structure,
		Buffers:     site.Buffers,
	}
	data, err := json.Marshal(c)
	if err != nil {
		// json.Marshal on a struct of primitives/slices cannot fail.
		panic(err)
	}
	sum := md5.Sum(data) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

// contentHash fingerprints arbitrary bytes, used for the dynamically
// chosen output handles of form prefix_<md5(content)> (spec.md §3
// invariant 7, §4.2 add_osmexporttool_nodes).
func contentHash(content []byte) string {
	sum := md5.Sum(content) //nolint:gosec
	return hex.EncodeToString(sum[:])
}
