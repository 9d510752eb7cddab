// SPDX-License-Identifier: AGPL-3.0-or-later

package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddNodeRejectsDuplicateURN(t *testing.T) {
	g := New()
	n1 := NewNode(1, "a", NodeTypeSource)
	n2 := NewNode(1, "b", NodeTypeSource)
	require.NoError(t, g.AddNode(n1))
	assert.Error(t, g.AddNode(n2))
}

func TestIsReadyRequiresAllChildrenProcessed(t *testing.T) {
	child1 := NewNode(1, "c1", NodeTypeDownload)
	child2 := NewNode(2, "c2", NodeTypeDownload)
	parent := NewNode(3, "p", NodeTypeImport)
	parent.Children = []*Node{child1, child2}

	assert.False(t, parent.IsReady())

	child1.Status = StatusProcessed
	assert.False(t, parent.IsReady())

	child2.Status = StatusProcessed
	assert.True(t, parent.IsReady())
}

func TestIsReadyFalseWhenTerminal(t *testing.T) {
	n := NewNode(1, "n", NodeTypeImport)
	n.Status = StatusFailed
	assert.False(t, n.IsReady())
}

func TestPropagateStatusAcrossClones(t *testing.T) {
	g := New()
	runner := NewNode(1, "runner", NodeTypeRun)
	clone1 := NewNode(2, "import-a", NodeTypeImport)
	clone2 := NewNode(3, "import-b", NodeTypeImport)
	clone1.SetGlobalURN(10)
	clone2.SetGlobalURN(10)
	runner.SetGlobalURN(10)
	require.NoError(t, g.AddNode(runner))
	require.NoError(t, g.AddNode(clone1))
	require.NoError(t, g.AddNode(clone2))

	runner.Status = StatusProcessed
	runner.Output = "opensite_railway_abcd"
	g.PropagateStatus(runner)

	assert.Equal(t, StatusProcessed, clone1.Status)
	assert.Equal(t, StatusProcessed, clone2.Status)
	assert.Equal(t, "opensite_railway_abcd", clone1.Output)
}

func TestNodesByGlobalURNGroupsClones(t *testing.T) {
	g := New()
	a := NewNode(1, "a", NodeTypeImport)
	b := NewNode(2, "b", NodeTypeImport)
	a.SetGlobalURN(5)
	b.SetGlobalURN(5)
	require.NoError(t, g.AddNode(a))
	require.NoError(t, g.AddNode(b))

	group := g.NodesByGlobalURN(5)
	assert.Len(t, group, 2)
}

func TestLineageWalksTransitiveChildren(t *testing.T) {
	g := New()
	leaf := NewNode(1, "leaf", NodeTypeDownload)
	mid := NewNode(2, "mid", NodeTypeExtract)
	top := NewNode(3, "top", NodeTypeImport)
	mid.Children = []*Node{leaf}
	top.Children = []*Node{mid}
	require.NoError(t, g.AddNode(leaf))
	require.NoError(t, g.AddNode(mid))
	require.NoError(t, g.AddNode(top))

	lineage := g.Lineage(top)
	require.Len(t, lineage, 2)
	assert.Equal(t, leaf.URN, lineage[0].URN)
	assert.Equal(t, mid.URN, lineage[1].URN)
}

func TestSharedOutputsPublishAndResolve(t *testing.T) {
	s := NewSharedOutputs()
	_, ok := s.Resolve(1)
	assert.False(t, ok)

	s.Publish(1, "osm_merged_abcd.yml")
	v, ok := s.Resolve(1)
	require.True(t, ok)
	assert.Equal(t, "osm_merged_abcd.yml", v)
}

func TestSharedOutputsPublishTwicePanicsOnMismatch(t *testing.T) {
	s := NewSharedOutputs()
	s.Publish(1, "a")
	assert.Panics(t, func() { s.Publish(1, "b") })
}

func TestVarName(t *testing.T) {
	assert.Equal(t, "VAR:global_output_7", VarName(7))
}
