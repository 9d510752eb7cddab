// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitegraph/internal/graph"
	"sitegraph/internal/logging"
)

func TestWritePreviewSnapshotWritesCurrentStatuses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph_preview.json")

	g := graph.New()
	n := graph.NewNode(1, "buffer-roads", graph.NodeTypeSource)
	n.Action = graph.ActionBuffer
	n.Status = graph.StatusProcessed
	require.NoError(t, g.AddNode(n))

	writePreviewSnapshot(path, g, logging.NewDefault(false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got []previewNode
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "buffer-roads", got[0].Name)
	assert.Equal(t, string(graph.ActionBuffer), got[0].Action)
	assert.Equal(t, string(graph.StatusProcessed), got[0].Status)
}

func TestWritePreviewSnapshotOverwritesOnSecondCall(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph_preview.json")

	g := graph.New()
	n := graph.NewNode(1, "clip-boundary", graph.NodeTypeSource)
	n.Action = graph.ActionClip
	n.Status = graph.StatusPending
	require.NoError(t, g.AddNode(n))

	writePreviewSnapshot(path, g, logging.NewDefault(false))
	n.Status = graph.StatusProcessed
	writePreviewSnapshot(path, g, logging.NewDefault(false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got []previewNode
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got, 1)
	assert.Equal(t, string(graph.StatusProcessed), got[0].Status)
}

func TestPreviewPathUnderOutputDir(t *testing.T) {
	assert.Equal(t, filepath.Join("/build", "output", "graph_preview.json"), previewPath("/build"))
}
