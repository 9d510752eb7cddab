// SPDX-License-Identifier: AGPL-3.0-or-later

package executors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitegraph/internal/graph"
)

func TestDispatcherCoversEveryAction(t *testing.T) {
	d := NewDispatcher(Deps{})
	actions := []graph.Action{
		graph.ActionDownload, graph.ActionUnzip, graph.ActionConcatenate,
		graph.ActionRun, graph.ActionImport, graph.ActionBuffer,
		graph.ActionPreprocess, graph.ActionAmalgamate, graph.ActionPostprocess,
		graph.ActionClip, graph.ActionOutput,
	}
	for _, a := range actions {
		exec, ok := d.ExecutorFor(a)
		require.True(t, ok, "missing executor for action %s", a)
		require.NotNil(t, exec)
	}
}

func TestDispatcherRejectsUnknownAction(t *testing.T) {
	d := NewDispatcher(Deps{})
	_, ok := d.ExecutorFor(graph.Action("not-a-real-action"))
	assert.False(t, ok)
}

func TestOutputTableName(t *testing.T) {
	name := outputTableName("buffer", "abc123")
	assert.Equal(t, "opensite_buffer_abc123", name)
}

func TestJoinUnionAll(t *testing.T) {
	got := joinUnionAll([]string{"SELECT 1", "SELECT 2", "SELECT 3"})
	assert.Equal(t, "SELECT 1 UNION ALL SELECT 2 UNION ALL SELECT 3", got)
}

func TestSanitizeRelationReplacesNonAlnum(t *testing.T) {
	assert.Equal(t, "abc_123_file", sanitizeRelation("abc-123/file"))
}

func TestBuildOGRImportSQLDefaultCRS(t *testing.T) {
	sql := buildOGRImportSQL("opensite_source_h1", "/tmp/foo.gpkg", "", "")
	assert.Contains(t, sql, `CREATE TABLE "opensite_source_h1"`)
	assert.Contains(t, sql, "ST_Transform(geom, 27700)")
	assert.NotContains(t, sql, "WHERE")
}

func TestBuildOGRImportSQLWithOverrides(t *testing.T) {
	sql := buildOGRImportSQL("opensite_source_h1", "/tmp/foo.gpkg", "4326", "\"Name\" LIKE 'No data%'")
	assert.Contains(t, sql, "ST_SetSRID(geom, 4326)")
	assert.Contains(t, sql, "WHERE NOT (")
}

func TestBuildPostprocessFinalSQLWeldedFiltersNullGeom(t *testing.T) {
	sql := buildPostprocessFinalSQL("opensite_postprocess_h1", "seams", "islands", "seams_welded", true)
	assert.Contains(t, sql, `CREATE TABLE "opensite_postprocess_h1"`)
	assert.Contains(t, sql, `FROM "seams_welded" WHERE geom IS NOT NULL`)
	assert.Contains(t, sql, `FROM "islands"`)
	assert.NotContains(t, sql, `FROM "seams"`)
}

func TestBuildPostprocessFinalSQLFallsBackToRawSeams(t *testing.T) {
	sql := buildPostprocessFinalSQL("opensite_postprocess_h1", "seams", "islands", "seams_welded", false)
	assert.Contains(t, sql, `FROM "seams"`)
	assert.Contains(t, sql, `FROM "islands"`)
	assert.NotContains(t, sql, "seams_welded")
	assert.NotContains(t, sql, "IS NOT NULL")
}

func TestHedgerowExceptionsKnownName(t *testing.T) {
	assert.True(t, HedgerowExceptions["hedgerows--xx"])
	assert.False(t, HedgerowExceptions["parks"])
}
