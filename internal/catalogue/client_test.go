// SPDX-License-Identifier: AGPL-3.0-or-later

package catalogue

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectResourcePrefersHighestPriorityFormat(t *testing.T) {
	resources := []Resource{
		{Format: "GeoJSON", URL: "http://a/geojson"},
		{Format: "GPKG", URL: "http://a/gpkg"},
		{Format: "KML", URL: "http://a/kml"},
	}
	best, ok := SelectResource(resources)
	require.True(t, ok)
	assert.Equal(t, "GPKG", best.Format)
}

func TestSelectResourceTiebreakIsFirstEncountered(t *testing.T) {
	resources := []Resource{
		{Format: "WFS", URL: "http://a/wfs-1"},
		{Format: "WFS", URL: "http://a/wfs-2"},
	}
	best, ok := SelectResource(resources)
	require.True(t, ok)
	assert.Equal(t, "http://a/wfs-1", best.URL)
}

func TestSelectResourceUnrankedFormatsSortLast(t *testing.T) {
	resources := []Resource{
		{Format: "proprietary-xyz", URL: "http://a/xyz"},
		{Format: "GeoJSON", URL: "http://a/geojson"},
	}
	best, ok := SelectResource(resources)
	require.True(t, ok)
	assert.Equal(t, "GeoJSON", best.Format)
}

func TestSelectResourceEmpty(t *testing.T) {
	_, ok := SelectResource(nil)
	assert.False(t, ok)
}

func TestHTTPClientQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/query", r.URL.Path)
		groups := map[string]Group{
			"railways": {
				GroupTitle: "Railways",
				Datasets: []Dataset{
					{PackageName: "railway-lines--england", Title: "Railway Lines (England)", Resources: []Resource{
						{Format: "GPKG", URL: "http://data/rail.gpkg"},
					}},
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(groups))
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL)
	out, err := client.Query(context.Background())
	require.NoError(t, err)
	require.Contains(t, out, "railways")
	assert.Equal(t, "Railways", out["railways"].GroupTitle)
}
