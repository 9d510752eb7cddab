// SPDX-License-Identifier: AGPL-3.0-or-later

// Package catalogue implements the CatalogueClient external-collaborator
// contract (spec.md §2, §6): resolving a logical dataset name to its
// authoritative title, source URL, and format. The catalogue service
// itself ("CKAN") is explicitly out of scope (spec.md §1); only the
// query() contract and the resource-priority tiebreak logic it feeds
// belong to this component.
package catalogue

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Resource is one candidate download for a dataset.
type Resource struct {
	Format string `json:"format"`
	URL    string `json:"url"`
}

// Dataset is one package entry returned by the catalogue.
type Dataset struct {
	PackageName string     `json:"package_name"`
	Title       string     `json:"title"`
	Resources   []Resource `json:"resources"`
}

// Group is one dataset-group entry returned by query().
type Group struct {
	GroupTitle string    `json:"group_title"`
	Datasets   []Dataset `json:"datasets"`
}

// Client is the CatalogueClient contract (spec.md §6): "must answer
// query() returning a mapping of dataset-group -> {group_title,
// datasets[]}".
type Client interface {
	Query(ctx context.Context) (map[string]Group, error)
}

// formatPriority lists format labels from highest to lowest priority,
// per spec.md §4.2 step 6: "GPKG > WFS > ArcGIS REST > GeoJSON > KML >
// proprietary YAML formats". This is a genuinely open-ended lookup table
// (new formats can be appended without touching the closed Action enum),
// grounded on the teacher's provider-registry pattern
// (pkg/providers/backend/registry.go) rather than a switch statement.
var formatPriority = []string{
	"GPKG",
	"WFS",
	"ArcGIS REST",
	"GeoJSON",
	"KML",
	"osm-config-yaml",
}

// PriorityIndex returns format's rank (lower is higher priority), or -1
// if the format is unranked (ranked last, after every known format).
func PriorityIndex(format string) int {
	for i, f := range formatPriority {
		if f == format {
			return i
		}
	}
	return -1
}

// SelectResource picks the resource the Builder's catalogue merge step
// (spec.md §4.2 step 6) should use: the highest-priority format, with
// ties (and unranked formats) broken by first-encountered order.
func SelectResource(resources []Resource) (Resource, bool) {
	if len(resources) == 0 {
		return Resource{}, false
	}
	best := resources[0]
	bestRank := rank(best.Format)
	for _, r := range resources[1:] {
		if rank(r.Format) < bestRank {
			best = r
			bestRank = rank(r.Format)
		}
	}
	return best, true
}

func rank(format string) int {
	idx := PriorityIndex(format)
	if idx == -1 {
		return len(formatPriority) // unranked sorts after every known format
	}
	return idx
}

// HTTPClient is an net/http-backed Client implementation. A minimal JSON
// HTTP client is the right weight here: CKAN is out of scope beyond this
// one contract (spec.md §1), so no CKAN SDK is warranted.
type HTTPClient struct {
	BaseURL string
	HTTP    *http.Client
}

// NewHTTPClient creates a catalogue client pointed at baseURL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Query calls "<baseURL>/query" and decodes the dataset-group mapping.
func (c *HTTPClient) Query(ctx context.Context) (map[string]Group, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/query", nil)
	if err != nil {
		return nil, fmt.Errorf("building catalogue request: %w", err)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying catalogue: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalogue query returned status %d", resp.StatusCode)
	}

	var out map[string]Group
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding catalogue response: %w", err)
	}
	return out, nil
}
