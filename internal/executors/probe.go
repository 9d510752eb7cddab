// SPDX-License-Identifier: AGPL-3.0-or-later

package executors

import (
	"context"
	"net/http"

	"sitegraph/internal/graph"
)

// HTTPSizeProber implements scheduler.SizeProber via a HEAD request
// with identity encoding (spec.md §4.3 "Pre-submission size probe").
type HTTPSizeProber struct {
	Client *http.Client
}

func (p *HTTPSizeProber) ProbeSize(ctx context.Context, n *graph.Node) (int64, bool) {
	if n.Action != graph.ActionDownload || n.Input == "" {
		return 0, false
	}
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, n.Input, nil)
	if err != nil {
		return 0, false
	}
	req.Header.Set("Accept-Encoding", "identity")
	resp, err := client.Do(req)
	if err != nil {
		return 0, false
	}
	defer resp.Body.Close()
	if resp.ContentLength <= 0 {
		return 0, false
	}
	return resp.ContentLength, true
}
