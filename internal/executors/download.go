// SPDX-License-Identifier: AGPL-3.0-or-later

package executors

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"sitegraph/internal/graph"
	"sitegraph/internal/logging"
)

// DownloadExecutor fetches n.Input (a URL) to n.Output (spec.md §4.4
// "Download"): writes to a sibling .tmp file, renames on full success,
// emits periodic byte-progress, reuses an existing finalized file on
// rerun unless Overwrite is set. On failure the .tmp is deleted.
type DownloadExecutor struct {
	Deps
	progressInterval time.Duration // zero means the 5s default
}

func (e *DownloadExecutor) Execute(ctx context.Context, n *graph.Node) (graph.Status, error) {
	dir := e.Config.DownloadsDir()
	if n.Custom.OSM != "" {
		dir = e.Config.OSMDir()
	}
	final := filepath.Join(dir, n.Output)

	if !e.Overwrite {
		if info, err := os.Stat(final); err == nil && info.Size() > 0 {
			e.Log.Debug("download already present, skipping", logging.F("path", final))
			n.Output = final
			return graph.StatusProcessed, nil
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return graph.StatusFailed, fmt.Errorf("creating download dir %s: %w", dir, err)
	}

	tmp := final + ".tmp"
	if err := e.fetch(ctx, n.Input, tmp); err != nil {
		_ = os.Remove(tmp)
		return graph.StatusFailed, err
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return graph.StatusFailed, fmt.Errorf("finalizing %s: %w", final, err)
	}

	n.Output = final
	return graph.StatusProcessed, nil
}

func (e *DownloadExecutor) fetch(ctx context.Context, url, tmpPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building request for %s: %w", url, err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching %s: unexpected status %s", url, resp.Status)
	}

	out, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", tmpPath, err)
	}
	defer out.Close()

	interval := e.progressInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	pw := &progressWriter{log: e.Log, url: url, interval: interval, last: time.Now()}
	if _, err := io.Copy(out, io.TeeReader(resp.Body, pw)); err != nil {
		return fmt.Errorf("writing %s: %w", tmpPath, err)
	}
	return nil
}

// progressWriter logs cumulative byte counts at most once per interval
// (spec.md §4.4 "emits periodic byte-progress at >= 5-second intervals").
type progressWriter struct {
	log      logging.Logger
	url      string
	interval time.Duration
	total    int64
	last     time.Time
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.total += int64(len(p))
	if time.Since(w.last) >= w.interval {
		w.log.Debug("download progress", logging.F("url", w.url), logging.F("bytes", w.total))
		w.last = time.Now()
	}
	return len(p), nil
}
