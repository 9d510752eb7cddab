// SPDX-License-Identifier: AGPL-3.0-or-later

package executors

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"sitegraph/internal/graph"
	"sitegraph/internal/logging"
)

// ExtractExecutor unzips n.Input (an archive) into a work directory
// named after the target, locates the single largest member whose
// extension matches the target extension, and atomically renames it to
// n.Output (spec.md §4.4 "Extract (unzip)"). Archive-newer-than-target
// triggers re-extraction; otherwise it's skipped.
type ExtractExecutor struct {
	Deps
}

func (e *ExtractExecutor) Execute(ctx context.Context, n *graph.Node) (graph.Status, error) {
	dir := e.Config.DownloadsDir()
	archivePath := filepath.Join(dir, n.Input)
	targetPath := filepath.Join(dir, n.Output)

	archiveInfo, err := os.Stat(archivePath)
	if err != nil {
		return graph.StatusFailed, fmt.Errorf("stating archive %s: %w", archivePath, err)
	}

	if !e.Overwrite {
		if targetInfo, err := os.Stat(targetPath); err == nil {
			if !archiveInfo.ModTime().After(targetInfo.ModTime()) {
				e.Log.Debug("extract target up to date, skipping", logging.F("path", targetPath))
				n.Output = targetPath
				return graph.StatusProcessed, nil
			}
		}
	}

	workDir := targetPath + ".extract"
	if err := os.RemoveAll(workDir); err != nil {
		return graph.StatusFailed, fmt.Errorf("clearing work dir %s: %w", workDir, err)
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return graph.StatusFailed, fmt.Errorf("creating work dir %s: %w", workDir, err)
	}

	if err := unzipAll(archivePath, workDir); err != nil {
		return graph.StatusFailed, fmt.Errorf("unzipping %s: %w", archivePath, err)
	}

	wantExt := strings.ToLower(filepath.Ext(n.Output))
	best, bestSize, err := largestFileWithExt(workDir, wantExt)
	if err != nil {
		return graph.StatusFailed, err
	}
	if best == "" {
		return graph.StatusFailed, fmt.Errorf("no member with extension %q found in %s", wantExt, archivePath)
	}
	e.Log.Debug("extracted member selected", logging.F("member", best), logging.F("bytes", bestSize))

	if err := os.Rename(best, targetPath); err != nil {
		return graph.StatusFailed, fmt.Errorf("renaming %s to %s: %w", best, targetPath, err)
	}
	_ = os.RemoveAll(workDir)

	n.Output = targetPath
	return graph.StatusProcessed, nil
}

func unzipAll(archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		dest := filepath.Join(destDir, f.Name)
		if !strings.HasPrefix(dest, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return fmt.Errorf("archive member %s escapes extraction directory", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		if err := extractOne(f, dest); err != nil {
			return err
		}
	}
	return nil
}

func extractOne(f *zip.File, dest string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}

func largestFileWithExt(root, ext string) (path string, size int64, err error) {
	var best string
	var bestSize int64
	walkErr := filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if strings.ToLower(filepath.Ext(p)) != ext {
			return nil
		}
		if info.Size() > bestSize {
			best = p
			bestSize = info.Size()
		}
		return nil
	})
	if walkErr != nil {
		return "", 0, fmt.Errorf("scanning %s for extension %q: %w", root, ext, walkErr)
	}
	return best, bestSize, nil
}
