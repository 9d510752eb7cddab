// SPDX-License-Identifier: AGPL-3.0-or-later

package registry

import (
	"context"
	"fmt"

	"sitegraph/internal/logging"
	"sitegraph/internal/postgis"
)

// SyncReport summarizes what Sync removed, for a single structured log
// line at startup.
type SyncReport struct {
	IncompleteRowsDropped  int
	MissingTableRows       int
	UntrackedTablesDropped int
	UnreferencedBranches   int
}

// Sync runs the four-step idempotent startup reconciliation described in
// spec.md §4.5/§6 invariants: every completed row's table must exist,
// every managed table must be referenced, and the branch table must
// only hold hashes still in use. It must run before the scheduler is
// allowed to submit any work.
func (r *Registry) Sync(ctx context.Context, pool *postgis.Pool, log logging.Logger) (SyncReport, error) {
	var report SyncReport

	// Step 1: drop registry rows that were never marked complete. A
	// crash between write and mark-complete leaves these behind.
	entries, err := r.All(ctx)
	if err != nil {
		return report, fmt.Errorf("sync step 1 (listing registry): %w", err)
	}
	for _, e := range entries {
		if e.Completed {
			continue
		}
		if err := pool.DropTable(ctx, e.OutputHandle); err != nil {
			return report, fmt.Errorf("sync step 1 (dropping orphan table %s): %w", e.OutputHandle, err)
		}
		if err := r.DeleteRow(ctx, e.OutputHandle); err != nil {
			return report, fmt.Errorf("sync step 1 (deleting incomplete row %s): %w", e.OutputHandle, err)
		}
		report.IncompleteRowsDropped++
	}

	// Step 2: drop completed rows whose backing table is gone (manual
	// intervention, external drop, restored backup missing a table).
	entries, err = r.All(ctx)
	if err != nil {
		return report, fmt.Errorf("sync step 2 (listing registry): %w", err)
	}
	for _, e := range entries {
		exists, err := pool.TableExists(ctx, e.OutputHandle)
		if err != nil {
			return report, fmt.Errorf("sync step 2 (checking %s): %w", e.OutputHandle, err)
		}
		if exists {
			continue
		}
		if err := r.DeleteRow(ctx, e.OutputHandle); err != nil {
			return report, fmt.Errorf("sync step 2 (deleting row for missing table %s): %w", e.OutputHandle, err)
		}
		report.MissingTableRows++
	}

	// Step 3: drop managed tables that no registry row references.
	managed, err := pool.ManagedTables(ctx)
	if err != nil {
		return report, fmt.Errorf("sync step 3 (listing managed tables): %w", err)
	}
	entries, err = r.All(ctx)
	if err != nil {
		return report, fmt.Errorf("sync step 3 (listing registry): %w", err)
	}
	referenced := make(map[string]bool, len(entries))
	for _, e := range entries {
		referenced[e.OutputHandle] = true
	}
	for _, t := range managed {
		if reservedTable(t) || referenced[t] {
			continue
		}
		if err := pool.DropTable(ctx, t); err != nil {
			return report, fmt.Errorf("sync step 3 (dropping untracked table %s): %w", t, err)
		}
		report.UntrackedTablesDropped++
	}

	// Step 4: drop branch rows no registry row references anymore.
	entries, err = r.All(ctx)
	if err != nil {
		return report, fmt.Errorf("sync step 4 (listing registry): %w", err)
	}
	usedHashes := make(map[string]bool, len(entries))
	for _, e := range entries {
		usedHashes[e.ConfigurationHash] = true
	}
	dropped, err := r.dropUnreferencedBranches(ctx, usedHashes)
	if err != nil {
		return report, fmt.Errorf("sync step 4 (pruning branch table): %w", err)
	}
	report.UnreferencedBranches = dropped

	log.Info("registry sync complete",
		logging.F("incomplete_rows_dropped", report.IncompleteRowsDropped),
		logging.F("missing_table_rows", report.MissingTableRows),
		logging.F("untracked_tables_dropped", report.UntrackedTablesDropped),
		logging.F("unreferenced_branches_dropped", report.UnreferencedBranches),
	)
	return report, nil
}

func reservedTable(name string) bool {
	switch name {
	case postgis.TableRegistry, postgis.TableBranch, postgis.TableClipMaster,
		postgis.TableClipTemp, postgis.TableProcessingGrid, postgis.TableOutputGrid,
		postgis.TableEdgeBandGrid, postgis.TableOSMBoundaries:
		return true
	}
	return false
}

func (r *Registry) dropUnreferencedBranches(ctx context.Context, usedHashes map[string]bool) (int, error) {
	sql := fmt.Sprintf(`SELECT configuration_hash FROM %s`, quoted(postgis.TableBranch))
	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return 0, fmt.Errorf("listing branch hashes: %w", err)
	}
	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scanning branch hash: %w", err)
		}
		hashes = append(hashes, h)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	dropped := 0
	deleteSQL := fmt.Sprintf(`DELETE FROM %s WHERE configuration_hash = $1`, quoted(postgis.TableBranch))
	for _, h := range hashes {
		if usedHashes[h] {
			continue
		}
		if _, err := r.pool.Exec(ctx, deleteSQL, h); err != nil {
			return dropped, fmt.Errorf("deleting unreferenced branch %s: %w", h, err)
		}
		dropped++
	}
	return dropped, nil
}
