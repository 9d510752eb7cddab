// SPDX-License-Identifier: AGPL-3.0-or-later

// Package registry implements the durable output_handle -> (logical
// name, branch, configuration hash, completed) ledger described in
// spec.md §4.5, plus the four-step idempotent startup sync.
package registry

import (
	"context"
	"fmt"
	"time"

	"sitegraph/internal/postgis"
)

// Entry is one registry row (spec.md §3 "Registry entry").
type Entry struct {
	OutputHandle      string
	LogicalName       string
	BranchName        string
	ConfigurationHash string
	Completed         bool
	UpdatedAt         time.Time
}

// BranchRow is one branch table row.
type BranchRow struct {
	ConfigurationHash string
	BranchName        string
	ConfigurationJSON string
	UpdatedAt         time.Time
}

// Registry wraps the two PostGIS tables and exposes the
// write-then-mark-complete discipline (spec.md §4.3, §9) every spatial
// executor and import must follow.
type Registry struct {
	pool *postgis.Pool
}

// New wraps an already-open postgis Pool.
func New(pool *postgis.Pool) *Registry {
	return &Registry{pool: pool}
}

// EnsureSchema creates the branch and registry tables if absent.
func (r *Registry) EnsureSchema(ctx context.Context) error {
	branchSQL := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		configuration_hash text PRIMARY KEY,
		branch_name text NOT NULL,
		configuration_json jsonb NOT NULL,
		updated_at timestamptz NOT NULL DEFAULT now()
	)`, quoted(postgis.TableBranch))
	if _, err := r.pool.Exec(ctx, branchSQL); err != nil {
		return fmt.Errorf("ensuring branch table: %w", err)
	}

	registrySQL := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		output_handle text PRIMARY KEY,
		logical_name text NOT NULL,
		branch_name text NOT NULL,
		configuration_hash text NOT NULL REFERENCES %s(configuration_hash),
		completed boolean NOT NULL DEFAULT false,
		updated_at timestamptz NOT NULL DEFAULT now()
	)`, quoted(postgis.TableRegistry), quoted(postgis.TableBranch))
	if _, err := r.pool.Exec(ctx, registrySQL); err != nil {
		return fmt.Errorf("ensuring registry table: %w", err)
	}
	return nil
}

func quoted(name string) string { return `"` + name + `"` }

// UpsertBranch records (or refreshes) a branch table row (spec.md §3
// invariant 3: "A branch table row exists for every configuration_hash
// referenced by any registry row").
func (r *Registry) UpsertBranch(ctx context.Context, row BranchRow) error {
	sql := fmt.Sprintf(`INSERT INTO %s (configuration_hash, branch_name, configuration_json, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (configuration_hash) DO UPDATE SET
			branch_name = EXCLUDED.branch_name,
			configuration_json = EXCLUDED.configuration_json,
			updated_at = now()`, quoted(postgis.TableBranch))
	if _, err := r.pool.Exec(ctx, sql, row.ConfigurationHash, row.BranchName, row.ConfigurationJSON); err != nil {
		return fmt.Errorf("upserting branch row: %w", err)
	}
	return nil
}

// Register creates (or refreshes) a registry row with completed=false.
// Call this at node registration time, before the executor runs
// (spec.md §3 Registry entry lifecycle: "created at node registration").
func (r *Registry) Register(ctx context.Context, e Entry) error {
	sql := fmt.Sprintf(`INSERT INTO %s (output_handle, logical_name, branch_name, configuration_hash, completed, updated_at)
		VALUES ($1, $2, $3, $4, false, now())
		ON CONFLICT (output_handle) DO UPDATE SET
			logical_name = EXCLUDED.logical_name,
			branch_name = EXCLUDED.branch_name,
			configuration_hash = EXCLUDED.configuration_hash,
			updated_at = now()
		WHERE NOT %s.completed`, quoted(postgis.TableRegistry), quoted(postgis.TableRegistry))
	if _, err := r.pool.Exec(ctx, sql, e.OutputHandle, e.LogicalName, e.BranchName, e.ConfigurationHash); err != nil {
		return fmt.Errorf("registering %s: %w", e.OutputHandle, err)
	}
	return nil
}

// MarkComplete flips completed=true for outputHandle. Callers MUST call
// this only after the artifact itself has been durably written
// (write-then-mark-complete, spec.md §4.3, §9) — ideally in the same
// connection/transaction as the last DDL/DML on the artifact, to avoid
// racing a concurrent startup sync.
func (r *Registry) MarkComplete(ctx context.Context, outputHandle string) error {
	sql := fmt.Sprintf(`UPDATE %s SET completed = true, updated_at = now() WHERE output_handle = $1`, quoted(postgis.TableRegistry))
	tag, err := r.pool.Exec(ctx, sql, outputHandle)
	if err != nil {
		return fmt.Errorf("marking %s complete: %w", outputHandle, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("marking %s complete: no registry row found", outputHandle)
	}
	return nil
}

// IsComplete reports whether outputHandle has a completed registry row.
// Executors use this to skip already-completed work on a rerun
// (spec.md §1 Non-goals: "already-completed tables are skipped").
func (r *Registry) IsComplete(ctx context.Context, outputHandle string) (bool, error) {
	sql := fmt.Sprintf(`SELECT completed FROM %s WHERE output_handle = $1`, quoted(postgis.TableRegistry))
	var completed bool
	err := r.pool.QueryRow(ctx, sql, outputHandle).Scan(&completed)
	if err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("checking completion of %s: %w", outputHandle, err)
	}
	return completed, nil
}

// All returns every registry row, for introspection and startup sync.
func (r *Registry) All(ctx context.Context) ([]Entry, error) {
	sql := fmt.Sprintf(`SELECT output_handle, logical_name, branch_name, configuration_hash, completed, updated_at FROM %s`, quoted(postgis.TableRegistry))
	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("listing registry rows: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.OutputHandle, &e.LogicalName, &e.BranchName, &e.ConfigurationHash, &e.Completed, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning registry row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteRow removes a registry row by output handle.
func (r *Registry) DeleteRow(ctx context.Context, outputHandle string) error {
	sql := fmt.Sprintf(`DELETE FROM %s WHERE output_handle = $1`, quoted(postgis.TableRegistry))
	if _, err := r.pool.Exec(ctx, sql, outputHandle); err != nil {
		return fmt.Errorf("deleting registry row %s: %w", outputHandle, err)
	}
	return nil
}

// PurgeAll drops every registry and branch row (used by --purgedb).
func (r *Registry) PurgeAll(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s", quoted(postgis.TableRegistry))); err != nil {
		return fmt.Errorf("purging registry: %w", err)
	}
	if _, err := r.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s", quoted(postgis.TableBranch))); err != nil {
		return fmt.Errorf("purging branch table: %w", err)
	}
	return nil
}

func isNoRows(err error) bool {
	return err != nil && err.Error() == "no rows in result set"
}
