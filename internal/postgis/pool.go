// SPDX-License-Identifier: AGPL-3.0-or-later

// Package postgis wraps pooled access to the PostGIS database: the
// shared connection pool every registry row and spatial executor issues
// SQL through (spec.md §5: "PostGIS - shared; every executor uses a
// pooled connection").
package postgis

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TablePrefix is the managed-table namespace every sitegraph table lives
// under (spec.md §6: "Every managed table name starts with an
// opensite_ / _opensite_ prefix").
const TablePrefix = "opensite_"

// InternalTablePrefix marks tables that are sitegraph-internal
// bookkeeping (registry, branch, grids) rather than dataset output.
const InternalTablePrefix = "_opensite_"

// WorkingSRID is the default metre-based projected CRS sitegraph
// processes geometry in.
const WorkingSRID = 27700 // British National Grid; swap per deployment region.

// OutputSRID is the geographic CRS sitegraph emits outputs in.
const OutputSRID = 4326

// Pool wraps a pgxpool.Pool with the managed-table helpers executors and
// the registry need.
type Pool struct {
	*pgxpool.Pool
}

// Open connects to PostGIS using connString (config.Config.ConnString()).
func Open(ctx context.Context, connString string) (*Pool, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("opening postgis pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgis: %w", err)
	}
	return &Pool{Pool: pool}, nil
}

// EnsureGiSTIndex creates a spatial GiST index on geom for table if one
// doesn't already exist, per spec.md §6: "All managed tables have a
// spatial GiST index on geom".
func (p *Pool) EnsureGiSTIndex(ctx context.Context, table string) error {
	idxName := fmt.Sprintf("idx_%s_geom", sanitizeIdent(table))
	sql := fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS %s ON %s USING GIST (geom)",
		idxName, quoteIdent(table),
	)
	if _, err := p.Exec(ctx, sql); err != nil {
		return fmt.Errorf("ensuring GiST index on %s: %w", table, err)
	}
	return nil
}

// TableExists reports whether table is present in the public schema.
func (p *Pool) TableExists(ctx context.Context, table string) (bool, error) {
	const q = `SELECT EXISTS (
		SELECT 1 FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name = $1
	)`
	var exists bool
	if err := p.QueryRow(ctx, q, table).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking table existence for %s: %w", table, err)
	}
	return exists, nil
}

// ManagedTables lists every table in the public schema whose name starts
// with TablePrefix or InternalTablePrefix (spec.md §4.5 startup sync step 3).
func (p *Pool) ManagedTables(ctx context.Context) ([]string, error) {
	const q = `SELECT table_name FROM information_schema.tables
		WHERE table_schema = 'public'
		AND (table_name LIKE $1 OR table_name LIKE $2)`
	rows, err := p.Query(ctx, q, TablePrefix+"%", InternalTablePrefix+"%")
	if err != nil {
		return nil, fmt.Errorf("listing managed tables: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning managed table name: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// DropTable drops table if it exists.
func (p *Pool) DropTable(ctx context.Context, table string) error {
	sql := fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", quoteIdent(table))
	if _, err := p.Exec(ctx, sql); err != nil {
		return fmt.Errorf("dropping table %s: %w", table, err)
	}
	return nil
}

// quoteIdent double-quotes a Postgres identifier.
func quoteIdent(ident string) string {
	return `"` + ident + `"`
}

func sanitizeIdent(ident string) string {
	out := make([]byte, 0, len(ident))
	for i := 0; i < len(ident); i++ {
		c := ident[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
