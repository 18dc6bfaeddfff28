// Package sqlite stores API snapshots in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	_ "github.com/mattn/go-sqlite3"

	"github.com/efebarandurmaz/apistat/internal/classify"
	"github.com/efebarandurmaz/apistat/internal/graph"
	"github.com/efebarandurmaz/apistat/internal/observability"
)

const schema = `
CREATE TABLE IF NOT EXISTS crates (
	name           TEXT PRIMARY KEY,
	version        TEXT NOT NULL,
	format_version INTEGER NOT NULL,
	items          INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS items (
	crate        TEXT NOT NULL,
	id           TEXT NOT NULL,
	name         TEXT NOT NULL,
	category     TEXT NOT NULL,
	raw_kind     TEXT NOT NULL,
	parent       TEXT NOT NULL,
	path         TEXT NOT NULL,
	module       TEXT NOT NULL,
	item_crate   TEXT NOT NULL,
	local        INTEGER NOT NULL,
	resolved     INTEGER NOT NULL,
	visibility   TEXT NOT NULL,
	stability    TEXT NOT NULL,
	deprecation  TEXT NOT NULL,
	documented   INTEGER NOT NULL,
	generics     INTEGER NOT NULL,
	has_generics INTEGER NOT NULL,
	is_const     INTEGER NOT NULL,
	is_async     INTEGER NOT NULL,
	is_unsafe    INTEGER NOT NULL,
	methods      INTEGER NOT NULL,
	signature    TEXT NOT NULL,
	PRIMARY KEY (crate, id)
);
CREATE INDEX IF NOT EXISTS items_path ON items (crate, path);
CREATE TABLE IF NOT EXISTS nodes (
	crate  TEXT NOT NULL,
	id     TEXT NOT NULL,
	name   TEXT NOT NULL,
	kind   TEXT NOT NULL,
	module TEXT NOT NULL,
	PRIMARY KEY (crate, id)
);
CREATE TABLE IF NOT EXISTS edges (
	crate TEXT NOT NULL,
	src   TEXT NOT NULL,
	dst   TEXT NOT NULL,
	kind  TEXT NOT NULL,
	label TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS stats (
	crate        TEXT NOT NULL,
	group_by     TEXT NOT NULL,
	category     TEXT NOT NULL,
	key          TEXT NOT NULL,
	count        INTEGER NOT NULL,
	public       INTEGER NOT NULL,
	deprecated   INTEGER NOT NULL,
	unstable     INTEGER NOT NULL,
	documented   INTEGER NOT NULL,
	avg_generics REAL NOT NULL,
	methods      INTEGER NOT NULL
);
`

// Repository implements graph.Repository on a SQLite file.
type Repository struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies the schema.
// ":memory:" gives a private in-memory database.
func Open(ctx context.Context, path string) (*Repository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Repository{db: db}, nil
}

// Store replaces the crate's rows in one transaction.
func (r *Repository) Store(ctx context.Context, snap *graph.Snapshot) (err error) {
	ctx, span := observability.StartSinkSpan(ctx, "sqlite", len(snap.Records))
	defer span.End()
	defer func() { observability.RecordError(span, err) }()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, table := range []string{"items", "nodes", "edges", "stats"} {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE crate = ?", snap.Crate); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO crates (name, version, format_version, items) VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET version = excluded.version,
		 format_version = excluded.format_version, items = excluded.items`,
		snap.Crate, snap.CrateVersion, snap.FormatVersion, len(snap.Records)); err != nil {
		return fmt.Errorf("store crate: %w", err)
	}

	if err = insertItems(ctx, tx, snap); err != nil {
		return err
	}
	if err = insertGraph(ctx, tx, snap); err != nil {
		return err
	}
	if err = insertStats(ctx, tx, snap); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertItems(ctx context.Context, tx *sql.Tx, snap *graph.Snapshot) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO items (
		crate, id, name, category, raw_kind, parent, path, module, item_crate, local, resolved,
		visibility, stability, deprecation, documented, generics, has_generics,
		is_const, is_async, is_unsafe, methods, signature
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare items: %w", err)
	}
	defer stmt.Close()
	for _, rec := range snap.Records {
		_, err := stmt.ExecContext(ctx,
			snap.Crate, string(rec.ID), rec.Name, string(rec.Category), rec.RawKind, string(rec.Parent),
			rec.Path, rec.Module, rec.Crate, rec.Local, rec.Resolved,
			string(rec.Visibility), string(rec.Stability), rec.DeprecationNote, rec.Documented,
			rec.Generics, rec.HasGenerics, rec.Const, rec.Async, rec.Unsafe, rec.Methods, rec.Signature)
		if err != nil {
			return fmt.Errorf("insert item %s: %w", rec.ID, err)
		}
	}
	return nil
}

func insertGraph(ctx context.Context, tx *sql.Tx, snap *graph.Snapshot) error {
	if snap.Graph == nil {
		return nil
	}
	for _, n := range snap.Graph.Nodes {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO nodes (crate, id, name, kind, module) VALUES (?, ?, ?, ?, ?)",
			snap.Crate, n.ID, n.Name, string(n.Kind), n.Module); err != nil {
			return fmt.Errorf("insert node %s: %w", n.ID, err)
		}
	}
	for _, e := range snap.Graph.Edges {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO edges (crate, src, dst, kind, label) VALUES (?, ?, ?, ?, ?)",
			snap.Crate, e.From, e.To, string(e.Kind), e.Label); err != nil {
			return fmt.Errorf("insert edge %s -> %s: %w", e.From, e.To, err)
		}
	}
	return nil
}

func insertStats(ctx context.Context, tx *sql.Tx, snap *graph.Snapshot) error {
	for _, row := range snap.Aggregate.Rows {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO stats (crate, group_by, category, key, count, public, deprecated,
			 unstable, documented, avg_generics, methods) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			snap.Crate, string(snap.Aggregate.GroupBy), string(row.Category), row.Key, row.Count,
			row.Public, row.Deprecated, row.Unstable, row.Documented, row.AvgGenerics(), row.Methods); err != nil {
			return fmt.Errorf("insert stats row %s: %w", row.Category, err)
		}
	}
	return nil
}

func (r *Repository) LoadRecords(ctx context.Context, crate string) ([]classify.Record, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT
		id, name, category, raw_kind, parent, path, module, item_crate, local, resolved,
		visibility, stability, deprecation, documented, generics, has_generics,
		is_const, is_async, is_unsafe, methods, signature
		FROM items WHERE crate = ?`, crate)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var records []classify.Record
	for rows.Next() {
		var rec classify.Record
		if err := rows.Scan(
			&rec.ID, &rec.Name, &rec.Category, &rec.RawKind, &rec.Parent, &rec.Path, &rec.Module,
			&rec.Crate, &rec.Local, &rec.Resolved, &rec.Visibility, &rec.Stability,
			&rec.DeprecationNote, &rec.Documented, &rec.Generics, &rec.HasGenerics,
			&rec.Const, &rec.Async, &rec.Unsafe, &rec.Methods, &rec.Signature,
		); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID.Less(records[j].ID) })
	return records, nil
}

func (r *Repository) QueryReExports(ctx context.Context, crate, path string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT u.name FROM edges e
		JOIN nodes u ON u.crate = e.crate AND u.id = e.src
		JOIN nodes t ON t.crate = e.crate AND t.id = e.dst
		WHERE e.crate = ? AND e.kind = 'reexports' AND t.name = ?
		ORDER BY u.name`, crate, path)
	if err != nil {
		return nil, fmt.Errorf("query re-exports: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// CategoryCounts returns the stored stats rows of crate summed per category.
func (r *Repository) CategoryCounts(ctx context.Context, crate string) (map[classify.Category]int, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT category, SUM(count) FROM stats WHERE crate = ? GROUP BY category", crate)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	counts := make(map[classify.Category]int)
	for rows.Next() {
		var cat string
		var n int
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, err
		}
		counts[classify.Category(cat)] = n
	}
	return counts, rows.Err()
}

func (r *Repository) Close(context.Context) error {
	return r.db.Close()
}

var _ graph.Repository = (*Repository)(nil)
