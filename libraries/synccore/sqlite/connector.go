// Copyright 2025 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sqlite reads and writes the local side of a sync through the pure
// Go sqlite driver. A read-only connector backs push; a writable one backs
// pull and maintenance commands.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/dolthub/d1-sync/libraries/synccore/chunker"
	"github.com/dolthub/d1-sync/libraries/synccore/schema"
	"github.com/dolthub/d1-sync/libraries/synccore/val"
)

var (
	// ErrDatabaseNotFound is returned by Open for a missing file. It is
	// fatal: syncing an empty database into a populated remote by accident
	// is worse than stopping.
	ErrDatabaseNotFound = errors.New("sqlite: database file not found")

	// ErrReadOnly rejects write operations on a read-only connector.
	ErrReadOnly = errors.New("sqlite: connector is read-only")
)

// Column describes one column of a table, from PRAGMA table_info.
type Column struct {
	Name       string
	Type       string
	NotNull    bool
	Default    *string
	PrimaryKey int // 1-based position within the primary key, 0 if not part of it
}

// TableDesc is the immutable per-run description of a table.
type TableDesc struct {
	Name      string
	Columns   []Column
	RowCount  int64
	CreateSQL string
	Indexes   []string
}

// Connector wraps one sqlite database handle.
type Connector struct {
	db       *sql.DB
	path     string
	readonly bool
	lgr      *logrus.Entry
}

// Open opens the database at path. In read-only mode the file must already
// exist and every write method fails with ErrReadOnly; in write mode the
// file is created if missing and session pragmas tune it for bulk work.
// A nil logger silences the connector.
func Open(path string, readonly bool, lgr *logrus.Entry) (*Connector, error) {
	lgr = ensureLogger(lgr).WithField("db", path)

	if readonly {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrDatabaseNotFound, path)
		}
	}

	dsn := "file:" + path
	if readonly {
		dsn += "?mode=ro"
	} else {
		dsn += "?_pragma=journal_mode(WAL)" +
			"&_pragma=synchronous(NORMAL)" +
			"&_pragma=cache_size(-64000)" +
			"&_pragma=temp_store(MEMORY)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: opening %s: %w", path, err)
	}

	lgr.WithField("readonly", readonly).Debug("opened sqlite database")
	return &Connector{db: db, path: path, readonly: readonly, lgr: lgr}, nil
}

func ensureLogger(lgr *logrus.Entry) *logrus.Entry {
	if lgr != nil {
		return lgr
	}
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	return logrus.NewEntry(quiet)
}

func (c *Connector) Close() error {
	return c.db.Close()
}

func (c *Connector) Path() string {
	return c.path
}

func (c *Connector) ReadOnly() bool {
	return c.readonly
}

// Tables returns the user tables in foreign-key order: every table follows
// the tables its CREATE statement references, alphabetical within ties, any
// cyclic residue appended alphabetically.
func (c *Connector) Tables(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT name, COALESCE(sql, '') FROM sqlite_master WHERE type = 'table' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing tables: %w", err)
	}
	defer rows.Close()

	var names []string
	refs := make(map[string][]string)
	for rows.Next() {
		var name, createSQL string
		if err := rows.Scan(&name, &createSQL); err != nil {
			return nil, err
		}
		if schema.IsInternalTable(name) {
			continue
		}
		names = append(names, name)
		refs[name] = schema.ForeignKeyRefs(createSQL)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return schema.TopoSort(names, refs), nil
}

// TablesAlphabetical returns the user tables by name, for display.
func (c *Connector) TablesAlphabetical(ctx context.Context) ([]string, error) {
	tables, err := c.Tables(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(tables)
	return tables, nil
}

func (c *Connector) RowCount(ctx context.Context, table string) (int64, error) {
	var n int64
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+chunker.QuoteIdent(table)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting %s: %w", table, err)
	}
	return n, nil
}

// CreateStatement returns the original CREATE TABLE text.
func (c *Connector) CreateStatement(ctx context.Context, table string) (string, error) {
	var createSQL sql.NullString
	err := c.db.QueryRowContext(ctx,
		`SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&createSQL)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("sqlite: no such table %s", table)
	}
	if err != nil {
		return "", err
	}
	return createSQL.String, nil
}

// IndexStatements returns the CREATE INDEX statements for a table. Indexes
// sqlite creates implicitly have no SQL text and are skipped.
func (c *Connector) IndexStatements(ctx context.Context, table string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT sql FROM sqlite_master WHERE type = 'index' AND tbl_name = ? AND sql IS NOT NULL ORDER BY name`,
		table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stmts []string
	for rows.Next() {
		var stmt string
		if err := rows.Scan(&stmt); err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	return stmts, rows.Err()
}

// TableInfo returns the column descriptions from PRAGMA table_info, in
// declaration order.
func (c *Connector) TableInfo(ctx context.Context, table string) ([]Column, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT name, type, "notnull", dflt_value, pk FROM pragma_table_info(?)`, table)
	if err != nil {
		return nil, fmt.Errorf("sqlite: table_info %s: %w", table, err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var col Column
		var notnull int
		var dflt sql.NullString
		if err := rows.Scan(&col.Name, &col.Type, &notnull, &dflt, &col.PrimaryKey); err != nil {
			return nil, err
		}
		col.NotNull = notnull != 0
		if dflt.Valid {
			col.Default = &dflt.String
		}
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("sqlite: no such table %s", table)
	}
	return cols, nil
}

// Columns returns the column names in declaration order.
func (c *Connector) Columns(ctx context.Context, table string) ([]string, error) {
	info, err := c.TableInfo(ctx, table)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(info))
	for i, col := range info {
		names[i] = col.Name
	}
	return names, nil
}

// Query runs an arbitrary read statement and returns the rows in column
// order as typed values.
func (c *Connector) Query(ctx context.Context, query string, args ...interface{}) ([][]val.Value, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	scan := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range scan {
		ptrs[i] = &scan[i]
	}

	var out [][]val.Value
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		out = append(out, val.FromDriverRow(scan))
	}
	return out, rows.Err()
}

// PrimaryKey returns the primary key columns in key order, or nil when the
// table has none.
func (c *Connector) PrimaryKey(ctx context.Context, table string) ([]string, error) {
	info, err := c.TableInfo(ctx, table)
	if err != nil {
		return nil, err
	}
	var pk []Column
	for _, col := range info {
		if col.PrimaryKey > 0 {
			pk = append(pk, col)
		}
	}
	sort.Slice(pk, func(i, j int) bool { return pk[i].PrimaryKey < pk[j].PrimaryKey })

	names := make([]string, len(pk))
	for i, col := range pk {
		names[i] = col.Name
	}
	return names, nil
}

// DescribeTable assembles the full per-run descriptor for a table.
func (c *Connector) DescribeTable(ctx context.Context, table string) (*TableDesc, error) {
	cols, err := c.TableInfo(ctx, table)
	if err != nil {
		return nil, err
	}
	count, err := c.RowCount(ctx, table)
	if err != nil {
		return nil, err
	}
	createSQL, err := c.CreateStatement(ctx, table)
	if err != nil {
		return nil, err
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'index' AND tbl_name = ? ORDER BY name`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		indexes = append(indexes, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &TableDesc{
		Name:      table,
		Columns:   cols,
		RowCount:  count,
		CreateSQL: createSQL,
		Indexes:   indexes,
	}, nil
}

// DatabaseSize returns the file size in bytes as sqlite accounts it.
func (c *Connector) DatabaseSize(ctx context.Context) (int64, error) {
	var pageCount, pageSize int64
	if err := c.db.QueryRowContext(ctx, `PRAGMA page_count`).Scan(&pageCount); err != nil {
		return 0, err
	}
	if err := c.db.QueryRowContext(ctx, `PRAGMA page_size`).Scan(&pageSize); err != nil {
		return 0, err
	}
	return pageCount * pageSize, nil
}

// QuickCheck runs PRAGMA quick_check and returns its verdict ("ok" for a
// healthy database).
func (c *Connector) QuickCheck(ctx context.Context) (string, error) {
	var verdict string
	if err := c.db.QueryRowContext(ctx, `PRAGMA quick_check`).Scan(&verdict); err != nil {
		return "", err
	}
	return verdict, nil
}
