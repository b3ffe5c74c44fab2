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

package sqlite

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dolthub/d1-sync/libraries/synccore/chunker"
	"github.com/dolthub/d1-sync/libraries/synccore/integrity"
	"github.com/dolthub/d1-sync/libraries/synccore/val"
)

// RowBatch is one page of rows read from a table.
type RowBatch struct {
	Table    string
	Columns  []string
	Rows     [][]val.Value
	Offset   int64 // absolute offset of Rows[0] within the table's order
	Checksum string
}

// Size returns the number of rows in the batch.
func (b *RowBatch) Size() int {
	return len(b.Rows)
}

// BatchOpts controls a table scan.
type BatchOpts struct {
	BatchSize int
	Offset    int64    // starting row offset
	Limit     int64    // max rows to read in total, 0 for all
	Columns   []string // subset and order of columns, nil for all
	OrderBy   string   // explicit ORDER BY expression, "" for the default
}

// BatchIter pages through a table with LIMIT/OFFSET queries against a
// stable order: the caller's OrderBy if given, the primary key if the table
// has one, the natural row order otherwise.
type BatchIter struct {
	c        *Connector
	checker  *integrity.Checker
	table    string
	columns  []string
	selectOf string
	orderBy  string
	batch    int
	next     int64
	left     int64 // rows remaining under Limit, -1 for unlimited
	done     bool
}

// IterBatches starts a scan of table at opts.Offset. Column and key lookups
// happen here, so a missing table fails fast rather than on first Next.
func (c *Connector) IterBatches(ctx context.Context, table string, checker *integrity.Checker, opts BatchOpts) (*BatchIter, error) {
	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("sqlite: batch size must be positive, got %d", opts.BatchSize)
	}

	columns := opts.Columns
	if columns == nil {
		var err error
		columns, err = c.Columns(ctx, table)
		if err != nil {
			return nil, err
		}
	}

	orderBy := opts.OrderBy
	if orderBy == "" {
		pk, err := c.PrimaryKey(ctx, table)
		if err != nil {
			return nil, err
		}
		if len(pk) > 0 {
			quoted := make([]string, len(pk))
			for i, col := range pk {
				quoted[i] = chunker.QuoteIdent(col)
			}
			orderBy = strings.Join(quoted, ", ")
		}
	}

	quotedCols := make([]string, len(columns))
	for i, col := range columns {
		quotedCols[i] = chunker.QuoteIdent(col)
	}

	left := int64(-1)
	if opts.Limit > 0 {
		left = opts.Limit
	}

	return &BatchIter{
		c:        c,
		checker:  checker,
		table:    table,
		columns:  columns,
		selectOf: "SELECT " + strings.Join(quotedCols, ", ") + " FROM " + chunker.QuoteIdent(table),
		orderBy:  orderBy,
		batch:    opts.BatchSize,
		next:     opts.Offset,
		left:     left,
	}, nil
}

// Next returns the next batch, or io.EOF once the table (or the configured
// limit) is exhausted. Empty tables yield io.EOF immediately.
func (it *BatchIter) Next(ctx context.Context) (*RowBatch, error) {
	if it.done {
		return nil, io.EOF
	}

	want := it.batch
	if it.left >= 0 && it.left < int64(want) {
		want = int(it.left)
	}
	if want == 0 {
		it.done = true
		return nil, io.EOF
	}

	query := it.selectOf
	if it.orderBy != "" {
		query += " ORDER BY " + it.orderBy
	}
	query += " LIMIT ? OFFSET ?"

	rows, err := it.c.db.QueryContext(ctx, query, want, it.next)
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading %s at offset %d: %w", it.table, it.next, err)
	}
	defer rows.Close()

	batch := &RowBatch{Table: it.table, Columns: it.columns, Offset: it.next}
	scan := make([]interface{}, len(it.columns))
	ptrs := make([]interface{}, len(it.columns))
	for i := range scan {
		ptrs[i] = &scan[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		batch.Rows = append(batch.Rows, val.FromDriverRow(scan))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	n := len(batch.Rows)
	if n == 0 {
		it.done = true
		return nil, io.EOF
	}
	if n < want {
		it.done = true
	}

	it.next += int64(n)
	if it.left >= 0 {
		it.left -= int64(n)
	}
	if it.checker != nil {
		batch.Checksum = it.checker.BatchChecksum(batch.Rows)
	}
	return batch, nil
}

// Close releases the iterator. Present for symmetry with other readers;
// each page closes its own result set.
func (it *BatchIter) Close() error {
	it.done = true
	return nil
}
