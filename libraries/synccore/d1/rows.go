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

package d1

import (
	"context"
	"fmt"
	"strings"

	"github.com/dolthub/d1-sync/libraries/synccore/chunker"
	"github.com/dolthub/d1-sync/libraries/synccore/val"
)

// SelectPage reads one LIMIT/OFFSET page of a remote table. Values come back
// ordered per columns, normalized through val.FromJSON.
func (c *Client) SelectPage(ctx context.Context, table string, columns []string, limit, offset int64) ([][]val.Value, error) {
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = chunker.QuoteIdent(col)
	}
	stmt := "SELECT " + strings.Join(quoted, ", ") + " FROM " + chunker.QuoteIdent(table) + " LIMIT ?1 OFFSET ?2"

	res, err := c.Query(ctx, stmt, limit, offset)
	if err != nil {
		return nil, err
	}
	rows := make([][]val.Value, 0, len(res.Results))
	for _, rec := range res.Results {
		row := make([]val.Value, len(columns))
		for i, col := range columns {
			row[i] = val.FromJSON(rec[col])
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// InsertRows writes rows through parameterized statements, packing as many
// rows per statement as maxParams allows, always at least one. Rows holding
// blob cells are sent as literal SQL; the JSON wire form has no binary
// representation for parameters. Returns the count of rows acknowledged
// before the first failure.
func (c *Client) InsertRows(ctx context.Context, table string, columns []string, rows [][]val.Value, replace bool, maxParams int) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("d1: insert into %s with no columns", table)
	}
	if maxParams <= 0 {
		maxParams = 100
	}
	perStmt := maxParams / len(columns)
	if perStmt < 1 {
		perStmt = 1
	}

	verb := "INSERT OR IGNORE"
	if replace {
		verb = "INSERT OR REPLACE"
	}
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = chunker.QuoteIdent(col)
	}
	prefix := verb + " INTO " + chunker.QuoteIdent(table) + " (" + strings.Join(quoted, ", ") + ") VALUES "

	var written int64
	for start := 0; start < len(rows); start += perStmt {
		end := start + perStmt
		if end > len(rows) {
			end = len(rows)
		}
		group := rows[start:end]

		var st Statement
		if hasBlob(group) {
			st = Statement{SQL: literalInsert(prefix, group)}
		} else {
			st = paramInsert(prefix, group)
		}
		if _, err := c.Query(ctx, st.SQL, st.Params...); err != nil {
			return written, fmt.Errorf("inserting rows %d..%d into %s: %w", start, end-1, table, err)
		}
		written += int64(len(group))
	}
	return written, nil
}

func hasBlob(rows [][]val.Value) bool {
	for _, row := range rows {
		for _, v := range row {
			if v.Kind == val.BlobKind {
				return true
			}
		}
	}
	return false
}

func paramInsert(prefix string, group [][]val.Value) Statement {
	var sb strings.Builder
	sb.WriteString(prefix)
	var params []interface{}
	n := 0
	for i, row := range group {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for j, v := range row {
			if j > 0 {
				sb.WriteString(", ")
			}
			n++
			fmt.Fprintf(&sb, "?%d", n)
			params = append(params, paramValue(v))
		}
		sb.WriteByte(')')
	}
	return Statement{SQL: sb.String(), Params: params}
}

func literalInsert(prefix string, group [][]val.Value) string {
	var sb strings.Builder
	sb.WriteString(prefix)
	for i, row := range group {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for j, v := range row {
			if j > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(chunker.EncodeValue(v))
		}
		sb.WriteByte(')')
	}
	return sb.String()
}

// paramValue maps a cell to its JSON parameter form. Booleans become 1/0,
// matching how sqlite stores them.
func paramValue(v val.Value) interface{} {
	switch v.Kind {
	case val.NullKind:
		return nil
	case val.IntKind:
		return v.I
	case val.FloatKind:
		return v.F
	case val.BoolKind:
		if v.B {
			return int64(1)
		}
		return int64(0)
	case val.TextKind:
		return v.S
	case val.BlobKind:
		return v.Bytes
	}
	return nil
}
