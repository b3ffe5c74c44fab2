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

// Package chunker turns row batches into multi-row INSERT statements that
// stay under the remote API's statement size limit.
package chunker

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dolthub/d1-sync/libraries/synccore/val"
)

// Insert verbs. The remote dialect is sqlite, so conflict handling rides on
// the statement itself rather than a session setting.
const (
	verbReplace = "INSERT OR REPLACE"
	verbIgnore  = "INSERT OR IGNORE"
)

// rowSeparator joins row literals inside the VALUES list. Its length is part
// of the per-row cost during packing.
const rowSeparator = ",\n"

// Chunk is one renderable INSERT statement covering a contiguous span of a
// batch. Offsets are absolute row offsets into the source table; EndOffset is
// exclusive. An Oversized chunk holds a single row whose statement alone
// exceeds the effective budget; it is never sent, only reported.
type Chunk struct {
	Table       string
	SQL         string
	RowCount    int
	ByteSize    int
	StartOffset int64
	EndOffset   int64
	Oversized   bool
}

// Chunker packs rows greedily into statements of at most
// floor(maxSQLBytes * safetyMargin) bytes.
type Chunker struct {
	maxSQLBytes  int
	safetyMargin float64
}

func NewChunker(maxSQLBytes int, safetyMargin float64) (*Chunker, error) {
	if maxSQLBytes <= 0 {
		return nil, fmt.Errorf("chunker: max sql bytes must be positive, got %d", maxSQLBytes)
	}
	if safetyMargin <= 0 || safetyMargin > 1 {
		return nil, fmt.Errorf("chunker: safety margin must be in (0, 1], got %v", safetyMargin)
	}
	return &Chunker{maxSQLBytes: maxSQLBytes, safetyMargin: safetyMargin}, nil
}

// EffectiveBudget is the byte ceiling applied to every emitted statement.
func (c *Chunker) EffectiveBudget() int {
	return int(math.Floor(float64(c.maxSQLBytes) * c.safetyMargin))
}

// QuoteIdent double-quotes an identifier for sqlite, doubling any embedded
// quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// EncodeValue renders a cell as a sqlite literal. Text is single-quoted with
// embedded quotes doubled and NUL bytes stripped; blobs become X'..' hex
// literals; booleans become 1/0; non-finite floats degrade to NULL since the
// remote's JSON layer cannot carry them.
func EncodeValue(v val.Value) string {
	switch v.Kind {
	case val.NullKind:
		return "NULL"
	case val.IntKind:
		return strconv.FormatInt(v.I, 10)
	case val.FloatKind:
		if math.IsNaN(v.F) || math.IsInf(v.F, 0) {
			return "NULL"
		}
		s := strconv.FormatFloat(v.F, 'g', -1, 64)
		// keep REAL affinity for whole floats, 2.0 must not become the
		// integer literal 2
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s
	case val.BoolKind:
		if v.B {
			return "1"
		}
		return "0"
	case val.TextKind:
		s := v.S
		if strings.ContainsRune(s, 0) {
			s = strings.ReplaceAll(s, "\x00", "")
		}
		return "'" + strings.ReplaceAll(s, "'", "''") + "'"
	case val.BlobKind:
		return "X'" + hex.EncodeToString(v.Bytes) + "'"
	}
	return "NULL"
}

func encodeRow(row []val.Value) string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i, v := range row {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(EncodeValue(v))
	}
	sb.WriteByte(')')
	return sb.String()
}

// EstimateRowSize returns the rendered literal size of a row plus the
// separator allowance, the same cost packing charges it.
func EstimateRowSize(row []val.Value) int {
	return len(encodeRow(row)) + len(rowSeparator)
}

func statementPrefix(table string, columns []string, overwrite bool) string {
	verb := verbIgnore
	if overwrite {
		verb = verbReplace
	}

	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = QuoteIdent(c)
	}
	return verb + " INTO " + QuoteIdent(table) + " (" + strings.Join(quoted, ", ") + ") VALUES\n"
}

// ChunkRows packs the batch into statements. Chunks tile the batch: the
// first chunk starts at startOffset and each chunk begins where the previous
// ended, oversized single-row chunks included. Rows never straddle chunks.
func (c *Chunker) ChunkRows(table string, columns []string, rows [][]val.Value, startOffset int64, overwrite bool) []Chunk {
	if len(rows) == 0 {
		return nil
	}

	budget := c.EffectiveBudget()
	prefix := statementPrefix(table, columns, overwrite)
	// prefix plus the closing semicolon is charged up front; each row then
	// costs its literal plus the separator, which slightly overestimates the
	// final statement and keeps every emitted chunk under budget.
	base := len(prefix) + 1

	var chunks []Chunk
	var pending []string
	pendingSize := base
	chunkStart := startOffset

	flush := func(end int64) {
		if len(pending) == 0 {
			return
		}
		sql := prefix + strings.Join(pending, rowSeparator) + ";"
		chunks = append(chunks, Chunk{
			Table:       table,
			SQL:         sql,
			RowCount:    len(pending),
			ByteSize:    len(sql),
			StartOffset: chunkStart,
			EndOffset:   end,
		})
		pending = nil
		pendingSize = base
		chunkStart = end
	}

	for i, row := range rows {
		rowLit := encodeRow(row)
		rowCost := len(rowLit) + len(rowSeparator)
		abs := startOffset + int64(i)

		if base+len(rowLit) > budget {
			// this row cannot fit in a statement by itself
			flush(abs)
			sql := prefix + rowLit + ";"
			chunks = append(chunks, Chunk{
				Table:       table,
				SQL:         sql,
				RowCount:    1,
				ByteSize:    len(sql),
				StartOffset: abs,
				EndOffset:   abs + 1,
				Oversized:   true,
			})
			chunkStart = abs + 1
			continue
		}

		if pendingSize+rowCost > budget {
			flush(abs)
		}
		pending = append(pending, rowLit)
		pendingSize += rowCost
	}
	flush(startOffset + int64(len(rows)))

	return chunks
}
