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

// Package integrity computes content checksums over row data so the local
// and remote copies of a table can be compared without shipping rows around.
//
// Checksums are layered. A row checksum digests the row's cells in a
// canonical text encoding. A batch checksum digests the concatenated hex
// strings of its row checksums, so it can be computed incrementally and is
// independent of how rows were grouped into batches. A table checksum is the
// batch checksum over every row in a stable order.
package integrity

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"sort"
	"strconv"
	"strings"

	"github.com/dolthub/d1-sync/libraries/synccore/val"
)

// Algorithm names a supported checksum hash.
type Algorithm string

const (
	MD5    Algorithm = "md5"
	SHA256 Algorithm = "sha256"
)

// DefaultAlgorithm is used when the configuration does not name one.
const DefaultAlgorithm = MD5

func (a Algorithm) Valid() bool {
	return a == MD5 || a == SHA256
}

func (a Algorithm) newHash() hash.Hash {
	if a == SHA256 {
		return sha256.New()
	}
	return md5.New()
}

// cellSeparator joins canonical cell strings within a row. It cannot be
// escaped, so rows whose text cells contain it may collide; the original
// wire format accepts this.
const cellSeparator = "|"

// nullToken is the canonical encoding of NULL, borrowed from the tab
// separated dump convention.
const nullToken = `\N`

// CanonicalCell returns the canonical text encoding of a cell: \N for NULL,
// 1/0 for booleans, lowercase hex for blobs, shortest decimal forms for
// numbers, and text verbatim.
func CanonicalCell(v val.Value) string {
	switch v.Kind {
	case val.NullKind:
		return nullToken
	case val.IntKind:
		return strconv.FormatInt(v.I, 10)
	case val.FloatKind:
		return strconv.FormatFloat(v.F, 'g', -1, 64)
	case val.BoolKind:
		if v.B {
			return "1"
		}
		return "0"
	case val.TextKind:
		return v.S
	case val.BlobKind:
		return hex.EncodeToString(v.Bytes)
	}
	return nullToken
}

// Checker computes row, batch, and table checksums with a fixed algorithm.
type Checker struct {
	alg Algorithm
}

func NewChecker(alg Algorithm) (*Checker, error) {
	if alg == "" {
		alg = DefaultAlgorithm
	}
	if !alg.Valid() {
		return nil, fmt.Errorf("integrity: unsupported checksum algorithm %q", alg)
	}
	return &Checker{alg: alg}, nil
}

func (c *Checker) Algorithm() Algorithm {
	return c.alg
}

// RowChecksum digests one row's canonical cell strings joined by the field
// separator and returns the lowercase hex digest.
func (c *Checker) RowChecksum(row []val.Value) string {
	cells := make([]string, len(row))
	for i, v := range row {
		cells[i] = CanonicalCell(v)
	}

	h := c.alg.newHash()
	h.Write([]byte(strings.Join(cells, cellSeparator)))
	return hex.EncodeToString(h.Sum(nil))
}

// BatchChecksum digests the concatenated row checksum hex strings. Splitting
// the same rows across differently sized batches and rehashing the per-batch
// digests is NOT equivalent; batch checksums compose from row checksums only.
func (c *Checker) BatchChecksum(rows [][]val.Value) string {
	h := c.alg.newHash()
	for _, row := range rows {
		h.Write([]byte(c.RowChecksum(row)))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// TableChecksum is the batch checksum over every row of a table read in a
// stable order. Callers stream rows through AddRows to avoid materializing
// large tables; see TableHasher.
func (c *Checker) TableChecksum(rows [][]val.Value) string {
	return c.BatchChecksum(rows)
}

// TableHasher accumulates row checksums incrementally so a table checksum
// can be computed over a batch iterator without holding all rows.
type TableHasher struct {
	c *Checker
	h hash.Hash
	n int64
}

func (c *Checker) NewTableHasher() *TableHasher {
	return &TableHasher{c: c, h: c.alg.newHash()}
}

func (th *TableHasher) AddRows(rows [][]val.Value) {
	for _, row := range rows {
		th.h.Write([]byte(th.c.RowChecksum(row)))
		th.n++
	}
}

func (th *TableHasher) Rows() int64 {
	return th.n
}

func (th *TableHasher) Sum() string {
	return hex.EncodeToString(th.h.Sum(nil))
}

// MismatchType classifies a row-level difference between source and
// destination.
type MismatchType string

const (
	MissingInDest    MismatchType = "missing_in_dest"
	ChecksumMismatch MismatchType = "checksum_mismatch"
	ExtraInDest      MismatchType = "extra_in_dest"
)

// Mismatch reports one differing row, keyed by the canonical encoding of the
// chosen key column.
type Mismatch struct {
	Key            string       `json:"key"`
	Type           MismatchType `json:"type"`
	SourceChecksum string       `json:"source_checksum,omitempty"`
	DestChecksum   string       `json:"dest_checksum,omitempty"`
}

// FindMismatches compares two row sets keyed by the column at keyIdx and
// classifies each difference. Source rows are reported in source order;
// destination-only rows follow in key order. Duplicate keys keep the last
// row seen, mirroring how a keyed table would behave.
func (c *Checker) FindMismatches(src, dst [][]val.Value, keyIdx int) []Mismatch {
	dstSums := make(map[string]string, len(dst))
	for _, row := range dst {
		if keyIdx >= len(row) {
			continue
		}
		dstSums[CanonicalCell(row[keyIdx])] = c.RowChecksum(row)
	}

	var mismatches []Mismatch
	srcSeen := make(map[string]bool, len(src))
	for _, row := range src {
		if keyIdx >= len(row) {
			continue
		}
		key := CanonicalCell(row[keyIdx])
		srcSeen[key] = true
		srcSum := c.RowChecksum(row)

		dstSum, ok := dstSums[key]
		if !ok {
			mismatches = append(mismatches, Mismatch{Key: key, Type: MissingInDest, SourceChecksum: srcSum})
			continue
		}
		if dstSum != srcSum {
			mismatches = append(mismatches, Mismatch{
				Key:            key,
				Type:           ChecksumMismatch,
				SourceChecksum: srcSum,
				DestChecksum:   dstSum,
			})
		}
	}

	extras := make([]string, 0)
	for key := range dstSums {
		if !srcSeen[key] {
			extras = append(extras, key)
		}
	}
	sort.Strings(extras)
	for _, key := range extras {
		mismatches = append(mismatches, Mismatch{Key: key, Type: ExtraInDest, DestChecksum: dstSums[key]})
	}

	return mismatches
}
