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

package integrity

import (
	"crypto/md5"
	"encoding/hex"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dolthub/d1-sync/libraries/synccore/val"
)

func TestCanonicalCell(t *testing.T) {
	tests := []struct {
		name string
		in   val.Value
		out  string
	}{
		{"null", val.Null(), `\N`},
		{"int", val.Int(-17), "-17"},
		{"float", val.Float(2.5), "2.5"},
		{"float whole", val.Float(3), "3"},
		{"bool true", val.Bool(true), "1"},
		{"bool false", val.Bool(false), "0"},
		{"text", val.Text("hello world"), "hello world"},
		{"blob", val.Blob([]byte{0xde, 0xad, 0xbe, 0xef}), "deadbeef"},
		{"empty text", val.Text(""), ""},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.out, CanonicalCell(test.in))
		})
	}
}

func TestNewCheckerRejectsUnknownAlgorithm(t *testing.T) {
	_, err := NewChecker("crc32")
	require.Error(t, err)

	c, err := NewChecker("")
	require.NoError(t, err)
	assert.Equal(t, MD5, c.Algorithm())
}

func TestRowChecksum(t *testing.T) {
	c, err := NewChecker(MD5)
	require.NoError(t, err)

	row := []val.Value{val.Int(1), val.Text("Alice"), val.Null()}
	want := md5.Sum([]byte(`1|Alice|\N`))
	assert.Equal(t, hex.EncodeToString(want[:]), c.RowChecksum(row))
}

func TestRowChecksumSHA256Length(t *testing.T) {
	c, err := NewChecker(SHA256)
	require.NoError(t, err)
	assert.Len(t, c.RowChecksum([]val.Value{val.Int(1)}), 64)
}

func TestRowChecksumNonFinite(t *testing.T) {
	c, err := NewChecker(MD5)
	require.NoError(t, err)

	nan := c.RowChecksum([]val.Value{val.Float(math.NaN())})
	inf := c.RowChecksum([]val.Value{val.Float(math.Inf(1))})
	assert.NotEqual(t, nan, inf)
	assert.Equal(t, nan, c.RowChecksum([]val.Value{val.Float(math.NaN())}))
}

// Identical row content must hash identically regardless of how the rows were
// batched on their way in.
func TestBatchChecksumIndependentOfGrouping(t *testing.T) {
	c, err := NewChecker(MD5)
	require.NoError(t, err)

	rows := [][]val.Value{
		{val.Int(1), val.Text("a")},
		{val.Int(2), val.Text("b")},
		{val.Int(3), val.Text("c")},
		{val.Int(4), val.Null()},
		{val.Int(5), val.Blob([]byte{9})},
	}

	whole := c.BatchChecksum(rows)

	th := c.NewTableHasher()
	th.AddRows(rows[:2])
	th.AddRows(rows[2:4])
	th.AddRows(rows[4:])
	assert.Equal(t, whole, th.Sum())
	assert.Equal(t, int64(5), th.Rows())
	assert.Equal(t, whole, c.TableChecksum(rows))
}

func TestBatchChecksumOrderSensitive(t *testing.T) {
	c, err := NewChecker(MD5)
	require.NoError(t, err)

	a := [][]val.Value{{val.Int(1)}, {val.Int(2)}}
	b := [][]val.Value{{val.Int(2)}, {val.Int(1)}}
	assert.NotEqual(t, c.BatchChecksum(a), c.BatchChecksum(b))
}

func TestFindMismatches(t *testing.T) {
	c, err := NewChecker(MD5)
	require.NoError(t, err)

	src := [][]val.Value{
		{val.Int(1), val.Text("alice")},
		{val.Int(2), val.Text("bob")},
		{val.Int(3), val.Text("carol")},
	}
	dst := [][]val.Value{
		{val.Int(1), val.Text("alice")},
		{val.Int(3), val.Text("CAROL")},
		{val.Int(9), val.Text("zed")},
		{val.Int(4), val.Text("dave")},
	}

	got := c.FindMismatches(src, dst, 0)
	require.Len(t, got, 4)

	assert.Equal(t, Mismatch{Key: "2", Type: MissingInDest, SourceChecksum: c.RowChecksum(src[1])}, got[0])

	assert.Equal(t, "3", got[1].Key)
	assert.Equal(t, ChecksumMismatch, got[1].Type)
	assert.NotEqual(t, got[1].SourceChecksum, got[1].DestChecksum)

	// destination-only rows come last, ordered by key
	assert.Equal(t, Mismatch{Key: "4", Type: ExtraInDest, DestChecksum: c.RowChecksum(dst[3])}, got[2])
	assert.Equal(t, "9", got[3].Key)
	assert.Equal(t, ExtraInDest, got[3].Type)
}

func TestFindMismatchesEqualSets(t *testing.T) {
	c, err := NewChecker(SHA256)
	require.NoError(t, err)

	rows := [][]val.Value{{val.Int(1), val.Bool(true)}, {val.Int(2), val.Null()}}
	assert.Empty(t, c.FindMismatches(rows, rows, 0))
}
