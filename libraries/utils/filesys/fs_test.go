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

package filesys

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// both implementations must behave identically for the operations the state
// and config layers depend on
func testFilesystems(t *testing.T) map[string]struct {
	fs   Filesys
	root string
} {
	tmp := t.TempDir()
	return map[string]struct {
		fs   Filesys
		root string
	}{
		"local": {LocalFS, tmp},
		"inmem": {EmptyInMemFS("/work"), "/work"},
	}
}

func TestReadWriteRoundTrip(t *testing.T) {
	for name, tc := range testFilesystems(t) {
		t.Run(name, func(t *testing.T) {
			fp := filepath.Join(tc.root, "sub", "file.json")
			require.NoError(t, tc.fs.MkDirs(filepath.Join(tc.root, "sub")))
			require.NoError(t, tc.fs.WriteFile(fp, []byte(`{"a":1}`), 0644))

			data, err := tc.fs.ReadFile(fp)
			require.NoError(t, err)
			assert.Equal(t, `{"a":1}`, string(data))

			exists, isDir := tc.fs.Exists(fp)
			assert.True(t, exists)
			assert.False(t, isDir)

			_, ok := tc.fs.LastModified(fp)
			assert.True(t, ok)
		})
	}
}

func TestWriteFileOverwrites(t *testing.T) {
	for name, tc := range testFilesystems(t) {
		t.Run(name, func(t *testing.T) {
			fp := filepath.Join(tc.root, "state.json")
			require.NoError(t, tc.fs.WriteFile(fp, []byte("first"), 0644))
			require.NoError(t, tc.fs.WriteFile(fp, []byte("second version"), 0644))

			data, err := tc.fs.ReadFile(fp)
			require.NoError(t, err)
			assert.Equal(t, "second version", string(data))
		})
	}
}

func TestWriteFileLeavesNoTempDebris(t *testing.T) {
	tmp := t.TempDir()
	fp := filepath.Join(tmp, "state.json")
	require.NoError(t, LocalFS.WriteFile(fp, []byte("x"), 0644))

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "state.json", entries[0].Name())
}

func TestReadMissingFile(t *testing.T) {
	for name, tc := range testFilesystems(t) {
		t.Run(name, func(t *testing.T) {
			_, err := tc.fs.ReadFile(filepath.Join(tc.root, "nope"))
			assert.Error(t, err)

			_, err = tc.fs.OpenForRead(filepath.Join(tc.root, "nope"))
			assert.Error(t, err)
		})
	}
}

func TestDeleteAndMove(t *testing.T) {
	for name, tc := range testFilesystems(t) {
		t.Run(name, func(t *testing.T) {
			src := filepath.Join(tc.root, "a.txt")
			dest := filepath.Join(tc.root, "b.txt")
			require.NoError(t, tc.fs.WriteFile(src, []byte("payload"), 0644))

			require.NoError(t, tc.fs.MoveFile(src, dest))
			exists, _ := tc.fs.Exists(src)
			assert.False(t, exists)

			data, err := tc.fs.ReadFile(dest)
			require.NoError(t, err)
			assert.Equal(t, "payload", string(data))

			require.NoError(t, tc.fs.DeleteFile(dest))
			exists, _ = tc.fs.Exists(dest)
			assert.False(t, exists)

			assert.Error(t, tc.fs.DeleteFile(dest))
		})
	}
}

func TestOpenForWrite(t *testing.T) {
	for name, tc := range testFilesystems(t) {
		t.Run(name, func(t *testing.T) {
			fp := filepath.Join(tc.root, "out.log")
			wr, err := tc.fs.OpenForWrite(fp, 0644)
			require.NoError(t, err)
			_, err = io.WriteString(wr, "hello")
			require.NoError(t, err)
			require.NoError(t, wr.Close())

			data, err := tc.fs.ReadFile(fp)
			require.NoError(t, err)
			assert.Equal(t, "hello", string(data))
		})
	}
}

func TestUnmarshalJSONFile(t *testing.T) {
	fs := NewInMemFS(map[string][]byte{"/data/doc.json": []byte(`{"name":"users","rows":5}`)}, "/data")

	var doc struct {
		Name string `json:"name"`
		Rows int    `json:"rows"`
	}
	require.NoError(t, UnmarshalJSONFile(fs, "doc.json", &doc))
	assert.Equal(t, "users", doc.Name)
	assert.Equal(t, 5, doc.Rows)
}

func TestInMemFSRelativePaths(t *testing.T) {
	fs := EmptyInMemFS("/work")
	require.NoError(t, fs.WriteFile("rel.txt", []byte("x"), 0644))

	abs, err := fs.Abs("rel.txt")
	require.NoError(t, err)
	assert.Equal(t, "/work/rel.txt", abs)

	data, err := fs.ReadFile("/work/rel.txt")
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
}
