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

package slugsync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dolthub/d1-sync/libraries/synccore/config"
	"github.com/dolthub/d1-sync/libraries/synccore/d1"
	"github.com/dolthub/d1-sync/libraries/synccore/sqlite"
	"github.com/dolthub/d1-sync/libraries/synccore/val"
)

func newDB(t *testing.T, name string) *sqlite.Connector {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), name), false, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func slugSettings() *config.Settings {
	return config.DefaultSettings(config.TierFree)
}

// fakeTarget records every statement and optionally rejects one of them.
type fakeTarget struct {
	hasColumn bool
	failExec  int // 1-based call number to reject, 0 for never
	execs     []string
}

func (f *fakeTarget) HasColumn(ctx context.Context, table, column string) (bool, error) {
	return f.hasColumn, nil
}

func (f *fakeTarget) Exec(ctx context.Context, sql string) error {
	f.execs = append(f.execs, sql)
	if f.failExec > 0 && len(f.execs) == f.failExec {
		return errors.New("no such table: articles")
	}
	return nil
}

func TestSlugSyncLocalTarget(t *testing.T) {
	ctx := context.Background()
	src := newDB(t, "src.db")
	dst := newDB(t, "dst.db")

	require.NoError(t, src.ExecuteBatch(ctx, []string{
		`CREATE TABLE articles (id INTEGER PRIMARY KEY, slug TEXT, slug_old TEXT)`,
		`INSERT INTO articles VALUES (1, 'hello-world', 'helloworld')`,
		`INSERT INTO articles VALUES (2, 'second-post', NULL)`,
		`INSERT INTO articles VALUES (3, 'third-entry', 'thirdentry')`,
	}))
	require.NoError(t, dst.ExecuteBatch(ctx, []string{
		`CREATE TABLE articles (id INTEGER PRIMARY KEY, slug TEXT, slug_old TEXT)`,
		`INSERT INTO articles VALUES (1, 'helloworld', NULL)`,
		`INSERT INTO articles VALUES (2, 'second-post', NULL)`,
		`INSERT INTO articles VALUES (3, 'thirdentry', NULL)`,
	}))

	stats, err := New(slugSettings(), nil).Sync(ctx, src, LocalTarget{DB: dst}, "articles")
	require.NoError(t, err)

	assert.Equal(t, int64(2), stats.RowsToSync)
	assert.Equal(t, int64(2), stats.RowsUpdated)
	assert.Equal(t, int64(0), stats.RowsFailed)
	assert.False(t, stats.ColumnAdded)
	assert.False(t, stats.Failed())

	rows, err := dst.Query(ctx, `SELECT slug, slug_old FROM articles ORDER BY id`)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, val.Text("hello-world"), rows[0][0])
	assert.Equal(t, val.Text("helloworld"), rows[0][1])
	assert.Equal(t, val.Text("second-post"), rows[1][0])
	assert.True(t, rows[1][1].IsNull())
	assert.Equal(t, val.Text("third-entry"), rows[2][0])
	assert.Equal(t, val.Text("thirdentry"), rows[2][1])
}

func TestSlugSyncAddsBackupColumn(t *testing.T) {
	ctx := context.Background()
	src := newDB(t, "src.db")
	dst := newDB(t, "dst.db")

	require.NoError(t, src.ExecuteBatch(ctx, []string{
		`CREATE TABLE articles (id INTEGER PRIMARY KEY, slug TEXT, slug_old TEXT)`,
		`INSERT INTO articles VALUES (1, 'fresh-slug', 'stale-slug')`,
	}))
	require.NoError(t, dst.ExecuteBatch(ctx, []string{
		`CREATE TABLE articles (id INTEGER PRIMARY KEY, slug TEXT)`,
		`INSERT INTO articles VALUES (1, 'stale-slug')`,
	}))

	stats, err := New(slugSettings(), nil).Sync(ctx, src, LocalTarget{DB: dst}, "articles")
	require.NoError(t, err)
	assert.True(t, stats.ColumnAdded)
	assert.Equal(t, int64(1), stats.RowsUpdated)
	assert.False(t, stats.Failed())

	cols, err := dst.TableInfo(ctx, "articles")
	require.NoError(t, err)
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	assert.Contains(t, names, BackupColumn)

	rows, err := dst.Query(ctx, `SELECT slug, slug_old FROM articles`)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, val.Text("fresh-slug"), rows[0][0])
	assert.Equal(t, val.Text("stale-slug"), rows[0][1])
}

func TestSlugSyncBatchesUpdates(t *testing.T) {
	ctx := context.Background()
	src := newDB(t, "src.db")

	stmts := []string{`CREATE TABLE articles (id INTEGER PRIMARY KEY, slug TEXT, slug_old TEXT)`}
	for i := 1; i <= 120; i++ {
		stmts = append(stmts, fmt.Sprintf(
			`INSERT INTO articles VALUES (%d, 'post-%d', 'old-%d')`, i, i, i))
	}
	require.NoError(t, src.ExecuteBatch(ctx, stmts))

	target := &fakeTarget{hasColumn: true}
	eng := New(slugSettings(), nil)
	var snaps []Stats
	eng.OnProgress = func(s Stats) { snaps = append(snaps, s) }

	stats, err := eng.Sync(ctx, src, target, "articles")
	require.NoError(t, err)

	assert.Equal(t, int64(120), stats.RowsToSync)
	assert.Equal(t, int64(120), stats.RowsUpdated)

	// Two CASE arms per row, so a full batch shows 100 WHEN clauses.
	require.Len(t, target.execs, 3)
	assert.Equal(t, 100, strings.Count(target.execs[0], "WHEN "))
	assert.Equal(t, 100, strings.Count(target.execs[1], "WHEN "))
	assert.Equal(t, 40, strings.Count(target.execs[2], "WHEN "))
	assert.True(t, strings.HasPrefix(target.execs[0], `UPDATE "articles" SET`))

	require.Len(t, snaps, 3)
	assert.Equal(t, int64(120), snaps[2].RowsUpdated)
}

func TestSlugSyncDryRun(t *testing.T) {
	ctx := context.Background()
	src := newDB(t, "src.db")
	require.NoError(t, src.ExecuteBatch(ctx, []string{
		`CREATE TABLE articles (id INTEGER PRIMARY KEY, slug TEXT, slug_old TEXT)`,
		`INSERT INTO articles VALUES (1, 'a-1', 'b-1')`,
		`INSERT INTO articles VALUES (2, 'a-2', 'b-2')`,
	}))

	cfg := slugSettings()
	cfg.Sync.DryRun = true
	target := &fakeTarget{hasColumn: false}

	stats, err := New(cfg, nil).Sync(ctx, src, target, "articles")
	require.NoError(t, err)

	assert.True(t, stats.ColumnAdded)
	assert.Equal(t, int64(2), stats.RowsUpdated)
	assert.False(t, stats.Failed())
	assert.Empty(t, target.execs)
}

func TestSlugSyncRefusesOnCollision(t *testing.T) {
	ctx := context.Background()
	src := newDB(t, "src.db")
	require.NoError(t, src.ExecuteBatch(ctx, []string{
		`CREATE TABLE articles (id INTEGER PRIMARY KEY, slug TEXT, slug_old TEXT)`,
		`INSERT INTO articles VALUES (1, 'dup', 'old-1')`,
		`INSERT INTO articles VALUES (2, 'dup', 'old-2')`,
		`INSERT INTO articles VALUES (3, 'unique-slug', 'old-3')`,
	}))

	target := &fakeTarget{hasColumn: true}
	stats, err := New(slugSettings(), nil).Sync(ctx, src, target, "articles")
	require.NoError(t, err)

	assert.True(t, stats.Failed())
	assert.Equal(t, int64(0), stats.RowsUpdated)
	require.Len(t, stats.Errors, 1)
	assert.Equal(t, "slug 'dup' is carried by 2 rows", stats.Errors[0])
	assert.Empty(t, target.execs)
}

func TestSlugSyncRecordsFailedBatch(t *testing.T) {
	ctx := context.Background()
	src := newDB(t, "src.db")

	stmts := []string{`CREATE TABLE articles (id INTEGER PRIMARY KEY, slug TEXT, slug_old TEXT)`}
	for i := 1; i <= 60; i++ {
		stmts = append(stmts, fmt.Sprintf(
			`INSERT INTO articles VALUES (%d, 'post-%d', 'old-%d')`, i, i, i))
	}
	require.NoError(t, src.ExecuteBatch(ctx, stmts))

	target := &fakeTarget{hasColumn: true, failExec: 2}
	stats, err := New(slugSettings(), nil).Sync(ctx, src, target, "articles")
	require.NoError(t, err)

	assert.Equal(t, int64(50), stats.RowsUpdated)
	assert.Equal(t, int64(10), stats.RowsFailed)
	assert.True(t, stats.Failed())
	require.Len(t, stats.Errors, 1)
	assert.Contains(t, stats.Errors[0], "batch 2/2")
	assert.Contains(t, stats.Errors[0], "no such table")
}

func TestRemoteTargetHasColumn(t *testing.T) {
	ctx := context.Background()

	var mu sync.Mutex
	var got d1.Statement
	count := int64(1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		_ = json.NewDecoder(r.Body).Decode(&got)
		fmt.Fprintf(w, `{"success":true,"result":[{"results":[{"n":%d}],"success":true,"meta":{}}],"errors":[]}`, count)
	}))
	defer srv.Close()

	target := RemoteTarget{Client: d1.New(d1.Config{
		BaseURL:   srv.URL,
		AccountID: "acct",
		Database:  "dbid",
		Token:     "tok",
	})}

	has, err := target.HasColumn(ctx, "articles", BackupColumn)
	require.NoError(t, err)
	assert.True(t, has)

	mu.Lock()
	assert.Contains(t, got.SQL, "pragma_table_info")
	require.Len(t, got.Params, 2)
	assert.Equal(t, "articles", got.Params[0])
	assert.Equal(t, BackupColumn, got.Params[1])
	mu.Unlock()

	mu.Lock()
	count = 0
	mu.Unlock()

	has, err = target.HasColumn(ctx, "articles", BackupColumn)
	require.NoError(t, err)
	assert.False(t, has)
}
