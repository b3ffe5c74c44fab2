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

package commands

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dolthub/d1-sync/libraries/synccore/state"
	"github.com/dolthub/d1-sync/libraries/utils/filesys"
)

func discardEntry() *logrus.Entry {
	root := logrus.New()
	root.SetOutput(io.Discard)
	return logrus.NewEntry(root)
}

func TestStatusNoState(t *testing.T) {
	cliCtx := testContext(t, nil, nil, nil)

	stdout, _, restore := captureOutput(t)
	defer restore()

	status := StatusCmd{}.Exec(context.Background(), "d1-sync status", []string{"--db", "/data/app.db"}, cliCtx)
	assert.Equal(t, 0, status)
	assert.Contains(t, stdout.String(), "No sync state found. Run a push or pull operation first.")
}

func TestStatusShowsCheckpoint(t *testing.T) {
	fs := filesys.EmptyInMemFS("/work")

	mgr := state.NewManager(fs, "/data/.d1-sync-state.json", "/data/failed_rows.json", discardEntry())
	_, resumed := mgr.GetOrCreate(state.OpPush, "/data/app.db", "remote-db", "fp", false)
	require.False(t, resumed)
	mgr.InitTable("users", 2500)
	mgr.StartTable("users")
	mgr.AdvanceTable("users", 2500, 0, 2500)
	mgr.CompleteTable("users")
	mgr.InitTable("posts", 100)
	mgr.StartTable("posts")
	mgr.AdvanceTable("posts", 60, 2, 60)
	mgr.MarkSync(state.SyncInterrupted)
	require.NoError(t, mgr.Save())

	cliCtx := testContext(t, fs, nil, nil)
	stdout, stderr, restore := captureOutput(t)
	defer restore()

	status := StatusCmd{}.Exec(context.Background(), "d1-sync status", []string{"--db", "/data/app.db"}, cliCtx)
	require.Equal(t, 0, status, stderr.String())

	out := stdout.String()
	assert.Contains(t, out, "Last sync: push (interrupted)")
	assert.Contains(t, out, "source:      /data/app.db")
	assert.Contains(t, out, "destination: remote-db")
	assert.Contains(t, out, "2,560 rows processed, 2 failed")
	assert.Contains(t, out, "users")
	assert.Contains(t, out, "2,500")
	assert.Contains(t, out, "2 failed")
}

func TestStatusClear(t *testing.T) {
	fs := filesys.NewInMemFS(map[string][]byte{
		"/data/.d1-sync-state.json": []byte("{}"),
		"/data/failed_rows.json":    []byte("[]"),
	}, "/work")
	cliCtx := testContext(t, fs, nil, nil)

	stdout, _, restore := captureOutput(t)
	defer restore()

	status := StatusCmd{}.Exec(context.Background(), "d1-sync status", []string{"--db", "/data/app.db", "--clear"}, cliCtx)
	require.Equal(t, 0, status)
	assert.Contains(t, stdout.String(), "Sync state cleared.")

	exists, _ := fs.Exists("/data/.d1-sync-state.json")
	assert.False(t, exists)
	exists, _ = fs.Exists("/data/failed_rows.json")
	assert.False(t, exists)
}

func TestPrintSyncStateRendering(t *testing.T) {
	started := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	completed := started.Add(90 * time.Second)

	st := &state.SyncState{
		RunID:          "run-42",
		Operation:      state.OpPush,
		Source:         "app.db",
		Destination:    "d1-prod",
		Status:         state.SyncCompleted,
		StartedAt:      started,
		UpdatedAt:      completed,
		TotalProcessed: 1234,
		TotalFailed:    1,
		Tables: map[string]*state.TableProgress{
			"users": {
				Name:          "users",
				TotalRows:     1234,
				ProcessedRows: 1234,
				FailedRows:    1,
				Status:        state.TableCompleted,
			},
		},
		FailedRows: []*state.FailedRow{
			{Table: "users", Offset: 10, Error: "constraint violation"},
		},
	}

	stdout, _, restore := captureOutput(t)
	defer restore()

	printSyncState(st, "/data/failed_rows.json")

	out := stdout.String()
	assert.Contains(t, out, "Last sync: push (completed)")
	assert.Contains(t, out, "run id:      run-42")
	assert.Contains(t, out, "destination: d1-prod")
	assert.Contains(t, out, "1,234 rows processed, 1 failed")
	assert.Contains(t, out, "Table progress:")
	assert.Contains(t, out, "1 failed")
	assert.Contains(t, out, "Failed rows: 1 recorded (/data/failed_rows.json)")
}
