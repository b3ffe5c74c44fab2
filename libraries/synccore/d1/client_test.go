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
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dolthub/d1-sync/libraries/synccore/val"
)

const queryPath = "/accounts/acct/d1/database/dbid/query"

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := New(Config{
		BaseURL:    srv.URL,
		AccountID:  "acct",
		Database:   "dbid",
		Token:      "tok",
		RetryDelay: time.Millisecond,
	})
	t.Cleanup(c.Close)
	return c
}

func writeResult(w http.ResponseWriter, result string) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"success":true,"result":%s,"errors":[]}`, result)
}

func TestQuery(t *testing.T) {
	var gotAuth, gotPath string
	var gotStmt Statement
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotStmt))
		writeResult(w, `[{"results":[{"id":1,"name":"Alice"}],"success":true,"meta":{"rows_read":1,"rows_written":0,"duration":0.25}}]`)
	}))

	res, err := c.Query(context.Background(), `SELECT id, name FROM users WHERE id = ?1`, 1)
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, queryPath, gotPath)
	assert.Equal(t, `SELECT id, name FROM users WHERE id = ?1`, gotStmt.SQL)
	assert.Equal(t, []interface{}{float64(1)}, gotStmt.Params)

	require.Len(t, res.Results, 1)
	assert.Equal(t, "Alice", res.Results[0]["name"])
	assert.Equal(t, int64(1), res.Meta.RowsRead)
	assert.Equal(t, 0.25, res.Meta.Duration)
}

func TestQueryEmptyResult(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, `[]`)
	}))
	_, err := c.Query(context.Background(), `SELECT 1`)
	require.Error(t, err)
	var apiErr *APIError
	assert.ErrorAs(t, err, &apiErr)
}

func TestQueryBatch(t *testing.T) {
	var gotStmts []Statement
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotStmts))
		writeResult(w, `[
			{"results":[],"success":true,"meta":{"rows_written":2}},
			{"results":[],"success":true,"meta":{"rows_written":3}}
		]`)
	}))

	results, err := c.QueryBatch(context.Background(), []Statement{
		{SQL: `INSERT INTO t VALUES (1)`},
		{SQL: `INSERT INTO t VALUES (2)`},
	})
	require.NoError(t, err)

	require.Len(t, gotStmts, 2)
	require.Len(t, results, 2)
	assert.Equal(t, int64(2), results[0].Meta.RowsWritten)
	assert.Equal(t, int64(3), results[1].Meta.RowsWritten)

	empty, err := c.QueryBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

// A 429 with Retry-After: 1 followed by a success must produce exactly one
// sleep of about a second and a completed call on the second attempt.
func TestRetryHonorsRetryAfter(t *testing.T) {
	var attempts atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeResult(w, `[{"results":[],"success":true,"meta":{"rows_written":1}}]`)
	}))

	start := time.Now()
	_, err := c.Exec(context.Background(), `INSERT INTO t VALUES (1)`)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, int32(2), attempts.Load())
	assert.GreaterOrEqual(t, elapsed, 900*time.Millisecond)
	assert.Less(t, elapsed, 3*time.Second)
}

// Two 429s then a success completes in exactly three HTTP attempts.
func TestRetryTwiceThenSuccess(t *testing.T) {
	var attempts atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeResult(w, `[{"results":[],"success":true,"meta":{}}]`)
	}))

	_, err := c.Exec(context.Background(), `INSERT INTO t VALUES (1)`)
	require.NoError(t, err)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestRateLimitExhausted(t *testing.T) {
	var attempts atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := c.Exec(context.Background(), `INSERT INTO t VALUES (1)`)
	require.Error(t, err)
	var rle *RateLimitError
	assert.ErrorAs(t, err, &rle)
	assert.Equal(t, int32(3), attempts.Load())
}

// A 500 with no usable body is treated like a transport failure and retried.
func TestServerErrorRetried(t *testing.T) {
	var attempts atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeResult(w, `[{"results":[],"success":true,"meta":{}}]`)
	}))

	_, err := c.Exec(context.Background(), `INSERT INTO t VALUES (1)`)
	require.NoError(t, err)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestTransportErrorExhausted(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	u := srv.URL
	srv.Close()

	c := New(Config{BaseURL: u, AccountID: "acct", Database: "dbid", Token: "tok", RetryDelay: time.Millisecond})
	_, err := c.Exec(context.Background(), `SELECT 1`)
	require.Error(t, err)
	var te *TransportError
	assert.ErrorAs(t, err, &te)
}

// A semantic failure inside a 2xx envelope must not be retried.
func TestSemanticFailureNotRetried(t *testing.T) {
	var attempts atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success":false,"result":null,"errors":[{"code":7500,"message":"no such table: zz"}]}`)
	}))

	_, err := c.Exec(context.Background(), `SELECT * FROM zz`)
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 7500, apiErr.Code)
	assert.Contains(t, apiErr.Message, "no such table")
	assert.Equal(t, int32(1), attempts.Load())
}

func TestClassifyAPIError(t *testing.T) {
	err := classifyAPIError(7500, "Statement too long")
	var tooLarge *StatementTooLargeError
	assert.ErrorAs(t, err, &tooLarge)

	err = classifyAPIError(7500, "query timed out")
	var timeout *QueryTimeoutError
	assert.ErrorAs(t, err, &timeout)

	err = classifyAPIError(7000, "anything else")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 7000, apiErr.Code)
}

func TestRetryAfterParse(t *testing.T) {
	fallback := 60 * time.Second
	assert.Equal(t, fallback, retryAfter("", fallback))
	assert.Equal(t, 5*time.Second, retryAfter("5", fallback))
	assert.Equal(t, 5*time.Second, retryAfter(" 5 ", fallback))
	assert.Equal(t, fallback, retryAfter("soon", fallback))
	assert.Equal(t, fallback, retryAfter("-3", fallback))
}

func TestTables(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, `[{"results":[
			{"name":"_cf_KV"},
			{"name":"orders"},
			{"name":"sqlite_sequence"},
			{"name":"users"}
		],"success":true,"meta":{}}]`)
	}))

	tables, err := c.Tables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"orders", "users"}, tables)
}

func TestTableCount(t *testing.T) {
	var gotStmt Statement
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotStmt))
		writeResult(w, `[{"results":[{"n":42}],"success":true,"meta":{}}]`)
	}))

	n, err := c.TableCount(context.Background(), "users")
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	assert.Equal(t, `SELECT COUNT(*) AS n FROM "users"`, gotStmt.SQL)
}

func TestCreateStatement(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, `[{"results":[{"sql":"CREATE TABLE users (id INTEGER PRIMARY KEY)"}],"success":true,"meta":{}}]`)
	}))

	createSQL, err := c.CreateStatement(context.Background(), "users")
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE users (id INTEGER PRIMARY KEY)", createSQL)
}

func TestGetDatabaseInfo(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/accounts/acct/d1/database/dbid", r.URL.Path)
		writeResult(w, `{"uuid":"abc-123","name":"mydb","version":"production","num_tables":3,"file_size":12288}`)
	}))

	info, err := c.GetDatabaseInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc-123", info.UUID)
	assert.Equal(t, "mydb", info.Name)
	assert.Equal(t, 3, info.NumTables)
	assert.Equal(t, int64(12288), info.FileSize)
}

func TestInsertRowsPacksByParamBudget(t *testing.T) {
	var stmts []Statement
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var st Statement
		require.NoError(t, json.NewDecoder(r.Body).Decode(&st))
		stmts = append(stmts, st)
		writeResult(w, `[{"results":[],"success":true,"meta":{"rows_written":1}}]`)
	}))

	rows := [][]val.Value{
		{val.Int(1), val.Text("a")},
		{val.Int(2), val.Text("b")},
		{val.Int(3), val.Text("c")},
		{val.Int(4), val.Text("d")},
		{val.Int(5), val.Text("e")},
	}
	// Two columns under a four-parameter budget packs two rows per statement.
	n, err := c.InsertRows(context.Background(), "t", []string{"id", "v"}, rows, true, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	require.Len(t, stmts, 3)
	assert.Equal(t, `INSERT OR REPLACE INTO "t" ("id", "v") VALUES (?1, ?2), (?3, ?4)`, stmts[0].SQL)
	assert.Equal(t, []interface{}{float64(1), "a", float64(2), "b"}, stmts[0].Params)
	assert.Equal(t, []interface{}{float64(3), "c", float64(4), "d"}, stmts[1].Params)
	assert.Equal(t, `INSERT OR REPLACE INTO "t" ("id", "v") VALUES (?1, ?2)`, stmts[2].SQL)
	assert.Equal(t, []interface{}{float64(5), "e"}, stmts[2].Params)
}

func TestInsertRowsBlobGoesLiteral(t *testing.T) {
	var gotStmt Statement
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotStmt))
		writeResult(w, `[{"results":[],"success":true,"meta":{"rows_written":1}}]`)
	}))

	rows := [][]val.Value{{val.Int(1), val.Blob([]byte{0xde, 0xad, 0xbe, 0xef})}}
	n, err := c.InsertRows(context.Background(), "t", []string{"id", "data"}, rows, false, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.Equal(t, `INSERT OR IGNORE INTO "t" ("id", "data") VALUES (1, X'deadbeef')`, gotStmt.SQL)
	assert.Empty(t, gotStmt.Params)
}

func TestSelectPage(t *testing.T) {
	var gotStmt Statement
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotStmt))
		writeResult(w, `[{"results":[
			{"id":1,"name":"Alice","data":[222,173]},
			{"id":2,"name":null,"data":null}
		],"success":true,"meta":{"rows_read":2}}]`)
	}))

	rows, err := c.SelectPage(context.Background(), "users", []string{"id", "name", "data"}, 100, 0)
	require.NoError(t, err)

	assert.Equal(t, `SELECT "id", "name", "data" FROM "users" LIMIT ?1 OFFSET ?2`, gotStmt.SQL)
	assert.Equal(t, []interface{}{float64(100), float64(0)}, gotStmt.Params)

	require.Len(t, rows, 2)
	assert.Equal(t, val.Int(1), rows[0][0])
	assert.Equal(t, val.Text("Alice"), rows[0][1])
	assert.Equal(t, val.Blob([]byte{0xde, 0xad}), rows[0][2])
	assert.True(t, rows[1][1].IsNull())
	assert.True(t, rows[1][2].IsNull())
}
