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

// Package d1 is the HTTP client for the remote edge database API: statement
// execution with retry and rate-limit handling, metadata queries, and the
// init/upload/ingest/poll bulk import pipeline.
package d1

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"github.com/dolthub/d1-sync/libraries/synccore/chunker"
	"github.com/dolthub/d1-sync/libraries/synccore/schema"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://api.cloudflare.com/client/v4"

// HTTPFetcher abstracts the HTTP client so tests can substitute transports.
type HTTPFetcher interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config carries the connection settings for one remote database. Zero
// fields get working defaults from New.
type Config struct {
	BaseURL   string
	AccountID string
	Database  string // database id or name
	Token     string

	MaxRetries        int           // total HTTP attempts per call
	RetryDelay        time.Duration // transport backoff base, scaled by attempt
	DefaultRetryAfter time.Duration // used when a 429 omits Retry-After
	PollInterval      time.Duration
	ImportMaxWait     time.Duration
	ConnectTimeout    time.Duration
	ReadTimeout       time.Duration

	Fetcher HTTPFetcher   // optional transport override
	Logger  *logrus.Entry // nil silences the client
}

// Client talks to one remote database. Safe for concurrent use; the
// underlying HTTP client is built lazily on first request.
type Client struct {
	cfg Config
	lgr *logrus.Entry

	mu      sync.Mutex
	fetcher HTTPFetcher
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.DefaultRetryAfter <= 0 {
		cfg.DefaultRetryAfter = 60 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.ImportMaxWait <= 0 {
		cfg.ImportMaxWait = 300 * time.Second
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 40 * time.Second
	}
	return &Client{cfg: cfg, lgr: ensureLogger(cfg.Logger), fetcher: cfg.Fetcher}
}

func ensureLogger(lgr *logrus.Entry) *logrus.Entry {
	if lgr != nil {
		return lgr
	}
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	return logrus.NewEntry(quiet)
}

func (c *Client) httpClient() HTTPFetcher {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fetcher == nil {
		c.fetcher = &http.Client{
			Timeout: c.cfg.ReadTimeout,
			Transport: &http.Transport{
				DialContext:       (&net.Dialer{Timeout: c.cfg.ConnectTimeout}).DialContext,
				ForceAttemptHTTP2: true,
			},
		}
	}
	return c.fetcher
}

// Close releases idle connections held by the underlying HTTP client.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if hc, ok := c.fetcher.(*http.Client); ok {
		hc.CloseIdleConnections()
	}
}

func (c *Client) databaseURL(suffix string) string {
	return c.cfg.BaseURL + "/accounts/" + url.PathEscape(c.cfg.AccountID) +
		"/d1/database/" + url.PathEscape(c.cfg.Database) + suffix
}

// Statement is one SQL statement with optional numbered parameters bound as
// ?1, ?2, and so on.
type Statement struct {
	SQL    string        `json:"sql"`
	Params []interface{} `json:"params,omitempty"`
}

// QueryMeta is the per-statement execution metadata the remote reports.
type QueryMeta struct {
	Duration    float64 `json:"duration"`
	Changes     int64   `json:"changes"`
	LastRowID   int64   `json:"last_row_id"`
	RowsRead    int64   `json:"rows_read"`
	RowsWritten int64   `json:"rows_written"`
	SizeAfter   int64   `json:"size_after"`
}

// QueryResult is one statement's outcome.
type QueryResult struct {
	Results []map[string]interface{} `json:"results"`
	Success bool                     `json:"success"`
	Meta    QueryMeta                `json:"meta"`
}

type envelope struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Errors  []errorDetail   `json:"errors"`
}

type errorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// serverDirected is a backoff whose next delay the retry loop sets from the
// server's Retry-After or the transport policy before returning the error.
type serverDirected struct {
	next time.Duration
}

func (b *serverDirected) NextBackOff() time.Duration { return b.next }
func (b *serverDirected) Reset()                     {}

// withRetry runs op under the client's retry policy. Rate limits wait out
// the server's suggested delay and transport failures back off linearly,
// both up to MaxRetries total attempts; semantic failures return at once.
func (c *Client) withRetry(ctx context.Context, op func(ctx context.Context) error) error {
	attempt := 0
	bo := &serverDirected{}
	wrapped := func() error {
		attempt++
		err := op(ctx)
		if err == nil {
			return nil
		}

		var rle *RateLimitError
		var te *TransportError
		switch {
		case errors.As(err, &rle):
			if attempt >= c.cfg.MaxRetries {
				return backoff.Permanent(err)
			}
			bo.next = rle.RetryAfter
			c.lgr.WithFields(logrus.Fields{"attempt": attempt, "delay": bo.next.String()}).
				Warn("rate limited by remote, waiting")
			return err
		case errors.As(err, &te):
			if attempt >= c.cfg.MaxRetries {
				return backoff.Permanent(err)
			}
			bo.next = c.cfg.RetryDelay * time.Duration(attempt)
			c.lgr.WithFields(logrus.Fields{"attempt": attempt, "delay": bo.next.String(), "cause": te.Err.Error()}).
				Warn("transport error, retrying")
			return err
		default:
			return backoff.Permanent(err)
		}
	}
	return backoff.Retry(wrapped, backoff.WithContext(bo, ctx))
}

// doJSON runs one API call under the retry policy, decoding the result
// portion of the response envelope into out when out is non-nil.
func (c *Client) doJSON(ctx context.Context, method, u string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("d1: encoding request: %w", err)
		}
	}
	return c.withRetry(ctx, func(ctx context.Context) error {
		return c.attempt(ctx, method, u, payload, out)
	})
}

func (c *Client) attempt(ctx context.Context, method, u string, payload []byte, out interface{}) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &RateLimitError{RetryAfter: retryAfter(resp.Header.Get("Retry-After"), c.cfg.DefaultRetryAfter)}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Err: err}
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)
	if decodeErr == nil && !env.Success && len(env.Errors) > 0 {
		return classifyAPIError(env.Errors[0].Code, env.Errors[0].Message)
	}
	if resp.StatusCode/100 == 5 {
		return &TransportError{Err: fmt.Errorf("server returned %s", resp.Status)}
	}
	if resp.StatusCode/100 != 2 {
		return &APIError{Code: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}
	if decodeErr != nil {
		return fmt.Errorf("d1: decoding response: %w", decodeErr)
	}
	if !env.Success {
		return &APIError{Message: "request failed with no error detail"}
	}
	if out != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("d1: decoding result: %w", err)
		}
	}
	return nil
}

// retryAfter parses a Retry-After header given in seconds.
func retryAfter(h string, fallback time.Duration) time.Duration {
	if h == "" {
		return fallback
	}
	secs, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil || secs < 0 {
		return fallback
	}
	return time.Duration(secs) * time.Second
}

// Query executes one statement and returns its result.
func (c *Client) Query(ctx context.Context, sql string, params ...interface{}) (*QueryResult, error) {
	var results []QueryResult
	st := Statement{SQL: sql, Params: params}
	if err := c.doJSON(ctx, http.MethodPost, c.databaseURL("/query"), st, &results); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, &APIError{Message: "empty result for statement"}
	}
	return &results[0], nil
}

// QueryBatch executes the statements in one HTTP call. Results come back in
// statement order.
func (c *Client) QueryBatch(ctx context.Context, stmts []Statement) ([]QueryResult, error) {
	if len(stmts) == 0 {
		return nil, nil
	}
	var results []QueryResult
	if err := c.doJSON(ctx, http.MethodPost, c.databaseURL("/query"), stmts, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// Exec executes one statement for its side effects.
func (c *Client) Exec(ctx context.Context, sql string) (QueryMeta, error) {
	res, err := c.Query(ctx, sql)
	if err != nil {
		return QueryMeta{}, err
	}
	return res.Meta, nil
}

// Tables lists the user tables present remotely, alphabetically.
func (c *Client) Tables(ctx context.Context) ([]string, error) {
	res, err := c.Query(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name`)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, row := range res.Results {
		if name, ok := row["name"].(string); ok && !schema.IsInternalTable(name) {
			names = append(names, name)
		}
	}
	return names, nil
}

// TableCount returns the remote row count for one table.
func (c *Client) TableCount(ctx context.Context, table string) (int64, error) {
	res, err := c.Query(ctx, `SELECT COUNT(*) AS n FROM `+chunker.QuoteIdent(table))
	if err != nil {
		return 0, err
	}
	if len(res.Results) == 0 {
		return 0, &APIError{Message: "count query returned no rows"}
	}
	return asInt64(res.Results[0]["n"]), nil
}

// CreateStatement fetches a remote table's CREATE TABLE text.
func (c *Client) CreateStatement(ctx context.Context, table string) (string, error) {
	res, err := c.Query(ctx, `SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?1`, table)
	if err != nil {
		return "", err
	}
	if len(res.Results) == 0 {
		return "", &APIError{Message: "no such remote table " + table}
	}
	s, _ := res.Results[0]["sql"].(string)
	return s, nil
}

// DatabaseInfo is the remote database's metadata record.
type DatabaseInfo struct {
	UUID      string `json:"uuid"`
	Name      string `json:"name"`
	Version   string `json:"version"`
	NumTables int    `json:"num_tables"`
	FileSize  int64  `json:"file_size"`
	CreatedAt string `json:"created_at"`
}

// GetDatabaseInfo fetches the remote database's metadata.
func (c *Client) GetDatabaseInfo(ctx context.Context) (*DatabaseInfo, error) {
	var info DatabaseInfo
	if err := c.doJSON(ctx, http.MethodGet, c.databaseURL(""), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func asInt64(x interface{}) int64 {
	switch t := x.(type) {
	case float64:
		return int64(t)
	case int64:
		return t
	case json.Number:
		n, _ := t.Int64()
		return n
	case string:
		n, _ := strconv.ParseInt(t, 10, 64)
		return n
	}
	return 0
}
