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
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// ImportResult reports a completed bulk import.
type ImportResult struct {
	Filename    string
	NumQueries  int64
	RowsWritten int64
}

// importResponse is the result shape shared by the init, ingest, and poll
// actions; each action populates the fields it has.
type importResponse struct {
	Filename  string `json:"filename"`
	UploadURL string `json:"upload_url"`
	Status    string `json:"status"`
	Error     string `json:"error"`
	Result    struct {
		NumQueries  int64 `json:"num_queries"`
		RowsWritten int64 `json:"rows_written"`
	} `json:"result"`
}

// ImportSQL pushes a SQL script through the bulk import pipeline: announce
// the payload by checksum, upload the raw bytes, start the ingest, then poll
// every PollInterval until the remote reports complete or failed, or
// ImportMaxWait elapses.
func (c *Client) ImportSQL(ctx context.Context, sqlText string) (*ImportResult, error) {
	u := c.databaseURL("/import")
	payload := []byte(sqlText)
	sum := md5.Sum(payload)
	etag := hex.EncodeToString(sum[:])

	var initRes importResponse
	err := c.doJSON(ctx, http.MethodPost, u, map[string]interface{}{"action": "init", "etag": etag}, &initRes)
	if err != nil {
		return nil, fmt.Errorf("d1: import init: %w", err)
	}
	if initRes.UploadURL == "" {
		return nil, &ImportError{Filename: initRes.Filename, Message: "init returned no upload url"}
	}
	c.lgr.WithFields(logrus.Fields{"filename": initRes.Filename, "bytes": len(payload)}).Debug("import initialized")

	if err := c.upload(ctx, initRes.UploadURL, payload); err != nil {
		return nil, fmt.Errorf("d1: import upload: %w", err)
	}

	var res importResponse
	err = c.doJSON(ctx, http.MethodPost, u,
		map[string]interface{}{"action": "ingest", "etag": etag, "filename": initRes.Filename}, &res)
	if err != nil {
		return nil, fmt.Errorf("d1: import ingest: %w", err)
	}

	deadline := time.Now().Add(c.cfg.ImportMaxWait)
	for {
		switch res.Status {
		case "complete":
			c.lgr.WithFields(logrus.Fields{
				"filename": initRes.Filename,
				"queries":  res.Result.NumQueries,
				"rows":     res.Result.RowsWritten,
			}).Debug("import complete")
			return &ImportResult{
				Filename:    initRes.Filename,
				NumQueries:  res.Result.NumQueries,
				RowsWritten: res.Result.RowsWritten,
			}, nil
		case "failed", "error":
			return nil, &ImportError{Filename: initRes.Filename, Message: res.Error}
		}

		if time.Now().After(deadline) {
			return nil, &ImportError{
				Filename: initRes.Filename,
				Message:  fmt.Sprintf("still %q after %s", res.Status, c.cfg.ImportMaxWait),
				Timeout:  true,
			}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.cfg.PollInterval):
		}

		res = importResponse{}
		err = c.doJSON(ctx, http.MethodPost, u,
			map[string]interface{}{"action": "poll", "filename": initRes.Filename}, &res)
		if err != nil {
			return nil, fmt.Errorf("d1: import poll: %w", err)
		}
	}
}

// upload PUTs the script bytes to the presigned URL from init. The transport
// retry policy applies; the URL is not under the API root and takes no auth
// header.
func (c *Client) upload(ctx context.Context, uploadURL string, data []byte) error {
	return c.withRetry(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(data))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/octet-stream")

		resp, err := c.httpClient().Do(req)
		if err != nil {
			return &TransportError{Err: err}
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)

		if resp.StatusCode/100 == 5 {
			return &TransportError{Err: fmt.Errorf("upload returned %s", resp.Status)}
		}
		if resp.StatusCode/100 != 2 {
			return fmt.Errorf("upload returned %s", resp.Status)
		}
		return nil
	})
}
