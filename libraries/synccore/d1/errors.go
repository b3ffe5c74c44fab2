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
	"fmt"
	"strings"
	"time"
)

// RateLimitError is an HTTP 429 that survived the retry budget. RetryAfter
// carries the server's suggested delay so callers can report it.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("d1: rate limited, retry after %s", e.RetryAfter)
}

// TransportError is a network-level failure (dial, TLS, reset) that
// survived the retry budget.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "d1: transport: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatementTooLargeError means the remote judged a statement over its size
// cap. The chunker should prevent these; one arriving anyway points at a
// margin misconfiguration.
type StatementTooLargeError struct {
	Message string
}

func (e *StatementTooLargeError) Error() string {
	return "d1: statement too large: " + e.Message
}

// QueryTimeoutError means a statement exceeded the remote's execution
// budget.
type QueryTimeoutError struct {
	Message string
}

func (e *QueryTimeoutError) Error() string {
	return "d1: query timeout: " + e.Message
}

// APIError is any other success=false response, carrying the server's own
// error code.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("d1: api error %d: %s", e.Code, e.Message)
	}
	return "d1: api error: " + e.Message
}

// ImportError is a bulk import that the remote reported failed, or that
// outlived the polling budget.
type ImportError struct {
	Filename string
	Message  string
	Timeout  bool
}

func (e *ImportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("d1: import %s timed out: %s", e.Filename, e.Message)
	}
	return fmt.Sprintf("d1: import %s failed: %s", e.Filename, e.Message)
}

// classifyAPIError maps a success=false response to the narrowest error the
// first server message admits.
func classifyAPIError(code int, msg string) error {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "statement too long") || strings.Contains(lower, "too large"):
		return &StatementTooLargeError{Message: msg}
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "timed out"):
		return &QueryTimeoutError{Message: msg}
	default:
		return &APIError{Code: code, Message: msg}
	}
}
