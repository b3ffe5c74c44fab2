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

// Package state persists sync progress so an interrupted run can resume.
// One JSON document tracks the whole sync; a sidecar file mirrors failed
// rows for operator inspection. Every save is atomic.
package state

import (
	"time"

	"github.com/dolthub/d1-sync/libraries/synccore/val"
)

// Operation is the direction of a sync.
type Operation string

const (
	OpPush Operation = "push"
	OpPull Operation = "pull"
)

// SyncStatus is the overall state of a run.
type SyncStatus string

const (
	SyncInProgress  SyncStatus = "in_progress"
	SyncCompleted   SyncStatus = "completed"
	SyncFailed      SyncStatus = "failed"
	SyncInterrupted SyncStatus = "interrupted"
)

// TableStatus is the state of one table within a run.
type TableStatus string

const (
	TablePending    TableStatus = "pending"
	TableInProgress TableStatus = "in_progress"
	TableCompleted  TableStatus = "completed"
	TableFailed     TableStatus = "failed"
)

// TableProgress tracks one table. LastOffset is the exclusive upper bound of
// rows acknowledged by the remote; it never decreases within a run.
type TableProgress struct {
	Name          string      `json:"name"`
	TotalRows     int64       `json:"total_rows"`
	ProcessedRows int64       `json:"processed_rows"`
	FailedRows    int64       `json:"failed_rows"`
	LastOffset    int64       `json:"last_offset"`
	Checksum      string      `json:"checksum,omitempty"`
	Status        TableStatus `json:"status"`
	StartedAt     *time.Time  `json:"started_at,omitempty"`
	CompletedAt   *time.Time  `json:"completed_at,omitempty"`
}

// FailedRow records one row the remote never acknowledged, keyed by table
// and offset.
type FailedRow struct {
	Table      string      `json:"table"`
	Offset     int64       `json:"offset"`
	RowData    []val.Value `json:"row_data,omitempty"`
	Error      string      `json:"error"`
	Timestamp  time.Time   `json:"timestamp"`
	RetryCount int         `json:"retry_count"`
}

// SyncState is the persisted record of one sync between a source and a
// destination.
type SyncState struct {
	RunID       string     `json:"run_id"`
	Operation   Operation  `json:"operation"`
	Source      string     `json:"source"`
	Destination string     `json:"destination"`
	Status      SyncStatus `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Tables     map[string]*TableProgress `json:"tables"`
	FailedRows []*FailedRow              `json:"failed_rows,omitempty"`

	TotalProcessed int64 `json:"total_processed"`
	TotalFailed    int64 `json:"total_failed"`

	// SettingsFingerprint invalidates resume when a setting that changes
	// sync semantics differs from the interrupted run.
	SettingsFingerprint string `json:"settings_fingerprint"`
}

// Clone returns a deep copy safe to hand outside the manager's lock.
func (s *SyncState) Clone() *SyncState {
	cp := *s
	cp.Tables = make(map[string]*TableProgress, len(s.Tables))
	for name, tp := range s.Tables {
		tpCopy := *tp
		cp.Tables[name] = &tpCopy
	}
	cp.FailedRows = make([]*FailedRow, len(s.FailedRows))
	for i, fr := range s.FailedRows {
		frCopy := *fr
		frCopy.RowData = append([]val.Value(nil), fr.RowData...)
		cp.FailedRows[i] = &frCopy
	}
	return &cp
}

// recomputeAggregates refreshes the rollup counters from per-table progress.
func (s *SyncState) recomputeAggregates() {
	var processed, failed int64
	for _, tp := range s.Tables {
		processed += tp.ProcessedRows
		failed += tp.FailedRows
	}
	s.TotalProcessed = processed
	s.TotalFailed = failed
}
