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

package state

import (
	"io"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dolthub/d1-sync/libraries/synccore/val"
	"github.com/dolthub/d1-sync/libraries/utils/filesys"
)

// Manager owns the state file for one sync. The orchestrator is the only
// writer; the mutex exists so a display goroutine can snapshot progress
// concurrently.
type Manager struct {
	fs         filesys.Filesys
	path       string
	failedPath string
	lgr        *logrus.Entry

	mu          sync.Mutex
	state       *SyncState
	failedDirty bool
}

func NewManager(fs filesys.Filesys, statePath, failedRowsPath string, lgr *logrus.Entry) *Manager {
	return &Manager{
		fs:         fs,
		path:       statePath,
		failedPath: failedRowsPath,
		lgr:        ensureLogger(lgr).WithField("state", statePath),
	}
}

func ensureLogger(lgr *logrus.Entry) *logrus.Entry {
	if lgr != nil {
		return lgr
	}
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	return logrus.NewEntry(quiet)
}

// Load reads the state file without adopting it. A missing file returns
// nil. A corrupt file is abandoned with a warning and also returns nil;
// state I/O must never take the run down.
func (m *Manager) Load() *SyncState {
	if exists, isDir := m.fs.Exists(m.path); !exists || isDir {
		return nil
	}
	var st SyncState
	if err := filesys.UnmarshalJSONFile(m.fs, m.path, &st); err != nil {
		m.lgr.WithField("cause", err.Error()).Warn("state file unreadable, starting fresh")
		return nil
	}
	if st.Tables == nil {
		st.Tables = map[string]*TableProgress{}
	}
	return &st
}

// GetOrCreate adopts an existing state when it matches this run and is
// resumable, otherwise starts a fresh record. The returned flag reports
// whether an earlier run is being resumed.
//
// An interrupted status resumes the same as in_progress: a canceled run
// would otherwise lose its checkpoint for having shut down cleanly.
func (m *Manager) GetOrCreate(op Operation, source, dest, fingerprint string, resume bool) (*SyncState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if resume {
		if st := m.Load(); st != nil && matches(st, op, source, dest, fingerprint) {
			m.state = st
			m.lgr.WithFields(logrus.Fields{
				"run_id":    st.RunID,
				"processed": st.TotalProcessed,
			}).Info("resuming earlier sync")
			return st.Clone(), true
		}
	}

	now := time.Now().UTC()
	m.state = &SyncState{
		RunID:               uuid.NewString(),
		Operation:           op,
		Source:              source,
		Destination:         dest,
		Status:              SyncInProgress,
		StartedAt:           now,
		UpdatedAt:           now,
		Tables:              map[string]*TableProgress{},
		SettingsFingerprint: fingerprint,
	}
	return m.state.Clone(), false
}

func matches(st *SyncState, op Operation, source, dest, fingerprint string) bool {
	if st.Operation != op || st.Source != source || st.Destination != dest {
		return false
	}
	if st.Status != SyncInProgress && st.Status != SyncInterrupted {
		return false
	}
	return st.SettingsFingerprint == fingerprint
}

// InitTable registers a table. On resume the total is refreshed but earlier
// progress stays.
func (m *Manager) InitTable(name string, totalRows int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tp, ok := m.state.Tables[name]; ok {
		tp.TotalRows = totalRows
		return
	}
	m.state.Tables[name] = &TableProgress{
		Name:      name,
		TotalRows: totalRows,
		Status:    TablePending,
	}
}

// StartTable marks a table in progress. StartedAt is set only on the first
// transition so resumed runs keep the original start time.
func (m *Manager) StartTable(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tp, ok := m.state.Tables[name]
	if !ok {
		return
	}
	tp.Status = TableInProgress
	if tp.StartedAt == nil {
		now := time.Now().UTC()
		tp.StartedAt = &now
	}
	m.touch()
}

// AdvanceTable records absolute progress counts after a batch. LastOffset
// only moves forward.
func (m *Manager) AdvanceTable(name string, processed, failed, lastOffset int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tp, ok := m.state.Tables[name]
	if !ok {
		return
	}
	tp.ProcessedRows = processed
	tp.FailedRows = failed
	if lastOffset > tp.LastOffset {
		tp.LastOffset = lastOffset
	}
	m.state.recomputeAggregates()
	m.touch()
}

func (m *Manager) SetTableChecksum(name, checksum string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tp, ok := m.state.Tables[name]; ok {
		tp.Checksum = checksum
		m.touch()
	}
}

// CompleteTable marks a table done.
func (m *Manager) CompleteTable(name string) {
	m.finishTable(name, TableCompleted)
}

// FailTable marks a table terminally failed for this run.
func (m *Manager) FailTable(name string) {
	m.finishTable(name, TableFailed)
}

func (m *Manager) finishTable(name string, status TableStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tp, ok := m.state.Tables[name]
	if !ok {
		return
	}
	tp.Status = status
	now := time.Now().UTC()
	tp.CompletedAt = &now
	m.state.recomputeAggregates()
	m.touch()
}

// RecordFailedRow stores or refreshes a failed-row record. Records are keyed
// by table and offset; recording the same row again bumps its retry count
// and overwrites the error. Progress counters move through AdvanceTable,
// not here.
func (m *Manager) RecordFailedRow(table string, offset int64, row []val.Value, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failedDirty = true
	now := time.Now().UTC()
	for _, fr := range m.state.FailedRows {
		if fr.Table == table && fr.Offset == offset {
			fr.RetryCount++
			fr.Error = errMsg
			fr.Timestamp = now
			fr.RowData = row
			m.touch()
			return
		}
	}
	m.state.FailedRows = append(m.state.FailedRows, &FailedRow{
		Table:     table,
		Offset:    offset,
		RowData:   row,
		Error:     errMsg,
		Timestamp: now,
	})
	m.touch()
}

// ResolveFailedRow removes a failed-row record after a successful retry and
// moves the row from the failed to the processed count.
func (m *Manager) ResolveFailedRow(table string, offset int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, fr := range m.state.FailedRows {
		if fr.Table == table && fr.Offset == offset {
			m.state.FailedRows = append(m.state.FailedRows[:i], m.state.FailedRows[i+1:]...)
			m.failedDirty = true
			break
		}
	}
	if tp, ok := m.state.Tables[table]; ok {
		if tp.FailedRows > 0 {
			tp.FailedRows--
		}
		tp.ProcessedRows++
		m.state.recomputeAggregates()
	}
	m.touch()
}

// FailedRowsFor returns copies of the failed-row records for one table.
func (m *Manager) FailedRowsFor(table string) []*FailedRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*FailedRow
	for _, fr := range m.state.FailedRows {
		if fr.Table == table {
			cp := *fr
			cp.RowData = append([]val.Value(nil), fr.RowData...)
			out = append(out, &cp)
		}
	}
	return out
}

// TableProgress returns a copy of one table's progress, or nil when the
// table is unknown.
func (m *Manager) TableProgress(name string) *TableProgress {
	m.mu.Lock()
	defer m.mu.Unlock()
	tp, ok := m.state.Tables[name]
	if !ok {
		return nil
	}
	cp := *tp
	return &cp
}

// ResumeOffset returns where to restart a table: its last acknowledged
// offset when it was mid-flight or failed, zero otherwise.
func (m *Manager) ResumeOffset(table string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	tp, ok := m.state.Tables[table]
	if !ok {
		return 0
	}
	if tp.Status == TableInProgress || tp.Status == TableFailed {
		return tp.LastOffset
	}
	return 0
}

// ShouldProcess reports whether a table still needs work.
func (m *Manager) ShouldProcess(table string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	tp, ok := m.state.Tables[table]
	if !ok {
		return true
	}
	return tp.Status != TableCompleted
}

// MarkSync sets the run's terminal (or interrupted) status.
func (m *Manager) MarkSync(status SyncStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Status = status
	m.touch()
}

// touch refreshes UpdatedAt. Callers hold the lock.
func (m *Manager) touch() {
	m.state.UpdatedAt = time.Now().UTC()
}

// Save persists the state atomically, and rewrites the failed-rows sidecar
// when its contents changed since the last save.
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return nil
	}

	data, err := json.MarshalIndent(m.state, "", "  ")
	if err != nil {
		return err
	}
	if err := m.fs.WriteFile(m.path, data, 0644); err != nil {
		return err
	}

	if m.failedDirty {
		rows, err := json.MarshalIndent(m.state.FailedRows, "", "  ")
		if err != nil {
			return err
		}
		if err := m.fs.WriteFile(m.failedPath, rows, 0644); err != nil {
			return err
		}
		m.failedDirty = false
	}
	return nil
}

// Clear deletes the state and sidecar files and drops the in-memory record.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = nil
	m.failedDirty = false
	for _, p := range []string{m.path, m.failedPath} {
		if exists, isDir := m.fs.Exists(p); exists && !isDir {
			if err := m.fs.DeleteFile(p); err != nil {
				return err
			}
		}
	}
	return nil
}

// State returns a deep copy of the current record, or nil before
// GetOrCreate.
func (m *Manager) State() *SyncState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return nil
	}
	return m.state.Clone()
}
