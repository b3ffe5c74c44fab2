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

// Package engine drives a sync run end to end: it plans the table list,
// streams row batches from the source, packs them into statements, dispatches
// those to the remote, checkpoints progress after every batch, and aggregates
// run statistics.
//
// One Engine handles one run. Progress is exposed as pull-style snapshots
// through Stats; a display goroutine polls it on a ticker while Push or Pull
// runs on the caller's goroutine.
package engine

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dolthub/d1-sync/libraries/synccore/chunker"
	"github.com/dolthub/d1-sync/libraries/synccore/config"
	"github.com/dolthub/d1-sync/libraries/synccore/d1"
	"github.com/dolthub/d1-sync/libraries/synccore/integrity"
	"github.com/dolthub/d1-sync/libraries/synccore/state"
	"github.com/dolthub/d1-sync/libraries/utils/filesys"
	"github.com/dolthub/d1-sync/libraries/utils/set"
)

// Stats is a point-in-time snapshot of a run. Duration keeps counting while
// the run is live and freezes at its terminal value.
type Stats struct {
	Operation     state.Operation  `json:"operation"`
	Status        state.SyncStatus `json:"status"`
	StartedAt     time.Time        `json:"started_at"`
	Duration      time.Duration    `json:"duration"`
	TablesTotal   int              `json:"tables_total"`
	TablesDone    int              `json:"tables_done"`
	CurrentTable  string           `json:"current_table,omitempty"`
	RowsTotal     int64            `json:"rows_total"`
	RowsProcessed int64            `json:"rows_processed"`
	RowsFailed    int64            `json:"rows_failed"`
	ChunksSent    int64            `json:"chunks_sent"`
	BytesSent     int64            `json:"bytes_sent"`
	Errors        []string         `json:"errors,omitempty"`
}

// RowsPerSecond is the processed-row rate over the run so far.
func (s Stats) RowsPerSecond() float64 {
	secs := s.Duration.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(s.RowsProcessed) / secs
}

// Failed reports whether the run should exit nonzero: any failed row or any
// recorded error, verification mismatches included.
func (s Stats) Failed() bool {
	return s.RowsFailed > 0 || len(s.Errors) > 0
}

// Engine owns one sync run's collaborators. The source database handle is
// opened by Push or Pull and closed before they return; everything else
// lives for the Engine's lifetime.
type Engine struct {
	settings *config.Settings
	fs       filesys.Filesys
	remote   *d1.Client
	states   *state.Manager
	chunks   *chunker.Chunker
	checker  *integrity.Checker
	lgr      *logrus.Entry

	mu        sync.Mutex
	stats     Stats
	capWarned bool
}

// New builds an engine from validated settings. No connection is made until
// the first remote call.
func New(settings *config.Settings, fs filesys.Filesys, lgr *logrus.Entry) (*Engine, error) {
	lgr = ensureLogger(lgr)

	checker, err := integrity.NewChecker(integrity.Algorithm(settings.Sync.ChecksumAlgorithm))
	if err != nil {
		return nil, err
	}
	chunks, err := chunker.NewChunker(settings.Limits.MaxSQLBytes, settings.Limits.BatchSafetyMargin)
	if err != nil {
		return nil, err
	}

	states := state.NewManager(fs, settings.StateFilePath(), settings.FailedRowsPath(),
		lgr.WithField("component", "state"))

	return &Engine{
		settings: settings,
		fs:       fs,
		remote:   NewRemote(settings, lgr),
		states:   states,
		chunks:   chunks,
		checker:  checker,
		lgr:      lgr,
	}, nil
}

// NewRemote builds a d1 client wired from settings. Commands that talk to
// the remote without a full engine, like tables and verify, use this too.
func NewRemote(settings *config.Settings, lgr *logrus.Entry) *d1.Client {
	return d1.New(d1.Config{
		BaseURL:        settings.APIBase,
		AccountID:      settings.Database.AccountID,
		Database:       settings.Database.DatabaseID,
		Token:          settings.Database.APIToken,
		MaxRetries:     settings.MaxRetries,
		RetryDelay:     settings.RetryDelay(),
		PollInterval:   settings.PollInterval(),
		ImportMaxWait:  settings.ImportMaxWait(),
		ConnectTimeout: settings.ConnectTimeout(),
		ReadTimeout:    settings.ReadTimeout(),
		Logger:         ensureLogger(lgr).WithField("component", "d1"),
	})
}

func ensureLogger(lgr *logrus.Entry) *logrus.Entry {
	if lgr != nil {
		return lgr
	}
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	return logrus.NewEntry(quiet)
}

// Close releases the engine's network resources.
func (e *Engine) Close() {
	e.remote.Close()
}

// Stats returns a copy of the current run statistics, safe to read while the
// run advances.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := e.stats
	cp.Errors = append([]string(nil), e.stats.Errors...)
	if cp.Status == state.SyncInProgress && !cp.StartedAt.IsZero() {
		cp.Duration = time.Since(cp.StartedAt)
	}
	return cp
}

func (e *Engine) statsUpdate(f func(*Stats)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	f(&e.stats)
}

func (e *Engine) recordError(msg string) {
	e.mu.Lock()
	e.stats.Errors = append(e.stats.Errors, msg)
	e.mu.Unlock()
}

// warnDailyCap logs once when the run's processed rows cross the tier's
// daily write allowance. The cap is advisory; the engine never throttles.
func (e *Engine) warnDailyCap() {
	allowance := e.settings.Limits.DailyRowWrites
	if allowance <= 0 {
		return
	}
	e.mu.Lock()
	crossed := !e.capWarned && e.stats.RowsProcessed > allowance
	if crossed {
		e.capWarned = true
	}
	rows := e.stats.RowsProcessed
	e.mu.Unlock()

	if crossed {
		e.lgr.WithFields(logrus.Fields{"rows": rows, "daily_cap": allowance}).
			Warn("run exceeds the tier's daily write allowance, remote writes may start failing")
	}
}

// saveState persists the checkpoint, best effort. A failed save never stops
// the run; the warning tells the operator resume may be stale.
func (e *Engine) saveState(dryRun bool) {
	if dryRun {
		return
	}
	if err := e.states.Save(); err != nil {
		e.lgr.WithField("cause", err.Error()).Warn("could not save sync state")
	}
}

// filterTables applies include and exclude lists to the planned tables,
// exclusion winning. Including a table the scope does not contain is an
// error rather than a silent no-op.
func filterTables(tables, includes, excludes []string, scope string) ([]string, error) {
	var include *set.StrSet
	if len(includes) > 0 {
		known := set.NewStrSet(tables)
		for _, want := range includes {
			if !known.Contains(want) {
				return nil, fmt.Errorf("engine: table %q not found in %s", want, scope)
			}
		}
		include = set.NewStrSet(includes)
	}
	exclude := set.NewStrSet(excludes)

	var plan []string
	for _, t := range tables {
		if include != nil && !include.Contains(t) {
			continue
		}
		if exclude.Contains(t) {
			continue
		}
		plan = append(plan, t)
	}
	return plan, nil
}
