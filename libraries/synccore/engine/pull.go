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

package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dolthub/d1-sync/libraries/synccore/sqlite"
	"github.com/dolthub/d1-sync/libraries/synccore/state"
)

// Pull snapshots the remote database into the local file. Unlike push there
// is no checkpoint: a pull either lands whole tables or is rerun. Pages are
// small and idempotent to fetch, so restarting costs only reads.
func (e *Engine) Pull(ctx context.Context) (Stats, error) {
	cfg := e.settings
	if err := cfg.ValidateCredentials(); err != nil {
		return e.Stats(), err
	}

	e.statsUpdate(func(s *Stats) {
		s.Operation = state.OpPull
		s.Status = state.SyncInProgress
		s.StartedAt = time.Now()
	})

	tables, err := e.remote.Tables(ctx)
	if err != nil {
		return e.failPull(err)
	}
	plan, err := filterTables(tables, cfg.Sync.Tables, cfg.Sync.ExcludeTables, "remote database")
	if err != nil {
		return e.failPull(err)
	}
	e.statsUpdate(func(s *Stats) { s.TablesTotal = len(plan) })
	e.lgr.WithFields(logrus.Fields{
		"tables":  len(plan),
		"dry_run": cfg.Sync.DryRun,
	}).Info("starting pull")

	if cfg.Sync.DryRun {
		return e.planPull(ctx, plan)
	}

	dest, err := sqlite.Open(cfg.Database.Path, false, e.lgr.WithField("component", "sqlite"))
	if err != nil {
		return e.failPull(err)
	}
	defer dest.Close()

	for _, table := range plan {
		if ctx.Err() != nil {
			return e.interruptPull()
		}
		if err := e.pullTable(ctx, dest, table); err != nil {
			if ctx.Err() != nil {
				return e.interruptPull()
			}
			return e.failPull(err)
		}
	}

	if cfg.Sync.VerifyAfterSync {
		e.verifyPull(ctx, dest, plan)
		if ctx.Err() != nil {
			return e.interruptPull()
		}
	}
	return e.finishPull()
}

// planPull is the dry-run path: enumerate the remote and report what a real
// pull would move. Counting queries are the only network traffic.
func (e *Engine) planPull(ctx context.Context, plan []string) (Stats, error) {
	for _, table := range plan {
		if ctx.Err() != nil {
			return e.interruptPull()
		}
		total, err := e.remote.TableCount(ctx, table)
		if err != nil {
			e.recordError(fmt.Sprintf("%s: %v", table, err))
			continue
		}
		e.statsUpdate(func(s *Stats) {
			s.RowsTotal += total
			s.TablesDone++
		})
		e.lgr.WithFields(logrus.Fields{"table": table, "rows": total}).Info("dry run: would pull table")
	}
	return e.finishPull()
}

// pullTable copies one remote table into the local file. Remote read
// failures are recorded and the run moves to the next table; local write
// failures are fatal.
func (e *Engine) pullTable(ctx context.Context, dest *sqlite.Connector, table string) error {
	lgr := e.lgr.WithField("table", table)
	cfg := e.settings
	e.statsUpdate(func(s *Stats) { s.CurrentTable = table })

	create, err := e.remote.CreateStatement(ctx, table)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.recordError(fmt.Sprintf("%s: schema: %v", table, err))
		e.statsUpdate(func(s *Stats) {
			s.TablesDone++
			s.CurrentTable = ""
		})
		lgr.WithField("cause", err.Error()).Error("could not read remote schema, skipping table")
		return nil
	}

	if cfg.Sync.DropBeforeSync {
		if err := dest.DropTable(ctx, table); err != nil {
			return err
		}
	}
	if err := dest.CreateTableIfNotExists(ctx, create); err != nil {
		return err
	}
	columns, err := dest.Columns(ctx, table)
	if err != nil {
		return err
	}

	total, err := e.remote.TableCount(ctx, table)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.recordError(fmt.Sprintf("%s: %v", table, err))
		e.statsUpdate(func(s *Stats) {
			s.TablesDone++
			s.CurrentTable = ""
		})
		return nil
	}
	e.statsUpdate(func(s *Stats) { s.RowsTotal += total })

	pageSize := int64(cfg.BatchSize())
	var offset, moved int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rows, err := e.remote.SelectPage(ctx, table, columns, pageSize, offset)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.recordError(fmt.Sprintf("%s@%d: %v", table, offset, err))
			e.statsUpdate(func(s *Stats) { s.RowsFailed += total - moved })
			lgr.WithFields(logrus.Fields{"offset": offset, "cause": err.Error()}).
				Error("page fetch failed, abandoning table")
			break
		}
		if len(rows) == 0 {
			break
		}

		if _, err := dest.InsertBatch(ctx, table, columns, rows, cfg.Sync.Overwrite); err != nil {
			return err
		}
		n := int64(len(rows))
		moved += n
		offset += n
		e.statsUpdate(func(s *Stats) { s.RowsProcessed += n })

		if n < pageSize {
			break
		}
	}

	e.statsUpdate(func(s *Stats) {
		s.TablesDone++
		s.CurrentTable = ""
	})
	lgr.WithField("rows", moved).Info("table pulled")
	return nil
}

// verifyPull compares per-table row counts after the data phase, remote
// against local, recording mismatches as run errors.
func (e *Engine) verifyPull(ctx context.Context, dest *sqlite.Connector, plan []string) {
	for _, table := range plan {
		if ctx.Err() != nil {
			return
		}
		remote, err := e.remote.TableCount(ctx, table)
		if err != nil {
			e.recordError(fmt.Sprintf("verify %s: %v", table, err))
			continue
		}
		local, err := dest.RowCount(ctx, table)
		if err != nil {
			e.recordError(fmt.Sprintf("verify %s: %v", table, err))
			continue
		}
		if remote != local {
			e.recordError(fmt.Sprintf("verify %s: source has %d rows, destination has %d", table, remote, local))
			e.lgr.WithFields(logrus.Fields{"table": table, "source": remote, "destination": local}).
				Error("row count mismatch")
		}
	}
}

func (e *Engine) finishPull() (Stats, error) {
	final := state.SyncCompleted
	if snap := e.Stats(); snap.RowsFailed > 0 {
		final = state.SyncFailed
	}
	e.statsUpdate(func(s *Stats) {
		s.Status = final
		s.Duration = time.Since(s.StartedAt)
		s.CurrentTable = ""
	})

	snap := e.Stats()
	e.lgr.WithFields(logrus.Fields{
		"status":    string(final),
		"processed": snap.RowsProcessed,
		"duration":  snap.Duration.Round(time.Millisecond).String(),
	}).Info("pull finished")
	return snap, nil
}

func (e *Engine) interruptPull() (Stats, error) {
	e.statsUpdate(func(s *Stats) {
		s.Status = state.SyncInterrupted
		s.Duration = time.Since(s.StartedAt)
		s.CurrentTable = ""
	})
	e.lgr.Warn("pull interrupted")
	return e.Stats(), nil
}

func (e *Engine) failPull(err error) (Stats, error) {
	e.statsUpdate(func(s *Stats) {
		s.Status = state.SyncFailed
		s.Duration = time.Since(s.StartedAt)
		s.CurrentTable = ""
	})
	return e.Stats(), err
}
