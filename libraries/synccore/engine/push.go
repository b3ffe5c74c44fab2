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
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/dolthub/d1-sync/libraries/synccore/chunker"
	"github.com/dolthub/d1-sync/libraries/synccore/d1"
	"github.com/dolthub/d1-sync/libraries/synccore/schema"
	"github.com/dolthub/d1-sync/libraries/synccore/sqlite"
	"github.com/dolthub/d1-sync/libraries/synccore/state"
	"github.com/dolthub/d1-sync/libraries/synccore/val"
)

// Push copies the local database to the remote. The returned statistics are
// final. Cancellation is not an error; it comes back as status interrupted
// with the checkpoint saved, so a later run can resume.
func (e *Engine) Push(ctx context.Context) (Stats, error) {
	cfg := e.settings
	if err := cfg.ValidateCredentials(); err != nil {
		return e.Stats(), err
	}

	src, err := sqlite.Open(cfg.Database.Path, true, e.lgr.WithField("component", "sqlite"))
	if err != nil {
		return e.Stats(), err
	}
	defer src.Close()

	tables, err := src.Tables(ctx)
	if err != nil {
		return e.Stats(), err
	}
	plan, err := filterTables(tables, cfg.Sync.Tables, cfg.Sync.ExcludeTables, cfg.Database.Path)
	if err != nil {
		return e.Stats(), err
	}

	dryRun := cfg.Sync.DryRun
	resume := cfg.Sync.Resume && !dryRun
	_, resumed := e.states.GetOrCreate(state.OpPush, cfg.Database.Path, cfg.Database.DatabaseID,
		cfg.Fingerprint(), resume)

	e.statsUpdate(func(s *Stats) {
		s.Operation = state.OpPush
		s.Status = state.SyncInProgress
		s.StartedAt = time.Now()
		s.TablesTotal = len(plan)
	})
	e.lgr.WithFields(logrus.Fields{
		"tables":  len(plan),
		"dry_run": dryRun,
		"resumed": resumed,
	}).Info("starting push")

	for _, table := range plan {
		if err := e.pushTable(ctx, src, table, dryRun, resumed); err != nil {
			if ctx.Err() != nil {
				return e.interruptPush(dryRun)
			}
			// source-side failures are fatal to the run
			e.states.MarkSync(state.SyncFailed)
			e.saveState(dryRun)
			e.statsUpdate(func(s *Stats) {
				s.Status = state.SyncFailed
				s.Duration = time.Since(s.StartedAt)
			})
			return e.Stats(), err
		}
		if ctx.Err() != nil {
			return e.interruptPush(dryRun)
		}
	}

	if cfg.Sync.VerifyAfterSync && !dryRun {
		e.verifyCounts(ctx, src, plan)
		if ctx.Err() != nil {
			return e.interruptPush(dryRun)
		}
	}

	return e.finishPush(dryRun)
}

func (e *Engine) interruptPush(dryRun bool) (Stats, error) {
	e.states.MarkSync(state.SyncInterrupted)
	e.saveState(dryRun)
	e.statsUpdate(func(s *Stats) {
		s.Status = state.SyncInterrupted
		s.Duration = time.Since(s.StartedAt)
		s.CurrentTable = ""
	})
	e.lgr.Warn("push interrupted, checkpoint saved")
	return e.Stats(), nil
}

func (e *Engine) finishPush(dryRun bool) (Stats, error) {
	final := state.SyncCompleted
	if snap := e.Stats(); snap.RowsFailed > 0 {
		final = state.SyncFailed
	}
	e.states.MarkSync(final)
	e.saveState(dryRun)
	e.statsUpdate(func(s *Stats) {
		s.Status = final
		s.Duration = time.Since(s.StartedAt)
		s.CurrentTable = ""
	})

	snap := e.Stats()
	e.lgr.WithFields(logrus.Fields{
		"status":    string(final),
		"processed": snap.RowsProcessed,
		"failed":    snap.RowsFailed,
		"duration":  snap.Duration.Round(time.Millisecond).String(),
	}).Info("push finished")
	return snap, nil
}

// pushTable moves one table. Only source-side and cancellation errors are
// returned; remote failures are recorded and the run moves on.
func (e *Engine) pushTable(ctx context.Context, src *sqlite.Connector, table string, dryRun, resumed bool) error {
	lgr := e.lgr.WithField("table", table)
	cfg := e.settings

	total, err := src.RowCount(ctx, table)
	if err != nil {
		return err
	}
	e.states.InitTable(table, total)

	if !e.states.ShouldProcess(table) {
		lgr.Info("table already completed, skipping")
		e.statsUpdate(func(s *Stats) { s.TablesDone++ })
		return nil
	}
	e.statsUpdate(func(s *Stats) { s.CurrentTable = table })

	if cfg.Sync.SyncSchema && !dryRun {
		if err := e.syncSchema(ctx, src, table); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.recordError(fmt.Sprintf("%s: schema: %v", table, err))
			e.states.FailTable(table)
			e.saveState(dryRun)
			e.statsUpdate(func(s *Stats) { s.TablesDone++ })
			lgr.WithField("cause", err.Error()).Error("schema sync failed, skipping table")
			return nil
		}
	}

	e.states.StartTable(table)

	if resumed && cfg.Sync.RetryFailedRows && !dryRun {
		if err := e.retryFailedRows(ctx, src, table); err != nil {
			return err
		}
	}

	var processed, failed int64
	if tp := e.states.TableProgress(table); tp != nil {
		processed, failed = tp.ProcessedRows, tp.FailedRows
	}

	start := cfg.Sync.Offset
	if ro := e.states.ResumeOffset(table); ro > start {
		start = ro
	}

	planned := total - start
	if planned < 0 {
		planned = 0
	}
	if lim := cfg.Sync.Limit; lim > 0 && planned > lim {
		planned = lim
	}
	e.statsUpdate(func(s *Stats) { s.RowsTotal += planned })

	iter, err := src.IterBatches(ctx, table, e.checker, sqlite.BatchOpts{
		BatchSize: cfg.BatchSize(),
		Offset:    start,
		Limit:     cfg.Sync.Limit,
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		bp, bf, err := e.sendBatch(ctx, batch, dryRun)
		if err != nil {
			return err
		}
		processed += bp
		failed += bf

		e.states.AdvanceTable(table, processed, failed, batch.Offset+int64(len(batch.Rows)))
		if batch.Checksum != "" {
			e.states.SetTableChecksum(table, batch.Checksum)
		}
		e.saveState(dryRun)

		e.statsUpdate(func(s *Stats) {
			s.RowsProcessed += bp
			s.RowsFailed += bf
		})
		e.warnDailyCap()
	}

	if failed == 0 {
		e.states.CompleteTable(table)
	} else {
		e.states.FailTable(table)
	}
	e.saveState(dryRun)

	e.statsUpdate(func(s *Stats) {
		s.TablesDone++
		s.CurrentTable = ""
	})
	lgr.WithFields(logrus.Fields{"processed": processed, "failed": failed}).Info("table synced")
	return nil
}

// syncSchema creates the remote table, optionally dropping it first, and
// replicates index DDL when asked. Index failures are downgraded to
// warnings; indexes are an optimization, not data.
func (e *Engine) syncSchema(ctx context.Context, src *sqlite.Connector, table string) error {
	create, err := src.CreateStatement(ctx, table)
	if err != nil {
		return err
	}

	if e.settings.Sync.DropBeforeSync {
		if _, err := e.remote.Exec(ctx, "DROP TABLE IF EXISTS "+chunker.QuoteIdent(table)); err != nil {
			return fmt.Errorf("dropping: %w", err)
		}
	}
	if _, err := e.remote.Exec(ctx, schema.RewriteCreateIfNotExists(create)); err != nil {
		return fmt.Errorf("creating: %w", err)
	}

	if e.settings.Sync.WithIndexes {
		ddls, err := src.IndexStatements(ctx, table)
		if err != nil {
			return err
		}
		for _, ddl := range ddls {
			if _, err := e.remote.Exec(ctx, schema.RewriteCreateIfNotExists(ddl)); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				e.lgr.WithFields(logrus.Fields{"table": table, "cause": err.Error()}).
					Warn("index creation failed")
			}
		}
	}
	return nil
}

// sendBatch chunks one batch and dispatches the chunks. Offsets commit at
// batch granularity: the caller advances state only after every chunk is
// resolved, so out-of-order completions inside the batch are invisible.
// Returns rows processed and failed; the only error returned is
// cancellation, which discards the partial batch.
func (e *Engine) sendBatch(ctx context.Context, batch *sqlite.RowBatch, dryRun bool) (int64, int64, error) {
	chunks := e.chunks.ChunkRows(batch.Table, batch.Columns, batch.Rows, batch.Offset, e.settings.Sync.Overwrite)

	if dryRun {
		return e.planBatch(batch, chunks)
	}
	if e.settings.Sync.BulkImport {
		return e.importBatch(ctx, batch, chunks)
	}
	return e.dispatchChunks(ctx, batch, chunks)
}

// planBatch is the dry-run path: count what would be sent, touch nothing.
func (e *Engine) planBatch(batch *sqlite.RowBatch, chunks []chunker.Chunk) (int64, int64, error) {
	var rows, failed, bytes, sent int64
	for _, ch := range chunks {
		if ch.Oversized {
			failed++
			e.recordError(fmt.Sprintf("%s@%d: row of %d bytes exceeds the %d byte statement budget",
				batch.Table, ch.StartOffset, ch.ByteSize, e.chunks.EffectiveBudget()))
			continue
		}
		rows += int64(ch.RowCount)
		bytes += int64(ch.ByteSize)
		sent++
	}
	e.statsUpdate(func(s *Stats) {
		s.ChunksSent += sent
		s.BytesSent += bytes
	})
	e.lgr.WithFields(logrus.Fields{
		"table":  batch.Table,
		"offset": batch.Offset,
		"rows":   len(batch.Rows),
		"chunks": len(chunks),
	}).Info("dry run: planned batch")
	return rows, failed, nil
}

// dispatchChunks sends the batch's chunks with up to ConcurrentBatches in
// flight. A chunk failure never cancels its siblings; each outcome is
// settled after the group drains.
func (e *Engine) dispatchChunks(ctx context.Context, batch *sqlite.RowBatch, chunks []chunker.Chunk) (int64, int64, error) {
	outcomes := make([]error, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.settings.Limits.ConcurrentBatches)
	for i, ch := range chunks {
		if ch.Oversized {
			continue
		}
		i, ch := i, ch
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				outcomes[i] = err
				return nil
			}
			_, err := e.remote.Exec(gctx, ch.SQL)
			outcomes[i] = err
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		// partial batch is discarded; resume re-sends it
		return 0, 0, err
	}

	var processed, failed int64
	for i, ch := range chunks {
		if ch.Oversized {
			failed += e.failOversized(batch, ch)
			continue
		}
		if outcomes[i] == nil {
			processed += int64(ch.RowCount)
			e.statsUpdate(func(s *Stats) {
				s.ChunksSent++
				s.BytesSent += int64(ch.ByteSize)
			})
			continue
		}
		p, f, err := e.failChunk(ctx, batch, ch, outcomes[i])
		if err != nil {
			return 0, 0, err
		}
		processed += p
		failed += f
	}
	return processed, failed, nil
}

// importBatch ships a batch through the bulk import pipeline instead of
// per-chunk queries. Oversized rows are still failed individually so both
// transports account for rows identically.
func (e *Engine) importBatch(ctx context.Context, batch *sqlite.RowBatch, chunks []chunker.Chunk) (int64, int64, error) {
	var script strings.Builder
	var rows, failed, bytes, sent int64
	for _, ch := range chunks {
		if ch.Oversized {
			failed += e.failOversized(batch, ch)
			continue
		}
		script.WriteString(ch.SQL)
		script.WriteByte('\n')
		rows += int64(ch.RowCount)
		bytes += int64(ch.ByteSize)
		sent++
	}
	if rows == 0 {
		return 0, failed, nil
	}

	res, err := e.remote.ImportSQL(ctx, script.String())
	if err != nil {
		if ctx.Err() != nil {
			return 0, 0, ctx.Err()
		}
		e.recordError(fmt.Sprintf("%s@%d: import: %v", batch.Table, batch.Offset, err))
		for _, ch := range chunks {
			if ch.Oversized {
				continue
			}
			chunkRows := batch.Rows[ch.StartOffset-batch.Offset : ch.EndOffset-batch.Offset]
			for i, row := range chunkRows {
				e.states.RecordFailedRow(batch.Table, ch.StartOffset+int64(i), row, err.Error())
			}
		}
		return 0, failed + rows, nil
	}

	e.statsUpdate(func(s *Stats) {
		s.ChunksSent += sent
		s.BytesSent += bytes
	})
	e.lgr.WithFields(logrus.Fields{
		"table":        batch.Table,
		"offset":       batch.Offset,
		"rows_written": res.RowsWritten,
	}).Debug("bulk import batch complete")
	return rows, failed, nil
}

// failOversized records the one row a chunk could not carry. The row is
// never sent; it is reported under a distinct error so the operator can
// tell it from remote rejections.
func (e *Engine) failOversized(batch *sqlite.RowBatch, ch chunker.Chunk) int64 {
	row := batch.Rows[ch.StartOffset-batch.Offset]
	msg := fmt.Sprintf("row of %d bytes exceeds the %d byte statement budget", ch.ByteSize, e.chunks.EffectiveBudget())
	e.recordError(fmt.Sprintf("%s@%d: %s", batch.Table, ch.StartOffset, msg))
	e.states.RecordFailedRow(batch.Table, ch.StartOffset, row, msg)
	e.lgr.WithFields(logrus.Fields{"table": batch.Table, "offset": ch.StartOffset, "bytes": ch.ByteSize}).
		Error("oversized row cannot be sent")
	return int64(ch.RowCount)
}

// failChunk settles a chunk the remote rejected. With RetryFailedRows on and
// a semantic rejection, the rows get individual retries; otherwise the whole
// span is recorded failed.
func (e *Engine) failChunk(ctx context.Context, batch *sqlite.RowBatch, ch chunker.Chunk, chunkErr error) (int64, int64, error) {
	e.recordError(fmt.Sprintf("%s@%d: %v", batch.Table, ch.StartOffset, chunkErr))
	e.lgr.WithFields(logrus.Fields{
		"table":  batch.Table,
		"offset": ch.StartOffset,
		"rows":   ch.RowCount,
		"cause":  chunkErr.Error(),
	}).Error("chunk rejected")

	rows := batch.Rows[ch.StartOffset-batch.Offset : ch.EndOffset-batch.Offset]
	if e.settings.Sync.RetryFailedRows && isSemantic(chunkErr) {
		return e.isolateRows(ctx, batch.Table, batch.Columns, rows, ch.StartOffset)
	}

	for i, row := range rows {
		e.states.RecordFailedRow(batch.Table, ch.StartOffset+int64(i), row, chunkErr.Error())
	}
	return 0, int64(len(rows)), nil
}

// isolateRows retries a rejected chunk one row at a time so a single
// poisoned row does not take its neighbors down with it.
func (e *Engine) isolateRows(ctx context.Context, table string, columns []string, rows [][]val.Value, startOffset int64) (int64, int64, error) {
	e.lgr.WithFields(logrus.Fields{"table": table, "offset": startOffset, "rows": len(rows)}).
		Warn("retrying rejected chunk row by row")

	var processed, failed int64
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return processed, failed, err
		}
		off := startOffset + int64(i)
		_, err := e.remote.InsertRows(ctx, table, columns, [][]val.Value{row},
			e.settings.Sync.Overwrite, e.settings.Limits.MaxBoundParams)
		if err != nil {
			if ctx.Err() != nil {
				return processed, failed, ctx.Err()
			}
			failed++
			e.states.RecordFailedRow(table, off, row, err.Error())
			e.lgr.WithFields(logrus.Fields{"table": table, "offset": off, "cause": err.Error()}).
				Debug("row retry failed")
			continue
		}
		processed++
	}
	return processed, failed, nil
}

// retryFailedRows gives rows an earlier run recorded as failed another
// chance before the table's batch loop starts. Each row is re-read from the
// source by offset, so blob cells keep their native form rather than the
// checkpoint's JSON rendering.
func (e *Engine) retryFailedRows(ctx context.Context, src *sqlite.Connector, table string) error {
	records := e.states.FailedRowsFor(table)
	if len(records) == 0 {
		return nil
	}
	lgr := e.lgr.WithField("table", table)
	lgr.WithField("rows", len(records)).Info("retrying failed rows from the previous run")

	for _, fr := range records {
		if err := ctx.Err(); err != nil {
			return err
		}

		iter, err := src.IterBatches(ctx, table, e.checker, sqlite.BatchOpts{
			BatchSize: 1,
			Offset:    fr.Offset,
			Limit:     1,
		})
		if err != nil {
			return err
		}
		batch, err := iter.Next(ctx)
		_ = iter.Close()
		if err == io.EOF {
			// the source shrank since the failure was recorded
			lgr.WithField("offset", fr.Offset).Debug("failed row no longer present in source")
			continue
		}
		if err != nil {
			return err
		}

		e.statsUpdate(func(s *Stats) { s.RowsTotal++ })
		_, ierr := e.remote.InsertRows(ctx, table, batch.Columns, batch.Rows,
			e.settings.Sync.Overwrite, e.settings.Limits.MaxBoundParams)
		if ierr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.states.RecordFailedRow(table, fr.Offset, batch.Rows[0], ierr.Error())
			e.recordError(fmt.Sprintf("%s@%d: retry: %v", table, fr.Offset, ierr))
			e.statsUpdate(func(s *Stats) { s.RowsFailed++ })
			continue
		}
		e.states.ResolveFailedRow(table, fr.Offset)
		e.statsUpdate(func(s *Stats) { s.RowsProcessed++ })
	}
	e.saveState(false)
	return nil
}

// verifyCounts compares per-table row counts after the data phase.
// Mismatches become run errors without changing table status. Partial syncs
// skip verification; their counts differ by construction.
func (e *Engine) verifyCounts(ctx context.Context, src *sqlite.Connector, plan []string) {
	if e.settings.Sync.Limit > 0 || e.settings.Sync.Offset > 0 {
		e.lgr.Info("partial sync, skipping count verification")
		return
	}

	for _, table := range plan {
		if ctx.Err() != nil {
			return
		}
		local, err := src.RowCount(ctx, table)
		if err != nil {
			e.recordError(fmt.Sprintf("verify %s: %v", table, err))
			continue
		}
		remote, err := e.remote.TableCount(ctx, table)
		if err != nil {
			e.recordError(fmt.Sprintf("verify %s: %v", table, err))
			continue
		}
		if local != remote {
			e.recordError(fmt.Sprintf("verify %s: source has %d rows, destination has %d", table, local, remote))
			e.lgr.WithFields(logrus.Fields{"table": table, "source": local, "destination": remote}).
				Error("row count mismatch")
			continue
		}
		e.lgr.WithFields(logrus.Fields{"table": table, "rows": local}).Debug("row count verified")
	}
}

// isSemantic reports whether the remote rejected the statement itself, as
// opposed to the transport or rate limiter giving up.
func isSemantic(err error) bool {
	var apiErr *d1.APIError
	var tooLarge *d1.StatementTooLargeError
	var timeout *d1.QueryTimeoutError
	return errors.As(err, &apiErr) || errors.As(err, &tooLarge) || errors.As(err, &timeout)
}
