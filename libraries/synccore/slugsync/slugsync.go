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

// Package slugsync pushes slug rewrites to a sync target. A slug fixer
// leaves the previous value in a slug_old column; this engine finds those
// rows locally and applies both columns to the target in batched CASE
// updates.
package slugsync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dolthub/d1-sync/libraries/synccore/chunker"
	"github.com/dolthub/d1-sync/libraries/synccore/config"
	"github.com/dolthub/d1-sync/libraries/synccore/d1"
	"github.com/dolthub/d1-sync/libraries/synccore/sqlite"
	"github.com/dolthub/d1-sync/libraries/synccore/val"
)

const (
	// BackupColumn holds a row's previous slug; a non-null value marks the
	// row as changed.
	BackupColumn = "slug_old"

	// BatchSize is the number of rows per UPDATE. CASE expressions grow two
	// arms per row, so batches stay far smaller than insert chunks.
	BatchSize = 50
)

// Stats reports one slug sync run.
type Stats struct {
	Table       string        `json:"table"`
	RowsToSync  int64         `json:"rows_to_sync"`
	RowsUpdated int64         `json:"rows_updated"`
	RowsFailed  int64         `json:"rows_failed"`
	ColumnAdded bool          `json:"column_added"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
	Errors      []string      `json:"errors,omitempty"`
}

// RowsPerSecond is the observed update rate.
func (s Stats) RowsPerSecond() float64 {
	secs := s.Duration.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(s.RowsUpdated) / secs
}

// Failed reports whether anything went wrong that the exit code should
// carry.
func (s Stats) Failed() bool {
	return s.RowsFailed > 0 || len(s.Errors) > 0
}

func (s Stats) finished() Stats {
	s.Duration = time.Since(s.StartedAt)
	return s
}

// Target is where the batched updates land. The remote database is the
// usual target; a local file works too, for rehearsing against a snapshot.
type Target interface {
	// HasColumn reports whether table already carries column.
	HasColumn(ctx context.Context, table, column string) (bool, error)
	// Exec runs one statement against the target.
	Exec(ctx context.Context, sql string) error
}

// RemoteTarget aims updates at the remote database.
type RemoteTarget struct {
	Client *d1.Client
}

func (t RemoteTarget) HasColumn(ctx context.Context, table, column string) (bool, error) {
	res, err := t.Client.Query(ctx,
		`SELECT COUNT(*) AS n FROM pragma_table_info(?1) WHERE name = ?2`, table, column)
	if err != nil {
		return false, err
	}
	if len(res.Results) == 0 {
		return false, nil
	}
	return val.FromJSON(res.Results[0]["n"]).I > 0, nil
}

func (t RemoteTarget) Exec(ctx context.Context, sql string) error {
	_, err := t.Client.Exec(ctx, sql)
	return err
}

// LocalTarget aims updates at a writable local database.
type LocalTarget struct {
	DB *sqlite.Connector
}

func (t LocalTarget) HasColumn(ctx context.Context, table, column string) (bool, error) {
	info, err := t.DB.TableInfo(ctx, table)
	if err != nil {
		return false, err
	}
	for _, col := range info {
		if col.Name == column {
			return true, nil
		}
	}
	return false, nil
}

func (t LocalTarget) Exec(ctx context.Context, sql string) error {
	_, err := t.DB.Execute(ctx, sql)
	return err
}

// slugRow is one changed row with its cells pre-rendered as SQL literals.
type slugRow struct {
	id   string
	slug string
	old  string
}

// Engine applies slug rewrites from a source database to a target.
type Engine struct {
	settings *config.Settings
	lgr      *logrus.Entry

	// OnProgress, when set, receives a stats snapshot after every batch.
	OnProgress func(Stats)
}

func New(settings *config.Settings, lgr *logrus.Entry) *Engine {
	if lgr == nil {
		lgr = quietLogger()
	}
	return &Engine{settings: settings, lgr: lgr}
}

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(noopWriter{})
	return logrus.NewEntry(l)
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }

// Sync finds the rows in src where the backup column is set and replays
// their slug and backup values onto the target, ensuring the backup column
// exists there first. Row-level failures are recorded in the stats; only
// infrastructure failures and cancellation come back as errors.
func (e *Engine) Sync(ctx context.Context, src *sqlite.Connector, target Target, table string) (Stats, error) {
	stats := Stats{Table: table, StartedAt: time.Now()}
	dryRun := e.settings.Sync.DryRun
	lgr := e.lgr.WithField("table", table)

	has, err := target.HasColumn(ctx, table, BackupColumn)
	if err != nil {
		return stats.finished(), err
	}
	if !has {
		stats.ColumnAdded = true
		if dryRun {
			lgr.Info("dry run: target is missing the backup column, would add it")
		} else {
			ddl := "ALTER TABLE " + chunker.QuoteIdent(table) +
				" ADD COLUMN " + chunker.QuoteIdent(BackupColumn) + " TEXT"
			if err := target.Exec(ctx, ddl); err != nil {
				return stats.finished(), fmt.Errorf("adding %s column: %w", BackupColumn, err)
			}
			lgr.Info("added backup column to target")
		}
	}

	if collisions, err := e.findCollisions(ctx, src, table); err != nil {
		return stats.finished(), err
	} else if len(collisions) > 0 {
		stats.Errors = append(stats.Errors, collisions...)
		lgr.WithField("collisions", len(collisions)).Error("duplicate slugs in source, refusing to sync")
		return stats.finished(), nil
	}

	rows, err := e.changedRows(ctx, src, table, &stats)
	if err != nil {
		return stats.finished(), err
	}
	stats.RowsToSync = int64(len(rows))
	if len(rows) == 0 {
		lgr.Info("no changed slugs to sync")
		return stats.finished(), nil
	}

	batches := (len(rows) + BatchSize - 1) / BatchSize
	lgr.WithFields(logrus.Fields{"rows": len(rows), "batches": batches, "dry_run": dryRun}).
		Info("syncing slug rewrites")

	for start := 0; start < len(rows); start += BatchSize {
		if err := ctx.Err(); err != nil {
			return stats.finished(), err
		}
		end := start + BatchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]
		num := start/BatchSize + 1

		if dryRun {
			stats.RowsUpdated += int64(len(batch))
		} else if err := target.Exec(ctx, updateSQL(table, batch)); err != nil {
			if ctx.Err() != nil {
				return stats.finished(), ctx.Err()
			}
			stats.RowsFailed += int64(len(batch))
			stats.Errors = append(stats.Errors, fmt.Sprintf("batch %d/%d: %v", num, batches, err))
			lgr.WithFields(logrus.Fields{"batch": num, "cause": err.Error()}).Error("update batch rejected")
		} else {
			stats.RowsUpdated += int64(len(batch))
		}

		if e.OnProgress != nil {
			snap := stats
			snap.Duration = time.Since(snap.StartedAt)
			e.OnProgress(snap)
		}
	}

	lgr.WithFields(logrus.Fields{"updated": stats.RowsUpdated, "failed": stats.RowsFailed}).
		Info("slug sync finished")
	return stats.finished(), nil
}

// findCollisions reports slug values carried by more than one source row.
// Applying those would trip a unique index on the target halfway through a
// batch, so the run refuses to start instead.
func (e *Engine) findCollisions(ctx context.Context, src *sqlite.Connector, table string) ([]string, error) {
	recs, err := src.Query(ctx,
		`SELECT slug, COUNT(*) AS n FROM `+chunker.QuoteIdent(table)+
			` GROUP BY slug HAVING COUNT(*) > 1 ORDER BY slug`)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, rec := range recs {
		out = append(out, fmt.Sprintf("slug %s is carried by %d rows", chunker.EncodeValue(rec[0]), rec[1].I))
	}
	return out, nil
}

func (e *Engine) changedRows(ctx context.Context, src *sqlite.Connector, table string, stats *Stats) ([]slugRow, error) {
	recs, err := src.Query(ctx,
		`SELECT id, slug, `+chunker.QuoteIdent(BackupColumn)+
			` FROM `+chunker.QuoteIdent(table)+
			` WHERE `+chunker.QuoteIdent(BackupColumn)+` IS NOT NULL ORDER BY id`)
	if err != nil {
		return nil, err
	}

	rows := make([]slugRow, 0, len(recs))
	for _, rec := range recs {
		if rec[0].IsNull() {
			stats.Errors = append(stats.Errors, "row with NULL id skipped")
			continue
		}
		rows = append(rows, slugRow{
			id:   chunker.EncodeValue(rec[0]),
			slug: chunker.EncodeValue(rec[1]),
			old:  chunker.EncodeValue(rec[2]),
		})
	}
	return rows, nil
}

// updateSQL renders one batch as a CASE update keyed by id.
func updateSQL(table string, rows []slugRow) string {
	var sb strings.Builder
	sb.WriteString("UPDATE " + chunker.QuoteIdent(table) + " SET\n")
	writeCase(&sb, "slug", rows, func(r slugRow) string { return r.slug })
	sb.WriteString(",\n")
	writeCase(&sb, BackupColumn, rows, func(r slugRow) string { return r.old })
	sb.WriteString("\nWHERE \"id\" IN (")
	for i, r := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(r.id)
	}
	sb.WriteString(")")
	return sb.String()
}

func writeCase(sb *strings.Builder, column string, rows []slugRow, pick func(slugRow) string) {
	sb.WriteString(chunker.QuoteIdent(column) + " = CASE \"id\"\n")
	for _, r := range rows {
		sb.WriteString("WHEN " + r.id + " THEN " + pick(r) + "\n")
	}
	sb.WriteString("END")
}
