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

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/dolthub/d1-sync/libraries/synccore/chunker"
	"github.com/dolthub/d1-sync/libraries/synccore/schema"
	"github.com/dolthub/d1-sync/libraries/synccore/val"
)

// Execute runs one statement. Fails with ErrReadOnly on a read-only
// connector before touching the database.
func (c *Connector) Execute(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	if c.readonly {
		return nil, ErrReadOnly
	}
	return c.db.ExecContext(ctx, query, args...)
}

// ExecuteBatch runs the statements inside a single transaction; any failure
// rolls the whole batch back.
func (c *Connector) ExecuteBatch(ctx context.Context, stmts []string) error {
	if c.readonly {
		return ErrReadOnly
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("sqlite: batch statement failed: %w", err)
		}
	}
	return tx.Commit()
}

// CreateTableIfNotExists replays a CREATE statement rewritten to be
// idempotent.
func (c *Connector) CreateTableIfNotExists(ctx context.Context, createSQL string) error {
	if c.readonly {
		return ErrReadOnly
	}
	_, err := c.db.ExecContext(ctx, schema.RewriteCreateIfNotExists(createSQL))
	return err
}

// DropTable removes a table if present.
func (c *Connector) DropTable(ctx context.Context, table string) error {
	if c.readonly {
		return ErrReadOnly
	}
	_, err := c.db.ExecContext(ctx, `DROP TABLE IF EXISTS `+chunker.QuoteIdent(table))
	return err
}

// InsertBatch writes rows through a prepared parameterized insert inside one
// transaction and returns the number of rows written. The overwrite flag
// picks INSERT OR REPLACE over INSERT OR IGNORE, the same policy the remote
// side applies on push.
func (c *Connector) InsertBatch(ctx context.Context, table string, columns []string, rows [][]val.Value, overwrite bool) (int64, error) {
	if c.readonly {
		return 0, ErrReadOnly
	}
	if len(rows) == 0 {
		return 0, nil
	}

	verb := "INSERT OR IGNORE"
	if overwrite {
		verb = "INSERT OR REPLACE"
	}
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = chunker.QuoteIdent(col)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	insert := verb + " INTO " + chunker.QuoteIdent(table) +
		" (" + strings.Join(quoted, ", ") + ") VALUES (" + placeholders + ")"

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}

	var written int64
	for _, row := range rows {
		args := make([]interface{}, len(row))
		for i, v := range row {
			args[i] = v.Interface()
		}
		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			_ = stmt.Close()
			_ = tx.Rollback()
			return 0, fmt.Errorf("sqlite: inserting into %s: %w", table, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			written += n
		}
	}
	if err := stmt.Close(); err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}

	c.lgr.WithFields(logrus.Fields{"table": table, "rows": written}).Debug("wrote batch")
	return written, nil
}
