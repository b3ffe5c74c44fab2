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

package commands

import (
	"context"

	"github.com/dolthub/d1-sync/cmd/d1sync/cli"
	"github.com/dolthub/d1-sync/libraries/synccore/state"
	"github.com/dolthub/d1-sync/libraries/utils/argparser"
)

var pushDocs = cli.CommandDocumentationContent{
	ShortDesc: "Push the local SQLite database to Cloudflare D1.",
	LongDesc: `Reads every user table from the database named by {{.EmphasisLeft}}--db{{.EmphasisRight}}, recreates its schema on the remote D1 database, and streams rows upward in batches sized to the API's request limits. Tables are pushed in foreign key dependency order so parent rows land before the rows that reference them.

A checkpoint file next to the database records per-table progress. An interrupted push resumes from the checkpoint when re-run with the same settings; {{.EmphasisLeft}}--no-resume{{.EmphasisRight}} starts over from the first row. Rows the remote rejects are recorded in a failed-row sidecar file and the run continues with the rest of the table.

After the last table, row counts on both sides are compared unless {{.EmphasisLeft}}--no-verify{{.EmphasisRight}} is given.`,
	Synopsis: []string{
		"--db {{.LessThan}}path{{.GreaterThan}} [--database {{.LessThan}}id{{.GreaterThan}}] [{{.LessThan}}flags{{.GreaterThan}}]",
	},
}

type PushCmd struct{}

var _ cli.Command = PushCmd{}

func (cmd PushCmd) Name() string {
	return "push"
}

func (cmd PushCmd) Description() string {
	return "Push the local SQLite database to Cloudflare D1."
}

func (cmd PushCmd) Docs() *cli.CommandDocumentation {
	return cli.NewCommandDocumentation(pushDocs, cmd.ArgParser())
}

func (cmd PushCmd) ArgParser() *argparser.ArgParser {
	ap := cli.CreateSyncArgParser(cmd.Name())
	ap.SupportsFlag(cli.NoSchemaFlag, "", "Skip CREATE TABLE statements. Destination tables must already exist.")
	ap.SupportsFlag(cli.WithIndexesFlag, "", "Recreate the source's indexes on the destination after each table's rows land.")
	ap.SupportsString(cli.StateParam, "", "file", "Checkpoint file location. Defaults to .d1-sync-state.json next to the database.")
	ap.SupportsFlag(cli.NoResumeFlag, "", "Ignore any existing checkpoint and start over from the first row.")
	ap.SupportsInt(cli.LimitParam, "l", "rows", "Maximum rows to push per table, for trial runs.")
	ap.SupportsInt(cli.OffsetParam, "", "rows", "Rows to skip at the start of every table.")
	ap.SupportsFlag(cli.RetryRowsFlag, "", "Replay a rejected batch row by row so only the poisoned rows are recorded as failed.")
	ap.SupportsFlag(cli.BulkImportFlag, "", "Send each table through the D1 bulk import API instead of batched INSERT statements.")
	return ap
}

func (cmd PushCmd) Exec(ctx context.Context, commandStr string, args []string, cliCtx cli.CliContext) int {
	apr, usage, terminate, status := ParseArgsOrPrintHelp(cmd.ArgParser(), commandStr, args, pushDocs)
	if terminate {
		return status
	}
	return runSync(ctx, cliCtx, apr, usage, state.OpPush)
}
