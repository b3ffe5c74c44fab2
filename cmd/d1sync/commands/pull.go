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

var pullDocs = cli.CommandDocumentationContent{
	ShortDesc: "Pull the remote D1 database into a local SQLite file.",
	LongDesc: `Reads every table from the remote D1 database and writes it into the SQLite file named by {{.EmphasisLeft}}--db{{.EmphasisRight}}, creating the file when it does not exist. Remote schema statements are replayed locally, then rows are paged down and inserted in local transactions.

Existing local tables are replaced unless rows are merged with {{.EmphasisLeft}}--overwrite{{.EmphasisRight}} semantics already in effect from configuration. After the last table, row counts on both sides are compared unless {{.EmphasisLeft}}--no-verify{{.EmphasisRight}} is given.`,
	Synopsis: []string{
		"--db {{.LessThan}}path{{.GreaterThan}} [--database {{.LessThan}}id{{.GreaterThan}}] [{{.LessThan}}flags{{.GreaterThan}}]",
	},
}

type PullCmd struct{}

var _ cli.Command = PullCmd{}

func (cmd PullCmd) Name() string {
	return "pull"
}

func (cmd PullCmd) Description() string {
	return "Pull the remote D1 database into a local SQLite file."
}

func (cmd PullCmd) Docs() *cli.CommandDocumentation {
	return cli.NewCommandDocumentation(pullDocs, cmd.ArgParser())
}

func (cmd PullCmd) ArgParser() *argparser.ArgParser {
	return cli.CreateSyncArgParser(cmd.Name())
}

func (cmd PullCmd) Exec(ctx context.Context, commandStr string, args []string, cliCtx cli.CliContext) int {
	apr, usage, terminate, status := ParseArgsOrPrintHelp(cmd.ArgParser(), commandStr, args, pullDocs)
	if terminate {
		return status
	}
	return runSync(ctx, cliCtx, apr, usage, state.OpPull)
}
