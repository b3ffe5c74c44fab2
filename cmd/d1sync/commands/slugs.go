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
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/dolthub/d1-sync/cmd/d1sync/cli"
	"github.com/dolthub/d1-sync/cmd/d1sync/errhand"
	"github.com/dolthub/d1-sync/libraries/synccore/engine"
	"github.com/dolthub/d1-sync/libraries/synccore/slugsync"
	"github.com/dolthub/d1-sync/libraries/synccore/sqlite"
	"github.com/dolthub/d1-sync/libraries/utils/argparser"
)

var slugsDocs = cli.CommandDocumentationContent{
	ShortDesc: "Replay slug rewrites onto a target database.",
	LongDesc: `Finds the rows of {{.LessThan}}table{{.GreaterThan}} whose {{.EmphasisLeft}}slug_old{{.EmphasisRight}} backup column is set and replays their slug and backup values onto the target with batched CASE updates. The backup column is added to the target when missing.

The remote D1 database is the target by default; {{.EmphasisLeft}}--local{{.EmphasisRight}} aims the updates at another SQLite file instead. Duplicate slugs in the source abort the run before any update is sent. {{.EmphasisLeft}}--dry-run{{.EmphasisRight}} reports what would change without writing.`,
	Synopsis: []string{
		"--db {{.LessThan}}path{{.GreaterThan}} {{.LessThan}}table{{.GreaterThan}} [--local {{.LessThan}}path{{.GreaterThan}}] [--dry-run]",
	},
}

type SlugsCmd struct{}

var _ cli.Command = SlugsCmd{}

func (cmd SlugsCmd) Name() string {
	return "slugs"
}

func (cmd SlugsCmd) Description() string {
	return "Replay slug rewrites onto a target database."
}

func (cmd SlugsCmd) Docs() *cli.CommandDocumentation {
	return cli.NewCommandDocumentation(slugsDocs, cmd.ArgParser())
}

func (cmd SlugsCmd) ArgParser() *argparser.ArgParser {
	ap := cli.CreateConnectionArgParser(cmd.Name(), 1)
	ap.SupportsString(cli.LocalParam, "", "path", "Apply updates to this SQLite file instead of the remote database.")
	ap.SupportsFlag(cli.DryRunFlag, "n", "Report what would change without writing anything.")
	return ap
}

func (cmd SlugsCmd) Exec(ctx context.Context, commandStr string, args []string, cliCtx cli.CliContext) int {
	apr, usage, terminate, status := ParseArgsOrPrintHelp(cmd.ArgParser(), commandStr, args, slugsDocs)
	if terminate {
		return status
	}
	if apr.NArg() != 1 {
		verr := errhand.BuildDError("error: slugs takes exactly one table name").SetPrintUsage().Build()
		return HandleVErrAndExitCode(verr, usage)
	}
	table := apr.Arg(0)

	settings, verr := ResolveSettings(cliCtx, apr)
	if verr != nil {
		return HandleVErrAndExitCode(verr, usage)
	}
	if apr.Contains(cli.DryRunFlag) {
		settings.Sync.DryRun = true
	}
	if settings.Database.Path == "" {
		verr = errhand.BuildDError("error: no database path given. Use --db or set database.path in the config file").SetPrintUsage().Build()
		return HandleVErrAndExitCode(verr, usage)
	}
	lgr := BuildLogger(cliCtx, settings)

	src, err := sqlite.Open(settings.Database.Path, true, lgr.WithField("component", "sqlite"))
	if err != nil {
		verr = errhand.BuildDError("error: could not open %s", settings.Database.Path).AddCause(err).Build()
		return HandleVErrAndExitCode(verr, usage)
	}
	defer src.Close()

	var target slugsync.Target
	if localPath, ok := apr.GetValue(cli.LocalParam); ok {
		local, err := sqlite.Open(localPath, false, lgr.WithField("component", "sqlite"))
		if err != nil {
			verr = errhand.BuildDError("error: could not open target %s", localPath).AddCause(err).Build()
			return HandleVErrAndExitCode(verr, usage)
		}
		defer local.Close()
		target = slugsync.LocalTarget{DB: local}
	} else {
		if err := settings.ValidateCredentials(); err != nil {
			return HandleVErrAndExitCode(errhand.VerboseErrorFromError(err), usage)
		}
		remote := engine.NewRemote(settings, lgr.WithField("component", "d1"))
		defer remote.Close()
		target = slugsync.RemoteTarget{Client: remote}
	}

	if settings.Sync.DryRun {
		cli.Println(color.YellowString("Dry run: no changes will be made."))
	}

	stats, err := slugsync.New(settings, lgr.WithField("component", "slugsync")).Sync(ctx, src, target, table)
	if err != nil {
		verr = errhand.BuildDError("error: slug sync failed").AddCause(err).Build()
		return HandleVErrAndExitCode(verr, usage)
	}

	if stats.ColumnAdded && !settings.Sync.DryRun {
		cli.Printf("Added %s backup column to the target.\n", slugsync.BackupColumn)
	}
	cli.Printf("%s: %s changed rows, %s updated, %s failed in %s\n",
		table, humanize.Comma(stats.RowsToSync), humanize.Comma(stats.RowsUpdated),
		humanize.Comma(stats.RowsFailed), stats.Duration.Round(time.Millisecond))

	if len(stats.Errors) > 0 {
		cli.PrintErrln(color.YellowString("%d errors occurred:", len(stats.Errors)))
		for i, msg := range stats.Errors {
			if i == maxShownErrors {
				cli.PrintErrf("  ... and %d more\n", len(stats.Errors)-maxShownErrors)
				break
			}
			cli.PrintErrln("  - " + msg)
		}
	}

	if stats.Failed() {
		return 1
	}
	return 0
}
