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

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/dolthub/d1-sync/cmd/d1sync/cli"
	"github.com/dolthub/d1-sync/cmd/d1sync/errhand"
	"github.com/dolthub/d1-sync/libraries/synccore/config"
	"github.com/dolthub/d1-sync/libraries/synccore/engine"
	"github.com/dolthub/d1-sync/libraries/synccore/sqlite"
	"github.com/dolthub/d1-sync/libraries/utils/argparser"
)

var tablesDocs = cli.CommandDocumentationContent{
	ShortDesc: "List tables with row counts.",
	LongDesc: `Lists the user tables of the local SQLite database in the order a push would send them, parents before the tables whose foreign keys reference them. {{.EmphasisLeft}}--alpha{{.EmphasisRight}} sorts the listing alphabetically instead.

With {{.EmphasisLeft}}--remote{{.EmphasisRight}} the remote D1 database is listed instead of the local file.`,
	Synopsis: []string{
		"--db {{.LessThan}}path{{.GreaterThan}} [--alpha]",
		"--remote [--database {{.LessThan}}id{{.GreaterThan}}]",
	},
}

type TablesCmd struct{}

var _ cli.Command = TablesCmd{}

func (cmd TablesCmd) Name() string {
	return "tables"
}

func (cmd TablesCmd) Description() string {
	return "List tables with row counts."
}

func (cmd TablesCmd) Docs() *cli.CommandDocumentation {
	return cli.NewCommandDocumentation(tablesDocs, cmd.ArgParser())
}

func (cmd TablesCmd) ArgParser() *argparser.ArgParser {
	ap := cli.CreateConnectionArgParser(cmd.Name(), 0)
	ap.SupportsFlag(cli.AlphaFlag, "a", "Sort tables alphabetically instead of foreign key dependency order.")
	ap.SupportsFlag(cli.RemoteFlag, "r", "List the remote D1 database instead of the local file.")
	return ap
}

func (cmd TablesCmd) Exec(ctx context.Context, commandStr string, args []string, cliCtx cli.CliContext) int {
	apr, usage, terminate, status := ParseArgsOrPrintHelp(cmd.ArgParser(), commandStr, args, tablesDocs)
	if terminate {
		return status
	}

	settings, verr := ResolveSettings(cliCtx, apr)
	if verr != nil {
		return HandleVErrAndExitCode(verr, usage)
	}
	lgr := BuildLogger(cliCtx, settings)

	if apr.Contains(cli.RemoteFlag) {
		if err := settings.ValidateCredentials(); err != nil {
			return HandleVErrAndExitCode(errhand.VerboseErrorFromError(err), usage)
		}
		return HandleVErrAndExitCode(listRemoteTables(ctx, settings, lgr), usage)
	}

	if settings.Database.Path == "" {
		verr = errhand.BuildDError("error: no database path given. Use --db or set database.path in the config file").SetPrintUsage().Build()
		return HandleVErrAndExitCode(verr, usage)
	}
	return HandleVErrAndExitCode(listLocalTables(ctx, settings.Database.Path, apr.Contains(cli.AlphaFlag), lgr), usage)
}

func listLocalTables(ctx context.Context, path string, alpha bool, lgr *logrus.Entry) errhand.VerboseError {
	src, err := sqlite.Open(path, true, lgr.WithField("component", "sqlite"))
	if err != nil {
		return errhand.BuildDError("error: could not open %s", path).AddCause(err).Build()
	}
	defer src.Close()

	var names []string
	if alpha {
		names, err = src.TablesAlphabetical(ctx)
	} else {
		names, err = src.Tables(ctx)
	}
	if err != nil {
		return errhand.BuildDError("error: could not list tables").AddCause(err).Build()
	}

	order := "sync order"
	if alpha {
		order = "alphabetical"
	}
	cli.Printf("Tables in %s (%s):\n", path, order)

	var totalRows int64
	for _, name := range names {
		count, err := src.RowCount(ctx, name)
		if err != nil {
			return errhand.BuildDError("error: could not count rows in %s", name).AddCause(err).Build()
		}
		totalRows += count
		cli.Printf("\t%-32s %12s rows\n", name, humanize.Comma(count))
	}

	size, err := src.DatabaseSize(ctx)
	if err != nil {
		return errhand.BuildDError("error: could not read database size").AddCause(err).Build()
	}
	cli.Println()
	cli.Printf("%d tables, %s rows, %s on disk\n", len(names), humanize.Comma(totalRows), humanize.IBytes(uint64(size)))
	return nil
}

func listRemoteTables(ctx context.Context, settings *config.Settings, lgr *logrus.Entry) errhand.VerboseError {
	remote := engine.NewRemote(settings, lgr.WithField("component", "d1"))
	defer remote.Close()

	info, err := remote.GetDatabaseInfo(ctx)
	if err != nil {
		return errhand.BuildDError("error: could not reach the remote database").AddCause(err).Build()
	}

	names, err := remote.Tables(ctx)
	if err != nil {
		return errhand.BuildDError("error: could not list remote tables").AddCause(err).Build()
	}

	cli.Printf("Tables in %s (remote):\n", info.Name)

	var totalRows int64
	for _, name := range names {
		count, err := remote.TableCount(ctx, name)
		if err != nil {
			return errhand.BuildDError("error: could not count rows in %s", name).AddCause(err).Build()
		}
		totalRows += count
		cli.Printf("\t%-32s %12s rows\n", name, humanize.Comma(count))
	}

	cli.Println()
	cli.Printf("%d tables, %s rows, %s remote size\n", len(names), humanize.Comma(totalRows), humanize.IBytes(uint64(info.FileSize)))
	return nil
}
