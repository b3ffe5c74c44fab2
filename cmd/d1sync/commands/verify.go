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
	"io"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/dolthub/d1-sync/cmd/d1sync/cli"
	"github.com/dolthub/d1-sync/cmd/d1sync/errhand"
	"github.com/dolthub/d1-sync/libraries/synccore/d1"
	"github.com/dolthub/d1-sync/libraries/synccore/engine"
	"github.com/dolthub/d1-sync/libraries/synccore/integrity"
	"github.com/dolthub/d1-sync/libraries/synccore/sqlite"
	"github.com/dolthub/d1-sync/libraries/synccore/val"
	"github.com/dolthub/d1-sync/libraries/utils/argparser"
)

// Row-level mismatch classification loads both sides into memory, so it is
// skipped for tables above this row count.
const maxMismatchDetailRows = 100000

// How many row differences to print per table before eliding the rest.
const maxMismatchDetail = 5

var verifyDocs = cli.CommandDocumentationContent{
	ShortDesc: "Compare the local database against the remote.",
	LongDesc: `Counts rows in every table on both sides and reports the tables that differ. With {{.EmphasisLeft}}--checksum{{.EmphasisRight}} every row is paged through the integrity checker on both sides and table checksums are compared as well; differing tables are then classified row by row, keyed by primary key, when small enough to hold in memory.

The command exits nonzero when any table differs.`,
	Synopsis: []string{
		"--db {{.LessThan}}path{{.GreaterThan}} [--tables {{.LessThan}}names{{.GreaterThan}}] [--checksum]",
	},
}

type VerifyCmd struct{}

var _ cli.Command = VerifyCmd{}

func (cmd VerifyCmd) Name() string {
	return "verify"
}

func (cmd VerifyCmd) Description() string {
	return "Compare the local database against the remote."
}

func (cmd VerifyCmd) Docs() *cli.CommandDocumentation {
	return cli.NewCommandDocumentation(verifyDocs, cmd.ArgParser())
}

func (cmd VerifyCmd) ArgParser() *argparser.ArgParser {
	ap := cli.CreateConnectionArgParser(cmd.Name(), 0)
	ap.SupportsStringList(cli.TablesParam, "t", "table", "Verify only the named tables.")
	ap.SupportsStringList(cli.ExcludeParam, "x", "table", "Skip the named tables.")
	ap.SupportsFlag(cli.ChecksumFlag, "", "Compare table checksums as well as row counts.")
	return ap
}

func (cmd VerifyCmd) Exec(ctx context.Context, commandStr string, args []string, cliCtx cli.CliContext) int {
	apr, usage, terminate, status := ParseArgsOrPrintHelp(cmd.ArgParser(), commandStr, args, verifyDocs)
	if terminate {
		return status
	}

	settings, verr := ResolveSettings(cliCtx, apr)
	if verr != nil {
		return HandleVErrAndExitCode(verr, usage)
	}
	if settings.Database.Path == "" {
		verr = errhand.BuildDError("error: no database path given. Use --db or set database.path in the config file").SetPrintUsage().Build()
		return HandleVErrAndExitCode(verr, usage)
	}
	if err := settings.ValidateCredentials(); err != nil {
		return HandleVErrAndExitCode(errhand.VerboseErrorFromError(err), usage)
	}
	lgr := BuildLogger(cliCtx, settings)

	var checker *integrity.Checker
	if apr.Contains(cli.ChecksumFlag) {
		var err error
		checker, err = integrity.NewChecker(integrity.Algorithm(settings.Sync.ChecksumAlgorithm))
		if err != nil {
			return HandleVErrAndExitCode(errhand.VerboseErrorFromError(err), usage)
		}
	}

	src, err := sqlite.Open(settings.Database.Path, true, lgr.WithField("component", "sqlite"))
	if err != nil {
		verr = errhand.BuildDError("error: could not open %s", settings.Database.Path).AddCause(err).Build()
		return HandleVErrAndExitCode(verr, usage)
	}
	defer src.Close()

	remote := engine.NewRemote(settings, lgr.WithField("component", "d1"))
	defer remote.Close()

	names, err := src.TablesAlphabetical(ctx)
	if err != nil {
		return HandleVErrAndExitCode(errhand.BuildDError("error: could not list tables").AddCause(err).Build(), usage)
	}
	names = filterNames(names, settings.Sync.Tables, settings.Sync.ExcludeTables)
	if len(names) == 0 {
		cli.Println("No tables to verify.")
		return 0
	}

	cli.Printf("Verifying %s against the remote database (%d tables)\n\n", settings.Database.Path, len(names))

	differ := 0
	for _, table := range names {
		ok, verr := verifyTable(ctx, src, remote, checker, table, settings.BatchSize())
		if verr != nil {
			return HandleVErrAndExitCode(verr, usage)
		}
		if !ok {
			differ++
		}
	}

	cli.Println()
	if differ > 0 {
		cli.PrintErrln(color.RedString("%d of %d tables differ.", differ, len(names)))
		return 1
	}
	cli.Println(color.GreenString("All %d tables match.", len(names)))
	return 0
}

// verifyTable compares one table and prints its verdict line. A remote
// error scoped to the table counts as a difference rather than ending the
// whole run.
func verifyTable(ctx context.Context, src *sqlite.Connector, remote *d1.Client, checker *integrity.Checker, table string, pageSize int) (bool, errhand.VerboseError) {
	srcCount, err := src.RowCount(ctx, table)
	if err != nil {
		return false, errhand.BuildDError("error: could not count rows in %s", table).AddCause(err).Build()
	}

	dstCount, err := remote.TableCount(ctx, table)
	if err != nil {
		cli.Printf("\t%-32s %s\n", table, color.RedString("remote: %s", err.Error()))
		return false, nil
	}

	if checker == nil {
		if srcCount == dstCount {
			cli.Printf("\t%-32s %12s rows   %s\n", table, humanize.Comma(srcCount), color.GreenString("ok"))
			return true, nil
		}
		cli.Printf("\t%-32s %12s != %s rows   %s\n",
			table, humanize.Comma(srcCount), humanize.Comma(dstCount), color.RedString("MISMATCH"))
		return false, nil
	}

	collect := srcCount <= maxMismatchDetailRows && dstCount <= maxMismatchDetailRows
	columns, err := src.Columns(ctx, table)
	if err != nil {
		return false, errhand.BuildDError("error: could not read columns of %s", table).AddCause(err).Build()
	}

	srcSum, srcRows, err := scanLocal(ctx, src, checker, table, columns, pageSize, collect)
	if err != nil {
		return false, errhand.BuildDError("error: could not read %s", table).AddCause(err).Build()
	}
	dstSum, dstRows, err := scanRemote(ctx, remote, checker, table, columns, pageSize, collect)
	if err != nil {
		cli.Printf("\t%-32s %s\n", table, color.RedString("remote: %s", err.Error()))
		return false, nil
	}

	if srcCount == dstCount && srcSum == dstSum {
		cli.Printf("\t%-32s %12s rows   %s   %s\n",
			table, humanize.Comma(srcCount), color.GreenString("ok"), srcSum)
		return true, nil
	}

	cli.Printf("\t%-32s %12s != %s rows   %s\n",
		table, humanize.Comma(srcCount), humanize.Comma(dstCount), color.RedString("MISMATCH"))
	cli.Printf("\t\tchecksums: %s != %s\n", srcSum, dstSum)

	if collect {
		keyIdx := keyColumnIndex(ctx, src, table, columns)
		mismatches := checker.FindMismatches(srcRows, dstRows, keyIdx)
		for i, m := range mismatches {
			if i == maxMismatchDetail {
				cli.Printf("\t\t... and %d more differences\n", len(mismatches)-maxMismatchDetail)
				break
			}
			cli.Printf("\t\t%s key=%s\n", m.Type, m.Key)
		}
	}
	return false, nil
}

func scanLocal(ctx context.Context, src *sqlite.Connector, checker *integrity.Checker, table string, columns []string, pageSize int, collect bool) (string, [][]val.Value, error) {
	it, err := src.IterBatches(ctx, table, checker, sqlite.BatchOpts{BatchSize: pageSize, Columns: columns})
	if err != nil {
		return "", nil, err
	}
	defer it.Close()

	th := checker.NewTableHasher()
	var rows [][]val.Value
	for {
		b, err := it.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", nil, err
		}
		th.AddRows(b.Rows)
		if collect {
			rows = append(rows, b.Rows...)
		}
	}
	return th.Sum(), rows, nil
}

func scanRemote(ctx context.Context, remote *d1.Client, checker *integrity.Checker, table string, columns []string, pageSize int, collect bool) (string, [][]val.Value, error) {
	th := checker.NewTableHasher()
	var rows [][]val.Value
	var offset int64
	for {
		page, err := remote.SelectPage(ctx, table, columns, int64(pageSize), offset)
		if err != nil {
			return "", nil, err
		}
		if len(page) == 0 {
			break
		}
		th.AddRows(page)
		if collect {
			rows = append(rows, page...)
		}
		offset += int64(len(page))
		if len(page) < pageSize {
			break
		}
	}
	return th.Sum(), rows, nil
}

// keyColumnIndex picks the column row differences are keyed by: the first
// primary key column when the table has one, the first column otherwise.
func keyColumnIndex(ctx context.Context, src *sqlite.Connector, table string, columns []string) int {
	pk, err := src.PrimaryKey(ctx, table)
	if err != nil || len(pk) == 0 {
		return 0
	}
	for i, c := range columns {
		if c == pk[0] {
			return i
		}
	}
	return 0
}

func filterNames(names, include, exclude []string) []string {
	var inc map[string]bool
	if len(include) > 0 {
		inc = make(map[string]bool, len(include))
		for _, n := range include {
			inc[n] = true
		}
	}
	exc := make(map[string]bool, len(exclude))
	for _, n := range exclude {
		exc[n] = true
	}

	out := make([]string, 0, len(names))
	for _, n := range names {
		if inc != nil && !inc[n] {
			continue
		}
		if exc[n] {
			continue
		}
		out = append(out, n)
	}
	return out
}
