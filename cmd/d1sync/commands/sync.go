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
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/dolthub/d1-sync/cmd/d1sync/cli"
	"github.com/dolthub/d1-sync/cmd/d1sync/errhand"
	"github.com/dolthub/d1-sync/libraries/synccore/engine"
	"github.com/dolthub/d1-sync/libraries/synccore/state"
	"github.com/dolthub/d1-sync/libraries/utils/argparser"
)

const maxShownErrors = 10

// runSync drives a push or pull end to end: resolve settings, build the
// engine, render progress, report the outcome.
func runSync(ctx context.Context, cliCtx cli.CliContext, apr *argparser.ArgParseResults, usage cli.UsagePrinter, op state.Operation) int {
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

	quiet := boolFlag(apr, cliCtx.GlobalArgs(), cli.QuietFlag)
	if settings.Sync.DryRun && !quiet {
		cli.Println(color.YellowString("Dry run: no changes will be made."))
	}

	eng, err := engine.New(settings, cliCtx.FS(), lgr)
	if err != nil {
		return HandleVErrAndExitCode(errhand.VerboseErrorFromError(err), usage)
	}
	defer eng.Close()

	var finish func(engine.Stats)
	if cli.OutputIsTTY() && !quiet {
		finish = watchProgress(eng, op)
	}

	var stats engine.Stats
	if op == state.OpPush {
		stats, err = eng.Push(ctx)
	} else {
		stats, err = eng.Pull(ctx)
	}
	if finish != nil {
		finish(stats)
	}

	if err != nil {
		verr = errhand.BuildDError("error: %s failed", op).AddCause(err).Build()
		return HandleVErrAndExitCode(verr, usage)
	}

	if !quiet {
		printRunSummary(stats)
	}
	printRunErrors(stats)

	switch {
	case stats.Status == state.SyncInterrupted:
		cli.Println(color.YellowString("%s interrupted, checkpoint saved. Re-run the same command to resume.", titleOp(op)))
		return 1
	case stats.Failed():
		if stats.RowsFailed > 0 {
			cli.PrintErrln(color.YellowString("Failed rows saved to: %s", settings.FailedRowsPath()))
		}
		cli.PrintErrln(color.RedString("%s completed with errors.", titleOp(op)))
		return 1
	default:
		if !quiet {
			cli.Println(color.GreenString("%s completed successfully!", titleOp(op)))
		}
		return 0
	}
}

func titleOp(op state.Operation) string {
	s := string(op)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func printRunSummary(st engine.Stats) {
	cli.Println()
	cli.Printf("%s finished in %s\n", titleOp(st.Operation), st.Duration.Round(time.Millisecond))
	cli.Printf("  tables: %d/%d\n", st.TablesDone, st.TablesTotal)
	cli.Printf("  rows:   %s processed, %s failed\n", humanize.Comma(st.RowsProcessed), humanize.Comma(st.RowsFailed))
	cli.Printf("  data:   %s in %s chunks\n", humanize.IBytes(uint64(st.BytesSent)), humanize.Comma(st.ChunksSent))
	cli.Printf("  rate:   %.0f rows/s\n", st.RowsPerSecond())
}

func printRunErrors(st engine.Stats) {
	if len(st.Errors) == 0 {
		return
	}
	cli.PrintErrln("")
	cli.PrintErrln(color.YellowString("%d errors occurred:", len(st.Errors)))
	for i, msg := range st.Errors {
		if i == maxShownErrors {
			cli.PrintErrf("  ... and %d more\n", len(st.Errors)-maxShownErrors)
			break
		}
		cli.PrintErrln("  - " + msg)
	}
}
