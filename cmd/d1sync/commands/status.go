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
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/dolthub/d1-sync/cmd/d1sync/cli"
	"github.com/dolthub/d1-sync/cmd/d1sync/errhand"
	"github.com/dolthub/d1-sync/libraries/synccore/state"
	"github.com/dolthub/d1-sync/libraries/utils/argparser"
)

var statusDocs = cli.CommandDocumentationContent{
	ShortDesc: "Show the checkpoint left by the last push.",
	LongDesc: `Reads the checkpoint file the last push wrote and reports its run, per-table progress and recorded row failures. The checkpoint lives next to the database by default; {{.EmphasisLeft}}--state{{.EmphasisRight}} points at another location.

{{.EmphasisLeft}}--clear{{.EmphasisRight}} deletes the checkpoint and the failed-row sidecar so the next push starts fresh.`,
	Synopsis: []string{
		"--db {{.LessThan}}path{{.GreaterThan}} [--clear]",
		"--state {{.LessThan}}file{{.GreaterThan}}",
	},
}

type StatusCmd struct{}

var _ cli.Command = StatusCmd{}

func (cmd StatusCmd) Name() string {
	return "status"
}

func (cmd StatusCmd) Description() string {
	return "Show the checkpoint left by the last push."
}

func (cmd StatusCmd) Docs() *cli.CommandDocumentation {
	return cli.NewCommandDocumentation(statusDocs, cmd.ArgParser())
}

func (cmd StatusCmd) ArgParser() *argparser.ArgParser {
	ap := cli.CreateConnectionArgParser(cmd.Name(), 0)
	ap.SupportsString(cli.StateParam, "", "file", "Checkpoint file location. Defaults to .d1-sync-state.json next to the database.")
	ap.SupportsFlag(cli.ClearFlag, "", "Delete the checkpoint and the failed-row sidecar.")
	return ap
}

func (cmd StatusCmd) Exec(ctx context.Context, commandStr string, args []string, cliCtx cli.CliContext) int {
	apr, usage, terminate, status := ParseArgsOrPrintHelp(cmd.ArgParser(), commandStr, args, statusDocs)
	if terminate {
		return status
	}

	settings, verr := ResolveSettings(cliCtx, apr)
	if verr != nil {
		return HandleVErrAndExitCode(verr, usage)
	}
	lgr := BuildLogger(cliCtx, settings)

	states := state.NewManager(cliCtx.FS(), settings.StateFilePath(), settings.FailedRowsPath(),
		lgr.WithField("component", "state"))

	if apr.Contains(cli.ClearFlag) {
		if err := states.Clear(); err != nil {
			return HandleVErrAndExitCode(errhand.BuildDError("error: could not clear sync state").AddCause(err).Build(), usage)
		}
		cli.Println("Sync state cleared.")
		return 0
	}

	st := states.Load()
	if st == nil {
		cli.Println("No sync state found. Run a push or pull operation first.")
		return 0
	}

	printSyncState(st, settings.FailedRowsPath())
	return 0
}

func printSyncState(st *state.SyncState, failedRowsPath string) {
	cli.Printf("Last sync: %s (%s)\n", st.Operation, formatSyncStatus(st.Status))
	cli.Printf("  run id:      %s\n", st.RunID)
	cli.Printf("  source:      %s\n", st.Source)
	cli.Printf("  destination: %s\n", st.Destination)
	cli.Printf("  started:     %s (%s)\n", st.StartedAt.Local().Format("2006-01-02 15:04:05"), humanize.Time(st.StartedAt))
	cli.Printf("  updated:     %s\n", st.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	cli.Printf("  progress:    %s rows processed, %s failed\n",
		humanize.Comma(st.TotalProcessed), humanize.Comma(st.TotalFailed))

	if len(st.Tables) > 0 {
		names := make([]string, 0, len(st.Tables))
		for name := range st.Tables {
			names = append(names, name)
		}
		sort.Strings(names)

		cli.Println()
		cli.Println("Table progress:")
		for _, name := range names {
			tp := st.Tables[name]
			line := fmt.Sprintf("\t%-32s %s %12s/%s",
				name, formatTableStatus(tp.Status), humanize.Comma(tp.ProcessedRows), humanize.Comma(tp.TotalRows))
			if tp.FailedRows > 0 {
				line += fmt.Sprintf("    %s failed", humanize.Comma(tp.FailedRows))
			}
			cli.Println(line)
		}
	}

	if len(st.FailedRows) > 0 {
		cli.Println()
		cli.Printf("Failed rows: %d recorded (%s)\n", len(st.FailedRows), failedRowsPath)
	}
}

func formatSyncStatus(s state.SyncStatus) string {
	switch s {
	case state.SyncCompleted:
		return color.GreenString(string(s))
	case state.SyncFailed:
		return color.RedString(string(s))
	case state.SyncInterrupted:
		return color.YellowString(string(s))
	default:
		return string(s)
	}
}

// formatTableStatus pads before coloring so the escape codes don't throw
// off column alignment.
func formatTableStatus(s state.TableStatus) string {
	padded := fmt.Sprintf("%-12s", string(s))
	switch s {
	case state.TableCompleted:
		return color.GreenString(padded)
	case state.TableFailed:
		return color.RedString(padded)
	case state.TableInProgress:
		return color.YellowString(padded)
	default:
		return padded
	}
}
