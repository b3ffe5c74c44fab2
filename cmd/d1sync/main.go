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

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/dolthub/d1-sync/cmd/d1sync/cli"
	"github.com/dolthub/d1-sync/cmd/d1sync/commands"
	"github.com/dolthub/d1-sync/libraries/utils/argparser"
	"github.com/dolthub/d1-sync/libraries/utils/filesys"
)

// Version is the released d1-sync version string.
const Version = "0.5.0"

var syncSubCommands = []cli.Command{
	commands.PushCmd{},
	commands.PullCmd{},
	commands.TablesCmd{},
	commands.StatusCmd{},
	commands.VerifyCmd{},
	commands.ConfigCmd{},
	commands.SlugsCmd{},
	commands.VersionCmd{VersionStr: Version},
}

var globalArgParser = cli.CreateGlobalArgParser("d1-sync")

var syncCommand = cli.NewSubCommandHandler("d1-sync", "SQLite to Cloudflare D1 one-way sync.", syncSubCommands)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(runMain(ctx, os.Args[1:]))
}

func runMain(ctx context.Context, args []string) int {
	// --version among the global flags short-circuits before dispatch.
	for _, a := range args {
		if a == "--version" {
			cli.Println("d1-sync version", Version)
			return 0
		}
		if len(a) == 0 || a[0] != '-' {
			break
		}
	}

	globalArgs, remaining, err := globalArgParser.ParseGlobalArgs(args)
	if err == argparser.ErrHelp {
		syncCommand.PrintUsage("d1-sync")
		return 0
	}
	if err != nil {
		cli.PrintErrln(err.Error())
		return 1
	}

	lgr := newRootLogger()
	cliCtx, verr := cli.NewCliContext(globalArgs, filesys.LocalFS, lgr, nil, Version)
	if verr != nil {
		return commands.HandleVErrAndExitCode(verr, nil)
	}

	return syncCommand.Exec(ctx, "d1-sync", remaining, cliCtx)
}

// newRootLogger builds the process logger: human-readable text on stderr
// until a command applies the configured level and format.
func newRootLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(cli.CliErr)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return logrus.NewEntry(l)
}
