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
	"github.com/dolthub/d1-sync/libraries/utils/argparser"
)

var versionDocs = cli.CommandDocumentationContent{
	ShortDesc: "Print the d1-sync version.",
	LongDesc:  "Prints the version of the running d1-sync binary.",
	Synopsis:  []string{""},
}

type VersionCmd struct {
	VersionStr string
}

var _ cli.Command = VersionCmd{}

func (cmd VersionCmd) Name() string {
	return "version"
}

func (cmd VersionCmd) Description() string {
	return "Print the d1-sync version."
}

func (cmd VersionCmd) Docs() *cli.CommandDocumentation {
	return cli.NewCommandDocumentation(versionDocs, cmd.ArgParser())
}

func (cmd VersionCmd) ArgParser() *argparser.ArgParser {
	return argparser.NewArgParserWithMaxArgs(cmd.Name(), 0)
}

func (cmd VersionCmd) Exec(ctx context.Context, commandStr string, args []string, cliCtx cli.CliContext) int {
	_, _, terminate, status := ParseArgsOrPrintHelp(cmd.ArgParser(), commandStr, args, versionDocs)
	if terminate {
		return status
	}

	cli.Println("d1-sync version", cmd.VersionStr)
	return 0
}
