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

package cli

import (
	"os"

	"github.com/dolthub/d1-sync/libraries/utils/argparser"
)

type HelpPrinter func()
type UsagePrinter func()

// HelpAndUsagePrinters returns closures that print the full help text and
// the short usage text for cmdDoc.
func HelpAndUsagePrinters(cmdDoc CommandDocumentation) (HelpPrinter, UsagePrinter) {
	longDesc, _ := cmdDoc.GetLongDesc(CliFormat)
	synopsis, _ := cmdDoc.GetSynopsis(CliFormat)

	return func() {
			PrintHelpText(cmdDoc.CommandStr, cmdDoc.GetShortDesc(), longDesc, synopsis, cmdDoc.ArgParser)
		}, func() {
			PrintUsage(cmdDoc.CommandStr, synopsis, cmdDoc.ArgParser)
		}
}

// ParseArgsOrDie parses args, and prints help and exits on -h/--help or an
// argument error. Commands that want to keep control of the exit path use
// ParseArgsOrPrintHelp in the commands package instead.
func ParseArgsOrDie(ap *argparser.ArgParser, args []string, helpPrt HelpPrinter) *argparser.ArgParseResults {
	apr, err := ap.Parse(args)

	if err != nil {
		if err != argparser.ErrHelp {
			PrintErrln(err.Error())
			os.Exit(1)
		}

		// -h or --help
		if helpPrt != nil {
			helpPrt()
		}
		os.Exit(0)
	}

	return apr
}
