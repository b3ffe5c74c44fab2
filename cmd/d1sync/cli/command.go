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

// Package cli is the command framework for the d1-sync binary: the Command
// interface and dispatcher, argument helpers, help rendering, and terminal
// output.
package cli

import (
	"context"
	"strings"

	"github.com/fatih/color"

	"github.com/dolthub/d1-sync/libraries/utils/argparser"
)

func isHelp(str string) bool {
	switch {
	case str == "-h":
		return true
	case strings.TrimLeft(str, "- ") == "help":
		return true
	}

	return false
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if isHelp(arg) {
			return true
		}
	}
	return false
}

// Command is the interface which defines a d1-sync cli command
type Command interface {
	// Name returns the name of the command. This is what is used on the command line to invoke it
	Name() string
	// Description returns a description of the command
	Description() string
	// Docs returns the documentation for this command, or nil if it has none
	Docs() *CommandDocumentation
	// ArgParser returns the arg parser for this command
	ArgParser() *argparser.ArgParser
	// Exec executes the command
	Exec(ctx context.Context, commandStr string, args []string, cliCtx CliContext) int
}

// HiddenCommand is an optional interface that can be implemented so that a
// command is left out of the help text
type HiddenCommand interface {
	// Hidden should return true if this command should be hidden from the help text
	Hidden() bool
}

// SubCommandHandler is a command implementation which holds subcommands which
// can be called
type SubCommandHandler struct {
	name        string
	description string
	Subcommands []Command
}

var _ Command = SubCommandHandler{}

// NewSubCommandHandler returns a new SubCommandHandler instance
func NewSubCommandHandler(name, description string, subcommands []Command) SubCommandHandler {
	return SubCommandHandler{name, description, subcommands}
}

func (hc SubCommandHandler) Name() string {
	return hc.name
}

func (hc SubCommandHandler) Description() string {
	return hc.description
}

func (hc SubCommandHandler) Docs() *CommandDocumentation {
	return nil
}

func (hc SubCommandHandler) ArgParser() *argparser.ArgParser {
	return nil
}

func (hc SubCommandHandler) Exec(ctx context.Context, commandStr string, args []string, cliCtx CliContext) int {
	if len(args) < 1 {
		hc.PrintUsage(commandStr)
		return 1
	}

	subCommandStr := strings.ToLower(strings.TrimSpace(args[0]))
	for _, cmd := range hc.Subcommands {
		lwrName := strings.ToLower(cmd.Name())

		if lwrName == subCommandStr {
			return cmd.Exec(ctx, commandStr+" "+subCommandStr, args[1:], cliCtx)
		}
	}

	if !isHelp(subCommandStr) {
		PrintErrln(color.RedString("Unknown Command " + subCommandStr))
	}

	hc.PrintUsage(commandStr)
	return 1
}

func (hc SubCommandHandler) PrintUsage(commandStr string) {
	Println("Valid commands for", commandStr, "are")

	for _, cmd := range hc.Subcommands {
		if hiddenCmd, ok := cmd.(HiddenCommand); ok {
			if hiddenCmd.Hidden() {
				continue
			}
		}

		Printf("    %16s - %s\n", cmd.Name(), cmd.Description())
	}
}
