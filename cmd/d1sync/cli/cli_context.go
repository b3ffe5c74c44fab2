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

	"github.com/sirupsen/logrus"

	"github.com/dolthub/d1-sync/cmd/d1sync/errhand"
	"github.com/dolthub/d1-sync/libraries/utils/argparser"
	"github.com/dolthub/d1-sync/libraries/utils/filesys"
)

// CliContext is the process state every command receives alongside its own
// arguments: the parsed global flags, the filesystem, the root logger, and
// the environment.
type CliContext interface {
	// GlobalArgs returns the results of parsing the flags given before the
	// subcommand.
	GlobalArgs() *argparser.ArgParseResults

	// FS returns the filesystem commands read and write through.
	FS() filesys.Filesys

	// Logger returns the root logger entry. Commands derive component
	// loggers from it with WithField.
	Logger() *logrus.Entry

	// LookupEnv reads one environment variable. It is os.LookupEnv outside
	// of tests.
	LookupEnv(name string) (string, bool)

	// Version returns the build's version string.
	Version() string
}

// NewCliContext builds the context commands run against. A nil lookup means
// the process environment.
func NewCliContext(globals *argparser.ArgParseResults, fs filesys.Filesys, lgr *logrus.Entry, lookup func(string) (string, bool), version string) (CliContext, errhand.VerboseError) {
	if globals == nil {
		return nil, errhand.BuildDError("invalid command line context: no global arguments").Build()
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}

	return &cliContext{
		globals: globals,
		fs:      fs,
		lgr:     lgr,
		lookup:  lookup,
		version: version,
	}, nil
}

type cliContext struct {
	globals *argparser.ArgParseResults
	fs      filesys.Filesys
	lgr     *logrus.Entry
	lookup  func(string) (string, bool)
	version string
}

func (ctx *cliContext) GlobalArgs() *argparser.ArgParseResults {
	return ctx.globals
}

func (ctx *cliContext) FS() filesys.Filesys {
	return ctx.fs
}

func (ctx *cliContext) Logger() *logrus.Entry {
	return ctx.lgr
}

func (ctx *cliContext) LookupEnv(name string) (string, bool) {
	return ctx.lookup(name)
}

func (ctx *cliContext) Version() string {
	return ctx.version
}
