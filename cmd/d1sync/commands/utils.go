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

// Package commands implements the d1-sync subcommands.
package commands

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/dolthub/d1-sync/cmd/d1sync/cli"
	"github.com/dolthub/d1-sync/cmd/d1sync/errhand"
	"github.com/dolthub/d1-sync/libraries/synccore/config"
	"github.com/dolthub/d1-sync/libraries/utils/argparser"
)

// DefaultConfigFile is loaded from the working directory when present and no
// --config flag names another file.
const DefaultConfigFile = "d1-sync.toml"

// ParseArgsOrPrintHelp parses args against ap, printing help or the parse
// error as appropriate. When terminate is true the command should return
// status without doing any further work.
func ParseArgsOrPrintHelp(ap *argparser.ArgParser, commandStr string, args []string, docContent cli.CommandDocumentationContent) (apr *argparser.ArgParseResults, usage cli.UsagePrinter, terminate bool, status int) {
	help, usage := cli.HelpAndUsagePrinters(cli.CommandDocsForCommandString(commandStr, docContent, ap))
	apr, err := ap.Parse(args)
	if err != nil {
		if err != argparser.ErrHelp {
			cli.PrintErrln(err.Error())
			return nil, usage, true, 1
		}
		help()
		return nil, usage, true, 0
	}
	return apr, usage, false, 0
}

// HandleVErrAndExitCode prints verr for the user and translates it into the
// process exit code. A nil verr is success.
func HandleVErrAndExitCode(verr errhand.VerboseError, usage cli.UsagePrinter) int {
	if verr != nil {
		if msg := verr.Verbose(); strings.TrimSpace(msg) != "" {
			cli.PrintErrln(msg)
		}

		if verr.ShouldPrintUsage() && usage != nil {
			usage()
		}

		return 1
	}

	return 0
}

// ResolveSettings builds the effective settings for one command invocation.
// Later sources win: tier defaults, then the config file, then the named
// profile, then D1_SYNC_ environment variables, then flags. Flags are read
// from the command's own results first and the global arguments second, so
// `d1-sync -v push` and `d1-sync push -v` mean the same thing.
func ResolveSettings(cliCtx cli.CliContext, apr *argparser.ArgParseResults) (*config.Settings, errhand.VerboseError) {
	globals := cliCtx.GlobalArgs()

	s := config.DefaultSettings(config.TierFree)

	cfgPath, explicit := stringFlag(apr, globals, cli.ConfigFileParam)
	if !explicit {
		if exists, isDir := cliCtx.FS().Exists(DefaultConfigFile); exists && !isDir {
			cfgPath = DefaultConfigFile
		}
	}
	if cfgPath != "" {
		loaded, err := config.LoadFile(cliCtx.FS(), cfgPath)
		if err != nil {
			return nil, errhand.BuildDError("error: failed to load config file %s", cfgPath).AddCause(err).Build()
		}
		s = loaded
	}

	if name, ok := stringFlag(apr, globals, cli.ProfileParam); ok {
		if verr := applyProfile(cliCtx, s, name); verr != nil {
			return nil, verr
		}
	}

	if err := config.ApplyEnv(s, cliCtx.LookupEnv); err != nil {
		return nil, errhand.BuildDError("error: invalid environment configuration").AddCause(err).Build()
	}

	applyFlagOverrides(s, apr, globals)

	if err := s.Validate(); err != nil {
		return nil, errhand.BuildDError("error: invalid configuration").AddCause(err).Build()
	}

	return s, nil
}

// applyFlagOverrides copies flag values onto s. The tier flag goes first so
// the limits it rebases don't clobber later overrides.
func applyFlagOverrides(s *config.Settings, apr, globals *argparser.ArgParseResults) {
	if boolFlag(apr, globals, cli.PaidTierFlag) {
		s.Tier = config.TierPaid
		s.Limits = config.LimitsForTier(config.TierPaid)
	}

	if v, ok := apr.GetValue(cli.DBParam); ok {
		s.Database.Path = v
	}
	if v, ok := apr.GetValue(cli.AccountIDParam); ok {
		s.Database.AccountID = v
	}
	if v, ok := apr.GetValue(cli.DatabaseParam); ok {
		s.Database.DatabaseID = v
	}
	if v, ok := apr.GetValue(cli.TokenParam); ok {
		s.Database.APIToken = v
	}
	if v, ok := apr.GetValue(cli.TablesParam); ok {
		s.Sync.Tables = splitTableList(v)
	}
	if v, ok := apr.GetValue(cli.ExcludeParam); ok {
		s.Sync.ExcludeTables = splitTableList(v)
	}
	if n, ok := apr.GetInt(cli.BatchSizeParam); ok {
		s.Sync.BatchSizeOverride = n
	}
	if apr.Contains(cli.DryRunFlag) {
		s.Sync.DryRun = true
	}
	if apr.Contains(cli.OverwriteFlag) {
		s.Sync.Overwrite = true
	}
	if apr.Contains(cli.NoVerifyFlag) {
		s.Sync.VerifyAfterSync = false
	}
	if apr.Contains(cli.DropFlag) {
		s.Sync.DropBeforeSync = true
	}
	if apr.Contains(cli.NoSchemaFlag) {
		s.Sync.SyncSchema = false
	}
	if apr.Contains(cli.WithIndexesFlag) {
		s.Sync.WithIndexes = true
	}
	if v, ok := apr.GetValue(cli.StateParam); ok {
		s.Sync.StateFile = v
	}
	if apr.Contains(cli.NoResumeFlag) {
		s.Sync.Resume = false
	}
	if n, ok := apr.GetInt(cli.LimitParam); ok {
		s.Sync.Limit = int64(n)
	}
	if n, ok := apr.GetInt(cli.OffsetParam); ok {
		s.Sync.Offset = int64(n)
	}
	if apr.Contains(cli.RetryRowsFlag) {
		s.Sync.RetryFailedRows = true
	}
	if apr.Contains(cli.BulkImportFlag) {
		s.Sync.BulkImport = true
	}

	switch n := flagCount(apr, globals, cli.VerboseFlag); {
	case n >= 2:
		s.Logging.Level = "trace"
	case n == 1:
		s.Logging.Level = "debug"
	}
	if boolFlag(apr, globals, cli.QuietFlag) {
		s.Logging.Level = "warning"
	}
	if boolFlag(apr, globals, cli.JSONLogFlag) {
		s.Logging.Format = "json"
	}
}

// BuildLogger applies the logging settings to the context's root logger and
// returns the entry commands hand to the engine.
func BuildLogger(cliCtx cli.CliContext, s *config.Settings) *logrus.Entry {
	lgr := cliCtx.Logger()
	root := lgr.Logger

	level, err := logrus.ParseLevel(s.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	root.SetLevel(level)

	switch s.Logging.Format {
	case "json":
		root.SetFormatter(&logrus.JSONFormatter{})
	case "simple":
		root.SetFormatter(&logrus.TextFormatter{DisableColors: true, DisableTimestamp: true})
	default:
		root.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if s.Logging.File != "" {
		f, err := os.OpenFile(s.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			lgr.WithError(err).Warn("could not open log file, logging to stderr")
		} else {
			root.SetOutput(f)
		}
	}

	return lgr
}

// stringFlag reads a string option from the command's results, falling back
// to the global arguments.
func stringFlag(apr, globals *argparser.ArgParseResults, name string) (string, bool) {
	if v, ok := apr.GetValue(name); ok {
		return v, true
	}
	if globals != nil {
		if v, ok := globals.GetValue(name); ok {
			return v, true
		}
	}
	return "", false
}

func boolFlag(apr, globals *argparser.ArgParseResults, name string) bool {
	if apr.Contains(name) {
		return true
	}
	return globals != nil && globals.Contains(name)
}

func flagCount(apr, globals *argparser.ArgParseResults, name string) int {
	n := 0
	if c, ok := apr.GetFlagCount(name); ok {
		n += c
	}
	if globals != nil {
		if c, ok := globals.GetFlagCount(name); ok {
			n += c
		}
	}
	return n
}

// splitTableList turns the argparser's comma-joined list value into clean
// table names.
func splitTableList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
