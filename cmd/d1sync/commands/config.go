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
	"os"
	"path/filepath"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/dolthub/d1-sync/cmd/d1sync/cli"
	"github.com/dolthub/d1-sync/cmd/d1sync/errhand"
	"github.com/dolthub/d1-sync/libraries/synccore/config"
	"github.com/dolthub/d1-sync/libraries/utils/argparser"
)

const (
	addProfileID    = "add"
	removeProfileID = "remove"
	listProfileID   = "list"

	profilesFile = "profiles.json"
)

var configDocs = cli.CommandDocumentationContent{
	ShortDesc: "Inspect and manage configuration.",
	LongDesc: `With {{.EmphasisLeft}}--show{{.EmphasisRight}}, prints the effective configuration after the config file, environment and flags have been applied, with secrets masked. With {{.EmphasisLeft}}--init{{.EmphasisRight}}, writes a commented starter configuration file.

{{.EmphasisLeft}}d1-sync config profile add {{.LessThan}}name{{.GreaterThan}}{{.EmphasisRight}} saves the connection flags given alongside it as a named profile, {{.EmphasisLeft}}remove{{.EmphasisRight}} deletes one, and {{.EmphasisLeft}}list{{.EmphasisRight}} shows them all. Profiles live in {{.EmphasisLeft}}~/.d1-sync/profiles.json{{.EmphasisRight}} and are applied with the global {{.EmphasisLeft}}--profile{{.EmphasisRight}} flag.`,
	Synopsis: []string{
		"[--show | --init [--output {{.LessThan}}file{{.GreaterThan}}]]",
		"profile [add {{.LessThan}}name{{.GreaterThan}} | remove {{.LessThan}}name{{.GreaterThan}} | list]",
	},
}

type ConfigCmd struct{}

var _ cli.Command = ConfigCmd{}

func (cmd ConfigCmd) Name() string {
	return "config"
}

func (cmd ConfigCmd) Description() string {
	return "Inspect and manage configuration."
}

func (cmd ConfigCmd) Docs() *cli.CommandDocumentation {
	return cli.NewCommandDocumentation(configDocs, cmd.ArgParser())
}

func (cmd ConfigCmd) ArgParser() *argparser.ArgParser {
	ap := argparser.NewArgParserWithVariableArgs(cmd.Name())
	ap.SupportsFlag(cli.ShowFlag, "", "Print the effective configuration with secrets masked.")
	ap.SupportsFlag(cli.InitFlag, "", "Write a commented starter configuration file.")
	ap.SupportsString(cli.OutputParam, "o", "file", "Where {{.EmphasisLeft}}--init{{.EmphasisRight}} writes. Defaults to config.toml.")
	ap.SupportsString(cli.ConfigFileParam, "c", "file", "Configuration file {{.EmphasisLeft}}--show{{.EmphasisRight}} starts from.")
	ap.SupportsString(cli.DBParam, "", "path", "SQLite database path to store in a profile.")
	ap.SupportsString(cli.AccountIDParam, "", "id", "Cloudflare account id to store in a profile.")
	ap.SupportsString(cli.DatabaseParam, "d", "id", "D1 database id to store in a profile.")
	ap.SupportsString(cli.TokenParam, "", "token", "API token to store in a profile.")
	ap.SupportsFlag(cli.PaidTierFlag, "", "Store paid-plan limits in the profile.")
	return ap
}

func (cmd ConfigCmd) Exec(ctx context.Context, commandStr string, args []string, cliCtx cli.CliContext) int {
	apr, usage, terminate, status := ParseArgsOrPrintHelp(cmd.ArgParser(), commandStr, args, configDocs)
	if terminate {
		return status
	}

	if apr.NArg() > 0 {
		if apr.Arg(0) != "profile" {
			verr := errhand.BuildDError("error: unknown config subcommand %s", apr.Arg(0)).SetPrintUsage().Build()
			return HandleVErrAndExitCode(verr, usage)
		}
		return execProfile(cliCtx, apr, usage)
	}

	if apr.Contains(cli.InitFlag) {
		return initConfig(cliCtx, apr, usage)
	}
	if apr.Contains(cli.ShowFlag) {
		return showConfig(cliCtx, apr, usage)
	}

	cli.Println("Use --show to view config or --init to create config file.")
	return 0
}

func initConfig(cliCtx cli.CliContext, apr *argparser.ArgParseResults, usage cli.UsagePrinter) int {
	out := apr.GetValueOrDefault(cli.OutputParam, "config.toml")
	if exists, _ := cliCtx.FS().Exists(out); exists {
		verr := errhand.BuildDError("error: %s already exists. Remove it or choose another --output", out).Build()
		return HandleVErrAndExitCode(verr, usage)
	}
	if err := cliCtx.FS().WriteFile(out, []byte(config.StarterTOML), 0644); err != nil {
		verr := errhand.BuildDError("error: could not write %s", out).AddCause(err).Build()
		return HandleVErrAndExitCode(verr, usage)
	}
	cli.Println(color.GreenString("Created config file: %s", out))
	return 0
}

func showConfig(cliCtx cli.CliContext, apr *argparser.ArgParseResults, usage cli.UsagePrinter) int {
	settings, verr := ResolveSettings(cliCtx, apr)
	if verr != nil {
		return HandleVErrAndExitCode(verr, usage)
	}
	masked := settings.Masked()

	cli.Println("Current configuration:")
	cli.Printf("  tier:         %s\n", masked.Tier)
	cli.Printf("  db:           %s\n", valueOrNotSet(masked.Database.Path))
	cli.Printf("  account id:   %s\n", valueOrNotSet(masked.Database.AccountID))
	cli.Printf("  database id:  %s\n", valueOrNotSet(masked.Database.DatabaseID))
	cli.Printf("  api token:    %s\n", valueOrNotSet(masked.Database.APIToken))
	cli.Printf("  batch size:   %d rows\n", masked.BatchSize())
	cli.Printf("  max sql:      %s\n", humanize.IBytes(uint64(masked.Limits.MaxSQLBytes)))
	cli.Printf("  concurrency:  %d batches\n", masked.Limits.ConcurrentBatches)
	cli.Printf("  checksum:     %s\n", masked.Sync.ChecksumAlgorithm)
	cli.Printf("  state file:   %s\n", masked.StateFilePath())
	return 0
}

func valueOrNotSet(v string) string {
	if v == "" {
		return "not set"
	}
	return v
}

// Profile is one saved connection, stored as a member of the profiles.json
// document keyed by its name.
type Profile struct {
	Path       string `json:"path,omitempty"`
	AccountID  string `json:"account-id,omitempty"`
	DatabaseID string `json:"database,omitempty"`
	APIToken   string `json:"token,omitempty"`
	PaidTier   bool   `json:"paid-tier,omitempty"`
}

func (p Profile) String() string {
	b, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	return string(b)
}

func execProfile(cliCtx cli.CliContext, apr *argparser.ArgParseResults, usage cli.UsagePrinter) int {
	switch {
	case apr.NArg() == 1:
		return listProfiles(cliCtx, usage)
	case apr.Arg(1) == listProfileID:
		return listProfiles(cliCtx, usage)
	case apr.Arg(1) == addProfileID:
		return addProfile(cliCtx, apr, usage)
	case apr.Arg(1) == removeProfileID:
		return removeProfile(cliCtx, apr, usage)
	default:
		verr := errhand.BuildDError("error: unknown profile subcommand %s", apr.Arg(1)).SetPrintUsage().Build()
		return HandleVErrAndExitCode(verr, usage)
	}
}

func addProfile(cliCtx cli.CliContext, apr *argparser.ArgParseResults, usage cli.UsagePrinter) int {
	if apr.NArg() != 3 {
		verr := errhand.BuildDError("error: profile add takes exactly one profile name").SetPrintUsage().Build()
		return HandleVErrAndExitCode(verr, usage)
	}
	name := apr.Arg(2)

	path, doc, verr := loadProfilesDoc(cliCtx)
	if verr != nil {
		return HandleVErrAndExitCode(verr, usage)
	}
	if gjson.Get(doc, name).Exists() {
		verr = errhand.BuildDError("error: profile %s already exists. Remove it first or pick another name", name).Build()
		return HandleVErrAndExitCode(verr, usage)
	}

	p := Profile{
		Path:       apr.GetValueOrDefault(cli.DBParam, ""),
		AccountID:  apr.GetValueOrDefault(cli.AccountIDParam, ""),
		DatabaseID: apr.GetValueOrDefault(cli.DatabaseParam, ""),
		APIToken:   apr.GetValueOrDefault(cli.TokenParam, ""),
		PaidTier:   apr.Contains(cli.PaidTierFlag),
	}
	updated, err := sjson.SetRaw(doc, name, p.String())
	if err != nil {
		verr = errhand.BuildDError("error: could not update the profile store").AddCause(err).Build()
		return HandleVErrAndExitCode(verr, usage)
	}
	if verr = writeProfilesDoc(cliCtx, path, updated); verr != nil {
		return HandleVErrAndExitCode(verr, usage)
	}
	cli.Printf("Added profile %s.\n", name)
	return 0
}

func removeProfile(cliCtx cli.CliContext, apr *argparser.ArgParseResults, usage cli.UsagePrinter) int {
	if apr.NArg() != 3 {
		verr := errhand.BuildDError("error: profile remove takes exactly one profile name").SetPrintUsage().Build()
		return HandleVErrAndExitCode(verr, usage)
	}
	name := apr.Arg(2)

	path, doc, verr := loadProfilesDoc(cliCtx)
	if verr != nil {
		return HandleVErrAndExitCode(verr, usage)
	}
	if !gjson.Get(doc, name).Exists() {
		verr = errhand.BuildDError("error: profile %s does not exist", name).Build()
		return HandleVErrAndExitCode(verr, usage)
	}

	updated, err := sjson.Delete(doc, name)
	if err != nil {
		verr = errhand.BuildDError("error: could not update the profile store").AddCause(err).Build()
		return HandleVErrAndExitCode(verr, usage)
	}
	if verr = writeProfilesDoc(cliCtx, path, updated); verr != nil {
		return HandleVErrAndExitCode(verr, usage)
	}
	cli.Printf("Removed profile %s.\n", name)
	return 0
}

func listProfiles(cliCtx cli.CliContext, usage cli.UsagePrinter) int {
	_, doc, verr := loadProfilesDoc(cliCtx)
	if verr != nil {
		return HandleVErrAndExitCode(verr, usage)
	}

	profiles := gjson.Parse(doc).Map()
	if len(profiles) == 0 {
		cli.Println("No profiles.")
		return 0
	}

	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		var p Profile
		if err := json.Unmarshal([]byte(profiles[name].Raw), &p); err != nil {
			cli.Printf("%s: (unreadable)\n", name)
			continue
		}
		cli.Println(name + ":")
		if p.Path != "" {
			cli.Printf("\tdb: %s\n", p.Path)
		}
		if p.AccountID != "" {
			cli.Printf("\taccount-id: %s\n", p.AccountID)
		}
		if p.DatabaseID != "" {
			cli.Printf("\tdatabase: %s\n", p.DatabaseID)
		}
		if p.APIToken != "" {
			cli.Printf("\ttoken: %s\n", maskSecret(p.APIToken))
		}
		if p.PaidTier {
			cli.Println("\tpaid-tier: true")
		}
	}
	return 0
}

// applyProfile overlays the named stored profile onto s. Missing profiles
// are an error so a typoed --profile never silently syncs the wrong target.
func applyProfile(cliCtx cli.CliContext, s *config.Settings, name string) errhand.VerboseError {
	_, doc, verr := loadProfilesDoc(cliCtx)
	if verr != nil {
		return verr
	}
	res := gjson.Get(doc, name)
	if !res.Exists() {
		return errhand.BuildDError("error: profile %s does not exist", name).Build()
	}

	var p Profile
	if err := json.Unmarshal([]byte(res.Raw), &p); err != nil {
		return errhand.BuildDError("error: could not parse profile %s", name).AddCause(err).Build()
	}

	if p.PaidTier {
		s.Tier = config.TierPaid
		s.Limits = config.LimitsForTier(config.TierPaid)
	}
	if p.Path != "" {
		s.Database.Path = p.Path
	}
	if p.AccountID != "" {
		s.Database.AccountID = p.AccountID
	}
	if p.DatabaseID != "" {
		s.Database.DatabaseID = p.DatabaseID
	}
	if p.APIToken != "" {
		s.Database.APIToken = p.APIToken
	}
	return nil
}

// profilesPath resolves the profile store location. D1_SYNC_HOME overrides
// the home directory so tests and multi-tenant setups can redirect it.
func profilesPath(cliCtx cli.CliContext) (string, errhand.VerboseError) {
	if dir, ok := cliCtx.LookupEnv("D1_SYNC_HOME"); ok && dir != "" {
		return filepath.Join(dir, profilesFile), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errhand.BuildDError("error: could not resolve the home directory").AddCause(err).Build()
	}
	return filepath.Join(home, ".d1-sync", profilesFile), nil
}

// loadProfilesDoc returns the store path and its current JSON document, ""
// when the store does not exist yet.
func loadProfilesDoc(cliCtx cli.CliContext) (string, string, errhand.VerboseError) {
	path, verr := profilesPath(cliCtx)
	if verr != nil {
		return "", "", verr
	}
	exists, isDir := cliCtx.FS().Exists(path)
	if !exists {
		return path, "", nil
	}
	if isDir {
		return "", "", errhand.BuildDError("error: %s is a directory", path).Build()
	}
	data, err := cliCtx.FS().ReadFile(path)
	if err != nil {
		return "", "", errhand.BuildDError("error: could not read %s", path).AddCause(err).Build()
	}
	return path, string(data), nil
}

// writeProfilesDoc persists the store with owner-only permissions, since
// profiles may carry API tokens.
func writeProfilesDoc(cliCtx cli.CliContext, path, doc string) errhand.VerboseError {
	if err := cliCtx.FS().MkDirs(filepath.Dir(path)); err != nil {
		return errhand.BuildDError("error: could not create %s", filepath.Dir(path)).AddCause(err).Build()
	}
	if err := cliCtx.FS().WriteFile(path, []byte(doc), 0600); err != nil {
		return errhand.BuildDError("error: could not write %s", path).AddCause(err).Build()
	}
	return nil
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "..."
	}
	return s[:4] + "..."
}
