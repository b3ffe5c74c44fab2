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
	"github.com/dolthub/d1-sync/libraries/utils/argparser"
)

// CreateGlobalArgParser creates the parser for the flags accepted before the
// subcommand. ParseGlobalArgs stops at the first bare word and treats it as
// the subcommand name.
func CreateGlobalArgParser(name string) *argparser.ArgParser {
	ap := argparser.NewArgParserWithVariableArgs(name)
	ap.SupportsString(ConfigFileParam, "", "file", "Configuration file to load before flags apply.")
	ap.SupportsString(ProfileParam, "", "name", "Connection profile to apply, from ~/.d1-sync/profiles.json. See {{.EmphasisLeft}}d1-sync config profile{{.EmphasisRight}}.")
	ap.SupportsRepeatableFlag(VerboseFlag, "v", "Log at debug level. May be given more than once.")
	ap.SupportsFlag(QuietFlag, "q", "Log warnings and errors only.")
	ap.SupportsFlag(JSONLogFlag, "", "Emit logs as JSON objects, one per line.")
	ap.SupportsFlag(VersionFlag, "", "Print the version and exit.")
	return ap
}

// CreateConnectionArgParser returns a parser preloaded with the flags shared
// by every command that opens the source database or reaches the remote.
func CreateConnectionArgParser(name string, maxArgs int) *argparser.ArgParser {
	ap := argparser.NewArgParserWithMaxArgs(name, maxArgs)
	ap.SupportsString(ConfigFileParam, "c", "file", "Configuration file, TOML or JSON. Flags override its values.")
	ap.SupportsString(DBParam, "", "path", "Path of the local SQLite database.")
	ap.SupportsString(AccountIDParam, "", "id", "Cloudflare account id. Falls back to CLOUDFLARE_ACCOUNT_ID.")
	ap.SupportsString(DatabaseParam, "d", "id", "D1 database id or name. Falls back to D1_DATABASE_ID.")
	ap.SupportsString(TokenParam, "", "token", "Cloudflare API token. Prefer the CLOUDFLARE_API_TOKEN environment variable over this flag.")
	ap.SupportsFlag(PaidTierFlag, "", "Size batches and concurrency for the paid plan's API limits.")
	ap.SupportsRepeatableFlag(VerboseFlag, "v", "Log at debug level. May be given more than once.")
	ap.SupportsFlag(QuietFlag, "q", "Log warnings and errors only.")
	ap.SupportsFlag(JSONLogFlag, "", "Emit logs as JSON objects, one per line.")
	return ap
}

// CreateSyncArgParser extends the connection parser with the flags the push
// and pull runs share. Direction-specific flags like --state and
// --with-indexes are added by the commands that honor them.
func CreateSyncArgParser(name string) *argparser.ArgParser {
	ap := CreateConnectionArgParser(name, 0)
	ap.SupportsStringList(TablesParam, "t", "tables", "Tables to sync, comma separated. Default is every user table.")
	ap.SupportsStringList(ExcludeParam, "x", "tables", "Tables to skip, comma separated. Exclusion wins over {{.EmphasisLeft}}--tables{{.EmphasisRight}}.")
	ap.SupportsInt(BatchSizeParam, "b", "rows", "Rows per batch, up to the plan's ceiling.")
	ap.SupportsFlag(DryRunFlag, "n", "Plan the run and report what would happen without sending writes.")
	ap.SupportsFlag(OverwriteFlag, "", "Use INSERT OR REPLACE so rerunning updates rows that already exist.")
	ap.SupportsFlag(NoVerifyFlag, "", "Skip the post-sync row count verification.")
	ap.SupportsFlag(DropFlag, "", "Drop each destination table before creating it.")
	return ap
}
