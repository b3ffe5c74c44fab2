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

// Constants for command line flag names. These tend to be used in multiple
// places, so defining them low in the package dependency tree makes sense.
const (
	AccountIDParam  = "account-id"
	AlphaFlag       = "alpha"
	BatchSizeParam  = "batch-size"
	BulkImportFlag  = "bulk-import"
	ChecksumFlag    = "checksum"
	ClearFlag       = "clear"
	ConfigFileParam = "config"
	DatabaseParam   = "database"
	DBParam         = "db"
	DropFlag        = "drop"
	DryRunFlag      = "dry-run"
	ExcludeParam    = "exclude"
	InitFlag        = "init"
	JSONLogFlag     = "json-log"
	LimitParam      = "limit"
	LocalParam      = "local"
	NoResumeFlag    = "no-resume"
	NoSchemaFlag    = "no-schema"
	NoVerifyFlag    = "no-verify"
	OffsetParam     = "offset"
	OutputParam     = "output"
	OverwriteFlag   = "overwrite"
	PaidTierFlag    = "paid-tier"
	ProfileParam    = "profile"
	QuietFlag       = "quiet"
	RemoteFlag      = "remote"
	RetryRowsFlag   = "retry-failed-rows"
	ShowFlag        = "show"
	StateParam      = "state"
	TableParam      = "table"
	TablesParam     = "tables"
	TokenParam      = "token"
	VerboseFlag     = "verbose"
	VersionFlag     = "version"
	WithIndexesFlag = "with-indexes"
)
