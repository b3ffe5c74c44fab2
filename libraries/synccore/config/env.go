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

package config

import (
	"fmt"
	"strconv"
	"strings"
)

// EnvPrefix namespaces every recognized variable; nested sections use a
// doubled underscore, e.g. D1_SYNC_LIMITS__MAX_ROWS_PER_BATCH.
const EnvPrefix = "D1_SYNC_"

// Conventional credential variables honored when the corresponding field is
// still empty after config files and D1_SYNC_ variables.
const (
	EnvCloudflareToken   = "CLOUDFLARE_API_TOKEN"
	EnvCloudflareAccount = "CLOUDFLARE_ACCOUNT_ID"
	EnvD1Database        = "D1_DATABASE_ID"
)

type envSetter func(s *Settings, raw string) error

func setString(dst func(*Settings) *string) envSetter {
	return func(s *Settings, raw string) error {
		*dst(s) = raw
		return nil
	}
}

func setBool(dst func(*Settings) *bool) envSetter {
	return func(s *Settings, raw string) error {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		*dst(s) = b
		return nil
	}
}

func setInt(dst func(*Settings) *int) envSetter {
	return func(s *Settings, raw string) error {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return err
		}
		*dst(s) = n
		return nil
	}
}

func setInt64(dst func(*Settings) *int64) envSetter {
	return func(s *Settings, raw string) error {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		*dst(s) = n
		return nil
	}
}

func setFloat(dst func(*Settings) *float64) envSetter {
	return func(s *Settings, raw string) error {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		*dst(s) = f
		return nil
	}
}

func setList(dst func(*Settings) *[]string) envSetter {
	return func(s *Settings, raw string) error {
		var list []string
		for _, item := range strings.Split(raw, ",") {
			if item = strings.TrimSpace(item); item != "" {
				list = append(list, item)
			}
		}
		*dst(s) = list
		return nil
	}
}

// envSetters maps a variable name, prefix stripped, to its field. Explicit
// over reflective on purpose: the set of recognized variables is a contract,
// and grep should find it.
var envSetters = map[string]envSetter{
	"MAX_RETRIES":       setInt(func(s *Settings) *int { return &s.MaxRetries }),
	"RETRY_DELAY_S":     setInt(func(s *Settings) *int { return &s.RetryDelayS }),
	"CONNECT_TIMEOUT_S": setInt(func(s *Settings) *int { return &s.ConnectTimeoutS }),
	"POLL_INTERVAL_S":   setInt(func(s *Settings) *int { return &s.PollIntervalS }),
	"IMPORT_MAX_WAIT_S": setInt(func(s *Settings) *int { return &s.ImportMaxWaitS }),
	"API_BASE":          setString(func(s *Settings) *string { return &s.APIBase }),

	"DATABASE__PATH":        setString(func(s *Settings) *string { return &s.Database.Path }),
	"DATABASE__ACCOUNT_ID":  setString(func(s *Settings) *string { return &s.Database.AccountID }),
	"DATABASE__DATABASE_ID": setString(func(s *Settings) *string { return &s.Database.DatabaseID }),
	"DATABASE__API_TOKEN":   setString(func(s *Settings) *string { return &s.Database.APIToken }),

	"LIMITS__MAX_SQL_BYTES":        setInt(func(s *Settings) *int { return &s.Limits.MaxSQLBytes }),
	"LIMITS__MAX_ROWS_PER_BATCH":   setInt(func(s *Settings) *int { return &s.Limits.MaxRowsPerBatch }),
	"LIMITS__MAX_QUERY_DURATION_S": setInt(func(s *Settings) *int { return &s.Limits.MaxQueryDurationS }),
	"LIMITS__MAX_BOUND_PARAMS":     setInt(func(s *Settings) *int { return &s.Limits.MaxBoundParams }),
	"LIMITS__DAILY_ROW_READS":      setInt64(func(s *Settings) *int64 { return &s.Limits.DailyRowReads }),
	"LIMITS__DAILY_ROW_WRITES":     setInt64(func(s *Settings) *int64 { return &s.Limits.DailyRowWrites }),
	"LIMITS__BATCH_SAFETY_MARGIN":  setFloat(func(s *Settings) *float64 { return &s.Limits.BatchSafetyMargin }),
	"LIMITS__CONCURRENT_BATCHES":   setInt(func(s *Settings) *int { return &s.Limits.ConcurrentBatches }),

	"SYNC__DRY_RUN":             setBool(func(s *Settings) *bool { return &s.Sync.DryRun }),
	"SYNC__OVERWRITE":           setBool(func(s *Settings) *bool { return &s.Sync.Overwrite }),
	"SYNC__TABLES":              setList(func(s *Settings) *[]string { return &s.Sync.Tables }),
	"SYNC__EXCLUDE_TABLES":      setList(func(s *Settings) *[]string { return &s.Sync.ExcludeTables }),
	"SYNC__LIMIT":               setInt64(func(s *Settings) *int64 { return &s.Sync.Limit }),
	"SYNC__OFFSET":              setInt64(func(s *Settings) *int64 { return &s.Sync.Offset }),
	"SYNC__SYNC_SCHEMA":         setBool(func(s *Settings) *bool { return &s.Sync.SyncSchema }),
	"SYNC__WITH_INDEXES":        setBool(func(s *Settings) *bool { return &s.Sync.WithIndexes }),
	"SYNC__DROP_BEFORE_SYNC":    setBool(func(s *Settings) *bool { return &s.Sync.DropBeforeSync }),
	"SYNC__VERIFY_AFTER_SYNC":   setBool(func(s *Settings) *bool { return &s.Sync.VerifyAfterSync }),
	"SYNC__CHECKSUM_ALGORITHM":  setString(func(s *Settings) *string { return &s.Sync.ChecksumAlgorithm }),
	"SYNC__BATCH_SIZE_OVERRIDE": setInt(func(s *Settings) *int { return &s.Sync.BatchSizeOverride }),
	"SYNC__RESUME":              setBool(func(s *Settings) *bool { return &s.Sync.Resume }),
	"SYNC__RETRY_FAILED_ROWS":   setBool(func(s *Settings) *bool { return &s.Sync.RetryFailedRows }),
	"SYNC__BULK_IMPORT":         setBool(func(s *Settings) *bool { return &s.Sync.BulkImport }),
	"SYNC__STATE_FILE":          setString(func(s *Settings) *string { return &s.Sync.StateFile }),

	"LOGGING__LEVEL":            setString(func(s *Settings) *string { return &s.Logging.Level }),
	"LOGGING__FORMAT":           setString(func(s *Settings) *string { return &s.Logging.Format }),
	"LOGGING__FILE":             setString(func(s *Settings) *string { return &s.Logging.File }),
	"LOGGING__MAX_LOG_BYTES":    setInt64(func(s *Settings) *int64 { return &s.Logging.MaxLogBytes }),
	"LOGGING__FAILED_ROWS_FILE": setString(func(s *Settings) *string { return &s.Logging.FailedRowsFile }),
}

// ApplyEnv overlays environment variables onto the settings. lookup is
// os.LookupEnv in production. D1_SYNC_TIER is applied first and resets the
// limits to the tier's profile, so explicit limit variables still win.
func ApplyEnv(s *Settings, lookup func(string) (string, bool)) error {
	if raw, ok := lookup(EnvPrefix + "TIER"); ok {
		tier := Tier(strings.ToLower(strings.TrimSpace(raw)))
		if tier != TierFree && tier != TierPaid {
			return fmt.Errorf("config: invalid value for %sTIER: %q", EnvPrefix, raw)
		}
		s.Tier = tier
		s.Limits = LimitsForTier(tier)
	}

	for key, set := range envSetters {
		raw, ok := lookup(EnvPrefix + key)
		if !ok {
			continue
		}
		if err := set(s, raw); err != nil {
			return fmt.Errorf("config: invalid value for %s%s: %w", EnvPrefix, key, err)
		}
	}

	if s.Database.APIToken == "" {
		if raw, ok := lookup(EnvCloudflareToken); ok {
			s.Database.APIToken = raw
		}
	}
	if s.Database.AccountID == "" {
		if raw, ok := lookup(EnvCloudflareAccount); ok {
			s.Database.AccountID = raw
		}
	}
	if s.Database.DatabaseID == "" {
		if raw, ok := lookup(EnvD1Database); ok {
			s.Database.DatabaseID = raw
		}
	}

	return nil
}
