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

// Package config holds every knob a sync run reads. Settings are built from
// tier defaults, then a config file, then environment variables, then CLI
// flags, validated once, and treated as immutable afterwards; last moment
// changes go through With, which clones.
package config

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"

	"github.com/dolthub/d1-sync/libraries/synccore/integrity"
)

// Tier selects a limits profile matching the remote plan.
type Tier string

const (
	TierFree Tier = "free"
	TierPaid Tier = "paid"
)

// HardMaxConcurrentBatches is the ceiling on in-flight chunk sends no tier
// may exceed.
const HardMaxConcurrentBatches = 6

const (
	DefaultStateFile      = ".d1-sync-state.json"
	DefaultFailedRowsFile = "failed_rows.json"
)

// Limits captures the remote API's documented per-plan ceilings plus the
// client-side margins applied to them.
type Limits struct {
	MaxSQLBytes       int     `toml:"max_sql_bytes" json:"max_sql_bytes"`
	MaxRowsPerBatch   int     `toml:"max_rows_per_batch" json:"max_rows_per_batch"`
	MaxQueryDurationS int     `toml:"max_query_duration_s" json:"max_query_duration_s"`
	MaxBoundParams    int     `toml:"max_bound_params" json:"max_bound_params"`
	DailyRowReads     int64   `toml:"daily_row_reads" json:"daily_row_reads"`   // 0 = unlimited
	DailyRowWrites    int64   `toml:"daily_row_writes" json:"daily_row_writes"` // 0 = unlimited
	BatchSafetyMargin float64 `toml:"batch_safety_margin" json:"batch_safety_margin"`
	ConcurrentBatches int     `toml:"concurrent_batches" json:"concurrent_batches"`
}

// LimitsForTier returns the stock profile for a plan.
func LimitsForTier(t Tier) Limits {
	switch t {
	case TierPaid:
		return Limits{
			MaxSQLBytes:       100 * 1024,
			MaxRowsPerBatch:   500,
			MaxQueryDurationS: 30,
			MaxBoundParams:    100,
			DailyRowReads:     0,
			DailyRowWrites:    0,
			BatchSafetyMargin: 0.90,
			ConcurrentBatches: 3,
		}
	default:
		return Limits{
			MaxSQLBytes:       100 * 1024,
			MaxRowsPerBatch:   100,
			MaxQueryDurationS: 30,
			MaxBoundParams:    100,
			DailyRowReads:     5_000_000,
			DailyRowWrites:    100_000,
			BatchSafetyMargin: 0.85,
			ConcurrentBatches: 1,
		}
	}
}

func (l Limits) QueryTimeout() time.Duration {
	return time.Duration(l.MaxQueryDurationS) * time.Second
}

// Database identifies the two endpoints of a sync.
type Database struct {
	Path       string `toml:"path" json:"path"`
	AccountID  string `toml:"account_id" json:"account_id"`
	DatabaseID string `toml:"database_id" json:"database_id"` // id or name
	APIToken   string `toml:"api_token" json:"api_token"`
}

// SyncOptions are the per-run behavioral switches.
type SyncOptions struct {
	DryRun            bool     `toml:"dry_run" json:"dry_run"`
	Overwrite         bool     `toml:"overwrite" json:"overwrite"`
	Tables            []string `toml:"tables" json:"tables"`
	ExcludeTables     []string `toml:"exclude_tables" json:"exclude_tables"`
	Limit             int64    `toml:"limit" json:"limit"`
	Offset            int64    `toml:"offset" json:"offset"`
	SyncSchema        bool     `toml:"sync_schema" json:"sync_schema"`
	WithIndexes       bool     `toml:"with_indexes" json:"with_indexes"`
	DropBeforeSync    bool     `toml:"drop_before_sync" json:"drop_before_sync"`
	VerifyAfterSync   bool     `toml:"verify_after_sync" json:"verify_after_sync"`
	ChecksumAlgorithm string   `toml:"checksum_algorithm" json:"checksum_algorithm"`
	BatchSizeOverride int      `toml:"batch_size_override" json:"batch_size_override"`
	Resume            bool     `toml:"resume" json:"resume"`
	RetryFailedRows   bool     `toml:"retry_failed_rows" json:"retry_failed_rows"`
	BulkImport        bool     `toml:"bulk_import" json:"bulk_import"`
	StateFile         string   `toml:"state_file" json:"state_file"`
}

// Logging configures the CLI-side logrus setup; library code receives
// entries and never consults this.
type Logging struct {
	Level          string `toml:"level" json:"level"`
	Format         string `toml:"format" json:"format"` // rich, json, simple
	File           string `toml:"file" json:"file"`
	MaxLogBytes    int64  `toml:"max_log_bytes" json:"max_log_bytes"`
	FailedRowsFile string `toml:"failed_rows_file" json:"failed_rows_file"`
}

// Settings is the complete configuration record for one run.
type Settings struct {
	Tier     Tier        `toml:"tier" json:"tier"`
	Database Database    `toml:"database" json:"database"`
	Limits   Limits      `toml:"limits" json:"limits"`
	Sync     SyncOptions `toml:"sync" json:"sync"`
	Logging  Logging     `toml:"logging" json:"logging"`

	// transport knobs, all with working defaults
	MaxRetries      int    `toml:"max_retries" json:"max_retries"`
	RetryDelayS     int    `toml:"retry_delay_s" json:"retry_delay_s"`
	ConnectTimeoutS int    `toml:"connect_timeout_s" json:"connect_timeout_s"`
	PollIntervalS   int    `toml:"poll_interval_s" json:"poll_interval_s"`
	ImportMaxWaitS  int    `toml:"import_max_wait_s" json:"import_max_wait_s"`
	APIBase         string `toml:"api_base" json:"api_base"`
}

// DefaultAPIBase is the production endpoint root; tests point APIBase at an
// httptest server instead.
const DefaultAPIBase = "https://api.cloudflare.com/client/v4"

// DefaultSettings returns a validated-shape Settings for the tier with every
// default applied.
func DefaultSettings(tier Tier) *Settings {
	if tier == "" {
		tier = TierFree
	}
	return &Settings{
		Tier:   tier,
		Limits: LimitsForTier(tier),
		Sync: SyncOptions{
			Overwrite:         true,
			SyncSchema:        true,
			VerifyAfterSync:   true,
			Resume:            true,
			ChecksumAlgorithm: string(integrity.DefaultAlgorithm),
			StateFile:         DefaultStateFile,
		},
		Logging: Logging{
			Level:          "info",
			Format:         "rich",
			FailedRowsFile: DefaultFailedRowsFile,
		},
		MaxRetries:      3,
		RetryDelayS:     1,
		ConnectTimeoutS: 10,
		PollIntervalS:   2,
		ImportMaxWaitS:  300,
		APIBase:         DefaultAPIBase,
	}
}

func (s *Settings) RetryDelay() time.Duration     { return time.Duration(s.RetryDelayS) * time.Second }
func (s *Settings) ConnectTimeout() time.Duration { return time.Duration(s.ConnectTimeoutS) * time.Second }
func (s *Settings) PollInterval() time.Duration   { return time.Duration(s.PollIntervalS) * time.Second }
func (s *Settings) ImportMaxWait() time.Duration  { return time.Duration(s.ImportMaxWaitS) * time.Second }

// ReadTimeout is the HTTP client deadline: the remote's own query budget
// plus slack for transfer.
func (s *Settings) ReadTimeout() time.Duration {
	return s.Limits.QueryTimeout() + 10*time.Second
}

// BatchSize is the row page size actually used: the override when set, the
// tier's batch ceiling otherwise.
func (s *Settings) BatchSize() int {
	if s.Sync.BatchSizeOverride > 0 {
		return s.Sync.BatchSizeOverride
	}
	return s.Limits.MaxRowsPerBatch
}

// StateFilePath resolves the checkpoint location: an absolute setting is
// taken as-is, a relative one is placed next to the source database.
func (s *Settings) StateFilePath() string {
	sf := s.Sync.StateFile
	if sf == "" {
		sf = DefaultStateFile
	}
	if filepath.IsAbs(sf) || s.Database.Path == "" {
		return sf
	}
	return filepath.Join(filepath.Dir(s.Database.Path), sf)
}

// FailedRowsPath resolves the failed-row sidecar the same way.
func (s *Settings) FailedRowsPath() string {
	fr := s.Logging.FailedRowsFile
	if fr == "" {
		fr = DefaultFailedRowsFile
	}
	if filepath.IsAbs(fr) || s.Database.Path == "" {
		return fr
	}
	return filepath.Join(filepath.Dir(s.Database.Path), fr)
}

// ValidateCredentials checks only the remote identity fields, so list-style
// local commands can validate less.
func (s *Settings) ValidateCredentials() error {
	if s.Database.AccountID == "" {
		return fmt.Errorf("config: account_id is required (flag --account-id or CLOUDFLARE_ACCOUNT_ID)")
	}
	if s.Database.DatabaseID == "" {
		return fmt.Errorf("config: database_id is required (flag --database or D1_DATABASE_ID)")
	}
	if s.Database.APIToken == "" {
		return fmt.Errorf("config: api_token is required (flag --token or CLOUDFLARE_API_TOKEN)")
	}
	return nil
}

// Validate rejects impossible settings. It is called once after all layers
// are applied; the engine assumes a validated Settings.
func (s *Settings) Validate() error {
	if s.Tier != TierFree && s.Tier != TierPaid {
		return fmt.Errorf("config: unknown tier %q", s.Tier)
	}
	if s.Limits.MaxSQLBytes <= 0 {
		return fmt.Errorf("config: max_sql_bytes must be positive")
	}
	if s.Limits.MaxRowsPerBatch <= 0 {
		return fmt.Errorf("config: max_rows_per_batch must be positive")
	}
	if s.Limits.BatchSafetyMargin <= 0 || s.Limits.BatchSafetyMargin > 1 {
		return fmt.Errorf("config: batch_safety_margin must be in (0, 1]")
	}
	if s.Limits.ConcurrentBatches < 1 || s.Limits.ConcurrentBatches > HardMaxConcurrentBatches {
		return fmt.Errorf("config: concurrent_batches must be between 1 and %d", HardMaxConcurrentBatches)
	}
	if s.Limits.MaxBoundParams <= 0 {
		return fmt.Errorf("config: max_bound_params must be positive")
	}
	if !integrity.Algorithm(s.Sync.ChecksumAlgorithm).Valid() {
		return fmt.Errorf("config: checksum_algorithm must be md5 or sha256, got %q", s.Sync.ChecksumAlgorithm)
	}
	if s.Sync.Limit < 0 {
		return fmt.Errorf("config: limit cannot be negative")
	}
	if s.Sync.Offset < 0 {
		return fmt.Errorf("config: offset cannot be negative")
	}
	if s.Sync.BatchSizeOverride < 0 {
		return fmt.Errorf("config: batch_size_override cannot be negative")
	}
	if s.Sync.BatchSizeOverride > s.Limits.MaxRowsPerBatch {
		return fmt.Errorf("config: batch_size_override %d exceeds the tier's max_rows_per_batch %d",
			s.Sync.BatchSizeOverride, s.Limits.MaxRowsPerBatch)
	}
	if s.MaxRetries < 1 {
		return fmt.Errorf("config: max_retries must be at least 1")
	}
	return nil
}

// Clone deep-copies the settings.
func (s *Settings) Clone() *Settings {
	cp := *s
	cp.Sync.Tables = append([]string(nil), s.Sync.Tables...)
	cp.Sync.ExcludeTables = append([]string(nil), s.Sync.ExcludeTables...)
	return &cp
}

// With clones the settings, applies the mutation, and validates the result.
// The receiver is never modified.
func (s *Settings) With(mutate func(*Settings)) (*Settings, error) {
	cp := s.Clone()
	mutate(cp)
	if err := cp.Validate(); err != nil {
		return nil, err
	}
	return cp, nil
}

// fingerprintFields is the subset of settings that makes a checkpoint
// non-resumable when changed.
type fingerprintFields struct {
	AccountID     string   `json:"account_id"`
	DatabaseID    string   `json:"database_id"`
	Path          string   `json:"path"`
	Tables        []string `json:"tables"`
	ExcludeTables []string `json:"exclude_tables"`
	Limit         int64    `json:"limit"`
	Offset        int64    `json:"offset"`
	Overwrite     bool     `json:"overwrite"`
	BatchSize     int      `json:"batch_size"`
	MaxSQLBytes   int      `json:"max_sql_bytes"`
	SafetyMargin  float64  `json:"safety_margin"`
	Checksum      string   `json:"checksum"`
}

// Fingerprint is a stable hash of the resume-relevant settings. Two runs
// with equal fingerprints page the source identically, so a checkpoint from
// one is meaningful to the other.
func (s *Settings) Fingerprint() string {
	ff := fingerprintFields{
		AccountID:     s.Database.AccountID,
		DatabaseID:    s.Database.DatabaseID,
		Path:          s.Database.Path,
		Tables:        s.Sync.Tables,
		ExcludeTables: s.Sync.ExcludeTables,
		Limit:         s.Sync.Limit,
		Offset:        s.Sync.Offset,
		Overwrite:     s.Sync.Overwrite,
		BatchSize:     s.BatchSize(),
		MaxSQLBytes:   s.Limits.MaxSQLBytes,
		SafetyMargin:  s.Limits.BatchSafetyMargin,
		Checksum:      s.Sync.ChecksumAlgorithm,
	}
	data, err := json.Marshal(ff)
	if err != nil {
		// marshal of a plain struct cannot fail
		panic(err)
	}
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// Masked returns a copy safe to print: the token is reduced to its first
// four characters.
func (s *Settings) Masked() *Settings {
	cp := s.Clone()
	if tok := cp.Database.APIToken; len(tok) > 4 {
		cp.Database.APIToken = tok[:4] + "..."
	} else if tok != "" {
		cp.Database.APIToken = "..."
	}
	return cp
}
