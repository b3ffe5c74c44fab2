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
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/goccy/go-json"

	"github.com/dolthub/d1-sync/libraries/utils/filesys"
)

// LoadFile reads a TOML or JSON settings file over tier defaults. The file's
// own tier field decides which defaults apply, so it is decoded twice: once
// to learn the tier, once over the matching default profile. Keys absent
// from the file keep their defaults.
func LoadFile(fs filesys.ReadableFS, path string) (*Settings, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	isJSON := strings.EqualFold(filepath.Ext(path), ".json")

	var probe struct {
		Tier Tier `toml:"tier" json:"tier"`
	}
	if err := decode(data, isJSON, &probe); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	s := DefaultSettings(probe.Tier)
	if err := decode(data, isJSON, s); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return s, nil
}

func decode(data []byte, isJSON bool, dest interface{}) error {
	if isJSON {
		return json.Unmarshal(data, dest)
	}
	return toml.Unmarshal(data, dest)
}

// StarterTOML is written by `d1-sync config --init`.
const StarterTOML = `# d1-sync configuration
# Values shown are the free-tier defaults; uncomment to override.

tier = "free" # or "paid"

[database]
path = "app.db"
# account_id = ""   # or CLOUDFLARE_ACCOUNT_ID
# database_id = ""  # or D1_DATABASE_ID
# api_token = ""    # or CLOUDFLARE_API_TOKEN; prefer the environment

[sync]
# overwrite = true
# sync_schema = true
# verify_after_sync = true
# resume = true
# tables = []
# exclude_tables = []
# checksum_algorithm = "md5"

[limits]
# max_rows_per_batch = 100
# batch_safety_margin = 0.85
# concurrent_batches = 1

[logging]
# level = "info"
# format = "rich" # rich, json, simple
`
