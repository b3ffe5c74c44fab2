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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/dolthub/d1-sync/libraries/synccore/config"
	"github.com/dolthub/d1-sync/libraries/utils/filesys"
)

func TestConfigProfileLifecycle(t *testing.T) {
	fs := filesys.EmptyInMemFS("/work")
	env := map[string]string{"D1_SYNC_HOME": "/d1home"}
	cliCtx := testContext(t, fs, nil, env)
	cmd := ConfigCmd{}

	stdout, stderr, restore := captureOutput(t)
	defer restore()

	status := cmd.Exec(context.Background(), "d1-sync config", []string{
		"profile", "add", "work",
		"--database", "abc123", "--account-id", "acct9", "--token", "secret-token", "--paid-tier",
	}, cliCtx)
	require.Equal(t, 0, status, stderr.String())
	assert.Contains(t, stdout.String(), "Added profile work.")

	data, err := fs.ReadFile("/d1home/profiles.json")
	require.NoError(t, err)
	assert.Equal(t, "abc123", gjson.GetBytes(data, "work.database").String())
	assert.Equal(t, "acct9", gjson.GetBytes(data, "work.account-id").String())
	assert.True(t, gjson.GetBytes(data, "work.paid-tier").Bool())

	stdout.Reset()
	stderr.Reset()
	status = cmd.Exec(context.Background(), "d1-sync config", []string{"profile", "add", "work"}, cliCtx)
	assert.Equal(t, 1, status)
	assert.Contains(t, stderr.String(), "already exists")

	stdout.Reset()
	stderr.Reset()
	status = cmd.Exec(context.Background(), "d1-sync config", []string{"profile", "list"}, cliCtx)
	require.Equal(t, 0, status, stderr.String())
	assert.Contains(t, stdout.String(), "work:")
	assert.Contains(t, stdout.String(), "database: abc123")
	assert.Contains(t, stdout.String(), "token: secr...")
	assert.NotContains(t, stdout.String(), "secret-token")

	stdout.Reset()
	status = cmd.Exec(context.Background(), "d1-sync config", []string{"profile", "remove", "work"}, cliCtx)
	require.Equal(t, 0, status)
	assert.Contains(t, stdout.String(), "Removed profile work.")

	stdout.Reset()
	status = cmd.Exec(context.Background(), "d1-sync config", []string{"profile", "list"}, cliCtx)
	require.Equal(t, 0, status)
	assert.Contains(t, stdout.String(), "No profiles.")

	stdout.Reset()
	stderr.Reset()
	status = cmd.Exec(context.Background(), "d1-sync config", []string{"profile", "remove", "work"}, cliCtx)
	assert.Equal(t, 1, status)
	assert.Contains(t, stderr.String(), "does not exist")
}

func TestConfigProfileAddArity(t *testing.T) {
	cliCtx := testContext(t, nil, nil, map[string]string{"D1_SYNC_HOME": "/d1home"})

	_, stderr, restore := captureOutput(t)
	defer restore()

	status := ConfigCmd{}.Exec(context.Background(), "d1-sync config", []string{"profile", "add"}, cliCtx)
	assert.Equal(t, 1, status)
	assert.Contains(t, stderr.String(), "profile add takes exactly one profile name")
}

func TestConfigInit(t *testing.T) {
	fs := filesys.EmptyInMemFS("/work")
	cliCtx := testContext(t, fs, nil, nil)
	cmd := ConfigCmd{}

	stdout, stderr, restore := captureOutput(t)
	defer restore()

	status := cmd.Exec(context.Background(), "d1-sync config", []string{"--init", "--output", "my.toml"}, cliCtx)
	require.Equal(t, 0, status, stderr.String())
	assert.Contains(t, stdout.String(), "Created config file: my.toml")

	data, err := fs.ReadFile("my.toml")
	require.NoError(t, err)
	assert.Equal(t, config.StarterTOML, string(data))

	stderr.Reset()
	status = cmd.Exec(context.Background(), "d1-sync config", []string{"--init", "--output", "my.toml"}, cliCtx)
	assert.Equal(t, 1, status)
	assert.Contains(t, stderr.String(), "already exists")
}

func TestConfigShowMasksToken(t *testing.T) {
	cliCtx := testContext(t, nil, nil, nil)

	stdout, stderr, restore := captureOutput(t)
	defer restore()

	status := ConfigCmd{}.Exec(context.Background(), "d1-sync config", []string{
		"--show", "--db", "app.db", "--token", "super-secret-token",
	}, cliCtx)
	require.Equal(t, 0, status, stderr.String())

	out := stdout.String()
	assert.Contains(t, out, "tier:         free")
	assert.Contains(t, out, "db:           app.db")
	assert.Contains(t, out, "api token:    supe...")
	assert.NotContains(t, out, "super-secret-token")
	assert.Contains(t, out, "account id:   not set")
}

func TestConfigDefaultMessage(t *testing.T) {
	cliCtx := testContext(t, nil, nil, nil)

	stdout, _, restore := captureOutput(t)
	defer restore()

	status := ConfigCmd{}.Exec(context.Background(), "d1-sync config", nil, cliCtx)
	assert.Equal(t, 0, status)
	assert.Contains(t, stdout.String(), "Use --show to view config or --init to create config file.")
}

func TestConfigUnknownSubcommand(t *testing.T) {
	cliCtx := testContext(t, nil, nil, nil)

	_, stderr, restore := captureOutput(t)
	defer restore()

	status := ConfigCmd{}.Exec(context.Background(), "d1-sync config", []string{"bogus"}, cliCtx)
	assert.Equal(t, 1, status)
	assert.Contains(t, stderr.String(), "unknown config subcommand bogus")
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", maskSecret(""))
	assert.Equal(t, "...", maskSecret("abcd"))
	assert.Equal(t, "abcd...", maskSecret("abcdefgh"))
}
