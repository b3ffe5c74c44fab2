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
	"bytes"
	"context"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dolthub/d1-sync/libraries/utils/argparser"
)

type testCmd struct {
	name    string
	ret     int
	lastRun *[]string
}

func (c testCmd) Name() string                    { return c.name }
func (c testCmd) Description() string             { return c.name + " does things" }
func (c testCmd) Docs() *CommandDocumentation     { return nil }
func (c testCmd) ArgParser() *argparser.ArgParser { return argparser.NewArgParserWithVariableArgs(c.name) }

func (c testCmd) Exec(ctx context.Context, commandStr string, args []string, cliCtx CliContext) int {
	if c.lastRun != nil {
		*c.lastRun = append([]string{commandStr}, args...)
	}
	return c.ret
}

type hiddenTestCmd struct {
	testCmd
}

func (c hiddenTestCmd) Hidden() bool { return true }

func captureOutput(t *testing.T) (*bytes.Buffer, *bytes.Buffer, func()) {
	t.Helper()
	oldOut, oldErr := CliOut, CliErr
	oldNoColor := color.NoColor
	color.NoColor = true

	var out, errOut bytes.Buffer
	CliOut = &out
	CliErr = &errOut
	return &out, &errOut, func() {
		CliOut = oldOut
		CliErr = oldErr
		color.NoColor = oldNoColor
	}
}

func TestSubCommandHandlerDispatch(t *testing.T) {
	var ran []string
	handler := NewSubCommandHandler("d1-sync", "sync tool", []Command{
		testCmd{name: "push", ret: 7, lastRun: &ran},
		testCmd{name: "pull", ret: 3},
	})

	res := handler.Exec(context.Background(), "d1-sync", []string{"push", "--db", "app.db"}, nil)
	require.Equal(t, 7, res)
	require.Equal(t, []string{"d1-sync push", "--db", "app.db"}, ran)

	// dispatch is case insensitive
	ran = nil
	res = handler.Exec(context.Background(), "d1-sync", []string{"PUSH"}, nil)
	require.Equal(t, 7, res)
	require.Equal(t, []string{"d1-sync push"}, ran)
}

func TestSubCommandHandlerUnknown(t *testing.T) {
	out, errOut, restore := captureOutput(t)
	defer restore()

	handler := NewSubCommandHandler("d1-sync", "sync tool", []Command{
		testCmd{name: "push"},
	})

	res := handler.Exec(context.Background(), "d1-sync", []string{"shove"}, nil)
	assert.Equal(t, 1, res)
	assert.Contains(t, errOut.String(), "Unknown Command shove")
	assert.Contains(t, out.String(), "Valid commands for d1-sync are")
	assert.Contains(t, out.String(), "push does things")
}

func TestSubCommandHandlerNoArgs(t *testing.T) {
	out, errOut, restore := captureOutput(t)
	defer restore()

	handler := NewSubCommandHandler("d1-sync", "sync tool", []Command{
		testCmd{name: "push"},
		hiddenTestCmd{testCmd{name: "secret"}},
	})

	res := handler.Exec(context.Background(), "d1-sync", nil, nil)
	assert.Equal(t, 1, res)
	assert.Empty(t, errOut.String())
	assert.Contains(t, out.String(), "push")
	assert.NotContains(t, out.String(), "secret")
}

func TestSubCommandHandlerHelpToken(t *testing.T) {
	out, errOut, restore := captureOutput(t)
	defer restore()

	handler := NewSubCommandHandler("d1-sync", "sync tool", []Command{
		testCmd{name: "push"},
	})

	res := handler.Exec(context.Background(), "d1-sync", []string{"--help"}, nil)
	assert.Equal(t, 1, res)
	// help is not reported as an unknown command
	assert.NotContains(t, errOut.String(), "Unknown Command")
	assert.Contains(t, out.String(), "Valid commands for d1-sync are")
}
