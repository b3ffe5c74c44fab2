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

package errhand

import (
	"errors"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDError(t *testing.T) {
	initial := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = initial }()

	verr := BuildDError("could not open %s", "app.db").
		AddDetails("the path does not exist").
		AddDetails("check --db").
		AddCause(errors.New("no such file")).
		Build()

	require.Error(t, verr)
	assert.Equal(t, "could not open app.db", verr.Error())
	assert.False(t, verr.ShouldPrintUsage())

	verbose := verr.Verbose()
	assert.Contains(t, verbose, "could not open app.db")
	assert.Contains(t, verbose, "the path does not exist\ncheck --db")
	assert.Contains(t, verbose, "cause:")
	assert.Contains(t, verbose, "\t\tno such file")
}

func TestBuildIf(t *testing.T) {
	assert.Nil(t, BuildIf(nil, "never shown").AddDetails("ignored").Build())

	verr := BuildIf(errors.New("boom"), "it broke").Build()
	require.Error(t, verr)
	assert.Contains(t, verr.Verbose(), "boom")
}

func TestSetPrintUsage(t *testing.T) {
	verr := BuildDError("bad arguments").SetPrintUsage().Build()
	assert.True(t, verr.ShouldPrintUsage())
}

func TestVerboseCauseChain(t *testing.T) {
	initial := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = initial }()

	inner := BuildDError("inner").AddCause(errors.New("root")).Build()
	outer := BuildDError("outer").AddCause(inner).Build()

	verbose := outer.Verbose()
	assert.Contains(t, verbose, "outer")
	assert.Contains(t, verbose, "\t\tinner")
	assert.Contains(t, verbose, "\t\t\t\troot")

	assert.True(t, errors.Is(outer, inner))
}

func TestVerboseErrorFromError(t *testing.T) {
	assert.Nil(t, VerboseErrorFromError(nil))

	plain := errors.New("plain failure")
	verr := VerboseErrorFromError(plain)
	require.Error(t, verr)
	assert.Contains(t, verr.Verbose(), "plain failure")

	already := BuildDError("typed").Build()
	assert.Equal(t, already, VerboseErrorFromError(already))
}

func TestPanicToVError(t *testing.T) {
	verr := PanicToVError("command blew up", func() VerboseError {
		panic(errors.New("nil map write"))
	})
	require.Error(t, verr)
	assert.Contains(t, verr.Verbose(), "command blew up")
	assert.Contains(t, verr.Verbose(), "nil map write")

	verr = PanicToVError("not reached", func() VerboseError {
		return BuildDError("returned normally").Build()
	})
	assert.Equal(t, "returned normally", verr.(*DError).DisplayMsg)
}
