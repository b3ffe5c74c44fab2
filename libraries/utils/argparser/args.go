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

package argparser

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/dolthub/d1-sync/libraries/utils/set"
)

// ErrHelp is returned by Parse when the universal --help or -h flag is found.
var ErrHelp = errors.New("Help")

// NO_POSITIONAL_ARGS is the PositionalArgsSeparatorIndex value when no "--"
// separator appeared on the command line.
const NO_POSITIONAL_ARGS = -1

// UnknownArgumentParam is the error returned when an unrecognized option is found.
type UnknownArgumentParam struct {
	name string
}

func (unkn UnknownArgumentParam) Error() string {
	return fmt.Sprintf("error: unknown option `%s'", unkn.name)
}

// ArgParseResults is the result of parsing a command line with an ArgParser.
type ArgParseResults struct {
	options map[string]string
	Args    []string
	parser  *ArgParser

	// PositionalArgsSeparatorIndex is the index in Args of the first argument that
	// appeared after a bare "--" separator, or NO_POSITIONAL_ARGS if none did.
	PositionalArgsSeparatorIndex int
}

// Contains returns true if the named option or flag was given.
func (res *ArgParseResults) Contains(name string) bool {
	_, ok := res.options[name]
	return ok
}

// ContainsArg returns true if the given string was given as a positional argument.
func (res *ArgParseResults) ContainsArg(name string) bool {
	for _, val := range res.Args {
		if val == name {
			return true
		}
	}
	return false
}

// ContainsAll returns true if all the named options or flags were given.
func (res *ArgParseResults) ContainsAll(names ...string) bool {
	for _, name := range names {
		if _, ok := res.options[name]; !ok {
			return false
		}
	}
	return true
}

// ContainsAny returns true if any of the named options or flags were given.
func (res *ArgParseResults) ContainsAny(names ...string) bool {
	for _, name := range names {
		if _, ok := res.options[name]; ok {
			return true
		}
	}
	return false
}

// GetValue returns the value of the named option and whether it was given.
func (res *ArgParseResults) GetValue(name string) (string, bool) {
	val, ok := res.options[name]
	return val, ok
}

// MustGetValue returns the value of the named option, and panics if it wasn't given.
// Appropriate only for options the parser already guarantees, such as required values.
func (res *ArgParseResults) MustGetValue(name string) string {
	val, ok := res.options[name]

	if !ok {
		panic("Requested value does not exist.")
	}

	return val
}

// GetValueOrDefault returns the value of the named option, or defVal if it wasn't given.
func (res *ArgParseResults) GetValueOrDefault(name, defVal string) string {
	val, ok := res.options[name]

	if ok {
		return val
	}

	return defVal
}

// GetInt returns the value of the named option as an int and whether a valid int was given.
func (res *ArgParseResults) GetInt(name string) (int, bool) {
	val, ok := res.options[name]

	if !ok {
		return 0, false
	}

	intVal, err := strconv.ParseInt(val, 10, 64)

	if err != nil {
		return 0, false
	}

	return int(intVal), true
}

// GetIntOrDefault returns the value of the named option as an int, or defVal if it
// wasn't given or doesn't parse.
func (res *ArgParseResults) GetIntOrDefault(name string, defVal int) int {
	n, ok := res.GetInt(name)

	if ok {
		return n
	}

	return defVal
}

// GetUint returns the value of the named option as a uint64 and whether a valid uint was given.
func (res *ArgParseResults) GetUint(name string) (uint64, bool) {
	val, ok := res.options[name]

	if !ok {
		return 0, false
	}

	uintVal, err := strconv.ParseUint(val, 10, 64)

	if err != nil {
		return 0, false
	}

	return uintVal, true
}

// GetFlagCount returns how many times a repeatable flag was given, and whether it was
// given at all. Plain flags report a count of 1 when present.
func (res *ArgParseResults) GetFlagCount(name string) (int, bool) {
	val, ok := res.options[name]

	if !ok {
		return 0, false
	}

	if val == "" {
		return 1, true
	}

	count, err := strconv.Atoi(val)

	if err != nil {
		return 1, true
	}

	return count, true
}

// SetArgument returns a copy of the results with the named option set to the given
// value. The option must be supported by the parser that produced these results.
func (res *ArgParseResults) SetArgument(name, value string) (*ArgParseResults, error) {
	if _, ok := res.parser.nameOrAbbrevToOpt[name]; !ok {
		return nil, fmt.Errorf("error: unknown option `%s'", name)
	}

	newOpts := make(map[string]string, len(res.options)+1)
	for k, v := range res.options {
		newOpts[k] = v
	}
	newOpts[name] = value

	return &ArgParseResults{newOpts, res.Args, res.parser, res.PositionalArgsSeparatorIndex}, nil
}

// AnyFlagsEqualTo returns the set of all supported flags whose presence matches val.
func (res *ArgParseResults) AnyFlagsEqualTo(val bool) *set.StrSet {
	results := make([]string, 0, len(res.parser.Supported))
	for _, opt := range res.parser.Supported {
		if opt.OptType == OptionalFlag || opt.OptType == RepeatableFlag {
			_, ok := res.options[opt.Name]
			if ok == val {
				results = append(results, opt.Name)
			}
		}
	}

	return set.NewStrSet(results)
}

// FlagsEqualTo returns the subset of the named flags whose presence matches val.
func (res *ArgParseResults) FlagsEqualTo(names []string, val bool) *set.StrSet {
	results := make([]string, 0, len(res.parser.Supported))
	for _, name := range names {
		opt, ok := res.parser.nameOrAbbrevToOpt[name]
		if ok && (opt.OptType == OptionalFlag || opt.OptType == RepeatableFlag) {
			_, given := res.options[name]
			if given == val {
				results = append(results, name)
			}
		}
	}

	return set.NewStrSet(results)
}

// NArg returns the number of positional arguments.
func (res *ArgParseResults) NArg() int {
	return len(res.Args)
}

// Arg returns the positional argument at the given index, or "" when out of range.
func (res *ArgParseResults) Arg(index int) string {
	if index < 0 || index >= len(res.Args) {
		return ""
	}
	return res.Args[index]
}
