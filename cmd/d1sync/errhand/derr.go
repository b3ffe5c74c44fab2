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
	"fmt"
	"strings"

	"github.com/fatih/color"
)

type DErrorBuilder struct {
	dispMsg    string
	details    string
	cause      error
	printUsage bool
}

func BuildDError(dispFmt string, args ...interface{}) *DErrorBuilder {
	dispMsg := dispFmt

	if len(args) > 0 {
		dispMsg = fmt.Sprintf(dispFmt, args...)
	}

	return &DErrorBuilder{dispMsg: dispMsg}
}

// BuildIf returns a builder seeded with err as the cause, or nil when err is
// nil. Every builder method tolerates a nil receiver, so call chains need no
// error check until Build.
func BuildIf(err error, dispFmt string, args ...interface{}) *DErrorBuilder {
	if err == nil {
		return nil
	}

	dispMsg := dispFmt

	if len(args) > 0 {
		dispMsg = fmt.Sprintf(dispFmt, args...)
	}

	return &DErrorBuilder{dispMsg: dispMsg, cause: err}
}

func (builder *DErrorBuilder) AddDetails(detailsFmt string, args ...interface{}) *DErrorBuilder {
	if builder == nil {
		return nil
	}

	var details string
	if len(args) > 0 {
		details = fmt.Sprintf(detailsFmt, args...)
	} else {
		details = detailsFmt
	}

	if len(builder.details) > 0 {
		builder.details += "\n"
	}

	builder.details += details

	return builder
}

func (builder *DErrorBuilder) AddCause(cause error) *DErrorBuilder {
	if builder == nil {
		return nil
	}

	builder.cause = cause
	return builder
}

// SetPrintUsage marks the built error as one that should be followed by the
// command's usage text, for argument mistakes rather than runtime failures.
func (builder *DErrorBuilder) SetPrintUsage() *DErrorBuilder {
	if builder == nil {
		return nil
	}

	builder.printUsage = true
	return builder
}

func (builder *DErrorBuilder) Build() VerboseError {
	if builder == nil {
		return nil
	}

	return &DError{builder.dispMsg, builder.details, builder.cause, builder.printUsage}
}

type DError struct {
	DisplayMsg string
	Details    string
	cause      error
	printUsage bool
}

func NewDError(dispMsg, details string, cause error) *DError {
	return &DError{dispMsg, details, cause, false}
}

func (derr *DError) Error() string {
	return color.RedString(derr.DisplayMsg)
}

func (derr *DError) Unwrap() error {
	return derr.cause
}

func (derr *DError) ShouldPrintUsage() bool {
	return derr.printUsage
}

func (derr *DError) Verbose() string {
	sections := make([]string, 0, 6)
	sections = append(sections, derr.Error())

	if derr.Details != "" {
		sections = append(sections, derr.Details)
	}

	if derr.cause != nil {
		sections = append(sections, "cause:")

		var causeStr string
		if vCause, ok := derr.cause.(VerboseError); ok {
			causeStr = vCause.Verbose()
		} else {
			causeStr = derr.cause.Error()
		}

		sections = append(sections, indent(causeStr, "\t\t"))
	}

	return strings.Join(sections, "\n")
}

func indent(str, indentStr string) string {
	lines := strings.Split(str, "\n")
	return indentStr + strings.Join(lines, "\n"+indentStr)
}
