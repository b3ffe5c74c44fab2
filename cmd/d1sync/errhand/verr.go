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

// Package errhand carries errors to the command line boundary. Library
// packages return plain errors; commands wrap them in a VerboseError so the
// user sees a short display line while -v style output keeps the full cause
// chain.
package errhand

// VerboseError is an error with a detailed, multi-line rendering for the
// terminal.
type VerboseError interface {
	error

	// Verbose returns the display message plus details and the indented
	// cause chain.
	Verbose() string

	// ShouldPrintUsage reports whether command usage should be printed
	// after the error.
	ShouldPrintUsage() bool
}

// VerboseErrorFromError wraps err in a VerboseError, passing it through
// unchanged when it already is one. A nil err stays nil.
func VerboseErrorFromError(err error) VerboseError {
	if err == nil {
		return nil
	} else if verr, ok := err.(VerboseError); ok {
		return verr
	} else {
		return BuildDError("%s", err.Error()).Build()
	}
}
