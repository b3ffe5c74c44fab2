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

import "fmt"

// PanicToVError runs f and converts any panic into a VerboseError titled
// errMsg, so a bug in command code surfaces as a normal error line instead of
// a stack trace.
func PanicToVError(errMsg string, f func() VerboseError) VerboseError {
	var err VerboseError

	func() {
		defer func() {
			if r := recover(); r != nil {
				bdr := BuildDError("%s", errMsg)

				if recErr, ok := r.(error); ok {
					bdr.AddCause(recErr)
				} else {
					bdr.AddDetails(fmt.Sprint(r))
				}

				err = bdr.Build()
			}
		}()
		err = f()
	}()

	return err
}
