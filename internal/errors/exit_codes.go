// Copyright 2011 Google Inc. All Rights Reserved.
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

// Package errors defines the typed error taxonomy the build core uses
// to classify failures. Each kind carries a distinct process exit code,
// so that a caller (cmd/kiln, or any other driver) can report a
// meaningful status without inspecting error strings.
package errors

// ExitCode is the process exit status a BuildError maps to.
type ExitCode int

const (
	ExitSuccess         ExitCode = 0
	ExitGeneralError    ExitCode = 1
	ExitConfigError     ExitCode = 2
	ExitIOError         ExitCode = 3
	ExitInputMissing    ExitCode = 4
	ExitInputUnreadable ExitCode = 5
	ExitProcessFailed   ExitCode = 6
	ExitTimedOut        ExitCode = 7
	ExitCancelled       ExitCode = 8
	ExitPartialFailure  ExitCode = 9
)

func (e ExitCode) Int() int {
	return int(e)
}
