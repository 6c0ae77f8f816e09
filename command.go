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

package kiln

import "time"

// Kind tags the variety of a Command as a flat enum rather than a
// class hierarchy: new command kinds are added by extending this enum
// plus the switch in Kind.String, whose result ComputeFingerprint hashes.
type Kind int8

const (
	CompileC Kind = iota
	CompileCXX
	Link
	Archive
	Custom
)

func (k Kind) String() string {
	switch k {
	case CompileC:
		return "CompileC"
	case CompileCXX:
		return "CompileCXX"
	case Link:
		return "Link"
	case Archive:
		return "Archive"
	case Custom:
		return "Custom"
	default:
		return "Unknown"
	}
}

// ImplicitDepsHint names the format of a command's discovered
// dependency output, if any.
type ImplicitDepsHint int8

const (
	// NoImplicitDeps means the command has no implicit dependency
	// discovery; its Inputs are the whole story.
	NoImplicitDeps ImplicitDepsHint = iota
	// GCCDepfile means the command's compiler was asked to emit a
	// Makefile-style depfile (gcc/clang -M*) at DepfilePath, which the
	// executor reads and parses after the command runs; see DepfileParser.
	GCCDepfile
	// MSVCShowIncludes means implicit deps are discovered by scanning
	// cl.exe's /showIncludes output in the captured stdout/stderr; see
	// MSVCDepsParser.
	MSVCShowIncludes
)

// Command is a planned external process invocation: the unit the
// executor schedules and the rebuild decider judges. Created once by an
// upstream generator, attached to a Graph, then either skipped or
// executed exactly once per build.
type Command struct {
	// ID is assigned by Graph.AddCommand and used as the stable
	// identity for edges, the ready queue, and CommandStarted/Finished
	// events. It is not part of the fingerprint.
	ID int

	Kind Kind

	Program string
	Argv    []string
	Dir     string
	Env     map[string]string

	// Inputs and Outputs are normalized paths (Register them through
	// the FileStore to get FileRecords).
	Inputs  []string
	Outputs []string

	// ImplicitDepsHint selects how discovered implicit dependencies
	// (e.g. headers) are parsed out of the command's own output after
	// it runs.
	ImplicitDepsHint ImplicitDepsHint

	// DepfilePath is the path the compiler was told to write its
	// Makefile-style depfile to (gcc/clang -MF). Only consulted when
	// ImplicitDepsHint is GCCDepfile; MSVCShowIncludes parses the
	// captured stdout/stderr instead and needs no separate file.
	DepfilePath string

	// Timeout, if non-zero, bounds the command's wall-clock runtime.
	Timeout time.Duration

	// Description, if set, is what Status prints instead of the full
	// command line.
	Description string
}

// fingerprintInputs returns the paths a fingerprint is computed over:
// explicit inputs only. Implicit deps discovered during a previous run
// feed into the rebuild decider's dirty check (via FileRecord's
// implicit-dependency hash) rather than the fingerprint itself, because
// the fingerprint must be computable before the command has ever run.
func (c *Command) fingerprintInputs() []string {
	return c.Inputs
}
