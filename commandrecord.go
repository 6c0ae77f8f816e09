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

// CommandRecord is what the command journal remembers about a
// command's last successful run: enough to decide, on the next run,
// whether it can be skipped.
type CommandRecord struct {
	// IdentityKey is CommandIdentityKey(c, root): a command-shape digest
	// that doesn't depend on file content or timing, used to look the
	// record up again on a later, separate process run.
	IdentityKey uint64

	// MaxInputLWT is the maximum last-write-time, in nanoseconds, across
	// all of the command's inputs as observed during that run.
	MaxInputLWT int64

	// FingerprintKey is fingerprintKey of the full content-aware
	// Fingerprint computed after the run succeeded. Kept at 64 bits
	// (rather than the full 256) so a CommandRecord survives a process
	// restart as a fixed-size on-disk record while still letting the
	// decider tell "content actually changed" apart from "mtime moved
	// but bytes didn't" without rehashing every input on every build.
	FingerprintKey uint64

	// ImplicitDepsKey is depsKey of the FileStore.ImplicitDepsHash
	// computed over the implicit dependencies (headers) discovered the
	// last time this command ran, if its ImplicitDepsHint produced any.
	// Zero when the command has no implicit-dependency discovery.
	ImplicitDepsKey uint64
}
