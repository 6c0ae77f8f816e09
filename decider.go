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

// Verdict is the rebuild decider's output for one command.
type Verdict int8

const (
	MustRun Verdict = iota
	Skip
)

func (v Verdict) String() string {
	if v == Skip {
		return "skip"
	}
	return "must-run"
}

// CommandRecordStore is the lookup/update surface a Decider needs from
// the command journal, kept narrow so Decider can be tested against a
// plain map.
type CommandRecordStore interface {
	Get(identityKey uint64) (*CommandRecord, bool)
}

// Decider answers, for a given command, whether it can be skipped.
type Decider struct {
	store         *FileStore
	records       CommandRecordStore
	deps          ImplicitDepsStore
	workspaceRoot string
	envWhitelist  []string
}

// NewDecider builds a Decider over the given file store and command
// record lookup. deps may be nil, in which case implicit-dependency
// closures never invalidate a command (the same as a command whose
// ImplicitDepsHint is NoImplicitDeps).
func NewDecider(store *FileStore, records CommandRecordStore, deps ImplicitDepsStore, workspaceRoot string, envWhitelist []string) *Decider {
	return &Decider{store: store, records: records, deps: deps, workspaceRoot: workspaceRoot, envWhitelist: envWhitelist}
}

// Decide runs the five-step rebuild algorithm for c, plus a sixth check
// against c's implicit-dependency closure (headers discovered by a
// previous run's depfile or /showIncludes output) recorded in d.deps,
// since those paths never appear in c.Inputs and so would otherwise
// never be consulted at all.
func (d *Decider) Decide(c *Command) (Verdict, error) {
	key := CommandIdentityKey(c, d.workspaceRoot)
	rec, ok := d.records.Get(key)
	if !ok {
		return MustRun, nil
	}

	suspect := false
	var maxInputLWT int64
	for _, in := range c.fingerprintInputs() {
		r, err := d.store.Register(in)
		if err != nil {
			return MustRun, err
		}
		if err := d.store.Refresh(r); err != nil {
			return MustRun, err
		}
		lwt := r.LastWriteTime()
		if lwt > maxInputLWT {
			maxInputLWT = lwt
		}
		// Tie-breaking: equality at filesystem mtime granularity is
		// treated as suspect too, so a same-tick edit is never silently
		// skipped.
		if lwt >= rec.MaxInputLWT {
			suspect = true
		}
	}

	if suspect {
		f, err := ComputeFingerprint(c, d.store, d.workspaceRoot, d.envWhitelist)
		if err != nil {
			return MustRun, err
		}
		if fingerprintKey(f) != rec.FingerprintKey {
			return MustRun, nil
		}
	}

	for _, out := range c.Outputs {
		r, err := d.store.Register(out)
		if err != nil {
			return MustRun, err
		}
		if err := d.store.Refresh(r); err != nil {
			return MustRun, err
		}
		if !r.Exists() {
			return MustRun, nil
		}
		if r.LastWriteTime() < maxInputLWT {
			return MustRun, nil
		}
	}

	if d.deps != nil && len(c.Outputs) > 0 {
		closure, ok, err := d.deps.GetImplicitDeps(key)
		if err != nil {
			return MustRun, err
		}
		if ok && len(closure) > 0 {
			outRec, err := d.store.Register(c.Outputs[0])
			if err != nil {
				return MustRun, err
			}
			hash, err := d.store.ImplicitDepsHash(outRec, closure)
			if err != nil {
				return MustRun, err
			}
			if depsKey(hash) != rec.ImplicitDepsKey {
				return MustRun, nil
			}
		}
	}

	return Skip, nil
}
