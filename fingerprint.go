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

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// DefaultEnvWhitelist is the sorted set of environment variables that
// participate in a command's fingerprint. Everything else may vary
// between machines and runs without triggering a rebuild.
var DefaultEnvWhitelist = []string{
	"AR",
	"CC",
	"CXX",
	"INCLUDE",
	"LIB",
	"MACOSX_DEPLOYMENT_TARGET",
	"PATH",
	"SDKROOT",
}

// Fingerprint is the 256-bit, machine- and run-stable identifier of a
// command. It is computed from the command's kind, program, argv, cwd,
// whitelisted environment variables, explicit input paths, and input
// contents -- never from timestamps of the command itself.
type Fingerprint [32]byte

// writeLP writes a length-prefixed chunk so that, e.g., argv ["ab","c"]
// can never hash the same as ["a","bc"]; naive concatenation would be
// ambiguous at the boundary between fields.
func writeLP(h interface{ Write([]byte) (int, error) }, s string) {
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(s)))
	h.Write(lenBuf[:])
	h.Write([]byte(s))
}

// ComputeFingerprint hashes the command's identity plus the current
// content hash of each declared input, using store to resolve and hash
// inputs. Paths are expressed relative to workspaceRoot so the result
// is portable across machines and checkouts.
func ComputeFingerprint(c *Command, store *FileStore, workspaceRoot string, envWhitelist []string) (Fingerprint, error) {
	h := sha256.New()

	writeLP(h, c.Kind.String())
	writeLP(h, c.Program)
	var argvLen [8]byte
	binary.LittleEndian.PutUint64(argvLen[:], uint64(len(c.Argv)))
	h.Write(argvLen[:])
	for _, a := range c.Argv {
		writeLP(h, a)
	}
	writeLP(h, RelativeTo(workspaceRoot, c.Dir))

	whitelist := envWhitelist
	if whitelist == nil {
		whitelist = DefaultEnvWhitelist
	}
	sorted := append([]string(nil), whitelist...)
	sort.Strings(sorted)
	for _, key := range sorted {
		if v, ok := c.Env[key]; ok {
			writeLP(h, key)
			writeLP(h, v)
		}
	}

	inputs := append([]string(nil), c.fingerprintInputs()...)
	sort.Strings(inputs)
	for _, in := range inputs {
		rec, err := store.Register(in)
		if err != nil {
			return Fingerprint{}, err
		}
		if err := store.Refresh(rec); err != nil {
			return Fingerprint{}, err
		}
		ch, err := store.ContentHash(rec)
		if err != nil {
			return Fingerprint{}, err
		}
		writeLP(h, RelativeTo(workspaceRoot, in))
		h.Write(ch[:])
	}

	var out Fingerprint
	copy(out[:], h.Sum(nil))
	return out, nil
}

// MtimeSignature is a cheap companion to a Fingerprint: a fold of
// (path, lwt) pairs for a command's inputs. The rebuild decider does not
// use it; its mtime pre-check compares input lwts against the
// CommandRecord's MaxInputLWT.
type MtimeSignature uint64

// ComputeMtimeSignature folds the (path, lwt) pairs of inputs, in the
// order given, into a single 64-bit value.
func ComputeMtimeSignature(inputs []string, store *FileStore) (MtimeSignature, error) {
	d := xxhash.New()
	for _, in := range inputs {
		rec, err := store.Register(in)
		if err != nil {
			return 0, err
		}
		if err := store.Refresh(rec); err != nil {
			return 0, err
		}
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(rec.LastWriteTime()))
		d.Write([]byte(rec.Path))
		d.Write(buf[:])
	}
	return MtimeSignature(d.Sum64()), nil
}

// CommandIdentityKey is a cheap, content-independent identity for a
// command: a fold of program, argv, cwd, and sorted input paths (never
// file contents or mtimes). It is stable across runs as long as the
// command's shape doesn't change, and is what the command journal uses
// to look up a command's last-known CommandRecord without touching the
// filesystem.
func CommandIdentityKey(c *Command, workspaceRoot string) uint64 {
	d := xxhash.New()
	d.Write([]byte(c.Program))
	for _, a := range c.Argv {
		d.Write([]byte{0})
		d.Write([]byte(a))
	}
	d.Write([]byte{1})
	d.Write([]byte(RelativeTo(workspaceRoot, c.Dir)))

	inputs := append([]string(nil), c.fingerprintInputs()...)
	sort.Strings(inputs)
	for _, in := range inputs {
		d.Write([]byte{2})
		d.Write([]byte(RelativeTo(workspaceRoot, in)))
	}
	return d.Sum64()
}

// pathKey is the 64-bit digest used as the file journal's record key.
func pathKey(normalizedPath string) uint64 {
	return xxhash.Sum64String(normalizedPath)
}

// fingerprintKey folds a Fingerprint down to the 64-bit value the command
// journal stores as CommandRecord.FingerprintKey (the journal itself is
// keyed by CommandIdentityKey). It keeps the fingerprint's first 8 bytes,
// read little-endian, which is enough entropy at realistic
// command-graph sizes (tens of thousands of edges) while keeping the
// on-disk record a fixed, small size.
func fingerprintKey(f Fingerprint) uint64 {
	return binary.LittleEndian.Uint64(f[:8])
}

// depsKey folds a FileStore.ImplicitDepsHash digest down to the 64-bit
// key the command journal stores alongside FingerprintKey, the same
// truncation fingerprintKey applies to the full content fingerprint.
func depsKey(h [32]byte) uint64 {
	return binary.LittleEndian.Uint64(h[:8])
}
