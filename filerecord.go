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

import "sync"

// existenceStatus records whether the file on disk has been examined
// yet, and if so, whether it was found present.
type existenceStatus int8

const (
	existenceUnknown existenceStatus = iota
	existenceMissing
	existenceExists
)

// FileRecord identifies one filesystem path tracked by a FileStore. A
// path maps to at most one live FileRecord per process (FileStore owns
// that invariant); Commands never hold a FileRecord directly, only the
// path, and look it up through the store each time.
type FileRecord struct {
	// Path is the normalized absolute path; it is the map key and never
	// changes after creation.
	Path string

	mu sync.Mutex

	lwtNanos int64
	exists   existenceStatus

	contentHash      [32]byte
	contentHashValid bool

	implicitHash      [32]byte
	implicitHashValid bool
}

// LastWriteTime returns the last observed modification time in
// nanoseconds since the epoch, or 0 if the file has never been stat'd
// or was found missing.
func (r *FileRecord) LastWriteTime() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lwtNanos
}

// Exists reports whether the last stat found the file present. It
// returns false both when the file is known missing and when it has
// never been examined; callers that need to distinguish use
// StatusKnown.
func (r *FileRecord) Exists() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exists == existenceExists
}

// StatusKnown reports whether the file has been stat'd at least once.
func (r *FileRecord) StatusKnown() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exists != existenceUnknown
}

// invalidate marks the cached hashes stale. Called whenever a stat
// observes a changed mtime (FileStore.Refresh): a changed mtime must
// invalidate any cached content hash.
func (r *FileRecord) invalidate() {
	r.contentHashValid = false
	r.implicitHashValid = false
}

// seedLastWriteTime installs a last-write-time recovered from the file
// journal without touching the cached hashes; the next Refresh call
// compares a fresh stat against this value exactly as if the record had
// been observed within this process all along.
func (r *FileRecord) seedLastWriteTime(lwtNanos int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lwtNanos = lwtNanos
}
