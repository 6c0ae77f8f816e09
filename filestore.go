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
	"sort"

	kerrors "github.com/kilnbuild/kiln/internal/errors"
	"golang.org/x/sync/singleflight"
)

// FileStore tracks the FileRecord for every path a build touches. One
// FileStore belongs to one Workspace and is threaded explicitly through
// the scheduler rather than looked up through a global registry, so
// multiple configurations can coexist in one process without sharing
// state.
type FileStore struct {
	disk  DiskInterface
	files *shardedMap

	// db, if non-nil, fronts and amortizes content hashing across
	// separate process runs: a (path, lwt) hit there skips re-reading
	// the file at all.
	db *InputDB

	// hashGroup collapses concurrent ContentHash calls for the same
	// path into one actual read+hash, so concurrent requests don't
	// redundantly hash without needing a record-wide mutex that would
	// block unrelated readers.
	hashGroup singleflight.Group
}

// NewFileStore creates an empty store backed by disk. db may be nil, in
// which case every ContentHash call reads and hashes fresh.
func NewFileStore(disk DiskInterface, db *InputDB) *FileStore {
	return &FileStore{
		disk:  disk,
		files: newShardedMap(),
		db:    db,
	}
}

// Register returns the FileRecord for path, normalizing it first and
// creating the record on first sight. Concurrent callers registering
// the same path observe the same record.
func (s *FileStore) Register(path string) (*FileRecord, error) {
	norm, err := NormalizePath(path)
	if err != nil {
		return nil, err
	}
	r, created := s.files.getOrCreate(norm, func() *FileRecord {
		return &FileRecord{Path: norm}
	})
	if created && s.db != nil {
		if err := s.db.RememberPathKey(norm); err != nil {
			return r, err
		}
	}
	return r, nil
}

// Lookup returns the record for an already-normalized path, if one
// exists, without creating it.
func (s *FileStore) Lookup(normalizedPath string) (*FileRecord, bool) {
	return s.files.get(normalizedPath)
}

// Refresh stats the file and, if the observed mtime differs from the
// value stored on the record, invalidates the cached content and
// implicit-dependency hashes.
func (s *FileStore) Refresh(r *FileRecord) error {
	lwt, err := s.disk.Stat(r.Path)
	if err != nil {
		return kerrors.NewInputUnreadableError(r.Path, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if lwt == 0 {
		r.exists = existenceMissing
		r.lwtNanos = 0
		r.invalidate()
		return nil
	}
	if lwt != r.lwtNanos {
		r.lwtNanos = lwt
		r.invalidate()
	}
	r.exists = existenceExists
	return nil
}

// ContentHash returns the strong content hash of r, computing it on
// demand if stale, without redundant work under concurrent callers;
// singleflight.Group provides that without forcing every caller through
// one record-wide lock.
func (s *FileStore) ContentHash(r *FileRecord) ([32]byte, error) {
	r.mu.Lock()
	if r.contentHashValid {
		h := r.contentHash
		r.mu.Unlock()
		return h, nil
	}
	r.mu.Unlock()
	lwt := r.LastWriteTime()

	if s.db != nil {
		if entry, fresh, err := s.db.Lookup(r.Path, lwt); err == nil && fresh {
			r.mu.Lock()
			r.contentHash = entry.Hash
			r.contentHashValid = true
			r.mu.Unlock()
			return entry.Hash, nil
		}
	}

	v, err, _ := s.hashGroup.Do(r.Path, func() (interface{}, error) {
		data, ferr := s.disk.ReadFile(r.Path)
		if ferr != nil {
			return [32]byte{}, kerrors.NewInputUnreadableError(r.Path, ferr)
		}
		return sha256.Sum256(data), nil
	})
	if err != nil {
		return [32]byte{}, err
	}
	h := v.([32]byte)

	r.mu.Lock()
	r.contentHash = h
	r.contentHashValid = true
	r.mu.Unlock()

	if s.db != nil {
		if err := s.db.Put(r.Path, h, lwt); err != nil {
			return h, err
		}
	}
	return h, nil
}

// ImplicitDepsStore persists, across process runs, the set of implicit
// dependency paths (headers discovered by a compiler's depfile or
// /showIncludes output) last recorded for a command, keyed by the same
// CommandIdentityKey the command journal uses. InputDB implements this.
type ImplicitDepsStore interface {
	GetImplicitDeps(identityKey uint64) ([]string, bool, error)
	PutImplicitDeps(identityKey uint64, deps []string) error
}

// ImplicitDepsHash folds the content hashes of closure (the transitive
// set of files r implicitly depends on -- headers discovered by the
// compiler) into a single digest, in sorted path order so the result is
// independent of discovery order. The digest is recomputed whenever any
// file in the closure changes, which falls out naturally here since
// each ContentHash call re-hashes stale records.
func (s *FileStore) ImplicitDepsHash(r *FileRecord, closure []string) ([32]byte, error) {
	sorted := append([]string(nil), closure...)
	sort.Strings(sorted)

	h := sha256.New()
	for _, path := range sorted {
		dep, err := s.Register(path)
		if err != nil {
			return [32]byte{}, err
		}
		if err := s.Refresh(dep); err != nil {
			return [32]byte{}, err
		}
		ch, err := s.ContentHash(dep)
		if err != nil {
			return [32]byte{}, err
		}
		h.Write([]byte(dep.Path))
		h.Write(ch[:])
	}

	var out [32]byte
	copy(out[:], h.Sum(nil))

	r.mu.Lock()
	r.implicitHash = out
	r.implicitHashValid = true
	r.mu.Unlock()
	return out, nil
}

// Len reports the number of distinct files currently tracked.
func (s *FileStore) Len() int {
	return s.files.len()
}

// ForEach visits every tracked FileRecord. Used by journal flush and by
// compaction to enumerate the live set.
func (s *FileStore) ForEach(f func(*FileRecord)) {
	s.files.forEach(func(_ string, r *FileRecord) { f(r) })
}
