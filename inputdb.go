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
	"bytes"
	"encoding/binary"
	"encoding/gob"

	lru "github.com/hashicorp/golang-lru/v2"
	kerrors "github.com/kilnbuild/kiln/internal/errors"
	bolt "go.etcd.io/bbolt"
)

var (
	filesBucket        = []byte("files")
	pathKeysBucket     = []byte("pathkeys")
	implicitDepsBucket = []byte("implicitdeps")
)

// FileHashEntry is the persisted value for one path in the input
// database: the content hash last computed for it, and the lwt it was
// computed at.
type FileHashEntry struct {
	Hash               [32]byte
	LastWriteTimeNanos int64
}

// InputDB amortizes content hashing of files many commands read (a
// single header can be an input to thousands of compile commands) by
// persisting (path, lwt) -> hash across runs, backed by a single bbolt
// file. A bounded LRU sits in front of it so a single run doesn't pay a
// bbolt transaction per lookup for the same hot header.
type InputDB struct {
	db    *bolt.DB
	cache *lru.Cache[string, FileHashEntry]
}

// OpenInputDB opens (creating if necessary) the bbolt file at path,
// with an in-process LRU front cache sized cacheSize entries.
func OpenInputDB(path string, cacheSize int) (*InputDB, error) {
	db, err := bolt.Open(path, 0o644, nil)
	if err != nil {
		return nil, kerrors.NewIOError("opening input database", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(filesBucket); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(pathKeysBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(implicitDepsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, kerrors.NewIOError("initializing input database buckets", err)
	}

	if cacheSize <= 0 {
		cacheSize = 4096
	}
	cache, err := lru.New[string, FileHashEntry](cacheSize)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &InputDB{db: db, cache: cache}, nil
}

// Close closes the underlying bbolt file.
func (d *InputDB) Close() error {
	return d.db.Close()
}

// Lookup returns the cached entry for a normalized path, if present and
// matching the given lwt exactly (a stale lwt means the cached hash no
// longer applies, so callers must re-hash).
func (d *InputDB) Lookup(path string, lwtNanos int64) (FileHashEntry, bool, error) {
	if e, ok := d.cache.Get(path); ok {
		return e, e.LastWriteTimeNanos == lwtNanos, nil
	}

	var entry FileHashEntry
	var found bool
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(filesBucket).Get([]byte(path))
		if v == nil {
			return nil
		}
		found = true
		return gob.NewDecoder(bytes.NewReader(v)).Decode(&entry)
	})
	if err != nil {
		return FileHashEntry{}, false, kerrors.NewIOError("reading input database", err)
	}
	if !found {
		return FileHashEntry{}, false, nil
	}
	d.cache.Add(path, entry)
	return entry, entry.LastWriteTimeNanos == lwtNanos, nil
}

// Put records path's hash at lwtNanos, and keeps the pathKeysBucket
// reverse index (pathKey -> path) current so FileJournal replay can
// reconstruct path text from the 64-bit key it persists.
func (d *InputDB) Put(path string, hash [32]byte, lwtNanos int64) error {
	entry := FileHashEntry{Hash: hash, LastWriteTimeNanos: lwtNanos}
	d.cache.Add(path, entry)

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(entry); err != nil {
		return err
	}

	var keyBytes [8]byte
	binary.LittleEndian.PutUint64(keyBytes[:], pathKey(path))

	err := d.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(filesBucket).Put([]byte(path), buf.Bytes()); err != nil {
			return err
		}
		return tx.Bucket(pathKeysBucket).Put(keyBytes[:], []byte(path))
	})
	if err != nil {
		return kerrors.NewIOError("writing input database", err)
	}
	return nil
}

// RememberPathKey records the (pathKey -> path) reverse mapping without
// touching the file-hash entry, so a path becomes resolvable by
// FileJournal replay as soon as it is registered, even before its
// content is ever hashed.
func (d *InputDB) RememberPathKey(path string) error {
	var keyBytes [8]byte
	binary.LittleEndian.PutUint64(keyBytes[:], pathKey(path))
	err := d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(pathKeysBucket)
		if b.Get(keyBytes[:]) != nil {
			return nil
		}
		return b.Put(keyBytes[:], []byte(path))
	})
	if err != nil {
		return kerrors.NewIOError("writing input database path index", err)
	}
	return nil
}

// ResolvePathKey reverses pathKey(path) back to the path text, for
// FileJournal replay.
func (d *InputDB) ResolvePathKey(key uint64) (string, bool, error) {
	var keyBytes [8]byte
	binary.LittleEndian.PutUint64(keyBytes[:], key)

	var path string
	var found bool
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(pathKeysBucket).Get(keyBytes[:])
		if v == nil {
			return nil
		}
		found = true
		path = string(v)
		return nil
	})
	if err != nil {
		return "", false, kerrors.NewIOError("reading input database path index", err)
	}
	return path, found, nil
}

// GetImplicitDeps returns the implicit-dependency paths (headers
// discovered by a compiler's depfile or /showIncludes output) last
// recorded for the command identified by identityKey, if that command
// has ever recorded any.
func (d *InputDB) GetImplicitDeps(identityKey uint64) ([]string, bool, error) {
	var keyBytes [8]byte
	binary.LittleEndian.PutUint64(keyBytes[:], identityKey)

	var deps []string
	var found bool
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(implicitDepsBucket).Get(keyBytes[:])
		if v == nil {
			return nil
		}
		found = true
		return gob.NewDecoder(bytes.NewReader(v)).Decode(&deps)
	})
	if err != nil {
		return nil, false, kerrors.NewIOError("reading implicit deps", err)
	}
	return deps, found, nil
}

// PutImplicitDeps persists the implicit-dependency paths discovered the
// last time the command identified by identityKey ran successfully,
// replacing whatever was recorded for it previously.
func (d *InputDB) PutImplicitDeps(identityKey uint64, deps []string) error {
	var keyBytes [8]byte
	binary.LittleEndian.PutUint64(keyBytes[:], identityKey)

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(deps); err != nil {
		return err
	}

	err := d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(implicitDepsBucket).Put(keyBytes[:], buf.Bytes())
	})
	if err != nil {
		return kerrors.NewIOError("writing implicit deps", err)
	}
	return nil
}

// Evict removes entries for paths not present in live, dropping
// retention of files no longer referenced by any command in the current
// graph. Workspace.Recompact does not call it; nothing in the build core
// does, so entries stay in the database until a caller runs Evict.
func (d *InputDB) Evict(live map[string]struct{}) error {
	var stale [][]byte
	err := d.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(filesBucket).ForEach(func(k, _ []byte) error {
			if _, ok := live[string(k)]; !ok {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
	})
	if err != nil {
		return kerrors.NewIOError("scanning input database for eviction", err)
	}
	if len(stale) == 0 {
		return nil
	}
	return d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(filesBucket)
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
			d.cache.Remove(string(k))
		}
		return nil
	})
}
