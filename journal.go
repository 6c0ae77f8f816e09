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
	"encoding/binary"
	"os"
	"sync"
	"time"

	"github.com/google/renameio"
	kerrors "github.com/kilnbuild/kiln/internal/errors"
	"github.com/kilnbuild/kiln/internal/logging"
)

const (
	fileRecordSize    = 16 // u64 path_key, i64 lwt_nanos
	commandRecordSize = 32 // u64 identity_key, i64 max_input_lwt_nanos, u64 fingerprint_key, u64 implicit_deps_key

	flushBatchSize = 256
	flushInterval  = 50 * time.Millisecond
)

// FileJournal is the append-only on-disk log of (path_key, lwt) pairs.
// A single writer goroutine owns the file handle; Append is safe to
// call from many goroutines and only blocks when the internal queue is
// full.
type FileJournal struct {
	path   string
	log    *logging.Logger
	queue  chan [fileRecordSize]byte
	done   chan struct{}
	file   *os.File
	openMu sync.Mutex
}

// NewFileJournal returns a journal that will lazily open path on the
// first Append; a dry run that never appends never touches disk.
func NewFileJournal(path string, log *logging.Logger) *FileJournal {
	j := &FileJournal{
		path:  path,
		log:   log,
		queue: make(chan [fileRecordSize]byte, flushBatchSize*4),
		done:  make(chan struct{}),
	}
	go j.run()
	return j
}

// Append enqueues one record. It blocks if the writer is backed up.
func (j *FileJournal) Append(pathKeyValue uint64, lwtNanos int64) {
	var rec [fileRecordSize]byte
	binary.LittleEndian.PutUint64(rec[0:8], pathKeyValue)
	binary.LittleEndian.PutUint64(rec[8:16], uint64(lwtNanos))
	j.queue <- rec
}

// Close stops the writer goroutine after flushing anything queued.
func (j *FileJournal) Close() error {
	close(j.queue)
	<-j.done
	j.openMu.Lock()
	defer j.openMu.Unlock()
	if j.file != nil {
		return j.file.Close()
	}
	return nil
}

func (j *FileJournal) run() {
	defer close(j.done)
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	var batch [][fileRecordSize]byte
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := j.write(batch); err != nil {
			j.log.Warn("file journal write failed", logging.Err(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case rec, ok := <-j.queue:
			if !ok {
				flush()
				return
			}
			batch = append(batch, rec)
			if len(batch) >= flushBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (j *FileJournal) write(batch [][fileRecordSize]byte) error {
	j.openMu.Lock()
	defer j.openMu.Unlock()
	if j.file == nil {
		f, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return kerrors.NewIOError("opening file journal", err)
		}
		j.file = f
	}
	for _, rec := range batch {
		if _, err := j.file.Write(rec[:]); err != nil {
			return kerrors.NewIOError("appending to file journal", err)
		}
	}
	return nil
}

// LoadFileJournal reads path in one shot and replays it into store,
// last-writer-wins. Each record only carries a path's 64-bit key, so db
// is consulted to recover the path text; a key db can't resolve (for
// example a journal copied without its input database) is skipped with
// a warning rather than aborting the whole load. A truncated tail (not
// a multiple of the record size) is discarded with a warning too, since
// it can only result from a process dying mid-write.
func LoadFileJournal(path string, db *InputDB, store *FileStore, log *logging.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return kerrors.NewIOError("reading file journal", err)
	}

	n := len(data) / fileRecordSize
	if rem := len(data) % fileRecordSize; rem != 0 {
		log.Warn("file journal has a truncated tail, discarding it",
			logging.Int("danglingBytes", rem))
	}

	latest := make(map[uint64]int64, n)
	order := make([]uint64, 0, n)
	for i := 0; i < n; i++ {
		rec := data[i*fileRecordSize : (i+1)*fileRecordSize]
		key := binary.LittleEndian.Uint64(rec[0:8])
		lwt := int64(binary.LittleEndian.Uint64(rec[8:16]))
		if _, seen := latest[key]; !seen {
			order = append(order, key)
		}
		latest[key] = lwt
	}

	for _, key := range order {
		path, ok, err := db.ResolvePathKey(key)
		if err != nil {
			return err
		}
		if !ok {
			log.Warn("file journal entry has no resolvable path, skipping", logging.Int64("pathKey", int64(key)))
			continue
		}
		r, err := store.Register(path)
		if err != nil {
			return err
		}
		r.seedLastWriteTime(latest[key])
	}
	return nil
}

// CommandJournal is the append-only on-disk log of CommandRecords, and
// also serves as the in-memory CommandRecordStore the Decider consults.
type CommandJournal struct {
	path string
	log  *logging.Logger

	mu      sync.RWMutex
	records map[uint64]*CommandRecord

	queue chan CommandRecord
	done  chan struct{}
	file  *os.File
}

// NewCommandJournal returns an empty journal backed by path, opened
// lazily on first Append.
func NewCommandJournal(path string, log *logging.Logger) *CommandJournal {
	j := &CommandJournal{
		path:    path,
		log:     log,
		records: make(map[uint64]*CommandRecord),
		queue:   make(chan CommandRecord, flushBatchSize*4),
		done:    make(chan struct{}),
	}
	go j.run()
	return j
}

// Get implements CommandRecordStore.
func (j *CommandJournal) Get(identityKey uint64) (*CommandRecord, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	r, ok := j.records[identityKey]
	return r, ok
}

// Put installs rec in memory and enqueues it for durable append. A
// record whose MtimeSignature-equivalent fields are unchanged from what
// is already recorded is still appended; de-duplicating writes happens
// at compaction time, not here, to keep the hot path a single insert.
func (j *CommandJournal) Put(rec CommandRecord) {
	j.mu.Lock()
	j.records[rec.IdentityKey] = &rec
	j.mu.Unlock()
	j.queue <- rec
}

// Close stops the writer goroutine after flushing anything queued.
func (j *CommandJournal) Close() error {
	close(j.queue)
	<-j.done
	if j.file != nil {
		return j.file.Close()
	}
	return nil
}

func (j *CommandJournal) run() {
	defer close(j.done)
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	var batch []CommandRecord
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := j.write(batch); err != nil {
			j.log.Warn("command journal write failed", logging.Err(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case rec, ok := <-j.queue:
			if !ok {
				flush()
				return
			}
			batch = append(batch, rec)
			if len(batch) >= flushBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (j *CommandJournal) write(batch []CommandRecord) error {
	if j.file == nil {
		f, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return kerrors.NewIOError("opening command journal", err)
		}
		j.file = f
	}
	var rec [commandRecordSize]byte
	for _, r := range batch {
		binary.LittleEndian.PutUint64(rec[0:8], r.IdentityKey)
		binary.LittleEndian.PutUint64(rec[8:16], uint64(r.MaxInputLWT))
		binary.LittleEndian.PutUint64(rec[16:24], r.FingerprintKey)
		binary.LittleEndian.PutUint64(rec[24:32], r.ImplicitDepsKey)
		if _, err := j.file.Write(rec[:]); err != nil {
			return kerrors.NewIOError("appending to command journal", err)
		}
	}
	return nil
}

// LoadCommandJournal replays path into a fresh CommandJournal,
// last-writer-wins by IdentityKey.
func LoadCommandJournal(path string, log *logging.Logger) (*CommandJournal, error) {
	j := NewCommandJournal(path, log)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return j, nil
		}
		return nil, kerrors.NewIOError("reading command journal", err)
	}

	n := len(data) / commandRecordSize
	if rem := len(data) % commandRecordSize; rem != 0 {
		log.Warn("command journal has a truncated tail, discarding it",
			logging.Int("danglingBytes", rem))
	}

	for i := 0; i < n; i++ {
		rec := data[i*commandRecordSize : (i+1)*commandRecordSize]
		cr := CommandRecord{
			IdentityKey:     binary.LittleEndian.Uint64(rec[0:8]),
			MaxInputLWT:     int64(binary.LittleEndian.Uint64(rec[8:16])),
			FingerprintKey:  binary.LittleEndian.Uint64(rec[16:24]),
			ImplicitDepsKey: binary.LittleEndian.Uint64(rec[24:32]),
		}
		j.records[cr.IdentityKey] = &cr
	}
	return j, nil
}

// Compact rewrites path atomically to hold exactly the current live set
// of records, dropping the append history. Uses renameio so a crash
// mid-compaction can never leave a half-written journal in place.
func (j *CommandJournal) Compact() error {
	j.mu.RLock()
	buf := make([]byte, 0, len(j.records)*commandRecordSize)
	var rec [commandRecordSize]byte
	for _, r := range j.records {
		binary.LittleEndian.PutUint64(rec[0:8], r.IdentityKey)
		binary.LittleEndian.PutUint64(rec[8:16], uint64(r.MaxInputLWT))
		binary.LittleEndian.PutUint64(rec[16:24], r.FingerprintKey)
		binary.LittleEndian.PutUint64(rec[24:32], r.ImplicitDepsKey)
		buf = append(buf, rec[:]...)
	}
	j.mu.RUnlock()

	if err := renameio.WriteFile(j.path, buf, 0o644); err != nil {
		return kerrors.NewIOError("compacting command journal", err)
	}
	return nil
}

// CompactFileJournal rewrites a file journal's backing file to hold exactly the
// live (path_key -> lwt) set in store, atomically.
func CompactFileJournal(path string, store *FileStore) error {
	var buf []byte
	var rec [fileRecordSize]byte
	store.ForEach(func(r *FileRecord) {
		if !r.StatusKnown() {
			return
		}
		binary.LittleEndian.PutUint64(rec[0:8], pathKey(r.Path))
		binary.LittleEndian.PutUint64(rec[8:16], uint64(r.LastWriteTime()))
		buf = append(buf, rec[:]...)
	})
	if err := renameio.WriteFile(path, buf, 0o644); err != nil {
		return kerrors.NewIOError("compacting file journal", err)
	}
	return nil
}
