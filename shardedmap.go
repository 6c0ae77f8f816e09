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
	"runtime"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// minStripes is the floor on shardedMap's stripe count, for low-core
// machines where runtime.NumCPU()*16 would otherwise be too small to
// keep contention sublinear.
const minStripes = 64

// shardedMap is a lock-striped map[string]*FileRecord. Every stripe owns
// its own mutex and bucket so that registration and lookup of unrelated
// paths never contend, which is what lets FileStore.Register be called
// from many goroutines in parallel.
type shardedMap struct {
	stripes []stripe
	mask    uint64
}

type stripe struct {
	mu sync.RWMutex
	m  map[string]*FileRecord
}

func newShardedMap() *shardedMap {
	n := runtime.NumCPU() * 16
	if n < minStripes {
		n = minStripes
	}
	// Round up to a power of two so index-by-mask is branch-free.
	count := 1
	for count < n {
		count <<= 1
	}
	sm := &shardedMap{
		stripes: make([]stripe, count),
		mask:    uint64(count - 1),
	}
	for i := range sm.stripes {
		sm.stripes[i].m = make(map[string]*FileRecord)
	}
	return sm
}

func (sm *shardedMap) stripeFor(key string) *stripe {
	h := xxhash.Sum64String(key)
	return &sm.stripes[h&sm.mask]
}

// getOrCreate returns the existing record for key, or atomically installs
// and returns a freshly created one. The create function must be cheap
// and side-effect-free beyond allocation: it may run while the stripe
// lock is held.
func (sm *shardedMap) getOrCreate(key string, create func() *FileRecord) (*FileRecord, bool) {
	s := sm.stripeFor(key)

	s.mu.RLock()
	if r, ok := s.m[key]; ok {
		s.mu.RUnlock()
		return r, false
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.m[key]; ok {
		return r, false
	}
	r := create()
	s.m[key] = r
	return r, true
}

func (sm *shardedMap) get(key string) (*FileRecord, bool) {
	s := sm.stripeFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.m[key]
	return r, ok
}

// forEach iterates every record in the map. Stripes are visited one at a
// time under their own read lock, so concurrent mutation of other
// stripes is not blocked, but the overall view is not a consistent
// snapshot across the whole map.
func (sm *shardedMap) forEach(f func(path string, r *FileRecord)) {
	for i := range sm.stripes {
		s := &sm.stripes[i]
		s.mu.RLock()
		for k, v := range s.m {
			f(k, v)
		}
		s.mu.RUnlock()
	}
}

func (sm *shardedMap) len() int {
	n := 0
	for i := range sm.stripes {
		s := &sm.stripes[i]
		s.mu.RLock()
		n += len(s.m)
		s.mu.RUnlock()
	}
	return n
}
