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
	"fmt"
	"sync"

	"github.com/kilnbuild/kiln/internal/logging"
)

// configInstance bundles the persistent state one build configuration
// (e.g. "debug", "release") needs: its own FileStore, input database,
// and journals. A project with several active configurations keeps one
// of these per configuration rather than sharing global state, so a
// debug build's cached hashes never leak into a release build's
// decisions.
type configInstance struct {
	store    *FileStore
	inputDB  *InputDB
	files    *FileJournal
	commands *CommandJournal
}

// Workspace owns every configuration's persistent state for one
// project checkout. It is the explicit, constructed-by-the-caller
// replacement for a process-wide registry: nothing here is reachable
// except through a Workspace value a caller holds onto.
type Workspace struct {
	root string
	log  *logging.Logger

	mu            sync.Mutex
	configs       map[string]*configInstance
	defaultConfig BuildConfig
}

// NewWorkspace returns an empty Workspace rooted at root.
func NewWorkspace(root string, log *logging.Logger, defaultConfig BuildConfig) *Workspace {
	if log == nil {
		log = logging.NewNop()
	}
	return &Workspace{
		root:          root,
		log:           log,
		configs:       make(map[string]*configInstance),
		defaultConfig: defaultConfig,
	}
}

// Open returns (creating if necessary) the named configuration's
// persistent state, opening its input database and journals under
// cfg.CacheDir/<name>/.
func (w *Workspace) Open(name string, cfg BuildConfig) (*FileStore, *InputDB, *FileJournal, *CommandJournal, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if ci, ok := w.configs[name]; ok {
		return ci.store, ci.inputDB, ci.files, ci.commands, nil
	}

	dir := fmt.Sprintf("%s/%s", cfg.CacheDir, name)
	if err := (RealDiskInterface{}).MakeDirs(dir + "/placeholder"); err != nil {
		return nil, nil, nil, nil, err
	}

	db, err := OpenInputDB(dir+"/inputs.db", cfg.InputCacheSize)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	store := NewFileStore(RealDiskInterface{}, db)

	if err := LoadFileJournal(dir+"/files.journal", db, store, w.log); err != nil {
		db.Close()
		return nil, nil, nil, nil, err
	}
	commands, err := LoadCommandJournal(dir+"/commands.journal", w.log)
	if err != nil {
		db.Close()
		return nil, nil, nil, nil, err
	}
	files := NewFileJournal(dir+"/files.journal", w.log)

	ci := &configInstance{store: store, inputDB: db, files: files, commands: commands}
	w.configs[name] = ci
	return store, db, files, commands, nil
}

// Close flushes and closes every configuration's journals and input
// database. Safe to call once per Workspace at shutdown.
func (w *Workspace) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var firstErr error
	for _, ci := range w.configs {
		if err := ci.files.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := ci.commands.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := ci.inputDB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Recompact rewrites the named configuration's journals in place,
// dropping append history down to the live record set.
func (w *Workspace) Recompact(name string) error {
	w.mu.Lock()
	ci, ok := w.configs[name]
	w.mu.Unlock()
	if !ok {
		return fmt.Errorf("kiln: unknown configuration %q", name)
	}

	if err := ci.commands.Compact(); err != nil {
		return err
	}
	return CompactFileJournal(ci.files.path, ci.store)
}
