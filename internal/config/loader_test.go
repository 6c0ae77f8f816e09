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

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func defaultsFixture() Settings {
	return Settings{
		WorkspaceRoot:  "/ws",
		CacheDir:       "/ws/.cache",
		Parallelism:    4,
		EnvWhitelist:   []string{"PATH"},
		InputCacheSize: 4096,
	}
}

func TestLoader_DecodeReturnsDefaultsWithNoOverrides(t *testing.T) {
	l := NewLoader(defaultsFixture())
	s, err := l.Decode()
	if err != nil {
		t.Fatal(err)
	}
	if s.Parallelism != 4 {
		t.Fatalf("got Parallelism=%d, want 4", s.Parallelism)
	}
	if s.CacheDir != "/ws/.cache" {
		t.Fatalf("got CacheDir=%q, want /ws/.cache", s.CacheDir)
	}
}

func TestLoader_ProjectFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	yaml := "parallelism: 8\ncache_dir: /custom/cache\n"
	if err := os.WriteFile(filepath.Join(dir, ".kiln.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(defaultsFixture())
	if err := l.LoadProjectFile(dir); err != nil {
		t.Fatal(err)
	}
	s, err := l.Decode()
	if err != nil {
		t.Fatal(err)
	}
	if s.Parallelism != 8 {
		t.Fatalf("got Parallelism=%d, want 8 from the project file", s.Parallelism)
	}
	if s.CacheDir != "/custom/cache" {
		t.Fatalf("got CacheDir=%q, want /custom/cache from the project file", s.CacheDir)
	}
}

func TestLoader_FlagOverrideBeatsProjectFile(t *testing.T) {
	dir := t.TempDir()
	yaml := "parallelism: 8\n"
	if err := os.WriteFile(filepath.Join(dir, ".kiln.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(defaultsFixture())
	if err := l.LoadProjectFile(dir); err != nil {
		t.Fatal(err)
	}
	l.ApplyFlagOverrides(map[string]interface{}{"parallelism": 16})

	s, err := l.Decode()
	if err != nil {
		t.Fatal(err)
	}
	if s.Parallelism != 16 {
		t.Fatalf("got Parallelism=%d, want 16 from the CLI override", s.Parallelism)
	}
}

func TestLoader_MissingProjectFileIsNotAnError(t *testing.T) {
	l := NewLoader(defaultsFixture())
	if err := l.LoadProjectFile(t.TempDir()); err != nil {
		t.Fatal(err)
	}
}

func TestLoader_NilOverrideIsSkipped(t *testing.T) {
	l := NewLoader(defaultsFixture())
	l.ApplyFlagOverrides(map[string]interface{}{"cache_dir": nil})
	s, err := l.Decode()
	if err != nil {
		t.Fatal(err)
	}
	if s.CacheDir != "/ws/.cache" {
		t.Fatalf("got CacheDir=%q, want the default to survive a nil override", s.CacheDir)
	}
}
