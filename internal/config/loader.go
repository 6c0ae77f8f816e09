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

// Package config loads a build's settings from, in increasing order of
// precedence: built-in defaults, the KILN_* environment, a project
// ".kiln.yaml" file, and CLI flag overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Settings mirrors kiln.BuildConfig's shape with mapstructure tags so
// viper can decode into it; cmd/kiln converts it to a kiln.BuildConfig
// once loading finishes.
type Settings struct {
	WorkspaceRoot  string   `mapstructure:"workspace_root"`
	CacheDir       string   `mapstructure:"cache_dir"`
	Parallelism    int      `mapstructure:"parallelism"`
	EnvWhitelist   []string `mapstructure:"env_whitelist"`
	InputCacheSize int      `mapstructure:"input_cache_size"`
	Verbose        bool     `mapstructure:"verbose"`
	Quiet          bool     `mapstructure:"quiet"`
}

// Loader accumulates configuration sources into a viper instance before
// a final decode.
type Loader struct {
	v *viper.Viper
}

// NewLoader returns a Loader seeded with defaults and environment
// variable support under the KILN_ prefix (so KILN_PARALLELISM
// overrides "parallelism", KILN_CACHE_DIR overrides "cache_dir", etc).
func NewLoader(defaults Settings) *Loader {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("workspace_root", defaults.WorkspaceRoot)
	v.SetDefault("cache_dir", defaults.CacheDir)
	v.SetDefault("parallelism", defaults.Parallelism)
	v.SetDefault("env_whitelist", defaults.EnvWhitelist)
	v.SetDefault("input_cache_size", defaults.InputCacheSize)
	v.SetDefault("verbose", defaults.Verbose)
	v.SetDefault("quiet", defaults.Quiet)

	// KILN_* variables replace the built-in defaults rather than going
	// through viper's AutomaticEnv, whose env lookup would outrank the
	// project file.
	for _, key := range v.AllKeys() {
		if val, ok := os.LookupEnv("KILN_" + strings.ToUpper(key)); ok {
			v.SetDefault(key, val)
		}
	}

	return &Loader{v: v}
}

// LoadProjectFile merges workspaceRoot/.kiln.yaml into the loader's
// settings if the file exists; a missing file is not an error.
func (l *Loader) LoadProjectFile(workspaceRoot string) error {
	path := filepath.Join(workspaceRoot, ".kiln.yaml")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	l.v.SetConfigFile(path)
	if err := l.v.MergeInConfig(); err != nil {
		return fmt.Errorf("kiln: reading %s: %w", path, err)
	}
	return nil
}

// ApplyFlagOverrides sets keys a CLI parsed explicitly, taking
// precedence over both the project file and the environment. A nil
// value in overrides is skipped rather than clearing the key.
func (l *Loader) ApplyFlagOverrides(overrides map[string]interface{}) {
	for key, value := range overrides {
		if value != nil {
			l.v.Set(key, value)
		}
	}
}

// Decode resolves every source into a Settings value.
func (l *Loader) Decode() (Settings, error) {
	var s Settings
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &s,
		TagName:          "mapstructure",
	})
	if err != nil {
		return Settings{}, err
	}
	if err := dec.Decode(l.v.AllSettings()); err != nil {
		return Settings{}, fmt.Errorf("kiln: decoding configuration: %w", err)
	}
	return s, nil
}
