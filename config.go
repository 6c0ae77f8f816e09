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

	kconfig "github.com/kilnbuild/kiln/internal/config"
)

// BuildConfig holds the knobs that shape a single build run: how many
// commands may run concurrently, which environment variables enter a
// fingerprint, and where a workspace's cache lives.
type BuildConfig struct {
	// WorkspaceRoot is the directory every path is expressed relative
	// to for fingerprinting purposes.
	WorkspaceRoot string `mapstructure:"workspace_root"`

	// CacheDir holds the journals and input database; defaults to
	// "<WorkspaceRoot>/.cache".
	CacheDir string `mapstructure:"cache_dir"`

	// Parallelism bounds concurrently running commands. 0 means
	// runtime.NumCPU().
	Parallelism int `mapstructure:"parallelism"`

	// EnvWhitelist overrides DefaultEnvWhitelist for fingerprinting.
	EnvWhitelist []string `mapstructure:"env_whitelist"`

	// InputCacheSize bounds the InputDB's in-process LRU front cache.
	InputCacheSize int `mapstructure:"input_cache_size"`

	Verbose bool `mapstructure:"verbose"`
	Quiet   bool `mapstructure:"quiet"`
}

// DefaultBuildConfig returns the configuration used when nothing else
// overrides it.
func DefaultBuildConfig(workspaceRoot string) BuildConfig {
	return BuildConfig{
		WorkspaceRoot:  workspaceRoot,
		CacheDir:       workspaceRoot + "/.cache",
		Parallelism:    runtime.NumCPU(),
		EnvWhitelist:   append([]string(nil), DefaultEnvWhitelist...),
		InputCacheSize: 4096,
	}
}

// FromSettings converts a decoded internal/config.Settings into a
// BuildConfig, filling any zero field from base first. Verbose and
// Quiet are always taken from s.
func FromSettings(base BuildConfig, s kconfig.Settings) BuildConfig {
	cfg := base
	if s.WorkspaceRoot != "" {
		cfg.WorkspaceRoot = s.WorkspaceRoot
	}
	if s.CacheDir != "" {
		cfg.CacheDir = s.CacheDir
	}
	if s.Parallelism != 0 {
		cfg.Parallelism = s.Parallelism
	}
	if len(s.EnvWhitelist) > 0 {
		cfg.EnvWhitelist = s.EnvWhitelist
	}
	if s.InputCacheSize != 0 {
		cfg.InputCacheSize = s.InputCacheSize
	}
	cfg.Verbose = s.Verbose
	cfg.Quiet = s.Quiet
	return cfg
}

// Settings mirrors BuildConfig's fields for internal/config to decode
// into before FromSettings merges them with defaults.
func (c BuildConfig) Settings() kconfig.Settings {
	return kconfig.Settings{
		WorkspaceRoot:  c.WorkspaceRoot,
		CacheDir:       c.CacheDir,
		Parallelism:    c.Parallelism,
		EnvWhitelist:   c.EnvWhitelist,
		InputCacheSize: c.InputCacheSize,
		Verbose:        c.Verbose,
		Quiet:          c.Quiet,
	}
}
