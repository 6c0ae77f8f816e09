// Copyright 2021 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"path/filepath"

	"github.com/kilnbuild/kiln"
	"github.com/kilnbuild/kiln/internal/config"
	"github.com/kilnbuild/kiln/internal/logging"
)

// resolveConfig applies CLI > project file (<root>/.kiln.yaml) >
// KILN_* environment > defaults, in that order of precedence.
func resolveConfig() (kiln.BuildConfig, error) {
	root, err := filepath.Abs(flagWorkspaceRoot)
	if err != nil {
		return kiln.BuildConfig{}, err
	}

	defaults := kiln.DefaultBuildConfig(root)
	loader := config.NewLoader(defaults.Settings())
	if err := loader.LoadProjectFile(root); err != nil {
		return kiln.BuildConfig{}, err
	}

	overrides := map[string]interface{}{}
	if flagCacheDir != "" {
		overrides["cache_dir"] = flagCacheDir
	}
	if flagParallelism != 0 {
		overrides["parallelism"] = flagParallelism
	}
	if flagVerbose {
		overrides["verbose"] = true
	}
	if flagQuiet {
		overrides["quiet"] = true
	}
	loader.ApplyFlagOverrides(overrides)

	settings, err := loader.Decode()
	if err != nil {
		return kiln.BuildConfig{}, err
	}
	return kiln.FromSettings(defaults, settings), nil
}

func newLogger(cfg kiln.BuildConfig) *logging.Logger {
	return logging.New(logging.Config{Verbose: cfg.Verbose, Quiet: cfg.Quiet})
}
