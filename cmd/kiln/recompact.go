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
	"fmt"

	"github.com/kilnbuild/kiln"
	"github.com/spf13/cobra"
)

var recompactCmd = &cobra.Command{
	Use:   "recompact",
	Short: "rewrite a configuration's journals in place, dropping append history",
	RunE:  runRecompact,
}

func runRecompact(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	defer log.Sync()

	ws := kiln.NewWorkspace(cfg.WorkspaceRoot, log, cfg)
	defer ws.Close()

	if _, _, _, _, err := ws.Open(flagConfigName, cfg); err != nil {
		return err
	}
	if err := ws.Recompact(flagConfigName); err != nil {
		return err
	}
	fmt.Printf("recompacted configuration %q\n", flagConfigName)
	return nil
}
