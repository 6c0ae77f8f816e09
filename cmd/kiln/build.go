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
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/kilnbuild/kiln"
	"github.com/spf13/cobra"
)

var flagPlanFile string

var buildCmd = &cobra.Command{
	Use:   "build PLAN.json",
	Short: "run a command plan, skipping whatever the decider says is unchanged",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBuild,
}

func init() {
	buildCmd.Flags().StringVarP(&flagPlanFile, "plan", "f", "plan.json", "path to the JSON command plan")
}

func runBuild(cmd *cobra.Command, args []string) error {
	planPath := flagPlanFile
	if len(args) == 1 {
		planPath = args[0]
	}

	cfg, err := resolveConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	defer log.Sync()

	ws := kiln.NewWorkspace(cfg.WorkspaceRoot, log, cfg)
	defer ws.Close()

	store, inputDB, files, commands, err := ws.Open(flagConfigName, cfg)
	if err != nil {
		return err
	}

	graph, err := loadPlan(planPath, cfg.WorkspaceRoot)
	if err != nil {
		return err
	}

	decider := kiln.NewDecider(store, commands, inputDB, cfg.WorkspaceRoot, cfg.EnvWhitelist)
	status := kiln.NewZapStatus(log)
	executor := kiln.NewExecutor(graph, decider, store, commands, files, inputDB, status, cfg.Parallelism, cfg.WorkspaceRoot, cfg.EnvWhitelist)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	go func() {
		<-ctx.Done()
		executor.Stop(true)
	}()

	summary, err := executor.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("%d succeeded, %d skipped, %d failed, %d blocked, %d cancelled in %s\n",
		summary.Succeeded, summary.Skipped, summary.Failed, summary.Blocked, summary.Cancelled, summary.Duration)

	if summary.ExitCode != 0 {
		os.Exit(summary.ExitCode)
	}
	return nil
}
