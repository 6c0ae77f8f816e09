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
	"os"

	"github.com/spf13/cobra"
)

var (
	flagWorkspaceRoot string
	flagCacheDir      string
	flagParallelism   int
	flagVerbose       bool
	flagQuiet         bool
	flagConfigName    string
)

var rootCmd = &cobra.Command{
	Use:   "kiln",
	Short: "kiln drives an incremental build from a command plan",
	Long: `kiln is the demo caller for the incremental build core: it loads a
plan describing a set of external commands and their file dependencies,
then builds only what the rebuild decider says has changed.

kiln does not parse any particular build-manifest language; "kiln build"
reads a small JSON plan file as a stand-in for whatever an upstream
generator would otherwise produce.`,
}

// Execute runs the root command, exiting the process with the
// command's resolved exit code.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagWorkspaceRoot, "root", ".", "workspace root every path is relative to")
	rootCmd.PersistentFlags().StringVar(&flagCacheDir, "cache-dir", "", "directory for journals and the input database (default: <root>/.cache)")
	rootCmd.PersistentFlags().IntVarP(&flagParallelism, "parallelism", "j", 0, "max concurrently running commands (0 means NumCPU)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "show debug-level log output")
	rootCmd.PersistentFlags().BoolVar(&flagQuiet, "quiet", false, "only log warnings and errors")
	rootCmd.PersistentFlags().StringVar(&flagConfigName, "config", "default", "build configuration name (its own journal/input-db namespace)")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(recompactCmd)
}
