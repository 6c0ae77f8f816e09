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
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kilnbuild/kiln/internal/logging"
)

// recordingStatus is a Status that records every CommandStarted event
// it receives, for asserting the hook actually fires.
type recordingStatus struct {
	mu      sync.Mutex
	started []int
}

func (s *recordingStatus) PlanTotal(int) {}
func (s *recordingStatus) CommandStarted(ev CommandStarted) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = append(s.started, ev.Command.ID)
}
func (s *recordingStatus) CommandFinished(CommandFinished) {}
func (s *recordingStatus) BuildStarted()                   {}
func (s *recordingStatus) BuildFinished(RunSummary)         {}

func newTestGraph(t *testing.T, commands ...*Command) *Graph {
	t.Helper()
	g := NewGraph()
	for _, c := range commands {
		if err := g.AddCommand(c); err != nil {
			t.Fatal(err)
		}
	}
	return g
}

func TestExecutor_FreshBuildRunsEveryCommand(t *testing.T) {
	root := t.TempDir()
	input := filepath.Join(root, "in.txt")
	output := filepath.Join(root, "out.txt")
	if err := os.WriteFile(input, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := &Command{
		Kind:    Custom,
		Program: "/bin/sh",
		Argv:    []string{"-c", "cat " + input + " > " + output},
		Dir:     root,
		Inputs:  []string{input},
		Outputs: []string{output},
	}
	g := newTestGraph(t, c)
	if err := g.Seal(); err != nil {
		t.Fatal(err)
	}

	store := NewFileStore(RealDiskInterface{}, nil)
	commands := NewCommandJournal(filepath.Join(root, "commands.journal"), logging.NewNop())
	defer commands.Close()

	decider := NewDecider(store, commands, nil, root, nil)
	exec := NewExecutor(g, decider, store, commands, nil, nil, NopStatus{}, 2, root, nil)

	summary, err := exec.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Succeeded != 1 || summary.Failed != 0 {
		t.Fatalf("got %+v, want 1 succeeded, 0 failed", summary)
	}
	if _, err := os.Stat(output); err != nil {
		t.Fatalf("expected output file to exist: %v", err)
	}
}

func TestExecutor_RerunSkipsUnchangedCommand(t *testing.T) {
	root := t.TempDir()
	input := filepath.Join(root, "in.txt")
	output := filepath.Join(root, "out.txt")
	if err := os.WriteFile(input, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	newCmd := func() *Command {
		return &Command{
			Kind:    Custom,
			Program: "/bin/sh",
			Argv:    []string{"-c", "cat " + input + " > " + output},
			Dir:     root,
			Inputs:  []string{input},
			Outputs: []string{output},
		}
	}

	store := NewFileStore(RealDiskInterface{}, nil)
	commands := NewCommandJournal(filepath.Join(root, "commands.journal"), logging.NewNop())
	defer commands.Close()

	g1 := newTestGraph(t, newCmd())
	if err := g1.Seal(); err != nil {
		t.Fatal(err)
	}
	decider := NewDecider(store, commands, nil, root, nil)
	exec1 := NewExecutor(g1, decider, store, commands, nil, nil, NopStatus{}, 2, root, nil)
	if _, err := exec1.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Same command shape, same file contents: the second run must skip
	// rather than re-invoke the shell.
	g2 := newTestGraph(t, newCmd())
	if err := g2.Seal(); err != nil {
		t.Fatal(err)
	}
	exec2 := NewExecutor(g2, decider, store, commands, nil, nil, NopStatus{}, 2, root, nil)
	summary, err := exec2.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Skipped != 1 || summary.Succeeded != 0 {
		t.Fatalf("got %+v, want 1 skipped on the unchanged rerun", summary)
	}
}

func TestExecutor_FailureBlocksDownstream(t *testing.T) {
	root := t.TempDir()
	failOut := filepath.Join(root, "fail.out")
	downOut := filepath.Join(root, "down.out")

	failing := &Command{
		Kind:    Custom,
		Program: "/bin/sh",
		Argv:    []string{"-c", "exit 1"},
		Dir:     root,
		Outputs: []string{failOut},
	}
	downstream := &Command{
		Kind:    Custom,
		Program: "/bin/sh",
		Argv:    []string{"-c", "echo hi > " + downOut},
		Dir:     root,
		Inputs:  []string{failOut},
		Outputs: []string{downOut},
	}

	g := newTestGraph(t, failing, downstream)
	if err := g.AddEdge(failing.ID, downstream.ID, FileEdge); err != nil {
		t.Fatal(err)
	}
	if err := g.Seal(); err != nil {
		t.Fatal(err)
	}

	store := NewFileStore(RealDiskInterface{}, nil)
	commands := NewCommandJournal(filepath.Join(root, "commands.journal"), logging.NewNop())
	defer commands.Close()
	decider := NewDecider(store, commands, nil, root, nil)
	exec := NewExecutor(g, decider, store, commands, nil, nil, NopStatus{}, 2, root, nil)

	summary, err := exec.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Failed != 1 {
		t.Fatalf("got %d failed, want 1", summary.Failed)
	}
	if summary.Blocked != 1 {
		t.Fatalf("got %d blocked, want 1 (the downstream command must never run)", summary.Blocked)
	}
	if _, err := os.Stat(downOut); err == nil {
		t.Fatal("downstream command must not have run")
	}
	if summary.ExitCode == 0 {
		t.Fatal("expected a non-zero exit code after a failed command")
	}
}

// TestExecutor_ImplicitDepHeaderChangeForcesRebuild recreates spec's S2
// scenario end to end, using a real depfile written by the command
// itself (standing in for gcc's -MF output) and a real InputDB shared
// across two runs: a command's own declared Inputs never change, but
// the header it discovers via its depfile does, and that alone must
// force a rerun.
func TestExecutor_ImplicitDepHeaderChangeForcesRebuild(t *testing.T) {
	root := t.TempDir()
	mainC := filepath.Join(root, "main.c")
	header := filepath.Join(root, "header.h")
	out := filepath.Join(root, "out.o")
	depfile := filepath.Join(root, "out.o.d")

	if err := os.WriteFile(mainC, []byte("int main(){}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(header, []byte("#define N 1"), 0o644); err != nil {
		t.Fatal(err)
	}

	newCmd := func() *Command {
		return &Command{
			Kind:    Custom,
			Program: "/bin/sh",
			Argv: []string{"-c",
				"cat " + mainC + " " + header + " > " + out +
					" && printf 'out.o: " + mainC + " " + header + "\\n' > " + depfile},
			Dir:              root,
			Inputs:           []string{mainC},
			Outputs:          []string{out},
			ImplicitDepsHint: GCCDepfile,
			DepfilePath:      depfile,
		}
	}

	store := NewFileStore(RealDiskInterface{}, nil)
	commands := NewCommandJournal(filepath.Join(root, "commands.journal"), logging.NewNop())
	defer commands.Close()
	deps, err := OpenInputDB(filepath.Join(root, "inputs.db"), 0)
	if err != nil {
		t.Fatal(err)
	}
	defer deps.Close()

	decider := NewDecider(store, commands, deps, root, nil)

	g1 := newTestGraph(t, newCmd())
	if err := g1.Seal(); err != nil {
		t.Fatal(err)
	}
	exec1 := NewExecutor(g1, decider, store, commands, nil, deps, NopStatus{}, 2, root, nil)
	summary, err := exec1.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Succeeded != 1 {
		t.Fatalf("got %+v, want 1 succeeded on the fresh build", summary)
	}

	// Rerun with nothing changed at all: the implicit-dependency closure
	// recorded above must not force a spurious rebuild.
	g2 := newTestGraph(t, newCmd())
	if err := g2.Seal(); err != nil {
		t.Fatal(err)
	}
	exec2 := NewExecutor(g2, decider, store, commands, nil, deps, NopStatus{}, 2, root, nil)
	summary, err = exec2.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Skipped != 1 || summary.Succeeded != 0 {
		t.Fatalf("got %+v, want 1 skipped when nothing, including the discovered header, changed", summary)
	}

	// Edit only the header, never listed in the command's own Inputs.
	if err := os.WriteFile(header, []byte("#define N 2"), 0o644); err != nil {
		t.Fatal(err)
	}

	g3 := newTestGraph(t, newCmd())
	if err := g3.Seal(); err != nil {
		t.Fatal(err)
	}
	exec3 := NewExecutor(g3, decider, store, commands, nil, deps, NopStatus{}, 2, root, nil)
	summary, err = exec3.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Succeeded != 1 {
		t.Fatalf("got %+v, want 1 succeeded after the implicit-dependency header changed", summary)
	}
}

func TestExecutor_RunPostsCommandStarted(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "out.txt")

	c := &Command{
		Kind:    Custom,
		Program: "/bin/sh",
		Argv:    []string{"-c", "echo hi > " + out},
		Dir:     root,
		Outputs: []string{out},
	}
	g := newTestGraph(t, c)
	if err := g.Seal(); err != nil {
		t.Fatal(err)
	}

	store := NewFileStore(RealDiskInterface{}, nil)
	commands := NewCommandJournal(filepath.Join(root, "commands.journal"), logging.NewNop())
	defer commands.Close()
	decider := NewDecider(store, commands, nil, root, nil)
	status := &recordingStatus{}
	exec := NewExecutor(g, decider, store, commands, nil, nil, status, 2, root, nil)

	if _, err := exec.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	status.mu.Lock()
	defer status.mu.Unlock()
	if len(status.started) != 1 || status.started[0] != c.ID {
		t.Fatalf("got CommandStarted events %v, want [%d]", status.started, c.ID)
	}
}

func TestExecutor_StopCountsCancelledWork(t *testing.T) {
	root := t.TempDir()

	// A long-running command and a second command with nothing to wait
	// on: with parallelism 1 the second blocks on the worker semaphore,
	// so a hard Stop mid-run must cancel both instead of reporting
	// either as a plain failure.
	slow := &Command{
		Kind:    Custom,
		Program: "/bin/sleep",
		Argv:    []string{"5"},
		Dir:     root,
		Outputs: []string{filepath.Join(root, "slow.out")},
	}
	queued := &Command{
		Kind:    Custom,
		Program: "/bin/sh",
		Argv:    []string{"-c", "true"},
		Dir:     root,
		Outputs: []string{filepath.Join(root, "queued.out")},
	}

	g := newTestGraph(t, slow, queued)
	if err := g.Seal(); err != nil {
		t.Fatal(err)
	}

	store := NewFileStore(RealDiskInterface{}, nil)
	commands := NewCommandJournal(filepath.Join(root, "commands.journal"), logging.NewNop())
	defer commands.Close()
	decider := NewDecider(store, commands, nil, root, nil)
	// Parallelism 1 so queued never starts alongside slow.
	exec := NewExecutor(g, decider, store, commands, nil, nil, NopStatus{}, 1, root, nil)

	go func() {
		time.Sleep(50 * time.Millisecond)
		exec.Stop(true)
	}()

	summary, err := exec.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Cancelled == 0 {
		t.Fatalf("got %+v, want at least 1 cancelled after Stop", summary)
	}
}
