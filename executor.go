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
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	kerrors "github.com/kilnbuild/kiln/internal/errors"
	"golang.org/x/sync/semaphore"
)

// defaultStopGrace is how long a command gets to exit on its own after
// a terminate signal before Executor escalates to Process.Kill.
const defaultStopGrace = 5 * time.Second

type cmdState int8

const (
	statePending cmdState = iota
	stateReady
	stateRunning
	stateSucceeded
	stateFailed
	stateSkipped
	stateBlocked
)

func (s cmdState) terminal() bool {
	return s == stateSucceeded || s == stateFailed || s == stateSkipped || s == stateBlocked
}

// Executor runs a sealed Graph to completion: it consults the Decider
// for each command, runs what must run, and records successful results
// to the journals. The coordinator (Run's own goroutine) owns every
// state transition; per-command goroutines only ever report results
// back over a channel.
type Executor struct {
	graph         *Graph
	decider       *Decider
	store         *FileStore
	commands      *CommandJournal
	files         *FileJournal
	deps          ImplicitDepsStore
	status        Status
	workspaceRoot string
	envWhitelist  []string
	stopGrace     time.Duration

	sem *semaphore.Weighted

	stopping atomic.Bool
	cancel   context.CancelFunc
}

// NewExecutor wires an Executor. parallelism <= 0 defaults to
// runtime.NumCPU(). deps may be nil, in which case implicit
// dependencies discovered during a run are never persisted across
// process restarts.
func NewExecutor(g *Graph, decider *Decider, store *FileStore, commands *CommandJournal, files *FileJournal, deps ImplicitDepsStore, status Status, parallelism int, workspaceRoot string, envWhitelist []string) *Executor {
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	if status == nil {
		status = NopStatus{}
	}
	return &Executor{
		graph:         g,
		decider:       decider,
		store:         store,
		commands:      commands,
		files:         files,
		deps:          deps,
		status:        status,
		workspaceRoot: workspaceRoot,
		envWhitelist:  envWhitelist,
		stopGrace:     defaultStopGrace,
		sem:           semaphore.NewWeighted(int64(parallelism)),
	}
}

// Stop requests the in-progress Run to wind down. A soft stop lets
// already-running commands finish naturally and simply dispatches
// nothing new; a hard stop additionally cancels the context passed to
// every running command's subprocess. Each running subprocess is then
// sent a terminate signal and given stopGrace to exit on its own before
// Executor escalates to Process.Kill.
func (e *Executor) Stop(hard bool) {
	e.stopping.Store(true)
	if hard && e.cancel != nil {
		e.cancel()
	}
}

type cmdResult struct {
	id      int
	verdict Verdict
	success bool
	output  string
	err     error
	start   time.Time
	end     time.Time
}

// Run executes the graph to completion (or until ctx is done / Stop is
// called) and returns a RunSummary. Must be called on a sealed graph.
func (e *Executor) Run(ctx context.Context) (RunSummary, error) {
	if !e.graph.sealed {
		return RunSummary{}, kerrors.NewConfigError("cannot run an unsealed graph")
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	defer cancel()

	commands := e.graph.Commands()
	n := len(commands)
	state := make([]cmdState, n)
	indegree := make([]int, n)
	for id := range commands {
		indegree[id] = len(e.graph.inEdges[id])
	}

	var ready []int
	for id, d := range indegree {
		if d == 0 {
			ready = append(ready, id)
		}
	}

	results := make(chan cmdResult, n)
	var wg sync.WaitGroup
	start := time.Now()

	e.status.BuildStarted()
	e.status.PlanTotal(n)

	remaining := n
	var summary RunSummary

	dispatch := func(id int) {
		state[id] = stateRunning
		e.status.CommandStarted(CommandStarted{Command: commands[id], StartedAt: time.Now()})
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- e.runOne(runCtx, commands[id])
		}()
	}

	// popBest removes and returns the ready command with the longest
	// critical path, so the work that unblocks the most downstream
	// commands starts first.
	popBest := func() int {
		bestIdx, bestLen := 0, -1
		for i, id := range ready {
			if l := e.graph.CriticalPathLength(id); l > bestLen {
				bestIdx, bestLen = i, l
			}
		}
		id := ready[bestIdx]
		ready[bestIdx] = ready[len(ready)-1]
		ready = ready[:len(ready)-1]
		return id
	}

	blockDownstream := func(id int) {
		var stack []int
		stack = append(stack, id)
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, edge := range e.graph.outEdges[cur] {
				if state[edge.to] != statePending && state[edge.to] != stateReady {
					continue
				}
				state[edge.to] = stateBlocked
				remaining--
				summary.Blocked++
				stack = append(stack, edge.to)
			}
		}
	}

	for _, id := range ready {
		state[id] = stateReady
	}

	for remaining > 0 {
		for !e.stopping.Load() && len(ready) > 0 {
			id := popBest()
			dispatch(id)
		}

		// Once stopped, anything still waiting in the ready queue will
		// never be dispatched; these were cancelled by the stop, not
		// blocked by a failed producer, so count them accordingly
		// instead of hanging forever waiting for a result that will
		// never arrive.
		if e.stopping.Load() && len(ready) > 0 {
			for _, id := range ready {
				state[id] = stateBlocked
				summary.Cancelled++
				remaining--
			}
			ready = nil
		}

		if remaining == 0 {
			break
		}

		res := <-results
		remaining--
		cmd := commands[res.id]

		if res.err != nil && res.verdict != Skip {
			state[res.id] = stateFailed
			if kerrors.IsCancelled(res.err) {
				summary.Cancelled++
			} else {
				summary.Failed++
			}
			blockDownstream(res.id)
		} else {
			if res.verdict == Skip {
				state[res.id] = stateSkipped
				summary.Skipped++
			} else {
				state[res.id] = stateSucceeded
				summary.Succeeded++
			}
			for _, dep := range e.graph.Dependents(cmd.ID) {
				indegree[dep]--
				if indegree[dep] == 0 && !state[dep].terminal() {
					state[dep] = stateReady
					ready = append(ready, dep)
				}
			}
		}

		e.status.CommandFinished(CommandFinished{
			Command:  cmd,
			Verdict:  res.verdict,
			Success:  res.err == nil,
			Output:   res.output,
			Err:      res.err,
			Duration: res.end.Sub(res.start),
		})
	}

	wg.Wait()
	close(results)

	summary.Duration = time.Since(start)
	summary.ExitCode = e.exitCodeFor(summary)
	e.status.BuildFinished(summary)
	return summary, nil
}

func (e *Executor) exitCodeFor(s RunSummary) int {
	switch {
	case s.Failed > 0 && s.Succeeded+s.Skipped > 0:
		return kerrors.ExitPartialFailure.Int()
	case s.Failed > 0:
		return kerrors.ExitProcessFailed.Int()
	default:
		return kerrors.ExitSuccess.Int()
	}
}

// runOne decides whether cmd needs to run and, if so, runs it,
// re-hashes its outputs, and records a CommandRecord. It never touches
// Executor or Graph state directly: the caller applies res to the
// coordinator's state machine.
func (e *Executor) runOne(ctx context.Context, cmd *Command) cmdResult {
	start := time.Now()
	verdict, err := e.decider.Decide(cmd)
	if err != nil {
		return cmdResult{id: cmd.ID, verdict: MustRun, err: err, start: start, end: time.Now()}
	}
	if verdict == Skip {
		return cmdResult{id: cmd.ID, verdict: Skip, success: true, start: start, end: time.Now()}
	}

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return cmdResult{id: cmd.ID, verdict: MustRun, err: kerrors.NewCancelledError(cmd.Program), start: start, end: time.Now()}
	}
	defer e.sem.Release(1)

	runCtx := ctx
	var cancelTimeout context.CancelFunc
	if cmd.Timeout > 0 {
		runCtx, cancelTimeout = context.WithTimeout(ctx, cmd.Timeout)
		defer cancelTimeout()
	}

	c := exec.Command(cmd.Program, cmd.Argv...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		env := make([]string, 0, len(cmd.Env))
		for k, v := range cmd.Env {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
		c.Env = env
	}
	var outBuf bytes.Buffer
	c.Stdout = &outBuf
	c.Stderr = &outBuf

	if err := c.Start(); err != nil {
		return cmdResult{id: cmd.ID, verdict: MustRun,
			err: kerrors.NewProcessFailedError(cmd.Program, -1), start: start, end: time.Now()}
	}

	waitDone := make(chan error, 1)
	exited := make(chan struct{})
	go func() {
		err := c.Wait()
		waitDone <- err
		close(exited)
	}()

	var runErr error
	select {
	case runErr = <-waitDone:
	case <-runCtx.Done():
		terminateGracefully(c.Process, e.stopGrace, exited)
		runErr = <-waitDone
	}
	end := time.Now()
	out := outBuf.Bytes()

	if runErr != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return cmdResult{id: cmd.ID, verdict: MustRun, output: string(out),
				err: kerrors.NewTimedOutError(cmd.Program), start: start, end: end}
		}
		if ctx.Err() == context.Canceled {
			return cmdResult{id: cmd.ID, verdict: MustRun, output: string(out),
				err: kerrors.NewCancelledError(cmd.Program), start: start, end: end}
		}
		exitCode := -1
		if ee, ok := runErr.(*exec.ExitError); ok {
			exitCode = ee.ExitCode()
		}
		return cmdResult{id: cmd.ID, verdict: MustRun, output: string(out),
			err: kerrors.NewProcessFailedError(cmd.Program, exitCode), start: start, end: end}
	}

	if err := e.recordSuccess(cmd, out); err != nil {
		return cmdResult{id: cmd.ID, verdict: MustRun, output: string(out), err: err, start: start, end: end}
	}

	return cmdResult{id: cmd.ID, verdict: MustRun, success: true, output: string(out), start: start, end: end}
}

// recordSuccess re-hashes cmd's outputs and inputs, discovers any
// implicit dependencies cmd's run exposed, computes the final
// Fingerprint, and appends the resulting records to the journals.
func (e *Executor) recordSuccess(cmd *Command, output []byte) error {
	var maxInputLWT int64
	for _, in := range cmd.Inputs {
		r, err := e.store.Register(in)
		if err != nil {
			return err
		}
		if err := e.store.Refresh(r); err != nil {
			return err
		}
		if lwt := r.LastWriteTime(); lwt > maxInputLWT {
			maxInputLWT = lwt
		}
		if e.files != nil {
			e.files.Append(pathKey(r.Path), r.LastWriteTime())
		}
	}

	for _, out := range cmd.Outputs {
		r, err := e.store.Register(out)
		if err != nil {
			return err
		}
		if err := e.store.Refresh(r); err != nil {
			return err
		}
		if !r.Exists() {
			return kerrors.NewInputMissingError(out)
		}
		if e.files != nil {
			e.files.Append(pathKey(r.Path), r.LastWriteTime())
		}
	}

	implicitDeps, err := e.discoverImplicitDeps(cmd, output)
	if err != nil {
		return err
	}

	var implicitDepsKey uint64
	if len(implicitDeps) > 0 && len(cmd.Outputs) > 0 {
		outRec, err := e.store.Register(cmd.Outputs[0])
		if err != nil {
			return err
		}
		hash, err := e.store.ImplicitDepsHash(outRec, implicitDeps)
		if err != nil {
			return err
		}
		implicitDepsKey = depsKey(hash)
	}

	f, err := ComputeFingerprint(cmd, e.store, e.workspaceRoot, e.envWhitelist)
	if err != nil {
		return err
	}

	identityKey := CommandIdentityKey(cmd, e.workspaceRoot)
	if e.deps != nil && len(implicitDeps) > 0 {
		if err := e.deps.PutImplicitDeps(identityKey, implicitDeps); err != nil {
			return err
		}
	}

	if e.commands != nil {
		e.commands.Put(CommandRecord{
			IdentityKey:     identityKey,
			MaxInputLWT:     maxInputLWT,
			FingerprintKey:  fingerprintKey(f),
			ImplicitDepsKey: implicitDepsKey,
		})
	}
	return nil
}

// discoverImplicitDeps extracts the implicit-dependency paths cmd's run
// exposed, per its ImplicitDepsHint, and registers each with the file
// store so later lookups (including the next build's rebuild decision)
// can resolve it. Returns nil, nil for NoImplicitDeps or a hint whose
// source produced nothing to parse.
func (e *Executor) discoverImplicitDeps(cmd *Command, output []byte) ([]string, error) {
	var discovered []string
	switch cmd.ImplicitDepsHint {
	case GCCDepfile:
		if cmd.DepfilePath == "" {
			return nil, nil
		}
		content, err := e.store.disk.ReadFile(cmd.DepfilePath)
		if err != nil {
			return nil, kerrors.NewInputUnreadableError(cmd.DepfilePath, err)
		}
		var p DepfileParser
		if err := p.Parse(content); err != nil {
			return nil, err
		}
		discovered = p.Ins
	case MSVCShowIncludes:
		var p MSVCDepsParser
		p.Parse(string(output))
		discovered = p.Includes
	default:
		return nil, nil
	}

	normalized := make([]string, 0, len(discovered))
	for _, dep := range discovered {
		abs := dep
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(cmd.Dir, abs)
		}
		norm, err := NormalizePath(abs)
		if err != nil {
			return nil, err
		}
		if _, err := e.store.Register(norm); err != nil {
			return nil, err
		}
		normalized = append(normalized, norm)
	}
	return normalized, nil
}
