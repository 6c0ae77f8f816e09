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
	"os"
	"sync"

	"github.com/kilnbuild/kiln/internal/logging"
)

// Status is how a build reports its progress. Implementations must be
// safe for concurrent calls: the coordinator is the only caller, but it
// posts from its own goroutine while workers are still running.
type Status interface {
	PlanTotal(total int)
	CommandStarted(ev CommandStarted)
	CommandFinished(ev CommandFinished)
	BuildStarted()
	BuildFinished(summary RunSummary)
}

// NopStatus discards everything; useful for tests and library callers
// that don't want console output.
type NopStatus struct{}

func (NopStatus) PlanTotal(int)                   {}
func (NopStatus) CommandStarted(CommandStarted)    {}
func (NopStatus) CommandFinished(CommandFinished)  {}
func (NopStatus) BuildStarted()                    {}
func (NopStatus) BuildFinished(RunSummary)         {}

// TermStatus prints a running "[started/total] description" line per
// command to a terminal, overwriting the previous line the way an
// interactive build tool does.
type TermStatus struct {
	mu       sync.Mutex
	out      *os.File
	total    int
	started  int
	finished int
}

// NewTermStatus returns a Status that writes single-line progress to out.
func NewTermStatus(out *os.File) *TermStatus {
	return &TermStatus{out: out}
}

func (s *TermStatus) PlanTotal(total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total = total
}

func (s *TermStatus) CommandStarted(ev CommandStarted) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started++
	desc := ev.Command.Description
	if desc == "" {
		desc = ev.Command.Program
	}
	fmt.Fprintf(s.out, "\r[%d/%d] %s%s", s.started, s.total, desc, clearToEOL)
}

func (s *TermStatus) CommandFinished(ev CommandFinished) {
	s.mu.Lock()
	s.finished++
	s.mu.Unlock()
	if !ev.Success && ev.Verdict != Skip {
		fmt.Fprintf(s.out, "\nFAILED: %s\n%s\n", ev.Command.Description, ev.Output)
	}
}

func (s *TermStatus) BuildStarted() {
	fmt.Fprintln(s.out, "build started")
}

func (s *TermStatus) BuildFinished(summary RunSummary) {
	fmt.Fprintf(s.out, "\r%s\n%d succeeded, %d skipped, %d failed, %d blocked, %d cancelled in %s\n",
		clearToEOL, summary.Succeeded, summary.Skipped, summary.Failed, summary.Blocked, summary.Cancelled, summary.Duration)
}

const clearToEOL = "\x1b[K"

// ZapStatus emits the same events as structured log records through
// internal/logging instead of terminal lines, for CI and other
// non-interactive drivers where an overwritten progress line is noise.
type ZapStatus struct {
	log *logging.Logger
}

// NewZapStatus returns a Status that logs through log.
func NewZapStatus(log *logging.Logger) *ZapStatus {
	return &ZapStatus{log: log}
}

func (s *ZapStatus) PlanTotal(total int) {
	s.log.Info("plan", logging.Int("totalCommands", total))
}

func (s *ZapStatus) CommandStarted(ev CommandStarted) {
	s.log.Debug("command started",
		logging.String("description", ev.Command.Description),
		logging.String("kind", ev.Command.Kind.String()))
}

func (s *ZapStatus) CommandFinished(ev CommandFinished) {
	fields := []logging.Field{
		logging.String("description", ev.Command.Description),
		logging.Bool("success", ev.Success),
		logging.Duration("duration", ev.Duration),
	}
	if ev.Verdict == Skip {
		s.log.Debug("command skipped", fields...)
		return
	}
	if ev.Success {
		s.log.Info("command finished", fields...)
		return
	}
	fields = append(fields, logging.Err(ev.Err), logging.String("output", ev.Output))
	s.log.Error("command failed", fields...)
}

func (s *ZapStatus) BuildStarted() {
	s.log.Info("build started")
}

func (s *ZapStatus) BuildFinished(summary RunSummary) {
	s.log.Info("build finished",
		logging.Int("succeeded", summary.Succeeded),
		logging.Int("skipped", summary.Skipped),
		logging.Int("failed", summary.Failed),
		logging.Int("blocked", summary.Blocked),
		logging.Int("cancelled", summary.Cancelled),
		logging.Duration("duration", summary.Duration))
}
