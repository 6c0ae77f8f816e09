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

//go:build !windows

package kiln

import (
	"os"
	"syscall"
	"time"
)

// terminateGracefully sends SIGTERM and gives the process grace to exit
// on its own before escalating to Kill. exited is closed by the
// caller's Wait goroutine once the process has actually exited, so it
// may be received from here without racing the caller's own read of
// the process's exit error.
func terminateGracefully(proc *os.Process, grace time.Duration, exited <-chan struct{}) {
	if proc == nil {
		return
	}
	_ = proc.Signal(syscall.SIGTERM)
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-exited:
	case <-timer.C:
		_ = proc.Kill()
	}
}
