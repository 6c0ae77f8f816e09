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

//go:build windows

package kiln

import (
	"os"
	"time"
)

// terminateGracefully on Windows has no portable equivalent of SIGTERM,
// so it escalates straight to Kill; grace is unused but kept for
// signature parity with the Unix implementation.
func terminateGracefully(proc *os.Process, grace time.Duration, exited <-chan struct{}) {
	if proc == nil {
		return
	}
	_ = proc.Kill()
}
