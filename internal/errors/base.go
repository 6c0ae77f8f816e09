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

package errors

import (
	"errors"
	"fmt"
)

// BuildError is the base error type for all core errors. It carries
// enough structure for a CLI to print a useful summary line per failed
// command (kind, message, optional cause, exit code) while still being a
// plain error for callers that just want Error()/Unwrap().
type BuildError struct {
	Kind     string
	Message  string
	Cause    error
	ExitCode ExitCode
}

func (e *BuildError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *BuildError) Unwrap() error {
	return e.Cause
}

func newError(kind, message string, cause error, code ExitCode) *BuildError {
	return &BuildError{Kind: kind, Message: message, Cause: cause, ExitCode: code}
}

// NewConfigError reports a fatal, pre-build configuration problem such
// as running a graph that was never sealed. Graph.Seal does not return
// a ConfigError: it reports a cycle as a *CycleError.
func NewConfigError(message string) *BuildError {
	return newError("ConfigError", message, nil, ExitConfigError)
}

// NewIOError reports a journal or input-database read/write failure.
// Callers should log it and continue without persistence for the
// session rather than aborting the build.
func NewIOError(message string, cause error) *BuildError {
	return newError("IOError", message, cause, ExitIOError)
}

// NewInputMissingError reports a declared input that could not be
// stat'd.
func NewInputMissingError(path string) *BuildError {
	return newError("InputMissing", "missing input: "+path, nil, ExitInputMissing)
}

// NewInputUnreadableError reports a declared input that exists but
// could not be opened.
func NewInputUnreadableError(path string, cause error) *BuildError {
	return newError("InputUnreadable", "unreadable input: "+path, cause, ExitInputUnreadable)
}

// NewProcessFailedError reports a non-zero exit from a child process.
func NewProcessFailedError(program string, exitCode int) *BuildError {
	return newError("ProcessFailed", fmt.Sprintf("%s exited with status %d", program, exitCode), nil, ExitProcessFailed)
}

// NewTimedOutError reports a command whose wall-clock timeout elapsed.
func NewTimedOutError(program string) *BuildError {
	return newError("TimedOut", program+" timed out", nil, ExitTimedOut)
}

// NewCancelledError reports a command that was still queued or running
// when the build was stopped.
func NewCancelledError(program string) *BuildError {
	return newError("Cancelled", program+" cancelled", nil, ExitCancelled)
}

// IsCancelled reports whether err is (or wraps) a Cancelled BuildError,
// so a caller can distinguish "stopped" from "actually failed" without
// string-matching.
func IsCancelled(err error) bool {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Kind == "Cancelled"
	}
	return false
}
