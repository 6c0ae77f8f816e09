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
	"os"
	"time"
)

// DiskInterface abstracts filesystem access so FileStore and the
// executor can be driven by tests without touching a real filesystem.
type DiskInterface interface {
	// Stat returns the last-write-time in nanoseconds since the epoch,
	// or 0 if the path does not exist. A non-nil error means the stat
	// itself failed for a reason other than "not found" (permissions).
	Stat(path string) (lwtNanos int64, err error)
	// ReadFile returns the full contents of path.
	ReadFile(path string) ([]byte, error)
	// Remove deletes path; a missing file is not an error.
	Remove(path string) error
	// MakeDirs ensures the parent directory of path exists.
	MakeDirs(path string) error
}

// RealDiskInterface implements DiskInterface against the real OS
// filesystem.
type RealDiskInterface struct{}

func (RealDiskInterface) Stat(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return -1, err
	}
	return fi.ModTime().UnixNano(), nil
}

func (RealDiskInterface) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (RealDiskInterface) Remove(path string) error {
	err := os.Remove(path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

func (RealDiskInterface) MakeDirs(path string) error {
	dir := path[:lastSlash(path)]
	if dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func lastSlash(path string) int {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return i
		}
	}
	return 0
}

// now is a seam over time.Now so tests can control timestamps; kept at
// nanosecond precision since on-disk records store nanos.
var now = func() int64 { return time.Now().UnixNano() }
