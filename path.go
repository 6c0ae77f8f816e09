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
	"path/filepath"
	"runtime"
	"strings"
)

// caseInsensitiveFS reports whether paths on this platform should be
// folded to a canonical case before being used as map keys. Windows and
// macOS's default APFS volumes are both case-insensitive by default.
func caseInsensitiveFS() bool {
	return runtime.GOOS == "windows" || runtime.GOOS == "darwin"
}

// NormalizePath canonicalizes a path for use as a FileRecord key: made
// absolute, cleaned of "." and ".." components, separators normalized to
// "/", and case-folded on filesystems that do not distinguish case.
//
// This is the absolute identity under which a FileRecord is registered
// and a file journal record is keyed (fingerprints hash RelativeTo the
// workspace root instead), so that the same file
// referenced two different ways (relative vs. absolute, mixed slashes)
// never produces two FileRecords.
func NormalizePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	abs = filepath.Clean(abs)
	abs = filepath.ToSlash(abs)
	if caseInsensitiveFS() {
		abs = strings.ToLower(abs)
	}
	return abs, nil
}

// RelativeTo returns path expressed relative to root using forward
// slashes, the workspace-relative form fingerprints are computed over.
// If path is not under root, the absolute normalized form is returned
// unchanged so fingerprints remain well-defined for out-of-tree inputs
// (e.g. system headers).
func RelativeTo(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
