// Copyright 2015 Google Inc. All Rights Reserved.
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
	"path"
	"strings"
)

// defaultShowIncludesPrefix is cl.exe's English-locale /showIncludes
// line prefix; a localized build may pass its own via
// MSVCDepsParser.Prefix.
const defaultShowIncludesPrefix = "Note: including file: "

// MSVCDepsParser splits cl.exe's combined stdout into the text that
// should still be shown to a user and the set of headers it reported
// via /showIncludes, mirroring what a compiler wrapper does before
// handing output back to the executor.
type MSVCDepsParser struct {
	// Prefix overrides defaultShowIncludesPrefix for localized cl.exe
	// builds; empty means use the English default.
	Prefix string

	Includes []string
	Filtered string
}

// Parse scans output line by line, pulling /showIncludes lines into
// Includes (deduplicated, system headers dropped) and leaving every
// other line, except the compiler's echoed input filename, in
// Filtered.
func (p *MSVCDepsParser) Parse(output string) {
	prefix := p.Prefix
	if prefix == "" {
		prefix = defaultShowIncludesPrefix
	}

	seen := make(map[string]struct{}, len(p.Includes))
	for _, inc := range p.Includes {
		seen[inc] = struct{}{}
	}

	var out strings.Builder
	sawShowIncludes := false
	for _, line := range splitLines(output) {
		if inc, ok := filterShowIncludesLine(line, prefix); ok {
			sawShowIncludes = true
			// cl.exe always emits backslash-separated Windows paths
			// regardless of the host this wrapper runs on, so the
			// conversion to '/' can't be left to path/filepath, whose
			// separator handling follows the host's GOOS.
			norm := path.Clean(strings.ReplaceAll(inc, "\\", "/"))
			if !isSystemInclude(norm) {
				if _, dup := seen[norm]; !dup {
					seen[norm] = struct{}{}
					p.Includes = append(p.Includes, norm)
				}
			}
			continue
		}
		if !sawShowIncludes && looksLikeInputFilename(line) {
			continue
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}
	p.Filtered = out.String()
}

// splitLines splits on \r\n, \r, or \n without keeping the delimiters.
func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// filterShowIncludesLine returns the included file path and true if
// line carries cl.exe's /showIncludes prefix.
func filterShowIncludesLine(line, prefix string) (string, bool) {
	if !strings.HasPrefix(line, prefix) {
		return "", false
	}
	rest := strings.TrimLeft(line[len(prefix):], " ")
	return rest, true
}

// isSystemInclude heuristically filters out headers under a Visual
// Studio or Program Files install, which dominate /showIncludes output
// and are never what a build wants to treat as a project dependency.
func isSystemInclude(path string) bool {
	lower := strings.ToLower(path)
	return strings.Contains(lower, "program files") || strings.Contains(lower, "microsoft visual studio")
}

// looksLikeInputFilename heuristically matches cl.exe's habit of
// echoing the source file name it's compiling as the first line of
// output when given no other diagnostics to print.
func looksLikeInputFilename(line string) bool {
	lower := strings.ToLower(line)
	for _, ext := range []string{".c", ".cc", ".cxx", ".cpp"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
