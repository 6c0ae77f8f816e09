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
	"errors"
	"strings"
)

// DepfileParser extracts the implicit inputs a compiler discovered
// while producing an output, from a Makefile-style depfile of the form
// produced by gcc/clang's -M family of flags:
//
//	output: dep1 dep2 \
//	  dep3
//
// A backslash escapes a following space or '#'; a backslash directly
// before a newline is a line continuation rather than an escape.
type DepfileParser struct {
	Outs []string
	Ins  []string
}

// Parse populates Outs and Ins from content. Only the first ':' is
// treated as the target/dependency separator, matching what a
// single-output compile command's depfile actually contains.
func (d *DepfileParser) Parse(content []byte) error {
	text := string(content)
	// Fold line continuations ("\\\n" or "\\\r\n") into a single line
	// before tokenizing; gcc emits these purely for readability.
	text = strings.ReplaceAll(text, "\\\r\n", " ")
	text = strings.ReplaceAll(text, "\\\n", " ")

	colon := strings.IndexByte(text, ':')
	if colon == -1 {
		return errors.New("kiln: expected ':' in depfile")
	}
	targets := text[:colon]
	rest := text[colon+1:]

	for _, tok := range tokenizeDepfile(targets) {
		d.Outs = appendUnique(d.Outs, tok)
	}
	for _, tok := range tokenizeDepfile(rest) {
		d.Ins = appendUnique(d.Ins, tok)
	}
	return nil
}

// tokenizeDepfile splits on unescaped whitespace, de-escaping "\ " to a
// literal space and "\#" to a literal '#' within a token.
func tokenizeDepfile(s string) []string {
	var toks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s) && (s[i+1] == ' ' || s[i+1] == '#'):
			cur.WriteByte(s[i+1])
			i++
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return toks
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
