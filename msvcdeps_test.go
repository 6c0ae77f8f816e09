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
	"reflect"
	"strings"
	"testing"
)

func TestMSVCDepsParser_ExtractsIncludesAndDropsEchoedFilename(t *testing.T) {
	output := "foo.cpp\r\n" +
		"Note: including file: C:\\project\\foo.h\r\n" +
		"Note: including file:  C:\\Program Files\\Microsoft Visual Studio\\include\\stdio.h\r\n" +
		"foo.cpp(10): warning C4101: unreferenced local variable\r\n"

	var p MSVCDepsParser
	p.Parse(output)

	want := []string{"C:/project/foo.h"}
	if !reflect.DeepEqual(p.Includes, want) {
		t.Fatalf("Includes = %v, want %v (system header must be dropped)", p.Includes, want)
	}

	if strings.Contains(p.Filtered, "foo.cpp\r\n") || strings.HasPrefix(p.Filtered, "foo.cpp\n") {
		t.Fatalf("Filtered should not contain the echoed input filename: %q", p.Filtered)
	}
	if !strings.Contains(p.Filtered, "warning C4101") {
		t.Fatalf("Filtered should retain non-include diagnostic lines: %q", p.Filtered)
	}
	if strings.Contains(p.Filtered, "Note: including file") {
		t.Fatalf("Filtered should not contain /showIncludes lines: %q", p.Filtered)
	}
}

func TestMSVCDepsParser_DeduplicatesIncludes(t *testing.T) {
	output := "Note: including file: foo.h\n" +
		"Note: including file: foo.h\n"

	var p MSVCDepsParser
	p.Parse(output)

	if want := []string{"foo.h"}; !reflect.DeepEqual(p.Includes, want) {
		t.Fatalf("Includes = %v, want %v", p.Includes, want)
	}
}

func TestMSVCDepsParser_CustomPrefix(t *testing.T) {
	var p MSVCDepsParser
	p.Prefix = "Remarque : inclusion du fichier : "
	p.Parse("Remarque : inclusion du fichier :  bar.h\n")

	if want := []string{"bar.h"}; !reflect.DeepEqual(p.Includes, want) {
		t.Fatalf("Includes = %v, want %v", p.Includes, want)
	}
}
