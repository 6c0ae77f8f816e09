// Copyright 2021 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"os"
	"path/filepath"
	"testing"
)

const testPlanJSON = `{
  "commands": [
    {
      "kind": "CompileC",
      "program": "cc",
      "argv": ["-c", "a.c", "-o", "a.o"],
      "inputs": ["a.c"],
      "outputs": ["a.o"]
    },
    {
      "kind": "Link",
      "program": "cc",
      "argv": ["a.o", "-o", "app"],
      "inputs": ["a.o"],
      "outputs": ["app"]
    }
  ]
}`

func TestLoadPlan_InfersFileEdgeFromSharedPath(t *testing.T) {
	root := t.TempDir()
	planPath := filepath.Join(root, "plan.json")
	if err := os.WriteFile(planPath, []byte(testPlanJSON), 0o644); err != nil {
		t.Fatal(err)
	}

	g, err := loadPlan(planPath, root)
	if err != nil {
		t.Fatal(err)
	}

	cmds := g.Commands()
	if len(cmds) != 2 {
		t.Fatalf("got %d commands, want 2", len(cmds))
	}
	compile, link := cmds[0], cmds[1]

	deps := g.Dependencies(link.ID)
	if len(deps) != 1 || deps[0] != compile.ID {
		t.Fatalf("got dependencies %v for the link step, want [%d] (inferred from a.o)", deps, compile.ID)
	}
}

func TestLoadPlan_UnknownKindIsAnError(t *testing.T) {
	root := t.TempDir()
	planPath := filepath.Join(root, "plan.json")
	bad := `{"commands": [{"kind": "Bogus", "program": "x"}]}`
	if err := os.WriteFile(planPath, []byte(bad), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := loadPlan(planPath, root); err == nil {
		t.Fatal("expected an unknown command kind to be rejected")
	}
}

func TestLoadPlan_UnknownImplicitDepsIsAnError(t *testing.T) {
	root := t.TempDir()
	planPath := filepath.Join(root, "plan.json")
	bad := `{"commands": [{"kind": "Custom", "program": "x", "implicit_deps": "bogus"}]}`
	if err := os.WriteFile(planPath, []byte(bad), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := loadPlan(planPath, root); err == nil {
		t.Fatal("expected an unknown implicit_deps kind to be rejected")
	}
}

func TestLoadPlan_DepfileResolvesAgainstRoot(t *testing.T) {
	root := t.TempDir()
	planPath := filepath.Join(root, "plan.json")
	withDepfile := `{"commands": [{
		"kind": "CompileC",
		"program": "cc",
		"argv": ["-c", "a.c"],
		"inputs": ["a.c"],
		"outputs": ["a.o"],
		"implicit_deps": "gcc-depfile",
		"depfile": "a.o.d"
	}]}`
	if err := os.WriteFile(planPath, []byte(withDepfile), 0o644); err != nil {
		t.Fatal(err)
	}

	g, err := loadPlan(planPath, root)
	if err != nil {
		t.Fatal(err)
	}
	cmd := g.Commands()[0]
	if cmd.ImplicitDepsHint != 1 /* GCCDepfile */ {
		t.Fatalf("got hint %v, want GCCDepfile", cmd.ImplicitDepsHint)
	}
	want := filepath.Join(root, "a.o.d")
	if cmd.DepfilePath != want {
		t.Fatalf("got depfile %q, want %q", cmd.DepfilePath, want)
	}
}

func TestLoadPlan_RelativeInputsResolveAgainstRoot(t *testing.T) {
	root := t.TempDir()
	planPath := filepath.Join(root, "plan.json")
	if err := os.WriteFile(planPath, []byte(testPlanJSON), 0o644); err != nil {
		t.Fatal(err)
	}

	g, err := loadPlan(planPath, root)
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(root, "a.c")
	if got := g.Commands()[0].Inputs[0]; got != want {
		t.Fatalf("got input %q, want %q", got, want)
	}
}
