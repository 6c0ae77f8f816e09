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

import "testing"

func addTestCommand(t *testing.T, g *Graph) *Command {
	t.Helper()
	c := &Command{Program: "cc"}
	if err := g.AddCommand(c); err != nil {
		t.Fatal(err)
	}
	return c
}

func TestGraph_SealComputesCriticalPath(t *testing.T) {
	g := NewGraph()
	a := addTestCommand(t, g)
	b := addTestCommand(t, g)
	c := addTestCommand(t, g)

	if err := g.AddEdge(a.ID, b.ID, FileEdge); err != nil {
		t.Fatal(err)
	}
	if err := g.AddEdge(b.ID, c.ID, FileEdge); err != nil {
		t.Fatal(err)
	}
	if err := g.Seal(); err != nil {
		t.Fatal(err)
	}

	if g.CriticalPathLength(a.ID) != 2 {
		t.Fatalf("got %d, want 2 for the head of a 3-node chain", g.CriticalPathLength(a.ID))
	}
	if g.CriticalPathLength(c.ID) != 0 {
		t.Fatalf("got %d, want 0 for the tail of the chain", g.CriticalPathLength(c.ID))
	}
}

func TestGraph_SealDetectsCycle(t *testing.T) {
	g := NewGraph()
	a := addTestCommand(t, g)
	b := addTestCommand(t, g)

	if err := g.AddEdge(a.ID, b.ID, FileEdge); err != nil {
		t.Fatal(err)
	}
	if err := g.AddEdge(b.ID, a.ID, FileEdge); err != nil {
		t.Fatal(err)
	}

	err := g.Seal()
	if err == nil {
		t.Fatal("expected Seal to reject a cyclic graph")
	}
	if _, ok := err.(*CycleError); !ok {
		t.Fatalf("got %T, want *CycleError", err)
	}
}

func TestGraph_CycleErrorTrimsLeadingNonCycleNodes(t *testing.T) {
	g := NewGraph()
	d := addTestCommand(t, g)
	a := addTestCommand(t, g)
	b := addTestCommand(t, g)
	c := addTestCommand(t, g)

	// D -> A -> B -> C -> A: D is on the DFS stack when the A->B->C->A
	// back-edge is found but is not itself part of the cycle.
	if err := g.AddEdge(d.ID, a.ID, FileEdge); err != nil {
		t.Fatal(err)
	}
	if err := g.AddEdge(a.ID, b.ID, FileEdge); err != nil {
		t.Fatal(err)
	}
	if err := g.AddEdge(b.ID, c.ID, FileEdge); err != nil {
		t.Fatal(err)
	}
	if err := g.AddEdge(c.ID, a.ID, FileEdge); err != nil {
		t.Fatal(err)
	}

	err := g.Seal()
	cyc, ok := err.(*CycleError)
	if !ok {
		t.Fatalf("got %T, want *CycleError", err)
	}
	want := []int{a.ID, b.ID, c.ID, a.ID}
	if len(cyc.Path) != len(want) {
		t.Fatalf("got %v, want %v", cyc.Path, want)
	}
	for i := range want {
		if cyc.Path[i] != want[i] {
			t.Fatalf("got %v, want %v", cyc.Path, want)
		}
	}
}

func TestGraph_SealedGraphRejectsMutation(t *testing.T) {
	g := NewGraph()
	addTestCommand(t, g)
	if err := g.Seal(); err != nil {
		t.Fatal(err)
	}

	if err := g.AddCommand(&Command{}); err == nil {
		t.Fatal("expected AddCommand to fail on a sealed graph")
	}
	if err := g.AddEdge(0, 0, FileEdge); err == nil {
		t.Fatal("expected AddEdge to fail on a sealed graph")
	}
}

func TestGraph_DependenciesAndDependents(t *testing.T) {
	g := NewGraph()
	a := addTestCommand(t, g)
	b := addTestCommand(t, g)
	if err := g.AddEdge(a.ID, b.ID, FileEdge); err != nil {
		t.Fatal(err)
	}

	deps := g.Dependencies(b.ID)
	if len(deps) != 1 || deps[0] != a.ID {
		t.Fatalf("got %v, want [%d]", deps, a.ID)
	}
	dependents := g.Dependents(a.ID)
	if len(dependents) != 1 || dependents[0] != b.ID {
		t.Fatalf("got %v, want [%d]", dependents, b.ID)
	}
}
