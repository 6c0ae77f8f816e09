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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kilnbuild/kiln"
)

// planCommand is one entry of a JSON plan file, the stand-in for
// whatever an upstream generator would otherwise hand the core.
type planCommand struct {
	Kind         string            `json:"kind"`
	Program      string            `json:"program"`
	Argv         []string          `json:"argv"`
	Dir          string            `json:"dir"`
	Env          map[string]string `json:"env"`
	Inputs       []string          `json:"inputs"`
	Outputs      []string          `json:"outputs"`
	Description  string            `json:"description"`
	TimeoutSecs  int               `json:"timeout_seconds"`
	ImplicitDeps string            `json:"implicit_deps"`
	Depfile      string            `json:"depfile"`
}

type plan struct {
	Commands []planCommand `json:"commands"`
}

var kindByName = map[string]kiln.Kind{
	"CompileC":   kiln.CompileC,
	"CompileCXX": kiln.CompileCXX,
	"Link":       kiln.Link,
	"Archive":    kiln.Archive,
	"Custom":     kiln.Custom,
}

var implicitDepsHintByName = map[string]kiln.ImplicitDepsHint{
	"":                   kiln.NoImplicitDeps,
	"gcc-depfile":        kiln.GCCDepfile,
	"msvc-show-includes": kiln.MSVCShowIncludes,
}

// loadPlan reads a JSON plan file and builds a sealed Graph from it,
// inferring a FileEdge from producer to consumer wherever one
// command's declared output matches another's declared input.
func loadPlan(path, workspaceRoot string) (*kiln.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("kiln: reading plan %s: %w", path, err)
	}
	var p plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("kiln: parsing plan %s: %w", path, err)
	}

	g := kiln.NewGraph()
	producedBy := make(map[string]int, len(p.Commands))

	for _, pc := range p.Commands {
		kind, ok := kindByName[pc.Kind]
		if !ok && pc.Kind != "" {
			return nil, fmt.Errorf("kiln: unknown command kind %q", pc.Kind)
		}
		hint, ok := implicitDepsHintByName[pc.ImplicitDeps]
		if !ok {
			return nil, fmt.Errorf("kiln: unknown implicit_deps kind %q", pc.ImplicitDeps)
		}
		dir := pc.Dir
		if dir == "" {
			dir = workspaceRoot
		} else if !filepath.IsAbs(dir) {
			dir = filepath.Join(workspaceRoot, dir)
		}

		depfile := pc.Depfile
		if depfile != "" && !filepath.IsAbs(depfile) {
			depfile = filepath.Join(workspaceRoot, depfile)
		}

		cmd := &kiln.Command{
			Kind:             kind,
			Program:          pc.Program,
			Argv:             pc.Argv,
			Dir:              dir,
			Env:              pc.Env,
			Inputs:           absolutizeAll(workspaceRoot, pc.Inputs),
			Outputs:          absolutizeAll(workspaceRoot, pc.Outputs),
			Description:      pc.Description,
			ImplicitDepsHint: hint,
			DepfilePath:      depfile,
		}
		if pc.TimeoutSecs > 0 {
			cmd.Timeout = time.Duration(pc.TimeoutSecs) * time.Second
		}
		if err := g.AddCommand(cmd); err != nil {
			return nil, err
		}
		for _, out := range cmd.Outputs {
			producedBy[out] = cmd.ID
		}
	}

	for _, cmd := range g.Commands() {
		for _, in := range cmd.Inputs {
			if upstream, ok := producedBy[in]; ok && upstream != cmd.ID {
				if err := g.AddEdge(upstream, cmd.ID, kiln.FileEdge); err != nil {
					return nil, err
				}
			}
		}
	}

	if err := g.Seal(); err != nil {
		return nil, err
	}
	return g, nil
}

func absolutizeAll(root string, paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		if filepath.IsAbs(p) {
			out[i] = p
		} else {
			out[i] = filepath.Join(root, p)
		}
	}
	return out
}
