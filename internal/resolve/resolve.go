// Copyright 2021 Upbound Inc
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

// Package resolve computes a document's rendered value in two phases:
// given a root document name, it builds the import closure with cycle
// detection (phase 1), then substitutes template references against the
// unrendered bodies of the imported documents (phase 2). Substitution is
// single-pass: a template never triggers resolution of the document it
// references.
package resolve

import (
	"github.com/konfd/konfd/internal/graph"
	"github.com/konfd/konfd/internal/loader"
	"github.com/konfd/konfd/internal/value"
)

// MaxDepth bounds import traversal depth so a pathological (non-cyclic but
// very deep) import chain cannot exhaust the call stack.
const MaxDepth = 128

// Render computes the rendered value of root within g.
func Render(g *graph.Graph, root string) (value.Value, *Diagnostics, error) {
	diags := &Diagnostics{}

	table, err := importClosure(g, root, diags)
	if err != nil {
		return value.Value{}, diags, err
	}

	rootDoc := table[root]
	rendered, err := substitute(rootDoc.Body, table, diags)
	if err != nil {
		return value.Value{}, diags, err
	}
	return rendered, diags, nil
}

// importClosure performs phase 1: a depth-first traversal of the import
// graph starting at root, detecting cycles via the traversal stack and
// collecting every reachable document (including root) into an import
// table keyed by logical name.
func importClosure(g *graph.Graph, root string, diags *Diagnostics) (map[string]*loader.Document, error) {
	table := make(map[string]*loader.Document)
	onStack := make(map[string]bool)
	stack := make([]string, 0, 8)

	var visit func(name string, depth int) error
	visit = func(name string, depth int) error {
		if depth > MaxDepth {
			return &RenderError{Kind: TooDeep}
		}
		if onStack[name] {
			cyclePath := append(append([]string{}, stack...), name)
			return &RenderError{Kind: Cycle, Path: cyclePath}
		}
		if _, done := table[name]; done {
			return nil
		}

		doc, err := g.Get(name)
		if err != nil {
			return &RenderError{Kind: BadImport, Name: name, Cause: err}
		}

		onStack[name] = true
		stack = append(stack, name)

		table[name] = doc
		for _, imp := range doc.Warnings {
			diags.warn(UnknownMetadataKey, imp)
		}
		for _, imp := range doc.Metadata.Imports {
			if err := visit(imp, depth+1); err != nil {
				return err
			}
		}

		onStack[name] = false
		stack = stack[:len(stack)-1]
		return nil
	}

	if err := visit(root, 0); err != nil {
		return nil, err
	}
	return table, nil
}
