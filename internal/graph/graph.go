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

// Package graph holds the in-memory collection of loaded documents for one
// snapshot and is the entry point for rendering. A Graph, once built, is
// immutable: readers never need to lock it.
package graph

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/crossplane/crossplane-runtime/pkg/errors"

	"github.com/konfd/konfd/internal/loader"
	"github.com/konfd/konfd/internal/source"
)

const errList = "failed to list source documents"

// entry is either a successfully loaded Document or the LoadError that
// prevented it from loading: a load failure for any single document makes
// that document absent but does not abort the whole graph.
type entry struct {
	doc *loader.Document
	err error
}

// Graph is the immutable, per-snapshot collection of documents.
type Graph struct {
	snapshot string
	entries  map[string]entry
}

// Get returns the Document for name, or an error: either the stored
// LoadError, or a plain "not found" error when name was never part of the
// source at all.
func (g *Graph) Get(name string) (*loader.Document, error) {
	e, ok := g.entries[name]
	if !ok {
		return nil, &MissingError{Name: name}
	}
	if e.err != nil {
		return nil, e.err
	}
	return e.doc, nil
}

// Names returns every logical name present in the graph, including those
// that failed to load (so callers can report on them), in sorted order.
func (g *Graph) Names() []string {
	names := make([]string, 0, len(g.entries))
	for n := range g.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns the snapshot id this graph was built from.
func (g *Graph) Snapshot() string { return g.snapshot }

// MissingError indicates a logical name that does not exist in the source
// at all (distinct from a LoadError, which means it exists but failed to
// parse).
type MissingError struct{ Name string }

func (e *MissingError) Error() string { return "graph: no such document: " + e.Name }

// Build lists every document in src at snapshot and loads each one
// concurrently, using golang.org/x/sync/errgroup to fan out independent
// work. A load failure for one document is captured per-name rather than
// aborting the build; a duplicate logical name is a hard Duplicate
// LoadError recorded against that name.
func Build(ctx context.Context, src source.Source, snapshot string) (*Graph, error) {
	names, err := src.List(ctx, snapshot)
	if err != nil {
		return nil, errors.Wrap(err, errList)
	}

	seen := make(map[string]bool, len(names))
	unique := make([]string, 0, len(names))
	entries := make(map[string]entry, len(names))
	for _, n := range names {
		if seen[n] {
			entries[n] = entry{err: &loader.LoadError{
				Name:   n,
				Kind:   loader.Duplicate,
				Reason: fmt.Sprintf("logical name %q loaded more than once from source", n),
			}}
			continue
		}
		seen[n] = true
		unique = append(unique, n)
	}

	results := make([]entry, len(unique))
	g, gctx := errgroup.WithContext(ctx)
	for i, n := range unique {
		i, n := i, n
		g.Go(func() error {
			raw, err := src.Read(gctx, snapshot, n)
			if err != nil {
				results[i] = entry{err: err}
				return nil
			}
			doc, err := loader.Load(n, raw)
			if err != nil {
				results[i] = entry{err: err}
				return nil
			}
			results[i] = entry{doc: doc}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, n := range unique {
		if _, dup := entries[n]; dup {
			// Keep the Duplicate LoadError recorded above.
			continue
		}
		entries[n] = results[i]
	}

	return &Graph{snapshot: snapshot, entries: entries}, nil
}
