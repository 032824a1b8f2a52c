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

package auth

import (
	"context"
	"testing"

	"github.com/spf13/afero"

	"github.com/konfd/konfd/internal/graph"
	"github.com/konfd/konfd/internal/source"
)

func buildGraph(t *testing.T, docs map[string]string) *graph.Graph {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, body := range docs {
		if err := afero.WriteFile(fs, "/root/"+name+".yaml", []byte(body), 0o644); err != nil {
			t.Fatalf("WriteFile(%s): %v", name, err)
		}
	}
	g, err := graph.Build(context.Background(), source.NewFSSource("/root", source.WithFS(fs)), "")
	if err != nil {
		t.Fatalf("graph.Build: %v", err)
	}
	return g
}

func TestCheckAllowsKnownToken(t *testing.T) {
	g := buildGraph(t, map[string]string{
		"app": "<!>:\n  auth: [t1, t2]\nk: v\n",
	})
	if err := Check(g, "app", "t1", true); err != nil {
		t.Fatalf("Check: unexpected error: %v", err)
	}
}

func TestCheckDeniesUnknownToken(t *testing.T) {
	g := buildGraph(t, map[string]string{
		"app": "<!>:\n  auth: [t1]\nk: v\n",
	})
	err := Check(g, "app", "nope", true)
	if _, ok := err.(*DeniedError); !ok {
		t.Fatalf("Check: got %v, want *DeniedError", err)
	}
}

func TestCheckMissingTokenHeader(t *testing.T) {
	g := buildGraph(t, map[string]string{
		"app": "<!>:\n  auth: [t1]\nk: v\n",
	})
	err := Check(g, "app", "", false)
	if _, ok := err.(*MissingError); !ok {
		t.Fatalf("Check: got %v, want *MissingError", err)
	}
}

func TestCheckEmptyAuthSetDeniesEverything(t *testing.T) {
	g := buildGraph(t, map[string]string{
		"app": "k: v\n",
	})
	if err := Check(g, "app", "", true); err == nil {
		t.Fatal("Check: expected a denial for a document with no auth set")
	}
	if err := Check(g, "app", "anything", true); err == nil {
		t.Fatal("Check: expected a denial for a document with no auth set")
	}
}

func TestCheckPropagatesMissingDocument(t *testing.T) {
	g := buildGraph(t, map[string]string{})
	err := Check(g, "nope", "t1", true)
	if _, ok := err.(*DeniedError); ok {
		t.Fatal("Check: a missing document must not be reported as a denial")
	}
	if err == nil {
		t.Fatal("Check: expected an error for a missing document")
	}
}
