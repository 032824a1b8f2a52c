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

package reload

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/spf13/afero"

	"github.com/konfd/konfd/internal/source"
)

// countingSource wraps a Source and counts List calls, so a test can
// assert how many rebuilds a batch of concurrent Reload calls triggered.
type countingSource struct {
	source.Source
	calls int32
}

func (c *countingSource) List(ctx context.Context, snapshot string) ([]string, error) {
	atomic.AddInt32(&c.calls, 1)
	return c.Source.List(ctx, snapshot)
}

func TestNewBuildsInitialGraph(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/root/a.yaml", []byte("k: v\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	src := source.NewFSSource("/root", source.WithFS(fs))

	c, err := New(context.Background(), src)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Graph().Get("a"); err != nil {
		t.Fatalf("Graph().Get(a): %v", err)
	}
}

func TestReloadSwapsOnSuccess(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/root/a.yaml", []byte("k: v1\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	src := source.NewFSSource("/root", source.WithFS(fs))

	c, err := New(context.Background(), src)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := afero.WriteFile(fs, "/root/a.yaml", []byte("k: v2\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := c.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	doc, err := c.Graph().Get("a")
	if err != nil {
		t.Fatalf("Graph().Get(a): %v", err)
	}
	k, _ := doc.Body.Get("k")
	if k.Str() != "v2" {
		t.Fatalf("k: got %v, want v2 after reload", k)
	}
}

func TestReloadKeepsOldGraphOnFailure(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/root/a.yaml", []byte("k: v1\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	src := source.NewFSSource("/root", source.WithFS(fs))

	c, err := New(context.Background(), src)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	before := c.Graph()

	// Remove the root entirely so a rebuild's List() fails.
	if err := fs.RemoveAll("/root"); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}
	_ = c.Reload(context.Background())

	if c.Graph() != before {
		t.Fatal("Reload: graph was swapped despite a failed rebuild")
	}
}

// TestReloadCoalescesConcurrentCallers exercises §4.G's coalescing
// guarantee: concurrent Reload calls share one in-flight graph.Build
// rather than each running their own.
func TestReloadCoalescesConcurrentCallers(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/root/a.yaml", []byte("k: v1\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	src := source.NewFSSource("/root", source.WithFS(fs))

	c, err := New(context.Background(), src)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	counting := &countingSource{Source: src}
	c.src = counting

	const callers = 20
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.Reload(context.Background()); err != nil {
				t.Errorf("Reload: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&counting.calls); got != 1 {
		t.Fatalf("List calls: got %d, want exactly 1 (concurrent Reload callers must coalesce)", got)
	}
	if _, err := c.Graph().Get("a"); err != nil {
		t.Fatalf("Graph().Get(a): %v", err)
	}
}
