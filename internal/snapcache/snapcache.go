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

// Package snapcache caches built Graphs by snapshot id: a small keyed
// store guarded against concurrent duplicate work, except the backing
// store here is a bounded in-memory LRU rather than a filesystem
// directory, and the "fetch" that populates an entry (graph.Build) is
// coalesced across concurrent callers instead of merely
// mutex-serialized.
package snapcache

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/crossplane/crossplane-runtime/pkg/errors"

	"github.com/konfd/konfd/internal/graph"
	"github.com/konfd/konfd/internal/source"
)

// DefaultCapacity is the number of snapshots retained when no explicit
// capacity is configured.
const DefaultCapacity = 32

const errNewLRU = "failed to construct snapshot cache"

// Cache caches *graph.Graph values by snapshot id, building missing
// entries from src. Concurrent requests for the same uncached snapshot
// share a single build: single-flight ensures concurrent requests for
// the same missing snapshot trigger exactly one build.
type Cache struct {
	src source.Source

	lru *lru.Cache[string, *graph.Graph]
	sf  singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithCapacity overrides the number of snapshots retained. The default
// is DefaultCapacity.
func WithCapacity(n int) Option {
	return func(c *Cache) {
		cache, err := lru.New[string, *graph.Graph](n)
		if err != nil {
			// n <= 0; fall back to the default rather than leaving the
			// cache unusable.
			cache, _ = lru.New[string, *graph.Graph](DefaultCapacity)
		}
		c.lru = cache
	}
}

// New constructs a Cache reading documents from src.
func New(src source.Source, opts ...Option) (*Cache, error) {
	c := &Cache{src: src}
	for _, o := range opts {
		o(c)
	}
	if c.lru == nil {
		cache, err := lru.New[string, *graph.Graph](DefaultCapacity)
		if err != nil {
			return nil, errors.Wrap(err, errNewLRU)
		}
		c.lru = cache
	}
	return c, nil
}

// Get returns the Graph for snapshot, building and caching it if absent.
// hit reports whether the value was already cached. A build failure is
// never cached, so a subsequent Get retries it.
func (c *Cache) Get(ctx context.Context, snapshot string) (g *graph.Graph, hit bool, err error) {
	if v, ok := c.lru.Get(snapshot); ok {
		return v, true, nil
	}

	v, err, _ := c.sf.Do(snapshot, func() (interface{}, error) {
		built, err := graph.Build(ctx, c.src, snapshot)
		if err != nil {
			return nil, err
		}
		c.lru.Add(snapshot, built)
		return built, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*graph.Graph), false, nil
}

// Invalidate removes snapshot from the cache, if present, so the next Get
// for it rebuilds the graph.
func (c *Cache) Invalidate(snapshot string) {
	c.lru.Remove(snapshot)
}

// Len reports the number of cached snapshots.
func (c *Cache) Len() int { return c.lru.Len() }
