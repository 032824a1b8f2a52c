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

// Package reload implements the filesystem-mode reload coordinator:
// readers always see either the old Graph or the new one, never a
// partially rebuilt one, and a failed rebuild never disturbs the graph
// currently being served.
package reload

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/radovskyb/watcher"
	"golang.org/x/sync/singleflight"

	"github.com/crossplane/crossplane-runtime/pkg/errors"
	"github.com/crossplane/crossplane-runtime/pkg/logging"

	"github.com/konfd/konfd/internal/graph"
	"github.com/konfd/konfd/internal/source"
)

// Snapshot is the fixed snapshot id filesystem-mode sources are built
// with; FSSource ignores it, and every graph.Build a Coordinator runs
// passes this same value.
const Snapshot = ""

// reloadKey is the singleflight.Group key every Reload call coalesces
// onto; a Coordinator only ever rebuilds one graph, so one constant key
// is all that is needed.
const reloadKey = "reload"

const errInitialBuild = "failed to build initial graph"

// Coordinator holds the currently served Graph for filesystem mode behind
// an atomic pointer: Graph() is a lock-free load (acquire), Reload swaps
// in the new graph with a single store (release), so a render in flight
// when a reload completes keeps observing the graph it captured to
// completion. Concurrent Reload calls coalesce onto a single in-flight
// build via sf, the same mechanism internal/snapcache uses for concurrent
// cache misses.
type Coordinator struct {
	src source.Source
	log logging.Logger

	sf      singleflight.Group
	current atomic.Pointer[graph.Graph]
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger used for reload activity.
func WithLogger(l logging.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

// New builds the initial Graph and returns a Coordinator serving it.
func New(ctx context.Context, src source.Source, opts ...Option) (*Coordinator, error) {
	c := &Coordinator{src: src, log: logging.NewNopLogger()}
	for _, o := range opts {
		o(c)
	}

	g, err := graph.Build(ctx, src, Snapshot)
	if err != nil {
		return nil, errors.Wrap(err, errInitialBuild)
	}
	c.current.Store(g)
	return c, nil
}

// Graph returns the currently served Graph. Lock-free; safe for
// concurrent use with Reload.
func (c *Coordinator) Graph() *graph.Graph {
	return c.current.Load()
}

// Reload rebuilds the graph from src and, only on success, swaps it in.
// Concurrent Reload calls coalesce onto one build via singleflight: the
// second and third caller never start their own graph.Build, they just
// wait on the first's result and share its error or success.
func (c *Coordinator) Reload(ctx context.Context) error {
	_, err, _ := c.sf.Do(reloadKey, func() (interface{}, error) {
		g, err := graph.Build(ctx, c.src, Snapshot)
		if err != nil {
			c.log.Info("reload failed, keeping previous graph", "error", err)
			return nil, err
		}

		c.current.Store(g)
		c.log.Debug("reloaded graph", "documents", len(g.Names()))
		return g, nil
	})
	return err
}

// Watch polls root for filesystem changes and triggers Reload whenever
// anything under it is written, created, removed or renamed, debounced
// to at most once per interval. It blocks until ctx is cancelled.
func (c *Coordinator) Watch(ctx context.Context, root string, interval time.Duration) error {
	w := watcher.New()
	w.SetMaxEvents(1)
	w.FilterOps(watcher.Write, watcher.Create, watcher.Remove, watcher.Rename, watcher.Move)

	if err := w.AddRecursive(root); err != nil {
		return errors.Wrap(err, "failed to watch source root")
	}

	done := make(chan error, 1)
	go func() {
		for {
			select {
			case <-w.Event:
				if err := c.Reload(ctx); err != nil {
					c.log.Info("reload triggered by filesystem change failed", "error", err)
				}
			case err := <-w.Error:
				c.log.Info("watcher error", "error", err)
			case <-w.Closed:
				return
			case <-ctx.Done():
				w.Close()
				return
			}
		}
	}()

	go func() {
		done <- w.Start(interval)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return nil
	}
}
