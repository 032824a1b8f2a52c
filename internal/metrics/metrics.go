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

// Package metrics exposes Prometheus instrumentation for the HTTP
// collaborator: snapshot cache hit/miss counts, render latency and
// reload outcomes. The graph engine itself stays free of metrics calls;
// this package wraps calls into it instead of being called from inside
// it, keeping cross-cutting concerns out of the core packages.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/konfd/konfd/internal/graph"
	"github.com/konfd/konfd/internal/snapcache"
)

// Metrics holds every collector registered for a running server.
type Metrics struct {
	CacheRequests  *prometheus.CounterVec
	RenderDuration prometheus.Histogram
	ReloadTotal    *prometheus.CounterVec
}

// New constructs and registers the collectors against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "konfd",
			Name:      "snapshot_cache_requests_total",
			Help:      "Total snapshot cache lookups, partitioned by hit/miss.",
		}, []string{"result"}),
		RenderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "konfd",
			Name:      "render_duration_seconds",
			Help:      "Time spent rendering a document, excluding snapshot cache lookup and build time.",
			Buckets:   prometheus.DefBuckets,
		}),
		ReloadTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "konfd",
			Name:      "reload_total",
			Help:      "Total filesystem reloads, partitioned by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.CacheRequests, m.RenderDuration, m.ReloadTotal)
	return m
}

// ObserveCacheGet records a cache lookup and returns the Graph unchanged,
// so it composes directly with snapcache.Cache.Get at the call site.
func (m *Metrics) ObserveCacheGet(ctx context.Context, c *snapcache.Cache, snapshot string) (*graph.Graph, bool, error) {
	g, hit, err := c.Get(ctx, snapshot)
	if err != nil {
		return g, hit, err
	}
	if hit {
		m.CacheRequests.WithLabelValues("hit").Inc()
	} else {
		m.CacheRequests.WithLabelValues("miss").Inc()
	}
	return g, hit, nil
}

// ObserveRender times fn and records it against RenderDuration.
func (m *Metrics) ObserveRender(fn func() error) error {
	start := time.Now()
	err := fn()
	m.RenderDuration.Observe(time.Since(start).Seconds())
	return err
}

// ObserveReload records the outcome of a reload attempt.
func (m *Metrics) ObserveReload(err error) {
	if err != nil {
		m.ReloadTotal.WithLabelValues("failure").Inc()
		return
	}
	m.ReloadTotal.WithLabelValues("success").Inc()
}
