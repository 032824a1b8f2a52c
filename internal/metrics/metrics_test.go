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

package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/konfd/konfd/internal/snapcache"
	"github.com/konfd/konfd/internal/source"
)

func counterValue(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	m := &dto.Metric{}
	if err := (<-ch).Write(m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestObserveCacheGetRecordsHitAndMiss(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	src := source.NewFSSource(t.TempDir())
	cache, err := snapcache.New(src)
	if err != nil {
		t.Fatalf("snapcache.New: %v", err)
	}

	ctx := context.Background()
	if _, _, err := m.ObserveCacheGet(ctx, cache, ""); err != nil {
		t.Fatalf("ObserveCacheGet: %v", err)
	}
	if _, _, err := m.ObserveCacheGet(ctx, cache, ""); err != nil {
		t.Fatalf("ObserveCacheGet: %v", err)
	}

	if got := counterValue(t, m.CacheRequests.WithLabelValues("miss")); got != 1 {
		t.Fatalf("miss count: got %v, want 1", got)
	}
	if got := counterValue(t, m.CacheRequests.WithLabelValues("hit")); got != 1 {
		t.Fatalf("hit count: got %v, want 1", got)
	}
}

func TestObserveReloadRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveReload(nil)
	if got := counterValue(t, m.ReloadTotal.WithLabelValues("success")); got != 1 {
		t.Fatalf("success count: got %v, want 1", got)
	}
}
