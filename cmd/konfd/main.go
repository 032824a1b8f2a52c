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

// Command konfd serves the rendered configuration graph over HTTP. The
// HTTP surface, snapshot routing and token extraction here are a thin
// collaborator the graph engine is designed to sit behind; the engine
// itself (internal/graph, internal/resolve, internal/loader) has no
// notion of requests, headers or wire formats.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/alecthomas/kong"
	"github.com/go-logr/zapr"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/crossplane/crossplane-runtime/pkg/logging"

	"github.com/konfd/konfd/internal/config"
	"github.com/konfd/konfd/internal/metrics"
	"github.com/konfd/konfd/internal/reload"
	"github.com/konfd/konfd/internal/snapcache"
	"github.com/konfd/konfd/internal/source"
	"github.com/konfd/konfd/internal/version"
)

type versionFlag bool

func (v versionFlag) BeforeApply(ctx *kong.Context) error { //nolint:unparam
	fmt.Fprintln(ctx.Stdout, "konfd "+version.GetVersion())
	ctx.Exit(0)
	return nil
}

// Defaults applied only once neither a flag/env var nor a persisted
// config supplies a value at all.
const (
	defaultListenAddr    = ":8080"
	defaultSourceMode    = config.ModeFilesystem
	defaultCacheCapacity = 32
)

type cli struct {
	Version versionFlag `short:"v" name:"version" help:"Print version and exit."`

	ListenAddr     string        `name:"listen" env:"KONF_PORT" help:"Address to serve HTTP on. Falls back to $KONF_PORT, then the previous run's setting, then :8080."`
	TraceEndpoint  string        `name:"trace-endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT" help:"OTLP tracing endpoint, if tracing is enabled downstream."`
	SourceMode     string        `name:"source-mode" help:"Document source: fs or git. Falls back to the previous run's setting, then fs."`
	SourceRoot     string        `name:"source-root" help:"Filesystem directory or git repository path to read documents from. Falls back to the previous run's setting if omitted."`
	CacheCapacity  int           `name:"cache-capacity" help:"Maximum number of snapshots held in the in-memory cache. Falls back to the previous run's setting, then 32."`
	ReloadInterval time.Duration `name:"reload-interval" default:"5s" help:"Filesystem poll interval for automatic reload; 0 disables it."`
	Verbose        bool          `name:"verbose" help:"Enable debug logging."`
}

func main() {
	c := cli{}
	ctx := kong.Parse(&c, kong.Name("konfd"), kong.Description("Serves a rendered YAML configuration graph over HTTP."))
	ctx.FatalIfErrorf(run(c))
}

// resolveConfig merges this run's flags over whatever was persisted by a
// previous run, applying the hard-coded defaults only where neither
// supplies a value, then writes the result back so a later invocation
// can omit repeated flags. A missing or unreadable persisted config is
// never fatal; the server just falls back to flags and hard-coded
// defaults.
func resolveConfig(c cli, log logging.Logger) (*config.Config, error) {
	store := config.NewStore()

	overrides := &config.Config{
		ListenAddr:    c.ListenAddr,
		CacheCapacity: c.CacheCapacity,
		Source:        config.SourceConfig{Mode: config.SourceMode(c.SourceMode), Root: c.SourceRoot},
	}

	cfg, err := store.LoadMerged(overrides)
	if err != nil {
		log.Info("no persisted config available, continuing with flags only", "error", err)
		cfg = overrides
	}

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	if cfg.Source.Mode == "" {
		cfg.Source.Mode = defaultSourceMode
	}
	if cfg.CacheCapacity == 0 {
		cfg.CacheCapacity = defaultCacheCapacity
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := store.Persist(cfg); err != nil {
		log.Info("failed to persist config", "error", err)
	}
	return cfg, nil
}

func run(c cli) error {
	zl, err := newZapLogger(c.Verbose)
	if err != nil {
		return err
	}
	log := logging.NewLogrLogger(zapr.NewLogger(zl))

	cfg, err := resolveConfig(c, log)
	if err != nil {
		return err
	}
	c.ListenAddr = cfg.ListenAddr
	c.SourceMode = string(cfg.Source.Mode)
	c.SourceRoot = cfg.Source.Root
	c.CacheCapacity = cfg.CacheCapacity

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		cancel()
	}()

	srv, err := newServer(ctx, c, log, reg, m)
	if err != nil {
		return err
	}

	if c.TraceEndpoint != "" {
		log.Debug("tracing endpoint configured but unused by this build", "endpoint", c.TraceEndpoint)
	}
	log.Info("listening", "addr", c.ListenAddr)
	httpSrv := &http.Server{Addr: c.ListenAddr, Handler: srv.router()}
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func newZapLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// server wires the graph engine's collaborators (a Source, a Cache or a
// Coordinator, the auth gate and the resolver) behind HTTP handlers.
// Exactly one of coordinator (filesystem mode) or cache (git mode) is
// set, selected once at startup by source mode.
type server struct {
	mode config.SourceMode

	coordinator *reload.Coordinator
	cache       *snapcache.Cache

	log logging.Logger
	m   *metrics.Metrics
	reg *prometheus.Registry
}

func newServer(ctx context.Context, c cli, log logging.Logger, reg *prometheus.Registry, m *metrics.Metrics) (*server, error) {
	s := &server{mode: config.SourceMode(c.SourceMode), log: log, m: m, reg: reg}

	switch s.mode {
	case config.ModeFilesystem:
		src := source.NewFSSource(c.SourceRoot)
		coord, err := reload.New(ctx, src, reload.WithLogger(log))
		if err != nil {
			return nil, err
		}
		s.coordinator = coord
		if c.ReloadInterval > 0 {
			go func() {
				if err := coord.Watch(ctx, c.SourceRoot, c.ReloadInterval); err != nil {
					log.Info("watch loop exited", "error", err)
				}
			}()
		}
	case config.ModeGit:
		src, err := source.NewGitSource(c.SourceRoot)
		if err != nil {
			return nil, err
		}
		cache, err := snapcache.New(src, snapcache.WithCapacity(c.CacheCapacity))
		if err != nil {
			return nil, err
		}
		s.cache = cache
	default:
		return nil, fmt.Errorf("unknown source mode %q", c.SourceMode)
	}

	return s, nil
}

func (s *server) router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/live", s.handleLive).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/reload", s.handleReload).Methods(http.MethodPost)
	r.HandleFunc("/data/{format}/{path:.*}", s.handleRenderCurrent).Methods(http.MethodGet)
	r.HandleFunc("/data/{snapshot}/{format}/{path:.*}", s.handleRenderSnapshot).Methods(http.MethodGet)
	return r
}

func (s *server) handleLive(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *server) handleReload(w http.ResponseWriter, r *http.Request) {
	if s.coordinator == nil {
		http.Error(w, "reload is only supported in filesystem source mode", http.StatusNotImplemented)
		return
	}
	err := s.coordinator.Reload(r.Context())
	s.m.ObserveReload(err)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRenderCurrent serves /data/{format}/{path}: filesystem mode's
// single, always-current snapshot.
func (s *server) handleRenderCurrent(w http.ResponseWriter, r *http.Request) {
	if s.coordinator == nil {
		http.Error(w, "this server requires a snapshot id; use /data/{snapshot}/{format}/{path}", http.StatusBadRequest)
		return
	}
	s.renderAndWrite(w, r, s.coordinator.Graph(), false)
}

// handleRenderSnapshot serves /data/{snapshot}/{format}/{path}: git
// mode's commit-addressed snapshots.
func (s *server) handleRenderSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		http.Error(w, "this server does not support snapshot-addressed requests in filesystem mode", http.StatusBadRequest)
		return
	}

	snapshot := mux.Vars(r)["snapshot"]
	g, _, err := s.m.ObserveCacheGet(r.Context(), s.cache, snapshot)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.renderAndWrite(w, r, g, true)
}
