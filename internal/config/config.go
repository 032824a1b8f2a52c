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

// Package config is the persisted server configuration: the handful of
// settings an operator sets once and does not want to repeat on every
// invocation, backed by a small JSON file and merged under whatever the
// operator passes on the command line for the current run.
package config

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/crossplane/crossplane-runtime/pkg/errors"
	"github.com/spf13/afero"
)

// Location of the persisted config file.
const (
	ConfigDir  = ".konfd"
	ConfigFile = "config.json"
)

const (
	errNoSourceConfigured = "no source is configured"
	errReadStore          = "failed to read persisted config"
	errWriteStore         = "failed to persist config"
)

// SourceMode selects which source variant the server reads from.
type SourceMode string

// Supported source modes.
const (
	ModeFilesystem SourceMode = "fs"
	ModeGit        SourceMode = "git"
)

// Config is the persisted configuration for a konfd server.
type Config struct {
	// ListenAddr is the address the HTTP collaborator binds to.
	ListenAddr string `json:"listenAddr,omitempty"`

	// Source selects the document source and its root.
	Source SourceConfig `json:"source"`

	// CacheCapacity bounds the number of snapshots held in memory at
	// once. Zero means use snapcache.DefaultCapacity.
	CacheCapacity int `json:"cacheCapacity,omitempty"`

	// ReloadIntervalSeconds is stored and merged like the other fields.
	// cmd/konfd neither sets nor reads it: the filesystem poll interval
	// comes from the --reload-interval flag alone.
	ReloadIntervalSeconds int `json:"reloadIntervalSeconds,omitempty"`
}

// SourceConfig describes where documents are read from.
type SourceConfig struct {
	Mode SourceMode `json:"mode"`
	Root string     `json:"root"`
}

// Validate reports whether c is well formed enough to construct a
// source from.
func (c *Config) Validate() error {
	if c.Source.Root == "" {
		return errors.New(errNoSourceConfigured)
	}
	switch c.Source.Mode {
	case ModeFilesystem, ModeGit:
	default:
		return errors.Errorf("unknown source mode %q", c.Source.Mode)
	}
	return nil
}

// HomeDirFn locates a user's home directory. Overridable in tests.
type HomeDirFn func() (string, error)

// Store reads and writes the persisted Config on a filesystem.
type Store struct {
	fs   afero.Fs
	home HomeDirFn
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithFS overrides the filesystem a Store reads and writes through. Used
// in tests to substitute an in-memory afero.Fs.
func WithFS(fs afero.Fs) StoreOption {
	return func(s *Store) { s.fs = fs }
}

// WithHomeDirFn overrides how a Store locates the user's home directory.
func WithHomeDirFn(fn HomeDirFn) StoreOption {
	return func(s *Store) { s.home = fn }
}

// NewStore constructs a Store rooted at the operator's home directory. It
// does not touch the filesystem; the config file is created lazily by
// the first Persist, and a missing file reads back as a zero Config.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{fs: afero.NewOsFs(), home: os.UserHomeDir}
	for _, o := range opts {
		o(s)
	}
	return s
}

// path resolves the config file location under the store's home
// directory.
func (s *Store) path() (string, error) {
	h, err := s.home()
	if err != nil {
		return "", err
	}
	return filepath.Join(h, ConfigDir, ConfigFile), nil
}

// GetDefaultPath returns the default config file path for the current
// user, independent of any Store.
func GetDefaultPath() (string, error) {
	h, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(h, ConfigDir, ConfigFile), nil
}

// read loads whatever Config is currently persisted, or a zero Config if
// nothing has been saved yet.
func (s *Store) read() (*Config, error) {
	p, err := s.path()
	if err != nil {
		return nil, err
	}
	f, err := s.fs.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, errors.Wrap(err, errReadStore)
	}
	defer f.Close() // nolint:errcheck
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.Wrap(err, errReadStore)
	}
	conf := &Config{}
	if len(b) == 0 {
		return conf, nil
	}
	if err := json.Unmarshal(b, conf); err != nil {
		return nil, errors.Wrap(err, errReadStore)
	}
	return conf, nil
}

// LoadMerged overlays overrides on top of whatever Config is already
// persisted: a zero-valued field in overrides falls back to the
// persisted value, a non-zero field wins. This is what lets an operator
// give --source-root once and omit it on every later invocation while a
// flag passed on the command line still takes precedence over whatever
// was saved before it.
func (s *Store) LoadMerged(overrides *Config) (*Config, error) {
	persisted, err := s.read()
	if err != nil {
		return nil, err
	}

	merged := *overrides
	if merged.Source.Root == "" {
		merged.Source.Root = persisted.Source.Root
	}
	if merged.Source.Mode == "" {
		merged.Source.Mode = persisted.Source.Mode
	}
	if merged.ListenAddr == "" {
		merged.ListenAddr = persisted.ListenAddr
	}
	if merged.CacheCapacity == 0 {
		merged.CacheCapacity = persisted.CacheCapacity
	}
	if merged.ReloadIntervalSeconds == 0 {
		merged.ReloadIntervalSeconds = persisted.ReloadIntervalSeconds
	}
	return &merged, nil
}

// Persist writes c to the store's config file, replacing any prior
// contents and creating the parent directory on first use.
func (s *Store) Persist(c *Config) error {
	p, err := s.path()
	if err != nil {
		return err
	}
	if err := s.fs.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return errors.Wrap(err, errWriteStore)
	}
	f, err := s.fs.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return errors.Wrap(err, errWriteStore)
	}
	defer f.Close() // nolint:errcheck
	b, err := json.Marshal(c)
	if err != nil {
		return errors.Wrap(err, errWriteStore)
	}
	if _, err := f.Write(b); err != nil {
		return errors.Wrap(err, errWriteStore)
	}
	return f.Close()
}
