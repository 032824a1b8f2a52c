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

package config

import (
	"testing"

	"github.com/crossplane/crossplane-runtime/pkg/errors"
	"github.com/crossplane/crossplane-runtime/pkg/test"
	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
)

func TestValidate(t *testing.T) {
	cases := map[string]struct {
		reason string
		cfg    *Config
		err    error
	}{
		"MissingRoot": {
			reason: "A config with no source root is invalid.",
			cfg:    &Config{Source: SourceConfig{Mode: ModeFilesystem}},
			err:    errors.New(errNoSourceConfigured),
		},
		"UnknownMode": {
			reason: "A config with an unrecognized source mode is invalid.",
			cfg:    &Config{Source: SourceConfig{Mode: "s3", Root: "/data"}},
			err:    errors.Errorf("unknown source mode %q", "s3"),
		},
		"ValidFilesystem": {
			reason: "A filesystem-mode config with a root is valid.",
			cfg:    &Config{Source: SourceConfig{Mode: ModeFilesystem, Root: "/data"}},
		},
		"ValidGit": {
			reason: "A git-mode config with a root is valid.",
			cfg:    &Config{Source: SourceConfig{Mode: ModeGit, Root: "/repo"}},
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if diff := cmp.Diff(tc.err, err, test.EquateErrors()); diff != "" {
				t.Errorf("\n%s\nValidate(...): -want error, +got error:\n%s", tc.reason, diff)
			}
		})
	}
}

func testHome() (string, error) { return "/", nil }

func TestLoadMerged(t *testing.T) {
	cases := map[string]struct {
		reason    string
		persisted *Config // nil means no config file exists at all
		overrides *Config
		want      *Config
	}{
		"NothingPersistedUsesOverridesVerbatim": {
			reason:    "With no prior config, LoadMerged returns overrides unchanged.",
			persisted: nil,
			overrides: &Config{ListenAddr: ":9090", Source: SourceConfig{Mode: ModeFilesystem, Root: "/data"}},
			want:      &Config{ListenAddr: ":9090", Source: SourceConfig{Mode: ModeFilesystem, Root: "/data"}},
		},
		"EmptyOverrideFieldsFallBackToPersisted": {
			reason: "A zero-valued override field (no flag given) is filled in from the persisted config.",
			persisted: &Config{
				ListenAddr:            ":7070",
				Source:                SourceConfig{Mode: ModeGit, Root: "/repo"},
				CacheCapacity:         64,
				ReloadIntervalSeconds: 10,
			},
			overrides: &Config{},
			want: &Config{
				ListenAddr:            ":7070",
				Source:                SourceConfig{Mode: ModeGit, Root: "/repo"},
				CacheCapacity:         64,
				ReloadIntervalSeconds: 10,
			},
		},
		"NonZeroOverridesWinOverPersisted": {
			reason: "A flag passed this run takes precedence over whatever was saved before it.",
			persisted: &Config{
				ListenAddr: ":7070",
				Source:     SourceConfig{Mode: ModeGit, Root: "/repo"},
			},
			overrides: &Config{
				ListenAddr: ":9090",
				Source:     SourceConfig{Mode: ModeFilesystem, Root: "/data"},
			},
			want: &Config{
				ListenAddr: ":9090",
				Source:     SourceConfig{Mode: ModeFilesystem, Root: "/data"},
			},
		},
		"PartialOverrideMergesFieldByField": {
			reason: "An override of just the source root leaves the persisted listen address and cache capacity alone.",
			persisted: &Config{
				ListenAddr:    ":7070",
				Source:        SourceConfig{Mode: ModeFilesystem, Root: "/old"},
				CacheCapacity: 64,
			},
			overrides: &Config{Source: SourceConfig{Mode: ModeFilesystem, Root: "/new"}},
			want: &Config{
				ListenAddr:    ":7070",
				Source:        SourceConfig{Mode: ModeFilesystem, Root: "/new"},
				CacheCapacity: 64,
			},
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			store := NewStore(WithFS(fs), WithHomeDirFn(testHome))
			if tc.persisted != nil {
				if err := store.Persist(tc.persisted); err != nil {
					t.Fatalf("Persist(...) setup: unexpected error: %v", err)
				}
			}

			got, err := store.LoadMerged(tc.overrides)
			if err != nil {
				t.Fatalf("LoadMerged(...): unexpected error: %v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("\n%s\nLoadMerged(...): -want, +got:\n%s", tc.reason, diff)
			}
		})
	}
}

func TestPersistThenLoadMergedRoundTrips(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewStore(WithFS(fs), WithHomeDirFn(testHome))

	saved := &Config{
		ListenAddr:            ":8080",
		Source:                SourceConfig{Mode: ModeGit, Root: "/repo"},
		CacheCapacity:         16,
		ReloadIntervalSeconds: 5,
	}
	if err := store.Persist(saved); err != nil {
		t.Fatalf("Persist(...): unexpected error: %v", err)
	}

	got, err := store.LoadMerged(&Config{})
	if err != nil {
		t.Fatalf("LoadMerged(...): unexpected error: %v", err)
	}
	if diff := cmp.Diff(saved, got); diff != "" {
		t.Errorf("LoadMerged(...) after Persist(...): -want, +got:\n%s", diff)
	}
}
