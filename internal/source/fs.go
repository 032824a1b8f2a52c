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

package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/crossplane/crossplane-runtime/pkg/errors"
)

const errWalkRoot = "failed to walk source root"

// FSSource is the filesystem-rooted variant of Source. It has a
// single implicit snapshot, replaced wholesale on reload; the snapshot
// argument to List/Read is ignored. It wraps afero.Fs for testability
// via afero.NewMemMapFs.
type FSSource struct {
	fs   afero.Fs
	root string
}

// FSOption modifies an FSSource.
type FSOption func(*FSSource)

// WithFS overrides the filesystem backing the source. Used in tests to
// substitute afero.NewMemMapFs() for the real OS filesystem.
func WithFS(fs afero.Fs) FSOption {
	return func(s *FSSource) {
		s.fs = fs
	}
}

// NewFSSource constructs an FSSource rooted at root.
func NewFSSource(root string, opts ...FSOption) *FSSource {
	s := &FSSource{
		fs:   afero.NewOsFs(),
		root: root,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// List walks the root directory recursively, stripping the .yaml/.yml
// extension and joining path segments with "/".
func (s *FSSource) List(_ context.Context, _ string) ([]string, error) {
	var names []string
	err := afero.Walk(s.fs, s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if !hasExtension(ext) {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		rel = strings.TrimSuffix(rel, ext)
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, errWalkRoot)
	}
	return names, nil
}

// Read returns the raw bytes of name, trying .yaml then .yml.
func (s *FSSource) Read(_ context.Context, _, name string) ([]byte, error) {
	for _, ext := range Extensions {
		path := filepath.Join(s.root, filepath.FromSlash(name)+ext)
		b, err := afero.ReadFile(s.fs, path)
		if err == nil {
			return b, nil
		}
		if !os.IsNotExist(err) {
			return nil, err
		}
	}
	return nil, &NotFoundError{Name: name}
}

func hasExtension(ext string) bool {
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}
