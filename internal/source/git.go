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
	"io"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/crossplane/crossplane-runtime/pkg/errors"
)

const (
	errOpenRepo     = "failed to open git repository"
	errResolveCommit = "failed to resolve snapshot commit"
	errCommitTree   = "failed to load commit tree"
	errWalkTree     = "failed to walk commit tree"
)

// GitSource is the version-controlled, snapshot-rooted variant of Source.
// snapshot is the commit hash; distinct snapshots are distinct immutable
// views of the same repository, which is exactly the contract the core
// requires of a snapshot id.
type GitSource struct {
	repo *git.Repository
}

// NewGitSource opens the repository at path (a local clone or bare repo)
// and returns a GitSource over it.
func NewGitSource(path string) (*GitSource, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, errors.Wrap(err, errOpenRepo)
	}
	return &GitSource{repo: repo}, nil
}

func (s *GitSource) commitTree(snapshot string) (*object.Tree, error) {
	hash := plumbing.NewHash(snapshot)
	commit, err := s.repo.CommitObject(hash)
	if err != nil {
		return nil, &SnapshotUnknownError{Snapshot: snapshot, Reason: err.Error()}
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, errors.Wrap(err, errCommitTree)
	}
	return tree, nil
}

// List enumerates every *.yaml/*.yml blob reachable from the commit's
// tree, stripping the extension the same way FSSource does.
func (s *GitSource) List(_ context.Context, snapshot string) ([]string, error) {
	tree, err := s.commitTree(snapshot)
	if err != nil {
		return nil, err
	}

	var names []string
	walker := object.NewTreeWalker(tree, true, nil)
	defer walker.Close()
	for {
		name, entry, err := walker.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, errWalkTree)
		}
		if entry.Mode.IsFile() {
			ext := filepath.Ext(name)
			if hasExtension(ext) {
				names = append(names, strings.TrimSuffix(name, ext))
			}
		}
	}
	return names, nil
}

// Read returns the raw bytes of name at the given commit.
func (s *GitSource) Read(_ context.Context, snapshot, name string) ([]byte, error) {
	tree, err := s.commitTree(snapshot)
	if err != nil {
		return nil, err
	}

	for _, ext := range Extensions {
		f, err := tree.File(name + ext)
		if err != nil {
			continue
		}
		contents, err := f.Contents()
		if err != nil {
			return nil, err
		}
		return []byte(contents), nil
	}
	return nil, &NotFoundError{Snapshot: snapshot, Name: name}
}
