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

// Package source abstracts over where configuration documents live. The
// core only ever needs to list and read raw bytes by logical name under an
// opaque snapshot id; this package supplies two concrete variants — a
// filesystem-rooted one and a git-commit-rooted one — behind a shared
// interface, so additional sources can be added without touching the
// loader, graph or resolver.
package source

import (
	"context"

	"github.com/crossplane/crossplane-runtime/pkg/errors"
)

// Extensions recognized by list operations; anything else is ignored, since
// the loader is selected by file extension.
var Extensions = []string{".yaml", ".yml"}

// NotFoundError is returned by Read when the requested logical name does
// not exist at the given snapshot.
type NotFoundError struct {
	Snapshot string
	Name     string
}

func (e *NotFoundError) Error() string {
	if e.Snapshot == "" {
		return "source: document not found: " + e.Name
	}
	return "source: document not found: " + e.Name + " at snapshot " + e.Snapshot
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// SnapshotUnknownError is returned when a snapshot id cannot be resolved
// against the underlying source (e.g. an unknown git commit).
type SnapshotUnknownError struct {
	Snapshot string
	Reason   string
}

func (e *SnapshotUnknownError) Error() string {
	return "source: unknown snapshot " + e.Snapshot + ": " + e.Reason
}

// Source is the minimal read/list contract the core requires of a document
// store. snapshot is opaque to callers above this package: the empty
// string for sources with a single implicit snapshot (FSSource), or a
// commit id for version-controlled sources (GitSource).
type Source interface {
	// List returns every document logical name available at snapshot, in
	// a stable but unspecified order.
	List(ctx context.Context, snapshot string) ([]string, error)
	// Read returns the raw bytes of name at snapshot, or a *NotFoundError.
	Read(ctx context.Context, snapshot, name string) ([]byte, error)
}
