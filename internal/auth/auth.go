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

// Package auth implements the per-document auth gate: verbatim
// token-set membership, checked against a document's own <!> auth list
// before any rendering begins. It has no notion of users, sessions or
// hashing; a token is either in the set or it isn't.
package auth

import (
	"fmt"

	"github.com/konfd/konfd/internal/graph"
)

// MissingError is returned when the caller presented no token at all
// (no "token" header on the request), as distinct from one that was
// presented but didn't match.
type MissingError struct {
	Name string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("auth: no token presented for %q", e.Name)
}

// DeniedError is returned when a presented token is not a member of a
// document's auth set. An empty (or absent) auth set denies every
// token, including the empty string.
type DeniedError struct {
	Name string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("auth: access to %q denied", e.Name)
}

// Check enforces the auth gate for name within g: it must run before any
// phase of resolution, so a denied request never triggers an
// import-closure computation or touches the resolver at all. present
// distinguishes "no token header at all" (MissingError) from "a token
// was presented but doesn't match" (DeniedError), per the taxonomy in
// §7. A document that fails to load is not an auth failure; Check
// reports the underlying graph error unchanged so callers can tell the
// two apart.
func Check(g *graph.Graph, name, token string, present bool) error {
	doc, err := g.Get(name)
	if err != nil {
		return err
	}
	if !present {
		return &MissingError{Name: name}
	}
	if !doc.Metadata.HasAuth(token) {
		return &DeniedError{Name: name}
	}
	return nil
}
