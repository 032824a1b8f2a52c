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

package main

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/konfd/konfd/internal/auth"
	"github.com/konfd/konfd/internal/graph"
	"github.com/konfd/konfd/internal/resolve"
	"github.com/konfd/konfd/internal/serialize"
	"github.com/konfd/konfd/internal/value"
)

// renderAndWrite resolves the requested document and writes the result
// in the requested format, surfacing any render warnings as response
// headers rather than failing the request. When requireAuth is set (git
// snapshot mode only, per the auth gate's scope) it enforces the
// per-document token check before any rendering begins; filesystem mode
// never enforces it.
func (s *server) renderAndWrite(w http.ResponseWriter, r *http.Request, g *graph.Graph, requireAuth bool) {
	vars := mux.Vars(r)
	path := vars["path"]
	format := serialize.Format(vars["format"])

	if requireAuth {
		token, present := requestToken(r)
		if err := auth.Check(g, path, token, present); err != nil {
			switch err.(type) {
			case *auth.MissingError:
				http.Error(w, "missing token", http.StatusUnauthorized)
			case *auth.DeniedError:
				http.Error(w, "forbidden", http.StatusUnauthorized)
			default:
				http.Error(w, err.Error(), http.StatusNotFound)
			}
			return
		}
	}

	var rendered value.Value
	var diags *resolve.Diagnostics
	renderErr := s.m.ObserveRender(func() error {
		var err error
		rendered, diags, err = resolve.Render(g, path)
		return err
	})
	if renderErr != nil {
		http.Error(w, renderErr.Error(), http.StatusNotFound)
		return
	}

	for _, warn := range diags.Warnings {
		w.Header().Add("X-Konfd-Warning", warn.Message)
	}

	b, err := serialize.Encode(rendered, format)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	switch format {
	case serialize.JSON:
		w.Header().Set("Content-Type", "application/json")
	default:
		w.Header().Set("Content-Type", "application/yaml")
	}
	_, _ = w.Write(b)
}

// requestToken extracts the auth token from the "token" request header,
// per the snapshot-mode auth gate's contract (§6). present is false when
// the header is absent entirely, distinct from an empty header value.
func requestToken(r *http.Request) (token string, present bool) {
	vals, ok := r.Header["Token"]
	if !ok || len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}
