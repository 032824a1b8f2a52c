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

// Package loader parses one raw document into a Document: the
// metadata block plus the body value tree. It is deliberately ignorant of
// other documents — import resolution and templating are the resolver's
// job (internal/resolve).
package loader

import (
	"fmt"

	"github.com/goccy/go-yaml"

	"github.com/konfd/konfd/internal/value"
)

// MetaKey is the reserved top-level mapping key carrying import/auth
// metadata.
const MetaKey = "<!>"

// LoadErrorKind enumerates the ways loading a single document can fail.
type LoadErrorKind int

// LoadError kinds.
const (
	NotAMapping LoadErrorKind = iota
	BadMetadata
	ParseFailure
	Duplicate
)

func (k LoadErrorKind) String() string {
	switch k {
	case NotAMapping:
		return "NotAMapping"
	case BadMetadata:
		return "BadMetadata"
	case ParseFailure:
		return "ParseFailure"
	case Duplicate:
		return "Duplicate"
	default:
		return "Unknown"
	}
}

// LoadError is returned by Load and stored in the graph against the
// offending document's logical name; it only surfaces when that name is
// requested or transitively reached.
type LoadError struct {
	Name   string
	Kind   LoadErrorKind
	Reason string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loader: %s: %s: %s", e.Name, e.Kind, e.Reason)
}

// Metadata is the parsed <!> block.
type Metadata struct {
	Imports []string
	Auth    map[string]struct{}
}

// HasAuth reports whether token is present in the auth set.
func (m Metadata) HasAuth(token string) bool {
	if m.Auth == nil {
		return false
	}
	_, ok := m.Auth[token]
	return ok
}

// Document is one loaded YAML file, metadata stripped and parsed
// separately.
type Document struct {
	LogicalName string
	Metadata    Metadata
	Body        value.Value
	// Warnings accumulated while loading this document (e.g. unknown <!>
	// keys), surfaced alongside a render that reaches it.
	Warnings []string
}

// Load parses the raw bytes of one document named name into a Document.
func Load(name string, raw []byte) (*Document, error) {
	var root interface{}
	if err := yaml.UnmarshalWithOptions(raw, &root, yaml.UseOrderedMap()); err != nil {
		return nil, &LoadError{Name: name, Kind: ParseFailure, Reason: err.Error()}
	}

	// An empty document decodes to a nil interface; treat it as an empty
	// mapping so downstream code can always assume Body.Kind() ==
	// KindMapping once metadata is stripped: the body is always a Mapping
	// at the top level.
	if root == nil {
		return &Document{LogicalName: name, Body: value.FromMapping(value.NewMapping())}, nil
	}

	ms, ok := root.(yaml.MapSlice)
	if !ok {
		return nil, &LoadError{Name: name, Kind: NotAMapping, Reason: "top-level node is not a mapping"}
	}

	doc := &Document{LogicalName: name}

	body := value.NewMapping()
	for _, item := range ms {
		key, ok := item.Key.(string)
		if !ok {
			return nil, &LoadError{Name: name, Kind: NotAMapping, Reason: "non-string mapping key at top level"}
		}
		if key == MetaKey {
			meta, warnings, err := parseMetadata(item.Value)
			if err != nil {
				return nil, &LoadError{Name: name, Kind: BadMetadata, Reason: err.Error()}
			}
			doc.Metadata = meta
			doc.Warnings = append(doc.Warnings, warnings...)
			continue
		}
		body.Set(key, fromNative(item.Value))
	}
	doc.Body = value.FromMapping(body)

	return doc, nil
}

// parseMetadata converts the raw <!> block into Metadata, tolerating but
// warning about unknown keys rather than silently dropping them.
func parseMetadata(raw interface{}) (Metadata, []string, error) {
	meta := Metadata{}
	var warnings []string

	ms, ok := raw.(yaml.MapSlice)
	if !ok {
		return meta, nil, fmt.Errorf("<!> block must be a mapping")
	}

	for _, item := range ms {
		key, ok := item.Key.(string)
		if !ok {
			return meta, nil, fmt.Errorf("non-string key in <!> block")
		}
		switch key {
		case "import":
			imports, err := stringSequence(item.Value)
			if err != nil {
				return meta, nil, fmt.Errorf("import: %w", err)
			}
			meta.Imports = imports
		case "auth":
			tokens, err := stringSequence(item.Value)
			if err != nil {
				return meta, nil, fmt.Errorf("auth: %w", err)
			}
			meta.Auth = make(map[string]struct{}, len(tokens))
			for _, t := range tokens {
				meta.Auth[t] = struct{}{}
			}
		default:
			warnings = append(warnings, fmt.Sprintf("unknown <!> key %q", key))
		}
	}

	return meta, warnings, nil
}

func stringSequence(raw interface{}) ([]string, error) {
	items, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("expected a sequence of strings")
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			return nil, fmt.Errorf("expected a string element, got %T", it)
		}
		out = append(out, s)
	}
	return out, nil
}

// fromNative converts the generic tree goccy/go-yaml produces (with
// yaml.UseOrderedMap, mappings decode as yaml.MapSlice, sequences as
// []interface{}, scalars as native Go types) into value.Value.
func fromNative(n interface{}) value.Value {
	switch t := n.(type) {
	case nil:
		return value.Null()
	case bool:
		return value.Bool(t)
	case int:
		return value.Int(int64(t))
	case int64:
		return value.Int(t)
	case uint64:
		return value.Int(int64(t))
	case float32:
		return value.Float(float64(t))
	case float64:
		return value.Float(t)
	case string:
		return value.String(t)
	case []interface{}:
		items := make([]value.Value, len(t))
		for i, e := range t {
			items[i] = fromNative(e)
		}
		return value.Sequence(items...)
	case yaml.MapSlice:
		m := value.NewMapping()
		for _, item := range t {
			key := fmt.Sprintf("%v", item.Key)
			m.Set(key, fromNative(item.Value))
		}
		return value.FromMapping(m)
	default:
		// Unrecognized scalar kind (e.g. time.Time from YAML timestamps):
		// fall back to its default string form rather than failing the
		// whole document load.
		return value.String(fmt.Sprintf("%v", t))
	}
}
