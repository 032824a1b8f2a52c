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

// Package serialize renders a rendered value.Value tree back out as
// bytes. Only YAML and JSON are implemented here: every other wire
// format named in the HTTP collaborator's content-negotiation is outside
// core scope and belongs to that collaborator, not to this graph engine.
package serialize

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/goccy/go-yaml"

	"github.com/konfd/konfd/internal/value"
)

// Format selects an output encoding.
type Format string

// Supported formats.
const (
	YAML Format = "yaml"
	JSON Format = "json"
)

// Encode renders v in the given format, preserving mapping key order:
// order is part of a document's identity.
func Encode(v value.Value, format Format) ([]byte, error) {
	switch format {
	case YAML:
		return encodeYAML(v)
	case JSON:
		return encodeJSON(v)
	default:
		return nil, fmt.Errorf("serialize: unsupported format %q", format)
	}
}

func encodeYAML(v value.Value) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf, yaml.UseLiteralStyleIfMultiline(true))
	if err := enc.Encode(toYAMLNative(v)); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeJSON(v value.Value) ([]byte, error) {
	return json.Marshal(toJSONNative(v))
}

// toYAMLNative converts v into the yaml.MapSlice-based tree goccy/go-yaml
// encodes in insertion order, the mirror image of loader.fromNative.
func toYAMLNative(v value.Value) interface{} {
	switch v.Kind() {
	case value.KindNull:
		return nil
	case value.KindBool:
		return v.Bool()
	case value.KindInt:
		return v.Int()
	case value.KindFloat:
		return v.Float()
	case value.KindString:
		return v.Str()
	case value.KindSequence:
		items := v.Items()
		out := make([]interface{}, len(items))
		for i, it := range items {
			out[i] = toYAMLNative(it)
		}
		return out
	case value.KindMapping:
		m := v.MappingValue()
		ms := make(yaml.MapSlice, 0, m.Len())
		for _, k := range m.Keys() {
			cv, _ := m.Get(k)
			ms = append(ms, yaml.MapItem{Key: k, Value: toYAMLNative(cv)})
		}
		return ms
	default:
		return nil
	}
}

// orderedMap preserves key order through encoding/json by implementing
// json.Marshaler directly (encoding/json has no ordered-map input type).
type orderedMap struct {
	keys []string
	vals map[string]interface{}
}

func (o orderedMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(o.vals[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func toJSONNative(v value.Value) interface{} {
	switch v.Kind() {
	case value.KindNull:
		return nil
	case value.KindBool:
		return v.Bool()
	case value.KindInt:
		return v.Int()
	case value.KindFloat:
		return v.Float()
	case value.KindString:
		return v.Str()
	case value.KindSequence:
		items := v.Items()
		out := make([]interface{}, len(items))
		for i, it := range items {
			out[i] = toJSONNative(it)
		}
		return out
	case value.KindMapping:
		m := v.MappingValue()
		om := orderedMap{keys: m.Keys(), vals: make(map[string]interface{}, m.Len())}
		for _, k := range om.keys {
			cv, _ := m.Get(k)
			om.vals[k] = toJSONNative(cv)
		}
		return om
	default:
		return nil
	}
}
