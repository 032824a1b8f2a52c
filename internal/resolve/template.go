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

package resolve

import (
	"strconv"
	"strings"

	"github.com/konfd/konfd/internal/loader"
	"github.com/konfd/konfd/internal/value"
)

// substitute walks v, rewriting every string scalar per the template
// rule. Non-string scalars pass through unchanged; mappings and
// sequences are rebuilt recursively so the result is a fresh tree (the
// loaded documents in table are never mutated).
func substitute(v value.Value, table map[string]*loader.Document, diags *Diagnostics) (value.Value, error) {
	switch v.Kind() {
	case value.KindMapping:
		m := v.MappingValue()
		out := value.NewMapping()
		for _, k := range m.Keys() {
			cv, _ := m.Get(k)
			nv, err := substitute(cv, table, diags)
			if err != nil {
				return value.Value{}, err
			}
			out.Set(k, nv)
		}
		return value.FromMapping(out), nil
	case value.KindSequence:
		items := v.Items()
		out := make([]value.Value, len(items))
		for i, it := range items {
			nv, err := substitute(it, table, diags)
			if err != nil {
				return value.Value{}, err
			}
			out[i] = nv
		}
		return value.Sequence(out...), nil
	case value.KindString:
		return substituteString(v.Str(), table, diags)
	default:
		return v, nil
	}
}

// substituteString is a small regex-free scanner over bytes: a
// left-to-right single pass that collapses "$$" escapes before
// considering "${" openings. This ordering is what makes "$${a.b}"
// render as the literal "${a.b}" (the escape consumes the opening "$"
// before a template can start) while "$$${a.b}" renders as "$" followed
// by the substituted value (the first "$$" collapses, then the
// remaining "${a.b}" is a real reference).
func substituteString(s string, table map[string]*loader.Document, diags *Diagnostics) (value.Value, error) {
	if path, ok := wholeRef(s); ok {
		return resolvePath(path, table)
	}

	var b strings.Builder
	i := 0
	for i < len(s) {
		if s[i] == '$' && i+1 < len(s) && s[i+1] == '$' {
			b.WriteByte('$')
			i += 2
			continue
		}
		if s[i] == '$' && i+1 < len(s) && s[i+1] == '{' {
			end := strings.IndexByte(s[i+2:], '}')
			if end == -1 {
				// No closing brace: not a template, copy the rest
				// verbatim and stop scanning.
				b.WriteString(s[i:])
				break
			}
			closeAt := i + 2 + end
			path := s[i+2 : closeAt]
			resolved, err := resolvePath(path, table)
			if err != nil {
				return value.Value{}, err
			}
			b.WriteString(stringify(resolved, diags))
			i = closeAt + 1
			continue
		}
		b.WriteByte(s[i])
		i++
	}
	return value.String(b.String()), nil
}

// wholeRef reports whether s consists solely of a single "${...}"
// occurrence with no surrounding characters, which is what lets the
// referenced value's own type carry through instead of being stringified.
// A string beginning "$$" never qualifies, since that is an escape.
func wholeRef(s string) (path string, ok bool) {
	if len(s) < 3 || s[0] != '$' || s[1] != '{' {
		return "", false
	}
	end := strings.IndexByte(s[2:], '}')
	if end == -1 {
		return "", false
	}
	closeAt := 2 + end
	if closeAt != len(s)-1 {
		return "", false
	}
	return s[2:closeAt], true
}

// stringify converts a resolved reference's value to the text spliced
// into a mixed (non-whole) string, recording a ComplexInterpolation
// warning for mapping/sequence terminals.
func stringify(v value.Value, diags *Diagnostics) string {
	switch v.Kind() {
	case value.KindMapping, value.KindSequence:
		diags.warn(ComplexInterpolation, "interpolated a mapping or sequence as a string")
		return flowEncode(v)
	default:
		return v.CanonicalString()
	}
}

// resolvePath resolves one "${path}" occurrence against table.
func resolvePath(raw string, table map[string]*loader.Document) (value.Value, error) {
	trimmed := strings.TrimSpace(raw)
	parts := strings.Split(trimmed, ".")

	var matchAt = -1
	matches := 0
	for k := 1; k <= len(parts); k++ {
		head := strings.Join(parts[:k], ".")
		if _, ok := table[head]; ok {
			matchAt = k
			matches++
		}
	}
	if matches > 1 {
		return value.Value{}, &RenderError{Kind: AmbiguousRef, Path: parts}
	}
	if matches == 0 {
		return value.Value{}, &RenderError{Kind: UnknownKey, Path: parts}
	}

	head := strings.Join(parts[:matchAt], ".")
	rest := parts[matchAt:]
	doc := table[head]

	return walkPath(doc.Body, rest, parts)
}

// walkPath descends into body per rest, each segment a mapping key unless
// it parses as a non-negative integer and the current node is a
// sequence, in which case it is an index.
func walkPath(body value.Value, rest, fullPath []string) (value.Value, error) {
	cur := body
	for _, seg := range rest {
		switch cur.Kind() {
		case value.KindSequence:
			idx, isNumeric, err := parseIndex(seg)
			if err != nil {
				return value.Value{}, &RenderError{Kind: BadNumber, Path: fullPath}
			}
			if !isNumeric {
				return value.Value{}, &RenderError{Kind: UnknownKey, Path: fullPath}
			}
			v, ok := cur.Index(idx)
			if !ok {
				return value.Value{}, &RenderError{Kind: UnknownKey, Path: fullPath}
			}
			cur = v
		case value.KindMapping:
			v, ok := cur.Get(seg)
			if !ok {
				return value.Value{}, &RenderError{Kind: UnknownKey, Path: fullPath}
			}
			cur = v
		default:
			return value.Value{}, &RenderError{Kind: UnknownKey, Path: fullPath}
		}
	}
	return cur, nil
}

// parseIndex reports whether seg is composed entirely of digits (a
// candidate non-negative integer index) and, if so, its value. A segment
// with no digits at all is simply not numeric (isNumeric=false, e.g. a
// mapping key name being tried against a sequence). A segment that looks
// numeric but overflows an int is a BadNumber error.
func parseIndex(seg string) (idx int, isNumeric bool, err error) {
	if seg == "" {
		return 0, false, nil
	}
	for _, r := range seg {
		if r < '0' || r > '9' {
			return 0, false, nil
		}
	}
	n, convErr := strconv.Atoi(seg)
	if convErr != nil {
		return 0, true, convErr
	}
	return n, true, nil
}

// flowEncode renders a mapping/sequence Value in compact YAML-flow form,
// used when a complex terminal is interpolated into a mixed string.
func flowEncode(v value.Value) string {
	switch v.Kind() {
	case value.KindMapping:
		m := v.MappingValue()
		parts := make([]string, 0, m.Len())
		for _, k := range m.Keys() {
			cv, _ := m.Get(k)
			parts = append(parts, k+": "+flowScalar(cv))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case value.KindSequence:
		items := v.Items()
		parts := make([]string, len(items))
		for i, it := range items {
			parts[i] = flowScalar(it)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return flowScalar(v)
	}
}

func flowScalar(v value.Value) string {
	switch v.Kind() {
	case value.KindMapping, value.KindSequence:
		return flowEncode(v)
	case value.KindString:
		return strconv.Quote(v.Str())
	default:
		return v.CanonicalString()
	}
}
