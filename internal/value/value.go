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

// Package value implements the neutral tagged value tree that every
// document is parsed into and every render produces. It is the shared
// currency between the loader, the resolver and the output serializers.
package value

import (
	"strconv"
)

// Kind identifies which variant of Value is populated.
type Kind int

// The variants of Value.
const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindSequence
	KindMapping
)

// String returns a human readable name for the Kind, used in diagnostics.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	default:
		return "unknown"
	}
}

// Value is a tagged variant over the scalar/sequence/mapping tree that
// every configuration document is loaded into and rendered as. The zero
// Value is Null.
type Value struct {
	kind Kind

	b   bool
	i   int64
	f   float64
	s   string
	seq []Value
	m   *Mapping
}

// Null returns the null Value.
func Null() Value { return Value{kind: KindNull} }

// Bool constructs a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int constructs an integer Value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float constructs a floating point Value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// String constructs a string Value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Sequence constructs a sequence Value from the given elements. The slice
// is copied so later mutation of items does not alias the Value.
func Sequence(items ...Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindSequence, seq: cp}
}

// FromMapping constructs a mapping Value from an already-built Mapping.
func FromMapping(m *Mapping) Value {
	if m == nil {
		m = NewMapping()
	}
	return Value{kind: KindMapping, m: m}
}

// Kind reports which variant is populated.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the null value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Bool returns the boolean payload; valid only when Kind() == KindBool.
func (v Value) Bool() bool { return v.b }

// Int returns the integer payload; valid only when Kind() == KindInt.
func (v Value) Int() int64 { return v.i }

// Float returns the float payload; valid only when Kind() == KindFloat.
func (v Value) Float() float64 { return v.f }

// Str returns the string payload; valid only when Kind() == KindString.
func (v Value) Str() string { return v.s }

// Len returns the number of elements for a sequence or mapping, 0 otherwise.
func (v Value) Len() int {
	switch v.kind {
	case KindSequence:
		return len(v.seq)
	case KindMapping:
		return v.m.Len()
	default:
		return 0
	}
}

// Index returns the element at i in a sequence Value. ok is false if v is
// not a sequence or i is out of range.
func (v Value) Index(i int) (Value, bool) {
	if v.kind != KindSequence || i < 0 || i >= len(v.seq) {
		return Value{}, false
	}
	return v.seq[i], true
}

// Items returns the underlying slice of a sequence Value, or nil.
func (v Value) Items() []Value {
	if v.kind != KindSequence {
		return nil
	}
	return v.seq
}

// Get returns the value for key in a mapping Value. ok is false if v is not
// a mapping or the key is absent.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindMapping || v.m == nil {
		return Value{}, false
	}
	return v.m.Get(key)
}

// MappingValue returns the underlying Mapping of a mapping Value, or nil.
func (v Value) MappingValue() *Mapping {
	if v.kind != KindMapping {
		return nil
	}
	return v.m
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	switch v.kind {
	case KindSequence:
		items := make([]Value, len(v.seq))
		for i, e := range v.seq {
			items[i] = e.Clone()
		}
		return Value{kind: KindSequence, seq: items}
	case KindMapping:
		return Value{kind: KindMapping, m: v.m.Clone()}
	default:
		return v
	}
}

// Equal reports structural equality. Numbers compare equal across
// int/float representations only when both are exactly representable as
// the same real number. Mappings compare order-sensitively.
func Equal(a, b Value) bool {
	if a.kind == KindInt && b.kind == KindFloat {
		return float64(a.i) == b.f && int64(b.f) == a.i
	}
	if a.kind == KindFloat && b.kind == KindInt {
		return float64(b.i) == a.f && int64(a.f) == b.i
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindInt:
		return a.i == b.i
	case KindFloat:
		return a.f == b.f
	case KindString:
		return a.s == b.s
	case KindSequence:
		if len(a.seq) != len(b.seq) {
			return false
		}
		for i := range a.seq {
			if !Equal(a.seq[i], b.seq[i]) {
				return false
			}
		}
		return true
	case KindMapping:
		return a.m.Equal(b.m)
	default:
		return false
	}
}

// CanonicalString renders a scalar Value in its canonical textual form:
// booleans as true/false, integers without a decimal point, floats in
// shortest round-trip form, null as the empty string, strings as-is. It
// panics if called on a sequence or mapping; callers must check Kind()
// first (see resolve.flowEncode for those).
func (v Value) CanonicalString() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return v.s
	default:
		panic("value: CanonicalString called on non-scalar " + v.kind.String())
	}
}
