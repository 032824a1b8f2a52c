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
	"fmt"
	"strings"
)

// RenderErrorKind enumerates the resolver's failure modes.
type RenderErrorKind int

// RenderError kinds.
const (
	BadImport RenderErrorKind = iota
	Cycle
	UnknownKey
	AmbiguousRef
	TooDeep
	BadNumber
)

func (k RenderErrorKind) String() string {
	switch k {
	case BadImport:
		return "BadImport"
	case Cycle:
		return "Cycle"
	case UnknownKey:
		return "UnknownKey"
	case AmbiguousRef:
		return "AmbiguousRef"
	case TooDeep:
		return "TooDeep"
	case BadNumber:
		return "BadNumber"
	default:
		return "Unknown"
	}
}

// RenderError is returned by Render when a document cannot be rendered.
// It never originates from a panic: malformed input always produces one
// of these instead.
type RenderError struct {
	Kind RenderErrorKind
	// Name is the document the error concerns (BadImport).
	Name string
	// Cause is the underlying error (BadImport, wrapping a LoadError or
	// MissingError).
	Cause error
	// Path is the full cycle, in traversal order (Cycle), or the
	// offending template path (UnknownKey/AmbiguousRef/BadNumber).
	Path []string
}

func (e *RenderError) Error() string {
	switch e.Kind {
	case BadImport:
		return fmt.Sprintf("resolve: bad import %q: %v", e.Name, e.Cause)
	case Cycle:
		return fmt.Sprintf("resolve: import cycle: %s", strings.Join(e.Path, " -> "))
	case UnknownKey:
		return fmt.Sprintf("resolve: unknown key in path %q", strings.Join(e.Path, "."))
	case AmbiguousRef:
		return fmt.Sprintf("resolve: ambiguous reference %q", strings.Join(e.Path, "."))
	case TooDeep:
		return "resolve: import graph exceeds maximum traversal depth"
	case BadNumber:
		return fmt.Sprintf("resolve: not a valid non-negative integer index: %q", strings.Join(e.Path, "."))
	default:
		return "resolve: error"
	}
}

func (e *RenderError) Unwrap() error { return e.Cause }

// RenderWarningKind enumerates non-fatal diagnostics.
type RenderWarningKind int

// RenderWarning kinds.
const (
	ComplexInterpolation RenderWarningKind = iota
	UnknownMetadataKey
)

// RenderWarning is a non-fatal diagnostic attached to a successful render.
type RenderWarning struct {
	Kind    RenderWarningKind
	Message string
}

// Diagnostics accumulates warnings produced during a render.
type Diagnostics struct {
	Warnings []RenderWarning
}

func (d *Diagnostics) warn(kind RenderWarningKind, msg string) {
	d.Warnings = append(d.Warnings, RenderWarning{Kind: kind, Message: msg})
}
