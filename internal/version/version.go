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

// Package version exposes the build-time version string, set via
// -ldflags at release time.
package version

// version is set with -ldflags "-X github.com/konfd/konfd/internal/version.version=..."
// at build time.
var version string

// GetVersion returns the current build version, or "" if unset (e.g. a
// `go run` invocation during development).
func GetVersion() string {
	return version
}
