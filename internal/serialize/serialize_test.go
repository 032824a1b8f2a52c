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

package serialize

import (
	"strings"
	"testing"

	"github.com/konfd/konfd/internal/value"
)

func buildSample() value.Value {
	m := value.NewMapping()
	m.Set("z", value.Int(1))
	m.Set("a", value.String("x"))
	return value.FromMapping(m)
}

func TestEncodeJSONPreservesOrder(t *testing.T) {
	b, err := Encode(buildSample(), JSON)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got := string(b)
	if want := `{"z":1,"a":"x"}`; got != want {
		t.Fatalf("Encode(JSON): got %s, want %s", got, want)
	}
}

func TestEncodeYAMLPreservesOrder(t *testing.T) {
	b, err := Encode(buildSample(), YAML)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got := string(b)
	zIdx := strings.Index(got, "z:")
	aIdx := strings.Index(got, "a:")
	if zIdx == -1 || aIdx == -1 || zIdx > aIdx {
		t.Fatalf("Encode(YAML): got %q, want z before a", got)
	}
}

func TestEncodeUnsupportedFormat(t *testing.T) {
	_, err := Encode(buildSample(), Format("toml"))
	if err == nil {
		t.Fatal("Encode: expected an error for an unsupported format")
	}
}
