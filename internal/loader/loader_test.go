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

package loader

import (
	"testing"

	"github.com/konfd/konfd/internal/value"
)

func TestLoadMetadata(t *testing.T) {
	raw := []byte(`
<!>:
  import: [base, common/redis]
  auth: [t1, t2, t1]
db:
  host: h
  port: 5432
`)
	doc, err := Load("app", raw)
	if err != nil {
		t.Fatalf("Load(...): unexpected error: %v", err)
	}

	if len(doc.Metadata.Imports) != 2 || doc.Metadata.Imports[0] != "base" || doc.Metadata.Imports[1] != "common/redis" {
		t.Fatalf("Metadata.Imports: got %v", doc.Metadata.Imports)
	}
	if !doc.Metadata.HasAuth("t1") || !doc.Metadata.HasAuth("t2") || doc.Metadata.HasAuth("t3") {
		t.Fatalf("Metadata.Auth: got %v", doc.Metadata.Auth)
	}

	host, ok := doc.Body.Get("db")
	if !ok {
		t.Fatalf("Body.Get(db): missing")
	}
	h, ok := host.Get("host")
	if !ok || h.Str() != "h" {
		t.Fatalf("db.host: got %v", h)
	}
}

func TestLoadNotAMapping(t *testing.T) {
	_, err := Load("bad", []byte("- 1\n- 2\n"))
	if err == nil {
		t.Fatal("Load(...): expected error for non-mapping top level")
	}
	le, ok := err.(*LoadError)
	if !ok || le.Kind != NotAMapping {
		t.Fatalf("Load(...): got %v, want LoadError{Kind: NotAMapping}", err)
	}
}

func TestLoadUnknownMetadataKeyWarns(t *testing.T) {
	doc, err := Load("app", []byte(`
<!>:
  import: [base]
  weird: true
k: v
`))
	if err != nil {
		t.Fatalf("Load(...): unexpected error: %v", err)
	}
	if len(doc.Warnings) != 1 {
		t.Fatalf("Warnings: got %v, want one warning about the unknown key", doc.Warnings)
	}
}

func TestLoadAbsentMetadataIsEmpty(t *testing.T) {
	doc, err := Load("plain", []byte("k: v\n"))
	if err != nil {
		t.Fatalf("Load(...): unexpected error: %v", err)
	}
	if len(doc.Metadata.Imports) != 0 {
		t.Fatalf("Metadata.Imports: got %v, want none", doc.Metadata.Imports)
	}
	if doc.Metadata.HasAuth("anything") {
		t.Fatalf("Metadata.HasAuth: absent auth set must deny everything")
	}
}

func TestLoadRoundTripNumberKinds(t *testing.T) {
	doc, err := Load("nums", []byte("i: 42\nf: 1.5\nb: true\nn: null\ns: hi\n"))
	if err != nil {
		t.Fatalf("Load(...): unexpected error: %v", err)
	}

	i, _ := doc.Body.Get("i")
	if i.Kind() != value.KindInt || i.Int() != 42 {
		t.Errorf("i: got %v, want Int(42)", i)
	}
	f, _ := doc.Body.Get("f")
	if f.Kind() != value.KindFloat || f.Float() != 1.5 {
		t.Errorf("f: got %v, want Float(1.5)", f)
	}
	b, _ := doc.Body.Get("b")
	if b.Kind() != value.KindBool || !b.Bool() {
		t.Errorf("b: got %v, want Bool(true)", b)
	}
	n, _ := doc.Body.Get("n")
	if n.Kind() != value.KindNull {
		t.Errorf("n: got %v, want Null", n)
	}
}
