package override

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestFieldStates(t *testing.T) {
	var zero Field
	if !zero.IsKeep() {
		t.Fatalf("zero Field = %v, want keep", zero)
	}
	if Keep().Stored().Op() != FieldUnset {
		t.Fatalf("Keep().Stored() = %v, want unset", Keep().Stored())
	}
	empty := SetTo("")
	if !empty.IsSet() || empty.Truthy() || !empty.Blank() {
		t.Fatalf("SetTo(\"\") = %v: IsSet=%v Truthy=%v Blank=%v", empty, empty.IsSet(), empty.Truthy(), empty.Blank())
	}
	if SetTo("x").Equal(SetTo("y")) || !SetTo("x").Equal(SetTo("x")) {
		t.Fatal("Equal() compares values incorrectly")
	}
	if Unset().Equal(Keep()) {
		t.Fatal("Unset().Equal(Keep()) = true, want false")
	}
	if got := Unset().ValueOr("fallback"); got != "fallback" {
		t.Fatalf("ValueOr() = %q, want fallback", got)
	}
}

func TestOverrideMapPreservesInsertionOrder(t *testing.T) {
	m := NewOverrideMap()
	m.Set("zeta", NameOverride("z"))
	m.Set("alpha", NameOverride("a"))
	m.Set("mid", DescriptionOverride("m"))
	m.Set("zeta", NameOverride("z2"))

	if got := m.Keys(); !reflect.DeepEqual(got, []string{"zeta", "alpha", "mid"}) {
		t.Fatalf("Keys() = %v", got)
	}
	o, ok := m.Get("zeta")
	if !ok || o.Name.ValueOr("") != "z2" {
		t.Fatalf("Get(zeta) = %v, %v", o, ok)
	}

	m.Delete("alpha")
	m.Delete("missing")
	if got := m.Keys(); !reflect.DeepEqual(got, []string{"zeta", "mid"}) {
		t.Fatalf("Keys() after delete = %v", got)
	}
}

func TestOverrideMapNilIsEmpty(t *testing.T) {
	var m *OverrideMap
	if m.Len() != 0 || m.Keys() != nil || m.Clone() != nil {
		t.Fatal("nil map should behave as empty")
	}
	if _, ok := m.Get("x"); ok {
		t.Fatal("Get() on nil map ok = true")
	}
	if !m.Equal(NewOverrideMap()) {
		t.Fatal("nil map should equal an empty map")
	}
}

func TestOverrideMapCloneIsIndependent(t *testing.T) {
	m := NewOverrideMap()
	m.Set("a", NameOverride("x"))
	clone := m.Clone()
	clone.Set("a", NameOverride("y"))
	clone.Set("b", NameOverride("z"))

	if o, _ := m.Get("a"); o.Name.ValueOr("") != "x" {
		t.Fatalf("original mutated: %v", o)
	}
	if m.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", m.Len())
	}
}

func TestOverrideMapJSONOrderAndSparseFields(t *testing.T) {
	m := NewOverrideMap()
	m.Set("zeta", NameOverride("z"))
	m.Set("alpha", Override{Name: SetTo(""), Description: SetTo("d")})

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"zeta":{"name":"z"},"alpha":{"name":"","description":"d"}}`
	if string(data) != want {
		t.Fatalf("Marshal() = %s, want %s", data, want)
	}

	var decoded OverrideMap
	if err := json.Unmarshal([]byte(`{"b":{"description":"x"},"a":{"name":"y","description":null}}`), &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got := decoded.Keys(); !reflect.DeepEqual(got, []string{"b", "a"}) {
		t.Fatalf("Keys() = %v, want [b a]", got)
	}
	a, _ := decoded.Get("a")
	if a.Description.IsSet() {
		t.Fatalf("null description decoded as %v, want unset", a.Description)
	}
}

func TestOverrideMapJSONNull(t *testing.T) {
	var holder struct {
		Overrides *OverrideMap `json:"overrides"`
	}
	if err := json.Unmarshal([]byte(`{"overrides":null}`), &holder); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if holder.Overrides != nil {
		t.Fatalf("Overrides = %v, want nil", holder.Overrides)
	}
	data, err := json.Marshal(holder)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `{"overrides":null}` {
		t.Fatalf("Marshal() = %s", data)
	}
}

func TestOverrideMapJSONRejectsNonObject(t *testing.T) {
	var m OverrideMap
	if err := json.Unmarshal([]byte(`["a"]`), &m); err == nil {
		t.Fatal("Unmarshal(array) error = nil, want error")
	}
}

func TestOverrideMapYAMLRoundTripKeepsOrder(t *testing.T) {
	m := NewOverrideMap()
	m.Set("zeta", NameOverride("z"))
	m.Set("alpha", DescriptionOverride("Alpha tool"))

	data, err := yaml.Marshal(m)
	if err != nil {
		t.Fatalf("yaml.Marshal() error = %v", err)
	}
	if strings.Index(string(data), "zeta") > strings.Index(string(data), "alpha") {
		t.Fatalf("yaml output lost order:\n%s", data)
	}

	var decoded OverrideMap
	if err := yaml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v", err)
	}
	if !decoded.Equal(m) {
		t.Fatalf("decoded = %v, want %v", decoded.Keys(), m.Keys())
	}
	if got := decoded.Keys(); !reflect.DeepEqual(got, []string{"zeta", "alpha"}) {
		t.Fatalf("Keys() = %v", got)
	}
}

func TestOverrideMapYAMLRejectsSequence(t *testing.T) {
	var m OverrideMap
	if err := yaml.Unmarshal([]byte("- a\n- b\n"), &m); err == nil {
		t.Fatal("yaml.Unmarshal(sequence) error = nil, want error")
	}
}
