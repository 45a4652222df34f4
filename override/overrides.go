package override

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"
	"slices"

	"gopkg.in/yaml.v3"
)

// Override is a sparse persisted name/description override for one tool,
// keyed elsewhere by the tool's canonical name. An unset field means there is
// nothing to persist for it.
type Override struct {
	Name        Field
	Description Field
}

// NameOverride returns an override that only renames a tool.
func NameOverride(name string) Override {
	return Override{Name: SetTo(name), Description: Unset()}
}

// DescriptionOverride returns an override that only re-describes a tool.
func DescriptionOverride(description string) Override {
	return Override{Name: Unset(), Description: SetTo(description)}
}

// IsEmpty reports whether neither field carries a value.
func (o Override) IsEmpty() bool {
	return !o.Name.IsSet() && !o.Description.IsSet()
}

// IsBlank reports whether both fields are unset or empty strings.
func (o Override) IsBlank() bool {
	return o.Name.Blank() && o.Description.Blank()
}

// Equal compares two overrides after storage normalization.
func (o Override) Equal(other Override) bool {
	a, b := o.stored(), other.stored()
	return a.Name.Equal(b.Name) && a.Description.Equal(b.Description)
}

func (o Override) stored() Override {
	return Override{Name: o.Name.Stored(), Description: o.Description.Stored()}
}

type overrideDoc struct {
	Name        *string `json:"name,omitempty" yaml:"name,omitempty"`
	Description *string `json:"description,omitempty" yaml:"description,omitempty"`
}

func (o Override) doc() overrideDoc {
	var doc overrideDoc
	if value, ok := o.Name.Value(); ok {
		doc.Name = &value
	}
	if value, ok := o.Description.Value(); ok {
		doc.Description = &value
	}
	return doc
}

func (doc overrideDoc) override() Override {
	out := Override{Name: Unset(), Description: Unset()}
	if doc.Name != nil {
		out.Name = SetTo(*doc.Name)
	}
	if doc.Description != nil {
		out.Description = SetTo(*doc.Description)
	}
	return out
}

// MarshalJSON encodes only the set fields.
func (o Override) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.doc())
}

// UnmarshalJSON decodes absent or null fields as unset.
func (o *Override) UnmarshalJSON(data []byte) error {
	var doc overrideDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	*o = doc.override()
	return nil
}

// MarshalYAML encodes only the set fields.
func (o Override) MarshalYAML() (any, error) {
	return o.doc(), nil
}

// UnmarshalYAML decodes absent or null fields as unset.
func (o *Override) UnmarshalYAML(node *yaml.Node) error {
	var doc overrideDoc
	if err := node.Decode(&doc); err != nil {
		return err
	}
	*o = doc.override()
	return nil
}

// OverrideMap maps canonical tool names to overrides and remembers insertion
// order, so "first override wins" decisions are deterministic. A nil
// *OverrideMap is a valid, empty, read-only map and encodes as null.
type OverrideMap struct {
	keys    []string
	entries map[string]Override
}

// NewOverrideMap returns an empty map.
func NewOverrideMap() *OverrideMap {
	return &OverrideMap{entries: make(map[string]Override)}
}

// Len returns the number of entries.
func (m *OverrideMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Get returns the override stored for key.
func (m *OverrideMap) Get(key string) (Override, bool) {
	if m == nil {
		return Override{Name: Unset(), Description: Unset()}, false
	}
	o, ok := m.entries[key]
	if !ok {
		return Override{Name: Unset(), Description: Unset()}, false
	}
	return o, true
}

// Set stores o under key. Existing keys keep their position.
func (m *OverrideMap) Set(key string, o Override) {
	if m.entries == nil {
		m.entries = make(map[string]Override)
	}
	if _, ok := m.entries[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.entries[key] = o.stored()
}

// Delete removes key. Deleting a missing key is a no-op.
func (m *OverrideMap) Delete(key string) {
	if m == nil {
		return
	}
	if _, ok := m.entries[key]; !ok {
		return
	}
	delete(m.entries, key)
	if i := slices.Index(m.keys, key); i >= 0 {
		m.keys = slices.Delete(m.keys, i, i+1)
	}
}

// Keys returns keys in insertion order.
func (m *OverrideMap) Keys() []string {
	if m == nil {
		return nil
	}
	return slices.Clone(m.keys)
}

// All iterates entries in insertion order.
func (m *OverrideMap) All() iter.Seq2[string, Override] {
	return func(yield func(string, Override) bool) {
		if m == nil {
			return
		}
		for _, key := range m.keys {
			if !yield(key, m.entries[key]) {
				return
			}
		}
	}
}

// Clone returns a deep copy. Cloning nil yields nil.
func (m *OverrideMap) Clone() *OverrideMap {
	if m == nil {
		return nil
	}
	out := &OverrideMap{
		keys:    slices.Clone(m.keys),
		entries: make(map[string]Override, len(m.entries)),
	}
	for key, o := range m.entries {
		out.entries[key] = o
	}
	return out
}

// Equal reports whether both maps hold the same entries, ignoring order.
// A nil map equals an empty one.
func (m *OverrideMap) Equal(other *OverrideMap) bool {
	if m.Len() != other.Len() {
		return false
	}
	for key, o := range m.All() {
		theirs, ok := other.Get(key)
		if !ok || !o.Equal(theirs) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes entries as a JSON object in insertion order.
func (m *OverrideMap) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyData, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		valueData, err := json.Marshal(m.entries[key])
		if err != nil {
			return nil, err
		}
		buf.Write(keyData)
		buf.WriteByte(':')
		buf.Write(valueData)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, preserving key order.
func (m *OverrideMap) UnmarshalJSON(data []byte) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	token, err := decoder.Token()
	if err != nil {
		return fmt.Errorf("override: decode override map: %w", err)
	}
	m.reset()
	if token == nil {
		return nil
	}
	if delim, ok := token.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("override: override map must be an object, got %v", token)
	}
	for decoder.More() {
		keyToken, err := decoder.Token()
		if err != nil {
			return fmt.Errorf("override: decode override key: %w", err)
		}
		key, _ := keyToken.(string)
		var o Override
		if err := decoder.Decode(&o); err != nil {
			return fmt.Errorf("override: decode override %q: %w", key, err)
		}
		m.Set(key, o)
	}
	if _, err := decoder.Token(); err != nil {
		return fmt.Errorf("override: decode override map: %w", err)
	}
	return nil
}

// MarshalYAML encodes entries as a YAML mapping in insertion order.
func (m *OverrideMap) MarshalYAML() (any, error) {
	if m == nil {
		return nil, nil
	}
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, key := range m.keys {
		value := &yaml.Node{}
		if err := value.Encode(m.entries[key]); err != nil {
			return nil, fmt.Errorf("override: encode override %q: %w", key, err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
			value,
		)
	}
	return node, nil
}

// UnmarshalYAML decodes a YAML mapping, preserving key order.
func (m *OverrideMap) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.AliasNode && node.Alias != nil {
		node = node.Alias
	}
	m.reset()
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("override: override map must be a mapping (line %d)", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		var key string
		if err := node.Content[i].Decode(&key); err != nil {
			return fmt.Errorf("override: decode override key: %w", err)
		}
		var o Override
		if err := node.Content[i+1].Decode(&o); err != nil {
			return fmt.Errorf("override: decode override %q: %w", key, err)
		}
		m.Set(key, o)
	}
	return nil
}

func (m *OverrideMap) reset() {
	m.keys = nil
	m.entries = make(map[string]Override)
}
