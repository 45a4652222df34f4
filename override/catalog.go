package override

import (
	"maps"
	"slices"
)

// ToolCandidate is one known tool before overrides are applied.
type ToolCandidate struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ServerTool is what a running server reports about one of its tools.
type ServerTool struct {
	Description string `json:"description,omitempty"`
}

// ServerTools maps live tool names to their descriptions. Nil means the live
// descriptions are unavailable.
type ServerTools map[string]ServerTool

// Candidates maps tool names to candidates.
type Candidates map[string]ToolCandidate

// MergeCatalog combines the static catalog with live tool descriptions.
// Catalog-only tools get an empty description; live tools overwrite the
// description and tools missing from the catalog are added.
func MergeCatalog(registryTools []string, serverTools ServerTools) Candidates {
	out := make(Candidates, len(registryTools)+len(serverTools))
	for _, name := range registryTools {
		out[name] = ToolCandidate{Name: name}
	}
	for name, live := range serverTools {
		out[name] = ToolCandidate{Name: name, Description: live.Description}
	}
	return out
}

// Names returns candidate names in lexical order.
func (c Candidates) Names() []string {
	return slices.Sorted(maps.Keys(c))
}

// Has reports whether name is a known candidate.
func (c Candidates) Has(name string) bool {
	_, ok := c[name]
	return ok
}

// Drift lists live tools absent from the catalog and catalog tools the live
// server did not report. Both slices are sorted. A nil serverTools reports no
// missing tools, since nothing is known about the live server.
func Drift(registryTools []string, serverTools ServerTools) (extra, missing []string) {
	catalog := make(map[string]struct{}, len(registryTools))
	for _, name := range registryTools {
		catalog[name] = struct{}{}
	}
	for name := range serverTools {
		if _, ok := catalog[name]; !ok {
			extra = append(extra, name)
		}
	}
	if serverTools != nil {
		for name := range catalog {
			if _, ok := serverTools[name]; !ok {
				missing = append(missing, name)
			}
		}
	}
	slices.Sort(extra)
	slices.Sort(missing)
	return extra, missing
}
