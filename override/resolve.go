package override

import (
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// ResolvedTool is one display-ready tool after overrides are applied.
//
// OriginalName is set only when a name override is in effect. In that case
// OriginalDescription holds the pre-override description unless the
// description is overridden too. A description-only override keeps no
// original description.
type ResolvedTool struct {
	DisplayName         string  `json:"display_name"`
	Description         string  `json:"description"`
	OriginalName        string  `json:"original_name,omitempty"`
	OriginalDescription *string `json:"original_description,omitempty"`
	IsInitialEnabled    bool    `json:"is_initial_enabled"`
}

// CanonicalName returns the key used by override maps and enablement diffs.
func (t ResolvedTool) CanonicalName() string {
	if t.OriginalName != "" {
		return t.OriginalName
	}
	return t.DisplayName
}

// Renamed reports whether a name override is in effect.
func (t ResolvedTool) Renamed() bool {
	return t.OriginalName != ""
}

// Inputs bundles the four externally supplied values a resolution needs.
type Inputs struct {
	RegistryTools []string     `json:"registry_tools"`
	ServerTools   ServerTools  `json:"server_tools"`
	Overrides     *OverrideMap `json:"overrides"`
	// Allowlist holds enabled display names. Nil enables every tool.
	Allowlist []string `json:"allowlist"`
}

// Candidates merges the catalog and live descriptions of in.
func (in Inputs) Candidates() Candidates {
	return MergeCatalog(in.RegistryTools, in.ServerTools)
}

// ResolveInputs merges the catalog and resolves it against in.
func ResolveInputs(in Inputs) []ResolvedTool {
	return Resolve(in.Candidates(), in.ServerTools, in.Overrides, in.Allowlist)
}

// Resolve applies overrides to candidates and marks initial enablement.
//
// Tools with a name override leave the base pass and reappear under their new
// display name. When several tools are renamed to the same display name, the
// first one in override order wins and the rest are dropped. A renamed tool
// replaces any base tool that already uses its new display name. Overrides
// whose key is not a known candidate contribute nothing. The result is sorted
// by display name.
func Resolve(candidates Candidates, serverTools ServerTools, overrides *OverrideMap, enabledFilter []string) []ResolvedTool {
	renamed := make(map[string]struct{})
	for key, o := range overrides.All() {
		if o.Name.Truthy() {
			renamed[key] = struct{}{}
		}
	}

	byDisplay := make(map[string]ResolvedTool, len(candidates))
	for name, candidate := range candidates {
		if _, ok := renamed[name]; ok {
			continue
		}
		tool := ResolvedTool{DisplayName: name}
		if o, ok := overrides.Get(name); ok && o.Description.IsSet() {
			tool.Description, _ = o.Description.Value()
		} else {
			tool.Description = originalDescription(candidate, serverTools, name)
		}
		byDisplay[name] = tool
	}

	claimed := make(map[string]struct{}, len(renamed))
	for key, o := range overrides.All() {
		if !o.Name.Truthy() {
			continue
		}
		candidate, ok := candidates[key]
		if !ok {
			continue
		}
		display, _ := o.Name.Value()
		if _, taken := claimed[display]; taken {
			continue
		}
		claimed[display] = struct{}{}

		original := originalDescription(candidate, serverTools, key, display)
		tool := ResolvedTool{DisplayName: display, OriginalName: key}
		if description, ok := o.Description.Value(); ok {
			tool.Description = description
		} else {
			tool.Description = original
			tool.OriginalDescription = &original
		}
		byDisplay[display] = tool
	}

	out := make([]ResolvedTool, 0, len(byDisplay))
	for _, tool := range byDisplay {
		tool.IsInitialEnabled = IsEnabled(enabledFilter, tool.DisplayName)
		out = append(out, tool)
	}
	SortTools(out)
	return out
}

// SortTools orders tools by display name using English collation.
func SortTools(tools []ResolvedTool) {
	compare := nameCompare()
	slices.SortFunc(tools, func(a, b ResolvedTool) int {
		return compare(a.DisplayName, b.DisplayName)
	})
}

func sortNames(names []string) {
	slices.SortFunc(names, nameCompare())
}

// nameCompare orders by English collation, breaking ties bytewise so the
// order is total.
func nameCompare() func(a, b string) int {
	collator := collate.New(language.English)
	return func(a, b string) int {
		if c := collator.CompareString(a, b); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	}
}

// originalDescription falls back from the candidate description to the live
// description under each of names, then to the empty string.
func originalDescription(candidate ToolCandidate, serverTools ServerTools, names ...string) string {
	if candidate.Description != "" {
		return candidate.Description
	}
	for _, name := range names {
		if live, ok := serverTools[name]; ok && live.Description != "" {
			return live.Description
		}
	}
	return ""
}

// FindTool returns the resolved tool shown under displayName.
func FindTool(tools []ResolvedTool, displayName string) (ResolvedTool, bool) {
	for _, tool := range tools {
		if tool.DisplayName == displayName {
			return tool, true
		}
	}
	return ResolvedTool{}, false
}

// FindCanonical returns the resolved tool whose canonical name is name.
func FindCanonical(tools []ResolvedTool, name string) (ResolvedTool, bool) {
	for _, tool := range tools {
		if tool.CanonicalName() == name {
			return tool, true
		}
	}
	return ResolvedTool{}, false
}
