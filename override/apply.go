package override

// ApplyResult holds the two values persisted on commit. A nil allowlist means
// every tool is enabled; a nil override map means there are no overrides.
type ApplyResult struct {
	ToolsAllowlist []string     `json:"tools_allowlist"`
	ToolsOverride  *OverrideMap `json:"tools_override"`
}

// Reduce converts display-keyed enabled flags and the local override store
// into persistence-ready values. total is the number of resolved tools.
//
// The allowlist is only written when the enabled subset differs in size from
// the resolved set, so an all-enabled state stays implicit as tools are added
// upstream.
func Reduce(flags map[string]bool, local *OverrideMap, total int) ApplyResult {
	enabled := make([]string, 0, len(flags))
	for name, on := range flags {
		if on {
			enabled = append(enabled, name)
		}
	}
	sortNames(enabled)

	var result ApplyResult
	if len(enabled) != total {
		result.ToolsAllowlist = enabled
	}
	result.ToolsOverride = FilterOverrides(local)
	return result
}

// FilterOverrides drops entries whose fields are all unset or empty. It
// returns nil when nothing remains.
func FilterOverrides(local *OverrideMap) *OverrideMap {
	out := NewOverrideMap()
	for key, o := range local.All() {
		if o.IsBlank() {
			continue
		}
		out.Set(key, o)
	}
	if out.Len() == 0 {
		return nil
	}
	return out
}
