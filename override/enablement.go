package override

import "slices"

// IsEnabled reports whether displayName is enabled by allowlist. A nil
// allowlist enables everything; an empty one enables nothing.
func IsEnabled(allowlist []string, displayName string) bool {
	return allowlist == nil || slices.Contains(allowlist, displayName)
}

// InitialFlags returns each tool's initial enabled state keyed by canonical
// name.
func InitialFlags(tools []ResolvedTool) map[string]bool {
	flags := make(map[string]bool, len(tools))
	for _, tool := range tools {
		flags[tool.CanonicalName()] = tool.IsInitialEnabled
	}
	return flags
}

// SetAll sets every flag to enabled in place.
func SetAll(flags map[string]bool, enabled bool) {
	for key := range flags {
		flags[key] = enabled
	}
}

// HasChanges reports whether any flag differs from the initial state of the
// matching tool. Flags for unknown tools are ignored.
func HasChanges(flags map[string]bool, tools []ResolvedTool) bool {
	for _, tool := range tools {
		enabled, ok := flags[tool.CanonicalName()]
		if !ok {
			continue
		}
		if enabled != tool.IsInitialEnabled {
			return true
		}
	}
	return false
}

// DisplayFlags translates canonical-keyed flags to the display names tools
// currently resolve to. Tools without a flag keep their initial state.
func DisplayFlags(flags map[string]bool, tools []ResolvedTool) map[string]bool {
	out := make(map[string]bool, len(tools))
	for _, tool := range tools {
		enabled, ok := flags[tool.CanonicalName()]
		if !ok {
			enabled = tool.IsInitialEnabled
		}
		out[tool.DisplayName] = enabled
	}
	return out
}

// CountEnabled returns how many flags are true.
func CountEnabled(flags map[string]bool) int {
	n := 0
	for _, enabled := range flags {
		if enabled {
			n++
		}
	}
	return n
}
