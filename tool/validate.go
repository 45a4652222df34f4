package tool

import (
	"fmt"
	"slices"
	"strings"
)

// Severity defines diagnostic severity produced by validators.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Diagnostic is a structured validation finding.
type Diagnostic struct {
	Field    string   `json:"field,omitempty"`
	Code     string   `json:"code,omitempty"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Result aggregates diagnostics from one or more validation passes.
type Result struct {
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// HasErrors returns true when at least one error-severity diagnostic exists.
func (r Result) HasErrors() bool {
	return hasErrors(r.Diagnostics)
}

func hasErrors(diags []Diagnostic) bool {
	return slices.ContainsFunc(diags, func(d Diagnostic) bool {
		return d.Severity == SeverityError
	})
}

// ValidateCustomization checks a record before it is stored. Entries the
// apply step would drop, duplicate allowlist names and rename collisions are
// warnings; missing names are errors.
func ValidateCustomization(c Customization) []Diagnostic {
	diags := make([]Diagnostic, 0)

	if strings.TrimSpace(c.Server) == "" {
		diags = append(diags, Diagnostic{
			Field:    "server",
			Code:     "REQUIRED_FIELD",
			Severity: SeverityError,
			Message:  "server is required",
		})
	}

	seen := make(map[string]struct{}, len(c.ToolsAllowlist))
	for i, name := range c.ToolsAllowlist {
		field := fmt.Sprintf("tools_allowlist[%d]", i)
		if strings.TrimSpace(name) == "" {
			diags = append(diags, Diagnostic{
				Field:    field,
				Code:     "REQUIRED_FIELD",
				Severity: SeverityError,
				Message:  "allowlist entries must not be empty",
			})
			continue
		}
		if _, dup := seen[name]; dup {
			diags = append(diags, Diagnostic{
				Field:    field,
				Code:     "DUPLICATE",
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("tool %q is listed more than once", name),
			})
		}
		seen[name] = struct{}{}
	}

	renamedBy := make(map[string]string)
	for key, o := range c.ToolsOverride.All() {
		field := "tools_override." + key
		if strings.TrimSpace(key) == "" {
			diags = append(diags, Diagnostic{
				Field:    "tools_override",
				Code:     "INVALID_TOOL_NAME",
				Severity: SeverityError,
				Message:  "tools_override keys must not be empty",
			})
			continue
		}
		if o.IsBlank() {
			diags = append(diags, Diagnostic{
				Field:    field,
				Code:     "EMPTY_OVERRIDE",
				Severity: SeverityWarning,
				Message:  "override sets nothing and is dropped on apply",
			})
			continue
		}
		if !o.Name.Truthy() {
			continue
		}
		name, _ := o.Name.Value()
		if first, taken := renamedBy[name]; taken {
			diags = append(diags, Diagnostic{
				Field:    field + ".name",
				Code:     "RENAME_COLLISION",
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("%q is already used by %s; this rename is hidden", name, first),
			})
			continue
		}
		renamedBy[name] = key
	}

	sortDiagnostics(diags)
	return diags
}

func sortDiagnostics(diags []Diagnostic) {
	slices.SortStableFunc(diags, func(a, b Diagnostic) int {
		if cmp := strings.Compare(a.Field, b.Field); cmp != 0 {
			return cmp
		}
		return strings.Compare(a.Code, b.Code)
	})
}
