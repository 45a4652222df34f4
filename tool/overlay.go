package tool

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/petal-labs/tooltailor/override"
)

const OverlayVersionV1 = "1.0"

// Overlay is the portable YAML form of a customization. An absent
// tools_filter enables every tool; an empty one disables them all.
type Overlay struct {
	OverlayVersion string                `yaml:"overlay_version" json:"overlay_version"`
	Server         string                `yaml:"server" json:"server"`
	ToolsFilter    *[]string             `yaml:"tools_filter,omitempty" json:"tools_filter,omitempty"`
	ToolsOverride  *override.OverrideMap `yaml:"tools_override,omitempty" json:"tools_override,omitempty"`
}

// NewOverlay converts a stored record into an overlay document.
func NewOverlay(c Customization) Overlay {
	overlay := Overlay{
		OverlayVersion: OverlayVersionV1,
		Server:         c.Server,
		ToolsOverride:  c.ToolsOverride.Clone(),
	}
	if c.ToolsAllowlist != nil {
		filter := slices.Clone(c.ToolsAllowlist)
		overlay.ToolsFilter = &filter
	}
	return overlay
}

// Customization converts the overlay into a record ready to store.
func (o Overlay) Customization() Customization {
	c := Customization{
		Server:        strings.TrimSpace(o.Server),
		ToolsOverride: o.ToolsOverride.Clone(),
	}
	if o.ToolsFilter != nil {
		c.ToolsAllowlist = slices.Clone(*o.ToolsFilter)
		if c.ToolsAllowlist == nil {
			c.ToolsAllowlist = []string{}
		}
	}
	return c
}

// ParseOverlayFile parses and validates an overlay file from disk.
func ParseOverlayFile(path string) (Overlay, []Diagnostic, error) {
	// #nosec G304 -- overlay path comes from explicit user CLI input.
	data, err := os.ReadFile(path)
	if err != nil {
		return Overlay{}, nil, err
	}
	return ParseOverlayYAML(data)
}

// ParseOverlayYAML parses and validates an overlay payload.
func ParseOverlayYAML(data []byte) (Overlay, []Diagnostic, error) {
	var overlay Overlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return Overlay{}, nil, fmt.Errorf("tool: parse overlay yaml: %w", err)
	}
	return overlay, ValidateOverlay(overlay), nil
}

// ValidateOverlay checks the document header and its customization.
func ValidateOverlay(overlay Overlay) []Diagnostic {
	diags := make([]Diagnostic, 0)
	switch strings.TrimSpace(overlay.OverlayVersion) {
	case OverlayVersionV1:
	case "":
		diags = append(diags, Diagnostic{
			Field:    "overlay_version",
			Code:     "REQUIRED_FIELD",
			Severity: SeverityError,
			Message:  "overlay_version is required",
		})
	default:
		diags = append(diags, Diagnostic{
			Field:    "overlay_version",
			Code:     "ENUM",
			Severity: SeverityError,
			Message:  fmt.Sprintf("overlay_version must be %q", OverlayVersionV1),
		})
	}
	diags = append(diags, ValidateCustomization(overlay.Customization())...)
	sortDiagnostics(diags)
	return diags
}

// MarshalOverlayYAML renders overlay with overrides in stored order.
func MarshalOverlayYAML(overlay Overlay) ([]byte, error) {
	if overlay.OverlayVersion == "" {
		overlay.OverlayVersion = OverlayVersionV1
	}
	data, err := yaml.Marshal(overlay)
	if err != nil {
		return nil, fmt.Errorf("tool: encode overlay yaml: %w", err)
	}
	return data, nil
}
