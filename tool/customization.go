package tool

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/petal-labs/tooltailor/override"
)

// Customization is the persisted customization of one server: the values the
// apply step produces plus bookkeeping.
type Customization struct {
	Server         string                `json:"server"`
	ToolsAllowlist []string              `json:"tools_allowlist"`
	ToolsOverride  *override.OverrideMap `json:"tools_override"`
	Revision       string                `json:"revision,omitempty"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// ApplyResult returns the engine view of the record.
func (c Customization) ApplyResult() override.ApplyResult {
	return override.ApplyResult{
		ToolsAllowlist: slices.Clone(c.ToolsAllowlist),
		ToolsOverride:  c.ToolsOverride.Clone(),
	}
}

// IsDefault reports whether the record changes nothing: every tool enabled
// and no overrides.
func (c Customization) IsDefault() bool {
	return c.ToolsAllowlist == nil && c.ToolsOverride.Len() == 0
}

// Store persists customizations keyed by server name.
type Store interface {
	List(ctx context.Context) ([]Customization, error)
	Get(ctx context.Context, server string) (Customization, bool, error)
	// Put replaces the record for c.Server and returns it with a fresh
	// revision and timestamp.
	Put(ctx context.Context, c Customization) (Customization, error)
	Delete(ctx context.Context, server string) error
}

var errServerRequired = errors.New("tool: customization server is required")

// stamp validates c for storage and assigns a new revision.
func stamp(c Customization, now time.Time) (Customization, error) {
	c.Server = strings.TrimSpace(c.Server)
	if c.Server == "" {
		return Customization{}, errServerRequired
	}
	c = cloneCustomization(c)
	c.Revision = uuid.NewString()
	c.UpdatedAt = now.UTC()
	return c, nil
}

func cloneCustomization(in Customization) Customization {
	out := in
	out.ToolsAllowlist = slices.Clone(in.ToolsAllowlist)
	out.ToolsOverride = in.ToolsOverride.Clone()
	return out
}

func cloneCustomizations(in []Customization) []Customization {
	out := make([]Customization, len(in))
	for i := range in {
		out[i] = cloneCustomization(in[i])
	}
	return out
}

func sortCustomizations(items []Customization) {
	slices.SortFunc(items, func(a, b Customization) int {
		return strings.Compare(a.Server, b.Server)
	})
}
