package tool

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// TransportMode selects how a server is reached for discovery.
type TransportMode string

const (
	TransportStdio TransportMode = "stdio"
	TransportHTTP  TransportMode = "http"
)

// Transport describes how to reach a server's MCP endpoint.
type Transport struct {
	Mode     TransportMode     `yaml:"mode" json:"mode"`
	Command  string            `yaml:"command,omitempty" json:"command,omitempty"`
	Args     []string          `yaml:"args,omitempty" json:"args,omitempty"`
	Env      map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	Endpoint string            `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	Headers  map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
}

// IsZero reports whether no transport is configured.
func (t Transport) IsZero() bool {
	return t.Mode == "" && t.Command == "" && t.Endpoint == ""
}

// ServerSpec is one configured server: its static tool catalog and, when
// live descriptions should be fetched, its transport.
type ServerSpec struct {
	Name      string    `json:"name"`
	Tools     []string  `json:"tools"`
	Transport Transport `json:"transport,omitzero"`
}

// Catalog lists configured servers.
type Catalog interface {
	Servers() []ServerSpec
	Server(name string) (ServerSpec, bool)
}

// StaticCatalog is a Catalog backed by a fixed map.
type StaticCatalog map[string]ServerSpec

// NewStaticCatalog indexes specs by name. Duplicate names are rejected.
func NewStaticCatalog(specs ...ServerSpec) (StaticCatalog, error) {
	out := make(StaticCatalog, len(specs))
	for _, spec := range specs {
		name := strings.TrimSpace(spec.Name)
		if name == "" {
			return nil, fmt.Errorf("tool: server name is required")
		}
		if _, dup := out[name]; dup {
			return nil, fmt.Errorf("tool: duplicate server %q", name)
		}
		spec.Name = name
		out[name] = spec
	}
	return out, nil
}

// Servers returns specs ordered by name.
func (c StaticCatalog) Servers() []ServerSpec {
	out := make([]ServerSpec, 0, len(c))
	for _, name := range slices.Sorted(maps.Keys(c)) {
		out = append(out, c[name])
	}
	return out
}

// Server returns the spec for name.
func (c StaticCatalog) Server(name string) (ServerSpec, bool) {
	spec, ok := c[name]
	return spec, ok
}
