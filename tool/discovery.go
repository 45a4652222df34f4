package tool

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/petal-labs/tooltailor/override"
	"github.com/petal-labs/tooltailor/tool/mcp"
)

const defaultDiscoveryTimeout = 15 * time.Second

// Discoverer fetches the live tool descriptions of a server.
type Discoverer interface {
	Discover(ctx context.Context, spec ServerSpec) (override.ServerTools, error)
}

// MCPDiscoverer runs initialize and tools/list against a server.
type MCPDiscoverer struct {
	Timeout    time.Duration
	HTTPClient *http.Client
	// Stderr receives stdio server diagnostics. Nil discards them.
	Stderr  io.Writer
	Version string
}

// Discover connects to spec's transport and lists its tools. A server
// without a transport has no live descriptions and yields nil.
func (d MCPDiscoverer) Discover(ctx context.Context, spec ServerSpec) (override.ServerTools, error) {
	if spec.Transport.IsZero() {
		return nil, nil
	}
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = defaultDiscoveryTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	transport, err := d.open(ctx, spec)
	if err != nil {
		return nil, discoveryError(err, spec.Name)
	}
	client := mcp.NewClient(transport, mcp.Options{
		ClientInfo: mcp.Implementation{Name: "tooltailor", Version: d.Version},
	})
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = client.Close(closeCtx)
	}()

	if _, err := client.Initialize(ctx); err != nil {
		return nil, discoveryError(err, spec.Name)
	}
	tools, err := client.ListTools(ctx)
	if err != nil {
		return nil, discoveryError(err, spec.Name)
	}

	out := make(override.ServerTools, len(tools))
	for _, tool := range tools {
		name := strings.TrimSpace(tool.Name)
		if name == "" {
			continue
		}
		out[name] = override.ServerTool{Description: strings.TrimSpace(tool.Description)}
	}
	return out, nil
}

func (d MCPDiscoverer) open(ctx context.Context, spec ServerSpec) (mcp.Transport, error) {
	switch spec.Transport.Mode {
	case TransportStdio:
		return mcp.StartStdio(ctx, mcp.StdioConfig{
			Command: spec.Transport.Command,
			Args:    spec.Transport.Args,
			Env:     spec.Transport.Env,
			Stderr:  d.Stderr,
		})
	case TransportHTTP:
		return mcp.NewHTTPTransport(mcp.HTTPConfig{
			Endpoint: spec.Transport.Endpoint,
			Headers:  spec.Transport.Headers,
			Client:   d.HTTPClient,
		})
	default:
		return nil, fmt.Errorf("unsupported transport mode %q", spec.Transport.Mode)
	}
}

var _ Discoverer = MCPDiscoverer{}
