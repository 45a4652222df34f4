package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

const (
	DefaultProtocolVersion = "2025-06-18"

	defaultClientName = "tooltailor"
	// maxListPages bounds tools/list pagination against servers that keep
	// returning a cursor.
	maxListPages = 100
)

// Transport moves JSON-RPC messages to and from one server.
type Transport interface {
	Send(ctx context.Context, message Message) error
	Receive(ctx context.Context) (Message, error)
	Close(ctx context.Context) error
}

// Options configures the handshake.
type Options struct {
	ProtocolVersion string
	ClientInfo      Implementation
}

// Client speaks the subset of MCP needed to introspect a server's tools.
type Client struct {
	transport Transport
	options   Options

	mu     sync.Mutex
	nextID int64
	server *InitializeResult
}

// NewClient wraps transport. Empty options fall back to defaults.
func NewClient(transport Transport, options Options) *Client {
	if options.ProtocolVersion == "" {
		options.ProtocolVersion = DefaultProtocolVersion
	}
	if options.ClientInfo.Name == "" {
		options.ClientInfo.Name = defaultClientName
	}
	return &Client{transport: transport, options: options, nextID: 1}
}

// Initialize runs the handshake once; later calls return the cached result.
func (c *Client) Initialize(ctx context.Context) (InitializeResult, error) {
	if c == nil {
		return InitializeResult{}, errors.New("mcp: client is nil")
	}
	c.mu.Lock()
	cached := c.server
	c.mu.Unlock()
	if cached != nil {
		return *cached, nil
	}

	var result InitializeResult
	params := InitializeParams{
		ProtocolVersion: c.options.ProtocolVersion,
		Capabilities:    map[string]any{},
		ClientInfo:      c.options.ClientInfo,
	}
	if err := c.call(ctx, "initialize", params, &result); err != nil {
		return InitializeResult{}, err
	}
	if err := c.notify(ctx, "notifications/initialized"); err != nil {
		return InitializeResult{}, err
	}

	c.mu.Lock()
	c.server = &result
	c.mu.Unlock()
	return result, nil
}

// ListTools follows tools/list cursors and returns every tool.
func (c *Client) ListTools(ctx context.Context) ([]Tool, error) {
	var (
		tools  []Tool
		cursor string
	)
	for page := 0; page < maxListPages; page++ {
		var result ListToolsResult
		if err := c.call(ctx, "tools/list", ListToolsParams{Cursor: cursor}, &result); err != nil {
			return nil, err
		}
		tools = append(tools, result.Tools...)
		if result.NextCursor == "" {
			return tools, nil
		}
		cursor = result.NextCursor
	}
	return nil, &RequestError{Method: "tools/list", Err: fmt.Errorf("more than %d pages", maxListPages)}
}

// Close closes the transport.
func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.transport == nil {
		return nil
	}
	return c.transport.Close(ctx)
}

func (c *Client) call(ctx context.Context, method string, params, out any) error {
	if c.transport == nil {
		return &RequestError{Method: method, Err: errors.New("transport is nil")}
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return &RequestError{Method: method, Err: fmt.Errorf("encode params: %w", err)}
	}

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.mu.Unlock()

	request := Message{JSONRPC: jsonRPCVersion, ID: id, Method: method, Params: raw}
	if err := c.transport.Send(ctx, request); err != nil {
		return &RequestError{Method: method, Err: err}
	}

	for {
		response, err := c.transport.Receive(ctx)
		if err != nil {
			return &RequestError{Method: method, Err: err}
		}
		// Server notifications and stale responses are skipped.
		if !response.IsResponse(id) {
			continue
		}
		if response.Error != nil {
			return &RequestError{Method: method, Err: response.Error}
		}
		if out == nil || len(response.Result) == 0 {
			return nil
		}
		if err := json.Unmarshal(response.Result, out); err != nil {
			return &RequestError{Method: method, Err: fmt.Errorf("decode result: %w", err)}
		}
		return nil
	}
}

func (c *Client) notify(ctx context.Context, method string) error {
	if err := c.transport.Send(ctx, Message{JSONRPC: jsonRPCVersion, Method: method}); err != nil {
		return &RequestError{Method: method, Err: err}
	}
	return nil
}
