package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
)

type scriptedTransport struct {
	mu            sync.Mutex
	closed        bool
	queue         []Message
	requests      []Message
	notifications []Message
	handler       func(req Message) []Message
}

func (s *scriptedTransport) Send(ctx context.Context, message Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if message.ID == 0 {
		s.notifications = append(s.notifications, message)
		return nil
	}
	s.requests = append(s.requests, message)
	if s.handler != nil {
		s.queue = append(s.queue, s.handler(message)...)
	}
	return nil
}

func (s *scriptedTransport) Receive(ctx context.Context) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return Message{}, errors.New("scripted transport: nothing queued")
	}
	next := s.queue[0]
	s.queue = s.queue[1:]
	return next, nil
}

func (s *scriptedTransport) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func reply(t *testing.T, id int64, result any) Message {
	t.Helper()
	return Message{JSONRPC: jsonRPCVersion, ID: id, Result: mustRawJSON(t, result)}
}

func TestClientInitializeSendsHandshake(t *testing.T) {
	transport := &scriptedTransport{
		handler: func(req Message) []Message {
			var params InitializeParams
			if err := json.Unmarshal(req.Params, &params); err != nil {
				t.Fatalf("Unmarshal(params) error = %v", err)
			}
			if params.ClientInfo.Name != "tooltailor" {
				t.Fatalf("clientInfo.name = %q, want tooltailor", params.ClientInfo.Name)
			}
			if params.ProtocolVersion != DefaultProtocolVersion {
				t.Fatalf("protocolVersion = %q, want %q", params.ProtocolVersion, DefaultProtocolVersion)
			}
			return []Message{reply(t, req.ID, InitializeResult{
				ProtocolVersion: DefaultProtocolVersion,
				ServerInfo:      Implementation{Name: "filesystem", Version: "1.2.0"},
			})}
		},
	}

	client := NewClient(transport, Options{})
	first, err := client.Initialize(context.Background())
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if first.ServerInfo.Name != "filesystem" {
		t.Fatalf("ServerInfo.Name = %q, want filesystem", first.ServerInfo.Name)
	}
	if _, err := client.Initialize(context.Background()); err != nil {
		t.Fatalf("second Initialize() error = %v", err)
	}

	transport.mu.Lock()
	defer transport.mu.Unlock()
	if len(transport.requests) != 1 {
		t.Fatalf("initialize requests = %d, want 1", len(transport.requests))
	}
	if len(transport.notifications) != 1 || transport.notifications[0].Method != "notifications/initialized" {
		t.Fatalf("notifications = %+v, want notifications/initialized", transport.notifications)
	}
}

func TestClientListToolsFollowsCursor(t *testing.T) {
	transport := &scriptedTransport{
		handler: func(req Message) []Message {
			var params ListToolsParams
			_ = json.Unmarshal(req.Params, &params)
			switch params.Cursor {
			case "":
				return []Message{reply(t, req.ID, ListToolsResult{
					Tools:      []Tool{{Name: "edit_file", Description: "Edit a file"}},
					NextCursor: "page-2",
				})}
			case "page-2":
				return []Message{reply(t, req.ID, ListToolsResult{
					Tools: []Tool{{Name: "make_dir", Description: "Make a directory"}},
				})}
			default:
				t.Fatalf("unexpected cursor %q", params.Cursor)
				return nil
			}
		},
	}

	tools, err := NewClient(transport, Options{}).ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools() error = %v", err)
	}
	if len(tools) != 2 || tools[0].Name != "edit_file" || tools[1].Name != "make_dir" {
		t.Fatalf("ListTools() = %+v", tools)
	}
}

func TestClientSkipsNotificationsAndStaleResponses(t *testing.T) {
	transport := &scriptedTransport{
		handler: func(req Message) []Message {
			return []Message{
				{JSONRPC: jsonRPCVersion, Method: "notifications/tools/list_changed"},
				reply(t, req.ID+100, ListToolsResult{}),
				reply(t, req.ID, ListToolsResult{Tools: []Tool{{Name: "fetch"}}}),
			}
		},
	}

	tools, err := NewClient(transport, Options{}).ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools() error = %v", err)
	}
	if len(tools) != 1 || tools[0].Name != "fetch" {
		t.Fatalf("ListTools() = %+v", tools)
	}
}

func TestClientRPCError(t *testing.T) {
	transport := &scriptedTransport{
		handler: func(req Message) []Message {
			return []Message{{
				JSONRPC: jsonRPCVersion,
				ID:      req.ID,
				Error:   &RPCError{Code: -32601, Message: "method not found"},
			}}
		},
	}

	_, err := NewClient(transport, Options{}).ListTools(context.Background())
	var reqErr *RequestError
	if !errors.As(err, &reqErr) || reqErr.Method != "tools/list" {
		t.Fatalf("error = %v, want *RequestError for tools/list", err)
	}
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) || rpcErr.Code != -32601 {
		t.Fatalf("error = %v, want wrapped *RPCError -32601", err)
	}
}

func TestClientClose(t *testing.T) {
	transport := &scriptedTransport{}
	if err := NewClient(transport, Options{}).Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !transport.closed {
		t.Fatal("transport.closed = false, want true")
	}
}
