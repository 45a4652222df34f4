package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"
)

const sessionHeader = "Mcp-Session-Id"

// HTTPConfig describes a server reached over streamable HTTP.
type HTTPConfig struct {
	Endpoint string
	Headers  map[string]string
	Client   *http.Client
}

// HTTPTransport posts each message to the endpoint and queues the replies,
// which arrive either as one JSON body or as an event stream.
type HTTPTransport struct {
	cfg     HTTPConfig
	replies chan Message

	mu        sync.Mutex
	sessionID string
	closed    bool
}

// NewHTTPTransport validates cfg. No connection is made until Send.
func NewHTTPTransport(cfg HTTPConfig) (*HTTPTransport, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("mcp: http endpoint is required")
	}
	if cfg.Client == nil {
		cfg.Client = http.DefaultClient
	}
	return &HTTPTransport{cfg: cfg, replies: make(chan Message, 64)}, nil
}

// Send posts message and queues any replies in the response.
func (t *HTTPTransport) Send(ctx context.Context, message Message) error {
	t.mu.Lock()
	closed, sessionID := t.closed, t.sessionID
	t.mu.Unlock()
	if closed {
		return errors.New("mcp: http transport is closed")
	}

	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("mcp: encode message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("mcp: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	if sessionID != "" {
		req.Header.Set(sessionHeader, sessionID)
	}
	for key, value := range t.cfg.Headers {
		req.Header.Set(key, value)
	}

	resp, err := t.cfg.Client.Do(req)
	if err != nil {
		return fmt.Errorf("mcp: post %s: %w", t.cfg.Endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("mcp: endpoint returned status %d", resp.StatusCode)
	}
	if id := resp.Header.Get(sessionHeader); id != "" {
		t.mu.Lock()
		t.sessionID = id
		t.mu.Unlock()
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == "text/event-stream" {
		return t.readEvents(ctx, resp.Body)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("mcp: read response: %w", err)
	}
	return t.enqueue(ctx, data)
}

// readEvents queues the data payload of every event in the stream.
func (t *HTTPTransport) readEvents(ctx context.Context, body io.Reader) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStdioLine)

	var data bytes.Buffer
	flush := func() error {
		defer data.Reset()
		return t.enqueue(ctx, data.Bytes())
	}
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if err := flush(); err != nil {
				return err
			}
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("mcp: read event stream: %w", err)
	}
	return flush()
}

func (t *HTTPTransport) enqueue(ctx context.Context, data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	var message Message
	if err := json.Unmarshal(data, &message); err != nil {
		return fmt.Errorf("mcp: decode response: %w", err)
	}
	select {
	case t.replies <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive returns the next queued reply.
func (t *HTTPTransport) Receive(ctx context.Context) (Message, error) {
	select {
	case message := <-t.replies:
		return message, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

// Close marks the transport closed. A session opened by the server is ended
// with a DELETE, best effort.
func (t *HTTPTransport) Close(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	sessionID := t.sessionID
	t.mu.Unlock()

	if sessionID == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, t.cfg.Endpoint, nil)
	if err != nil {
		return nil
	}
	req.Header.Set(sessionHeader, sessionID)
	if resp, err := t.cfg.Client.Do(req); err == nil {
		_ = resp.Body.Close()
	}
	return nil
}
