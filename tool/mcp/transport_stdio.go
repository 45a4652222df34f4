package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"
)

const maxStdioLine = 4 << 20

var errStdioClosed = errors.New("mcp: stdio transport is closed")

// StdioConfig describes a server launched as a subprocess.
type StdioConfig struct {
	Command string
	Args    []string
	Env     map[string]string
	// Stderr receives the server's stderr. Nil discards it.
	Stderr io.Writer
}

// StdioTransport exchanges newline-delimited JSON-RPC messages with a
// subprocess.
type StdioTransport struct {
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	messages chan Message
	done     chan struct{}
	stop     chan struct{}

	mu      sync.Mutex
	readErr error
	closed  bool
}

// StartStdio launches cfg.Command and starts reading its stdout.
func StartStdio(ctx context.Context, cfg StdioConfig) (*StdioTransport, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, errors.New("mcp: stdio command is required")
	}

	// #nosec G204 -- command and args come from the operator's configuration.
	cmd := exec.CommandContext(ctx, cfg.Command, slices.Clone(cfg.Args)...)
	cmd.Env = append(os.Environ(), envList(cfg.Env)...)
	cmd.Stderr = cfg.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = io.Discard
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("mcp: stdio stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("mcp: stdio stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("mcp: start %s: %w", cfg.Command, err)
	}

	t := &StdioTransport{
		cmd:      cmd,
		stdin:    stdin,
		messages: make(chan Message, 16),
		done:     make(chan struct{}),
		stop:     make(chan struct{}),
	}
	go t.read(stdout)
	return t, nil
}

func (t *StdioTransport) read(stdout io.Reader) {
	defer close(t.done)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStdioLine)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var message Message
		if err := json.Unmarshal(line, &message); err != nil {
			t.fail(fmt.Errorf("mcp: decode stdio message: %w", err))
			return
		}
		select {
		case t.messages <- message:
		case <-t.stop:
			t.fail(errStdioClosed)
			return
		}
	}
	if err := scanner.Err(); err != nil {
		t.fail(fmt.Errorf("mcp: read stdio: %w", err))
		return
	}
	t.fail(io.EOF)
}

func (t *StdioTransport) fail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.readErr == nil {
		t.readErr = err
	}
}

// Send writes one message followed by a newline.
func (t *StdioTransport) Send(ctx context.Context, message Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("mcp: encode message: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errStdioClosed
	}
	if _, err := t.stdin.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("mcp: write stdio: %w", err)
	}
	return nil
}

// Receive returns the next message, or the read error once stdout ends.
func (t *StdioTransport) Receive(ctx context.Context) (Message, error) {
	select {
	case message := <-t.messages:
		return message, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case <-t.done:
	}
	// Drain messages queued before stdout closed.
	select {
	case message := <-t.messages:
		return message, nil
	default:
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return Message{}, t.readErr
}

// Close closes stdin, kills the process and waits for it to exit.
func (t *StdioTransport) Close(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	close(t.stop)
	_ = t.stdin.Close()
	if t.cmd.Process != nil {
		_ = t.cmd.Process.Kill()
	}

	waited := make(chan struct{})
	go func() {
		_ = t.cmd.Wait()
		close(waited)
	}()
	select {
	case <-waited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func envList(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for key := range env {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		out = append(out, key+"="+env[key])
	}
	return out
}
