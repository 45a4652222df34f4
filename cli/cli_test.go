package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

const testConfigYAML = `
servers:
  files:
    tools: [edit_file, make_dir, read_file]
  offline:
    tools: [ping]
`

// newTestRoot returns the command tree with a fresh flag set.
func newTestRoot() *cobra.Command {
	return NewRootCmd("test")
}

// executeCommand runs a cobra command with the given args and captures stdout/stderr.
func executeCommand(root *cobra.Command, args ...string) (stdout, stderr string, err error) {
	var outBuf, errBuf bytes.Buffer
	root.SetOut(&outBuf)
	root.SetErr(&errBuf)
	root.SetArgs(args)
	err = root.Execute()
	return outBuf.String(), errBuf.String(), err
}

// writeTestFile creates a temporary file with the given content and returns its path.
func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// cliEnv pins the config and store of every command it runs.
type cliEnv struct {
	config string
	store  string
}

func newCLIEnv(t *testing.T) cliEnv {
	t.Helper()
	t.Setenv("TOOLTAILOR_STORE_PATH", "")
	t.Setenv("TOOLTAILOR_LOG_LEVEL", "error")
	return cliEnv{
		config: writeTestFile(t, "tooltailor.yaml", testConfigYAML),
		store:  filepath.Join(t.TempDir(), "customizations.json"),
	}
}

func (e cliEnv) run(args ...string) (string, string, error) {
	args = append(args, "--config", e.config, "--store-path", e.store)
	return executeCommand(newTestRoot(), args...)
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	if err == nil {
		return exitSuccess
	}
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("error %v (%T) is not an ExitError", err, err)
	}
	return exitErr.Code
}

func TestRootVersion(t *testing.T) {
	stdout, _, err := executeCommand(newTestRoot(), "--version")
	if err != nil {
		t.Fatalf("--version error = %v", err)
	}
	if stdout != "tooltailor version test\n" {
		t.Fatalf("--version output = %q", stdout)
	}
}

func TestMissingExplicitConfig(t *testing.T) {
	_, _, err := executeCommand(newTestRoot(), "tools", "servers", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	if got := exitCode(t, err); got != exitValidation {
		t.Fatalf("exit code = %d, want %d", got, exitValidation)
	}
}

func TestInvalidLogLevel(t *testing.T) {
	env := newCLIEnv(t)
	_, _, err := env.run("tools", "servers", "--log-level", "loud")
	if got := exitCode(t, err); got != exitValidation {
		t.Fatalf("exit code = %d, want %d", got, exitValidation)
	}
}
