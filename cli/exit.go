package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/petal-labs/tooltailor/tool"
)

// Process exit codes.
const (
	exitSuccess    = 0
	exitValidation = 1
	exitRuntime    = 2
	exitNotFound   = 3
	exitDiscovery  = 4
)

// ExitError is an error that carries a specific process exit code.
// Cobra's RunE returns this to signal the desired exit code to main.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

// exitError creates a new ExitError with the given code and formatted message.
func exitError(code int, format string, args ...any) *ExitError {
	return &ExitError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// commandError maps service failures to exit codes and prints validation
// diagnostics to stderr.
func commandError(stderr io.Writer, err error) error {
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	var custErr *tool.CustomizationError
	if !errors.As(err, &custErr) {
		return exitError(exitRuntime, "%v", err)
	}
	switch custErr.Code {
	case tool.ErrorCodeServerNotFound, tool.ErrorCodeToolNotFound:
		return exitError(exitNotFound, "%s", custErr.Message)
	case tool.ErrorCodeValidationFailed:
		printDiagnostics(stderr, custErr.Details)
		return exitError(exitValidation, "%s", custErr.Message)
	case tool.ErrorCodeDiscoveryFailed:
		return exitError(exitDiscovery, "%s", custErr.Message)
	default:
		return exitError(exitRuntime, "%v", custErr)
	}
}

func printDiagnostics(w io.Writer, diags []tool.Diagnostic) {
	for _, d := range diags {
		fmt.Fprintf(w, "  %s %s: %s [%s]\n", d.Severity, d.Field, d.Message, d.Code)
	}
}
