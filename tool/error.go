package tool

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// ErrorCodeServerNotFound is returned when a server is not configured.
	ErrorCodeServerNotFound = "SERVER_NOT_FOUND"
	// ErrorCodeToolNotFound is returned when no resolved tool has the requested name.
	ErrorCodeToolNotFound = "TOOL_NOT_FOUND"
	// ErrorCodeValidationFailed is returned when a customization or overlay is invalid.
	ErrorCodeValidationFailed = "VALIDATION_FAILED"
	// ErrorCodeDiscoveryFailed is returned when live descriptions cannot be fetched.
	ErrorCodeDiscoveryFailed = "DISCOVERY_FAILED"
	// ErrorCodeStoreFailure is returned when the store cannot be read or written.
	ErrorCodeStoreFailure = "STORE_FAILURE"
	// ErrorCodeNoEditOpen is returned when an edit action needs an open edit view.
	ErrorCodeNoEditOpen = "NO_EDIT_OPEN"
)

// CustomizationError carries a machine-readable code across the CLI and
// daemon boundaries.
type CustomizationError struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details []Diagnostic `json:"details,omitempty"`
	Cause   error        `json:"-"`
}

func (e *CustomizationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *CustomizationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func newError(code string, cause error, format string, args ...any) *CustomizationError {
	message := strings.TrimSpace(fmt.Sprintf(format, args...))
	if message == "" && cause != nil {
		message = cause.Error()
	}
	return &CustomizationError{Code: code, Message: message, Cause: cause}
}

// ServerNotFound reports an unknown server name.
func ServerNotFound(server string) error {
	return newError(ErrorCodeServerNotFound, nil, "server %q is not configured", server)
}

// ToolNotFound reports an unknown tool display name.
func ToolNotFound(server, tool string) error {
	return newError(ErrorCodeToolNotFound, nil, "server %q has no tool %q", server, tool)
}

// NoEditOpen reports an edit action without an open edit view.
func NoEditOpen() error {
	return newError(ErrorCodeNoEditOpen, nil, "no tool is being edited")
}

func validationError(message string, diags []Diagnostic) error {
	err := newError(ErrorCodeValidationFailed, nil, "%s", message)
	err.Details = diags
	return err
}

func storeError(cause error, operation string) error {
	return newError(ErrorCodeStoreFailure, cause, "%s: %v", operation, cause)
}

func discoveryError(cause error, server string) error {
	return newError(ErrorCodeDiscoveryFailed, cause, "discover %s: %v", server, cause)
}

// ErrorCode returns the code of the first CustomizationError in err's chain,
// or "" when there is none.
func ErrorCode(err error) string {
	var custom *CustomizationError
	if errors.As(err, &custom) && custom != nil {
		return custom.Code
	}
	return ""
}
