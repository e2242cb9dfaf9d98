// Package tools provides the built-in tools and the tool-call guards used by the agent loop.
package tools

import "fmt"

// ToolErrorType classifies tool failures.
type ToolErrorType string

const (
	ErrInvalidParams    ToolErrorType = "INVALID_PARAMS"
	ErrExecutionFailed  ToolErrorType = "EXECUTION_FAILED"
	ErrPermissionDenied ToolErrorType = "PERMISSION_DENIED"
	ErrTimeout          ToolErrorType = "TIMEOUT"
)

// ToolError provides structured error information.
type ToolError struct {
	Type    ToolErrorType `json:"type"`
	Message string        `json:"message"`
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// NewToolError creates a new ToolError.
func NewToolError(errType ToolErrorType, message string) *ToolError {
	return &ToolError{Type: errType, Message: message}
}

// NewToolErrorf creates a new ToolError with formatted message.
func NewToolErrorf(errType ToolErrorType, format string, args ...interface{}) *ToolError {
	return &ToolError{Type: errType, Message: fmt.Sprintf(format, args...)}
}

// Built-in tool names.
const (
	CalcToolName = "calc"
	TimeToolName = "current_time"
)

// BuiltinToolNames lists every tool this package can construct.
var BuiltinToolNames = []string{CalcToolName, TimeToolName}

// ValidToolName reports whether name is a built-in tool.
func ValidToolName(name string) bool {
	for _, n := range BuiltinToolNames {
		if n == name {
			return true
		}
	}
	return false
}
