// ABOUTME: Error types returned by the tool registry.
// ABOUTME: Callers classify failures with errors.As to pick a JSON-RPC error code.

package registry

import (
	"errors"
	"fmt"
)

// ErrRegistrySealed indicates a registration attempt after initialization finished.
var ErrRegistrySealed = errors.New("registry sealed")

// ErrInvalidDefinition indicates a tool definition is missing required fields
// or carries a schema that does not compile.
var ErrInvalidDefinition = errors.New("invalid tool definition")

// DuplicateToolError is returned when a tool name is registered twice.
type DuplicateToolError struct {
	Name string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tool %q already registered", e.Name)
}

// ToolNotFoundError is returned when invoking a name that was never registered.
type ToolNotFoundError struct {
	Name string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("tool not found: %s", e.Name)
}

// InvalidArgumentsError is returned when call arguments do not conform to
// the tool's input contract. Detail carries the specific validation failure.
type InvalidArgumentsError struct {
	Tool   string
	Detail string
	Err    error
}

func (e *InvalidArgumentsError) Error() string {
	return fmt.Sprintf("invalid arguments for tool %s: %s", e.Tool, e.Detail)
}

func (e *InvalidArgumentsError) Unwrap() error {
	return e.Err
}

// ToolExecutionError wraps a failure raised by a tool's own callback.
type ToolExecutionError struct {
	Tool string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *ToolExecutionError) Unwrap() error {
	return e.Err
}
