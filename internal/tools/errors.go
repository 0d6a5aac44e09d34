package tools

import (
	"errors"
	"fmt"

	"github.com/alucardeht/futures-mcp/internal/futures"
)

type ToolError struct {
	Code    int
	Message string
}

func (e *ToolError) Error() string {
	return e.Message
}

func NewToolNotFoundError(name string) *ToolError {
	return &ToolError{
		Code:    -32601,
		Message: fmt.Sprintf("Tool not found: %s", name),
	}
}

func NewInvalidArgumentsError(name string, err error) *ToolError {
	return &ToolError{
		Code:    -32602,
		Message: fmt.Sprintf("Invalid arguments for %s: %v", name, err),
	}
}

// WrapExecutionError translates domain failures into JSON-RPC error
// codes: missing entities and bad inputs are the caller's fault,
// everything else is an internal error.
func WrapExecutionError(name string, err error) *ToolError {
	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return toolErr
	}

	var (
		notFound  *futures.NotFoundError
		malformed *futures.MalformedChangeError
		badConfig *futures.ValidationConfigError
		badKnow   *futures.InvalidKnowledgeError
		badAssume *futures.InvalidAssumptionError
		badGoal   *futures.InvalidGoalError
	)
	switch {
	case errors.As(err, &notFound),
		errors.As(err, &malformed),
		errors.As(err, &badConfig),
		errors.As(err, &badKnow),
		errors.As(err, &badAssume),
		errors.As(err, &badGoal):
		return &ToolError{Code: -32602, Message: err.Error()}
	}

	return &ToolError{
		Code:    -32603,
		Message: fmt.Sprintf("Error executing tool %s: %v", name, err),
	}
}
