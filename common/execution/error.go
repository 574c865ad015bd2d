package execution

import (
	"errors"
	"fmt"
)

const (
	ErrNameSyntax         = "SyntaxError"
	ErrNameStackUnderflow = "StackUnderflowError"
	ErrNameZeroDivision   = "ZeroDivisionError"
	ErrNameCancelled      = "KeyboardInterrupt"
	ErrNameExecution      = "ExecutionError"
)

var (
	ErrExecutionCancelled = errors.New("execution was cancelled")
)

// Error is returned by an Executor when the executed code fails.
// It carries what is reported to the frontend: an error name, a value and a traceback.
type Error struct {
	Name      string
	Value     string
	Traceback []string
}

func NewError(name string, format string, args ...interface{}) *Error {
	value := fmt.Sprintf(format, args...)
	return &Error{Name: name, Value: value, Traceback: []string{name + ": " + value}}
}

func (e *Error) Error() string {
	return e.Name + ": " + e.Value
}

// AsError converts any error returned by an Executor into an *Error.
// Errors that are not already an *Error are reported as ExecutionError.
func AsError(err error) *Error {
	var execErr *Error
	if errors.As(err, &execErr) {
		return execErr
	}

	if errors.Is(err, ErrExecutionCancelled) {
		return NewError(ErrNameCancelled, "%v", err)
	}

	return NewError(ErrNameExecution, "%v", err)
}
