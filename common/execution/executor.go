package execution

import "context"

//go:generate mockgen -source=executor.go -destination=mock_execution/mock_executor.go

// Executor runs a unit of code and returns its textual output.
//
// Failures of the code itself should be returned as *Error so that they are reported with a
// meaningful name. Executors are called from a single goroutine, one request at a time.
type Executor interface {
	Execute(ctx context.Context, code string) (string, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, code string) (string, error)

func (f ExecutorFunc) Execute(ctx context.Context, code string) (string, error) {
	return f(ctx, code)
}
