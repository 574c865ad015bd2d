package execution

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
	"github.com/scusemua/notebook-kernel/common/stack"
	"github.com/shopspring/decimal"
)

const (
	StackLanguageName      = "stack"
	StackLanguageVersion   = "0.1.0"
	StackLanguageExtension = ".stack"
)

// StackExecutor evaluates a small stack language.
//
// Lines run top to bottom and the words of each line run right to left, so "+ 1 2" pushes 2,
// pushes 1 and adds them. Binary operators take the top of the stack as their first operand:
// "- 1 3" is 3 - 1. Supported words are decimal numbers, the operators + - * / and
// "." (duplicate), ":" (swap) and ";" (drop). Text after "#" is a comment.
//
// Every execution starts from an empty stack. The output is the final stack, bottom first,
// one value per line.
type StackExecutor struct {
	log logger.Logger
}

func NewStackExecutor() *StackExecutor {
	executor := &StackExecutor{}
	config.InitLogger(&executor.log, executor)
	return executor
}

func (e *StackExecutor) Execute(ctx context.Context, code string) (string, error) {
	values := &stack.Stack[decimal.Decimal]{}

	for lineNumber, line := range strings.Split(code, "\n") {
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = line[:idx]
		}

		words := strings.Fields(line)
		for i := len(words) - 1; i >= 0; i-- {
			if ctx.Err() != nil {
				return "", ErrExecutionCancelled
			}

			if err := e.eval(values, words[i]); err != nil {
				err.Traceback = append(err.Traceback, "  at line "+strconv.Itoa(lineNumber+1)+": "+strings.TrimSpace(line))
				return "", err
			}
		}
	}

	output := make([]string, 0, values.Size())
	for _, value := range values.Values() {
		output = append(output, value.String())
	}

	e.log.Debug("Evaluated %d line(s) into %d value(s).", strings.Count(code, "\n")+1, len(output))
	return strings.Join(output, "\n"), nil
}

func (e *StackExecutor) eval(values *stack.Stack[decimal.Decimal], word string) *Error {
	switch word {
	case "+", "-", "*", "/":
		first, second, err := pop2(values, word)
		if err != nil {
			return err
		}

		var result decimal.Decimal
		switch word {
		case "+":
			result = second.Add(first)
		case "-":
			result = second.Sub(first)
		case "*":
			result = second.Mul(first)
		case "/":
			if first.IsZero() {
				return NewError(ErrNameZeroDivision, "division by zero")
			}
			result = second.Div(first)
		}
		values.Push(result)
	case ".":
		top, err := values.Peek()
		if err != nil {
			return NewError(ErrNameStackUnderflow, "\"%s\" needs 1 value, but the stack is empty", word)
		}
		values.Push(top)
	case ":":
		first, second, err := pop2(values, word)
		if err != nil {
			return err
		}
		values.Push(first)
		values.Push(second)
	case ";":
		if _, err := values.Pop(); err != nil {
			return NewError(ErrNameStackUnderflow, "\"%s\" needs 1 value, but the stack is empty", word)
		}
	default:
		value, err := decimal.NewFromString(word)
		if err != nil {
			return NewError(ErrNameSyntax, "unknown word \"%s\"", word)
		}
		values.Push(value)
	}

	return nil
}

func pop2(values *stack.Stack[decimal.Decimal], word string) (decimal.Decimal, decimal.Decimal, *Error) {
	if values.Size() < 2 {
		return decimal.Zero, decimal.Zero, NewError(ErrNameStackUnderflow,
			"\"%s\" needs 2 values, but the stack has %d", word, values.Size())
	}

	first, err1 := values.Pop()
	second, err2 := values.Pop()
	if err := errors.Join(err1, err2); err != nil {
		return decimal.Zero, decimal.Zero, NewError(ErrNameStackUnderflow, "%v", err)
	}

	return first, second, nil
}
