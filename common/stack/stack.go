package stack

import "errors"

var (
	ErrStackEmpty = errors.New("stack is empty")
)

// Stack is a LIFO stack backed by a slice. The zero value is an empty stack.
type Stack[T any] struct {
	elements []T
}

// Push adds an element to the top of the stack.
func (s *Stack[T]) Push(element T) {
	s.elements = append(s.elements, element)
}

// Pop removes and returns the top element of the stack, or ErrStackEmpty.
func (s *Stack[T]) Pop() (T, error) {
	if len(s.elements) == 0 {
		var zero T
		return zero, ErrStackEmpty
	}
	topIndex := len(s.elements) - 1
	element := s.elements[topIndex]
	s.elements = s.elements[:topIndex]
	return element, nil
}

// Peek returns the top element of the stack without removing it, or ErrStackEmpty.
func (s *Stack[T]) Peek() (T, error) {
	if len(s.elements) == 0 {
		var zero T
		return zero, ErrStackEmpty
	}
	return s.elements[len(s.elements)-1], nil
}

// Values returns a copy of the elements, bottom of the stack first.
func (s *Stack[T]) Values() []T {
	values := make([]T, len(s.elements))
	copy(values, s.elements)
	return values
}

func (s *Stack[T]) IsEmpty() bool {
	return len(s.elements) == 0
}

func (s *Stack[T]) Size() int {
	return len(s.elements)
}
