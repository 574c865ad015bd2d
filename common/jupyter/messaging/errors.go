package messaging

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidJSON            = errors.New("invalid json")
	ErrInvalidContent         = errors.New("content does not match message type")
	ErrInvalidHeader          = errors.New("invalid message header")
	ErrUnsupportedMessageType = errors.New("unsupported message type")
)

// DecodeError is returned when one of the JSON frames of a message cannot be decoded.
// Slot names the offending frame: "header", "parent_header", "metadata" or "content".
type DecodeError struct {
	Slot string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %s: %v", e.Slot, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
