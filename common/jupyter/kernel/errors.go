package kernel

import "errors"

var (
	ErrMissingHeader           = errors.New("message has no header")
	ErrUnexpectedMessageType   = errors.New("message type is not accepted by the kernel")
	ErrInvalidStatusTransition = errors.New("invalid kernel status transition")
	ErrAlreadyStarted          = errors.New("kernel status has already been published")
	ErrUnknownComm             = errors.New("unknown comm")
)
