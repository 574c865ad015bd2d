package types

import "errors"

var (
	ErrNotSupported                = errors.New("not supported")
	ErrMalformedFrame              = errors.New("malformed jupyter frames")
	ErrNoDelimiter                 = errors.New("no <IDS|MSG> delimiter frame")
	ErrMultipleDelimiters          = errors.New("more than one <IDS|MSG> delimiter frame")
	ErrNotSupportedSignatureScheme = errors.New("not supported signature scheme")
	ErrInvalidJupyterSignature     = errors.New("invalid jupyter signature")
	ErrInvalidConnectionInfo       = errors.New("invalid connection info")
	ErrSocketNotAvailable          = errors.New("socket not available")
	ErrSocketSendFailed            = errors.New("failed to send message on socket")
	ErrSocketRecvFailed            = errors.New("failed to receive message on socket")
)
