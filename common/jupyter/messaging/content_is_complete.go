package messaging

import "errors"

const (
	IsCompleteStatusComplete   = "complete"
	IsCompleteStatusIncomplete = "incomplete"
	IsCompleteStatusInvalid    = "invalid"
	IsCompleteStatusUnknown    = "unknown"
)

type MessageIsCompleteRequest struct {
	Code string `json:"code"`
}

func (m *MessageIsCompleteRequest) Validate() error { return nil }

func (m *MessageIsCompleteRequest) fields() contentFields {
	return contentFields{required: []string{"code"}}
}

// MessageIsCompleteReply reports whether code is ready to execute.
// Indent is present if and only if Status is "incomplete".
type MessageIsCompleteReply struct {
	Status string  `json:"status"`
	Indent *string `json:"indent,omitempty"`
}

// NewIsCompleteReply creates a reply, setting the indent only for incomplete code.
func NewIsCompleteReply(status string, indent string) *MessageIsCompleteReply {
	reply := &MessageIsCompleteReply{Status: status}
	if status == IsCompleteStatusIncomplete {
		reply.Indent = &indent
	}
	return reply
}

func (m *MessageIsCompleteReply) Validate() error {
	err := oneOf("status", m.Status, IsCompleteStatusComplete, IsCompleteStatusIncomplete, IsCompleteStatusInvalid, IsCompleteStatusUnknown)
	if err != nil {
		return err
	}

	if (m.Status == IsCompleteStatusIncomplete) != (m.Indent != nil) {
		return errors.New("indent must be present exactly when status is incomplete")
	}

	return nil
}

func (m *MessageIsCompleteReply) fields() contentFields {
	return contentFields{required: []string{"status"}, optional: []string{"indent"}}
}
