package messaging

import "errors"

var errEmptyCommID = errors.New("comm_id must not be empty")

type MessageCommOpen struct {
	CommID     string                 `json:"comm_id"`
	TargetName string                 `json:"target_name"`
	Data       map[string]interface{} `json:"data"`
}

func (m *MessageCommOpen) Validate() error {
	if m.CommID == "" {
		return errEmptyCommID
	}
	return nil
}

func (m *MessageCommOpen) fields() contentFields {
	return contentFields{required: []string{"comm_id", "target_name"}, optional: []string{"data", "target_module"}}
}

type MessageCommMsg struct {
	CommID string                 `json:"comm_id"`
	Data   map[string]interface{} `json:"data"`
}

func (m *MessageCommMsg) Validate() error {
	if m.CommID == "" {
		return errEmptyCommID
	}
	return nil
}

func (m *MessageCommMsg) fields() contentFields {
	return contentFields{required: []string{"comm_id", "data"}}
}

// MessageCommClose closes a comm. Data is omitted when empty so that the content stays
// structurally distinct from a comm_msg.
type MessageCommClose struct {
	CommID string                 `json:"comm_id"`
	Data   map[string]interface{} `json:"data,omitempty"`
}

func (m *MessageCommClose) Validate() error {
	if m.CommID == "" {
		return errEmptyCommID
	}
	return nil
}

func (m *MessageCommClose) fields() contentFields {
	return contentFields{required: []string{"comm_id"}, optional: []string{"data"}}
}
