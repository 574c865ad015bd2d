package messaging

const (
	MessageKernelStatusIdle     = "idle"
	MessageKernelStatusBusy     = "busy"
	MessageKernelStatusStarting = "starting"
)

type MessageKernelStatus struct {
	Status string `json:"execution_state"`
}

func (m *MessageKernelStatus) Validate() error {
	return oneOf("execution_state", m.Status, MessageKernelStatusStarting, MessageKernelStatusBusy, MessageKernelStatusIdle)
}

func (m *MessageKernelStatus) fields() contentFields {
	return contentFields{required: []string{"execution_state"}}
}

// MessageError replaces the content of a reply when handling the request failed.
type MessageError struct {
	Status    string   `json:"status"`
	ErrName   string   `json:"ename"`
	ErrValue  string   `json:"evalue"`
	Traceback []string `json:"traceback"`
}

// NewMessageError creates error content with an empty traceback.
func NewMessageError(name string, value string) *MessageError {
	return &MessageError{Status: MessageStatusError, ErrName: name, ErrValue: value, Traceback: []string{}}
}

func (m *MessageError) Validate() error {
	return oneOf("status", m.Status, MessageStatusError)
}

func (m *MessageError) fields() contentFields {
	return contentFields{required: []string{"status", "ename", "evalue", "traceback"}}
}

func (m *MessageError) Error() string {
	return m.ErrName + ": " + m.ErrValue
}
