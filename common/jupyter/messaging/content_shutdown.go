package messaging

type MessageShutdownRequest struct {
	Restart bool `json:"restart"`
}

func (m *MessageShutdownRequest) Validate() error { return nil }

func (m *MessageShutdownRequest) fields() contentFields {
	return contentFields{required: []string{"restart"}}
}

type MessageShutdownReply struct {
	Status  string `json:"status"`
	Restart bool   `json:"restart"`
}

func (m *MessageShutdownReply) Validate() error {
	return oneOf("status", m.Status, MessageStatusOK)
}

func (m *MessageShutdownReply) fields() contentFields {
	return contentFields{required: []string{"status", "restart"}}
}
