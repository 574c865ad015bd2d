package messaging

const (
	HistAccessTail   = "tail"
	HistAccessRange  = "range"
	HistAccessSearch = "search"
)

type MessageHistoryRequest struct {
	Output         bool   `json:"output"`
	Raw            bool   `json:"raw"`
	HistAccessType string `json:"hist_access_type"`
	Session        *int   `json:"session,omitempty"`
	Start          *int   `json:"start,omitempty"`
	Stop           *int   `json:"stop,omitempty"`
	N              *int   `json:"n,omitempty"`
	Pattern        string `json:"pattern,omitempty"`
	Unique         bool   `json:"unique,omitempty"`
}

func (m *MessageHistoryRequest) Validate() error {
	return oneOf("hist_access_type", m.HistAccessType, HistAccessTail, HistAccessRange, HistAccessSearch)
}

func (m *MessageHistoryRequest) fields() contentFields {
	return contentFields{
		required: []string{"output", "raw", "hist_access_type"},
		optional: []string{"session", "start", "stop", "n", "pattern", "unique"},
	}
}

// MessageHistoryReply carries (session, line_number, input) entries. The kernel keeps no history,
// so it always replies with an empty list.
type MessageHistoryReply struct {
	Status  string        `json:"status"`
	History []interface{} `json:"history"`
}

func (m *MessageHistoryReply) Validate() error {
	return oneOf("status", m.Status, MessageStatusOK)
}

func (m *MessageHistoryReply) fields() contentFields {
	return contentFields{required: []string{"status", "history"}}
}
