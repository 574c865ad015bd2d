package messaging

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// ProtocolVersion is the version of the Jupyter messaging protocol implemented by the kernel.
	ProtocolVersion = "5.3"

	// ISOMicroseconds is the layout of the date field of message headers, always expressed in UTC.
	ISOMicroseconds = "2006-01-02T15:04:05.000000Z"

	MessageHeaderDefaultUsername = "kernel"
)

const (
	MessageTypeKernelInfoRequest JupyterMessageType = "kernel_info_request"
	MessageTypeKernelInfoReply   JupyterMessageType = "kernel_info_reply"
	MessageTypeExecuteRequest    JupyterMessageType = "execute_request"
	MessageTypeExecuteReply      JupyterMessageType = "execute_reply"
	MessageTypeExecuteInput      JupyterMessageType = "execute_input"
	MessageTypeExecuteResult     JupyterMessageType = "execute_result"
	MessageTypeStream            JupyterMessageType = "stream"
	MessageTypeStatus            JupyterMessageType = "status"
	MessageTypeIsCompleteRequest JupyterMessageType = "is_complete_request"
	MessageTypeIsCompleteReply   JupyterMessageType = "is_complete_reply"
	MessageTypeHistoryRequest    JupyterMessageType = "history_request"
	MessageTypeHistoryReply      JupyterMessageType = "history_reply"
	MessageTypeCommOpen          JupyterMessageType = "comm_open"
	MessageTypeCommMsg           JupyterMessageType = "comm_msg"
	MessageTypeCommClose         JupyterMessageType = "comm_close"
	MessageTypeShutdownRequest   JupyterMessageType = "shutdown_request"
	MessageTypeShutdownReply     JupyterMessageType = "shutdown_reply"
	MessageTypeInterruptRequest  JupyterMessageType = "interrupt_request"
)

type JupyterMessageType string

func (t JupyterMessageType) String() string {
	return string(t)
}

// IsReply returns true for the "{action}_reply" message types.
func (t JupyterMessageType) IsReply() bool {
	return strings.HasSuffix(string(t), "_reply")
}

// IsRequest returns true for the "{action}_request" message types.
func (t JupyterMessageType) IsRequest() bool {
	return strings.HasSuffix(string(t), "_request")
}

// GetBaseMessageType returns the base portion of the Jupyter message type.
//
// If the message type is "execute_request", then this returns "execute_" and true.
//
// If the message type is not of the form "{action}_request" or "{action}_reply", then this
// returns the empty string and false.
func (t JupyterMessageType) GetBaseMessageType() (string, bool) {
	if t.IsRequest() {
		return t.String()[0 : len(t.String())-7], true
	} else if t.IsReply() {
		return t.String()[0 : len(t.String())-5], true
	}

	return "", false
}

// MessageHeader is the header of a Jupyter message. The same shape is used for the parent header.
type MessageHeader struct {
	MsgID    string             `json:"msg_id"`
	Username string             `json:"username"`
	Session  string             `json:"session"`
	Date     string             `json:"date"`
	MsgType  JupyterMessageType `json:"msg_type"`
	Version  string             `json:"version"`
}

// NewMessageHeader creates a header with a fresh msg_id and the current time.
func NewMessageHeader(msgType JupyterMessageType, session string, username string) MessageHeader {
	if username == "" {
		username = MessageHeaderDefaultUsername
	}

	return MessageHeader{
		MsgID:    uuid.NewString(),
		Username: username,
		Session:  session,
		Date:     FormatDate(time.Now()),
		MsgType:  msgType,
		Version:  ProtocolVersion,
	}
}

// FormatDate renders t in the header date format, e.g. 2024-01-04T19:52:04.268331Z.
func FormatDate(t time.Time) string {
	return t.UTC().Format(ISOMicroseconds)
}

// Validate requires the fields that identify a message.
func (header *MessageHeader) Validate() error {
	if header.MsgID == "" {
		return fmt.Errorf("%w: missing msg_id", ErrInvalidHeader)
	}

	if header.MsgType == "" {
		return fmt.Errorf("%w: missing msg_type", ErrInvalidHeader)
	}

	return nil
}

func (header *MessageHeader) Clone() *MessageHeader {
	return &MessageHeader{
		MsgID:    header.MsgID,
		Username: header.Username,
		Session:  header.Session,
		Date:     header.Date,
		MsgType:  header.MsgType,
		Version:  header.Version,
	}
}

func (header *MessageHeader) String() string {
	m, err := json.Marshal(header)
	if err != nil {
		panic(err)
	}

	return string(m)
}
