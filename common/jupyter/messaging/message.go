package messaging

import (
	"encoding/json"
	"fmt"

	"github.com/scusemua/notebook-kernel/common/jupyter/types"
)

// JupyterMessage is a decoded Jupyter message.
//
// Messages are not modified once built. Replies and publications are derived from the triggering
// message with CreateReply and NewPublication, which copy what they need from it.
type JupyterMessage struct {
	// Identities are the routing frames preceding the delimiter, kept verbatim.
	Identities [][]byte

	// Signature is the signature frame as received. It is recomputed when the message is encoded.
	Signature string

	Header       EmptyObjectOr[MessageHeader]
	ParentHeader EmptyObjectOr[MessageHeader]
	Metadata     map[string]interface{}

	// Content is nil when the content is absent or its message type is not supported.
	Content MessageContent

	// RawContent is the content frame as received.
	RawContent json.RawMessage

	Buffers [][]byte
}

// JupyterMessageType returns the msg_type of the header, or the empty string if the header is absent.
func (m *JupyterMessage) JupyterMessageType() JupyterMessageType {
	header, ok := m.Header.Get()
	if !ok {
		return ""
	}
	return header.MsgType
}

// JupyterMessageId returns the msg_id of the header, or the empty string if the header is absent.
func (m *JupyterMessage) JupyterMessageId() string {
	header, ok := m.Header.Get()
	if !ok {
		return ""
	}
	return header.MsgID
}

// JupyterSession returns the session of the header, or the empty string if the header is absent.
func (m *JupyterMessage) JupyterSession() string {
	header, ok := m.Header.Get()
	if !ok {
		return ""
	}
	return header.Session
}

// CreateReply derives the reply to m. The reply is routed back through m's identities and
// carries m's header as its parent header.
func (m *JupyterMessage) CreateReply(session string, msgType JupyterMessageType, content MessageContent) *JupyterMessage {
	identities := make([][]byte, len(m.Identities))
	copy(identities, m.Identities)

	return &JupyterMessage{
		Identities:   identities,
		Header:       Present(NewMessageHeader(msgType, session, m.username())),
		ParentHeader: m.Header,
		Metadata:     map[string]interface{}{},
		Content:      content,
	}
}

func (m *JupyterMessage) username() string {
	header, ok := m.Header.Get()
	if !ok {
		return ""
	}
	return header.Username
}

// NewPublication creates a message to be published on the iopub socket.
//
// The topic frame is derived from the session and message type. The parent header is the header
// of parent, or absent if parent is nil.
func NewPublication(session string, parent *JupyterMessage, msgType JupyterMessageType, content MessageContent) *JupyterMessage {
	msg := &JupyterMessage{
		Identities:   [][]byte{types.IOTopic(session, msgType.String())},
		ParentHeader: Absent[MessageHeader](),
		Metadata:     map[string]interface{}{},
		Content:      content,
	}

	var username string
	if parent != nil {
		msg.ParentHeader = parent.Header
		username = parent.username()
	}

	msg.Header = Present(NewMessageHeader(msgType, session, username))
	return msg
}

func (m *JupyterMessage) String() string {
	content := string(m.RawContent)
	if m.Content != nil {
		if encoded, err := json.Marshal(m.Content); err == nil {
			content = string(encoded)
		}
	}

	return fmt.Sprintf("JupyterMessage[Type=%s, MsgId=%s, Parent=%s, Content=%s, Buffers=%d]",
		m.JupyterMessageType(), m.JupyterMessageId(), m.ParentHeader.String(), content, len(m.Buffers))
}
