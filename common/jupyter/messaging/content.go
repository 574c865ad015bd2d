package messaging

import (
	"encoding/json"
	"fmt"
	"sort"
)

const (
	MessageStatusOK      = "ok"
	MessageStatusError   = "error"
	MessageStatusAborted = "aborted"
)

// MessageContent is the content of a Jupyter message.
//
// The set of variants is closed. Each variant is identified by the JSON keys it requires,
// and no two variants require the same set of keys.
type MessageContent interface {
	// Validate checks the values of the fields once the required keys are known to be present.
	Validate() error

	fields() contentFields
}

type contentFields struct {
	required []string
	optional []string
}

func (f contentFields) known(key string) bool {
	for _, k := range f.required {
		if k == key {
			return true
		}
	}
	for _, k := range f.optional {
		if k == key {
			return true
		}
	}
	return false
}

func (f contentFields) missing(obj map[string]json.RawMessage) []string {
	var missing []string
	for _, key := range f.required {
		if _, ok := obj[key]; !ok {
			missing = append(missing, key)
		}
	}
	return missing
}

// contentFactories maps each supported message type to its content variant.
var contentFactories = map[JupyterMessageType]func() MessageContent{
	MessageTypeKernelInfoRequest: func() MessageContent { return &MessageKernelInfoRequest{} },
	MessageTypeKernelInfoReply:   func() MessageContent { return &MessageKernelInfoReply{} },
	MessageTypeExecuteRequest:    func() MessageContent { return &MessageExecuteRequest{} },
	MessageTypeExecuteReply:      func() MessageContent { return &MessageExecuteReply{} },
	MessageTypeExecuteInput:      func() MessageContent { return &MessageExecuteInput{} },
	MessageTypeExecuteResult:     func() MessageContent { return &MessageExecuteResult{} },
	MessageTypeStream:            func() MessageContent { return &MessageStream{} },
	MessageTypeStatus:            func() MessageContent { return &MessageKernelStatus{} },
	MessageTypeIsCompleteRequest: func() MessageContent { return &MessageIsCompleteRequest{} },
	MessageTypeIsCompleteReply:   func() MessageContent { return &MessageIsCompleteReply{} },
	MessageTypeHistoryRequest:    func() MessageContent { return &MessageHistoryRequest{} },
	MessageTypeHistoryReply:      func() MessageContent { return &MessageHistoryReply{} },
	MessageTypeCommOpen:          func() MessageContent { return &MessageCommOpen{} },
	MessageTypeCommMsg:           func() MessageContent { return &MessageCommMsg{} },
	MessageTypeCommClose:         func() MessageContent { return &MessageCommClose{} },
	MessageTypeShutdownRequest:   func() MessageContent { return &MessageShutdownRequest{} },
	MessageTypeShutdownReply:     func() MessageContent { return &MessageShutdownReply{} },
}

// sniffCandidates lists the variants considered by SniffContent, in order of preference on ties.
var sniffCandidates = []func() MessageContent{
	func() MessageContent { return &MessageKernelInfoReply{} },
	func() MessageContent { return &MessageExecuteRequest{} },
	func() MessageContent { return &MessageExecuteReply{} },
	func() MessageContent { return &MessageError{} },
	func() MessageContent { return &MessageExecuteResult{} },
	func() MessageContent { return &MessageExecuteInput{} },
	func() MessageContent { return &MessageHistoryRequest{} },
	func() MessageContent { return &MessageHistoryReply{} },
	func() MessageContent { return &MessageCommOpen{} },
	func() MessageContent { return &MessageCommMsg{} },
	func() MessageContent { return &MessageCommClose{} },
	func() MessageContent { return &MessageStream{} },
	func() MessageContent { return &MessageKernelStatus{} },
	func() MessageContent { return &MessageShutdownReply{} },
	func() MessageContent { return &MessageShutdownRequest{} },
	func() MessageContent { return &MessageIsCompleteRequest{} },
	func() MessageContent { return &MessageIsCompleteReply{} },
}

// IsSupportedMessageType returns true if content of the given message type can be decoded.
func IsSupportedMessageType(msgType JupyterMessageType) bool {
	_, ok := contentFactories[msgType]
	return ok
}

// DecodeContent decodes raw content into the variant selected by msgType.
//
// The content is first decoded as a generic JSON object so that missing required keys are reported
// before the variant is populated. Replies other than execute_reply whose status is "error" decode
// as *MessageError.
func DecodeContent(msgType JupyterMessageType, raw []byte) (MessageContent, error) {
	factory, ok := contentFactories[msgType]
	if !ok {
		return nil, fmt.Errorf("%w: \"%s\"", ErrUnsupportedMessageType, msgType)
	}

	obj, err := decodeObject(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}

	content := factory()
	if msgType.IsReply() && msgType != MessageTypeExecuteReply && hasErrorStatus(obj) {
		content = &MessageError{}
	}

	if err = decodeVariant(content, obj, raw); err != nil {
		return nil, fmt.Errorf("%s: %w", msgType, err)
	}

	return content, nil
}

// SniffContent decodes raw content without knowing its message type.
//
// The variant is chosen by structure alone: among the variants whose required keys are all present,
// the one recognizing the most keys of the object wins, then the one requiring the most keys.
// The empty object is a kernel_info_request. This is intended for introspection and tests; messages
// received by the kernel are always decoded by DecodeContent.
func SniffContent(raw []byte) (MessageContent, error) {
	obj, err := decodeObject(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}

	if len(obj) == 0 {
		return &MessageKernelInfoRequest{}, nil
	}

	type candidate struct {
		content MessageContent
		known   int
		rank    int
	}

	candidates := make([]candidate, 0, len(sniffCandidates))
	for rank, factory := range sniffCandidates {
		content := factory()
		fields := content.fields()
		if len(fields.missing(obj)) > 0 {
			continue
		}

		known := 0
		for key := range obj {
			if fields.known(key) {
				known++
			}
		}
		candidates = append(candidates, candidate{content: content, known: known, rank: rank})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.known != b.known {
			return a.known > b.known
		}
		if len(a.content.fields().required) != len(b.content.fields().required) {
			return len(a.content.fields().required) > len(b.content.fields().required)
		}
		return a.rank < b.rank
	})

	for _, c := range candidates {
		if err = decodeVariant(c.content, obj, raw); err == nil {
			return c.content, nil
		}
	}

	return nil, fmt.Errorf("%w: no content variant matches %s", ErrInvalidContent, raw)
}

func decodeVariant(content MessageContent, obj map[string]json.RawMessage, raw []byte) error {
	if missing := content.fields().missing(obj); len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields %v", ErrInvalidContent, missing)
	}

	if err := json.Unmarshal(raw, content); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidContent, err)
	}

	if err := content.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidContent, err)
	}

	return nil
}

func hasErrorStatus(obj map[string]json.RawMessage) bool {
	raw, ok := obj["status"]
	if !ok {
		return false
	}

	var status string
	return json.Unmarshal(raw, &status) == nil && status == MessageStatusError
}

func oneOf(field string, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %v, got \"%s\"", field, allowed, value)
}
