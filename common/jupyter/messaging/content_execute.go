package messaging

import (
	"encoding/json"
	"errors"
)

// MessageExecuteRequest asks the kernel to execute code.
//
// store_history, allow_stdin and stop_on_error default to true when omitted.
type MessageExecuteRequest struct {
	Code            string                 `json:"code"`
	Silent          bool                   `json:"silent"`
	StoreHistory    bool                   `json:"store_history"`
	UserExpressions map[string]interface{} `json:"user_expressions"`
	AllowStdin      bool                   `json:"allow_stdin"`
	StopOnError     bool                   `json:"stop_on_error"`
}

func (m *MessageExecuteRequest) UnmarshalJSON(data []byte) error {
	type executeRequest MessageExecuteRequest

	req := executeRequest{StoreHistory: true, AllowStdin: true, StopOnError: true}
	if err := json.Unmarshal(data, &req); err != nil {
		return err
	}

	if req.UserExpressions == nil {
		req.UserExpressions = map[string]interface{}{}
	}

	*m = MessageExecuteRequest(req)
	return nil
}

// EffectiveStoreHistory returns whether the execution is recorded. A silent request is never recorded.
func (m *MessageExecuteRequest) EffectiveStoreHistory() bool {
	return m.StoreHistory && !m.Silent
}

func (m *MessageExecuteRequest) Validate() error { return nil }

func (m *MessageExecuteRequest) fields() contentFields {
	return contentFields{
		required: []string{"code", "silent"},
		optional: []string{"store_history", "user_expressions", "allow_stdin", "stop_on_error"},
	}
}

// ErrorInfo describes an error raised while handling a request.
type ErrorInfo struct {
	ErrName   string   `json:"ename"`
	ErrValue  string   `json:"evalue"`
	Traceback []string `json:"traceback"`
}

// MessageExecuteReply is the reply to an execute_request. ErrorInfo is set only when Status is "error".
type MessageExecuteReply struct {
	Status          string                 `json:"status"`
	ExecutionCount  int                    `json:"execution_count"`
	Payload         []interface{}          `json:"payload"`
	UserExpressions map[string]interface{} `json:"user_expressions"`
	*ErrorInfo
}

func (m *MessageExecuteReply) Validate() error {
	if err := oneOf("status", m.Status, MessageStatusOK, MessageStatusError, MessageStatusAborted); err != nil {
		return err
	}

	if m.Status == MessageStatusError && m.ErrorInfo == nil {
		return errors.New("error reply is missing ename and evalue")
	}

	if m.ExecutionCount < 0 {
		return errors.New("execution_count must not be negative")
	}

	return nil
}

func (m *MessageExecuteReply) fields() contentFields {
	return contentFields{
		required: []string{"status", "execution_count"},
		optional: []string{"payload", "user_expressions", "ename", "evalue", "traceback"},
	}
}

// MessageExecuteInput re-broadcasts the code being executed on iopub.
type MessageExecuteInput struct {
	Code           string `json:"code"`
	ExecutionCount int    `json:"execution_count"`
}

func (m *MessageExecuteInput) Validate() error { return nil }

func (m *MessageExecuteInput) fields() contentFields {
	return contentFields{required: []string{"code", "execution_count"}}
}

// MessageExecuteResult publishes the result of an execution, keyed by MIME type.
type MessageExecuteResult struct {
	ExecutionCount int                    `json:"execution_count"`
	Data           map[string]interface{} `json:"data"`
	Metadata       map[string]interface{} `json:"metadata"`
}

func (m *MessageExecuteResult) Validate() error { return nil }

func (m *MessageExecuteResult) fields() contentFields {
	return contentFields{required: []string{"execution_count", "data", "metadata"}}
}

const (
	StreamStdout = "stdout"
	StreamStderr = "stderr"
)

// MessageStream publishes text written to stdout or stderr.
type MessageStream struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

func (m *MessageStream) Validate() error {
	return oneOf("name", m.Name, StreamStdout, StreamStderr)
}

func (m *MessageStream) fields() contentFields {
	return contentFields{required: []string{"name", "text"}}
}
