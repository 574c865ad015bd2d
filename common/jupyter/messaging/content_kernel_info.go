package messaging

import "errors"

// MessageKernelInfoRequest is the content of a kernel_info_request. It has no fields.
type MessageKernelInfoRequest struct{}

func (m *MessageKernelInfoRequest) Validate() error { return nil }

func (m *MessageKernelInfoRequest) fields() contentFields { return contentFields{} }

// LanguageInfo describes the language implemented by the kernel.
type LanguageInfo struct {
	Name              string `json:"name"`
	Version           string `json:"version"`
	MimeType          string `json:"mimetype"`
	FileExtension     string `json:"file_extension"`
	PygmentsLexer     string `json:"pygments_lexer,omitempty"`
	CodemirrorMode    string `json:"codemirror_mode,omitempty"`
	NbconvertExporter string `json:"nbconvert_exporter,omitempty"`
}

type HelpLink struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// MessageKernelInfoReply describes the kernel to the frontend.
type MessageKernelInfoReply struct {
	Status                string       `json:"status"`
	ProtocolVersion       string       `json:"protocol_version"`
	Implementation        string       `json:"implementation"`
	ImplementationVersion string       `json:"implementation_version"`
	LanguageInfo          LanguageInfo `json:"language_info"`
	Banner                string       `json:"banner"`
	Debugger              bool         `json:"debugger"`
	HelpLinks             []HelpLink   `json:"help_links"`
}

func (m *MessageKernelInfoReply) Validate() error {
	if m.LanguageInfo.Name == "" {
		return errors.New("language_info.name must not be empty")
	}
	return oneOf("status", m.Status, MessageStatusOK)
}

func (m *MessageKernelInfoReply) fields() contentFields {
	return contentFields{
		required: []string{"status", "protocol_version", "implementation", "implementation_version", "language_info", "banner"},
		optional: []string{"debugger", "help_links"},
	}
}
