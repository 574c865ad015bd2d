package types

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
)

const (
	TransportTCP = "tcp"
)

// ConnectionInfo stores the contents of the kernel connection file written by the Jupyter frontend.
type ConnectionInfo struct {
	IP              string `json:"ip" mapstructure:"ip" name:"ip" description:"The IP address the kernel binds to."`
	Transport       string `json:"transport" mapstructure:"transport" name:"transport" description:"The transport for all channels."`
	SignatureScheme string `json:"signature_scheme" mapstructure:"signature_scheme" name:"signature-scheme" description:"The signature scheme for all messages."`
	Key             string `json:"key" mapstructure:"key" name:"key" description:"The signing key. Empty disables signing."`
	KernelName      string `json:"kernel_name,omitempty" mapstructure:"kernel_name" name:"kernel-name" description:"The name of the kernel spec."`
	ShellPort       int    `json:"shell_port" mapstructure:"shell_port" name:"shell-port" description:"The port for shell messages."`
	IOPubPort       int    `json:"iopub_port" mapstructure:"iopub_port" name:"iopub-port" description:"The port for iopub messages."`
	StdinPort       int    `json:"stdin_port" mapstructure:"stdin_port" name:"stdin-port" description:"The port for stdin messages."`
	ControlPort     int    `json:"control_port" mapstructure:"control_port" name:"control-port" description:"The port for control messages."`
	HBPort          int    `json:"hb_port" mapstructure:"hb_port" name:"hb-port" description:"The port for heartbeat messages."`
}

// LoadConnectionInfo reads and validates the connection file at the specified path.
func LoadConnectionInfo(path string) (*ConnectionInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return ParseConnectionInfo(data)
}

// ParseConnectionInfo decodes the JSON contents of a connection file.
// Ports are decoded weakly, so both 5555 and "5555" are accepted.
func ParseConnectionInfo(data []byte) (*ConnectionInfo, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConnectionInfo, err)
	}

	info := &ConnectionInfo{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           info,
	})
	if err != nil {
		return nil, err
	}

	if err = decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConnectionInfo, err)
	}

	if err = info.Validate(); err != nil {
		return nil, err
	}

	return info, nil
}

// Validate checks that the transport and signature scheme are supported.
func (info *ConnectionInfo) Validate() error {
	if info.Transport == "" {
		info.Transport = TransportTCP
	}

	if info.Transport != TransportTCP {
		return fmt.Errorf("%w: transport \"%s\" is %w", ErrInvalidConnectionInfo, info.Transport, ErrNotSupported)
	}

	if info.IP == "" {
		return fmt.Errorf("%w: missing ip", ErrInvalidConnectionInfo)
	}

	return ValidateSignatureScheme(info.SignatureScheme, []byte(info.Key))
}

// Endpoint returns the ZMQ endpoint for the given port.
func (info *ConnectionInfo) Endpoint(port int) string {
	return fmt.Sprintf("%s://%s:%d", info.Transport, info.IP, port)
}

// Port returns the configured port of the channel of the specified type.
func (info *ConnectionInfo) Port(typ MessageType) int {
	switch typ {
	case HBMessage:
		return info.HBPort
	case ControlMessage:
		return info.ControlPort
	case ShellMessage:
		return info.ShellPort
	case StdinMessage:
		return info.StdinPort
	case IOMessage:
		return info.IOPubPort
	}
	return 0
}

// SetPort records the port a channel is actually bound to.
func (info *ConnectionInfo) SetPort(typ MessageType, port int) {
	switch typ {
	case HBMessage:
		info.HBPort = port
	case ControlMessage:
		info.ControlPort = port
	case ShellMessage:
		info.ShellPort = port
	case StdinMessage:
		info.StdinPort = port
	case IOMessage:
		info.IOPubPort = port
	}
}

func (info *ConnectionInfo) String() string {
	return fmt.Sprintf("ConnectionInfo[IP=%s, Transport=%s, SignatureScheme=%s, Shell=%d, IOPub=%d, Stdin=%d, Control=%d, HB=%d]",
		info.IP, info.Transport, info.SignatureScheme, info.ShellPort, info.IOPubPort, info.StdinPort, info.ControlPort, info.HBPort)
}
