package types

import (
	"fmt"
	"regexp"

	"github.com/go-zeromq/zmq4"
)

var (
	// IOTopicRecognizer matches the topic frame of messages published on the iopub socket.
	IOTopicRecognizer = regexp.MustCompile(`^kernel\.([0-9a-f-]+)\.([^.]+)$`)
)

const (
	HBMessage MessageType = iota
	ControlMessage
	ShellMessage
	StdinMessage
	IOMessage
)

// MessageType identifies one of the five Jupyter channels.
type MessageType int

func (t MessageType) String() string {
	if t < HBMessage || t > IOMessage {
		return fmt.Sprintf("unknown(%d)", int(t))
	}
	return [...]string{"heartbeat", "control", "shell", "stdin", "iopub"}[t]
}

// IOTopic returns the topic frame used when publishing a message of the given type on the iopub socket.
func IOTopic(session string, msgType string) []byte {
	return []byte(fmt.Sprintf("kernel.%s.%s", session, msgType))
}

type Socket struct {
	zmq4.Socket
	Port int
	Type MessageType
	Name string // Mostly used for debugging.
}

func NewSocket(socket zmq4.Socket, port int, typ MessageType, name string) *Socket {
	return &Socket{Socket: socket, Port: port, Type: typ, Name: name}
}

func (s *Socket) String() string {
	return fmt.Sprintf("%s(%d)", s.Type, s.Port)
}

// JupyterSocket groups the five channel sockets of a kernel.
type JupyterSocket struct {
	HB      *Socket
	Control *Socket
	Shell   *Socket
	Stdin   *Socket
	IO      *Socket
	All     [5]*Socket
}

// NewJupyterSocket indexes the given sockets by channel.
func NewJupyterSocket(hb, control, shell, stdin, io *Socket) *JupyterSocket {
	sockets := &JupyterSocket{HB: hb, Control: control, Shell: shell, Stdin: stdin, IO: io}
	sockets.All = [5]*Socket{hb, control, shell, stdin, io}
	return sockets
}

// Socket returns the socket of the specified channel.
func (s *JupyterSocket) Socket(typ MessageType) *Socket {
	if typ < HBMessage || typ > IOMessage {
		return nil
	}
	return s.All[typ]
}
