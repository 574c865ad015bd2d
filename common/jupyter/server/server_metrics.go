package server

import (
	"time"

	"github.com/scusemua/notebook-kernel/common/jupyter/types"
)

// MessagingMetricsProvider records observations of the messages handled by a KernelServer.
//
// This interface allows the server to record metrics without knowing how, or whether, they are exported.
type MessagingMetricsProvider interface {
	// ReceivedMessage records that a message of the given type was received and decoded.
	ReceivedMessage(socketType types.MessageType, jupyterMessageType string)

	// RejectedMessage records that a message could not be decoded. Reason is a short label such as "signature".
	RejectedMessage(socketType types.MessageType, reason string)

	// SentMessage records that a message was sent, along with the time it took to encode and send it.
	SentMessage(socketType types.MessageType, jupyterMessageType string, sendLatency time.Duration)

	// AddHandlerLatencyObservation records the time between receiving a request and the kernel becoming idle again.
	AddHandlerLatencyObservation(latency time.Duration, socketType types.MessageType, jupyterMessageType string)

	// HeartbeatEchoed records that a heartbeat was echoed.
	HeartbeatEchoed()
}
