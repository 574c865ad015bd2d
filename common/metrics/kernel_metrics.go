package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
	"github.com/gin-gonic/contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/scusemua/notebook-kernel/common/jupyter/types"
	"github.com/scusemua/notebook-kernel/common/utils"
)

const (
	Namespace = "notebook_kernel"
)

var (
	ErrPrometheusManagerAlreadyRunning = errors.New("KernelPrometheusManager is already running")
	ErrPrometheusManagerNotRunning     = errors.New("KernelPrometheusManager is not running")
)

// KernelPrometheusManager records the messaging metrics of a single kernel and serves them over HTTP
// at /metrics. Metrics are kept in a registry owned by the manager.
type KernelPrometheusManager struct {
	log logger.Logger

	registry   *prometheus.Registry
	handler    http.Handler
	engine     *gin.Engine
	httpServer *http.Server

	kernelId string
	port     int

	// MessagesReceivedCounterVec counts the requests that were received and decoded.
	//
	// Labels: "kernel_id", "socket_type" and "jupyter_message_type".
	MessagesReceivedCounterVec *prometheus.CounterVec

	// MessagesRejectedCounterVec counts the messages that were dropped because they could not be decoded.
	//
	// Labels: "kernel_id", "socket_type" and "reason".
	MessagesRejectedCounterVec *prometheus.CounterVec

	// MessagesSentCounterVec counts the messages sent on any socket, including iopub publications.
	MessagesSentCounterVec *prometheus.CounterVec

	// MessageSendLatencyMicrosecondsVec is the time taken to encode, sign and send a message.
	MessageSendLatencyMicrosecondsVec *prometheus.HistogramVec

	// HandlerLatencyMicrosecondsVec is the time from receiving a request to the kernel becoming idle again.
	HandlerLatencyMicrosecondsVec *prometheus.HistogramVec

	HeartbeatsCounterVec *prometheus.CounterVec

	mu      sync.Mutex
	serving bool
}

// NewKernelPrometheusManager creates a KernelPrometheusManager and registers its metrics.
// The HTTP server is started by Start; a port of 0 or less disables it.
func NewKernelPrometheusManager(port int, kernelId string) (*KernelPrometheusManager, error) {
	manager := &KernelPrometheusManager{
		registry: prometheus.NewRegistry(),
		kernelId: kernelId,
		port:     port,
	}
	config.InitLogger(&manager.log, manager)

	if err := manager.initializeMetrics(); err != nil {
		return nil, err
	}

	manager.handler = promhttp.HandlerFor(manager.registry, promhttp.HandlerOpts{})
	manager.engine = gin.New()
	manager.engine.Use(gin.Recovery())
	manager.engine.Use(cors.Default())
	manager.engine.GET("/metrics", manager.HandleRequest)

	return manager, nil
}

func (m *KernelPrometheusManager) String() string {
	return fmt.Sprintf("KernelPrometheusManager[Kernel=%s,Port=%d]", m.kernelId, m.port)
}

// KernelId returns the ID of the kernel whose metrics are recorded.
func (m *KernelPrometheusManager) KernelId() string {
	return m.kernelId
}

// Registry returns the registry holding the kernel's metrics.
func (m *KernelPrometheusManager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the HTTP handler serving the metrics.
func (m *KernelPrometheusManager) Handler() http.Handler {
	return m.engine
}

// HandleRequest handles Prometheus HTTP requests (when Prometheus is scraping for metrics).
func (m *KernelPrometheusManager) HandleRequest(c *gin.Context) {
	m.handler.ServeHTTP(c.Writer, c.Request)
}

// IsRunning returns true if the manager has been started and not yet stopped.
func (m *KernelPrometheusManager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.serving
}

// Start begins serving the metrics via HTTP.
func (m *KernelPrometheusManager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.serving {
		m.log.Warn("KernelPrometheusManager for kernel %s is already running.", m.kernelId)
		return ErrPrometheusManagerAlreadyRunning
	}
	m.serving = true

	if m.port <= 0 {
		m.log.Debug("Prometheus Port is set to %d. Not serving HTTP server.", m.port)
		return nil
	}

	address := fmt.Sprintf("0.0.0.0:%d", m.port)
	m.httpServer = &http.Server{
		Addr:    address,
		Handler: m.engine,
	}

	go func(server *http.Server) {
		m.log.Debug("Serving Prometheus metrics at %s", address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.log.Error(utils.RedStyle.Render("HTTP Server failed to listen on '%s'. Error: %v"), address, err)
		}
	}(m.httpServer)

	return nil
}

// Stop shuts down the HTTP server.
func (m *KernelPrometheusManager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.serving {
		m.log.Warn("KernelPrometheusManager for kernel %s is not running.", m.kernelId)
		return ErrPrometheusManagerNotRunning
	}
	m.serving = false

	if m.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	server := m.httpServer
	m.httpServer = nil
	if err := server.Shutdown(ctx); err != nil {
		m.log.Error("Failed to cleanly shutdown the HTTP server: %v", err)
		return err
	}

	return nil
}

func (m *KernelPrometheusManager) initializeMetrics() error {
	messageLabels := []string{"kernel_id", "socket_type", "jupyter_message_type"}

	m.MessagesReceivedCounterVec = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "messages_received_total",
		Help:      "The number of requests received and decoded on the shell and control sockets.",
	}, messageLabels)

	m.MessagesRejectedCounterVec = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "messages_rejected_total",
		Help:      "The number of messages dropped because of framing, signature or JSON errors.",
	}, []string{"kernel_id", "socket_type", "reason"})

	m.MessagesSentCounterVec = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "messages_sent_total",
		Help:      "The number of messages sent, including iopub publications.",
	}, messageLabels)

	m.MessageSendLatencyMicrosecondsVec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "message_send_latency_microseconds",
		Help:      "The latency, in microseconds, to encode, sign and send a ZMQ message.",
		Buckets:   []float64{100, 250, 500, 1000, 2500, 5000, 10e3, 25e3, 50e3, 100e3, 250e3, 500e3, 1e6},
	}, messageLabels)

	m.HandlerLatencyMicrosecondsVec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "handler_latency_microseconds",
		Help:      "The time, in microseconds, from receiving a request to the kernel becoming idle again.",
		Buckets:   []float64{500, 5000, 10e3, 25e3, 50e3, 100e3, 250e3, 500e3, 1e6, 5e6, 30e6, 60e6, 300e6},
	}, messageLabels)

	m.HeartbeatsCounterVec = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "heartbeats_total",
		Help:      "The number of heartbeats echoed.",
	}, []string{"kernel_id"})

	collectors := map[string]prometheus.Collector{
		"Messages Received":       m.MessagesReceivedCounterVec,
		"Messages Rejected":       m.MessagesRejectedCounterVec,
		"Messages Sent":           m.MessagesSentCounterVec,
		"Message Send Latency":    m.MessageSendLatencyMicrosecondsVec,
		"Handler Latency":         m.HandlerLatencyMicrosecondsVec,
		"Heartbeats Echoed Total": m.HeartbeatsCounterVec,
	}
	for name, collector := range collectors {
		if err := m.registry.Register(collector); err != nil {
			m.log.Error("Failed to register '%s' metric because: %v", name, err)
			return err
		}
	}

	return nil
}

////////////////////////////////////////////////
// Messaging Metrics interface implementation //
////////////////////////////////////////////////

// ReceivedMessage records that a request was received and decoded.
func (m *KernelPrometheusManager) ReceivedMessage(socketType types.MessageType, jupyterMessageType string) {
	m.MessagesReceivedCounterVec.With(m.messageLabels(socketType, jupyterMessageType)).Inc()
}

// RejectedMessage records that a message was dropped.
func (m *KernelPrometheusManager) RejectedMessage(socketType types.MessageType, reason string) {
	m.MessagesRejectedCounterVec.
		With(prometheus.Labels{
			"kernel_id":   m.kernelId,
			"socket_type": socketType.String(),
			"reason":      reason,
		}).Inc()
}

// SentMessage records that a message was sent and how long sending it took.
func (m *KernelPrometheusManager) SentMessage(socketType types.MessageType, jupyterMessageType string, sendLatency time.Duration) {
	labels := m.messageLabels(socketType, jupyterMessageType)
	m.MessagesSentCounterVec.With(labels).Inc()
	m.MessageSendLatencyMicrosecondsVec.With(labels).Observe(float64(sendLatency.Microseconds()))
}

// AddHandlerLatencyObservation records how long a request kept the kernel busy.
func (m *KernelPrometheusManager) AddHandlerLatencyObservation(latency time.Duration, socketType types.MessageType, jupyterMessageType string) {
	m.HandlerLatencyMicrosecondsVec.
		With(m.messageLabels(socketType, jupyterMessageType)).
		Observe(float64(latency.Microseconds()))
}

// HeartbeatEchoed records that a heartbeat was echoed.
func (m *KernelPrometheusManager) HeartbeatEchoed() {
	m.HeartbeatsCounterVec.With(prometheus.Labels{"kernel_id": m.kernelId}).Inc()
}

func (m *KernelPrometheusManager) messageLabels(socketType types.MessageType, jupyterMessageType string) prometheus.Labels {
	return prometheus.Labels{
		"kernel_id":            m.kernelId,
		"socket_type":          socketType.String(),
		"jupyter_message_type": jupyterMessageType,
	}
}
