package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
	"github.com/go-zeromq/zmq4"
	"github.com/scusemua/notebook-kernel/common/execution"
	"github.com/scusemua/notebook-kernel/common/jupyter/kernel"
	"github.com/scusemua/notebook-kernel/common/jupyter/messaging"
	"github.com/scusemua/notebook-kernel/common/jupyter/types"
	"github.com/scusemua/notebook-kernel/common/utils"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// KernelServer owns the five sockets of a kernel and serves them.
//
// Requests received on the shell and control sockets are decoded and dispatched one at a time by a
// single loop, so that the execution state published on iopub always matches the request being handled.
// The heartbeat socket is served by its own loop, which keeps answering while a request is executing.
type KernelServer struct {
	Meta      *types.ConnectionInfo
	Ctx       context.Context
	CancelCtx func()
	Sockets   *types.JupyterSocket
	Log       logger.Logger
	Name      string

	// Metrics, if set, is notified of every message received, rejected and sent.
	Metrics MessagingMetricsProvider

	// DispatcherOptions are applied to the dispatcher when the server is created.
	DispatcherOptions []kernel.DispatcherOption

	codec      *messaging.Codec
	dispatcher *kernel.Dispatcher

	// rejectLogLimiter limits the warnings logged for dropped messages. Every drop is still counted in Metrics.
	rejectLogLimiter *rate.Limiter

	sendMu    sync.Mutex
	closeOnce sync.Once
}

// New creates a kernel server for the given connection info. The sockets are not bound until Listen is called.
//
// init, if non-nil, is called before the dispatcher is created and may set Name, Metrics and DispatcherOptions.
func New(ctx context.Context, info *types.ConnectionInfo, executor execution.Executor, kernelInfo kernel.KernelInfo, init func(server *KernelServer)) (*KernelServer, error) {
	codec, err := messaging.NewCodec(info.SignatureScheme, info.Key)
	if err != nil {
		return nil, err
	}

	server := &KernelServer{
		Meta:             info,
		codec:            codec,
		Name:             "KernelServer",
		rejectLogLimiter: rate.NewLimiter(rate.Every(time.Millisecond*100), 10),
	}
	server.Ctx, server.CancelCtx = context.WithCancel(ctx)

	if init != nil {
		init(server)
	}
	config.InitLogger(&server.Log, server.Name+" ")

	server.Sockets = types.NewJupyterSocket(
		types.NewSocket(zmq4.NewRep(server.Ctx), info.HBPort, types.HBMessage, server.Name+"-HB"),
		types.NewSocket(zmq4.NewRouter(server.Ctx), info.ControlPort, types.ControlMessage, server.Name+"-Control"),
		types.NewSocket(zmq4.NewRouter(server.Ctx), info.ShellPort, types.ShellMessage, server.Name+"-Shell"),
		types.NewSocket(zmq4.NewRouter(server.Ctx), info.StdinPort, types.StdinMessage, server.Name+"-Stdin"),
		types.NewSocket(zmq4.NewPub(server.Ctx), info.IOPubPort, types.IOMessage, server.Name+"-IOPub"),
	)

	opts := append([]kernel.DispatcherOption{kernel.WithShutdownHandler(server.onShutdown)}, server.DispatcherOptions...)
	server.dispatcher = kernel.NewDispatcher(kernel.NewSession(), server, executor, kernelInfo, opts...)

	if !codec.SigningEnabled() {
		server.Log.Warn(utils.OrangeStyle.Render("Message signing is disabled: the connection file has an empty key."))
	}

	return server, nil
}

// Dispatcher returns the dispatcher handling shell and control requests.
func (s *KernelServer) Dispatcher() *kernel.Dispatcher {
	return s.dispatcher
}

// Session returns the kernel session.
func (s *KernelServer) Session() *kernel.Session {
	return s.dispatcher.Session()
}

func (s *KernelServer) String() string {
	return fmt.Sprintf("%s[session=%s]", s.Name, s.Session().ID())
}

// Listen binds all five sockets. Sockets configured with port 0 are bound to a free port, which is
// recorded in both the socket and the connection info.
func (s *KernelServer) Listen() error {
	if s.Meta.Transport != types.TransportTCP {
		s.Log.Error("Unsupported transport specified: \"%s\". Only \"tcp\" is supported.", s.Meta.Transport)
		return types.ErrNotSupported
	}

	for _, socket := range s.Sockets.All {
		if err := socket.Listen(s.Meta.Endpoint(socket.Port)); err != nil {
			return fmt.Errorf("failed to bind %s socket to port %d: %w", socket.Type.String(), socket.Port, err)
		}

		// Update the port number if it is 0.
		if addr, ok := socket.Addr().(*net.TCPAddr); ok {
			socket.Port = addr.Port
			s.Meta.SetPort(socket.Type, addr.Port)
		}

		s.Log.Debug("%s socket listening on port %d.", socket.Type.String(), socket.Port)
	}

	return nil
}

// Serve publishes the initial status and serves the sockets until the server is closed, a
// shutdown_request is handled, or a socket of the request loop fails.
//
// The sockets are closed when Serve returns.
func (s *KernelServer) Serve() error {
	defer s.Close()

	group, ctx := errgroup.WithContext(s.Ctx)
	go func() {
		<-ctx.Done()
		s.closeSockets()
	}()

	if err := s.dispatcher.Start(); err != nil {
		s.CancelCtx()
		return err
	}

	s.Log.Info(utils.GreenStyle.Render("Kernel %s is serving: %s"), s.Session().ID(), s.Meta.String())

	group.Go(func() error {
		return s.serveHeartbeat(ctx)
	})
	group.Go(func() error {
		return s.serveRequests(ctx)
	})

	return group.Wait()
}

// Close stops serving and closes the sockets.
func (s *KernelServer) Close() error {
	s.CancelCtx()
	s.closeSockets()
	return nil
}

func (s *KernelServer) closeSockets() {
	s.closeOnce.Do(func() {
		for _, socket := range s.Sockets.All {
			if err := socket.Close(); err != nil {
				s.Log.Debug("Error while closing %s socket: %v", socket.Type.String(), err)
			}
		}
	})
}

func (s *KernelServer) onShutdown(restart bool) {
	s.Log.Info("Shutting down (restart=%v).", restart)
	s.CancelCtx()
}

// SendMessage encodes, signs and sends a message on the socket of the given channel.
func (s *KernelServer) SendMessage(typ types.MessageType, msg *messaging.JupyterMessage) error {
	start := time.Now()

	socket := s.Sockets.Socket(typ)
	if socket == nil {
		return fmt.Errorf("%w: %s", types.ErrSocketNotAvailable, typ.String())
	}

	frames, err := s.codec.Encode(msg)
	if err != nil {
		return err
	}

	s.sendMu.Lock()
	err = socket.Send(zmq4.NewMsgFrom(frames...))
	s.sendMu.Unlock()

	if err != nil {
		return fmt.Errorf("%w: %s \"%s\": %w", types.ErrSocketSendFailed, typ.String(), msg.JupyterMessageType(), err)
	}

	if s.Metrics != nil {
		s.Metrics.SentMessage(typ, msg.JupyterMessageType().String(), time.Since(start))
	}
	return nil
}

// poll forwards messages, or the error that stopped it, from socket to chMsg.
func (s *KernelServer) poll(ctx context.Context, socket *types.Socket, chMsg chan<- interface{}) {
	defer close(chMsg)

	var msg interface{}
	for {
		got, err := socket.Recv()
		if err == nil {
			msg = &got
		} else {
			msg = err
		}

		select {
		case chMsg <- msg:
		case <-ctx.Done():
			return
		}

		// Quit on error.
		if err != nil {
			return
		}
	}
}

// serveRequests handles shell and control messages one at a time. Pending control messages are
// handled before pending shell messages.
func (s *KernelServer) serveRequests(ctx context.Context) error {
	shell := make(chan interface{})
	control := make(chan interface{})
	go s.poll(ctx, s.Sockets.Shell, shell)
	go s.poll(ctx, s.Sockets.Control, control)

	for {
		select {
		case v, ok := <-control:
			if err := s.handleIncoming(ctx, types.ControlMessage, v, ok); err != nil {
				return err
			}
			continue
		default:
		}

		select {
		case <-ctx.Done():
			return nil
		case v, ok := <-control:
			if err := s.handleIncoming(ctx, types.ControlMessage, v, ok); err != nil {
				return err
			}
		case v, ok := <-shell:
			if err := s.handleIncoming(ctx, types.ShellMessage, v, ok); err != nil {
				return err
			}
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

func (s *KernelServer) handleIncoming(ctx context.Context, typ types.MessageType, v interface{}, ok bool) error {
	if ctx.Err() != nil {
		return nil
	}

	switch v := v.(type) {
	case *zmq4.Msg:
		return s.handleMessage(ctx, typ, v)
	case error:
		s.Log.Error(utils.RedStyle.Render("Failed to receive on %s socket: %v"), typ.String(), v)
		return fmt.Errorf("%w: %s: %w", types.ErrSocketRecvFailed, typ.String(), v)
	}

	if !ok {
		return fmt.Errorf("%w: %s socket stopped", types.ErrSocketRecvFailed, typ.String())
	}
	return nil
}

// handleMessage decodes and dispatches one message. Only transport failures are returned;
// every other error is logged and the message is dropped.
func (s *KernelServer) handleMessage(ctx context.Context, typ types.MessageType, zmsg *zmq4.Msg) error {
	start := time.Now()

	msg, err := s.codec.Decode(zmsg.Frames)
	if msg == nil {
		if s.rejectLogLimiter.Allow() {
			s.Log.Warn(utils.OrangeStyle.Render("Dropping invalid %s message: %v"), typ.String(), err)
		}
		if s.Metrics != nil {
			s.Metrics.RejectedMessage(typ, rejectionReason(err))
		}
		return nil
	}

	msgType := msg.JupyterMessageType()
	if s.Metrics != nil {
		s.Metrics.ReceivedMessage(typ, msgType.String())
	}

	err = s.dispatcher.Dispatch(ctx, typ, msg, err)
	if s.Metrics != nil && msg.Header.IsPresent() {
		s.Metrics.AddHandlerLatencyObservation(time.Since(start), typ, msgType.String())
	}

	if errors.Is(err, types.ErrSocketSendFailed) {
		// The sockets are closed as soon as a shutdown_request cancels the context.
		if ctx.Err() != nil {
			s.Log.Debug("Send failed while shutting down: %v", err)
			return nil
		}

		s.Log.Error(utils.RedStyle.Render("Failed to respond to %s \"%s\" request %s: %v"),
			typ.String(), msgType, msg.JupyterMessageId(), err)
		return err
	} else if errors.Is(err, kernel.ErrMissingHeader) {
		s.Log.Warn("Dropping %s message without header.", typ.String())
	}

	return nil
}

// serveHeartbeat echoes every heartbeat payload back unchanged. A failure stops only this loop.
func (s *KernelServer) serveHeartbeat(ctx context.Context) error {
	for {
		msg, err := s.Sockets.HB.Recv()
		if err != nil {
			if ctx.Err() == nil {
				s.Log.Error(utils.RedStyle.Render("Heartbeat stopped: failed to receive: %v"), err)
			}
			return nil
		}

		if err = s.Sockets.HB.Send(msg); err != nil {
			if ctx.Err() == nil {
				s.Log.Error(utils.RedStyle.Render("Heartbeat stopped: failed to echo: %v"), err)
			}
			return nil
		}

		if s.Metrics != nil {
			s.Metrics.HeartbeatEchoed()
		}
	}
}

func rejectionReason(err error) string {
	var decodeErr *messaging.DecodeError
	switch {
	case errors.Is(err, types.ErrMalformedFrame):
		return "framing"
	case errors.Is(err, types.ErrInvalidJupyterSignature):
		return "signature"
	case errors.As(err, &decodeErr):
		return decodeErr.Slot
	}
	return "unknown"
}
