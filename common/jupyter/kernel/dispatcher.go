package kernel

import (
	"context"
	"errors"
	"fmt"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
	"github.com/scusemua/notebook-kernel/common/execution"
	"github.com/scusemua/notebook-kernel/common/jupyter/messaging"
	"github.com/scusemua/notebook-kernel/common/jupyter/types"
	"github.com/scusemua/notebook-kernel/common/utils"
)

// KernelInfo is the static description of the kernel returned in kernel_info_reply.
type KernelInfo struct {
	Implementation        string
	ImplementationVersion string
	Banner                string
	LanguageInfo          messaging.LanguageInfo
	HelpLinks             []messaging.HelpLink
}

// MessageHandler handles one decoded request received on the shell or control channel.
type MessageHandler func(ctx context.Context, typ types.MessageType, msg *messaging.JupyterMessage) error

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithShutdownHandler sets the function called after a shutdown_request has been answered.
func WithShutdownHandler(onShutdown func(restart bool)) DispatcherOption {
	return func(d *Dispatcher) {
		d.onShutdown = onShutdown
	}
}

// WithCommTarget registers a comm target at creation.
func WithCommTarget(name string, handler CommHandler) DispatcherOption {
	return func(d *Dispatcher) {
		d.comms.RegisterTarget(name, handler)
	}
}

// Dispatcher routes requests received on the shell and control channels to their handlers.
//
// Dispatch must be called from a single goroutine. Every request is bracketed by a busy and an idle
// status publication carrying the request's header as parent, whatever the outcome of its handler.
type Dispatcher struct {
	session  *Session
	status   *StatusTracker
	sender   Sender
	executor execution.Executor
	info     KernelInfo
	comms    *CommManager

	handlers   map[messaging.JupyterMessageType]MessageHandler
	onShutdown func(restart bool)

	lastExecution *execution.Execution

	log logger.Logger
}

func NewDispatcher(session *Session, sender Sender, executor execution.Executor, info KernelInfo, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		session:  session,
		status:   NewStatusTracker(session, sender),
		sender:   sender,
		executor: executor,
		info:     info,
		comms:    NewCommManager(),
	}
	config.InitLogger(&d.log, d)

	d.handlers = map[messaging.JupyterMessageType]MessageHandler{
		messaging.MessageTypeKernelInfoRequest: d.handleKernelInfoRequest,
		messaging.MessageTypeExecuteRequest:    d.handleExecuteRequest,
		messaging.MessageTypeIsCompleteRequest: d.handleIsCompleteRequest,
		messaging.MessageTypeHistoryRequest:    d.handleHistoryRequest,
		messaging.MessageTypeCommOpen:          d.handleCommOpen,
		messaging.MessageTypeCommMsg:           d.handleCommMsg,
		messaging.MessageTypeCommClose:         d.handleCommClose,
		messaging.MessageTypeShutdownRequest:   d.handleShutdownRequest,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Start publishes the initial starting and idle statuses.
func (d *Dispatcher) Start() error {
	return d.status.Start()
}

func (d *Dispatcher) Session() *Session {
	return d.session
}

func (d *Dispatcher) Status() *StatusTracker {
	return d.status
}

func (d *Dispatcher) Comms() *CommManager {
	return d.comms
}

// LastExecution returns the most recent execute_request handled, or nil.
func (d *Dispatcher) LastExecution() *execution.Execution {
	return d.lastExecution
}

// Dispatch handles a message received on the shell or control channel.
//
// decodeErr is the error returned by the codec along with msg, if any. Messages without a header are
// rejected without changing the status. Otherwise the kernel is busy while the handler runs, and the
// returned error joins the handler's error with any failure to publish the status.
func (d *Dispatcher) Dispatch(ctx context.Context, typ types.MessageType, msg *messaging.JupyterMessage, decodeErr error) error {
	if !msg.Header.IsPresent() {
		return ErrMissingHeader
	}

	if err := d.status.Busy(msg); err != nil {
		return err
	}

	handlerErr := d.handle(ctx, typ, msg, decodeErr)
	if handlerErr != nil {
		d.log.Warn(utils.OrangeStyle.Render("Failed to handle %s \"%s\" request %s: %v"),
			typ.String(), msg.JupyterMessageType(), msg.JupyterMessageId(), handlerErr)
	}

	return errors.Join(handlerErr, d.status.Idle(msg))
}

func (d *Dispatcher) handle(ctx context.Context, typ types.MessageType, msg *messaging.JupyterMessage, decodeErr error) error {
	msgType := msg.JupyterMessageType()

	if decodeErr != nil {
		return decodeErr
	}

	handler, ok := d.handlers[msgType]
	if !ok {
		if messaging.IsSupportedMessageType(msgType) {
			return fmt.Errorf("%w: \"%s\" on %s", ErrUnexpectedMessageType, msgType, typ.String())
		}
		return fmt.Errorf("%w: \"%s\"", messaging.ErrUnsupportedMessageType, msgType)
	}

	d.log.Debug("Handling %s \"%s\" request %s.", typ.String(), msgType, msg.JupyterMessageId())
	return handler(ctx, typ, msg)
}

func (d *Dispatcher) reply(typ types.MessageType, request *messaging.JupyterMessage, msgType messaging.JupyterMessageType, content messaging.MessageContent) error {
	return d.sender.SendMessage(typ, request.CreateReply(d.session.ID(), msgType, content))
}

func (d *Dispatcher) publish(parent *messaging.JupyterMessage, msgType messaging.JupyterMessageType, content messaging.MessageContent) error {
	return d.sender.SendMessage(types.IOMessage, messaging.NewPublication(d.session.ID(), parent, msgType, content))
}
