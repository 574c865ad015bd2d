package kernel

import (
	"fmt"
	"sync"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
	"github.com/scusemua/notebook-kernel/common/jupyter/messaging"
	"github.com/scusemua/notebook-kernel/common/jupyter/types"
	"github.com/scusemua/notebook-kernel/common/utils"
)

// Sender delivers a message on one of the kernel's channels.
type Sender interface {
	SendMessage(typ types.MessageType, msg *messaging.JupyterMessage) error
}

// StatusTracker publishes the kernel's execution state on iopub.
//
// The state starts as "starting", moves to "idle" once, and then alternates between "busy" and "idle"
// around every request. Every transition is published before it takes effect.
type StatusTracker struct {
	session *Session
	sender  Sender
	state   string

	mu  sync.Mutex
	log logger.Logger
}

func NewStatusTracker(session *Session, sender Sender) *StatusTracker {
	tracker := &StatusTracker{
		session: session,
		sender:  sender,
		state:   messaging.MessageKernelStatusStarting,
	}
	config.InitLogger(&tracker.log, tracker)
	return tracker
}

// State returns the last published execution state.
func (t *StatusTracker) State() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.state
}

// Start publishes "starting" followed by "idle". Neither has a parent header.
// It may only be called once.
func (t *StatusTracker) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != messaging.MessageKernelStatusStarting {
		return ErrAlreadyStarted
	}

	if err := t.publish(nil, messaging.MessageKernelStatusStarting); err != nil {
		return err
	}

	return t.transition(nil, messaging.MessageKernelStatusStarting, messaging.MessageKernelStatusIdle)
}

// Busy publishes "busy" with the given message as parent. The kernel must be idle.
func (t *StatusTracker) Busy(parent *messaging.JupyterMessage) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.transition(parent, messaging.MessageKernelStatusIdle, messaging.MessageKernelStatusBusy)
}

// Idle publishes "idle" with the given message as parent. The kernel must be busy.
func (t *StatusTracker) Idle(parent *messaging.JupyterMessage) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.transition(parent, messaging.MessageKernelStatusBusy, messaging.MessageKernelStatusIdle)
}

func (t *StatusTracker) transition(parent *messaging.JupyterMessage, from string, to string) error {
	if t.state != from {
		return fmt.Errorf("%w: cannot become %s while %s", ErrInvalidStatusTransition, to, t.state)
	}

	if err := t.publish(parent, to); err != nil {
		return err
	}

	t.log.Debug("Kernel status: %s -> %s.", utils.RenderExecutionState(t.state), utils.RenderExecutionState(to))
	t.state = to
	return nil
}

func (t *StatusTracker) publish(parent *messaging.JupyterMessage, state string) error {
	msg := messaging.NewPublication(t.session.ID(), parent, messaging.MessageTypeStatus,
		&messaging.MessageKernelStatus{Status: state})
	return t.sender.SendMessage(types.IOMessage, msg)
}
