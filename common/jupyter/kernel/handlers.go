package kernel

import (
	"context"
	"errors"
	"fmt"

	"github.com/scusemua/notebook-kernel/common/execution"
	"github.com/scusemua/notebook-kernel/common/jupyter/messaging"
	"github.com/scusemua/notebook-kernel/common/jupyter/types"
)

func (d *Dispatcher) handleKernelInfoRequest(_ context.Context, typ types.MessageType, msg *messaging.JupyterMessage) error {
	helpLinks := d.info.HelpLinks
	if helpLinks == nil {
		helpLinks = []messaging.HelpLink{}
	}

	return d.reply(typ, msg, messaging.MessageTypeKernelInfoReply, &messaging.MessageKernelInfoReply{
		Status:                messaging.MessageStatusOK,
		ProtocolVersion:       messaging.ProtocolVersion,
		Implementation:        d.info.Implementation,
		ImplementationVersion: d.info.ImplementationVersion,
		LanguageInfo:          d.info.LanguageInfo,
		Banner:                d.info.Banner,
		Debugger:              false,
		HelpLinks:             helpLinks,
	})
}

// handleExecuteRequest runs the code of an execute_request.
//
// Unless the request is silent, the code is re-broadcast as execute_input before it runs and the
// output is published as execute_result, or as stderr stream text if execution fails.
// Failures of the code are reported in the execute_reply and are not returned as errors.
func (d *Dispatcher) handleExecuteRequest(ctx context.Context, typ types.MessageType, msg *messaging.JupyterMessage) error {
	req, ok := msg.Content.(*messaging.MessageExecuteRequest)
	if !ok {
		return fmt.Errorf("%w: execute_request content is %T", messaging.ErrInvalidContent, msg.Content)
	}

	executionCount := d.session.NextExecutionCount(req.EffectiveStoreHistory())
	exec := execution.NewExecution(msg.JupyterMessageId(), req.Code, executionCount, req.Silent)
	d.lastExecution = exec

	if !req.Silent {
		err := d.publish(msg, messaging.MessageTypeExecuteInput, &messaging.MessageExecuteInput{
			Code:           req.Code,
			ExecutionCount: executionCount,
		})
		if err != nil {
			return err
		}
	}

	exec.State = execution.Running
	output, err := d.executor.Execute(ctx, req.Code)
	if err != nil {
		return d.replyExecutionError(typ, msg, exec, execution.AsError(err))
	}
	exec.Complete(output)

	if !req.Silent && output != "" {
		err = d.publish(msg, messaging.MessageTypeExecuteResult, &messaging.MessageExecuteResult{
			ExecutionCount: executionCount,
			Data:           map[string]interface{}{"text/plain": output},
			Metadata:       map[string]interface{}{},
		})
		if err != nil {
			return err
		}
	}

	return d.reply(typ, msg, messaging.MessageTypeExecuteReply, &messaging.MessageExecuteReply{
		Status:          messaging.MessageStatusOK,
		ExecutionCount:  executionCount,
		Payload:         []interface{}{},
		UserExpressions: map[string]interface{}{},
	})
}

func (d *Dispatcher) replyExecutionError(typ types.MessageType, msg *messaging.JupyterMessage, exec *execution.Execution, execErr *execution.Error) error {
	exec.Fail(execErr)
	d.log.Debug("Execution %d of request %s failed: %v", exec.ExecutionCount, exec.MsgID, execErr)

	if !exec.Silent {
		err := d.publish(msg, messaging.MessageTypeStream, &messaging.MessageStream{
			Name: messaging.StreamStderr,
			Text: execErr.Error() + "\n",
		})
		if err != nil {
			return err
		}
	}

	traceback := execErr.Traceback
	if traceback == nil {
		traceback = []string{}
	}

	return d.reply(typ, msg, messaging.MessageTypeExecuteReply, &messaging.MessageExecuteReply{
		Status:          messaging.MessageStatusError,
		ExecutionCount:  exec.ExecutionCount,
		Payload:         []interface{}{},
		UserExpressions: map[string]interface{}{},
		ErrorInfo: &messaging.ErrorInfo{
			ErrName:   execErr.Name,
			ErrValue:  execErr.Value,
			Traceback: traceback,
		},
	})
}

// handleIsCompleteRequest reports every piece of code as complete.
func (d *Dispatcher) handleIsCompleteRequest(_ context.Context, typ types.MessageType, msg *messaging.JupyterMessage) error {
	return d.reply(typ, msg, messaging.MessageTypeIsCompleteReply,
		messaging.NewIsCompleteReply(messaging.IsCompleteStatusComplete, ""))
}

// handleHistoryRequest replies with an empty history, as executions are not persisted.
func (d *Dispatcher) handleHistoryRequest(_ context.Context, typ types.MessageType, msg *messaging.JupyterMessage) error {
	return d.reply(typ, msg, messaging.MessageTypeHistoryReply, &messaging.MessageHistoryReply{
		Status:  messaging.MessageStatusOK,
		History: []interface{}{},
	})
}

// handleCommOpen accepts comms on registered targets. A comm on any other target is closed
// immediately by publishing a comm_close with the same comm id.
func (d *Dispatcher) handleCommOpen(_ context.Context, _ types.MessageType, msg *messaging.JupyterMessage) error {
	req, ok := msg.Content.(*messaging.MessageCommOpen)
	if !ok {
		return fmt.Errorf("%w: comm_open content is %T", messaging.ErrInvalidContent, msg.Content)
	}

	accepted, err := d.comms.Open(req.CommID, req.TargetName, req.Data)
	if accepted {
		d.log.Debug("Opened comm %s on target \"%s\".", req.CommID, req.TargetName)
		return err
	}

	d.log.Debug("Closing comm %s: unknown target \"%s\".", req.CommID, req.TargetName)
	return d.publish(msg, messaging.MessageTypeCommClose, &messaging.MessageCommClose{CommID: req.CommID})
}

func (d *Dispatcher) handleCommMsg(_ context.Context, _ types.MessageType, msg *messaging.JupyterMessage) error {
	req, ok := msg.Content.(*messaging.MessageCommMsg)
	if !ok {
		return fmt.Errorf("%w: comm_msg content is %T", messaging.ErrInvalidContent, msg.Content)
	}

	if err := d.comms.Message(req.CommID, req.Data); err != nil {
		return fmt.Errorf("comm %s: %w", req.CommID, err)
	}
	return nil
}

func (d *Dispatcher) handleCommClose(_ context.Context, _ types.MessageType, msg *messaging.JupyterMessage) error {
	req, ok := msg.Content.(*messaging.MessageCommClose)
	if !ok {
		return fmt.Errorf("%w: comm_close content is %T", messaging.ErrInvalidContent, msg.Content)
	}

	if !d.comms.Close(req.CommID) {
		d.log.Debug("Ignoring comm_close for comm %s, which is not open.", req.CommID)
	}
	return nil
}

// handleShutdownRequest answers on the request's channel and on iopub, then invokes the shutdown handler.
func (d *Dispatcher) handleShutdownRequest(_ context.Context, typ types.MessageType, msg *messaging.JupyterMessage) error {
	req, ok := msg.Content.(*messaging.MessageShutdownRequest)
	if !ok {
		return fmt.Errorf("%w: shutdown_request content is %T", messaging.ErrInvalidContent, msg.Content)
	}

	content := &messaging.MessageShutdownReply{Status: messaging.MessageStatusOK, Restart: req.Restart}
	err := errors.Join(
		d.reply(typ, msg, messaging.MessageTypeShutdownReply, content),
		d.publish(msg, messaging.MessageTypeShutdownReply, content),
	)

	d.log.Info("Received shutdown_request (restart=%v) on %s.", req.Restart, typ.String())
	if d.onShutdown != nil {
		d.onShutdown(req.Restart)
	}

	return err
}
