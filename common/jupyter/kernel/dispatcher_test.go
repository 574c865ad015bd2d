package kernel_test

import (
	"context"
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/scusemua/notebook-kernel/common/execution"
	"github.com/scusemua/notebook-kernel/common/execution/mock_execution"
	"github.com/scusemua/notebook-kernel/common/jupyter/kernel"
	"github.com/scusemua/notebook-kernel/common/jupyter/messaging"
	"github.com/scusemua/notebook-kernel/common/jupyter/types"
	"go.uber.org/mock/gomock"
)

var testKernelInfo = kernel.KernelInfo{
	Implementation:        "stack-kernel",
	ImplementationVersion: "0.1.0",
	Banner:                "stack",
	LanguageInfo: messaging.LanguageInfo{
		Name:          execution.StackLanguageName,
		Version:       execution.StackLanguageVersion,
		MimeType:      "text/plain",
		FileExtension: execution.StackLanguageExtension,
	},
}

var _ = Describe("Dispatcher", func() {
	var (
		ctx        context.Context
		sender     *recordingSender
		dispatcher *kernel.Dispatcher
		shutdowns  []bool
	)

	// expectBracketed checks that the recorded messages are busy, the expected messages, then idle,
	// and that all of them have the request as parent.
	expectBracketed := func(request *messaging.JupyterMessage, expected ...string) []sentMessage {
		summary := append([]string{"iopub:status:busy"}, expected...)
		summary = append(summary, "iopub:status:idle")
		Expect(sender.Summary()).To(Equal(summary))

		messages := sender.Messages()
		for _, m := range messages {
			Expect(m.Msg.ParentHeader.MustGet()).To(Equal(request.Header.MustGet()), "parent of %s", m)
			Expect(m.Msg.JupyterSession()).To(Equal(dispatcher.Session().ID()))
		}
		return messages[1 : len(messages)-1]
	}

	newDispatcher := func(executor execution.Executor, opts ...kernel.DispatcherOption) {
		opts = append(opts, kernel.WithShutdownHandler(func(restart bool) {
			shutdowns = append(shutdowns, restart)
		}))
		dispatcher = kernel.NewDispatcher(kernel.NewSession(), sender, executor, testKernelInfo, opts...)
		Expect(dispatcher.Start()).To(Succeed())
		sender.Reset()
	}

	BeforeEach(func() {
		ctx = context.Background()
		sender = &recordingSender{}
		shutdowns = nil
		newDispatcher(execution.NewStackExecutor())
	})

	Context("kernel_info_request", func() {
		It("should reply with the kernel description", func() {
			request := newRequest(messaging.MessageTypeKernelInfoRequest, &messaging.MessageKernelInfoRequest{})
			Expect(dispatcher.Dispatch(ctx, types.ShellMessage, request, nil)).To(Succeed())

			replies := expectBracketed(request, "shell:kernel_info_reply")
			Expect(replies[0].Msg.Identities).To(Equal(request.Identities))

			encoded, err := json.Marshal(replies[0].Msg.Content)
			Expect(err).ToNot(HaveOccurred())
			Expect(encoded).To(MatchJSON(`{
				"status": "ok",
				"protocol_version": "5.3",
				"implementation": "stack-kernel",
				"implementation_version": "0.1.0",
				"language_info": {"name": "stack", "version": "0.1.0", "mimetype": "text/plain", "file_extension": ".stack"},
				"banner": "stack",
				"debugger": false,
				"help_links": []
			}`))
		})

		It("should reply on the channel the request arrived on", func() {
			request := newRequest(messaging.MessageTypeKernelInfoRequest, &messaging.MessageKernelInfoRequest{})
			Expect(dispatcher.Dispatch(ctx, types.ControlMessage, request, nil)).To(Succeed())
			expectBracketed(request, "control:kernel_info_reply")
		})
	})

	Context("execute_request", func() {
		It("should publish the input and result and reply with the execution count", func() {
			request := executeRequest("+ 1 1")
			Expect(dispatcher.Dispatch(ctx, types.ShellMessage, request, nil)).To(Succeed())

			messages := expectBracketed(request, "iopub:execute_input", "iopub:execute_result", "shell:execute_reply")
			Expect(messages[0].Msg.Content).To(Equal(&messaging.MessageExecuteInput{Code: "+ 1 1", ExecutionCount: 1}))
			Expect(messages[1].Msg.Content).To(Equal(&messaging.MessageExecuteResult{
				ExecutionCount: 1,
				Data:           map[string]interface{}{"text/plain": "2"},
				Metadata:       map[string]interface{}{},
			}))

			reply := messages[2].Msg.Content.(*messaging.MessageExecuteReply)
			Expect(reply.Status).To(Equal(messaging.MessageStatusOK))
			Expect(reply.ExecutionCount).To(Equal(1))
			Expect(reply.ErrorInfo).To(BeNil())

			Expect(dispatcher.LastExecution().State).To(Equal(execution.Completed))
			Expect(dispatcher.LastExecution().Output).To(Equal("2"))
		})

		It("should increase the execution count with every stored execution", func() {
			counts := make([]int, 0, 4)
			for _, storeHistory := range []bool{true, true, false, true} {
				sender.Reset()
				request := executeRequest("1")
				request.Content.(*messaging.MessageExecuteRequest).StoreHistory = storeHistory
				Expect(dispatcher.Dispatch(ctx, types.ShellMessage, request, nil)).To(Succeed())

				messages := sender.Messages()
				reply := messages[len(messages)-2].Msg.Content.(*messaging.MessageExecuteReply)
				counts = append(counts, reply.ExecutionCount)
			}

			Expect(counts).To(Equal([]int{1, 2, 2, 3}))
			Expect(dispatcher.Session().ExecutionCount()).To(Equal(3))
		})

		It("should neither publish nor count silent executions", func() {
			request := executeRequest("+ 1 1")
			request.Content.(*messaging.MessageExecuteRequest).Silent = true
			Expect(dispatcher.Dispatch(ctx, types.ShellMessage, request, nil)).To(Succeed())

			messages := expectBracketed(request, "shell:execute_reply")
			Expect(messages[0].Msg.Content.(*messaging.MessageExecuteReply).ExecutionCount).To(Equal(0))
			Expect(dispatcher.Session().ExecutionCount()).To(Equal(0))
		})

		It("should not publish a result for empty output", func() {
			request := executeRequest("")
			Expect(dispatcher.Dispatch(ctx, types.ShellMessage, request, nil)).To(Succeed())
			expectBracketed(request, "iopub:execute_input", "shell:execute_reply")
		})

		Context("when the code fails", func() {
			var (
				mockCtrl     *gomock.Controller
				mockExecutor *mock_execution.MockExecutor
			)

			BeforeEach(func() {
				mockCtrl = gomock.NewController(GinkgoT())
				mockExecutor = mock_execution.NewMockExecutor(mockCtrl)
				newDispatcher(mockExecutor)
			})

			AfterEach(func() {
				mockCtrl.Finish()
			})

			It("should report the error in the reply and stay available", func() {
				mockExecutor.EXPECT().Execute(gomock.Any(), "/ 0 1").
					Return("", execution.NewError(execution.ErrNameZeroDivision, "division by zero")).Times(1)

				request := executeRequest("/ 0 1")
				Expect(dispatcher.Dispatch(ctx, types.ShellMessage, request, nil)).To(Succeed())

				messages := expectBracketed(request, "iopub:execute_input", "iopub:stream", "shell:execute_reply")
				Expect(messages[1].Msg.Content).To(Equal(&messaging.MessageStream{
					Name: messaging.StreamStderr,
					Text: "ZeroDivisionError: division by zero\n",
				}))

				reply := messages[2].Msg.Content.(*messaging.MessageExecuteReply)
				Expect(reply.Status).To(Equal(messaging.MessageStatusError))
				Expect(reply.ExecutionCount).To(Equal(1))
				Expect(reply.ErrName).To(Equal(execution.ErrNameZeroDivision))
				Expect(reply.ErrValue).To(Equal("division by zero"))
				Expect(reply.Validate()).To(Succeed())
				Expect(dispatcher.Status().State()).To(Equal(messaging.MessageKernelStatusIdle))
				Expect(dispatcher.LastExecution().State).To(Equal(execution.Erred))

				mockExecutor.EXPECT().Execute(gomock.Any(), "+ 1 1").Return("2", nil).Times(1)
				sender.Reset()
				Expect(dispatcher.Dispatch(ctx, types.ShellMessage, executeRequest("+ 1 1"), nil)).To(Succeed())
				Expect(sender.Summary()).To(ContainElement("shell:execute_reply"))
			})

			It("should wrap errors that are not execution errors", func() {
				mockExecutor.EXPECT().Execute(gomock.Any(), gomock.Any()).Return("", context.Canceled).Times(1)

				request := executeRequest("1")
				Expect(dispatcher.Dispatch(ctx, types.ShellMessage, request, nil)).To(Succeed())

				messages := sender.Messages()
				reply := messages[len(messages)-2].Msg.Content.(*messaging.MessageExecuteReply)
				Expect(reply.ErrName).To(Equal(execution.ErrNameExecution))
				Expect(reply.Traceback).ToNot(BeNil())
			})
		})
	})

	Context("is_complete_request", func() {
		It("should always answer complete with an is_complete_reply", func() {
			request := newRequest(messaging.MessageTypeIsCompleteRequest, &messaging.MessageIsCompleteRequest{Code: "+ 1"})
			Expect(dispatcher.Dispatch(ctx, types.ShellMessage, request, nil)).To(Succeed())

			messages := expectBracketed(request, "shell:is_complete_reply")
			Expect(messages[0].Msg.Content).To(Equal(&messaging.MessageIsCompleteReply{Status: messaging.IsCompleteStatusComplete}))
		})
	})

	Context("history_request", func() {
		It("should reply with an empty history", func() {
			request := newRequest(messaging.MessageTypeHistoryRequest, &messaging.MessageHistoryRequest{
				HistAccessType: messaging.HistAccessTail,
			})
			Expect(dispatcher.Dispatch(ctx, types.ShellMessage, request, nil)).To(Succeed())

			messages := expectBracketed(request, "shell:history_reply")
			Expect(messages[0].Msg.Content).To(Equal(&messaging.MessageHistoryReply{Status: "ok", History: []interface{}{}}))
		})
	})

	Context("comms", func() {
		It("should close comms opened on unknown targets", func() {
			request := newRequest(messaging.MessageTypeCommOpen, &messaging.MessageCommOpen{
				CommID:     "b1a6c7f0",
				TargetName: "jupyter.widget",
				Data:       map[string]interface{}{},
			})
			Expect(dispatcher.Dispatch(ctx, types.ShellMessage, request, nil)).To(Succeed())

			messages := expectBracketed(request, "iopub:comm_close")
			Expect(messages[0].Msg.Content).To(Equal(&messaging.MessageCommClose{CommID: "b1a6c7f0"}))
			Expect(dispatcher.Comms().IsOpen("b1a6c7f0")).To(BeFalse())
		})

		It("should route messages to comms opened on registered targets", func() {
			var received []map[string]interface{}
			newDispatcher(execution.NewStackExecutor(), kernel.WithCommTarget("echo", func(_ string, data map[string]interface{}) error {
				received = append(received, data)
				return nil
			}))

			open := newRequest(messaging.MessageTypeCommOpen, &messaging.MessageCommOpen{
				CommID: "c1", TargetName: "echo", Data: map[string]interface{}{"n": 1.0},
			})
			Expect(dispatcher.Dispatch(ctx, types.ShellMessage, open, nil)).To(Succeed())
			expectBracketed(open)
			Expect(dispatcher.Comms().IsOpen("c1")).To(BeTrue())

			sender.Reset()
			msg := newRequest(messaging.MessageTypeCommMsg, &messaging.MessageCommMsg{CommID: "c1", Data: map[string]interface{}{"n": 2.0}})
			Expect(dispatcher.Dispatch(ctx, types.ShellMessage, msg, nil)).To(Succeed())
			expectBracketed(msg)
			Expect(received).To(HaveLen(2))

			sender.Reset()
			closeRequest := newRequest(messaging.MessageTypeCommClose, &messaging.MessageCommClose{CommID: "c1"})
			Expect(dispatcher.Dispatch(ctx, types.ShellMessage, closeRequest, nil)).To(Succeed())
			expectBracketed(closeRequest)
			Expect(dispatcher.Comms().IsOpen("c1")).To(BeFalse())
		})

		It("should report messages sent to comms that are not open", func() {
			request := newRequest(messaging.MessageTypeCommMsg, &messaging.MessageCommMsg{CommID: "nope", Data: map[string]interface{}{}})
			Expect(dispatcher.Dispatch(ctx, types.ShellMessage, request, nil)).To(MatchError(kernel.ErrUnknownComm))
			expectBracketed(request)
		})
	})

	Context("shutdown_request", func() {
		It("should reply on the channel and on iopub before shutting down", func() {
			request := newRequest(messaging.MessageTypeShutdownRequest, &messaging.MessageShutdownRequest{Restart: true})
			Expect(dispatcher.Dispatch(ctx, types.ControlMessage, request, nil)).To(Succeed())

			messages := expectBracketed(request, "control:shutdown_reply", "iopub:shutdown_reply")
			Expect(messages[0].Msg.Content).To(Equal(&messaging.MessageShutdownReply{Status: "ok", Restart: true}))
			Expect(shutdowns).To(Equal([]bool{true}))
		})
	})

	Context("messages the kernel does not accept", func() {
		It("should skip replies received on the shell channel", func() {
			request := newRequest(messaging.MessageTypeExecuteReply, &messaging.MessageExecuteReply{Status: "ok", ExecutionCount: 1})
			Expect(dispatcher.Dispatch(ctx, types.ShellMessage, request, nil)).To(MatchError(kernel.ErrUnexpectedMessageType))
			expectBracketed(request)
		})

		It("should skip unsupported message types", func() {
			request := newRequest("inspect_request", nil)
			decodeErr := messaging.ErrUnsupportedMessageType
			Expect(dispatcher.Dispatch(ctx, types.ShellMessage, request, decodeErr)).To(MatchError(messaging.ErrUnsupportedMessageType))
			expectBracketed(request)
			Expect(dispatcher.Status().State()).To(Equal(messaging.MessageKernelStatusIdle))
		})

		It("should reject messages without a header without changing status", func() {
			request := newRequest(messaging.MessageTypeKernelInfoRequest, &messaging.MessageKernelInfoRequest{})
			request.Header = messaging.Absent[messaging.MessageHeader]()
			Expect(dispatcher.Dispatch(ctx, types.ShellMessage, request, nil)).To(MatchError(kernel.ErrMissingHeader))
			Expect(sender.Messages()).To(BeEmpty())
		})
	})

	It("should return transport failures", func() {
		shell := types.ShellMessage
		sender.failOn = &shell

		request := newRequest(messaging.MessageTypeKernelInfoRequest, &messaging.MessageKernelInfoRequest{})
		Expect(dispatcher.Dispatch(ctx, types.ShellMessage, request, nil)).To(MatchError(types.ErrSocketSendFailed))
		Expect(sender.Summary()).To(Equal([]string{"iopub:status:busy", "iopub:status:idle"}))
	})
})
