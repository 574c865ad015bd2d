package messaging_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/scusemua/notebook-kernel/common/jupyter/messaging"
	"github.com/scusemua/notebook-kernel/common/jupyter/types"
)

const (
	signatureKey = "a0436f6c-1916-498b-8eb9-e81ab9368e84"
)

func newRequest(msgType messaging.JupyterMessageType, content messaging.MessageContent) *messaging.JupyterMessage {
	return &messaging.JupyterMessage{
		Identities:   [][]byte{[]byte("client-1")},
		Header:       messaging.Present(messaging.NewMessageHeader(msgType, "client-session", "user")),
		ParentHeader: messaging.Absent[messaging.MessageHeader](),
		Metadata:     map[string]interface{}{},
		Content:      content,
	}
}

// rawFrames builds frames from literal JSON parts, signed with key.
func rawFrames(key string, header, parentHeader, metadata, content string, buffers ...[]byte) [][]byte {
	frames := types.NewJupyterFrames([][]byte{[]byte("client-1")}, []byte(header), []byte(parentHeader),
		[]byte(metadata), []byte(content), buffers)
	frames.Sign([]byte(key))
	return frames.Frames
}

var _ = Describe("Codec", func() {
	var codec *messaging.Codec

	BeforeEach(func() {
		var err error
		codec, err = messaging.NewCodec(types.JupyterSignatureScheme, signatureKey)
		Expect(err).ToNot(HaveOccurred())
		Expect(codec.SigningEnabled()).To(BeTrue())
	})

	It("should reject unsupported signature schemes", func() {
		_, err := messaging.NewCodec("hmac-sha1", signatureKey)
		Expect(err).To(MatchError(types.ErrNotSupportedSignatureScheme))
	})

	Context("round trips", func() {
		It("should decode what it encodes", func() {
			original := newRequest(messaging.MessageTypeExecuteRequest, &messaging.MessageExecuteRequest{
				Code:            "+ 1 1",
				StoreHistory:    true,
				UserExpressions: map[string]interface{}{},
				AllowStdin:      true,
				StopOnError:     true,
			})
			original.Buffers = [][]byte{{0x00, 0xff}}

			frames, err := codec.Encode(original)
			Expect(err).ToNot(HaveOccurred())
			Expect(frames[1]).To(Equal(types.JupyterFrameIDSMSG))

			decoded, err := codec.Decode(frames)
			Expect(err).ToNot(HaveOccurred())
			Expect(decoded.Identities).To(Equal(original.Identities))
			Expect(decoded.Header).To(Equal(original.Header))
			Expect(decoded.ParentHeader.IsPresent()).To(BeFalse())
			Expect(decoded.Content).To(Equal(original.Content))
			Expect(decoded.Buffers).To(Equal(original.Buffers))
			Expect(decoded.Signature).To(HaveLen(64))
		})

		It("should write absent slots as exactly {}", func() {
			msg := &messaging.JupyterMessage{
				Header:       messaging.Present(messaging.NewMessageHeader(messaging.MessageTypeKernelInfoRequest, "s", "")),
				ParentHeader: messaging.Absent[messaging.MessageHeader](),
			}

			frames, err := codec.Encode(msg)
			Expect(err).ToNot(HaveOccurred())
			Expect(frames).To(HaveLen(6))
			Expect(string(frames[types.JupyterFrameParentHeader])).To(Equal("{}"))
			Expect(string(frames[types.JupyterFrameMetadata])).To(Equal("{}"))
			Expect(string(frames[types.JupyterFrameContent])).To(Equal("{}"))
		})

		It("should encode replies with the request's header as parent", func() {
			request := newRequest(messaging.MessageTypeKernelInfoRequest, &messaging.MessageKernelInfoRequest{})
			reply := request.CreateReply("kernel-session", messaging.MessageTypeIsCompleteReply,
				messaging.NewIsCompleteReply(messaging.IsCompleteStatusComplete, ""))

			frames, err := codec.Encode(reply)
			Expect(err).ToNot(HaveOccurred())
			Expect(frames[0]).To(Equal([]byte("client-1")))

			var parent map[string]interface{}
			Expect(json.Unmarshal(frames[1+types.JupyterFrameParentHeader], &parent)).To(Succeed())
			Expect(parent["msg_id"]).To(Equal(request.JupyterMessageId()))

			decoded, err := codec.Decode(frames)
			Expect(err).ToNot(HaveOccurred())
			Expect(decoded.JupyterMessageType()).To(Equal(messaging.MessageTypeIsCompleteReply))
			Expect(decoded.JupyterSession()).To(Equal("kernel-session"))
			Expect(decoded.ParentHeader.MustGet()).To(Equal(request.Header.MustGet()))
		})

		It("should prefix publications with the iopub topic", func() {
			request := newRequest(messaging.MessageTypeExecuteRequest, nil)
			publication := messaging.NewPublication("0f0e7fa4-6a4f-4d9f-a3b5-0d8b2b0c3a7e", request,
				messaging.MessageTypeStatus, &messaging.MessageKernelStatus{Status: messaging.MessageKernelStatusBusy})

			frames, err := codec.Encode(publication)
			Expect(err).ToNot(HaveOccurred())
			Expect(types.IOTopicRecognizer.FindStringSubmatch(string(frames[0]))).To(Equal([]string{
				"kernel.0f0e7fa4-6a4f-4d9f-a3b5-0d8b2b0c3a7e.status", "0f0e7fa4-6a4f-4d9f-a3b5-0d8b2b0c3a7e", "status",
			}))
			Expect(publication.ParentHeader.MustGet()).To(Equal(request.Header.MustGet()))

			starting := messaging.NewPublication("s", nil, messaging.MessageTypeStatus,
				&messaging.MessageKernelStatus{Status: messaging.MessageKernelStatusStarting})
			Expect(starting.ParentHeader.IsPresent()).To(BeFalse())
		})
	})

	Context("signatures", func() {
		It("should reject a tampered content frame", func() {
			frames, err := codec.Encode(newRequest(messaging.MessageTypeIsCompleteRequest, &messaging.MessageIsCompleteRequest{Code: "1"}))
			Expect(err).ToNot(HaveOccurred())

			frames[1+types.JupyterFrameContent] = []byte(`{"code":"2"}`)
			_, err = codec.Decode(frames)
			Expect(err).To(MatchError(types.ErrInvalidJupyterSignature))
		})

		It("should reject a tampered buffer", func() {
			msg := newRequest(messaging.MessageTypeIsCompleteRequest, &messaging.MessageIsCompleteRequest{Code: "1"})
			msg.Buffers = [][]byte{[]byte("abc")}
			frames, err := codec.Encode(msg)
			Expect(err).ToNot(HaveOccurred())

			frames[len(frames)-1] = []byte("abd")
			_, err = codec.Decode(frames)
			Expect(err).To(MatchError(types.ErrInvalidJupyterSignature))
		})

		It("should reject messages signed with another key", func() {
			frames := rawFrames("other", `{"msg_id":"1","msg_type":"kernel_info_request"}`, `{}`, `{}`, `{}`)
			_, err := codec.Decode(frames)
			Expect(err).To(MatchError(types.ErrInvalidJupyterSignature))
		})

		It("should neither sign nor verify with an empty key", func() {
			unsigned, err := messaging.NewCodec(types.JupyterSignatureScheme, "")
			Expect(err).ToNot(HaveOccurred())
			Expect(unsigned.SigningEnabled()).To(BeFalse())

			frames, err := unsigned.Encode(newRequest(messaging.MessageTypeKernelInfoRequest, &messaging.MessageKernelInfoRequest{}))
			Expect(err).ToNot(HaveOccurred())
			Expect(frames[1+types.JupyterFrameSignature]).To(BeEmpty())

			frames[1+types.JupyterFrameSignature] = []byte("deadbeef")
			_, err = unsigned.Decode(frames)
			Expect(err).ToNot(HaveOccurred())
		})
	})

	Context("malformed messages", func() {
		It("should reject frames without a delimiter", func() {
			_, err := codec.Decode([][]byte{[]byte("id"), []byte(""), []byte("{}"), []byte("{}"), []byte("{}"), []byte("{}")})
			Expect(err).To(MatchError(types.ErrMalformedFrame))
		})

		It("should reject frames with two delimiters", func() {
			frames := append(rawFrames(signatureKey, `{}`, `{}`, `{}`, `{}`), types.JupyterFrameIDSMSG)
			_, err := codec.Decode(frames)
			Expect(err).To(MatchError(types.ErrMalformedFrame))
		})

		DescribeTable("naming the frame holding invalid JSON",
			func(slot string, header, parentHeader, metadata, content string) {
				_, err := codec.Decode(rawFrames(signatureKey, header, parentHeader, metadata, content))
				Expect(err).To(MatchError(messaging.ErrInvalidJSON))

				var decodeErr *messaging.DecodeError
				Expect(err).To(BeAssignableToTypeOf(decodeErr))
				Expect(err.(*messaging.DecodeError).Slot).To(Equal(slot))
			},
			Entry("header", "header", `{"msg_id":`, `{}`, `{}`, `{}`),
			Entry("parent_header", "parent_header", `{"msg_id":"1","msg_type":"kernel_info_request"}`, `[]`, `{}`, `{}`),
			Entry("metadata", "metadata", `{"msg_id":"1","msg_type":"kernel_info_request"}`, `{}`, `null`, `{}`),
			Entry("content", "content", `{"msg_id":"1","msg_type":"kernel_info_request"}`, `{}`, `{}`, `"text"`),
		)

		It("should reject content that does not match the message type", func() {
			_, err := codec.Decode(rawFrames(signatureKey, `{"msg_id":"1","msg_type":"execute_request"}`, `{}`, `{}`, `{"restart":true}`))
			Expect(err).To(MatchError(messaging.ErrInvalidContent))
			Expect(err.(*messaging.DecodeError).Slot).To(Equal("content"))
		})

		It("should return messages of unsupported types along with the error", func() {
			msg, err := codec.Decode(rawFrames(signatureKey, `{"msg_id":"1","msg_type":"inspect_request"}`, `{}`, `{}`, `{"code":"x","cursor_pos":0}`))
			Expect(err).To(MatchError(messaging.ErrUnsupportedMessageType))
			Expect(msg).ToNot(BeNil())
			Expect(msg.Content).To(BeNil())
			Expect(string(msg.RawContent)).To(MatchJSON(`{"code":"x","cursor_pos":0}`))
			Expect(msg.JupyterMessageType()).To(Equal(messaging.JupyterMessageType("inspect_request")))
		})

		It("should leave the content undecoded when the header is absent", func() {
			msg, err := codec.Decode(rawFrames(signatureKey, `{}`, `{}`, `{}`, `{"code":"1"}`))
			Expect(err).ToNot(HaveOccurred())
			Expect(msg.Header.IsPresent()).To(BeFalse())
			Expect(msg.Content).To(BeNil())

			content, err := messaging.SniffContent(msg.RawContent)
			Expect(err).ToNot(HaveOccurred())
			Expect(content).To(Equal(&messaging.MessageIsCompleteRequest{Code: "1"}))
		})
	})
})
