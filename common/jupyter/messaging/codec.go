package messaging

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/scusemua/notebook-kernel/common/jupyter/types"
)

// Codec converts between ZMQ frames and JupyterMessage, signing and verifying with a shared key.
type Codec struct {
	key []byte
}

// NewCodec creates a codec for the connection's signature scheme and key. An empty key disables signing.
func NewCodec(signatureScheme string, key string) (*Codec, error) {
	if err := types.ValidateSignatureScheme(signatureScheme, []byte(key)); err != nil {
		return nil, err
	}

	return &Codec{key: []byte(key)}, nil
}

// SigningEnabled returns true if outgoing messages are signed and incoming signatures are verified.
func (c *Codec) SigningEnabled() bool {
	return len(c.key) > 0
}

// Decode parses and verifies a received multi-part message.
//
// Framing errors wrap types.ErrMalformedFrame and signature mismatches return
// types.ErrInvalidJupyterSignature; in both cases no message is returned. JSON errors are
// returned as *DecodeError naming the frame.
//
// If the header's message type is not supported, the message is returned along with an error
// wrapping ErrUnsupportedMessageType. Its Content is nil and RawContent holds the content frame.
func (c *Codec) Decode(frames [][]byte) (*JupyterMessage, error) {
	jFrames, err := types.NewJupyterFramesFromBytes(frames)
	if err != nil {
		return nil, err
	}

	if err = jFrames.Verify(c.key); err != nil {
		return nil, err
	}

	msg := &JupyterMessage{
		Identities: jFrames.Identities(),
		Signature:  string(jFrames.Signature()),
		RawContent: jFrames.Content(),
		Buffers:    jFrames.Buffers(),
	}

	if err = json.Unmarshal(jFrames.Header(), &msg.Header); err != nil {
		return nil, &DecodeError{Slot: "header", Err: fmt.Errorf("%w: %w", ErrInvalidJSON, err)}
	}

	if err = json.Unmarshal(jFrames.ParentHeader(), &msg.ParentHeader); err != nil {
		return nil, &DecodeError{Slot: "parent_header", Err: fmt.Errorf("%w: %w", ErrInvalidJSON, err)}
	}

	if _, err = decodeObject(jFrames.Metadata()); err != nil {
		return nil, &DecodeError{Slot: "metadata", Err: fmt.Errorf("%w: %w", ErrInvalidJSON, err)}
	}

	if err = json.Unmarshal(jFrames.Metadata(), &msg.Metadata); err != nil {
		return nil, &DecodeError{Slot: "metadata", Err: fmt.Errorf("%w: %w", ErrInvalidJSON, err)}
	}

	header, ok := msg.Header.Get()
	if !ok {
		if _, err = decodeObject(jFrames.Content()); err != nil {
			return nil, &DecodeError{Slot: "content", Err: fmt.Errorf("%w: %w", ErrInvalidJSON, err)}
		}
		return msg, nil
	}

	msg.Content, err = DecodeContent(header.MsgType, jFrames.Content())
	if errors.Is(err, ErrUnsupportedMessageType) {
		return msg, err
	} else if err != nil {
		return nil, &DecodeError{Slot: "content", Err: err}
	}

	return msg, nil
}

// Encode serializes and signs msg. Absent headers, metadata and content are written as {}.
func (c *Codec) Encode(msg *JupyterMessage) ([][]byte, error) {
	header, err := json.Marshal(msg.Header)
	if err != nil {
		return nil, fmt.Errorf("failed to encode header: %w", err)
	}

	parentHeader, err := json.Marshal(msg.ParentHeader)
	if err != nil {
		return nil, fmt.Errorf("failed to encode parent_header: %w", err)
	}

	metadata := []byte("{}")
	if len(msg.Metadata) > 0 {
		if metadata, err = json.Marshal(msg.Metadata); err != nil {
			return nil, fmt.Errorf("failed to encode metadata: %w", err)
		}
	}

	content := []byte("{}")
	if msg.Content != nil {
		if content, err = json.Marshal(msg.Content); err != nil {
			return nil, fmt.Errorf("failed to encode content: %w", err)
		}
	} else if len(msg.RawContent) > 0 {
		content = msg.RawContent
	}

	jFrames := types.NewJupyterFrames(msg.Identities, header, parentHeader, metadata, content, msg.Buffers)
	jFrames.Sign(c.key)
	return jFrames.Frames, nil
}
