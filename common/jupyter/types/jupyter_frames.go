package types

import (
	"bytes"
	"fmt"
	"strings"
)

const (
	JupyterFrameStart         = 0
	JupyterFrameSignature     = 1
	JupyterFrameHeader        = 2
	JupyterFrameParentHeader  = 3
	JupyterFrameMetadata      = 4
	JupyterFrameContent       = 5
	JupyterFrameBuffers       = 6
	JupyterFrameRequiredCount = JupyterFrameBuffers
)

var (
	JupyterFrameIDSMSG = []byte("<IDS|MSG>")
	JupyterFrameEmpty  = []byte("{}")
)

// JupyterFrames is a set of ZMQ frames carrying one Jupyter message.
// Offset is the index of the <IDS|MSG> delimiter; every frame before it is a routing identity.
type JupyterFrames struct {
	Frames [][]byte
	Offset int
}

// NewJupyterFramesFromBytes locates the single <IDS|MSG> delimiter in the given frames.
//
// An error wrapping ErrMalformedFrame is returned if there is no delimiter, more than one delimiter,
// or fewer than the five frames that must follow the delimiter.
func NewJupyterFramesFromBytes(frames [][]byte) (*JupyterFrames, error) {
	offset := -1
	for i, frame := range frames {
		if !bytes.Equal(frame, JupyterFrameIDSMSG) {
			continue
		}

		if offset >= 0 {
			return nil, fmt.Errorf("%w: %w (at %d and %d)", ErrMalformedFrame, ErrMultipleDelimiters, offset, i)
		}
		offset = i
	}

	if offset < 0 {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFrame, ErrNoDelimiter)
	}

	if len(frames)-offset < JupyterFrameRequiredCount {
		return nil, fmt.Errorf("%w: expected at least %d frames after identities, got %d",
			ErrMalformedFrame, JupyterFrameRequiredCount, len(frames)-offset)
	}

	return &JupyterFrames{Frames: frames, Offset: offset}, nil
}

// NewJupyterFrames assembles the frames of a message from its parts. The signature frame is left empty.
func NewJupyterFrames(identities [][]byte, header, parentHeader, metadata, content []byte, buffers [][]byte) *JupyterFrames {
	frames := make([][]byte, 0, len(identities)+JupyterFrameRequiredCount+len(buffers))
	frames = append(frames, identities...)
	frames = append(frames, JupyterFrameIDSMSG, []byte{}, header, parentHeader, metadata, content)
	frames = append(frames, buffers...)

	return &JupyterFrames{Frames: frames, Offset: len(identities)}
}

func (frames *JupyterFrames) frame(idx int) []byte {
	return frames.Frames[frames.Offset+idx]
}

// Identities returns the routing identity frames preceding the delimiter.
func (frames *JupyterFrames) Identities() [][]byte {
	return frames.Frames[:frames.Offset]
}

func (frames *JupyterFrames) Signature() []byte {
	return frames.frame(JupyterFrameSignature)
}

func (frames *JupyterFrames) Header() []byte {
	return frames.frame(JupyterFrameHeader)
}

func (frames *JupyterFrames) ParentHeader() []byte {
	return frames.frame(JupyterFrameParentHeader)
}

func (frames *JupyterFrames) Metadata() []byte {
	return frames.frame(JupyterFrameMetadata)
}

func (frames *JupyterFrames) Content() []byte {
	return frames.frame(JupyterFrameContent)
}

// Buffers returns the auxiliary binary buffers following the content frame.
func (frames *JupyterFrames) Buffers() [][]byte {
	return frames.Frames[frames.Offset+JupyterFrameBuffers:]
}

// Signed returns the frames covered by the signature: header, parent header, metadata, content and buffers.
func (frames *JupyterFrames) Signed() [][]byte {
	return frames.Frames[frames.Offset+JupyterFrameHeader:]
}

// Sign computes the signature of the frames with the given key and stores it in the signature frame.
func (frames *JupyterFrames) Sign(key []byte) {
	frames.Frames[frames.Offset+JupyterFrameSignature] = []byte(Sign(key, frames.Signed()...))
}

// Verify checks the signature frame against the signature computed with the given key.
// An empty key accepts any signature.
func (frames *JupyterFrames) Verify(key []byte) error {
	if !VerifySignature(key, string(frames.Signature()), frames.Signed()...) {
		return ErrInvalidJupyterSignature
	}
	return nil
}

func (frames *JupyterFrames) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, frame := range frames.Frames {
		if i > 0 {
			sb.WriteString(", ")
		}
		if i < frames.Offset {
			fmt.Fprintf(&sb, "%q", frame)
		} else {
			sb.Write(frame)
		}
	}
	sb.WriteString("]")
	return sb.String()
}
