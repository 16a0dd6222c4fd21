package upstream

import (
	"encoding/binary"
	"fmt"
)

// FrameType identifies one frame of the upstream wire protocol.
type FrameType byte

const (
	// FrameStreamStart opens a response stream. Empty payload.
	FrameStreamStart FrameType = 0x01

	// FrameContent carries one UTF-8 text fragment.
	FrameContent FrameType = 0x02

	// FrameStreamEnd closes a response stream. Empty payload.
	FrameStreamEnd FrameType = 0x03

	// FrameDebug carries the upstream-echoed prompt. Never forwarded
	// to callers.
	FrameDebug FrameType = 0x04

	// FrameChatError carries a JSON error body.
	FrameChatError FrameType = 0x05
)

// frameHeaderSize is one type byte plus a big-endian uint32 length.
const frameHeaderSize = 5

// MaxFramePayload bounds a single frame's payload. Anything larger is
// treated as stream corruption.
const MaxFramePayload = 4 << 20

// Frame is one decoded frame.
type Frame struct {
	Type    FrameType
	Payload []byte
}

// FrameError reports a malformed frame.
type FrameError struct {
	Reason string
}

func (e *FrameError) Error() string {
	return "malformed frame: " + e.Reason
}

func (t FrameType) valid() bool {
	return t >= FrameStreamStart && t <= FrameChatError
}

// EncodeFrame appends the wire form of one frame to dst.
func EncodeFrame(dst []byte, typ FrameType, payload []byte) []byte {
	dst = append(dst, byte(typ))
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(payload)))
	return append(dst, payload...)
}

// DecodeFrame reads one frame from the head of buf. It returns the
// frame, the number of bytes consumed, and an error. A zero consumed
// count with a nil error means buf holds an incomplete frame; callers
// retain the bytes and retry with more input.
func DecodeFrame(buf []byte) (Frame, int, error) {
	if len(buf) < frameHeaderSize {
		return Frame{}, 0, nil
	}

	typ := FrameType(buf[0])
	if !typ.valid() {
		return Frame{}, 0, &FrameError{Reason: fmt.Sprintf("unknown frame type 0x%02x", buf[0])}
	}

	length := binary.BigEndian.Uint32(buf[1:frameHeaderSize])
	if length > MaxFramePayload {
		return Frame{}, 0, &FrameError{Reason: fmt.Sprintf("payload length %d exceeds limit", length)}
	}

	total := frameHeaderSize + int(length)
	if len(buf) < total {
		return Frame{}, 0, nil
	}

	payload := make([]byte, length)
	copy(payload, buf[frameHeaderSize:total])
	return Frame{Type: typ, Payload: payload}, total, nil
}
