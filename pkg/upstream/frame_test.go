package upstream

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestFrame_RoundTrip(t *testing.T) {
	buf := EncodeFrame(nil, FrameContent, []byte("hello"))
	buf = EncodeFrame(buf, FrameStreamEnd, nil)

	f, n, err := DecodeFrame(buf)
	if err != nil {
		t.Fatalf("DecodeFrame() failed: %v", err)
	}
	if f.Type != FrameContent || string(f.Payload) != "hello" {
		t.Errorf("first frame = %+v", f)
	}

	f, m, err := DecodeFrame(buf[n:])
	if err != nil {
		t.Fatalf("DecodeFrame() failed: %v", err)
	}
	if f.Type != FrameStreamEnd || len(f.Payload) != 0 {
		t.Errorf("second frame = %+v", f)
	}
	if n+m != len(buf) {
		t.Errorf("consumed %d of %d bytes", n+m, len(buf))
	}
}

func TestDecodeFrame_Incomplete(t *testing.T) {
	full := EncodeFrame(nil, FrameContent, []byte("hello"))

	for cut := 0; cut < len(full); cut++ {
		_, n, err := DecodeFrame(full[:cut])
		if err != nil {
			t.Fatalf("prefix of %d bytes: unexpected error %v", cut, err)
		}
		if n != 0 {
			t.Errorf("prefix of %d bytes: consumed %d, want 0", cut, n)
		}
	}
}

func TestDecodeFrame_UnknownType(t *testing.T) {
	buf := []byte{0x7f, 0, 0, 0, 0}
	_, _, err := DecodeFrame(buf)
	if _, ok := err.(*FrameError); !ok {
		t.Errorf("unknown type: got %v, want FrameError", err)
	}
}

func TestDecodeFrame_OversizePayload(t *testing.T) {
	buf := []byte{byte(FrameContent)}
	buf = binary.BigEndian.AppendUint32(buf, MaxFramePayload+1)
	_, _, err := DecodeFrame(buf)
	if _, ok := err.(*FrameError); !ok {
		t.Errorf("oversize payload: got %v, want FrameError", err)
	}
}

func TestDecodeFrame_PayloadIsCopied(t *testing.T) {
	buf := EncodeFrame(nil, FrameContent, []byte("hello"))
	f, _, err := DecodeFrame(buf)
	if err != nil {
		t.Fatalf("DecodeFrame() failed: %v", err)
	}
	buf[frameHeaderSize] = 'X'
	if !bytes.Equal(f.Payload, []byte("hello")) {
		t.Error("decoded payload aliases the input buffer")
	}
}
