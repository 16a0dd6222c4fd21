package stream

import (
	"encoding/json"
	"fmt"
)

// Event is one decoded protocol event. The set is closed: StreamStart,
// Content, StreamEnd, Debug, and ChatError.
type Event interface {
	isEvent()
}

// StreamStart marks the opening of a response stream.
type StreamStart struct{}

// Content carries one or more consecutive text fragments.
type Content struct {
	Texts []string
}

// StreamEnd marks the end of a response stream.
type StreamEnd struct{}

// Debug carries the upstream-echoed prompt. It is logged for audit and
// never forwarded to the caller.
type Debug struct {
	Prompt string
}

// ChatError carries a structured upstream error.
type ChatError struct {
	Code    string
	Message string
}

func (StreamStart) isEvent() {}
func (Content) isEvent()     {}
func (StreamEnd) isEvent()   {}
func (Debug) isEvent()       {}
func (ChatError) isEvent()   {}

func (e ChatError) Error() string {
	return fmt.Sprintf("upstream chat error %s: %s", e.Code, e.Message)
}

type chatErrorPayload struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// parseChatError decodes a ChatError frame payload. Undecodable
// payloads degrade to an unknown-code error carrying the raw text.
func parseChatError(payload []byte) ChatError {
	var p chatErrorPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.Error.Code == "" {
		return ChatError{Code: "unknown", Message: string(payload)}
	}
	return ChatError{Code: p.Error.Code, Message: p.Error.Message}
}
