package stream

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mercator-hq/ganymede/pkg/wire"
)

// finishReasonStop is the only finish reason the upstream can signal.
const finishReasonStop = "stop"

// Renderer turns protocol events into the SSE chunk sequence of one
// streaming response. All chunks share one completion id and creation
// stamp; the model appears on the opening role chunk and the first
// content delta, then never again.
type Renderer struct {
	id      string
	created int64
	model   string

	// includeFinish controls whether a finish_reason chunk precedes
	// the terminator.
	includeFinish bool

	sentRole    bool
	sentContent bool
}

// NewRenderer creates a renderer for one streaming response.
func NewRenderer(model string, includeFinish bool) *Renderer {
	return &Renderer{
		id:            "chatcmpl-" + uuid.NewString(),
		created:       time.Now().Unix(),
		model:         model,
		includeFinish: includeFinish,
	}
}

// ID returns the completion id shared by every chunk.
func (r *Renderer) ID() string { return r.id }

// RoleChunk returns the opening chunk announcing the assistant role.
func (r *Renderer) RoleChunk() wire.ChatCompletionChunk {
	r.sentRole = true
	return wire.ChatCompletionChunk{
		ID:      r.id,
		Object:  "chat.completion.chunk",
		Created: r.created,
		Model:   r.model,
		Choices: []wire.StreamChoice{{Delta: wire.Delta{Role: "assistant"}}},
	}
}

// DeltaChunk returns one incremental content chunk.
func (r *Renderer) DeltaChunk(text string) wire.ChatCompletionChunk {
	chunk := wire.ChatCompletionChunk{
		ID:      r.id,
		Object:  "chat.completion.chunk",
		Created: r.created,
		Choices: []wire.StreamChoice{{Delta: wire.Delta{Content: text}}},
	}
	if !r.sentContent {
		chunk.Model = r.model
		r.sentContent = true
	}
	return chunk
}

// FinishChunk returns the closing finish_reason chunk, or false when
// the renderer is configured to skip it.
func (r *Renderer) FinishChunk() (wire.ChatCompletionChunk, bool) {
	if !r.includeFinish {
		return wire.ChatCompletionChunk{}, false
	}
	reason := finishReasonStop
	return wire.ChatCompletionChunk{
		ID:      r.id,
		Object:  "chat.completion.chunk",
		Created: r.created,
		Choices: []wire.StreamChoice{{Delta: wire.Delta{}, FinishReason: &reason}},
	}, true
}

// FormatSSE renders one value as a server-sent event.
func FormatSSE(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("stream: marshal sse event: %w", err)
	}
	out := make([]byte, 0, len(data)+14)
	out = append(out, "data: "...)
	out = append(out, data...)
	return append(out, "\n\n"...), nil
}

// DoneSSE is the stream terminator sentinel.
func DoneSSE() []byte {
	return []byte("data: [DONE]\n\n")
}
