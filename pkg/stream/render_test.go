package stream

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestRenderer_ChunkSequence(t *testing.T) {
	r := NewRenderer("gpt-4o", true)

	role := r.RoleChunk()
	if role.Model != "gpt-4o" {
		t.Errorf("role chunk model = %q", role.Model)
	}
	if role.Choices[0].Delta.Role != "assistant" || role.Choices[0].Delta.Content != "" {
		t.Errorf("role chunk delta = %+v", role.Choices[0].Delta)
	}

	first := r.DeltaChunk("Hel")
	if first.Model != "gpt-4o" {
		t.Errorf("first delta model = %q, want gpt-4o", first.Model)
	}
	second := r.DeltaChunk("lo")
	if second.Model != "" {
		t.Errorf("second delta model = %q, want empty", second.Model)
	}
	if second.Choices[0].Delta.Content != "lo" {
		t.Errorf("second delta content = %q", second.Choices[0].Delta.Content)
	}

	finish, ok := r.FinishChunk()
	if !ok {
		t.Fatal("FinishChunk() should be enabled")
	}
	if finish.Choices[0].FinishReason == nil || *finish.Choices[0].FinishReason != "stop" {
		t.Errorf("finish reason = %v", finish.Choices[0].FinishReason)
	}

	// Every chunk shares the completion id and creation stamp.
	for _, c := range []string{role.ID, first.ID, second.ID, finish.ID} {
		if c != r.ID() {
			t.Errorf("chunk id %q differs from %q", c, r.ID())
		}
	}
	if !strings.HasPrefix(r.ID(), "chatcmpl-") {
		t.Errorf("completion id = %q", r.ID())
	}
}

func TestRenderer_FinishChunkDisabled(t *testing.T) {
	r := NewRenderer("gpt-4o", false)
	if _, ok := r.FinishChunk(); ok {
		t.Error("FinishChunk() should be disabled")
	}
}

func TestFormatSSE(t *testing.T) {
	r := NewRenderer("gpt-4o", false)
	data, err := FormatSSE(r.DeltaChunk("hi"))
	if err != nil {
		t.Fatalf("FormatSSE() failed: %v", err)
	}

	s := string(data)
	if !strings.HasPrefix(s, "data: ") || !strings.HasSuffix(s, "\n\n") {
		t.Errorf("sse framing wrong: %q", s)
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(s, "data: "))), &decoded); err != nil {
		t.Errorf("sse payload is not JSON: %v", err)
	}

	if string(DoneSSE()) != "data: [DONE]\n\n" {
		t.Errorf("done sentinel = %q", DoneSSE())
	}
}

func TestAggregator_Response(t *testing.T) {
	a := NewAggregator("gpt-4o", 10)
	a.Add("Hello", ", ", "world")
	a.SetPrompt("echoed prompt")

	resp, err := a.Response()
	if err != nil {
		t.Fatalf("Response() failed: %v", err)
	}
	if resp.Model != "gpt-4o" || resp.Object != "chat.completion" {
		t.Errorf("response header = %+v", resp)
	}
	msg := resp.Choices[0].Message
	if msg.Role != "assistant" || msg.Content != "Hello, world" {
		t.Errorf("message = %+v", msg)
	}
	if resp.Choices[0].FinishReason != "stop" {
		t.Errorf("finish reason = %q", resp.Choices[0].FinishReason)
	}
	if resp.Usage.PromptTokens != 10 || resp.Usage.CompletionTokens != 12 || resp.Usage.TotalTokens != 22 {
		t.Errorf("usage = %+v", resp.Usage)
	}
	if a.Prompt() != "echoed prompt" {
		t.Errorf("prompt = %q", a.Prompt())
	}
}

func TestAggregator_EmptyTranscriptIsFailure(t *testing.T) {
	a := NewAggregator("gpt-4o", 5)
	if _, err := a.Response(); err != ErrEmptyCompletion {
		t.Errorf("empty transcript: got %v, want ErrEmptyCompletion", err)
	}
}
