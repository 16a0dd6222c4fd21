package wire

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestChatCompletionRequest_Validate(t *testing.T) {
	valid := ChatCompletionRequest{
		Model: "gpt-4o",
		Messages: []Message{
			{Role: "system", Content: "You are helpful."},
			{Role: "user", Content: "Hello"},
		},
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid request rejected: %v", err)
	}

	tests := []struct {
		name  string
		req   ChatCompletionRequest
		field string
	}{
		{
			name:  "missing model",
			req:   ChatCompletionRequest{Messages: []Message{{Role: "user", Content: "hi"}}},
			field: "model",
		},
		{
			name:  "no messages",
			req:   ChatCompletionRequest{Model: "gpt-4o"},
			field: "messages",
		},
		{
			name: "missing role",
			req: ChatCompletionRequest{
				Model:    "gpt-4o",
				Messages: []Message{{Content: "hi"}},
			},
			field: "messages[0].role",
		},
		{
			name: "unsupported role",
			req: ChatCompletionRequest{
				Model:    "gpt-4o",
				Messages: []Message{{Role: "tool", Content: "hi"}},
			},
			field: "messages[0].role",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if err == nil {
				t.Fatal("Validate() accepted an invalid request")
			}
			fe, ok := err.(*FieldError)
			if !ok {
				t.Fatalf("Validate() returned %T, want *FieldError", err)
			}
			if fe.Field != tt.field {
				t.Errorf("field = %q, want %q", fe.Field, tt.field)
			}
		})
	}
}

func TestChatCompletionChunk_ModelOmittedWhenEmpty(t *testing.T) {
	chunk := ChatCompletionChunk{
		ID:      "chatcmpl-1",
		Object:  "chat.completion.chunk",
		Created: 1700000000,
		Choices: []StreamChoice{{Delta: Delta{Content: "hi"}}},
	}

	data, err := json.Marshal(chunk)
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}
	if strings.Contains(string(data), `"model"`) {
		t.Errorf("empty model serialized: %s", data)
	}

	chunk.Model = "gpt-4o"
	data, _ = json.Marshal(chunk)
	if !strings.Contains(string(data), `"model":"gpt-4o"`) {
		t.Errorf("model missing from first chunk: %s", data)
	}
}

func TestErrorDetail_HTTPStatusCode(t *testing.T) {
	tests := []struct {
		errType string
		want    int
	}{
		{ErrorTypeInvalidRequest, 400},
		{ErrorTypeAuthentication, 401},
		{ErrorTypePermissionDenied, 403},
		{ErrorTypeNotFound, 404},
		{ErrorTypeServerError, 500},
		{ErrorTypeServiceUnavailable, 503},
		{"something_else", 500},
	}
	for _, tt := range tests {
		d := ErrorDetail{Type: tt.errType}
		if got := d.HTTPStatusCode(); got != tt.want {
			t.Errorf("HTTPStatusCode(%s) = %d, want %d", tt.errType, got, tt.want)
		}
	}
}
