package wire

import "fmt"

// ChatCompletionRequest is an OpenAI-compatible chat completion request.
// Unknown fields are accepted and ignored so existing SDKs keep working.
type ChatCompletionRequest struct {
	// Model is the ID of the model to use.
	Model string `json:"model"`

	// Messages is the conversation history as a list of messages.
	Messages []Message `json:"messages"`

	// Stream enables server-sent events streaming. Optional, defaults
	// to false.
	Stream bool `json:"stream,omitempty"`

	// Temperature, TopP and MaxTokens are accepted for compatibility;
	// the upstream applies its own sampling.
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`

	// User is a caller-supplied end-user identifier. Optional.
	User string `json:"user,omitempty"`
}

// Message is a single message in a conversation.
type Message struct {
	// Role is the author of the message ("system", "user", or
	// "assistant").
	Role string `json:"role"`

	// Content is the text content of the message.
	Content string `json:"content"`
}

// Validate checks the request's required fields.
func (r *ChatCompletionRequest) Validate() error {
	if r.Model == "" {
		return &FieldError{Field: "model", Message: "model is required"}
	}
	if len(r.Messages) == 0 {
		return &FieldError{Field: "messages", Message: "messages must contain at least one message"}
	}
	for i, msg := range r.Messages {
		switch msg.Role {
		case "system", "user", "assistant":
		case "":
			return &FieldError{
				Field:   fmt.Sprintf("messages[%d].role", i),
				Message: "message role is required",
			}
		default:
			return &FieldError{
				Field:   fmt.Sprintf("messages[%d].role", i),
				Message: fmt.Sprintf("unsupported role %q", msg.Role),
			}
		}
	}
	return nil
}

// FieldError reports a request field that failed validation.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Message
}
