package wire

// ChatCompletionResponse is the aggregated response returned for
// non-streaming requests.
type ChatCompletionResponse struct {
	// ID is a unique identifier for the chat completion.
	ID string `json:"id"`

	// Object is always "chat.completion".
	Object string `json:"object"`

	// Created is the Unix timestamp of when the completion was created.
	Created int64 `json:"created"`

	// Model is the model used for the completion.
	Model string `json:"model"`

	// Choices is a list of completion choices (always exactly one).
	Choices []Choice `json:"choices"`

	// Usage contains token usage statistics.
	Usage Usage `json:"usage"`
}

// Choice is a single completion choice.
type Choice struct {
	Index   int     `json:"index"`
	Message Message `json:"message"`

	// FinishReason explains why generation stopped; always "stop" for
	// a completed response.
	FinishReason string `json:"finish_reason"`
}

// Usage contains token usage statistics. The upstream stream carries no
// token accounting, so these are character-count approximations.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatCompletionChunk is one chunk of a streaming response, sent as a
// server-sent event.
type ChatCompletionChunk struct {
	// ID is a unique identifier, shared by every chunk of one response.
	ID string `json:"id"`

	// Object is always "chat.completion.chunk".
	Object string `json:"object"`

	// Created is the Unix timestamp of when the chunk was created.
	Created int64 `json:"created"`

	// Model is present only on the first content-bearing chunk.
	Model string `json:"model,omitempty"`

	// Choices is a list of streaming choices (always exactly one).
	Choices []StreamChoice `json:"choices"`
}

// StreamChoice is a single choice in a streaming chunk.
type StreamChoice struct {
	Index int   `json:"index"`
	Delta Delta `json:"delta"`

	// FinishReason is non-nil only on the closing chunk, when enabled.
	FinishReason *string `json:"finish_reason"`
}

// Delta is the incremental content of one streaming chunk.
type Delta struct {
	// Role is set only in the opening chunk.
	Role string `json:"role,omitempty"`

	// Content is the incremental text.
	Content string `json:"content,omitempty"`
}

// Model is one entry of the model listing endpoint.
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// ModelList is the response of the model listing endpoint.
type ModelList struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}
