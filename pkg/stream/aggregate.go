package stream

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"mercator-hq/ganymede/pkg/wire"
)

// ErrEmptyCompletion is returned when the upstream closed the stream
// without producing any content. An empty transcript is a failed
// request, never an empty success.
var ErrEmptyCompletion = errors.New("upstream produced an empty completion")

// Aggregator collects a full response stream for non-streaming callers.
type Aggregator struct {
	model       string
	promptChars int

	transcript strings.Builder
	prompt     string
}

// NewAggregator creates an aggregator for one response. promptChars is
// the character length of the request transcript, used for the token
// approximation.
func NewAggregator(model string, promptChars int) *Aggregator {
	return &Aggregator{model: model, promptChars: promptChars}
}

// Add appends content fragments to the transcript.
func (a *Aggregator) Add(texts ...string) {
	for _, t := range texts {
		a.transcript.WriteString(t)
	}
}

// SetPrompt records the upstream-echoed prompt for audit.
func (a *Aggregator) SetPrompt(prompt string) {
	a.prompt = prompt
}

// Prompt returns the recorded upstream-echoed prompt, if any.
func (a *Aggregator) Prompt() string {
	return a.prompt
}

// Response builds the aggregated completion. The upstream carries no
// token accounting, so usage is approximated by character counts.
func (a *Aggregator) Response() (*wire.ChatCompletionResponse, error) {
	content := a.transcript.String()
	if content == "" {
		return nil, ErrEmptyCompletion
	}

	completionChars := len([]rune(content))
	return &wire.ChatCompletionResponse{
		ID:      "chatcmpl-" + uuid.NewString(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   a.model,
		Choices: []wire.Choice{{
			Message:      wire.Message{Role: "assistant", Content: content},
			FinishReason: finishReasonStop,
		}},
		Usage: wire.Usage{
			PromptTokens:     a.promptChars,
			CompletionTokens: completionChars,
			TotalTokens:      a.promptChars + completionChars,
		},
	}, nil
}
