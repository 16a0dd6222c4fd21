package upstream

import (
	"encoding/json"
	"fmt"

	"mercator-hq/ganymede/pkg/wire"
)

// Encoder builds the opaque framed request body sent to the provider.
// The production encoder is the package default; tests inject their
// own to assert on what the gateway sends.
type Encoder interface {
	EncodeChatRequest(model string, messages []wire.Message) ([]byte, error)
}

// JSONEncoder is the default encoder: the conversation travels as a
// single Content frame holding a JSON payload.
type JSONEncoder struct{}

type chatRequestPayload struct {
	Model    string         `json:"model"`
	Messages []wire.Message `json:"messages"`
}

// EncodeChatRequest implements Encoder.
func (JSONEncoder) EncodeChatRequest(model string, messages []wire.Message) ([]byte, error) {
	payload, err := json.Marshal(chatRequestPayload{Model: model, Messages: messages})
	if err != nil {
		return nil, fmt.Errorf("upstream: encode chat request: %w", err)
	}
	return EncodeFrame(nil, FrameContent, payload), nil
}
