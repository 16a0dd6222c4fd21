package gateway

import (
	"strings"

	"mercator-hq/ganymede/pkg/wire"
)

// modelCreated is the fixed creation stamp the provider reports for
// its whole catalog.
const modelCreated int64 = 1706659200

const (
	ownerAnthropic = "anthropic"
	ownerCursor    = "cursor"
	ownerGoogle    = "google"
	ownerOpenAI    = "openai"
)

// availableModels is the provider's model catalog.
var availableModels = []wire.Model{
	{ID: "claude-3.5-sonnet", Object: "model", Created: modelCreated, OwnedBy: ownerAnthropic},
	{ID: "gpt-4", Object: "model", Created: modelCreated, OwnedBy: ownerOpenAI},
	{ID: "gpt-4o", Object: "model", Created: modelCreated, OwnedBy: ownerOpenAI},
	{ID: "claude-3-opus", Object: "model", Created: modelCreated, OwnedBy: ownerAnthropic},
	{ID: "cursor-fast", Object: "model", Created: modelCreated, OwnedBy: ownerCursor},
	{ID: "cursor-small", Object: "model", Created: modelCreated, OwnedBy: ownerCursor},
	{ID: "gpt-3.5-turbo", Object: "model", Created: modelCreated, OwnedBy: ownerOpenAI},
	{ID: "gpt-4-turbo-2024-04-09", Object: "model", Created: modelCreated, OwnedBy: ownerOpenAI},
	{ID: "gpt-4o-128k", Object: "model", Created: modelCreated, OwnedBy: ownerOpenAI},
	{ID: "gemini-1.5-flash-500k", Object: "model", Created: modelCreated, OwnedBy: ownerGoogle},
	{ID: "claude-3-haiku-200k", Object: "model", Created: modelCreated, OwnedBy: ownerAnthropic},
	{ID: "claude-3-5-sonnet-200k", Object: "model", Created: modelCreated, OwnedBy: ownerAnthropic},
	{ID: "claude-3-5-sonnet-20241022", Object: "model", Created: modelCreated, OwnedBy: ownerAnthropic},
	{ID: "gpt-4o-mini", Object: "model", Created: modelCreated, OwnedBy: ownerOpenAI},
	{ID: "o1-mini", Object: "model", Created: modelCreated, OwnedBy: ownerOpenAI},
	{ID: "o1-preview", Object: "model", Created: modelCreated, OwnedBy: ownerOpenAI},
	{ID: "o1", Object: "model", Created: modelCreated, OwnedBy: ownerOpenAI},
	{ID: "claude-3.5-haiku", Object: "model", Created: modelCreated, OwnedBy: ownerAnthropic},
	{ID: "gemini-exp-1206", Object: "model", Created: modelCreated, OwnedBy: ownerGoogle},
	{ID: "gemini-2.0-flash-thinking-exp", Object: "model", Created: modelCreated, OwnedBy: ownerGoogle},
	{ID: "gemini-2.0-flash-exp", Object: "model", Created: modelCreated, OwnedBy: ownerGoogle},
}

// usageTrackedModels name the models whose requests trigger a
// best-effort account usage refresh.
var usageTrackedModels = map[string]bool{
	"claude-3-5-sonnet-20241022": true,
	"claude-3.5-sonnet":          true,
	"gemini-exp-1206":            true,
	"gpt-4":                      true,
	"gpt-4-turbo-2024-04-09":     true,
	"gpt-4o":                     true,
	"claude-3.5-haiku":           true,
	"gpt-4o-128k":                true,
	"gemini-1.5-flash-500k":      true,
	"claude-3-haiku-200k":        true,
	"claude-3-5-sonnet-200k":     true,
}

// modelListed reports whether id is in the catalog.
func modelListed(id string) bool {
	for _, m := range availableModels {
		if m.ID == id {
			return true
		}
	}
	return false
}

// modelAllowed reports whether a request for id is admitted. With
// allowUnlisted, any claude-prefixed model passes even when the
// catalog does not list it.
func modelAllowed(id string, allowUnlisted bool) bool {
	if modelListed(id) {
		return true
	}
	return allowUnlisted && strings.HasPrefix(id, "claude")
}

// modelUsageTracked reports whether a request for id refreshes usage.
func modelUsageTracked(id string) bool {
	return usageTrackedModels[id]
}

// modelList returns the catalog in wire form.
func modelList() wire.ModelList {
	return wire.ModelList{Object: "list", Data: availableModels}
}
