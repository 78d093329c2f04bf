// Package detect picks a vendor wire shape for an ambiguous HTTP request.
//
// DESIGN: Resolution order is hostname first, body structure second, default
// last. Detection never fails; anything unmatched resolves to the OpenAI
// Chat Completions shape, which is the most common wire in practice.
package detect

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/llmwire/llmwire/internal/universal"
)

// Detect resolves a provider tag from a target URL and optional raw body.
func Detect(targetURL string, rawBody []byte) universal.Provider {
	if p := fromURL(targetURL); p != universal.ProviderUnknown {
		if p == universal.ProviderOpenAI && IsResponsesShape(targetURL, rawBody) {
			return universal.ProviderOpenAIResponses
		}
		return p
	}
	if p := fromBody(rawBody); p != universal.ProviderUnknown {
		return p
	}
	return universal.ProviderOpenAI
}

// fromURL matches the hostname against known vendor domains.
func fromURL(targetURL string) universal.Provider {
	u := strings.ToLower(targetURL)
	switch {
	case strings.Contains(u, "generativelanguage.googleapis.com"), strings.Contains(u, "gemini"):
		return universal.ProviderGemini
	case strings.Contains(u, "anthropic"), strings.Contains(u, "bedrock"):
		return universal.ProviderAnthropic
	case strings.Contains(u, "api.openai.com"), strings.Contains(u, "openai"), strings.Contains(u, "azure"):
		return universal.ProviderOpenAI
	}
	return universal.ProviderUnknown
}

// fromBody inspects the payload for vendor-distinguishing fields.
func fromBody(rawBody []byte) universal.Provider {
	if len(rawBody) == 0 || !gjson.ValidBytes(rawBody) {
		return universal.ProviderUnknown
	}

	// Gemini: contents[] / generationConfig / nested functionDeclarations.
	if gjson.GetBytes(rawBody, "contents").Exists() ||
		gjson.GetBytes(rawBody, "generationConfig").Exists() ||
		gjson.GetBytes(rawBody, "tools.0.functionDeclarations").Exists() ||
		gjson.GetBytes(rawBody, "systemInstruction").Exists() {
		return universal.ProviderGemini
	}

	// OpenAI Responses: input/instructions/previous_response_id, no messages.
	if !gjson.GetBytes(rawBody, "messages").Exists() &&
		(gjson.GetBytes(rawBody, "input").Exists() ||
			gjson.GetBytes(rawBody, "instructions").Exists() ||
			gjson.GetBytes(rawBody, "previous_response_id").Exists()) {
		return universal.ProviderOpenAIResponses
	}

	// Anthropic: dedicated system field or tool input_schema next to a
	// message array, without OpenAI-only markers.
	if gjson.GetBytes(rawBody, "messages").Exists() &&
		!gjson.GetBytes(rawBody, "response_format").Exists() &&
		!gjson.GetBytes(rawBody, "tools.0.function").Exists() {
		if gjson.GetBytes(rawBody, "system").Exists() ||
			gjson.GetBytes(rawBody, "tools.0.input_schema").Exists() ||
			gjson.GetBytes(rawBody, "stop_sequences").Exists() ||
			strings.HasPrefix(gjson.GetBytes(rawBody, "model").String(), "claude") {
			return universal.ProviderAnthropic
		}
	}

	if gjson.GetBytes(rawBody, "messages").Exists() {
		return universal.ProviderOpenAI
	}
	return universal.ProviderUnknown
}

// IsResponsesShape disambiguates OpenAI's two wire shapes: Responses vs Chat
// Completions. The URL path wins; body fields break ties.
func IsResponsesShape(targetURL string, rawBody []byte) bool {
	if strings.Contains(targetURL, "/responses") {
		return true
	}
	if strings.Contains(targetURL, "/chat/completions") {
		return false
	}
	if len(rawBody) == 0 || !gjson.ValidBytes(rawBody) {
		return false
	}
	if gjson.GetBytes(rawBody, "messages").Exists() {
		return false
	}
	return gjson.GetBytes(rawBody, "input").Exists() ||
		gjson.GetBytes(rawBody, "instructions").Exists() ||
		gjson.GetBytes(rawBody, "previous_response_id").Exists()
}
