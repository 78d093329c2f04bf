// Package toolcall normalizes model-response tool invocations into a uniform
// record and builds the vendor-native follow-up request that feeds a tool's
// result back to the model.
//
// DESIGN: Extraction is a read-only traversal of the vendor response shape
// (gjson); malformed or absent fields yield an empty result, never an error.
// Continuation building patches the prior raw request in place (sjson),
// appending exactly two turns: the assistant's invocation and the tool result
// in the vendor's encoding convention.
package toolcall

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/llmwire/llmwire/internal/universal"
)

// Call is a normalized tool invocation extracted from a model response.
// Input is always a plain object, even when the wire encoded arguments as a
// JSON string or omitted an id.
type Call struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

// Extract locates tool invocations in a vendor model response. Unknown
// vendors and malformed responses return nil.
func Extract(vendor universal.Provider, rawResponse []byte) []Call {
	if len(rawResponse) == 0 || !gjson.ValidBytes(rawResponse) {
		return nil
	}

	switch vendor {
	case universal.ProviderAnthropic:
		return extractAnthropic(rawResponse)
	case universal.ProviderGemini:
		return extractGemini(rawResponse)
	case universal.ProviderOpenAI, universal.ProviderOpenAIResponses:
		// Either OpenAI shape may arrive under either tag; the response
		// structure is unambiguous.
		if gjson.GetBytes(rawResponse, "output").Exists() {
			return extractOpenAIResponses(rawResponse)
		}
		return extractOpenAIChat(rawResponse)
	}
	return nil
}

// extractOpenAIChat walks choices[].message.tool_calls[].
func extractOpenAIChat(raw []byte) []Call {
	var calls []Call
	for _, choice := range gjson.GetBytes(raw, "choices").Array() {
		for _, tc := range choice.Get("message.tool_calls").Array() {
			calls = append(calls, Call{
				ID:    idOrNew(tc.Get("id").String()),
				Name:  tc.Get("function.name").String(),
				Input: parseInput(tc.Get("function.arguments")),
			})
		}
	}
	return calls
}

// extractOpenAIResponses walks output[] function_call items.
func extractOpenAIResponses(raw []byte) []Call {
	var calls []Call
	for _, item := range gjson.GetBytes(raw, "output").Array() {
		if item.Get("type").String() != "function_call" {
			continue
		}
		id := item.Get("call_id").String()
		if id == "" {
			id = item.Get("id").String()
		}
		calls = append(calls, Call{
			ID:    idOrNew(id),
			Name:  item.Get("name").String(),
			Input: parseInput(item.Get("arguments")),
		})
	}
	return calls
}

// extractAnthropic walks the top-level content[] for tool_use blocks.
func extractAnthropic(raw []byte) []Call {
	var calls []Call
	for _, block := range gjson.GetBytes(raw, "content").Array() {
		if block.Get("type").String() != "tool_use" {
			continue
		}
		calls = append(calls, Call{
			ID:    idOrNew(block.Get("id").String()),
			Name:  block.Get("name").String(),
			Input: parseInput(block.Get("input")),
		})
	}
	return calls
}

// extractGemini walks candidates[].content.parts[] functionCall entries.
// This wire carries no invocation id, so one is synthesized.
func extractGemini(raw []byte) []Call {
	var calls []Call
	for _, cand := range gjson.GetBytes(raw, "candidates").Array() {
		for _, part := range cand.Get("content.parts").Array() {
			fc := part.Get("functionCall")
			if !fc.Exists() {
				continue
			}
			calls = append(calls, Call{
				ID:    uuid.NewString(),
				Name:  fc.Get("name").String(),
				Input: parseInput(fc.Get("args")),
			})
		}
	}
	return calls
}

// idOrNew keeps a wire id or synthesizes one when absent.
func idOrNew(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

// parseInput normalizes an argument payload to a plain object. String-encoded
// arguments are decoded; parse failure degrades to an empty object.
func parseInput(v gjson.Result) map[string]any {
	payload := v.Raw
	if v.Type == gjson.String {
		payload = v.String()
	}
	var m map[string]any
	if json.Unmarshal([]byte(payload), &m) == nil && m != nil {
		return m
	}
	return map[string]any{}
}
