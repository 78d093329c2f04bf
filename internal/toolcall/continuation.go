package toolcall

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/llmwire/llmwire/internal/universal"
)

// BuildContinuation appends two turns to the prior raw request: the
// assistant's tool invocation(s) and the tool result, in the vendor's native
// shape and encoding convention. When the raw model response is supplied, the
// assistant turn carries every invocation the response issued; otherwise it
// carries the single call being answered.
//
// originalUniversal gives callers that already parsed the body a way to pass
// it along; the builder works from the raw bytes and only falls back to it
// for the provider tag when vendor is unset. It may be nil.
func BuildContinuation(
	vendor universal.Provider,
	originalRawBody []byte,
	originalUniversal *universal.Body,
	call Call,
	result any,
	rawResponse []byte,
) ([]byte, error) {
	if vendor == universal.ProviderUnknown && originalUniversal != nil {
		vendor = originalUniversal.Provider
	}

	calls := Extract(vendor, rawResponse)
	if len(calls) == 0 {
		calls = []Call{call}
	}

	switch vendor {
	case universal.ProviderOpenAI:
		return continueOpenAIChat(originalRawBody, calls, call, result)
	case universal.ProviderOpenAIResponses:
		return continueOpenAIResponses(originalRawBody, calls, call, result)
	case universal.ProviderAnthropic:
		return continueAnthropic(originalRawBody, calls, call, result)
	case universal.ProviderGemini:
		return continueGemini(originalRawBody, calls, call, result)
	}
	return nil, fmt.Errorf("build continuation: unsupported provider %q", vendor)
}

// continueOpenAIChat appends an assistant tool_calls turn and a role:"tool"
// result turn. The result is string-encoded on this wire. The legacy
// max_tokens field is rewritten to max_completion_tokens when the newer
// field is absent, since current model generations reject the old name.
func continueOpenAIChat(raw []byte, calls []Call, answered Call, result any) ([]byte, error) {
	out, err := normalizeTokenLimit(raw)
	if err != nil {
		return nil, err
	}

	toolCalls := make([]any, 0, len(calls))
	for _, c := range calls {
		toolCalls = append(toolCalls, map[string]any{
			"id":   c.ID,
			"type": "function",
			"function": map[string]any{
				"name":      c.Name,
				"arguments": encodeArgs(c.Input),
			},
		})
	}

	out, err = appendTurns(out, "messages",
		map[string]any{"role": "assistant", "content": nil, "tool_calls": toolCalls},
		map[string]any{"role": "tool", "tool_call_id": answered.ID, "content": stringifyResult(result)},
	)
	return out, err
}

// continueOpenAIResponses appends function_call and function_call_output
// input items. A bare-string input is first normalized into a message item.
func continueOpenAIResponses(raw []byte, calls []Call, answered Call, result any) ([]byte, error) {
	out := raw
	var err error

	if input := gjson.GetBytes(raw, "input"); input.Type == gjson.String {
		out, err = sjson.SetBytes(out, "input", []any{
			map[string]any{"type": "message", "role": "user", "content": input.String()},
		})
		if err != nil {
			return nil, fmt.Errorf("normalize input: %w", err)
		}
	}

	items := make([]any, 0, len(calls)+1)
	for _, c := range calls {
		items = append(items, map[string]any{
			"type":      "function_call",
			"call_id":   c.ID,
			"name":      c.Name,
			"arguments": encodeArgs(c.Input),
		})
	}
	items = append(items, map[string]any{
		"type":    "function_call_output",
		"call_id": answered.ID,
		"output":  stringifyResult(result),
	})

	return appendTurns(out, "input", items...)
}

// continueAnthropic appends an assistant tool_use turn and a user tool_result
// turn. The result content is always string-encoded on this wire.
func continueAnthropic(raw []byte, calls []Call, answered Call, result any) ([]byte, error) {
	blocks := make([]any, 0, len(calls))
	for _, c := range calls {
		blocks = append(blocks, map[string]any{
			"type":  "tool_use",
			"id":    c.ID,
			"name":  c.Name,
			"input": c.Input,
		})
	}

	return appendTurns(raw, "messages",
		map[string]any{"role": "assistant", "content": blocks},
		map[string]any{"role": "user", "content": []any{map[string]any{
			"type":        "tool_result",
			"tool_use_id": answered.ID,
			"content":     stringifyResult(result),
		}}},
	)
}

// continueGemini appends a model functionCall turn and a user
// functionResponse turn. The response stays a structured object on this
// wire, never a string.
func continueGemini(raw []byte, calls []Call, answered Call, result any) ([]byte, error) {
	parts := make([]any, 0, len(calls))
	for _, c := range calls {
		parts = append(parts, map[string]any{
			"functionCall": map[string]any{"name": c.Name, "args": c.Input},
		})
	}

	return appendTurns(raw, "contents",
		map[string]any{"role": "model", "parts": parts},
		map[string]any{"role": "user", "parts": []any{map[string]any{
			"functionResponse": map[string]any{
				"name":     answered.Name,
				"response": structuredResult(result),
			},
		}}},
	)
}

// appendTurns appends items to the named array field, creating it if the
// original body lacked one.
func appendTurns(raw []byte, field string, turns ...any) ([]byte, error) {
	out := raw
	if !gjson.GetBytes(out, field).IsArray() {
		var err error
		out, err = sjson.SetBytes(out, field, []any{})
		if err != nil {
			return nil, fmt.Errorf("append %s: %w", field, err)
		}
	}
	for _, turn := range turns {
		var err error
		out, err = sjson.SetBytes(out, field+".-1", turn)
		if err != nil {
			return nil, fmt.Errorf("append %s: %w", field, err)
		}
	}
	return out, nil
}

// normalizeTokenLimit rewrites the legacy max_tokens field to
// max_completion_tokens when the newer field is absent.
func normalizeTokenLimit(raw []byte) ([]byte, error) {
	old := gjson.GetBytes(raw, "max_tokens")
	if !old.Exists() || gjson.GetBytes(raw, "max_completion_tokens").Exists() {
		return raw, nil
	}
	out, err := sjson.SetBytes(raw, "max_completion_tokens", old.Value())
	if err != nil {
		return nil, fmt.Errorf("normalize token limit: %w", err)
	}
	out, err = sjson.DeleteBytes(out, "max_tokens")
	if err != nil {
		return nil, fmt.Errorf("normalize token limit: %w", err)
	}
	return out, nil
}

// encodeArgs renders a tool-call argument object as the JSON string the
// OpenAI wires expect.
func encodeArgs(args map[string]any) string {
	if args == nil {
		args = map[string]any{}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

// stringifyResult renders a tool result as a string; strings pass through.
func stringifyResult(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(raw)
}

// structuredResult renders a tool result as an object, wrapping scalars.
func structuredResult(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	if s, ok := v.(string); ok {
		var m map[string]any
		if json.Unmarshal([]byte(s), &m) == nil && m != nil {
			return m
		}
	}
	return map[string]any{"result": v}
}
