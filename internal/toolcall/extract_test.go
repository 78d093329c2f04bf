package toolcall_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmwire/llmwire/internal/toolcall"
	"github.com/llmwire/llmwire/internal/universal"
)

func TestExtract_OpenAIChat(t *testing.T) {
	calls := toolcall.Extract(universal.ProviderOpenAI, []byte(`{
		"choices": [{"message": {
			"role": "assistant",
			"tool_calls": [
				{"id": "call_1", "type": "function", "function": {"name": "get_weather", "arguments": "{\"city\":\"Paris\"}"}},
				{"id": "call_2", "type": "function", "function": {"name": "get_time", "arguments": "{}"}}
			]
		}}]
	}`))

	require.Len(t, calls, 2)
	assert.Equal(t, "call_1", calls[0].ID)
	assert.Equal(t, "get_weather", calls[0].Name)
	assert.Equal(t, map[string]any{"city": "Paris"}, calls[0].Input)
	assert.Equal(t, map[string]any{}, calls[1].Input)
}

func TestExtract_OpenAIResponses(t *testing.T) {
	// the Responses shape is recognized by structure even under the chat tag
	calls := toolcall.Extract(universal.ProviderOpenAI, []byte(`{
		"output": [
			{"type": "reasoning", "summary": []},
			{"type": "function_call", "call_id": "call_9", "name": "get_weather", "arguments": "{\"city\":\"Oslo\"}"}
		]
	}`))

	require.Len(t, calls, 1)
	assert.Equal(t, "call_9", calls[0].ID)
	assert.Equal(t, map[string]any{"city": "Oslo"}, calls[0].Input)
}

func TestExtract_Anthropic(t *testing.T) {
	calls := toolcall.Extract(universal.ProviderAnthropic, []byte(`{
		"content": [
			{"type": "text", "text": "Checking."},
			{"type": "tool_use", "id": "toolu_1", "name": "get_weather", "input": {"city": "Paris"}}
		]
	}`))

	require.Len(t, calls, 1)
	assert.Equal(t, "toolu_1", calls[0].ID)
	assert.Equal(t, map[string]any{"city": "Paris"}, calls[0].Input)
}

func TestExtract_GeminiSynthesizesID(t *testing.T) {
	calls := toolcall.Extract(universal.ProviderGemini, []byte(`{
		"candidates": [{"content": {"role": "model", "parts": [
			{"functionCall": {"name": "get_weather", "args": {"city": "Paris"}}}
		]}}]
	}`))

	require.Len(t, calls, 1)
	assert.NotEmpty(t, calls[0].ID)
	assert.Equal(t, "get_weather", calls[0].Name)
	assert.Equal(t, map[string]any{"city": "Paris"}, calls[0].Input)
}

func TestExtract_Degenerate(t *testing.T) {
	assert.Nil(t, toolcall.Extract(universal.ProviderOpenAI, nil))
	assert.Nil(t, toolcall.Extract(universal.ProviderOpenAI, []byte(`not json`)))
	assert.Nil(t, toolcall.Extract(universal.Provider("mistral"), []byte(`{}`)))
	assert.Nil(t, toolcall.Extract(universal.ProviderAnthropic, []byte(`{"content": [{"type": "text", "text": "no tools"}]}`)))
}

func TestExtract_MalformedArgumentsDegradeToEmpty(t *testing.T) {
	calls := toolcall.Extract(universal.ProviderOpenAI, []byte(`{
		"choices": [{"message": {"tool_calls": [
			{"id": "call_1", "function": {"name": "f", "arguments": "zzz"}}
		]}}]
	}`))

	require.Len(t, calls, 1)
	assert.Equal(t, map[string]any{}, calls[0].Input)
}
