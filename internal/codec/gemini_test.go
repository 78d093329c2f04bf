package codec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/llmwire/llmwire/internal/codec"
	"github.com/llmwire/llmwire/internal/universal"
)

// =============================================================================
// GEMINI - FORWARD
// =============================================================================

func TestGemini_ToUniversal_Basic(t *testing.T) {
	c := codec.NewGeminiCodec()

	body := c.ToUniversal([]byte(`{
		"systemInstruction": {"parts": [{"text": "Be brief"}]},
		"contents": [
			{"role": "user", "parts": [{"text": "Hello"}]},
			{"role": "model", "parts": [{"text": "Hi"}]}
		],
		"generationConfig": {"temperature": 0.3, "topP": 0.9, "maxOutputTokens": 256, "stopSequences": ["###"]}
	}`))

	assert.Equal(t, "Be brief", body.SystemText())
	require.Len(t, body.Messages, 2)
	assert.Equal(t, universal.RoleUser, body.Messages[0].Role)
	assert.Equal(t, universal.RoleAssistant, body.Messages[1].Role)

	require.NotNil(t, body.Temperature)
	assert.Equal(t, 0.3, *body.Temperature)
	require.NotNil(t, body.MaxTokens)
	assert.Equal(t, 256, *body.MaxTokens)
	// unmodeled generationConfig knobs survive as provider params
	assert.Contains(t, body.ProviderParams, "generation_config_extra")
}

func TestGemini_ToUniversal_FunctionCallSynthesizesID(t *testing.T) {
	c := codec.NewGeminiCodec()

	body := c.ToUniversal([]byte(`{
		"contents": [
			{"role": "model", "parts": [{"functionCall": {"name": "get_weather", "args": {"city": "Paris"}}}]},
			{"role": "user", "parts": [{"functionResponse": {"name": "get_weather", "response": {"temp": 22}}}]}
		]
	}`))

	require.Len(t, body.Messages, 2)

	call := body.Messages[0].Content[0]
	require.Equal(t, universal.ContentToolCall, call.Type)
	assert.NotEmpty(t, call.ToolCall.ID, "this wire carries no call id; one must be synthesized")
	assert.Equal(t, "get_weather", call.ToolCall.Name)
	assert.Equal(t, map[string]any{"city": "Paris"}, call.ToolCall.Arguments)

	result := body.Messages[1].Content[0]
	require.Equal(t, universal.ContentToolResult, result.Type)
	assert.Equal(t, "get_weather", result.ToolResult.Name)
	assert.Equal(t, map[string]any{"temp": float64(22)}, result.ToolResult.Result)
}

func TestGemini_ToUniversal_DegradedTools(t *testing.T) {
	c := codec.NewGeminiCodec()

	// tools is not an array: degrade to no tools, keep everything else
	body := c.ToUniversal([]byte(`{
		"contents": [{"role": "user", "parts": [{"text": "hi"}]}],
		"tools": "not an array"
	}`))

	assert.Nil(t, body.Tools)
	require.Len(t, body.Messages, 1)
	assert.Equal(t, "hi", body.Messages[0].Text())
}

func TestGemini_ToUniversal_BuiltinToolsPreserved(t *testing.T) {
	c := codec.NewGeminiCodec()

	body := c.ToUniversal([]byte(`{
		"contents": [{"role": "user", "parts": [{"text": "hi"}]}],
		"tools": [
			{"functionDeclarations": [{"name": "get_weather", "parameters": {"type": "object"}}]},
			{"googleSearch": {}}
		],
		"toolConfig": {"functionCallingConfig": {"mode": "ANY", "allowedFunctionNames": ["get_weather"]}}
	}`))

	require.Len(t, body.Tools, 1)
	assert.Equal(t, "get_weather", body.Tools[0].Name)
	assert.Contains(t, body.ProviderParams, "builtin_tools")
	require.NotNil(t, body.ToolChoice)
	assert.Equal(t, universal.ToolChoiceNamed, body.ToolChoice.Mode)
	assert.Equal(t, "get_weather", body.ToolChoice.Name)

	// both halves come back on rebuild
	out, err := c.FromUniversal(mutate(body))
	require.NoError(t, err)
	tools := gjson.GetBytes(out, "tools").Array()
	require.Len(t, tools, 2)
	assert.Equal(t, "get_weather", tools[0].Get("functionDeclarations.0.name").String())
	assert.True(t, tools[1].Get("googleSearch").Exists())
	assert.False(t, gjson.GetBytes(out, "builtin_tools").Exists())
}

// =============================================================================
// GEMINI - REVERSE
// =============================================================================

func TestGemini_FromUniversal_FunctionResponseStructured(t *testing.T) {
	c := codec.NewGeminiCodec()

	body := &universal.Body{
		Provider: universal.ProviderGemini,
		Model:    "gemini-2.0-flash",
		Messages: []universal.Message{
			universal.NewMessage(universal.RoleUser, universal.Content{
				Type: universal.ContentToolResult,
				ToolResult: &universal.ToolResultData{
					Name:   "get_weather",
					Result: "22 degrees", // scalar results get wrapped, never string-encoded JSON
				},
			}),
		},
	}

	out, err := c.FromUniversal(body)
	require.NoError(t, err)

	resp := gjson.GetBytes(out, "contents.0.parts.0.functionResponse")
	assert.Equal(t, "get_weather", resp.Get("name").String())
	assert.Equal(t, "22 degrees", resp.Get("response.result").String())
}

func TestGemini_FromUniversal_GenerationConfigMerge(t *testing.T) {
	c := codec.NewGeminiCodec()

	temp := 0.3
	body := &universal.Body{
		Provider:    universal.ProviderGemini,
		Model:       "gemini-2.0-flash",
		Temperature: &temp,
		Messages: []universal.Message{
			universal.NewMessage(universal.RoleUser, universal.TextContent("hi")),
		},
		ProviderParams: map[string]any{
			"generation_config_extra": map[string]any{"stopSequences": []any{"###"}},
		},
	}

	out, err := c.FromUniversal(body)
	require.NoError(t, err)

	cfg := gjson.GetBytes(out, "generationConfig")
	assert.Equal(t, 0.3, cfg.Get("temperature").Float())
	assert.Equal(t, "###", cfg.Get("stopSequences.0").String())
	assert.False(t, gjson.GetBytes(out, "generation_config_extra").Exists())
}

func TestGemini_RoundTrip_Identity(t *testing.T) {
	c := codec.NewGeminiCodec()

	raw := []byte(`{
		"systemInstruction": {"parts": [{"text": "Be brief"}]},
		"contents": [
			{"role": "user", "parts": [{"text": "Hello"}, {"inlineData": {"mimeType": "image/png", "data": "aWg="}}]}
		],
		"safetySettings": [{"category": "HARM_CATEGORY_HARASSMENT", "threshold": "BLOCK_NONE"}]
	}`)

	body := c.ToUniversal(raw)
	out, err := c.FromUniversal(body)
	require.NoError(t, err)
	assert.Equal(t, raw, out)
}
