package codec_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/llmwire/llmwire/internal/codec"
	"github.com/llmwire/llmwire/internal/universal"
)

// =============================================================================
// OPENAI CHAT - FORWARD
// =============================================================================

func TestOpenAIChat_ToUniversal_Basic(t *testing.T) {
	c := codec.NewOpenAIChatCodec()

	body := c.ToUniversal([]byte(`{
		"model": "gpt-4",
		"messages": [
			{"role": "system", "content": "You are helpful"},
			{"role": "user", "content": "Hello"}
		],
		"temperature": 0.7
	}`))

	assert.Equal(t, universal.ProviderOpenAI, body.Provider)
	assert.Equal(t, "gpt-4", body.Model)
	assert.Equal(t, "You are helpful", body.SystemText())
	require.Len(t, body.Messages, 1)
	assert.Equal(t, universal.RoleUser, body.Messages[0].Role)
	assert.Equal(t, "Hello", body.Messages[0].Text())
	require.NotNil(t, body.Temperature)
	assert.Equal(t, 0.7, *body.Temperature)
	require.NotNil(t, body.Original)
	assert.Equal(t, universal.ProviderOpenAI, body.Original.Provider)
}

func TestOpenAIChat_ToUniversal_ToolCalls(t *testing.T) {
	c := codec.NewOpenAIChatCodec()

	body := c.ToUniversal([]byte(`{
		"model": "gpt-4",
		"messages": [
			{"role": "assistant", "content": null, "tool_calls": [
				{"id": "call_1", "type": "function", "function": {"name": "get_weather", "arguments": "{\"city\":\"Paris\"}"}}
			]},
			{"role": "tool", "tool_call_id": "call_1", "content": "{\"temp\": 22}"}
		]
	}`))

	require.Len(t, body.Messages, 2)

	calls := body.Messages[0].ToolCalls
	require.Len(t, calls, 1)
	assert.Equal(t, "call_1", calls[0].ID)
	assert.Equal(t, "get_weather", calls[0].Name)
	assert.Equal(t, map[string]any{"city": "Paris"}, calls[0].Arguments)

	require.Len(t, body.Messages[1].Content, 1)
	result := body.Messages[1].Content[0]
	assert.Equal(t, universal.ContentToolResult, result.Type)
	assert.Equal(t, "call_1", result.ToolResult.ToolCallID)
	// string-encoded JSON results are lifted to structured values
	assert.Equal(t, map[string]any{"temp": float64(22)}, result.ToolResult.Result)
}

func TestOpenAIChat_ToUniversal_UnparseableArguments(t *testing.T) {
	c := codec.NewOpenAIChatCodec()

	body := c.ToUniversal([]byte(`{
		"messages": [
			{"role": "assistant", "tool_calls": [
				{"id": "call_1", "function": {"name": "f", "arguments": "not json"}}
			]}
		]
	}`))

	require.Len(t, body.Messages, 1)
	require.Len(t, body.Messages[0].ToolCalls, 1)
	assert.Equal(t, map[string]any{}, body.Messages[0].ToolCalls[0].Arguments)
	assert.Equal(t, universal.DefaultModel, body.Model)
}

func TestOpenAIChat_ToUniversal_PassThrough(t *testing.T) {
	c := codec.NewOpenAIChatCodec()

	body := c.ToUniversal([]byte(`{
		"model": "gpt-4",
		"messages": [{"role": "user", "content": "hi"}],
		"response_format": {"type": "json_object"},
		"user": "abc-123"
	}`))

	require.Contains(t, body.ProviderParams, "response_format")
	require.Contains(t, body.ProviderParams, "user")

	out, err := c.FromUniversal(mutate(body))
	require.NoError(t, err)
	assert.Equal(t, "json_object", gjson.GetBytes(out, "response_format.type").String())
	assert.Equal(t, "abc-123", gjson.GetBytes(out, "user").String())
}

func TestOpenAIChat_ToUniversal_UnknownContentKind(t *testing.T) {
	c := codec.NewOpenAIChatCodec()

	body := c.ToUniversal([]byte(`{
		"messages": [{"role": "user", "content": [{"type": "hologram", "shape": "cube"}]}]
	}`))

	require.Len(t, body.Messages, 1)
	require.Len(t, body.Messages[0].Content, 1)
	block := body.Messages[0].Content[0]
	assert.Equal(t, universal.ContentUnknown, block.Type)
	assert.Contains(t, block.Text, "hologram")
	assert.Contains(t, block.Text, "cube")
}

// =============================================================================
// OPENAI CHAT - ROUND TRIP
// =============================================================================

func TestOpenAIChat_RoundTrip_Identity(t *testing.T) {
	c := codec.NewOpenAIChatCodec()

	raw := []byte(`{
		"model": "gpt-4",
		"messages": [
			{"role": "system", "content": "You are helpful"},
			{"role": "user", "content": "Hello"},
			{"role": "assistant", "content": "Hi there"}
		],
		"temperature": 0.5,
		"seed": 42,
		"response_format": {"type": "json_object"}
	}`)

	body := c.ToUniversal(raw)
	out, err := c.FromUniversal(body)
	require.NoError(t, err)
	assert.JSONEq(t, string(raw), string(out))
	// unmodified bodies reconstruct byte-for-byte, not just structurally
	assert.Equal(t, raw, out)
}

func TestOpenAIChat_RoundTrip_MutatedRebuilds(t *testing.T) {
	c := codec.NewOpenAIChatCodec()

	body := c.ToUniversal([]byte(`{
		"model": "gpt-4",
		"messages": [{"role": "user", "content": "Hello"}]
	}`))

	injected := universal.NewMessage(universal.RoleUser, universal.TextContent("context"))
	injected.Metadata[universal.MetaInjected] = true
	body.Messages = append([]universal.Message{injected}, body.Messages...)

	out, err := c.FromUniversal(body)
	require.NoError(t, err)

	msgs := gjson.GetBytes(out, "messages").Array()
	require.Len(t, msgs, 2)
	assert.Equal(t, "context", msgs[0].Get("content").String())
	assert.Equal(t, "Hello", msgs[1].Get("content").String())
}

// =============================================================================
// OPENAI CHAT - REVERSE ERRORS
// =============================================================================

func TestOpenAIChat_FromUniversal_InvalidFragment(t *testing.T) {
	c := codec.NewOpenAIChatCodec()

	msg := universal.NewMessage(universal.RoleUser, universal.TextContent("hi"))
	msg.Original = &universal.Fragment{
		Provider: universal.ProviderOpenAI,
		Raw:      json.RawMessage(`"bare string"`),
	}
	body := &universal.Body{
		Provider: universal.ProviderOpenAI,
		Model:    "gpt-4",
		Messages: []universal.Message{msg},
	}

	_, err := c.FromUniversal(body)
	require.Error(t, err)
	assert.ErrorIs(t, err, codec.ErrInvalidFragment)
	assert.Contains(t, err.Error(), "messages[0]")
}

// mutate marks a body as post-parse modified so FromUniversal rebuilds
// instead of returning the stored original.
func mutate(b *universal.Body) *universal.Body {
	b.Original = nil
	return b
}

// A media block without a payload is dropped instead of panicking.
func TestOpenAIChat_FromUniversal_MediaBlockWithoutPayload(t *testing.T) {
	c := codec.NewOpenAIChatCodec()

	body := &universal.Body{
		Provider: universal.ProviderOpenAI,
		Model:    "gpt-4",
		Messages: []universal.Message{
			universal.NewMessage(universal.RoleUser,
				universal.TextContent("look at this"),
				universal.Content{Type: universal.ContentImage},
			),
		},
	}

	out, err := c.FromUniversal(body)
	require.NoError(t, err)
	assert.Equal(t, "look at this", gjson.GetBytes(out, "messages.0.content").String())
}
