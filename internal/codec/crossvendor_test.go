package codec_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/llmwire/llmwire/internal/codec"
	"github.com/llmwire/llmwire/internal/universal"
)

// sampleBodies holds an equivalent single-user-turn request in every wire
// shape the registry speaks.
var sampleBodies = map[universal.Provider][]byte{
	universal.ProviderOpenAI:          []byte(`{"model": "gpt-4", "messages": [{"role": "user", "content": "Hello world"}]}`),
	universal.ProviderOpenAIResponses: []byte(`{"model": "gpt-4o", "input": "Hello world"}`),
	universal.ProviderAnthropic:       []byte(`{"model": "claude-sonnet-4", "max_tokens": 1024, "messages": [{"role": "user", "content": "Hello world"}]}`),
	universal.ProviderGemini:          []byte(`{"contents": [{"role": "user", "parts": [{"text": "Hello world"}]}]}`),
}

// firstUserText pulls the first user text turn out of any wire shape.
func firstUserText(raw []byte) string {
	for _, path := range []string{
		"messages.0.content",
		"messages.0.content.0.text",
		"input",
		"input.0.content.0.text",
		"contents.0.parts.0.text",
	} {
		if v := gjson.GetBytes(raw, path); v.Type == gjson.String && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

func TestCrossVendor_TextSurvivesEveryPair(t *testing.T) {
	reg := codec.NewRegistry()
	providers := []universal.Provider{
		universal.ProviderOpenAI,
		universal.ProviderOpenAIResponses,
		universal.ProviderAnthropic,
		universal.ProviderGemini,
	}

	for _, from := range providers {
		for _, to := range providers {
			t.Run(fmt.Sprintf("%s_to_%s", from, to), func(t *testing.T) {
				src, err := reg.ForProvider(from)
				require.NoError(t, err)
				dst, err := reg.ForProvider(to)
				require.NoError(t, err)

				body := src.ToUniversal(sampleBodies[from])
				body.Provider = to
				out, err := dst.FromUniversal(body)
				require.NoError(t, err)

				assert.Equal(t, "Hello world", firstUserText(out))
			})
		}
	}
}

// =============================================================================
// MALFORMED INPUT TOLERANCE
// =============================================================================

// The forward direction never fails: any unusable message collection
// degrades to an empty-messages body with the sentinel model.
func TestMalformedInput_NeverErrors(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"missing", `{"temperature": 0.5}`},
		{"null", `{"%s": null}`},
		{"string", `{"%s": "not an array"}`},
		{"number", `{"%s": 42}`},
		{"object", `{"%s": {"role": "user"}}`},
		{"not json at all", `[1, 2`},
	}

	codecs := []struct {
		c     codec.Codec
		field string
	}{
		{codec.NewOpenAIChatCodec(), "messages"},
		{codec.NewOpenAIResponsesCodec(), "input"},
		{codec.NewAnthropicCodec(), "messages"},
		{codec.NewGeminiCodec(), "contents"},
	}

	for _, cc := range codecs {
		for _, tc := range cases {
			// A string input is valid shorthand on the Responses wire,
			// covered separately.
			if cc.field == "input" && tc.name == "string" {
				continue
			}
			t.Run(cc.c.Name()+"/"+tc.name, func(t *testing.T) {
				raw := tc.raw
				if tc.name != "missing" && tc.name != "not json at all" {
					raw = fmt.Sprintf(tc.raw, cc.field)
				}

				body := cc.c.ToUniversal([]byte(raw))
				require.NotNil(t, body)
				assert.Empty(t, body.Messages)
				assert.Equal(t, universal.DefaultModel, body.Model)
			})
		}
	}
}

func TestMalformedInput_NonObjectEntriesSkipped(t *testing.T) {
	c := codec.NewOpenAIChatCodec()

	body := c.ToUniversal([]byte(`{
		"model": "gpt-4",
		"messages": [42, "stray", {"role": "user", "content": "hi"}]
	}`))

	require.Len(t, body.Messages, 1)
	assert.Equal(t, "hi", body.Messages[0].Text())
}

// =============================================================================
// REGISTRY
// =============================================================================

func TestRegistry_ForProvider(t *testing.T) {
	reg := codec.NewRegistry()

	c, err := reg.ForProvider(universal.ProviderAnthropic)
	require.NoError(t, err)
	assert.Equal(t, universal.ProviderAnthropic, c.Provider())

	_, err = reg.ForProvider(universal.Provider("mistral"))
	require.Error(t, err)
	assert.ErrorIs(t, err, codec.ErrUnsupportedProvider)
}

// =============================================================================
// PASS-THROUGH SCOPING
// =============================================================================

// Preserved vendor knobs belong to the wire they were parsed from. Crossing a
// vendor boundary must leave them behind rather than emit fields the target
// API would reject.
func TestCrossVendor_ForeignParamsStayBehind(t *testing.T) {
	reg := codec.NewRegistry()

	t.Run("gemini to openai", func(t *testing.T) {
		src, err := reg.ForProvider(universal.ProviderGemini)
		require.NoError(t, err)
		dst, err := reg.ForProvider(universal.ProviderOpenAI)
		require.NoError(t, err)

		body := src.ToUniversal([]byte(`{
			"contents": [{"role": "user", "parts": [{"text": "Hello world"}]}],
			"generationConfig": {"temperature": 0.5, "topK": 40},
			"safetySettings": [{"category": "HARM_CATEGORY_HARASSMENT", "threshold": "BLOCK_NONE"}]
		}`))
		body.Provider = universal.ProviderOpenAI

		out, err := dst.FromUniversal(body)
		require.NoError(t, err)
		assert.Equal(t, "Hello world", firstUserText(out))
		assert.Equal(t, 0.5, gjson.GetBytes(out, "temperature").Float())
		assert.False(t, gjson.GetBytes(out, "generation_config_extra").Exists())
		assert.False(t, gjson.GetBytes(out, "safetySettings").Exists())
		assert.False(t, gjson.GetBytes(out, "topK").Exists())
	})

	t.Run("responses to anthropic", func(t *testing.T) {
		src, err := reg.ForProvider(universal.ProviderOpenAIResponses)
		require.NoError(t, err)
		dst, err := reg.ForProvider(universal.ProviderAnthropic)
		require.NoError(t, err)

		body := src.ToUniversal([]byte(`{
			"model": "gpt-4o",
			"input": "Hello world",
			"previous_response_id": "resp_1",
			"store": true
		}`))
		body.Provider = universal.ProviderAnthropic

		out, err := dst.FromUniversal(body)
		require.NoError(t, err)
		assert.Equal(t, "Hello world", firstUserText(out))
		assert.False(t, gjson.GetBytes(out, "previous_response_id").Exists())
		assert.False(t, gjson.GetBytes(out, "store").Exists())
	})

	t.Run("responses builtins never reach gemini tools", func(t *testing.T) {
		src, err := reg.ForProvider(universal.ProviderOpenAIResponses)
		require.NoError(t, err)
		dst, err := reg.ForProvider(universal.ProviderGemini)
		require.NoError(t, err)

		body := src.ToUniversal([]byte(`{
			"model": "gpt-4o",
			"input": "Hello world",
			"tools": [{"type": "web_search"}]
		}`))
		body.Provider = universal.ProviderGemini

		out, err := dst.FromUniversal(body)
		require.NoError(t, err)
		assert.False(t, gjson.GetBytes(out, "tools").Exists())
	})
}
