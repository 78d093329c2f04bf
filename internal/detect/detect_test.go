package detect_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/llmwire/llmwire/internal/detect"
	"github.com/llmwire/llmwire/internal/universal"
)

func TestDetect_FromURL(t *testing.T) {
	cases := []struct {
		name string
		url  string
		body string
		want universal.Provider
	}{
		{"anthropic domain", "https://api.anthropic.com/v1/messages", "", universal.ProviderAnthropic},
		{"bedrock domain", "https://bedrock-runtime.us-east-1.amazonaws.com/model/claude/invoke", "", universal.ProviderAnthropic},
		{"gemini domain", "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent", "", universal.ProviderGemini},
		{"openai chat path", "https://api.openai.com/v1/chat/completions", "", universal.ProviderOpenAI},
		{"openai responses path", "https://api.openai.com/v1/responses", "", universal.ProviderOpenAIResponses},
		{"azure deployment", "https://myorg.azure.com/openai/deployments/gpt4/chat/completions", "", universal.ProviderOpenAI},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, detect.Detect(tc.url, []byte(tc.body)))
		})
	}
}

func TestDetect_FromBody(t *testing.T) {
	cases := []struct {
		name string
		body string
		want universal.Provider
	}{
		{"gemini contents", `{"contents": [{"parts": [{"text": "hi"}]}]}`, universal.ProviderGemini},
		{"gemini declarations", `{"messages": [], "tools": [{"functionDeclarations": []}]}`, universal.ProviderGemini},
		{"responses input", `{"model": "gpt-4o", "input": "hi"}`, universal.ProviderOpenAIResponses},
		{"responses previous id", `{"model": "gpt-4o", "previous_response_id": "resp_1"}`, universal.ProviderOpenAIResponses},
		{"anthropic system", `{"model": "m", "system": "be brief", "messages": []}`, universal.ProviderAnthropic},
		{"anthropic input_schema", `{"messages": [], "tools": [{"name": "t", "input_schema": {}}]}`, universal.ProviderAnthropic},
		{"claude model prefix", `{"model": "claude-sonnet-4", "messages": []}`, universal.ProviderAnthropic},
		{"openai messages", `{"model": "gpt-4", "messages": [{"role": "user", "content": "hi"}]}`, universal.ProviderOpenAI},
		{"openai function tools win", `{"model": "m", "messages": [], "tools": [{"type": "function", "function": {"name": "t"}}]}`, universal.ProviderOpenAI},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, detect.Detect("", []byte(tc.body)))
		})
	}
}

func TestDetect_DefaultsToOpenAI(t *testing.T) {
	assert.Equal(t, universal.ProviderOpenAI, detect.Detect("", nil))
	assert.Equal(t, universal.ProviderOpenAI, detect.Detect("https://example.com/v1/chat", []byte(`not json`)))
	assert.Equal(t, universal.ProviderOpenAI, detect.Detect("", []byte(`{"prompt": "legacy"}`)))
}

func TestIsResponsesShape(t *testing.T) {
	assert.True(t, detect.IsResponsesShape("https://api.openai.com/v1/responses", nil))
	assert.False(t, detect.IsResponsesShape("https://api.openai.com/v1/chat/completions", []byte(`{"input": "hi"}`)))
	assert.True(t, detect.IsResponsesShape("", []byte(`{"instructions": "be brief", "input": []}`)))
	assert.False(t, detect.IsResponsesShape("", []byte(`{"messages": []}`)))
}
