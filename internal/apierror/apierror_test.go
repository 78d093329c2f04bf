package apierror_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"

	"github.com/llmwire/llmwire/internal/apierror"
	"github.com/llmwire/llmwire/internal/universal"
)

func TestParse(t *testing.T) {
	cases := []struct {
		name     string
		provider universal.Provider
		status   int
		raw      string
		wantType string
		wantMsg  string
	}{
		{
			"openai envelope",
			universal.ProviderOpenAI, 429,
			`{"error": {"message": "Rate limit reached", "type": "rate_limit_exceeded"}}`,
			"rate_limit_exceeded", "Rate limit reached",
		},
		{
			"anthropic envelope",
			universal.ProviderAnthropic, 400,
			`{"type": "error", "error": {"type": "invalid_request_error", "message": "max_tokens required"}}`,
			"invalid_request_error", "max_tokens required",
		},
		{
			"gemini envelope",
			universal.ProviderGemini, 429,
			`{"error": {"code": 429, "message": "Quota exceeded", "status": "RESOURCE_EXHAUSTED"}}`,
			"RESOURCE_EXHAUSTED", "Quota exceeded",
		},
		{
			"unmatched body degrades",
			universal.ProviderOpenAI, 502,
			`upstream gateway timeout`,
			"unknown_error", "upstream gateway timeout",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := apierror.Parse(tc.provider, tc.status, []byte(tc.raw))
			assert.Equal(t, tc.wantType, e.Type)
			assert.Equal(t, tc.wantMsg, e.Message)
			assert.Equal(t, tc.status, e.StatusCode)
		})
	}
}

func TestParse_GeminiStatusFromBody(t *testing.T) {
	e := apierror.Parse(universal.ProviderGemini, 0,
		[]byte(`{"error": {"code": 404, "message": "model not found", "status": "NOT_FOUND"}}`))
	assert.Equal(t, 404, e.StatusCode)
}

func TestEncode_CrossVendor(t *testing.T) {
	e := apierror.Parse(universal.ProviderOpenAI, http.StatusTooManyRequests,
		[]byte(`{"error": {"message": "Rate limit reached", "type": "rate_limit_exceeded"}}`))

	anthropic := apierror.Encode(e, universal.ProviderAnthropic)
	assert.Equal(t, "error", gjson.GetBytes(anthropic, "type").String())
	assert.Equal(t, "rate_limit_error", gjson.GetBytes(anthropic, "error.type").String())
	assert.Equal(t, "Rate limit reached", gjson.GetBytes(anthropic, "error.message").String())

	gemini := apierror.Encode(e, universal.ProviderGemini)
	assert.Equal(t, "RESOURCE_EXHAUSTED", gjson.GetBytes(gemini, "error.status").String())
	assert.Equal(t, int64(429), gjson.GetBytes(gemini, "error.code").Int())

	openai := apierror.Encode(e, universal.ProviderOpenAI)
	assert.Equal(t, "rate_limit_exceeded", gjson.GetBytes(openai, "error.type").String())
}

func TestAPIError_Error(t *testing.T) {
	e := apierror.Parse(universal.ProviderAnthropic, 401,
		[]byte(`{"type": "error", "error": {"type": "authentication_error", "message": "invalid x-api-key"}}`))
	assert.Contains(t, e.Error(), "anthropic")
	assert.Contains(t, e.Error(), "invalid x-api-key")
}
