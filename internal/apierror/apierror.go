// Package apierror translates vendor error envelopes. Each vendor wraps its
// error JSON differently; this package normalizes any of them into APIError
// and re-encodes in any vendor's envelope, so a gateway can surface upstream
// failures in the shape the caller's SDK expects.
package apierror

import (
	"encoding/json"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/llmwire/llmwire/internal/universal"
)

// APIError is the normalized vendor error.
type APIError struct {
	Provider   universal.Provider `json:"provider"`
	StatusCode int                `json:"status_code"`
	Type       string             `json:"type"`
	Message    string             `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return string(e.Provider) + " error (" + http.StatusText(e.StatusCode) + "): " + e.Message
}

// Parse normalizes a vendor error body. A body that doesn't match the
// vendor's envelope degrades to a generic error carrying the raw text.
func Parse(provider universal.Provider, statusCode int, raw []byte) *APIError {
	e := &APIError{Provider: provider, StatusCode: statusCode}

	switch provider {
	case universal.ProviderAnthropic:
		// {"type":"error","error":{"type":"...","message":"..."}}
		e.Type = gjson.GetBytes(raw, "error.type").String()
		e.Message = gjson.GetBytes(raw, "error.message").String()
	case universal.ProviderGemini:
		// {"error":{"code":429,"message":"...","status":"RESOURCE_EXHAUSTED"}}
		e.Type = gjson.GetBytes(raw, "error.status").String()
		e.Message = gjson.GetBytes(raw, "error.message").String()
		if code := gjson.GetBytes(raw, "error.code").Int(); code != 0 && e.StatusCode == 0 {
			e.StatusCode = int(code)
		}
	default: // both OpenAI shapes
		// {"error":{"message":"...","type":"...","code":"..."}}
		e.Type = gjson.GetBytes(raw, "error.type").String()
		e.Message = gjson.GetBytes(raw, "error.message").String()
	}

	if e.Message == "" {
		e.Type = "unknown_error"
		e.Message = string(raw)
	}
	return e
}

// Encode renders the error in a target vendor's envelope.
func Encode(e *APIError, target universal.Provider) []byte {
	var envelope any
	switch target {
	case universal.ProviderAnthropic:
		envelope = map[string]any{
			"type": "error",
			"error": map[string]any{
				"type":    typeForAnthropic(e),
				"message": e.Message,
			},
		}
	case universal.ProviderGemini:
		envelope = map[string]any{
			"error": map[string]any{
				"code":    e.StatusCode,
				"message": e.Message,
				"status":  statusForGemini(e),
			},
		}
	default: // both OpenAI shapes
		envelope = map[string]any{
			"error": map[string]any{
				"message": e.Message,
				"type":    typeForOpenAI(e),
			},
		}
	}
	out, err := json.Marshal(envelope)
	if err != nil {
		return []byte(`{"error":{"message":"encoding failure","type":"internal_error"}}`)
	}
	return out
}

func typeForAnthropic(e *APIError) string {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return "authentication_error"
	case http.StatusTooManyRequests:
		return "rate_limit_error"
	case http.StatusBadRequest:
		return "invalid_request_error"
	case http.StatusNotFound:
		return "not_found_error"
	}
	if e.StatusCode >= 500 {
		return "api_error"
	}
	return "invalid_request_error"
}

func typeForOpenAI(e *APIError) string {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return "authentication_error"
	case http.StatusTooManyRequests:
		return "rate_limit_exceeded"
	}
	if e.StatusCode >= 500 {
		return "server_error"
	}
	return "invalid_request_error"
}

func statusForGemini(e *APIError) string {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return "PERMISSION_DENIED"
	case http.StatusTooManyRequests:
		return "RESOURCE_EXHAUSTED"
	case http.StatusBadRequest:
		return "INVALID_ARGUMENT"
	case http.StatusNotFound:
		return "NOT_FOUND"
	}
	if e.StatusCode >= 500 {
		return "INTERNAL"
	}
	return "UNKNOWN"
}
