package codec

import (
	"github.com/llmwire/llmwire/internal/detect"
	"github.com/llmwire/llmwire/internal/universal"
)

// OpenAICodec is the outward dispatch point for OpenAI's two wire shapes.
// The forward direction runs the Responses-shape discriminator on the raw
// body; the reverse direction dispatches on the body's provider tag.
type OpenAICodec struct {
	chat      *OpenAIChatCodec
	responses *OpenAIResponsesCodec
}

// NewOpenAICodec creates the dispatching codec.
func NewOpenAICodec() *OpenAICodec {
	return &OpenAICodec{
		chat:      NewOpenAIChatCodec(),
		responses: NewOpenAIResponsesCodec(),
	}
}

// Name returns the codec identifier.
func (c *OpenAICodec) Name() string { return "openai" }

// Provider returns the provider tag.
func (c *OpenAICodec) Provider() universal.Provider { return universal.ProviderOpenAI }

// ToUniversal discriminates the wire shape and delegates.
func (c *OpenAICodec) ToUniversal(raw []byte) *universal.Body {
	if detect.IsResponsesShape("", raw) {
		return c.responses.ToUniversal(raw)
	}
	return c.chat.ToUniversal(raw)
}

// FromUniversal delegates on the body's provider tag: a body labeled with the
// Responses tag serializes to the Responses shape, anything else to Chat
// Completions.
func (c *OpenAICodec) FromUniversal(body *universal.Body) ([]byte, error) {
	if body != nil && body.Provider == universal.ProviderOpenAIResponses {
		return c.responses.FromUniversal(body)
	}
	return c.chat.FromUniversal(body)
}

var _ Codec = (*OpenAICodec)(nil)
