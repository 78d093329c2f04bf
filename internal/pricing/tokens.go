// Package pricing estimates token counts and request cost for a universal
// body. It is a collaborator of the translation core, not part of it: the
// codecs never consult pricing, and pricing never mutates a body.
package pricing

import (
	"github.com/pkoukk/tiktoken-go"

	"github.com/llmwire/llmwire/internal/universal"
)

// charsPerToken is the length heuristic used when no tokenizer is available
// for a model.
const charsPerToken = 4

// Estimator counts tokens for a model, using tiktoken when the model is
// known and a length heuristic otherwise.
type Estimator struct {
	fallbackEncoding string
}

// NewEstimator creates an estimator with the default fallback encoding.
func NewEstimator() *Estimator {
	return &Estimator{fallbackEncoding: "cl100k_base"}
}

// CountText returns the token count of a text for a model.
func (e *Estimator) CountText(model, text string) int {
	if text == "" {
		return 0
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(e.fallbackEncoding)
	}
	if err != nil || enc == nil {
		return (len(text) + charsPerToken - 1) / charsPerToken
	}
	return len(enc.Encode(text, nil, nil))
}

// CountBody estimates the prompt token count of a universal body: system
// text plus every text block, tool result and tool definition.
func (e *Estimator) CountBody(b *universal.Body) int {
	if b == nil {
		return 0
	}
	total := e.CountText(b.Model, b.SystemText())
	for i := range b.Messages {
		m := &b.Messages[i]
		for j := range m.Content {
			c := &m.Content[j]
			switch c.Type {
			case universal.ContentText, universal.ContentUnknown:
				total += e.CountText(b.Model, c.Text)
			case universal.ContentToolResult:
				if s, ok := c.ToolResult.Result.(string); ok {
					total += e.CountText(b.Model, s)
				}
			}
		}
	}
	for i := range b.Tools {
		total += e.CountText(b.Model, b.Tools[i].Name+" "+b.Tools[i].Description)
	}
	return total
}
