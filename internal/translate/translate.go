// Package translate composes the detector and codecs into the cross-provider
// request translator. It owns no conversion logic of its own; correctness is
// entirely delegated to the codecs.
package translate

import (
	"fmt"

	"github.com/llmwire/llmwire/internal/codec"
	"github.com/llmwire/llmwire/internal/detect"
	"github.com/llmwire/llmwire/internal/universal"
)

// Translator converts raw vendor bodies between wire shapes.
// Stateless and safe for concurrent use.
type Translator struct {
	registry *codec.Registry
}

// New creates a translator over the built-in codec registry.
func New() *Translator {
	return &Translator{registry: codec.NewRegistry()}
}

// NewWithRegistry creates a translator over a caller-supplied registry.
func NewWithRegistry(r *codec.Registry) *Translator {
	return &Translator{registry: r}
}

// ToUniversal parses a raw body for the given provider.
func (t *Translator) ToUniversal(from universal.Provider, raw []byte) (*universal.Body, error) {
	c, err := t.registry.ForProvider(from)
	if err != nil {
		return nil, err
	}
	return c.ToUniversal(raw), nil
}

// FromUniversal serializes a universal body for the given provider.
func (t *Translator) FromUniversal(to universal.Provider, body *universal.Body) ([]byte, error) {
	c, err := t.registry.ForProvider(to)
	if err != nil {
		return nil, err
	}
	return c.FromUniversal(body)
}

// Translate converts a raw body from one vendor's shape to another's:
// parse, relabel the provider tag, serialize.
func (t *Translator) Translate(from, to universal.Provider, raw []byte) ([]byte, error) {
	body, err := t.ToUniversal(from, raw)
	if err != nil {
		return nil, fmt.Errorf("translate %s -> %s: %w", from, to, err)
	}
	body.Provider = to
	out, err := t.FromUniversal(to, body)
	if err != nil {
		return nil, fmt.Errorf("translate %s -> %s: %w", from, to, err)
	}
	return out, nil
}

// TranslateRequest detects the source provider from the target URL and body,
// then translates to the requested provider.
func (t *Translator) TranslateRequest(targetURL string, to universal.Provider, raw []byte) ([]byte, error) {
	from := detect.Detect(targetURL, raw)
	return t.Translate(from, to, raw)
}
