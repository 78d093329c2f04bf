package codec

import (
	"fmt"
	"sync"

	"github.com/llmwire/llmwire/internal/universal"
)

// Registry manages codec registration and lookup.
// Built-in codecs are registered at construction.
type Registry struct {
	codecs map[universal.Provider]Codec
	mu     sync.RWMutex
}

// NewRegistry creates a registry with all built-in codecs.
// The plain OpenAI tag maps to the dispatching codec that discriminates the
// Chat Completions and Responses wire shapes.
func NewRegistry() *Registry {
	r := &Registry{
		codecs: make(map[universal.Provider]Codec),
	}

	r.Register(NewOpenAICodec())
	r.Register(NewOpenAIResponsesCodec())
	r.Register(NewAnthropicCodec())
	r.Register(NewGeminiCodec())

	return r
}

// Register adds a codec to the registry.
func (r *Registry) Register(c Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[c.Provider()] = c
}

// Get returns the codec for a provider tag, or nil when none is registered.
func (r *Registry) Get(p universal.Provider) Codec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.codecs[p]
}

// ForProvider returns the codec for a provider tag, failing on unknown tags.
func (r *Registry) ForProvider(p universal.Provider) (Codec, error) {
	if c := r.Get(p); c != nil {
		return c, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, p)
}
