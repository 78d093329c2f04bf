// Package universal defines the canonical intermediate representation shared
// by every vendor codec.
//
// DESIGN: Codecs parse a vendor wire body into a Body, callers mutate the Body
// (inject context, redact, swap model), and a codec serializes it back out —
// possibly for a different vendor than the one it arrived in. The package is
// pure structure: no vendor knowledge, no behavior beyond constructors and
// small accessors.
//
// Raw wire fragments travel alongside the parsed form in Fragment values so
// that an unmodified body can be rebuilt byte-faithfully for its origin
// vendor. A Fragment must never be reused across a vendor boundary; the
// Provider tag on it is the guard.
package universal

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Provider identifies a vendor wire shape. OpenAI has two distinct shapes
// (Chat Completions and Responses), so it contributes two tags.
type Provider string

const (
	ProviderUnknown         Provider = ""
	ProviderOpenAI          Provider = "openai"
	ProviderOpenAIResponses Provider = "openai-responses"
	ProviderAnthropic       Provider = "anthropic"
	ProviderGemini          Provider = "gemini"
)

// Valid reports whether p is one of the known provider tags.
func (p Provider) Valid() bool {
	switch p {
	case ProviderOpenAI, ProviderOpenAIResponses, ProviderAnthropic, ProviderGemini:
		return true
	}
	return false
}

// DefaultModel is the sentinel used when a wire body carries no model field.
const DefaultModel = "unknown"

// Fragment pins a raw wire fragment (or a whole raw body) to the vendor it
// was parsed from. Raw is the exact bytes as they appeared on the wire.
type Fragment struct {
	Provider Provider        `json:"provider"`
	Raw      json.RawMessage `json:"raw"`
}

// Role is a conversation role. Vendor codecs map their native roles onto
// this set; "developer" and "tool" only exist on some wires.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleDeveloper Role = "developer"
)

// Metadata keys written by codecs. Each codec documents which of these it
// reads and writes; nothing else touches message metadata.
const (
	// MetaOriginProvider records which vendor a message was parsed from.
	MetaOriginProvider = "origin_provider"
	// MetaOriginalIndex records the message's position in the original wire
	// body. A message without it was added after parsing.
	MetaOriginalIndex = "original_index"
	// MetaInjected marks a message inserted by an edit step (context
	// injection). Its presence disqualifies exact reconstruction.
	MetaInjected = "injected"
	// MetaCacheControl preserves a vendor cache-control marker on a message.
	MetaCacheControl = "cache_control"
	// MetaToolCallID / MetaToolName carry tool-response linkage for wire
	// shapes that put them on the message rather than the content block.
	MetaToolCallID = "tool_call_id"
	MetaToolName   = "tool_name"
	// MetaName preserves an optional participant name field.
	MetaName = "name"
)

// SystemPart is one segment of a structured system prompt.
type SystemPart struct {
	Text         string         `json:"text"`
	CacheControl map[string]any `json:"cache_control,omitempty"`
}

// SystemPrompt is either a plain string or a structured multi-part prompt
// carrying cache directives. Parts takes precedence when non-empty.
type SystemPrompt struct {
	Text  string       `json:"text,omitempty"`
	Parts []SystemPart `json:"parts,omitempty"`
}

// IsZero reports whether no system instruction is present.
func (s *SystemPrompt) IsZero() bool {
	return s == nil || (s.Text == "" && len(s.Parts) == 0)
}

// String returns the full system text, concatenating parts with newlines.
func (s *SystemPrompt) String() string {
	if s == nil {
		return ""
	}
	if len(s.Parts) == 0 {
		return s.Text
	}
	out := ""
	for i, p := range s.Parts {
		if i > 0 {
			out += "\n"
		}
		out += p.Text
	}
	return out
}

// ToolChoiceMode is the coarse tool-selection policy.
type ToolChoiceMode string

const (
	ToolChoiceAuto     ToolChoiceMode = "auto"
	ToolChoiceRequired ToolChoiceMode = "required"
	ToolChoiceNone     ToolChoiceMode = "none"
	// ToolChoiceNamed forces one specific tool; Name carries which.
	ToolChoiceNamed ToolChoiceMode = "named"
)

// ToolChoice is the normalized tool-selection directive.
type ToolChoice struct {
	Mode ToolChoiceMode `json:"mode"`
	Name string         `json:"name,omitempty"`
}

// Tool is a normalized tool definition. Parameters is a JSON-schema-shaped
// object regardless of which field name the vendor used for it.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	Original    *Fragment      `json:"-"`
}

// Message is one conversation turn.
type Message struct {
	// ID is generated at parse time and stable for the message's lifetime.
	ID      string    `json:"id"`
	Role    Role      `json:"role"`
	Content []Content `json:"content"`
	// Metadata is an open bag keyed by the Meta* constants plus preserved
	// vendor fields.
	Metadata map[string]any `json:"metadata,omitempty"`
	// ToolCalls mirrors wire shapes that hoist tool invocations to message
	// level (OpenAI chat). Codecs for block-based wires leave it nil and use
	// tool_call content blocks instead.
	ToolCalls []ToolCallData `json:"tool_calls,omitempty"`
	Original  *Fragment      `json:"-"`
}

// NewMessage builds a message with a fresh id and empty metadata.
func NewMessage(role Role, content ...Content) Message {
	return Message{
		ID:       uuid.NewString(),
		Role:     role,
		Content:  content,
		Metadata: map[string]any{},
	}
}

// Text returns the concatenated text of all text blocks in the message.
func (m *Message) Text() string {
	out := ""
	for _, c := range m.Content {
		if c.Type == ContentText {
			out += c.Text
		}
	}
	return out
}

// Body is the canonical representation of one request turn.
type Body struct {
	Provider Provider      `json:"provider"`
	Model    string        `json:"model"`
	System   *SystemPrompt `json:"system,omitempty"`
	Messages []Message     `json:"messages"`

	// Generation parameters. All optional; applicability is vendor-dependent
	// and codecs drop what their wire cannot carry.
	Temperature      *float64 `json:"temperature,omitempty"`
	MaxTokens        *int     `json:"max_tokens,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
	Seed             *int     `json:"seed,omitempty"`
	Stream           *bool    `json:"stream,omitempty"`

	Tools      []Tool      `json:"tools,omitempty"`
	ToolChoice *ToolChoice `json:"tool_choice,omitempty"`

	// ProviderParams preserves vendor-specific knobs the universal model does
	// not natively carry (stateful-turn identifiers, safety settings,
	// response-format directives, built-in tool declarations). Codecs copy
	// unrecognized top-level fields here on the way in and back out verbatim.
	ProviderParams map[string]any `json:"provider_params,omitempty"`
	// ParamsProvider records which vendor's wire the preserved params were
	// parsed from. A codec only re-emits ProviderParams onto its own wire;
	// ProviderUnknown (a hand-built body) places no restriction.
	ParamsProvider Provider `json:"params_provider,omitempty"`

	// Original holds the complete unmodified raw payload plus its origin
	// vendor. Set only by a codec's ToUniversal; never carried across a
	// vendor boundary.
	Original *Fragment `json:"-"`
}

// SystemText returns the plain system text, empty when none is set.
func (b *Body) SystemText() string {
	return b.System.String()
}
