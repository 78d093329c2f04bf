package codec

import (
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/llmwire/llmwire/internal/fidelity"
	"github.com/llmwire/llmwire/internal/universal"
)

// anthropicDefaultMaxTokens backfills the wire's required max_tokens field
// when the universal body doesn't carry one.
const anthropicDefaultMaxTokens = 4096

// AnthropicCodec handles the Anthropic Messages wire shape: a dedicated
// system field (string or cache-controlled block list), content blocks with
// typed tool_use/tool_result entries, and structured tool input objects.
type AnthropicCodec struct{}

// NewAnthropicCodec creates the Anthropic codec.
func NewAnthropicCodec() *AnthropicCodec {
	return &AnthropicCodec{}
}

// Name returns the codec identifier.
func (c *AnthropicCodec) Name() string { return "anthropic" }

// Provider returns the provider tag.
func (c *AnthropicCodec) Provider() universal.Provider { return universal.ProviderAnthropic }

// anthropicKnown lists consumed top-level fields. stop_sequences, metadata
// and anthropic_version travel through provider params untouched.
var anthropicKnown = map[string]bool{
	"model":       true,
	"system":      true,
	"messages":    true,
	"max_tokens":  true,
	"temperature": true,
	"top_p":       true,
	"stream":      true,
	"tools":       true,
	"tool_choice": true,
}

// =============================================================================
// FORWARD - ToUniversal
// =============================================================================

// ToUniversal parses an Anthropic Messages body.
func (c *AnthropicCodec) ToUniversal(raw []byte) *universal.Body {
	body := &universal.Body{
		Provider: universal.ProviderAnthropic,
		Model:    universal.DefaultModel,
		Messages: []universal.Message{},
		// Stored up front so even a degraded parse round-trips verbatim.
		Original: &universal.Fragment{Provider: universal.ProviderAnthropic, Raw: raw},
	}

	top := splitTop(raw)
	if top == nil {
		return body
	}

	body.Model = decodeModel(top)
	body.Temperature = decodeFloat(top, "temperature")
	body.MaxTokens = decodeInt(top, "max_tokens")
	body.TopP = decodeFloat(top, "top_p")
	body.Stream = decodeBool(top, "stream")
	body.System = c.parseSystem(top["system"])
	body.Tools = c.parseTools(top["tools"])
	body.ToolChoice = c.parseToolChoice(top["tool_choice"])
	body.ProviderParams = passThrough(top, anthropicKnown)
	body.ParamsProvider = universal.ProviderAnthropic

	items := decodeArray(top["messages"])
	if items == nil {
		return body
	}

	for _, item := range items {
		m := decodeObject(item)
		if m == nil {
			continue
		}
		msg := universal.NewMessage(universal.Role(getString(m, "role")))
		tagMessage(&msg, universal.ProviderAnthropic, len(body.Messages))
		msg.Content = c.parseContent(m["content"])
		msg.Original = &universal.Fragment{Provider: universal.ProviderAnthropic, Raw: item}
		body.Messages = append(body.Messages, msg)
	}

	return body
}

// parseSystem maps the dedicated system field: plain string or block list
// carrying cache_control markers.
func (c *AnthropicCodec) parseSystem(raw json.RawMessage) *universal.SystemPrompt {
	if raw == nil {
		return nil
	}
	if s := decodeString(raw); s != "" {
		return &universal.SystemPrompt{Text: s}
	}
	items := decodeArray(raw)
	if items == nil {
		return nil
	}
	var parts []universal.SystemPart
	for _, item := range items {
		block := decodeObject(item)
		if block == nil {
			continue
		}
		part := universal.SystemPart{Text: getString(block, "text")}
		if cc, ok := block["cache_control"].(map[string]any); ok {
			part.CacheControl = cc
		}
		parts = append(parts, part)
	}
	if len(parts) == 0 {
		return nil
	}
	return &universal.SystemPrompt{Parts: parts}
}

// parseContent maps string-or-blocks content to universal blocks.
func (c *AnthropicCodec) parseContent(content any) []universal.Content {
	switch v := content.(type) {
	case nil:
		return nil
	case string:
		return []universal.Content{universal.TextContent(v)}
	case []any:
		var out []universal.Content
		for _, blockAny := range v {
			block, ok := blockAny.(map[string]any)
			if !ok {
				out = append(out, universal.UnknownContent(blockAny))
				continue
			}
			parsed := c.parseBlock(block)
			parsed.Original = rawFragment(universal.ProviderAnthropic, block)
			out = append(out, parsed)
		}
		return out
	default:
		return []universal.Content{universal.UnknownContent(content)}
	}
}

// parseBlock maps one typed content block.
func (c *AnthropicCodec) parseBlock(block map[string]any) universal.Content {
	switch getString(block, "type") {
	case "text":
		return universal.TextContent(getString(block, "text"))
	case "image":
		return universal.Content{Type: universal.ContentImage, Media: c.parseSource(block)}
	case "document":
		return universal.Content{Type: universal.ContentDocument, Media: c.parseSource(block)}
	case "tool_use":
		return universal.Content{Type: universal.ContentToolCall, ToolCall: &universal.ToolCallData{
			ID:        getString(block, "id"),
			Name:      getString(block, "name"),
			Arguments: parseArguments(block["input"]),
		}}
	case "tool_result":
		result := &universal.ToolResultData{
			ToolCallID: getString(block, "tool_use_id"),
			Result:     normalizeResult(c.flattenResultContent(block["content"])),
		}
		if isErr, ok := block["is_error"].(bool); ok && isErr {
			result.Error = "tool execution failed"
		}
		return universal.Content{Type: universal.ContentToolResult, ToolResult: result}
	default:
		return universal.UnknownContent(block)
	}
}

// parseSource maps an image/document source record.
func (c *AnthropicCodec) parseSource(block map[string]any) *universal.Media {
	source, _ := block["source"].(map[string]any)
	media := &universal.Media{
		MIMEType: getString(source, "media_type"),
	}
	switch getString(source, "type") {
	case "url":
		media.URL = getString(source, "url")
	case "file":
		media.FileRef = getString(source, "file_id")
	default: // base64
		media.Data = getString(source, "data")
	}
	return media
}

// flattenResultContent normalizes tool_result content, which can be a string
// or a block list, into a single value.
func (c *AnthropicCodec) flattenResultContent(content any) any {
	blocks, ok := content.([]any)
	if !ok {
		return content
	}
	text := ""
	for _, blockAny := range blocks {
		if block, ok := blockAny.(map[string]any); ok && getString(block, "type") == "text" {
			text += getString(block, "text")
		}
	}
	return text
}

// parseTools maps tools[].input_schema definitions.
func (c *AnthropicCodec) parseTools(raw json.RawMessage) []universal.Tool {
	items := decodeArray(raw)
	if items == nil {
		return nil
	}
	var tools []universal.Tool
	for _, item := range items {
		def := decodeObject(item)
		if def == nil {
			continue
		}
		params, _ := def["input_schema"].(map[string]any)
		tools = append(tools, universal.Tool{
			Name:        getString(def, "name"),
			Description: getString(def, "description"),
			Parameters:  params,
			Original:    &universal.Fragment{Provider: universal.ProviderAnthropic, Raw: item},
		})
	}
	return tools
}

// parseToolChoice maps {type: auto|any|none|tool}.
func (c *AnthropicCodec) parseToolChoice(raw json.RawMessage) *universal.ToolChoice {
	obj := decodeObject(raw)
	if obj == nil {
		return nil
	}
	switch getString(obj, "type") {
	case "auto":
		return &universal.ToolChoice{Mode: universal.ToolChoiceAuto}
	case "any":
		return &universal.ToolChoice{Mode: universal.ToolChoiceRequired}
	case "none":
		return &universal.ToolChoice{Mode: universal.ToolChoiceNone}
	case "tool":
		return &universal.ToolChoice{Mode: universal.ToolChoiceNamed, Name: getString(obj, "name")}
	}
	return nil
}

// =============================================================================
// REVERSE - FromUniversal
// =============================================================================

// FromUniversal serializes a universal body into the Anthropic shape.
func (c *AnthropicCodec) FromUniversal(body *universal.Body) ([]byte, error) {
	if fidelity.CanReconstructExactly(body, universal.ProviderAnthropic) {
		return body.Original.Raw, nil
	}

	out := map[string]any{"model": body.Model}

	if body.MaxTokens != nil {
		out["max_tokens"] = *body.MaxTokens
	} else {
		out["max_tokens"] = anthropicDefaultMaxTokens
	}

	if sys := c.buildSystem(body); sys != nil {
		out["system"] = sys
	}

	msgs := []any{}
	for i := range body.Messages {
		m := &body.Messages[i]
		if m.Role == universal.RoleSystem || m.Role == universal.RoleDeveloper {
			// System turns live in the dedicated field, never inline.
			continue
		}
		wire, err := c.buildMessage(m, i)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, wire)
	}
	out["messages"] = msgs

	if tools, err := c.buildTools(body.Tools); err != nil {
		return nil, err
	} else if tools != nil {
		out["tools"] = tools
	}
	if tc := c.buildToolChoice(body.ToolChoice); tc != nil {
		out["tool_choice"] = tc
	}

	setIfFloat(out, "temperature", body.Temperature)
	setIfFloat(out, "top_p", body.TopP)
	if body.Stream != nil {
		out["stream"] = *body.Stream
	}

	emitParams(out, body, universal.ProviderAnthropic)
	return json.Marshal(out)
}

// buildSystem renders the system prompt: plain string for single-part, block
// list when cache directives are present. Inline system-role messages merge
// in; they are never emitted inside messages[].
func (c *AnthropicCodec) buildSystem(body *universal.Body) any {
	sys := body.System
	overflow := systemOverflow(body)

	if sys.IsZero() && len(overflow) == 0 {
		return nil
	}
	if sys.IsZero() || len(sys.Parts) == 0 {
		texts := overflow
		if !sys.IsZero() {
			texts = append([]string{sys.Text}, overflow...)
		}
		if len(texts) == 1 {
			return texts[0]
		}
		blocks := make([]any, 0, len(texts))
		for _, t := range texts {
			blocks = append(blocks, map[string]any{"type": "text", "text": t})
		}
		return blocks
	}

	blocks := make([]any, 0, len(sys.Parts)+len(overflow))
	for _, part := range sys.Parts {
		block := map[string]any{"type": "text", "text": part.Text}
		if part.CacheControl != nil {
			block["cache_control"] = part.CacheControl
		}
		blocks = append(blocks, block)
	}
	for _, t := range overflow {
		blocks = append(blocks, map[string]any{"type": "text", "text": t})
	}
	return blocks
}

// buildMessage rebuilds one message, preferring a matching fragment.
func (c *AnthropicCodec) buildMessage(m *universal.Message, index int) (any, error) {
	if m.Original != nil && m.Original.Provider == universal.ProviderAnthropic {
		frag := gjson.ParseBytes(m.Original.Raw)
		if !frag.IsObject() || !frag.Get("role").Exists() {
			return nil, fragmentErr(jsonField("messages", index), "expected an object with a role field")
		}
		return json.RawMessage(m.Original.Raw), nil
	}

	role := "user"
	if m.Role == universal.RoleAssistant {
		role = "assistant"
	}

	blocks := []any{}
	for j := range m.Content {
		block, err := c.buildBlock(&m.Content[j], index, j)
		if err != nil {
			return nil, err
		}
		if block != nil {
			blocks = append(blocks, block)
		}
	}
	for i := range m.ToolCalls {
		blocks = append(blocks, c.toolUseBlock(&m.ToolCalls[i]))
	}

	return map[string]any{"role": role, "content": blocks}, nil
}

// buildBlock rebuilds one content block in the typed-block shape.
// Tool results on this wire carry string-encoded content.
func (c *AnthropicCodec) buildBlock(block *universal.Content, msgIdx, blockIdx int) (any, error) {
	if block.Original != nil && block.Original.Provider == universal.ProviderAnthropic {
		frag := gjson.ParseBytes(block.Original.Raw)
		if !frag.IsObject() || !frag.Get("type").Exists() {
			return nil, fragmentErr(
				jsonField(jsonField("messages", msgIdx)+".content", blockIdx),
				"expected an object with a type field")
		}
		return json.RawMessage(block.Original.Raw), nil
	}

	switch block.Type {
	case universal.ContentText, universal.ContentUnknown:
		return map[string]any{"type": "text", "text": block.Text}, nil
	case universal.ContentImage:
		return map[string]any{"type": "image", "source": c.buildSource(block.Media)}, nil
	case universal.ContentDocument:
		return map[string]any{"type": "document", "source": c.buildSource(block.Media)}, nil
	case universal.ContentAudio, universal.ContentVideo:
		// No native block kind; degrade to a text reference.
		return map[string]any{"type": "text", "text": mediaURL(block.Media)}, nil
	case universal.ContentToolCall:
		return c.toolUseBlock(block.ToolCall), nil
	case universal.ContentToolResult:
		wire := map[string]any{
			"type":        "tool_result",
			"tool_use_id": block.ToolResult.ToolCallID,
			"content":     stringifyResult(block.ToolResult.Result),
		}
		if block.ToolResult.Error != "" {
			wire["is_error"] = true
		}
		return wire, nil
	}
	return nil, nil
}

func (c *AnthropicCodec) buildSource(m *universal.Media) map[string]any {
	source := map[string]any{}
	switch {
	case m == nil:
	case m.URL != "":
		source["type"] = "url"
		source["url"] = m.URL
	case m.FileRef != "":
		source["type"] = "file"
		source["file_id"] = m.FileRef
	default:
		source["type"] = "base64"
		source["media_type"] = m.MIMEType
		source["data"] = m.Data
	}
	return source
}

func (c *AnthropicCodec) toolUseBlock(call *universal.ToolCallData) map[string]any {
	args := call.Arguments
	if args == nil {
		args = map[string]any{}
	}
	return map[string]any{
		"type":  "tool_use",
		"id":    call.ID,
		"name":  call.Name,
		"input": args,
	}
}

// buildTools rebuilds tool definitions in the input_schema shape.
func (c *AnthropicCodec) buildTools(tools []universal.Tool) ([]any, error) {
	if len(tools) == 0 {
		return nil, nil
	}
	out := make([]any, 0, len(tools))
	for i := range tools {
		t := &tools[i]
		if t.Original != nil && t.Original.Provider == universal.ProviderAnthropic {
			frag := gjson.ParseBytes(t.Original.Raw)
			if !frag.IsObject() || !frag.Get("name").Exists() {
				return nil, fragmentErr(jsonField("tools", i), "expected an object with a name field")
			}
			out = append(out, json.RawMessage(t.Original.Raw))
			continue
		}
		def := map[string]any{"name": t.Name}
		if t.Description != "" {
			def["description"] = t.Description
		}
		if t.Parameters != nil {
			def["input_schema"] = t.Parameters
		} else {
			def["input_schema"] = map[string]any{"type": "object"}
		}
		out = append(out, def)
	}
	return out, nil
}

func (c *AnthropicCodec) buildToolChoice(tc *universal.ToolChoice) any {
	if tc == nil {
		return nil
	}
	switch tc.Mode {
	case universal.ToolChoiceAuto:
		return map[string]any{"type": "auto"}
	case universal.ToolChoiceRequired:
		return map[string]any{"type": "any"}
	case universal.ToolChoiceNone:
		return map[string]any{"type": "none"}
	case universal.ToolChoiceNamed:
		return map[string]any{"type": "tool", "name": tc.Name}
	}
	return nil
}

var _ Codec = (*AnthropicCodec)(nil)
