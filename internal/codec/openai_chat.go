package codec

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/llmwire/llmwire/internal/fidelity"
	"github.com/llmwire/llmwire/internal/universal"
)

// OpenAIChatCodec handles the OpenAI Chat Completions wire shape:
// messages[] with string-or-parts content, message-level tool_calls, and
// role:"tool" result messages with JSON-string-encoded tool arguments.
type OpenAIChatCodec struct{}

// NewOpenAIChatCodec creates the Chat Completions codec.
func NewOpenAIChatCodec() *OpenAIChatCodec {
	return &OpenAIChatCodec{}
}

// Name returns the codec identifier.
func (c *OpenAIChatCodec) Name() string { return "openai-chat" }

// Provider returns the provider tag.
func (c *OpenAIChatCodec) Provider() universal.Provider { return universal.ProviderOpenAI }

// openaiChatKnown lists the top-level fields the codec consumes. Everything
// else rides along in provider params (response_format, logit_bias, user,
// parallel_tool_calls, ...).
var openaiChatKnown = map[string]bool{
	"model":                 true,
	"messages":              true,
	"tools":                 true,
	"tool_choice":           true,
	"temperature":           true,
	"max_tokens":            true,
	"max_completion_tokens": true,
	"top_p":                 true,
	"frequency_penalty":     true,
	"presence_penalty":      true,
	"seed":                  true,
	"stream":                true,
}

// =============================================================================
// FORWARD - ToUniversal
// =============================================================================

// ToUniversal parses a Chat Completions body. Never fails: a body without a
// usable messages array degrades to an empty-messages universal body.
func (c *OpenAIChatCodec) ToUniversal(raw []byte) *universal.Body {
	body := &universal.Body{
		Provider: universal.ProviderOpenAI,
		Model:    universal.DefaultModel,
		Messages: []universal.Message{},
		// Stored up front so even a degraded parse round-trips verbatim.
		Original: &universal.Fragment{Provider: universal.ProviderOpenAI, Raw: raw},
	}

	top := splitTop(raw)
	if top == nil {
		return body
	}

	body.Model = decodeModel(top)
	body.Temperature = decodeFloat(top, "temperature")
	body.MaxTokens = decodeInt(top, "max_tokens")
	if body.MaxTokens == nil {
		body.MaxTokens = decodeInt(top, "max_completion_tokens")
	}
	body.TopP = decodeFloat(top, "top_p")
	body.FrequencyPenalty = decodeFloat(top, "frequency_penalty")
	body.PresencePenalty = decodeFloat(top, "presence_penalty")
	body.Seed = decodeInt(top, "seed")
	body.Stream = decodeBool(top, "stream")
	body.Tools = c.parseTools(top["tools"])
	body.ToolChoice = c.parseToolChoice(top["tool_choice"])
	body.ProviderParams = passThrough(top, openaiChatKnown)
	body.ParamsProvider = universal.ProviderOpenAI

	items := decodeArray(top["messages"])
	if items == nil {
		return body
	}

	var sysParts []universal.SystemPart
	for _, item := range items {
		m := decodeObject(item)
		if m == nil {
			continue
		}
		role := getString(m, "role")

		// Inline system turns merge into the dedicated system slot.
		if role == "system" || role == "developer" {
			sysParts = append(sysParts, universal.SystemPart{Text: c.contentText(m["content"])})
			continue
		}

		msg := c.parseMessage(role, m, len(body.Messages))
		msg.Original = &universal.Fragment{Provider: universal.ProviderOpenAI, Raw: item}
		body.Messages = append(body.Messages, msg)
	}

	if len(sysParts) == 1 {
		body.System = &universal.SystemPrompt{Text: sysParts[0].Text}
	} else if len(sysParts) > 1 {
		body.System = &universal.SystemPrompt{Parts: sysParts}
	}

	return body
}

// parseMessage converts one wire message (system turns excluded).
func (c *OpenAIChatCodec) parseMessage(role string, m map[string]any, index int) universal.Message {
	msg := universal.NewMessage(universal.Role(role))
	tagMessage(&msg, universal.ProviderOpenAI, index)

	if name := getString(m, "name"); name != "" {
		msg.Metadata[universal.MetaName] = name
	}

	if role == "tool" {
		callID := getString(m, "tool_call_id")
		msg.Metadata[universal.MetaToolCallID] = callID
		msg.Content = []universal.Content{{
			Type: universal.ContentToolResult,
			ToolResult: &universal.ToolResultData{
				ToolCallID: callID,
				Result:     normalizeResult(m["content"]),
			},
		}}
		return msg
	}

	msg.Content = c.parseContent(m["content"])

	// Message-level tool invocations stay hoisted in the universal form.
	if calls, ok := m["tool_calls"].([]any); ok {
		for _, callAny := range calls {
			call, ok := callAny.(map[string]any)
			if !ok {
				continue
			}
			fn, _ := call["function"].(map[string]any)
			msg.ToolCalls = append(msg.ToolCalls, universal.ToolCallData{
				ID:        getString(call, "id"),
				Name:      getString(fn, "name"),
				Arguments: parseArguments(fn["arguments"]),
			})
		}
	}

	return msg
}

// parseContent maps string-or-parts content to universal blocks.
func (c *OpenAIChatCodec) parseContent(content any) []universal.Content {
	switch v := content.(type) {
	case nil:
		return nil
	case string:
		return []universal.Content{universal.TextContent(v)}
	case []any:
		var out []universal.Content
		for _, partAny := range v {
			part, ok := partAny.(map[string]any)
			if !ok {
				out = append(out, universal.UnknownContent(partAny))
				continue
			}
			block := c.parsePart(part)
			block.Original = rawFragment(universal.ProviderOpenAI, part)
			out = append(out, block)
		}
		return out
	default:
		return []universal.Content{universal.UnknownContent(content)}
	}
}

// parsePart maps a single content part to the universal union.
func (c *OpenAIChatCodec) parsePart(part map[string]any) universal.Content {
	switch getString(part, "type") {
	case "text":
		return universal.TextContent(getString(part, "text"))
	case "image_url":
		img, _ := part["image_url"].(map[string]any)
		media := &universal.Media{Detail: getString(img, "detail")}
		url := getString(img, "url")
		if strings.HasPrefix(url, "data:") {
			media.MIMEType, media.Data = splitDataURI(url)
		} else {
			media.URL = url
		}
		return universal.Content{Type: universal.ContentImage, Media: media}
	case "input_audio":
		audio, _ := part["input_audio"].(map[string]any)
		return universal.Content{Type: universal.ContentAudio, Media: &universal.Media{
			Data:     getString(audio, "data"),
			MIMEType: "audio/" + getString(audio, "format"),
		}}
	case "file":
		file, _ := part["file"].(map[string]any)
		return universal.Content{Type: universal.ContentDocument, Media: &universal.Media{
			FileRef: getString(file, "file_id"),
			Data:    getString(file, "file_data"),
		}}
	default:
		return universal.UnknownContent(part)
	}
}

// parseTools maps tools[].function definitions.
func (c *OpenAIChatCodec) parseTools(raw json.RawMessage) []universal.Tool {
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
		fn, _ := def["function"].(map[string]any)
		if fn == nil {
			continue
		}
		params, _ := fn["parameters"].(map[string]any)
		tools = append(tools, universal.Tool{
			Name:        getString(fn, "name"),
			Description: getString(fn, "description"),
			Parameters:  params,
			Original:    &universal.Fragment{Provider: universal.ProviderOpenAI, Raw: item},
		})
	}
	return tools
}

// parseToolChoice maps "auto"/"none"/"required" or the named-function object.
func (c *OpenAIChatCodec) parseToolChoice(raw json.RawMessage) *universal.ToolChoice {
	if raw == nil {
		return nil
	}
	if s := decodeString(raw); s != "" {
		switch s {
		case "auto":
			return &universal.ToolChoice{Mode: universal.ToolChoiceAuto}
		case "none":
			return &universal.ToolChoice{Mode: universal.ToolChoiceNone}
		case "required":
			return &universal.ToolChoice{Mode: universal.ToolChoiceRequired}
		}
		return nil
	}
	obj := decodeObject(raw)
	if fn, ok := obj["function"].(map[string]any); ok {
		return &universal.ToolChoice{Mode: universal.ToolChoiceNamed, Name: getString(fn, "name")}
	}
	return nil
}

// =============================================================================
// REVERSE - FromUniversal
// =============================================================================

// FromUniversal serializes a universal body into the Chat Completions shape.
func (c *OpenAIChatCodec) FromUniversal(body *universal.Body) ([]byte, error) {
	if fidelity.CanReconstructExactly(body, universal.ProviderOpenAI) {
		return body.Original.Raw, nil
	}

	out := map[string]any{"model": body.Model}

	msgs := []any{}
	if !body.System.IsZero() {
		msgs = append(msgs, map[string]any{"role": "system", "content": body.SystemText()})
	}

	for i := range body.Messages {
		wire, err := c.buildMessage(&body.Messages[i], i)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, wire...)
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
	setIfInt(out, "max_tokens", body.MaxTokens)
	setIfFloat(out, "top_p", body.TopP)
	setIfFloat(out, "frequency_penalty", body.FrequencyPenalty)
	setIfFloat(out, "presence_penalty", body.PresencePenalty)
	setIfInt(out, "seed", body.Seed)
	if body.Stream != nil {
		out["stream"] = *body.Stream
	}

	emitParams(out, body, universal.ProviderOpenAI)
	return json.Marshal(out)
}

// buildMessage rebuilds one universal message as one or more wire messages.
// A tool_result block becomes its own role:"tool" message.
func (c *OpenAIChatCodec) buildMessage(m *universal.Message, index int) ([]any, error) {
	if m.Original != nil && m.Original.Provider == universal.ProviderOpenAI {
		frag := gjson.ParseBytes(m.Original.Raw)
		if !frag.IsObject() || !frag.Get("role").Exists() {
			return nil, fragmentErr(jsonField("messages", index), "expected an object with a role field")
		}
		return []any{json.RawMessage(m.Original.Raw)}, nil
	}

	var out []any
	wire := map[string]any{"role": roleForOpenAI(m.Role)}
	if name, ok := m.Metadata[universal.MetaName].(string); ok && name != "" {
		wire["name"] = name
	}

	var parts []any
	textOnly := true
	var toolCalls []any

	for j := range m.Content {
		block := &m.Content[j]
		switch block.Type {
		case universal.ContentToolResult:
			out = append(out, map[string]any{
				"role":         "tool",
				"tool_call_id": block.ToolResult.ToolCallID,
				"content":      stringifyResult(block.ToolResult.Result),
			})
		case universal.ContentToolCall:
			toolCalls = append(toolCalls, openAIToolCall(block.ToolCall))
		default:
			part := c.buildPart(block)
			if part != nil {
				if getString(part, "type") != "text" {
					textOnly = false
				}
				parts = append(parts, part)
			}
		}
	}

	for i := range m.ToolCalls {
		toolCalls = append(toolCalls, openAIToolCall(&m.ToolCalls[i]))
	}

	// tool_result-only messages already emitted their role:"tool" messages.
	if len(parts) == 0 && len(toolCalls) == 0 {
		return out, nil
	}

	switch {
	case len(parts) == 1 && textOnly:
		wire["content"] = getString(parts[0].(map[string]any), "text")
	case len(parts) > 0:
		wire["content"] = parts
	default:
		wire["content"] = nil
	}
	if len(toolCalls) > 0 {
		wire["tool_calls"] = toolCalls
	}

	return append([]any{wire}, out...), nil
}

// buildPart rebuilds one content block as a wire part.
func (c *OpenAIChatCodec) buildPart(block *universal.Content) map[string]any {
	if block.Original != nil && block.Original.Provider == universal.ProviderOpenAI {
		if m := decodeObject(block.Original.Raw); m != nil {
			return m
		}
	}

	switch block.Type {
	case universal.ContentText, universal.ContentUnknown:
		return map[string]any{"type": "text", "text": block.Text}
	case universal.ContentImage:
		if block.Media == nil {
			return nil
		}
		img := map[string]any{"url": mediaURL(block.Media)}
		if block.Media.Detail != "" {
			img["detail"] = block.Media.Detail
		}
		return map[string]any{"type": "image_url", "image_url": img}
	case universal.ContentAudio:
		if block.Media == nil {
			return nil
		}
		return map[string]any{"type": "input_audio", "input_audio": map[string]any{
			"data":   block.Media.Data,
			"format": strings.TrimPrefix(block.Media.MIMEType, "audio/"),
		}}
	case universal.ContentDocument:
		if block.Media == nil {
			return nil
		}
		file := map[string]any{}
		if block.Media.FileRef != "" {
			file["file_id"] = block.Media.FileRef
		}
		if block.Media.Data != "" {
			file["file_data"] = block.Media.Data
		}
		return map[string]any{"type": "file", "file": file}
	case universal.ContentVideo:
		if block.Media == nil {
			return nil
		}
		// No native video part on this wire; degrade to a text reference.
		return map[string]any{"type": "text", "text": mediaURL(block.Media)}
	}
	return nil
}

// buildTools rebuilds tool definitions, preferring matching fragments.
func (c *OpenAIChatCodec) buildTools(tools []universal.Tool) ([]any, error) {
	if len(tools) == 0 {
		return nil, nil
	}
	out := make([]any, 0, len(tools))
	for i := range tools {
		t := &tools[i]
		if t.Original != nil && t.Original.Provider == universal.ProviderOpenAI {
			frag := gjson.ParseBytes(t.Original.Raw)
			if !frag.IsObject() || !frag.Get("function").Exists() {
				return nil, fragmentErr(jsonField("tools", i), "expected an object with a function field")
			}
			out = append(out, json.RawMessage(t.Original.Raw))
			continue
		}
		fn := map[string]any{"name": t.Name}
		if t.Description != "" {
			fn["description"] = t.Description
		}
		if t.Parameters != nil {
			fn["parameters"] = t.Parameters
		}
		out = append(out, map[string]any{"type": "function", "function": fn})
	}
	return out, nil
}

func (c *OpenAIChatCodec) buildToolChoice(tc *universal.ToolChoice) any {
	if tc == nil {
		return nil
	}
	switch tc.Mode {
	case universal.ToolChoiceAuto:
		return "auto"
	case universal.ToolChoiceNone:
		return "none"
	case universal.ToolChoiceRequired:
		return "required"
	case universal.ToolChoiceNamed:
		return map[string]any{"type": "function", "function": map[string]any{"name": tc.Name}}
	}
	return nil
}

// contentText flattens string-or-parts content to plain text.
func (c *OpenAIChatCodec) contentText(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case []any:
		var sb strings.Builder
		for _, partAny := range v {
			if part, ok := partAny.(map[string]any); ok && getString(part, "type") == "text" {
				sb.WriteString(getString(part, "text"))
			}
		}
		return sb.String()
	}
	return ""
}

var _ Codec = (*OpenAIChatCodec)(nil)
