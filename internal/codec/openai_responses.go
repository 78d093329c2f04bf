package codec

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/llmwire/llmwire/internal/fidelity"
	"github.com/llmwire/llmwire/internal/universal"
)

// OpenAIResponsesCodec handles the OpenAI Responses wire shape: a dedicated
// instructions field, an input collection (bare string or typed items) with
// function_call/function_call_output items, flat tool definitions, and
// stateful-turn fields (previous_response_id, store, include) that the
// universal model preserves as provider params.
type OpenAIResponsesCodec struct{}

// NewOpenAIResponsesCodec creates the Responses codec.
func NewOpenAIResponsesCodec() *OpenAIResponsesCodec {
	return &OpenAIResponsesCodec{}
}

// Name returns the codec identifier.
func (c *OpenAIResponsesCodec) Name() string { return "openai-responses" }

// Provider returns the provider tag.
func (c *OpenAIResponsesCodec) Provider() universal.Provider {
	return universal.ProviderOpenAIResponses
}

// responsesKnown lists consumed top-level fields. previous_response_id,
// store, include, text and reasoning travel through provider params.
var responsesKnown = map[string]bool{
	"model":             true,
	"instructions":      true,
	"input":             true,
	"max_output_tokens": true,
	"temperature":       true,
	"top_p":             true,
	"stream":            true,
	"tools":             true,
	"tool_choice":       true,
}

// =============================================================================
// FORWARD - ToUniversal
// =============================================================================

// ToUniversal parses a Responses body.
func (c *OpenAIResponsesCodec) ToUniversal(raw []byte) *universal.Body {
	body := &universal.Body{
		Provider: universal.ProviderOpenAIResponses,
		Model:    universal.DefaultModel,
		Messages: []universal.Message{},
		// Stored up front so even a degraded parse round-trips verbatim.
		Original: &universal.Fragment{Provider: universal.ProviderOpenAIResponses, Raw: raw},
	}

	top := splitTop(raw)
	if top == nil {
		return body
	}

	body.Model = decodeModel(top)
	body.Temperature = decodeFloat(top, "temperature")
	body.MaxTokens = decodeInt(top, "max_output_tokens")
	body.TopP = decodeFloat(top, "top_p")
	body.Stream = decodeBool(top, "stream")
	if instructions := decodeString(top["instructions"]); instructions != "" {
		body.System = &universal.SystemPrompt{Text: instructions}
	}
	body.ProviderParams = passThrough(top, responsesKnown)
	body.ParamsProvider = universal.ProviderOpenAIResponses
	// parseTools appends synthetic keys into ProviderParams, so the
	// pass-through bag must already be in place.
	c.parseTools(body, top["tools"])
	body.ToolChoice = c.parseToolChoice(top["tool_choice"])

	inputRaw, ok := top["input"]
	if !ok {
		return body
	}

	// A bare-string input is shorthand for a single user text turn.
	if s := decodeString(inputRaw); s != "" {
		msg := universal.NewMessage(universal.RoleUser, universal.TextContent(s))
		tagMessage(&msg, universal.ProviderOpenAIResponses, 0)
		body.Messages = append(body.Messages, msg)
		return body
	}

	items := decodeArray(inputRaw)
	if items == nil {
		return body
	}

	for _, item := range items {
		m := decodeObject(item)
		if m == nil {
			continue
		}
		role := getString(m, "role")
		if role == "system" || role == "developer" {
			text := c.contentText(m["content"])
			if body.System.IsZero() {
				body.System = &universal.SystemPrompt{Text: text}
			} else {
				body.System.Text += "\n" + text
			}
			continue
		}
		msg := c.parseItem(m, len(body.Messages))
		msg.Original = &universal.Fragment{Provider: universal.ProviderOpenAIResponses, Raw: item}
		body.Messages = append(body.Messages, msg)
	}

	return body
}

// parseItem maps one input item to a universal message.
func (c *OpenAIResponsesCodec) parseItem(m map[string]any, index int) universal.Message {
	switch getString(m, "type") {
	case "function_call":
		msg := universal.NewMessage(universal.RoleAssistant, universal.Content{
			Type: universal.ContentToolCall,
			ToolCall: &universal.ToolCallData{
				ID:        getString(m, "call_id"),
				Name:      getString(m, "name"),
				Arguments: parseArguments(m["arguments"]),
			},
		})
		tagMessage(&msg, universal.ProviderOpenAIResponses, index)
		return msg
	case "function_call_output":
		callID := getString(m, "call_id")
		msg := universal.NewMessage(universal.RoleTool, universal.Content{
			Type: universal.ContentToolResult,
			ToolResult: &universal.ToolResultData{
				ToolCallID: callID,
				Result:     normalizeResult(m["output"]),
			},
		})
		tagMessage(&msg, universal.ProviderOpenAIResponses, index)
		msg.Metadata[universal.MetaToolCallID] = callID
		return msg
	case "message", "":
		role := universal.Role(getString(m, "role"))
		if role == "" {
			role = universal.RoleUser
		}
		msg := universal.NewMessage(role)
		tagMessage(&msg, universal.ProviderOpenAIResponses, index)
		msg.Content = c.parseContent(m["content"])
		return msg
	default:
		// Unmodeled item kinds (reasoning, built-in tool calls) degrade to a
		// structured-text rendering instead of being dropped.
		msg := universal.NewMessage(universal.RoleAssistant, universal.UnknownContent(m))
		tagMessage(&msg, universal.ProviderOpenAIResponses, index)
		return msg
	}
}

// parseContent maps string-or-parts item content.
func (c *OpenAIResponsesCodec) parseContent(content any) []universal.Content {
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
			block.Original = rawFragment(universal.ProviderOpenAIResponses, part)
			out = append(out, block)
		}
		return out
	default:
		return []universal.Content{universal.UnknownContent(content)}
	}
}

// parsePart maps one typed content part.
func (c *OpenAIResponsesCodec) parsePart(part map[string]any) universal.Content {
	switch getString(part, "type") {
	case "input_text", "output_text", "text":
		return universal.TextContent(getString(part, "text"))
	case "input_image":
		media := &universal.Media{Detail: getString(part, "detail")}
		url := getString(part, "image_url")
		if strings.HasPrefix(url, "data:") {
			media.MIMEType, media.Data = splitDataURI(url)
		} else {
			media.URL = url
		}
		if fileID := getString(part, "file_id"); fileID != "" {
			media.FileRef = fileID
		}
		return universal.Content{Type: universal.ContentImage, Media: media}
	case "input_file":
		return universal.Content{Type: universal.ContentDocument, Media: &universal.Media{
			FileRef: getString(part, "file_id"),
			Data:    getString(part, "file_data"),
		}}
	case "input_audio":
		audio, _ := part["input_audio"].(map[string]any)
		return universal.Content{Type: universal.ContentAudio, Media: &universal.Media{
			Data:     getString(audio, "data"),
			MIMEType: "audio/" + getString(audio, "format"),
		}}
	default:
		return universal.UnknownContent(part)
	}
}

// parseTools maps flat function tool definitions, preserving built-in tool
// declarations (web_search, file_search, ...) in provider params.
func (c *OpenAIResponsesCodec) parseTools(body *universal.Body, raw json.RawMessage) {
	items := decodeArray(raw)
	if items == nil {
		return
	}
	var builtins []any
	for _, item := range items {
		def := decodeObject(item)
		if def == nil {
			continue
		}
		if getString(def, "type") != "function" {
			builtins = append(builtins, json.RawMessage(item))
			continue
		}
		params, _ := def["parameters"].(map[string]any)
		body.Tools = append(body.Tools, universal.Tool{
			Name:        getString(def, "name"),
			Description: getString(def, "description"),
			Parameters:  params,
			Original:    &universal.Fragment{Provider: universal.ProviderOpenAIResponses, Raw: item},
		})
	}
	if len(builtins) > 0 {
		if body.ProviderParams == nil {
			body.ProviderParams = map[string]any{}
		}
		body.ProviderParams[paramBuiltinTools] = builtins
	}
}

// parseToolChoice maps "auto"/"none"/"required" or the flat named form.
func (c *OpenAIResponsesCodec) parseToolChoice(raw json.RawMessage) *universal.ToolChoice {
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
	if getString(obj, "type") == "function" {
		return &universal.ToolChoice{Mode: universal.ToolChoiceNamed, Name: getString(obj, "name")}
	}
	return nil
}

func (c *OpenAIResponsesCodec) contentText(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case []any:
		var sb strings.Builder
		for _, partAny := range v {
			if part, ok := partAny.(map[string]any); ok {
				sb.WriteString(getString(part, "text"))
			}
		}
		return sb.String()
	}
	return ""
}

// =============================================================================
// REVERSE - FromUniversal
// =============================================================================

// FromUniversal serializes a universal body into the Responses shape.
func (c *OpenAIResponsesCodec) FromUniversal(body *universal.Body) ([]byte, error) {
	if fidelity.CanReconstructExactly(body, universal.ProviderOpenAIResponses) {
		return body.Original.Raw, nil
	}

	out := map[string]any{"model": body.Model}

	sysTexts := systemOverflow(body)
	if !body.System.IsZero() {
		sysTexts = append([]string{body.SystemText()}, sysTexts...)
	}
	if len(sysTexts) > 0 {
		out["instructions"] = strings.Join(sysTexts, "\n")
	}

	input := []any{}
	for i := range body.Messages {
		m := &body.Messages[i]
		if m.Role == universal.RoleSystem || m.Role == universal.RoleDeveloper {
			continue
		}
		items, err := c.buildItems(m, i)
		if err != nil {
			return nil, err
		}
		input = append(input, items...)
	}
	out["input"] = input

	if tools, err := c.buildTools(body); err != nil {
		return nil, err
	} else if tools != nil {
		out["tools"] = tools
	}
	if tc := c.buildToolChoice(body.ToolChoice); tc != nil {
		out["tool_choice"] = tc
	}

	setIfFloat(out, "temperature", body.Temperature)
	setIfInt(out, "max_output_tokens", body.MaxTokens)
	setIfFloat(out, "top_p", body.TopP)
	if body.Stream != nil {
		out["stream"] = *body.Stream
	}

	emitParams(out, body, universal.ProviderOpenAIResponses)
	return json.Marshal(out)
}

// buildItems rebuilds one universal message as one or more input items:
// tool calls and results become their own typed items on this wire.
func (c *OpenAIResponsesCodec) buildItems(m *universal.Message, index int) ([]any, error) {
	if m.Original != nil && m.Original.Provider == universal.ProviderOpenAIResponses {
		frag := gjson.ParseBytes(m.Original.Raw)
		if !frag.IsObject() || (!frag.Get("role").Exists() && !frag.Get("type").Exists()) {
			return nil, fragmentErr(jsonField("input", index), "expected an item object with a role or type field")
		}
		return []any{json.RawMessage(m.Original.Raw)}, nil
	}

	var items []any
	var parts []any

	for j := range m.Content {
		block := &m.Content[j]
		switch block.Type {
		case universal.ContentToolCall:
			items = append(items, c.functionCallItem(block.ToolCall))
		case universal.ContentToolResult:
			items = append(items, map[string]any{
				"type":    "function_call_output",
				"call_id": block.ToolResult.ToolCallID,
				"output":  stringifyResult(block.ToolResult.Result),
			})
		default:
			if part := c.buildPart(block, m.Role); part != nil {
				parts = append(parts, part)
			}
		}
	}
	for i := range m.ToolCalls {
		items = append(items, c.functionCallItem(&m.ToolCalls[i]))
	}

	if len(parts) > 0 {
		role := "user"
		if m.Role == universal.RoleAssistant {
			role = "assistant"
		}
		items = append([]any{map[string]any{"type": "message", "role": role, "content": parts}}, items...)
	}
	return items, nil
}

func (c *OpenAIResponsesCodec) functionCallItem(call *universal.ToolCallData) map[string]any {
	args := call.Arguments
	if args == nil {
		args = map[string]any{}
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		encoded = []byte("{}")
	}
	return map[string]any{
		"type":      "function_call",
		"call_id":   call.ID,
		"name":      call.Name,
		"arguments": string(encoded),
	}
}

// buildPart rebuilds one content block as a typed part. Text direction
// (input_text vs output_text) follows the message role.
func (c *OpenAIResponsesCodec) buildPart(block *universal.Content, role universal.Role) map[string]any {
	if block.Original != nil && block.Original.Provider == universal.ProviderOpenAIResponses {
		if m := decodeObject(block.Original.Raw); m != nil {
			return m
		}
	}

	textType := "input_text"
	if role == universal.RoleAssistant {
		textType = "output_text"
	}

	switch block.Type {
	case universal.ContentText, universal.ContentUnknown:
		return map[string]any{"type": textType, "text": block.Text}
	case universal.ContentImage:
		part := map[string]any{"type": "input_image", "image_url": mediaURL(block.Media)}
		if block.Media != nil && block.Media.Detail != "" {
			part["detail"] = block.Media.Detail
		}
		return part
	case universal.ContentAudio:
		if block.Media == nil {
			return nil
		}
		return map[string]any{"type": "input_audio", "input_audio": map[string]any{
			"data":   block.Media.Data,
			"format": strings.TrimPrefix(block.Media.MIMEType, "audio/"),
		}}
	case universal.ContentDocument, universal.ContentVideo:
		part := map[string]any{"type": "input_file"}
		if block.Media != nil {
			if block.Media.FileRef != "" {
				part["file_id"] = block.Media.FileRef
			}
			if block.Media.Data != "" {
				part["file_data"] = block.Media.Data
			}
		}
		return part
	}
	return nil
}

// buildTools rebuilds flat function definitions plus preserved built-ins.
func (c *OpenAIResponsesCodec) buildTools(body *universal.Body) ([]any, error) {
	var out []any
	for i := range body.Tools {
		t := &body.Tools[i]
		if t.Original != nil && t.Original.Provider == universal.ProviderOpenAIResponses {
			frag := gjson.ParseBytes(t.Original.Raw)
			if !frag.IsObject() || !frag.Get("name").Exists() {
				return nil, fragmentErr(jsonField("tools", i), "expected an object with a name field")
			}
			out = append(out, json.RawMessage(t.Original.Raw))
			continue
		}
		def := map[string]any{"type": "function", "name": t.Name}
		if t.Description != "" {
			def["description"] = t.Description
		}
		if t.Parameters != nil {
			def["parameters"] = t.Parameters
		}
		out = append(out, def)
	}
	if builtins, ok := ownParam(body, universal.ProviderOpenAIResponses, paramBuiltinTools).([]any); ok {
		out = append(out, builtins...)
	}
	return out, nil
}

func (c *OpenAIResponsesCodec) buildToolChoice(tc *universal.ToolChoice) any {
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
		return map[string]any{"type": "function", "name": tc.Name}
	}
	return nil
}

var _ Codec = (*OpenAIResponsesCodec)(nil)
