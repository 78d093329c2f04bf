package codec

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/llmwire/llmwire/internal/fidelity"
	"github.com/llmwire/llmwire/internal/universal"
)

// paramBuiltinTools is the provider-params key holding vendor built-in tool
// declarations (entries in the tools array that are not plain function
// definitions). Written by the Gemini and Responses codecs, read back by the
// same codec on output.
const paramBuiltinTools = "builtin_tools"

// paramGenerationConfig holds the generationConfig fields the universal model
// does not natively carry. Written and read only by the Gemini codec.
const paramGenerationConfig = "generation_config_extra"

// GeminiCodec handles the Gemini generateContent wire shape: contents[] with
// user/model roles and parts[], functionCall/functionResponse tool parts with
// structured (never string-encoded) payloads, and generationConfig knobs.
type GeminiCodec struct{}

// NewGeminiCodec creates the Gemini codec.
func NewGeminiCodec() *GeminiCodec {
	return &GeminiCodec{}
}

// Name returns the codec identifier.
func (c *GeminiCodec) Name() string { return "gemini" }

// Provider returns the provider tag.
func (c *GeminiCodec) Provider() universal.Provider { return universal.ProviderGemini }

// geminiKnown lists consumed top-level fields. safetySettings and
// cachedContent travel through provider params untouched.
var geminiKnown = map[string]bool{
	"contents":          true,
	"systemInstruction": true,
	"generationConfig":  true,
	"tools":             true,
	"toolConfig":        true,
	"model":             true,
}

// =============================================================================
// FORWARD - ToUniversal
// =============================================================================

// ToUniversal parses a generateContent body.
func (c *GeminiCodec) ToUniversal(raw []byte) *universal.Body {
	body := &universal.Body{
		Provider: universal.ProviderGemini,
		Model:    universal.DefaultModel,
		Messages: []universal.Message{},
		// Stored up front so even a degraded parse round-trips verbatim.
		Original: &universal.Fragment{Provider: universal.ProviderGemini, Raw: raw},
	}

	top := splitTop(raw)
	if top == nil {
		return body
	}

	body.Model = decodeModel(top)
	body.System = c.parseSystem(top["systemInstruction"])
	body.ToolChoice = c.parseToolConfig(top["toolConfig"])
	body.ProviderParams = passThrough(top, geminiKnown)
	body.ParamsProvider = universal.ProviderGemini
	c.parseGenerationConfig(body, top["generationConfig"])
	c.parseTools(body, top["tools"])

	items := decodeArray(top["contents"])
	if items == nil {
		return body
	}

	for _, item := range items {
		content := decodeObject(item)
		if content == nil {
			continue
		}
		role := universal.RoleUser
		if getString(content, "role") == "model" {
			role = universal.RoleAssistant
		}
		msg := universal.NewMessage(role)
		tagMessage(&msg, universal.ProviderGemini, len(body.Messages))
		if parts, ok := content["parts"].([]any); ok {
			msg.Content = c.parseParts(parts)
		}
		msg.Original = &universal.Fragment{Provider: universal.ProviderGemini, Raw: item}
		body.Messages = append(body.Messages, msg)
	}

	return body
}

// parseSystem maps systemInstruction.parts[].text.
func (c *GeminiCodec) parseSystem(raw json.RawMessage) *universal.SystemPrompt {
	obj := decodeObject(raw)
	if obj == nil {
		return nil
	}
	parts, _ := obj["parts"].([]any)
	var sysParts []universal.SystemPart
	for _, partAny := range parts {
		if part, ok := partAny.(map[string]any); ok {
			if text := getString(part, "text"); text != "" {
				sysParts = append(sysParts, universal.SystemPart{Text: text})
			}
		}
	}
	switch len(sysParts) {
	case 0:
		return nil
	case 1:
		return &universal.SystemPrompt{Text: sysParts[0].Text}
	default:
		return &universal.SystemPrompt{Parts: sysParts}
	}
}

// parseGenerationConfig lifts the three modeled knobs and preserves the rest.
func (c *GeminiCodec) parseGenerationConfig(body *universal.Body, raw json.RawMessage) {
	cfg := decodeObject(raw)
	if cfg == nil {
		return
	}
	if t, ok := cfg["temperature"].(float64); ok {
		body.Temperature = &t
	}
	if p, ok := cfg["topP"].(float64); ok {
		body.TopP = &p
	}
	if mt, ok := cfg["maxOutputTokens"].(float64); ok {
		n := int(mt)
		body.MaxTokens = &n
	}

	extra := map[string]any{}
	for k, v := range cfg {
		switch k {
		case "temperature", "topP", "maxOutputTokens":
		default:
			extra[k] = v
		}
	}
	if len(extra) > 0 {
		if body.ProviderParams == nil {
			body.ProviderParams = map[string]any{}
		}
		body.ProviderParams[paramGenerationConfig] = extra
	}
}

// parseParts maps the parts array of one content item.
func (c *GeminiCodec) parseParts(parts []any) []universal.Content {
	var out []universal.Content
	for _, partAny := range parts {
		part, ok := partAny.(map[string]any)
		if !ok {
			out = append(out, universal.UnknownContent(partAny))
			continue
		}
		block := c.parsePart(part)
		block.Original = rawFragment(universal.ProviderGemini, part)
		out = append(out, block)
	}
	return out
}

// parsePart maps one part to the universal union. functionCall parts carry
// no id on this wire, so one is synthesized for the universal form.
func (c *GeminiCodec) parsePart(part map[string]any) universal.Content {
	if _, ok := part["text"]; ok {
		return universal.TextContent(getString(part, "text"))
	}
	if inline, ok := part["inlineData"].(map[string]any); ok {
		return universal.Content{Type: mediaKind(getString(inline, "mimeType")), Media: &universal.Media{
			MIMEType: getString(inline, "mimeType"),
			Data:     getString(inline, "data"),
		}}
	}
	if file, ok := part["fileData"].(map[string]any); ok {
		return universal.Content{Type: mediaKind(getString(file, "mimeType")), Media: &universal.Media{
			MIMEType: getString(file, "mimeType"),
			FileRef:  getString(file, "fileUri"),
		}}
	}
	if call, ok := part["functionCall"].(map[string]any); ok {
		return universal.Content{Type: universal.ContentToolCall, ToolCall: &universal.ToolCallData{
			ID:        uuid.NewString(),
			Name:      getString(call, "name"),
			Arguments: parseArguments(call["args"]),
		}}
	}
	if resp, ok := part["functionResponse"].(map[string]any); ok {
		return universal.Content{Type: universal.ContentToolResult, ToolResult: &universal.ToolResultData{
			Name:   getString(resp, "name"),
			Result: resp["response"],
		}}
	}
	return universal.UnknownContent(part)
}

// parseTools maps tools[].functionDeclarations, preserving built-in tool
// entries (googleSearch, codeExecution, ...) in provider params.
// A non-array tools field degrades to no tools, never an error.
func (c *GeminiCodec) parseTools(body *universal.Body, raw json.RawMessage) {
	items := decodeArray(raw)
	if items == nil {
		return
	}
	var builtins []any
	for _, item := range items {
		entry := decodeObject(item)
		if entry == nil {
			continue
		}
		decls, ok := entry["functionDeclarations"].([]any)
		if !ok {
			builtins = append(builtins, json.RawMessage(item))
			continue
		}
		for _, declAny := range decls {
			decl, ok := declAny.(map[string]any)
			if !ok {
				continue
			}
			params, _ := decl["parameters"].(map[string]any)
			body.Tools = append(body.Tools, universal.Tool{
				Name:        getString(decl, "name"),
				Description: getString(decl, "description"),
				Parameters:  params,
				Original:    rawFragment(universal.ProviderGemini, decl),
			})
		}
	}
	if len(builtins) > 0 {
		if body.ProviderParams == nil {
			body.ProviderParams = map[string]any{}
		}
		body.ProviderParams[paramBuiltinTools] = builtins
	}
}

// parseToolConfig maps toolConfig.functionCallingConfig.
func (c *GeminiCodec) parseToolConfig(raw json.RawMessage) *universal.ToolChoice {
	obj := decodeObject(raw)
	if obj == nil {
		return nil
	}
	fcc, _ := obj["functionCallingConfig"].(map[string]any)
	if fcc == nil {
		return nil
	}
	allowed, _ := fcc["allowedFunctionNames"].([]any)
	switch getString(fcc, "mode") {
	case "AUTO":
		return &universal.ToolChoice{Mode: universal.ToolChoiceAuto}
	case "NONE":
		return &universal.ToolChoice{Mode: universal.ToolChoiceNone}
	case "ANY":
		if len(allowed) == 1 {
			name, _ := allowed[0].(string)
			return &universal.ToolChoice{Mode: universal.ToolChoiceNamed, Name: name}
		}
		return &universal.ToolChoice{Mode: universal.ToolChoiceRequired}
	}
	return nil
}

// =============================================================================
// REVERSE - FromUniversal
// =============================================================================

// FromUniversal serializes a universal body into the generateContent shape.
func (c *GeminiCodec) FromUniversal(body *universal.Body) ([]byte, error) {
	if fidelity.CanReconstructExactly(body, universal.ProviderGemini) {
		return body.Original.Raw, nil
	}

	out := map[string]any{}

	overflow := systemOverflow(body)
	if !body.System.IsZero() || len(overflow) > 0 {
		parts := []any{}
		if sys := body.System; !sys.IsZero() {
			if len(sys.Parts) > 0 {
				for _, p := range sys.Parts {
					parts = append(parts, map[string]any{"text": p.Text})
				}
			} else {
				parts = append(parts, map[string]any{"text": sys.Text})
			}
		}
		for _, t := range overflow {
			parts = append(parts, map[string]any{"text": t})
		}
		out["systemInstruction"] = map[string]any{"parts": parts}
	}

	contents := []any{}
	for i := range body.Messages {
		m := &body.Messages[i]
		if m.Role == universal.RoleSystem || m.Role == universal.RoleDeveloper {
			continue
		}
		wire, err := c.buildContent(m, i)
		if err != nil {
			return nil, err
		}
		contents = append(contents, wire)
	}
	out["contents"] = contents

	if cfg := c.buildGenerationConfig(body); len(cfg) > 0 {
		out["generationConfig"] = cfg
	}
	if tools := c.buildTools(body); tools != nil {
		out["tools"] = tools
	}
	if tc := c.buildToolConfig(body.ToolChoice); tc != nil {
		out["toolConfig"] = tc
	}

	emitParams(out, body, universal.ProviderGemini)

	return json.Marshal(out)
}

// buildContent rebuilds one message as a contents[] item.
func (c *GeminiCodec) buildContent(m *universal.Message, index int) (any, error) {
	if m.Original != nil && m.Original.Provider == universal.ProviderGemini {
		frag := gjson.ParseBytes(m.Original.Raw)
		if !frag.IsObject() || !frag.Get("parts").IsArray() {
			return nil, fragmentErr(jsonField("contents", index), "expected an object with a parts array")
		}
		return json.RawMessage(m.Original.Raw), nil
	}

	role := "user"
	if m.Role == universal.RoleAssistant {
		role = "model"
	}

	parts := []any{}
	for j := range m.Content {
		part, err := c.buildPart(&m.Content[j], index, j)
		if err != nil {
			return nil, err
		}
		if part != nil {
			parts = append(parts, part)
		}
	}
	for i := range m.ToolCalls {
		call := &m.ToolCalls[i]
		args := call.Arguments
		if args == nil {
			args = map[string]any{}
		}
		parts = append(parts, map[string]any{
			"functionCall": map[string]any{"name": call.Name, "args": args},
		})
	}

	return map[string]any{"role": role, "parts": parts}, nil
}

// buildPart rebuilds one content block as a part. functionResponse payloads
// stay structured objects on this wire, never string-encoded.
func (c *GeminiCodec) buildPart(block *universal.Content, msgIdx, blockIdx int) (any, error) {
	if block.Original != nil && block.Original.Provider == universal.ProviderGemini {
		if !gjson.ParseBytes(block.Original.Raw).IsObject() {
			return nil, fragmentErr(
				jsonField(jsonField("contents", msgIdx)+".parts", blockIdx),
				"expected a part object")
		}
		return json.RawMessage(block.Original.Raw), nil
	}

	switch block.Type {
	case universal.ContentText, universal.ContentUnknown:
		return map[string]any{"text": block.Text}, nil
	case universal.ContentImage, universal.ContentAudio, universal.ContentVideo, universal.ContentDocument:
		if block.Media == nil {
			return nil, nil
		}
		if block.Media.Data != "" {
			return map[string]any{"inlineData": map[string]any{
				"mimeType": block.Media.MIMEType,
				"data":     block.Media.Data,
			}}, nil
		}
		uri := block.Media.FileRef
		if uri == "" {
			uri = block.Media.URL
		}
		return map[string]any{"fileData": map[string]any{
			"mimeType": block.Media.MIMEType,
			"fileUri":  uri,
		}}, nil
	case universal.ContentToolCall:
		args := block.ToolCall.Arguments
		if args == nil {
			args = map[string]any{}
		}
		return map[string]any{
			"functionCall": map[string]any{"name": block.ToolCall.Name, "args": args},
		}, nil
	case universal.ContentToolResult:
		return map[string]any{
			"functionResponse": map[string]any{
				"name":     block.ToolResult.Name,
				"response": structuredResult(block.ToolResult.Result),
			},
		}, nil
	}
	return nil, nil
}

// buildGenerationConfig merges modeled knobs with preserved extras.
func (c *GeminiCodec) buildGenerationConfig(body *universal.Body) map[string]any {
	cfg := map[string]any{}
	if extra, ok := ownParam(body, universal.ProviderGemini, paramGenerationConfig).(map[string]any); ok {
		for k, v := range extra {
			cfg[k] = v
		}
	}
	if body.Temperature != nil {
		cfg["temperature"] = *body.Temperature
	}
	if body.TopP != nil {
		cfg["topP"] = *body.TopP
	}
	if body.MaxTokens != nil {
		cfg["maxOutputTokens"] = *body.MaxTokens
	}
	return cfg
}

// buildTools rebuilds functionDeclarations plus preserved built-in entries.
func (c *GeminiCodec) buildTools(body *universal.Body) []any {
	var out []any
	if len(body.Tools) > 0 {
		decls := make([]any, 0, len(body.Tools))
		for i := range body.Tools {
			t := &body.Tools[i]
			if t.Original != nil && t.Original.Provider == universal.ProviderGemini {
				if gjson.ParseBytes(t.Original.Raw).IsObject() {
					decls = append(decls, json.RawMessage(t.Original.Raw))
					continue
				}
			}
			decl := map[string]any{"name": t.Name}
			if t.Description != "" {
				decl["description"] = t.Description
			}
			if t.Parameters != nil {
				decl["parameters"] = t.Parameters
			}
			decls = append(decls, decl)
		}
		out = append(out, map[string]any{"functionDeclarations": decls})
	}
	if builtins, ok := ownParam(body, universal.ProviderGemini, paramBuiltinTools).([]any); ok {
		out = append(out, builtins...)
	}
	return out
}

func (c *GeminiCodec) buildToolConfig(tc *universal.ToolChoice) map[string]any {
	if tc == nil {
		return nil
	}
	fcc := map[string]any{}
	switch tc.Mode {
	case universal.ToolChoiceAuto:
		fcc["mode"] = "AUTO"
	case universal.ToolChoiceNone:
		fcc["mode"] = "NONE"
	case universal.ToolChoiceRequired:
		fcc["mode"] = "ANY"
	case universal.ToolChoiceNamed:
		fcc["mode"] = "ANY"
		fcc["allowedFunctionNames"] = []any{tc.Name}
	default:
		return nil
	}
	return map[string]any{"functionCallingConfig": fcc}
}

var _ Codec = (*GeminiCodec)(nil)
