package codec

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/llmwire/llmwire/internal/universal"
)

// splitTop parses a raw body into its top-level fields without committing to
// any vendor schema. Returns nil on anything that is not a JSON object.
func splitTop(raw []byte) map[string]json.RawMessage {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil
	}
	return top
}

// passThrough copies every top-level field not named in known into the
// provider-params bag, preserving the raw bytes.
func passThrough(top map[string]json.RawMessage, known map[string]bool) map[string]any {
	var params map[string]any
	for k, v := range top {
		if known[k] {
			continue
		}
		if params == nil {
			params = make(map[string]any)
		}
		params[k] = v
	}
	return params
}

// internalParams names the synthetic keys codecs stash in the provider-params
// bag. They never appear as top-level wire fields.
var internalParams = map[string]bool{
	paramBuiltinTools:     true,
	paramGenerationConfig: true,
}

// emitParams writes preserved provider params back into an outgoing body map.
// Params parsed off a different vendor's wire stay behind (they would be
// invalid fields on the target shape), synthetic keys are stripped, and
// explicitly rebuilt fields win over stale preserved copies.
func emitParams(out map[string]any, body *universal.Body, target universal.Provider) {
	if !paramsFor(body, target) {
		return
	}
	for k, v := range body.ProviderParams {
		if internalParams[k] {
			continue
		}
		if _, taken := out[k]; !taken {
			out[k] = v
		}
	}
}

// paramsFor reports whether the preserved params belong on the target wire.
// An unknown origin means the body was built by hand rather than parsed, so
// its params are taken at face value.
func paramsFor(body *universal.Body, target universal.Provider) bool {
	return body.ParamsProvider == universal.ProviderUnknown || body.ParamsProvider == target
}

// ownParam reads a codec-synthesized provider-param key, honoring the bag's
// origin so one vendor's synthetic entries never feed another's rebuild.
func ownParam(body *universal.Body, target universal.Provider, key string) any {
	if !paramsFor(body, target) {
		return nil
	}
	return body.ProviderParams[key]
}

// decodeString decodes a raw field as a JSON string, empty on mismatch.
func decodeString(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return ""
}

// decodeModel returns the model field or the default sentinel.
func decodeModel(top map[string]json.RawMessage) string {
	if raw, ok := top["model"]; ok {
		if m := decodeString(raw); m != "" {
			return m
		}
	}
	return universal.DefaultModel
}

// decodeFloat decodes an optional numeric field.
func decodeFloat(top map[string]json.RawMessage, key string) *float64 {
	raw, ok := top[key]
	if !ok {
		return nil
	}
	var f float64
	if json.Unmarshal(raw, &f) != nil {
		return nil
	}
	return &f
}

// decodeInt decodes an optional integer field.
func decodeInt(top map[string]json.RawMessage, key string) *int {
	raw, ok := top[key]
	if !ok {
		return nil
	}
	var n int
	if json.Unmarshal(raw, &n) != nil {
		return nil
	}
	return &n
}

// decodeBool decodes an optional boolean field.
func decodeBool(top map[string]json.RawMessage, key string) *bool {
	raw, ok := top[key]
	if !ok {
		return nil
	}
	var b bool
	if json.Unmarshal(raw, &b) != nil {
		return nil
	}
	return &b
}

// decodeArray decodes a raw field as a JSON array of loose items.
// Returns nil (degrade, never fail) when the field is absent or not an array.
func decodeArray(raw json.RawMessage) []json.RawMessage {
	var items []json.RawMessage
	if json.Unmarshal(raw, &items) != nil {
		return nil
	}
	return items
}

// decodeObject decodes a raw field as a loose JSON object.
func decodeObject(raw json.RawMessage) map[string]any {
	var m map[string]any
	if json.Unmarshal(raw, &m) != nil {
		return nil
	}
	return m
}

// getString reads a string value from a loose object.
func getString(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// parseArguments normalizes a tool-call argument payload into a structured
// object. Wire formats that JSON-encode arguments as a string are decoded;
// anything unparseable degrades to an empty object.
func parseArguments(v any) map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return t
	case string:
		var m map[string]any
		if json.Unmarshal([]byte(t), &m) == nil && m != nil {
			return m
		}
	case json.RawMessage:
		var m map[string]any
		if json.Unmarshal(t, &m) == nil && m != nil {
			return m
		}
	}
	return map[string]any{}
}

// stringifyResult renders a tool result as a string for wire shapes that
// require string-encoded results. Strings pass through unchanged.
func stringifyResult(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(raw)
}

// structuredResult renders a tool result as an object for wire shapes that
// require structured results. Scalars are wrapped under a "result" key.
func structuredResult(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	if s, ok := v.(string); ok {
		var m map[string]any
		if json.Unmarshal([]byte(s), &m) == nil && m != nil {
			return m
		}
	}
	return map[string]any{"result": v}
}

// normalizeResult lifts a string-encoded tool result into a structured value
// when it parses as JSON; anything else passes through unchanged.
func normalizeResult(v any) any {
	if s, ok := v.(string); ok {
		var parsed any
		if json.Unmarshal([]byte(s), &parsed) == nil {
			if _, isObj := parsed.(map[string]any); isObj {
				return parsed
			}
			if _, isArr := parsed.([]any); isArr {
				return parsed
			}
		}
	}
	return v
}

// splitDataURI breaks "data:<mime>;base64,<payload>" into its parts.
func splitDataURI(uri string) (mime, data string) {
	rest := strings.TrimPrefix(uri, "data:")
	if i := strings.Index(rest, ";base64,"); i >= 0 {
		return rest[:i], rest[i+len(";base64,"):]
	}
	if i := strings.Index(rest, ","); i >= 0 {
		return rest[:i], rest[i+1:]
	}
	return "", rest
}

// mediaURL resolves the best wire URL for a media block: inline URL first,
// then a data URI built from the base64 payload, then the file reference.
func mediaURL(m *universal.Media) string {
	if m == nil {
		return ""
	}
	if m.URL != "" {
		return m.URL
	}
	if m.Data != "" {
		return "data:" + m.MIMEType + ";base64," + m.Data
	}
	return m.FileRef
}

// setIfFloat / setIfInt write optional scalars into an outgoing body map.
func setIfFloat(out map[string]any, key string, v *float64) {
	if v != nil {
		out[key] = *v
	}
}

func setIfInt(out map[string]any, key string, v *int) {
	if v != nil {
		out[key] = *v
	}
}

// mediaKind infers the content kind from a MIME type.
func mediaKind(mime string) universal.ContentType {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return universal.ContentImage
	case strings.HasPrefix(mime, "audio/"):
		return universal.ContentAudio
	case strings.HasPrefix(mime, "video/"):
		return universal.ContentVideo
	default:
		return universal.ContentDocument
	}
}

// jsonField names a collection element for error messages.
func jsonField(collection string, index int) string {
	return fmt.Sprintf("%s[%d]", collection, index)
}

// roleForOpenAI maps universal roles onto the chat wire's role set.
func roleForOpenAI(r universal.Role) string {
	switch r {
	case universal.RoleTool:
		return "tool"
	case universal.RoleAssistant:
		return "assistant"
	case universal.RoleDeveloper:
		return "developer"
	case universal.RoleSystem:
		return "system"
	default:
		return "user"
	}
}

// systemOverflow collects text from system-role messages so codecs with a
// dedicated system field can merge them instead of emitting them inline.
func systemOverflow(body *universal.Body) []string {
	var texts []string
	for i := range body.Messages {
		m := &body.Messages[i]
		if m.Role == universal.RoleSystem || m.Role == universal.RoleDeveloper {
			if t := m.Text(); t != "" {
				texts = append(texts, t)
			}
		}
	}
	return texts
}

// openAIToolCall renders a normalized invocation in the message-level
// tool_calls shape, re-encoding arguments as a JSON string.
func openAIToolCall(call *universal.ToolCallData) map[string]any {
	args := call.Arguments
	if args == nil {
		args = map[string]any{}
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		encoded = []byte("{}")
	}
	return map[string]any{
		"id":   call.ID,
		"type": "function",
		"function": map[string]any{
			"name":      call.Name,
			"arguments": string(encoded),
		},
	}
}

// rawFragment re-encodes an already-parsed item as a fragment. The bytes are
// a canonical re-marshal of the parsed form, not the original wire bytes;
// they are only ever replayed onto the same vendor's shape, where the two
// are equivalent JSON.
func rawFragment(p universal.Provider, item any) *universal.Fragment {
	raw, err := json.Marshal(item)
	if err != nil {
		return nil
	}
	return &universal.Fragment{Provider: p, Raw: raw}
}

// tagMessage stamps origin metadata on a freshly parsed message.
func tagMessage(m *universal.Message, p universal.Provider, index int) {
	if m.Metadata == nil {
		m.Metadata = map[string]any{}
	}
	m.Metadata[universal.MetaOriginProvider] = string(p)
	m.Metadata[universal.MetaOriginalIndex] = index
}
