package universal

import "encoding/json"

// ContentType discriminates the Content union.
type ContentType string

const (
	ContentText       ContentType = "text"
	ContentImage      ContentType = "image"
	ContentAudio      ContentType = "audio"
	ContentVideo      ContentType = "video"
	ContentDocument   ContentType = "document"
	ContentToolCall   ContentType = "tool_call"
	ContentToolResult ContentType = "tool_result"
	// ContentUnknown is the fallback for wire content kinds this version does
	// not model. Text carries a structured-text rendering of the original
	// item so nothing is silently dropped.
	ContentUnknown ContentType = "unknown"
)

// Media describes image/audio/video/document payloads. Any combination of
// fields may be set depending on how the vendor delivered the media.
type Media struct {
	URL      string `json:"url,omitempty"`
	Data     string `json:"data,omitempty"` // base64 payload
	MIMEType string `json:"mime_type,omitempty"`
	FileRef  string `json:"file_ref,omitempty"` // remote file reference
	Detail   string `json:"detail,omitempty"`   // display-detail hint
}

// ToolCallData is a normalized tool invocation. Arguments is always a parsed
// object; string-encoded argument payloads are a wire artifact and are
// decoded by the codec.
type ToolCallData struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolResultData is a normalized tool outcome fed back to the model.
type ToolResultData struct {
	ToolCallID string `json:"tool_call_id"`
	Name       string `json:"name,omitempty"`
	Result     any    `json:"result"`
	Error      string `json:"error,omitempty"`
}

// Content is one block of message content, a tagged union over Type.
// Exactly one of the payload fields matching Type is populated.
type Content struct {
	Type       ContentType     `json:"type"`
	Text       string          `json:"text,omitempty"`
	Media      *Media          `json:"media,omitempty"`
	ToolCall   *ToolCallData   `json:"tool_call,omitempty"`
	ToolResult *ToolResultData `json:"tool_result,omitempty"`
	Original   *Fragment       `json:"-"`
}

// TextContent builds a plain text block.
func TextContent(text string) Content {
	return Content{Type: ContentText, Text: text}
}

// UnknownContent renders an unrecognized wire item into a fallback block.
// The rendering is the item's JSON form so the information survives a
// cross-vendor trip as text.
func UnknownContent(item any) Content {
	raw, err := json.Marshal(item)
	if err != nil {
		return Content{Type: ContentUnknown, Text: "<unrenderable content>"}
	}
	return Content{Type: ContentUnknown, Text: string(raw)}
}
