// Package fidelity decides whether a stored original payload can be returned
// verbatim instead of rebuilt, and scores how much original structure a lossy
// rebuild would keep.
//
// DESIGN: A codec's ToUniversal stores the complete raw payload on the body.
// Returning it unchanged is only legal when the target vendor matches the
// origin AND nothing was mutated after parsing. Mutation is detected
// structurally: the message count must still match the wire body, every
// message must carry its original position index, and no message may carry
// the context-injection marker.
package fidelity

import (
	"github.com/tidwall/gjson"

	"github.com/llmwire/llmwire/internal/universal"
)

// Quality score anchors. Exact reconstruction is always 100; lossy rebuilds
// score between base and cap depending on how many entities still carry a
// matching original fragment.
const (
	exactScore = 100
	baseScore  = 50
	capScore   = 95
)

// messagesPath returns the gjson path of the message collection in a
// vendor's wire shape.
func messagesPath(p universal.Provider) string {
	switch p {
	case universal.ProviderGemini:
		return "contents"
	case universal.ProviderOpenAIResponses:
		return "input"
	default:
		return "messages"
	}
}

// CanReconstructExactly reports whether the stored original raw payload can
// be returned verbatim for the target vendor.
func CanReconstructExactly(b *universal.Body, target universal.Provider) bool {
	if b == nil || b.Original == nil || b.Original.Provider != target {
		return false
	}
	return !modified(b)
}

// modified reports whether the body shows any sign of post-parse mutation.
func modified(b *universal.Body) bool {
	col := gjson.GetBytes(b.Original.Raw, messagesPath(b.Original.Provider))

	// OpenAI shapes embed system turns inline in the message collection; the
	// codec splits them out into Body.System, so they don't count here.
	inlineSystem := b.Original.Provider == universal.ProviderOpenAI ||
		b.Original.Provider == universal.ProviderOpenAIResponses

	wireCount := 0
	switch {
	case col.IsArray():
		for _, el := range col.Array() {
			role := el.Get("role").String()
			if inlineSystem && (role == "system" || role == "developer") {
				continue
			}
			wireCount++
		}
	case col.Type == gjson.String:
		// A bare-string input collection parses to a single message.
		wireCount = 1
	}

	if len(b.Messages) != wireCount {
		return true
	}

	for _, m := range b.Messages {
		if m.Metadata == nil {
			return true
		}
		if _, ok := m.Metadata[universal.MetaOriginalIndex]; !ok {
			return true
		}
		if _, injected := m.Metadata[universal.MetaInjected]; injected {
			return true
		}
	}
	return false
}

// Quality estimates reconstruction fidelity for the target vendor on a 0-100
// scale. 100 means verified exact; anything below means a rebuild.
func Quality(b *universal.Body, target universal.Provider) int {
	if CanReconstructExactly(b, target) {
		return exactScore
	}
	if b == nil {
		return 0
	}

	total := 0
	matching := 0

	count := func(f *universal.Fragment) {
		total++
		if f != nil && f.Provider == target {
			matching++
		}
	}

	for i := range b.Messages {
		count(b.Messages[i].Original)
		for j := range b.Messages[i].Content {
			count(b.Messages[i].Content[j].Original)
		}
	}
	for i := range b.Tools {
		count(b.Tools[i].Original)
	}

	if total == 0 {
		return baseScore
	}

	score := baseScore + (capScore-baseScore)*matching/total
	if score > capScore {
		score = capScore
	}
	return score
}
