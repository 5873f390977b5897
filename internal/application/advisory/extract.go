package advisory

import (
	"errors"
	"strings"

	json "github.com/goccy/go-json"
)

const fence = "```"

var errNotObject = errors.New("payload is not a JSON object")

// ExtractPayload pulls the JSON payload out of provider text. When the
// text contains a fenced block, the block body is returned without its
// language tag; otherwise the trimmed text is returned as-is. ok is false
// when nothing is left.
func ExtractPayload(text string) (payload string, ok bool) {
	text = strings.TrimSpace(text)

	start := strings.Index(text, fence)
	if start < 0 {
		return text, text != ""
	}

	body := stripLanguageTag(text[start+len(fence):])
	if end := strings.Index(body, fence); end >= 0 {
		body = body[:end]
	}

	payload = strings.TrimSpace(body)
	return payload, payload != ""
}

// stripLanguageTag drops a leading info string such as "json" when it is
// followed by whitespace or the start of the payload.
func stripLanguageTag(s string) string {
	i := 0
	for i < len(s) && isTagByte(s[i]) {
		i++
	}
	if i == 0 {
		return s
	}
	if i == len(s) {
		return ""
	}
	switch s[i] {
	case ' ', '\t', '\r', '\n', '{', '[':
		return s[i:]
	}
	return s
}

func isTagByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' || c == '-' || c == '+'
}

// ParseObject strictly decodes payload as a single JSON object.
func ParseObject(payload string) (map[string]any, error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, errNotObject
	}
	return fields, nil
}
