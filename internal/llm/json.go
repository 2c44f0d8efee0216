package llm

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoJSON is returned when a reply carries no parsable JSON.
var ErrNoJSON = errors.New("no json in llm reply")

var (
	reJSONFence = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
	reBareFence = regexp.MustCompile("(?s)```\\s*(.*?)\\s*```")
)

// ExtractJSON pulls the JSON payload out of a model reply. It tries a
// ```json fence, a bare fence and the whole text, then the first value that
// decodes from any '[' or '{' offset.
func ExtractJSON(text string) (json.RawMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrNoJSON
	}

	candidates := make([]string, 0, 3)
	if m := reJSONFence.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, m[1])
	}
	if m := reBareFence.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, m[1])
	}
	candidates = append(candidates, text)

	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c != "" && json.Valid([]byte(c)) {
			return json.RawMessage(c), nil
		}
	}
	return firstValue(text)
}

func firstValue(text string) (json.RawMessage, error) {
	for i := 0; i < len(text); i++ {
		if text[i] != '{' && text[i] != '[' {
			continue
		}
		var raw json.RawMessage
		if err := json.NewDecoder(strings.NewReader(text[i:])).Decode(&raw); err == nil {
			return raw, nil
		}
	}
	return nil, ErrNoJSON
}
