package keywords

import (
	"encoding/json"
	"regexp"
	"strings"
)

// ParseResult is the outcome of decoding a model response. It is either
// Parsed or Malformed.
type ParseResult interface {
	isParseResult()
}

// Parsed holds the names decoded from a JSON array response.
type Parsed struct {
	Names []string
}

// Malformed holds a response that could not be read as a JSON array.
type Malformed struct {
	Raw string
}

func (Parsed) isParseResult()    {}
func (Malformed) isParseResult() {}

var jsonArraySpan = regexp.MustCompile(`(?s)\[.*\]`)

// ParseResponse decodes a model response that should be a JSON array of
// strings. The trimmed response is parsed directly first; if that fails the
// outermost [...] span is parsed instead, which recovers arrays wrapped in
// prose or markdown code fences. Non-string elements are dropped.
func ParseResponse(raw string) ParseResult {
	trimmed := strings.TrimSpace(raw)

	var value any
	if err := json.Unmarshal([]byte(trimmed), &value); err != nil {
		span := jsonArraySpan.FindString(trimmed)
		if span == "" {
			return Malformed{Raw: raw}
		}
		if err := json.Unmarshal([]byte(span), &value); err != nil {
			return Malformed{Raw: raw}
		}
	}

	items, ok := value.([]any)
	if !ok {
		return Malformed{Raw: raw}
	}

	names := make([]string, 0, len(items))
	for _, item := range items {
		if name, ok := item.(string); ok {
			if name = strings.TrimSpace(name); name != "" {
				names = append(names, name)
			}
		}
	}
	return Parsed{Names: names}
}

// Candidates returns the names of a Parsed result and an empty list otherwise.
func Candidates(result ParseResult) []string {
	if parsed, ok := result.(Parsed); ok && parsed.Names != nil {
		return parsed.Names
	}
	return []string{}
}
