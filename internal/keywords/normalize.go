// Package keywords derives candidate drug names from noisy OCR text.
//
// Two strategies produce candidates: a heuristic tokenizer (ExtractHeuristic)
// and a language-model extractor (AIExtractor). Their outputs are merged
// AI-first and passed through Normalize, which yields the final keyword list
// used to query the drug catalog.
package keywords

import (
	"regexp"
	"strings"
	"unicode"
)

// MaxKeywords is the maximum number of normalized keywords kept per image.
const MaxKeywords = 5

var disallowedChars = regexp.MustCompile(`[^A-Za-z0-9\s-]`)

// Normalize strips every candidate down to letters, digits, whitespace and
// hyphens, converts it to Title Case and drops case-insensitive duplicates,
// keeping the first occurrence. At most MaxKeywords entries are returned.
//
// Normalize is pure and idempotent. The returned slice is never nil.
func Normalize(candidates []string) []string {
	keywords := make([]string, 0, MaxKeywords)
	seen := make(map[string]struct{}, len(candidates))

	for _, candidate := range candidates {
		cleaned := strings.TrimSpace(disallowedChars.ReplaceAllString(foldSpace(candidate), ""))
		if cleaned == "" {
			continue
		}

		titled := titleCase(cleaned)
		key := strings.ToLower(titled)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		keywords = append(keywords, titled)
		if len(keywords) == MaxKeywords {
			break
		}
	}

	return keywords
}

// foldSpace maps Unicode white space such as U+00A0 to an ASCII space, since
// RE2's \s only matches ASCII white space.
func foldSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		return r
	}, s)
}

// titleCase upper-cases the first letter of every whitespace-delimited segment
// and lower-cases the rest. Runs of whitespace collapse to a single space.
func titleCase(s string) string {
	segments := strings.Fields(s)
	for i, segment := range segments {
		segments[i] = strings.ToUpper(segment[:1]) + strings.ToLower(segment[1:])
	}
	return strings.Join(segments, " ")
}
