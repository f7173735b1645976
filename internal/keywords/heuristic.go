package keywords

import (
	"regexp"
	"unicode"
)

const minTokenLength = 3

var (
	tokenSeparators = regexp.MustCompile(`[\s,.;:(){}\[\]/\\]+`)
	tokenPattern    = regexp.MustCompile(`^[A-Za-z0-9-]+$`)
)

// ExtractHeuristic splits OCR text into tokens and returns the ones that look
// like drug names. Tokens must be at least three characters of [A-Za-z0-9-].
// When any surviving token starts with an upper-case letter only those are
// returned, since brand names are usually capitalized on labels. Dosage-like
// tokens such as "500mg" pass the filter.
//
// The result is pre-normalization and may hold duplicates. It is never nil.
func ExtractHeuristic(text string) []string {
	var tokens, capitalized []string

	for _, token := range tokenSeparators.Split(foldSpace(text), -1) {
		if len(token) < minTokenLength || !tokenPattern.MatchString(token) {
			continue
		}
		tokens = append(tokens, token)
		if first := rune(token[0]); unicode.IsUpper(first) {
			capitalized = append(capitalized, token)
		}
	}

	if len(capitalized) > 0 {
		return capitalized
	}
	if tokens == nil {
		return []string{}
	}
	return tokens
}
