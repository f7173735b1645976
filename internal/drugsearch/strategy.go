package drugsearch

import (
	"context"
	"regexp"
	"strings"

	"pillgenious/internal/catalog"
	"pillgenious/pkg/models"
)

// outcome classifies what a stage produced.
type outcome int

const (
	notFound outcome = iota
	found
	errored
)

func (o outcome) String() string {
	switch o {
	case found:
		return "found"
	case errored:
		return "errored"
	default:
		return "not_found"
	}
}

// stageResult is the tagged result of one stage: drugs when found, err when errored.
type stageResult struct {
	outcome outcome
	drugs   []models.Drug
	err     error
}

// stage is one catalog query strategy.
type stage struct {
	name string
	run  func(ctx context.Context, cat catalog.Catalog, keywords []string) stageResult
}

func classify(drugs []models.Drug, err error) stageResult {
	switch {
	case err != nil:
		return stageResult{outcome: errored, err: err}
	case len(drugs) == 0:
		return stageResult{outcome: notFound}
	default:
		return stageResult{outcome: found, drugs: drugs}
	}
}

// fullTextStage searches for the first phraseKeywords keywords as one phrase.
func fullTextStage(phraseKeywords, limit int) stage {
	return stage{
		name: "fulltext",
		run: func(ctx context.Context, cat catalog.Catalog, keywords []string) stageResult {
			return classify(cat.TextSearch(ctx, buildPhrase(keywords, phraseKeywords), limit))
		},
	}
}

// patternStage matches every keyword literally, case-insensitively.
func patternStage(limit int) stage {
	return stage{
		name: "pattern",
		run: func(ctx context.Context, cat catalog.Catalog, keywords []string) stageResult {
			return classify(cat.PatternSearch(ctx, buildPatterns(keywords), limit))
		},
	}
}

func buildPhrase(keywords []string, n int) string {
	if len(keywords) > n {
		keywords = keywords[:n]
	}
	return strings.Join(keywords, " ")
}

// buildPatterns escapes regex metacharacters so each keyword matches as a literal.
func buildPatterns(keywords []string) []string {
	patterns := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		patterns = append(patterns, regexp.QuoteMeta(kw))
	}
	return patterns
}
