// Package drugsearch turns a medicine photo into catalog matches: OCR, keyword
// extraction, then a full-text search with a literal pattern fallback.
package drugsearch

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"pillgenious/internal/catalog"
	"pillgenious/internal/keywords"
	"pillgenious/internal/logger"
	"pillgenious/internal/ocr"
	"pillgenious/pkg/models"
)

// Defaults for Options.
const (
	DefaultMaxResults     = 20
	DefaultPhraseKeywords = 3
)

// Options tunes Search.
type Options struct {
	// MaxResults caps the drugs returned by each stage.
	MaxResults int

	// PhraseKeywords is how many leading keywords form the full-text phrase.
	PhraseKeywords int

	Logger *zerolog.Logger
}

// Extraction is the text and keywords found in one image.
type Extraction struct {
	RawText  string   `json:"rawText"`
	Keywords []string `json:"keywords"`
}

// Service runs the image search pipeline. It holds no per-request state and
// is safe for concurrent use.
type Service struct {
	recognizer ocr.TextRecognizer
	ai         *keywords.AIExtractor
	catalog    catalog.Catalog
	stages     []stage
	log        zerolog.Logger
}

// New creates a Service. ai may be nil, in which case only heuristic keywords are used.
func New(recognizer ocr.TextRecognizer, ai *keywords.AIExtractor, cat catalog.Catalog, opts Options) *Service {
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}
	if opts.PhraseKeywords <= 0 {
		opts.PhraseKeywords = DefaultPhraseKeywords
	}
	log := logger.WithComponent("drugsearch")
	if opts.Logger != nil {
		log = *opts.Logger
	}

	return &Service{
		recognizer: recognizer,
		ai:         ai,
		catalog:    cat,
		stages: []stage{
			fullTextStage(opts.PhraseKeywords, opts.MaxResults),
			patternStage(opts.MaxResults),
		},
		log: log,
	}
}

// ExtractKeywords recognizes the image and derives normalized drug-name keywords.
// Blank OCR output yields an empty RawText and no keywords. The image file is
// only read.
func (s *Service) ExtractKeywords(ctx context.Context, imagePath string) (*Extraction, error) {
	const op = "Service.ExtractKeywords"

	result, err := s.recognizer.Recognize(ctx, imagePath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if strings.TrimSpace(result.Text) == "" {
		s.log.Debug().Str("engine", result.Engine).Msg("No readable text in image")
		return &Extraction{RawText: "", Keywords: []string{}}, nil
	}

	aiCandidates := s.ai.Extract(ctx, result.Text)
	heuristic := keywords.ExtractHeuristic(result.Text)

	candidates := make([]string, 0, len(aiCandidates)+len(heuristic))
	candidates = append(candidates, aiCandidates...)
	candidates = append(candidates, heuristic...)
	normalized := keywords.Normalize(candidates)

	s.log.Debug().
		Int("chars", len(result.Text)).
		Strs("ai", aiCandidates).
		Strs("heuristic", heuristic).
		Strs("keywords", normalized).
		Msg("Keywords extracted")

	return &Extraction{RawText: result.Text, Keywords: normalized}, nil
}

// Search runs the full pipeline on the image. Finding nothing is a success with
// an empty Drugs list. OCR errors pass through unchanged for errors.Is, and a failure
// of the final search stage returns an error matching ErrSearchFailed.
func (s *Service) Search(ctx context.Context, imagePath string) (*models.SearchResult, error) {
	const op = "Service.Search"

	extraction, err := s.ExtractKeywords(ctx, imagePath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result := models.EmptySearchResult(extraction.RawText)
	result.Keywords = extraction.Keywords
	if len(extraction.Keywords) == 0 {
		return result, nil
	}

	drugs, err := s.runStages(ctx, extraction.Keywords)
	if err != nil {
		return nil, err
	}
	result.Drugs = drugs
	return result, nil
}

func (s *Service) runStages(ctx context.Context, kws []string) ([]models.Drug, error) {
	const op = "Service.Search"

	var failures []StageError
	var last stageResult
	for i, st := range s.stages {
		last = st.run(ctx, s.catalog, kws)

		event := s.log.Debug()
		if last.outcome == errored {
			event = s.log.Warn().Err(last.err)
			failures = append(failures, StageError{Stage: st.name, Err: last.err})
		}
		event.Str("stage", st.name).
			Str("outcome", last.outcome.String()).
			Int("drugs", len(last.drugs)).
			Bool("final", i == len(s.stages)-1).
			Msg("Search stage finished")

		if last.outcome == found {
			return last.drugs, nil
		}
	}

	if last.outcome == errored {
		return nil, &SearchError{Op: op, Stages: failures}
	}
	return []models.Drug{}, nil
}
