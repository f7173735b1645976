package keywords

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"pillgenious/internal/logger"
)

const (
	// DefaultMaxTokens bounds the completion length of one extraction request.
	DefaultMaxTokens = 200

	// DefaultTimeout bounds one extraction request when the caller sets none.
	DefaultTimeout = 15 * time.Second
)

const systemPrompt = `You extract medicine names from OCR text of medicine labels and prescriptions.
Respond with ONLY a JSON array of distinct medicine name strings, at most 5 entries.
Use brand or generic drug names exactly as they would appear in a pharmacy catalog.
Do not include dosages, quantities, instructions, or any other text.
If no medicine names are present, respond with [].`

// CompletionRequest is a single system + user prompt exchange.
type CompletionRequest struct {
	System      string
	User        string
	Temperature float32
	MaxTokens   int
}

// CompletionClient sends one chat completion and returns the text of the first choice.
type CompletionClient interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// AIOptions configures an AIExtractor.
type AIOptions struct {
	MaxTokens int
	Timeout   time.Duration
	Logger    *zerolog.Logger
}

// AIExtractor asks a language model for the medicine names in OCR text.
// A nil *AIExtractor, or one without a client, is valid and extracts nothing.
type AIExtractor struct {
	client    CompletionClient
	maxTokens int
	timeout   time.Duration
	log       zerolog.Logger
}

// NewAIExtractor creates an extractor over client. client may be nil when no
// model credentials are configured.
func NewAIExtractor(client CompletionClient, opts AIOptions) *AIExtractor {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	log := logger.WithComponent("ai-keywords")
	if opts.Logger != nil {
		log = *opts.Logger
	}
	return &AIExtractor{
		client:    client,
		maxTokens: opts.MaxTokens,
		timeout:   opts.Timeout,
		log:       log,
	}
}

// Enabled reports whether Extract can reach a model.
func (e *AIExtractor) Enabled() bool {
	return e != nil && e.client != nil
}

// Extract returns the model's medicine-name candidates for text. It never
// fails: missing credentials, blank text, API errors, deadlines and malformed
// output all yield an empty list.
func (e *AIExtractor) Extract(ctx context.Context, text string) []string {
	if !e.Enabled() || strings.TrimSpace(text) == "" {
		return []string{}
	}

	return Candidates(e.extract(ctx, text))
}

func (e *AIExtractor) extract(ctx context.Context, text string) ParseResult {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	e.log.Debug().
		Int("text_length", len(text)).
		Int("max_tokens", e.maxTokens).
		Dur("timeout", e.timeout).
		Msg("Requesting medicine names from language model")

	content, err := e.client.Complete(ctx, CompletionRequest{
		System:    systemPrompt,
		User:      text,
		MaxTokens: e.maxTokens,
	})
	if err != nil {
		e.log.Warn().
			Err(err).
			Dur("duration", time.Since(start)).
			Msg("AI keyword extraction failed, continuing without AI keywords")
		return Malformed{}
	}

	result := ParseResponse(content)
	switch r := result.(type) {
	case Parsed:
		e.log.Debug().
			Strs("names", r.Names).
			Dur("duration", time.Since(start)).
			Msg("AI keyword extraction completed")
	case Malformed:
		e.log.Warn().
			Str("response", r.Raw).
			Msg("AI keyword extraction returned malformed output")
	}
	return result
}
