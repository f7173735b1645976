// Package ocr turns an uploaded medicine photo into raw text.
//
// Three engines implement TextRecognizer:
//   - tesseract: local Tesseract via gosseract, with grayscale/contrast
//     preprocessing. This is the default and needs no credentials.
//   - vision: Google Cloud Vision document text detection.
//   - documentai: a Google Document AI OCR processor.
//
// Cloud engines read credentials the same way:
//   - GOOGLE_CREDENTIALS: Inline JSON credentials string, OR
//   - GOOGLE_APPLICATION_CREDENTIALS: Path to service account JSON file
//   - otherwise Application Default Credentials
//
// Recognizers only read the image. They never delete or modify it, and they
// never retry. Blank images produce an empty Result.Text, which is not an error.
package ocr

import (
	"context"
	"fmt"
	"time"
)

// Engine names accepted by New.
const (
	EngineTesseract  = "tesseract"
	EngineVision     = "vision"
	EngineDocumentAI = "documentai"
)

// TextRecognizer extracts text from an image file.
type TextRecognizer interface {
	// Recognize runs OCR over the image at imagePath.
	// Unreadable files fail with ErrUnreadableImage; engine failures with ErrExtractionFailed.
	Recognize(ctx context.Context, imagePath string) (*Result, error)

	// Name returns the engine name.
	Name() string

	// Close releases engine resources.
	Close() error
}

// Result contains the text recognized in one image.
type Result struct {
	// Text is the raw recognized text. It may be empty.
	Text string `json:"text"`

	// Confidence is the engine's average confidence (0.0 to 1.0), or 0 when unknown.
	Confidence float32 `json:"confidence"`

	// Engine is the name of the engine that produced the result.
	Engine string `json:"engine"`

	// ProcessedAt is the timestamp when the OCR processing completed.
	ProcessedAt time.Time `json:"processed_at"`

	// ProcessingDuration is how long the OCR processing took.
	ProcessingDuration time.Duration `json:"processing_duration"`
}

// Config selects and configures an engine.
type Config struct {
	Engine string

	// Tesseract
	Language    string
	PageSegMode int
	Preprocess  bool

	// Google Cloud
	ProjectID     string
	Location      string
	ProcessorID   string
	LanguageHints []string
}

// New creates the recognizer named by cfg.Engine.
func New(ctx context.Context, cfg Config) (TextRecognizer, error) {
	switch cfg.Engine {
	case "", EngineTesseract:
		return NewTesseractRecognizer(cfg), nil
	case EngineVision:
		return NewVisionRecognizer(ctx, cfg)
	case EngineDocumentAI:
		return NewDocumentAIRecognizer(ctx, cfg)
	default:
		return nil, fmt.Errorf("ocr: %w: %q", ErrUnknownEngine, cfg.Engine)
	}
}

func newResult(engine, text string, confidence float32, start time.Time) *Result {
	now := time.Now()
	return &Result{
		Text:               text,
		Confidence:         confidence,
		Engine:             engine,
		ProcessedAt:        now,
		ProcessingDuration: now.Sub(start),
	}
}
