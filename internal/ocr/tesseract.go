package ocr

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/otiai10/gosseract/v2"
	"github.com/rs/zerolog"

	"pillgenious/internal/logger"
)

// TesseractRecognizer implements TextRecognizer with a local Tesseract install.
// Each call uses its own gosseract client, so a recognizer is safe for concurrent use.
// At most GOMAXPROCS recognitions run at once.
type TesseractRecognizer struct {
	language    string
	pageSegMode gosseract.PageSegMode
	preprocess  bool
	slots       chan struct{}
	log         zerolog.Logger
}

// NewTesseractRecognizer creates a Tesseract recognizer. Empty settings fall back
// to English and automatic page segmentation.
func NewTesseractRecognizer(cfg Config) *TesseractRecognizer {
	language := cfg.Language
	if language == "" {
		language = "eng"
	}

	psm := gosseract.PageSegMode(cfg.PageSegMode)
	if cfg.PageSegMode <= 0 {
		psm = gosseract.PSM_AUTO
	}

	return &TesseractRecognizer{
		language:    language,
		pageSegMode: psm,
		preprocess:  cfg.Preprocess,
		slots:       make(chan struct{}, runtime.GOMAXPROCS(0)),
		log:         logger.WithComponent("ocr.tesseract"),
	}
}

// Name returns the engine name.
func (t *TesseractRecognizer) Name() string {
	return EngineTesseract
}

// Close is a no-op; clients are released after every call.
func (t *TesseractRecognizer) Close() error {
	return nil
}

type tesseractOutcome struct {
	text       string
	confidence float32
	err        error
}

// Recognize runs Tesseract over the image. The cgo call cannot be interrupted,
// so it runs in a goroutine and ctx cancellation returns early. An abandoned
// call holds its slot until Tesseract finishes; callers wait for a free slot
// until ctx ends.
func (t *TesseractRecognizer) Recognize(ctx context.Context, imagePath string) (*Result, error) {
	const op = "TesseractRecognizer.Recognize"
	start := time.Now()

	data, err := readImage(op, imagePath)
	if err != nil {
		return nil, err
	}

	input := data
	if t.preprocess {
		prepared, err := preprocessForOCR(data)
		if err != nil {
			t.log.Debug().Err(err).Str("path", imagePath).Msg("Preprocessing skipped, using original image")
		} else {
			input = prepared
		}
	}

	select {
	case t.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, WrapOCRError(op, ctx.Err(), "waiting for a free recognizer slot")
	}

	done := make(chan tesseractOutcome, 1)
	go func() {
		defer func() { <-t.slots }()
		done <- t.run(input)
	}()

	select {
	case <-ctx.Done():
		return nil, WrapOCRError(op, ctx.Err(), "recognition interrupted")
	case outcome := <-done:
		if outcome.err != nil {
			return nil, WrapOCRError(op, ErrExtractionFailed, outcome.err.Error())
		}
		t.log.Debug().
			Int("chars", len(outcome.text)).
			Float32("confidence", outcome.confidence).
			Dur("duration", time.Since(start)).
			Msg("Tesseract recognition completed")
		return newResult(EngineTesseract, outcome.text, outcome.confidence, start), nil
	}
}

func (t *TesseractRecognizer) run(image []byte) tesseractOutcome {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.language); err != nil {
		return tesseractOutcome{err: fmt.Errorf("set language %q: %w", t.language, err)}
	}
	if err := client.SetPageSegMode(t.pageSegMode); err != nil {
		return tesseractOutcome{err: fmt.Errorf("set page segmentation mode: %w", err)}
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return tesseractOutcome{err: fmt.Errorf("load image: %w", err)}
	}

	text, err := client.Text()
	if err != nil {
		return tesseractOutcome{err: fmt.Errorf("recognize text: %w", err)}
	}

	return tesseractOutcome{text: text, confidence: wordConfidence(client)}
}

// wordConfidence averages per-word confidence, scaled to 0..1.
func wordConfidence(client *gosseract.Client) float32 {
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 0
	}
	var total float64
	for _, box := range boxes {
		total += box.Confidence
	}
	return float32(total / float64(len(boxes)) / 100)
}
