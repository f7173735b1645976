package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"pillgenious/internal/catalog"
	"pillgenious/internal/config"
	"pillgenious/internal/drugsearch"
	"pillgenious/internal/keywords"
	"pillgenious/internal/ocr"
)

// pipeline holds the long-lived collaborators of the search pipeline.
type pipeline struct {
	recognizer ocr.TextRecognizer
	catalog    catalog.Catalog
	service    *drugsearch.Service
}

func loadConfig(log zerolog.Logger) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return nil, err
	}
	return cfg, nil
}

// buildPipeline wires recognizer, keyword extractors and, when withCatalog is
// set, the catalog connection.
func buildPipeline(ctx context.Context, cfg *config.Config, withCatalog bool, log zerolog.Logger) (*pipeline, error) {
	recognizer, err := createRecognizer(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	p := &pipeline{recognizer: recognizer}
	if withCatalog {
		p.catalog, err = openCatalog(ctx, cfg, log)
		if err != nil {
			p.close(log)
			return nil, err
		}
	}

	p.service = drugsearch.New(recognizer, createAIExtractor(cfg, log), p.catalog, drugsearch.Options{
		MaxResults:     cfg.SearchMaxResults,
		PhraseKeywords: cfg.SearchPhraseKeywords,
	})
	return p, nil
}

func (p *pipeline) close(log zerolog.Logger) {
	if p.recognizer != nil {
		if err := p.recognizer.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close recognizer")
		}
	}
	if p.catalog != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.catalog.Close(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to close catalog")
		}
	}
}

// createRecognizer creates the configured OCR engine
func createRecognizer(ctx context.Context, cfg *config.Config, log zerolog.Logger) (ocr.TextRecognizer, error) {
	recognizer, err := ocr.New(ctx, cfg.GetOCRConfig())
	if err != nil {
		if errors.Is(err, ocr.ErrMissingCredentials) {
			log.Error().
				Err(err).
				Str("engine", cfg.OCREngine).
				Msg("Google Cloud credentials validation failed")
			return nil, fmt.Errorf("Google Cloud credentials are required for OCR_ENGINE=%s. Please set one of:\n\n"+
				"1. GOOGLE_APPLICATION_CREDENTIALS with path to service account JSON\n"+
				"2. GOOGLE_CREDENTIALS with inline JSON\n"+
				"3. Application Default Credentials (gcloud auth application-default login)\n\n"+
				"Or use OCR_ENGINE=tesseract for local OCR.\n\n"+
				"Original error: %w", cfg.OCREngine, err)
		}
		log.Error().Err(err).Str("engine", cfg.OCREngine).Msg("Failed to create OCR engine")
		return nil, fmt.Errorf("failed to create OCR engine: %w", err)
	}

	log.Debug().Str("engine", recognizer.Name()).Msg("OCR engine created successfully")
	return recognizer, nil
}

// createAIExtractor returns an extractor that is disabled when no API key is configured.
func createAIExtractor(cfg *config.Config, log zerolog.Logger) *keywords.AIExtractor {
	openAIConfig := cfg.GetOpenAIConfig()

	client, err := keywords.NewOpenAIClient(openAIConfig)
	if err != nil {
		log.Warn().Err(err).Msg("AI keyword extraction disabled, using heuristic keywords only")
		return keywords.NewAIExtractor(nil, openAIConfig.ExtractorOptions())
	}

	log.Debug().Str("model", openAIConfig.Model).Msg("AI keyword extraction enabled")
	return keywords.NewAIExtractor(client, openAIConfig.ExtractorOptions())
}

func openCatalog(ctx context.Context, cfg *config.Config, log zerolog.Logger) (catalog.Catalog, error) {
	cat, err := catalog.Open(ctx, cfg.GetCatalogConfig())
	if err != nil {
		log.Error().Err(err).Str("driver", cfg.CatalogDriver).Msg("Failed to open catalog")
		return nil, fmt.Errorf("failed to open %s catalog: %w", cfg.CatalogDriver, err)
	}
	log.Debug().Str("driver", cat.Name()).Msg("Catalog connected")
	return cat, nil
}

// createContextWithTimeout creates a context with timeout and signal handling
func createContextWithTimeout(timeout time.Duration, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling processing")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
