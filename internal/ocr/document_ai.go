package ocr

import (
	"context"
	"fmt"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"pillgenious/internal/logger"
)

// DocumentAIRecognizer implements TextRecognizer using a Document AI OCR processor.
type DocumentAIRecognizer struct {
	client        *documentai.DocumentProcessorClient
	processorName string
	log           zerolog.Logger
}

// NewDocumentAIRecognizer creates a Document AI recognizer for cfg.ProcessorID.
func NewDocumentAIRecognizer(ctx context.Context, cfg Config) (*DocumentAIRecognizer, error) {
	const op = "NewDocumentAIRecognizer"

	if cfg.ProjectID == "" || cfg.ProcessorID == "" {
		return nil, WrapOCRError(op, fmt.Errorf("project and processor ID are required"), "incomplete Document AI configuration")
	}

	location := cfg.Location
	if location == "" {
		location = "us"
	}

	var endpoint []option.ClientOption
	if location != "us" {
		endpoint = append(endpoint, option.WithEndpoint(fmt.Sprintf("%s-documentai.googleapis.com:443", location)))
	}

	opts, source := googleClientOptions(endpoint...)
	client, err := documentai.NewDocumentProcessorClient(clientContext(ctx), opts...)
	if err != nil {
		if source == "" {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapOCRError(op, err, fmt.Sprintf("failed to create client with %s", source))
	}

	return &DocumentAIRecognizer{
		client:        client,
		processorName: processorName(cfg.ProjectID, location, cfg.ProcessorID),
		log:           logger.WithComponent("ocr.documentai"),
	}, nil
}

func processorName(project, location, processor string) string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s", project, location, processor)
}

// Name returns the engine name.
func (d *DocumentAIRecognizer) Name() string {
	return EngineDocumentAI
}

// Recognize sends the raw image to the processor and returns the document text.
func (d *DocumentAIRecognizer) Recognize(ctx context.Context, imagePath string) (*Result, error) {
	const op = "DocumentAIRecognizer.Recognize"
	start := time.Now()

	data, err := readImage(op, imagePath)
	if err != nil {
		return nil, err
	}

	req := &documentaipb.ProcessRequest{
		Name: d.processorName,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  data,
				MimeType: detectMIME(data),
			},
		},
	}

	resp, err := d.client.ProcessDocument(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, WrapOCRError(op, ctxErr, "Document AI call interrupted")
		}
		return nil, WrapOCRError(op, ErrExtractionFailed, fmt.Sprintf("Document AI call failed: %v", err))
	}

	doc := resp.GetDocument()
	if doc == nil {
		return newResult(EngineDocumentAI, "", 0, start), nil
	}

	var total float32
	for _, page := range doc.Pages {
		total += page.GetLayout().GetConfidence()
	}
	var confidence float32
	if len(doc.Pages) > 0 {
		confidence = total / float32(len(doc.Pages))
	}

	d.log.Debug().
		Int("pages", len(doc.Pages)).
		Int("chars", len(doc.Text)).
		Dur("duration", time.Since(start)).
		Msg("Document AI recognition completed")

	return newResult(EngineDocumentAI, doc.Text, confidence, start), nil
}

// Close closes the Document AI client.
func (d *DocumentAIRecognizer) Close() error {
	if d.client != nil {
		return d.client.Close()
	}
	return nil
}
