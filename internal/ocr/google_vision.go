package ocr

import (
	"context"
	"fmt"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/rs/zerolog"

	"pillgenious/internal/logger"
)

// VisionRecognizer implements TextRecognizer using Google Cloud Vision document text detection.
type VisionRecognizer struct {
	client        *vision.ImageAnnotatorClient
	languageHints []string
	log           zerolog.Logger
}

// NewVisionRecognizer creates a Vision recognizer with credentials from environment.
func NewVisionRecognizer(ctx context.Context, cfg Config) (*VisionRecognizer, error) {
	const op = "NewVisionRecognizer"

	opts, source := googleClientOptions()
	client, err := vision.NewImageAnnotatorClient(clientContext(ctx), opts...)
	if err != nil {
		if source == "" {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapOCRError(op, err, fmt.Sprintf("failed to create client with %s", source))
	}

	return &VisionRecognizer{
		client:        client,
		languageHints: cfg.LanguageHints,
		log:           logger.WithComponent("ocr.vision"),
	}, nil
}

// Name returns the engine name.
func (v *VisionRecognizer) Name() string {
	return EngineVision
}

// Recognize sends the image to Vision and returns the full text annotation.
func (v *VisionRecognizer) Recognize(ctx context.Context, imagePath string) (*Result, error) {
	const op = "VisionRecognizer.Recognize"
	start := time.Now()

	data, err := readImage(op, imagePath)
	if err != nil {
		return nil, err
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: data},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
			},
		},
	}
	if len(v.languageHints) > 0 {
		req.Requests[0].ImageContext = &visionpb.ImageContext{LanguageHints: v.languageHints}
	}

	resp, err := v.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, WrapOCRError(op, ctxErr, "Vision API call interrupted")
		}
		return nil, WrapOCRError(op, ErrExtractionFailed, fmt.Sprintf("Vision API call failed: %v", err))
	}
	if len(resp.Responses) == 0 {
		return nil, WrapOCRError(op, ErrExtractionFailed, "no response from Vision API")
	}

	imageResp := resp.Responses[0]
	if imageResp.Error != nil {
		return nil, WrapOCRError(op, ErrExtractionFailed, fmt.Sprintf("Vision API error: %s", imageResp.Error.Message))
	}

	text, confidence := visionText(imageResp.FullTextAnnotation)
	v.log.Debug().
		Int("chars", len(text)).
		Float32("confidence", confidence).
		Dur("duration", time.Since(start)).
		Msg("Vision recognition completed")

	return newResult(EngineVision, text, confidence, start), nil
}

// Close closes the Vision client.
func (v *VisionRecognizer) Close() error {
	if v.client != nil {
		return v.client.Close()
	}
	return nil
}

// visionText returns the annotation text and the mean page confidence.
// A missing annotation means the image had no text.
func visionText(annotation *visionpb.TextAnnotation) (string, float32) {
	if annotation == nil {
		return "", 0
	}

	var total float32
	for _, page := range annotation.Pages {
		total += page.Confidence
	}

	var confidence float32
	if len(annotation.Pages) > 0 {
		confidence = total / float32(len(annotation.Pages))
	}
	return annotation.Text, confidence
}
