package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"pillgenious/internal/drugsearch"
	"pillgenious/internal/logger"
	"pillgenious/internal/ocr"
	"pillgenious/pkg/models"
)

const noTextMessage = "No readable text found in image"

// ImageSearcher is the pipeline behind the drug endpoints.
type ImageSearcher interface {
	Search(ctx context.Context, imagePath string) (*models.SearchResult, error)
	ExtractKeywords(ctx context.Context, imagePath string) (*drugsearch.Extraction, error)
}

// Handler handles API requests
type Handler struct {
	searcher  ImageSearcher
	uploads   *uploadStore
	timeout   time.Duration
	ocrEngine string
	catalog   string
}

// NewHandler creates a new handler
func NewHandler(searcher ImageSearcher, opts Options) *Handler {
	opts = opts.withDefaults()
	return &Handler{
		searcher:  searcher,
		uploads:   &uploadStore{dir: opts.UploadDir, maxBytes: opts.MaxUploadBytes},
		timeout:   opts.RequestTimeout,
		ocrEngine: opts.OCREngine,
		catalog:   opts.Catalog,
	}
}

type searchResponse struct {
	*models.SearchResult
	Message string `json:"message,omitempty"`
}

type scanResponse struct {
	*drugsearch.Extraction
	Message string `json:"message,omitempty"`
}

// HealthCheck provides a simple health check endpoint
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"ocrEngine": h.ocrEngine,
		"catalog":   h.catalog,
	})
}

// SearchByImage runs OCR, keyword extraction and catalog search on an uploaded image.
func (h *Handler) SearchByImage(c *gin.Context) {
	log := requestLogger(c)

	path, ok := h.acceptUpload(c, log)
	if !ok {
		return
	}
	defer h.removeUpload(path, log)

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	result, err := h.searcher.Search(ctx, path)
	if err != nil {
		h.respondError(c, log, err)
		return
	}

	resp := searchResponse{SearchResult: result}
	if result.RawText == "" {
		resp.Message = noTextMessage
	}
	log.Info().
		Strs("keywords", result.Keywords).
		Int("drugs", len(result.Drugs)).
		Msg("Image search completed")
	c.JSON(http.StatusOK, resp)
}

// ScanImage returns the recognized text and keywords of an uploaded image without searching.
func (h *Handler) ScanImage(c *gin.Context) {
	log := requestLogger(c)

	path, ok := h.acceptUpload(c, log)
	if !ok {
		return
	}
	defer h.removeUpload(path, log)

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	extraction, err := h.searcher.ExtractKeywords(ctx, path)
	if err != nil {
		h.respondError(c, log, err)
		return
	}

	resp := scanResponse{Extraction: extraction}
	if extraction.RawText == "" {
		resp.Message = noTextMessage
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) acceptUpload(c *gin.Context, log zerolog.Logger) (string, bool) {
	path, err := h.uploads.save(c)
	if err == nil {
		return path, true
	}

	if isUploadError(err) {
		log.Warn().Err(err).Msg("Upload rejected")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}

	log.Error().Err(err).Msg("Failed to store upload")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store uploaded image"})
	return "", false
}

func (h *Handler) removeUpload(path string, log zerolog.Logger) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("path", path).Msg("Failed to remove temp upload")
	}
}

func (h *Handler) respondError(c *gin.Context, log zerolog.Logger, err error) {
	status, message := statusFor(err)
	_ = c.Error(err)
	if status >= http.StatusInternalServerError && status != http.StatusGatewayTimeout {
		log.Error().Err(err).Int("status", status).Msg("Image processing failed")
	} else {
		log.Warn().Err(err).Int("status", status).Msg("Image processing failed")
	}
	c.JSON(status, gin.H{"error": message})
}

// statusFor maps pipeline errors to HTTP status codes and client messages.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Image processing timed out"
	case errors.Is(err, ocr.ErrUnreadableImage):
		return http.StatusBadRequest, "Uploaded image could not be read"
	case errors.Is(err, ocr.ErrExtractionFailed):
		return http.StatusUnprocessableEntity, "Could not extract text from image"
	case errors.Is(err, drugsearch.ErrSearchFailed):
		return http.StatusInternalServerError, "Drug search failed"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func requestLogger(c *gin.Context) zerolog.Logger {
	return logger.WithRequestID("api", c.GetString(requestIDKey))
}
