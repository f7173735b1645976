package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"pillgenious/internal/drugsearch"
	"pillgenious/internal/logger"
	"pillgenious/internal/ocr"
	"pillgenious/pkg/models"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// pngBytes starts with the PNG signature so content sniffing reports image/png.
func pngBytes(size int) []byte {
	data := make([]byte, size)
	copy(data, "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	return data
}

type fakeSearcher struct {
	result     *models.SearchResult
	extraction *drugsearch.Extraction
	err        error

	calls      int
	path       string
	fileExists bool
}

func (f *fakeSearcher) record(path string) {
	f.calls++
	f.path = path
	_, err := os.Stat(path)
	f.fileExists = err == nil
}

func (f *fakeSearcher) Search(ctx context.Context, imagePath string) (*models.SearchResult, error) {
	f.record(imagePath)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeSearcher) ExtractKeywords(ctx context.Context, imagePath string) (*drugsearch.Extraction, error) {
	f.record(imagePath)
	if f.err != nil {
		return nil, f.err
	}
	return f.extraction, nil
}

func newTestRouter(t *testing.T, searcher ImageSearcher, maxBytes int64) (*gin.Engine, string) {
	t.Helper()
	dir := t.TempDir()
	quiet := logger.Discard()
	router := NewRouter(searcher, Options{
		MaxUploadBytes: maxBytes,
		UploadDir:      dir,
		RequestTimeout: time.Second,
		AllowedOrigins: []string{"http://localhost:5173"},
		OCREngine:      "tesseract",
		Catalog:        "mongo",
		AccessLog:      &quiet,
	})
	return router, dir
}

func uploadRequest(t *testing.T, target, field, contentType string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename="label.png"`, field))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func assertNoUploadsLeft(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("upload dir should be empty, found %d entries", len(entries))
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestHealthCheck(t *testing.T) {
	router, _ := newTestRouter(t, &fakeSearcher{}, 1024)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode(t, rec)
	if body["status"] != "healthy" || body["ocrEngine"] != "tesseract" || body["catalog"] != "mongo" {
		t.Errorf("body = %v", body)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Error("a request ID should be generated")
	}
}

func TestRequestIDIsPropagated(t *testing.T) {
	router, _ := newTestRouter(t, &fakeSearcher{}, 1024)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get(requestIDHeader); got != "abc-123" {
		t.Errorf("X-Request-ID = %q", got)
	}
}

func TestSearchByImage(t *testing.T) {
	searcher := &fakeSearcher{result: &models.SearchResult{
		RawText:  "PARACETAMOL 500mg",
		Keywords: []string{"Paracetamol"},
		Drugs:    []models.Drug{{ID: "1", Name: "Paracetamol 500mg", IsActive: true}},
	}}
	router, dir := newTestRouter(t, searcher, 4096)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "/api/drugs/search-by-image", "image", "image/png", pngBytes(512)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if !searcher.fileExists {
		t.Error("upload should exist on disk while the pipeline runs")
	}
	assertNoUploadsLeft(t, dir)

	body := decode(t, rec)
	if body["rawText"] != "PARACETAMOL 500mg" {
		t.Errorf("rawText = %v", body["rawText"])
	}
	if _, ok := body["message"]; ok {
		t.Error("message should be omitted when text was found")
	}
	drugs := body["drugs"].([]interface{})
	if len(drugs) != 1 || drugs[0].(map[string]interface{})["name"] != "Paracetamol 500mg" {
		t.Errorf("drugs = %v", drugs)
	}
}

func TestSearchByImageNoText(t *testing.T) {
	searcher := &fakeSearcher{result: models.EmptySearchResult("")}
	router, _ := newTestRouter(t, searcher, 4096)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "/api/drugs/search-by-image", "image", "image/png", pngBytes(256)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	want := `{"rawText":"","keywords":[],"drugs":[],"message":"No readable text found in image"}`
	if got := rec.Body.String(); got != want {
		t.Errorf("body = %s\nwant   %s", got, want)
	}
}

func TestUploadRejections(t *testing.T) {
	tests := []struct {
		name        string
		field       string
		contentType string
		data        []byte
	}{
		{name: "declared type not allowed", field: "image", contentType: "application/pdf", data: pngBytes(256)},
		{name: "content is not an image", field: "image", contentType: "image/png", data: []byte("just some text pretending to be a png")},
		{name: "too large", field: "image", contentType: "image/png", data: pngBytes(2048)},
		{name: "missing field", field: "file", contentType: "image/png", data: pngBytes(256)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			searcher := &fakeSearcher{result: models.EmptySearchResult("")}
			router, dir := newTestRouter(t, searcher, 1024)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, uploadRequest(t, "/api/drugs/search-by-image", tt.field, tt.contentType, tt.data))

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if decode(t, rec)["error"] == nil {
				t.Error("response should carry an error message")
			}
			if searcher.calls != 0 {
				t.Error("pipeline must not run for rejected uploads")
			}
			assertNoUploadsLeft(t, dir)
		})
	}
}

func TestSearchByImageErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "unreadable", err: ocr.WrapOCRError("op", ocr.ErrUnreadableImage, "gone"), want: http.StatusBadRequest},
		{name: "extraction", err: ocr.WrapOCRError("op", ocr.ErrExtractionFailed, "corrupt"), want: http.StatusUnprocessableEntity},
		{name: "search", err: &drugsearch.SearchError{Op: "op", Stages: []drugsearch.StageError{{Stage: "pattern", Err: errors.New("down")}}}, want: http.StatusInternalServerError},
		{name: "deadline", err: fmt.Errorf("ocr: %w", context.DeadlineExceeded), want: http.StatusGatewayTimeout},
		{name: "other", err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			searcher := &fakeSearcher{err: tt.err}
			router, dir := newTestRouter(t, searcher, 4096)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, uploadRequest(t, "/api/drugs/search-by-image", "image", "image/jpeg", pngBytes(256)))

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if searcher.calls != 1 {
				t.Errorf("searcher calls = %d", searcher.calls)
			}
			assertNoUploadsLeft(t, dir)
		})
	}
}

func TestScanImage(t *testing.T) {
	searcher := &fakeSearcher{extraction: &drugsearch.Extraction{
		RawText:  "Ibuprofen 200mg",
		Keywords: []string{"Ibuprofen"},
	}}
	router, dir := newTestRouter(t, searcher, 4096)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "/api/drugs/scan", "image", "image/png", pngBytes(256)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	want := `{"rawText":"Ibuprofen 200mg","keywords":["Ibuprofen"]}`
	if got := rec.Body.String(); got != want {
		t.Errorf("body = %s, want %s", got, want)
	}
	assertNoUploadsLeft(t, dir)
}

func TestAllowedDeclaredType(t *testing.T) {
	for _, ct := range []string{"image/jpeg", "image/jpg", "IMAGE/PNG", "image/webp", "image/heic", "image/heif", "image/png; charset=binary"} {
		if !allowedDeclaredType(ct) {
			t.Errorf("allowedDeclaredType(%q) = false", ct)
		}
	}
	for _, ct := range []string{"", "image/gif", "application/octet-stream", "text/plain"} {
		if allowedDeclaredType(ct) {
			t.Errorf("allowedDeclaredType(%q) = true", ct)
		}
	}
}
