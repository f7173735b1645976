package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// imageField is the multipart form field carrying the upload.
const imageField = "image"

// multipartOverhead is the body allowance on top of the file size limit for
// multipart boundaries and headers.
const multipartOverhead = 1 << 20

// allowedImageTypes are the declared content types accepted for upload.
var allowedImageTypes = []string{
	"image/jpeg",
	"image/jpg",
	"image/png",
	"image/webp",
	"image/heic",
	"image/heif",
}

// Upload validation errors. All of them are client errors.
var (
	ErrMissingImage     = errors.New("an image file is required in the \"image\" field")
	ErrUnsupportedImage = errors.New("unsupported file type: only JPEG, PNG, WEBP and HEIC/HEIF images are accepted")
	ErrImageTooLarge    = errors.New("image exceeds the upload size limit")
)

// uploadStore validates uploaded images and spools them to uniquely named temp files.
type uploadStore struct {
	dir      string
	maxBytes int64
}

// limitBody caps the request body before multipart parsing.
func (u *uploadStore) limitBody(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, u.maxBytes+multipartOverhead)
}

// save validates the image in the request and writes it to a temp file.
// The caller must remove the returned path.
func (u *uploadStore) save(c *gin.Context) (string, error) {
	u.limitBody(c)

	header, err := c.FormFile(imageField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", ErrImageTooLarge
		}
		return "", ErrMissingImage
	}

	if header.Size > u.maxBytes {
		return "", fmt.Errorf("%w (%d bytes, limit %d)", ErrImageTooLarge, header.Size, u.maxBytes)
	}
	if !allowedDeclaredType(header.Header.Get("Content-Type")) {
		return "", ErrUnsupportedImage
	}

	src, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	detected, err := sniff(src)
	if err != nil {
		return "", fmt.Errorf("inspect upload: %w", err)
	}
	if !allowedDetectedType(detected) {
		return "", ErrUnsupportedImage
	}

	return u.spool(src, detected.Extension())
}

func sniff(src multipart.File) (*mimetype.MIME, error) {
	detected, err := mimetype.DetectReader(src)
	if err != nil {
		return nil, err
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return detected, nil
}

func (u *uploadStore) spool(src io.Reader, ext string) (string, error) {
	path := filepath.Join(u.dir, "upload_"+uuid.NewString()+ext)

	dst, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	n, err := io.Copy(dst, io.LimitReader(src, u.maxBytes+1))
	closeErr := dst.Close()
	switch {
	case err != nil:
		os.Remove(path)
		return "", fmt.Errorf("write temp file: %w", err)
	case closeErr != nil:
		os.Remove(path)
		return "", fmt.Errorf("close temp file: %w", closeErr)
	case n > u.maxBytes:
		os.Remove(path)
		return "", ErrImageTooLarge
	}
	return path, nil
}

func allowedDeclaredType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	mediaType = strings.ToLower(mediaType)
	for _, allowed := range allowedImageTypes {
		if mediaType == allowed {
			return true
		}
	}
	return false
}

func allowedDetectedType(detected *mimetype.MIME) bool {
	for _, allowed := range allowedImageTypes {
		if detected.Is(allowed) {
			return true
		}
	}
	return false
}

func isUploadError(err error) bool {
	return errors.Is(err, ErrMissingImage) ||
		errors.Is(err, ErrUnsupportedImage) ||
		errors.Is(err, ErrImageTooLarge)
}
