package ocr

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"
)

// minOCRWidth is the width small photos are upscaled to before Tesseract sees them.
const minOCRWidth = 1200

// readImage loads the image at path. Any read failure is ErrUnreadableImage.
func readImage(op, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapOCRError(op, ErrUnreadableImage, err.Error())
	}
	if len(data) == 0 {
		return nil, WrapOCRError(op, ErrExtractionFailed, fmt.Sprintf("image is empty: %s", path))
	}
	return data, nil
}

// detectMIME sniffs the content type of image bytes.
func detectMIME(data []byte) string {
	return mimetype.Detect(data).String()
}

// preprocessForOCR decodes an image, honours EXIF orientation, upscales small
// images, converts to grayscale and boosts contrast, then re-encodes as PNG.
// Formats without a Go decoder (HEIC) return an error and callers use the
// original bytes.
func preprocessForOCR(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	var processed image.Image = img
	if processed.Bounds().Dx() < minOCRWidth {
		processed = imaging.Resize(processed, minOCRWidth, 0, imaging.Lanczos)
	}
	processed = imaging.Grayscale(processed)
	processed = imaging.AdjustContrast(processed, 20)
	processed = imaging.Sharpen(processed, 0.6)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, processed, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}
