//go:build !ocr

package ocr

import (
	"context"
	"errors"
)

// ErrOCRNotEnabled is returned when image OCR is requested from a binary
// built without the "ocr" tag. Rebuild with -tags ocr (Tesseract required).
var ErrOCRNotEnabled = errors.New("OCR support not enabled; rebuild with -tags ocr")

// TesseractEngine is unavailable in this build.
type TesseractEngine struct{}

// NewTesseractEngine returns ErrOCRNotEnabled.
func NewTesseractEngine(cfg TesseractConfig) (*TesseractEngine, error) {
	return nil, ErrOCRNotEnabled
}

// Recognize returns ErrOCRNotEnabled.
func (t *TesseractEngine) Recognize(ctx context.Context, img []byte, pageID int) ([]Word, error) {
	return nil, ErrOCRNotEnabled
}
