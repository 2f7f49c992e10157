package ocr

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
)

// Engine recognises the words on one page image.
type Engine interface {
	Recognize(ctx context.Context, img []byte, pageID int) ([]Word, error)
}

// TesseractConfig holds Tesseract configuration
type TesseractConfig struct {
	TessdataPrefix string
	Language       string
}

// pageRecord builds the level-1 record carrying the image size, so page
// geometry survives even when OCR finds few words.
func pageRecord(img []byte, pageID int) (Word, bool) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return Word{}, false
	}
	return Word{
		PageID:     pageID,
		Level:      LevelPage,
		Width:      cfg.Width,
		Height:     cfg.Height,
		Confidence: -1,
	}, true
}
