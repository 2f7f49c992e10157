//go:build ocr

package ocr

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// TesseractEngine performs word-level OCR with Tesseract.
type TesseractEngine struct {
	cfg TesseractConfig
}

// NewTesseractEngine creates a new Tesseract engine.
func NewTesseractEngine(cfg TesseractConfig) (*TesseractEngine, error) {
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	return &TesseractEngine{cfg: cfg}, nil
}

// Recognize runs OCR over one page image and returns its records: a page
// record with the image size followed by one record per recognised word.
func (t *TesseractEngine) Recognize(ctx context.Context, img []byte, pageID int) ([]Word, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if t.cfg.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(t.cfg.TessdataPrefix); err != nil {
			return nil, fmt.Errorf("failed to set tessdata prefix: %w", err)
		}
	}
	if err := client.SetLanguage(t.cfg.Language); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		return nil, fmt.Errorf("failed to set page segmentation: %w", err)
	}
	if err := client.SetImageFromBytes(img); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxesVerbose()
	if err != nil {
		return nil, fmt.Errorf("tesseract OCR failed: %w", err)
	}

	words := make([]Word, 0, len(boxes)+1)
	if p, ok := pageRecord(img, pageID); ok {
		words = append(words, p)
	}
	for _, b := range boxes {
		words = append(words, Word{
			PageID:     pageID,
			Level:      LevelWord,
			BlockNum:   b.BlockNum,
			ParNum:     b.ParNum,
			LineNum:    b.LineNum,
			WordNum:    b.WordNum,
			Left:       b.Box.Min.X,
			Top:        b.Box.Min.Y,
			Width:      b.Box.Dx(),
			Height:     b.Box.Dy(),
			Confidence: b.Confidence,
			Text:       b.Word,
		})
	}
	return words, nil
}
