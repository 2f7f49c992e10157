package processor

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"

	apperrors "github.com/ONSBigData/parsing-company-accounts/internal/errors"
	"github.com/ONSBigData/parsing-company-accounts/internal/ocr"
)

// Word sources reported on results.
const (
	SourceWordTable = "ocr-table"
	SourcePDFText   = "pdf-text"
	SourcePDFOCR    = "pdf-ocr"
	SourceImageOCR  = "image-ocr"
)

type wordInput struct {
	words   []ocr.Word
	source  string
	skipped int
	issues  []*apperrors.ProcessingError
}

// loadWords routes a file to the reader for its format. OCR runs only when
// no usable text exists.
func (p *DocumentProcessor) loadWords(ctx context.Context, req *ProcessRequest, data []byte, mimeType string) (*wordInput, error) {
	switch {
	case isWordTable(req.Filename, mimeType, data):
		table, err := ocr.ReadTable(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to read word table: %w", err)
		}
		for _, issue := range table.Issues {
			log.Printf("[Job %s] Skipped row: %s", req.JobID, issue.Message)
		}
		return &wordInput{words: table.Words, source: SourceWordTable, skipped: table.Skipped, issues: table.Issues}, nil

	case mimeType == "application/pdf":
		return p.loadPDF(ctx, req, data)

	case strings.HasPrefix(mimeType, "image/"):
		if err := p.ocrReady(req.JobID, 1); err != nil {
			return nil, err
		}
		words, err := p.engine.Recognize(ctx, data, 1)
		if err != nil {
			return nil, apperrors.NewOCRFailedError(req.JobID, 1, err)
		}
		return &wordInput{words: words, source: SourceImageOCR}, nil
	}

	return nil, apperrors.NewUnsupportedFormatError(req.JobID, mimeType)
}

// loadPDF prefers the text layer and falls back to OCR of the page scans.
// A page that fails OCR is recorded and skipped.
func (p *DocumentProcessor) loadPDF(ctx context.Context, req *ProcessRequest, data []byte) (*wordInput, error) {
	words, err := ocr.PDFTextWords(data)
	if err != nil {
		log.Printf("[Job %s] PDF text layer unreadable: %v", req.JobID, err)
	}
	if len(words) > 0 {
		return &wordInput{words: words, source: SourcePDFText}, nil
	}

	log.Printf("[Job %s] No text layer, falling back to OCR of page images", req.JobID)
	if err := p.ocrReady(req.JobID, 0); err != nil {
		return nil, err
	}
	images, err := ocr.PDFPageImages(data, p.config.TempDir)
	if err != nil {
		return nil, apperrors.NewOCRFailedError(req.JobID, 0, err)
	}
	if len(images) == 0 {
		return nil, apperrors.NewOCRFailedError(req.JobID, 0, fmt.Errorf("PDF has neither text nor page images"))
	}

	in := &wordInput{source: SourcePDFOCR}
	for _, img := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pageWords, err := p.engine.Recognize(ctx, img.Data, img.Page)
		if err != nil {
			perr := apperrors.NewOCRFailedError(req.JobID, img.Page, err)
			log.Printf("[Job %s] %v", req.JobID, perr)
			in.issues = append(in.issues, perr)
			continue
		}
		in.words = append(in.words, pageWords...)
	}
	if len(in.words) == 0 {
		return nil, apperrors.NewOCRFailedError(req.JobID, 0, fmt.Errorf("all %d pages failed", len(images)))
	}
	return in, nil
}

func (p *DocumentProcessor) ocrReady(jobID string, page int) error {
	if p.engine != nil {
		return nil
	}
	cause := p.engineErr
	if cause == nil {
		cause = fmt.Errorf("no OCR engine configured")
	}
	return apperrors.NewOCRFailedError(jobID, page, cause)
}
