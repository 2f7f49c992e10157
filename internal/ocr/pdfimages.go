package ocr

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PageImage is the scanned image of one PDF page.
type PageImage struct {
	Page int
	Data []byte
}

// pdfcpu names extracted images <file>_<page>_<object>.<ext>.
var extractedImageName = regexp.MustCompile(`_(\d+)_[^_]+\.\w+$`)

// PDFPageImages extracts the embedded page images of a scanned PDF. When a
// page holds several images the largest one is taken as the scan.
func PDFPageImages(data []byte, tempDir string) ([]PageImage, error) {
	workDir, err := os.MkdirTemp(tempDir, "pdf_images")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	pdfPath := filepath.Join(workDir, "document.pdf")
	if err := os.WriteFile(pdfPath, data, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write pdf data: %w", err)
	}

	outDir := filepath.Join(workDir, "out")
	if err := os.Mkdir(outDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractImagesFile(pdfPath, outDir, nil, conf); err != nil {
		return nil, fmt.Errorf("failed to extract images: %w", err)
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read extracted images: %w", err)
	}

	best := make(map[int]PageImage)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := extractedImageName.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		page, _ := strconv.Atoi(m[1])
		img, err := os.ReadFile(filepath.Join(outDir, e.Name()))
		if err != nil {
			continue
		}
		if cur, ok := best[page]; !ok || len(img) > len(cur.Data) {
			best[page] = PageImage{Page: page, Data: img}
		}
	}

	images := make([]PageImage, 0, len(best))
	for _, img := range best {
		images = append(images, img)
	}
	sort.Slice(images, func(i, j int) bool { return images[i].Page < images[j].Page })
	return images, nil
}
