// Command accounts extracts balance sheet line items from word tables,
// PDFs and page images on the command line.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ONSBigData/parsing-company-accounts/internal/config"
	"github.com/ONSBigData/parsing-company-accounts/internal/logging"
	"github.com/ONSBigData/parsing-company-accounts/internal/ocr"
	"github.com/ONSBigData/parsing-company-accounts/internal/processor"
	"github.com/ONSBigData/parsing-company-accounts/internal/statement"
)

var (
	strictContinuation bool
	columnOrder        string
	statisticsFile     string
	logLevel           string
	ocrLanguage        string
)

// RootCmd is the accounts command.
var RootCmd = &cobra.Command{
	Use:           "accounts",
	Short:         "Extract balance sheet figures from company accounts",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.SetLevel(logging.ParseLevel(logLevel))
	},
}

func init() {
	flags := RootCmd.PersistentFlags()
	flags.BoolVar(&strictContinuation, "strict-continuation", false, "Do not stitch continuations onto lines ending in punctuation")
	flags.StringVar(&columnOrder, "column-order", config.ColumnOrderCurrentFirst, "Column order when headers do not settle it (current-first or prior-first)")
	flags.StringVar(&statisticsFile, "statistics-file", "", "YAML catalogue of named statistics")
	flags.StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	flags.StringVar(&ocrLanguage, "lang", "eng", "Tesseract language for PDF and image input")
}

func main() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// newProcessor builds a processor without storage from the global flags.
func newProcessor() (*processor.DocumentProcessor, error) {
	cfg := processor.DefaultPipelineConfig()
	cfg.StrictContinuation = strictContinuation
	order, err := statement.ParseColumnOrder(columnOrder)
	if err != nil {
		return nil, err
	}
	cfg.ColumnOrder = order

	var catalogue *config.Catalogue
	if statisticsFile != "" {
		if catalogue, err = config.LoadCatalogue(statisticsFile); err != nil {
			return nil, err
		}
	}

	return processor.NewDocumentProcessor(&processor.ProcessorConfig{
		TempDir:     os.TempDir(),
		MaxFileSize: 1 << 30,
		Pipeline:    cfg,
		Catalogue:   catalogue,
		Tesseract:   ocr.TesseractConfig{Language: ocrLanguage, TessdataPrefix: os.Getenv("TESSDATA_PREFIX")},
	})
}

// fileRequest reads path into a processing request named after the file.
func fileRequest(path string, statistics []string) (*processor.ProcessRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return &processor.ProcessRequest{
		JobID:      filepath.Base(path),
		Filename:   filepath.Base(path),
		FileSize:   int64(len(data)),
		FileBuffer: data,
		Statistics: statistics,
	}, nil
}
