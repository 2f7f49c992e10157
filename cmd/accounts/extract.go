package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ONSBigData/parsing-company-accounts/internal/export"
	"github.com/ONSBigData/parsing-company-accounts/internal/processor"
)

var (
	statPhrases []string
	xlsxOut     string
)

var extractCmd = &cobra.Command{
	Use:   "extract FILE...",
	Short: "Extract line items and named statistics as JSON",
	Long: `Extract reads Tesseract TSV word tables, PDFs or page images and prints
one JSON result per file. Each --stat phrase replaces the statistics
catalogue with an ad-hoc search.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExtract,
}

func init() {
	RootCmd.AddCommand(extractCmd)
	extractCmd.Flags().StringArrayVar(&statPhrases, "stat", nil, "Phrase of a statistic to locate (repeatable)")
	extractCmd.Flags().StringVar(&xlsxOut, "xlsx", "", "Also write the results to this workbook")
}

func runExtract(cmd *cobra.Command, args []string) error {
	proc, err := newProcessor()
	if err != nil {
		return err
	}

	results := make([]*processor.ProcessResult, 0, len(args))
	for _, path := range args {
		req, err := fileRequest(path, statPhrases)
		if err != nil {
			return err
		}
		result, err := proc.ProcessDocument(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		results = append(results, result)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return err
	}

	if xlsxOut == "" {
		return nil
	}
	f, err := os.Create(xlsxOut)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", xlsxOut, err)
	}
	if err := export.WriteWorkbook(f, results); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
