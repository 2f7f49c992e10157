package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var findPhrases []string

var pagesCmd = &cobra.Command{
	Use:   "pages FILE...",
	Short: "Print candidate balance sheet pages with their sentence lines",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPages,
}

func init() {
	RootCmd.AddCommand(pagesCmd)
	pagesCmd.Flags().StringArrayVar(&findPhrases, "find", nil, "Also list the pages mentioning this phrase (repeatable)")
}

func runPages(cmd *cobra.Command, args []string) error {
	proc, err := newProcessor()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, path := range args {
		req, err := fileRequest(path, nil)
		if err != nil {
			return err
		}
		c, err := proc.ClassifyDocument(cmd.Context(), req, findPhrases...)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		fmt.Fprintf(out, "%s: %d pages, balance sheet pages %v\n", path, c.PageCount, c.Pages)
		for _, cand := range c.Candidates {
			fmt.Fprintf(out, "  page %d\n", cand.PageID)
			for _, s := range cand.Sentences {
				fmt.Fprintf(out, "    %s\n", s)
			}
		}
		for _, phrase := range findPhrases {
			fmt.Fprintf(out, "  %q: %s\n", phrase, joinPages(c.Matches[phrase]))
		}
	}
	return nil
}

func joinPages(ids []int) string {
	if len(ids) == 0 {
		return "not found"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return "pages " + strings.Join(parts, ", ")
}
