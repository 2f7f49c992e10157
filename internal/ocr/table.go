/**
 * Word table reader
 *
 * Reads Tesseract TSV output (and comma-separated exports of the same
 * columns) into Words. Rows that cannot supply a full record are skipped
 * and counted, never fatal.
 */

package ocr

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	apperrors "github.com/ONSBigData/parsing-company-accounts/internal/errors"
)

var requiredColumns = []string{
	"level", "page_num", "block_num", "par_num", "line_num", "word_num",
	"left", "top", "width", "height", "conf",
}

// Table is a parsed word table.
type Table struct {
	Words   []Word
	Skipped int
	Issues  []*apperrors.ProcessingError
}

// ReadTable parses a header-led word table. The delimiter is taken from the
// header line: tab for Tesseract TSV, comma otherwise. A csv_num or page_id
// column overrides page_num as the page identifier.
func ReadTable(r io.Reader) (*Table, error) {
	br := bufio.NewReader(r)
	header, err := br.ReadString('\n')
	if err != nil && header == "" {
		return nil, fmt.Errorf("read header: %w", err)
	}
	header = strings.TrimRight(header, "\r\n")

	var rows func() ([]string, error)
	var cols []string
	if strings.Contains(header, "\t") {
		cols = strings.Split(header, "\t")
		sc := bufio.NewScanner(br)
		sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
		rows = func() ([]string, error) {
			if !sc.Scan() {
				if err := sc.Err(); err != nil {
					return nil, err
				}
				return nil, io.EOF
			}
			return strings.Split(strings.TrimRight(sc.Text(), "\r"), "\t"), nil
		}
	} else {
		hr := csv.NewReader(strings.NewReader(header))
		if cols, err = hr.Read(); err != nil {
			return nil, fmt.Errorf("parse header: %w", err)
		}
		cr := csv.NewReader(br)
		cr.FieldsPerRecord = -1
		cr.LazyQuotes = true
		rows = cr.Read
	}

	idx, err := columnIndex(cols)
	if err != nil {
		return nil, err
	}

	t := &Table{}
	for row := 1; ; row++ {
		fields, err := rows()
		if err == io.EOF {
			break
		}
		if err != nil {
			if pe, ok := err.(*csv.ParseError); ok {
				t.skip(row, pe.Error())
				continue
			}
			return nil, fmt.Errorf("read row %d: %w", row, err)
		}
		if len(fields) == 1 && strings.TrimSpace(fields[0]) == "" {
			continue
		}
		w, reason := parseRow(fields, idx)
		if reason != "" {
			t.skip(row, reason)
			continue
		}
		t.Words = append(t.Words, w)
	}
	return t, nil
}

func (t *Table) skip(row int, reason string) {
	t.Skipped++
	t.Issues = append(t.Issues, apperrors.NewMalformedRowError(row, reason))
}

type tableIndex struct {
	cols map[string]int
	page string
}

func columnIndex(header []string) (tableIndex, error) {
	idx := tableIndex{cols: make(map[string]int, len(header)), page: "page_num"}
	for i, c := range header {
		idx.cols[strings.ToLower(strings.TrimSpace(c))] = i
	}
	for _, c := range requiredColumns {
		if _, ok := idx.cols[c]; !ok {
			return idx, fmt.Errorf("word table missing column %q", c)
		}
	}
	if _, ok := idx.cols["text"]; !ok {
		return idx, fmt.Errorf("word table missing column %q", "text")
	}
	for _, alt := range []string{"page_id", "csv_num"} {
		if _, ok := idx.cols[alt]; ok {
			idx.page = alt
			break
		}
	}
	return idx, nil
}

func parseRow(fields []string, idx tableIndex) (Word, string) {
	ints := make(map[string]int, len(requiredColumns))
	for _, c := range append([]string{idx.page}, requiredColumns[:10]...) {
		i := idx.cols[c]
		if i >= len(fields) {
			return Word{}, fmt.Sprintf("missing %s", c)
		}
		v, err := parseInt(fields[i])
		if err != nil {
			return Word{}, fmt.Sprintf("invalid %s %q", c, fields[i])
		}
		ints[c] = v
	}

	conf := -1.0
	if i := idx.cols["conf"]; i < len(fields) && strings.TrimSpace(fields[i]) != "" {
		v, err := strconv.ParseFloat(strings.TrimSpace(fields[i]), 64)
		if err != nil {
			return Word{}, fmt.Sprintf("invalid conf %q", fields[i])
		}
		conf = v
	}

	var text string
	if i := idx.cols["text"]; i < len(fields) {
		text = fields[i]
	}

	return Word{
		PageID:     ints[idx.page],
		Level:      ints["level"],
		BlockNum:   ints["block_num"],
		ParNum:     ints["par_num"],
		LineNum:    ints["line_num"],
		WordNum:    ints["word_num"],
		Left:       ints["left"],
		Top:        ints["top"],
		Width:      ints["width"],
		Height:     ints["height"],
		Confidence: conf,
		Text:       text,
	}, ""
}

// parseInt accepts pandas-style "12.0" as well as "12".
func parseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return 0, fmt.Errorf("not an integer: %q", s)
	}
	return int(f), nil
}

// ConcatTables merges per-page tables into one document, numbering pages
// from 1 in the given order.
func ConcatTables(tables ...*Table) *Table {
	out := &Table{}
	for i, t := range tables {
		for _, w := range t.Words {
			w.PageID = i + 1
			out.Words = append(out.Words, w)
		}
		out.Skipped += t.Skipped
		out.Issues = append(out.Issues, t.Issues...)
	}
	return out
}

// WriteTSV writes words in Tesseract TSV layout with a page_id column.
func WriteTSV(w io.Writer, words []Word) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\tpage_id")
	for _, x := range words {
		text := strings.NewReplacer("\t", " ", "\n", " ").Replace(x.Text)
		fmt.Fprintf(bw, "%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%g\t%s\t%d\n",
			x.Level, x.PageID, x.BlockNum, x.ParNum, x.LineNum, x.WordNum,
			x.Left, x.Top, x.Width, x.Height, x.Confidence, text, x.PageID)
	}
	return bw.Flush()
}
