package ocr

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ONSBigData/parsing-company-accounts/internal/errors"
)

const sampleTSV = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
	"1\t1\t0\t0\t0\t0\t0\t0\t2480\t3508\t-1\t\n" +
	"4\t1\t1\t1\t1\t0\t100\t200\t900\t40\t-1\t\n" +
	"5\t1\t1\t1\t1\t1\t100\t200\t120\t40\t96.5\tTotal\n" +
	"5\t1\t1\t1\t1\t2\t240\t200\t140\t40\t95\tassets\n" +
	"5\t1\t1\t1\t1\t3\t800\t200\t100\t40\t91\t1,234\n" +
	"5\t1\t1\t1\t1\t4\tx\t200\t100\t40\t91\t1,100\n" +
	"5\t1\t1\t1\t1\t5\t1000\t200\t100\t40\t88\t\"quoted\n"

func TestReadTableTSV(t *testing.T) {
	table, err := ReadTable(strings.NewReader(sampleTSV))
	require.NoError(t, err)

	assert.Len(t, table.Words, 6)
	assert.Equal(t, 1, table.Skipped)
	require.Len(t, table.Issues, 1)
	assert.Equal(t, apperrors.ErrorMalformedRow, table.Issues[0].Code)

	w := table.Words[2]
	assert.Equal(t, "Total", w.Text)
	assert.Equal(t, 96.5, w.Confidence)
	assert.Equal(t, 1, w.PageID)
	assert.Equal(t, -1.0, table.Words[0].Confidence)

	// Tab splitting keeps a stray quote inside the text column.
	assert.Equal(t, "\"quoted", table.Words[5].Text)
}

func TestReadTableCSVWithPageID(t *testing.T) {
	in := "level,page_num,block_num,par_num,line_num,word_num,left,top,width,height,conf,text,csv_num\n" +
		"5.0,1,1,1,1,1,10,20,30,40,90.0,Cash,7\n" +
		"5,1,1,1,1,2,50,20,30,40,88,\"1,200\",7\n"
	table, err := ReadTable(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, table.Words, 2)
	assert.Equal(t, 7, table.Words[0].PageID)
	assert.Equal(t, "1,200", table.Words[1].Text)
}

func TestReadTableMissingColumn(t *testing.T) {
	_, err := ReadTable(strings.NewReader("level\tpage_num\ttext\n5\t1\tx\n"))
	assert.ErrorContains(t, err, "missing column")
}

func TestConcatTablesNumbersPages(t *testing.T) {
	a := &Table{Words: []Word{{PageID: 1, Text: "a"}}, Skipped: 1}
	b := &Table{Words: []Word{{PageID: 1, Text: "b"}}}
	out := ConcatTables(a, b)
	require.Len(t, out.Words, 2)
	assert.Equal(t, 1, out.Words[0].PageID)
	assert.Equal(t, 2, out.Words[1].PageID)
	assert.Equal(t, 1, out.Skipped)
}

func TestWriteTSVRoundTrip(t *testing.T) {
	words := []Word{{PageID: 3, Level: 5, BlockNum: 1, ParNum: 1, LineNum: 2, WordNum: 1, Left: 5, Top: 6, Width: 7, Height: 8, Confidence: 90, Text: "Cash"}}
	var buf bytes.Buffer
	require.NoError(t, WriteTSV(&buf, words))

	table, err := ReadTable(&buf)
	require.NoError(t, err)
	require.Len(t, table.Words, 1)
	assert.Equal(t, words[0], table.Words[0])
}

func TestParseNumeric(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"1,234", 1234, true},
		{"(1,100)", 1100, true},
		{"-45", -45, true},
		{"\u22121,234", -1234, true},
		{"12.50", 12.5, true},
		{"2019", 2019, true},
		{"£", 0, false},
		{"-", 0, false},
		{"nan", 0, false},
		{"1e5", 0, false},
		{"assets", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseNumeric(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsYear(t *testing.T) {
	assert.True(t, IsYear(2019, 2000, 2050))
	assert.False(t, IsYear(2019.5, 2000, 2050))
	assert.False(t, IsYear(1999, 2000, 2050))
	assert.True(t, IsYear(2050, 2000, 2050))
}

func TestEnrichGeometry(t *testing.T) {
	table, err := ReadTable(strings.NewReader(sampleTSV))
	require.NoError(t, err)
	words := Enrich(table.Words)

	for _, w := range words {
		assert.Equal(t, w.Left+w.Width, w.Right)
		assert.Equal(t, w.Top+w.Height, w.Bottom)
		assert.Equal(t, w.Width*w.Height, w.Area)
	}

	assert.False(t, words[2].HasSpace, "first word of a line has no left gap")
	require.True(t, words[3].HasSpace)
	assert.Equal(t, 240-220, words[3].SpaceFromLeft)

	require.True(t, words[4].HasValue)
	assert.Equal(t, 1234.0, words[4].Value)
	assert.Equal(t, 850.0, words[4].CenterX)

	// Input untouched.
	assert.Zero(t, table.Words[2].Right)
}

func TestEnrichTreatsNanAsEmpty(t *testing.T) {
	words := Enrich([]Word{{WordNum: 1, Text: "nan"}})
	assert.Empty(t, words[0].Text)
	assert.False(t, words[0].HasValue)
}

func TestSpacingStats(t *testing.T) {
	words := []Word{
		{HasSpace: true, SpaceFromLeft: 10},
		{HasSpace: true, SpaceFromLeft: 20},
		{HasSpace: true, SpaceFromLeft: 30},
		{HasSpace: false, SpaceFromLeft: 500},
	}
	s := SpacingStats(words)
	assert.Equal(t, 3, s.Count)
	assert.Equal(t, 20.0, s.Mean)
	assert.Equal(t, 20.0, s.Median)
	assert.InDelta(t, 10.0, s.StdDev, 1e-9)

	assert.Equal(t, Spacing{}, SpacingStats(nil))
}

func TestGroupPages(t *testing.T) {
	words := Enrich([]Word{
		{PageID: 2, Level: LevelWord, WordNum: 1, Left: 10, Top: 10, Width: 50, Height: 20},
		{PageID: 1, Level: LevelPage, Width: 1000, Height: 1400},
		{PageID: 1, Level: LevelWord, WordNum: 1, Left: 1200, Top: 10, Width: 50, Height: 20},
		{PageID: 2, Level: LevelWord, WordNum: 2, Left: 100, Top: 300, Width: 40, Height: 20},
	})
	pages := GroupPages(words)
	require.Len(t, pages, 2)

	assert.Equal(t, 2, pages[0].ID)
	assert.Equal(t, 140, pages[0].Width)
	assert.Equal(t, 320, pages[0].Height)

	assert.Equal(t, 1, pages[1].ID)
	assert.Equal(t, 1000, pages[1].Width)
	assert.Equal(t, 1400, pages[1].Height)

	assert.Equal(t, []int{1, 2}, PageIDs(words))
}

func TestGlyphWords(t *testing.T) {
	texts := []pdf.Text{
		{FontSize: 10, X: 72, Y: 700, W: 6, S: "N"},
		{FontSize: 10, X: 78, Y: 700, W: 18, S: "et "},
		{FontSize: 10, X: 100, Y: 700.5, W: 30, S: "assets"},
		{FontSize: 10, X: 400, Y: 700, W: 25, S: "1,234"},
		{FontSize: 10, X: 72, Y: 680, W: 20, S: "Cash"},
	}
	words := glyphWords(texts, 4, 800)
	require.Len(t, words, 4)

	assert.Equal(t, "Net", words[0].Text)
	assert.Equal(t, "assets", words[1].Text)
	assert.Equal(t, "1,234", words[2].Text)
	assert.Equal(t, "Cash", words[3].Text)

	assert.Equal(t, 1, words[0].LineNum)
	assert.Equal(t, 3, words[2].WordNum)
	assert.Equal(t, 2, words[3].LineNum)
	assert.Equal(t, 4, words[3].PageID)
	assert.Equal(t, 800, words[2].Left)
	assert.Less(t, words[0].Top, words[3].Top)
}

func TestPDFTextWordsRejectsGarbage(t *testing.T) {
	_, err := PDFTextWords([]byte("not a pdf"))
	assert.Error(t, err)
}
