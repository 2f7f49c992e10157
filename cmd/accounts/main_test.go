package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTable = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
	"1\t1\t0\t0\t0\t0\t0\t0\t1000\t1400\t-1\t\n" +
	"5\t1\t1\t1\t1\t1\t100\t100\t84\t20\t96\tBalance\n" +
	"5\t1\t1\t1\t1\t2\t192\t100\t60\t20\t96\tSheet\n" +
	"5\t1\t2\t1\t1\t1\t600\t200\t48\t20\t96\t2019\n" +
	"5\t1\t2\t1\t1\t2\t800\t200\t48\t20\t96\t2018\n" +
	"5\t1\t3\t1\t1\t1\t100\t300\t36\t20\t96\tNet\n" +
	"5\t1\t3\t1\t1\t2\t144\t300\t72\t20\t96\tassets\n" +
	"5\t1\t3\t1\t1\t3\t600\t300\t72\t20\t91\t14,256\n" +
	"5\t1\t3\t1\t1\t4\t800\t300\t72\t20\t92\t11,700\n"

func writeTable(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "accounts.tsv")
	require.NoError(t, os.WriteFile(path, []byte(sampleTable), 0o644))
	return path
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetArgs(args)
	require.NoError(t, RootCmd.Execute())
	return out.String()
}

func TestExtractCommand(t *testing.T) {
	path := writeTable(t)
	xlsx := filepath.Join(t.TempDir(), "out.xlsx")

	out := run(t, "extract", path, "--stat", "net assets", "--xlsx", xlsx)

	var results []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "accounts.tsv", results[0]["filename"])
	assert.Equal(t, []interface{}{float64(1)}, results[0]["balance_sheet_pages"])

	stats, ok := results[0]["statistics"].([]interface{})
	require.True(t, ok)
	require.Len(t, stats, 1)
	assert.Equal(t, "net_assets", stats[0].(map[string]interface{})["name"])
	assert.Equal(t, true, stats[0].(map[string]interface{})["found"])

	info, err := os.Stat(xlsx)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestPagesCommand(t *testing.T) {
	out := run(t, "pages", writeTable(t), "--find", "net assets")

	assert.Contains(t, out, "balance sheet pages [1]")
	assert.Contains(t, out, "balancesheet")
	assert.Contains(t, out, `"net assets": pages 1`)
}

func TestJoinPages(t *testing.T) {
	assert.Equal(t, "not found", joinPages(nil))
	assert.Equal(t, "pages 2, 5", joinPages([]int{2, 5}))
}
