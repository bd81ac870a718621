package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func createTestXLSX(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				cell := row.AddCell()
				cell.SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "test.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func collect(t *testing.T, rowCh <-chan []string, errCh <-chan error) [][]string {
	t.Helper()
	var rows [][]string
	for r := range rowCh {
		rows = append(rows, r)
	}
	require.NoError(t, <-errCh)
	return rows
}

func TestStreamCSV(t *testing.T) {
	t.Run("basic", func(t *testing.T) {
		rowCh, errCh := StreamCSV(context.Background(), strings.NewReader("a,b\n1,2\n"), CSVOptions{})
		rows := collect(t, rowCh, errCh)
		assert.Equal(t, [][]string{{"a", "b"}, {"1", "2"}}, rows)
	})

	t.Run("ragged rows and trim", func(t *testing.T) {
		rowCh, errCh := StreamCSV(context.Background(), strings.NewReader("a, b ,c\n1\n"), CSVOptions{TrimSpace: true})
		rows := collect(t, rowCh, errCh)
		assert.Equal(t, [][]string{{"a", "b", "c"}, {"1"}}, rows)
	})

	t.Run("delimiter", func(t *testing.T) {
		rowCh, errCh := StreamCSV(context.Background(), strings.NewReader("a|b\n"), CSVOptions{Delimiter: '|'})
		assert.Equal(t, [][]string{{"a", "b"}}, collect(t, rowCh, errCh))
	})

	t.Run("windows-1252", func(t *testing.T) {
		rowCh, errCh := StreamCSV(context.Background(), strings.NewReader("title\nCaf\xe9\n"), CSVOptions{Charset: "windows-1252"})
		rows := collect(t, rowCh, errCh)
		require.Len(t, rows, 2)
		assert.Equal(t, "Café", rows[1][0])
	})

	t.Run("unknown charset", func(t *testing.T) {
		rowCh, errCh := StreamCSV(context.Background(), strings.NewReader("a\n"), CSVOptions{Charset: "klingon"})
		for range rowCh {
		}
		assert.Error(t, <-errCh)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		rowCh, errCh := StreamCSV(ctx, strings.NewReader("a\nb\n"), CSVOptions{})
		for range rowCh {
		}
		assert.Error(t, <-errCh)
	})
}

func TestReadXLSX(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Inventory": {{"title", "number"}, {" Fantastic Four ", "1"}},
	})

	rows, err := ReadXLSX(path, "")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"title", "number"}, {"Fantastic Four", "1"}}, rows)

	rows, err = ReadXLSX(path, "Inventory")
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	_, err = ReadXLSX(path, "Missing")
	assert.Error(t, err)

	_, err = ReadXLSX(filepath.Join(t.TempDir(), "nope.xlsx"), "")
	assert.Error(t, err)
}

func TestTable(t *testing.T) {
	tbl := NewTable([][]string{
		{"\ufeffTitle", " Number ", "issue", "Sold Price"},
		{"Thor", "", "126", "$40"},
		{"Hulk"},
	})

	assert.True(t, tbl.Has("title"))
	assert.True(t, tbl.Has("missing", "sold price"))
	assert.False(t, tbl.Has("grade"))
	require.Len(t, tbl.Rows, 2)

	assert.Equal(t, "Thor", tbl.Get(tbl.Rows[0], "title"))
	// blank "number" falls through to "issue"
	assert.Equal(t, "126", tbl.Get(tbl.Rows[0], "number", "issue"))
	// short rows yield blanks
	assert.Equal(t, "", tbl.Get(tbl.Rows[1], "sold price"))

	rec := tbl.Record(tbl.Rows[1])
	assert.Equal(t, map[string]string{"Title": "Hulk"}, rec)

	empty := NewTable(nil)
	assert.Empty(t, empty.Rows)
	assert.False(t, empty.Has("title"))
}

func TestReadTable(t *testing.T) {
	ctx := context.Background()

	t.Run("csv", func(t *testing.T) {
		path := writeFile(t, "inv.csv", "title,number\nThor, 126 \n")
		tbl, err := ReadTable(ctx, path, ReadOptions{})
		require.NoError(t, err)
		require.Len(t, tbl.Rows, 1)
		assert.Equal(t, "126", tbl.Get(tbl.Rows[0], "number"))
	})

	t.Run("xlsx", func(t *testing.T) {
		path := createTestXLSX(t, map[string][][]string{"S": {{"title"}, {"Thor"}}})
		tbl, err := ReadTable(ctx, path, ReadOptions{Sheet: "S"})
		require.NoError(t, err)
		assert.Equal(t, "Thor", tbl.Get(tbl.Rows[0], "title"))
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := ReadTable(ctx, "inventory.pdf", ReadOptions{})
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := ReadTable(ctx, filepath.Join(t.TempDir(), "gone.csv"), ReadOptions{})
		assert.Error(t, err)
	})
}
