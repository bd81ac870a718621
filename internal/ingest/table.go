// Package ingest reads inventory sheets, sale exports and comp exports
// (CSV or XLSX) into records the store and matcher understand.
package ingest

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/text/encoding/htmlindex"
)

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter rune   // default ','
	Charset   string // e.g. "windows-1252"; empty means UTF-8
	TrimSpace bool
}

// StreamCSV reads CSV records and sends them to a channel. Both channels are
// closed when processing completes; at most one error is sent.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		if opts.Charset != "" {
			enc, err := htmlindex.Get(opts.Charset)
			if err != nil {
				errCh <- eris.Wrapf(err, "csv: unsupported charset %q", opts.Charset)
				return
			}
			r = enc.NewDecoder().Reader(r)
		}

		reader := csv.NewReader(r)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		reader.LazyQuotes = true
		reader.FieldsPerRecord = -1

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}

			if opts.TrimSpace {
				for i, field := range record {
					record[i] = strings.TrimSpace(field)
				}
			}

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// ReadXLSX returns every row of the first sheet, or of sheetName when set.
func ReadXLSX(path, sheetName string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}

	var sheet *xlsx.Sheet
	if sheetName != "" {
		s, ok := f.Sheet[sheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", sheetName)
		}
		sheet = s
	} else {
		if len(f.Sheets) == 0 {
			return nil, eris.New("xlsx: workbook has no sheets")
		}
		sheet = f.Sheets[0]
	}

	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = strings.TrimSpace(cell.String())
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

// Table is a header-addressed view over tabular rows.
type Table struct {
	Header []string
	Rows   [][]string
	index  map[string]int
}

// NewTable builds a Table from rows whose first row is the header. Header
// lookups are case-insensitive and ignore surrounding whitespace.
func NewTable(rows [][]string) *Table {
	t := &Table{index: make(map[string]int)}
	if len(rows) == 0 {
		return t
	}
	t.Header = rows[0]
	t.Rows = rows[1:]
	for i, h := range t.Header {
		k := headerKey(h)
		if _, dup := t.index[k]; !dup {
			t.index[k] = i
		}
	}
	return t
}

func headerKey(h string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
}

// Has reports whether any of the named columns exist.
func (t *Table) Has(names ...string) bool {
	for _, n := range names {
		if _, ok := t.index[headerKey(n)]; ok {
			return true
		}
	}
	return false
}

// Get returns the trimmed value of the first named column that is present
// and non-blank in row.
func (t *Table) Get(row []string, names ...string) string {
	for _, n := range names {
		i, ok := t.index[headerKey(n)]
		if !ok || i >= len(row) {
			continue
		}
		if v := strings.TrimSpace(row[i]); v != "" {
			return v
		}
	}
	return ""
}

// Record returns row as a header-keyed map, for raw payload storage.
func (t *Table) Record(row []string) map[string]string {
	m := make(map[string]string, len(t.Header))
	for i, h := range t.Header {
		if i < len(row) {
			m[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = row[i]
		}
	}
	return m
}

// ReadOptions configures ReadTable.
type ReadOptions struct {
	Sheet   string // XLSX sheet name
	Charset string // CSV charset
}

// ReadTable loads a .csv or .xlsx file into a Table.
func ReadTable(ctx context.Context, path string, opts ReadOptions) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err := ReadXLSX(path, opts.Sheet)
		if err != nil {
			return nil, err
		}
		return NewTable(rows), nil
	case ".csv", ".txt", "":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "ingest: open file")
		}
		defer f.Close()

		rowCh, errCh := StreamCSV(ctx, f, CSVOptions{Charset: opts.Charset, TrimSpace: true})
		var rows [][]string
		for row := range rowCh {
			rows = append(rows, row)
		}
		if err := <-errCh; err != nil {
			return nil, err
		}
		return NewTable(rows), nil
	default:
		return nil, eris.Errorf("ingest: unsupported file type %q", filepath.Ext(path))
	}
}
