package tabular

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"studykit/internal/errors"

	"github.com/xuri/excelize/v2"
)

// Row is one data row keyed by trimmed header. Cells are kept as read.
type Row map[string]string

// Get returns the cell for column with surrounding whitespace removed, or ""
// when the row lacks it.
func (r Row) Get(column string) string {
	return strings.TrimSpace(r[column])
}

// Raw returns the cell for column exactly as read.
func (r Row) Raw(column string) string {
	return r[column]
}

// Table is a header row plus data rows.
type Table struct {
	Name    string
	Headers []string
	Rows    []Row
}

// HasColumns reports whether every column is present.
func (t *Table) HasColumns(columns ...string) bool {
	return len(t.missing(columns)) == 0
}

// Require fails with a MISSING_COLUMN error naming every absent column.
func (t *Table) Require(columns ...string) error {
	if missing := t.missing(columns); len(missing) > 0 {
		return errors.MissingColumns(t.Name, missing)
	}
	return nil
}

// Column returns the values of one column in row order.
func (t *Table) Column(name string) []string {
	values := make([]string, 0, len(t.Rows))
	for _, r := range t.Rows {
		values = append(values, r.Get(name))
	}
	return values
}

func (t *Table) missing(columns []string) []string {
	have := make(map[string]bool, len(t.Headers))
	for _, h := range t.Headers {
		have[h] = true
	}
	var missing []string
	for _, c := range columns {
		if !have[c] {
			missing = append(missing, c)
		}
	}
	return missing
}

// IsSpreadsheet reports whether path names an .xlsx workbook.
func IsSpreadsheet(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".xlsx")
}

// ReadTable reads a CSV file or the first sheet of an XLSX workbook.
func ReadTable(path string) (*Table, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, errors.NotFound(path)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ParseTable(filepath.Base(path), raw)
}

// ParseTable parses an in-memory upload; name decides the format.
func ParseTable(name string, data []byte) (*Table, error) {
	start := time.Now()
	var (
		rows [][]string
		err  error
	)
	if IsSpreadsheet(name) {
		rows, err = readSheet(bytes.NewReader(data))
	} else {
		rows, err = readCSV(bytes.NewReader(data))
	}
	if err != nil {
		return nil, errors.WithCode(errors.CodeConfigInvalid, fmt.Errorf("%s: %w", name, err))
	}
	if len(rows) == 0 {
		return nil, errors.ConfigInvalid(fmt.Sprintf("%s has no header row", name))
	}

	t := processRows(name, rows)
	log.Printf("[Tabular] %s read in %.2fms (%d columns, %d rows)",
		name, float64(time.Since(start).Nanoseconds())/1e6, len(t.Headers), len(t.Rows))
	return t, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	// A UTF-8 BOM from spreadsheet exports would otherwise stick to the
	// first header.
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}
	return rows, nil
}

func readSheet(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", sheets[0], err)
	}
	return rows, nil
}

// processRows trims headers and drops rows whose cells are all blank.
func processRows(name string, rows [][]string) *Table {
	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}

	t := &Table{Name: name, Headers: headers}
	for _, raw := range rows[1:] {
		row := make(Row, len(headers))
		blank := true
		for j, cell := range raw {
			if j >= len(headers) || headers[j] == "" {
				continue
			}
			if strings.TrimSpace(cell) != "" {
				blank = false
			}
			row[headers[j]] = cell
		}
		if !blank {
			t.Rows = append(t.Rows, row)
		}
	}
	return t
}
