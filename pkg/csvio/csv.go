// Package csvio reads survey exports into tables and applies the cleanup
// edits a reviewer makes before import.
//
// CSV and XLSX exports are supported, optionally compressed with gzip,
// bzip2 or xz.
package csvio

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/menta2k/annotation-review/pkg/types"
)

// ErrEmpty is returned for input without a header row
var ErrEmpty = errors.New("data is empty")

const utf8BOM = "\ufeff"

// ParseCSV parses CSV data with a header row into a table
func ParseCSV(data []byte) (types.Table, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return types.Table{}, ErrEmpty
	}

	reader := csv.NewReader(bytes.NewReader(data))
	// Allow variable number of fields per record to handle truncated exports
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return types.Table{}, ErrEmpty
		}
		return types.Table{}, fmt.Errorf("failed to read CSV header: %w", err)
	}

	var records [][]string
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return types.Table{}, fmt.Errorf("failed to parse CSV: %w", err)
		}
		records = append(records, rec)
	}

	return buildTable(header, records), nil
}

// ParseXLSX reads the first sheet of an Excel workbook into a table
func ParseXLSX(data []byte) (types.Table, error) {
	if len(data) == 0 {
		return types.Table{}, ErrEmpty
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return types.Table{}, fmt.Errorf("failed to open XLSX: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return types.Table{}, fmt.Errorf("no sheets found in XLSX file")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return types.Table{}, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return types.Table{}, ErrEmpty
	}

	return buildTable(rows[0], rows[1:]), nil
}

func buildTable(header []string, records [][]string) types.Table {
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}
	columns := NormalizeHeaders(header)

	t := types.Table{Columns: columns, Rows: make([]types.Row, 0, len(records))}
	for _, rec := range records {
		row := make(types.Row, len(columns))
		for i, col := range columns {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		if isExportHeaderRow(row, columns) {
			continue
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// isExportHeaderRow detects the secondary header rows Qualtrics writes under
// the real header: the question-text row and the ImportId row
func isExportHeaderRow(row types.Row, columns []string) bool {
	importIDs, filled := 0, 0
	for _, col := range columns {
		v := strings.TrimSpace(row[col])
		if v == "" {
			continue
		}
		filled++
		if strings.HasPrefix(v, `{"ImportId"`) {
			importIDs++
		}
	}
	if filled == 0 {
		return false
	}
	return importIDs == filled || row["selectionsData"] == "selectionsData"
}

// excelColumnName converts a 0-based index to Excel-style column name.
// Examples: 0 -> A, 25 -> Z, 26 -> AA
func excelColumnName(index int) string {
	result := ""
	index++

	for index > 0 {
		index--
		result = string(rune('A'+index%26)) + result
		index /= 26
	}

	return result
}

// NormalizeHeaders replaces empty headers with Unnamed_A, Unnamed_B, ... and
// keeps every other header as-is
func NormalizeHeaders(header []string) []string {
	normalized := make([]string, len(header))
	emptyCount := 0

	for i, h := range header {
		if strings.TrimSpace(h) == "" {
			normalized[i] = "Unnamed_" + excelColumnName(emptyCount)
			emptyCount++
		} else {
			normalized[i] = h
		}
	}

	return normalized
}
