// Package filereader turns an uploaded spot file (CSV or Excel) into the
// ordered raw rows the validation pipeline consumes. Parse failures are the
// caller's problem to surface; data-quality problems are not detected here.
package filereader

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/sioma/spot-ingest/internal/spots"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadSpotFile parses the file content by extension. The first line is the
// header; every following line becomes one RawRow keyed by the original
// header names. Returns an error for unsupported formats, unparseable
// content, or a file with zero data rows.
func ReadSpotFile(data []byte, filename string) ([]spots.RawRow, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return readCSV(data)
	case ".xlsx", ".xls":
		return readExcel(data)
	default:
		return nil, fmt.Errorf("unsupported file format %q: use CSV or Excel", filepath.Ext(filename))
	}
}

func readCSV(data []byte) ([]spots.RawRow, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	r := csv.NewReader(bytes.NewReader(data))
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []spots.RawRow
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(rows)+2, err)
		}
		rows = append(rows, rowFromRecord(header, record))
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("file has a header but no data rows")
	}
	return rows, nil
}

func readExcel(data []byte) ([]spots.RawRow, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty file")
	}

	header := records[0]
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	rows := make([]spots.RawRow, 0, len(records)-1)
	for _, record := range records[1:] {
		rows = append(rows, rowFromRecord(header, record))
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("file has a header but no data rows")
	}
	return rows, nil
}

// rowFromRecord zips one record against the header. Cells past the header
// width are dropped; missing trailing cells stay absent from the map.
// Columns with an empty header name carry no resolvable data and are skipped.
func rowFromRecord(header, record []string) spots.RawRow {
	row := make(spots.RawRow, len(header))
	for i, name := range header {
		if name == "" || i >= len(record) {
			continue
		}
		row[name] = record[i]
	}
	return row
}
